package pipeline

import (
	"sync/atomic"

	"github.com/curbwatch/curbwatch/internal/types"
)

// SnapshotStore holds the current snapshot behind an atomic pointer.  A new
// snapshot replaces the old one in a single swap, so readers either see the
// complete previous cycle or the complete new one, never a mix.
type SnapshotStore struct {
	current atomic.Pointer[types.Snapshot]
}

// NewSnapshotStore creates an empty snapshot store
func NewSnapshotStore() *SnapshotStore {
	return &SnapshotStore{}
}

// Current returns the latest published snapshot, or nil before the first
// cycle completes.
func (s *SnapshotStore) Current() *types.Snapshot {
	return s.current.Load()
}

// Publish atomically replaces the current snapshot.
func (s *SnapshotStore) Publish(snap *types.Snapshot) {
	s.current.Store(snap)
}
