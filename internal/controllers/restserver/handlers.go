package restserver

import (
	"net/http"

	"github.com/gorilla/mux"

	"github.com/curbwatch/curbwatch/internal/constants"
	"github.com/curbwatch/curbwatch/internal/log"
	"github.com/curbwatch/curbwatch/pkg/responseformat"
)

// Handlers contains all HTTP handlers for the REST server
type Handlers struct {
	controller *Controller
	formatter  *responseformat.Formatter
}

// NewHandlers creates a new handlers instance
func NewHandlers(ctrl *Controller) *Handlers {
	return &Handlers{
		controller: ctrl,
		formatter:  responseformat.NewFormatter(),
	}
}

// Health reports liveness.  The heuristic field mirrors the old AI-enabled
// flag clients already check.
func (h *Handlers) Health(w http.ResponseWriter, req *http.Request) {
	payload := map[string]any{
		"status":    "ok",
		"version":   constants.Version,
		"heuristic": true,
	}
	if err := h.formatter.WriteResponse(w, req, payload); err != nil {
		log.Errorf("error writing health response: %v", err)
	}
}

// Snapshot returns the complete current snapshot, or 503 before the first
// cycle has published one.
func (h *Handlers) Snapshot(w http.ResponseWriter, req *http.Request) {
	snap := h.controller.store.Current()
	if snap == nil {
		h.formatter.WriteError(w, http.StatusServiceUnavailable, "no snapshot published yet")
		return
	}
	if err := h.formatter.WriteResponse(w, req, snap); err != nil {
		log.Errorf("error writing snapshot response: %v", err)
	}
}

// StopStatus returns a single stop's status record.
func (h *Handlers) StopStatus(w http.ResponseWriter, req *http.Request) {
	snap := h.controller.store.Current()
	if snap == nil {
		h.formatter.WriteError(w, http.StatusServiceUnavailable, "no snapshot published yet")
		return
	}

	stopID := mux.Vars(req)["stop_id"]
	for _, status := range snap.Stops {
		if status.StopID == stopID {
			if err := h.formatter.WriteResponse(w, req, status); err != nil {
				log.Errorf("error writing stop status response: %v", err)
			}
			return
		}
	}

	h.formatter.WriteError(w, http.StatusNotFound, "stop not found: "+stopID)
}

// Cameras returns the per-camera metadata from the current snapshot.
func (h *Handlers) Cameras(w http.ResponseWriter, req *http.Request) {
	snap := h.controller.store.Current()
	if snap == nil {
		h.formatter.WriteError(w, http.StatusServiceUnavailable, "no snapshot published yet")
		return
	}
	if err := h.formatter.WriteResponse(w, req, snap.Cameras); err != nil {
		log.Errorf("error writing cameras response: %v", err)
	}
}

// PlowPasses returns the plow passes the pipeline saw this cycle.
func (h *Handlers) PlowPasses(w http.ResponseWriter, req *http.Request) {
	snap := h.controller.store.Current()
	if snap == nil {
		h.formatter.WriteError(w, http.StatusServiceUnavailable, "no snapshot published yet")
		return
	}
	if err := h.formatter.WriteResponse(w, req, snap.PlowPasses); err != nil {
		log.Errorf("error writing plow passes response: %v", err)
	}
}
