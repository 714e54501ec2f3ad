// Package types defines the domain types shared across the curbwatch pipeline.
package types

import "time"

// Status is the per-stop verdict produced by the classifier.  Obscured is a
// legitimate, stable output value meaning "no confident verdict" -- it is not
// an error state.
type Status string

const (
	StatusBlocked  Status = "blocked"
	StatusClear    Status = "clear"
	StatusObscured Status = "obscured"
)

// Region tags used by the snow heuristic.  The curb region is the bottom band
// of the frame, closest to the sidewalk; the ground region is the full frame.
const (
	RegionCurb   = "curb"
	RegionGround = "ground"
)

// Location is an immutable latitude/longitude pair in decimal degrees.
type Location struct {
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
}

// Camera is a traffic camera as reported by the camera directory.  The fetch
// fields are updated once per poll cycle and carry no meaning across cycles.
type Camera struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	Location  Location  `json:"location"`
	ImageURL  string    `json:"image_url"`
	LastFetch time.Time `json:"last_fetch"`
	FetchOK   bool      `json:"fetch_ok"`
}

// Stop is a transit stop as reported by the stop directory.  Immutable once
// loaded for a cycle.
type Stop struct {
	ID       string   `json:"id"`
	Name     string   `json:"name"`
	Location Location `json:"location"`
}

// CameraStopLink pairs a camera with a stop it can observe.  Produced by the
// matcher; many-to-many.
type CameraStopLink struct {
	CameraID       string  `json:"camera_id"`
	StopID         string  `json:"stop_id"`
	DistanceMeters float64 `json:"distance_meters"`
}

// SnowScore is the heuristic's estimate for one region of one frame.
type SnowScore struct {
	Region   string  `json:"region"`
	Coverage float64 `json:"coverage"`
	LowLight bool    `json:"low_light"`
}

// PlowPass is a single plow-activity record.  Plow passes are corroborating
// metadata only; they never change a verdict.
type PlowPass struct {
	Location Location  `json:"location"`
	PassedAt time.Time `json:"passed_at"`
}

// PlowNote is the nearest recent plow pass attached to a stop status.
type PlowNote struct {
	DistanceMeters float64   `json:"distance_meters"`
	PassedAt       time.Time `json:"passed_at"`
}

// StopStatus is the pipeline's per-stop output record.  A full set is
// regenerated every cycle; records are never mutated after publication.
type StopStatus struct {
	StopID         string    `json:"stop_id"`
	StopName       string    `json:"stop_name"`
	Status         Status    `json:"status"`
	Cameras        []string  `json:"cameras"`
	CurbCoverage   float64   `json:"curb_coverage"`
	GroundCoverage float64   `json:"ground_coverage"`
	LowLight       bool      `json:"low_light"`
	Plow           *PlowNote `json:"plow,omitempty"`
	Annotations    []string  `json:"annotations,omitempty"`
	Timestamp      time.Time `json:"timestamp"`
}

// RegionRect is a region rectangle in pixel coordinates of the analyzed
// frame, used by the presentation layer to draw overlays.
type RegionRect struct {
	Region string `json:"region"`
	X0     int    `json:"x0"`
	Y0     int    `json:"y0"`
	X1     int    `json:"x1"`
	Y1     int    `json:"y1"`
}

// CameraMeta is the per-camera metadata included in a snapshot.  Regions is
// populated only when the camera's own scores crossed a blocked threshold.
type CameraMeta struct {
	ID        string       `json:"id"`
	Name      string       `json:"name"`
	Location  Location     `json:"location"`
	FetchOK   bool         `json:"fetch_ok"`
	LastFetch time.Time    `json:"last_fetch"`
	Status    Status       `json:"status"`
	Regions   []RegionRect `json:"regions,omitempty"`
}

// Snapshot is the complete, internally consistent output of one poll cycle.
// Stops are ordered by stop ID.  Snapshots are replaced atomically; readers
// never observe a half-built one.
type Snapshot struct {
	CycleID     string       `json:"cycle_id"`
	GeneratedAt time.Time    `json:"generated_at"`
	Stops       []StopStatus `json:"stops"`
	Cameras     []CameraMeta `json:"cameras"`
	PlowPasses  []PlowPass   `json:"plow_passes,omitempty"`
}
