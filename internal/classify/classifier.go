// Package classify turns grouped snow scores into per-stop statuses.
package classify

import (
	"time"

	"github.com/curbwatch/curbwatch/internal/types"
	"github.com/curbwatch/curbwatch/pkg/config"
	"github.com/curbwatch/curbwatch/pkg/geo"
)

// Observation is one camera's successful analysis of a stop's surroundings.
// Cameras whose fetch or analysis failed never become observations; their
// absence is what degrades a stop to obscured.
type Observation struct {
	CameraID string
	Curb     types.SnowScore
	Ground   types.SnowScore
}

// Classifier applies the fixed-order status policy.  Classification is
// deterministic: the same observations and plow passes always produce the
// same status.
type Classifier struct {
	cfg config.ClassifierData
}

// NewClassifier creates a status classifier with the given thresholds
func NewClassifier(cfg config.ClassifierData) *Classifier {
	return &Classifier{cfg: cfg}
}

// Classify produces the status record for one stop.  Aggregation across
// cameras is worst-observed-wins: any camera showing severe blockage is
// trusted over others showing clear, since a missed blockage costs more than
// a false positive from a bad angle.
func (c *Classifier) Classify(stop types.Stop, observations []Observation, plows []types.PlowPass, now time.Time) types.StopStatus {
	status := types.StopStatus{
		StopID:    stop.ID,
		StopName:  stop.Name,
		Cameras:   []string{},
		Timestamp: now,
	}

	if len(observations) == 0 {
		status.Status = types.StatusObscured
		return status
	}

	lowLight := true
	for _, obs := range observations {
		status.Cameras = append(status.Cameras, obs.CameraID)
		if obs.Curb.Coverage > status.CurbCoverage {
			status.CurbCoverage = obs.Curb.Coverage
		}
		if obs.Ground.Coverage > status.GroundCoverage {
			status.GroundCoverage = obs.Ground.Coverage
		}
		// The stop is only flagged low-light when every contributing
		// camera needed the nighttime adjustment.
		if !obs.Curb.LowLight && !obs.Ground.LowLight {
			lowLight = false
		}
	}
	status.LowLight = lowLight

	status.Status = c.verdict(status.CurbCoverage, status.GroundCoverage)
	status.Plow = c.plowNote(stop.Location, plows, now)

	return status
}

// Verdict maps aggregated coverage fractions onto a status.  Blocked uses
// strict greater-than; the band between clear and blocked is obscured,
// meaning "needs human review".
func (c *Classifier) verdict(curb, ground float64) types.Status {
	if curb > c.cfg.CurbBlockedAbove || ground > c.cfg.GroundBlockedAbove {
		return types.StatusBlocked
	}
	if curb < c.cfg.ClearBelow && ground < c.cfg.ClearBelow {
		return types.StatusClear
	}
	return types.StatusObscured
}

// CameraVerdict classifies a single camera's own scores, for snapshot
// metadata and overlay rectangles.
func (c *Classifier) CameraVerdict(curb, ground types.SnowScore) types.Status {
	return c.verdict(curb.Coverage, ground.Coverage)
}

// BlockedRegions names the region tags whose coverage crossed a blocked
// threshold.
func (c *Classifier) BlockedRegions(curb, ground types.SnowScore) []string {
	var regions []string
	if curb.Coverage > c.cfg.CurbBlockedAbove {
		regions = append(regions, types.RegionCurb)
	}
	if ground.Coverage > c.cfg.GroundBlockedAbove {
		regions = append(regions, types.RegionGround)
	}
	return regions
}

// plowNote finds the nearest plow pass within the corroboration radius and
// window.  Plow activity is informational only; it never changes a verdict.
func (c *Classifier) plowNote(loc types.Location, plows []types.PlowPass, now time.Time) *types.PlowNote {
	var note *types.PlowNote
	for _, pass := range plows {
		if now.Sub(pass.PassedAt) > c.cfg.PlowWindow.Duration {
			continue
		}
		d := geo.Distance(
			geo.Point{Latitude: loc.Latitude, Longitude: loc.Longitude},
			geo.Point{Latitude: pass.Location.Latitude, Longitude: pass.Location.Longitude},
		)
		if d > c.cfg.PlowRadiusMeters {
			continue
		}
		if note == nil || d < note.DistanceMeters {
			note = &types.PlowNote{DistanceMeters: d, PassedAt: pass.PassedAt}
		}
	}
	return note
}

// ApplyDemoOverride forces the configured demonstration stop to blocked after
// classification.  It is deliberately outside the detection path so it can be
// switched off wholesale in non-demo operation.
func ApplyDemoOverride(statuses []types.StopStatus, demo config.DemoData) {
	if !demo.Enabled || demo.StopID == "" {
		return
	}
	for i := range statuses {
		if statuses[i].StopID == demo.StopID {
			statuses[i].Status = types.StatusBlocked
			statuses[i].Annotations = append(statuses[i].Annotations, "demo_override")
			return
		}
	}
}
