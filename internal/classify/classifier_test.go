package classify

import (
	"reflect"
	"testing"
	"time"

	"github.com/curbwatch/curbwatch/internal/types"
	"github.com/curbwatch/curbwatch/pkg/config"
)

func testConfig() config.ClassifierData {
	return config.ClassifierData{
		CurbBlockedAbove:   0.40,
		GroundBlockedAbove: 0.50,
		ClearBelow:         0.20,
		PlowRadiusMeters:   250,
		PlowWindow:         config.Duration{Duration: 12 * time.Hour},
	}
}

func obs(cameraID string, curb, ground float64) Observation {
	return Observation{
		CameraID: cameraID,
		Curb:     types.SnowScore{Region: types.RegionCurb, Coverage: curb},
		Ground:   types.SnowScore{Region: types.RegionGround, Coverage: ground},
	}
}

func TestClassifyVerdicts(t *testing.T) {
	tests := []struct {
		name         string
		observations []Observation
		expected     types.Status
	}{
		{
			name:         "curb at threshold is not blocked",
			observations: []Observation{obs("cam1", 0.40, 0.10)},
			expected:     types.StatusObscured,
		},
		{
			name:         "curb just over threshold is blocked",
			observations: []Observation{obs("cam1", 0.41, 0.10)},
			expected:     types.StatusBlocked,
		},
		{
			name:         "ground at threshold is not blocked",
			observations: []Observation{obs("cam1", 0.10, 0.50)},
			expected:     types.StatusObscured,
		},
		{
			name:         "ground just over threshold is blocked",
			observations: []Observation{obs("cam1", 0.10, 0.51)},
			expected:     types.StatusBlocked,
		},
		{
			name:         "both regions low is clear",
			observations: []Observation{obs("cam1", 0.05, 0.15)},
			expected:     types.StatusClear,
		},
		{
			name:         "middle band is obscured",
			observations: []Observation{obs("cam1", 0.25, 0.10)},
			expected:     types.StatusObscured,
		},
		{
			name:         "worst camera wins",
			observations: []Observation{obs("cam1", 0.10, 0.05), obs("cam2", 0.55, 0.05)},
			expected:     types.StatusBlocked,
		},
		{
			name:         "no observations is obscured",
			observations: nil,
			expected:     types.StatusObscured,
		},
	}

	c := NewClassifier(testConfig())
	stop := types.Stop{ID: "S1", Name: "Bay Pkwy & Cropsey Av"}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			status := c.Classify(stop, tt.observations, nil, time.Now())
			if status.Status != tt.expected {
				t.Errorf("expected %s, got %s (curb=%.2f ground=%.2f)",
					tt.expected, status.Status, status.CurbCoverage, status.GroundCoverage)
			}
		})
	}
}

func TestClassifyAggregatesWorstCoverage(t *testing.T) {
	c := NewClassifier(testConfig())
	stop := types.Stop{ID: "S1"}

	status := c.Classify(stop, []Observation{
		obs("cam1", 0.10, 0.30),
		obs("cam2", 0.55, 0.05),
	}, nil, time.Now())

	if status.CurbCoverage != 0.55 {
		t.Errorf("curb coverage = %.2f, want the maximum 0.55", status.CurbCoverage)
	}
	if status.GroundCoverage != 0.30 {
		t.Errorf("ground coverage = %.2f, want the maximum 0.30", status.GroundCoverage)
	}
	if len(status.Cameras) != 2 {
		t.Errorf("contributing cameras = %v, want both", status.Cameras)
	}
}

func TestClassifyNoObservationsHasEmptyCameraList(t *testing.T) {
	c := NewClassifier(testConfig())
	status := c.Classify(types.Stop{ID: "S1"}, nil, nil, time.Now())

	if status.Cameras == nil || len(status.Cameras) != 0 {
		t.Errorf("cameras = %#v, want empty non-nil slice", status.Cameras)
	}
	if status.Plow != nil {
		t.Error("unobserved stop should carry no plow note")
	}
}

func TestClassifyLowLightRequiresAllCameras(t *testing.T) {
	c := NewClassifier(testConfig())
	stop := types.Stop{ID: "S1"}
	now := time.Now()

	dim := obs("cam1", 0.10, 0.10)
	dim.Curb.LowLight = true
	dim.Ground.LowLight = true
	bright := obs("cam2", 0.10, 0.10)

	if status := c.Classify(stop, []Observation{dim, bright}, nil, now); status.LowLight {
		t.Error("one daylight camera should clear the low-light flag")
	}

	dim2 := obs("cam2", 0.10, 0.10)
	dim2.Curb.LowLight = true
	dim2.Ground.LowLight = true
	if status := c.Classify(stop, []Observation{dim, dim2}, nil, now); !status.LowLight {
		t.Error("all-dim observations should set the low-light flag")
	}
}

func TestPlowActivityNeverChangesVerdict(t *testing.T) {
	c := NewClassifier(testConfig())
	now := time.Now()
	stop := types.Stop{ID: "S1", Location: types.Location{Latitude: 40.60, Longitude: -74.05}}

	nearby := []types.PlowPass{{
		Location: types.Location{Latitude: 40.6001, Longitude: -74.0501},
		PassedAt: now.Add(-1 * time.Hour),
	}}

	blocked := c.Classify(stop, []Observation{obs("cam1", 0.60, 0.10)}, nearby, now)
	if blocked.Status != types.StatusBlocked {
		t.Errorf("nearby plow pass flipped a blocked verdict to %s", blocked.Status)
	}
	if blocked.Plow == nil {
		t.Fatal("expected a plow note on the blocked stop")
	}
	if blocked.Plow.DistanceMeters > 250 {
		t.Errorf("plow note distance %.1f exceeds the corroboration radius", blocked.Plow.DistanceMeters)
	}

	clear := c.Classify(stop, []Observation{obs("cam1", 0.05, 0.05)}, nearby, now)
	if clear.Status != types.StatusClear {
		t.Errorf("nearby plow pass flipped a clear verdict to %s", clear.Status)
	}
}

func TestPlowNoteRespectsRadiusAndWindow(t *testing.T) {
	c := NewClassifier(testConfig())
	now := time.Now()
	stop := types.Stop{ID: "S1", Location: types.Location{Latitude: 40.60, Longitude: -74.05}}
	observations := []Observation{obs("cam1", 0.05, 0.05)}

	tooFar := []types.PlowPass{{
		Location: types.Location{Latitude: 40.61, Longitude: -74.05}, // ~1.1 km
		PassedAt: now.Add(-1 * time.Hour),
	}}
	if status := c.Classify(stop, observations, tooFar, now); status.Plow != nil {
		t.Error("plow pass outside the radius produced a note")
	}

	tooOld := []types.PlowPass{{
		Location: types.Location{Latitude: 40.6001, Longitude: -74.0501},
		PassedAt: now.Add(-13 * time.Hour),
	}}
	if status := c.Classify(stop, observations, tooOld, now); status.Plow != nil {
		t.Error("plow pass outside the window produced a note")
	}
}

func TestClassifyIsDeterministic(t *testing.T) {
	c := NewClassifier(testConfig())
	now := time.Now()
	stop := types.Stop{ID: "S1", Name: "86 St & 4 Av", Location: types.Location{Latitude: 40.62, Longitude: -74.03}}
	observations := []Observation{obs("cam1", 0.33, 0.12), obs("cam2", 0.18, 0.44)}
	plows := []types.PlowPass{{Location: types.Location{Latitude: 40.6201, Longitude: -74.0301}, PassedAt: now.Add(-30 * time.Minute)}}

	first := c.Classify(stop, observations, plows, now)
	second := c.Classify(stop, observations, plows, now)
	if !reflect.DeepEqual(first, second) {
		t.Errorf("classification differed across runs:\n%+v\n%+v", first, second)
	}
}

func TestApplyDemoOverride(t *testing.T) {
	statuses := []types.StopStatus{
		{StopID: "S1", Status: types.StatusClear},
		{StopID: "S2", Status: types.StatusClear},
	}

	ApplyDemoOverride(statuses, config.DemoData{Enabled: true, StopID: "S2"})

	if statuses[0].Status != types.StatusClear || len(statuses[0].Annotations) != 0 {
		t.Errorf("override touched an unrelated stop: %+v", statuses[0])
	}
	if statuses[1].Status != types.StatusBlocked {
		t.Errorf("demo stop status = %s, want blocked", statuses[1].Status)
	}
	if len(statuses[1].Annotations) != 1 || statuses[1].Annotations[0] != "demo_override" {
		t.Errorf("demo stop annotations = %v, want the override marker", statuses[1].Annotations)
	}
}

func TestApplyDemoOverrideDisabled(t *testing.T) {
	statuses := []types.StopStatus{{StopID: "S1", Status: types.StatusClear}}

	ApplyDemoOverride(statuses, config.DemoData{Enabled: false, StopID: "S1"})

	if statuses[0].Status != types.StatusClear || statuses[0].Annotations != nil {
		t.Errorf("disabled override modified the status: %+v", statuses[0])
	}
}
