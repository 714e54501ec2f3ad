package pipeline

import (
	"bytes"
	"context"
	"errors"
	"image"
	"image/color"
	"image/png"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/curbwatch/curbwatch/internal/imagery"
	"github.com/curbwatch/curbwatch/internal/types"
	"github.com/curbwatch/curbwatch/pkg/config"
)

type stubCameras struct {
	cameras []types.Camera
	err     error
}

func (s *stubCameras) ListCameras(ctx context.Context) ([]types.Camera, error) {
	return s.cameras, s.err
}

type stubStops struct {
	stops []types.Stop
	err   error
}

func (s *stubStops) ListStops(ctx context.Context) ([]types.Stop, error) {
	return s.stops, s.err
}

type stubPlows struct {
	passes []types.PlowPass
	err    error
}

func (s *stubPlows) RecentPasses(ctx context.Context, since time.Time) ([]types.PlowPass, error) {
	return s.passes, s.err
}

func testPipelineConfig() *config.ConfigData {
	cfg := &config.ConfigData{}
	cfg.ApplyDefaults()
	cfg.Poll.MaxConcurrentFetches = 4
	cfg.Poll.CycleTimeout = config.Duration{Duration: 30 * time.Second}
	cfg.Imagery.FetchTimeout = config.Duration{Duration: 5 * time.Second}
	return cfg
}

// solidFrame encodes a single-color PNG with an optional bottom band in a
// second color.
func solidFrame(t *testing.T, size, bottomRows int, top, bottom color.RGBA) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, size, size))
	for y := 0; y < size; y++ {
		c := top
		if y >= size-bottomRows {
			c = bottom
		}
		for x := 0; x < size; x++ {
			img.Set(x, y, c)
		}
	}
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		t.Fatalf("encoding test frame: %v", err)
	}
	return buf.Bytes()
}

func newPipeline(t *testing.T, cfg *config.ConfigData, cameras CameraDirectory, stops StopDirectory, plows PlowActivity) *Pipeline {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	var wg sync.WaitGroup
	return New(ctx, &wg, cfg, cameras, stops, plows, imagery.NewFetcher(cfg.Imagery), zap.NewNop().Sugar())
}

func TestBuildSnapshotEndToEnd(t *testing.T) {
	gray := color.RGBA{120, 120, 120, 255}
	snow := color.RGBA{240, 240, 240, 255}
	snowy := solidFrame(t, 50, 20, gray, snow) // curb band fully snow
	clear := solidFrame(t, 50, 0, gray, gray)

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/snowy.png":
			w.Write(snowy)
		case "/clear.png":
			w.Write(clear)
		case "/corrupt.png":
			w.Write([]byte("not a png"))
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	}))
	t.Cleanup(server.Close)

	cameras := &stubCameras{cameras: []types.Camera{
		{ID: "cam-snowy", Location: types.Location{Latitude: 40.60, Longitude: -74.05}, ImageURL: server.URL + "/snowy.png"},
		{ID: "cam-clear", Location: types.Location{Latitude: 40.65, Longitude: -74.00}, ImageURL: server.URL + "/clear.png"},
		{ID: "cam-corrupt", Location: types.Location{Latitude: 40.70, Longitude: -73.95}, ImageURL: server.URL + "/corrupt.png"},
		{ID: "cam-dead", Location: types.Location{Latitude: 40.75, Longitude: -73.90}, ImageURL: server.URL + "/missing.png"},
	}}
	stops := &stubStops{stops: []types.Stop{
		{ID: "S-blocked", Name: "Snowy stop", Location: types.Location{Latitude: 40.6001, Longitude: -74.0501}},
		{ID: "S-clear", Name: "Clear stop", Location: types.Location{Latitude: 40.6501, Longitude: -74.0001}},
		{ID: "S-corrupt", Name: "Corrupt feed", Location: types.Location{Latitude: 40.7001, Longitude: -73.9501}},
		{ID: "S-dead", Name: "Dead feed", Location: types.Location{Latitude: 40.7501, Longitude: -73.9001}},
		{ID: "S-uncovered", Name: "No camera nearby", Location: types.Location{Latitude: 40.80, Longitude: -73.85}},
	}}
	now := time.Now()
	plows := &stubPlows{passes: []types.PlowPass{
		{Location: types.Location{Latitude: 40.6002, Longitude: -74.0502}, PassedAt: now.Add(-1 * time.Hour)},
	}}

	p := newPipeline(t, testPipelineConfig(), cameras, stops, plows)
	snap := p.BuildSnapshot(context.Background())

	if snap.CycleID == "" {
		t.Error("snapshot missing cycle ID")
	}
	if len(snap.Stops) != 5 {
		t.Fatalf("snapshot has %d stops, want 5", len(snap.Stops))
	}
	if len(snap.Cameras) != 4 {
		t.Errorf("snapshot has %d cameras, want all 4", len(snap.Cameras))
	}
	if len(snap.PlowPasses) != 1 {
		t.Errorf("snapshot has %d plow passes, want 1", len(snap.PlowPasses))
	}

	byID := make(map[string]types.StopStatus, len(snap.Stops))
	for _, s := range snap.Stops {
		byID[s.StopID] = s
	}

	if got := byID["S-blocked"].Status; got != types.StatusBlocked {
		t.Errorf("S-blocked = %s, want blocked", got)
	}
	if byID["S-blocked"].Plow == nil {
		t.Error("S-blocked missing its plow note")
	}
	if got := byID["S-clear"].Status; got != types.StatusClear {
		t.Errorf("S-clear = %s, want clear", got)
	}
	// Undecodable and unreachable frames both degrade to obscured.
	if got := byID["S-corrupt"].Status; got != types.StatusObscured {
		t.Errorf("S-corrupt = %s, want obscured", got)
	}
	if got := byID["S-dead"].Status; got != types.StatusObscured {
		t.Errorf("S-dead = %s, want obscured", got)
	}
	if got := byID["S-uncovered"]; got.Status != types.StatusObscured || len(got.Cameras) != 0 {
		t.Errorf("S-uncovered = %+v, want obscured with no cameras", got)
	}

	camByID := make(map[string]types.CameraMeta, len(snap.Cameras))
	for _, c := range snap.Cameras {
		camByID[c.ID] = c
	}
	if meta := camByID["cam-snowy"]; !meta.FetchOK || meta.Status != types.StatusBlocked || len(meta.Regions) == 0 {
		t.Errorf("cam-snowy metadata = %+v, want blocked with overlay regions", meta)
	}
	if meta := camByID["cam-dead"]; meta.FetchOK || meta.Status != types.StatusObscured {
		t.Errorf("cam-dead metadata = %+v, want failed fetch and obscured", meta)
	}
}

func TestBuildSnapshotStalledCameraDegradesToObscured(t *testing.T) {
	gray := color.RGBA{120, 120, 120, 255}
	clear := solidFrame(t, 50, 0, gray, gray)

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/stalled.png" {
			time.Sleep(500 * time.Millisecond)
		}
		w.Write(clear)
	}))
	t.Cleanup(server.Close)

	cfg := testPipelineConfig()
	cfg.Imagery.FetchTimeout = config.Duration{Duration: 50 * time.Millisecond}

	cameras := &stubCameras{cameras: []types.Camera{
		{ID: "cam-stalled", Location: types.Location{Latitude: 40.60, Longitude: -74.05}, ImageURL: server.URL + "/stalled.png"},
		{ID: "cam-fast", Location: types.Location{Latitude: 40.65, Longitude: -74.00}, ImageURL: server.URL + "/fast.png"},
	}}
	stops := &stubStops{stops: []types.Stop{
		{ID: "S-stalled", Location: types.Location{Latitude: 40.6001, Longitude: -74.0501}},
		{ID: "S-fast", Location: types.Location{Latitude: 40.6501, Longitude: -74.0001}},
	}}

	p := newPipeline(t, cfg, cameras, stops, nil)
	snap := p.BuildSnapshot(context.Background())

	// The stalled camera contributes no score; its stop degrades instead of
	// failing the cycle, and the other camera is unaffected.
	if len(snap.Stops) != 2 {
		t.Fatalf("snapshot has %d stops, want 2", len(snap.Stops))
	}
	byID := make(map[string]types.StopStatus, len(snap.Stops))
	for _, s := range snap.Stops {
		byID[s.StopID] = s
	}
	if got := byID["S-stalled"]; got.Status != types.StatusObscured || len(got.Cameras) != 0 {
		t.Errorf("S-stalled = %+v, want obscured with no contributors", got)
	}
	if got := byID["S-fast"].Status; got != types.StatusClear {
		t.Errorf("S-fast = %s, want clear", got)
	}
}

func TestBuildSnapshotDirectoriesUnavailable(t *testing.T) {
	cameras := &stubCameras{err: errors.New("directory down")}
	stops := &stubStops{err: errors.New("directory down")}
	plows := &stubPlows{err: errors.New("open data down")}

	p := newPipeline(t, testPipelineConfig(), cameras, stops, plows)
	snap := p.BuildSnapshot(context.Background())

	if snap == nil {
		t.Fatal("failed directories must still publish a snapshot")
	}
	if len(snap.Stops) != 0 || len(snap.Cameras) != 0 || len(snap.PlowPasses) != 0 {
		t.Errorf("degraded snapshot not empty: %+v", snap)
	}
}

func TestBuildSnapshotAppliesDemoOverride(t *testing.T) {
	cfg := testPipelineConfig()
	cfg.Demo = config.DemoData{Enabled: true, StopID: "S-demo"}

	stops := &stubStops{stops: []types.Stop{
		{ID: "S-demo", Name: "Demo stop", Location: types.Location{Latitude: 40.60, Longitude: -74.05}},
	}}

	p := newPipeline(t, cfg, &stubCameras{}, stops, nil)
	snap := p.BuildSnapshot(context.Background())

	if len(snap.Stops) != 1 {
		t.Fatalf("snapshot has %d stops, want 1", len(snap.Stops))
	}
	demo := snap.Stops[0]
	if demo.Status != types.StatusBlocked {
		t.Errorf("demo stop = %s, want blocked", demo.Status)
	}
	if len(demo.Annotations) != 1 || demo.Annotations[0] != "demo_override" {
		t.Errorf("demo stop annotations = %v", demo.Annotations)
	}
}

func TestSnapshotStore(t *testing.T) {
	store := NewSnapshotStore()
	if store.Current() != nil {
		t.Error("empty store returned a snapshot")
	}

	first := &types.Snapshot{CycleID: "one"}
	store.Publish(first)
	if store.Current() != first {
		t.Error("store did not return the published snapshot")
	}

	second := &types.Snapshot{CycleID: "two"}
	store.Publish(second)
	if store.Current() != second {
		t.Error("store did not swap to the newer snapshot")
	}
}
