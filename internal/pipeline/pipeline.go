// Package pipeline runs the poll cycle: load directories, match cameras to
// stops, fetch and score frames concurrently, classify, and publish a
// snapshot.
package pipeline

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/semaphore"

	"github.com/curbwatch/curbwatch/internal/classify"
	"github.com/curbwatch/curbwatch/internal/directory"
	"github.com/curbwatch/curbwatch/internal/types"
	"github.com/curbwatch/curbwatch/internal/vision"
	"github.com/curbwatch/curbwatch/pkg/config"
)

// CameraDirectory lists the cameras available this cycle.
type CameraDirectory interface {
	ListCameras(ctx context.Context) ([]types.Camera, error)
}

// StopDirectory lists the transit stops in the coverage area.
type StopDirectory interface {
	ListStops(ctx context.Context) ([]types.Stop, error)
}

// PlowActivity lists recent plow passes.  Best effort.
type PlowActivity interface {
	RecentPasses(ctx context.Context, since time.Time) ([]types.PlowPass, error)
}

// FrameFetcher retrieves a single camera frame.
type FrameFetcher interface {
	Fetch(ctx context.Context, imageURL string) ([]byte, error)
}

// Pipeline owns the poll loop and the current snapshot.
type Pipeline struct {
	ctx        context.Context
	wg         *sync.WaitGroup
	cfg        *config.ConfigData
	cameras    CameraDirectory
	stops      StopDirectory
	plows      PlowActivity
	fetcher    FrameFetcher
	heuristic  *vision.Heuristic
	classifier *classify.Classifier
	store      *SnapshotStore
	logger     *zap.SugaredLogger
}

// analysis is the outcome of one camera's fetch+analyze this cycle.
type analysis struct {
	camera types.Camera
	result *vision.Result
	err    error
}

// New creates a pipeline
func New(ctx context.Context, wg *sync.WaitGroup, cfg *config.ConfigData,
	cameras CameraDirectory, stops StopDirectory, plows PlowActivity,
	fetcher FrameFetcher, logger *zap.SugaredLogger) *Pipeline {
	return &Pipeline{
		ctx:        ctx,
		wg:         wg,
		cfg:        cfg,
		cameras:    cameras,
		stops:      stops,
		plows:      plows,
		fetcher:    fetcher,
		heuristic:  vision.NewHeuristic(cfg.Vision),
		classifier: classify.NewClassifier(cfg.Classifier),
		store:      NewSnapshotStore(),
		logger:     logger,
	}
}

// Store returns the snapshot store consumers read from.
func (p *Pipeline) Store() *SnapshotStore {
	return p.store
}

// Start launches the poll loop.  The first cycle runs immediately; tickers
// only begin to fire after the interval has elapsed.
func (p *Pipeline) Start() error {
	p.logger.Infof("Starting detection pipeline: every %v, cycle timeout %v",
		p.cfg.Poll.Interval.Duration, p.cfg.Poll.CycleTimeout.Duration)

	p.wg.Add(1)
	go p.run()
	return nil
}

func (p *Pipeline) run() {
	defer p.wg.Done()

	p.runCycle()

	ticker := time.NewTicker(p.cfg.Poll.Interval.Duration)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			p.runCycle()
		case <-p.ctx.Done():
			p.logger.Info("cancellation request received, stopping detection pipeline")
			return
		}
	}
}

// runCycle executes one full poll cycle and publishes the result.  Every
// failure mode short of process death degrades the snapshot instead of
// aborting: a cycle always publishes a well-formed (possibly empty) snapshot.
func (p *Pipeline) runCycle() {
	started := time.Now()
	ctx, cancel := context.WithTimeout(p.ctx, p.cfg.Poll.CycleTimeout.Duration)
	defer cancel()

	snap := p.BuildSnapshot(ctx)
	p.store.Publish(snap)

	p.logger.Infof("cycle %s published: %d stops, %d cameras in %v",
		snap.CycleID, len(snap.Stops), len(snap.Cameras), time.Since(started).Round(time.Millisecond))
}

// BuildSnapshot assembles a complete snapshot from a single consistent
// camera+stop load.  Matching finishes before any classification starts, so
// links never mix directory snapshots.
func (p *Pipeline) BuildSnapshot(ctx context.Context) *types.Snapshot {
	now := time.Now()

	cameras, err := p.cameras.ListCameras(ctx)
	if err != nil {
		p.logger.Errorf("camera directory failed, continuing with no cameras: %v", err)
		cameras = nil
	}

	stops, err := p.stops.ListStops(ctx)
	if err != nil {
		if errors.Is(err, directory.ErrUnauthorized) {
			p.logger.Errorf("stop directory rejected the API key; fix credentials and restart: %v", err)
		} else {
			p.logger.Errorf("stop directory failed, continuing with no stops: %v", err)
		}
		stops = nil
	}

	var plows []types.PlowPass
	if p.plows != nil {
		plows, err = p.plows.RecentPasses(ctx, now.Add(-p.cfg.Classifier.PlowWindow.Duration))
		if err != nil {
			p.logger.Warnf("plow activity unavailable this cycle: %v", err)
			plows = nil
		}
	}

	links := MatchStops(cameras, stops, p.cfg.Matcher.LinkRadiusMeters)

	analyses := p.analyzeCameras(ctx, cameras, links)

	observations := groupByStop(links, analyses)

	statuses := make([]types.StopStatus, 0, len(stops))
	for _, stop := range stops {
		statuses = append(statuses, p.classifier.Classify(stop, observations[stop.ID], plows, now))
	}
	sort.Slice(statuses, func(i, j int) bool { return statuses[i].StopID < statuses[j].StopID })

	classify.ApplyDemoOverride(statuses, p.cfg.Demo)

	return &types.Snapshot{
		CycleID:     uuid.NewString(),
		GeneratedAt: now,
		Stops:       statuses,
		Cameras:     p.cameraMetadata(cameras, analyses),
		PlowPasses:  plows,
	}
}

// analyzeCameras fetches and scores every linked camera concurrently.  A
// camera with no stop in range is skipped; it can't affect any status.
// Individual failures are recorded, never propagated -- errgroup is used for
// lifecycle, not error fan-in.
func (p *Pipeline) analyzeCameras(ctx context.Context, cameras []types.Camera, links []types.CameraStopLink) map[string]*analysis {
	linked := make(map[string]bool, len(links))
	for _, link := range links {
		linked[link.CameraID] = true
	}

	analyses := make(map[string]*analysis, len(linked))
	var mu sync.Mutex

	g, gctx := errgroup.WithContext(ctx)
	sem := semaphore.NewWeighted(int64(p.cfg.Poll.MaxConcurrentFetches))

	for _, camera := range cameras {
		if !linked[camera.ID] {
			continue
		}
		camera := camera
		g.Go(func() error {
			if err := sem.Acquire(gctx, 1); err != nil {
				// Cycle deadline passed before this camera's turn; it
				// contributes nothing and its stops degrade to obscured.
				mu.Lock()
				analyses[camera.ID] = &analysis{camera: camera, err: err}
				mu.Unlock()
				return nil
			}
			defer sem.Release(1)

			a := p.analyzeCamera(gctx, camera)

			mu.Lock()
			analyses[camera.ID] = a
			mu.Unlock()
			return nil
		})
	}
	g.Wait()

	return analyses
}

func (p *Pipeline) analyzeCamera(ctx context.Context, camera types.Camera) *analysis {
	camera.LastFetch = time.Now()

	frame, err := p.fetcher.Fetch(ctx, camera.ImageURL)
	if err != nil {
		p.logger.Debugf("camera %s fetch failed: %v", camera.ID, err)
		return &analysis{camera: camera, err: err}
	}
	camera.FetchOK = true

	result, err := p.heuristic.Analyze(frame)
	if err != nil {
		p.logger.Debugf("camera %s analysis failed: %v", camera.ID, err)
		return &analysis{camera: camera, err: err}
	}

	return &analysis{camera: camera, result: result}
}

// groupByStop indexes successful observations by stop ID via the link set.
// Observations are ordered by camera ID so classification input is stable.
func groupByStop(links []types.CameraStopLink, analyses map[string]*analysis) map[string][]classify.Observation {
	observations := make(map[string][]classify.Observation)
	for _, link := range links {
		a := analyses[link.CameraID]
		if a == nil || a.err != nil || a.result == nil {
			continue
		}
		observations[link.StopID] = append(observations[link.StopID], classify.Observation{
			CameraID: link.CameraID,
			Curb:     a.result.Scores[types.RegionCurb],
			Ground:   a.result.Scores[types.RegionGround],
		})
	}
	// links are already sorted by (camera, stop), so each stop's
	// observation list is sorted by camera ID.
	return observations
}

// cameraMetadata assembles the per-camera section of the snapshot, including
// overlay rectangles for cameras whose own scores crossed a blocked
// threshold.
func (p *Pipeline) cameraMetadata(cameras []types.Camera, analyses map[string]*analysis) []types.CameraMeta {
	metas := make([]types.CameraMeta, 0, len(cameras))
	for _, camera := range cameras {
		meta := types.CameraMeta{
			ID:       camera.ID,
			Name:     camera.Name,
			Location: camera.Location,
			Status:   types.StatusObscured,
		}

		if a, ok := analyses[camera.ID]; ok {
			meta.FetchOK = a.camera.FetchOK
			meta.LastFetch = a.camera.LastFetch
			if a.result != nil {
				curb := a.result.Scores[types.RegionCurb]
				ground := a.result.Scores[types.RegionGround]
				meta.Status = p.classifier.CameraVerdict(curb, ground)
				for _, region := range p.classifier.BlockedRegions(curb, ground) {
					meta.Regions = append(meta.Regions, a.result.RegionRect(region))
				}
			}
		}

		metas = append(metas, meta)
	}

	sort.Slice(metas, func(i, j int) bool { return metas[i].ID < metas[j].ID })
	return metas
}
