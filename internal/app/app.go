// Package app wires configuration, the detection pipeline, and the REST
// controller together.
package app

import (
	"context"
	"os"
	"os/signal"
	"sync"
	"syscall"

	"go.uber.org/zap"

	"github.com/curbwatch/curbwatch/internal/directory"
	"github.com/curbwatch/curbwatch/internal/imagery"
	"github.com/curbwatch/curbwatch/internal/log"
	"github.com/curbwatch/curbwatch/internal/managers"
	"github.com/curbwatch/curbwatch/internal/pipeline"
	"github.com/curbwatch/curbwatch/pkg/config"
)

// App represents the main application
type App struct {
	cfg    *config.ConfigData
	logger *zap.SugaredLogger
}

// New creates a new application instance
func New(cfg *config.ConfigData, logger *zap.SugaredLogger) *App {
	return &App{
		cfg:    cfg,
		logger: logger,
	}
}

// Run starts the application and blocks until shutdown
func (a *App) Run(ctx context.Context) error {
	var wg sync.WaitGroup

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	cameras := directory.NewCameraClient(a.cfg.Directories.Cameras)
	stops := directory.NewStopClient(a.cfg.Directories.Stops)
	fetcher := imagery.NewFetcher(a.cfg.Imagery)

	var plows pipeline.PlowActivity
	if a.cfg.Directories.Plows.URL != "" {
		plows = directory.NewPlowClient(a.cfg.Directories.Plows)
	}

	pipe := pipeline.New(ctx, &wg, a.cfg, cameras, stops, plows, fetcher, a.logger)
	if err := pipe.Start(); err != nil {
		return err
	}

	cm, err := managers.NewControllerManager(ctx, &wg, a.cfg, pipe.Store(), a.logger)
	if err != nil {
		return err
	}
	if err := cm.StartControllers(); err != nil {
		return err
	}

	log.Info("Application started successfully")

	// Set up signal handling
	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, syscall.SIGINT, syscall.SIGTERM)

	// Wait for shutdown signal
	select {
	case <-sigs:
		log.Info("shutdown signal received, initiating graceful shutdown...")
	case <-ctx.Done():
		log.Info("context cancelled, shutting down...")
	}

	// Cancel context to signal all goroutines to stop
	cancel()

	// Wait for all workers to terminate
	log.Info("waiting for all workers to terminate...")
	wg.Wait()
	log.Info("shutdown complete")

	return nil
}
