package managers

import (
	"context"
	"fmt"
	"sync"

	"go.uber.org/zap"

	"github.com/curbwatch/curbwatch/internal/controllers/restserver"
	"github.com/curbwatch/curbwatch/internal/pipeline"
	"github.com/curbwatch/curbwatch/pkg/config"
)

// ControllerManager interface for the controller manager
type ControllerManager interface {
	StartControllers() error
}

// Controller is an interface that provides standard methods for various controller backends
type Controller interface {
	StartController() error
}

type controllerManager struct {
	ctx         context.Context
	wg          *sync.WaitGroup
	cfg         *config.ConfigData
	logger      *zap.SugaredLogger
	controllers []Controller
}

// NewControllerManager creates a new controller manager
func NewControllerManager(ctx context.Context, wg *sync.WaitGroup, cfg *config.ConfigData, store *pipeline.SnapshotStore, logger *zap.SugaredLogger) (ControllerManager, error) {
	cm := &controllerManager{
		ctx:         ctx,
		wg:          wg,
		cfg:         cfg,
		logger:      logger,
		controllers: make([]Controller, 0),
	}

	rest, err := restserver.NewController(ctx, wg, cfg.REST, store, logger)
	if err != nil {
		return nil, fmt.Errorf("error creating REST controller: %v", err)
	}
	cm.controllers = append(cm.controllers, rest)

	return cm, nil
}

func (c *controllerManager) StartControllers() error {
	c.logger.Info("Starting controller manager...")

	for _, controller := range c.controllers {
		err := controller.StartController()
		if err != nil {
			return fmt.Errorf("error starting controller: %v", err)
		}
	}

	c.logger.Infof("Started %d controllers successfully", len(c.controllers))
	return nil
}
