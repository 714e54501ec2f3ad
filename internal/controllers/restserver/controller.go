// Package restserver exposes the current snapshot to presentation-layer
// clients over HTTP.
package restserver

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"sync"
	"time"

	"github.com/gorilla/handlers"
	"github.com/gorilla/mux"
	"go.uber.org/zap"

	"github.com/curbwatch/curbwatch/internal/pipeline"
	"github.com/curbwatch/curbwatch/pkg/config"
)

// Controller represents the REST server controller
type Controller struct {
	ctx        context.Context
	wg         *sync.WaitGroup
	restConfig config.RESTServerData
	Server     http.Server
	store      *pipeline.SnapshotStore
	logger     *zap.SugaredLogger
	handlers   *Handlers
}

// NewController creates a new REST server controller
func NewController(ctx context.Context, wg *sync.WaitGroup, rc config.RESTServerData, store *pipeline.SnapshotStore, logger *zap.SugaredLogger) (*Controller, error) {
	if rc.Port == 0 {
		return nil, fmt.Errorf("rest server port must be configured")
	}

	ctrl := &Controller{
		ctx:        ctx,
		wg:         wg,
		restConfig: rc,
		store:      store,
		logger:     logger,
	}
	ctrl.handlers = NewHandlers(ctrl)

	return ctrl, nil
}

// StartController starts the HTTP server and a watcher that shuts it down on
// context cancellation.
func (c *Controller) StartController() error {
	router := mux.NewRouter()
	router.HandleFunc("/api/health", c.handlers.Health).Methods(http.MethodGet)
	router.HandleFunc("/api/status", c.handlers.Snapshot).Methods(http.MethodGet)
	router.HandleFunc("/api/status/{stop_id}", c.handlers.StopStatus).Methods(http.MethodGet)
	router.HandleFunc("/api/cameras", c.handlers.Cameras).Methods(http.MethodGet)
	router.HandleFunc("/api/snowplow", c.handlers.PlowPasses).Methods(http.MethodGet)

	handler := handlers.CORS(
		handlers.AllowedOrigins([]string{"*"}),
		handlers.AllowedMethods([]string{http.MethodGet}),
	)(handlers.CombinedLoggingHandler(os.Stdout, router))

	c.Server = http.Server{
		Addr:         fmt.Sprintf("%s:%d", c.restConfig.ListenAddr, c.restConfig.Port),
		Handler:      handler,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 30 * time.Second,
	}

	c.logger.Infof("Starting REST server on %s", c.Server.Addr)

	c.wg.Add(1)
	go func() {
		defer c.wg.Done()
		if err := c.Server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			c.logger.Errorf("REST server error: %v", err)
		}
	}()

	c.wg.Add(1)
	go func() {
		defer c.wg.Done()
		<-c.ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := c.Server.Shutdown(shutdownCtx); err != nil {
			c.logger.Errorf("REST server shutdown error: %v", err)
		}
	}()

	return nil
}
