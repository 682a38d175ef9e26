// Package app orchestrates the long running parts of pixel-warden: the HTTP API,
// the notification workers and the sweeper that recovers lost deliveries.
package app

import (
	"context"
	"log/slog"

	"github.com/sevigo/pixel-warden/internal/config"
	"github.com/sevigo/pixel-warden/internal/core"
	"github.com/sevigo/pixel-warden/internal/jobs"
	"github.com/sevigo/pixel-warden/internal/server"
)

// App holds the main application components.
type App struct {
	cfg        *config.Config
	server     *server.Server
	dispatcher core.JobDispatcher
	sweeper    *jobs.Sweeper
	logger     *slog.Logger

	stopSweeper context.CancelFunc
	sweeperDone chan struct{}
}

// NewApp assembles the application from its already constructed parts.
func NewApp(cfg *config.Config, srv *server.Server, dispatcher core.JobDispatcher, sweeper *jobs.Sweeper, logger *slog.Logger) *App {
	return &App{
		cfg:        cfg,
		server:     srv,
		dispatcher: dispatcher,
		sweeper:    sweeper,
		logger:     logger,
	}
}

// Start launches the sweeper and runs the HTTP server until it is stopped.
func (a *App) Start(ctx context.Context) error {
	a.logger.Info("starting pixel-warden",
		"server_port", a.cfg.ServerPort,
		"queue_backend", a.cfg.Queue.Backend,
		"workers", a.cfg.Queue.Workers)

	sweepCtx, cancel := context.WithCancel(ctx)
	a.stopSweeper = cancel
	a.sweeperDone = make(chan struct{})
	go func() {
		defer close(a.sweeperDone)
		a.sweeper.Run(sweepCtx)
	}()

	if err := a.server.Start(); err != nil {
		a.logger.Error("failed to start HTTP server", "error", err)
		return err
	}
	return nil
}

// Stop shuts down the application cleanly. Pending notifications stay in the
// database and are picked up by the next start.
func (a *App) Stop() error {
	a.logger.Info("shutting down pixel-warden services")

	// Stop the HTTP server first to prevent new incoming requests.
	serverErr := a.server.Stop()
	if serverErr != nil {
		a.logger.Error("error during HTTP server shutdown", "error", serverErr)
	}

	if a.stopSweeper != nil {
		a.stopSweeper()
		<-a.sweeperDone
	}

	// Let in-flight deliveries finish.
	a.dispatcher.Stop()

	if serverErr != nil {
		return serverErr
	}
	a.logger.Info("pixel-warden stopped successfully")
	return nil
}
