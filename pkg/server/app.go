package server

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"MT5Pull/internal/delta"
	"MT5Pull/internal/domain/models"
	"MT5Pull/internal/domain/repository"
	"MT5Pull/internal/session"
	"MT5Pull/internal/usecase"
	"MT5Pull/pkg/cache"
	"MT5Pull/pkg/config"
	xhttp "MT5Pull/pkg/http"
	applogger "MT5Pull/pkg/logger"
)

// App encapsulates the entire application lifecycle.
type App struct {
	cfg       *config.Config
	logger    *applogger.Logger
	handler   xhttp.Handler
	sessions  *session.Manager
	estimator *delta.Estimator
	refresher *delta.Refresher
	frontend  *usecase.Frontend
	cache     cache.Service
	archiver  repository.Archiver

	httpServer *xhttp.Server
}

// New creates a new App instance with all dependencies.
func New(
	cfg *config.Config,
	logger *applogger.Logger,
	handler xhttp.Handler,
	sessions *session.Manager,
	estimator *delta.Estimator,
	refresher *delta.Refresher,
	frontend *usecase.Frontend,
	cacheSvc cache.Service,
	archiver repository.Archiver,
) *App {
	return &App{
		cfg:       cfg,
		logger:    logger,
		handler:   handler,
		sessions:  sessions,
		estimator: estimator,
		refresher: refresher,
		frontend:  frontend,
		cache:     cacheSvc,
		archiver:  archiver,
	}
}

// Frontend returns the in-process call surface, for embedding hosts.
func (a *App) Frontend() *usecase.Frontend {
	return a.frontend
}

// Run starts the application and blocks until interrupted.
func (a *App) Run() error {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	a.bootstrap(ctx)

	// background delta re-validation; only acts while provenance is auto
	go a.refresher.Run(ctx)

	opts := []xhttp.ServerOption{
		xhttp.WithPort(a.cfg.Server.Port),
		xhttp.WithTimeouts(a.cfg.Server.ReadTimeout, a.cfg.Server.WriteTimeout, a.cfg.Server.ShutdownTimeout),
	}
	if a.cfg.Metrics.Enabled {
		opts = append(opts, xhttp.WithMetricsPath(a.cfg.Metrics.Path))
	}
	a.httpServer = xhttp.NewServer(a.handler, a.logger, opts...)

	if err := a.httpServer.Start(); err != nil {
		a.logger.Error("http server start error", applogger.Error(err))
		return err
	}

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	<-sigCh

	a.logger.Info("shutdown signal received")
	cancel()
	return a.shutdown()
}

// bootstrap applies configured overrides and optionally opens the session
// before the server accepts traffic. Failures here are logged, not fatal:
// the session can still be initialized later over HTTP.
func (a *App) bootstrap(ctx context.Context) {
	if a.cfg.Delta.Manual != "" {
		if err := a.estimator.SetManual(a.cfg.Delta.Manual); err != nil {
			a.logger.Warn("configured manual delta rejected",
				applogger.String("delta", a.cfg.Delta.Manual),
				applogger.Error(err),
			)
		}
	}

	if !a.cfg.Terminal.InitOnBoot {
		return
	}
	creds := models.Credentials{
		Path:     a.cfg.Terminal.Path,
		Login:    a.cfg.Terminal.Login,
		Password: a.cfg.Terminal.Password,
		Server:   a.cfg.Terminal.Server,
	}
	if !creds.Complete() {
		a.logger.Warn("init_on_boot set but terminal credentials incomplete")
		return
	}
	if err := a.sessions.Initialize(ctx, creds); err != nil {
		a.logger.Warn("boot session initialization failed", applogger.Error(err))
	}
}

// shutdown gracefully stops all services.
func (a *App) shutdown() error {
	shutdownCtx, cancel := context.WithTimeout(context.Background(), a.cfg.Server.ShutdownTimeout)
	defer cancel()

	if err := a.httpServer.Stop(shutdownCtx); err != nil {
		a.logger.Error("http shutdown error", applogger.Error(err))
	}

	if err := a.sessions.Close(); err != nil {
		a.logger.Warn("session close error", applogger.Error(err))
	}

	if a.archiver != nil {
		if err := a.archiver.Close(); err != nil {
			a.logger.Warn("archiver close error", applogger.Error(err))
		}
	}

	if a.cache != nil {
		if err := a.cache.Close(); err != nil {
			a.logger.Warn("cache close error", applogger.Error(err))
		}
	}

	a.logger.Info("shutdown complete")
	return nil
}
