package server

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"AlphaRadar/internal/handler/api"
	mid "AlphaRadar/internal/middleware"
	"AlphaRadar/internal/usecase"
	"AlphaRadar/pkg/cache"
	pkgch "AlphaRadar/pkg/clickhouse"
	"AlphaRadar/pkg/config"
	xhttp "AlphaRadar/pkg/http"
	applogger "AlphaRadar/pkg/logger"
)

// Components are the long-lived parts the App starts and stops. Archiver,
// Pipeline, CHClient and Feed may be nil.
type Components struct {
	Cache     cache.Store
	History   *usecase.HistoryStore
	Scheduler *usecase.ScanScheduler
	Archiver  *usecase.ScanArchiver
	Pipeline  *mid.ArchivePipeline
	CHClient  *pkgch.Client
	Feed      *api.FeedHub
	Handler   xhttp.Handler
}

// App encapsulates the entire application lifecycle.
type App struct {
	cfg        *config.Config
	log        *applogger.Logger
	c          Components
	httpServer *xhttp.Server
	cancel     context.CancelFunc
}

// New creates a new App instance with all dependencies.
func New(cfg *config.Config, l *applogger.Logger, c Components) *App {
	if l == nil {
		l = applogger.Nop()
	}
	return &App{cfg: cfg, log: l, c: c}
}

// Run starts the application and blocks until interrupted.
func (a *App) Run() error {
	if err := a.Start(context.Background()); err != nil {
		return err
	}

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	<-sigCh

	a.log.Info("shutdown signal received")
	return a.Shutdown(context.Background())
}

// Start loads the history, prepares the archive and starts polling and
// serving. It returns once everything is running.
func (a *App) Start(ctx context.Context) error {
	if a.c.History == nil || a.c.Scheduler == nil {
		return errors.New("app: history and scheduler are required")
	}
	ctx, a.cancel = context.WithCancel(ctx)

	a.c.History.Initialize(ctx)

	if a.c.Archiver != nil {
		if err := a.c.Archiver.Init(ctx); err != nil {
			a.cancel()
			return fmt.Errorf("app: %w", err)
		}
		a.log.Info("scan archive enabled",
			applogger.String("backend", a.c.Archiver.Backend()),
			applogger.Bool("pipeline", a.c.Pipeline != nil),
		)
	}
	if a.c.Pipeline != nil {
		a.c.Pipeline.Start(ctx)
	}

	a.httpServer = xhttp.NewServer(a.c.Handler,
		xhttp.WithPort(a.cfg.Server.Port),
		xhttp.WithTimeouts(a.cfg.Server.ReadTimeout, a.cfg.Server.WriteTimeout, a.cfg.Server.ShutdownTimeout),
		xhttp.WithSlowThreshold(a.cfg.Server.SlowThreshold),
		xhttp.WithCORSOrigins(a.cfg.Server.CORSOrigins...),
		xhttp.WithMetrics(a.cfg.Metrics.Enabled, a.cfg.Metrics.Path),
		xhttp.WithLogger(a.log),
	)

	a.c.Scheduler.Start(ctx)

	if err := a.httpServer.Start(); err != nil {
		a.log.Error("http server start error", applogger.Error(err))
		return err
	}
	return nil
}

// Shutdown stops polling first so an in-flight scan is recorded and
// archived, then tears down the outer surfaces and backends.
func (a *App) Shutdown(ctx context.Context) error {
	a.log.Info("shutting down...")

	a.c.Scheduler.Stop()

	var errs []error
	if a.httpServer != nil {
		if err := a.httpServer.Stop(ctx); err != nil {
			a.log.Error("http shutdown error", applogger.Error(err))
			errs = append(errs, err)
		}
	}
	if a.c.Feed != nil {
		a.c.Feed.Close()
	}
	if a.c.Pipeline != nil {
		a.c.Pipeline.Stop()
	}
	if a.c.Archiver != nil {
		a.c.Archiver.Close()
	}
	if a.c.CHClient != nil {
		if err := a.c.CHClient.Close(); err != nil {
			a.log.Warn("clickhouse close error", applogger.Error(err))
		}
	}
	if a.c.Cache != nil {
		if err := a.c.Cache.Close(); err != nil {
			a.log.Warn("cache close error", applogger.Error(err))
		}
	}
	if a.cancel != nil {
		a.cancel()
	}

	a.log.Info("shutdown complete",
		applogger.Int("history_size", a.c.History.Len()),
		applogger.Int64("scans_total", a.c.Scheduler.ScansTotal()),
	)
	return errors.Join(errs...)
}
