package app

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/MrSnakeDoc/jot/internal/config"
	"github.com/MrSnakeDoc/jot/internal/httpserver"
	"github.com/MrSnakeDoc/jot/internal/httpserver/deps"
	"github.com/MrSnakeDoc/jot/internal/httpserver/mw"
	"github.com/MrSnakeDoc/jot/internal/logger"
	"github.com/MrSnakeDoc/jot/internal/scheduler"
	"github.com/MrSnakeDoc/jot/internal/version"
	"github.com/MrSnakeDoc/jot/internal/workspace"
)

type App struct {
	cfg        *config.Config
	logger     logger.Logger
	server     *httpserver.Server
	backend    *Backend
	workspaces *workspace.Registry
	gc         *scheduler.GarbageCollector
}

func New() *App {
	cfg := config.Load()

	loggerClient := logger.New(cfg.LogLevel, cfg.PrettyLog)

	// Open the store early - fail fast if unavailable
	backend, err := OpenBackend(context.Background(), cfg, loggerClient)
	if err != nil {
		loggerClient.Errorf("Failed to open %s store: %v", cfg.Store, err)
		os.Exit(1)
	}
	loggerClient.Info("store initialized successfully", logger.String("store", backend.Kind))

	workspaces := workspace.NewRegistry(backend.Store, loggerClient)

	gc := scheduler.NewGarbageCollector(
		workspaces,
		backend.SessionSweeper(),
		loggerClient,
		cfg.GCInterval,
		cfg.IdleTTL,
	)

	// Dependencies passed to routes (extend as needed).
	d := deps.Deps{
		Logger:      loggerClient,
		StartTime:   time.Now(),
		Version:     version.Version,
		Commit:      version.Commit,
		BuildDate:   version.BuildDate,
		GoVersion:   version.GoVersion,
		StoreKind:   backend.Kind,
		Store:       backend.Store,
		Workspaces:  workspaces,
		Exporter:    NewExporter(cfg, loggerClient),
		MaxBodySize: cfg.MaxBodySize,
		RateLimit: mw.RateLimitConfig{
			Burst:             cfg.RateBurst,
			RefillPerIPPerMin: cfg.RateRefillPerMin,
			MaxEntries:        10000,
			TrustProxy:        cfg.TrustProxy,
		},
		AllowedHosts: cfg.AllowedHosts,
		AllowedCIDRS: cfg.AllowedCIDRS,
		TrustProxy:   cfg.TrustProxy,
	}

	server := httpserver.New(cfg, loggerClient, d)

	return &App{
		cfg:        cfg,
		logger:     loggerClient,
		server:     server,
		backend:    backend,
		workspaces: workspaces,
		gc:         gc,
	}
}

func (a *App) Run() error {
	a.logger.Infof("🚀 Starting jot v%s on %s", version.Version, a.cfg.ListenPort)
	a.logger.Infof("jot %s", version.String())

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Provider-side session expiry (Redis keyspace notifications)
	if err := a.backend.WatchSessions(ctx, a.cfg.RedisExpiryEvents); err != nil {
		return fmt.Errorf("failed to watch session expiry: %w", err)
	}

	// Start garbage collector
	if err := a.gc.Start(ctx); err != nil {
		return fmt.Errorf("failed to start garbage collector: %w", err)
	}
	a.logger.Info("garbage collector started",
		logger.Duration("interval", a.cfg.GCInterval),
		logger.Duration("idle_ttl", a.cfg.IdleTTL))

	errCh := make(chan error, 1)
	go func() {
		if err := a.server.Start(); err != nil {
			errCh <- fmt.Errorf("http server error: %w", err)
		}
	}()

	select {
	case <-ctx.Done():
		a.logger.Info("⏳ Shutting down gracefully...")
	case err := <-errCh:
		return err
	}

	// Stop garbage collector
	a.gc.Stop()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), a.cfg.ShutdownTimeout)
	defer cancel()
	if err := a.server.Stop(shutdownCtx); err != nil {
		return fmt.Errorf("failed to stop server: %w", err)
	}

	a.workspaces.Close()
	a.backend.Close()

	a.logger.Info("✅ jot stopped cleanly")
	return nil
}
