// Package main is the entrypoint for the Watchtower monitoring server.
package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/kiranshivaraju/watchtower/internal/ai"
	"github.com/kiranshivaraju/watchtower/internal/api"
	"github.com/kiranshivaraju/watchtower/internal/api/handler"
	mw "github.com/kiranshivaraju/watchtower/internal/api/middleware"
	"github.com/kiranshivaraju/watchtower/internal/audit"
	"github.com/kiranshivaraju/watchtower/internal/cache"
	"github.com/kiranshivaraju/watchtower/internal/config"
	"github.com/kiranshivaraju/watchtower/internal/entitlement"
	"github.com/kiranshivaraju/watchtower/internal/fetch"
	"github.com/kiranshivaraju/watchtower/internal/monitor"
	"github.com/kiranshivaraju/watchtower/internal/scheduler"
	"github.com/kiranshivaraju/watchtower/internal/snapshot"
	"github.com/kiranshivaraju/watchtower/internal/store"
)

const shutdownTimeout = 30 * time.Second

var logLevel = new(slog.LevelVar)

func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: logLevel,
	}))
	slog.SetDefault(logger)

	if err := run(); err != nil {
		slog.Error("server failed", "error", err)
		os.Exit(1)
	}
}

func run() error {
	// 1. Load config, fail fast on invalid values
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	logLevel.Set(parseLogLevel(cfg.Server.LogLevel))
	slog.Info("config loaded",
		"ai_provider", cfg.AI.Provider,
		"env", cfg.Server.Env,
		"tick_interval", cfg.Monitor.TickInterval.String(),
		"workers", cfg.Monitor.Workers,
	)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// 2. Connect to database
	pool, err := store.Connect(ctx, cfg.Database)
	if err != nil {
		return fmt.Errorf("connect database: %w", err)
	}
	defer pool.Close()
	slog.Info("database connected")

	// 3. Run migrations
	if err := store.RunMigrations(cfg.Database.URL, cfg.Database.MigrationsDir); err != nil {
		return fmt.Errorf("run migrations: %w", err)
	}
	slog.Info("database migrations applied")

	// 4. Create Redis cache
	redisCache, err := cache.NewRedisCache(cfg.Redis.URL)
	if err != nil {
		return fmt.Errorf("create redis cache: %w", err)
	}
	defer redisCache.Close()

	if err := redisCache.Ping(ctx); err != nil {
		return fmt.Errorf("ping redis: %w", err)
	}
	slog.Info("redis connected")

	// 5. Create AI provider
	aiProvider, err := ai.NewProvider(ctx, cfg.AI)
	if err != nil {
		return fmt.Errorf("create AI provider: %w", err)
	}
	slog.Info("AI provider initialized", "provider", aiProvider.Name())

	// 6. Assemble the monitoring pipeline
	pgStore := store.NewPostgresStore(pool)

	catalog, err := buildCatalog(cfg.Entitlement)
	if err != nil {
		return fmt.Errorf("load entitlements: %w", err)
	}
	gate := entitlement.NewGate(pgStore, redisCache, catalog, cfg.AI.AnalysisEnabled, cfg.Entitlement.CacheTTL)
	slog.Info("entitlement catalog loaded", "plans", catalog.Len(), "analysis_enabled", cfg.AI.AnalysisEnabled)

	archiver, err := buildArchiver(ctx, cfg.Snapshot)
	if err != nil {
		return fmt.Errorf("create snapshot archiver: %w", err)
	}

	auditLog := audit.NewLogger(pgStore)
	orchestrator := monitor.NewOrchestrator(monitor.Deps{
		Store: pgStore,
		Fetcher: fetch.NewClient(fetch.Config{
			Timeout:   cfg.Monitor.FetchTimeout,
			UserAgent: cfg.Monitor.UserAgent,
		}),
		Gate:     gate,
		Analyzer: ai.NewAnalyzer(aiProvider, cfg.AI.InferenceTimeout, float32(cfg.AI.Temperature)),
		Audit:    auditLog,
		Archiver: archiver,
		Workers:  cfg.Monitor.Workers,
	})

	sched := scheduler.New(orchestrator, redisCache, scheduler.Options{
		Interval: cfg.Monitor.TickInterval,
		LockTTL:  cfg.Monitor.LockTTL,
	})
	if err := sched.Start(ctx); err != nil {
		return fmt.Errorf("start scheduler: %w", err)
	}

	// 7. Build router with dependencies
	if cfg.Monitor.CronKey == "" {
		slog.Warn("CRON_KEY is not set, /monitoring/trigger will reject every request")
	}
	searcher := ai.NewSearcher(aiProvider, auditLog, cfg.AI.InferenceTimeout)

	router := api.NewRouter(api.Dependencies{
		Auth:           mw.NewAuth(pgStore),
		RateLimit:      mw.NewRateLimit(redisCache, cfg.Server.RateLimitPerMinute),
		CronKey:        cfg.Monitor.CronKey,
		AllowedOrigins: cfg.Server.CORSAllowedOrigins,

		HealthHandler:    handler.NewHealthHandler(pgStore, redisCache),
		TriggerHandler:   handler.NewTriggerHandler(sched),
		RunHandler:       handler.NewRunHandler(sched),
		ListItemsHandler: handler.NewListItemsHandler(pgStore),
		UsageHandler:     handler.NewUsageHandler(pgStore),
		AdminRunHandler:  handler.NewAdminRunHandler(sched),
		SearchHandler:    handler.NewSearchHandler(searcher),
	})

	// 8. Start HTTP server
	addr := fmt.Sprintf(":%d", cfg.Server.Port)
	srv := &http.Server{
		Addr:        addr,
		Handler:     router,
		ReadTimeout: 15 * time.Second,
		// Trigger and run requests block for a whole cycle.
		WriteTimeout: 10 * time.Minute,
		IdleTimeout:  60 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		slog.Info("server listening", "addr", addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return fmt.Errorf("server error: %w", err)
	case <-ctx.Done():
		slog.Info("shutdown signal received, draining connections...")
	}

	// Graceful shutdown with timeout
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := sched.Stop(shutdownCtx); err != nil {
		slog.Warn("scheduler did not stop cleanly", "error", err)
	}
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server shutdown: %w", err)
	}

	slog.Info("server stopped gracefully")
	return nil
}

func parseLogLevel(s string) slog.Level {
	switch s {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// buildCatalog prefers the YAML plan file and falls back to ENTITLED_PLANS.
func buildCatalog(cfg config.EntitlementConfig) (*entitlement.Catalog, error) {
	if cfg.PlansFile != "" {
		return entitlement.LoadCatalog(cfg.PlansFile)
	}
	return entitlement.NewCatalog(cfg.Plans), nil
}

func buildArchiver(ctx context.Context, cfg config.SnapshotConfig) (snapshot.Archiver, error) {
	if !cfg.Enabled() {
		return snapshot.Noop{}, nil
	}
	a, err := snapshot.NewMinioArchiver(ctx, cfg)
	if err != nil {
		return nil, err
	}
	slog.Info("snapshot archiving enabled", "endpoint", cfg.Endpoint, "bucket", cfg.Bucket)
	return a, nil
}
