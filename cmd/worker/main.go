package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/brojonat/chainsync/service/adapters"
	"github.com/brojonat/chainsync/service/config"
	"github.com/brojonat/chainsync/service/db"
	"github.com/brojonat/chainsync/service/metrics"
	natspkg "github.com/brojonat/chainsync/service/nats"
	"github.com/brojonat/chainsync/service/scheduler"
	"github.com/brojonat/chainsync/service/syncer"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

func main() {
	_ = godotenv.Load()

	// Load and validate configuration from environment
	cfg := config.MustLoad()

	// Setup structured logging
	logger := setupLogger(cfg.LogLevel)
	logger.Info("starting resync worker",
		"interval", cfg.ResyncInterval,
		"min_age", cfg.ResyncMinAge,
		"concurrency", cfg.ResyncConcurrency,
		"log_level", cfg.LogLevel,
	)

	// Setup context with cancellation for graceful shutdown
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Initialize database connection pool
	dbPool, err := pgxpool.New(ctx, cfg.DatabaseURL)
	if err != nil {
		logger.Error("failed to connect to database", "error", err)
		os.Exit(1)
	}
	defer dbPool.Close()

	// Verify database connection
	if err := dbPool.Ping(ctx); err != nil {
		logger.Error("failed to ping database", "error", err)
		os.Exit(1)
	}
	if err := db.Migrate(ctx, dbPool); err != nil {
		logger.Error("failed to apply schema", "error", err)
		os.Exit(1)
	}
	logger.Info("connected to database")

	// Initialize Prometheus metrics collector
	m := metrics.NewMetrics(nil) // nil uses default registry
	store := db.NewStore(dbPool, m)

	// Start metrics HTTP server
	metricsServer := &http.Server{
		Addr:    cfg.MetricsAddr,
		Handler: promhttp.Handler(),
	}
	go func() {
		logger.Info("starting metrics HTTP server", "addr", cfg.MetricsAddr)
		if err := metricsServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("metrics server error", "error", err)
		}
	}()
	defer func() {
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer shutdownCancel()
		if err := metricsServer.Shutdown(shutdownCtx); err != nil {
			logger.Error("failed to shutdown metrics server", "error", err)
		}
	}()

	// Chain adapters
	set, err := adapters.Build(ctx, cfg.Adapters(), m, logger)
	if err != nil {
		logger.Error("failed to build chain adapters", "error", err)
		os.Exit(1)
	}
	defer set.Close()

	opts := []syncer.Option{syncer.WithMetrics(m)}
	if cfg.NATSURL != "" {
		publisher, err := natspkg.NewPublisher(cfg.NATSURL, m, logger)
		if err != nil {
			logger.Error("failed to connect to NATS", "error", err)
			os.Exit(1)
		}
		defer publisher.Close()
		opts = append(opts, syncer.WithPublisher(publisher))
		logger.Info("connected to NATS", "url", cfg.NATSURL)
	}
	orchestrator := syncer.New(store, set.Registry, logger, opts...)

	resyncer := scheduler.New(store, orchestrator, scheduler.Config{
		Interval:    cfg.ResyncInterval,
		MinAge:      cfg.ResyncMinAge,
		Concurrency: cfg.ResyncConcurrency,
		MaxCount:    cfg.ResyncMaxCount,
		Chains:      set.Registry.Chains(),
	}, logger, scheduler.WithMetrics(m))

	if err := resyncer.Start(ctx); err != nil {
		logger.Error("failed to start resync schedule", "error", err)
		os.Exit(1)
	}
	logger.Info("resync worker initialized, all dependencies ready",
		"chains", set.Registry.Chains(),
		"nats", cfg.NATSURL != "",
	)

	// Wait for shutdown signal
	shutdown := make(chan os.Signal, 1)
	signal.Notify(shutdown, os.Interrupt, syscall.SIGTERM)
	sig := <-shutdown
	logger.Info("shutdown signal received", "signal", sig.String())

	// Stop starting new runs, then stop the schedule
	cancel()
	if err := resyncer.Shutdown(); err != nil {
		logger.Error("failed to stop resync schedule", "error", err)
	}
	logger.Info("shutdown complete")
}

// setupLogger creates a structured logger with the given log level.
func setupLogger(levelStr string) *slog.Logger {
	var level slog.Level
	switch levelStr {
	case "debug":
		level = slog.LevelDebug
	case "info":
		level = slog.LevelInfo
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}

	opts := &slog.HandlerOptions{
		Level: level,
	}

	return slog.New(slog.NewJSONHandler(os.Stderr, opts))
}
