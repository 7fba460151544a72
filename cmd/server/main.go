package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/brojonat/chainsync/service/adapters"
	"github.com/brojonat/chainsync/service/approvals"
	"github.com/brojonat/chainsync/service/chain"
	"github.com/brojonat/chainsync/service/config"
	"github.com/brojonat/chainsync/service/db"
	"github.com/brojonat/chainsync/service/metrics"
	natspkg "github.com/brojonat/chainsync/service/nats"
	"github.com/brojonat/chainsync/service/server"
	"github.com/brojonat/chainsync/service/signer"
	"github.com/brojonat/chainsync/service/syncer"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/joho/godotenv"
)

func main() {
	// A missing .env file is fine; the environment wins either way.
	_ = godotenv.Load()

	// Load and validate configuration from environment
	// This fails fast if any required config is missing or invalid
	cfg := config.MustLoad()

	// Setup structured logging
	logger := setupLogger(cfg.LogLevel)
	logger.Info("starting server",
		"addr", cfg.ServerAddr,
		"log_level", cfg.LogLevel,
	)

	// Setup context with cancellation for graceful shutdown
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Initialize metrics
	m := metrics.NewMetrics(nil)

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

	store := db.NewStore(dbPool, m)

	// Chain adapters
	set, err := adapters.Build(ctx, cfg.Adapters(), m, logger)
	if err != nil {
		logger.Error("failed to build chain adapters", "error", err)
		os.Exit(1)
	}
	defer set.Close()

	// NATS is optional: without it runs still execute but nothing streams.
	opts := []syncer.Option{syncer.WithMetrics(m)}
	var ssePublisher *server.SSEPublisher
	if cfg.NATSURL != "" {
		publisher, err := natspkg.NewPublisher(cfg.NATSURL, m, logger)
		if err != nil {
			logger.Error("failed to connect to NATS", "error", err)
			os.Exit(1)
		}
		defer publisher.Close()
		opts = append(opts, syncer.WithPublisher(publisher))

		ssePublisher, err = server.NewSSEPublisher(cfg.NATSURL, logger)
		if err != nil {
			logger.Error("failed to create SSE publisher", "error", err)
			os.Exit(1)
		}
	} else {
		logger.Warn("NATS_URL not set, progress streaming disabled")
	}

	orchestrator := syncer.New(store, set.Registry, logger, opts...)

	// Signer is optional; without it revocation reports a NoSignerError.
	var txSigner signer.Signer
	if cfg.SignerURL != "" {
		txSigner = signer.NewClient(cfg.SignerURL, cfg.SignerTimeout, logger)
		logger.Info("signer configured", "url", cfg.SignerURL)
	} else {
		logger.Warn("SIGNER_URL not set, approval revocation disabled")
	}
	readers := func(c chain.Chain) (approvals.AllowanceReader, error) {
		a, err := set.EVM(c)
		if err != nil {
			return nil, err
		}
		return a, nil
	}
	approvalSvc := approvals.NewService(store, readers, txSigner, m, logger)

	// Initialize HTTP server
	httpServer := server.New(cfg.ServerAddr, store, orchestrator, approvalSvc, set.Registry, ssePublisher, m, logger)

	logger.Info("server initialized, all dependencies ready",
		"chains", len(set.Registry.Chains()),
		"nats", cfg.NATSURL != "",
		"signer", cfg.SignerURL != "",
	)

	// Start HTTP server in background
	serverErrors := make(chan error, 1)
	go func() {
		serverErrors <- httpServer.Start()
	}()

	// Wait for shutdown signal or server error
	shutdown := make(chan os.Signal, 1)
	signal.Notify(shutdown, os.Interrupt, syscall.SIGTERM)

	select {
	case err := <-serverErrors:
		logger.Error("server error", "error", err)
		os.Exit(1)
	case sig := <-shutdown:
		logger.Info("shutdown signal received", "signal", sig.String())

		// Graceful shutdown with timeout
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer shutdownCancel()

		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			logger.Error("failed to shutdown server gracefully", "error", err)
			os.Exit(1)
		}

		logger.Info("server shutdown complete")
	}
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
