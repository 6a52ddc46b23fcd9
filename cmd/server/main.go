package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/brojonat/dustwatch/service/config"
	"github.com/brojonat/dustwatch/service/detector"
	"github.com/brojonat/dustwatch/service/lookup"
	"github.com/brojonat/dustwatch/service/metrics"
	"github.com/brojonat/dustwatch/service/server"
)

func main() {
	// Load and validate configuration from environment
	// This fails fast if any required config is missing or invalid
	cfg := config.MustLoad()

	// Setup structured logging
	logger := setupLogger(cfg.LogLevel)
	logger.Info("starting server",
		"addr", cfg.ServerAddr,
		"log_level", cfg.LogLevel,
		"app_env", cfg.AppEnv,
		"lookup_provider", cfg.LookupProvider,
	)

	// Metrics register on the default registry served at /metrics
	m := metrics.NewMetrics(nil)

	txLookup, source, err := lookup.New(cfg.LookupOptions(), m, logger)
	if err != nil {
		logger.Error("failed to initialize transaction lookup", "error", err)
		os.Exit(1)
	}

	analyzer := detector.NewAnalyzer(txLookup, source, m, logger,
		detector.WithLookupTimeout(cfg.LookupTimeout),
	)

	httpServer := server.New(cfg.ServerAddr, cfg, analyzer, m, logger)

	logger.Info("server initialized, all dependencies ready",
		"source", source,
		"lookup_timeout", cfg.LookupTimeout,
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
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}

	return slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
}
