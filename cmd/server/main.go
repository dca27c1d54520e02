// Package main is the entry point for the formgate server.
//
// The main package is kept minimal. Its job is to:
// 1. Read configuration from the environment
// 2. Create process-wide dependencies (logger, tracing)
// 3. Start the application
//
// All actual logic lives in internal/server and the packages it wires.
package main

import (
	"context"
	"log/slog"
	"os"
	"time"

	"github.com/sakif/formgate/internal/config"
	"github.com/sakif/formgate/internal/server"
	"github.com/sakif/formgate/internal/telemetry"
)

func main() {
	// === 1. READ CONFIGURATION ===
	// Every setting comes from an environment variable; see internal/config
	// for the names and defaults. Invalid values stop the process here.
	cfg, err := config.Load()
	if err != nil {
		slog.Error("invalid configuration", slog.String("error", err.Error()))
		os.Exit(1)
	}

	// === 2. SET UP LOGGING ===
	// LOG_LEVEL accepts debug, info, warn or error.
	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{
		Level: cfg.LogLevel,
	}))
	slog.SetDefault(logger)

	// === 3. TRACING ===
	// With OTEL_ENDPOINT unset this installs nothing and the shutdown is a no-op.
	shutdownTracing, err := telemetry.Setup(context.Background(), "formgate", cfg.OTelEndpoint)
	if err != nil {
		logger.Error("failed to set up tracing", slog.String("error", err.Error()))
		os.Exit(1)
	}
	defer func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := shutdownTracing(ctx); err != nil {
			logger.Warn("tracing shutdown failed", slog.String("error", err.Error()))
		}
	}()

	// === 4. CREATE AND START THE SERVER ===
	srv, err := server.New(cfg, logger)
	if err != nil {
		logger.Error("failed to create server", slog.String("error", err.Error()))
		os.Exit(1)
	}

	// Start() blocks until the server is shut down (via Ctrl+C or SIGTERM)
	if err := srv.Start(); err != nil {
		logger.Error("server error", slog.String("error", err.Error()))
		os.Exit(1)
	}
}
