// Package main provides the HTTP and WebSocket server for agriassist.
package main

import (
	"context"
	"flag"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/raphaelgruber/agriassist/internal/config"
	"github.com/raphaelgruber/agriassist/internal/server"
	"github.com/raphaelgruber/agriassist/internal/service"
)

// version is set at build time.
var version = "0.1.0"

func main() {
	envFile := flag.String("env-file", ".env", "dotenv file to load")
	addr := flag.String("addr", "", "listen address (overrides AGRI_SERVER_ADDR)")
	flag.Parse()

	if err := config.LoadDotEnv(*envFile); err != nil {
		slog.Error("failed to load env file", "error", err)
		os.Exit(1)
	}
	cfg := config.Load()
	if *addr != "" {
		cfg.ServerAddr = *addr
	}

	logger, closeLogger := config.SetupLogger(cfg.LogFile, cfg.LogLevel)
	defer closeLogger()
	slog.SetDefault(logger)

	logger.Info("starting agriassist-server", "version", version, "addr", cfg.ServerAddr, "backend", cfg.VectorBackend)

	// Load the index and connect providers
	initCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	rt, err := service.NewRuntime(initCtx, cfg, logger)
	cancel()
	if err != nil {
		logger.Error("failed to initialize runtime", "error", err)
		os.Exit(1)
	}
	defer func() {
		if err := rt.Close(context.Background()); err != nil {
			logger.Error("failed to close runtime", "error", err)
		}
	}()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	idle := time.Duration(cfg.SessionIdleMinutes) * time.Minute
	go rt.PruneIdleSessions(ctx, idle, time.Minute)

	if err := server.New(rt, version, logger).Run(ctx, cfg.ServerAddr); err != nil {
		logger.Error("server error", "error", err)
		os.Exit(1)
	}
	logger.Info("server stopped")
}
