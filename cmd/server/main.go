package main

import (
	"context"
	"errors"
	"flag"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/garnizeh/leadscout/api"
	"github.com/garnizeh/leadscout/internal/app"
	"github.com/garnizeh/leadscout/internal/config"
)

var (
	version   = "dev"
	buildTime = "unknown"
)

func main() {
	var configPath = flag.String("config", "", "Path to config YAML file")
	flag.Parse()

	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		log.Fatalf("Failed to load .env: %v", err)
	}

	cfg, err := config.LoadConfig(*configPath)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}
	if err := cfg.Validate(); err != nil {
		log.Fatalf("Invalid config: %v", err)
	}

	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))
	slog.SetDefault(logger)
	api.SetLogger(logger)

	logger.Info("starting leadscout server", "version", version, "build_time", buildTime, "embedded_workers", cfg.Workers.Embedded)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	a, err := app.New(ctx, cfg, logger, app.Options{Workers: cfg.Workers.Embedded})
	if err != nil {
		log.Fatalf("Failed to initialize: %v", err)
	}
	if err := a.Start(ctx); err != nil {
		log.Fatalf("Failed to start workers: %v", err)
	}

	server := &http.Server{
		Addr:         cfg.Addr,
		Handler:      a.Handler(version, buildTime),
		ReadTimeout:  cfg.APITimeout,
		WriteTimeout: cfg.APITimeout,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		logger.Info("server listening", "addr", cfg.Addr)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("server failed", "err", err)
			stop()
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down server")

	// Give outstanding requests 30 seconds to complete
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("server forced to shutdown", "err", err)
	}

	drainCtx, cancelDrain := context.WithTimeout(context.Background(), cfg.Workers.DrainTimeout)
	defer cancelDrain()
	a.Stop(drainCtx)
	if err := a.Close(); err != nil {
		logger.Error("close resources", "err", err)
	}

	logger.Info("server exited")
}
