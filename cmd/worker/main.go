// Command worker runs the task pool and maintenance scheduler without the
// HTTP API. Point several of them at the same database and Redis to scale
// scraping independently of the server.
package main

import (
	"context"
	"errors"
	"flag"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"

	"github.com/garnizeh/leadscout/internal/app"
	"github.com/garnizeh/leadscout/internal/config"
)

func main() {
	configPath := flag.String("config", "", "Path to config YAML file")
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
	if cfg.Redis.URL == "" {
		logger.Warn("redis not configured; workers rely on polling", "interval", cfg.Workers.PollInterval)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	a, err := app.New(ctx, cfg, logger, app.Options{Workers: true})
	if err != nil {
		log.Fatalf("Failed to initialize: %v", err)
	}
	if err := a.Start(ctx); err != nil {
		log.Fatalf("Failed to start workers: %v", err)
	}

	<-ctx.Done()
	logger.Info("stopping workers", "drain_timeout", cfg.Workers.DrainTimeout)
	drainCtx, cancel := context.WithTimeout(context.Background(), cfg.Workers.DrainTimeout)
	defer cancel()
	a.Stop(drainCtx)
	if err := a.Close(); err != nil {
		logger.Error("close resources", "err", err)
	}
	logger.Info("worker exited")
}
