// Package app assembles the services behind the server and worker binaries.
package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"sync"

	"github.com/redis/go-redis/v9"

	"github.com/garnizeh/leadscout/api"
	dbfs "github.com/garnizeh/leadscout/db"
	"github.com/garnizeh/leadscout/internal/ai"
	"github.com/garnizeh/leadscout/internal/auth"
	"github.com/garnizeh/leadscout/internal/config"
	"github.com/garnizeh/leadscout/internal/db"
	"github.com/garnizeh/leadscout/internal/jobs"
	"github.com/garnizeh/leadscout/internal/mail"
	"github.com/garnizeh/leadscout/internal/maintenance"
	"github.com/garnizeh/leadscout/internal/metrics"
	"github.com/garnizeh/leadscout/internal/projects"
	"github.com/garnizeh/leadscout/internal/repository/sqlite"
	"github.com/garnizeh/leadscout/internal/scrape"
	"github.com/garnizeh/leadscout/internal/scrape/upwork"
	"github.com/garnizeh/leadscout/internal/signup"
	"github.com/garnizeh/leadscout/pkg/llm"
)

type Options struct {
	// Workers runs the task pool and maintenance scheduler in this process.
	Workers bool
	// Scraper overrides the driver selected by cfg.Scraper.Driver.
	Scraper scrape.Scraper
	// LLM overrides the router built from cfg.LLM.
	LLM *llm.Router
}

type App struct {
	cfg    *config.Config
	logger *slog.Logger

	DB       *db.DB
	Repo     *sqlite.SQLiteRepo
	Metrics  *metrics.Metrics
	Redis    *redis.Client
	Tokens   *auth.Issuer
	LLM      *llm.Router
	AI       *ai.Service
	Signup   *signup.Service
	Projects *projects.Service
	Scrape   *scrape.Service
	Pool     *jobs.WorkerPool
	Sweeper  *maintenance.Scheduler

	limiter *api.ClientLimiter
	closers []func() error
	cancel  context.CancelFunc
	wg      sync.WaitGroup
}

// New opens the database, applies migrations and builds every service.
// On error everything opened so far is closed.
func New(ctx context.Context, cfg *config.Config, logger *slog.Logger, opts Options) (_ *App, err error) {
	if logger == nil {
		logger = slog.Default()
	}
	a := &App{cfg: cfg, logger: logger, Metrics: metrics.New()}
	defer func() {
		if err != nil {
			_ = a.Close()
		}
	}()

	if a.DB, err = db.New(ctx, cfg.DatabasePath, logger); err != nil {
		return nil, err
	}
	a.closers = append(a.closers, a.DB.Close)
	if err = db.Migrate(ctx, a.DB, dbfs.Migrations, dbfs.SeedFiles); err != nil {
		return nil, fmt.Errorf("migrate: %w", err)
	}
	a.Repo = sqlite.New(a.DB, logger)

	if cfg.Redis.URL != "" {
		ropts, perr := redis.ParseURL(cfg.Redis.URL)
		if perr != nil {
			return nil, fmt.Errorf("parse redis url: %w", perr)
		}
		a.Redis = redis.NewClient(ropts)
		a.closers = append(a.closers, a.Redis.Close)
		if err = a.Redis.Ping(ctx).Err(); err != nil {
			return nil, fmt.Errorf("ping redis: %w", err)
		}
	}

	var revoker auth.Revoker = auth.NewStoreRevoker(a.Repo)
	if a.Redis != nil {
		revoker = auth.NewRedisRevoker(a.Redis, cfg.TokenDuration)
	}
	a.Tokens = auth.NewIssuer(cfg.JWTSecret, cfg.TokenDuration, revoker)

	mailer, err := mail.New(cfg.Mail, logger)
	if err != nil {
		return nil, err
	}
	a.Signup = signup.NewService(a.Repo, a.Repo, mailer, a.Tokens, signup.Options{
		OTPExpiry: cfg.OTP.Expiry,
		OTPLength: cfg.OTP.Length,
		Metrics:   a.Metrics,
		Logger:    logger,
	})

	a.LLM = opts.LLM
	if a.LLM == nil {
		router, closeLLM, lerr := llm.FromConfig(cfg, nil, a.Metrics, logger)
		if lerr != nil {
			return nil, lerr
		}
		a.LLM = router
		a.closers = append(a.closers, closeLLM)
	}

	loader, err := ai.NewLoader(ctx, a.Repo)
	if err != nil {
		return nil, err
	}
	a.AI = ai.NewService(a.LLM, a.Repo, loader, logger)
	a.Projects = projects.NewService(a.Repo, a.AI, logger)

	if opts.Workers {
		if err = a.buildWorkers(ctx, opts); err != nil {
			return nil, err
		}
	}

	var notifiers jobs.MultiNotifier
	if a.Pool != nil {
		notifiers = append(notifiers, jobs.NewLocalNotifier(a.Pool))
	}
	if a.Redis != nil {
		notifiers = append(notifiers, jobs.NewRedisNotifier(a.Redis))
	}
	var notifier scrape.Notifier = jobs.NopNotifier{}
	if len(notifiers) > 0 {
		notifier = notifiers
	}
	a.Scrape = scrape.NewService(a.Repo, a.Repo, loader, notifier, a.Metrics, logger)

	if cfg.RateLimit.RPS > 0 {
		a.limiter = api.NewClientLimiter(cfg.RateLimit.RPS, cfg.RateLimit.Burst)
		if err = a.limiter.TrustProxies(cfg.RateLimit.TrustedProxies...); err != nil {
			return nil, fmt.Errorf("rate_limit: %w", err)
		}
	}
	return a, nil
}

func (a *App) buildWorkers(ctx context.Context, opts Options) error {
	cfg := a.cfg
	scraper := opts.Scraper
	if scraper == nil {
		switch cfg.Scraper.Driver {
		case "none":
			scraper = scrape.NoopScraper{}
		default:
			scraper = upwork.New(cfg.Scraper, a.logger)
		}
	}

	var enricher scrape.Enricher
	if cfg.Scraper.Summarize || cfg.Scraper.GenerateLeads {
		s, err := ai.NewSummarizer(ctx, a.LLM, a.Repo, cfg.Scraper.SummaryProvider, cfg.Scraper.SummaryModel, a.logger)
		if err != nil {
			return err
		}
		enricher = s
	}

	runner := scrape.NewRunner(a.Repo, scraper, enricher, scrape.RunnerOptions{
		Timeout:       cfg.Scraper.Timeout,
		Summarize:     cfg.Scraper.Summarize,
		GenerateLeads: cfg.Scraper.GenerateLeads,
	}, a.Metrics, a.logger)

	a.Pool = jobs.NewWorkerPool(a.Repo, map[string]jobs.Handler{scrape.TaskRun: runner.Handle}, a.logger, cfg.Workers.Count,
		jobs.WithPollInterval(cfg.Workers.PollInterval), jobs.WithMetrics(a.Metrics))

	a.Sweeper = maintenance.New(a.Repo, maintenance.Options{
		Schedule:         cfg.Maintenance.Schedule,
		PendingRetention: cfg.Maintenance.PendingRetention,
		JobRetention:     cfg.Maintenance.JobRetention,
		StaleAfter:       2 * cfg.Scraper.Timeout,
	}, a.logger)
	return nil
}

// Handler returns the HTTP API.
func (a *App) Handler(version, buildTime string) http.Handler {
	return api.SetupRoutes(api.Deps{
		Version:   version,
		BuildTime: buildTime,
		DB:        a.DB,
		Tokens:    a.Tokens,
		Signup:    a.Signup,
		Projects:  a.Projects,
		AI:        a.AI,
		Scrape:    a.Scrape,
		Schemas:   a.Repo,
		Templates: a.Repo,
		Metrics:   a.Metrics,
		Limiter:   a.limiter,
	})
}

// Start launches the worker pool, the Redis wake-up listener and the
// maintenance scheduler. It is a no-op when the app was built without
// workers. Cancelling ctx does not interrupt running tasks; only Stop does.
func (a *App) Start(ctx context.Context) error {
	if a.Pool == nil {
		return nil
	}
	ctx, a.cancel = context.WithCancel(context.WithoutCancel(ctx))
	if err := a.Sweeper.Start(ctx); err != nil {
		a.cancel()
		return err
	}
	a.Pool.Start(ctx)

	if a.Redis != nil {
		a.wg.Add(1)
		go func() {
			defer a.wg.Done()
			if err := jobs.Listen(ctx, a.Redis, a.Pool, a.logger); err != nil {
				a.logger.Error("jobs: wake-up listener stopped", "err", err)
			}
		}()
	}
	a.logger.Info("workers started", "count", a.cfg.Workers.Count, "schedule", a.cfg.Maintenance.Schedule)
	return nil
}

// Stop stops claiming tasks and waits for in-flight ones to finish. When ctx
// expires first the running tasks are cancelled and Stop waits for them to
// record the failure.
func (a *App) Stop(ctx context.Context) {
	if a.Pool == nil {
		return
	}
	a.Sweeper.Stop()

	drained := make(chan struct{})
	go func() {
		a.Pool.Stop()
		close(drained)
	}()
	select {
	case <-drained:
	case <-ctx.Done():
		a.logger.Warn("workers did not drain in time, cancelling running tasks", "err", ctx.Err())
		if a.cancel != nil {
			a.cancel()
		}
		<-drained
	}

	if a.cancel != nil {
		a.cancel()
	}
	a.wg.Wait()
}

// Close releases connections in reverse order of acquisition.
func (a *App) Close() error {
	var errs []error
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil {
			errs = append(errs, err)
		}
	}
	a.closers = nil
	return errors.Join(errs...)
}
