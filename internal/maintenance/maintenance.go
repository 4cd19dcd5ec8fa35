// Package maintenance runs periodic housekeeping on the store.
package maintenance

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/robfig/cron/v3"
)

// Store is the subset of the repository the sweeps touch.
type Store interface {
	PurgeExpiredRegistrations(ctx context.Context, before time.Time) (int64, error)
	PurgeFinishedJobs(ctx context.Context, before time.Time) (int64, error)
	RequeueStale(ctx context.Context, before time.Time) (int64, error)
}

type Options struct {
	// Schedule is a robfig/cron spec such as "@every 1h".
	Schedule string
	// PendingRetention keeps expired signups around this long before deletion.
	PendingRetention time.Duration
	// JobRetention applies to finished queue rows and dead letters.
	JobRetention time.Duration
	// StaleAfter requeues running tasks not updated for this long; zero disables it.
	StaleAfter time.Duration
}

// Report counts rows touched by one sweep.
type Report struct {
	Registrations int64
	Jobs          int64
	Requeued      int64
}

type Scheduler struct {
	store  Store
	opts   Options
	cron   *cron.Cron
	logger *slog.Logger
	now    func() time.Time
}

func New(store Store, opts Options, logger *slog.Logger) *Scheduler {
	if logger == nil {
		logger = slog.Default()
	}
	if opts.Schedule == "" {
		opts.Schedule = "@every 1h"
	}
	return &Scheduler{
		store:  store,
		opts:   opts,
		cron:   cron.New(cron.WithLogger(cronLogger{logger}), cron.WithChain(cron.SkipIfStillRunning(cronLogger{logger}))),
		logger: logger,
		now:    time.Now,
	}
}

// Start registers the sweep and starts the scheduler. The sweep uses ctx,
// so cancelling it aborts an in-flight run.
func (s *Scheduler) Start(ctx context.Context) error {
	if _, err := s.cron.AddFunc(s.opts.Schedule, func() {
		if _, err := s.Sweep(ctx); err != nil {
			s.logger.Error("maintenance: sweep failed", slog.Any("err", err))
		}
	}); err != nil {
		return fmt.Errorf("maintenance schedule %q: %w", s.opts.Schedule, err)
	}
	s.cron.Start()
	s.logger.Info("maintenance: scheduler started", slog.String("schedule", s.opts.Schedule))
	return nil
}

// Stop waits for a running sweep to return.
func (s *Scheduler) Stop() {
	<-s.cron.Stop().Done()
	s.logger.Info("maintenance: scheduler stopped")
}

// Sweep runs every housekeeping step once. A failing step does not stop the
// others; their errors are joined.
func (s *Scheduler) Sweep(ctx context.Context) (Report, error) {
	var (
		rep  Report
		errs []error
		now  = s.now()
		err  error
	)

	if rep.Registrations, err = s.store.PurgeExpiredRegistrations(ctx, now.Add(-s.opts.PendingRetention)); err != nil {
		errs = append(errs, err)
	}
	if rep.Jobs, err = s.store.PurgeFinishedJobs(ctx, now.Add(-s.opts.JobRetention)); err != nil {
		errs = append(errs, err)
	}
	if s.opts.StaleAfter > 0 {
		if rep.Requeued, err = s.store.RequeueStale(ctx, now.Add(-s.opts.StaleAfter)); err != nil {
			errs = append(errs, err)
		}
	}

	if rep != (Report{}) {
		s.logger.Info("maintenance: sweep done",
			slog.Int64("registrations", rep.Registrations),
			slog.Int64("jobs", rep.Jobs),
			slog.Int64("requeued", rep.Requeued))
	}
	return rep, errors.Join(errs...)
}

// cronLogger adapts slog to cron.Logger.
type cronLogger struct{ l *slog.Logger }

func (c cronLogger) Info(msg string, keysAndValues ...any) {
	c.l.Debug("cron: "+msg, keysAndValues...)
}

func (c cronLogger) Error(err error, msg string, keysAndValues ...any) {
	c.l.Error("cron: "+msg, append(keysAndValues, "err", err)...)
}
