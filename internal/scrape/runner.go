package scrape

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/garnizeh/leadscout/internal/metrics"
	"github.com/garnizeh/leadscout/internal/models"
	"github.com/garnizeh/leadscout/pkg/repository"
)

// Enricher adds summaries and lead messages to scraped postings.
type Enricher interface {
	Enrich(ctx context.Context, jobs []models.UpworkJob, leads bool)
}

type RunnerOptions struct {
	// Timeout bounds one scrape; zero means no limit beyond the caller's.
	Timeout       time.Duration
	Summarize     bool
	GenerateLeads bool
}

// Runner executes TaskRun tasks. Runs are idempotent by job id: only a
// pending job is started, and every status change is guarded on the
// expected current status.
type Runner struct {
	jobs     repository.ScrapeJobRepo
	scraper  Scraper
	enricher Enricher
	opts     RunnerOptions
	metrics  *metrics.Metrics
	logger   *slog.Logger
}

func NewRunner(jobs repository.ScrapeJobRepo, scraper Scraper, enricher Enricher, opts RunnerOptions, m *metrics.Metrics, logger *slog.Logger) *Runner {
	if logger == nil {
		logger = slog.Default()
	}
	return &Runner{jobs: jobs, scraper: scraper, enricher: enricher, opts: opts, metrics: m, logger: logger}
}

// Handle is the worker pool handler for TaskRun.
func (r *Runner) Handle(ctx context.Context, task *models.BackgroundJob) error {
	var p TaskPayload
	if err := json.Unmarshal(task.Payload, &p); err != nil {
		return fmt.Errorf("decode %s payload: %w", TaskRun, err)
	}
	if p.JobID <= 0 {
		return fmt.Errorf("%s payload without job_id", TaskRun)
	}
	return r.Run(ctx, p.JobID)
}

// Run executes scrape job id. Failures mark the job failed, append an error
// log and are returned to the caller.
func (r *Runner) Run(ctx context.Context, id int64) error {
	job, err := r.jobs.GetScrapeJob(ctx, id)
	if err != nil {
		return fmt.Errorf("load scrape job %d: %w", id, err)
	}
	if job == nil {
		r.logger.Warn("scrape: job vanished, acknowledging task", slog.Int64("job_id", id))
		return nil
	}
	if job.Status != StatusPending {
		r.logger.Info("scrape: job already started, skipping", slog.Int64("job_id", id), slog.String("status", job.Status))
		return nil
	}

	ok, err := r.jobs.TransitionScrapeJob(ctx, id, StatusInProgress, StatusPending)
	if err != nil {
		return r.fail(ctx, id, err)
	}
	if !ok {
		return nil
	}
	r.metrics.ScrapeJob(StatusInProgress)
	r.appendLog(ctx, id, models.LogInfo, fmt.Sprintf("Starting scraping job %d", id))

	results, err := r.scrape(ctx, id, job.Input)
	if err != nil {
		return r.fail(ctx, id, err)
	}

	if results == nil {
		results = []models.UpworkJob{}
	}
	payload, err := json.Marshal(results)
	if err != nil {
		return r.fail(ctx, id, fmt.Errorf("encode results: %w", err))
	}
	done, err := r.jobs.CompleteScrapeJob(ctx, id, payload)
	if err != nil {
		return r.fail(ctx, id, err)
	}
	if !done {
		return r.fail(ctx, id, fmt.Errorf("job %d left in_progress before completion", id))
	}

	r.metrics.ScrapeJob(StatusCompleted)
	r.appendLog(ctx, id, models.LogInfo, fmt.Sprintf("Scraping job %d completed with %d results", id, len(results)))
	r.logger.Info("scrape: job completed", slog.Int64("job_id", id), slog.Int("results", len(results)))
	return nil
}

func (r *Runner) scrape(ctx context.Context, id int64, raw json.RawMessage) ([]models.UpworkJob, error) {
	in, err := ParseInput(raw)
	if err != nil {
		return nil, err
	}

	if r.opts.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, r.opts.Timeout)
		defer cancel()
	}

	progress := &jobProgress{jobs: r.jobs, jobID: id, logger: r.logger}
	progress.Debugf(ctx, "Search settings: %s", in.Search)

	results, err := r.scraper.Scrape(ctx, in, progress)
	if err != nil {
		return nil, err
	}

	summarize, leads := in.Search.Options(r.opts.Summarize, r.opts.GenerateLeads)
	if summarize && r.enricher != nil && len(results) > 0 {
		r.enricher.Enrich(ctx, results, leads)
	}
	return results, nil
}

// fail records the failure once. Bookkeeping errors are logged and dropped
// so the original cause reaches the worker pool.
func (r *Runner) fail(ctx context.Context, id int64, cause error) error {
	ctx = context.WithoutCancel(ctx)
	r.logger.Error("scrape: job failed", slog.Int64("job_id", id), slog.Any("err", cause))

	if _, err := r.jobs.TransitionScrapeJob(ctx, id, StatusFailed, StatusPending, StatusInProgress); err != nil {
		r.logger.Error("scrape: mark job failed", slog.Int64("job_id", id), slog.Any("err", err))
	}
	r.appendLog(ctx, id, models.LogError, fmt.Sprintf("Scraping job %d failed: %v", id, cause))
	r.metrics.ScrapeJob(StatusFailed)
	return fmt.Errorf("scrape job %d: %w", id, cause)
}

func (r *Runner) appendLog(ctx context.Context, id int64, typ, msg string) {
	if _, err := r.jobs.AppendScrapeLog(ctx, &models.ScrapeLog{JobID: id, Type: typ, Message: msg}); err != nil {
		r.logger.Error("scrape: append log", slog.Int64("job_id", id), slog.Any("err", err))
	}
}

type jobProgress struct {
	jobs   repository.ScrapeJobRepo
	jobID  int64
	logger *slog.Logger
}

func (p *jobProgress) Debugf(ctx context.Context, format string, args ...any) {
	msg := fmt.Sprintf(format, args...)
	if _, err := p.jobs.AppendScrapeLog(context.WithoutCancel(ctx), &models.ScrapeLog{JobID: p.jobID, Type: models.LogDebug, Message: msg}); err != nil {
		p.logger.Warn("scrape: append debug log", slog.Int64("job_id", p.jobID), slog.Any("err", err))
	}
}
