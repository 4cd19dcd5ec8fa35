package jobs

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/garnizeh/leadscout/internal/metrics"
	"github.com/garnizeh/leadscout/internal/models"
	"github.com/garnizeh/leadscout/pkg/repository"
)

type Option func(*WorkerPool)

// WithPollInterval sets how long an idle worker sleeps when not woken.
func WithPollInterval(d time.Duration) Option {
	return func(p *WorkerPool) {
		if d > 0 {
			p.pollInterval = d
		}
	}
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(p *WorkerPool) { p.metrics = m }
}

type WorkerPool struct {
	repo         repository.QueueRepo
	handlers     map[string]Handler
	logger       *slog.Logger
	metrics      *metrics.Metrics
	workerCount  int
	pollInterval time.Duration
	wake         chan struct{}
	stop         chan struct{}
	stopOnce     sync.Once
	wg           sync.WaitGroup
}

func NewWorkerPool(repo repository.QueueRepo, handlers map[string]Handler, logger *slog.Logger, workerCount int, opts ...Option) *WorkerPool {
	if workerCount <= 0 {
		workerCount = 4
	}
	if logger == nil {
		logger = slog.Default()
	}
	p := &WorkerPool{
		repo:         repo,
		handlers:     handlers,
		logger:       logger,
		workerCount:  workerCount,
		pollInterval: 500 * time.Millisecond,
		wake:         make(chan struct{}, workerCount),
		stop:         make(chan struct{}),
	}
	for _, o := range opts {
		o(p)
	}
	return p
}

// Start launches the worker goroutines
func (p *WorkerPool) Start(ctx context.Context) {
	for i := 0; i < p.workerCount; i++ {
		p.wg.Add(1)
		go p.worker(ctx, i)
	}
}

// Stop signals workers to stop and waits for them. In-flight handlers run
// to completion.
func (p *WorkerPool) Stop() {
	p.stopOnce.Do(func() { close(p.stop) })
	p.wg.Wait()
}

// Wake nudges one idle worker to poll immediately.
func (p *WorkerPool) Wake() {
	select {
	case p.wake <- struct{}{}:
	default:
	}
}

func (p *WorkerPool) worker(ctx context.Context, id int) {
	defer p.wg.Done()
	timer := time.NewTimer(0)
	defer timer.Stop()
	for {
		select {
		case <-p.stop:
			p.logger.Info("worker stopping", "id", id)
			return
		case <-ctx.Done():
			p.logger.Info("context canceled, worker exiting", "id", id)
			return
		case <-timer.C:
		case <-p.wake:
		}

		wait := p.pollInterval
		processed, err := p.RunOnce(ctx)
		if err != nil {
			p.logger.Error("fetch job", "err", err)
			wait = 2 * p.pollInterval
		} else if processed {
			wait = 0
		}
		if !timer.Stop() {
			select {
			case <-timer.C:
			default:
			}
		}
		timer.Reset(wait)
	}
}

// RunOnce claims and processes at most one task. It reports whether a task
// was found.
func (p *WorkerPool) RunOnce(ctx context.Context) (bool, error) {
	job, err := p.repo.FetchNext(ctx)
	if err != nil {
		return false, err
	}
	if job == nil {
		return false, nil
	}

	h, ok := p.handlers[job.Type]
	if !ok {
		job.Status = StatusFailed
		job.LastError = "no handler"
		p.metrics.QueueTask(job.Type, "unhandled")
		if err := p.repo.MoveToDeadLetter(ctx, job); err != nil {
			p.logger.Error("move to dead letter", "job_id", job.ID, "err", err)
		}
		return true, nil
	}

	err = p.invoke(ctx, h, job)
	if err == nil {
		job.Status = StatusDone
		job.LastError = ""
		p.metrics.QueueTask(job.Type, "done")
		if upErr := p.repo.UpdateJob(ctx, job); upErr != nil {
			p.logger.Error("mark job done", "job_id", job.ID, "err", upErr)
		}
		return true, nil
	}

	job.Attempts++
	job.LastError = err.Error()
	if job.Attempts >= job.MaxAttempts {
		job.Status = StatusFailed
		p.metrics.QueueTask(job.Type, "failed")
		p.logger.Warn("job failed permanently", "job_id", job.ID, "type", job.Type, "attempts", job.Attempts, "err", err)
		if mvErr := p.repo.MoveToDeadLetter(ctx, job); mvErr != nil {
			p.logger.Error("move to dead letter", "job_id", job.ID, "err", mvErr)
		}
		return true, nil
	}

	t := time.Now().Add(BackoffDuration(job.Attempts))
	job.NextTryAt = &t
	job.Status = StatusRetry
	p.metrics.QueueTask(job.Type, "retry")
	if upErr := p.repo.UpdateJob(ctx, job); upErr != nil {
		p.logger.Error("update job for retry", "job_id", job.ID, "err", upErr)
	}
	return true, nil
}

func (p *WorkerPool) invoke(ctx context.Context, h Handler, job *models.BackgroundJob) (err error) {
	defer func() {
		if r := recover(); r != nil {
			p.logger.Error("job handler panic", "job_id", job.ID, "type", job.Type, "panic", r)
			err = fmt.Errorf("handler panic: %v", r)
		}
	}()
	return h(ctx, job)
}

// Enqueue convenience helper that creates a job and persists it
func (p *WorkerPool) Enqueue(ctx context.Context, typ string, payload any, priority int, maxAttempts int) (int64, error) {
	b, err := json.Marshal(payload)
	if err != nil {
		return 0, err
	}
	j := &models.BackgroundJob{Type: typ, Payload: b, Priority: priority, MaxAttempts: maxAttempts, ScheduledAt: time.Now()}
	id, err := p.repo.Enqueue(ctx, j)
	if err != nil {
		return 0, err
	}
	p.Wake()
	return id, nil
}
