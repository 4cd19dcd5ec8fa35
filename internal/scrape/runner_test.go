package scrape_test

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/garnizeh/leadscout/internal/ai"
	"github.com/garnizeh/leadscout/internal/jobs"
	"github.com/garnizeh/leadscout/internal/metrics"
	"github.com/garnizeh/leadscout/internal/models"
	"github.com/garnizeh/leadscout/internal/scrape"
	"github.com/garnizeh/leadscout/internal/testutil"
)

type fakeEnricher struct {
	calls int
	leads bool
}

func (e *fakeEnricher) Enrich(ctx context.Context, list []models.UpworkJob, leads bool) {
	e.calls++
	e.leads = leads
	for i := range list {
		list[i].Summary = "summary of " + list[i].Title
		if leads {
			list[i].LeadMessage = "hello"
		}
	}
}

func okScraper(n int) scrape.Scraper {
	return scrape.ScraperFunc(func(ctx context.Context, in scrape.Input, p scrape.Progress) ([]models.UpworkJob, error) {
		p.Debugf(ctx, "scraping for %s", in.Credentials.Username)
		out := make([]models.UpworkJob, n)
		for i := range out {
			out[i] = models.UpworkJob{Title: fmt.Sprintf("job %d", i+1)}
		}
		return out, nil
	})
}

func (f *fixture) submit(t *testing.T) *models.ScrapeJob {
	t.Helper()
	f.setCreds(t, map[string]string{"username": "alice", "password": "pw"})
	j, err := f.svc.Submit(context.Background(), nil)
	require.NoError(t, err)
	return j
}

func (f *fixture) logs(t *testing.T, id int64) []models.ScrapeLog {
	t.Helper()
	logs, err := f.svc.Logs(context.Background(), id)
	require.NoError(t, err)
	return logs
}

func TestRunner_Success(t *testing.T) {
	f := newFixture(t)
	job := f.submit(t)
	enricher := &fakeEnricher{}
	r := scrape.NewRunner(f.repo, okScraper(2), enricher, scrape.RunnerOptions{Summarize: true, GenerateLeads: true, Timeout: time.Minute}, metrics.New(), testutil.Logger())

	require.NoError(t, r.Run(context.Background(), job.ID))

	got, err := f.svc.GetJob(context.Background(), job.ID)
	require.NoError(t, err)
	assert.Equal(t, scrape.StatusCompleted, got.Status)

	results, err := f.svc.Results(context.Background(), job.ID)
	require.NoError(t, err)
	require.Len(t, results, 1)
	var records []models.UpworkJob
	require.NoError(t, json.Unmarshal(results[0].Data, &records))
	require.Len(t, records, 2)
	assert.Equal(t, "summary of job 1", records[0].Summary)
	assert.Equal(t, "hello", records[1].LeadMessage)
	assert.Equal(t, 1, enricher.calls)

	logs := f.logs(t, job.ID)
	require.GreaterOrEqual(t, len(logs), 3)
	assert.Equal(t, fmt.Sprintf("Starting scraping job %d", job.ID), logs[0].Message)
	assert.Equal(t, models.LogInfo, logs[0].Type)
	last := logs[len(logs)-1]
	assert.Equal(t, fmt.Sprintf("Scraping job %d completed with 2 results", job.ID), last.Message)
	assert.Equal(t, models.LogInfo, last.Type)
	for _, l := range logs {
		assert.NotContains(t, l.Message, "pw", "passwords never reach the job log")
	}
}

func TestRunner_PerJobSummarizerSwitch(t *testing.T) {
	f := newFixture(t)
	f.setCreds(t, map[string]string{"username": "alice", "password": "pw", "summarize": "False"})
	job, err := f.svc.Submit(context.Background(), nil)
	require.NoError(t, err)

	enricher := &fakeEnricher{}
	r := scrape.NewRunner(f.repo, okScraper(1), enricher, scrape.RunnerOptions{Summarize: true}, nil, testutil.Logger())
	require.NoError(t, r.Run(context.Background(), job.ID))
	assert.Zero(t, enricher.calls)
}

func TestRunner_ScraperFailure(t *testing.T) {
	f := newFixture(t)
	job := f.submit(t)
	boom := errors.New("captcha wall")
	r := scrape.NewRunner(f.repo, scrape.ScraperFunc(func(context.Context, scrape.Input, scrape.Progress) ([]models.UpworkJob, error) {
		return nil, boom
	}), nil, scrape.RunnerOptions{}, metrics.New(), testutil.Logger())

	err := r.Run(context.Background(), job.ID)
	assert.ErrorIs(t, err, boom)

	got, err := f.svc.GetJob(context.Background(), job.ID)
	require.NoError(t, err)
	assert.Equal(t, scrape.StatusFailed, got.Status)

	results, err := f.svc.Results(context.Background(), job.ID)
	require.NoError(t, err)
	assert.Empty(t, results)

	var errorLogs []string
	for _, l := range f.logs(t, job.ID) {
		if l.Type == models.LogError {
			errorLogs = append(errorLogs, l.Message)
		}
	}
	require.Len(t, errorLogs, 1)
	assert.Equal(t, fmt.Sprintf("Scraping job %d failed: captcha wall", job.ID), errorLogs[0])
}

func TestRunner_DisabledDriverAndTimeout(t *testing.T) {
	f := newFixture(t)
	job := f.submit(t)
	r := scrape.NewRunner(f.repo, scrape.NoopScraper{}, nil, scrape.RunnerOptions{}, nil, testutil.Logger())
	assert.ErrorIs(t, r.Run(context.Background(), job.ID), scrape.ErrScraperDisabled)

	job2, err := f.svc.Submit(context.Background(), nil)
	require.NoError(t, err)
	slow := scrape.ScraperFunc(func(ctx context.Context, _ scrape.Input, _ scrape.Progress) ([]models.UpworkJob, error) {
		<-ctx.Done()
		return nil, ctx.Err()
	})
	r = scrape.NewRunner(f.repo, slow, nil, scrape.RunnerOptions{Timeout: 20 * time.Millisecond}, nil, testutil.Logger())
	assert.ErrorIs(t, r.Run(context.Background(), job2.ID), context.DeadlineExceeded)

	got, err := f.svc.GetJob(context.Background(), job2.ID)
	require.NoError(t, err)
	assert.Equal(t, scrape.StatusFailed, got.Status, "timeouts still record the failure")
}

func TestRunner_IdempotentRedelivery(t *testing.T) {
	f := newFixture(t)
	job := f.submit(t)
	calls := 0
	scraper := scrape.ScraperFunc(func(context.Context, scrape.Input, scrape.Progress) ([]models.UpworkJob, error) {
		calls++
		return nil, nil
	})
	r := scrape.NewRunner(f.repo, scraper, nil, scrape.RunnerOptions{}, nil, testutil.Logger())

	require.NoError(t, r.Run(context.Background(), job.ID))
	require.NoError(t, r.Run(context.Background(), job.ID))
	assert.Equal(t, 1, calls)

	results, err := f.svc.Results(context.Background(), job.ID)
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.JSONEq(t, `[]`, string(results[0].Data))

	assert.NoError(t, r.Run(context.Background(), 424242), "missing jobs are acknowledged")
}

func TestRunner_HandlePayload(t *testing.T) {
	f := newFixture(t)
	r := scrape.NewRunner(f.repo, okScraper(0), nil, scrape.RunnerOptions{}, nil, testutil.Logger())

	assert.Error(t, r.Handle(context.Background(), &models.BackgroundJob{Payload: json.RawMessage(`nope`)}))
	assert.Error(t, r.Handle(context.Background(), &models.BackgroundJob{Payload: json.RawMessage(`{}`)}))

	job := f.submit(t)
	payload, _ := json.Marshal(scrape.TaskPayload{JobID: job.ID})
	require.NoError(t, r.Handle(context.Background(), &models.BackgroundJob{Type: scrape.TaskRun, Payload: payload}))
	got, err := f.svc.GetJob(context.Background(), job.ID)
	require.NoError(t, err)
	assert.Equal(t, scrape.StatusCompleted, got.Status)
}

func TestRunner_ThroughWorkerPool(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	f := newFixture(t)
	fail := errors.New("login rejected")
	var scraper scrape.ScraperFunc = func(_ context.Context, in scrape.Input, _ scrape.Progress) ([]models.UpworkJob, error) {
		if in.Search.Category == "fail" {
			return nil, fail
		}
		return []models.UpworkJob{{Title: "t"}}, nil
	}
	r := scrape.NewRunner(f.repo, scraper, nil, scrape.RunnerOptions{}, nil, testutil.Logger())
	pool := jobs.NewWorkerPool(f.repo, map[string]jobs.Handler{scrape.TaskRun: r.Handle}, testutil.Logger(), 2, jobs.WithPollInterval(time.Hour))
	svc := scrape.NewService(f.repo, f.repo, mustLoader(t, f), jobs.NewLocalNotifier(pool), nil, testutil.Logger())
	pool.Start(ctx)
	defer pool.Stop()

	f.setCreds(t, map[string]string{"username": "a", "password": "b"})
	good, err := svc.Submit(ctx, nil)
	require.NoError(t, err)
	waitStatus(t, svc, good.ID, scrape.StatusCompleted)

	f.setCreds(t, map[string]string{"category": "fail"})
	bad, err := svc.Submit(ctx, nil)
	require.NoError(t, err)
	waitStatus(t, svc, bad.ID, scrape.StatusFailed)

	require.Eventually(t, func() bool {
		var n int
		_ = f.db.QueryRow(ctx, `SELECT COUNT(1) FROM dead_letter_jobs WHERE type = ? AND last_error LIKE ?`, scrape.TaskRun, "%login rejected%").Scan(&n)
		return n == 1
	}, 5*time.Second, 10*time.Millisecond, "failed task lands in the dead letter table after one attempt")
}

func waitStatus(t *testing.T, svc *scrape.Service, id int64, want string) {
	t.Helper()
	require.Eventually(t, func() bool {
		j, err := svc.GetJob(context.Background(), id)
		return err == nil && j.Status == want
	}, 5*time.Second, 10*time.Millisecond, "job %d never reached %s", id, want)
}

func mustLoader(t *testing.T, f *fixture) scrape.SchemaValidator {
	t.Helper()
	l, err := ai.NewLoader(context.Background(), f.repo)
	require.NoError(t, err)
	return l
}
