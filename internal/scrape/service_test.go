package scrape_test

import (
	"context"
	"encoding/json"
	"errors"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/garnizeh/leadscout/internal/ai"
	"github.com/garnizeh/leadscout/internal/apperr"
	"github.com/garnizeh/leadscout/internal/db"
	"github.com/garnizeh/leadscout/internal/metrics"
	"github.com/garnizeh/leadscout/internal/repository/sqlite"
	"github.com/garnizeh/leadscout/internal/scrape"
	"github.com/garnizeh/leadscout/internal/testutil"
)

type countingNotifier struct {
	n   atomic.Int32
	err error
}

func (c *countingNotifier) Notify(context.Context) error {
	c.n.Add(1)
	return c.err
}

type fixture struct {
	db       *db.DB
	repo     *sqlite.SQLiteRepo
	svc      *scrape.Service
	notifier *countingNotifier
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	d := testutil.NewDB(t)
	repo := sqlite.New(d, testutil.Logger())
	loader, err := ai.NewLoader(context.Background(), repo)
	require.NoError(t, err)
	n := &countingNotifier{}
	return &fixture{
		db:       d,
		repo:     repo,
		svc:      scrape.NewService(repo, repo, loader, n, metrics.New(), testutil.Logger()),
		notifier: n,
	}
}

func (f *fixture) setCreds(t *testing.T, kv map[string]string) {
	t.Helper()
	for k, v := range kv {
		v := v
		_, _, err := f.svc.UpsertCredential(context.Background(), k, &v)
		require.NoError(t, err)
	}
}

func (f *fixture) queued(t *testing.T) int {
	t.Helper()
	var n int
	require.NoError(t, f.db.QueryRow(context.Background(), `SELECT COUNT(1) FROM jobs WHERE type = ?`, scrape.TaskRun).Scan(&n))
	return n
}

func strPtr(s string) *string { return &s }

func TestCredentials(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, _, err := f.svc.UpsertCredential(ctx, "", strPtr("x"))
	assert.ErrorIs(t, err, apperr.ErrBadRequest)
	_, _, err = f.svc.UpsertCredential(ctx, "username", nil)
	assert.ErrorIs(t, err, apperr.ErrBadRequest)
	assert.Equal(t, "Key and value are required.", apperr.Message(err))

	c, created, err := f.svc.UpsertCredential(ctx, "username", strPtr("alice"))
	require.NoError(t, err)
	assert.True(t, created)
	assert.Equal(t, "alice", c.Value)

	c, created, err = f.svc.UpsertCredential(ctx, "username", strPtr(""))
	require.NoError(t, err)
	assert.False(t, created, "empty value is a valid update")
	assert.Equal(t, "", c.Value)

	list, err := f.svc.ListCredentials(ctx)
	require.NoError(t, err)
	assert.Len(t, list, 1)

	assert.ErrorIs(t, f.svc.DeleteCredential(ctx, ""), apperr.ErrBadRequest)
	assert.ErrorIs(t, f.svc.DeleteCredential(ctx, "missing"), apperr.ErrNotFound)
	require.NoError(t, f.svc.DeleteCredential(ctx, "username"))
	assert.ErrorIs(t, f.svc.DeleteCredential(ctx, "username"), apperr.ErrNotFound)
}

func TestSubmit_RequiresCredentials(t *testing.T) {
	f := newFixture(t)
	f.setCreds(t, map[string]string{"username": "alice", "query": "golang"})

	_, err := f.svc.Submit(context.Background(), nil)
	assert.ErrorIs(t, err, apperr.ErrBadRequest)
	assert.Equal(t, "Upwork credentials are not set.", apperr.Message(err))

	jobs, err := f.svc.ListJobs(context.Background(), "all")
	require.NoError(t, err)
	assert.Empty(t, jobs)
	assert.Zero(t, f.queued(t))
	assert.Zero(t, f.notifier.n.Load())
}

func TestSubmit_BuildsTypedInput(t *testing.T) {
	f := newFixture(t)
	f.setCreds(t, map[string]string{
		"username": "alice",
		"password": "12345",
		"query":    "golang",
		"max_jobs": "20",
		"hourly":   "True",
		"skills":   "['go', 'sql']",
	})

	job, err := f.svc.Submit(context.Background(), map[string]any{"note": "42", "search": "ignored"})
	require.NoError(t, err)
	assert.Equal(t, scrape.StatusPending, job.Status)
	assert.NotZero(t, job.ID)

	var doc map[string]any
	require.NoError(t, json.Unmarshal(job.Input, &doc))
	assert.Equal(t, map[string]any{"username": "alice", "password": "12345"}, doc["credentials"], "secrets are never coerced")
	assert.EqualValues(t, 42, doc["note"])
	search := doc["search"].(map[string]any)
	assert.EqualValues(t, 20, search["max_jobs"])
	assert.Equal(t, true, search["hourly"])
	assert.Equal(t, []any{"go", "sql"}, search["skills"])

	in, err := scrape.ParseInput(job.Input)
	require.NoError(t, err)
	assert.Equal(t, "alice", in.Credentials.Username)
	assert.Equal(t, scrape.FlexString("golang"), in.Search.Query)
	assert.Equal(t, 20, in.Search.Limit(50))

	assert.Equal(t, 1, f.queued(t))
	assert.EqualValues(t, 1, f.notifier.n.Load())

	task, err := f.repo.FetchNext(context.Background())
	require.NoError(t, err)
	require.NotNil(t, task)
	assert.Equal(t, 1, task.MaxAttempts)
	var p scrape.TaskPayload
	require.NoError(t, json.Unmarshal(task.Payload, &p))
	assert.Equal(t, job.ID, p.JobID)
}

func TestSubmit_NumericSearchTerms(t *testing.T) {
	f := newFixture(t)
	f.setCreds(t, map[string]string{
		"username": "alice",
		"password": "pw",
		"query":    "12345678901234567891",
		"category": "531770282580668418",
	})

	job, err := f.svc.Submit(context.Background(), nil)
	require.NoError(t, err)
	assert.Contains(t, string(job.Input), `"query":12345678901234567891`)
	assert.Contains(t, string(job.Input), `"category":531770282580668418`)

	in, err := scrape.ParseInput(job.Input)
	require.NoError(t, err)
	assert.Equal(t, scrape.FlexString("12345678901234567891"), in.Search.Query)
	assert.Equal(t, scrape.FlexString("531770282580668418"), in.Search.Category)
	assert.Equal(t, 1, f.queued(t))
}

func TestSubmit_NotifyFailureKeepsJob(t *testing.T) {
	f := newFixture(t)
	f.notifier.err = errors.New("redis down")
	f.setCreds(t, map[string]string{"username": "a", "password": "b"})

	job, err := f.svc.Submit(context.Background(), nil)
	require.NoError(t, err)
	assert.NotZero(t, job.ID)
	assert.Equal(t, 1, f.queued(t))
}

func TestSubmit_SchemaViolation(t *testing.T) {
	f := newFixture(t)
	f.setCreds(t, map[string]string{"username": "a", "password": "b", "per_page": "5"})

	_, err := f.svc.Submit(context.Background(), nil)
	assert.ErrorIs(t, err, apperr.ErrValidation)
	assert.Contains(t, apperr.FieldsOf(err), "jsonInput")

	jobs, err := f.svc.ListJobs(context.Background(), "")
	require.NoError(t, err)
	assert.Empty(t, jobs)
	assert.Zero(t, f.queued(t))
}

func TestListJobs(t *testing.T) {
	f := newFixture(t)
	f.setCreds(t, map[string]string{"username": "a", "password": "b"})
	ctx := context.Background()

	var ids []int64
	for i := 0; i < 3; i++ {
		j, err := f.svc.Submit(ctx, nil)
		require.NoError(t, err)
		ids = append(ids, j.ID)
	}
	ok, err := f.repo.TransitionScrapeJob(ctx, ids[0], scrape.StatusFailed, scrape.StatusPending)
	require.NoError(t, err)
	require.True(t, ok)
	ok, err = f.repo.TransitionScrapeJob(ctx, ids[2], scrape.StatusFailed, scrape.StatusPending)
	require.NoError(t, err)
	require.True(t, ok)

	failed, err := f.svc.ListJobs(ctx, scrape.StatusFailed)
	require.NoError(t, err)
	require.Len(t, failed, 2)
	assert.Equal(t, ids[2], failed[0].ID, "newest first")
	assert.Equal(t, ids[0], failed[1].ID)

	all, err := f.svc.ListJobs(ctx, "all")
	require.NoError(t, err)
	assert.Len(t, all, 3)

	_, err = f.svc.ListJobs(ctx, "archived")
	assert.ErrorIs(t, err, apperr.ErrValidation)

	_, err = f.svc.GetJob(ctx, 999)
	assert.ErrorIs(t, err, apperr.ErrNotFound)

	res, err := f.svc.Results(ctx, 999)
	require.NoError(t, err)
	assert.Empty(t, res)
}

func TestRedact(t *testing.T) {
	out := scrape.Redact(json.RawMessage(`{"credentials":{"username":"a","password":"secret"},"search":{}}`))
	assert.NotContains(t, string(out), "secret")
	assert.Contains(t, string(out), `"username":"a"`)

	out = scrape.Redact(json.RawMessage(`{"credentials":{"password":"x"},"search":{"category":531770282580668418,"max_jobs":20}}`))
	assert.Contains(t, string(out), `"category":531770282580668418`)
	assert.Contains(t, string(out), `"max_jobs":20`)

	raw := json.RawMessage(`not json`)
	assert.Equal(t, raw, scrape.Redact(raw))
}
