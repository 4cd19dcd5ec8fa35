// Package scrape stores Upwork credentials, accepts scrape jobs and runs
// them through the background worker pool.
package scrape

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/garnizeh/leadscout/internal/ai"
	"github.com/garnizeh/leadscout/internal/apperr"
	"github.com/garnizeh/leadscout/internal/metrics"
	"github.com/garnizeh/leadscout/internal/models"
	"github.com/garnizeh/leadscout/pkg/repository"
)

const (
	// TaskRun is the queue task type executing one scrape job.
	TaskRun = "scrape.run"

	inputSchema        = "scrape_input"
	inputSchemaVersion = "v1"
)

// TaskPayload is the queue payload of TaskRun.
type TaskPayload struct {
	JobID int64 `json:"job_id"`
}

// SchemaValidator is satisfied by *ai.Loader.
type SchemaValidator interface {
	Validate(ctx context.Context, name, version string, doc []byte) error
}

// Notifier wakes the worker pool after a task is committed.
type Notifier interface {
	Notify(ctx context.Context) error
}

type Service struct {
	creds    repository.CredentialRepo
	jobs     repository.ScrapeJobRepo
	schemas  SchemaValidator
	notifier Notifier
	metrics  *metrics.Metrics
	logger   *slog.Logger
}

func NewService(creds repository.CredentialRepo, jobs repository.ScrapeJobRepo, schemas SchemaValidator, notifier Notifier, m *metrics.Metrics, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{creds: creds, jobs: jobs, schemas: schemas, notifier: notifier, metrics: m, logger: logger}
}

func (s *Service) ListCredentials(ctx context.Context) ([]models.Credential, error) {
	out, err := s.creds.ListCredentials(ctx)
	if err != nil {
		return nil, fmt.Errorf("list credentials: %w", err)
	}
	return out, nil
}

// UpsertCredential stores key=value and reports whether the key is new.
// A nil value is rejected like a missing key.
func (s *Service) UpsertCredential(ctx context.Context, key string, value *string) (*models.Credential, bool, error) {
	if key == "" || value == nil {
		return nil, false, apperr.New(apperr.ErrBadRequest, "Key and value are required.")
	}
	c, created, err := s.creds.UpsertCredential(ctx, key, *value)
	if err != nil {
		return nil, false, fmt.Errorf("upsert credential: %w", err)
	}
	return c, created, nil
}

func (s *Service) DeleteCredential(ctx context.Context, key string) error {
	if key == "" {
		return apperr.New(apperr.ErrBadRequest, "Key is required.")
	}
	ok, err := s.creds.DeleteCredential(ctx, key)
	if err != nil {
		return fmt.Errorf("delete credential: %w", err)
	}
	if !ok {
		return apperr.New(apperr.ErrNotFound, "Credential not found.")
	}
	return nil
}

// BuildInput folds the stored credentials into the scraper input document:
// username and password under "credentials", every other entry under
// "search". Top-level keys of extra are kept except those two.
func BuildInput(creds []models.Credential, extra map[string]any) (map[string]any, error) {
	kv := make(map[string]string, len(creds))
	for _, c := range creds {
		kv[c.Key] = c.Value
	}
	username, okU := kv["username"]
	password, okP := kv["password"]
	if !okU || !okP {
		return nil, apperr.New(apperr.ErrBadRequest, "Upwork credentials are not set.")
	}
	delete(kv, "username")
	delete(kv, "password")

	doc := make(map[string]any, len(extra)+2)
	for k, v := range extra {
		doc[k] = v
	}
	search := make(map[string]any, len(kv))
	for k, v := range kv {
		search[k] = v
	}
	doc["search"] = search
	doc["credentials"] = map[string]any{"username": username, "password": password}
	return Coerce(doc), nil
}

// Submit validates the merged input and persists a pending job together with
// its queue task, then wakes the workers.
func (s *Service) Submit(ctx context.Context, extra map[string]any) (*models.ScrapeJob, error) {
	creds, err := s.creds.ListCredentials(ctx)
	if err != nil {
		return nil, fmt.Errorf("list credentials: %w", err)
	}
	doc, err := BuildInput(creds, extra)
	if err != nil {
		return nil, err
	}

	raw, err := json.Marshal(doc)
	if err != nil {
		return nil, fmt.Errorf("encode scrape input: %w", err)
	}
	if err := s.schemas.Validate(ctx, inputSchema, inputSchemaVersion, raw); err != nil {
		return nil, schemaValidationError(err)
	}
	if _, err := ParseInput(raw); err != nil {
		return nil, apperr.Validation("Invalid scrape input.", map[string]string{"jsonInput": err.Error()})
	}

	job := &models.ScrapeJob{Input: raw, Status: StatusPending}
	if _, err := s.jobs.CreateScrapeJob(ctx, job, runTask); err != nil {
		return nil, fmt.Errorf("create scrape job: %w", err)
	}
	s.metrics.ScrapeJob(StatusPending)
	s.logger.Info("scrape: job submitted", slog.Int64("job_id", job.ID))

	if s.notifier != nil {
		if err := s.notifier.Notify(ctx); err != nil {
			// polling still picks the task up
			s.logger.Warn("scrape: notify workers failed", slog.Int64("job_id", job.ID), slog.Any("err", err))
		}
	}
	return job, nil
}

func runTask(jobID int64) (*models.BackgroundJob, error) {
	payload, err := json.Marshal(TaskPayload{JobID: jobID})
	if err != nil {
		return nil, err
	}
	return &models.BackgroundJob{Type: TaskRun, Payload: payload, MaxAttempts: 1}, nil
}

func schemaValidationError(err error) error {
	var se *ai.SchemaError
	if errors.As(err, &se) {
		return apperr.Validation("Invalid scrape input.", map[string]string{"jsonInput": strings.Join(se.Problems, "; ")})
	}
	return fmt.Errorf("validate scrape input: %w", err)
}

// ListJobs returns jobs newest first. status is "all" or one job status.
func (s *Service) ListJobs(ctx context.Context, status string) ([]models.ScrapeJob, error) {
	st, err := ParseStatus(status)
	if err != nil {
		return nil, err
	}
	out, err := s.jobs.ListScrapeJobs(ctx, st)
	if err != nil {
		return nil, fmt.Errorf("list scrape jobs: %w", err)
	}
	return out, nil
}

func (s *Service) GetJob(ctx context.Context, id int64) (*models.ScrapeJob, error) {
	j, err := s.jobs.GetScrapeJob(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("get scrape job: %w", err)
	}
	if j == nil {
		return nil, apperr.New(apperr.ErrNotFound, "Job not found.")
	}
	return j, nil
}

// Results lists the result rows of a job; unknown ids yield an empty list.
func (s *Service) Results(ctx context.Context, jobID int64) ([]models.ScrapeResult, error) {
	out, err := s.jobs.ListScrapeResults(ctx, jobID)
	if err != nil {
		return nil, fmt.Errorf("list scrape results: %w", err)
	}
	return out, nil
}

// Logs lists a job's log lines oldest first.
func (s *Service) Logs(ctx context.Context, jobID int64) ([]models.ScrapeLog, error) {
	out, err := s.jobs.ListScrapeLogs(ctx, jobID)
	if err != nil {
		return nil, fmt.Errorf("list scrape logs: %w", err)
	}
	return out, nil
}
