package sqlite_test

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/garnizeh/leadscout/internal/models"
	"github.com/garnizeh/leadscout/internal/testutil"
	"github.com/garnizeh/leadscout/pkg/repository"
)

func TestUserCRUD(t *testing.T) {
	repo := testutil.NewRepo(t)
	ctx := context.Background()

	if _, err := repo.CreateUser(ctx, nil); err == nil {
		t.Fatalf("expected error when creating nil user")
	}

	got, err := repo.GetUserByID(ctx, 9999)
	if err != nil || got != nil {
		t.Fatalf("expected nil, nil for missing id, got %#v, %v", got, err)
	}

	u := &models.User{Name: "Alice", Email: "Alice@Example.com", PasswordHash: "hash", Role: "client", Enabled: true}
	id, err := repo.CreateUser(ctx, u)
	if err != nil {
		t.Fatalf("CreateUser error: %v", err)
	}
	if id == 0 || u.ID != id {
		t.Fatalf("expected id to be set, got %d / %d", id, u.ID)
	}

	byEmail, err := repo.GetUserByEmail(ctx, "ALICE@example.com")
	if err != nil {
		t.Fatalf("GetUserByEmail error: %v", err)
	}
	if byEmail == nil || byEmail.ID != id || byEmail.Email != "alice@example.com" {
		t.Fatalf("GetUserByEmail wrong result: %#v", byEmail)
	}

	dup := &models.User{Name: "Other", Email: "alice@EXAMPLE.com", PasswordHash: "h", Role: "client"}
	if _, err := repo.CreateUser(ctx, dup); !errors.Is(err, repository.ErrDuplicate) {
		t.Fatalf("expected ErrDuplicate, got %v", err)
	}

	byEmail.Enabled = false
	byEmail.Country = "PT"
	if err := repo.UpdateUser(ctx, byEmail); err != nil {
		t.Fatalf("UpdateUser error: %v", err)
	}
	after, err := repo.GetUserByID(ctx, id)
	if err != nil {
		t.Fatalf("GetUserByID error: %v", err)
	}
	if after.Enabled || after.Country != "PT" {
		t.Fatalf("update not persisted: %#v", after)
	}
}

func TestPendingRegistrationLifecycle(t *testing.T) {
	repo := testutil.NewRepo(t)
	ctx := context.Background()
	expires := time.Now().Add(10 * time.Minute).Truncate(time.Millisecond)

	p := &models.PendingRegistration{
		Email:      "Bob@example.com",
		OTP:        "123456",
		SignupData: models.SignupData{Name: "Bob", Email: "bob@example.com", PasswordHash: "h", Role: "client"},
		ExpiresAt:  expires,
	}
	if err := repo.UpsertPendingRegistration(ctx, p); err != nil {
		t.Fatalf("upsert: %v", err)
	}

	// overwrite keyed by email
	p.OTP = "654321"
	p.SignupData.Name = "Bobby"
	if err := repo.UpsertPendingRegistration(ctx, p); err != nil {
		t.Fatalf("second upsert: %v", err)
	}

	got, err := repo.GetPendingRegistration(ctx, "bob@EXAMPLE.com")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got == nil || got.OTP != "654321" || got.SignupData.Name != "Bobby" {
		t.Fatalf("unexpected pending registration: %#v", got)
	}
	if !got.ExpiresAt.Equal(expires) {
		t.Fatalf("expires mismatch: got %v want %v", got.ExpiresAt, expires)
	}

	if err := repo.UpdatePendingOTP(ctx, "bob@example.com", "111111", expires.Add(time.Minute)); err != nil {
		t.Fatalf("update otp: %v", err)
	}
	got, _ = repo.GetPendingRegistration(ctx, "bob@example.com")
	if got.OTP != "111111" || got.SignupData.Name != "Bobby" {
		t.Fatalf("resend must keep payload: %#v", got)
	}

	u := &models.User{Name: "Bobby", Email: "bob@example.com", PasswordHash: "h", Role: "client", Enabled: true}
	ok, err := repo.CompleteRegistration(ctx, "bob@example.com", "000000", u)
	if err != nil || ok {
		t.Fatalf("wrong otp must not consume: ok=%v err=%v", ok, err)
	}
	if existing, _ := repo.GetUserByEmail(ctx, "bob@example.com"); existing != nil {
		t.Fatalf("user must not exist after failed completion")
	}

	ok, err = repo.CompleteRegistration(ctx, "bob@example.com", "111111", u)
	if err != nil || !ok {
		t.Fatalf("expected completion, ok=%v err=%v", ok, err)
	}
	if got, _ := repo.GetPendingRegistration(ctx, "bob@example.com"); got != nil {
		t.Fatalf("pending registration should be consumed")
	}
	ok, err = repo.CompleteRegistration(ctx, "bob@example.com", "111111", &models.User{Name: "x", Email: "bob@example.com", PasswordHash: "h", Role: "client"})
	if err != nil || ok {
		t.Fatalf("second completion must be a no-op: ok=%v err=%v", ok, err)
	}
}

func TestPurgeExpiredRegistrations(t *testing.T) {
	repo := testutil.NewRepo(t)
	ctx := context.Background()
	now := time.Now()

	for i, exp := range []time.Time{now.Add(-2 * time.Hour), now.Add(time.Hour)} {
		p := &models.PendingRegistration{
			Email:      []string{"old@example.com", "fresh@example.com"}[i],
			OTP:        "123456",
			SignupData: models.SignupData{Name: "n", Email: "e@example.com", PasswordHash: "h", Role: "client"},
			ExpiresAt:  exp,
		}
		if err := repo.UpsertPendingRegistration(ctx, p); err != nil {
			t.Fatalf("upsert: %v", err)
		}
	}

	n, err := repo.PurgeExpiredRegistrations(ctx, now.Add(-time.Hour))
	if err != nil {
		t.Fatalf("purge: %v", err)
	}
	if n != 1 {
		t.Fatalf("expected 1 purged row, got %d", n)
	}
	if got, _ := repo.GetPendingRegistration(ctx, "fresh@example.com"); got == nil {
		t.Fatalf("fresh registration must survive")
	}
}

func TestRevocation(t *testing.T) {
	repo := testutil.NewRepo(t)
	ctx := context.Background()
	u := testutil.CreateUser(t, repo, "rev@example.com")

	got, err := repo.GetUserRevocation(ctx, u.ID)
	if err != nil || got != nil {
		t.Fatalf("expected no revocation, got %v %v", got, err)
	}

	at := time.Now()
	if err := repo.RevokeUserTokens(ctx, u.ID, at); err != nil {
		t.Fatalf("revoke: %v", err)
	}
	got, err = repo.GetUserRevocation(ctx, u.ID)
	if err != nil || got == nil {
		t.Fatalf("expected revocation, got %v %v", got, err)
	}
	if got.UnixNano() != at.UnixNano() {
		t.Fatalf("revocation precision lost: %d vs %d", got.UnixNano(), at.UnixNano())
	}
}

func TestProjectsQuestionsAnswers(t *testing.T) {
	repo := testutil.NewRepo(t)
	ctx := context.Background()
	u := testutil.CreateUser(t, repo, "proj@example.com")

	types, err := repo.ListProjectTypes(ctx)
	if err != nil || len(types) == 0 {
		t.Fatalf("expected seeded project types, got %v %v", types, err)
	}
	status, err := repo.GetStatusByName(ctx, "new")
	if err != nil || status == nil {
		t.Fatalf("expected seeded status, got %v %v", status, err)
	}

	p := &models.Project{UserID: u.ID, ProjectTypeID: types[0].ID, StatusID: status.ID, Name: "Portal", Description: "desc"}
	pid, err := repo.CreateProject(ctx, p)
	if err != nil {
		t.Fatalf("create project: %v", err)
	}
	got, err := repo.GetProject(ctx, pid)
	if err != nil || got == nil {
		t.Fatalf("get project: %v %v", got, err)
	}
	if got.ProjectType != types[0].Name || got.Status != "new" || !got.Enabled {
		t.Fatalf("unexpected project: %#v", got)
	}

	questions, err := repo.ListQuestionsByProjectType(ctx, types[0].ID)
	if err != nil || len(questions) == 0 {
		t.Fatalf("expected seeded questions, got %v %v", questions, err)
	}

	a := &models.Answer{UserID: u.ID, QuestionID: questions[0].ID, ProjectID: pid, Text: "first"}
	firstID, err := repo.UpsertAnswer(ctx, a)
	if err != nil {
		t.Fatalf("upsert answer: %v", err)
	}
	a2 := &models.Answer{UserID: u.ID, QuestionID: questions[0].ID, ProjectID: pid, Text: "second"}
	secondID, err := repo.UpsertAnswer(ctx, a2)
	if err != nil {
		t.Fatalf("re-answer: %v", err)
	}
	if firstID != secondID {
		t.Fatalf("re-answer must update in place: %d vs %d", firstID, secondID)
	}
	answers, err := repo.ListAnswers(ctx, u.ID, pid)
	if err != nil || len(answers) != 1 || answers[0].Text != "second" {
		t.Fatalf("unexpected answers: %#v %v", answers, err)
	}

	aq := &models.AIQuestion{ProjectID: pid, Text: "Which browsers?", Description: "support matrix"}
	if _, err := repo.CreateAIQuestion(ctx, aq); err != nil {
		t.Fatalf("create ai question: %v", err)
	}
	if _, err := repo.UpsertAIAnswer(ctx, &models.AIAnswer{UserID: u.ID, AIQuestionID: aq.ID, Text: "evergreen"}); err != nil {
		t.Fatalf("ai answer: %v", err)
	}
	aiAnswers, err := repo.ListAIAnswers(ctx, u.ID, pid)
	if err != nil || len(aiAnswers) != 1 {
		t.Fatalf("unexpected ai answers: %#v %v", aiAnswers, err)
	}

	if err := repo.DisableProject(ctx, pid); err != nil {
		t.Fatalf("disable: %v", err)
	}
	list, err := repo.ListProjectsByUser(ctx, u.ID)
	if err != nil || len(list) != 0 {
		t.Fatalf("disabled projects must be hidden: %#v %v", list, err)
	}
}

func TestCredentialUpsert(t *testing.T) {
	repo := testutil.NewRepo(t)
	ctx := context.Background()

	c, created, err := repo.UpsertCredential(ctx, "username", "alice")
	if err != nil || !created || c.Value != "alice" {
		t.Fatalf("first upsert: %#v created=%v err=%v", c, created, err)
	}
	c, created, err = repo.UpsertCredential(ctx, "username", "bob")
	if err != nil || created || c.Value != "bob" {
		t.Fatalf("second upsert: %#v created=%v err=%v", c, created, err)
	}

	list, err := repo.ListCredentials(ctx)
	if err != nil || len(list) != 1 {
		t.Fatalf("expected one credential row, got %#v %v", list, err)
	}

	deleted, err := repo.DeleteCredential(ctx, "username")
	if err != nil || !deleted {
		t.Fatalf("delete: %v %v", deleted, err)
	}
	deleted, err = repo.DeleteCredential(ctx, "username")
	if err != nil || deleted {
		t.Fatalf("second delete should report missing: %v %v", deleted, err)
	}
}

func TestScrapeJobLifecycle(t *testing.T) {
	repo := testutil.NewRepo(t)
	ctx := context.Background()

	input := json.RawMessage(`{"search":{"query":"go"}}`)
	job := &models.ScrapeJob{Input: input}
	id, err := repo.CreateScrapeJob(ctx, job, func(jobID int64) (*models.BackgroundJob, error) {
		payload, _ := json.Marshal(map[string]int64{"job_id": jobID})
		return &models.BackgroundJob{Type: "scrape.run", Payload: payload, MaxAttempts: 1}, nil
	})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if job.Status != "pending" {
		t.Fatalf("expected pending, got %q", job.Status)
	}

	task, err := repo.FetchNext(ctx)
	if err != nil || task == nil {
		t.Fatalf("expected queued task, got %v %v", task, err)
	}
	if task.Type != "scrape.run" || task.Status != "running" {
		t.Fatalf("unexpected task: %#v", task)
	}

	ok, err := repo.TransitionScrapeJob(ctx, id, "completed", "in_progress")
	if err != nil || ok {
		t.Fatalf("pending job must not jump to completed: %v %v", ok, err)
	}
	ok, err = repo.TransitionScrapeJob(ctx, id, "in_progress", "pending")
	if err != nil || !ok {
		t.Fatalf("start: %v %v", ok, err)
	}
	ok, err = repo.TransitionScrapeJob(ctx, id, "in_progress", "pending")
	if err != nil || ok {
		t.Fatalf("duplicate start must be a no-op: %v %v", ok, err)
	}

	if _, err := repo.AppendScrapeLog(ctx, &models.ScrapeLog{JobID: id, Message: "first"}); err != nil {
		t.Fatalf("log: %v", err)
	}
	if _, err := repo.AppendScrapeLog(ctx, &models.ScrapeLog{JobID: id, Message: "second", Type: models.LogDebug}); err != nil {
		t.Fatalf("log: %v", err)
	}

	ok, err = repo.CompleteScrapeJob(ctx, id, []byte(`[{"title":"x"}]`))
	if err != nil || !ok {
		t.Fatalf("complete: %v %v", ok, err)
	}
	ok, err = repo.CompleteScrapeJob(ctx, id, []byte(`[]`))
	if err != nil || ok {
		t.Fatalf("second completion must be a no-op: %v %v", ok, err)
	}

	results, err := repo.ListScrapeResults(ctx, id)
	if err != nil || len(results) != 1 {
		t.Fatalf("expected exactly one result, got %#v %v", results, err)
	}
	logs, err := repo.ListScrapeLogs(ctx, id)
	if err != nil || len(logs) != 2 {
		t.Fatalf("expected two logs, got %#v %v", logs, err)
	}
	if logs[0].Message != "first" || logs[0].Type != models.LogInfo || logs[1].Type != models.LogDebug {
		t.Fatalf("logs out of order: %#v", logs)
	}
}

func TestListScrapeJobsFilterAndOrder(t *testing.T) {
	repo := testutil.NewRepo(t)
	ctx := context.Background()

	var ids []int64
	for i := 0; i < 3; i++ {
		j := &models.ScrapeJob{Input: json.RawMessage(`{}`)}
		id, err := repo.CreateScrapeJob(ctx, j, nil)
		if err != nil {
			t.Fatalf("create: %v", err)
		}
		ids = append(ids, id)
	}
	for _, id := range []int64{ids[0], ids[2]} {
		if _, err := repo.TransitionScrapeJob(ctx, id, "failed", "pending", "in_progress"); err != nil {
			t.Fatalf("fail: %v", err)
		}
	}

	failed, err := repo.ListScrapeJobs(ctx, "failed")
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(failed) != 2 || failed[0].ID != ids[2] || failed[1].ID != ids[0] {
		t.Fatalf("expected failed jobs newest first, got %#v", failed)
	}
	all, err := repo.ListScrapeJobs(ctx, "")
	if err != nil || len(all) != 3 {
		t.Fatalf("expected all jobs, got %#v %v", all, err)
	}
}

func TestQueueClaimRetryAndDeadLetter(t *testing.T) {
	repo := testutil.NewRepo(t)
	ctx := context.Background()

	if _, err := repo.Enqueue(ctx, nil); err == nil {
		t.Fatalf("expected error for nil job")
	}
	j := &models.BackgroundJob{Type: "noop", Payload: json.RawMessage(`{}`), MaxAttempts: 2}
	if _, err := repo.Enqueue(ctx, j); err != nil {
		t.Fatalf("enqueue: %v", err)
	}

	claimed, err := repo.FetchNext(ctx)
	if err != nil || claimed == nil {
		t.Fatalf("fetch: %v %v", claimed, err)
	}
	again, err := repo.FetchNext(ctx)
	if err != nil || again != nil {
		t.Fatalf("a claimed job must not be handed out twice: %#v %v", again, err)
	}

	n, err := repo.RequeueStale(ctx, time.Now().Add(time.Minute))
	if err != nil || n != 1 {
		t.Fatalf("requeue stale: %d %v", n, err)
	}
	claimed, err = repo.FetchNext(ctx)
	if err != nil || claimed == nil {
		t.Fatalf("expected requeued job: %v %v", claimed, err)
	}

	claimed.Attempts = 2
	claimed.LastError = "boom"
	if err := repo.MoveToDeadLetter(ctx, claimed); err != nil {
		t.Fatalf("dead letter: %v", err)
	}
	if next, _ := repo.FetchNext(ctx); next != nil {
		t.Fatalf("dead-lettered job must leave the queue")
	}
	purged, err := repo.PurgeFinishedJobs(ctx, time.Now().Add(time.Minute))
	if err != nil || purged != 1 {
		t.Fatalf("purge: %d %v", purged, err)
	}
}

func TestSchemasAndTemplates(t *testing.T) {
	repo := testutil.NewRepo(t)
	ctx := context.Background()

	seeded, err := repo.GetSchema(ctx, "scrape_input", "v1")
	if err != nil || seeded == nil {
		t.Fatalf("expected seeded scrape_input schema: %v %v", seeded, err)
	}

	if _, err := repo.CreateSchema(ctx, "custom", "v1", "d", `{"type":"object"}`); err != nil {
		t.Fatalf("create schema: %v", err)
	}
	if _, err := repo.CreateSchema(ctx, "custom", "v1", "d2", `{"type":"array"}`); err != nil {
		t.Fatalf("upsert schema: %v", err)
	}
	got, _ := repo.GetSchema(ctx, "custom", "v1")
	if got == nil || got.Description != "d2" {
		t.Fatalf("schema not updated: %#v", got)
	}
	if err := repo.DeleteSchema(ctx, "custom", "v1"); err != nil {
		t.Fatalf("delete schema: %v", err)
	}

	tpl, err := repo.GetTemplate(ctx, "report", "v1")
	if err != nil || tpl == nil || tpl.TemplateTxt == "" {
		t.Fatalf("expected seeded report template: %v %v", tpl, err)
	}
	schemaName := "ai_questions"
	if _, err := repo.CreateTemplate(ctx, "custom", "v2", "hello {{.Name}}", &schemaName, nil); err != nil {
		t.Fatalf("create template: %v", err)
	}
	custom, _ := repo.GetTemplate(ctx, "custom", "v2")
	if custom == nil || custom.SchemaName == nil || *custom.SchemaName != "ai_questions" || custom.Metadata != nil {
		t.Fatalf("unexpected template: %#v", custom)
	}
	list, err := repo.ListTemplates(ctx)
	if err != nil || len(list) < 5 {
		t.Fatalf("expected seeded plus custom templates, got %d %v", len(list), err)
	}
}
