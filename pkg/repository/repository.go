package repository

import (
	"context"
	"time"

	"github.com/garnizeh/leadscout/internal/models"
)

// Repository interfaces for domain entities. Lookups return (nil, nil) when
// the row does not exist; concrete implementations live under internal/.

type UserRepo interface {
	CreateUser(ctx context.Context, u *models.User) (int64, error)
	GetUserByID(ctx context.Context, id int64) (*models.User, error)
	GetUserByEmail(ctx context.Context, email string) (*models.User, error)
	UpdateUser(ctx context.Context, u *models.User) error
}

type PendingRegistrationRepo interface {
	// UpsertPendingRegistration creates or overwrites the record keyed by email.
	UpsertPendingRegistration(ctx context.Context, p *models.PendingRegistration) error
	GetPendingRegistration(ctx context.Context, email string) (*models.PendingRegistration, error)
	// UpdatePendingOTP rotates code and expiry, leaving the signup payload untouched.
	UpdatePendingOTP(ctx context.Context, email, otp string, expiresAt time.Time) error
	DeletePendingRegistration(ctx context.Context, email string) error
	// CompleteRegistration creates u and deletes the pending record matching
	// (email, otp) atomically. It reports false when no matching record was
	// consumed, in which case no user is created.
	CompleteRegistration(ctx context.Context, email, otp string, u *models.User) (bool, error)
	PurgeExpiredRegistrations(ctx context.Context, before time.Time) (int64, error)
}

type RevocationRepo interface {
	RevokeUserTokens(ctx context.Context, userID int64, at time.Time) error
	GetUserRevocation(ctx context.Context, userID int64) (*time.Time, error)
}

type CatalogRepo interface {
	ListProjectTypes(ctx context.Context) ([]models.ProjectType, error)
	ListStatuses(ctx context.Context) ([]models.Status, error)
	GetProjectType(ctx context.Context, id int64) (*models.ProjectType, error)
	GetStatus(ctx context.Context, id int64) (*models.Status, error)
	GetStatusByName(ctx context.Context, name string) (*models.Status, error)
}

type ProjectRepo interface {
	CreateProject(ctx context.Context, p *models.Project) (int64, error)
	GetProject(ctx context.Context, id int64) (*models.Project, error)
	ListProjectsByUser(ctx context.Context, userID int64) ([]models.Project, error)
	DisableProject(ctx context.Context, id int64) error
}

type QuestionRepo interface {
	ListQuestionsByProjectType(ctx context.Context, projectTypeID int64) ([]models.Question, error)
	GetQuestion(ctx context.Context, id int64) (*models.Question, error)
	// UpsertAnswer stores the caller's answer, replacing an earlier one.
	UpsertAnswer(ctx context.Context, a *models.Answer) (int64, error)
	ListAnswers(ctx context.Context, userID, projectID int64) ([]models.Answer, error)
}

type AIQuestionRepo interface {
	CreateAIQuestion(ctx context.Context, q *models.AIQuestion) (int64, error)
	GetAIQuestion(ctx context.Context, id int64) (*models.AIQuestion, error)
	ListAIQuestionsByProject(ctx context.Context, projectID int64) ([]models.AIQuestion, error)
	UpsertAIAnswer(ctx context.Context, a *models.AIAnswer) (int64, error)
	ListAIAnswers(ctx context.Context, userID, projectID int64) ([]models.AIAnswer, error)
}

type ReportRepo interface {
	CreateReport(ctx context.Context, r *models.ProjectReport) (int64, error)
	LatestReport(ctx context.Context, projectID int64) (*models.ProjectReport, error)
}

type CredentialRepo interface {
	ListCredentials(ctx context.Context) ([]models.Credential, error)
	// UpsertCredential reports whether a new row was created.
	UpsertCredential(ctx context.Context, key, value string) (*models.Credential, bool, error)
	DeleteCredential(ctx context.Context, key string) (bool, error)
}

type ScrapeJobRepo interface {
	// CreateScrapeJob persists the job and the queue task built for its id in
	// one transaction.
	CreateScrapeJob(ctx context.Context, j *models.ScrapeJob, task func(jobID int64) (*models.BackgroundJob, error)) (int64, error)
	GetScrapeJob(ctx context.Context, id int64) (*models.ScrapeJob, error)
	// ListScrapeJobs returns jobs newest first; an empty status means all.
	ListScrapeJobs(ctx context.Context, status string) ([]models.ScrapeJob, error)
	// TransitionScrapeJob moves the job to status "to" only when its current
	// status is one of from. It reports whether a row changed.
	TransitionScrapeJob(ctx context.Context, id int64, to string, from ...string) (bool, error)
	// CompleteScrapeJob attaches the result and marks the job completed atomically.
	CompleteScrapeJob(ctx context.Context, id int64, result []byte) (bool, error)
	AppendScrapeLog(ctx context.Context, l *models.ScrapeLog) (int64, error)
	ListScrapeResults(ctx context.Context, jobID int64) ([]models.ScrapeResult, error)
	ListScrapeLogs(ctx context.Context, jobID int64) ([]models.ScrapeLog, error)
}

type QueueRepo interface {
	Enqueue(ctx context.Context, j *models.BackgroundJob) (int64, error)
	FetchNext(ctx context.Context) (*models.BackgroundJob, error)
	UpdateJob(ctx context.Context, j *models.BackgroundJob) error
	MoveToDeadLetter(ctx context.Context, j *models.BackgroundJob) error
	// RequeueStale hands running jobs untouched since before back to the queue.
	RequeueStale(ctx context.Context, before time.Time) (int64, error)
	PurgeFinishedJobs(ctx context.Context, before time.Time) (int64, error)
}

type SchemaRepo interface {
	CreateSchema(ctx context.Context, name, version, description, schemaJSON string) (int64, error)
	GetSchema(ctx context.Context, name, version string) (*models.Schema, error)
	ListSchemas(ctx context.Context) ([]models.Schema, error)
	DeleteSchema(ctx context.Context, name, version string) error
}

type TemplateRepo interface {
	CreateTemplate(ctx context.Context, name, version, templateText string, schemaName *string, metadata *string) (int64, error)
	GetTemplate(ctx context.Context, name, version string) (*models.Template, error)
	ListTemplates(ctx context.Context) ([]models.Template, error)
	DeleteTemplate(ctx context.Context, name, version string) error
}
