package api

import (
	"github.com/gorilla/mux"

	"github.com/garnizeh/leadscout/internal/ai"
	"github.com/garnizeh/leadscout/internal/auth"
	"github.com/garnizeh/leadscout/internal/metrics"
	"github.com/garnizeh/leadscout/internal/projects"
	"github.com/garnizeh/leadscout/internal/scrape"
	"github.com/garnizeh/leadscout/internal/signup"
	"github.com/garnizeh/leadscout/pkg/repository"
)

// Deps carries the services the router exposes.
type Deps struct {
	Version   string
	BuildTime string
	DB        Pinger
	Tokens    *auth.Issuer
	Signup    *signup.Service
	Projects  *projects.Service
	AI        *ai.Service
	Scrape    *scrape.Service
	Schemas   repository.SchemaRepo
	Templates repository.TemplateRepo
	Metrics   *metrics.Metrics
	// Limiter throttles the unauthenticated signup and login endpoints.
	Limiter *ClientLimiter
}

func SetupRoutes(d Deps) *mux.Router {
	r := mux.NewRouter()

	// Middleware chain
	r.Use(LoggingMiddleware)
	r.Use(MetricsMiddleware(d.Metrics))
	r.Use(CORSMiddleware)
	r.Use(RecoveryMiddleware)

	systemHandler := &SystemHandler{DB: d.DB}
	authHandler := NewAuthHandler(d.Signup)
	projectsHandler := NewProjectsHandler(d.Projects)
	aiHandler := NewAIHandler(d.AI, d.Schemas, d.Templates)
	upworkHandler := NewUpworkHandler(d.Scrape)

	// Open endpoints
	r.HandleFunc("/version", systemHandler.VersionHandler(d.Version, d.BuildTime)).Methods("GET")
	r.HandleFunc("/health", systemHandler.HealthHandler).Methods("GET")
	if d.Metrics != nil {
		r.Handle("/metrics", d.Metrics.Handler()).Methods("GET")
	}

	open := r.NewRoute().Subrouter()
	open.Use(RateLimitMiddleware(d.Limiter))
	open.HandleFunc("/signup/initiate/", authHandler.Initiate).Methods("POST")
	open.HandleFunc("/signup/verify-otp/", authHandler.VerifyOTP).Methods("POST")
	open.HandleFunc("/signup/resend-otp/", authHandler.ResendOTP).Methods("POST")
	open.HandleFunc("/signup/", authHandler.Signup).Methods("POST")
	open.HandleFunc("/login/", authHandler.Login).Methods("POST")

	// Protected routes
	protected := r.NewRoute().Subrouter()
	protected.Use(AuthMiddleware(d.Tokens))

	protected.HandleFunc("/logout/", authHandler.Logout).Methods("POST")
	protected.HandleFunc("/me/", authHandler.Me).Methods("GET")

	// Projects
	protected.HandleFunc("/projects/types/", projectsHandler.ProjectTypes).Methods("GET")
	protected.HandleFunc("/projects/statuses/", projectsHandler.Statuses).Methods("GET")
	protected.HandleFunc("/projects/project/", projectsHandler.List).Methods("GET")
	protected.HandleFunc("/projects/project/", projectsHandler.Create).Methods("POST")
	protected.HandleFunc("/projects/project/{id:[0-9]+}/", projectsHandler.Get).Methods("GET")
	protected.HandleFunc("/projects/remove_project/{id:[0-9]+}/", projectsHandler.Remove).Methods("POST")
	protected.HandleFunc("/projects/get_next_question/{id:[0-9]+}/", projectsHandler.NextQuestion).Methods("GET")
	protected.HandleFunc("/projects/answer_question/", projectsHandler.AnswerQuestion).Methods("POST")
	protected.HandleFunc("/projects/generate_report/{id:[0-9]+}/", projectsHandler.GenerateReport).Methods("GET")
	protected.HandleFunc("/projects/report/{id:[0-9]+}/", projectsHandler.LatestReport).Methods("GET")
	protected.HandleFunc("/projects/{id:[0-9]+}/ai-questions/", projectsHandler.AIQuestions).Methods("GET")
	protected.HandleFunc("/projects/{id:[0-9]+}/ai-questions/generate/", projectsHandler.GenerateAIQuestions).Methods("POST")

	// AI
	protected.HandleFunc("/ai/prompt/", aiHandler.Prompt).Methods("POST")
	protected.HandleFunc("/ai/schemas/", aiHandler.ListSchemas).Methods("GET")
	protected.HandleFunc("/ai/schemas/", aiHandler.CreateSchema).Methods("POST")
	protected.HandleFunc("/ai/schemas/reload/", aiHandler.ReloadSchemas).Methods("POST")
	protected.HandleFunc("/ai/schemas/{name}/{version}/", aiHandler.GetSchema).Methods("GET")
	protected.HandleFunc("/ai/schemas/{name}/{version}/", aiHandler.DeleteSchema).Methods("DELETE")
	protected.HandleFunc("/ai/templates/", aiHandler.ListTemplates).Methods("GET")
	protected.HandleFunc("/ai/templates/", aiHandler.CreateTemplate).Methods("POST")
	protected.HandleFunc("/ai/templates/{name}/{version}/", aiHandler.GetTemplate).Methods("GET")
	protected.HandleFunc("/ai/templates/{name}/{version}/", aiHandler.DeleteTemplate).Methods("DELETE")

	// Upwork
	protected.HandleFunc("/upwork/creds/", upworkHandler.ListCredentials).Methods("GET")
	protected.HandleFunc("/upwork/creds/", upworkHandler.UpsertCredential).Methods("POST")
	protected.HandleFunc("/upwork/creds/", upworkHandler.DeleteCredential).Methods("DELETE")
	protected.HandleFunc("/upwork/jobs/", upworkHandler.ListJobs).Methods("GET")
	protected.HandleFunc("/upwork/jobs/", upworkHandler.SubmitJob).Methods("POST")
	protected.HandleFunc("/upwork/jobs/{status}/", upworkHandler.ListJobs).Methods("GET")
	protected.HandleFunc("/upwork/job/{id:[0-9]+}/", upworkHandler.GetJob).Methods("GET")
	protected.HandleFunc("/upwork/results/{job_id:[0-9]+}/", upworkHandler.Results).Methods("GET")
	protected.HandleFunc("/upwork/logs/{job_id:[0-9]+}/", upworkHandler.Logs).Methods("GET")

	return r
}
