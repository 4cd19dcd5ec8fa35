package models

import (
	"encoding/json"
	"time"
)

type User struct {
	ID               int64     `json:"id"`
	Name             string    `json:"name"`
	Email            string    `json:"email"`
	PasswordHash     string    `json:"-"`
	MobileNumber     string    `json:"mobile_number"`
	Country          string    `json:"country"`
	CompanyName      string    `json:"company_name"`
	Role             string    `json:"role"`
	LinkedinUsername string    `json:"linkedin_username"`
	Enabled          bool      `json:"enabled"`
	Created          time.Time `json:"created"`
	Updated          time.Time `json:"updated"`
}

// SignupData is the payload kept on a pending registration until the OTP is
// confirmed. The password is stored already hashed.
type SignupData struct {
	Name             string `json:"name" validate:"required,max=150"`
	Email            string `json:"email" validate:"required,email"`
	PasswordHash     string `json:"password_hash" validate:"required"`
	MobileNumber     string `json:"mobile_number,omitempty" validate:"max=32"`
	Country          string `json:"country,omitempty" validate:"max=64"`
	CompanyName      string `json:"company_name,omitempty" validate:"max=150"`
	Role             string `json:"role" validate:"required,oneof=client freelancer"`
	LinkedinUsername string `json:"linkedin_username,omitempty" validate:"max=100"`
}

type PendingRegistration struct {
	Email      string     `json:"email"`
	OTP        string     `json:"-"`
	SignupData SignupData `json:"signup_data"`
	ExpiresAt  time.Time  `json:"expires_at"`
	Created    time.Time  `json:"created"`
	Updated    time.Time  `json:"updated"`
}

// Expired reports whether the OTP window closed before now.
func (p *PendingRegistration) Expired(now time.Time) bool {
	return now.After(p.ExpiresAt)
}

type ProjectType struct {
	ID   int64  `json:"id"`
	Name string `json:"name"`
}

type Status struct {
	ID   int64  `json:"id"`
	Name string `json:"name"`
}

type QuestionType struct {
	ID   int64  `json:"id"`
	Name string `json:"name"`
}

type Project struct {
	ID            int64     `json:"id"`
	UserID        int64     `json:"user_id"`
	ProjectTypeID int64     `json:"project_type_id"`
	ProjectType   string    `json:"project_type"`
	StatusID      int64     `json:"status_id"`
	Status        string    `json:"status"`
	Name          string    `json:"name"`
	Description   string    `json:"description"`
	Enabled       bool      `json:"enabled"`
	Created       time.Time `json:"created"`
	Updated       time.Time `json:"updated"`
}

type Question struct {
	ID            int64  `json:"id"`
	ProjectTypeID int64  `json:"project_type_id"`
	QuestionType  string `json:"question_type"`
	Text          string `json:"text"`
	Description   string `json:"description"`
	Enabled       bool   `json:"enabled"`
}

type Answer struct {
	ID         int64     `json:"id"`
	UserID     int64     `json:"user_id"`
	QuestionID int64     `json:"question_id"`
	ProjectID  int64     `json:"project_id"`
	Text       string    `json:"text"`
	Created    time.Time `json:"created"`
	Updated    time.Time `json:"updated"`
}

type AIQuestion struct {
	ID          int64     `json:"id"`
	ProjectID   int64     `json:"project_id"`
	Text        string    `json:"text"`
	Description string    `json:"description"`
	Created     time.Time `json:"created"`
}

type AIAnswer struct {
	ID           int64     `json:"id"`
	UserID       int64     `json:"user_id"`
	AIQuestionID int64     `json:"ai_question_id"`
	Text         string    `json:"text"`
	Created      time.Time `json:"created"`
	Updated      time.Time `json:"updated"`
}

// QA pairs a question with the caller's answer for prompt rendering.
type QA struct {
	Question string `json:"question"`
	Answer   string `json:"answer"`
}

type ProjectReport struct {
	ID        int64     `json:"id"`
	ProjectID int64     `json:"project_id"`
	Report    string    `json:"report"`
	Created   time.Time `json:"created"`
}

type Credential struct {
	ID      int64     `json:"id"`
	Key     string    `json:"key"`
	Value   string    `json:"value"`
	Created time.Time `json:"created"`
	Updated time.Time `json:"updated"`
}

type ScrapeJob struct {
	ID      int64           `json:"id"`
	Input   json.RawMessage `json:"jsonInput"`
	Status  string          `json:"status"`
	Created time.Time       `json:"created_at"`
	Updated time.Time       `json:"updated_at"`
}

type ScrapeResult struct {
	ID      int64           `json:"id"`
	JobID   int64           `json:"job_id"`
	Data    json.RawMessage `json:"result_data"`
	Created time.Time       `json:"created_at"`
}

// UpworkJob is one scraped job posting stored inside a result payload.
type UpworkJob struct {
	Title         string   `json:"title"`
	URL           string   `json:"url,omitempty"`
	Description   string   `json:"description"`
	Skills        []string `json:"skills"`
	JobType       string   `json:"job_type,omitempty"`
	Budget        string   `json:"budget,omitempty"`
	HourlyRate    string   `json:"hourly_rate,omitempty"`
	Experience    string   `json:"experience_level,omitempty"`
	Posted        string   `json:"posted,omitempty"`
	ClientCountry string   `json:"client_country,omitempty"`
	Summary       string   `json:"summary,omitempty"`
	LeadMessage   string   `json:"lead_message,omitempty"`
}

// Scrape log types.
const (
	LogInfo  = "info"
	LogError = "error"
	LogDebug = "debug"
)

type ScrapeLog struct {
	ID      int64     `json:"id"`
	JobID   int64     `json:"job_id"`
	Message string    `json:"log_message"`
	Type    string    `json:"log_type"`
	Created time.Time `json:"created_at"`
}

type Schema struct {
	ID          int64  `json:"id"`
	Name        string `json:"name"`
	Version     string `json:"version"`
	Description string `json:"description,omitempty"`
	SchemaJSON  string `json:"schema_json"`
	Created     int64  `json:"created"`
	Updated     int64  `json:"updated"`
}

type Template struct {
	ID          int64   `json:"id"`
	Name        string  `json:"name"`
	Version     string  `json:"version"`
	TemplateTxt string  `json:"template_text"`
	SchemaName  *string `json:"schema_name,omitempty"`
	Metadata    *string `json:"metadata,omitempty"`
	Created     int64   `json:"created"`
	Updated     int64   `json:"updated"`
}

type BackgroundJob struct {
	ID          int64           `json:"id"`
	Type        string          `json:"type"`
	Payload     json.RawMessage `json:"payload"`
	Status      string          `json:"status"`
	Attempts    int             `json:"attempts"`
	MaxAttempts int             `json:"max_attempts"`
	Priority    int             `json:"priority"`
	ScheduledAt time.Time       `json:"scheduled_at"`
	NextTryAt   *time.Time      `json:"next_try_at,omitempty"`
	LastError   string          `json:"last_error,omitempty"`
	Created     time.Time       `json:"created"`
	Updated     time.Time       `json:"updated"`
}
