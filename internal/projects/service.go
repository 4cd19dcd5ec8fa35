// Package projects manages a user's projects and walks them through the
// predefined and AI generated questionnaires.
package projects

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/garnizeh/leadscout/internal/ai"
	"github.com/garnizeh/leadscout/internal/apperr"
	"github.com/garnizeh/leadscout/internal/models"
	"github.com/garnizeh/leadscout/internal/validation"
	"github.com/garnizeh/leadscout/pkg/repository"
)

// Question kinds accepted by AnswerQuestion.
const (
	KindPredefined = "predefined"
	KindAI         = "ai"

	defaultStatus = "new"
)

// Store is the persistence the service needs; *sqlite.SQLiteRepo satisfies it.
type Store interface {
	repository.CatalogRepo
	repository.ProjectRepo
	repository.QuestionRepo
	repository.AIQuestionRepo
	repository.ReportRepo
}

// Generator is satisfied by *ai.Service.
type Generator interface {
	GenerateQuestions(ctx context.Context, brief ai.ProjectBrief) ([]models.AIQuestion, error)
	GenerateReport(ctx context.Context, brief ai.ProjectBrief) (string, error)
}

type CreateRequest struct {
	Name          string `json:"name" validate:"required,max=200"`
	Description   string `json:"description" validate:"max=5000"`
	ProjectTypeID int64  `json:"project_type_id" validate:"required,gt=0"`
	StatusID      int64  `json:"status_id" validate:"gte=0"`
}

type AnswerRequest struct {
	QuestionID   int64  `json:"question_id" validate:"required,gt=0"`
	ProjectID    int64  `json:"project_id" validate:"required,gt=0"`
	Text         string `json:"text" validate:"required,max=10000"`
	QuestionType string `json:"question_type" validate:"omitempty,oneof=predefined ai"`
}

// NextQuestion is the next unanswered question of a project.
type NextQuestion struct {
	ID           int64  `json:"id"`
	Text         string `json:"text"`
	Description  string `json:"description"`
	QuestionType string `json:"question_type"`
	InputType    string `json:"input_type,omitempty"`
}

// Answered is the stored answer plus what to ask next; Next is nil once
// every question is answered.
type Answered struct {
	ID           int64         `json:"id"`
	QuestionID   int64         `json:"question_id"`
	ProjectID    int64         `json:"project_id"`
	QuestionType string        `json:"question_type"`
	Text         string        `json:"text"`
	Next         *NextQuestion `json:"next_question"`
}

type Service struct {
	store  Store
	ai     Generator
	logger *slog.Logger
}

func NewService(store Store, gen Generator, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{store: store, ai: gen, logger: logger}
}

func (s *Service) ProjectTypes(ctx context.Context) ([]models.ProjectType, error) {
	return s.store.ListProjectTypes(ctx)
}

func (s *Service) Statuses(ctx context.Context) ([]models.Status, error) {
	return s.store.ListStatuses(ctx)
}

func (s *Service) List(ctx context.Context, userID int64) ([]models.Project, error) {
	out, err := s.store.ListProjectsByUser(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("list projects: %w", err)
	}
	return out, nil
}

func (s *Service) Create(ctx context.Context, userID int64, req CreateRequest) (*models.Project, error) {
	req.Name = strings.TrimSpace(req.Name)
	if err := validation.Struct(req); err != nil {
		return nil, err
	}

	pt, err := s.store.GetProjectType(ctx, req.ProjectTypeID)
	if err != nil {
		return nil, fmt.Errorf("get project type: %w", err)
	}
	if pt == nil {
		return nil, apperr.Validation("Invalid request.", map[string]string{"project_type_id": "Unknown project type"})
	}

	var st *models.Status
	if req.StatusID > 0 {
		st, err = s.store.GetStatus(ctx, req.StatusID)
	} else {
		st, err = s.store.GetStatusByName(ctx, defaultStatus)
	}
	if err != nil {
		return nil, fmt.Errorf("get status: %w", err)
	}
	if st == nil {
		return nil, apperr.Validation("Invalid request.", map[string]string{"status_id": "Unknown status"})
	}

	p := &models.Project{
		UserID:        userID,
		ProjectTypeID: pt.ID,
		StatusID:      st.ID,
		Name:          req.Name,
		Description:   req.Description,
	}
	id, err := s.store.CreateProject(ctx, p)
	if err != nil {
		return nil, fmt.Errorf("create project: %w", err)
	}
	s.logger.Info("projects: created", slog.Int64("project_id", id), slog.Int64("user_id", userID))
	return s.store.GetProject(ctx, id)
}

// Get returns an enabled project owned by userID.
func (s *Service) Get(ctx context.Context, userID, id int64) (*models.Project, error) {
	p, err := s.store.GetProject(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("get project: %w", err)
	}
	if p == nil || p.UserID != userID || !p.Enabled {
		return nil, apperr.New(apperr.ErrNotFound, "Project not found.")
	}
	return p, nil
}

// Remove disables the project; it disappears from listings.
func (s *Service) Remove(ctx context.Context, userID, id int64) error {
	if _, err := s.Get(ctx, userID, id); err != nil {
		return err
	}
	if err := s.store.DisableProject(ctx, id); err != nil {
		return fmt.Errorf("disable project: %w", err)
	}
	return nil
}

// progress holds the questionnaire state of one project for one user.
type progress struct {
	predefined []models.Question
	answers    map[int64]models.Answer
	aiQs       []models.AIQuestion
	aiAnswers  map[int64]models.AIAnswer
}

func (s *Service) progress(ctx context.Context, userID int64, p *models.Project) (*progress, error) {
	qs, err := s.store.ListQuestionsByProjectType(ctx, p.ProjectTypeID)
	if err != nil {
		return nil, fmt.Errorf("list questions: %w", err)
	}
	answers, err := s.store.ListAnswers(ctx, userID, p.ID)
	if err != nil {
		return nil, fmt.Errorf("list answers: %w", err)
	}
	aiQs, err := s.store.ListAIQuestionsByProject(ctx, p.ID)
	if err != nil {
		return nil, fmt.Errorf("list ai questions: %w", err)
	}
	aiAnswers, err := s.store.ListAIAnswers(ctx, userID, p.ID)
	if err != nil {
		return nil, fmt.Errorf("list ai answers: %w", err)
	}

	pr := &progress{
		predefined: qs,
		answers:    make(map[int64]models.Answer, len(answers)),
		aiQs:       aiQs,
		aiAnswers:  make(map[int64]models.AIAnswer, len(aiAnswers)),
	}
	for _, a := range answers {
		pr.answers[a.QuestionID] = a
	}
	for _, a := range aiAnswers {
		pr.aiAnswers[a.AIQuestionID] = a
	}
	return pr, nil
}

// next returns predefined questions first, then AI questions.
func (pr *progress) next() *NextQuestion {
	for _, q := range pr.predefined {
		if _, ok := pr.answers[q.ID]; !ok {
			return &NextQuestion{ID: q.ID, Text: q.Text, Description: q.Description, QuestionType: KindPredefined, InputType: q.QuestionType}
		}
	}
	for _, q := range pr.aiQs {
		if _, ok := pr.aiAnswers[q.ID]; !ok {
			return &NextQuestion{ID: q.ID, Text: q.Text, Description: q.Description, QuestionType: KindAI}
		}
	}
	return nil
}

func (pr *progress) qa() []models.QA {
	out := make([]models.QA, 0, len(pr.answers)+len(pr.aiAnswers))
	for _, q := range pr.predefined {
		if a, ok := pr.answers[q.ID]; ok {
			out = append(out, models.QA{Question: q.Text, Answer: a.Text})
		}
	}
	for _, q := range pr.aiQs {
		if a, ok := pr.aiAnswers[q.ID]; ok {
			out = append(out, models.QA{Question: q.Text, Answer: a.Text})
		}
	}
	return out
}

// NextQuestion returns nil when every question has been answered.
func (s *Service) NextQuestion(ctx context.Context, userID, projectID int64) (*NextQuestion, error) {
	p, err := s.Get(ctx, userID, projectID)
	if err != nil {
		return nil, err
	}
	pr, err := s.progress(ctx, userID, p)
	if err != nil {
		return nil, err
	}
	return pr.next(), nil
}

// AnswerQuestion stores or replaces the caller's answer.
func (s *Service) AnswerQuestion(ctx context.Context, userID int64, req AnswerRequest) (*Answered, error) {
	req.Text = strings.TrimSpace(req.Text)
	if req.QuestionType == "" {
		req.QuestionType = KindPredefined
	}
	if err := validation.Struct(req); err != nil {
		return nil, err
	}
	p, err := s.Get(ctx, userID, req.ProjectID)
	if err != nil {
		return nil, err
	}

	var id int64
	switch req.QuestionType {
	case KindAI:
		q, err := s.store.GetAIQuestion(ctx, req.QuestionID)
		if err != nil {
			return nil, fmt.Errorf("get ai question: %w", err)
		}
		if q == nil || q.ProjectID != p.ID {
			return nil, apperr.New(apperr.ErrNotFound, "Question not found.")
		}
		id, err = s.store.UpsertAIAnswer(ctx, &models.AIAnswer{UserID: userID, AIQuestionID: q.ID, Text: req.Text})
		if err != nil {
			return nil, fmt.Errorf("store ai answer: %w", err)
		}
	default:
		q, err := s.store.GetQuestion(ctx, req.QuestionID)
		if err != nil {
			return nil, fmt.Errorf("get question: %w", err)
		}
		if q == nil || !q.Enabled || q.ProjectTypeID != p.ProjectTypeID {
			return nil, apperr.New(apperr.ErrNotFound, "Question not found.")
		}
		id, err = s.store.UpsertAnswer(ctx, &models.Answer{UserID: userID, QuestionID: q.ID, ProjectID: p.ID, Text: req.Text})
		if err != nil {
			return nil, fmt.Errorf("store answer: %w", err)
		}
	}

	pr, err := s.progress(ctx, userID, p)
	if err != nil {
		return nil, err
	}
	return &Answered{
		ID:           id,
		QuestionID:   req.QuestionID,
		ProjectID:    p.ID,
		QuestionType: req.QuestionType,
		Text:         req.Text,
		Next:         pr.next(),
	}, nil
}

func (s *Service) brief(p *models.Project, pr *progress) ai.ProjectBrief {
	return ai.ProjectBrief{Project: p, ProjectType: p.ProjectType, Answers: pr.qa()}
}

// GenerateReport requires every question to be answered, asks the default
// provider for an HTML brief and stores it.
func (s *Service) GenerateReport(ctx context.Context, userID, projectID int64) (*models.ProjectReport, *models.Project, error) {
	p, err := s.Get(ctx, userID, projectID)
	if err != nil {
		return nil, nil, err
	}
	pr, err := s.progress(ctx, userID, p)
	if err != nil {
		return nil, nil, err
	}
	if pr.next() != nil {
		return nil, nil, apperr.New(apperr.ErrValidation, "All questions must be answered before generating a report.")
	}

	html, err := s.ai.GenerateReport(ctx, s.brief(p, pr))
	if err != nil {
		return nil, nil, err
	}
	rep := &models.ProjectReport{ProjectID: p.ID, Report: html}
	if _, err := s.store.CreateReport(ctx, rep); err != nil {
		return nil, nil, fmt.Errorf("store report: %w", err)
	}
	s.logger.Info("projects: report generated", slog.Int64("project_id", p.ID), slog.Int64("report_id", rep.ID))
	return rep, p, nil
}

// LatestReport returns the newest stored report of a project.
func (s *Service) LatestReport(ctx context.Context, userID, projectID int64) (*models.ProjectReport, error) {
	if _, err := s.Get(ctx, userID, projectID); err != nil {
		return nil, err
	}
	rep, err := s.store.LatestReport(ctx, projectID)
	if err != nil {
		return nil, fmt.Errorf("latest report: %w", err)
	}
	if rep == nil {
		return nil, apperr.New(apperr.ErrNotFound, "No report generated yet.")
	}
	return rep, nil
}

func (s *Service) AIQuestions(ctx context.Context, userID, projectID int64) ([]models.AIQuestion, error) {
	if _, err := s.Get(ctx, userID, projectID); err != nil {
		return nil, err
	}
	out, err := s.store.ListAIQuestionsByProject(ctx, projectID)
	if err != nil {
		return nil, fmt.Errorf("list ai questions: %w", err)
	}
	return out, nil
}

// GenerateAIQuestions asks the default provider for follow-up questions
// based on the answers so far and stores them.
func (s *Service) GenerateAIQuestions(ctx context.Context, userID, projectID int64) ([]models.AIQuestion, error) {
	p, err := s.Get(ctx, userID, projectID)
	if err != nil {
		return nil, err
	}
	pr, err := s.progress(ctx, userID, p)
	if err != nil {
		return nil, err
	}

	generated, err := s.ai.GenerateQuestions(ctx, s.brief(p, pr))
	if err != nil {
		return nil, err
	}
	out := make([]models.AIQuestion, 0, len(generated))
	for _, q := range generated {
		q.ProjectID = p.ID
		if _, err := s.store.CreateAIQuestion(ctx, &q); err != nil {
			return nil, fmt.Errorf("store ai question: %w", err)
		}
		out = append(out, q)
	}
	s.logger.Info("projects: ai questions generated", slog.Int64("project_id", p.ID), slog.Int("count", len(out)))
	return out, nil
}
