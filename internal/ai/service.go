// Package ai renders prompt templates, forwards them to language model
// providers and checks structured replies against stored JSON schemas.
package ai

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/garnizeh/leadscout/internal/apperr"
	"github.com/garnizeh/leadscout/internal/models"
	"github.com/garnizeh/leadscout/internal/validation"
	"github.com/garnizeh/leadscout/pkg/llm"
	"github.com/garnizeh/leadscout/pkg/repository"
)

// Completer is satisfied by *llm.Router.
type Completer interface {
	Complete(ctx context.Context, provider string, req llm.Request) (llm.Response, error)
	Default() string
}

const (
	questionsTemplate = "ai_questions"
	questionsSchema   = "ai_questions"
	reportTemplate    = "report"
	defaultVersion    = "v1"
	maxGenerated      = 5
)

type PromptRequest struct {
	Provider  string `json:"provider" validate:"omitempty,oneof=openai anthropic ollama"`
	Model     string `json:"model" validate:"max=100"`
	System    string `json:"system" validate:"max=4000"`
	Prompt    string `json:"prompt" validate:"required"`
	MaxTokens int    `json:"max_tokens" validate:"gte=0,lte=32000"`
}

// ProjectBrief is the data the question and report templates render.
type ProjectBrief struct {
	Project     *models.Project
	ProjectType string
	Answers     []models.QA
	Limit       int
}

type Service struct {
	llm       Completer
	templates repository.TemplateRepo
	schemas   *Loader
	logger    *slog.Logger
}

func NewService(c Completer, templates repository.TemplateRepo, schemas *Loader, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{llm: c, templates: templates, schemas: schemas, logger: logger}
}

// Schemas exposes the loader so admin handlers can reload it.
func (s *Service) Schemas() *Loader { return s.schemas }

// Prompt forwards a free-form prompt and returns the first completion.
func (s *Service) Prompt(ctx context.Context, req PromptRequest) (llm.Response, error) {
	if err := validation.Struct(req); err != nil {
		return llm.Response{}, err
	}
	return s.complete(ctx, req.Provider, llm.Request{
		Model:     req.Model,
		System:    req.System,
		Prompt:    req.Prompt,
		MaxTokens: req.MaxTokens,
	})
}

func (s *Service) complete(ctx context.Context, provider string, req llm.Request) (llm.Response, error) {
	resp, err := s.llm.Complete(ctx, provider, req)
	switch {
	case err == nil:
		return resp, nil
	case errors.Is(err, llm.ErrUnknownProvider):
		return llm.Response{}, apperr.Validation("Invalid request.", map[string]string{"provider": "Unknown provider"})
	case errors.Is(err, llm.ErrEmptyPrompt):
		return llm.Response{}, apperr.Validation("Invalid request.", map[string]string{"prompt": "This field is required"})
	default:
		return llm.Response{}, apperr.Wrap(apperr.ErrUpstream, "AI provider request failed.", err)
	}
}

// RenderTemplate renders the stored template name:version with data.
func (s *Service) RenderTemplate(ctx context.Context, name, version string, data any) (string, error) {
	t, err := s.templates.GetTemplate(ctx, name, version)
	if err != nil {
		return "", fmt.Errorf("get template %s:%s: %w", name, version, err)
	}
	if t == nil {
		return "", apperr.Newf(apperr.ErrNotFound, "Template %s:%s not found.", name, version)
	}
	out, err := Render(t.TemplateTxt, data)
	if err != nil {
		return "", apperr.Wrap(apperr.ErrInternal, "Failed to render prompt.", err)
	}
	return out, nil
}

type generatedQuestions struct {
	Questions []struct {
		Text        string `json:"text"`
		Description string `json:"description"`
	} `json:"questions"`
}

// GenerateQuestions asks the default provider for follow-up questions about
// a project. Replies that do not match the ai_questions schema are rejected
// as upstream failures.
func (s *Service) GenerateQuestions(ctx context.Context, brief ProjectBrief) ([]models.AIQuestion, error) {
	if brief.Limit <= 0 {
		brief.Limit = maxGenerated
	}
	prompt, err := s.RenderTemplate(ctx, questionsTemplate, defaultVersion, brief)
	if err != nil {
		return nil, err
	}

	resp, err := s.complete(ctx, "", llm.Request{System: "You reply with JSON only.", Prompt: prompt})
	if err != nil {
		return nil, err
	}

	doc := extractJSON(resp.Text, '{', '}')
	if doc == "" {
		return nil, apperr.Wrap(apperr.ErrUpstream, "AI provider returned an unexpected reply.", errors.New("no JSON object in reply"))
	}
	if err := s.schemas.Validate(ctx, questionsSchema, defaultVersion, []byte(doc)); err != nil {
		s.logger.Warn("ai: generated questions rejected", slog.Any("err", err))
		return nil, apperr.Wrap(apperr.ErrUpstream, "AI provider returned an unexpected reply.", err)
	}

	var gq generatedQuestions
	if err := json.Unmarshal([]byte(doc), &gq); err != nil {
		return nil, apperr.Wrap(apperr.ErrUpstream, "AI provider returned an unexpected reply.", err)
	}

	out := make([]models.AIQuestion, 0, len(gq.Questions))
	for _, q := range gq.Questions {
		text := strings.TrimSpace(q.Text)
		if text == "" {
			continue
		}
		out = append(out, models.AIQuestion{ProjectID: brief.Project.ID, Text: text, Description: strings.TrimSpace(q.Description)})
		if len(out) == brief.Limit {
			break
		}
	}
	return out, nil
}

// GenerateReport renders the report template and returns the provider's HTML.
func (s *Service) GenerateReport(ctx context.Context, brief ProjectBrief) (string, error) {
	prompt, err := s.RenderTemplate(ctx, reportTemplate, defaultVersion, brief)
	if err != nil {
		return "", err
	}
	resp, err := s.complete(ctx, "", llm.Request{Prompt: prompt})
	if err != nil {
		return "", err
	}
	return stripFence(resp.Text), nil
}

// stripFence removes a surrounding markdown code fence.
func stripFence(s string) string {
	s = strings.TrimSpace(s)
	if !strings.HasPrefix(s, "```") {
		return s
	}
	s = strings.TrimPrefix(s, "```")
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		s = s[i+1:]
	}
	return strings.TrimSpace(strings.TrimSuffix(strings.TrimSpace(s), "```"))
}
