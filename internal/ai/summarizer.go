package ai

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/garnizeh/leadscout/internal/models"
	"github.com/garnizeh/leadscout/pkg/llm"
	"github.com/garnizeh/leadscout/pkg/repository"
)

const (
	FallbackSummary     = "Error generating summary."
	FallbackLeadMessage = "Error generating lead message."

	summarySystem = "You are a helpful assistant that summarizes job postings concisely."
	leadSystem    = "You are an expert freelancer writing personalized, engaging proposal messages. Keep messages concise and genuine."
)

// Summarizer enriches scraped postings with a short summary and a first
// contact message. Provider failures never abort a scrape; they yield the
// fixed fallback strings.
type Summarizer struct {
	llm        Completer
	provider   string
	model      string
	summaryTpl string
	leadTpl    string
	logger     *slog.Logger
}

// NewSummarizer loads the job_summary and lead_message v1 templates.
func NewSummarizer(ctx context.Context, c Completer, templates repository.TemplateRepo, provider, model string, logger *slog.Logger) (*Summarizer, error) {
	if logger == nil {
		logger = slog.Default()
	}
	s := &Summarizer{llm: c, provider: provider, model: model, logger: logger}
	for name, dst := range map[string]*string{"job_summary": &s.summaryTpl, "lead_message": &s.leadTpl} {
		t, err := templates.GetTemplate(ctx, name, defaultVersion)
		if err != nil {
			return nil, fmt.Errorf("load template %s: %w", name, err)
		}
		if t == nil {
			return nil, fmt.Errorf("template %s:%s not found", name, defaultVersion)
		}
		*dst = t.TemplateTxt
	}
	return s, nil
}

type postingView struct {
	Title         string
	Skills        string
	Description   string
	ClientCountry string
	Budget        string
	HourlyRate    string
}

func view(job *models.UpworkJob, descLimit int) postingView {
	title := job.Title
	if title == "" {
		title = "No Title"
	}
	desc := job.Description
	if desc == "" {
		desc = "No Description"
	}
	return postingView{
		Title:         title,
		Skills:        strings.Join(job.Skills, ", "),
		Description:   truncate(desc, descLimit),
		ClientCountry: job.ClientCountry,
		Budget:        job.Budget,
		HourlyRate:    job.HourlyRate,
	}
}

func (s *Summarizer) SummarizeJob(ctx context.Context, job *models.UpworkJob) string {
	return s.ask(ctx, s.summaryTpl, summarySystem, view(job, 3000), 200, FallbackSummary)
}

func (s *Summarizer) GenerateLeadMessage(ctx context.Context, job *models.UpworkJob) string {
	return s.ask(ctx, s.leadTpl, leadSystem, view(job, 2000), 300, FallbackLeadMessage)
}

// Enrich fills Summary, and LeadMessage when leads is set, on every job.
func (s *Summarizer) Enrich(ctx context.Context, jobs []models.UpworkJob, leads bool) {
	s.logger.Info("summarizer: processing jobs", slog.Int("count", len(jobs)))
	for i := range jobs {
		jobs[i].Summary = s.SummarizeJob(ctx, &jobs[i])
		if leads {
			jobs[i].LeadMessage = s.GenerateLeadMessage(ctx, &jobs[i])
		}
	}
}

func (s *Summarizer) ask(ctx context.Context, tpl, system string, data postingView, maxTokens int, fallback string) string {
	prompt, err := Render(tpl, data)
	if err != nil {
		s.logger.Warn("summarizer: render failed", slog.String("title", data.Title), slog.Any("err", err))
		return fallback
	}
	resp, err := s.llm.Complete(ctx, s.provider, llm.Request{Model: s.model, System: system, Prompt: prompt, MaxTokens: maxTokens})
	if err != nil {
		s.logger.Warn("summarizer: completion failed", slog.String("title", data.Title), slog.Any("err", err))
		return fallback
	}
	return strings.TrimSpace(resp.Text)
}
