package ai_test

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/garnizeh/leadscout/internal/ai"
	"github.com/garnizeh/leadscout/internal/models"
	"github.com/garnizeh/leadscout/internal/testutil"
	"github.com/garnizeh/leadscout/pkg/llm"
)

func newSummarizer(t *testing.T, f *fakeLLM) *ai.Summarizer {
	t.Helper()
	router, err := llm.NewRouter("anthropic", []llm.Provider{f.provider("anthropic")}, llm.WithLogger(testutil.Logger()))
	require.NoError(t, err)
	s, err := ai.NewSummarizer(context.Background(), router, testutil.NewRepo(t), "anthropic", "claude-sonnet-4-20250514", testutil.Logger())
	require.NoError(t, err)
	return s
}

func TestSummarizer_Enrich(t *testing.T) {
	f := &fakeLLM{reply: "  generated text \n"}
	s := newSummarizer(t, f)

	jobs := []models.UpworkJob{
		{Title: "Go API", Description: strings.Repeat("a", 5000), Skills: []string{"Go", "SQL"}, ClientCountry: "Germany", Budget: "$500"},
		{},
	}
	s.Enrich(context.Background(), jobs, true)

	for _, j := range jobs {
		assert.Equal(t, "generated text", j.Summary)
		assert.Equal(t, "generated text", j.LeadMessage)
	}
	require.Len(t, f.reqs, 4)

	summary := f.reqs[0]
	assert.Equal(t, 200, summary.MaxTokens)
	assert.Equal(t, "claude-sonnet-4-20250514", summary.Model)
	assert.Contains(t, summary.Prompt, "Go, SQL")
	assert.Contains(t, summary.Prompt, strings.Repeat("a", 3000))
	assert.NotContains(t, summary.Prompt, strings.Repeat("a", 3001))

	lead := f.reqs[1]
	assert.Equal(t, 300, lead.MaxTokens)
	assert.Contains(t, lead.Prompt, "Germany")
	assert.Contains(t, lead.Prompt, "Budget: $500")
	assert.NotContains(t, lead.Prompt, strings.Repeat("a", 2001))

	assert.Contains(t, f.reqs[2].Prompt, "No Description")
}

func TestSummarizer_SummaryOnly(t *testing.T) {
	f := &fakeLLM{reply: "ok"}
	s := newSummarizer(t, f)

	jobs := []models.UpworkJob{{Title: "x", HourlyRate: "$40-$60"}}
	s.Enrich(context.Background(), jobs, false)
	assert.Equal(t, "ok", jobs[0].Summary)
	assert.Empty(t, jobs[0].LeadMessage)
	assert.Len(t, f.reqs, 1)

	assert.Contains(t, s.GenerateLeadMessage(context.Background(), &jobs[0]), "ok")
	assert.Contains(t, f.reqs[1].Prompt, "Hourly rate: $40-$60")
}

func TestSummarizer_Fallbacks(t *testing.T) {
	s := newSummarizer(t, &fakeLLM{err: errors.New("overloaded")})
	job := &models.UpworkJob{Title: "t"}

	assert.Equal(t, ai.FallbackSummary, s.SummarizeJob(context.Background(), job))
	assert.Equal(t, "Error generating summary.", ai.FallbackSummary)
	assert.Equal(t, "Error generating lead message.", s.GenerateLeadMessage(context.Background(), job))
}

func TestNewSummarizer_MissingTemplate(t *testing.T) {
	repo := testutil.NewRepo(t)
	require.NoError(t, repo.DeleteTemplate(context.Background(), "lead_message", "v1"))
	router, err := llm.NewRouter("anthropic", []llm.Provider{(&fakeLLM{}).provider("anthropic")})
	require.NoError(t, err)

	_, err = ai.NewSummarizer(context.Background(), router, repo, "", "", testutil.Logger())
	assert.Error(t, err)
}
