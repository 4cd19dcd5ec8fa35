package projects_test

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/garnizeh/leadscout/internal/ai"
	"github.com/garnizeh/leadscout/internal/apperr"
	"github.com/garnizeh/leadscout/internal/models"
	"github.com/garnizeh/leadscout/internal/projects"
	"github.com/garnizeh/leadscout/internal/repository/sqlite"
	"github.com/garnizeh/leadscout/internal/testutil"
)

type fakeGen struct {
	questions []models.AIQuestion
	report    string
	err       error
	briefs    []ai.ProjectBrief
}

func (f *fakeGen) GenerateQuestions(ctx context.Context, brief ai.ProjectBrief) ([]models.AIQuestion, error) {
	f.briefs = append(f.briefs, brief)
	return f.questions, f.err
}

func (f *fakeGen) GenerateReport(ctx context.Context, brief ai.ProjectBrief) (string, error) {
	f.briefs = append(f.briefs, brief)
	return f.report, f.err
}

type fixture struct {
	repo *sqlite.SQLiteRepo
	gen  *fakeGen
	svc  *projects.Service
	user *models.User
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	repo := testutil.NewRepo(t)
	gen := &fakeGen{}
	return &fixture{
		repo: repo,
		gen:  gen,
		svc:  projects.NewService(repo, gen, testutil.Logger()),
		user: testutil.CreateUser(t, repo, "owner@example.com"),
	}
}

// projectOfType creates a project of the named seeded type.
func (f *fixture) projectOfType(t *testing.T, typeName string) *models.Project {
	t.Helper()
	types, err := f.svc.ProjectTypes(context.Background())
	require.NoError(t, err)
	for _, pt := range types {
		if pt.Name == typeName {
			p, err := f.svc.Create(context.Background(), f.user.ID, projects.CreateRequest{Name: "Shop", Description: "online store", ProjectTypeID: pt.ID})
			require.NoError(t, err)
			return p
		}
	}
	t.Fatalf("project type %q not seeded", typeName)
	return nil
}

func TestCatalog(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	types, err := f.svc.ProjectTypes(ctx)
	require.NoError(t, err)
	assert.Len(t, types, 4)

	statuses, err := f.svc.Statuses(ctx)
	require.NoError(t, err)
	assert.Len(t, statuses, 4)
}

func TestCreate(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	p := f.projectOfType(t, "Web Application")
	assert.Equal(t, "Shop", p.Name)
	assert.Equal(t, "Web Application", p.ProjectType)
	assert.Equal(t, "new", p.Status)
	assert.True(t, p.Enabled)
	assert.Equal(t, f.user.ID, p.UserID)

	_, err := f.svc.Create(ctx, f.user.ID, projects.CreateRequest{Name: " ", ProjectTypeID: 1})
	assert.ErrorIs(t, err, apperr.ErrValidation)
	assert.Contains(t, apperr.FieldsOf(err), "name")

	_, err = f.svc.Create(ctx, f.user.ID, projects.CreateRequest{Name: "x", ProjectTypeID: 999})
	assert.ErrorIs(t, err, apperr.ErrValidation)
	assert.Contains(t, apperr.FieldsOf(err), "project_type_id")

	_, err = f.svc.Create(ctx, f.user.ID, projects.CreateRequest{Name: "x", ProjectTypeID: 1, StatusID: 999})
	assert.Contains(t, apperr.FieldsOf(err), "status_id")
}

func TestGetAndRemove(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	p := f.projectOfType(t, "Other")

	other := testutil.CreateUser(t, f.repo, "intruder@example.com")
	_, err := f.svc.Get(ctx, other.ID, p.ID)
	assert.ErrorIs(t, err, apperr.ErrNotFound, "projects are private to their owner")
	assert.ErrorIs(t, f.svc.Remove(ctx, other.ID, p.ID), apperr.ErrNotFound)

	list, err := f.svc.List(ctx, f.user.ID)
	require.NoError(t, err)
	require.Len(t, list, 1)

	require.NoError(t, f.svc.Remove(ctx, f.user.ID, p.ID))
	_, err = f.svc.Get(ctx, f.user.ID, p.ID)
	assert.ErrorIs(t, err, apperr.ErrNotFound)

	list, err = f.svc.List(ctx, f.user.ID)
	require.NoError(t, err)
	assert.Empty(t, list)
}

func TestQuestionnaire(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	p := f.projectOfType(t, "Data & AI")

	first, err := f.svc.NextQuestion(ctx, f.user.ID, p.ID)
	require.NoError(t, err)
	require.NotNil(t, first)
	assert.Equal(t, projects.KindPredefined, first.QuestionType)
	assert.Equal(t, "Which data sources are available?", first.Text)

	ans, err := f.svc.AnswerQuestion(ctx, f.user.ID, projects.AnswerRequest{QuestionID: first.ID, ProjectID: p.ID, Text: " Postgres "})
	require.NoError(t, err)
	assert.Equal(t, "Postgres", ans.Text)
	require.NotNil(t, ans.Next)
	assert.Equal(t, "What decision should the model support?", ans.Next.Text)

	// Answering again replaces the earlier answer.
	_, err = f.svc.AnswerQuestion(ctx, f.user.ID, projects.AnswerRequest{QuestionID: first.ID, ProjectID: p.ID, Text: "Postgres and S3"})
	require.NoError(t, err)
	answers, err := f.repo.ListAnswers(ctx, f.user.ID, p.ID)
	require.NoError(t, err)
	require.Len(t, answers, 1)
	assert.Equal(t, "Postgres and S3", answers[0].Text)

	second := ans.Next
	ans, err = f.svc.AnswerQuestion(ctx, f.user.ID, projects.AnswerRequest{QuestionID: second.ID, ProjectID: p.ID, Text: "Churn"})
	require.NoError(t, err)
	assert.Nil(t, ans.Next)

	f.gen.questions = []models.AIQuestion{{Text: "Which cloud do you use?", Description: "hosting"}}
	generated, err := f.svc.GenerateAIQuestions(ctx, f.user.ID, p.ID)
	require.NoError(t, err)
	require.Len(t, generated, 1)
	assert.NotZero(t, generated[0].ID)
	assert.Equal(t, p.ID, generated[0].ProjectID)
	require.Len(t, f.gen.briefs, 1)
	assert.Len(t, f.gen.briefs[0].Answers, 2)
	assert.Equal(t, "Data & AI", f.gen.briefs[0].ProjectType)

	next, err := f.svc.NextQuestion(ctx, f.user.ID, p.ID)
	require.NoError(t, err)
	require.NotNil(t, next)
	assert.Equal(t, projects.KindAI, next.QuestionType)
	assert.Equal(t, generated[0].ID, next.ID)

	ans, err = f.svc.AnswerQuestion(ctx, f.user.ID, projects.AnswerRequest{QuestionID: next.ID, ProjectID: p.ID, Text: "AWS", QuestionType: projects.KindAI})
	require.NoError(t, err)
	assert.Nil(t, ans.Next)

	next, err = f.svc.NextQuestion(ctx, f.user.ID, p.ID)
	require.NoError(t, err)
	assert.Nil(t, next)

	list, err := f.svc.AIQuestions(ctx, f.user.ID, p.ID)
	require.NoError(t, err)
	assert.Len(t, list, 1)
}

func TestAnswerQuestion_Errors(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	p := f.projectOfType(t, "Other")

	_, err := f.svc.AnswerQuestion(ctx, f.user.ID, projects.AnswerRequest{ProjectID: p.ID, Text: "x"})
	assert.ErrorIs(t, err, apperr.ErrValidation)
	assert.Contains(t, apperr.FieldsOf(err), "question_id")

	_, err = f.svc.AnswerQuestion(ctx, f.user.ID, projects.AnswerRequest{QuestionID: 1, ProjectID: p.ID, Text: "x", QuestionType: "bogus"})
	assert.Contains(t, apperr.FieldsOf(err), "question_type")

	// Question 1 belongs to Web Application.
	_, err = f.svc.AnswerQuestion(ctx, f.user.ID, projects.AnswerRequest{QuestionID: 1, ProjectID: p.ID, Text: "x"})
	assert.ErrorIs(t, err, apperr.ErrNotFound)

	_, err = f.svc.AnswerQuestion(ctx, f.user.ID, projects.AnswerRequest{QuestionID: 77, ProjectID: p.ID, Text: "x", QuestionType: projects.KindAI})
	assert.ErrorIs(t, err, apperr.ErrNotFound)
}

func TestGenerateReport(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	p := f.projectOfType(t, "Other")

	_, _, err := f.svc.GenerateReport(ctx, f.user.ID, p.ID)
	assert.ErrorIs(t, err, apperr.ErrValidation, "unanswered questions block the report")
	assert.Empty(t, f.gen.briefs)

	_, err = f.svc.LatestReport(ctx, f.user.ID, p.ID)
	assert.ErrorIs(t, err, apperr.ErrNotFound)

	q, err := f.svc.NextQuestion(ctx, f.user.ID, p.ID)
	require.NoError(t, err)
	_, err = f.svc.AnswerQuestion(ctx, f.user.ID, projects.AnswerRequest{QuestionID: q.ID, ProjectID: p.ID, Text: "A shop"})
	require.NoError(t, err)

	f.gen.report = "<h1>Shop</h1>"
	rep, proj, err := f.svc.GenerateReport(ctx, f.user.ID, p.ID)
	require.NoError(t, err)
	assert.NotZero(t, rep.ID)
	assert.Equal(t, "<h1>Shop</h1>", rep.Report)
	assert.Equal(t, p.ID, proj.ID)

	latest, err := f.svc.LatestReport(ctx, f.user.ID, p.ID)
	require.NoError(t, err)
	assert.Equal(t, rep.ID, latest.ID)

	f.gen.err = apperr.New(apperr.ErrUpstream, "AI provider request failed.")
	_, _, err = f.svc.GenerateReport(ctx, f.user.ID, p.ID)
	assert.True(t, errors.Is(err, apperr.ErrUpstream))
}
