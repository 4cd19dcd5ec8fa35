package api_test

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"regexp"
	"sync"
	"testing"
	"time"

	"github.com/garnizeh/leadscout/api"
	"github.com/garnizeh/leadscout/internal/ai"
	"github.com/garnizeh/leadscout/internal/auth"
	"github.com/garnizeh/leadscout/internal/jobs"
	"github.com/garnizeh/leadscout/internal/mail"
	"github.com/garnizeh/leadscout/internal/metrics"
	"github.com/garnizeh/leadscout/internal/projects"
	"github.com/garnizeh/leadscout/internal/repository/sqlite"
	"github.com/garnizeh/leadscout/internal/scrape"
	"github.com/garnizeh/leadscout/internal/signup"
	"github.com/garnizeh/leadscout/internal/testutil"
	"github.com/garnizeh/leadscout/pkg/llm"
)

const testSecret = "test-secret"

// fakeLLM answers every completion with reply, or fails with err.
type fakeLLM struct {
	mu    sync.Mutex
	reply string
	err   error
	last  llm.Request
}

func (f *fakeLLM) set(reply string, err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.reply, f.err = reply, err
}

func (f *fakeLLM) complete(_ context.Context, req llm.Request) (llm.Response, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.last = req
	if f.err != nil {
		return llm.Response{}, f.err
	}
	return llm.Response{Model: "fake-1", Text: f.reply}, nil
}

type server struct {
	t       *testing.T
	handler http.Handler
	repo    *sqlite.SQLiteRepo
	mailer  *mail.Recorder
	llm     *fakeLLM
	metrics *metrics.Metrics
}

func newServer(t *testing.T) *server {
	t.Helper()
	api.SetLogger(testutil.Logger())
	ctx := context.Background()
	logger := testutil.Logger()

	repo := testutil.NewRepo(t)
	rec := &mail.Recorder{}
	m := metrics.New()
	issuer := auth.NewIssuer(testSecret, time.Hour, auth.NewStoreRevoker(repo))

	loader, err := ai.NewLoader(ctx, repo)
	if err != nil {
		t.Fatalf("load schemas: %v", err)
	}
	f := &fakeLLM{reply: "ok"}
	router, err := llm.NewRouter("openai", []llm.Provider{
		llm.ProviderFunc{ProviderName: "openai", Fn: f.complete},
		llm.ProviderFunc{ProviderName: "anthropic", Fn: f.complete},
	}, llm.WithLogger(logger))
	if err != nil {
		t.Fatalf("llm router: %v", err)
	}
	aiSvc := ai.NewService(router, repo, loader, logger)

	handler := api.SetupRoutes(api.Deps{
		Version:   "1.2.3",
		BuildTime: "2025-08-24T00:00:00Z",
		DB:        nil,
		Tokens:    issuer,
		Signup:    signup.NewService(repo, repo, rec, issuer, signup.Options{Metrics: m, Logger: logger}),
		Projects:  projects.NewService(repo, aiSvc, logger),
		AI:        aiSvc,
		Scrape:    scrape.NewService(repo, repo, loader, jobs.NopNotifier{}, m, logger),
		Schemas:   repo,
		Templates: repo,
		Metrics:   m,
	})
	return &server{t: t, handler: handler, repo: repo, mailer: rec, llm: f, metrics: m}
}

// do sends a JSON request; body may be a string sent verbatim.
func (s *server) do(method, path, token string, body any) (int, []byte) {
	s.t.Helper()
	var reader io.Reader
	switch b := body.(type) {
	case nil:
	case string:
		reader = bytes.NewBufferString(b)
	default:
		raw, err := json.Marshal(b)
		if err != nil {
			s.t.Fatalf("marshal body: %v", err)
		}
		reader = bytes.NewReader(raw)
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	s.handler.ServeHTTP(w, req)
	res := w.Result()
	defer res.Body.Close()
	data, _ := io.ReadAll(res.Body)
	return res.StatusCode, data
}

// expect fails the test unless the call answers want; it returns the body.
func (s *server) expect(want int, method, path, token string, body any) []byte {
	s.t.Helper()
	got, data := s.do(method, path, token, body)
	if got != want {
		s.t.Fatalf("%s %s: want %d got %d body=%s", method, path, want, got, data)
	}
	return data
}

// register creates an account through the direct signup endpoint and
// returns its token.
func (s *server) register(email string) string {
	s.t.Helper()
	data := s.expect(http.StatusCreated, http.MethodPost, "/signup/", "", map[string]string{
		"name": "Tester", "email": email, "password": "password123",
	})
	var res struct {
		Token string `json:"token"`
	}
	decode(s.t, data, &res)
	if res.Token == "" {
		s.t.Fatalf("no token in %s", data)
	}
	return res.Token
}

var codeRe = regexp.MustCompile(`\b(\d{6})\b`)

func (s *server) lastCode() string {
	s.t.Helper()
	msg, ok := s.mailer.Last()
	if !ok {
		s.t.Fatal("no email sent")
	}
	m := codeRe.FindStringSubmatch(msg.Body)
	if len(m) != 2 {
		s.t.Fatalf("no code in %q", msg.Body)
	}
	return m[1]
}

func decode(t *testing.T, data []byte, v any) {
	t.Helper()
	if err := json.Unmarshal(data, v); err != nil {
		t.Fatalf("decode %s: %v", data, err)
	}
}

type detail struct {
	Detail string            `json:"detail"`
	Fields map[string]string `json:"fields"`
}

func detailOf(t *testing.T, data []byte) detail {
	t.Helper()
	var d detail
	decode(t, data, &d)
	return d
}

var errProvider = errors.New("provider down")
