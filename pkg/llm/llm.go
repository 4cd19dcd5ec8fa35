// Package llm forwards prompts to hosted and local language model providers.
// Every provider takes a prompt and returns the first text completion.
package llm

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"time"
)

var (
	ErrUnknownProvider = errors.New("unknown llm provider")
	ErrEmptyPrompt     = errors.New("prompt is required")
	ErrNoCompletion    = errors.New("provider returned no completion")
)

type Request struct {
	Model     string
	System    string
	Prompt    string
	MaxTokens int
}

type Response struct {
	Provider string        `json:"provider"`
	Model    string        `json:"model"`
	Text     string        `json:"text"`
	Latency  time.Duration `json:"-"`
}

type Provider interface {
	Name() string
	Complete(ctx context.Context, req Request) (Response, error)
}

// ProviderFunc adapts a function to the Provider interface.
type ProviderFunc struct {
	ProviderName string
	Fn           func(ctx context.Context, req Request) (Response, error)
}

func (p ProviderFunc) Name() string { return p.ProviderName }

func (p ProviderFunc) Complete(ctx context.Context, req Request) (Response, error) {
	resp, err := p.Fn(ctx, req)
	if resp.Provider == "" {
		resp.Provider = p.ProviderName
	}
	return resp, err
}

// Observer is notified after every completion attempt.
type Observer interface {
	LLMRequest(provider string, err error)
}

// Router dispatches requests to a named provider, falling back to the
// default when no name is given.
type Router struct {
	providers map[string]Provider
	def       string
	timeout   time.Duration
	observer  Observer
	logger    *slog.Logger
}

type RouterOption func(*Router)

func WithTimeout(d time.Duration) RouterOption { return func(r *Router) { r.timeout = d } }

func WithObserver(o Observer) RouterOption { return func(r *Router) { r.observer = o } }

func WithLogger(l *slog.Logger) RouterOption {
	return func(r *Router) {
		if l != nil {
			r.logger = l
		}
	}
}

func NewRouter(def string, providers []Provider, opts ...RouterOption) (*Router, error) {
	r := &Router{
		providers: make(map[string]Provider, len(providers)),
		def:       def,
		logger:    slog.Default(),
	}
	for _, p := range providers {
		r.providers[p.Name()] = p
	}
	for _, o := range opts {
		o(r)
	}
	if _, ok := r.providers[def]; !ok {
		return nil, fmt.Errorf("default provider %q: %w", def, ErrUnknownProvider)
	}
	return r, nil
}

// Default is the provider name used when a request names none.
func (r *Router) Default() string { return r.def }

// Providers lists the registered provider names in sorted order.
func (r *Router) Providers() []string {
	names := make([]string, 0, len(r.providers))
	for n := range r.providers {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

// Complete sends req to the named provider (or the default one).
func (r *Router) Complete(ctx context.Context, provider string, req Request) (Response, error) {
	if provider == "" {
		provider = r.def
	}
	p, ok := r.providers[provider]
	if !ok {
		return Response{}, fmt.Errorf("%q: %w", provider, ErrUnknownProvider)
	}
	if req.Prompt == "" {
		return Response{}, ErrEmptyPrompt
	}

	if r.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, r.timeout)
		defer cancel()
	}

	start := time.Now()
	resp, err := p.Complete(ctx, req)
	if r.observer != nil {
		r.observer.LLMRequest(provider, err)
	}
	if err != nil {
		r.logger.Warn("llm: completion failed", slog.String("provider", provider), slog.String("model", req.Model), slog.Any("err", err))
		return Response{}, fmt.Errorf("%s completion: %w", provider, err)
	}
	resp.Provider = provider
	if resp.Latency == 0 {
		resp.Latency = time.Since(start)
	}
	r.logger.Debug("llm: completion", slog.String("provider", provider), slog.String("model", resp.Model), slog.Duration("latency", resp.Latency))
	return resp, nil
}
