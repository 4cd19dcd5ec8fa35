package llm

import (
	"context"

	"github.com/garnizeh/leadscout/pkg/ollama"
)

// Ollama adapts the local ollama client.
type Ollama struct {
	client *ollama.Client
}

func NewOllama(c *ollama.Client) *Ollama { return &Ollama{client: c} }

func (o *Ollama) Name() string { return "ollama" }

func (o *Ollama) Complete(ctx context.Context, req Request) (Response, error) {
	res, err := o.client.Generate(ctx, ollama.GenerateRequest{
		Model:     req.Model,
		System:    req.System,
		Prompt:    req.Prompt,
		MaxTokens: req.MaxTokens,
	})
	if err != nil {
		return Response{}, err
	}
	if res.Text == "" {
		return Response{}, ErrNoCompletion
	}
	return Response{Provider: o.Name(), Model: res.Model, Text: res.Text, Latency: res.Latency}, nil
}
