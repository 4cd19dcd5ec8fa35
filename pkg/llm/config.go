package llm

import (
	"fmt"
	"log/slog"
	"net/http"

	"github.com/garnizeh/leadscout/internal/config"
	"github.com/garnizeh/leadscout/pkg/ollama"
)

// FromConfig registers the hosted providers and, when enabled or selected as
// default, the local ollama one. The returned closer releases the ollama
// client's idle connections.
func FromConfig(cfg *config.Config, httpClient *http.Client, observer Observer, logger *slog.Logger) (*Router, func() error, error) {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: cfg.LLM.Timeout}
	}
	providers := []Provider{
		NewOpenAI(cfg.LLM.OpenAI, httpClient),
		NewAnthropic(cfg.LLM.Anthropic, httpClient),
	}

	closer := func() error { return nil }
	if cfg.Ollama.Enabled || cfg.LLM.DefaultProvider == "ollama" {
		oc, err := ollama.NewDefaultClient(cfg.Ollama)
		if err != nil {
			return nil, nil, fmt.Errorf("ollama client: %w", err)
		}
		ollama.SetLogger(logger)
		providers = append(providers, NewOllama(oc))
		closer = oc.Close
	}

	r, err := NewRouter(cfg.LLM.DefaultProvider, providers,
		WithTimeout(cfg.LLM.Timeout), WithObserver(observer), WithLogger(logger))
	if err != nil {
		_ = closer()
		return nil, nil, err
	}
	return r, closer, nil
}
