// Command llm-client sends one prompt to a configured provider and prints
// the completion. Useful for checking API keys and local Ollama models.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log"
	"log/slog"
	"os"
	"strings"

	"github.com/joho/godotenv"

	"github.com/garnizeh/leadscout/internal/config"
	"github.com/garnizeh/leadscout/pkg/llm"
)

func main() {
	var (
		configPath = flag.String("config", "", "Path to config YAML file")
		provider   = flag.String("provider", "", "Provider name (openai, anthropic, ollama); empty uses the default")
		model      = flag.String("model", "", "Model override")
		system     = flag.String("system", "", "System prompt")
		prompt     = flag.String("prompt", "", "Prompt text; read from stdin when empty")
		maxTokens  = flag.Int("max-tokens", 512, "Maximum tokens to generate")
	)
	flag.Parse()

	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		log.Fatalf("load .env: %v", err)
	}
	cfg, err := config.LoadConfig(*configPath)
	if err != nil {
		log.Fatalf("load config: %v", err)
	}
	if *provider == "ollama" {
		cfg.Ollama.Enabled = true
	}
	if err := cfg.Validate(); err != nil {
		log.Fatalf("invalid config: %v", err)
	}

	text := *prompt
	if text == "" {
		b, err := io.ReadAll(os.Stdin)
		if err != nil {
			log.Fatalf("read prompt: %v", err)
		}
		text = strings.TrimSpace(string(b))
	}

	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelWarn}))
	router, closeFn, err := llm.FromConfig(cfg, nil, nil, logger)
	if err != nil {
		log.Fatalf("build providers: %v", err)
	}
	defer closeFn()

	resp, err := router.Complete(context.Background(), *provider, llm.Request{
		Model:     *model,
		System:    *system,
		Prompt:    text,
		MaxTokens: *maxTokens,
	})
	if err != nil {
		log.Fatalf("complete: %v", err)
	}
	fmt.Fprintf(os.Stderr, "%s/%s in %s\n", resp.Provider, resp.Model, resp.Latency)
	fmt.Println(resp.Text)
}
