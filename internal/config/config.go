package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

const insecureJWTSecret = "supersecretkey"

type Config struct {
	Env           string            `yaml:"env"`
	Addr          string            `yaml:"addr"`
	JWTSecret     string            `yaml:"jwt_secret"`
	APITimeout    time.Duration     `yaml:"timeout"`
	DatabasePath  string            `yaml:"database_path"`
	TokenDuration time.Duration     `yaml:"token_duration"`
	OTP           OTPConfig         `yaml:"otp"`
	Mail          MailConfig        `yaml:"mail"`
	Redis         RedisConfig       `yaml:"redis"`
	Workers       WorkersConfig     `yaml:"workers"`
	LLM           LLMConfig         `yaml:"llm"`
	Ollama        OllamaConfig      `yaml:"ollama"`
	Scraper       ScraperConfig     `yaml:"scraper"`
	Maintenance   MaintenanceConfig `yaml:"maintenance"`
	RateLimit     RateLimitConfig   `yaml:"rate_limit"`
}

type OTPConfig struct {
	Expiry time.Duration `yaml:"expiry"`
	Length int           `yaml:"length"`
}

// MailConfig selects the mail driver. The "log" driver writes messages to the
// application log instead of sending them.
type MailConfig struct {
	Driver   string `yaml:"driver"`
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	Username string `yaml:"username"`
	Password string `yaml:"password"`
	From     string `yaml:"from"`
}

// RedisConfig is optional; an empty URL keeps revocations and queue
// notifications in-process.
type RedisConfig struct {
	URL string `yaml:"url"`
}

type WorkersConfig struct {
	Embedded     bool          `yaml:"embedded"`
	Count        int           `yaml:"count"`
	PollInterval time.Duration `yaml:"poll_interval"`
	// DrainTimeout bounds how long shutdown waits for running tasks before
	// cancelling them. Defaults to scraper.timeout.
	DrainTimeout time.Duration `yaml:"drain_timeout"`
}

type LLMConfig struct {
	DefaultProvider string         `yaml:"default_provider"`
	Timeout         time.Duration  `yaml:"timeout"`
	OpenAI          ProviderConfig `yaml:"openai"`
	Anthropic       ProviderConfig `yaml:"anthropic"`
}

type ProviderConfig struct {
	APIKey    string `yaml:"api_key"`
	BaseURL   string `yaml:"base_url"`
	Model     string `yaml:"model"`
	MaxTokens int    `yaml:"max_tokens"`
}

type OllamaConfig struct {
	Enabled                 bool          `yaml:"enabled"`
	BaseURL                 string        `yaml:"base_url"`
	DefaultModelNames       []string      `yaml:"models"`
	Timeout                 time.Duration `yaml:"timeout"`
	Retries                 int           `yaml:"retries"`
	Backoff                 time.Duration `yaml:"backoff"`
	CircuitFailureThreshold int           `yaml:"circuit_failure_threshold"`
	CircuitReset            time.Duration `yaml:"circuit_reset"`
}

type ScraperConfig struct {
	Driver        string        `yaml:"driver"`
	BaseURL       string        `yaml:"base_url"`
	RemoteURL     string        `yaml:"remote_url"`
	Headless      bool          `yaml:"headless"`
	NoSandbox     bool          `yaml:"no_sandbox"`
	Timeout       time.Duration `yaml:"timeout"`
	MaxJobs       int           `yaml:"max_jobs"`
	Summarize     bool          `yaml:"summarize"`
	GenerateLeads bool          `yaml:"generate_leads"`
	// SummaryProvider and SummaryModel pick the model used for enrichment.
	SummaryProvider string `yaml:"summary_provider"`
	SummaryModel    string `yaml:"summary_model"`
}

type MaintenanceConfig struct {
	Schedule         string        `yaml:"schedule"`
	PendingRetention time.Duration `yaml:"pending_retention"`
	JobRetention     time.Duration `yaml:"job_retention"`
}

type RateLimitConfig struct {
	RPS   float64 `yaml:"rps"`
	Burst int     `yaml:"burst"`
	// TrustedProxies lists the CIDRs of reverse proxies whose
	// X-Forwarded-For header identifies the client.
	TrustedProxies []string `yaml:"trusted_proxies"`
}

func LoadConfig(path string) (*Config, error) {
	cfg := &Config{
		Env:           getEnv("LEADSCOUT_ENV", "development"),
		Addr:          getEnv("LEADSCOUT_ADDR", ":8080"),
		JWTSecret:     getEnv("LEADSCOUT_JWT_SECRET", insecureJWTSecret),
		APITimeout:    15 * time.Second,
		DatabasePath:  getEnv("LEADSCOUT_DATABASE_PATH", "leadscout.db"),
		TokenDuration: 24 * time.Hour,
		OTP:           OTPConfig{Expiry: 10 * time.Minute, Length: 6},
		Mail: MailConfig{
			Driver:   getEnv("LEADSCOUT_MAIL_DRIVER", "log"),
			Host:     getEnv("LEADSCOUT_SMTP_HOST", ""),
			Port:     getEnvInt("LEADSCOUT_SMTP_PORT", 587),
			Username: getEnv("LEADSCOUT_SMTP_USERNAME", ""),
			Password: getEnv("LEADSCOUT_SMTP_PASSWORD", ""),
			From:     getEnv("LEADSCOUT_MAIL_FROM", "no-reply@leadscout.local"),
		},
		Redis:   RedisConfig{URL: getEnv("LEADSCOUT_REDIS_URL", "")},
		Workers: WorkersConfig{Embedded: true, Count: 2, PollInterval: 500 * time.Millisecond},
		LLM: LLMConfig{
			DefaultProvider: getEnv("LEADSCOUT_LLM_PROVIDER", "anthropic"),
			Timeout:         60 * time.Second,
			OpenAI:          ProviderConfig{APIKey: getEnv("OPENAI_API_KEY", ""), Model: "gpt-4", MaxTokens: 4096},
			Anthropic:       ProviderConfig{APIKey: getEnv("ANTHROPIC_API_KEY", ""), Model: "claude-opus-4-20250514", MaxTokens: 4096},
		},
		Ollama: DefaultOllamaConfig(),
		Scraper: ScraperConfig{
			Driver:          getEnv("LEADSCOUT_SCRAPER_DRIVER", "chromedp"),
			BaseURL:         "https://www.upwork.com",
			RemoteURL:       getEnv("LEADSCOUT_CHROME_URL", ""),
			Headless:        true,
			Timeout:         10 * time.Minute,
			MaxJobs:         50,
			SummaryProvider: "anthropic",
			SummaryModel:    "claude-sonnet-4-20250514",
		},
		Maintenance: MaintenanceConfig{Schedule: "@every 1h", PendingRetention: 24 * time.Hour, JobRetention: 7 * 24 * time.Hour},
		RateLimit:   RateLimitConfig{RPS: 1, Burst: 5},
	}
	if path != "" {
		f, err := os.Open(path)
		if err != nil {
			return nil, err
		}
		defer f.Close()

		dec := yaml.NewDecoder(f)
		dec.KnownFields(true)
		if err := dec.Decode(cfg); err != nil {
			return nil, fmt.Errorf("decode config %s: %w", path, err)
		}
	}

	return cfg, nil
}

// DefaultOllamaConfig returns the settings used when the ollama section is omitted.
func DefaultOllamaConfig() OllamaConfig {
	return OllamaConfig{
		BaseURL:                 getEnv("LEADSCOUT_OLLAMA_URL", "http://localhost:11434"),
		DefaultModelNames:       []string{"llama3.1"},
		Timeout:                 60 * time.Second,
		Retries:                 2,
		Backoff:                 500 * time.Millisecond,
		CircuitFailureThreshold: 5,
		CircuitReset:            30 * time.Second,
	}
}

// IsDevelopment reports whether insecure defaults are tolerated.
func (c *Config) IsDevelopment() bool {
	env := c.Env
	if v := os.Getenv("LEADSCOUT_ENV"); v != "" {
		env = v
	}
	return env == "development" || env == "dev" || env == "test"
}

// Validate fills zero values with defaults and rejects unusable settings.
func (c *Config) Validate() error {
	var errs []error

	if c.Addr == "" {
		errs = append(errs, errors.New("addr is required"))
	}
	if c.DatabasePath == "" {
		errs = append(errs, errors.New("database_path is required"))
	}
	if c.JWTSecret == "" {
		errs = append(errs, errors.New("jwt_secret is required"))
	} else if c.JWTSecret == insecureJWTSecret && !c.IsDevelopment() {
		errs = append(errs, errors.New("jwt_secret uses the built-in default outside development"))
	}
	if c.APITimeout <= 0 {
		c.APITimeout = 15 * time.Second
	}
	if c.TokenDuration <= 0 {
		c.TokenDuration = 24 * time.Hour
	}

	if c.OTP.Expiry <= 0 {
		c.OTP.Expiry = 10 * time.Minute
	}
	if c.OTP.Length == 0 {
		c.OTP.Length = 6
	}
	if c.OTP.Length < 4 || c.OTP.Length > 10 {
		errs = append(errs, fmt.Errorf("otp.length must be between 4 and 10, got %d", c.OTP.Length))
	}

	switch c.Mail.Driver {
	case "", "log":
		c.Mail.Driver = "log"
	case "smtp":
		if c.Mail.Host == "" {
			errs = append(errs, errors.New("mail.host is required for the smtp driver"))
		}
		if c.Mail.From == "" {
			errs = append(errs, errors.New("mail.from is required for the smtp driver"))
		}
		if c.Mail.Port == 0 {
			c.Mail.Port = 587
		}
	default:
		errs = append(errs, fmt.Errorf("unknown mail.driver %q", c.Mail.Driver))
	}

	if c.Workers.Count <= 0 {
		c.Workers.Count = 2
	}
	if c.Workers.PollInterval <= 0 {
		c.Workers.PollInterval = 500 * time.Millisecond
	}

	switch c.LLM.DefaultProvider {
	case "":
		c.LLM.DefaultProvider = "anthropic"
	case "openai", "anthropic", "ollama":
	default:
		errs = append(errs, fmt.Errorf("unknown llm.default_provider %q", c.LLM.DefaultProvider))
	}
	if c.LLM.Timeout <= 0 {
		c.LLM.Timeout = 60 * time.Second
	}
	if c.LLM.OpenAI.Model == "" {
		c.LLM.OpenAI.Model = "gpt-4"
	}
	if c.LLM.OpenAI.MaxTokens <= 0 {
		c.LLM.OpenAI.MaxTokens = 4096
	}
	if c.LLM.Anthropic.Model == "" {
		c.LLM.Anthropic.Model = "claude-opus-4-20250514"
	}
	if c.LLM.Anthropic.MaxTokens <= 0 {
		c.LLM.Anthropic.MaxTokens = 4096
	}

	def := DefaultOllamaConfig()
	if c.Ollama.BaseURL == "" {
		c.Ollama.BaseURL = def.BaseURL
	}
	if len(c.Ollama.DefaultModelNames) == 0 {
		c.Ollama.DefaultModelNames = def.DefaultModelNames
	}
	if c.Ollama.Timeout <= 0 {
		c.Ollama.Timeout = def.Timeout
	}
	if c.Ollama.Retries == 0 {
		c.Ollama.Retries = def.Retries
	}
	if c.Ollama.Backoff <= 0 {
		c.Ollama.Backoff = def.Backoff
	}
	if c.Ollama.CircuitFailureThreshold <= 0 {
		c.Ollama.CircuitFailureThreshold = def.CircuitFailureThreshold
	}
	if c.Ollama.CircuitReset <= 0 {
		c.Ollama.CircuitReset = def.CircuitReset
	}

	switch c.Scraper.Driver {
	case "", "chromedp":
		c.Scraper.Driver = "chromedp"
	case "none":
	default:
		errs = append(errs, fmt.Errorf("unknown scraper.driver %q", c.Scraper.Driver))
	}
	if c.Scraper.BaseURL == "" {
		c.Scraper.BaseURL = "https://www.upwork.com"
	}
	if c.Scraper.Timeout <= 0 {
		c.Scraper.Timeout = 10 * time.Minute
	}
	if c.Workers.DrainTimeout <= 0 {
		c.Workers.DrainTimeout = c.Scraper.Timeout
	}
	if c.Scraper.SummaryProvider == "" {
		c.Scraper.SummaryProvider = c.LLM.DefaultProvider
	}
	if c.Scraper.MaxJobs <= 0 {
		c.Scraper.MaxJobs = 50
	}

	if c.Maintenance.Schedule == "" {
		c.Maintenance.Schedule = "@every 1h"
	}
	if c.Maintenance.PendingRetention <= 0 {
		c.Maintenance.PendingRetention = 24 * time.Hour
	}
	if c.Maintenance.JobRetention <= 0 {
		c.Maintenance.JobRetention = 7 * 24 * time.Hour
	}

	if c.RateLimit.RPS < 0 {
		errs = append(errs, errors.New("rate_limit.rps must not be negative"))
	}
	if c.RateLimit.RPS > 0 && c.RateLimit.Burst <= 0 {
		c.RateLimit.Burst = 1
	}

	return errors.Join(errs...)
}

func getEnv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}

	return def
}

func getEnvInt(key string, def int) int {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return def
	}
	return n
}
