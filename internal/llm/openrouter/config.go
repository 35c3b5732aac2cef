package openrouter

import (
	"log/slog"
	"net/http"
	"os"
	"time"
)

const (
	DefaultBaseURL = "https://openrouter.ai/api/v1"
	DefaultModel   = "google/gemini-2.0-flash-001"
	DefaultReferer = "https://github.com/joseph-ayodele/medcards-tracker"
	DefaultTitle   = "Medical Card Extractor"
)

// Config for the OpenRouter client.
type Config struct {
	APIKey        string        // if empty, falls back to env OPENROUTER_API_KEY
	BaseURL       string        // default https://openrouter.ai/api/v1
	Model         string        // e.g., "google/gemini-2.0-flash-001"
	Temperature   float32       // 0..2
	MaxTokens     int           // reply budget; the tagged answer is short
	Timeout       time.Duration // per attempt
	MaxRetries    int           // retries after the first attempt
	RetryDelay    time.Duration // base for exponential backoff
	MaxRetryDelay time.Duration // cap for backoff and Retry-After
	Referer       string
	Title         string
}

type Client struct {
	cfg  Config
	http *http.Client
	log  *slog.Logger
}

func NewClient(cfg Config, logger *slog.Logger) *Client {
	if cfg.APIKey == "" {
		cfg.APIKey = os.Getenv("OPENROUTER_API_KEY")
	}
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultBaseURL
	}
	if cfg.Model == "" {
		cfg.Model = DefaultModel
	}
	if cfg.Temperature < 0 {
		cfg.Temperature = 0
	}
	if cfg.MaxTokens <= 0 {
		cfg.MaxTokens = 300
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 60 * time.Second
	}
	if cfg.MaxRetries < 0 {
		cfg.MaxRetries = 0
	}
	if cfg.RetryDelay <= 0 {
		cfg.RetryDelay = time.Second
	}
	if cfg.MaxRetryDelay <= 0 {
		cfg.MaxRetryDelay = time.Minute
	}
	if cfg.Referer == "" {
		cfg.Referer = DefaultReferer
	}
	if cfg.Title == "" {
		cfg.Title = DefaultTitle
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Client{
		cfg:  cfg,
		http: &http.Client{Timeout: cfg.Timeout},
		log:  logger,
	}
}

// Model returns the configured model id.
func (c *Client) Model() string { return c.cfg.Model }
