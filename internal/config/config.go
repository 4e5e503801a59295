package config

import (
	"fmt"
	"os"
	"time"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
)

// Config holds all configuration for the transcription client
type Config struct {
	// Local HTTP server (control API, health, metrics)
	Port string `envconfig:"PORT" default:"8090"`

	// Transcription backend endpoints
	BackendWSURL   string `envconfig:"BACKEND_WS_URL" default:"ws://localhost:8080"`     // Base websocket URL of the backend
	BackendWSPath  string `envconfig:"BACKEND_WS_PATH" default:"/ws/transcribe"`         // Path of the streaming transcription endpoint
	BackendHTTPURL string `envconfig:"BACKEND_HTTP_URL" default:"http://localhost:8080"` // Base URL for batch + capability streams
	BatchPath      string `envconfig:"BATCH_PATH" default:"/api/transcribe/batch"`       // Batch re-transcription endpoint

	// Session configuration
	SessionID     string `envconfig:"SESSION_ID" default:"current_session"` // Durable snapshot key
	SessionDBPath string `envconfig:"SESSION_DB_PATH" default:"transcribe-client.sqlite"`
	LiveSpeaker   string `envconfig:"LIVE_SPEAKER" default:"Speaker"` // Placeholder speaker for live fragments (no diarization)

	// Transcript assembly configuration
	SilenceThresholdSec float64 `envconfig:"SILENCE_THRESHOLD_SEC" default:"2.0"`  // Gap that starts a new paragraph
	TerminalPunctuation string  `envconfig:"TERMINAL_PUNCTUATION" default:"。？！"` // Sentence-terminal rune set

	// Persistence configuration
	SaveIntervalSec int `envconfig:"SAVE_INTERVAL_SEC" default:"10"` // Trailing-edge throttle interval for snapshot saves

	// Resilience configuration
	ReconnectMaxAttempts  int `envconfig:"RECONNECT_MAX_ATTEMPTS" default:"5"`       // Reconnection budget before terminal error
	ReconnectBackoffMs    int `envconfig:"RECONNECT_BACKOFF_MS" default:"1000"`      // Base reconnection backoff in milliseconds
	ReconnectMaxBackoffMs int `envconfig:"RECONNECT_MAX_BACKOFF_MS" default:"30000"` // Backoff cap in milliseconds
	WaitPollIntervalMs    int `envconfig:"WAIT_POLL_INTERVAL_MS" default:"100"`      // Connection-wait polling interval
	WaitPollBudget        int `envconfig:"WAIT_POLL_BUDGET" default:"50"`            // Polls before a connection wait times out
	RetryMaxAttempts      int `envconfig:"RETRY_MAX_ATTEMPTS" default:"3"`           // HTTP retry attempts for batch requests
	RetryInitialBackoffMs int `envconfig:"RETRY_INITIAL_BACKOFF_MS" default:"100"`

	// Observability configuration
	LogLevel       string `envconfig:"LOG_LEVEL" default:"info"`       // Log level: debug, info, warn, error
	LogPretty      bool   `envconfig:"LOG_PRETTY" default:"false"`     // Pretty print logs (for development)
	MetricsEnabled bool   `envconfig:"METRICS_ENABLED" default:"true"` // Enable Prometheus metrics
}

// Load reads configuration from environment variables
// It first attempts to load from .env file if it exists, then from environment
func Load() (*Config, error) {
	// Try to load .env file (ignore error if it doesn't exist)
	_ = godotenv.Load()

	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// LoadFromEnv loads configuration directly from environment variables
// without attempting to load .env file (useful for containerized deployments)
func LoadFromEnv() (*Config, error) {
	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

func (c *Config) validate() error {
	if c.TerminalPunctuation == "" {
		return fmt.Errorf("TERMINAL_PUNCTUATION must not be empty")
	}
	if c.SilenceThresholdSec <= 0 {
		return fmt.Errorf("SILENCE_THRESHOLD_SEC must be positive, got %f", c.SilenceThresholdSec)
	}
	if c.SaveIntervalSec <= 0 {
		return fmt.Errorf("SAVE_INTERVAL_SEC must be positive, got %d", c.SaveIntervalSec)
	}
	if c.ReconnectMaxAttempts < 0 {
		return fmt.Errorf("RECONNECT_MAX_ATTEMPTS must not be negative, got %d", c.ReconnectMaxAttempts)
	}
	return nil
}

// SaveInterval returns the snapshot throttle interval as a duration
func (c *Config) SaveInterval() time.Duration {
	return time.Duration(c.SaveIntervalSec) * time.Second
}

// ReconnectBackoff returns the base reconnection backoff as a duration
func (c *Config) ReconnectBackoff() time.Duration {
	return time.Duration(c.ReconnectBackoffMs) * time.Millisecond
}

// ReconnectMaxBackoff returns the reconnection backoff cap as a duration
func (c *Config) ReconnectMaxBackoff() time.Duration {
	return time.Duration(c.ReconnectMaxBackoffMs) * time.Millisecond
}

// WaitPollInterval returns the connection-wait polling interval as a duration
func (c *Config) WaitPollInterval() time.Duration {
	return time.Duration(c.WaitPollIntervalMs) * time.Millisecond
}

// GetEnv returns the value of an environment variable or a default value
func GetEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}
