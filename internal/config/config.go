package config

import (
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"
)

// Config holds the ambient environment settings. Per-run parameters
// (manifest path, bucket, retry budget) are command-line flags, not env.
type Config struct {
	StoreEndpoint  string        `envconfig:"STORE_ENDPOINT" default:"https://s3.amazonaws.com"`
	StoreToken     string        `envconfig:"STORE_TOKEN"`
	RequestTimeout time.Duration `envconfig:"REQUEST_TIMEOUT" default:"60s"`

	LogLevel string `envconfig:"LOG_LEVEL" default:"INFO"`
	LogFile  string `envconfig:"LOG_FILE"`

	HistoryDBPath string `envconfig:"HISTORY_DB_PATH" default:"mirror_history.db"`
	HistoryDB     bool   `envconfig:"HISTORY_DB_ENABLED" default:"true"`

	NotifyWebhookURL string `envconfig:"NOTIFY_WEBHOOK_URL"`

	Telemetry struct {
		Enabled        bool   `split_words:"true" default:"false"`
		ServiceName    string `split_words:"true" default:"manifest-mirror"`
		OTLPEndpoint   string `envconfig:"TELEMETRY_OTLP_ENDPOINT"`
		RuntimeMetrics bool   `split_words:"true" default:"true"`
	}

	Web struct {
		Enabled         bool          `split_words:"true" default:"false"`
		BindAddress     string        `split_words:"true" default:"0.0.0.0:9091"`
		ReadTimeout     time.Duration `split_words:"true" default:"30s"`
		WriteTimeout    time.Duration `split_words:"true" default:"30s"`
		IdleTimeout     time.Duration `split_words:"true" default:"5s"`
		ShutdownTimeout time.Duration `split_words:"true" default:"30s"`
	}
}

// LoadConfig reads environment variables and populates the Config struct.
func LoadConfig() (*Config, error) {
	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, fmt.Errorf("error processing env: %w", err)
	}

	return &cfg, nil
}

func (c *Config) SlogLevel() slog.Level {
	switch strings.ToUpper(c.LogLevel) {
	case "DEBUG":
		return slog.LevelDebug
	case "INFO":
		return slog.LevelInfo
	case "WARN":
		return slog.LevelWarn
	case "ERROR":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
