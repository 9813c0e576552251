// Package config provides configuration loading from environment variables.
package config

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/sethvargo/go-envconfig"
)

// Static errors for configuration validation.
var (
	// ErrS3BucketRequired is returned when the S3 backend is selected without a bucket.
	ErrS3BucketRequired = errors.New("config: STORAGE_S3_BUCKET is required when STORAGE_BACKEND=s3")
	// ErrUnknownStorageBackend is returned for backends other than local or s3.
	ErrUnknownStorageBackend = errors.New("config: unknown storage backend")
	// ErrUnknownTranslator is returned for translator selections other than identity or google.
	ErrUnknownTranslator = errors.New("config: unknown caption translator")
)

// DefaultPreviewMaxConcurrency bounds simultaneous preview downloads when the
// environment does not override it.
const DefaultPreviewMaxConcurrency = 3

// Config holds all configuration for the application.
type Config struct {
	// HTTP retry settings
	HTTPMaxAttempts int           `env:"HTTP_MAX_ATTEMPTS, default=3" json:"http_max_attempts" validate:"min=1"`
	HTTPMinBackoff  time.Duration `env:"HTTP_MIN_BACKOFF, default=1s" json:"http_min_backoff" validate:"min=0"`
	HTTPMaxBackoff  time.Duration `env:"HTTP_MAX_BACKOFF, default=30s" json:"http_max_backoff" validate:"min=0"`
	RequestTimeout  time.Duration `env:"REQUEST_TIMEOUT, default=5s" json:"request_timeout" validate:"gt=0"`

	// Trending pipeline settings
	PreviewMaxConcurrency int    `env:"TRENDING_PREVIEW_MAX_CONCURRENCY, default=3" json:"preview_max_concurrency"`
	FeedCountry           string `env:"TRENDING_FEED_COUNTRY, default=us" json:"feed_country"`
	FeedLimit             int    `env:"TRENDING_FEED_LIMIT, default=10" json:"feed_limit" validate:"min=1"`
	CaptionTranslator     string `env:"CAPTION_TRANSLATOR, default=identity" json:"caption_translator"`
	FontPath              string `env:"FONT_PATH" json:"font_path,omitempty"`

	// Worker and job log settings
	WorkerTempDir string `env:"WORKER_TEMP_DIR, default=/tmp/social-admin" json:"worker_temp_dir"`
	JobLogDir     string `env:"JOB_LOG_DIR, default=logs/jobs" json:"job_log_dir"`

	// Storage settings
	StorageBackend   string `env:"STORAGE_BACKEND, default=local" json:"storage_backend"`
	StorageLocalPath string `env:"STORAGE_LOCAL_BASE_PATH, default=media" json:"storage_local_base_path"`
	S3Bucket         string `env:"STORAGE_S3_BUCKET" json:"s3_bucket,omitempty"`
	S3Prefix         string `env:"STORAGE_S3_PREFIX" json:"s3_prefix,omitempty"`
	S3Region         string `env:"S3_REGION" json:"s3_region,omitempty"`
	S3Endpoint       string `env:"S3_ENDPOINT" json:"s3_endpoint,omitempty"`

	// AWS credentials
	AWSAccessKeyID     string `env:"AWS_ACCESS_KEY_ID" json:"-"`     // Masked in JSON
	AWSSecretAccessKey string `env:"AWS_SECRET_ACCESS_KEY" json:"-"` // Masked in JSON

	// Database settings
	DatabaseURL string `env:"DATABASE_URL" json:"-"` // Masked in JSON

	// Logging settings
	LogFormat string `env:"LOG_FORMAT, default=text" json:"log_format"` // "json" or "text"
	LogLevel  string `env:"LOG_LEVEL, default=info" json:"log_level"`   // "debug", "info", "warn", "error"
}

// Load reads configuration from environment variables using go-envconfig.
// Out-of-range values that have a documented fallback are normalized with a
// warning; everything else fails Validate.
func Load() (*Config, error) {
	cfg := &Config{}

	if err := envconfig.Process(context.Background(), cfg); err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}

	cfg.Normalize(slog.Default())

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Normalize clamps values that have a documented fallback instead of failing:
// non-positive preview concurrency falls back to the default, and the max
// backoff is raised to at least the min backoff.
func (c *Config) Normalize(logger *slog.Logger) {
	if logger == nil {
		logger = slog.Default()
	}
	if c.PreviewMaxConcurrency < 1 {
		logger.Warn("invalid preview download concurrency, falling back to default",
			slog.Int("configured", c.PreviewMaxConcurrency),
			slog.Int("default", DefaultPreviewMaxConcurrency),
		)
		c.PreviewMaxConcurrency = DefaultPreviewMaxConcurrency
	}
	if c.HTTPMaxBackoff < c.HTTPMinBackoff {
		c.HTTPMaxBackoff = c.HTTPMinBackoff
	}
}

// Validate checks that all required configuration is present and within bounds.
func (c *Config) Validate() error {
	v := validator.New()
	if err := v.Struct(c); err != nil {
		return fmt.Errorf("config: %w", err)
	}

	switch c.StorageBackend {
	case "local":
	case "s3":
		if c.S3Bucket == "" {
			return ErrS3BucketRequired
		}
	default:
		return fmt.Errorf("%w: %q", ErrUnknownStorageBackend, c.StorageBackend)
	}

	switch c.CaptionTranslator {
	case "identity", "google":
	default:
		return fmt.Errorf("%w: %q", ErrUnknownTranslator, c.CaptionTranslator)
	}

	return nil
}

// S3Enabled returns true if the S3 storage backend is selected.
func (c *Config) S3Enabled() bool {
	return c.StorageBackend == "s3"
}

// NewLogger creates a structured logger based on the configuration.
// When LogFormat is "json", it outputs JSON logs suitable for production.
// Otherwise, it outputs human-readable text logs.
func (c *Config) NewLogger() *slog.Logger {
	level := parseLogLevel(c.LogLevel)

	var handler slog.Handler
	if strings.ToLower(c.LogFormat) == "json" {
		handler = slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
			Level: level,
		})
	} else {
		handler = slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{
			Level: level,
		})
	}

	return slog.New(handler)
}

// String returns a string representation of the config with sensitive values masked.
func (c *Config) String() string {
	return fmt.Sprintf(
		"Config{HTTPMaxAttempts: %d, HTTPMinBackoff: %s, HTTPMaxBackoff: %s, RequestTimeout: %s, PreviewMaxConcurrency: %d, WorkerTempDir: %s, JobLogDir: %s, StorageBackend: %s, S3Bucket: %s, S3Prefix: %s, LogFormat: %s, LogLevel: %s}",
		c.HTTPMaxAttempts,
		c.HTTPMinBackoff,
		c.HTTPMaxBackoff,
		c.RequestTimeout,
		c.PreviewMaxConcurrency,
		c.WorkerTempDir,
		c.JobLogDir,
		c.StorageBackend,
		c.S3Bucket,
		c.S3Prefix,
		c.LogFormat,
		c.LogLevel,
	)
}

// parseLogLevel converts a string log level to slog.Level.
func parseLogLevel(level string) slog.Level {
	switch strings.ToLower(level) {
	case "debug":
		return slog.LevelDebug
	case "info":
		return slog.LevelInfo
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
