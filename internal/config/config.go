// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

// Package config loads pipeline settings from the environment.
package config

import (
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/robfig/cron/v3"
)

// knownWeakSecrets contains default/example secrets that must be rejected.
var knownWeakSecrets = []string{
	"change-me-to-32-byte-secret-key!",
	"REPLACE_WITH_YOUR_OWN_SECRET_KEY!",
}

// Config holds the application configuration loaded from environment variables.
type Config struct {
	DBPath     string `env:"PIPELINE_DB_PATH" envDefault:"./data/pipeline.db"`
	SecretKey  string `env:"PIPELINE_SECRET_KEY,required"`
	ServerHost string `env:"PIPELINE_SERVER_HOST" envDefault:"localhost"`
	ServerPort int    `env:"PIPELINE_SERVER_PORT" envDefault:"8080"`
	Env        string `env:"PIPELINE_ENV" envDefault:"development"`
	LogLevel   string `env:"PIPELINE_LOG_LEVEL" envDefault:"info"`

	// API authentication; required outside development
	APIToken string `env:"PIPELINE_API_TOKEN"`

	// Cache configuration
	RedisURL    string        `env:"PIPELINE_REDIS_URL"` // Optional; memory cache when empty
	CachePrefix string        `env:"PIPELINE_CACHE_PREFIX" envDefault:"pipeline:"`
	CacheTTL    time.Duration `env:"PIPELINE_CACHE_TTL" envDefault:"10m"`

	// Text generation
	OpenAIAPIKey      string        `env:"PIPELINE_OPENAI_API_KEY"`
	OpenAIBaseURL     string        `env:"PIPELINE_OPENAI_BASE_URL"` // OpenAI-compatible endpoint; empty uses the default
	OpenAIModel       string        `env:"PIPELINE_OPENAI_MODEL" envDefault:"gpt-4o-mini"`
	GenerationTimeout time.Duration `env:"PIPELINE_GENERATION_TIMEOUT" envDefault:"2m"`

	// Publishing
	PublishTimeout      time.Duration `env:"PIPELINE_PUBLISH_TIMEOUT" envDefault:"30s"`
	PublishAllowPrivate bool          `env:"PIPELINE_PUBLISH_ALLOW_PRIVATE" envDefault:"false"` // Allow endpoints on private networks

	// Manual job triggers per minute
	JobTriggerRate int `env:"PIPELINE_JOB_TRIGGER_RATE" envDefault:"6"`

	// Jobs
	StaleAfter       time.Duration `env:"PIPELINE_STALE_AFTER" envDefault:"30m"`
	PublishSchedule  string        `env:"PIPELINE_PUBLISH_SCHEDULE" envDefault:"* * * * *"`
	RecoverySchedule string        `env:"PIPELINE_RECOVERY_SCHEDULE" envDefault:"*/10 * * * *"`
	EventRetention   time.Duration `env:"PIPELINE_EVENT_RETENTION" envDefault:"720h"`

	// Automatic draft -> review when both scores reach the thresholds.
	AutoReview              bool `env:"PIPELINE_AUTO_REVIEW" envDefault:"false"`
	AutoReviewMinNativeness int  `env:"PIPELINE_AUTO_REVIEW_MIN_NATIVENESS" envDefault:"70"`
	AutoReviewMinHeadline   int  `env:"PIPELINE_AUTO_REVIEW_MIN_HEADLINE" envDefault:"60"`
}

// IsDevelopment returns true if the application is running in development mode.
func (c Config) IsDevelopment() bool {
	return c.Env == "development"
}

// ServerAddr returns the full server address in host:port format.
func (c Config) ServerAddr() string {
	return fmt.Sprintf("%s:%d", c.ServerHost, c.ServerPort)
}

// UseRedisCache returns true if Redis caching is configured.
func (c Config) UseRedisCache() bool {
	return c.RedisURL != ""
}

// GenerationEnabled returns true if a text-generation key is configured.
func (c Config) GenerationEnabled() bool {
	return c.OpenAIAPIKey != ""
}

// SlogLevel maps LogLevel to a slog level, defaulting to info.
func (c Config) SlogLevel() slog.Level {
	switch strings.ToLower(c.LogLevel) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// MinSecretKeyLength is the minimum required length for the secret key.
const MinSecretKeyLength = 32

// Load parses environment variables and returns a Config struct.
func Load() (*Config, error) {
	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}

	// Warn about low-entropy secrets
	if !hasMinimumEntropy(cfg.SecretKey) {
		slog.Warn("PIPELINE_SECRET_KEY has low character diversity; "+
			"consider generating a random secret with: openssl rand -base64 32",
			"category", "config")
	}

	return cfg, nil
}

func (c *Config) validate() error {
	if len(c.SecretKey) < MinSecretKeyLength {
		return fmt.Errorf("PIPELINE_SECRET_KEY must be at least %d bytes long, got %d bytes; "+
			"generate a secure secret with: openssl rand -base64 32",
			MinSecretKeyLength, len(c.SecretKey))
	}

	for _, weak := range knownWeakSecrets {
		if c.SecretKey == weak {
			return errors.New("PIPELINE_SECRET_KEY is a known default value and must not be used; " +
				"generate a secure secret with: openssl rand -base64 32")
		}
	}

	if c.APIToken == "" && !c.IsDevelopment() {
		return errors.New("PIPELINE_API_TOKEN is required when PIPELINE_ENV is not development")
	}

	if c.StaleAfter <= 0 {
		return fmt.Errorf("PIPELINE_STALE_AFTER must be positive, got %s", c.StaleAfter)
	}
	if c.GenerationTimeout <= 0 {
		return fmt.Errorf("PIPELINE_GENERATION_TIMEOUT must be positive, got %s", c.GenerationTimeout)
	}
	if c.JobTriggerRate <= 0 {
		return fmt.Errorf("PIPELINE_JOB_TRIGGER_RATE must be positive, got %d", c.JobTriggerRate)
	}
	if c.PublishTimeout <= 0 {
		return fmt.Errorf("PIPELINE_PUBLISH_TIMEOUT must be positive, got %s", c.PublishTimeout)
	}

	for name, expr := range map[string]string{
		"PIPELINE_PUBLISH_SCHEDULE":  c.PublishSchedule,
		"PIPELINE_RECOVERY_SCHEDULE": c.RecoverySchedule,
	} {
		if _, err := cron.ParseStandard(expr); err != nil {
			return fmt.Errorf("%s is not a valid cron expression: %w", name, err)
		}
	}

	for name, v := range map[string]int{
		"PIPELINE_AUTO_REVIEW_MIN_NATIVENESS": c.AutoReviewMinNativeness,
		"PIPELINE_AUTO_REVIEW_MIN_HEADLINE":   c.AutoReviewMinHeadline,
	} {
		if v < 0 || v > 100 {
			return fmt.Errorf("%s must be within 0..100, got %d", name, v)
		}
	}

	return nil
}

// hasMinimumEntropy checks that a secret contains at least 3 character classes
// (lowercase, uppercase, digits, special characters).
func hasMinimumEntropy(s string) bool {
	charTypes := 0
	if strings.ContainsAny(s, "abcdefghijklmnopqrstuvwxyz") {
		charTypes++
	}
	if strings.ContainsAny(s, "ABCDEFGHIJKLMNOPQRSTUVWXYZ") {
		charTypes++
	}
	if strings.ContainsAny(s, "0123456789") {
		charTypes++
	}
	if strings.ContainsAny(s, "!@#$%^&*()-_=+[]{}|;:,.<>?/~`'\"\\") {
		charTypes++
	}
	return charTypes >= 3
}
