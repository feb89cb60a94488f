// Package backend is a simulated platform renderer. It consumes render
// commands for one platform, holds each effect for its duration and
// acknowledges completion, so the orchestrator can run end to end without a
// real canvas or GPU surface attached.
package backend

import (
	"fmt"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/dyluth/vibelayer/pkg/blackboard"
)

// Config holds the backend's runtime configuration loaded from environment variables.
type Config struct {
	// Instance is the VibeLayer instance to serve (from VIBELAYER_INSTANCE)
	Instance string `env:"VIBELAYER_INSTANCE" envDefault:"default"`

	// RedisURL is the Redis connection string (from REDIS_URL)
	RedisURL string `env:"REDIS_URL" envDefault:"redis://localhost:6379"`

	// Platform is the render channel this backend consumes (from VIBELAYER_BACKEND_PLATFORM)
	Platform string `env:"VIBELAYER_BACKEND_PLATFORM,required"`

	// DefaultDuration is used for commands that carry no duration
	DefaultDuration time.Duration `env:"VIBELAYER_BACKEND_DEFAULT_DURATION" envDefault:"3s"`

	// FailTypes lists effect types acknowledged as failed instead of rendered
	FailTypes []string `env:"VIBELAYER_BACKEND_FAIL_TYPES" envSeparator:","`

	LogLevel  string `env:"VIBELAYER_LOG_LEVEL" envDefault:"info"`
	LogFormat string `env:"VIBELAYER_LOG_FORMAT" envDefault:"json"`
}

// LoadConfig reads and validates configuration from environment variables.
func LoadConfig() (*Config, error) {
	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("failed to parse environment: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks that all configuration fields are present and valid.
func (c *Config) Validate() error {
	if c.Instance == "" {
		return fmt.Errorf("VIBELAYER_INSTANCE cannot be empty")
	}
	if c.Platform == "" {
		return fmt.Errorf("VIBELAYER_BACKEND_PLATFORM environment variable is required")
	}
	if c.DefaultDuration <= 0 {
		return fmt.Errorf("VIBELAYER_BACKEND_DEFAULT_DURATION must be positive, got %s", c.DefaultDuration)
	}
	for _, t := range c.FailTypes {
		effectType := blackboard.EffectType(t)
		if effectType == blackboard.EffectShader {
			continue
		}
		if err := effectType.Validate(); err != nil {
			return fmt.Errorf("invalid VIBELAYER_BACKEND_FAIL_TYPES: %w", err)
		}
	}
	return nil
}

// fails reports whether renders of t are acknowledged as failed.
func (c *Config) fails(t blackboard.EffectType) bool {
	for _, ft := range c.FailTypes {
		if blackboard.EffectType(ft) == t {
			return true
		}
	}
	return false
}
