package config

import (
	"errors"
	"fmt"
	"os"
	"regexp"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/dyluth/vibelayer/internal/logging"
	"github.com/dyluth/vibelayer/internal/orchestrator"
	"github.com/dyluth/vibelayer/internal/renderer"
	"github.com/dyluth/vibelayer/pkg/blackboard"
	"go.uber.org/zap/zapcore"
	"gopkg.in/yaml.v3"
)

// DefaultPath is the config file looked up when no path is given.
const DefaultPath = "vibelayer.yml"

// MaxInstanceNameLength is the maximum length for an instance name (DNS-compatible)
const MaxInstanceNameLength = 63

// instanceNamePattern keeps instance names safe inside Redis keys and channel
// names: lowercase alphanumeric, hyphens allowed but not at start or end.
var instanceNamePattern = regexp.MustCompile(`^[a-z0-9]([-a-z0-9]*[a-z0-9])?$`)

// VibeConfig represents the top-level vibelayer.yml configuration
type VibeConfig struct {
	Version      string             `yaml:"version"`
	Instance     string             `yaml:"instance" env:"VIBELAYER_INSTANCE"` // Blackboard namespace
	RedisURL     string             `yaml:"redis_url" env:"REDIS_URL"`
	HealthAddr   string             `yaml:"health_addr" env:"VIBELAYER_HEALTH_ADDR"`
	Log          LogConfig          `yaml:"log"`
	Orchestrator OrchestratorConfig `yaml:"orchestrator"`
	Renderers    []RendererConfig   `yaml:"renderers"`
}

// LogConfig selects the daemon's log output
type LogConfig struct {
	Level  string `yaml:"level" env:"VIBELAYER_LOG_LEVEL"`
	Format string `yaml:"format" env:"VIBELAYER_LOG_FORMAT"` // "json" or "console"
}

// OrchestratorConfig specifies admission and lifecycle behaviour
type OrchestratorConfig struct {
	BrandThreshold        float64       `yaml:"brand_threshold" env:"VIBELAYER_BRAND_THRESHOLD"`
	BrandMode             string        `yaml:"brand_mode" env:"VIBELAYER_BRAND_MODE"` // "enforce" or "advisory"
	RenderTimeout         time.Duration `yaml:"render_timeout" env:"VIBELAYER_RENDER_TIMEOUT"`
	Retention             time.Duration `yaml:"retention" env:"VIBELAYER_RETENTION"`
	ReapInterval          time.Duration `yaml:"reap_interval" env:"VIBELAYER_REAP_INTERVAL"`
	SnapshotInterval      time.Duration `yaml:"snapshot_interval" env:"VIBELAYER_SNAPSHOT_INTERVAL"` // 0 disables performance snapshots
	EventBuffer           int           `yaml:"event_buffer" env:"VIBELAYER_EVENT_BUFFER"`
	AIAutoApplyConfidence float64       `yaml:"ai_auto_apply_confidence" env:"VIBELAYER_AI_AUTO_APPLY_CONFIDENCE"` // 0 disables auto-apply
}

// RendererConfig registers one platform renderer
type RendererConfig struct {
	Platform string                  `yaml:"platform"`
	Kind     renderer.Kind           `yaml:"kind"`
	Effects  []blackboard.EffectType `yaml:"effects,omitempty"` // Required for custom renderers
}

// Default returns the configuration used when no file is present.
func Default() *VibeConfig {
	orch := orchestrator.DefaultConfig()
	return &VibeConfig{
		Version:    "1.0",
		Instance:   "default",
		RedisURL:   "redis://localhost:6379",
		HealthAddr: ":8080",
		Log:        LogConfig{Level: "info", Format: logging.FormatJSON},
		Orchestrator: OrchestratorConfig{
			BrandThreshold:   orch.BrandThreshold,
			BrandMode:        string(orch.BrandMode),
			RenderTimeout:    orch.RenderTimeout,
			Retention:        orch.Retention,
			ReapInterval:     orch.ReapInterval,
			SnapshotInterval: orch.SnapshotInterval,
			EventBuffer:      orch.EventBuffer,
		},
		Renderers: []RendererConfig{
			{Platform: renderer.PlatformWeb, Kind: renderer.KindWeb},
			{Platform: renderer.PlatformMobile, Kind: renderer.KindMobile},
		},
	}
}

// Validate performs strict validation on the configuration
func (c *VibeConfig) Validate() error {
	if c.Version != "1.0" {
		return fmt.Errorf("unsupported version: %s (expected: 1.0)", c.Version)
	}
	if c.Instance == "" {
		return fmt.Errorf("instance is required")
	}
	if err := ValidateInstanceName(c.Instance); err != nil {
		return err
	}
	if c.RedisURL == "" {
		return fmt.Errorf("redis_url is required")
	}

	if _, err := zapcore.ParseLevel(c.Log.Level); err != nil {
		return fmt.Errorf("log.level: invalid level %q", c.Log.Level)
	}
	if c.Log.Format != logging.FormatJSON && c.Log.Format != logging.FormatConsole {
		return fmt.Errorf("log.format: invalid format %q (must be 'json' or 'console')", c.Log.Format)
	}

	if err := c.Orchestrator.Validate(); err != nil {
		return err
	}

	if len(c.Renderers) == 0 {
		return fmt.Errorf("no renderers defined")
	}
	seen := make(map[string]bool, len(c.Renderers))
	for i, r := range c.Renderers {
		if err := r.Validate(); err != nil {
			return fmt.Errorf("renderers[%d]: %w", i, err)
		}
		if seen[r.Platform] {
			return fmt.Errorf("duplicate renderer platform '%s'", r.Platform)
		}
		seen[r.Platform] = true
	}
	return nil
}

// Validate checks the orchestrator block
func (o *OrchestratorConfig) Validate() error {
	if o.BrandThreshold < 0 || o.BrandThreshold > 1 {
		return fmt.Errorf("orchestrator.brand_threshold must be within [0, 1], got %g", o.BrandThreshold)
	}
	if o.BrandMode != string(orchestrator.BrandEnforce) && o.BrandMode != string(orchestrator.BrandAdvisory) {
		return fmt.Errorf("orchestrator.brand_mode: invalid mode %q (must be 'enforce' or 'advisory')", o.BrandMode)
	}
	if o.RenderTimeout < 0 {
		return fmt.Errorf("orchestrator.render_timeout must be >= 0, got %s", o.RenderTimeout)
	}
	if o.Retention <= 0 {
		return fmt.Errorf("orchestrator.retention must be positive, got %s", o.Retention)
	}
	if o.ReapInterval <= 0 {
		return fmt.Errorf("orchestrator.reap_interval must be positive, got %s", o.ReapInterval)
	}
	if o.SnapshotInterval < 0 {
		return fmt.Errorf("orchestrator.snapshot_interval must be >= 0 (0 = disabled), got %s", o.SnapshotInterval)
	}
	if o.EventBuffer < 1 {
		return fmt.Errorf("orchestrator.event_buffer must be >= 1, got %d", o.EventBuffer)
	}
	if o.AIAutoApplyConfidence < 0 || o.AIAutoApplyConfidence > 1 {
		return fmt.Errorf("orchestrator.ai_auto_apply_confidence must be within [0, 1] (0 = disabled), got %g", o.AIAutoApplyConfidence)
	}
	return nil
}

// Validate checks a single renderer entry
func (r *RendererConfig) Validate() error {
	if r.Platform == "" {
		return fmt.Errorf("platform is required")
	}
	switch r.Kind {
	case renderer.KindWeb, renderer.KindMobile:
	case renderer.KindCustom:
		if len(r.Effects) == 0 {
			return fmt.Errorf("renderer '%s': custom renderers must list their effects", r.Platform)
		}
	default:
		return fmt.Errorf("renderer '%s': invalid kind: %s (must be 'web', 'mobile', or 'custom')", r.Platform, r.Kind)
	}
	for _, t := range r.Effects {
		if t != blackboard.EffectShader && t.Validate() != nil {
			return fmt.Errorf("renderer '%s': unknown effect type %q", r.Platform, t)
		}
	}
	return nil
}

// OrchestratorSettings converts the orchestrator block.
func (c *VibeConfig) OrchestratorSettings() orchestrator.Config {
	o := c.Orchestrator
	return orchestrator.Config{
		BrandThreshold:   o.BrandThreshold,
		BrandMode:        orchestrator.BrandMode(o.BrandMode),
		RenderTimeout:    o.RenderTimeout,
		Retention:        o.Retention,
		ReapInterval:     o.ReapInterval,
		SnapshotInterval: o.SnapshotInterval,
		EventBuffer:      o.EventBuffer,
	}
}

// EngineSettings converts the engine-related settings. Snapshots live as
// long as terminal instances are retained.
func (c *VibeConfig) EngineSettings() orchestrator.EngineConfig {
	return orchestrator.EngineConfig{
		AIAutoApplyConfidence: c.Orchestrator.AIAutoApplyConfidence,
		SnapshotTTL:           c.Orchestrator.Retention,
	}
}

// BuildRegistry registers a renderer per configured platform.
func (c *VibeConfig) BuildRegistry(pub renderer.Publisher) (*renderer.Registry, error) {
	reg := renderer.NewRegistry()
	for _, rc := range c.Renderers {
		rend, err := renderer.New(rc.Kind, rc.Platform, rc.Effects, pub)
		if err != nil {
			return nil, fmt.Errorf("renderer '%s': %w", rc.Platform, err)
		}
		if err := reg.Register(rc.Platform, rend); err != nil {
			return nil, err
		}
	}
	return reg, nil
}

// ValidateInstanceName checks an instance name against DNS naming rules.
func ValidateInstanceName(name string) error {
	if name == "" {
		return fmt.Errorf("instance name cannot be empty")
	}
	if len(name) > MaxInstanceNameLength {
		return fmt.Errorf("instance name too long: %d characters (max: %d)", len(name), MaxInstanceNameLength)
	}
	if !instanceNamePattern.MatchString(name) {
		return fmt.Errorf("invalid instance name '%s': must be lowercase alphanumeric with hyphens (not at start/end)", name)
	}
	return nil
}

// Load reads vibelayer.yml from path, applies environment overrides and
// validates the result. Fields absent from the file keep their defaults. A
// missing file at DefaultPath is not an error; the defaults are used.
func Load(path string) (*VibeConfig, error) {
	config := Default()

	if path == "" {
		path = DefaultPath
	}
	data, err := os.ReadFile(path)
	switch {
	case err == nil:
		if err := yaml.Unmarshal(data, config); err != nil {
			return nil, fmt.Errorf("failed to parse YAML: %w", err)
		}
	case errors.Is(err, os.ErrNotExist) && path == DefaultPath:
	default:
		return nil, fmt.Errorf("failed to read config: %w", err)
	}

	if err := env.Parse(config); err != nil {
		return nil, fmt.Errorf("failed to apply environment overrides: %w", err)
	}

	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return config, nil
}
