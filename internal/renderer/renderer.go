// Package renderer defines the capability interface the orchestrator uses to
// hand effects to rendering backends, the registry that maps platforms to
// backends, and the built-in Redis bus renderers.
package renderer

import (
	"context"
	"errors"

	"github.com/dyluth/vibelayer/pkg/blackboard"
)

// Built-in platform names.
const (
	PlatformWeb    = "web"
	PlatformMobile = "mobile"
)

var (
	// ErrUnsupported is returned when no renderer can handle an effect type on a
	// platform. It is not retryable.
	ErrUnsupported = errors.New("unsupported effect for platform")

	// ErrRenderFailed wraps failures reported by a backend after acceptance.
	ErrRenderFailed = errors.New("render failed")
)

// Effect is everything a backend needs to render one effect instance.
type Effect struct {
	InstanceID string
	EffectID   string
	LayerID    string
	ZIndex     int
	Type       blackboard.EffectType
	Intensity  float64
	DurationMs int64 // 0 means backend default
	Parameters map[string]any
}

// Renderer is a rendering backend for one platform.
//
// Render either refuses the effect synchronously by returning an error, or
// accepts it and later calls done exactly once: with nil when the effect
// finished, or with an error when the backend failed. Stop is best-effort.
type Renderer interface {
	Name() string
	Supports(t blackboard.EffectType) bool
	Render(ctx context.Context, effect Effect, done func(error)) error
	Stop(ctx context.Context, instanceID string) error
}

// AckHandler is implemented by renderers that complete through backend
// acknowledgements.
type AckHandler interface {
	HandleAck(ack blackboard.RenderAck) bool
}
