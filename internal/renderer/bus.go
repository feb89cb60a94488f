package renderer

import (
	"context"
	"fmt"
	"sync"

	"github.com/dyluth/vibelayer/pkg/blackboard"
)

// Kind selects the capability set of a configured renderer.
type Kind string

const (
	KindWeb    Kind = "web"
	KindMobile Kind = "mobile"
	KindCustom Kind = "custom"
)

// Capability sets of the built-in renderers.
var (
	webEffects    = []blackboard.EffectType{blackboard.EffectParticle, blackboard.EffectFilter, blackboard.EffectShader}
	mobileEffects = []blackboard.EffectType{blackboard.EffectParticle, blackboard.EffectAnimation}
)

// Publisher sends render commands to a platform's backend.
// Implemented by *blackboard.Client.
type Publisher interface {
	PublishRenderCommand(ctx context.Context, platform string, cmd blackboard.RenderCommand) error
}

// BusRenderer hands effects to an out-of-process backend over Pub/Sub.
// A render is accepted once its command is published; it completes when the
// backend's ack is passed to HandleAck.
type BusRenderer struct {
	platform  string
	supported map[blackboard.EffectType]struct{}
	pub       Publisher

	mu      sync.Mutex
	pending map[string]func(error) // instance ID -> completion
}

// NewBusRenderer creates a bus renderer for a platform with the given capabilities.
func NewBusRenderer(platform string, effects []blackboard.EffectType, pub Publisher) *BusRenderer {
	supported := make(map[blackboard.EffectType]struct{}, len(effects))
	for _, t := range effects {
		supported[t] = struct{}{}
	}

	return &BusRenderer{
		platform:  platform,
		supported: supported,
		pub:       pub,
		pending:   make(map[string]func(error)),
	}
}

// NewWebRenderer creates the web canvas/WebGL renderer.
func NewWebRenderer(pub Publisher) *BusRenderer {
	return NewBusRenderer(PlatformWeb, webEffects, pub)
}

// NewMobileRenderer creates the mobile GPU surface renderer.
func NewMobileRenderer(pub Publisher) *BusRenderer {
	return NewBusRenderer(PlatformMobile, mobileEffects, pub)
}

// New creates a bus renderer of the given kind. Custom renderers must declare
// their effects; built-in kinds have fixed capabilities.
func New(kind Kind, platform string, effects []blackboard.EffectType, pub Publisher) (*BusRenderer, error) {
	switch kind {
	case KindWeb:
		return NewBusRenderer(platform, webEffects, pub), nil
	case KindMobile:
		return NewBusRenderer(platform, mobileEffects, pub), nil
	case KindCustom:
		if len(effects) == 0 {
			return nil, fmt.Errorf("custom renderer %q must declare at least one effect type", platform)
		}
		return NewBusRenderer(platform, effects, pub), nil
	default:
		return nil, fmt.Errorf("unknown renderer kind %q", kind)
	}
}

// Name returns the platform this renderer serves.
func (b *BusRenderer) Name() string {
	return b.platform
}

// Supports reports whether the backend can render the effect type.
func (b *BusRenderer) Supports(t blackboard.EffectType) bool {
	_, ok := b.supported[t]
	return ok
}

// Render publishes a render command. If publishing fails the render is
// refused and done is never called.
func (b *BusRenderer) Render(ctx context.Context, effect Effect, done func(error)) error {
	if !b.Supports(effect.Type) {
		return fmt.Errorf("%s renderer cannot render %s effects: %w", b.platform, effect.Type, ErrUnsupported)
	}

	b.mu.Lock()
	if _, exists := b.pending[effect.InstanceID]; exists {
		b.mu.Unlock()
		return fmt.Errorf("instance %s is already rendering", effect.InstanceID)
	}
	b.pending[effect.InstanceID] = done
	b.mu.Unlock()

	cmd := blackboard.RenderCommand{
		Action:     blackboard.RenderActionRender,
		InstanceID: effect.InstanceID,
		EffectID:   effect.EffectID,
		LayerID:    effect.LayerID,
		ZIndex:     effect.ZIndex,
		Type:       effect.Type,
		Intensity:  effect.Intensity,
		DurationMs: effect.DurationMs,
		Parameters: effect.Parameters,
	}
	if err := b.pub.PublishRenderCommand(ctx, b.platform, cmd); err != nil {
		b.forget(effect.InstanceID)
		return fmt.Errorf("failed to dispatch render: %w", err)
	}
	return nil
}

// Stop asks the backend to stop an instance. The instance's completion is
// discarded.
func (b *BusRenderer) Stop(ctx context.Context, instanceID string) error {
	b.forget(instanceID)

	cmd := blackboard.RenderCommand{Action: blackboard.RenderActionStop, InstanceID: instanceID}
	if err := b.pub.PublishRenderCommand(ctx, b.platform, cmd); err != nil {
		return fmt.Errorf("failed to dispatch stop: %w", err)
	}
	return nil
}

// HandleAck completes the pending render an ack refers to.
// Returns false if the ack is for another platform or an unknown instance.
func (b *BusRenderer) HandleAck(ack blackboard.RenderAck) bool {
	if ack.Platform != b.platform {
		return false
	}

	done, ok := b.take(ack.InstanceID)
	if !ok {
		return false
	}

	if ack.Status == blackboard.AckFailed {
		reason := ack.Error
		if reason == "" {
			reason = "backend reported failure"
		}
		done(fmt.Errorf("%s: %w", reason, ErrRenderFailed))
		return true
	}
	done(nil)
	return true
}

func (b *BusRenderer) take(instanceID string) (func(error), bool) {
	b.mu.Lock()
	defer b.mu.Unlock()

	done, ok := b.pending[instanceID]
	if ok {
		delete(b.pending, instanceID)
	}
	return done, ok
}

func (b *BusRenderer) forget(instanceID string) {
	b.mu.Lock()
	delete(b.pending, instanceID)
	b.mu.Unlock()
}
