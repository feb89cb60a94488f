package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/dyluth/vibelayer/internal/renderer"
	"github.com/dyluth/vibelayer/pkg/blackboard"
	"github.com/dyluth/vibelayer/pkg/protocol"
	"go.uber.org/zap"
)

// Store resolves the layer and brand context of incoming messages.
// Implemented by *blackboard.Client.
type Store interface {
	LayerForEffect(ctx context.Context, effectID string) (*blackboard.Layer, error)
	ActiveBrandKit(ctx context.Context, ownerID string) (*blackboard.BrandKit, error)
	RecordCreatorConnection(ctx context.Context, creator *blackboard.Creator) error
}

// Bus is the shared-state transport the engine runs on.
// Implemented by *blackboard.Client.
type Bus interface {
	Store
	SubscribeIngress(ctx context.Context) (*blackboard.Subscription[blackboard.IngressEvent], error)
	SubscribeRenderAcks(ctx context.Context) (*blackboard.Subscription[blackboard.RenderAck], error)
	SubscribeControl(ctx context.Context) (*blackboard.Subscription[blackboard.ControlCommand], error)
	PublishStatus(ctx context.Context, payload []byte) error
	SaveInstanceRecord(ctx context.Context, r *blackboard.InstanceRecord, ttl time.Duration) error
	AppendHistory(ctx context.Context, entry blackboard.HistoryEntry) error
}

// EngineConfig holds the engine's message-handling settings.
type EngineConfig struct {
	// AIAutoApplyConfidence is the confidence at or above which AI suggestions
	// are submitted as triggers. Zero disables auto-apply.
	AIAutoApplyConfidence float64

	// SnapshotTTL is how long mirrored instance snapshots live on the blackboard.
	SnapshotTTL time.Duration
}

// Engine connects the orchestrator to the blackboard: it decodes client
// messages, routes renderer acknowledgements and control commands, and
// publishes status events.
type Engine struct {
	bus      Bus
	orch     *Orchestrator
	registry *renderer.Registry
	cfg      EngineConfig
	logger   *zap.Logger
	ready    chan struct{}
}

// NewEngine creates an engine. The registry is used to route render acks to
// the renderer that dispatched the instance.
func NewEngine(bus Bus, orch *Orchestrator, registry *renderer.Registry, cfg EngineConfig, logger *zap.Logger) *Engine {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Engine{
		bus:      bus,
		orch:     orch,
		registry: registry,
		cfg:      cfg,
		logger:   logger.With(zap.String("component", "engine")),
		ready:    make(chan struct{}),
	}
}

// Ready is closed once all subscriptions are established.
func (e *Engine) Ready() <-chan struct{} {
	return e.ready
}

// Run subscribes to ingress, render acks and control commands and handles
// them until ctx is cancelled. Message handling errors are logged and never
// stop the engine.
func (e *Engine) Run(ctx context.Context) error {
	ingress, err := e.bus.SubscribeIngress(ctx)
	if err != nil {
		return fmt.Errorf("failed to subscribe to ingress: %w", err)
	}
	defer ingress.Close()

	acks, err := e.bus.SubscribeRenderAcks(ctx)
	if err != nil {
		return fmt.Errorf("failed to subscribe to render acks: %w", err)
	}
	defer acks.Close()

	control, err := e.bus.SubscribeControl(ctx)
	if err != nil {
		return fmt.Errorf("failed to subscribe to control commands: %w", err)
	}
	defer control.Close()

	close(e.ready)
	e.logger.Info("engine_started", zap.String("event_type", "engine_started"))

	for {
		select {
		case <-ctx.Done():
			e.logger.Info("engine_stopped", zap.String("event_type", "engine_stopped"))
			return nil

		case ev, ok := <-ingress.Events():
			if !ok {
				return nil
			}
			e.handleIngress(ctx, ev)

		case ack, ok := <-acks.Events():
			if !ok {
				return nil
			}
			e.handleAck(ack)

		case cmd, ok := <-control.Events():
			if !ok {
				return nil
			}
			e.handleControl(ctx, cmd)

		case err, ok := <-ingress.Errors():
			if ok {
				e.logger.Warn("ingress_error", zap.String("event_type", "subscription_error"), zap.Error(err))
			}
		case err, ok := <-acks.Errors():
			if ok {
				e.logger.Warn("render_ack_error", zap.String("event_type", "subscription_error"), zap.Error(err))
			}
		case err, ok := <-control.Errors():
			if ok {
				e.logger.Warn("control_error", zap.String("event_type", "subscription_error"), zap.Error(err))
			}
		}
	}
}

func (e *Engine) handleIngress(ctx context.Context, ev blackboard.IngressEvent) {
	msg, err := protocol.Decode(ev.Payload)
	if err != nil {
		e.logger.Warn("message_rejected",
			zap.String("event_type", "decode_failed"),
			zap.String("creator_id", ev.CreatorID),
			zap.String("platform", ev.Platform),
			zap.Error(err),
		)
		e.reportRejected(ctx, &protocol.EffectStatus{Reason: err.Error()})
		return
	}

	switch p := msg.Payload.(type) {
	case *protocol.EffectTrigger:
		e.submit(ctx, ev, msg, p.EffectID)

	case *protocol.AISuggestion:
		if e.cfg.AIAutoApplyConfidence <= 0 || p.Confidence < e.cfg.AIAutoApplyConfidence {
			e.logger.Info("suggestion_received",
				zap.String("event_type", "suggestion_skipped"),
				zap.String("message_id", msg.ID),
				zap.String("effect_id", p.EffectID),
				zap.Float64("confidence", p.Confidence),
				zap.String("reasoning", p.Reasoning),
			)
			return
		}
		trigger := protocol.Message{
			ID:        msg.ID,
			Timestamp: msg.Timestamp,
			Payload:   &protocol.EffectTrigger{EffectID: p.EffectID, Intensity: p.Confidence},
		}
		e.submit(ctx, ev, trigger, p.EffectID)

	case *protocol.CreatorConnection:
		if p.CreatorID != ev.CreatorID {
			e.logger.Warn("creator_mismatch",
				zap.String("event_type", "creator_mismatch"),
				zap.String("channel_creator", ev.CreatorID),
				zap.String("payload_creator", p.CreatorID),
			)
			return
		}
		creator := &blackboard.Creator{
			ID:               p.CreatorID,
			DisplayName:      p.DisplayName,
			SubscriptionTier: string(p.SubscriptionTier),
			ConnectedAtMs:    msg.Timestamp,
		}
		if err := e.bus.RecordCreatorConnection(ctx, creator); err != nil {
			e.logger.Error("creator_record_failed", zap.String("creator_id", p.CreatorID), zap.Error(err))
			return
		}
		e.logger.Info("creator_connected",
			zap.String("event_type", "creator_connected"),
			zap.String("creator_id", p.CreatorID),
			zap.String("platform", ev.Platform),
			zap.String("tier", string(p.SubscriptionTier)),
		)

	case *protocol.SystemStatus:
		e.orch.RecordClientPerformance(p.Performance)
	}
}

func (e *Engine) submit(ctx context.Context, ev blackboard.IngressEvent, msg protocol.Message, effectID string) {
	layer, err := e.bus.LayerForEffect(ctx, effectID)
	if err != nil && !blackboard.IsNotFound(err) {
		e.logger.Error("layer_lookup_failed", zap.String("effect_id", effectID), zap.Error(err))
		return
	}
	if layer != nil && layer.OwnerID != ev.CreatorID {
		err := fmt.Errorf("effect %q belongs to another creator: %w", effectID, ErrInvalidTrigger)
		e.rejectTrigger(ctx, ev, msg, effectID, err)
		return
	}

	var kit *blackboard.BrandKit
	if layer != nil {
		kit, err = e.bus.ActiveBrandKit(ctx, layer.OwnerID)
		if err != nil {
			e.logger.Error("brand_kit_lookup_failed", zap.String("owner_id", layer.OwnerID), zap.Error(err))
			return
		}
	}

	inst, err := e.orch.Submit(ctx, Request{Message: msg, Layer: layer, BrandKit: kit, Platform: ev.Platform})
	switch {
	case errors.Is(err, ErrInvalidTrigger):
		e.rejectTrigger(ctx, ev, msg, effectID, err)
	case err != nil:
		e.logger.Warn("trigger_not_rendered",
			zap.String("event_type", "trigger_not_rendered"),
			zap.String("message_id", msg.ID),
			zap.String("instance_id", inst.ID),
			zap.Error(err),
		)
	}
}

func (e *Engine) rejectTrigger(ctx context.Context, ev blackboard.IngressEvent, msg protocol.Message, effectID string, err error) {
	e.logger.Warn("trigger_rejected",
		zap.String("event_type", "invalid_trigger"),
		zap.String("message_id", msg.ID),
		zap.String("effect_id", effectID),
		zap.String("creator_id", ev.CreatorID),
		zap.Error(err),
	)
	e.reportRejected(ctx, &protocol.EffectStatus{
		TriggerID: msg.ID,
		EffectID:  effectID,
		Reason:    err.Error(),
	})
}

// reportRejected publishes a status event for input that never became an instance.
func (e *Engine) reportRejected(ctx context.Context, status *protocol.EffectStatus) {
	status.State = protocol.StateRejected
	ev := StatusEvent{Message: protocol.NewSystemStatus(true, map[string]protocol.ServiceState{}, protocol.Performance{}, status)}
	if err := e.PublishStatus(ctx, ev); err != nil {
		e.logger.Warn("status_publish_failed", zap.String("event_type", "status_publish_failed"), zap.Error(err))
	}
}

func (e *Engine) handleAck(ack blackboard.RenderAck) {
	rend, ok := e.registry.Get(ack.Platform)
	if ok {
		if handler, ok := rend.(renderer.AckHandler); ok && handler.HandleAck(ack) {
			return
		}
	}
	e.logger.Debug("render_ack_unmatched",
		zap.String("event_type", "render_ack_unmatched"),
		zap.String("platform", ack.Platform),
		zap.String("instance_id", ack.InstanceID),
	)
}

func (e *Engine) handleControl(ctx context.Context, cmd blackboard.ControlCommand) {
	switch cmd.Action {
	case blackboard.ControlCancel:
		inst, err := e.orch.Cancel(ctx, cmd.InstanceID)
		if err != nil {
			e.logger.Warn("cancel_failed", zap.String("instance_id", cmd.InstanceID), zap.Error(err))
			return
		}
		e.logger.Info("cancel_handled",
			zap.String("event_type", "cancel_handled"),
			zap.String("instance_id", inst.ID),
			zap.String("state", string(inst.State)),
		)
	}
}

// PublishStatus implements StatusSink. The encoded message is published on the
// status channel; lifecycle events are also mirrored as instance snapshots and
// history entries.
func (e *Engine) PublishStatus(ctx context.Context, ev StatusEvent) error {
	raw, err := protocol.Encode(ev.Message)
	if err != nil {
		return fmt.Errorf("failed to encode status event: %w", err)
	}
	if err := e.bus.PublishStatus(ctx, raw); err != nil {
		return err
	}

	if ev.Instance == nil {
		return nil
	}
	inst := ev.Instance
	if err := e.bus.SaveInstanceRecord(ctx, inst.Record(), e.cfg.SnapshotTTL); err != nil {
		return fmt.Errorf("failed to mirror instance %s: %w", inst.ID, err)
	}
	entry := blackboard.HistoryEntry{
		InstanceID: inst.ID,
		EffectID:   inst.EffectID,
		LayerID:    inst.LayerID,
		State:      string(inst.State),
		Reason:     string(inst.Reason),
		AtMs:       inst.UpdatedAt.UnixMilli(),
	}
	if err := e.bus.AppendHistory(ctx, entry); err != nil {
		return fmt.Errorf("failed to record history for %s: %w", inst.ID, err)
	}
	return nil
}
