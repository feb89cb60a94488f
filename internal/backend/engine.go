package backend

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/dyluth/vibelayer/pkg/blackboard"
	"go.uber.org/zap"
)

// Bus is the transport the backend runs on.
// Implemented by *blackboard.Client.
type Bus interface {
	SubscribeRenderCommands(ctx context.Context, platform string) (*blackboard.Subscription[blackboard.RenderCommand], error)
	PublishRenderAck(ctx context.Context, ack blackboard.RenderAck) error
}

// Engine simulates a renderer backend. Each render command holds its
// instance active for the command's duration, then acks it completed. Stop
// commands end an active instance without an ack.
type Engine struct {
	cfg    *Config
	bus    Bus
	logger *zap.Logger
	ready  chan struct{}

	mu     sync.Mutex
	active map[string]*time.Timer // instance ID -> completion timer
	wg     sync.WaitGroup
}

// New creates a backend engine. It does not consume commands until Start is called.
func New(cfg *Config, bus Bus, logger *zap.Logger) *Engine {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Engine{
		cfg:    cfg,
		bus:    bus,
		logger: logger.With(zap.String("component", "backend"), zap.String("platform", cfg.Platform)),
		ready:  make(chan struct{}),
		active: make(map[string]*time.Timer),
	}
}

// Ready is closed once the render channel subscription is established.
func (e *Engine) Ready() <-chan struct{} {
	return e.ready
}

// Active returns the number of instances currently rendering.
func (e *Engine) Active() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return len(e.active)
}

// Start consumes render commands until ctx is cancelled. Pending renders are
// abandoned on shutdown without acks.
func (e *Engine) Start(ctx context.Context) error {
	sub, err := e.bus.SubscribeRenderCommands(ctx, e.cfg.Platform)
	if err != nil {
		return fmt.Errorf("failed to subscribe to render commands: %w", err)
	}
	defer sub.Close()

	e.logger.Info("backend_started",
		zap.String("event_type", "backend_started"),
		zap.Duration("default_duration", e.cfg.DefaultDuration),
		zap.Strings("fail_types", e.cfg.FailTypes))
	close(e.ready)

	defer e.shutdown()

	for {
		select {
		case <-ctx.Done():
			e.logger.Info("backend_stopping", zap.String("event_type", "backend_stopping"))
			return nil

		case cmd, ok := <-sub.Events():
			if !ok {
				return nil
			}
			e.handleCommand(ctx, cmd)

		case err, ok := <-sub.Errors():
			if ok {
				e.logger.Warn("command_invalid",
					zap.String("event_type", "command_invalid"),
					zap.Error(err))
			}
		}
	}
}

func (e *Engine) handleCommand(ctx context.Context, cmd blackboard.RenderCommand) {
	switch cmd.Action {
	case blackboard.RenderActionRender:
		e.render(ctx, cmd)
	case blackboard.RenderActionStop:
		e.stop(cmd.InstanceID)
	default:
		e.logger.Warn("command_invalid",
			zap.String("event_type", "command_invalid"),
			zap.String("action", string(cmd.Action)),
			zap.String("instance_id", cmd.InstanceID))
	}
}

func (e *Engine) render(ctx context.Context, cmd blackboard.RenderCommand) {
	logger := e.logger.With(
		zap.String("instance_id", cmd.InstanceID),
		zap.String("effect_id", cmd.EffectID),
		zap.String("effect_type", string(cmd.Type)))

	if e.cfg.fails(cmd.Type) {
		logger.Info("render_failed", zap.String("event_type", "render_failed"))
		e.ack(ctx, cmd.InstanceID, blackboard.AckFailed, fmt.Sprintf("simulated failure for %s effects", cmd.Type))
		return
	}

	duration := e.cfg.DefaultDuration
	if cmd.DurationMs > 0 {
		duration = time.Duration(cmd.DurationMs) * time.Millisecond
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	if _, exists := e.active[cmd.InstanceID]; exists {
		logger.Warn("render_duplicate",
			zap.String("event_type", "render_duplicate"))
		return
	}

	e.wg.Add(1)
	e.active[cmd.InstanceID] = time.AfterFunc(duration, func() {
		defer e.wg.Done()
		e.complete(ctx, cmd.InstanceID)
	})

	logger.Info("render_started",
		zap.String("event_type", "render_started"),
		zap.Duration("duration", duration),
		zap.Int("z_index", cmd.ZIndex),
		zap.Float64("intensity", cmd.Intensity))
}

func (e *Engine) complete(ctx context.Context, instanceID string) {
	e.mu.Lock()
	_, ok := e.active[instanceID]
	delete(e.active, instanceID)
	e.mu.Unlock()
	if !ok {
		return
	}

	e.ack(ctx, instanceID, blackboard.AckCompleted, "")
	e.logger.Info("render_completed",
		zap.String("event_type", "render_completed"),
		zap.String("instance_id", instanceID))
}

func (e *Engine) stop(instanceID string) {
	e.mu.Lock()
	timer, ok := e.active[instanceID]
	delete(e.active, instanceID)
	if ok && timer.Stop() {
		e.wg.Done()
	}
	e.mu.Unlock()

	if !ok {
		e.logger.Debug("stop_ignored",
			zap.String("event_type", "stop_ignored"),
			zap.String("instance_id", instanceID))
		return
	}
	e.logger.Info("render_stopped",
		zap.String("event_type", "render_stopped"),
		zap.String("instance_id", instanceID))
}

func (e *Engine) ack(ctx context.Context, instanceID string, status blackboard.AckStatus, reason string) {
	ack := blackboard.RenderAck{
		Platform:   e.cfg.Platform,
		InstanceID: instanceID,
		Status:     status,
		Error:      reason,
	}
	if err := e.bus.PublishRenderAck(ctx, ack); err != nil {
		e.logger.Error("ack_publish_failed",
			zap.String("event_type", "ack_publish_failed"),
			zap.String("instance_id", instanceID),
			zap.Error(err))
	}
}

// shutdown cancels every pending completion and waits for any that already fired.
func (e *Engine) shutdown() {
	e.mu.Lock()
	for id, timer := range e.active {
		if timer.Stop() {
			e.wg.Done()
		}
		delete(e.active, id)
	}
	e.mu.Unlock()

	e.wg.Wait()
	e.logger.Info("backend_stopped", zap.String("event_type", "backend_stopped"))
}
