// Package orchestrator admits effect triggers, gates them on brand
// consistency, dispatches them to a platform renderer and tracks each
// resulting effect instance through its lifecycle.
package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/dyluth/vibelayer/internal/brand"
	"github.com/dyluth/vibelayer/internal/renderer"
	"github.com/dyluth/vibelayer/pkg/blackboard"
	"github.com/dyluth/vibelayer/pkg/protocol"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// stopTimeout bounds each best-effort backend stop.
const stopTimeout = 5 * time.Second

// BrandMode controls whether the brand gate rejects low-scoring effects.
type BrandMode string

const (
	// BrandEnforce rejects effects scoring below the threshold.
	BrandEnforce BrandMode = "enforce"
	// BrandAdvisory records the score but never rejects.
	BrandAdvisory BrandMode = "advisory"
)

// Config is fixed at construction.
type Config struct {
	BrandThreshold   float64
	BrandMode        BrandMode
	RenderTimeout    time.Duration
	Retention        time.Duration // How long terminal instances stay queryable
	ReapInterval     time.Duration
	SnapshotInterval time.Duration // Period of performance status events; 0 disables them
	EventBuffer      int
}

// DefaultConfig returns the orchestrator defaults.
func DefaultConfig() Config {
	return Config{
		BrandThreshold:   0.7,
		BrandMode:        BrandEnforce,
		RenderTimeout:    30 * time.Second,
		Retention:        5 * time.Minute,
		ReapInterval:     30 * time.Second,
		SnapshotInterval: 10 * time.Second,
		EventBuffer:      256,
	}
}

// Resolver finds the renderer for a platform and effect type.
// Implemented by *renderer.Registry.
type Resolver interface {
	Resolve(platform string, t blackboard.EffectType) (renderer.Renderer, error)
	Platforms() []string
}

// Scorer measures content against a brand kit.
type Scorer interface {
	Evaluate(kit *blackboard.BrandKit, content brand.Content) brand.Score
}

// ScorerFunc adapts a function to the Scorer interface.
type ScorerFunc func(kit *blackboard.BrandKit, content brand.Content) brand.Score

// Evaluate calls f.
func (f ScorerFunc) Evaluate(kit *blackboard.BrandKit, content brand.Content) brand.Score {
	return f(kit, content)
}

// Option customises an Orchestrator.
type Option func(*Orchestrator)

// WithScorer replaces the brand scorer.
func WithScorer(s Scorer) Option {
	return func(o *Orchestrator) { o.scorer = s }
}

// WithClock replaces the time source.
func WithClock(now func() time.Time) Option {
	return func(o *Orchestrator) { o.now = now }
}

// Request is one trigger submission with the context resolved by the caller.
type Request struct {
	Message  protocol.Message     // Must carry an *protocol.EffectTrigger payload
	Layer    *blackboard.Layer    // Layer the effect is attached to, with Effects populated
	BrandKit *blackboard.BrandKit // Owner's active brand kit
	Platform string               // Target platform of the requesting client
}

// StatusEvent is an outbound system:status message. Instance is set for
// lifecycle transitions and nil for performance snapshots and rejected input.
type StatusEvent struct {
	Message  protocol.Message
	Instance *Instance
}

// StatusSink receives status events from Run.
type StatusSink interface {
	PublishStatus(ctx context.Context, ev StatusEvent) error
}

type slot struct {
	mu       sync.Mutex
	occupant string // Last instance dispatched to the slot; may since have finished
	refs     int    // Holders and waiters of mu, guarded by slotsMu
}

// Orchestrator tracks effect instances. It is safe for concurrent use.
//
// Locks are always taken in the order slot lock, then table lock. Completion
// callbacks and the render deadline take only the table lock. The slot map
// lock is never held while waiting on a slot lock that has other holders.
type Orchestrator struct {
	cfg      Config
	resolver Resolver
	scorer   Scorer
	logger   *zap.Logger
	now      func() time.Time
	metrics  *metrics

	slotsMu sync.Mutex
	slots   map[Slot]*slot

	mu        sync.RWMutex
	instances map[string]*record

	events chan StatusEvent
}

// New creates an orchestrator.
func New(cfg Config, resolver Resolver, logger *zap.Logger, opts ...Option) *Orchestrator {
	if cfg.EventBuffer <= 0 {
		cfg.EventBuffer = DefaultConfig().EventBuffer
	}
	if cfg.BrandMode == "" {
		cfg.BrandMode = BrandEnforce
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	o := &Orchestrator{
		cfg:       cfg,
		resolver:  resolver,
		scorer:    ScorerFunc(brand.Evaluate),
		logger:    logger.With(zap.String("component", "orchestrator")),
		now:       time.Now,
		metrics:   newMetrics(),
		slots:     make(map[Slot]*slot),
		instances: make(map[string]*record),
		events:    make(chan StatusEvent, cfg.EventBuffer),
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// Submit admits a trigger.
//
// Invalid triggers return ErrInvalidTrigger and create no instance. A trigger
// that fails the brand gate returns a Rejected instance and a nil error. A
// trigger no renderer can handle returns a Rejected instance together with
// ErrUnsupportedRenderer. Otherwise the effect is dispatched and the returned
// instance is Rendering, or Rejected if the renderer refused it.
func (o *Orchestrator) Submit(ctx context.Context, req Request) (Instance, error) {
	start := o.now()

	trigger, effect, err := validateRequest(req)
	if err != nil {
		return Instance{}, err
	}

	sl, unlock := o.lockSlot(Slot{LayerID: req.Layer.ID, ZIndex: req.Layer.ZIndex})
	defer unlock()
	defer func() { o.metrics.observeAdmission(o.now().Sub(start)) }()

	rec := &record{inst: Instance{
		ID:        uuid.New().String(),
		TriggerID: req.Message.ID,
		EffectID:  effect.ID,
		LayerID:   req.Layer.ID,
		Slot:      Slot{LayerID: req.Layer.ID, ZIndex: req.Layer.ZIndex},
		Platform:  req.Platform,
		State:     StateQueued,
		CreatedAt: start,
		UpdatedAt: start,
	}}

	colors, fonts, tone := trigger.Content()
	score := o.scorer.Evaluate(req.BrandKit, brand.Content{Colors: colors, Fonts: fonts, Tone: tone})
	rec.inst.Score = &score

	if score.Overall < o.cfg.BrandThreshold {
		if o.cfg.BrandMode == BrandEnforce {
			detail := fmt.Sprintf("brand score %.2f below threshold %.2f", score.Overall, o.cfg.BrandThreshold)
			if issues := score.Issues(); len(issues) > 0 {
				detail += ": " + strings.Join(issues, "; ")
			}
			return o.reject(rec, RejectionBrandGate, detail), nil
		}
		o.logger.Info("brand_gate_advisory",
			zap.String("event_type", "brand_gate_advisory"),
			zap.String("effect_id", effect.ID),
			zap.Float64("score", score.Overall),
			zap.Strings("issues", score.Issues()),
		)
	}

	rend, err := o.resolver.Resolve(req.Platform, effect.Type)
	if err != nil {
		inst := o.reject(rec, RejectionUnsupported, err.Error())
		return inst, fmt.Errorf("%w: %w", ErrUnsupportedRenderer, err)
	}
	rec.rend = rend
	rec.inst.Renderer = rend.Name()

	if sl.occupant != "" {
		o.stop(sl.occupant, ReasonSuperseded, "slot taken by a newer trigger")
	}

	// The render context outlives the request; it ends with the instance.
	renderCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	rec.cancel = cancel
	accepted := make(chan struct{})

	o.mu.Lock()
	o.instances[rec.inst.ID] = rec
	queued := rec.inst
	o.mu.Unlock()
	o.emit(queued)

	err = rend.Render(renderCtx, renderEffect(rec.inst, trigger, effect), o.completion(rec.inst.ID, accepted))

	o.mu.Lock()
	if err != nil {
		rec.transition(StateRejected, RejectionRenderRefused, err.Error(), o.now())
	} else if rec.transition(StateRendering, "", "", o.now()) && o.cfg.RenderTimeout > 0 {
		id := rec.inst.ID
		rec.timer = time.AfterFunc(o.cfg.RenderTimeout, func() { o.expire(id) })
	}
	inst := rec.inst
	o.mu.Unlock()

	if inst.State == StateRendering {
		sl.occupant = inst.ID
	}
	o.logTransition(inst)
	o.emit(inst)
	close(accepted)
	return inst, nil
}

// validateRequest checks the trigger against its layer before any scoring or
// renderer lookup happens.
func validateRequest(req Request) (*protocol.EffectTrigger, *blackboard.Effect, error) {
	trigger, ok := req.Message.Payload.(*protocol.EffectTrigger)
	if !ok {
		return nil, nil, fmt.Errorf("message %q is %q, not an effect trigger: %w", req.Message.ID, req.Message.Type(), ErrInvalidTrigger)
	}
	if req.Layer == nil {
		return nil, nil, fmt.Errorf("effect %q is not attached to any layer: %w", trigger.EffectID, ErrInvalidTrigger)
	}
	if !req.Layer.Visible {
		return nil, nil, fmt.Errorf("layer %q is hidden: %w", req.Layer.ID, ErrInvalidTrigger)
	}
	effect, ok := req.Layer.FindEffect(trigger.EffectID)
	if !ok {
		return nil, nil, fmt.Errorf("effect %q not found on layer %q: %w", trigger.EffectID, req.Layer.ID, ErrInvalidTrigger)
	}
	if !effect.Enabled {
		return nil, nil, fmt.Errorf("effect %q is disabled: %w", effect.ID, ErrInvalidTrigger)
	}
	if req.BrandKit == nil {
		return nil, nil, fmt.Errorf("no brand kit for layer owner %q: %w", req.Layer.OwnerID, ErrInvalidTrigger)
	}
	return trigger, effect, nil
}

func renderEffect(inst Instance, trigger *protocol.EffectTrigger, effect *blackboard.Effect) renderer.Effect {
	params := make(map[string]any, len(effect.Parameters)+len(trigger.Parameters))
	for k, v := range effect.Parameters {
		params[k] = v
	}
	for k, v := range trigger.Parameters {
		params[k] = v
	}

	durationMs := effect.DurationMs
	if trigger.Duration != nil {
		durationMs = *trigger.Duration
	}

	return renderer.Effect{
		InstanceID: inst.ID,
		EffectID:   effect.ID,
		LayerID:    inst.LayerID,
		ZIndex:     inst.Slot.ZIndex,
		Type:       effect.Type,
		Intensity:  trigger.Intensity,
		DurationMs: durationMs,
		Parameters: params,
	}
}

// reject records a Queued instance directly as Rejected. Called with the slot lock held.
func (o *Orchestrator) reject(rec *record, reason Reason, detail string) Instance {
	o.mu.Lock()
	rec.transition(StateRejected, reason, detail, o.now())
	o.instances[rec.inst.ID] = rec
	inst := rec.inst
	o.mu.Unlock()

	o.logTransition(inst)
	o.emit(inst)
	return inst
}

// completion returns the done callback handed to a renderer. The callback
// returns immediately; the transition is applied on another goroutine once
// Submit has recorded the render's acceptance.
func (o *Orchestrator) completion(id string, accepted <-chan struct{}) func(error) {
	var once sync.Once
	return func(renderErr error) {
		once.Do(func() {
			go func() {
				<-accepted
				o.finish(id, renderErr)
			}()
		})
	}
}

func (o *Orchestrator) finish(id string, renderErr error) {
	o.mu.Lock()
	rec, ok := o.instances[id]
	if !ok || rec.inst.State != StateRendering {
		o.mu.Unlock()
		return
	}
	if renderErr == nil {
		rec.transition(StateStopped, ReasonCompleted, "", o.now())
	} else {
		rec.transition(StateFailed, ReasonRenderFailed, renderErr.Error(), o.now())
	}
	inst := rec.inst
	o.mu.Unlock()

	o.logTransition(inst)
	o.emit(inst)
}

// expire fails an instance whose render deadline passed.
func (o *Orchestrator) expire(id string) {
	o.mu.Lock()
	rec, ok := o.instances[id]
	if !ok || !rec.transition(StateFailed, ReasonRenderTimeout, fmt.Sprintf("no completion within %s", o.cfg.RenderTimeout), o.now()) {
		o.mu.Unlock()
		return
	}
	inst, rend := rec.inst, rec.rend
	o.mu.Unlock()

	o.logTransition(inst)
	o.emit(inst)
	o.stopBackend(rend, id)
}

// Cancel stops a queued or rendering instance. The instance is Stopped
// whatever the backend's stop outcome. Cancelling a terminal instance is a
// no-op that returns its current state.
func (o *Orchestrator) Cancel(ctx context.Context, id string) (Instance, error) {
	o.mu.RLock()
	rec, ok := o.instances[id]
	var s Slot
	if ok {
		s = rec.inst.Slot
	}
	o.mu.RUnlock()
	if !ok {
		return Instance{}, fmt.Errorf("instance %s: %w", id, ErrInstanceNotFound)
	}

	_, unlock := o.lockSlot(s)
	defer unlock()

	return o.stop(id, ReasonCancelled, ""), nil
}

// stop moves an instance to Stopped and fires a backend stop. Called with the slot lock held.
func (o *Orchestrator) stop(id string, reason Reason, detail string) Instance {
	o.mu.Lock()
	rec, ok := o.instances[id]
	if !ok {
		o.mu.Unlock()
		return Instance{}
	}
	if !rec.transition(StateStopped, reason, detail, o.now()) {
		inst := rec.inst
		o.mu.Unlock()
		return inst
	}
	inst, rend := rec.inst, rec.rend
	o.mu.Unlock()

	o.logTransition(inst)
	o.emit(inst)
	if rend != nil {
		o.stopBackend(rend, id)
	}
	return inst
}

// stopBackend asks the renderer to stop without waiting. Failures are logged.
func (o *Orchestrator) stopBackend(rend renderer.Renderer, id string) {
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), stopTimeout)
		defer cancel()
		if err := rend.Stop(ctx, id); err != nil {
			o.logger.Warn("backend_stop_failed",
				zap.String("event_type", "backend_stop_failed"),
				zap.String("instance_id", id),
				zap.String("renderer", rend.Name()),
				zap.Error(err),
			)
		}
	}()
}

// Get returns a copy of an instance.
func (o *Orchestrator) Get(id string) (Instance, error) {
	o.mu.RLock()
	defer o.mu.RUnlock()

	rec, ok := o.instances[id]
	if !ok {
		return Instance{}, fmt.Errorf("instance %s: %w", id, ErrInstanceNotFound)
	}
	return rec.inst, nil
}

// List returns copies of every tracked instance, oldest first.
func (o *Orchestrator) List() []Instance {
	o.mu.RLock()
	out := make([]Instance, 0, len(o.instances))
	for _, rec := range o.instances {
		out = append(out, rec.inst)
	}
	o.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].ID < out[j].ID
		}
		return out[i].CreatedAt.Before(out[j].CreatedAt)
	})
	return out
}

// Reap evicts terminal instances whose retention window ended before now,
// then drops slots with no live occupant. Returns the number of instances evicted.
func (o *Orchestrator) Reap(now time.Time) int {
	o.mu.Lock()
	evicted := 0
	for id, rec := range o.instances {
		if rec.inst.State.IsTerminal() && now.Sub(rec.terminalAt) >= o.cfg.Retention {
			delete(o.instances, id)
			evicted++
		}
	}
	o.mu.Unlock()

	o.pruneSlots()
	return evicted
}

// pruneSlots removes slots that nobody holds and whose occupant is gone or terminal.
func (o *Orchestrator) pruneSlots() {
	o.slotsMu.Lock()
	defer o.slotsMu.Unlock()

	for key, sl := range o.slots {
		if sl.refs > 0 {
			continue
		}
		sl.mu.Lock()
		idle := sl.occupant == "" || !o.isLive(sl.occupant)
		sl.mu.Unlock()
		if idle {
			delete(o.slots, key)
		}
	}
}

func (o *Orchestrator) isLive(id string) bool {
	o.mu.RLock()
	defer o.mu.RUnlock()
	rec, ok := o.instances[id]
	return ok && !rec.inst.State.IsTerminal()
}

// RecordClientPerformance stores the latest performance reported by a client.
func (o *Orchestrator) RecordClientPerformance(p protocol.Performance) {
	o.metrics.recordClient(p)
}

// Run publishes status events to sink, reaps expired instances and emits
// periodic performance snapshots until ctx is cancelled. Sink failures are
// logged and never stop the loop.
func (o *Orchestrator) Run(ctx context.Context, sink StatusSink) error {
	if o.cfg.ReapInterval <= 0 {
		return errors.New("reap interval must be positive")
	}
	reap := time.NewTicker(o.cfg.ReapInterval)
	defer reap.Stop()

	var snapshots <-chan time.Time
	if o.cfg.SnapshotInterval > 0 {
		ticker := time.NewTicker(o.cfg.SnapshotInterval)
		defer ticker.Stop()
		snapshots = ticker.C
	}

	o.logger.Info("orchestrator_started", zap.String("event_type", "orchestrator_started"))

	for {
		select {
		case <-ctx.Done():
			o.logger.Info("orchestrator_stopped", zap.String("event_type", "orchestrator_stopped"))
			return nil

		case ev := <-o.events:
			o.publish(ctx, sink, ev)

		case now := <-reap.C:
			if n := o.Reap(now); n > 0 {
				o.logger.Debug("instances_reaped", zap.String("event_type", "instances_reaped"), zap.Int("count", n))
			}

		case <-snapshots:
			o.publish(ctx, sink, StatusEvent{Message: o.PerformanceStatus()})
		}
	}
}

func (o *Orchestrator) publish(ctx context.Context, sink StatusSink, ev StatusEvent) {
	if err := sink.PublishStatus(ctx, ev); err != nil {
		o.logger.Warn("status_publish_failed", zap.String("event_type", "status_publish_failed"), zap.Error(err))
	}
}

// PerformanceStatus builds a system:status snapshot of the orchestrator.
func (o *Orchestrator) PerformanceStatus() protocol.Message {
	o.metrics.sampleMemory()
	return protocol.NewSystemStatus(true, o.services(), o.metrics.snapshot(), nil)
}

// services reports every registered platform as online.
func (o *Orchestrator) services() map[string]protocol.ServiceState {
	platforms := o.resolver.Platforms()
	services := make(map[string]protocol.ServiceState, len(platforms))
	for _, p := range platforms {
		services[p] = protocol.ServiceOnline
	}
	return services
}

// emit queues a lifecycle status event. Events are dropped when the queue is full.
func (o *Orchestrator) emit(inst Instance) {
	ev := StatusEvent{
		Message:  protocol.NewSystemStatus(true, o.services(), o.metrics.snapshot(), inst.Status()),
		Instance: &inst,
	}
	select {
	case o.events <- ev:
	default:
		o.metrics.dropEvent()
		o.logger.Warn("status_event_dropped",
			zap.String("event_type", "status_event_dropped"),
			zap.String("instance_id", inst.ID),
			zap.String("state", string(inst.State)),
		)
	}
}

// DroppedEvents returns how many status events were discarded because the queue was full.
func (o *Orchestrator) DroppedEvents() int64 {
	return o.metrics.droppedEvents()
}

// lockSlot locks the slot, creating it if needed, and returns its unlock func.
// The reference count keeps pruneSlots from dropping a slot that is in use.
func (o *Orchestrator) lockSlot(s Slot) (*slot, func()) {
	o.slotsMu.Lock()
	sl, ok := o.slots[s]
	if !ok {
		sl = &slot{}
		o.slots[s] = sl
	}
	sl.refs++
	o.slotsMu.Unlock()

	sl.mu.Lock()
	return sl, func() {
		sl.mu.Unlock()
		o.slotsMu.Lock()
		sl.refs--
		o.slotsMu.Unlock()
	}
}

func (o *Orchestrator) logTransition(inst Instance) {
	fields := []zap.Field{
		zap.String("event_type", "instance_"+string(inst.State)),
		zap.String("instance_id", inst.ID),
		zap.String("trigger_id", inst.TriggerID),
		zap.String("effect_id", inst.EffectID),
		zap.String("slot", inst.Slot.String()),
		zap.String("platform", inst.Platform),
	}
	if inst.Reason != "" {
		fields = append(fields, zap.String("reason", string(inst.Reason)))
	}
	if inst.Detail != "" {
		fields = append(fields, zap.String("detail", inst.Detail))
	}
	if inst.Score != nil {
		fields = append(fields, zap.Float64("brand_score", inst.Score.Overall))
	}
	o.logger.Info("instance_transition", fields...)
}
