package orchestrator

import (
	"context"
	"fmt"
	"time"

	"github.com/dyluth/vibelayer/internal/brand"
	"github.com/dyluth/vibelayer/internal/renderer"
	"github.com/dyluth/vibelayer/pkg/blackboard"
	"github.com/dyluth/vibelayer/pkg/protocol"
)

// State is the lifecycle state of an effect instance.
type State string

const (
	StateQueued    State = "queued"
	StateRendering State = "rendering"
	StateStopped   State = "stopped"
	StateRejected  State = "rejected"
	StateFailed    State = "failed"
)

// transitions lists the states each state may move to. Terminal states have none.
var transitions = map[State][]State{
	StateQueued:    {StateRendering, StateRejected, StateStopped},
	StateRendering: {StateStopped, StateFailed},
}

// IsTerminal reports whether no further transitions are possible.
func (s State) IsTerminal() bool {
	return len(transitions[s]) == 0
}

// CanTransition reports whether moving from s to next is allowed.
func (s State) CanTransition(next State) bool {
	for _, allowed := range transitions[s] {
		if allowed == next {
			return true
		}
	}
	return false
}

// Reason explains why an instance reached its current state.
type Reason string

const (
	RejectionBrandGate     Reason = "brand_gate"
	RejectionUnsupported   Reason = "unsupported_renderer"
	RejectionRenderRefused Reason = "render_refused"

	ReasonCompleted     Reason = "completed"
	ReasonCancelled     Reason = "cancelled"
	ReasonSuperseded    Reason = "superseded"
	ReasonRenderFailed  Reason = "render_failed"
	ReasonRenderTimeout Reason = "render_timeout"
)

// Slot is a paint position on a layer. At most one instance renders per slot.
type Slot struct {
	LayerID string `json:"layer_id"`
	ZIndex  int    `json:"z_index"`
}

func (s Slot) String() string {
	return fmt.Sprintf("%s@%d", s.LayerID, s.ZIndex)
}

// Instance is a point-in-time copy of one effect instance.
type Instance struct {
	ID        string       `json:"id"`
	TriggerID string       `json:"trigger_id"` // ID of the message that caused the instance
	EffectID  string       `json:"effect_id"`
	LayerID   string       `json:"layer_id"`
	Slot      Slot         `json:"slot"`
	Platform  string       `json:"platform"`
	Renderer  string       `json:"renderer,omitempty"` // Empty until a renderer is resolved
	State     State        `json:"state"`
	Reason    Reason       `json:"reason,omitempty"`
	Detail    string       `json:"detail,omitempty"` // Human-readable context for Reason
	Score     *brand.Score `json:"score,omitempty"`  // Nil when scoring did not run
	CreatedAt time.Time    `json:"created_at"`
	UpdatedAt time.Time    `json:"updated_at"`
}

// Rejection returns the rejection reason, or "" if the instance was not rejected.
func (i Instance) Rejection() Reason {
	if i.State != StateRejected {
		return ""
	}
	return i.Reason
}

// Status builds the lifecycle block of an outbound system:status message.
func (i Instance) Status() *protocol.EffectStatus {
	status := &protocol.EffectStatus{
		InstanceID: i.ID,
		TriggerID:  i.TriggerID,
		EffectID:   i.EffectID,
		LayerID:    i.LayerID,
		State:      protocol.EffectState(i.State),
		Reason:     string(i.Reason),
	}
	if i.Score != nil {
		overall := i.Score.Overall
		status.Score = &overall
	}
	return status
}

// Record converts the instance to its blackboard snapshot.
func (i Instance) Record() *blackboard.InstanceRecord {
	record := &blackboard.InstanceRecord{
		ID:          i.ID,
		TriggerID:   i.TriggerID,
		EffectID:    i.EffectID,
		LayerID:     i.LayerID,
		ZIndex:      i.Slot.ZIndex,
		Platform:    i.Platform,
		Renderer:    i.Renderer,
		State:       string(i.State),
		Reason:      string(i.Reason),
		CreatedAtMs: i.CreatedAt.UnixMilli(),
		UpdatedAtMs: i.UpdatedAt.UnixMilli(),
	}
	if i.Score != nil {
		overall := i.Score.Overall
		record.Score = &overall
	}
	return record
}

// record is the orchestrator's mutable bookkeeping for one instance.
// All fields are guarded by the orchestrator's table lock.
type record struct {
	inst       Instance
	rend       renderer.Renderer
	cancel     context.CancelFunc // Cancels the render context; nil unless dispatched
	timer      *time.Timer        // Render deadline; nil unless rendering
	terminalAt time.Time
}

// transition moves the record to next. It returns false, leaving the record
// unchanged, if the move is not allowed.
func (r *record) transition(next State, reason Reason, detail string, now time.Time) bool {
	if !r.inst.State.CanTransition(next) {
		return false
	}
	r.inst.State = next
	r.inst.Reason = reason
	r.inst.Detail = detail
	r.inst.UpdatedAt = now

	if next.IsTerminal() {
		r.terminalAt = now
		if r.timer != nil {
			r.timer.Stop()
		}
		if r.cancel != nil {
			r.cancel()
		}
	}
	return true
}
