package protocol

import (
	"fmt"
	"math"
	"sort"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
)

// MessageType is the discriminant tag carried in the "type" field of every message.
type MessageType string

const (
	// TypeEffectTrigger requests that an effect be rendered.
	TypeEffectTrigger MessageType = "effect:trigger"

	// TypeSystemStatus reports service health, performance and effect lifecycle transitions.
	TypeSystemStatus MessageType = "system:status"

	// TypeCreatorConnection announces a creator client joining.
	TypeCreatorConnection MessageType = "creator:connect"

	// TypeAISuggestion carries an effect proposed by an AI agent.
	TypeAISuggestion MessageType = "ai:suggestion"
)

// Validate checks that the tag names one of the known variants.
func (t MessageType) Validate() error {
	switch t {
	case TypeEffectTrigger, TypeSystemStatus, TypeCreatorConnection, TypeAISuggestion:
		return nil
	default:
		return fmt.Errorf("unknown message type: %q", t)
	}
}

// Message is the common envelope shared by all variants.
// The variant is determined solely by the dynamic type of Payload.
type Message struct {
	ID        string  // Caller-supplied or generated unique identifier
	Timestamp int64   // Milliseconds since the Unix epoch
	Payload   Payload // Exactly one of the four payload variants
}

// Type returns the discriminant tag of the message's payload.
// Returns an empty MessageType when the payload is nil.
func (m Message) Type() MessageType {
	if m.Payload == nil {
		return ""
	}
	return m.Payload.MessageType()
}

// Payload is implemented only by the variant types in this package.
type Payload interface {
	MessageType() MessageType
	validate() error
}

// EffectTrigger is the payload of an effect:trigger message.
type EffectTrigger struct {
	EffectID   string         // Opaque effect identifier
	Intensity  float64        // In [0,1] inclusive
	Duration   *int64         // Optional positive duration in milliseconds; nil means renderer default
	Parameters map[string]any // Optional free-form parameters (JSON-native values only)
}

// SystemStatus is the payload of a system:status message.
type SystemStatus struct {
	Connected   bool
	Services    map[string]ServiceState
	Performance Performance
	Effect      *EffectStatus // Present on lifecycle reports
}

// Performance is a point-in-time performance snapshot.
type Performance struct {
	FPS         float64
	Latency     float64 // Milliseconds
	MemoryUsage float64 // Megabytes
}

// EffectStatus describes one effect instance lifecycle transition.
type EffectStatus struct {
	InstanceID string
	TriggerID  string
	EffectID   string
	LayerID    string
	State      EffectState
	Reason     string
	Score      *float64 // Brand score snapshot, when one was computed
}

// CreatorConnection is the payload of a creator:connect message.
type CreatorConnection struct {
	CreatorID        string
	DisplayName      string
	SubscriptionTier SubscriptionTier
}

// AISuggestion is the payload of an ai:suggestion message.
type AISuggestion struct {
	EffectID   string
	Confidence float64 // In [0,1] inclusive
	Context    string
	Reasoning  string
}

// MessageType implements Payload.
func (*EffectTrigger) MessageType() MessageType { return TypeEffectTrigger }

// MessageType implements Payload.
func (*SystemStatus) MessageType() MessageType { return TypeSystemStatus }

// MessageType implements Payload.
func (*CreatorConnection) MessageType() MessageType { return TypeCreatorConnection }

// MessageType implements Payload.
func (*AISuggestion) MessageType() MessageType { return TypeAISuggestion }

// ServiceState is the health of a single service in a status report.
type ServiceState string

const (
	ServiceOnline  ServiceState = "online"
	ServiceOffline ServiceState = "offline"
	ServiceError   ServiceState = "error"
)

// Validate checks that the ServiceState is a valid enum value.
func (s ServiceState) Validate() error {
	switch s {
	case ServiceOnline, ServiceOffline, ServiceError:
		return nil
	default:
		return fmt.Errorf("unknown service state: %q", s)
	}
}

// SubscriptionTier is the creator's plan.
type SubscriptionTier string

const (
	TierFree         SubscriptionTier = "free"
	TierCreator      SubscriptionTier = "creator"
	TierProfessional SubscriptionTier = "professional"
	TierEnterprise   SubscriptionTier = "enterprise"
)

// Validate checks that the SubscriptionTier is a valid enum value.
func (t SubscriptionTier) Validate() error {
	switch t {
	case TierFree, TierCreator, TierProfessional, TierEnterprise:
		return nil
	default:
		return fmt.Errorf("unknown subscription tier: %q", t)
	}
}

// EffectState is the lifecycle state reported for an effect instance.
type EffectState string

const (
	StateQueued    EffectState = "queued"
	StateRendering EffectState = "rendering"
	StateStopped   EffectState = "stopped"
	StateRejected  EffectState = "rejected"
	StateFailed    EffectState = "failed"
)

// Validate checks that the EffectState is a valid enum value.
func (s EffectState) Validate() error {
	switch s {
	case StateQueued, StateRendering, StateStopped, StateRejected, StateFailed:
		return nil
	default:
		return fmt.Errorf("unknown effect state: %q", s)
	}
}

// Reserved parameter keys carrying the trigger's declared content attributes.
const (
	ParamColors = "colors"
	ParamFonts  = "fonts"
	ParamTone   = "tone"
)

// Content returns the declared content attributes of the trigger used for
// brand scoring. Missing attributes are returned as zero values.
func (t *EffectTrigger) Content() (colors []string, fonts []string, tone string) {
	colors = stringList(t.Parameters[ParamColors])
	fonts = stringList(t.Parameters[ParamFonts])
	tone, _ = t.Parameters[ParamTone].(string)
	return colors, fonts, tone
}

func stringList(v any) []string {
	list, ok := v.([]any)
	if !ok {
		return nil
	}
	out := make([]string, 0, len(list))
	for _, item := range list {
		if s, ok := item.(string); ok {
			out = append(out, s)
		}
	}
	return out
}

// NewEffectTrigger builds an effect:trigger message with a generated id and the current timestamp.
// Top-level []string parameter values are converted to []any, the shape they decode to.
func NewEffectTrigger(effectID string, intensity float64, duration *int64, parameters map[string]any) Message {
	return newMessage(&EffectTrigger{
		EffectID:   effectID,
		Intensity:  intensity,
		Duration:   duration,
		Parameters: normalizeParams(parameters),
	})
}

func normalizeParams(params map[string]any) map[string]any {
	if params == nil {
		return nil
	}
	out := make(map[string]any, len(params))
	for k, v := range params {
		if list, ok := v.([]string); ok {
			items := make([]any, len(list))
			for i, item := range list {
				items[i] = item
			}
			v = items
		}
		out[k] = v
	}
	return out
}

// NewSystemStatus builds a system:status message with a generated id and the current timestamp.
func NewSystemStatus(connected bool, services map[string]ServiceState, perf Performance, effect *EffectStatus) Message {
	if services == nil {
		services = map[string]ServiceState{}
	}
	return newMessage(&SystemStatus{
		Connected:   connected,
		Services:    services,
		Performance: perf,
		Effect:      effect,
	})
}

// NewCreatorConnection builds a creator:connect message with a generated id and the current timestamp.
func NewCreatorConnection(creatorID, displayName string, tier SubscriptionTier) Message {
	return newMessage(&CreatorConnection{
		CreatorID:        creatorID,
		DisplayName:      displayName,
		SubscriptionTier: tier,
	})
}

// NewAISuggestion builds an ai:suggestion message with a generated id and the current timestamp.
func NewAISuggestion(effectID string, confidence float64, context, reasoning string) Message {
	return newMessage(&AISuggestion{
		EffectID:   effectID,
		Confidence: confidence,
		Context:    context,
		Reasoning:  reasoning,
	})
}

func newMessage(p Payload) Message {
	return Message{
		ID:        uuid.New().String(),
		Timestamp: time.Now().UnixMilli(),
		Payload:   p,
	}
}

// Validate checks every field of the envelope and its payload.
// The first violation is returned as a *DecodeError so callers can inspect it
// the same way as a decode failure.
func (m Message) Validate() error {
	if m.Payload == nil {
		return unknownType("")
	}
	if m.ID == "" {
		return invalid("id", "must be a non-empty string")
	}
	if err := checkText("id", m.ID); err != nil {
		return err
	}
	if m.Timestamp < 0 {
		return invalid("timestamp", "must be a non-negative integer")
	}
	return m.Payload.validate()
}

func (t *EffectTrigger) validate() error {
	if t.EffectID == "" {
		return invalid("payload.effectId", "must be a non-empty string")
	}
	if err := checkText("payload.effectId", t.EffectID); err != nil {
		return err
	}
	if err := checkUnit("payload.intensity", t.Intensity); err != nil {
		return err
	}
	if t.Duration != nil && *t.Duration <= 0 {
		return invalid("payload.duration", "must be a positive integer")
	}
	if err := checkKeys("payload.parameters", t.Parameters); err != nil {
		return err
	}
	for _, key := range sortedKeys(t.Parameters) {
		if err := checkNative("payload.parameters."+key, t.Parameters[key]); err != nil {
			return err
		}
	}
	return checkContentParams(t.Parameters)
}

func (s *SystemStatus) validate() error {
	if s.Services == nil {
		return invalid("payload.services", "is required")
	}
	if err := checkKeys("payload.services", s.Services); err != nil {
		return err
	}
	for _, name := range sortedKeys(s.Services) {
		if err := s.Services[name].Validate(); err != nil {
			return invalid("payload.services."+name, err.Error())
		}
	}
	perf := []struct {
		field string
		value float64
	}{
		{"payload.performance.fps", s.Performance.FPS},
		{"payload.performance.latency", s.Performance.Latency},
		{"payload.performance.memoryUsage", s.Performance.MemoryUsage},
	}
	for _, p := range perf {
		if math.IsNaN(p.value) || math.IsInf(p.value, 0) {
			return invalid(p.field, "must be a finite number")
		}
	}
	if s.Effect != nil {
		text := []struct {
			field string
			value string
		}{
			{"payload.effect.instanceId", s.Effect.InstanceID},
			{"payload.effect.triggerId", s.Effect.TriggerID},
			{"payload.effect.effectId", s.Effect.EffectID},
			{"payload.effect.layerId", s.Effect.LayerID},
			{"payload.effect.reason", s.Effect.Reason},
		}
		for _, f := range text {
			if err := checkText(f.field, f.value); err != nil {
				return err
			}
		}
		if err := s.Effect.State.Validate(); err != nil {
			return invalid("payload.effect.state", err.Error())
		}
		if s.Effect.Score != nil {
			if err := checkUnit("payload.effect.score", *s.Effect.Score); err != nil {
				return err
			}
		}
	}
	return nil
}

func (c *CreatorConnection) validate() error {
	if c.CreatorID == "" {
		return invalid("payload.creatorId", "must be a non-empty string")
	}
	if err := checkText("payload.creatorId", c.CreatorID); err != nil {
		return err
	}
	if err := checkText("payload.displayName", c.DisplayName); err != nil {
		return err
	}
	if err := c.SubscriptionTier.Validate(); err != nil {
		return invalid("payload.subscriptionTier", err.Error())
	}
	return nil
}

func (a *AISuggestion) validate() error {
	if a.EffectID == "" {
		return invalid("payload.effectId", "must be a non-empty string")
	}
	if err := checkText("payload.effectId", a.EffectID); err != nil {
		return err
	}
	if err := checkText("payload.context", a.Context); err != nil {
		return err
	}
	if err := checkText("payload.reasoning", a.Reasoning); err != nil {
		return err
	}
	return checkUnit("payload.confidence", a.Confidence)
}

// checkText rejects strings that encoding/json would rewrite with U+FFFD.
func checkText(field, s string) error {
	if !utf8.ValidString(s) {
		return invalid(field, "must be valid UTF-8")
	}
	return nil
}

// checkKeys applies checkText to map keys. The field names the map, since a
// bad key cannot be embedded in the path.
func checkKeys[V any](field string, m map[string]V) error {
	for k := range m {
		if !utf8.ValidString(k) {
			return invalid(field, "keys must be valid UTF-8")
		}
	}
	return nil
}

func checkUnit(field string, v float64) error {
	if math.IsNaN(v) || v < 0 || v > 1 {
		return invalid(field, fmt.Sprintf("must be within [0,1], got %v", v))
	}
	return nil
}

// checkContentParams enforces the shapes of the reserved content attribute keys.
func checkContentParams(params map[string]any) error {
	for _, key := range []string{ParamColors, ParamFonts} {
		v, ok := params[key]
		if !ok || v == nil {
			continue
		}
		list, ok := v.([]any)
		if !ok {
			return invalid("payload.parameters."+key, "must be an array of strings")
		}
		for i, item := range list {
			if _, ok := item.(string); !ok {
				return invalid(fmt.Sprintf("payload.parameters.%s[%d]", key, i), "must be a string")
			}
		}
	}
	if v, ok := params[ParamTone]; ok && v != nil {
		if _, ok := v.(string); !ok {
			return invalid("payload.parameters."+ParamTone, "must be a string")
		}
	}
	return nil
}

// checkNative accepts only values that survive a JSON round trip unchanged.
func checkNative(field string, v any) error {
	switch value := v.(type) {
	case nil, bool:
		return nil
	case string:
		return checkText(field, value)
	case float64:
		if math.IsNaN(value) || math.IsInf(value, 0) {
			return invalid(field, "must be a finite number")
		}
		return nil
	case []any:
		for i, item := range value {
			if err := checkNative(fmt.Sprintf("%s[%d]", field, i), item); err != nil {
				return err
			}
		}
		return nil
	case map[string]any:
		if err := checkKeys(field, value); err != nil {
			return err
		}
		for _, key := range sortedKeys(value) {
			if err := checkNative(field+"."+key, value[key]); err != nil {
				return err
			}
		}
		return nil
	default:
		return invalid(field, fmt.Sprintf("unsupported value type %T", v))
	}
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
