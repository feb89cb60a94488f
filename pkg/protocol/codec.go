package protocol

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
)

// Decode parses and validates a raw JSON payload into a Message.
// Returns a *DecodeError (matching ErrUnknownMessageType or ErrInvalidPayload)
// for anything non-conforming. Decode has no side effects.
func Decode(raw []byte) (Message, error) {
	root, err := parseObject("", raw)
	if err != nil {
		return Message{}, err
	}

	// The tag is checked before any other field so unknown variants never
	// reach variant-specific validation.
	tag, ok := root.tag()
	if !ok {
		return Message{}, unknownType("")
	}
	if err := MessageType(tag).Validate(); err != nil {
		return Message{}, unknownType(tag)
	}

	id, err := root.str("id")
	if err != nil {
		return Message{}, err
	}
	if id == "" {
		return Message{}, invalid("id", "must be a non-empty string")
	}

	timestamp, err := root.integer("timestamp")
	if err != nil {
		return Message{}, err
	}
	if timestamp < 0 {
		return Message{}, invalid("timestamp", "must be a non-negative integer")
	}

	body, err := root.child("payload")
	if err != nil {
		return Message{}, err
	}

	var payload Payload
	switch MessageType(tag) {
	case TypeEffectTrigger:
		payload, err = decodeEffectTrigger(body)
	case TypeSystemStatus:
		payload, err = decodeSystemStatus(body)
	case TypeCreatorConnection:
		payload, err = decodeCreatorConnection(body)
	case TypeAISuggestion:
		payload, err = decodeAISuggestion(body)
	}
	if err != nil {
		return Message{}, err
	}

	msg := Message{ID: id, Timestamp: timestamp, Payload: payload}

	// Cross-field constraints (parameter value shapes) share the
	// validation path used by Encode.
	if err := payload.validate(); err != nil {
		return Message{}, err
	}

	return msg, nil
}

func decodeEffectTrigger(o object) (*EffectTrigger, error) {
	effectID, err := o.str("effectId")
	if err != nil {
		return nil, err
	}
	if effectID == "" {
		return nil, invalid(o.path("effectId"), "must be a non-empty string")
	}

	intensity, err := o.number("intensity")
	if err != nil {
		return nil, err
	}
	if err := checkUnit(o.path("intensity"), intensity); err != nil {
		return nil, err
	}

	t := &EffectTrigger{EffectID: effectID, Intensity: intensity}

	if o.has("duration") {
		d, err := o.integer("duration")
		if err != nil {
			return nil, err
		}
		if d <= 0 {
			return nil, invalid(o.path("duration"), "must be a positive integer")
		}
		t.Duration = &d
	}

	if o.has("parameters") {
		var params map[string]any
		if err := o.decodeObject("parameters", &params); err != nil {
			return nil, err
		}
		t.Parameters = params
	}

	return t, nil
}

func decodeSystemStatus(o object) (*SystemStatus, error) {
	connected, err := o.boolean("connected")
	if err != nil {
		return nil, err
	}

	servicesObj, err := o.child("services")
	if err != nil {
		return nil, err
	}
	services := make(map[string]ServiceState, len(servicesObj.fields))
	for _, name := range sortedKeys(servicesObj.fields) {
		state, err := servicesObj.str(name)
		if err != nil {
			return nil, err
		}
		if err := ServiceState(state).Validate(); err != nil {
			return nil, invalid(servicesObj.path(name), err.Error())
		}
		services[name] = ServiceState(state)
	}

	perfObj, err := o.child("performance")
	if err != nil {
		return nil, err
	}
	var perf Performance
	if perf.FPS, err = perfObj.number("fps"); err != nil {
		return nil, err
	}
	if perf.Latency, err = perfObj.number("latency"); err != nil {
		return nil, err
	}
	if perf.MemoryUsage, err = perfObj.number("memoryUsage"); err != nil {
		return nil, err
	}

	s := &SystemStatus{Connected: connected, Services: services, Performance: perf}

	if o.has("effect") {
		effectObj, err := o.child("effect")
		if err != nil {
			return nil, err
		}
		effect, err := decodeEffectStatus(effectObj)
		if err != nil {
			return nil, err
		}
		s.Effect = effect
	}

	return s, nil
}

func decodeEffectStatus(o object) (*EffectStatus, error) {
	e := &EffectStatus{}
	optional := []struct {
		name string
		dst  *string
	}{
		{"instanceId", &e.InstanceID},
		{"triggerId", &e.TriggerID},
		{"effectId", &e.EffectID},
		{"layerId", &e.LayerID},
	}
	for _, f := range optional {
		if !o.has(f.name) {
			continue
		}
		v, err := o.str(f.name)
		if err != nil {
			return nil, err
		}
		*f.dst = v
	}

	state, err := o.str("state")
	if err != nil {
		return nil, err
	}
	if err := EffectState(state).Validate(); err != nil {
		return nil, invalid(o.path("state"), err.Error())
	}
	e.State = EffectState(state)

	if o.has("reason") {
		if e.Reason, err = o.str("reason"); err != nil {
			return nil, err
		}
	}

	if o.has("score") {
		score, err := o.number("score")
		if err != nil {
			return nil, err
		}
		if err := checkUnit(o.path("score"), score); err != nil {
			return nil, err
		}
		e.Score = &score
	}

	return e, nil
}

func decodeCreatorConnection(o object) (*CreatorConnection, error) {
	creatorID, err := o.str("creatorId")
	if err != nil {
		return nil, err
	}
	if creatorID == "" {
		return nil, invalid(o.path("creatorId"), "must be a non-empty string")
	}

	displayName, err := o.str("displayName")
	if err != nil {
		return nil, err
	}

	tier, err := o.str("subscriptionTier")
	if err != nil {
		return nil, err
	}
	if err := SubscriptionTier(tier).Validate(); err != nil {
		return nil, invalid(o.path("subscriptionTier"), err.Error())
	}

	return &CreatorConnection{
		CreatorID:        creatorID,
		DisplayName:      displayName,
		SubscriptionTier: SubscriptionTier(tier),
	}, nil
}

func decodeAISuggestion(o object) (*AISuggestion, error) {
	effectID, err := o.str("effectId")
	if err != nil {
		return nil, err
	}
	if effectID == "" {
		return nil, invalid(o.path("effectId"), "must be a non-empty string")
	}

	confidence, err := o.number("confidence")
	if err != nil {
		return nil, err
	}
	if err := checkUnit(o.path("confidence"), confidence); err != nil {
		return nil, err
	}

	context, err := o.str("context")
	if err != nil {
		return nil, err
	}
	reasoning, err := o.str("reasoning")
	if err != nil {
		return nil, err
	}

	return &AISuggestion{
		EffectID:   effectID,
		Confidence: confidence,
		Context:    context,
		Reasoning:  reasoning,
	}, nil
}

// Wire representations. Field order here is the order fields appear on the wire.

type envelopeJSON struct {
	ID        string      `json:"id"`
	Timestamp int64       `json:"timestamp"`
	Type      MessageType `json:"type"`
	Payload   any         `json:"payload"`
}

type effectTriggerJSON struct {
	EffectID   string          `json:"effectId"`
	Intensity  float64         `json:"intensity"`
	Duration   *int64          `json:"duration,omitempty"`
	Parameters *map[string]any `json:"parameters,omitempty"` // pointer keeps an empty map distinct from absent
}

type systemStatusJSON struct {
	Connected   bool                    `json:"connected"`
	Services    map[string]ServiceState `json:"services"`
	Performance performanceJSON         `json:"performance"`
	Effect      *effectStatusJSON       `json:"effect,omitempty"`
}

type performanceJSON struct {
	FPS         float64 `json:"fps"`
	Latency     float64 `json:"latency"`
	MemoryUsage float64 `json:"memoryUsage"`
}

type effectStatusJSON struct {
	InstanceID string      `json:"instanceId,omitempty"`
	TriggerID  string      `json:"triggerId,omitempty"`
	EffectID   string      `json:"effectId,omitempty"`
	LayerID    string      `json:"layerId,omitempty"`
	State      EffectState `json:"state"`
	Reason     string      `json:"reason,omitempty"`
	Score      *float64    `json:"score,omitempty"`
}

type creatorConnectionJSON struct {
	CreatorID        string           `json:"creatorId"`
	DisplayName      string           `json:"displayName"`
	SubscriptionTier SubscriptionTier `json:"subscriptionTier"`
}

type aiSuggestionJSON struct {
	EffectID   string  `json:"effectId"`
	Confidence float64 `json:"confidence"`
	Context    string  `json:"context"`
	Reasoning  string  `json:"reasoning"`
}

// Encode validates a Message and serialises it to its JSON wire form.
// Decode(Encode(m)) reproduces m for every valid m.
func Encode(m Message) ([]byte, error) {
	if err := m.Validate(); err != nil {
		return nil, fmt.Errorf("cannot encode message: %w", err)
	}

	env := envelopeJSON{ID: m.ID, Timestamp: m.Timestamp, Type: m.Type()}

	switch p := m.Payload.(type) {
	case *EffectTrigger:
		w := effectTriggerJSON{EffectID: p.EffectID, Intensity: p.Intensity, Duration: p.Duration}
		if p.Parameters != nil {
			w.Parameters = &p.Parameters
		}
		env.Payload = w
	case *SystemStatus:
		w := systemStatusJSON{
			Connected: p.Connected,
			Services:  p.Services,
			Performance: performanceJSON{
				FPS:         p.Performance.FPS,
				Latency:     p.Performance.Latency,
				MemoryUsage: p.Performance.MemoryUsage,
			},
		}
		if p.Effect != nil {
			w.Effect = &effectStatusJSON{
				InstanceID: p.Effect.InstanceID,
				TriggerID:  p.Effect.TriggerID,
				EffectID:   p.Effect.EffectID,
				LayerID:    p.Effect.LayerID,
				State:      p.Effect.State,
				Reason:     p.Effect.Reason,
				Score:      p.Effect.Score,
			}
		}
		env.Payload = w
	case *CreatorConnection:
		env.Payload = creatorConnectionJSON{
			CreatorID:        p.CreatorID,
			DisplayName:      p.DisplayName,
			SubscriptionTier: p.SubscriptionTier,
		}
	case *AISuggestion:
		env.Payload = aiSuggestionJSON{
			EffectID:   p.EffectID,
			Confidence: p.Confidence,
			Context:    p.Context,
			Reasoning:  p.Reasoning,
		}
	default:
		return nil, fmt.Errorf("cannot encode message: unsupported payload %T", m.Payload)
	}

	data, err := json.Marshal(env)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal message: %w", err)
	}
	return data, nil
}

// object is a JSON object whose fields are validated lazily, one at a time,
// so errors can name the exact field path that failed.
type object struct {
	prefix string
	fields map[string]json.RawMessage
}

func parseObject(prefix string, raw []byte) (object, error) {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 || trimmed[0] != '{' {
		field := prefix
		if field == "" {
			field = "$"
		}
		return object{}, invalid(field, "must be a JSON object")
	}
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(trimmed, &fields); err != nil {
		field := prefix
		if field == "" {
			field = "$"
		}
		return object{}, invalid(field, fmt.Sprintf("malformed JSON: %v", err))
	}
	return object{prefix: prefix, fields: fields}, nil
}

func (o object) path(name string) string {
	if o.prefix == "" {
		return name
	}
	return o.prefix + "." + name
}

// has reports whether the field is present with a non-null value.
func (o object) has(name string) bool {
	raw, ok := o.fields[name]
	return ok && !isNull(raw)
}

func (o object) required(name string) (json.RawMessage, error) {
	raw, ok := o.fields[name]
	if !ok || isNull(raw) {
		return nil, invalid(o.path(name), "is required")
	}
	return bytes.TrimSpace(raw), nil
}

// tag returns the type tag when it is present and a string.
func (o object) tag() (string, bool) {
	raw, ok := o.fields["type"]
	if !ok {
		return "", false
	}
	var s string
	if err := json.Unmarshal(raw, &s); err != nil || s == "" {
		return "", false
	}
	return s, true
}

func (o object) str(name string) (string, error) {
	raw, err := o.required(name)
	if err != nil {
		return "", err
	}
	if raw[0] != '"' {
		return "", invalid(o.path(name), "must be a string")
	}
	var s string
	if err := json.Unmarshal(raw, &s); err != nil {
		return "", invalid(o.path(name), "must be a string")
	}
	return s, nil
}

func (o object) number(name string) (float64, error) {
	raw, err := o.required(name)
	if err != nil {
		return 0, err
	}
	f, err := strconv.ParseFloat(string(raw), 64)
	if err != nil {
		return 0, invalid(o.path(name), "must be a number")
	}
	return f, nil
}

func (o object) integer(name string) (int64, error) {
	raw, err := o.required(name)
	if err != nil {
		return 0, err
	}
	n, err := strconv.ParseInt(string(raw), 10, 64)
	if err != nil {
		return 0, invalid(o.path(name), "must be an integer")
	}
	return n, nil
}

func (o object) boolean(name string) (bool, error) {
	raw, err := o.required(name)
	if err != nil {
		return false, err
	}
	switch string(raw) {
	case "true":
		return true, nil
	case "false":
		return false, nil
	default:
		return false, invalid(o.path(name), "must be a boolean")
	}
}

func (o object) child(name string) (object, error) {
	raw, err := o.required(name)
	if err != nil {
		return object{}, err
	}
	return parseObject(o.path(name), raw)
}

func (o object) decodeObject(name string, dst *map[string]any) error {
	raw, err := o.required(name)
	if err != nil {
		return err
	}
	if raw[0] != '{' {
		return invalid(o.path(name), "must be an object")
	}
	if err := json.Unmarshal(raw, dst); err != nil {
		return invalid(o.path(name), "must be an object")
	}
	return nil
}

func isNull(raw json.RawMessage) bool {
	return string(bytes.TrimSpace(raw)) == "null"
}
