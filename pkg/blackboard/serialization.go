package blackboard

import (
	"encoding/json"
	"fmt"
	"strconv"
)

// Serialization helpers for converting between Go structs and Redis hashes
//
// Redis stores data as string-to-string maps (hashes). Complex fields like
// parameter maps are JSON-encoded into single hash fields.

// LayerToHash converts a Layer to a Redis hash. Attached effect IDs are kept
// in a separate list and are not part of the hash.
func LayerToHash(l *Layer) map[string]interface{} {
	return map[string]interface{}{
		"id":       l.ID,
		"owner_id": l.OwnerID,
		"name":     l.Name,
		"z_index":  l.ZIndex,
		"visible":  strconv.FormatBool(l.Visible),
	}
}

// HashToLayer converts a Redis hash to a Layer. EffectIDs and Effects are left empty.
func HashToLayer(hash map[string]string) (*Layer, error) {
	zIndex, err := strconv.Atoi(hash["z_index"])
	if err != nil {
		return nil, fmt.Errorf("invalid z_index field: %w", err)
	}

	visible, err := strconv.ParseBool(hash["visible"])
	if err != nil {
		return nil, fmt.Errorf("invalid visible field: %w", err)
	}

	return &Layer{
		ID:        hash["id"],
		OwnerID:   hash["owner_id"],
		Name:      hash["name"],
		ZIndex:    zIndex,
		Visible:   visible,
		EffectIDs: []string{},
	}, nil
}

// EffectToHash converts an Effect to a Redis hash.
// Parameters are JSON-encoded.
func EffectToHash(e *Effect) (map[string]interface{}, error) {
	params := e.Parameters
	if params == nil {
		params = map[string]any{}
	}
	paramsJSON, err := json.Marshal(params)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal parameters: %w", err)
	}

	return map[string]interface{}{
		"id":          e.ID,
		"layer_id":    e.LayerID,
		"type":        string(e.Type),
		"parameters":  string(paramsJSON),
		"duration_ms": e.DurationMs,
		"enabled":     strconv.FormatBool(e.Enabled),
	}, nil
}

// HashToEffect converts a Redis hash to an Effect.
func HashToEffect(hash map[string]string) (*Effect, error) {
	params := map[string]any{}
	if raw := hash["parameters"]; raw != "" {
		if err := json.Unmarshal([]byte(raw), &params); err != nil {
			return nil, fmt.Errorf("failed to unmarshal parameters: %w", err)
		}
	}

	durationMs, err := strconv.ParseInt(hash["duration_ms"], 10, 64)
	if err != nil {
		return nil, fmt.Errorf("invalid duration_ms field: %w", err)
	}

	enabled, err := strconv.ParseBool(hash["enabled"])
	if err != nil {
		return nil, fmt.Errorf("invalid enabled field: %w", err)
	}

	return &Effect{
		ID:         hash["id"],
		LayerID:    hash["layer_id"],
		Type:       EffectType(hash["type"]),
		Parameters: params,
		DurationMs: durationMs,
		Enabled:    enabled,
	}, nil
}

// CreatorToHash converts a Creator to a Redis hash.
func CreatorToHash(c *Creator) map[string]interface{} {
	return map[string]interface{}{
		"id":                c.ID,
		"display_name":      c.DisplayName,
		"subscription_tier": c.SubscriptionTier,
		"connected_at_ms":   c.ConnectedAtMs,
	}
}

// HashToCreator converts a Redis hash to a Creator.
func HashToCreator(hash map[string]string) (*Creator, error) {
	connectedAtMs, err := strconv.ParseInt(hash["connected_at_ms"], 10, 64)
	if err != nil {
		return nil, fmt.Errorf("invalid connected_at_ms field: %w", err)
	}

	return &Creator{
		ID:               hash["id"],
		DisplayName:      hash["display_name"],
		SubscriptionTier: hash["subscription_tier"],
		ConnectedAtMs:    connectedAtMs,
	}, nil
}

// InstanceRecordToHash converts an InstanceRecord to a Redis hash.
// An absent score is stored as an empty string.
func InstanceRecordToHash(r *InstanceRecord) map[string]interface{} {
	score := ""
	if r.Score != nil {
		score = strconv.FormatFloat(*r.Score, 'g', -1, 64)
	}

	return map[string]interface{}{
		"id":            r.ID,
		"trigger_id":    r.TriggerID,
		"effect_id":     r.EffectID,
		"layer_id":      r.LayerID,
		"z_index":       r.ZIndex,
		"platform":      r.Platform,
		"renderer":      r.Renderer,
		"state":         r.State,
		"reason":        r.Reason,
		"score":         score,
		"created_at_ms": r.CreatedAtMs,
		"updated_at_ms": r.UpdatedAtMs,
	}
}

// HashToInstanceRecord converts a Redis hash to an InstanceRecord.
func HashToInstanceRecord(hash map[string]string) (*InstanceRecord, error) {
	zIndex, err := strconv.Atoi(hash["z_index"])
	if err != nil {
		return nil, fmt.Errorf("invalid z_index field: %w", err)
	}

	var score *float64
	if raw := hash["score"]; raw != "" {
		v, err := strconv.ParseFloat(raw, 64)
		if err != nil {
			return nil, fmt.Errorf("invalid score field: %w", err)
		}
		score = &v
	}

	createdAtMs, _ := strconv.ParseInt(hash["created_at_ms"], 10, 64)
	updatedAtMs, _ := strconv.ParseInt(hash["updated_at_ms"], 10, 64)

	return &InstanceRecord{
		ID:          hash["id"],
		TriggerID:   hash["trigger_id"],
		EffectID:    hash["effect_id"],
		LayerID:     hash["layer_id"],
		ZIndex:      zIndex,
		Platform:    hash["platform"],
		Renderer:    hash["renderer"],
		State:       hash["state"],
		Reason:      hash["reason"],
		Score:       score,
		CreatedAtMs: createdAtMs,
		UpdatedAtMs: updatedAtMs,
	}, nil
}
