package blackboard

import (
	"fmt"
	"reflect"
	"testing"

	"github.com/google/uuid"
)

// toString mirrors how go-redis stores hash values.
func toString(v interface{}) string {
	return fmt.Sprintf("%v", v)
}

func toStringHash(hash map[string]interface{}) map[string]string {
	out := make(map[string]string, len(hash))
	for k, v := range hash {
		out[k] = toString(v)
	}
	return out
}

// TestLayerRoundTrip tests layer hash fidelity
func TestLayerRoundTrip(t *testing.T) {
	original := &Layer{ID: "overlay", OwnerID: "creator-1", Name: "Main overlay", ZIndex: -2, Visible: true}

	result, err := HashToLayer(toStringHash(LayerToHash(original)))
	if err != nil {
		t.Fatalf("HashToLayer failed: %v", err)
	}

	original.EffectIDs = []string{}
	if !reflect.DeepEqual(original, result) {
		t.Errorf("round trip mismatch:\noriginal: %+v\nresult:   %+v", original, result)
	}
}

// TestHashToLayer_InvalidFields tests that corrupt hashes are reported
func TestHashToLayer_InvalidFields(t *testing.T) {
	if _, err := HashToLayer(map[string]string{"z_index": "top", "visible": "true"}); err == nil {
		t.Error("expected invalid z_index to fail")
	}
	if _, err := HashToLayer(map[string]string{"z_index": "1", "visible": "maybe"}); err == nil {
		t.Error("expected invalid visible to fail")
	}
}

// TestEffectRoundTrip tests effect hash fidelity including parameters
func TestEffectRoundTrip(t *testing.T) {
	original := &Effect{
		ID:      "confetti",
		LayerID: "overlay",
		Type:    EffectParticle,
		Parameters: map[string]any{
			"colors": []any{"#6366f1"},
			"speed":  1.5,
			"loop":   true,
		},
		DurationMs: 2500,
		Enabled:    true,
	}

	hash, err := EffectToHash(original)
	if err != nil {
		t.Fatalf("EffectToHash failed: %v", err)
	}

	result, err := HashToEffect(toStringHash(hash))
	if err != nil {
		t.Fatalf("HashToEffect failed: %v", err)
	}
	if !reflect.DeepEqual(original, result) {
		t.Errorf("round trip mismatch:\noriginal: %+v\nresult:   %+v", original, result)
	}
}

// TestEffectToHash_NilParameters tests that nil parameters come back as an empty map
func TestEffectToHash_NilParameters(t *testing.T) {
	hash, err := EffectToHash(&Effect{ID: "e", LayerID: "l", Type: EffectFilter})
	if err != nil {
		t.Fatalf("EffectToHash failed: %v", err)
	}
	if hash["parameters"] != "{}" {
		t.Errorf("parameters = %v, expected {}", hash["parameters"])
	}

	result, err := HashToEffect(toStringHash(hash))
	if err != nil {
		t.Fatalf("HashToEffect failed: %v", err)
	}
	if result.Parameters == nil || len(result.Parameters) != 0 {
		t.Errorf("expected empty parameters, got %v", result.Parameters)
	}
}

// TestInstanceRecordRoundTrip tests instance snapshot fidelity with and without a score
func TestInstanceRecordRoundTrip(t *testing.T) {
	score := 0.6333333333333333
	tests := []struct {
		name  string
		score *float64
	}{
		{"with score", &score},
		{"without score", nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			original := &InstanceRecord{
				ID:          uuid.New().String(),
				TriggerID:   "msg-1",
				EffectID:    "confetti",
				LayerID:     "overlay",
				ZIndex:      4,
				Platform:    "web",
				Renderer:    "web",
				State:       "rejected",
				Reason:      "brand_gate",
				Score:       tt.score,
				CreatedAtMs: 1730000000000,
				UpdatedAtMs: 1730000000100,
			}

			result, err := HashToInstanceRecord(toStringHash(InstanceRecordToHash(original)))
			if err != nil {
				t.Fatalf("HashToInstanceRecord failed: %v", err)
			}
			if !reflect.DeepEqual(original, result) {
				t.Errorf("round trip mismatch:\noriginal: %+v\nresult:   %+v", original, result)
			}
		})
	}
}

// TestCreatorRoundTrip tests creator hash fidelity
func TestCreatorRoundTrip(t *testing.T) {
	original := &Creator{ID: "creator-1", DisplayName: "Ada", SubscriptionTier: "professional", ConnectedAtMs: 1730000000000}

	result, err := HashToCreator(toStringHash(CreatorToHash(original)))
	if err != nil {
		t.Fatalf("HashToCreator failed: %v", err)
	}
	if !reflect.DeepEqual(original, result) {
		t.Errorf("round trip mismatch:\noriginal: %+v\nresult:   %+v", original, result)
	}
}

// TestHistoryScoreRoundTrip tests that millisecond timestamps survive ZSET scores
func TestHistoryScoreRoundTrip(t *testing.T) {
	for _, ms := range []int64{0, 1, 1730000000000, 1893456000123} {
		if got := TimeFromScore(HistoryScore(ms)); got != ms {
			t.Errorf("TimeFromScore(HistoryScore(%d)) = %d", ms, got)
		}
	}
}
