package blackboard

// Lifecycle history utilities
//
// Every status transition mirrored by the engine is appended to a capped ZSET:
// - Key: vibelayer:{instance_name}:history
// - Members: JSON-encoded HistoryEntry values
// - Score: the transition time in Unix milliseconds
//
// This gives the CLI a cheap time-ordered view of recent activity that
// survives the expiry of individual instance snapshots.

// DefaultHistoryCap is the number of entries retained in the history ZSET.
const DefaultHistoryCap = 1000

// HistoryEntry records one lifecycle transition of an effect instance.
type HistoryEntry struct {
	InstanceID string `json:"instance_id"`
	EffectID   string `json:"effect_id"`
	LayerID    string `json:"layer_id"`
	State      string `json:"state"`
	Reason     string `json:"reason,omitempty"`
	AtMs       int64  `json:"at_ms"`
}

// HistoryScore converts a transition time to a Redis ZSET score.
func HistoryScore(atMs int64) float64 {
	return float64(atMs)
}

// TimeFromScore converts a Redis ZSET score back to Unix milliseconds.
func TimeFromScore(score float64) int64 {
	return int64(score)
}
