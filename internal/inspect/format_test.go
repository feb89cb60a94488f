package inspect

import (
	"bytes"
	"strings"
	"testing"
	"time"

	"github.com/dyluth/vibelayer/pkg/blackboard"
	"github.com/fatih/color"
	"github.com/stretchr/testify/assert"
)

func init() {
	color.NoColor = true
}

func float64Ptr(v float64) *float64 { return &v }

func TestFormatInstanceTable(t *testing.T) {
	now := time.Date(2025, 10, 29, 12, 0, 0, 0, time.UTC)

	t.Run("no instances", func(t *testing.T) {
		var buf bytes.Buffer
		count := formatInstanceTable(&buf, nil, "studio", now)
		assert.Equal(t, 0, count)
		assert.Contains(t, buf.String(), "No effect instances found for instance 'studio'")
	})

	t.Run("rows", func(t *testing.T) {
		records := []*blackboard.InstanceRecord{
			{
				ID:          "6f1c2d3e-0000-4000-8000-000000000001",
				EffectID:    "sparkle",
				LayerID:     "overlay",
				ZIndex:      2,
				Platform:    "web",
				State:       "rendering",
				Score:       float64Ptr(0.8333),
				CreatedAtMs: now.Add(-90 * time.Second).UnixMilli(),
			},
			{
				ID:          "7a2b3c4d-0000-4000-8000-000000000002",
				EffectID:    "a-very-long-effect-identifier",
				LayerID:     "overlay",
				State:       "rejected",
				Reason:      "brand_gate",
				CreatedAtMs: now.Add(-3 * time.Hour).UnixMilli(),
			},
		}

		var buf bytes.Buffer
		count := formatInstanceTable(&buf, records, "studio", now)
		assert.Equal(t, 2, count)

		out := buf.String()
		assert.Contains(t, out, "Effect instances for instance 'studio'")
		assert.Contains(t, out, "6f1c2d3e ")
		assert.NotContains(t, out, "6f1c2d3e-0000")
		assert.Contains(t, out, "overlay@2")
		assert.Contains(t, out, "0.83")
		assert.Contains(t, out, "1m ago")
		assert.Contains(t, out, "3h ago")
		assert.Contains(t, out, "a-very-long-e...")
		assert.Contains(t, out, "brand_gate")
		assert.Contains(t, out, "2 instances found")
	})

	t.Run("single instance count", func(t *testing.T) {
		var buf bytes.Buffer
		formatInstanceTable(&buf, []*blackboard.InstanceRecord{{ID: "x", State: "queued"}}, "studio", now)
		assert.Contains(t, buf.String(), "1 instance found")
	})
}

func TestFormatHistoryTable(t *testing.T) {
	t.Run("empty", func(t *testing.T) {
		var buf bytes.Buffer
		assert.Equal(t, 0, FormatHistoryTable(&buf, nil))
		assert.Contains(t, buf.String(), "No status history found")
	})

	t.Run("entries", func(t *testing.T) {
		at := time.Date(2025, 10, 29, 12, 30, 15, 250*int(time.Millisecond), time.UTC)
		entries := []blackboard.HistoryEntry{
			{InstanceID: "6f1c2d3e-0000", EffectID: "sparkle", State: "queued", AtMs: at.UnixMilli()},
			{InstanceID: "6f1c2d3e-0000", EffectID: "sparkle", State: "stopped", Reason: "completed", AtMs: at.Add(time.Second).UnixMilli()},
		}

		var buf bytes.Buffer
		assert.Equal(t, 2, FormatHistoryTable(&buf, entries))
		out := buf.String()
		assert.Contains(t, out, "2025-10-29 12:30:15.250")
		assert.Contains(t, out, "completed")
		assert.Contains(t, out, "2 transitions")
	})
}

func TestFormatJSONL(t *testing.T) {
	var buf bytes.Buffer
	err := FormatJSONL(&buf, []blackboard.HistoryEntry{
		{InstanceID: "a", State: "queued", AtMs: 1},
		{InstanceID: "a", State: "rendering", AtMs: 2},
	})
	assert.NoError(t, err)

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	assert.Len(t, lines, 2)
	assert.JSONEq(t, `{"instance_id":"a","effect_id":"","layer_id":"","state":"queued","at_ms":1}`, lines[0])
}

func TestFormatHelpers(t *testing.T) {
	now := time.Unix(1000, 0)
	assert.Equal(t, "-", formatAge(0, now))
	assert.Equal(t, "5s ago", formatAge(now.Add(-5*time.Second).UnixMilli(), now))
	assert.Equal(t, "2d ago", formatAge(now.Add(-49*time.Hour).UnixMilli(), now))
	assert.Equal(t, "-", formatScore(nil))
	assert.Equal(t, "queued    ", formatState("queued", 10))
	assert.Equal(t, "-", formatID(""))
}
