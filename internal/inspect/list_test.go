package inspect

import (
	"bytes"
	"context"
	"encoding/json"
	"strings"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/dyluth/vibelayer/pkg/blackboard"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupClient(t *testing.T) *blackboard.Client {
	t.Helper()

	mr := miniredis.RunT(t)
	client, err := blackboard.NewClient(&redis.Options{Addr: mr.Addr()}, "test-instance")
	require.NoError(t, err)
	t.Cleanup(func() { client.Close() })
	return client
}

func seedRecords(t *testing.T, client *blackboard.Client) {
	t.Helper()
	ctx := context.Background()

	records := []*blackboard.InstanceRecord{
		{ID: "22222222-0000-4000-8000-000000000000", EffectID: "blur", LayerID: "overlay", State: "stopped", Reason: "completed", CreatedAtMs: 2000},
		{ID: "11111111-0000-4000-8000-000000000000", EffectID: "sparkle", LayerID: "overlay", State: "rendering", CreatedAtMs: 1000},
		{ID: "33333333-0000-4000-8000-000000000000", EffectID: "sparkle", LayerID: "banner", State: "rejected", Reason: "brand_gate", CreatedAtMs: 3000},
	}
	for _, r := range records {
		require.NoError(t, client.SaveInstanceRecord(ctx, r, time.Minute))
	}
}

func decodeJSONL(t *testing.T, buf *bytes.Buffer) []blackboard.InstanceRecord {
	t.Helper()
	var out []blackboard.InstanceRecord
	for _, line := range strings.Split(strings.TrimSpace(buf.String()), "\n") {
		if line == "" {
			continue
		}
		var r blackboard.InstanceRecord
		require.NoError(t, json.Unmarshal([]byte(line), &r))
		out = append(out, r)
	}
	return out
}

func TestListInstances(t *testing.T) {
	ctx := context.Background()

	t.Run("empty blackboard", func(t *testing.T) {
		client := setupClient(t)

		var buf bytes.Buffer
		require.NoError(t, ListInstances(ctx, client, "test-instance", OutputFormatDefault, nil, &buf))
		assert.Contains(t, buf.String(), "No effect instances found for instance 'test-instance'")
	})

	t.Run("jsonl is sorted oldest first", func(t *testing.T) {
		client := setupClient(t)
		seedRecords(t, client)

		var buf bytes.Buffer
		require.NoError(t, ListInstances(ctx, client, "test-instance", OutputFormatJSONL, nil, &buf))

		records := decodeJSONL(t, &buf)
		require.Len(t, records, 3)
		assert.Equal(t, []int64{1000, 2000, 3000}, []int64{records[0].CreatedAtMs, records[1].CreatedAtMs, records[2].CreatedAtMs})
	})

	t.Run("filters are ANDed", func(t *testing.T) {
		client := setupClient(t)
		seedRecords(t, client)

		tests := []struct {
			name    string
			filters FilterCriteria
			ids     []string
		}{
			{"by state", FilterCriteria{State: "rejected"}, []string{"33333333-0000-4000-8000-000000000000"}},
			{"by effect", FilterCriteria{EffectID: "sparkle"}, []string{"11111111-0000-4000-8000-000000000000", "33333333-0000-4000-8000-000000000000"}},
			{"by effect glob", FilterCriteria{EffectID: "spark*"}, []string{"11111111-0000-4000-8000-000000000000", "33333333-0000-4000-8000-000000000000"}},
			{"malformed effect glob matches nothing", FilterCriteria{EffectID: "[spark"}, nil},
			{"by effect and layer", FilterCriteria{EffectID: "sparkle", LayerID: "overlay"}, []string{"11111111-0000-4000-8000-000000000000"}},
			{"by since", FilterCriteria{SinceTimestampMs: 2000}, []string{"22222222-0000-4000-8000-000000000000", "33333333-0000-4000-8000-000000000000"}},
			{"nothing matches", FilterCriteria{State: "failed"}, nil},
		}
		for _, tt := range tests {
			t.Run(tt.name, func(t *testing.T) {
				var buf bytes.Buffer
				require.NoError(t, ListInstances(ctx, client, "test-instance", OutputFormatJSONL, &tt.filters, &buf))

				var ids []string
				for _, r := range decodeJSONL(t, &buf) {
					ids = append(ids, r.ID)
				}
				assert.Equal(t, tt.ids, ids)
			})
		}
	})

	t.Run("unknown format", func(t *testing.T) {
		client := setupClient(t)
		err := ListInstances(ctx, client, "test-instance", "xml", nil, &bytes.Buffer{})
		assert.Error(t, err)
	})
}

func TestListHistory(t *testing.T) {
	ctx := context.Background()
	client := setupClient(t)

	for i, state := range []string{"queued", "rendering", "stopped"} {
		require.NoError(t, client.AppendHistory(ctx, blackboard.HistoryEntry{
			InstanceID: "11111111-0000-4000-8000-000000000000",
			EffectID:   "sparkle",
			State:      state,
			AtMs:       int64(1000 * (i + 1)),
		}))
	}

	t.Run("since and limit", func(t *testing.T) {
		var buf bytes.Buffer
		require.NoError(t, ListHistory(ctx, client, 2000, 0, OutputFormatJSONL, &buf))
		assert.Equal(t, 2, strings.Count(buf.String(), "\n"))

		buf.Reset()
		require.NoError(t, ListHistory(ctx, client, 0, 1, OutputFormatJSONL, &buf))
		assert.Contains(t, buf.String(), `"state":"stopped"`)
		assert.Equal(t, 1, strings.Count(buf.String(), "\n"))
	})

	t.Run("table", func(t *testing.T) {
		var buf bytes.Buffer
		require.NoError(t, ListHistory(ctx, client, 0, 0, OutputFormatDefault, &buf))
		assert.Contains(t, buf.String(), "3 transitions")
	})
}

func TestGetInstance(t *testing.T) {
	ctx := context.Background()
	client := setupClient(t)
	seedRecords(t, client)

	t.Run("pretty JSON", func(t *testing.T) {
		var buf bytes.Buffer
		require.NoError(t, GetInstance(ctx, client, "33333333-0000-4000-8000-000000000000", &buf))
		assert.Contains(t, buf.String(), "\n  \"state\": \"rejected\"")

		var r blackboard.InstanceRecord
		require.NoError(t, json.Unmarshal(buf.Bytes(), &r))
		assert.Equal(t, "brand_gate", r.Reason)
	})

	t.Run("not found", func(t *testing.T) {
		err := GetInstance(ctx, client, "44444444-0000-4000-8000-000000000000", &bytes.Buffer{})
		assert.True(t, IsNotFound(err))
	})

	t.Run("invalid ID", func(t *testing.T) {
		err := GetInstance(ctx, client, "nope", &bytes.Buffer{})
		require.Error(t, err)
		assert.False(t, IsNotFound(err))
	})

	t.Run("parse output format", func(t *testing.T) {
		f, err := ParseOutputFormat("jsonl")
		require.NoError(t, err)
		assert.Equal(t, OutputFormatJSONL, f)
		_, err = ParseOutputFormat("yaml")
		assert.Error(t, err)
	})
}
