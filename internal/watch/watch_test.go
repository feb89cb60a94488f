package watch

import (
	"bytes"
	"context"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/dyluth/vibelayer/pkg/blackboard"
	"github.com/dyluth/vibelayer/pkg/protocol"
	"github.com/google/uuid"
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

func publishStatus(t *testing.T, client *blackboard.Client, effect *protocol.EffectStatus) {
	t.Helper()
	msg := protocol.NewSystemStatus(true, nil, protocol.Performance{}, effect)
	raw, err := protocol.Encode(msg)
	require.NoError(t, err)
	require.NoError(t, client.PublishStatus(context.Background(), raw))
}

func TestFormatStatus(t *testing.T) {
	score := 0.5
	tests := []struct {
		name     string
		msg      protocol.Message
		expected string
	}{
		{
			name: "rendering",
			msg: protocol.NewSystemStatus(true, nil, protocol.Performance{}, &protocol.EffectStatus{
				InstanceID: "6f1c2d3e", EffectID: "sparkle", LayerID: "overlay", State: protocol.StateRendering,
			}),
			expected: "🎬 Rendering: effect=sparkle layer=overlay instance=6f1c2d3e",
		},
		{
			name: "brand gate rejection",
			msg: protocol.NewSystemStatus(true, nil, protocol.Performance{}, &protocol.EffectStatus{
				InstanceID: "6f1c2d3e", EffectID: "sparkle", State: protocol.StateRejected, Reason: "brand_gate", Score: &score,
			}),
			expected: "🚫 Rejected: effect=sparkle instance=6f1c2d3e score=0.50 (brand_gate)",
		},
		{
			name: "rejected input without an instance",
			msg: protocol.NewSystemStatus(true, nil, protocol.Performance{}, &protocol.EffectStatus{
				State: protocol.StateRejected, Reason: "unknown message type: type tag is missing",
			}),
			expected: "🚫 Rejected (unknown message type: type tag is missing)",
		},
		{
			name: "performance snapshot",
			msg: protocol.NewSystemStatus(true, map[string]protocol.ServiceState{
				"web": protocol.ServiceOnline, "mobile": protocol.ServiceOffline,
			}, protocol.Performance{FPS: 59.94, Latency: 1.25, MemoryUsage: 12}, nil),
			expected: "📊 Performance: fps=59.9 latency=1.2ms memory=12.0MB services[mobile=offline web=online]",
		},
		{
			name:     "not a status message",
			msg:      protocol.NewAISuggestion("sparkle", 0.5, "", ""),
			expected: "❓ Unexpected ai:suggestion message",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, FormatStatus(tt.msg))
		})
	}
}

type syncBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *syncBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *syncBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}

// subscribedSource signals once StreamStatus has subscribed.
type subscribedSource struct {
	*blackboard.Client
	ready chan struct{}
}

func (s *subscribedSource) SubscribeStatus(ctx context.Context) (*blackboard.Subscription[[]byte], error) {
	sub, err := s.Client.SubscribeStatus(ctx)
	close(s.ready)
	return sub, err
}

func TestStreamStatus(t *testing.T) {
	for _, format := range []OutputFormat{OutputFormatDefault, OutputFormatJSON} {
		t.Run(string(format), func(t *testing.T) {
			client := setupClient(t)
			src := &subscribedSource{Client: client, ready: make(chan struct{})}
			out := &syncBuffer{}

			ctx, cancel := context.WithCancel(context.Background())
			done := make(chan error, 1)
			go func() { done <- StreamStatus(ctx, src, format, out) }()
			<-src.ready

			publishStatus(t, client, &protocol.EffectStatus{InstanceID: "abc", EffectID: "sparkle", State: protocol.StateQueued})
			require.NoError(t, client.PublishStatus(ctx, []byte("garbage")))

			require.Eventually(t, func() bool {
				return strings.Count(out.String(), "\n") == 2
			}, 2*time.Second, 10*time.Millisecond)

			cancel()
			require.NoError(t, <-done)

			lines := strings.Split(strings.TrimSpace(out.String()), "\n")
			if format == OutputFormatJSON {
				assert.Contains(t, lines[0], `"type":"system:status"`)
				assert.Equal(t, "garbage", lines[1])
			} else {
				assert.Contains(t, lines[0], "⏳ Queued: effect=sparkle instance=abc")
				assert.Contains(t, lines[1], "Undecodable status message")
			}
		})
	}
}

func TestWaitForTrigger(t *testing.T) {
	ctx := context.Background()

	t.Run("skips queued and unrelated events", func(t *testing.T) {
		client := setupClient(t)
		sub, err := client.SubscribeStatus(ctx)
		require.NoError(t, err)
		defer sub.Close()

		publishStatus(t, client, &protocol.EffectStatus{TriggerID: "other", State: protocol.StateRendering})
		publishStatus(t, client, &protocol.EffectStatus{TriggerID: "mine", State: protocol.StateQueued})
		publishStatus(t, client, &protocol.EffectStatus{TriggerID: "mine", InstanceID: "inst-1", State: protocol.StateRendering})

		status, err := WaitForTrigger(ctx, sub, "mine", 2*time.Second)
		require.NoError(t, err)
		assert.Equal(t, "inst-1", status.InstanceID)
		assert.Equal(t, protocol.StateRendering, status.State)
	})

	t.Run("times out", func(t *testing.T) {
		client := setupClient(t)
		sub, err := client.SubscribeStatus(ctx)
		require.NoError(t, err)
		defer sub.Close()

		_, err = WaitForTrigger(ctx, sub, "mine", 50*time.Millisecond)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "timeout waiting for trigger mine")
	})
}

func TestPollForInstance(t *testing.T) {
	ctx := context.Background()
	client := setupClient(t)

	t.Run("returns once terminal", func(t *testing.T) {
		id := uuid.New().String()
		require.NoError(t, client.SaveInstanceRecord(ctx, &blackboard.InstanceRecord{ID: id, State: "rendering"}, time.Minute))

		go func() {
			time.Sleep(300 * time.Millisecond)
			_ = client.SaveInstanceRecord(ctx, &blackboard.InstanceRecord{ID: id, State: "stopped", Reason: "completed"}, time.Minute)
		}()

		record, err := PollForInstance(ctx, client, id, 2*time.Second)
		require.NoError(t, err)
		assert.Equal(t, "stopped", record.State)
		assert.Equal(t, "completed", record.Reason)
	})

	t.Run("times out when never terminal", func(t *testing.T) {
		id := uuid.New().String()
		require.NoError(t, client.SaveInstanceRecord(ctx, &blackboard.InstanceRecord{ID: id, State: "rendering"}, time.Minute))

		_, err := PollForInstance(ctx, client, id, 300*time.Millisecond)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "timeout waiting for instance")
	})

	t.Run("honours cancellation", func(t *testing.T) {
		cctx, cancel := context.WithCancel(ctx)
		cancel()
		_, err := PollForInstance(cctx, client, uuid.New().String(), time.Second)
		assert.ErrorIs(t, err, context.Canceled)
	})
}
