package renderer

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/dyluth/vibelayer/pkg/blackboard"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordingPublisher struct {
	mu       sync.Mutex
	commands []blackboard.RenderCommand
	err      error
}

func (p *recordingPublisher) PublishRenderCommand(_ context.Context, _ string, cmd blackboard.RenderCommand) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.err != nil {
		return p.err
	}
	p.commands = append(p.commands, cmd)
	return nil
}

func (p *recordingPublisher) sent() []blackboard.RenderCommand {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]blackboard.RenderCommand(nil), p.commands...)
}

func TestBusRendererRender(t *testing.T) {
	ctx := context.Background()

	t.Run("publishes command and completes on ack", func(t *testing.T) {
		pub := &recordingPublisher{}
		web := NewWebRenderer(pub)

		var result error
		calls := 0
		effect := Effect{InstanceID: "inst-1", EffectID: "confetti", Type: blackboard.EffectParticle, Intensity: 0.5}
		require.NoError(t, web.Render(ctx, effect, func(err error) {
			calls++
			result = err
		}))

		sent := pub.sent()
		require.Len(t, sent, 1)
		assert.Equal(t, blackboard.RenderActionRender, sent[0].Action)
		assert.Equal(t, "confetti", sent[0].EffectID)
		assert.Equal(t, 1, web.pendingCount())

		assert.True(t, web.HandleAck(blackboard.RenderAck{Platform: PlatformWeb, InstanceID: "inst-1", Status: blackboard.AckCompleted}))
		assert.Equal(t, 1, calls)
		assert.NoError(t, result)
		assert.Equal(t, 0, web.pendingCount())

		// A duplicate ack is ignored.
		assert.False(t, web.HandleAck(blackboard.RenderAck{Platform: PlatformWeb, InstanceID: "inst-1", Status: blackboard.AckCompleted}))
		assert.Equal(t, 1, calls)
	})

	t.Run("failed ack reports render failure", func(t *testing.T) {
		web := NewWebRenderer(&recordingPublisher{})

		var result error
		require.NoError(t, web.Render(ctx, Effect{InstanceID: "inst-2", Type: blackboard.EffectShader}, func(err error) { result = err }))
		assert.True(t, web.HandleAck(blackboard.RenderAck{Platform: PlatformWeb, InstanceID: "inst-2", Status: blackboard.AckFailed, Error: "context lost"}))

		assert.True(t, errors.Is(result, ErrRenderFailed))
		assert.Contains(t, result.Error(), "context lost")
	})

	t.Run("ack for another platform is ignored", func(t *testing.T) {
		web := NewWebRenderer(&recordingPublisher{})
		require.NoError(t, web.Render(ctx, Effect{InstanceID: "inst-3", Type: blackboard.EffectFilter}, func(error) {}))
		assert.False(t, web.HandleAck(blackboard.RenderAck{Platform: PlatformMobile, InstanceID: "inst-3", Status: blackboard.AckCompleted}))
		assert.Equal(t, 1, web.pendingCount())
	})

	t.Run("refuses unsupported effect", func(t *testing.T) {
		pub := &recordingPublisher{}
		mobile := NewMobileRenderer(pub)
		err := mobile.Render(ctx, Effect{InstanceID: "inst-4", Type: blackboard.EffectFilter}, func(error) {})
		assert.True(t, errors.Is(err, ErrUnsupported))
		assert.Empty(t, pub.sent())
	})

	t.Run("publish failure refuses render", func(t *testing.T) {
		pub := &recordingPublisher{err: errors.New("redis down")}
		web := NewWebRenderer(pub)
		err := web.Render(ctx, Effect{InstanceID: "inst-5", Type: blackboard.EffectParticle}, func(error) {
			t.Error("done must not be called for a refused render")
		})
		assert.Error(t, err)
		assert.Equal(t, 0, web.pendingCount())
	})

	t.Run("refuses duplicate instance", func(t *testing.T) {
		web := NewWebRenderer(&recordingPublisher{})
		effect := Effect{InstanceID: "inst-6", Type: blackboard.EffectParticle}
		require.NoError(t, web.Render(ctx, effect, func(error) {}))
		assert.Error(t, web.Render(ctx, effect, func(error) {}))
	})
}

func TestBusRendererStop(t *testing.T) {
	pub := &recordingPublisher{}
	web := NewWebRenderer(pub)
	ctx := context.Background()

	require.NoError(t, web.Render(ctx, Effect{InstanceID: "inst-1", Type: blackboard.EffectParticle}, func(error) {
		t.Error("done must not be called after stop")
	}))
	require.NoError(t, web.Stop(ctx, "inst-1"))

	sent := pub.sent()
	require.Len(t, sent, 2)
	assert.Equal(t, blackboard.RenderActionStop, sent[1].Action)
	assert.Equal(t, "inst-1", sent[1].InstanceID)

	assert.False(t, web.HandleAck(blackboard.RenderAck{Platform: PlatformWeb, InstanceID: "inst-1", Status: blackboard.AckCompleted}))
}

func (b *BusRenderer) pendingCount() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.pending)
}
