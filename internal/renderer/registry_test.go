package renderer

import (
	"context"
	"errors"
	"testing"

	"github.com/dyluth/vibelayer/pkg/blackboard"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type nopPublisher struct{}

func (nopPublisher) PublishRenderCommand(context.Context, string, blackboard.RenderCommand) error {
	return nil
}

func builtinRegistry(t *testing.T) *Registry {
	t.Helper()
	reg := NewRegistry()
	require.NoError(t, reg.Register(PlatformWeb, NewWebRenderer(nopPublisher{})))
	require.NoError(t, reg.Register(PlatformMobile, NewMobileRenderer(nopPublisher{})))
	return reg
}

func TestResolve(t *testing.T) {
	reg := builtinRegistry(t)

	tests := []struct {
		platform  string
		effect    blackboard.EffectType
		supported bool
	}{
		{PlatformWeb, blackboard.EffectParticle, true},
		{PlatformWeb, blackboard.EffectFilter, true},
		{PlatformWeb, blackboard.EffectShader, true},
		{PlatformWeb, blackboard.EffectAnimation, false},
		{PlatformWeb, blackboard.EffectTransition, false},
		{PlatformMobile, blackboard.EffectParticle, true},
		{PlatformMobile, blackboard.EffectAnimation, true},
		{PlatformMobile, blackboard.EffectFilter, false},
		{PlatformMobile, blackboard.EffectShader, false},
		{"desktop", blackboard.EffectParticle, false},
	}

	for _, tt := range tests {
		t.Run(tt.platform+"/"+string(tt.effect), func(t *testing.T) {
			rend, err := reg.Resolve(tt.platform, tt.effect)
			if tt.supported {
				require.NoError(t, err)
				assert.Equal(t, tt.platform, rend.Name())
				return
			}
			assert.Nil(t, rend)
			assert.True(t, errors.Is(err, ErrUnsupported), "got %v", err)
		})
	}
}

func TestRegister(t *testing.T) {
	t.Run("rejects second renderer for a platform", func(t *testing.T) {
		reg := builtinRegistry(t)
		err := reg.Register(PlatformWeb, NewWebRenderer(nopPublisher{}))
		assert.Error(t, err)
		assert.Contains(t, err.Error(), "already has a renderer")
	})

	t.Run("rejects sharing one renderer across platforms", func(t *testing.T) {
		reg := NewRegistry()
		web := NewWebRenderer(nopPublisher{})
		require.NoError(t, reg.Register(PlatformWeb, web))
		err := reg.Register("web-preview", web)
		assert.Error(t, err)
		assert.Contains(t, err.Error(), "already registered")
	})

	t.Run("rejects empty platform and nil renderer", func(t *testing.T) {
		reg := NewRegistry()
		assert.Error(t, reg.Register("", NewWebRenderer(nopPublisher{})))
		assert.Error(t, reg.Register("tv", nil))
	})

	t.Run("registers custom renderer", func(t *testing.T) {
		reg := builtinRegistry(t)
		tv, err := New(KindCustom, "tv", []blackboard.EffectType{blackboard.EffectTransition}, nopPublisher{})
		require.NoError(t, err)
		require.NoError(t, reg.Register("tv", tv))

		_, err = reg.Resolve("tv", blackboard.EffectTransition)
		assert.NoError(t, err)
		assert.Equal(t, []string{"mobile", "tv", "web"}, reg.Platforms())
	})
}

func TestNew(t *testing.T) {
	t.Run("built-in kinds have fixed capabilities", func(t *testing.T) {
		rend, err := New(KindMobile, "ios", nil, nopPublisher{})
		require.NoError(t, err)
		assert.Equal(t, "ios", rend.Name())
		assert.True(t, rend.Supports(blackboard.EffectAnimation))
		assert.False(t, rend.Supports(blackboard.EffectFilter))
	})

	t.Run("custom kind requires effects", func(t *testing.T) {
		_, err := New(KindCustom, "tv", nil, nopPublisher{})
		assert.Error(t, err)
	})

	t.Run("unknown kind", func(t *testing.T) {
		_, err := New("hologram", "tv", nil, nopPublisher{})
		assert.Error(t, err)
	})
}
