package blackboard

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// setupTestClient creates a test client connected to a miniredis instance
func setupTestClient(t *testing.T) (*Client, *miniredis.Miniredis) {
	mr := miniredis.NewMiniRedis()
	err := mr.Start()
	require.NoError(t, err)
	t.Cleanup(mr.Close)

	client, err := NewClient(&redis.Options{Addr: mr.Addr()}, "test-instance")
	require.NoError(t, err)
	t.Cleanup(func() { client.Close() })

	return client, mr
}

func createLayer(t *testing.T, client *Client, id string) *Layer {
	t.Helper()
	layer := &Layer{ID: id, OwnerID: "creator-1", Name: "Layer " + id, ZIndex: 1, Visible: true}
	require.NoError(t, client.CreateLayer(context.Background(), layer))
	return layer
}

func TestNewClient(t *testing.T) {
	t.Run("creates client successfully", func(t *testing.T) {
		client, _ := setupTestClient(t)
		assert.Equal(t, "test-instance", client.InstanceName())
	})

	t.Run("rejects empty instance name", func(t *testing.T) {
		_, err := NewClient(&redis.Options{Addr: "localhost:6379"}, "")
		assert.Error(t, err)
		assert.Contains(t, err.Error(), "instance name cannot be empty")
	})
}

func TestPing(t *testing.T) {
	client, _ := setupTestClient(t)

	assert.NoError(t, client.Ping(context.Background()))
}

func TestLayers(t *testing.T) {
	client, _ := setupTestClient(t)
	ctx := context.Background()

	t.Run("creates and retrieves layer", func(t *testing.T) {
		layer := createLayer(t, client, "overlay")

		retrieved, err := client.GetLayer(ctx, layer.ID)
		require.NoError(t, err)
		assert.Equal(t, layer.ID, retrieved.ID)
		assert.Equal(t, layer.OwnerID, retrieved.OwnerID)
		assert.Equal(t, layer.ZIndex, retrieved.ZIndex)
		assert.True(t, retrieved.Visible)
		assert.Empty(t, retrieved.EffectIDs)
	})

	t.Run("rejects duplicate layer", func(t *testing.T) {
		createLayer(t, client, "dup")
		err := client.CreateLayer(ctx, &Layer{ID: "dup", OwnerID: "creator-1", Name: "again"})
		assert.ErrorIs(t, err, ErrAlreadyExists)
	})

	t.Run("rejects invalid layer", func(t *testing.T) {
		err := client.CreateLayer(ctx, &Layer{ID: "x"})
		assert.Error(t, err)
		assert.Contains(t, err.Error(), "invalid layer")
	})

	t.Run("returns redis.Nil for non-existent layer", func(t *testing.T) {
		retrieved, err := client.GetLayer(ctx, "missing")
		assert.Nil(t, retrieved)
		assert.True(t, IsNotFound(err))
	})

	t.Run("toggles visibility", func(t *testing.T) {
		createLayer(t, client, "toggle")
		require.NoError(t, client.SetLayerVisibility(ctx, "toggle", false))

		retrieved, err := client.GetLayer(ctx, "toggle")
		require.NoError(t, err)
		assert.False(t, retrieved.Visible)

		assert.True(t, IsNotFound(client.SetLayerVisibility(ctx, "missing", true)))
	})
}

func TestEffects(t *testing.T) {
	client, _ := setupTestClient(t)
	ctx := context.Background()
	createLayer(t, client, "overlay")

	t.Run("attaches effects in order", func(t *testing.T) {
		for _, id := range []string{"confetti", "blur", "fade"} {
			err := client.AttachEffect(ctx, &Effect{ID: id, LayerID: "overlay", Type: EffectParticle, Enabled: true})
			require.NoError(t, err)
		}

		layer, err := client.GetLayerWithEffects(ctx, "overlay")
		require.NoError(t, err)
		assert.Equal(t, []string{"confetti", "blur", "fade"}, layer.EffectIDs)
		require.Len(t, layer.Effects, 3)
		assert.Equal(t, "blur", layer.Effects[1].ID)
		assert.Equal(t, "overlay", layer.Effects[1].LayerID)
	})

	t.Run("rejects effect already attached", func(t *testing.T) {
		err := client.AttachEffect(ctx, &Effect{ID: "confetti", LayerID: "overlay", Type: EffectFilter})
		assert.ErrorIs(t, err, ErrAlreadyExists)
	})

	t.Run("rejects effect on missing layer", func(t *testing.T) {
		err := client.AttachEffect(ctx, &Effect{ID: "orphan", LayerID: "nowhere", Type: EffectFilter})
		assert.True(t, IsNotFound(err))
	})

	t.Run("rejects shader attachment", func(t *testing.T) {
		err := client.AttachEffect(ctx, &Effect{ID: "glsl", LayerID: "overlay", Type: EffectShader})
		assert.Error(t, err)
		assert.Contains(t, err.Error(), "invalid effect")
	})

	t.Run("disables effect", func(t *testing.T) {
		require.NoError(t, client.SetEffectEnabled(ctx, "blur", false))

		effect, err := client.GetEffect(ctx, "blur")
		require.NoError(t, err)
		assert.False(t, effect.Enabled)

		assert.True(t, IsNotFound(client.SetEffectEnabled(ctx, "missing", true)))
	})

	t.Run("finds layer for effect", func(t *testing.T) {
		layer, err := client.LayerForEffect(ctx, "fade")
		require.NoError(t, err)
		assert.Equal(t, "overlay", layer.ID)

		found, ok := layer.FindEffect("fade")
		require.True(t, ok)
		assert.True(t, found.Enabled)

		_, err = client.LayerForEffect(ctx, "missing")
		assert.True(t, IsNotFound(err))
	})
}

func TestBrandKits(t *testing.T) {
	client, _ := setupTestClient(t)
	ctx := context.Background()

	t.Run("falls back to default kit", func(t *testing.T) {
		kit, err := client.ActiveBrandKit(ctx, "creator-1")
		require.NoError(t, err)
		assert.Equal(t, DefaultBrandKit(), kit)
	})

	t.Run("saves and retrieves creator kit", func(t *testing.T) {
		kit := DefaultBrandKit()
		kit.ID = "neon"
		kit.Colors.Primary = "#ff00ff"
		kit.Guidelines.Tonality = TonalityEnergetic
		require.NoError(t, client.SaveBrandKit(ctx, "creator-1", kit))

		retrieved, err := client.ActiveBrandKit(ctx, "creator-1")
		require.NoError(t, err)
		assert.Equal(t, kit, retrieved)
	})

	t.Run("rejects invalid kit", func(t *testing.T) {
		kit := DefaultBrandKit()
		kit.Guidelines.Tonality = "smug"
		err := client.SaveBrandKit(ctx, "creator-1", kit)
		assert.Error(t, err)
		assert.Contains(t, err.Error(), "invalid brand kit")
	})
}

func TestCreators(t *testing.T) {
	client, _ := setupTestClient(t)
	ctx := context.Background()

	creator := &Creator{ID: "creator-1", DisplayName: "Ada", SubscriptionTier: "creator", ConnectedAtMs: 1730000000000}
	require.NoError(t, client.RecordCreatorConnection(ctx, creator))

	retrieved, err := client.GetCreator(ctx, "creator-1")
	require.NoError(t, err)
	assert.Equal(t, creator, retrieved)

	_, err = client.GetCreator(ctx, "stranger")
	assert.True(t, IsNotFound(err))
}

func TestInstanceRecords(t *testing.T) {
	client, mr := setupTestClient(t)
	ctx := context.Background()

	record := &InstanceRecord{
		ID:          uuid.New().String(),
		TriggerID:   "msg-1",
		EffectID:    "confetti",
		LayerID:     "overlay",
		Platform:    "web",
		State:       "rendering",
		CreatedAtMs: 1,
		UpdatedAtMs: 2,
	}

	t.Run("saves and expires snapshot", func(t *testing.T) {
		require.NoError(t, client.SaveInstanceRecord(ctx, record, time.Minute))

		retrieved, err := client.GetInstanceRecord(ctx, record.ID)
		require.NoError(t, err)
		assert.Equal(t, record, retrieved)

		ids, err := client.ScanInstanceIDs(ctx)
		require.NoError(t, err)
		assert.Equal(t, []string{record.ID}, ids)

		mr.FastForward(2 * time.Minute)
		_, err = client.GetInstanceRecord(ctx, record.ID)
		assert.True(t, IsNotFound(err))
	})

	t.Run("lists snapshots", func(t *testing.T) {
		other := *record
		other.ID = uuid.New().String()
		require.NoError(t, client.SaveInstanceRecord(ctx, record, 0))
		require.NoError(t, client.SaveInstanceRecord(ctx, &other, 0))

		records, err := client.ListInstanceRecords(ctx)
		require.NoError(t, err)
		assert.Len(t, records, 2)
	})

	t.Run("rejects invalid snapshot", func(t *testing.T) {
		err := client.SaveInstanceRecord(ctx, &InstanceRecord{ID: "nope", State: "queued"}, 0)
		assert.Error(t, err)
	})
}

func TestHistory(t *testing.T) {
	client, _ := setupTestClient(t)
	client.historyCap = 3
	ctx := context.Background()

	for i := int64(1); i <= 5; i++ {
		entry := HistoryEntry{InstanceID: uuid.New().String(), EffectID: "confetti", State: "stopped", AtMs: i * 100}
		require.NoError(t, client.AppendHistory(ctx, entry))
	}

	t.Run("history is capped to most recent entries", func(t *testing.T) {
		entries, err := client.ListHistory(ctx, 0, 0)
		require.NoError(t, err)
		require.Len(t, entries, 3)
		assert.Equal(t, int64(300), entries[0].AtMs)
		assert.Equal(t, int64(500), entries[2].AtMs)
	})

	t.Run("filters by time and limit", func(t *testing.T) {
		entries, err := client.ListHistory(ctx, 400, 0)
		require.NoError(t, err)
		assert.Len(t, entries, 2)

		entries, err = client.ListHistory(ctx, 0, 1)
		require.NoError(t, err)
		require.Len(t, entries, 1)
		assert.Equal(t, int64(500), entries[0].AtMs)
	})
}

func TestSubscribeIngress(t *testing.T) {
	client, _ := setupTestClient(t)
	ctx := context.Background()

	sub, err := client.SubscribeIngress(ctx)
	require.NoError(t, err)
	defer sub.Close()

	require.NoError(t, client.PublishIngress(ctx, "creator-1", "mobile", []byte(`{"hello":true}`)))

	select {
	case event := <-sub.Events():
		assert.Equal(t, "creator-1", event.CreatorID)
		assert.Equal(t, "mobile", event.Platform)
		assert.JSONEq(t, `{"hello":true}`, string(event.Payload))
	case <-time.After(time.Second):
		t.Fatal("timeout waiting for ingress event")
	}
}

func TestSubscribeRenderAcks(t *testing.T) {
	client, mr := setupTestClient(t)
	ctx := context.Background()

	sub, err := client.SubscribeRenderAcks(ctx)
	require.NoError(t, err)
	defer sub.Close()

	t.Run("delivers valid acks", func(t *testing.T) {
		ack := RenderAck{Platform: "web", InstanceID: uuid.New().String(), Status: AckFailed, Error: "context lost"}
		require.NoError(t, client.PublishRenderAck(ctx, ack))

		select {
		case received := <-sub.Events():
			assert.Equal(t, ack, received)
		case <-time.After(time.Second):
			t.Fatal("timeout waiting for render ack")
		}
	})

	t.Run("reports malformed acks on error channel", func(t *testing.T) {
		mr.Publish(RenderAcksChannel("test-instance"), "not json")

		select {
		case err := <-sub.Errors():
			assert.Contains(t, err.Error(), "render ack")
		case <-time.After(time.Second):
			t.Fatal("timeout waiting for subscription error")
		}
	})
}

func TestSubscribeRenderCommandsAndControl(t *testing.T) {
	client, _ := setupTestClient(t)
	ctx := context.Background()

	renders, err := client.SubscribeRenderCommands(ctx, "web")
	require.NoError(t, err)
	defer renders.Close()

	controls, err := client.SubscribeControl(ctx)
	require.NoError(t, err)
	defer controls.Close()

	cmd := RenderCommand{Action: RenderActionStop, InstanceID: uuid.New().String()}
	require.NoError(t, client.PublishRenderCommand(ctx, "web", cmd))

	select {
	case received := <-renders.Events():
		assert.Equal(t, cmd, received)
	case <-time.After(time.Second):
		t.Fatal("timeout waiting for render command")
	}

	control := ControlCommand{Action: ControlCancel, InstanceID: uuid.New().String()}
	require.NoError(t, client.PublishControl(ctx, control))

	select {
	case received := <-controls.Events():
		assert.Equal(t, control, received)
	case <-time.After(time.Second):
		t.Fatal("timeout waiting for control command")
	}
}

func TestSubscriptionClose(t *testing.T) {
	client, _ := setupTestClient(t)

	sub, err := client.SubscribeStatus(context.Background())
	require.NoError(t, err)

	require.NoError(t, sub.Close())
	require.NoError(t, sub.Close())

	select {
	case _, ok := <-sub.Events():
		assert.False(t, ok)
	case <-time.After(time.Second):
		t.Fatal("events channel not closed after Close")
	}
}
