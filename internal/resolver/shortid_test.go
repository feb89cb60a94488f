package resolver

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/dyluth/vibelayer/pkg/blackboard"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupStore(t *testing.T, ids ...string) *blackboard.Client {
	t.Helper()

	mr := miniredis.RunT(t)
	client, err := blackboard.NewClient(&redis.Options{Addr: mr.Addr()}, "test-instance")
	require.NoError(t, err)
	t.Cleanup(func() { client.Close() })

	for _, id := range ids {
		require.NoError(t, client.SaveInstanceRecord(context.Background(), &blackboard.InstanceRecord{
			ID:    id,
			State: "rendering",
		}, time.Minute))
	}
	return client
}

func TestResolveInstanceID(t *testing.T) {
	const (
		idA = "abc12345-0000-4000-8000-000000000001"
		idB = "abc12345-0000-4000-8000-000000000002"
		idC = "def67890-0000-4000-8000-000000000003"
	)
	client := setupStore(t, idA, idB, idC)
	ctx := context.Background()

	t.Run("full UUID", func(t *testing.T) {
		id, err := ResolveInstanceID(ctx, client, idC)
		require.NoError(t, err)
		assert.Equal(t, idC, id)
	})

	t.Run("full UUID that does not exist", func(t *testing.T) {
		_, err := ResolveInstanceID(ctx, client, "99999999-0000-4000-8000-000000000000")
		assert.True(t, IsNotFoundError(err))
	})

	t.Run("unique prefix", func(t *testing.T) {
		id, err := ResolveInstanceID(ctx, client, "def678")
		require.NoError(t, err)
		assert.Equal(t, idC, id)
	})

	t.Run("prefix is case-insensitive", func(t *testing.T) {
		id, err := ResolveInstanceID(ctx, client, "DEF678")
		require.NoError(t, err)
		assert.Equal(t, idC, id)
	})

	t.Run("ambiguous prefix", func(t *testing.T) {
		_, err := ResolveInstanceID(ctx, client, "abc123")
		require.True(t, IsAmbiguousError(err))

		var ambiguous *AmbiguousError
		require.True(t, errors.As(err, &ambiguous))
		assert.Equal(t, []string{idA, idB}, ambiguous.Matches)
	})

	t.Run("no match", func(t *testing.T) {
		_, err := ResolveInstanceID(ctx, client, "ffffff")
		assert.True(t, IsNotFoundError(err))
		assert.False(t, IsAmbiguousError(err))
	})

	t.Run("too short", func(t *testing.T) {
		_, err := ResolveInstanceID(ctx, client, "abc")
		require.Error(t, err)
		assert.Contains(t, err.Error(), "at least 6 characters")
	})
}

func TestFormatAmbiguousError(t *testing.T) {
	t.Run("lists every match", func(t *testing.T) {
		msg := FormatAmbiguousError(&AmbiguousError{ShortID: "abc123", Matches: []string{"abc123-a", "abc123-b"}})
		assert.Contains(t, msg, "matches 2 instances")
		assert.Contains(t, msg, "  abc123-a\n  abc123-b\n")
		assert.NotContains(t, msg, "more")
	})

	t.Run("caps the listing", func(t *testing.T) {
		matches := make([]string, 13)
		for i := range matches {
			matches[i] = fmt.Sprintf("abc123-%02d", i)
		}
		msg := FormatAmbiguousError(&AmbiguousError{ShortID: "abc123", Matches: matches})
		assert.Equal(t, 10, strings.Count(msg, "  abc123-"))
		assert.Contains(t, msg, "...and 3 more")
	})
}
