package cache

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInMemoryIdempotencyStore(t *testing.T) {
	ctx := context.Background()
	store := NewInMemoryIdempotencyStore()

	t.Run("first mark is fresh, second is a duplicate", func(t *testing.T) {
		fresh, err := store.MarkProcessed(ctx, "corr-1", time.Minute)
		require.NoError(t, err)
		assert.True(t, fresh)

		fresh, err = store.MarkProcessed(ctx, "corr-1", time.Minute)
		require.NoError(t, err)
		assert.False(t, fresh)

		seen, err := store.IsProcessed(ctx, "corr-1")
		require.NoError(t, err)
		assert.True(t, seen)
	})

	t.Run("unknown id is unseen", func(t *testing.T) {
		seen, err := store.IsProcessed(ctx, "corr-never")
		require.NoError(t, err)
		assert.False(t, seen)
	})

	t.Run("expired entries can be marked again", func(t *testing.T) {
		fresh, err := store.MarkProcessed(ctx, "corr-2", time.Millisecond)
		require.NoError(t, err)
		assert.True(t, fresh)

		time.Sleep(5 * time.Millisecond)

		seen, err := store.IsProcessed(ctx, "corr-2")
		require.NoError(t, err)
		assert.False(t, seen)

		fresh, err = store.MarkProcessed(ctx, "corr-2", time.Minute)
		require.NoError(t, err)
		assert.True(t, fresh)
	})
}
