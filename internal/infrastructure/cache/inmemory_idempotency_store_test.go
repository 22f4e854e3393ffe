package cache

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInMemoryIdempotencyStore_MarkProcessed(t *testing.T) {
	store := NewInMemoryIdempotencyStore()
	defer store.Close()

	ctx := context.Background()

	t.Run("first mark succeeds", func(t *testing.T) {
		marked, err := store.MarkProcessed(ctx, "delivery-1", time.Minute)
		require.NoError(t, err)
		assert.True(t, marked)
	})

	t.Run("redelivery is rejected", func(t *testing.T) {
		marked, err := store.MarkProcessed(ctx, "delivery-1", time.Minute)
		require.NoError(t, err)
		assert.False(t, marked)
	})

	t.Run("expired entry can be re-marked", func(t *testing.T) {
		marked, err := store.MarkProcessed(ctx, "delivery-2", time.Millisecond)
		require.NoError(t, err)
		assert.True(t, marked)

		time.Sleep(5 * time.Millisecond)

		marked, err = store.MarkProcessed(ctx, "delivery-2", time.Minute)
		require.NoError(t, err)
		assert.True(t, marked)
	})
}

func TestInMemoryIdempotencyStore_IsProcessed(t *testing.T) {
	store := NewInMemoryIdempotencyStore()
	defer store.Close()

	ctx := context.Background()

	processed, err := store.IsProcessed(ctx, "unknown")
	require.NoError(t, err)
	assert.False(t, processed)

	_, err = store.MarkProcessed(ctx, "delivery-3", time.Minute)
	require.NoError(t, err)

	processed, err = store.IsProcessed(ctx, "delivery-3")
	require.NoError(t, err)
	assert.True(t, processed)
}

func TestInMemoryIdempotencyStore_Cleanup(t *testing.T) {
	store := NewInMemoryIdempotencyStore()
	defer store.Close()

	ctx := context.Background()

	_, err := store.MarkProcessed(ctx, "stale", time.Millisecond)
	require.NoError(t, err)
	_, err = store.MarkProcessed(ctx, "fresh", time.Hour)
	require.NoError(t, err)

	time.Sleep(5 * time.Millisecond)
	store.cleanup()

	assert.Equal(t, 1, store.Size())
}

func TestInMemoryIdempotencyStore_CloseTwice(t *testing.T) {
	store := NewInMemoryIdempotencyStore()
	require.NoError(t, store.Close())
	require.NoError(t, store.Close())
}
