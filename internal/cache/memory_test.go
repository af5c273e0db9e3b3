package cache

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryStoreSetGet(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()

	_, found, err := store.Get(ctx, "missing")
	require.NoError(t, err)
	assert.False(t, found)

	require.NoError(t, store.Set(ctx, "k", "v", time.Minute))
	v, found, err := store.Get(ctx, "k")
	require.NoError(t, err)
	assert.True(t, found)
	assert.Equal(t, "v", v)
}

func TestMemoryStoreTTLExpiry(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	store.now = func() time.Time { return now }

	require.NoError(t, store.Set(ctx, "k", "v", 30*time.Second))

	now = now.Add(29 * time.Second)
	_, found, err := store.Get(ctx, "k")
	require.NoError(t, err)
	assert.True(t, found)

	now = now.Add(2 * time.Second)
	_, found, err = store.Get(ctx, "k")
	require.NoError(t, err)
	assert.False(t, found, "entry expires after its TTL")
}

func TestMemoryStoreSetIfAbsent(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	store.now = func() time.Time { return now }

	ok, err := store.SetIfAbsent(ctx, "lock", "holder-1", time.Minute)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = store.SetIfAbsent(ctx, "lock", "holder-2", time.Minute)
	require.NoError(t, err)
	assert.False(t, ok, "held lock cannot be re-acquired")

	v, found, err := store.Get(ctx, "lock")
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, "holder-1", v)

	// Lease expiry frees the key.
	now = now.Add(2 * time.Minute)
	ok, err = store.SetIfAbsent(ctx, "lock", "holder-2", time.Minute)
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestMemoryStoreDelete(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()

	require.NoError(t, store.Set(ctx, "k", "v", 0))
	require.NoError(t, store.Delete(ctx, "k"))

	_, found, err := store.Get(ctx, "k")
	require.NoError(t, err)
	assert.False(t, found)
}
