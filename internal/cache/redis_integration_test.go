//go:build integration

package cache_test

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"roadbook/internal/cache"
	"roadbook/pkg/testutil/containers"
)

func TestRedisStoreRoundTrip(t *testing.T) {
	ctx := context.Background()
	redis := containers.NewRedisContainer(t)
	store := cache.NewRedisStore(redis.Client)

	_, found, err := store.Get(ctx, "missing")
	require.NoError(t, err)
	assert.False(t, found)

	require.NoError(t, store.SetTTL(ctx, "key", []byte("value"), time.Minute))
	got, found, err := store.Get(ctx, "key")
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, []byte("value"), got)

	require.NoError(t, store.Delete(ctx, "key"))
	_, found, err = store.Get(ctx, "key")
	require.NoError(t, err)
	assert.False(t, found)
}

func TestRedisStoreTTLExpiry(t *testing.T) {
	ctx := context.Background()
	redis := containers.NewRedisContainer(t)
	store := cache.NewRedisStore(redis.Client)

	require.NoError(t, store.SetTTL(ctx, "short", []byte("value"), time.Second))

	assert.Eventually(t, func() bool {
		_, found, err := store.Get(ctx, "short")
		return err == nil && !found
	}, 5*time.Second, 100*time.Millisecond)
}

func TestRedisStoreDeletePrefix(t *testing.T) {
	ctx := context.Background()
	redis := containers.NewRedisContainer(t)
	store := cache.NewRedisStore(redis.Client)

	// More keys than one SCAN/DEL batch holds.
	for i := 0; i < 250; i++ {
		key := fmt.Sprintf("driver:abc:workdays:month:%d", i)
		require.NoError(t, store.SetTTL(ctx, key, []byte("snapshot"), time.Minute))
	}
	require.NoError(t, store.SetTTL(ctx, "driver:abc:verify_email", []byte("token"), time.Minute))
	require.NoError(t, store.SetTTL(ctx, "driver:def:workdays:month:1", []byte("other"), time.Minute))

	require.NoError(t, store.DeletePrefix(ctx, "driver:abc:workdays:"))

	for i := 0; i < 250; i++ {
		key := fmt.Sprintf("driver:abc:workdays:month:%d", i)
		_, found, err := store.Get(ctx, key)
		require.NoError(t, err)
		assert.False(t, found, "key %s should be gone", key)
	}

	_, found, err := store.Get(ctx, "driver:abc:verify_email")
	require.NoError(t, err)
	assert.True(t, found)
	_, found, err = store.Get(ctx, "driver:def:workdays:month:1")
	require.NoError(t, err)
	assert.True(t, found)
}
