package lock

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"
)

func setupRedis(t *testing.T) *RedisStore {
	t.Helper()
	ctx := context.Background()

	container, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: testcontainers.ContainerRequest{
			Image:        "redis:7-alpine",
			ExposedPorts: []string{"6379/tcp"},
			WaitingFor:   wait.ForLog("Ready to accept connections").WithStartupTimeout(30 * time.Second),
		},
		Started: true,
	})
	require.NoError(t, err)
	t.Cleanup(func() {
		_ = container.Terminate(context.Background())
	})

	host, err := container.Host(ctx)
	require.NoError(t, err)
	port, err := container.MappedPort(ctx, "6379")
	require.NoError(t, err)

	store, err := DialRedisStore(ctx, fmt.Sprintf("%s:%s", host, port.Port()), "")
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })
	return store
}

func TestRedisStore_Integration(t *testing.T) {
	if testing.Short() {
		t.Skip("Skipping integration test in short mode")
	}

	store := setupRedis(t)
	ctx := context.Background()

	t.Run("acquire is exclusive", func(t *testing.T) {
		ok, err := store.TryAcquire(ctx, "excl", "a", time.Second)
		require.NoError(t, err)
		assert.True(t, ok)

		ok, err = store.TryAcquire(ctx, "excl", "b", time.Second)
		require.NoError(t, err)
		assert.False(t, ok)
	})

	t.Run("release checks token", func(t *testing.T) {
		ok, err := store.TryAcquire(ctx, "rel", "a", time.Second)
		require.NoError(t, err)
		require.True(t, ok)

		ok, err = store.Release(ctx, "rel", "b")
		require.NoError(t, err)
		assert.False(t, ok)

		ok, err = store.Release(ctx, "rel", "a")
		require.NoError(t, err)
		assert.True(t, ok)

		ok, err = store.TryAcquire(ctx, "rel", "b", time.Second)
		require.NoError(t, err)
		assert.True(t, ok)
	})

	t.Run("extend checks token and resets ttl", func(t *testing.T) {
		ok, err := store.TryAcquire(ctx, "ext", "a", 200*time.Millisecond)
		require.NoError(t, err)
		require.True(t, ok)

		ok, err = store.Extend(ctx, "ext", "b", 5*time.Second)
		require.NoError(t, err)
		assert.False(t, ok)

		ok, err = store.Extend(ctx, "ext", "a", 5*time.Second)
		require.NoError(t, err)
		assert.True(t, ok)

		ttl, err := store.client.PTTL(ctx, "ext").Result()
		require.NoError(t, err)
		assert.Greater(t, ttl, time.Second)
	})

	t.Run("key expires", func(t *testing.T) {
		ok, err := store.TryAcquire(ctx, "exp", "a", 50*time.Millisecond)
		require.NoError(t, err)
		require.True(t, ok)

		assert.Eventually(t, func() bool {
			_, err := store.client.Get(ctx, "exp").Result()
			return err == redis.Nil
		}, 2*time.Second, 20*time.Millisecond)
	})

	t.Run("coordinator over redis", func(t *testing.T) {
		c, err := NewCoordinator([]Store{store}, WithStoreTimeout(time.Second))
		require.NoError(t, err)

		lease, err := c.Acquire(ctx, WagerKey(7, "dice"), time.Second, FailFast)
		require.NoError(t, err)

		_, err = c.Acquire(ctx, WagerKey(7, "dice"), time.Second, FailFast)
		assert.ErrorIs(t, err, ErrNotAcquired)

		require.NoError(t, c.Release(ctx, lease))
		_, err = c.Acquire(ctx, WagerKey(7, "dice"), time.Second, FailFast)
		assert.NoError(t, err)
	})
}
