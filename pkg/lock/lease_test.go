package lock

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupLease(t *testing.T, mr *miniredis.Miniredis) *RedisLease {
	t.Helper()
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return newRedisLease(client, Config{Key: "test:lease", TTL: time.Minute})
}

func TestRedisLease_SingleHolder(t *testing.T) {
	mr := miniredis.RunT(t)
	first := setupLease(t, mr)
	second := setupLease(t, mr)
	ctx := context.Background()

	release, ok, err := first.TryAcquire(ctx)
	require.NoError(t, err)
	require.True(t, ok)

	_, ok, err = second.TryAcquire(ctx)
	require.NoError(t, err)
	assert.False(t, ok, "second instance must not hold the lease while the first does")

	release()

	release2, ok, err := second.TryAcquire(ctx)
	require.NoError(t, err)
	assert.True(t, ok)
	release2()
}

func TestRedisLease_ExpiresAfterTTL(t *testing.T) {
	mr := miniredis.RunT(t)
	first := setupLease(t, mr)
	second := setupLease(t, mr)
	ctx := context.Background()

	_, ok, err := first.TryAcquire(ctx)
	require.NoError(t, err)
	require.True(t, ok)

	mr.FastForward(2 * time.Minute)

	release, ok, err := second.TryAcquire(ctx)
	require.NoError(t, err)
	assert.True(t, ok)
	release()
}

func TestRedisLease_UnreachableRedis(t *testing.T) {
	mr := miniredis.RunT(t)
	lease := setupLease(t, mr)
	mr.Close()

	_, ok, err := lease.TryAcquire(context.Background())
	assert.False(t, ok)
	assert.Error(t, err)
}
