package cache

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestRedis(t *testing.T) (*miniredis.Miniredis, *redis.Client) {
	t.Helper()
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })
	return mr, rdb
}

func TestRedisIdempotencyStore_LockReleaseRemember(t *testing.T) {
	mr, rdb := newTestRedis(t)
	s := NewRedisIdempotencyStore(rdb, time.Minute)
	ctx := context.Background()

	ok, err := s.TryLock(ctx, "stripe-event", "evt_1")
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = s.TryLock(ctx, "stripe-event", "evt_1")
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, s.Release(ctx, "stripe-event", "evt_1"))
	ok, err = s.TryLock(ctx, "stripe-event", "evt_1")
	require.NoError(t, err)
	assert.True(t, ok)

	_, found, err := s.Recall(ctx, "checkout:b1", "k1")
	require.NoError(t, err)
	assert.False(t, found)

	require.NoError(t, s.Remember(ctx, "checkout:b1", "k1", `{"orderId":"o1"}`))
	val, found, err := s.Recall(ctx, "checkout:b1", "k1")
	require.NoError(t, err)
	assert.True(t, found)
	assert.Equal(t, `{"orderId":"o1"}`, val)

	mr.FastForward(2 * time.Minute)
	ok, err = s.TryLock(ctx, "checkout:b1", "k1")
	require.NoError(t, err)
	assert.True(t, ok)
	_, found, err = s.Recall(ctx, "checkout:b1", "k1")
	require.NoError(t, err)
	assert.False(t, found)
}

func TestRedisIdempotencyStore_Unavailable(t *testing.T) {
	mr, rdb := newTestRedis(t)
	s := NewRedisIdempotencyStore(rdb, 0)
	mr.Close()

	_, err := s.TryLock(context.Background(), "stripe-event", "evt_1")
	require.Error(t, err)
	_, found, err := s.Recall(context.Background(), "x", "y")
	require.Error(t, err)
	assert.False(t, found)
}

func TestRedisCache_Status(t *testing.T) {
	mr, rdb := newTestRedis(t)
	c := NewRedisCache(rdb, time.Hour)
	ctx := context.Background()

	_, found, err := c.GetStatus(ctx, "o1")
	require.NoError(t, err)
	assert.False(t, found)

	require.NoError(t, c.SetStatus(ctx, "o1", "paid"))
	s, found, err := c.GetStatus(ctx, "o1")
	require.NoError(t, err)
	assert.True(t, found)
	assert.Equal(t, "paid", s)
	assert.Equal(t, time.Hour, mr.TTL("order:status:o1"))
}
