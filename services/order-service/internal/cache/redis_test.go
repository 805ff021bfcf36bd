package cache

import (
	"context"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/md-rashed-zaman/ordersaga/services/order-service/internal/orders"
)

func newCache(t *testing.T) (*RedisCache, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })
	return NewRedisCache(rdb, time.Minute, slog.New(slog.NewTextHandler(io.Discard, nil))), mr
}

func TestRedisCacheRoundTrip(t *testing.T) {
	c, mr := newCache(t)
	ctx := context.Background()
	o, err := orders.NewOrder("o-1", "C1", "SKU1", 2, decimal.RequireFromString("10.00"), time.Now().UTC())
	require.NoError(t, err)

	_, ok := c.Get(ctx, "o-1")
	require.False(t, ok)

	c.Set(ctx, o)
	require.True(t, mr.Exists("orders:o-1"))
	require.Equal(t, time.Minute, mr.TTL("orders:o-1"))

	got, ok := c.Get(ctx, "o-1")
	require.True(t, ok)
	require.Equal(t, o.ID, got.ID)
	require.True(t, o.Price.Equal(got.Price))

	c.Invalidate(ctx, "o-1")
	_, ok = c.Get(ctx, "o-1")
	require.False(t, ok)
}

func TestRedisCacheDropsCorruptEntries(t *testing.T) {
	c, mr := newCache(t)
	require.NoError(t, mr.Set("orders:bad", "{not json"))

	_, ok := c.Get(context.Background(), "bad")
	require.False(t, ok)
	require.False(t, mr.Exists("orders:bad"))
}

func TestRedisCacheMissWhenServerDown(t *testing.T) {
	c, mr := newCache(t)
	mr.Close()

	_, ok := c.Get(context.Background(), "o-1")
	require.False(t, ok)
}
