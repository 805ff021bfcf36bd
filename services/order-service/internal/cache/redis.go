// Package cache keeps recently read orders in Redis.
package cache

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/md-rashed-zaman/ordersaga/services/order-service/internal/orders"
)

const DefaultTTL = 10 * time.Minute

// RedisCache is best effort: Redis failures are logged and reads fall back
// to the database.
type RedisCache struct {
	rdb    redis.Cmdable
	ttl    time.Duration
	logger *slog.Logger
}

func NewRedisCache(rdb redis.Cmdable, ttl time.Duration, logger *slog.Logger) *RedisCache {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &RedisCache{rdb: rdb, ttl: ttl, logger: logger}
}

func key(id string) string {
	return "orders:" + id
}

func (c *RedisCache) Get(ctx context.Context, id string) (orders.Order, bool) {
	raw, err := c.rdb.Get(ctx, key(id)).Bytes()
	if err != nil {
		if !errors.Is(err, redis.Nil) {
			c.logger.WarnContext(ctx, "order cache read failed", "err", err, "order_id", id)
		}
		return orders.Order{}, false
	}
	var o orders.Order
	if err := json.Unmarshal(raw, &o); err != nil {
		c.Invalidate(ctx, id)
		return orders.Order{}, false
	}
	return o, true
}

func (c *RedisCache) Set(ctx context.Context, o orders.Order) {
	raw, err := json.Marshal(o)
	if err != nil {
		return
	}
	if err := c.rdb.Set(ctx, key(o.ID), raw, c.ttl).Err(); err != nil {
		c.logger.WarnContext(ctx, "order cache write failed", "err", err, "order_id", o.ID)
	}
}

func (c *RedisCache) Invalidate(ctx context.Context, id string) {
	if err := c.rdb.Del(ctx, key(id)).Err(); err != nil {
		c.logger.WarnContext(ctx, "order cache invalidate failed", "err", err, "order_id", id)
	}
}

var _ orders.Cache = (*RedisCache)(nil)
