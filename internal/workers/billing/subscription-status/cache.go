// internal/workers/billing/subscription-status/cache.go
package subscriptionstatus

import (
	"context"
	"encoding/json"
	stderrors "errors"
	"time"

	"entitlement-service/internal/common/errors"

	"github.com/redis/go-redis/v9"
)

const cacheKeyPrefix = "subscription-status:"

// Cache stores status responses per user in Redis.
type Cache struct {
	client *redis.Client
	ttl    time.Duration
}

func NewCache(client *redis.Client, ttl time.Duration) *Cache {
	return &Cache{client: client, ttl: ttl}
}

func cacheKey(userID string) string {
	return cacheKeyPrefix + userID
}

// Get reports a miss as (nil, false, nil).
func (c *Cache) Get(ctx context.Context, userID string) (*Output, bool, error) {
	val, err := c.client.Get(ctx, cacheKey(userID)).Result()
	if err != nil {
		if stderrors.Is(err, redis.Nil) {
			return nil, false, nil
		}
		return nil, false, errors.NewCacheError("get", err)
	}

	var out Output
	if err := json.Unmarshal([]byte(val), &out); err != nil {
		return nil, false, errors.NewCacheError("decode", err)
	}
	return &out, true, nil
}

func (c *Cache) Set(ctx context.Context, userID string, out *Output) error {
	if c.ttl <= 0 {
		return nil
	}
	data, err := json.Marshal(out)
	if err != nil {
		return errors.NewCacheError("encode", err)
	}
	if err := c.client.Set(ctx, cacheKey(userID), data, c.ttl).Err(); err != nil {
		return errors.NewCacheError("set", err)
	}
	return nil
}

// Invalidate drops the cached status for userID.
func (c *Cache) Invalidate(ctx context.Context, userID string) error {
	if err := c.client.Del(ctx, cacheKey(userID)).Err(); err != nil {
		return errors.NewCacheError("del", err)
	}
	return nil
}
