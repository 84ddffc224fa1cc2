package dashboard

import (
	"context"
	"encoding/json"
	"time"

	"github.com/careforward/aco-insights/pkg/common/logger"
	"github.com/redis/go-redis/v9"
)

const cachePrefix = "aco:dashboard:"

// Cache is a read-through response cache for the heavier aggregate
// payloads. A nil Cache (or nil client) is a no-op, so pure service tests
// never need Redis running.
type Cache struct {
	client *redis.Client
	ttl    time.Duration
}

func NewCache(client *redis.Client, ttl time.Duration) *Cache {
	return &Cache{client: client, ttl: ttl}
}

func (c *Cache) Get(ctx context.Context, key string, dest interface{}) bool {
	if c == nil || c.client == nil {
		return false
	}
	raw, err := c.client.Get(ctx, cachePrefix+key).Bytes()
	if err != nil {
		return false
	}
	if err := json.Unmarshal(raw, dest); err != nil {
		logger.Log.WithError(err).WithField("key", key).Warn("Discarding unreadable cache entry")
		c.client.Del(ctx, cachePrefix+key)
		return false
	}
	return true
}

func (c *Cache) Set(ctx context.Context, key string, value interface{}) {
	if c == nil || c.client == nil {
		return
	}
	raw, err := json.Marshal(value)
	if err != nil {
		return
	}
	if err := c.client.Set(ctx, cachePrefix+key, raw, c.ttl).Err(); err != nil {
		logger.Log.WithError(err).WithField("key", key).Warn("Failed to cache response")
	}
}

// Invalidate drops every cached dashboard payload. Called when the store
// signals new data.
func (c *Cache) Invalidate(ctx context.Context) error {
	if c == nil || c.client == nil {
		return nil
	}
	iter := c.client.Scan(ctx, 0, cachePrefix+"*", 0).Iterator()
	var keys []string
	for iter.Next(ctx) {
		keys = append(keys, iter.Val())
	}
	if err := iter.Err(); err != nil {
		return err
	}
	if len(keys) == 0 {
		return nil
	}
	return c.client.Del(ctx, keys...).Err()
}
