package cache

import (
	"context"
	"errors"
	"time"

	"github.com/goccy/go-json"

	"github.com/redis/go-redis/v9"
)

// RedisCache stores JSON values in redis under a key prefix.
type RedisCache struct {
	client *redis.Client
	prefix string
}

// NewRedisCache creates a redis-backed cache. prefix namespaces every key.
func NewRedisCache(client *redis.Client, prefix string) *RedisCache {
	return &RedisCache{client: client, prefix: prefix}
}

func (c *RedisCache) key(k string) string {
	if c.prefix == "" {
		return k
	}
	return c.prefix + ":" + k
}

// GetJSON decodes the cached value into dest. The bool is false on a miss.
func (c *RedisCache) GetJSON(ctx context.Context, key string, dest any) (bool, error) {
	data, err := c.client.Get(ctx, c.key(key)).Bytes()
	if errors.Is(err, redis.Nil) {
		return false, nil
	}
	if err != nil {
		return false, err
	}

	if err := json.Unmarshal(data, dest); err != nil {
		return false, err
	}

	return true, nil
}

// SetJSON stores value as JSON with the given ttl.
func (c *RedisCache) SetJSON(ctx context.Context, key string, value any, ttl time.Duration) error {
	data, err := json.Marshal(value)
	if err != nil {
		return err
	}
	return c.client.Set(ctx, c.key(key), data, ttl).Err()
}

// Delete removes a key.
func (c *RedisCache) Delete(ctx context.Context, key string) error {
	return c.client.Del(ctx, c.key(key)).Err()
}

// TTL returns the remaining ttl of a key.
func (c *RedisCache) TTL(ctx context.Context, key string) (time.Duration, error) {
	return c.client.TTL(ctx, c.key(key)).Result()
}
