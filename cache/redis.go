package cache

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/voxmux/voxmux/types"
)

// RedisCache is a Redis-backed Cache for deployments where multiple
// router instances share results. Expiry rides on Redis TTLs, and the
// memory bound is redis-server's own maxmemory policy (configure an
// lru eviction policy there), so Sweep is a no-op.
type RedisCache struct {
	client *redis.Client
	prefix string
}

// RedisOption configures a RedisCache.
type RedisOption func(*RedisCache)

// WithRedisPrefix sets the key prefix. Default is "voxmux:cache".
func WithRedisPrefix(prefix string) RedisOption {
	return func(c *RedisCache) {
		c.prefix = prefix
	}
}

// NewRedisCache creates a Redis-backed cache on an existing client.
func NewRedisCache(client *redis.Client, opts ...RedisOption) *RedisCache {
	c := &RedisCache{
		client: client,
		prefix: "voxmux:cache",
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Lookup returns a live entry if present.
func (c *RedisCache) Lookup(ctx context.Context, capability types.Capability, fingerprint string) ([]byte, bool, error) {
	data, err := c.client.Get(ctx, c.key(capability, fingerprint)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, false, nil
		}
		return nil, false, fmt.Errorf("redis get failed: %w", err)
	}
	return data, true, nil
}

// Store inserts or overwrites an entry; SET resets the TTL clock.
func (c *RedisCache) Store(ctx context.Context, capability types.Capability, fingerprint string, payload []byte, ttl time.Duration) error {
	if err := c.client.Set(ctx, c.key(capability, fingerprint), payload, ttl).Err(); err != nil {
		return fmt.Errorf("redis set failed: %w", err)
	}
	return nil
}

// Invalidate removes an entry.
func (c *RedisCache) Invalidate(ctx context.Context, capability types.Capability, fingerprint string) error {
	if err := c.client.Del(ctx, c.key(capability, fingerprint)).Err(); err != nil {
		return fmt.Errorf("redis del failed: %w", err)
	}
	return nil
}

// Len counts entries under the cache prefix via SCAN.
func (c *RedisCache) Len(ctx context.Context) (int, error) {
	var (
		cursor uint64
		count  int
	)
	for {
		keys, next, err := c.client.Scan(ctx, cursor, c.prefix+":*", 256).Result()
		if err != nil {
			return 0, fmt.Errorf("redis scan failed: %w", err)
		}
		count += len(keys)
		cursor = next
		if cursor == 0 {
			return count, nil
		}
	}
}

// Sweep is a no-op; Redis expires entries natively.
func (c *RedisCache) Sweep(_ context.Context) int {
	return 0
}

func (c *RedisCache) key(capability types.Capability, fingerprint string) string {
	return fmt.Sprintf("%s:%s:%s", c.prefix, capability, fingerprint)
}

var _ Cache = (*RedisCache)(nil)
