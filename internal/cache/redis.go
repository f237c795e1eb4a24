package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"
)

// ResponseCache wraps Redis for caching computed API responses
// (recommendations, metrics) across processes. It is optional; a nil
// *ResponseCache is a no-op.
type ResponseCache struct {
	client *redis.Client
	logger *slog.Logger
	ttl    time.Duration
}

// NewResponseCache connects to Redis, failing fast when unreachable.
func NewResponseCache(ctx context.Context, addr, password string, ttl time.Duration) (*ResponseCache, error) {
	if addr == "" {
		return nil, fmt.Errorf("redis address missing")
	}
	if ttl <= 0 {
		ttl = 15 * time.Minute
	}

	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       0,
	})
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("connect to redis at %s: %w", addr, err)
	}

	logger := slog.Default().With("component", "redis")
	logger.Info("redis response cache connected", "addr", addr)

	return &ResponseCache{client: client, logger: logger, ttl: ttl}, nil
}

// Close closes the connection.
func (c *ResponseCache) Close() error {
	if c == nil {
		return nil
	}
	return c.client.Close()
}

// HealthCheck verifies connectivity.
func (c *ResponseCache) HealthCheck(ctx context.Context) error {
	if c == nil {
		return nil
	}
	return c.client.Ping(ctx).Err()
}

// Get unmarshals a cached value into target. A miss returns (false, nil).
func (c *ResponseCache) Get(ctx context.Context, key string, target any) (bool, error) {
	if c == nil {
		return false, nil
	}

	val, err := c.client.Get(ctx, key).Result()
	if err == redis.Nil {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("redis get %s: %w", key, err)
	}
	if err := json.Unmarshal([]byte(val), target); err != nil {
		return false, fmt.Errorf("unmarshal cached value %s: %w", key, err)
	}
	c.logger.Debug("cache hit", "key", key)
	return true, nil
}

// Set stores a value under the default TTL.
func (c *ResponseCache) Set(ctx context.Context, key string, value any) error {
	if c == nil {
		return nil
	}

	data, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("marshal value for %s: %w", key, err)
	}
	if err := c.client.Set(ctx, key, data, c.ttl).Err(); err != nil {
		return fmt.Errorf("redis set %s: %w", key, err)
	}
	return nil
}

// Flush drops all cached responses. Called on graph invalidation so
// stale recommendations never outlive the data that produced them.
func (c *ResponseCache) Flush(ctx context.Context) error {
	if c == nil {
		return nil
	}
	return c.client.FlushDB(ctx).Err()
}
