package cache

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisPeriodCache implements PeriodStatusCache on Redis. Suitable for
// distributed deployments where multiple instances share the gate state.
type RedisPeriodCache struct {
	client    *redis.Client
	keyPrefix string
}

// RedisConfig holds Redis connection configuration
type RedisConfig struct {
	Host     string
	Port     int
	Password string
	DB       int
}

// NewRedisPeriodCache creates a period cache with its own Redis client.
// The connection is verified before returning.
func NewRedisPeriodCache(cfg RedisConfig) (*RedisPeriodCache, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     fmt.Sprintf("%s:%d", cfg.Host, cfg.Port),
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}

	return &RedisPeriodCache{
		client:    client,
		keyPrefix: "settlement:period:",
	}, nil
}

// NewRedisPeriodCacheWithClient creates a cache sharing an existing
// client. Useful for testing or when one client serves several components.
func NewRedisPeriodCacheWithClient(client *redis.Client, keyPrefix string) *RedisPeriodCache {
	if keyPrefix == "" {
		keyPrefix = "settlement:period:"
	}
	return &RedisPeriodCache{
		client:    client,
		keyPrefix: keyPrefix,
	}
}

// Get returns the cached status, or "" on a miss
func (c *RedisPeriodCache) Get(ctx context.Context, key string) (PeriodStatus, error) {
	val, err := c.client.Get(ctx, c.keyPrefix+key).Result()
	if errors.Is(err, redis.Nil) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("failed to read period cache: %w", err)
	}
	return PeriodStatus(val), nil
}

// Set stores the status with a TTL
func (c *RedisPeriodCache) Set(ctx context.Context, key string, status PeriodStatus, ttl time.Duration) error {
	if err := c.client.Set(ctx, c.keyPrefix+key, string(status), ttl).Err(); err != nil {
		return fmt.Errorf("failed to write period cache: %w", err)
	}
	return nil
}

// Invalidate drops one cached answer, typically after a period is closed
// or reopened.
func (c *RedisPeriodCache) Invalidate(ctx context.Context, key string) error {
	if err := c.client.Del(ctx, c.keyPrefix+key).Err(); err != nil {
		return fmt.Errorf("failed to invalidate period cache: %w", err)
	}
	return nil
}

// Close closes the underlying Redis client
func (c *RedisPeriodCache) Close() error {
	return c.client.Close()
}
