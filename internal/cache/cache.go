// Package cache stores editing sessions, revoked tokens and feed results
// either in process memory or in Redis.
package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"expertene/internal/config"
)

// Cache stores opaque byte values with a TTL. Both implementations see the
// same bytes, so callers encode once with SetJSON and decode with GetJSON.
type Cache interface {
	Get(ctx context.Context, key string) ([]byte, bool)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
	Delete(ctx context.Context, key string) error
	Exists(ctx context.Context, key string) bool
	DeletePattern(ctx context.Context, pattern string) error
	Increment(ctx context.Context, key string, delta int64) (int64, error)
	Stats(ctx context.Context) (*Stats, error)
	Health(ctx context.Context) error
	Close() error
}

// Stats reports cache usage.
type Stats struct {
	Hits     int64         `json:"hits"`
	Misses   int64         `json:"misses"`
	Sets     int64         `json:"sets"`
	Deletes  int64         `json:"deletes"`
	Keys     int64         `json:"keys"`
	HitRatio float64       `json:"hit_ratio"`
	Uptime   time.Duration `json:"uptime,omitempty"`
}

// Config tunes the in-memory implementation.
type Config struct {
	DefaultTTL      time.Duration
	MaxKeys         int
	CleanupInterval time.Duration
}

// DefaultConfig returns the in-memory defaults.
func DefaultConfig() Config {
	return Config{
		DefaultTTL:      15 * time.Minute,
		MaxKeys:         10000,
		CleanupInterval: 5 * time.Minute,
	}
}

// New returns a Redis cache when redisCfg is enabled and a memory cache
// otherwise. The Redis client is returned so the change feed can share its
// connection pool; it is nil in memory mode.
func New(ctx context.Context, redisCfg config.RedisConfig, logger *zap.Logger) (Cache, *redis.Client, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	if !redisCfg.Enabled() {
		logger.Info("Using in-memory cache")
		return NewMemoryCache(DefaultConfig(), logger), nil, nil
	}
	client, err := NewRedisClient(ctx, redisCfg, logger)
	if err != nil {
		return nil, nil, err
	}
	return NewRedisCache(client, redisCfg.KeyPrefix, DefaultConfig().DefaultTTL, logger), client, nil
}

// GetJSON decodes the value under key into T.
func GetJSON[T any](ctx context.Context, c Cache, key string) (T, bool) {
	var out T
	raw, ok := c.Get(ctx, key)
	if !ok {
		return out, false
	}
	if err := json.Unmarshal(raw, &out); err != nil {
		return out, false
	}
	return out, true
}

// SetJSON encodes value and stores it under key.
func SetJSON(ctx context.Context, c Cache, key string, value any, ttl time.Duration) error {
	data, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("failed to marshal cache value: %w", err)
	}
	return c.Set(ctx, key, data, ttl)
}

// Remember returns the cached value under key, or computes it with fn and
// caches the result. A failing cache write is logged and ignored.
func Remember[T any](ctx context.Context, c Cache, logger *zap.Logger, key string, ttl time.Duration, fn func(context.Context) (T, error)) (T, error) {
	if v, ok := GetJSON[T](ctx, c, key); ok {
		return v, nil
	}

	v, err := fn(ctx)
	if err != nil {
		return v, err
	}
	if err := SetJSON(ctx, c, key, v, ttl); err != nil {
		logger.Warn("Failed to cache result", zap.String("key", key), zap.Error(err))
	}
	return v, nil
}
