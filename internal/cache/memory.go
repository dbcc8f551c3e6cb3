package cache

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"
)

type memoryCache struct {
	mu         sync.Mutex
	items      map[string]*cacheItem
	maxKeys    int
	defaultTTL time.Duration
	logger     *zap.Logger
	stats      Stats
	startTime  time.Time
	stopOnce   sync.Once
	stopCh     chan struct{}
}

type cacheItem struct {
	value      []byte
	expiresAt  time.Time
	accessedAt time.Time
}

func (i *cacheItem) expired(now time.Time) bool {
	return !i.expiresAt.IsZero() && now.After(i.expiresAt)
}

// NewMemoryCache returns a process-local cache with LRU eviction once
// MaxKeys is reached.
func NewMemoryCache(cfg Config, logger *zap.Logger) Cache {
	if cfg.MaxKeys <= 0 {
		cfg.MaxKeys = DefaultConfig().MaxKeys
	}
	c := &memoryCache{
		items:      make(map[string]*cacheItem),
		maxKeys:    cfg.MaxKeys,
		defaultTTL: cfg.DefaultTTL,
		logger:     logger,
		startTime:  time.Now(),
		stopCh:     make(chan struct{}),
	}
	if cfg.CleanupInterval > 0 {
		go c.cleanup(cfg.CleanupInterval)
	}
	return c
}

func (c *memoryCache) Get(_ context.Context, key string) ([]byte, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := time.Now()
	item, ok := c.items[key]
	if !ok || item.expired(now) {
		if ok {
			delete(c.items, key)
		}
		c.stats.Misses++
		return nil, false
	}
	item.accessedAt = now
	c.stats.Hits++

	out := make([]byte, len(item.value))
	copy(out, item.value)
	return out, true
}

func (c *memoryCache) Set(_ context.Context, key string, value []byte, ttl time.Duration) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if _, exists := c.items[key]; !exists && len(c.items) >= c.maxKeys {
		c.evictLRU()
	}
	if ttl <= 0 {
		ttl = c.defaultTTL
	}

	now := time.Now()
	item := &cacheItem{value: append([]byte(nil), value...), accessedAt: now}
	if ttl > 0 {
		item.expiresAt = now.Add(ttl)
	}
	c.items[key] = item
	c.stats.Sets++
	return nil
}

func (c *memoryCache) Delete(_ context.Context, key string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if _, ok := c.items[key]; ok {
		delete(c.items, key)
		c.stats.Deletes++
	}
	return nil
}

func (c *memoryCache) Exists(ctx context.Context, key string) bool {
	_, ok := c.Get(ctx, key)
	return ok
}

func (c *memoryCache) DeletePattern(_ context.Context, pattern string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	for key := range c.items {
		if matchPattern(key, pattern) {
			delete(c.items, key)
			c.stats.Deletes++
		}
	}
	return nil
}

func (c *memoryCache) Increment(_ context.Context, key string, delta int64) (int64, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := time.Now()
	item, ok := c.items[key]
	if !ok || item.expired(now) {
		c.items[key] = &cacheItem{value: []byte(strconv.FormatInt(delta, 10)), accessedAt: now}
		return delta, nil
	}

	n, err := strconv.ParseInt(string(item.value), 10, 64)
	if err != nil {
		return 0, fmt.Errorf("value at %s is not numeric", key)
	}
	n += delta
	item.value = []byte(strconv.FormatInt(n, 10))
	item.accessedAt = now
	return n, nil
}

func (c *memoryCache) Stats(_ context.Context) (*Stats, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	s := c.stats
	s.Keys = int64(len(c.items))
	s.Uptime = time.Since(c.startTime)
	if total := s.Hits + s.Misses; total > 0 {
		s.HitRatio = float64(s.Hits) / float64(total)
	}
	return &s, nil
}

func (c *memoryCache) Health(ctx context.Context) error {
	const key = "__health_check__"
	want := strconv.FormatInt(time.Now().UnixNano(), 10)
	if err := c.Set(ctx, key, []byte(want), time.Minute); err != nil {
		return fmt.Errorf("cache health check failed: %w", err)
	}
	got, ok := c.Get(ctx, key)
	if !ok || string(got) != want {
		return fmt.Errorf("cache health check failed: value mismatch")
	}
	return c.Delete(ctx, key)
}

func (c *memoryCache) Close() error {
	c.stopOnce.Do(func() { close(c.stopCh) })
	return nil
}

func (c *memoryCache) cleanup(interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			c.cleanupExpired()
		case <-c.stopCh:
			return
		}
	}
}

func (c *memoryCache) cleanupExpired() {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := time.Now()
	removed := 0
	for key, item := range c.items {
		if item.expired(now) {
			delete(c.items, key)
			removed++
		}
	}
	if removed > 0 {
		c.logger.Debug("Cleaned up expired cache items",
			zap.Int("expired_count", removed),
			zap.Int("remaining_count", len(c.items)),
		)
	}
}

func (c *memoryCache) evictLRU() {
	var oldestKey string
	var oldest time.Time
	for key, item := range c.items {
		if oldestKey == "" || item.accessedAt.Before(oldest) {
			oldestKey, oldest = key, item.accessedAt
		}
	}
	if oldestKey != "" {
		delete(c.items, oldestKey)
	}
}

// matchPattern supports a single leading or trailing '*' wildcard.
func matchPattern(str, pattern string) bool {
	switch {
	case pattern == "*":
		return true
	case strings.HasSuffix(pattern, "*"):
		return strings.HasPrefix(str, strings.TrimSuffix(pattern, "*"))
	case strings.HasPrefix(pattern, "*"):
		return strings.HasSuffix(str, strings.TrimPrefix(pattern, "*"))
	default:
		return str == pattern
	}
}
