package cache

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"expertene/internal/config"
)

func newTestCache(t *testing.T, maxKeys int) Cache {
	t.Helper()
	c := NewMemoryCache(Config{DefaultTTL: time.Minute, MaxKeys: maxKeys}, zap.NewNop())
	t.Cleanup(func() { c.Close() })
	return c
}

func TestMemoryCacheGetSet(t *testing.T) {
	ctx := context.Background()
	c := newTestCache(t, 10)

	require.NoError(t, c.Set(ctx, "a", []byte("1"), 0))
	got, ok := c.Get(ctx, "a")
	require.True(t, ok)
	assert.Equal(t, []byte("1"), got)

	got[0] = 'x'
	again, _ := c.Get(ctx, "a")
	assert.Equal(t, []byte("1"), again, "returned slices must not alias storage")

	require.NoError(t, c.Delete(ctx, "a"))
	assert.False(t, c.Exists(ctx, "a"))
}

func TestMemoryCacheExpiry(t *testing.T) {
	ctx := context.Background()
	c := newTestCache(t, 10)

	require.NoError(t, c.Set(ctx, "short", []byte("v"), time.Millisecond))
	time.Sleep(5 * time.Millisecond)
	_, ok := c.Get(ctx, "short")
	assert.False(t, ok)
}

func TestMemoryCacheEvictsLeastRecentlyUsed(t *testing.T) {
	ctx := context.Background()
	c := newTestCache(t, 2)

	require.NoError(t, c.Set(ctx, "a", []byte("1"), 0))
	time.Sleep(time.Millisecond)
	require.NoError(t, c.Set(ctx, "b", []byte("2"), 0))
	time.Sleep(time.Millisecond)
	c.Get(ctx, "a")
	require.NoError(t, c.Set(ctx, "c", []byte("3"), 0))

	assert.True(t, c.Exists(ctx, "a"))
	assert.False(t, c.Exists(ctx, "b"))
	assert.True(t, c.Exists(ctx, "c"))
}

func TestMemoryCacheDeletePatternAndIncrement(t *testing.T) {
	ctx := context.Background()
	c := newTestCache(t, 10)

	for _, k := range []string{"feed:1", "feed:2", "session:1"} {
		require.NoError(t, c.Set(ctx, k, []byte("x"), 0))
	}
	require.NoError(t, c.DeletePattern(ctx, "feed:*"))
	assert.False(t, c.Exists(ctx, "feed:1"))
	assert.True(t, c.Exists(ctx, "session:1"))

	n, err := c.Increment(ctx, "hits", 2)
	require.NoError(t, err)
	assert.EqualValues(t, 2, n)
	n, err = c.Increment(ctx, "hits", 3)
	require.NoError(t, err)
	assert.EqualValues(t, 5, n)

	_, err = c.Increment(ctx, "session:1", 1)
	assert.Error(t, err)

	assert.NoError(t, c.Health(ctx))
}

func TestRemember(t *testing.T) {
	ctx := context.Background()
	c := newTestCache(t, 10)
	calls := 0
	load := func(context.Context) ([]int, error) {
		calls++
		return []int{1, 2, 3}, nil
	}

	first, err := Remember(ctx, c, zap.NewNop(), "nums", time.Minute, load)
	require.NoError(t, err)
	second, err := Remember(ctx, c, zap.NewNop(), "nums", time.Minute, load)
	require.NoError(t, err)

	assert.Equal(t, []int{1, 2, 3}, first)
	assert.Equal(t, first, second)
	assert.Equal(t, 1, calls)

	_, err = Remember(ctx, c, zap.NewNop(), "broken", time.Minute, func(context.Context) (int, error) {
		return 0, errors.New("down")
	})
	assert.Error(t, err)
	assert.False(t, c.Exists(ctx, "broken"))
}

func TestNew_MemoryWithoutRedis(t *testing.T) {
	c, client, err := New(context.Background(), config.RedisConfig{}, nil)
	require.NoError(t, err)
	t.Cleanup(func() { c.Close() })

	assert.Nil(t, client)
	require.NoError(t, c.Set(context.Background(), "k", []byte("v"), time.Minute))
	got, ok := c.Get(context.Background(), "k")
	assert.True(t, ok)
	assert.Equal(t, "v", string(got))
}
