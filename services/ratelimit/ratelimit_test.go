package ratelimit

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trezcool/campus/core"
)

func TestMemoryLimiter(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2026, 1, 5, 10, 0, 0, 0, time.UTC)
	l := NewMemoryLimiter()
	l.now = func() time.Time { return now }

	for i := 0; i < 3; i++ {
		ok, _, err := l.Allow(ctx, "chat:1", 3, time.Minute)
		require.NoError(t, err)
		assert.True(t, ok, "hit %d", i+1)
	}
	ok, retryAfter, err := l.Allow(ctx, "chat:1", 3, time.Minute)
	require.NoError(t, err)
	assert.False(t, ok)
	assert.Equal(t, time.Minute, retryAfter)

	// other keys have their own window
	ok, _, _ = l.Allow(ctx, "chat:2", 3, time.Minute)
	assert.True(t, ok)

	now = now.Add(40 * time.Second)
	ok, retryAfter, _ = l.Allow(ctx, "chat:1", 3, time.Minute)
	assert.False(t, ok)
	assert.Equal(t, 20*time.Second, retryAfter)

	now = now.Add(20 * time.Second)
	ok, _, _ = l.Allow(ctx, "chat:1", 3, time.Minute)
	assert.True(t, ok, "a new window starts once the previous one is over")
}

// TestRedisLimiter runs against the server at TEST_REDIS_ADDR, when set.
func TestRedisLimiter(t *testing.T) {
	addr := os.Getenv("TEST_REDIS_ADDR")
	if addr == "" {
		t.Skip("TEST_REDIS_ADDR not set")
	}
	ctx := context.Background()
	conf := core.NewTestConfig()
	conf.Redis.Addr = addr

	rdb, err := NewRedisClient(ctx, conf)
	require.NoError(t, err)
	defer rdb.Close()
	l := NewRedisLimiter(rdb)

	key := "test:" + uuid.New().String()
	defer rdb.Del(ctx, keyPrefix+key)

	for i := 0; i < 2; i++ {
		ok, _, err := l.Allow(ctx, key, 2, time.Minute)
		require.NoError(t, err)
		assert.True(t, ok)
	}
	ok, retryAfter, err := l.Allow(ctx, key, 2, time.Minute)
	require.NoError(t, err)
	assert.False(t, ok)
	assert.True(t, retryAfter > 0 && retryAfter <= time.Minute)
}
