package ratelimit

import (
	"context"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
)

func TestKeyedLimiterIsolatesKeys(t *testing.T) {
	l := NewKeyedLimiter(0.001, 2)
	ctx := context.Background()

	assert.True(t, l.Allow(ctx, "tech-1"))
	assert.True(t, l.Allow(ctx, "tech-1"))
	assert.False(t, l.Allow(ctx, "tech-1"))

	assert.True(t, l.Allow(ctx, "tech-2"))
}

func TestRedisLimiterFallsBackWhenRedisIsDown(t *testing.T) {
	client := redis.NewClient(&redis.Options{
		Addr:        "127.0.0.1:1",
		DialTimeout: 50 * time.Millisecond,
		MaxRetries:  -1,
	})
	t.Cleanup(func() { _ = client.Close() })

	l := NewRedisLimiter(client, 100, time.Second, NewKeyedLimiter(0.001, 1))
	ctx := context.Background()

	assert.True(t, l.Allow(ctx, "tech-1"))
	assert.False(t, l.Allow(ctx, "tech-1"))
}

func TestRedisLimiterBucketsByWindow(t *testing.T) {
	l := NewRedisLimiter(nil, 1, time.Minute, nil)
	base := time.Date(2024, 1, 1, 10, 0, 5, 0, time.UTC)

	l.now = func() time.Time { return base }
	first := l.bucket("tech-1")
	l.now = func() time.Time { return base.Add(30 * time.Second) }
	assert.Equal(t, first, l.bucket("tech-1"))
	l.now = func() time.Time { return base.Add(time.Minute) }
	assert.NotEqual(t, first, l.bucket("tech-1"))
	assert.NotEqual(t, first, l.bucket("tech-2"))
}
