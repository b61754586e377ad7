package ratelimit

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
	"golang.org/x/time/rate"
)

type Limiter interface {
	Allow(ctx context.Context, key string) bool
}

// KeyedLimiter keeps one token bucket per key (actor or peer address).
type KeyedLimiter struct {
	mu       sync.Mutex
	limiters map[string]*rate.Limiter
	rate     rate.Limit
	burst    int
}

func NewKeyedLimiter(rps float64, burst int) *KeyedLimiter {
	return &KeyedLimiter{
		limiters: make(map[string]*rate.Limiter),
		rate:     rate.Limit(rps),
		burst:    burst,
	}
}

func (l *KeyedLimiter) get(key string) *rate.Limiter {
	l.mu.Lock()
	defer l.mu.Unlock()

	if limiter, ok := l.limiters[key]; ok {
		return limiter
	}
	limiter := rate.NewLimiter(l.rate, l.burst)
	l.limiters[key] = limiter
	return limiter
}

func (l *KeyedLimiter) Allow(_ context.Context, key string) bool {
	return l.get(key).Allow()
}

// RedisLimiter counts requests per key in fixed windows shared by every
// replica. When Redis cannot be reached the decision falls back to a local
// limiter.
type RedisLimiter struct {
	client   *redis.Client
	limit    int64
	window   time.Duration
	fallback Limiter
	now      func() time.Time
}

func NewRedisLimiter(client *redis.Client, limit int, window time.Duration, fallback Limiter) *RedisLimiter {
	return &RedisLimiter{
		client:   client,
		limit:    int64(limit),
		window:   window,
		fallback: fallback,
		now:      time.Now,
	}
}

func (l *RedisLimiter) bucket(key string) string {
	return fmt.Sprintf("ratelimit:%s:%d", key, l.now().UnixNano()/int64(l.window))
}

func (l *RedisLimiter) Allow(ctx context.Context, key string) bool {
	bucket := l.bucket(key)

	pipe := l.client.TxPipeline()
	count := pipe.Incr(ctx, bucket)
	pipe.Expire(ctx, bucket, l.window)
	if _, err := pipe.Exec(ctx); err != nil {
		return l.fallback.Allow(ctx, key)
	}
	return count.Val() <= l.limit
}
