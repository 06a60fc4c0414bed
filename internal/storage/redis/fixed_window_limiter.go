package redis

import (
	"context"
	"fmt"
	"time"

	goredis "github.com/redis/go-redis/v9"
)

// FixedWindowLimiter counts hits per key in fixed windows shared by every
// instance talking to the same Redis.
type FixedWindowLimiter struct {
	client goredis.UniversalClient
	prefix string
	window time.Duration
	now    func() time.Time
}

func NewFixedWindowLimiter(client goredis.UniversalClient, prefix string, window time.Duration) *FixedWindowLimiter {
	if prefix == "" {
		prefix = "rate"
	}
	if window < time.Second {
		window = time.Minute
	}
	return &FixedWindowLimiter{
		client: client,
		prefix: prefix,
		window: window,
		now:    time.Now,
	}
}

// Incr increments the counter for (key, current window) and returns the current count.
func (l *FixedWindowLimiter) Incr(ctx context.Context, key string) (int64, error) {
	if key == "" {
		key = "unknown"
	}

	windowSeconds := int64(l.window.Seconds())
	bucket := l.now().UTC().Unix() / windowSeconds
	redisKey := fmt.Sprintf("%s:%s:%d", l.prefix, key, bucket)

	pipe := l.client.TxPipeline()
	incr := pipe.Incr(ctx, redisKey)
	// The bucket is part of the key, so the TTL only cleans up old windows.
	pipe.Expire(ctx, redisKey, 2*l.window)
	if _, err := pipe.Exec(ctx); err != nil {
		return 0, err
	}
	return incr.Val(), nil
}
