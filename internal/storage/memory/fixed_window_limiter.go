package memory

import (
	"context"
	"fmt"
	"time"

	"github.com/patrickmn/go-cache"
)

// FixedWindowLimiter is the single-instance counterpart of the Redis limiter.
type FixedWindowLimiter struct {
	counters *cache.Cache
	window   time.Duration
	now      func() time.Time
}

func NewFixedWindowLimiter(window time.Duration) *FixedWindowLimiter {
	if window < time.Second {
		window = time.Minute
	}
	return &FixedWindowLimiter{
		counters: cache.New(2*window, window),
		window:   window,
		now:      time.Now,
	}
}

func (l *FixedWindowLimiter) Incr(_ context.Context, key string) (int64, error) {
	if key == "" {
		key = "unknown"
	}

	bucket := l.now().UTC().Unix() / int64(l.window.Seconds())
	counterKey := fmt.Sprintf("%s:%d", key, bucket)

	// Add fails when the counter already exists, which is fine.
	_ = l.counters.Add(counterKey, int64(0), 2*l.window)
	return l.counters.IncrementInt64(counterKey, 1)
}
