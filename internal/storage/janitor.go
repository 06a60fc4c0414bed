package storage

import (
	"context"
	"sync"
	"time"

	"github.com/IgorGrieder/link-redirector/internal/infrastructure/logger"
	"go.uber.org/zap"
)

// Purger is implemented by SQL backends that cannot expire rows on their own.
type Purger interface {
	PurgeExpired(ctx context.Context) (int64, error)
}

type JanitorOptions struct {
	Interval time.Duration
	Timeout  time.Duration
}

// Janitor periodically removes entries whose ttl hint has passed. Reads never
// depend on it; it only bounds table growth.
type Janitor struct {
	purger   Purger
	interval time.Duration
	timeout  time.Duration

	stopOnce sync.Once
	stopCh   chan struct{}
	doneCh   chan struct{}
}

func StartJanitor(p Purger, opts JanitorOptions) *Janitor {
	const (
		defaultInterval = 5 * time.Minute
		defaultTimeout  = 30 * time.Second
	)
	if opts.Interval <= 0 {
		opts.Interval = defaultInterval
	}
	if opts.Timeout <= 0 {
		opts.Timeout = defaultTimeout
	}

	j := &Janitor{
		purger:   p,
		interval: opts.Interval,
		timeout:  opts.Timeout,
		stopCh:   make(chan struct{}),
		doneCh:   make(chan struct{}),
	}
	go j.loop()
	return j
}

func (j *Janitor) Shutdown(ctx context.Context) error {
	j.stopOnce.Do(func() { close(j.stopCh) })

	select {
	case <-j.doneCh:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (j *Janitor) loop() {
	defer close(j.doneCh)

	ticker := time.NewTicker(j.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			j.purge()
		case <-j.stopCh:
			return
		}
	}
}

func (j *Janitor) purge() {
	ctx, cancel := context.WithTimeout(context.Background(), j.timeout)
	defer cancel()

	n, err := j.purger.PurgeExpired(ctx)
	if err != nil {
		logger.Warn("failed to purge expired link records", zap.Error(err))
		return
	}
	if n > 0 {
		logger.Debug("purged expired link records", zap.Int64("count", n))
	}
}
