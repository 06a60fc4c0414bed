package storage

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/IgorGrieder/link-redirector/internal/infrastructure/logger"
	"github.com/IgorGrieder/link-redirector/internal/processing/links"
	"github.com/IgorGrieder/link-redirector/pkg/breaker"
	"go.uber.org/zap"
)

type BreakerOptions struct {
	Backend     string
	MaxFailures int
	Cooldown    time.Duration
	// Timeout bounds every call to the wrapped store. Zero leaves the
	// caller's deadline alone.
	Timeout time.Duration
}

// BreakerStore fails fast while the wrapped store keeps erroring. Absent keys
// are a normal answer and do not count as failures, nor do calls the caller
// canceled itself.
type BreakerStore struct {
	next    links.KeyValueStore
	breaker *breaker.Breaker
	timeout time.Duration
}

func NewBreakerStore(next links.KeyValueStore, opts BreakerOptions) *BreakerStore {
	b := breaker.New(opts.MaxFailures, opts.Cooldown, breaker.WithStateChange(func(from, to breaker.State) {
		logger.Warn("store circuit breaker transition",
			zap.String("backend", opts.Backend),
			zap.String("from", from.String()),
			zap.String("to", to.String()),
		)
	}))
	return &BreakerStore{next: next, breaker: b, timeout: opts.Timeout}
}

func (s *BreakerStore) Get(ctx context.Context, key string) ([]byte, error) {
	var value []byte
	err := s.call(ctx, func(ctx context.Context) error {
		var err error
		value, err = s.next.Get(ctx, key)
		return err
	})
	return value, err
}

func (s *BreakerStore) Put(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	return s.call(ctx, func(ctx context.Context) error {
		return s.next.Put(ctx, key, value, ttl)
	})
}

func (s *BreakerStore) Delete(ctx context.Context, key string) error {
	return s.call(ctx, func(ctx context.Context) error {
		return s.next.Delete(ctx, key)
	})
}

func (s *BreakerStore) call(ctx context.Context, fn func(context.Context) error) error {
	if err := s.breaker.Allow(); err != nil {
		return fmt.Errorf("store unavailable: %w", err)
	}

	callCtx := ctx
	if s.timeout > 0 {
		var cancel context.CancelFunc
		callCtx, cancel = context.WithTimeout(ctx, s.timeout)
		defer cancel()
	}

	err := fn(callCtx)
	switch {
	case err == nil, errors.Is(err, links.ErrKeyNotFound):
		s.breaker.OnSuccess()
	case ctx.Err() != nil:
		// The caller gave up before the store answered.
		s.breaker.OnAbort()
	default:
		s.breaker.OnFailure()
	}
	return err
}
