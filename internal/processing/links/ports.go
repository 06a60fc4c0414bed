package links

import (
	"context"
	"errors"
	"time"

	"github.com/IgorGrieder/link-redirector/internal/events"
)

var (
	ErrNotFound        = errors.New("link not found")
	ErrExpired         = errors.New("link expired")
	ErrExhausted       = errors.New("link view limit reached")
	ErrDisabled        = errors.New("link disabled")
	ErrConflict        = errors.New("link already exists")
	ErrInvalidInput    = errors.New("invalid input")
	ErrMalformedRecord = errors.New("malformed link record")
	ErrStorage         = errors.New("link storage failure")
	ErrStaleRecord     = errors.New("link record changed since read")

	// ErrKeyNotFound is returned by KeyValueStore implementations for absent keys.
	ErrKeyNotFound = errors.New("key not found")
)

// KeyValueStore is the external storage capability. Implementations are not
// expected to offer transactions or compare-and-swap.
type KeyValueStore interface {
	Get(ctx context.Context, key string) ([]byte, error)
	// Put stores value under key. A ttl <= 0 means no expiry hint.
	Put(ctx context.Context, key string, value []byte, ttl time.Duration) error
	Delete(ctx context.Context, key string) error
}

type LinkRepository interface {
	Fetch(ctx context.Context, id string) (Record, error)
	Store(ctx context.Context, id string, rec Record) error
	Remove(ctx context.Context, id string) error
	IncrementViews(ctx context.Context, id string, snapshot Record) (Record, error)
}

type EventPublisher interface {
	PublishVisited(ctx context.Context, ev events.LinkVisited) error
	PublishChanged(ctx context.Context, ev events.LinkChanged) error
}

// ValidationError describes a rejected mutation payload field.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return e.Field + ": " + e.Reason
}

func (e *ValidationError) Is(target error) bool {
	return target == ErrInvalidInput
}
