package links

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// Repository adapts a KeyValueStore into typed record operations. It is the
// only component that reads or writes record bytes.
type Repository struct {
	kv       KeyValueStore
	prefix   string
	ttlHints bool
	ttlGrace time.Duration
	now      func() time.Time
}

// DefaultTTLGrace keeps expired records readable long enough for details to
// report them as expired before the store drops them.
const DefaultTTLGrace = 72 * time.Hour

type RepositoryOptions struct {
	KeyPrefix string
	// TTLHints lets the store drop entries on its own once a record has been
	// expired for longer than TTLGrace. Expiry is still decided on read.
	TTLHints bool
	// TTLGrace defaults to DefaultTTLGrace when zero.
	TTLGrace time.Duration
}

func NewRepository(kv KeyValueStore, opts RepositoryOptions) *Repository {
	if opts.TTLGrace <= 0 {
		opts.TTLGrace = DefaultTTLGrace
	}
	return &Repository{
		kv:       kv,
		prefix:   opts.KeyPrefix,
		ttlHints: opts.TTLHints,
		ttlGrace: opts.TTLGrace,
		now:      time.Now,
	}
}

func (r *Repository) Fetch(ctx context.Context, id string) (Record, error) {
	raw, err := r.kv.Get(ctx, r.key(id))
	if err != nil {
		if errors.Is(err, ErrKeyNotFound) {
			return Record{}, ErrNotFound
		}
		return Record{}, fmt.Errorf("%w: get %s: %w", ErrStorage, id, err)
	}
	return Decode(raw)
}

func (r *Repository) Store(ctx context.Context, id string, rec Record) error {
	raw, err := Encode(rec)
	if err != nil {
		return err
	}
	if err := r.kv.Put(ctx, r.key(id), raw, r.ttlFor(rec)); err != nil {
		return fmt.Errorf("%w: put %s: %w", ErrStorage, id, err)
	}
	return nil
}

func (r *Repository) Remove(ctx context.Context, id string) error {
	if err := r.kv.Delete(ctx, r.key(id)); err != nil {
		return fmt.Errorf("%w: delete %s: %w", ErrStorage, id, err)
	}
	return nil
}

// IncrementViews re-reads the record and bumps only its view counter. The
// write is skipped with ErrStaleRecord when the record was replaced after
// snapshot was taken, and with ErrExhausted when the cap is already reached.
// Concurrent increments may still be lost; the store offers no conditional
// write to prevent that.
func (r *Repository) IncrementViews(ctx context.Context, id string, snapshot Record) (Record, error) {
	current, err := r.Fetch(ctx, id)
	if err != nil {
		return Record{}, err
	}
	if current.Revision != snapshot.Revision {
		return current, ErrStaleRecord
	}
	if current.Exhausted() {
		return current, ErrExhausted
	}

	current.Views++
	viewedAt := r.now().UTC().Unix()
	current.LastViewedAt = &viewedAt

	if err := r.Store(ctx, id, current); err != nil {
		return Record{}, err
	}
	return current, nil
}

func (r *Repository) key(id string) string {
	return r.prefix + id
}

func (r *Repository) ttlFor(rec Record) time.Duration {
	if !r.ttlHints || rec.ExpiryTimestamp == nil {
		return 0
	}
	ttl := time.Unix(*rec.ExpiryTimestamp, 0).Add(r.ttlGrace).Sub(r.now())
	if ttl <= 0 {
		return 0
	}
	return ttl
}
