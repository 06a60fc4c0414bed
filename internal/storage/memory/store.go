package memory

import (
	"context"
	"time"

	"github.com/IgorGrieder/link-redirector/internal/processing/links"
	"github.com/patrickmn/go-cache"
)

const cleanupInterval = time.Minute

// Store keeps records in process memory. Entries with a ttl are evicted by
// go-cache once it passes.
type Store struct {
	cache *cache.Cache
}

func NewStore() *Store {
	return &Store{cache: cache.New(cache.NoExpiration, cleanupInterval)}
}

func (s *Store) Get(_ context.Context, key string) ([]byte, error) {
	v, ok := s.cache.Get(key)
	if !ok {
		return nil, links.ErrKeyNotFound
	}
	raw := v.([]byte)
	return append([]byte(nil), raw...), nil
}

func (s *Store) Put(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if ttl <= 0 {
		ttl = cache.NoExpiration
	}
	s.cache.Set(key, append([]byte(nil), value...), ttl)
	return nil
}

func (s *Store) Delete(_ context.Context, key string) error {
	s.cache.Delete(key)
	return nil
}

func (s *Store) Len() int {
	return s.cache.ItemCount()
}
