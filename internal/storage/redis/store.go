package redis

import (
	"context"
	"errors"
	"time"

	"github.com/IgorGrieder/link-redirector/internal/processing/links"
	goredis "github.com/redis/go-redis/v9"
)

// Store maps the key-value contract onto GET, SET with EX, and DEL.
type Store struct {
	client goredis.UniversalClient
}

func NewStore(client goredis.UniversalClient) *Store {
	return &Store{client: client}
}

func (s *Store) Get(ctx context.Context, key string) ([]byte, error) {
	raw, err := s.client.Get(ctx, key).Bytes()
	if errors.Is(err, goredis.Nil) {
		return nil, links.ErrKeyNotFound
	}
	if err != nil {
		return nil, err
	}
	return raw, nil
}

func (s *Store) Put(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	if ttl < 0 {
		ttl = 0
	}
	return s.client.Set(ctx, key, value, ttl).Err()
}

func (s *Store) Delete(ctx context.Context, key string) error {
	return s.client.Del(ctx, key).Err()
}
