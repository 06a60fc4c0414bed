package postgres

import (
	"context"
	"errors"
	"time"

	"github.com/IgorGrieder/link-redirector/internal/infrastructure/db"
	"github.com/IgorGrieder/link-redirector/internal/processing/links"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"
)

const schema = `
CREATE TABLE IF NOT EXISTS link_records (
	key        TEXT PRIMARY KEY,
	value      BYTEA NOT NULL,
	updated_at TIMESTAMPTZ NOT NULL DEFAULT now(),
	expires_at TIMESTAMPTZ
);
CREATE INDEX IF NOT EXISTS link_records_expires_at_idx
	ON link_records (expires_at) WHERE expires_at IS NOT NULL;
`

const (
	getQuery = `
SELECT value FROM link_records
WHERE key = $1 AND (expires_at IS NULL OR expires_at > now())`

	putQuery = `
INSERT INTO link_records (key, value, updated_at, expires_at)
VALUES ($1, $2, now(), $3)
ON CONFLICT (key) DO UPDATE
SET value = EXCLUDED.value, updated_at = EXCLUDED.updated_at, expires_at = EXCLUDED.expires_at`

	deleteQuery = `DELETE FROM link_records WHERE key = $1`

	purgeQuery = `DELETE FROM link_records WHERE expires_at IS NOT NULL AND expires_at <= now()`
)

type Store struct {
	pool *pgxpool.Pool
	now  func() time.Time
}

func NewStore(ctx context.Context, p *db.Postgres) (*Store, error) {
	if p == nil || p.Pool == nil {
		return nil, errors.New("postgres pool is nil")
	}
	if _, err := p.Pool.Exec(ctx, schema); err != nil {
		return nil, err
	}
	return &Store{pool: p.Pool, now: time.Now}, nil
}

func (s *Store) Get(ctx context.Context, key string) ([]byte, error) {
	var value []byte
	err := s.pool.QueryRow(ctx, getQuery, key).Scan(&value)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, links.ErrKeyNotFound
	}
	if err != nil {
		return nil, err
	}
	return value, nil
}

func (s *Store) Put(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	_, err := s.pool.Exec(ctx, putQuery, key, value, s.expiresAt(ttl))
	return err
}

func (s *Store) Delete(ctx context.Context, key string) error {
	_, err := s.pool.Exec(ctx, deleteQuery, key)
	return err
}

// PurgeExpired drops rows whose ttl hint has passed and returns how many went.
func (s *Store) PurgeExpired(ctx context.Context) (int64, error) {
	tag, err := s.pool.Exec(ctx, purgeQuery)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}

func (s *Store) expiresAt(ttl time.Duration) pgtype.Timestamptz {
	if ttl <= 0 {
		return pgtype.Timestamptz{}
	}
	return pgtype.Timestamptz{Time: s.now().UTC().Add(ttl), Valid: true}
}
