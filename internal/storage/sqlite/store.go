package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/IgorGrieder/link-redirector/internal/processing/links"
)

var migrations = []string{
	`CREATE TABLE IF NOT EXISTS link_records (
		key        TEXT PRIMARY KEY,
		value      BLOB NOT NULL,
		updated_at INTEGER NOT NULL,
		expires_at INTEGER
	)`,
	`CREATE INDEX IF NOT EXISTS idx_link_records_expires_at ON link_records(expires_at)`,
}

// Store works with both the embedded and the libSQL driver. Timestamps are
// unix seconds computed in Go so both engines compare them the same way.
type Store struct {
	db  *sql.DB
	now func() time.Time
}

func NewStore(ctx context.Context, db *sql.DB) (*Store, error) {
	for _, stmt := range migrations {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			return nil, err
		}
	}
	return &Store{db: db, now: time.Now}, nil
}

func (s *Store) Get(ctx context.Context, key string) ([]byte, error) {
	var value []byte
	err := s.db.QueryRowContext(ctx,
		`SELECT value FROM link_records WHERE key = ? AND (expires_at IS NULL OR expires_at > ?)`,
		key, s.now().Unix(),
	).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, links.ErrKeyNotFound
	}
	if err != nil {
		return nil, err
	}
	return value, nil
}

func (s *Store) Put(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	now := s.now()
	var expiresAt sql.NullInt64
	if ttl > 0 {
		expiresAt = sql.NullInt64{Int64: now.Add(ttl).Unix(), Valid: true}
	}

	_, err := s.db.ExecContext(ctx,
		`INSERT INTO link_records (key, value, updated_at, expires_at) VALUES (?, ?, ?, ?)
		ON CONFLICT(key) DO UPDATE SET value = excluded.value, updated_at = excluded.updated_at, expires_at = excluded.expires_at`,
		key, value, now.Unix(), expiresAt,
	)
	return err
}

func (s *Store) Delete(ctx context.Context, key string) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM link_records WHERE key = ?`, key)
	return err
}

func (s *Store) PurgeExpired(ctx context.Context) (int64, error) {
	res, err := s.db.ExecContext(ctx,
		`DELETE FROM link_records WHERE expires_at IS NOT NULL AND expires_at <= ?`,
		s.now().Unix(),
	)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}
