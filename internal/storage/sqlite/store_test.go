package sqlite

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/IgorGrieder/link-redirector/internal/infrastructure/db"
	"github.com/IgorGrieder/link-redirector/internal/processing/links"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	ctx := context.Background()

	conn, err := db.OpenSQLite(ctx, "file:"+filepath.Join(t.TempDir(), "links.db"))
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { _ = conn.Close() })

	s, err := NewStore(ctx, conn)
	if err != nil {
		t.Fatal(err)
	}
	return s
}

func TestStore_PutGetDelete(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	if _, err := s.Get(ctx, "abc"); !errors.Is(err, links.ErrKeyNotFound) {
		t.Fatalf("expected ErrKeyNotFound, got: %v", err)
	}

	if err := s.Put(ctx, "abc", []byte(`{"url":"https://a.com"}`), 0); err != nil {
		t.Fatal(err)
	}
	if err := s.Put(ctx, "abc", []byte(`{"url":"https://b.com"}`), 0); err != nil {
		t.Fatal(err)
	}

	got, err := s.Get(ctx, "abc")
	if err != nil {
		t.Fatal(err)
	}
	if string(got) != `{"url":"https://b.com"}` {
		t.Errorf("got %q", got)
	}

	if err := s.Delete(ctx, "abc"); err != nil {
		t.Fatal(err)
	}
	if _, err := s.Get(ctx, "abc"); !errors.Is(err, links.ErrKeyNotFound) {
		t.Fatalf("expected ErrKeyNotFound after delete, got: %v", err)
	}
}

func TestStore_TTLHintHidesAndPurges(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	now := time.Date(2025, 1, 15, 12, 0, 0, 0, time.UTC)
	s.now = func() time.Time { return now }

	if err := s.Put(ctx, "short", []byte("v"), time.Minute); err != nil {
		t.Fatal(err)
	}
	if err := s.Put(ctx, "forever", []byte("v"), 0); err != nil {
		t.Fatal(err)
	}
	if _, err := s.Get(ctx, "short"); err != nil {
		t.Fatalf("before ttl: %v", err)
	}

	now = now.Add(time.Minute)
	if _, err := s.Get(ctx, "short"); !errors.Is(err, links.ErrKeyNotFound) {
		t.Fatalf("after ttl: expected ErrKeyNotFound, got: %v", err)
	}

	n, err := s.PurgeExpired(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if n != 1 {
		t.Errorf("purged %d rows, want 1", n)
	}
	if _, err := s.Get(ctx, "forever"); err != nil {
		t.Errorf("entry without ttl must survive purge: %v", err)
	}
}

func TestStore_WorksBehindRepository(t *testing.T) {
	repo := links.NewRepository(newTestStore(t), links.RepositoryOptions{KeyPrefix: "link:"})
	ctx := context.Background()

	rec := links.Record{URL: "https://example.com", Revision: "r1", CreatedAt: 1, ModifiedAt: 1}
	if err := repo.Store(ctx, "abc", rec); err != nil {
		t.Fatal(err)
	}
	got, err := repo.Fetch(ctx, "abc")
	if err != nil {
		t.Fatal(err)
	}
	if got.URL != rec.URL || got.Revision != rec.Revision {
		t.Errorf("got %+v", got)
	}
}
