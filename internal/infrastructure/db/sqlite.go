package db

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	_ "github.com/tursodatabase/libsql-client-go/libsql"
	_ "modernc.org/sqlite"
)

// SQLiteDriver picks the remote libSQL driver for Turso URLs and the embedded
// modernc driver for everything else.
func SQLiteDriver(dsn string) string {
	for _, scheme := range []string{"libsql://", "wss://", "https://"} {
		if strings.HasPrefix(dsn, scheme) {
			return "libsql"
		}
	}
	return "sqlite"
}

func OpenSQLite(ctx context.Context, dsn string) (*sql.DB, error) {
	driver := SQLiteDriver(dsn)
	conn, err := sql.Open(driver, dsn)
	if err != nil {
		return nil, fmt.Errorf("unable to open %s database: %w", driver, err)
	}
	if driver == "sqlite" {
		// One writer at a time avoids SQLITE_BUSY on the embedded engine.
		conn.SetMaxOpenConns(1)
	}

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := conn.PingContext(pingCtx); err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("unable to ping %s database: %w", driver, err)
	}
	return conn, nil
}
