package main

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/IgorGrieder/link-redirector/internal/config"
	"github.com/IgorGrieder/link-redirector/internal/infrastructure/db"
	"github.com/IgorGrieder/link-redirector/internal/infrastructure/logger"
	"github.com/IgorGrieder/link-redirector/internal/processing/links"
	"github.com/IgorGrieder/link-redirector/internal/storage"
	"github.com/IgorGrieder/link-redirector/internal/storage/memory"
	"github.com/IgorGrieder/link-redirector/internal/storage/mongo"
	postgresStorage "github.com/IgorGrieder/link-redirector/internal/storage/postgres"
	redisStorage "github.com/IgorGrieder/link-redirector/internal/storage/redis"
	sqliteStorage "github.com/IgorGrieder/link-redirector/internal/storage/sqlite"
	"github.com/IgorGrieder/link-redirector/internal/transport/http/middleware"
	"go.uber.org/zap"
)

const rateLimitWindow = time.Minute

// backend bundles what the selected store provides to the rest of main.
type backend struct {
	kv      links.KeyValueStore
	purger  storage.Purger
	limiter middleware.WindowCounter
	close   func()
}

func initStorage(ctx context.Context, cfg *config.Config) (*backend, error) {
	var (
		b   *backend
		err error
	)
	switch cfg.Store.Backend {
	case config.BackendMemory:
		b = &backend{kv: memory.NewStore(), close: func() {}}
	case config.BackendRedis:
		b, err = initRedis(ctx, cfg)
	case config.BackendMongo:
		b, err = initMongo(ctx, cfg)
	case config.BackendPostgres:
		b, err = initPostgres(ctx, cfg)
	case config.BackendSQLite:
		b, err = initSQLite(ctx, cfg)
	default:
		return nil, fmt.Errorf("unknown store backend %q", cfg.Store.Backend)
	}
	if err != nil {
		return nil, err
	}

	if b.limiter == nil {
		b.limiter = memory.NewFixedWindowLimiter(rateLimitWindow)
	}
	b.kv = storage.NewBreakerStore(b.kv, storage.BreakerOptions{
		Backend:     cfg.Store.Backend,
		MaxFailures: cfg.Store.BreakerFailures,
		Cooldown:    cfg.Store.BreakerCooldown,
		Timeout:     cfg.Store.Timeout,
	})

	logger.Info("Storage backend selected", zap.String("backend", cfg.Store.Backend))
	return b, nil
}

func initRedis(ctx context.Context, cfg *config.Config) (*backend, error) {
	client, err := db.ConnectRedis(ctx, db.RedisOptions{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
	if err != nil {
		return nil, fmt.Errorf("connect redis: %w", err)
	}
	return &backend{
		kv:      redisStorage.NewStore(client),
		limiter: redisStorage.NewFixedWindowLimiter(client, "rl:mutate", rateLimitWindow),
		close:   func() { _ = client.Close() },
	}, nil
}

func initMongo(ctx context.Context, cfg *config.Config) (*backend, error) {
	conn, err := db.ConnectMongo(ctx, cfg.MongoDB.URI, cfg.MongoDB.Database)
	if err != nil {
		return nil, fmt.Errorf("connect mongo: %w", err)
	}
	store, err := mongo.NewStore(conn)
	if err != nil {
		_ = conn.Disconnect(context.Background())
		return nil, fmt.Errorf("init mongo store: %w", err)
	}
	return &backend{
		kv: store,
		close: func() {
			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			_ = conn.Disconnect(ctx)
		},
	}, nil
}

func initPostgres(ctx context.Context, cfg *config.Config) (*backend, error) {
	conn, err := db.ConnectPostgres(ctx, cfg.Postgres.DSN, db.PostgresOptions{
		MaxConns: int32(cfg.Postgres.MaxConns),
	})
	if err != nil {
		return nil, fmt.Errorf("connect postgres: %w", err)
	}
	store, err := postgresStorage.NewStore(ctx, conn)
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("init postgres store: %w", err)
	}
	return &backend{kv: store, purger: store, close: conn.Close}, nil
}

func initSQLite(ctx context.Context, cfg *config.Config) (*backend, error) {
	conn, err := db.OpenSQLite(ctx, cfg.SQLite.DSN)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	store, err := sqliteStorage.NewStore(ctx, conn)
	if err != nil {
		closeSQL(conn)
		return nil, fmt.Errorf("init sqlite store: %w", err)
	}
	return &backend{kv: store, purger: store, close: func() { closeSQL(conn) }}, nil
}

func closeSQL(conn *sql.DB) {
	if err := conn.Close(); err != nil {
		logger.Warn("Failed to close sqlite", zap.Error(err))
	}
}
