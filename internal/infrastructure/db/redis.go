package db

import (
	"context"
	"fmt"
	"time"

	"github.com/IgorGrieder/link-redirector/internal/infrastructure/logger"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

type RedisOptions struct {
	Addr     string
	Password string
	DB       int
	PoolSize int
}

func ConnectRedis(ctx context.Context, opts RedisOptions) (*redis.Client, error) {
	if opts.Addr == "" {
		opts.Addr = "localhost:6379"
	}

	client := redis.NewClient(&redis.Options{
		Addr:         opts.Addr,
		Password:     opts.Password,
		DB:           opts.DB,
		PoolSize:     opts.PoolSize,
		DialTimeout:  time.Second,
		ReadTimeout:  2 * time.Second,
		WriteTimeout: 2 * time.Second,
	})

	pingCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("unable to ping redis: %w", err)
	}

	logger.Info("Redis connected", zap.String("addr", opts.Addr), zap.Int("db", opts.DB))
	return client, nil
}
