package redis

import (
	"context"
	"fmt"

	"hrportal/internal/config"

	"github.com/go-redis/redis/v8"
	"go.uber.org/zap"
)

// New connects to Redis when enabled. A nil client with a nil error means Redis is
// disabled and callers should stay in single-instance mode.
func New(ctx context.Context, cfg config.RedisConfig, log *zap.Logger) (*redis.Client, error) {
	if !cfg.Enabled {
		log.Info("Redis disabled, change feed stays in-process")
		return nil, nil
	}

	client := redis.NewClient(&redis.Options{
		Addr:        cfg.Addr,
		Password:    cfg.Password,
		DB:          cfg.DB,
		DialTimeout: cfg.ConnectTimeout,
		PoolSize:    cfg.PoolSize,
	})

	pingCtx, cancel := context.WithTimeout(ctx, cfg.ConnectTimeout)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("failed to connect to Redis at %s: %w", cfg.Addr, err)
	}

	log.Info("Connected to Redis", zap.String("addr", cfg.Addr), zap.Int("db", cfg.DB))
	return client, nil
}
