package redis

import (
	"context"
	"fmt"
	"time"

	goredis "github.com/redis/go-redis/v9"

	"fleet-tracker/internal/general/config"
	"fleet-tracker/internal/general/logger"
)

// Options builds client options from cfg. redis.url wins over addr/password/db.
func Options(cfg *config.Config) (*goredis.Options, error) {
	if cfg.Redis.URL != "" {
		opt, err := goredis.ParseURL(cfg.Redis.URL)
		if err != nil {
			return nil, fmt.Errorf("redis parse url: %w", err)
		}
		return opt, nil
	}

	return &goredis.Options{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	}, nil
}

// Connect opens a client and verifies it with PING.
func Connect(ctx context.Context, opt *goredis.Options, logger *logger.Logger) (*goredis.Client, error) {
	start := time.Now()

	client := goredis.NewClient(opt)

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	if err := client.Ping(pingCtx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("redis ping: %w", err)
	}

	logger.Info(ctx, "redis_connected", "Connected to Redis", map[string]any{
		"addr":        opt.Addr,
		"db":          opt.DB,
		"duration_ms": time.Since(start).Milliseconds(),
	})

	return client, nil
}
