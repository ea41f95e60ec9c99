package memcache_fx

import (
	"context"
	"fmt"

	goredis "github.com/redis/go-redis/v9"
	"go.uber.org/fx"
	"go.uber.org/zap"

	"habitly/internal/config"
	mem "habitly/pkg/memcache"
)

var Module = fx.Provide(provideIdempotencyStore)

// provideIdempotencyStore uses Redis when REDIS_URL is set so claims are
// shared between instances; otherwise keys live in process memory.
func provideIdempotencyStore(lc fx.Lifecycle, cfg *config.Config, logger *zap.Logger) (mem.IdempotencyStore, error) {
	if cfg.Idempotency.RedisURL == "" {
		logger.Info("idempotency keys kept in memory")
		return mem.NewIdempotencyKeys(), nil
	}

	opts, err := goredis.ParseURL(cfg.Idempotency.RedisURL)
	if err != nil {
		return nil, fmt.Errorf("invalid REDIS_URL: %w", err)
	}
	client := goredis.NewClient(opts)

	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			if err := client.Ping(ctx).Err(); err != nil {
				return fmt.Errorf("redis ping: %w", err)
			}
			logger.Info("idempotency keys kept in redis", zap.String("addr", opts.Addr))
			return nil
		},
		OnStop: func(ctx context.Context) error {
			return client.Close()
		},
	})

	return mem.NewRedisIdempotencyKeys(client, ""), nil
}
