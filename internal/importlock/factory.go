package importlock

import (
	"context"

	"github.com/pkg/errors"
	"github.com/redis/go-redis/v9"

	"ledger-ingest/internal/config"
	"ledger-ingest/internal/repository"
	"ledger-ingest/pkg/logger"
)

// New builds the guard selected by LOCK_BACKEND. The returned close func
// releases the redis connection, if any.
func New(ctx context.Context, cfg config.LockConfig, meta repository.MetaRepository) (Guard, func() error, error) {
	if cfg.Backend != config.LockBackendRedis {
		return NewStoreGuard(meta), func() error { return nil }, nil
	}

	rdb := redis.NewClient(&redis.Options{
		Addr: cfg.RedisAddress,
		DB:   0,
	})
	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, nil, errors.Wrapf(err, "connect redis at %s", cfg.RedisAddress)
	}
	logger.GetLogger().WithField("address", cfg.RedisAddress).Info("Using redis import lock")
	return NewRedisGuard(rdb, meta, cfg.TTL), rdb.Close, nil
}
