package importlock

import (
	"context"
	"sync"
	"time"

	"github.com/bsm/redislock"
	"github.com/pkg/errors"
	"github.com/redis/go-redis/v9"

	"ledger-ingest/internal/repository"
	"ledger-ingest/pkg/apperr"
	"ledger-ingest/pkg/logger"
)

// DefaultLockKey is the redis key holding the import lock.
const DefaultLockKey = "ledger-ingest:is_importing"

// RedisGuard holds the import lock in redis so several API instances share
// it. The lock expires after ttl if its holder dies. first_import_done stays
// in the database.
type RedisGuard struct {
	locker *redislock.Client
	meta   repository.MetaRepository
	key    string
	ttl    time.Duration

	mu   sync.Mutex
	held *redislock.Lock
}

func NewRedisGuard(rdb redis.UniversalClient, meta repository.MetaRepository, ttl time.Duration) *RedisGuard {
	return &RedisGuard{
		locker: redislock.New(rdb),
		meta:   meta,
		key:    DefaultLockKey,
		ttl:    ttl,
	}
}

func (g *RedisGuard) Acquire(ctx context.Context) error {
	lock, err := g.locker.Obtain(ctx, g.key, g.ttl, nil)
	if errors.Is(err, redislock.ErrNotObtained) {
		return apperr.ImportInProgress()
	}
	if err != nil {
		return apperr.Storage("failed to acquire import lock", err)
	}

	g.mu.Lock()
	g.held = lock
	g.mu.Unlock()
	return nil
}

// Release is a no-op when the lock is not held by this guard.
func (g *RedisGuard) Release(ctx context.Context) error {
	g.mu.Lock()
	lock := g.held
	g.held = nil
	g.mu.Unlock()

	if lock == nil {
		return nil
	}
	if err := lock.Release(ctx); err != nil {
		if errors.Is(err, redislock.ErrLockNotHeld) {
			logger.GetLogger().WithField("key", g.key).Warn("Import lock expired before release")
			return nil
		}
		return apperr.Storage("failed to release import lock", err)
	}
	return nil
}

func (g *RedisGuard) MastersDone(ctx context.Context) (bool, error) {
	return mastersDone(ctx, g.meta)
}

func (g *RedisGuard) MarkMastersDone(ctx context.Context) error {
	return markMastersDone(ctx, g.meta)
}
