package importlock

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ledger-ingest/internal/domain"
	"ledger-ingest/internal/repository/memstore"
	"ledger-ingest/pkg/apperr"
)

func TestStoreGuard_SingleFlight(t *testing.T) {
	ctx := context.Background()
	s := memstore.New()
	g := NewStoreGuard(s.Meta())

	require.NoError(t, g.Acquire(ctx))

	err := g.Acquire(ctx)
	require.Error(t, err)
	assert.True(t, apperr.Is(err, apperr.KindConcurrencyRejected))
	assert.Equal(t, apperr.CodeImportInProgress, apperr.CodeOf(err))

	require.NoError(t, g.Release(ctx))
	require.NoError(t, g.Acquire(ctx))

	locked, err := s.Meta().Get(ctx, domain.MetaIsImporting)
	require.NoError(t, err)
	assert.True(t, locked)
}

func TestStoreGuard_MastersDone(t *testing.T) {
	ctx := context.Background()
	g := NewStoreGuard(memstore.New().Meta())

	done, err := g.MastersDone(ctx)
	require.NoError(t, err)
	assert.False(t, done)

	require.NoError(t, g.MarkMastersDone(ctx))
	done, err = g.MastersDone(ctx)
	require.NoError(t, err)
	assert.True(t, done)
}

func TestStoreGuard_StorageFailure(t *testing.T) {
	s := memstore.New()
	s.SetFailureHook(func(op string) error {
		if op == "meta.set" {
			return errors.New("connection refused")
		}
		return nil
	})
	g := NewStoreGuard(s.Meta())

	err := g.Acquire(context.Background())
	require.Error(t, err)
	assert.True(t, apperr.Is(err, apperr.KindStorage))
}

func TestRedisGuard_Unreachable(t *testing.T) {
	rdb := redis.NewClient(&redis.Options{
		Addr:        "127.0.0.1:1",
		DialTimeout: 50 * time.Millisecond,
		MaxRetries:  -1,
	})
	defer rdb.Close()

	s := memstore.New()
	g := NewRedisGuard(rdb, s.Meta(), time.Minute)
	ctx := context.Background()

	err := g.Acquire(ctx)
	require.Error(t, err)
	assert.True(t, apperr.Is(err, apperr.KindStorage))

	assert.NoError(t, g.Release(ctx))

	require.NoError(t, g.MarkMastersDone(ctx))
	done, err := g.MastersDone(ctx)
	require.NoError(t, err)
	assert.True(t, done)
}
