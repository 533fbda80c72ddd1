package importlock

import (
	"context"

	"ledger-ingest/internal/domain"
	"ledger-ingest/internal/repository"
	"ledger-ingest/pkg/apperr"
)

// StoreGuard keeps both flags in the import_meta table. Acquire is a single
// conditional update, so two uploads can never both see the lock free.
type StoreGuard struct {
	meta repository.MetaRepository
}

func NewStoreGuard(meta repository.MetaRepository) *StoreGuard {
	return &StoreGuard{meta: meta}
}

func (g *StoreGuard) Acquire(ctx context.Context) error {
	ok, err := g.meta.CompareAndSet(ctx, domain.MetaIsImporting, false, true)
	if err != nil {
		return apperr.Storage("failed to acquire import lock", err)
	}
	if !ok {
		return apperr.ImportInProgress()
	}
	return nil
}

func (g *StoreGuard) Release(ctx context.Context) error {
	if err := g.meta.Set(ctx, domain.MetaIsImporting, false); err != nil {
		return apperr.Storage("failed to release import lock", err)
	}
	return nil
}

func (g *StoreGuard) MastersDone(ctx context.Context) (bool, error) {
	return mastersDone(ctx, g.meta)
}

func (g *StoreGuard) MarkMastersDone(ctx context.Context) error {
	return markMastersDone(ctx, g.meta)
}

func mastersDone(ctx context.Context, meta repository.MetaRepository) (bool, error) {
	done, err := meta.Get(ctx, domain.MetaFirstImportDone)
	if err != nil {
		return false, apperr.Storage("failed to read import state", err)
	}
	return done, nil
}

func markMastersDone(ctx context.Context, meta repository.MetaRepository) error {
	if err := meta.Set(ctx, domain.MetaFirstImportDone, true); err != nil {
		return apperr.Storage("failed to record master import", err)
	}
	return nil
}
