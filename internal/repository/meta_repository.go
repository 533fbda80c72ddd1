package repository

import (
	"context"
	"database/sql"

	"github.com/pkg/errors"

	"ledger-ingest/pkg/logger"
)

type metaRepository struct {
	db DBTX
}

func (r *metaRepository) Get(ctx context.Context, key string) (bool, error) {
	var value bool
	err := r.db.QueryRowContext(ctx, `SELECT value FROM import_meta WHERE key = $1`, key).Scan(&value)
	if err == sql.ErrNoRows {
		return false, nil
	}
	if err != nil {
		logger.GetLogger().WithError(err).WithField("key", key).Error("Failed to read import meta")
		return false, errors.Wrap(err, "read import meta")
	}
	return value, nil
}

func (r *metaRepository) Set(ctx context.Context, key string, value bool) error {
	query := `
		INSERT INTO import_meta (key, value, updated_at)
		VALUES ($1, $2, NOW())
		ON CONFLICT (key) DO UPDATE SET value = EXCLUDED.value, updated_at = NOW()
	`
	if _, err := r.db.ExecContext(ctx, query, key, value); err != nil {
		logger.GetLogger().WithError(err).WithField("key", key).Error("Failed to write import meta")
		return errors.Wrap(err, "write import meta")
	}
	return nil
}

func (r *metaRepository) CompareAndSet(ctx context.Context, key string, from, to bool) (bool, error) {
	// a missing row counts as false
	query := `
		INSERT INTO import_meta (key, value, updated_at)
		VALUES ($1, $3, NOW())
		ON CONFLICT (key) DO UPDATE SET value = EXCLUDED.value, updated_at = NOW()
		WHERE import_meta.value = $2
	`
	if from {
		query = `
			UPDATE import_meta SET value = $3, updated_at = NOW()
			WHERE key = $1 AND value = $2
		`
	}

	res, err := r.db.ExecContext(ctx, query, key, from, to)
	if err != nil {
		logger.GetLogger().WithError(err).WithField("key", key).Error("Failed to swap import meta")
		return false, errors.Wrap(err, "swap import meta")
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, errors.Wrap(err, "swap import meta")
	}
	return n == 1, nil
}
