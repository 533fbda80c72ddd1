package repository

import (
	"context"
	"database/sql"
	"encoding/json"

	"github.com/pkg/errors"

	"ledger-ingest/internal/domain"
	"ledger-ingest/pkg/apperr"
	"ledger-ingest/pkg/logger"
)

type stagingRepository struct {
	db DBTX
}

func (r *stagingRepository) Create(ctx context.Context, rec *domain.StagingImport) error {
	raw, err := json.Marshal(rec.RawData)
	if err != nil {
		return errors.Wrap(err, "encode raw rows")
	}

	query := `
		INSERT INTO staging_imports (id, filename, source, type, status, raw_data, total_count)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING created_at
	`
	err = r.db.QueryRowContext(ctx, query,
		rec.ID,
		rec.Filename,
		rec.Source,
		rec.Type,
		rec.Status,
		raw,
		rec.TotalCount,
	).Scan(&rec.CreatedAt)
	if err != nil {
		logger.GetLogger().WithError(err).WithField("import_id", rec.ID).Error("Failed to create staging import")
		return errors.Wrap(err, "create staging import")
	}
	return nil
}

func (r *stagingRepository) GetByID(ctx context.Context, id string) (*domain.StagingImport, error) {
	return r.get(ctx, id, false)
}

func (r *stagingRepository) GetForUpdate(ctx context.Context, id string) (*domain.StagingImport, error) {
	return r.get(ctx, id, true)
}

func (r *stagingRepository) get(ctx context.Context, id string, lock bool) (*domain.StagingImport, error) {
	query := `
		SELECT id, filename, source, type, status, raw_data, error_log,
			processed_count, total_count, created_at
		FROM staging_imports
		WHERE id = $1
	`
	if lock {
		query += ` FOR UPDATE`
	}

	var (
		rec      domain.StagingImport
		raw      []byte
		errorLog []byte
	)
	err := r.db.QueryRowContext(ctx, query, id).Scan(
		&rec.ID,
		&rec.Filename,
		&rec.Source,
		&rec.Type,
		&rec.Status,
		&raw,
		&errorLog,
		&rec.ProcessedCount,
		&rec.TotalCount,
		&rec.CreatedAt,
	)
	if err == sql.ErrNoRows {
		return nil, apperr.NotFound("import not found")
	}
	if err != nil {
		logger.GetLogger().WithError(err).WithField("import_id", id).Error("Failed to get staging import")
		return nil, errors.Wrap(err, "get staging import")
	}

	if err := json.Unmarshal(raw, &rec.RawData); err != nil {
		return nil, errors.Wrap(err, "decode raw rows")
	}
	if len(errorLog) > 0 {
		if err := json.Unmarshal(errorLog, &rec.ErrorLog); err != nil {
			return nil, errors.Wrap(err, "decode error log")
		}
	}
	return &rec, nil
}

func (r *stagingRepository) MarkProcessed(ctx context.Context, id string, processed int, errorLog []domain.RowError) error {
	var logJSON []byte
	if len(errorLog) > 0 {
		var err error
		if logJSON, err = json.Marshal(errorLog); err != nil {
			return errors.Wrap(err, "encode error log")
		}
	}

	query := `
		UPDATE staging_imports
		SET status = $1, processed_count = $2, error_log = $3
		WHERE id = $4
	`
	res, err := r.db.ExecContext(ctx, query, domain.StagingProcessed, processed, logJSON, id)
	if err != nil {
		logger.GetLogger().WithError(err).WithField("import_id", id).Error("Failed to update staging import")
		return errors.Wrap(err, "update staging import")
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return apperr.NotFound("import not found")
	}
	return nil
}

func (r *stagingRepository) ListRecent(ctx context.Context, limit int) ([]domain.StagingImport, error) {
	query := `
		SELECT id, filename, source, type, status, error_log,
			processed_count, total_count, created_at
		FROM staging_imports
		ORDER BY created_at DESC
		LIMIT $1
	`

	rows, err := r.db.QueryContext(ctx, query, limit)
	if err != nil {
		logger.GetLogger().WithError(err).Error("Failed to query staging imports")
		return nil, errors.Wrap(err, "query staging imports")
	}
	defer rows.Close()

	var records []domain.StagingImport
	for rows.Next() {
		var (
			rec      domain.StagingImport
			errorLog []byte
		)
		err := rows.Scan(
			&rec.ID,
			&rec.Filename,
			&rec.Source,
			&rec.Type,
			&rec.Status,
			&errorLog,
			&rec.ProcessedCount,
			&rec.TotalCount,
			&rec.CreatedAt,
		)
		if err != nil {
			logger.GetLogger().WithError(err).Error("Failed to scan staging import")
			continue
		}
		if len(errorLog) > 0 {
			if err := json.Unmarshal(errorLog, &rec.ErrorLog); err != nil {
				logger.GetLogger().WithError(err).WithField("import_id", rec.ID).Warn("Unreadable error log")
			}
		}
		records = append(records, rec)
	}
	return records, errors.Wrap(rows.Err(), "iterate staging imports")
}
