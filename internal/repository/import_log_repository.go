package repository

import (
	"context"

	"github.com/pkg/errors"

	"ledger-ingest/internal/domain"
	"ledger-ingest/pkg/logger"
)

type importLogRepository struct {
	db DBTX
}

func (r *importLogRepository) Create(ctx context.Context, l *domain.ImportLog) error {
	query := `
		INSERT INTO import_logs (session_id, import_type, status, total_rows, processed_rows, error_summary)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING id, created_at
	`
	err := r.db.QueryRowContext(ctx, query,
		l.SessionID,
		l.ImportType,
		l.Status,
		l.TotalRows,
		l.ProcessedRows,
		l.ErrorSummary,
	).Scan(&l.ID, &l.CreatedAt)
	if err != nil {
		logger.GetLogger().WithError(err).WithField("session_id", l.SessionID).Error("Failed to write import log")
		return errors.Wrap(err, "write import log")
	}
	return nil
}

func (r *importLogRepository) ListRecent(ctx context.Context, limit int) ([]domain.ImportLog, error) {
	query := `
		SELECT id, session_id, import_type, status, total_rows, processed_rows, error_summary, created_at
		FROM import_logs
		ORDER BY created_at DESC, id DESC
		LIMIT $1
	`

	rows, err := r.db.QueryContext(ctx, query, limit)
	if err != nil {
		logger.GetLogger().WithError(err).Error("Failed to query import logs")
		return nil, errors.Wrap(err, "query import logs")
	}
	defer rows.Close()

	var logs []domain.ImportLog
	for rows.Next() {
		var l domain.ImportLog
		err := rows.Scan(&l.ID, &l.SessionID, &l.ImportType, &l.Status, &l.TotalRows, &l.ProcessedRows, &l.ErrorSummary, &l.CreatedAt)
		if err != nil {
			logger.GetLogger().WithError(err).Error("Failed to scan import log")
			continue
		}
		logs = append(logs, l)
	}
	return logs, errors.Wrap(rows.Err(), "iterate import logs")
}
