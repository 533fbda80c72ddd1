// Package audit writes one ImportLog row per markup import attempt.
package audit

import (
	"context"
	"fmt"

	"ledger-ingest/internal/domain"
	"ledger-ingest/internal/repository"
	"ledger-ingest/pkg/apperr"
	"ledger-ingest/pkg/logger"
)

type Recorder struct {
	logs repository.ImportLogRepository
}

func NewRecorder(logs repository.ImportLogRepository) *Recorder {
	return &Recorder{logs: logs}
}

// Record stores the outcome of a finished import. The summary names only the
// error count; row detail lives in the response, not the audit trail.
func (r *Recorder) Record(ctx context.Context, sessionID string, kind domain.BatchKind, stats domain.ImportStats) (*domain.ImportLog, error) {
	entry := &domain.ImportLog{
		SessionID:     sessionID,
		ImportType:    kind,
		Status:        stats.LogStatus(),
		TotalRows:     stats.Total,
		ProcessedRows: stats.Processed,
		ErrorSummary:  Summary(kind, stats.Errors),
	}
	return entry, r.save(ctx, entry)
}

// RecordFailure stores an aborted import. Files rejected by the parser are
// recorded as domain.BatchUnknown.
func (r *Recorder) RecordFailure(ctx context.Context, sessionID string, kind domain.BatchKind, total int, cause error) (*domain.ImportLog, error) {
	msg := cause.Error()
	entry := &domain.ImportLog{
		SessionID:    sessionID,
		ImportType:   kind,
		Status:       domain.LogFailed,
		TotalRows:    total,
		ErrorSummary: &msg,
	}
	return entry, r.save(ctx, entry)
}

func (r *Recorder) save(ctx context.Context, entry *domain.ImportLog) error {
	if err := r.logs.Create(ctx, entry); err != nil {
		logger.GetLogger().WithError(err).WithFields(map[string]interface{}{
			"session_id": entry.SessionID,
			"type":       entry.ImportType,
		}).Error("Failed to write import log")
		return apperr.Storage("failed to write import log", err)
	}
	return nil
}

// Summary is nil when nothing failed.
func Summary(kind domain.BatchKind, errs int) *string {
	if errs == 0 {
		return nil
	}
	var s string
	if kind == domain.BatchMaster {
		s = fmt.Sprintf("Failed to process %d master records.", errs)
	} else {
		s = fmt.Sprintf("Failed to process %d rows in batch.", errs)
	}
	return &s
}
