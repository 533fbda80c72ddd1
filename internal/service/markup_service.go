package service

import (
	"context"
	"io"

	"github.com/google/uuid"

	"ledger-ingest/internal/audit"
	"ledger-ingest/internal/domain"
	"ledger-ingest/internal/importlock"
	"ledger-ingest/internal/parser"
	"ledger-ingest/internal/reconciler"
	"ledger-ingest/internal/repository"
	"ledger-ingest/internal/validator"
	"ledger-ingest/pkg/apperr"
	"ledger-ingest/pkg/logger"
)

const (
	msgMastersImported   = "Masters imported successfully"
	msgVouchersProcessed = "Vouchers processed successfully"
	msgVouchersPartial   = "Voucher import completed with partial errors"
)

type MarkupImportService interface {
	// Import runs one accounting export through the lock, parser, gate and
	// reconciler. The returned result carries the session id even on error.
	Import(ctx context.Context, r io.Reader) (*domain.MarkupResult, error)
}

type markupImportService struct {
	store     repository.Store
	guard     importlock.Guard
	parser    *parser.MarkupParser
	validator *validator.Validator
	engine    *reconciler.Engine
	audit     *audit.Recorder
	source    string
}

func NewMarkupImportService(
	store repository.Store,
	guard importlock.Guard,
	engine *reconciler.Engine,
	source string,
) MarkupImportService {
	return &markupImportService{
		store:     store,
		guard:     guard,
		parser:    parser.NewMarkupParser(),
		validator: validator.New(),
		engine:    engine,
		audit:     audit.NewRecorder(store.ImportLogs()),
		source:    source,
	}
}

func (s *markupImportService) Import(ctx context.Context, r io.Reader) (*domain.MarkupResult, error) {
	result := &domain.MarkupResult{SessionID: uuid.New().String()}
	log := logger.GetLogger().WithField("session_id", result.SessionID)

	if err := s.guard.Acquire(ctx); err != nil {
		log.WithError(err).Warn("Import rejected")
		return result, err
	}
	defer func() {
		if err := s.guard.Release(context.WithoutCancel(ctx)); err != nil {
			log.WithError(err).Error("Failed to release import lock")
		}
	}()

	batch, err := s.parser.Parse(r)
	if err != nil {
		log.WithError(err).Warn("Markup parse failed")
		if _, auditErr := s.audit.RecordFailure(ctx, result.SessionID, domain.BatchUnknown, 0, err); auditErr != nil {
			log.WithError(auditErr).Warn("Import log not written")
		}
		return result, err
	}
	result.Type = batch.Kind
	log = log.WithField("type", batch.Kind)
	log.WithField("total", batch.Total).Info("Markup batch classified")

	if batch.Kind == domain.BatchVoucher {
		done, err := s.guard.MastersDone(ctx)
		if err != nil {
			return result, err
		}
		if !done {
			log.Warn("Voucher import refused before masters")
			return result, apperr.MastersRequired()
		}
		return s.importVouchers(ctx, result, batch)
	}
	return s.importMasters(ctx, result, batch)
}

func (s *markupImportService) importMasters(ctx context.Context, result *domain.MarkupResult, batch *parser.Batch) (*domain.MarkupResult, error) {
	set := validator.ExtractMasters(batch.Records)
	out := s.engine.ApplyMasters(ctx, s.store, s.source, set)

	groups, ledgers := out.Groups, out.Ledgers
	result.Message = msgMastersImported
	result.Stats = domain.ImportStats{
		Total:      batch.Total,
		Processed:  groups + ledgers,
		Groups:     &groups,
		Ledgers:    &ledgers,
		Duplicates: out.Duplicates,
		Errors:     out.Errors,
	}

	if result.Stats.Processed > 0 {
		if err := s.guard.MarkMastersDone(ctx); err != nil {
			return result, err
		}
	}
	s.record(ctx, result)
	return result, nil
}

func (s *markupImportService) importVouchers(ctx context.Context, result *domain.MarkupResult, batch *parser.Batch) (*domain.MarkupResult, error) {
	rows := make([]domain.Row, len(batch.Records))
	for i, rec := range batch.Records {
		rows[i] = rec.Fields
	}
	checked := s.validator.Vouchers(rows)

	out, err := s.engine.ApplyVouchers(ctx, s.store, s.source, checked.Records)
	if err != nil {
		if _, auditErr := s.audit.RecordFailure(ctx, result.SessionID, batch.Kind, batch.Total, err); auditErr != nil {
			logger.GetLogger().WithError(auditErr).Warn("Import log not written")
		}
		return result, apperr.Storage("voucher import failed", err)
	}

	result.Message = msgVouchersProcessed
	if out.Errors > 0 {
		result.Message = msgVouchersPartial
	}
	result.Stats = domain.ImportStats{
		Total:          batch.Total,
		Processed:      out.Processed,
		SkippedInvalid: checked.Skipped + out.SkippedInvalid,
		Duplicates:     out.Duplicates,
		Errors:         out.Errors,
	}
	s.record(ctx, result)
	return result, nil
}

// record writes the audit row. A failed write is logged, not returned: the
// import itself has already committed.
func (s *markupImportService) record(ctx context.Context, result *domain.MarkupResult) {
	if _, err := s.audit.Record(ctx, result.SessionID, result.Type, result.Stats); err != nil {
		logger.GetLogger().WithError(err).WithField("session_id", result.SessionID).Warn("Import log not written")
	}
	logger.GetLogger().WithFields(map[string]interface{}{
		"session_id": result.SessionID,
		"type":       result.Type,
		"processed":  result.Stats.Processed,
		"errors":     result.Stats.Errors,
	}).Info("Markup import finished")
}
