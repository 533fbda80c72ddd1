package service

import (
	"context"
	"io"

	"github.com/google/uuid"

	"ledger-ingest/internal/domain"
	"ledger-ingest/internal/parser"
	"ledger-ingest/internal/reconciler"
	"ledger-ingest/internal/repository"
	"ledger-ingest/internal/validator"
	"ledger-ingest/pkg/apperr"
	"ledger-ingest/pkg/logger"
)

const (
	PreviewRows = 5

	msgStaged           = "File uploaded successfully. Ready for processing."
	msgEmptySheet       = "File is empty or could not be parsed."
	msgInvalidType      = "Invalid import type. Must be customers, products, or invoices."
	msgSyncCompleted    = "Sync completed"
	msgAlreadyProcessed = "Import already processed"
)

type StagingService interface {
	Stage(ctx context.Context, filename string, importType domain.ImportType, r io.Reader) (*domain.StageResult, error)
	Sync(ctx context.Context, id string) (*domain.SyncResult, error)
	Status(ctx context.Context, id string) (*domain.StagingImport, error)
	History(ctx context.Context, limit int) ([]domain.StagingImport, error)
}

type stagingService struct {
	store     repository.Store
	sheets    parser.SheetParser
	validator *validator.Validator
	engine    *reconciler.Engine
	source    string
}

func NewStagingService(
	store repository.Store,
	sheets parser.SheetParser,
	v *validator.Validator,
	engine *reconciler.Engine,
	source string,
) StagingService {
	return &stagingService{
		store:     store,
		sheets:    sheets,
		validator: v,
		engine:    engine,
		source:    source,
	}
}

func (s *stagingService) Stage(ctx context.Context, filename string, importType domain.ImportType, r io.Reader) (*domain.StageResult, error) {
	if !importType.Valid() {
		return nil, apperr.Validation(msgInvalidType)
	}

	rows, err := s.sheets.Parse(filename, r)
	if err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, apperr.Validation(msgEmptySheet)
	}

	record := &domain.StagingImport{
		ID:         uuid.New().String(),
		Filename:   filename,
		Source:     s.source,
		Type:       importType,
		Status:     domain.StagingPending,
		RawData:    rows,
		TotalCount: len(rows),
	}
	if err := s.store.Staging().Create(ctx, record); err != nil {
		return nil, apperr.Storage("failed to stage import", err)
	}

	logger.GetLogger().WithFields(map[string]interface{}{
		"import_id": record.ID,
		"type":      importType,
		"rows":      len(rows),
	}).Info("Import staged")

	preview := rows
	if len(preview) > PreviewRows {
		preview = preview[:PreviewRows]
	}
	return &domain.StageResult{
		Message:   msgStaged,
		ImportID:  record.ID,
		TotalRows: len(rows),
		Preview:   preview,
	}, nil
}

// Sync validates and applies a pending import in one transaction. Any
// storage error rolls everything back and leaves the record pending.
func (s *stagingService) Sync(ctx context.Context, id string) (*domain.SyncResult, error) {
	var result *domain.SyncResult
	log := logger.GetLogger().WithField("import_id", id)

	err := s.store.WithTx(ctx, func(tx repository.Store) error {
		record, err := tx.Staging().GetForUpdate(ctx, id)
		if err != nil {
			return err
		}
		if record.Status == domain.StagingProcessed {
			result = &domain.SyncResult{
				Message:          msgAlreadyProcessed,
				Processed:        record.ProcessedCount,
				Errors:           len(record.ErrorLog),
				AlreadyProcessed: true,
			}
			return nil
		}

		checked, err := s.validator.Validate(record.Type, record.RawData)
		if err != nil {
			return err
		}
		out, err := s.engine.ApplyStaged(ctx, tx, record.Source, checked)
		if err != nil {
			return err
		}

		errorLog := append(checked.Errors, out.Errors...)
		if err := tx.Staging().MarkProcessed(ctx, id, out.Processed, errorLog); err != nil {
			return err
		}
		result = &domain.SyncResult{
			Message:   msgSyncCompleted,
			Processed: out.Processed,
			Errors:    len(errorLog),
			ErrorLog:  errorLog,
		}
		return nil
	})
	if err != nil {
		log.WithError(err).Error("Sync failed")
		if apperr.KindOf(err) == apperr.KindInternal {
			return nil, apperr.Storage("failed to sync import", err)
		}
		return nil, err
	}

	log.WithFields(map[string]interface{}{
		"processed": result.Processed,
		"errors":    result.Errors,
		"noop":      result.AlreadyProcessed,
	}).Info("Sync finished")
	return result, nil
}

func (s *stagingService) Status(ctx context.Context, id string) (*domain.StagingImport, error) {
	return s.store.Staging().GetByID(ctx, id)
}

func (s *stagingService) History(ctx context.Context, limit int) ([]domain.StagingImport, error) {
	return s.store.Staging().ListRecent(ctx, limit)
}
