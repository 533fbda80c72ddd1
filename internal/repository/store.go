package repository

import (
	"context"
	"database/sql"
	"strconv"

	"github.com/pkg/errors"

	"ledger-ingest/pkg/logger"
)

// DBTX is satisfied by both *sql.DB and *sql.Tx so every repository can run
// inside or outside a transaction.
type DBTX interface {
	ExecContext(ctx context.Context, query string, args ...interface{}) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...interface{}) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...interface{}) *sql.Row
}

// Store groups the repositories behind one transactional boundary.
type Store interface {
	Customers() CustomerRepository
	Groups() GroupRepository
	Ledger() LedgerRepository
	Bills() BillRepository
	Payments() PaymentRepository
	Invoices() InvoiceRepository
	Products() ProductRepository
	Staging() StagingRepository
	Meta() MetaRepository
	ImportLogs() ImportLogRepository

	// WithTx runs fn against a Store bound to one transaction. The
	// transaction commits when fn returns nil and rolls back otherwise.
	// Calling WithTx on a transactional Store reuses the open transaction.
	WithTx(ctx context.Context, fn func(Store) error) error
	Ping(ctx context.Context) error
}

type postgresStore struct {
	db *sql.DB
	q  DBTX
	tx *sql.Tx
}

func NewStore(db *sql.DB) Store {
	return &postgresStore{db: db, q: db}
}

func (s *postgresStore) Customers() CustomerRepository   { return &customerRepository{db: s.q} }
func (s *postgresStore) Groups() GroupRepository         { return &groupRepository{db: s.q} }
func (s *postgresStore) Ledger() LedgerRepository        { return &ledgerRepository{db: s.q} }
func (s *postgresStore) Bills() BillRepository           { return &billRepository{db: s.q} }
func (s *postgresStore) Payments() PaymentRepository     { return &paymentRepository{db: s.q} }
func (s *postgresStore) Invoices() InvoiceRepository     { return &invoiceRepository{db: s.q} }
func (s *postgresStore) Products() ProductRepository     { return &productRepository{db: s.q} }
func (s *postgresStore) Staging() StagingRepository      { return &stagingRepository{db: s.q} }
func (s *postgresStore) Meta() MetaRepository            { return &metaRepository{db: s.q} }
func (s *postgresStore) ImportLogs() ImportLogRepository { return &importLogRepository{db: s.q} }

func (s *postgresStore) WithTx(ctx context.Context, fn func(Store) error) error {
	if s.tx != nil {
		return fn(s)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		logger.GetLogger().WithError(err).Error("Failed to begin transaction")
		return errors.Wrap(err, "begin transaction")
	}
	defer tx.Rollback()

	if err := fn(&postgresStore{db: s.db, q: tx, tx: tx}); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		logger.GetLogger().WithError(err).Error("Failed to commit transaction")
		return errors.Wrap(err, "commit transaction")
	}
	return nil
}

func (s *postgresStore) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// placeholders renders "($1, $2, ...), ($n+1, ...)" for a multi-row insert.
func placeholders(rows, cols int) string {
	b := make([]byte, 0, rows*cols*5)
	n := 1
	for r := 0; r < rows; r++ {
		if r > 0 {
			b = append(b, ", "...)
		}
		b = append(b, '(')
		for c := 0; c < cols; c++ {
			if c > 0 {
				b = append(b, ", "...)
			}
			b = append(b, '$')
			b = strconv.AppendInt(b, int64(n), 10)
			n++
		}
		b = append(b, ')')
	}
	return string(b)
}
