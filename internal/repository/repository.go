package repository

import (
	"context"

	"github.com/shopspring/decimal"

	"ledger-ingest/internal/domain"
)

// ResolvedCustomer is the outcome of an upsert-by-phone.
type ResolvedCustomer struct {
	ID      string
	Phone   string
	Created bool
}

type CustomerRepository interface {
	// UpsertByPhone inserts candidates whose phone is new and returns the id
	// of every candidate, new or existing. Candidates must have distinct phones.
	UpsertByPhone(ctx context.Context, source string, candidates []domain.CustomerCandidate) ([]ResolvedCustomer, error)
	FindIDsByPhone(ctx context.Context, phones []string) (map[string]string, error)
	// FindByName matches case-insensitively on the trimmed name.
	FindByName(ctx context.Context, name string) (*domain.Customer, error)
	GetByID(ctx context.Context, id string) (*domain.Customer, error)
}

type GroupRepository interface {
	UpsertByName(ctx context.Context, groups []domain.Group) error
}

type LedgerRepository interface {
	// UpsertByVoucher replaces entries that share a voucher number.
	UpsertByVoucher(ctx context.Context, entries []domain.LedgerEntry) (inserted, replaced int, err error)
	ListByCustomer(ctx context.Context, customerID string, limit int) ([]domain.LedgerEntry, error)
	CountByCustomer(ctx context.Context, customerID string) (int, error)
}

type BillRepository interface {
	UpsertByBillNo(ctx context.Context, bills []domain.Bill) error
	ListByCustomer(ctx context.Context, customerID string, limit int) ([]domain.Bill, error)
	SumByCustomer(ctx context.Context, customerID string) (decimal.Decimal, error)
}

type PaymentRepository interface {
	ExistsByReference(ctx context.Context, customerID, referenceNo, source string) (bool, error)
	Create(ctx context.Context, payment *domain.Payment) error
	ListByCustomer(ctx context.Context, customerID string, limit int) ([]domain.Payment, error)
	SumByCustomer(ctx context.Context, customerID string) (decimal.Decimal, error)
}

type InvoiceRepository interface {
	Exists(ctx context.Context, invoiceNo, customerID, source string) (bool, error)
	// Create inserts the invoice and its items.
	Create(ctx context.Context, invoice *domain.Invoice) error
	ListByCustomer(ctx context.Context, customerID string, limit int) ([]domain.Invoice, error)
	SumByCustomer(ctx context.Context, customerID string) (decimal.Decimal, error)
}

type ProductRepository interface {
	// Exists looks up by code when one is given, by name otherwise.
	Exists(ctx context.Context, code *string, name string) (bool, error)
	Create(ctx context.Context, product *domain.Product) error
}

type StagingRepository interface {
	Create(ctx context.Context, record *domain.StagingImport) error
	GetByID(ctx context.Context, id string) (*domain.StagingImport, error)
	// GetForUpdate locks the record for the rest of the transaction.
	GetForUpdate(ctx context.Context, id string) (*domain.StagingImport, error)
	MarkProcessed(ctx context.Context, id string, processed int, errorLog []domain.RowError) error
	// ListRecent returns the newest records without their raw rows.
	ListRecent(ctx context.Context, limit int) ([]domain.StagingImport, error)
}

type MetaRepository interface {
	Get(ctx context.Context, key string) (bool, error)
	Set(ctx context.Context, key string, value bool) error
	// CompareAndSet flips key from one value to the other in one statement and reports
	// whether this call made the change.
	CompareAndSet(ctx context.Context, key string, from, to bool) (bool, error)
}

type ImportLogRepository interface {
	Create(ctx context.Context, entry *domain.ImportLog) error
	ListRecent(ctx context.Context, limit int) ([]domain.ImportLog, error)
}
