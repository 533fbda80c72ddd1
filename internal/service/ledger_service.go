package service

import (
	"context"

	"ledger-ingest/internal/domain"
	"ledger-ingest/internal/repository"
)

// MaxRows caps every per-customer listing.
const MaxRows = 500

type LedgerQueryService interface {
	Ledger(ctx context.Context, customerID string) ([]domain.LedgerEntry, error)
	Bills(ctx context.Context, customerID string) ([]domain.Bill, error)
	Payments(ctx context.Context, customerID string) ([]domain.Payment, error)
	Invoices(ctx context.Context, customerID string) ([]domain.Invoice, error)
	Summary(ctx context.Context, customerID string) (*domain.CustomerSummary, error)
	ImportLogs(ctx context.Context, limit int) ([]domain.ImportLog, error)
}

type ledgerQueryService struct {
	store repository.Store
}

func NewLedgerQueryService(store repository.Store) LedgerQueryService {
	return &ledgerQueryService{store: store}
}

func (s *ledgerQueryService) Ledger(ctx context.Context, customerID string) ([]domain.LedgerEntry, error) {
	if _, err := s.store.Customers().GetByID(ctx, customerID); err != nil {
		return nil, err
	}
	return s.store.Ledger().ListByCustomer(ctx, customerID, MaxRows)
}

func (s *ledgerQueryService) Bills(ctx context.Context, customerID string) ([]domain.Bill, error) {
	if _, err := s.store.Customers().GetByID(ctx, customerID); err != nil {
		return nil, err
	}
	return s.store.Bills().ListByCustomer(ctx, customerID, MaxRows)
}

func (s *ledgerQueryService) Payments(ctx context.Context, customerID string) ([]domain.Payment, error) {
	if _, err := s.store.Customers().GetByID(ctx, customerID); err != nil {
		return nil, err
	}
	return s.store.Payments().ListByCustomer(ctx, customerID, MaxRows)
}

func (s *ledgerQueryService) Invoices(ctx context.Context, customerID string) ([]domain.Invoice, error) {
	if _, err := s.store.Customers().GetByID(ctx, customerID); err != nil {
		return nil, err
	}
	return s.store.Invoices().ListByCustomer(ctx, customerID, MaxRows)
}

// Summary counts bills and invoices as purchases; the balance is what is
// still owed after payments.
func (s *ledgerQueryService) Summary(ctx context.Context, customerID string) (*domain.CustomerSummary, error) {
	customer, err := s.store.Customers().GetByID(ctx, customerID)
	if err != nil {
		return nil, err
	}

	billed, err := s.store.Bills().SumByCustomer(ctx, customerID)
	if err != nil {
		return nil, err
	}
	invoiced, err := s.store.Invoices().SumByCustomer(ctx, customerID)
	if err != nil {
		return nil, err
	}
	paid, err := s.store.Payments().SumByCustomer(ctx, customerID)
	if err != nil {
		return nil, err
	}
	entries, err := s.store.Ledger().CountByCustomer(ctx, customerID)
	if err != nil {
		return nil, err
	}

	purchases := billed.Add(invoiced)
	return &domain.CustomerSummary{
		Customer:       *customer,
		TotalPurchases: purchases,
		TotalPaid:      paid,
		CurrentBalance: purchases.Sub(paid),
		LedgerEntries:  entries,
	}, nil
}

func (s *ledgerQueryService) ImportLogs(ctx context.Context, limit int) ([]domain.ImportLog, error) {
	return s.store.ImportLogs().ListRecent(ctx, limit)
}
