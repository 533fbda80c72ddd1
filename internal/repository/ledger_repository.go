package repository

import (
	"context"
	"fmt"

	"github.com/pkg/errors"
	"github.com/shopspring/decimal"

	"ledger-ingest/internal/domain"
	"ledger-ingest/pkg/logger"
)

type ledgerRepository struct {
	db DBTX
}

func (r *ledgerRepository) UpsertByVoucher(ctx context.Context, entries []domain.LedgerEntry) (int, int, error) {
	if len(entries) == 0 {
		return 0, 0, nil
	}

	query := fmt.Sprintf(`
		INSERT INTO ledger_entries (customer_id, entry_date, debit, credit, balance, voucher_no)
		VALUES %s
		ON CONFLICT (voucher_no) DO UPDATE SET
			customer_id = EXCLUDED.customer_id,
			entry_date = EXCLUDED.entry_date,
			debit = EXCLUDED.debit,
			credit = EXCLUDED.credit,
			balance = EXCLUDED.balance
		RETURNING (xmax = 0) AS inserted
	`, placeholders(len(entries), 6))

	args := make([]interface{}, 0, len(entries)*6)
	for _, e := range entries {
		args = append(args, e.CustomerID, e.EntryDate, e.Debit, e.Credit, e.Balance, e.VoucherNo)
	}

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		logger.GetLogger().WithError(err).WithField("count", len(entries)).Error("Failed to upsert ledger entries")
		return 0, 0, errors.Wrap(err, "upsert ledger entries")
	}
	defer rows.Close()

	var inserted, replaced int
	for rows.Next() {
		var isNew bool
		if err := rows.Scan(&isNew); err != nil {
			return 0, 0, errors.Wrap(err, "scan ledger upsert")
		}
		if isNew {
			inserted++
		} else {
			replaced++
		}
	}
	if err := rows.Err(); err != nil {
		return 0, 0, errors.Wrap(err, "iterate ledger upsert")
	}
	return inserted, replaced, nil
}

func (r *ledgerRepository) ListByCustomer(ctx context.Context, customerID string, limit int) ([]domain.LedgerEntry, error) {
	query := `
		SELECT id, customer_id, entry_date, debit, credit, balance, voucher_no
		FROM ledger_entries
		WHERE customer_id = $1
		ORDER BY entry_date DESC, id DESC
		LIMIT $2
	`

	rows, err := r.db.QueryContext(ctx, query, customerID, limit)
	if err != nil {
		logger.GetLogger().WithError(err).WithField("customer_id", customerID).Error("Failed to query ledger entries")
		return nil, errors.Wrap(err, "query ledger entries")
	}
	defer rows.Close()

	var entries []domain.LedgerEntry
	for rows.Next() {
		var e domain.LedgerEntry
		if err := rows.Scan(&e.ID, &e.CustomerID, &e.EntryDate, &e.Debit, &e.Credit, &e.Balance, &e.VoucherNo); err != nil {
			logger.GetLogger().WithError(err).Error("Failed to scan ledger entry")
			continue
		}
		entries = append(entries, e)
	}
	return entries, errors.Wrap(rows.Err(), "iterate ledger entries")
}

func (r *ledgerRepository) CountByCustomer(ctx context.Context, customerID string) (int, error) {
	var n int
	err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM ledger_entries WHERE customer_id = $1`, customerID).Scan(&n)
	return n, errors.Wrap(err, "count ledger entries")
}

type billRepository struct {
	db DBTX
}

func (r *billRepository) UpsertByBillNo(ctx context.Context, bills []domain.Bill) error {
	if len(bills) == 0 {
		return nil
	}

	query := fmt.Sprintf(`
		INSERT INTO bills (customer_id, bill_no, bill_date, amount)
		VALUES %s
		ON CONFLICT (bill_no) DO UPDATE SET
			customer_id = EXCLUDED.customer_id,
			bill_date = EXCLUDED.bill_date,
			amount = EXCLUDED.amount
	`, placeholders(len(bills), 4))

	args := make([]interface{}, 0, len(bills)*4)
	for _, b := range bills {
		args = append(args, b.CustomerID, b.BillNo, b.BillDate, b.Amount)
	}

	if _, err := r.db.ExecContext(ctx, query, args...); err != nil {
		logger.GetLogger().WithError(err).WithField("count", len(bills)).Error("Failed to upsert bills")
		return errors.Wrap(err, "upsert bills")
	}
	return nil
}

func (r *billRepository) ListByCustomer(ctx context.Context, customerID string, limit int) ([]domain.Bill, error) {
	query := `
		SELECT id, customer_id, bill_no, bill_date, amount
		FROM bills
		WHERE customer_id = $1
		ORDER BY bill_date DESC, id DESC
		LIMIT $2
	`

	rows, err := r.db.QueryContext(ctx, query, customerID, limit)
	if err != nil {
		logger.GetLogger().WithError(err).WithField("customer_id", customerID).Error("Failed to query bills")
		return nil, errors.Wrap(err, "query bills")
	}
	defer rows.Close()

	var bills []domain.Bill
	for rows.Next() {
		var b domain.Bill
		if err := rows.Scan(&b.ID, &b.CustomerID, &b.BillNo, &b.BillDate, &b.Amount); err != nil {
			logger.GetLogger().WithError(err).Error("Failed to scan bill")
			continue
		}
		bills = append(bills, b)
	}
	return bills, errors.Wrap(rows.Err(), "iterate bills")
}

func (r *billRepository) SumByCustomer(ctx context.Context, customerID string) (decimal.Decimal, error) {
	return sumAmount(ctx, r.db, `SELECT COALESCE(SUM(amount), 0) FROM bills WHERE customer_id = $1`, customerID)
}

func sumAmount(ctx context.Context, db DBTX, query, customerID string) (decimal.Decimal, error) {
	var total decimal.Decimal
	if err := db.QueryRowContext(ctx, query, customerID).Scan(&total); err != nil {
		logger.GetLogger().WithError(err).WithField("customer_id", customerID).Error("Failed to sum amounts")
		return decimal.Zero, errors.Wrap(err, "sum amounts")
	}
	return total, nil
}
