package repository

import (
	"context"

	"github.com/pkg/errors"
	"github.com/shopspring/decimal"

	"ledger-ingest/internal/domain"
	"ledger-ingest/pkg/logger"
)

type invoiceRepository struct {
	db DBTX
}

func (r *invoiceRepository) Exists(ctx context.Context, invoiceNo, customerID, source string) (bool, error) {
	query := `
		SELECT EXISTS (
			SELECT 1 FROM invoices
			WHERE invoice_no = $1 AND customer_id = $2 AND source = $3
		)
	`
	var exists bool
	if err := r.db.QueryRowContext(ctx, query, invoiceNo, customerID, source).Scan(&exists); err != nil {
		logger.GetLogger().WithError(err).WithField("invoice_no", invoiceNo).Error("Failed to look up invoice")
		return false, errors.Wrap(err, "look up invoice")
	}
	return exists, nil
}

func (r *invoiceRepository) Create(ctx context.Context, inv *domain.Invoice) error {
	query := `
		INSERT INTO invoices (invoice_no, customer_id, date, total_amount, status, source, external_id)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING id, created_at
	`

	err := r.db.QueryRowContext(ctx, query,
		inv.InvoiceNo,
		inv.CustomerID,
		inv.Date,
		inv.TotalAmount,
		inv.Status,
		inv.Source,
		inv.ExternalID,
	).Scan(&inv.ID, &inv.CreatedAt)
	if err != nil {
		logger.GetLogger().WithError(err).WithField("invoice_no", inv.InvoiceNo).Error("Failed to create invoice")
		return errors.Wrap(err, "create invoice")
	}

	itemQuery := `
		INSERT INTO invoice_items (invoice_id, name, quantity, rate, amount)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id
	`
	for i := range inv.Items {
		item := &inv.Items[i]
		item.InvoiceID = inv.ID
		err := r.db.QueryRowContext(ctx, itemQuery, item.InvoiceID, item.Name, item.Quantity, item.Rate, item.Amount).Scan(&item.ID)
		if err != nil {
			logger.GetLogger().WithError(err).WithField("invoice_no", inv.InvoiceNo).Error("Failed to create invoice item")
			return errors.Wrap(err, "create invoice item")
		}
	}
	return nil
}

func (r *invoiceRepository) ListByCustomer(ctx context.Context, customerID string, limit int) ([]domain.Invoice, error) {
	query := `
		SELECT id, invoice_no, customer_id, date, total_amount, status, source, external_id, created_at
		FROM invoices
		WHERE customer_id = $1
		ORDER BY date DESC, id DESC
		LIMIT $2
	`

	rows, err := r.db.QueryContext(ctx, query, customerID, limit)
	if err != nil {
		logger.GetLogger().WithError(err).WithField("customer_id", customerID).Error("Failed to query invoices")
		return nil, errors.Wrap(err, "query invoices")
	}
	defer rows.Close()

	var invoices []domain.Invoice
	for rows.Next() {
		var inv domain.Invoice
		err := rows.Scan(
			&inv.ID,
			&inv.InvoiceNo,
			&inv.CustomerID,
			&inv.Date,
			&inv.TotalAmount,
			&inv.Status,
			&inv.Source,
			&inv.ExternalID,
			&inv.CreatedAt,
		)
		if err != nil {
			logger.GetLogger().WithError(err).Error("Failed to scan invoice")
			continue
		}
		invoices = append(invoices, inv)
	}
	return invoices, errors.Wrap(rows.Err(), "iterate invoices")
}

func (r *invoiceRepository) SumByCustomer(ctx context.Context, customerID string) (decimal.Decimal, error) {
	return sumAmount(ctx, r.db, `SELECT COALESCE(SUM(total_amount), 0) FROM invoices WHERE customer_id = $1`, customerID)
}
