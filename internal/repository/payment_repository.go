package repository

import (
	"context"

	"github.com/pkg/errors"
	"github.com/shopspring/decimal"

	"ledger-ingest/internal/domain"
	"ledger-ingest/pkg/logger"
)

type paymentRepository struct {
	db DBTX
}

func (r *paymentRepository) ExistsByReference(ctx context.Context, customerID, referenceNo, source string) (bool, error) {
	query := `
		SELECT EXISTS (
			SELECT 1 FROM payments
			WHERE customer_id = $1 AND reference_no = $2 AND source = $3
		)
	`
	var exists bool
	if err := r.db.QueryRowContext(ctx, query, customerID, referenceNo, source).Scan(&exists); err != nil {
		logger.GetLogger().WithError(err).WithField("reference_no", referenceNo).Error("Failed to look up payment")
		return false, errors.Wrap(err, "look up payment")
	}
	return exists, nil
}

func (r *paymentRepository) Create(ctx context.Context, p *domain.Payment) error {
	query := `
		INSERT INTO payments (customer_id, payment_date, amount, mode, reference_no, source)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING id
	`

	err := r.db.QueryRowContext(ctx, query,
		p.CustomerID,
		p.PaymentDate,
		p.Amount,
		p.Mode,
		p.ReferenceNo,
		p.Source,
	).Scan(&p.ID)
	if err != nil {
		logger.GetLogger().WithError(err).WithField("customer_id", p.CustomerID).Error("Failed to create payment")
		return errors.Wrap(err, "create payment")
	}
	return nil
}

func (r *paymentRepository) ListByCustomer(ctx context.Context, customerID string, limit int) ([]domain.Payment, error) {
	query := `
		SELECT id, customer_id, payment_date, amount, mode, reference_no, source
		FROM payments
		WHERE customer_id = $1
		ORDER BY payment_date DESC, id DESC
		LIMIT $2
	`

	rows, err := r.db.QueryContext(ctx, query, customerID, limit)
	if err != nil {
		logger.GetLogger().WithError(err).WithField("customer_id", customerID).Error("Failed to query payments")
		return nil, errors.Wrap(err, "query payments")
	}
	defer rows.Close()

	var payments []domain.Payment
	for rows.Next() {
		var p domain.Payment
		if err := rows.Scan(&p.ID, &p.CustomerID, &p.PaymentDate, &p.Amount, &p.Mode, &p.ReferenceNo, &p.Source); err != nil {
			logger.GetLogger().WithError(err).Error("Failed to scan payment")
			continue
		}
		payments = append(payments, p)
	}
	return payments, errors.Wrap(rows.Err(), "iterate payments")
}

func (r *paymentRepository) SumByCustomer(ctx context.Context, customerID string) (decimal.Decimal, error) {
	return sumAmount(ctx, r.db, `SELECT COALESCE(SUM(amount), 0) FROM payments WHERE customer_id = $1`, customerID)
}
