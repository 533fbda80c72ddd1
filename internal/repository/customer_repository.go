package repository

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/google/uuid"
	"github.com/lib/pq"
	"github.com/pkg/errors"

	"ledger-ingest/internal/domain"
	"ledger-ingest/pkg/apperr"
	"ledger-ingest/pkg/logger"
)

type customerRepository struct {
	db DBTX
}

const customerColumns = `id, name, phone, source, external_id, created_at`

func (r *customerRepository) UpsertByPhone(ctx context.Context, source string, candidates []domain.CustomerCandidate) ([]ResolvedCustomer, error) {
	if len(candidates) == 0 {
		return nil, nil
	}

	// the no-op update makes RETURNING yield existing rows too; xmax is 0
	// only for rows this statement inserted
	query := fmt.Sprintf(`
		INSERT INTO customers (id, name, phone, source, external_id)
		VALUES %s
		ON CONFLICT (phone) DO UPDATE SET phone = EXCLUDED.phone
		RETURNING id, phone, (xmax = 0) AS inserted
	`, placeholders(len(candidates), 5))

	args := make([]interface{}, 0, len(candidates)*5)
	for _, c := range candidates {
		args = append(args, uuid.NewString(), c.Name, c.Phone, source, c.ExternalID)
	}

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		logger.GetLogger().WithError(err).WithField("count", len(candidates)).Error("Failed to upsert customers")
		return nil, errors.Wrap(err, "upsert customers")
	}
	defer rows.Close()

	resolved := make([]ResolvedCustomer, 0, len(candidates))
	for rows.Next() {
		var rc ResolvedCustomer
		if err := rows.Scan(&rc.ID, &rc.Phone, &rc.Created); err != nil {
			return nil, errors.Wrap(err, "scan customer")
		}
		resolved = append(resolved, rc)
	}
	return resolved, errors.Wrap(rows.Err(), "iterate customers")
}

func (r *customerRepository) FindIDsByPhone(ctx context.Context, phones []string) (map[string]string, error) {
	ids := make(map[string]string, len(phones))
	if len(phones) == 0 {
		return ids, nil
	}

	rows, err := r.db.QueryContext(ctx, `SELECT id, phone FROM customers WHERE phone = ANY($1)`, pq.Array(phones))
	if err != nil {
		logger.GetLogger().WithError(err).Error("Failed to query customers by phone")
		return nil, errors.Wrap(err, "query customers by phone")
	}
	defer rows.Close()

	for rows.Next() {
		var id, phone string
		if err := rows.Scan(&id, &phone); err != nil {
			return nil, errors.Wrap(err, "scan customer")
		}
		ids[phone] = id
	}
	return ids, errors.Wrap(rows.Err(), "iterate customers")
}

func (r *customerRepository) FindByName(ctx context.Context, name string) (*domain.Customer, error) {
	query := `
		SELECT ` + customerColumns + `
		FROM customers
		WHERE LOWER(TRIM(name)) = LOWER(TRIM($1))
		ORDER BY created_at
		LIMIT 1
	`
	c, err := scanCustomer(r.db.QueryRowContext(ctx, query, name))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		logger.GetLogger().WithError(err).Error("Failed to find customer by name")
		return nil, errors.Wrap(err, "find customer by name")
	}
	return c, nil
}

func (r *customerRepository) GetByID(ctx context.Context, id string) (*domain.Customer, error) {
	query := `SELECT ` + customerColumns + ` FROM customers WHERE id = $1`
	c, err := scanCustomer(r.db.QueryRowContext(ctx, query, id))
	if err == sql.ErrNoRows {
		return nil, apperr.NotFound("customer not found")
	}
	if err != nil {
		logger.GetLogger().WithError(err).WithField("customer_id", id).Error("Failed to get customer")
		return nil, errors.Wrap(err, "get customer")
	}
	return c, nil
}

func scanCustomer(row *sql.Row) (*domain.Customer, error) {
	var c domain.Customer
	err := row.Scan(&c.ID, &c.Name, &c.Phone, &c.Source, &c.ExternalID, &c.CreatedAt)
	if err != nil {
		return nil, err
	}
	return &c, nil
}
