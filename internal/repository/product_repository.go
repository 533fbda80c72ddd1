package repository

import (
	"context"

	"github.com/google/uuid"
	"github.com/pkg/errors"

	"ledger-ingest/internal/domain"
	"ledger-ingest/pkg/logger"
)

type productRepository struct {
	db DBTX
}

func (r *productRepository) Exists(ctx context.Context, code *string, name string) (bool, error) {
	var (
		exists bool
		err    error
	)
	if code != nil && *code != "" {
		err = r.db.QueryRowContext(ctx, `SELECT EXISTS (SELECT 1 FROM products WHERE code = $1)`, *code).Scan(&exists)
	} else {
		err = r.db.QueryRowContext(ctx, `SELECT EXISTS (SELECT 1 FROM products WHERE name = $1)`, name).Scan(&exists)
	}
	if err != nil {
		logger.GetLogger().WithError(err).WithField("name", name).Error("Failed to look up product")
		return false, errors.Wrap(err, "look up product")
	}
	return exists, nil
}

func (r *productRepository) Create(ctx context.Context, p *domain.Product) error {
	if p.ID == "" {
		p.ID = uuid.NewString()
	}

	query := `
		INSERT INTO products (id, name, code, price, stock, source)
		VALUES ($1, $2, $3, $4, $5, $6)
	`
	if _, err := r.db.ExecContext(ctx, query, p.ID, p.Name, p.Code, p.Price, p.Stock, p.Source); err != nil {
		logger.GetLogger().WithError(err).WithField("name", p.Name).Error("Failed to create product")
		return errors.Wrap(err, "create product")
	}
	return nil
}
