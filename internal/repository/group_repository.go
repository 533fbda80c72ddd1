package repository

import (
	"context"
	"fmt"

	"github.com/pkg/errors"

	"ledger-ingest/internal/domain"
	"ledger-ingest/pkg/logger"
)

type groupRepository struct {
	db DBTX
}

func (r *groupRepository) UpsertByName(ctx context.Context, groups []domain.Group) error {
	if len(groups) == 0 {
		return nil
	}

	query := fmt.Sprintf(`
		INSERT INTO groups (name, parent_group)
		VALUES %s
		ON CONFLICT (name) DO UPDATE SET parent_group = EXCLUDED.parent_group
	`, placeholders(len(groups), 2))

	args := make([]interface{}, 0, len(groups)*2)
	for _, g := range groups {
		args = append(args, g.Name, g.ParentGroup)
	}

	if _, err := r.db.ExecContext(ctx, query, args...); err != nil {
		logger.GetLogger().WithError(err).WithField("count", len(groups)).Error("Failed to upsert groups")
		return errors.Wrap(err, "upsert groups")
	}
	return nil
}
