// Package importlock serializes markup imports and tracks whether master
// data has been imported yet.
package importlock

import (
	"context"
)

// Guard owns the is_importing and first_import_done flags.
type Guard interface {
	// Acquire takes the import lock or fails with apperr.ImportInProgress.
	Acquire(ctx context.Context) error
	Release(ctx context.Context) error
	MastersDone(ctx context.Context) (bool, error)
	MarkMastersDone(ctx context.Context) error
}
