// Package reconciler applies validated import records to the canonical
// customer ledger: identity resolution, voucher upserts and staged sync.
package reconciler

import (
	"context"

	"ledger-ingest/internal/domain"
	"ledger-ingest/internal/repository"
	"ledger-ingest/pkg/logger"
)

// DefaultBatchSize is the chunk size used when none is configured.
const DefaultBatchSize = 500

// Resolution maps each distinct phone of a resolver call to its customer.
type Resolution struct {
	IDs        map[string]string
	Created    map[string]bool
	Duplicates int
	Failed     int
}

// Resolved counts phones that ended up with a customer id.
func (r *Resolution) Resolved() int {
	return len(r.IDs)
}

// IdentityResolver upserts customers by normalized phone. Concurrent
// resolvers racing on one phone are settled by the unique constraint on
// customers.phone, not here.
type IdentityResolver struct {
	batchSize int
}

func NewIdentityResolver(batchSize int) *IdentityResolver {
	if batchSize <= 0 {
		batchSize = DefaultBatchSize
	}
	return &IdentityResolver{batchSize: batchSize}
}

// Resolve upserts candidates chunk by chunk. A failed chunk is counted in
// Failed and the remaining chunks still run.
func (r *IdentityResolver) Resolve(ctx context.Context, customers repository.CustomerRepository, source string, candidates []domain.CustomerCandidate) *Resolution {
	res, _ := r.resolve(ctx, customers, source, candidates, false)
	return res
}

// ResolveStrict stops at the first failed chunk and returns its error, for
// callers running inside a single transaction.
func (r *IdentityResolver) ResolveStrict(ctx context.Context, customers repository.CustomerRepository, source string, candidates []domain.CustomerCandidate) (*Resolution, error) {
	return r.resolve(ctx, customers, source, candidates, true)
}

func (r *IdentityResolver) resolve(ctx context.Context, customers repository.CustomerRepository, source string, candidates []domain.CustomerCandidate, strict bool) (*Resolution, error) {
	res := &Resolution{
		IDs:     make(map[string]string),
		Created: make(map[string]bool),
	}

	unique := make([]domain.CustomerCandidate, 0, len(candidates))
	seen := make(map[string]struct{}, len(candidates))
	for _, c := range candidates {
		if _, dup := seen[c.Phone]; dup {
			res.Duplicates++
			continue
		}
		seen[c.Phone] = struct{}{}
		unique = append(unique, c)
	}

	for i, chunk := range chunks(unique, r.batchSize) {
		resolved, err := customers.UpsertByPhone(ctx, source, chunk)
		if err != nil {
			if strict {
				return res, err
			}
			logger.GetLogger().WithError(err).WithFields(map[string]interface{}{
				"chunk": i,
				"size":  len(chunk),
			}).Warn("Customer chunk failed")
			res.Failed += len(chunk)
			continue
		}
		for _, rc := range resolved {
			res.IDs[rc.Phone] = rc.ID
			if rc.Created {
				res.Created[rc.Phone] = true
			}
		}
	}
	return res, nil
}

func chunks[T any](items []T, size int) [][]T {
	if size <= 0 {
		size = DefaultBatchSize
	}
	var out [][]T
	for start := 0; start < len(items); start += size {
		end := start + size
		if end > len(items) {
			end = len(items)
		}
		out = append(out, items[start:end])
	}
	return out
}
