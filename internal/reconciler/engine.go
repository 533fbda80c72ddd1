package reconciler

import (
	"context"
	"strings"

	"github.com/shopspring/decimal"

	"ledger-ingest/internal/domain"
	"ledger-ingest/internal/repository"
	"ledger-ingest/internal/validator"
	"ledger-ingest/pkg/logger"
)

// Payment mode recorded when the export carries none.
const DefaultPaymentMode = "cash"

// Engine applies validated batches to the store.
type Engine struct {
	batchSize int
	resolver  *IdentityResolver
}

func NewEngine(batchSize int) *Engine {
	if batchSize <= 0 {
		batchSize = DefaultBatchSize
	}
	return &Engine{
		batchSize: batchSize,
		resolver:  NewIdentityResolver(batchSize),
	}
}

// Resolver exposes the identity resolver the engine uses.
func (e *Engine) Resolver() *IdentityResolver {
	return e.resolver
}

// MasterOutcome counts what a master batch changed.
type MasterOutcome struct {
	Groups     int
	Ledgers    int
	Duplicates int
	Errors     int
}

// ApplyMasters upserts groups by name and resolves ledger customers by
// phone, chunk by chunk. Failed chunks count toward Errors.
func (e *Engine) ApplyMasters(ctx context.Context, store repository.Store, source string, set validator.MasterSet) MasterOutcome {
	var out MasterOutcome

	for i, chunk := range chunks(set.Groups, e.batchSize) {
		if err := store.Groups().UpsertByName(ctx, chunk); err != nil {
			logger.GetLogger().WithError(err).WithFields(map[string]interface{}{
				"chunk": i,
				"size":  len(chunk),
			}).Warn("Group chunk failed")
			out.Errors += len(chunk)
			continue
		}
		out.Groups += len(chunk)
	}

	res := e.resolver.Resolve(ctx, store.Customers(), source, set.Candidates)
	out.Ledgers = res.Resolved()
	out.Duplicates = res.Duplicates
	out.Errors += res.Failed
	return out
}

// VoucherOutcome counts what a voucher batch changed. Processed holds new
// ledger entries, Duplicates entries that replaced an earlier import of the
// same voucher number.
type VoucherOutcome struct {
	Processed      int
	Duplicates     int
	SkippedInvalid int
	Errors         int
}

// ApplyVouchers resolves each voucher to an existing customer by phone and
// upserts ledger entries keyed by voucher number. Sales vouchers also upsert
// a bill, receipts add a payment. Each chunk commits on its own; a failed
// chunk counts toward Errors and the next chunk still runs.
func (e *Engine) ApplyVouchers(ctx context.Context, store repository.Store, source string, records []validator.VoucherRecord) (VoucherOutcome, error) {
	var out VoucherOutcome
	if len(records) == 0 {
		return out, nil
	}

	phones := make([]string, 0, len(records))
	seen := make(map[string]struct{}, len(records))
	for _, r := range records {
		if _, ok := seen[r.Phone]; !ok {
			seen[r.Phone] = struct{}{}
			phones = append(phones, r.Phone)
		}
	}

	ids := make(map[string]string, len(phones))
	unresolved := make(map[string]struct{})
	for i, chunk := range chunks(phones, e.batchSize) {
		found, err := store.Customers().FindIDsByPhone(ctx, chunk)
		if err != nil {
			logger.GetLogger().WithError(err).WithFields(map[string]interface{}{
				"chunk": i,
				"size":  len(chunk),
			}).Warn("Voucher customer lookup failed")
			for _, phone := range chunk {
				unresolved[phone] = struct{}{}
			}
			continue
		}
		for phone, id := range found {
			ids[phone] = id
		}
	}

	// last occurrence of a voucher number wins, earlier ones are duplicates
	resolved := make([]voucherLine, 0, len(records))
	position := make(map[string]int, len(records))
	for _, r := range records {
		if _, failed := unresolved[r.Phone]; failed {
			out.Errors++
			continue
		}
		customerID, ok := ids[r.Phone]
		if !ok {
			out.SkippedInvalid++
			continue
		}
		line := voucherLine{record: r, customerID: customerID}
		if i, dup := position[r.VoucherNo]; dup {
			resolved[i] = line
			out.Duplicates++
			continue
		}
		position[r.VoucherNo] = len(resolved)
		resolved = append(resolved, line)
	}

	for i, chunk := range chunks(resolved, e.batchSize) {
		var inserted, replaced int
		err := store.WithTx(ctx, func(tx repository.Store) error {
			var err error
			inserted, replaced, err = e.applyVoucherChunk(ctx, tx, source, chunk)
			return err
		})
		if err != nil {
			logger.GetLogger().WithError(err).WithFields(map[string]interface{}{
				"chunk": i,
				"size":  len(chunk),
			}).Warn("Voucher chunk failed")
			out.Errors += len(chunk)
			continue
		}
		out.Processed += inserted
		out.Duplicates += replaced
	}
	return out, nil
}

type voucherLine struct {
	record     validator.VoucherRecord
	customerID string
}

func (e *Engine) applyVoucherChunk(ctx context.Context, tx repository.Store, source string, lines []voucherLine) (int, int, error) {
	entries := make([]domain.LedgerEntry, 0, len(lines))
	var bills []domain.Bill
	var receipts []domain.Payment

	for _, l := range lines {
		r := l.record
		voucherNo := r.VoucherNo
		entries = append(entries, domain.LedgerEntry{
			CustomerID: l.customerID,
			EntryDate:  r.Date,
			Debit:      r.Debit,
			Credit:     r.Credit,
			Balance:    r.Balance,
			VoucherNo:  &voucherNo,
		})

		switch voucherKind(r.VoucherType) {
		case kindSales:
			bills = append(bills, domain.Bill{
				CustomerID: l.customerID,
				BillNo:     r.VoucherNo,
				BillDate:   r.Date,
				Amount:     firstNonZero(r.Amount, r.Debit, r.Credit),
			})
		case kindReceipt:
			ref := r.Reference
			if ref == "" {
				ref = r.VoucherNo
			}
			mode := strings.ToLower(r.Mode)
			if mode == "" {
				mode = DefaultPaymentMode
			}
			receipts = append(receipts, domain.Payment{
				CustomerID:  l.customerID,
				PaymentDate: r.Date,
				Amount:      firstNonZero(r.Amount, r.Credit, r.Debit),
				Mode:        mode,
				ReferenceNo: &ref,
				Source:      source,
			})
		}
	}

	inserted, replaced, err := tx.Ledger().UpsertByVoucher(ctx, entries)
	if err != nil {
		return 0, 0, err
	}
	if err := tx.Bills().UpsertByBillNo(ctx, bills); err != nil {
		return 0, 0, err
	}
	for i := range receipts {
		if _, err := recordPayment(ctx, tx, &receipts[i]); err != nil {
			return 0, 0, err
		}
	}
	return inserted, replaced, nil
}

// recordPayment inserts a payment unless one with the same reference is
// already recorded for the customer and source.
func recordPayment(ctx context.Context, tx repository.Store, p *domain.Payment) (bool, error) {
	if p.ReferenceNo != nil {
		exists, err := tx.Payments().ExistsByReference(ctx, p.CustomerID, *p.ReferenceNo, p.Source)
		if err != nil {
			return false, err
		}
		if exists {
			return false, nil
		}
	}
	if err := tx.Payments().Create(ctx, p); err != nil {
		return false, err
	}
	return true, nil
}

type kind int

const (
	kindOther kind = iota
	kindSales
	kindReceipt
)

func voucherKind(voucherType string) kind {
	t := strings.ToLower(voucherType)
	switch {
	case strings.Contains(t, "return"), strings.Contains(t, "note"):
		return kindOther
	case strings.Contains(t, "sale"):
		return kindSales
	case strings.Contains(t, "receipt"):
		return kindReceipt
	}
	return kindOther
}

func firstNonZero(vals ...decimal.Decimal) decimal.Decimal {
	for _, v := range vals {
		if !v.IsZero() {
			return v.Abs()
		}
	}
	return decimal.Zero
}
