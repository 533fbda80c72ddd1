package reconciler

import (
	"context"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"

	"ledger-ingest/internal/domain"
	"ledger-ingest/internal/repository"
	"ledger-ingest/internal/validator"
)

// Staged sync row error messages.
const (
	ErrDuplicateCustomer = "Duplicate Customer (Mobile)"
	ErrDuplicateProduct  = "Duplicate Product"
	ErrDuplicateInvoice  = "Duplicate Invoice (Skipped)"
	ErrMissingPartyName  = "Missing Party Name"
	ErrCustomerNotFound  = "Customer not found: %s"
)

// InvoicePaymentPrefix prefixes the synthetic payment reference of an
// invoice paid at sale time.
const InvoicePaymentPrefix = "INV-"

// StagedOutcome is the result of applying one staged import.
type StagedOutcome struct {
	Processed int
	Errors    []domain.RowError
}

// ApplyStaged writes the accepted records of a staged import. It is meant to
// run inside the caller's transaction: any storage error is returned and the
// whole sync rolls back. Duplicates and unknown customers become row errors.
func (e *Engine) ApplyStaged(ctx context.Context, tx repository.Store, source string, res *validator.Result) (StagedOutcome, error) {
	switch res.Type {
	case domain.ImportCustomers:
		return e.applyCustomers(ctx, tx, source, res.Customers)
	case domain.ImportProducts:
		return applyProducts(ctx, tx, source, res.Products)
	case domain.ImportInvoices:
		return applyInvoices(ctx, tx, source, res.Invoices)
	}
	return StagedOutcome{}, nil
}

func (e *Engine) applyCustomers(ctx context.Context, tx repository.Store, source string, records []validator.CustomerRecord) (StagedOutcome, error) {
	var out StagedOutcome

	firstRow := make(map[string]int, len(records))
	candidates := make([]domain.CustomerCandidate, 0, len(records))
	for _, r := range records {
		if _, dup := firstRow[r.Phone]; dup {
			out.Errors = append(out.Errors, domain.RowError{Row: r.Row, Ref: r.Name, Error: ErrDuplicateCustomer})
			continue
		}
		firstRow[r.Phone] = r.Row
		candidates = append(candidates, domain.CustomerCandidate{Name: r.Name, Phone: r.Phone, ExternalID: r.ExternalID})
	}

	res, err := e.resolver.ResolveStrict(ctx, tx.Customers(), source, candidates)
	if err != nil {
		return out, err
	}
	for _, c := range candidates {
		if res.Created[c.Phone] {
			out.Processed++
			continue
		}
		out.Errors = append(out.Errors, domain.RowError{Row: firstRow[c.Phone], Ref: c.Name, Error: ErrDuplicateCustomer})
	}
	return out, nil
}

func applyProducts(ctx context.Context, tx repository.Store, source string, records []validator.ProductRecord) (StagedOutcome, error) {
	var out StagedOutcome
	seen := make(map[string]struct{}, len(records))

	for _, r := range records {
		key := "name:" + r.Name
		if r.Code != nil {
			key = "code:" + *r.Code
		}
		if _, dup := seen[key]; dup {
			out.Errors = append(out.Errors, domain.RowError{Row: r.Row, Ref: r.Name, Error: ErrDuplicateProduct})
			continue
		}
		seen[key] = struct{}{}

		exists, err := tx.Products().Exists(ctx, r.Code, r.Name)
		if err != nil {
			return out, err
		}
		if exists {
			out.Errors = append(out.Errors, domain.RowError{Row: r.Row, Ref: r.Name, Error: ErrDuplicateProduct})
			continue
		}

		if err := tx.Products().Create(ctx, &domain.Product{
			Name:   r.Name,
			Code:   r.Code,
			Price:  r.Price,
			Stock:  r.Stock,
			Source: source,
		}); err != nil {
			return out, err
		}
		out.Processed++
	}
	return out, nil
}

func applyInvoices(ctx context.Context, tx repository.Store, source string, records []validator.InvoiceRecord) (StagedOutcome, error) {
	var out StagedOutcome

	for _, group := range groupInvoiceLines(records) {
		head := group[0]
		if strings.TrimSpace(head.CustomerName) == "" {
			out.Errors = append(out.Errors, domain.RowError{Row: head.Row, Ref: head.InvoiceNo, Error: ErrMissingPartyName})
			continue
		}

		customer, err := tx.Customers().FindByName(ctx, head.CustomerName)
		if err != nil {
			return out, err
		}
		if customer == nil {
			out.Errors = append(out.Errors, domain.RowError{
				Row:   head.Row,
				Ref:   head.InvoiceNo,
				Error: fmt.Sprintf(ErrCustomerNotFound, head.CustomerName),
			})
			continue
		}

		exists, err := tx.Invoices().Exists(ctx, head.InvoiceNo, customer.ID, source)
		if err != nil {
			return out, err
		}
		if exists {
			out.Errors = append(out.Errors, domain.RowError{Row: head.Row, Ref: head.InvoiceNo, Error: ErrDuplicateInvoice})
			continue
		}

		inv := &domain.Invoice{
			InvoiceNo:   head.InvoiceNo,
			CustomerID:  customer.ID,
			Date:        head.Date,
			TotalAmount: head.TotalAmount,
			Status:      DeriveInvoiceStatus(head.Status, head.PaidAmount, head.Balance),
			Source:      source,
			Items:       invoiceItems(group),
		}
		if err := tx.Invoices().Create(ctx, inv); err != nil {
			return out, err
		}

		if head.PaidAmount.IsPositive() {
			ref := InvoicePaymentPrefix + head.InvoiceNo
			if _, err := recordPayment(ctx, tx, &domain.Payment{
				CustomerID:  customer.ID,
				PaymentDate: head.Date,
				Amount:      head.PaidAmount,
				Mode:        DefaultPaymentMode,
				ReferenceNo: &ref,
				Source:      source,
			}); err != nil {
				return out, err
			}
		}
		out.Processed++
	}
	return out, nil
}

// groupInvoiceLines folds consecutive item lines of one invoice (same number
// and customer) together, as item-wise exports repeat the header per item.
// Summary lines without an item name always start their own group.
func groupInvoiceLines(records []validator.InvoiceRecord) [][]validator.InvoiceRecord {
	var groups [][]validator.InvoiceRecord
	for _, r := range records {
		if n := len(groups); n > 0 && r.ItemName != "" {
			last := groups[n-1][0]
			if last.ItemName != "" && last.InvoiceNo == r.InvoiceNo && sameName(last.CustomerName, r.CustomerName) {
				groups[n-1] = append(groups[n-1], r)
				continue
			}
		}
		groups = append(groups, []validator.InvoiceRecord{r})
	}
	return groups
}

func invoiceItems(lines []validator.InvoiceRecord) []domain.InvoiceItem {
	var items []domain.InvoiceItem
	for _, l := range lines {
		if l.ItemName == "" {
			continue
		}
		amount := l.Quantity.Mul(l.Rate)
		if amount.IsZero() && len(lines) == 1 {
			amount = l.TotalAmount
		}
		items = append(items, domain.InvoiceItem{
			Name:     l.ItemName,
			Quantity: l.Quantity,
			Rate:     l.Rate,
			Amount:   amount.Round(2),
		})
	}
	return items
}

// DeriveInvoiceStatus prefers an explicit status column; otherwise an
// outstanding balance with nothing paid is unpaid, any other outstanding
// balance is partial, and a settled invoice is paid.
func DeriveInvoiceStatus(explicit string, paid, balance decimal.Decimal) domain.InvoiceStatus {
	if s, ok := domain.ParseInvoiceStatus(explicit); ok {
		return s
	}
	switch {
	case balance.IsPositive() && !paid.IsPositive():
		return domain.InvoiceUnpaid
	case balance.IsPositive():
		return domain.InvoicePartial
	default:
		return domain.InvoicePaid
	}
}

func sameName(a, b string) bool {
	return strings.EqualFold(strings.TrimSpace(a), strings.TrimSpace(b))
}
