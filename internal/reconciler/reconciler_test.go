package reconciler

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ledger-ingest/internal/domain"
	"ledger-ingest/internal/repository/memstore"
	"ledger-ingest/internal/validator"
)

var day = time.Date(2024, 4, 1, 0, 0, 0, 0, time.UTC)

func dec(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func seedCustomer(t *testing.T, s *memstore.Store, name, phone string) string {
	t.Helper()
	res, err := s.Customers().UpsertByPhone(context.Background(), domain.SourceSystem, []domain.CustomerCandidate{{Name: name, Phone: phone}})
	require.NoError(t, err)
	return res[0].ID
}

func TestResolver_DedupesAndReuses(t *testing.T) {
	ctx := context.Background()
	s := memstore.New()
	existing := seedCustomer(t, s, "Ravi", "9876543210")

	res := NewIdentityResolver(2).Resolve(ctx, s.Customers(), "tally", []domain.CustomerCandidate{
		{Name: "Ravi T", Phone: "9876543210"},
		{Name: "Sita", Phone: "9876543211"},
		{Name: "Sita again", Phone: "9876543211"},
		{Name: "Gopal", Phone: "9876543212"},
	})

	assert.Equal(t, 3, res.Resolved())
	assert.Equal(t, 1, res.Duplicates)
	assert.Equal(t, existing, res.IDs["9876543210"])
	assert.False(t, res.Created["9876543210"])
	assert.True(t, res.Created["9876543211"])
	assert.Equal(t, 3, s.Counts().Customers)
}

func TestResolver_FailedChunkIsCounted(t *testing.T) {
	ctx := context.Background()
	s := memstore.New()
	calls := 0
	s.SetFailureHook(func(op string) error {
		if op != "customers.upsert" {
			return nil
		}
		calls++
		if calls == 1 {
			return errors.New("connection reset")
		}
		return nil
	})

	res := NewIdentityResolver(2).Resolve(ctx, s.Customers(), "tally", []domain.CustomerCandidate{
		{Name: "A", Phone: "9000000001"},
		{Name: "B", Phone: "9000000002"},
		{Name: "C", Phone: "9000000003"},
	})
	assert.Equal(t, 2, res.Failed)
	assert.Equal(t, 1, res.Resolved())

	_, err := NewIdentityResolver(2).ResolveStrict(ctx, s.Customers(), "tally", []domain.CustomerCandidate{{Name: "D", Phone: "9000000004"}})
	assert.NoError(t, err)
}

func vouchers() []validator.VoucherRecord {
	return []validator.VoucherRecord{
		{Phone: "9876543210", VoucherNo: "S-1", VoucherType: "Sales", Date: day, Debit: dec("1180")},
		{Phone: "9876543210", VoucherNo: "R-1", VoucherType: "Receipt", Date: day, Credit: dec("500")},
		{Phone: "9999999999", VoucherNo: "S-2", VoucherType: "Sales", Date: day, Debit: dec("10")},
	}
}

func TestApplyVouchers_Idempotent(t *testing.T) {
	ctx := context.Background()
	s := memstore.New()
	custID := seedCustomer(t, s, "Ravi", "9876543210")
	engine := NewEngine(10)

	first, err := engine.ApplyVouchers(ctx, s, "tally", vouchers())
	require.NoError(t, err)
	assert.Equal(t, VoucherOutcome{Processed: 2, SkippedInvalid: 1}, first)

	second, err := engine.ApplyVouchers(ctx, s, "tally", vouchers())
	require.NoError(t, err)
	assert.Equal(t, VoucherOutcome{Duplicates: 2, SkippedInvalid: 1}, second)

	counts := s.Counts()
	assert.Equal(t, 2, counts.Ledger)
	assert.Equal(t, 1, counts.Bills)
	assert.Equal(t, 1, counts.Payments)

	payments, err := s.Payments().ListByCustomer(ctx, custID, 10)
	require.NoError(t, err)
	require.Len(t, payments, 1)
	assert.Equal(t, "R-1", *payments[0].ReferenceNo)
	assert.Equal(t, DefaultPaymentMode, payments[0].Mode)
	assert.True(t, payments[0].Amount.Equal(dec("500")))
}

func TestApplyVouchers_RepeatedVoucherInBatch(t *testing.T) {
	ctx := context.Background()
	s := memstore.New()
	custID := seedCustomer(t, s, "Ravi", "9876543210")

	out, err := NewEngine(10).ApplyVouchers(ctx, s, "tally", []validator.VoucherRecord{
		{Phone: "9876543210", VoucherNo: "J-1", Date: day, Debit: dec("1")},
		{Phone: "9876543210", VoucherNo: "J-1", Date: day, Debit: dec("2")},
	})
	require.NoError(t, err)
	assert.Equal(t, 1, out.Processed)
	assert.Equal(t, 1, out.Duplicates)

	entries, err := s.Ledger().ListByCustomer(ctx, custID, 10)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.True(t, entries[0].Debit.Equal(dec("2")))
}

func TestApplyVouchers_ChunkFailureIsIsolated(t *testing.T) {
	ctx := context.Background()
	s := memstore.New()
	seedCustomer(t, s, "Ravi", "9876543210")
	calls := 0
	s.SetFailureHook(func(op string) error {
		if op == "ledger.upsert" {
			calls++
			if calls == 1 {
				return errors.New("deadlock detected")
			}
		}
		return nil
	})

	records := []validator.VoucherRecord{
		{Phone: "9876543210", VoucherNo: "J-1", Date: day},
		{Phone: "9876543210", VoucherNo: "J-2", Date: day},
		{Phone: "9876543210", VoucherNo: "J-3", Date: day},
	}
	out, err := NewEngine(2).ApplyVouchers(ctx, s, "tally", records)
	require.NoError(t, err)
	assert.Equal(t, 2, out.Errors)
	assert.Equal(t, 1, out.Processed)
	assert.Equal(t, 1, s.Counts().Ledger)
}

func TestApplyMasters(t *testing.T) {
	ctx := context.Background()
	s := memstore.New()
	parent := "Current Assets"

	out := NewEngine(10).ApplyMasters(ctx, s, "tally", validator.MasterSet{
		Groups: []domain.Group{{Name: "Sundry Debtors", ParentGroup: &parent}},
		Candidates: []domain.CustomerCandidate{
			{Name: "Ravi", Phone: "9876543210"},
			{Name: "Ravi dup", Phone: "9876543210"},
		},
	})

	assert.Equal(t, MasterOutcome{Groups: 1, Ledgers: 1, Duplicates: 1}, out)
	assert.Equal(t, 1, s.Counts().Groups)
}

func TestApplyStaged_Customers(t *testing.T) {
	ctx := context.Background()
	s := memstore.New()
	seedCustomer(t, s, "Old", "9000000000")

	out, err := NewEngine(10).ApplyStaged(ctx, s, "vyapar", &validator.Result{
		Type: domain.ImportCustomers,
		Customers: []validator.CustomerRecord{
			{Row: 2, Name: "Ravi", Phone: "9876543210"},
			{Row: 3, Name: "Ravi again", Phone: "9876543210"},
			{Row: 4, Name: "Old again", Phone: "9000000000"},
		},
	})
	require.NoError(t, err)

	assert.Equal(t, 1, out.Processed)
	require.Len(t, out.Errors, 2)
	assert.Equal(t, domain.RowError{Row: 3, Ref: "Ravi again", Error: ErrDuplicateCustomer}, out.Errors[0])
	assert.Equal(t, domain.RowError{Row: 4, Ref: "Old again", Error: ErrDuplicateCustomer}, out.Errors[1])
}

func TestApplyStaged_Products(t *testing.T) {
	ctx := context.Background()
	s := memstore.New()
	code := "C-1"

	res := &validator.Result{
		Type: domain.ImportProducts,
		Products: []validator.ProductRecord{
			{Row: 2, Name: "Cement", Code: &code, Price: dec("350")},
			{Row: 3, Name: "Cement 50kg", Code: &code},
			{Row: 4, Name: "Sand"},
		},
	}
	out, err := NewEngine(10).ApplyStaged(ctx, s, "vyapar", res)
	require.NoError(t, err)
	assert.Equal(t, 2, out.Processed)
	require.Len(t, out.Errors, 1)
	assert.Equal(t, ErrDuplicateProduct, out.Errors[0].Error)

	again, err := NewEngine(10).ApplyStaged(ctx, s, "vyapar", res)
	require.NoError(t, err)
	assert.Zero(t, again.Processed)
	assert.Len(t, again.Errors, 3)
}

func TestApplyStaged_Invoices(t *testing.T) {
	ctx := context.Background()
	s := memstore.New()
	custID := seedCustomer(t, s, "Ravi Traders", "9876543210")

	res := &validator.Result{
		Type: domain.ImportInvoices,
		Invoices: []validator.InvoiceRecord{
			{Row: 2, InvoiceNo: "101", CustomerName: " ravi traders", Date: day, TotalAmount: dec("1180"), PaidAmount: dec("500"), Balance: dec("680"), ItemName: "Cement", Quantity: dec("2"), Rate: dec("400")},
			{Row: 3, InvoiceNo: "101", CustomerName: "Ravi Traders", Date: day, TotalAmount: dec("1180"), PaidAmount: dec("500"), Balance: dec("680"), ItemName: "Sand", Quantity: dec("1"), Rate: dec("380")},
			{Row: 4, InvoiceNo: "102", CustomerName: "Ghost", Date: day, TotalAmount: dec("10")},
			{Row: 5, InvoiceNo: "103", Date: day, TotalAmount: dec("10")},
		},
	}

	out, err := NewEngine(10).ApplyStaged(ctx, s, "vyapar", res)
	require.NoError(t, err)
	assert.Equal(t, 1, out.Processed)
	require.Len(t, out.Errors, 2)
	assert.Equal(t, "Customer not found: Ghost", out.Errors[0].Error)
	assert.Equal(t, "102", out.Errors[0].Ref)
	assert.Equal(t, ErrMissingPartyName, out.Errors[1].Error)

	invoices, err := s.Invoices().ListByCustomer(ctx, custID, 10)
	require.NoError(t, err)
	require.Len(t, invoices, 1)
	assert.Equal(t, domain.InvoicePartial, invoices[0].Status)

	payments, err := s.Payments().ListByCustomer(ctx, custID, 10)
	require.NoError(t, err)
	require.Len(t, payments, 1)
	assert.Equal(t, "INV-101", *payments[0].ReferenceNo)

	again, err := NewEngine(10).ApplyStaged(ctx, s, "vyapar", res)
	require.NoError(t, err)
	assert.Zero(t, again.Processed)
	assert.Equal(t, ErrDuplicateInvoice, again.Errors[0].Error)
	assert.Equal(t, 1, s.Counts().Invoices)
	assert.Equal(t, 1, s.Counts().Payments)
}

func TestDeriveInvoiceStatus(t *testing.T) {
	tests := []struct {
		explicit string
		paid     string
		balance  string
		want     domain.InvoiceStatus
	}{
		{"Paid", "0", "100", domain.InvoicePaid},
		{"", "0", "100", domain.InvoiceUnpaid},
		{"", "50", "50", domain.InvoicePartial},
		{"", "100", "0", domain.InvoicePaid},
		{"weird", "0", "0", domain.InvoicePaid},
	}
	for _, tt := range tests {
		got := DeriveInvoiceStatus(tt.explicit, dec(tt.paid), dec(tt.balance))
		assert.Equal(t, tt.want, got, "%+v", tt)
	}
}

func TestInvoiceItems(t *testing.T) {
	items := invoiceItems([]validator.InvoiceRecord{
		{ItemName: "Cement", Quantity: dec("2"), Rate: dec("400.5")},
		{ItemName: ""},
	})
	require.Len(t, items, 1)
	assert.True(t, items[0].Amount.Equal(dec("801")))
}

func TestApplyStaged_RepeatedSummaryRowIsDuplicate(t *testing.T) {
	ctx := context.Background()
	s := memstore.New()
	seedCustomer(t, s, "Ravi", "9876543210")

	out, err := NewEngine(10).ApplyStaged(ctx, s, "vyapar", &validator.Result{
		Type: domain.ImportInvoices,
		Invoices: []validator.InvoiceRecord{
			{Row: 2, InvoiceNo: "101", CustomerName: "Ravi", Date: day, TotalAmount: dec("100")},
			{Row: 3, InvoiceNo: "101", CustomerName: "Ravi", Date: day, TotalAmount: dec("250")},
		},
	})
	require.NoError(t, err)
	assert.Equal(t, 1, out.Processed)
	require.Len(t, out.Errors, 1)
	assert.Equal(t, 3, out.Errors[0].Row)
	assert.Equal(t, "101", out.Errors[0].Ref)
	assert.Equal(t, ErrDuplicateInvoice, out.Errors[0].Error)
	assert.Equal(t, 1, s.Counts().Invoices)
}

func TestGroupInvoiceLines(t *testing.T) {
	groups := groupInvoiceLines([]validator.InvoiceRecord{
		{InvoiceNo: "101", CustomerName: "Ravi", ItemName: "Cement"},
		{InvoiceNo: "101", CustomerName: "ravi ", ItemName: "Sand"},
		{InvoiceNo: "101", CustomerName: "Ravi"},
		{InvoiceNo: "101", CustomerName: "Ravi"},
		{InvoiceNo: "102", CustomerName: "Ravi", ItemName: "Cement"},
	})
	require.Len(t, groups, 4)
	assert.Len(t, groups[0], 2)
	assert.Len(t, groups[1], 1)
	assert.Len(t, groups[2], 1)
	assert.Len(t, groups[3], 1)
}

func TestApplyVouchers_LookupFailureIsIsolated(t *testing.T) {
	ctx := context.Background()
	s := memstore.New()
	seedCustomer(t, s, "Ravi", "9876543210")
	seedCustomer(t, s, "Asha", "9000000001")
	calls := 0
	s.SetFailureHook(func(op string) error {
		if op == "customers.lookup" {
			calls++
			if calls == 1 {
				return errors.New("connection reset")
			}
		}
		return nil
	})

	out, err := NewEngine(1).ApplyVouchers(ctx, s, "tally", []validator.VoucherRecord{
		{Phone: "9876543210", VoucherNo: "J-1", Date: day},
		{Phone: "9876543210", VoucherNo: "J-2", Date: day},
		{Phone: "9000000001", VoucherNo: "J-3", Date: day},
	})
	require.NoError(t, err)
	assert.Equal(t, 2, out.Errors)
	assert.Equal(t, 1, out.Processed)
	assert.Zero(t, out.SkippedInvalid)
	assert.Equal(t, 1, s.Counts().Ledger)
}
