package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// SourceSystem tags rows created outside any import.
const SourceSystem = "system"

// Customer is the identity record; Phone is the dedup key.
type Customer struct {
	ID         string    `json:"id" db:"id"`
	Name       string    `json:"name" db:"name"`
	Phone      string    `json:"phone" db:"phone"`
	Source     string    `json:"source" db:"source"`
	ExternalID *string   `json:"external_id,omitempty" db:"external_id"`
	CreatedAt  time.Time `json:"created_at" db:"created_at"`
}

// CustomerCandidate is a (name, phone) pair awaiting identity resolution.
type CustomerCandidate struct {
	Name       string
	Phone      string
	ExternalID *string
}

// LedgerEntry is one ledger line; VoucherNo is globally unique when present.
type LedgerEntry struct {
	ID         int64           `json:"id" db:"id"`
	CustomerID string          `json:"customer_id" db:"customer_id"`
	EntryDate  time.Time       `json:"entry_date" db:"entry_date"`
	Debit      decimal.Decimal `json:"debit" db:"debit"`
	Credit     decimal.Decimal `json:"credit" db:"credit"`
	Balance    decimal.Decimal `json:"balance" db:"balance"`
	VoucherNo  *string         `json:"voucher_no,omitempty" db:"voucher_no"`
}

// Bill is created once per sales voucher.
type Bill struct {
	ID         int64           `json:"id" db:"id"`
	CustomerID string          `json:"customer_id" db:"customer_id"`
	BillNo     string          `json:"bill_no" db:"bill_no"`
	BillDate   time.Time       `json:"bill_date" db:"bill_date"`
	Amount     decimal.Decimal `json:"amount" db:"amount"`
}

// Payment is created once per receipt voucher or paid invoice.
type Payment struct {
	ID          int64           `json:"id" db:"id"`
	CustomerID  string          `json:"customer_id" db:"customer_id"`
	PaymentDate time.Time       `json:"payment_date" db:"payment_date"`
	Amount      decimal.Decimal `json:"amount" db:"amount"`
	Mode        string          `json:"mode" db:"mode"`
	ReferenceNo *string         `json:"reference_no,omitempty" db:"reference_no"`
	Source      string          `json:"source" db:"source"`
}

// Group is an account group from a master export.
type Group struct {
	Name        string  `json:"name" db:"name"`
	ParentGroup *string `json:"parent_group,omitempty" db:"parent_group"`
}

// CustomerSummary aggregates a customer's activity for statement views.
type CustomerSummary struct {
	Customer       Customer        `json:"customer"`
	TotalPurchases decimal.Decimal `json:"total_purchases"`
	TotalPaid      decimal.Decimal `json:"total_paid"`
	CurrentBalance decimal.Decimal `json:"current_balance"`
	LedgerEntries  int             `json:"ledger_entries"`
}
