package domain

import (
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

type InvoiceStatus string

const (
	InvoicePaid    InvoiceStatus = "paid"
	InvoiceUnpaid  InvoiceStatus = "unpaid"
	InvoicePartial InvoiceStatus = "partial"
)

// ParseInvoiceStatus accepts the spellings billing exports use.
func ParseInvoiceStatus(s string) (InvoiceStatus, bool) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "paid", "fully paid":
		return InvoicePaid, true
	case "unpaid", "due", "overdue":
		return InvoiceUnpaid, true
	case "partial", "partially paid", "partial paid":
		return InvoicePartial, true
	}
	return "", false
}

// Invoice is unique per (InvoiceNo, CustomerID, Source).
type Invoice struct {
	ID          int64           `json:"id" db:"id"`
	InvoiceNo   string          `json:"invoice_no" db:"invoice_no"`
	CustomerID  string          `json:"customer_id" db:"customer_id"`
	Date        time.Time       `json:"date" db:"date"`
	TotalAmount decimal.Decimal `json:"total_amount" db:"total_amount"`
	Status      InvoiceStatus   `json:"status" db:"status"`
	Source      string          `json:"source" db:"source"`
	ExternalID  *string         `json:"external_id,omitempty" db:"external_id"`
	Items       []InvoiceItem   `json:"items,omitempty"`
	CreatedAt   time.Time       `json:"created_at" db:"created_at"`
}

type InvoiceItem struct {
	ID        int64           `json:"id" db:"id"`
	InvoiceID int64           `json:"invoice_id" db:"invoice_id"`
	Name      string          `json:"name" db:"name"`
	Quantity  decimal.Decimal `json:"quantity" db:"quantity"`
	Rate      decimal.Decimal `json:"rate" db:"rate"`
	Amount    decimal.Decimal `json:"amount" db:"amount"`
}

// Product is imported from the staged products sheet.
type Product struct {
	ID     string          `json:"id" db:"id"`
	Name   string          `json:"name" db:"name"`
	Code   *string         `json:"code,omitempty" db:"code"`
	Price  decimal.Decimal `json:"price" db:"price"`
	Stock  decimal.Decimal `json:"stock" db:"stock"`
	Source string          `json:"source" db:"source"`
}
