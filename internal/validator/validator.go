package validator

import (
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"ledger-ingest/internal/domain"
	"ledger-ingest/internal/normalize"
	"ledger-ingest/pkg/apperr"
	"ledger-ingest/pkg/logger"
)

// Row error messages.
const (
	ErrMissingName        = "Missing Name"
	ErrMissingMobile      = "Missing Mobile"
	ErrInvalidMobile      = "Invalid Mobile"
	ErrMissingProductName = "Missing Product Name"
	ErrInvalidPrice       = "Invalid Price"
	ErrInvalidStock       = "Invalid Stock"
	ErrMissingInvoice     = "Missing Invoice No or Amount"
	ErrInvalidAmount      = "Invalid Amount"
	ErrAllRowsFailed      = "All rows failed validation. Check file headers against requirements."
)

// GeneralRef tags the batch-level error row.
const GeneralRef = "GENERAL"

// headerRowOffset turns a zero-based data index into a sheet row number.
const headerRowOffset = 2

type CustomerRecord struct {
	Row        int
	Name       string
	Phone      string
	ExternalID *string
}

type ProductRecord struct {
	Row   int
	Name  string
	Code  *string
	Price decimal.Decimal
	Stock decimal.Decimal
}

// InvoiceRecord is one invoice line. Item fields are set only for
// item-wise exports.
type InvoiceRecord struct {
	Row          int
	InvoiceNo    string
	CustomerName string
	Date         time.Time
	TotalAmount  decimal.Decimal
	PaidAmount   decimal.Decimal
	Balance      decimal.Decimal
	Status       string
	ItemName     string
	Quantity     decimal.Decimal
	Rate         decimal.Decimal
}

// Result holds the accepted records of one import type plus the rejected rows.
type Result struct {
	Type      domain.ImportType
	Customers []CustomerRecord
	Products  []ProductRecord
	Invoices  []InvoiceRecord
	Errors    []domain.RowError
}

// Accepted counts the records that passed validation.
func (r *Result) Accepted() int {
	return len(r.Customers) + len(r.Products) + len(r.Invoices)
}

// Validator applies the alias tables and per-type required-field rules.
type Validator struct {
	now func() time.Time
}

func New() *Validator {
	return &Validator{now: time.Now}
}

// NewWithClock pins the date used for unparseable dates.
func NewWithClock(now func() time.Time) *Validator {
	return &Validator{now: now}
}

// Validate maps rows of a tabular import. Row errors are data in the result;
// the error return is reserved for an unknown import type.
func (v *Validator) Validate(t domain.ImportType, rows []domain.Row) (*Result, error) {
	table, ok := Aliases(t)
	if !ok {
		return nil, apperr.Validation(fmt.Sprintf("unknown import type: %s", t))
	}

	res := &Result{Type: t}
	headers := normalize.BuildHeaderMap(normalize.Headers(rows), table)
	if len(headers) == 0 {
		res.flagHeaderMismatch(len(rows))
		return res, nil
	}

	for i, raw := range rows {
		if len(raw) == 0 {
			continue
		}
		mapped := make(map[string]string, len(headers))
		for key, header := range headers {
			if s := normalize.String(raw[header]); s != "" {
				mapped[key] = s
			}
		}

		rowNo := i + headerRowOffset
		var problems []string
		switch t {
		case domain.ImportCustomers:
			rec, errs := mapCustomer(rowNo, mapped)
			if problems = errs; len(problems) == 0 {
				res.Customers = append(res.Customers, rec)
			}
		case domain.ImportProducts:
			rec, errs := mapProduct(rowNo, mapped)
			if problems = errs; len(problems) == 0 {
				res.Products = append(res.Products, rec)
			}
		case domain.ImportInvoices:
			rec, errs := v.mapInvoice(rowNo, mapped)
			if problems = errs; len(problems) == 0 {
				res.Invoices = append(res.Invoices, rec)
			}
		}
		if len(problems) > 0 {
			res.Errors = append(res.Errors, domain.RowError{
				Row:   rowNo,
				Error: strings.Join(problems, ", "),
				Raw:   raw,
			})
		}
	}

	res.flagHeaderMismatch(len(rows))
	return res, nil
}

// flagHeaderMismatch adds the batch-level error when input rows produced
// neither records nor row errors.
func (r *Result) flagHeaderMismatch(inputRows int) {
	if inputRows == 0 || r.Accepted() > 0 || len(r.Errors) > 0 {
		return
	}
	logger.GetLogger().WithField("type", r.Type).Warn("No row matched the expected headers")
	r.Errors = append(r.Errors, domain.RowError{
		Row:   domain.GeneralRow,
		Ref:   GeneralRef,
		Error: ErrAllRowsFailed,
	})
}

func mapCustomer(rowNo int, m map[string]string) (CustomerRecord, []string) {
	var problems []string
	rec := CustomerRecord{Row: rowNo, Name: m[FieldName]}
	if rec.Name == "" {
		problems = append(problems, ErrMissingName)
	}
	if m[FieldMobile] == "" {
		problems = append(problems, ErrMissingMobile)
	} else {
		rec.Phone = normalize.Phone(m[FieldMobile])
		if !normalize.ValidPhone(rec.Phone) {
			problems = append(problems, ErrInvalidMobile)
		}
	}
	if id := m[FieldExternalID]; id != "" {
		rec.ExternalID = &id
	}
	return rec, problems
}

func mapProduct(rowNo int, m map[string]string) (ProductRecord, []string) {
	var problems []string
	rec := ProductRecord{Row: rowNo, Name: m[FieldName]}
	if rec.Name == "" {
		problems = append(problems, ErrMissingProductName)
	}
	if code := m[FieldCode]; code != "" {
		rec.Code = &code
	}

	var err error
	if rec.Price, err = normalize.Amount(m[FieldPrice]); err != nil {
		problems = append(problems, ErrInvalidPrice)
	}
	if rec.Stock, err = normalize.Amount(m[FieldStock]); err != nil {
		problems = append(problems, ErrInvalidStock)
	}
	return rec, problems
}

func (v *Validator) mapInvoice(rowNo int, m map[string]string) (InvoiceRecord, []string) {
	rec := InvoiceRecord{
		Row:          rowNo,
		InvoiceNo:    m[FieldInvoiceNo],
		CustomerName: m[FieldCustomerName],
		Status:       m[FieldStatus],
		ItemName:     m[FieldItemName],
	}
	if rec.InvoiceNo == "" || m[FieldTotalAmount] == "" {
		return rec, []string{ErrMissingInvoice}
	}

	total, err := normalize.Amount(m[FieldTotalAmount])
	if err != nil {
		return rec, []string{ErrInvalidAmount}
	}
	rec.TotalAmount = total

	var ok bool
	rec.Date, ok = normalize.ParseDate(m[FieldDate], v.now())
	if !ok && m[FieldDate] != "" {
		logger.GetLogger().WithFields(map[string]interface{}{
			"row":   rowNo,
			"value": m[FieldDate],
		}).Warn("Unparseable invoice date, using today")
	}

	rec.PaidAmount = normalize.AmountOrZero(m[FieldPaidAmount])
	rec.Balance = normalize.AmountOrZero(m[FieldBalance])
	rec.Quantity = normalize.AmountOrZero(m[FieldQuantity])
	rec.Rate = normalize.AmountOrZero(m[FieldRate])
	return rec, nil
}
