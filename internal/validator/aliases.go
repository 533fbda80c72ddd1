// Package validator maps loosely-typed parsed rows onto typed import records
// and collects per-row validation errors.
package validator

import (
	"ledger-ingest/internal/domain"
	"ledger-ingest/internal/normalize"
)

// Canonical field keys.
const (
	FieldName         = "name"
	FieldMobile       = "mobile"
	FieldExternalID   = "externalId"
	FieldCode         = "code"
	FieldPrice        = "price"
	FieldStock        = "stock"
	FieldInvoiceNo    = "invoiceNo"
	FieldCustomerName = "customerName"
	FieldDate         = "date"
	FieldTotalAmount  = "totalAmount"
	FieldPaidAmount   = "paidAmount"
	FieldBalance      = "balanceAmount"
	FieldStatus       = "status"
	FieldItemName     = "itemName"
	FieldQuantity     = "quantity"
	FieldRate         = "rate"
)

var customerAliases = normalize.AliasTable{
	{Key: FieldName, Names: []string{"Party Name", "Customer Name", "Name"}},
	{Key: FieldMobile, Names: []string{"Mobile No", "Phone Number", "Contact", "Mobile", "Phone"}},
	{Key: FieldExternalID, Names: []string{"Party ID", "Customer ID", "External ID"}},
}

var productAliases = normalize.AliasTable{
	{Key: FieldName, Names: []string{"Item Name", "Product Name"}},
	{Key: FieldCode, Names: []string{"Item Code", "Product Code", "SKU"}},
	{Key: FieldPrice, Names: []string{"Sales Price", "Rate", "Price"}},
	{Key: FieldStock, Names: []string{"Current Stock", "Stock Quantity", "Quantity"}},
}

var invoiceAliases = normalize.AliasTable{
	{Key: FieldInvoiceNo, Names: []string{"Bill No", "Invoice No"}},
	{Key: FieldCustomerName, Names: []string{"Party Name", "Customer Name"}},
	{Key: FieldDate, Names: []string{"Bill Date", "Date", "Invoice Date"}},
	{Key: FieldTotalAmount, Names: []string{"Total", "Grand Total", "Invoice Amount"}},
	{Key: FieldPaidAmount, Names: []string{"Paid", "Received", "Payment Received"}},
	{Key: FieldBalance, Names: []string{"Balance", "Due", "Remaining Amount"}},
	{Key: FieldStatus, Names: []string{"Payment Status", "Status"}},
	{Key: FieldItemName, Names: []string{"Item Name", "Item"}},
	{Key: FieldQuantity, Names: []string{"Quantity", "Qty"}},
	{Key: FieldRate, Names: []string{"Price/Unit", "Price Per Unit", "Rate"}},
}

// Voucher column aliases, looked up row by row since markup vouchers and
// voucher spreadsheets spell them differently.
var (
	voucherMobile    = []string{"Mobile", "Phone", "PhoneNumber", "Contact", "MobileNo"}
	voucherName      = []string{"Name", "CustomerName", "PartyName", "Customer"}
	voucherNo        = []string{"VoucherNo", "VoucherNumber", "Voucher", "RefNo"}
	voucherDate      = []string{"Date", "EntryDate", "VoucherDate", "TransactionDate"}
	voucherType      = []string{"VoucherType", "VchType", "Type"}
	voucherDebit     = []string{"Debit", "Dr", "DebitAmount"}
	voucherCredit    = []string{"Credit", "Cr", "CreditAmount"}
	voucherBalance   = []string{"Balance", "ClosingBalance", "CurrentBalance"}
	voucherAmount    = []string{"Amount", "VoucherAmount"}
	voucherReference = []string{"Reference", "ReferenceNo"}
	voucherMode      = []string{"Mode", "PaymentMode"}
)

// Aliases returns the alias table of a tabular import type.
func Aliases(t domain.ImportType) (normalize.AliasTable, bool) {
	switch t {
	case domain.ImportCustomers:
		return customerAliases, true
	case domain.ImportProducts:
		return productAliases, true
	case domain.ImportInvoices:
		return invoiceAliases, true
	}
	return nil, false
}
