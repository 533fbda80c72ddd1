package validator

import (
	"time"

	"github.com/shopspring/decimal"

	"ledger-ingest/internal/domain"
	"ledger-ingest/internal/normalize"
	"ledger-ingest/internal/parser"
)

// minLedgerPhoneDigits is the shortest normalized phone that makes a master
// ledger a customer.
const minLedgerPhoneDigits = 10

var ledgerPhoneKeys = []string{"LEDGERMOBILE", "LEDGERPHONE", "LEDMOBILE"}

// MasterSet is what a master batch contributes: account groups and the
// ledgers that look like customers.
type MasterSet struct {
	Groups     []domain.Group
	Candidates []domain.CustomerCandidate
}

// ExtractMasters reads group and ledger definitions. Ledgers without a usable
// phone are dropped without an error row; masters routinely hold bank, tax
// and expense ledgers.
func ExtractMasters(records []parser.Record) MasterSet {
	var set MasterSet
	groupIdx := make(map[string]int)

	for _, rec := range records {
		switch rec.Tag {
		case parser.TagGroup:
			name := definitionName(rec.Fields)
			if name == "" {
				continue
			}
			g := domain.Group{Name: name}
			if parent := parser.Text(rec.Fields["PARENT"]); parent != "" {
				g.ParentGroup = &parent
			}
			// one row per name keeps a single upsert statement valid
			if i, seen := groupIdx[name]; seen {
				set.Groups[i] = g
				continue
			}
			groupIdx[name] = len(set.Groups)
			set.Groups = append(set.Groups, g)

		case parser.TagLedger:
			name := definitionName(rec.Fields)
			var raw string
			for _, k := range ledgerPhoneKeys {
				if raw = parser.Text(rec.Fields[k]); raw != "" {
					break
				}
			}
			phone := normalize.Phone(raw)
			if name == "" || len(phone) < minLedgerPhoneDigits {
				continue
			}
			set.Candidates = append(set.Candidates, domain.CustomerCandidate{Name: name, Phone: phone})
		}
	}
	return set
}

// definitionName prefers the NAME attribute and falls back to a NAME.LIST child.
func definitionName(fields domain.Row) string {
	if n := parser.Text(fields["-NAME"]); n != "" {
		return n
	}
	if list, ok := fields["NAME.LIST"].(map[string]interface{}); ok {
		return parser.Text(list["NAME"])
	}
	return parser.Text(fields["NAME"])
}

// VoucherRecord is a validated voucher row. Debit and Credit are magnitudes.
type VoucherRecord struct {
	Index       int
	Phone       string
	Name        string
	VoucherNo   string
	VoucherType string
	Date        time.Time
	Debit       decimal.Decimal
	Credit      decimal.Decimal
	Balance     decimal.Decimal
	Amount      decimal.Decimal
	Reference   string
	Mode        string
}

// VoucherResult carries accepted rows and the count of rows skipped for a
// missing phone, voucher number or unreadable amount.
type VoucherResult struct {
	Records []VoucherRecord
	Skipped int
}

// Vouchers validates flattened voucher rows.
func (v *Validator) Vouchers(rows []domain.Row) VoucherResult {
	var res VoucherResult
	for i, row := range rows {
		phone := normalize.Phone(lookup(row, voucherMobile))
		number := lookup(row, voucherNo)
		if phone == "" || number == "" {
			res.Skipped++
			continue
		}

		debit, err1 := normalize.Amount(lookup(row, voucherDebit))
		credit, err2 := normalize.Amount(lookup(row, voucherCredit))
		balance, err3 := normalize.Amount(lookup(row, voucherBalance))
		if err1 != nil || err2 != nil || err3 != nil {
			res.Skipped++
			continue
		}

		date, _ := normalize.ParseDate(lookup(row, voucherDate), v.now())
		res.Records = append(res.Records, VoucherRecord{
			Index:       i,
			Phone:       phone,
			Name:        lookup(row, voucherName),
			VoucherNo:   number,
			VoucherType: lookup(row, voucherType),
			Date:        date,
			Debit:       debit.Abs(),
			Credit:      credit.Abs(),
			Balance:     balance,
			Amount:      normalize.AmountOrZero(lookup(row, voucherAmount)).Abs(),
			Reference:   lookup(row, voucherReference),
			Mode:        lookup(row, voucherMode),
		})
	}
	return res
}

func lookup(row domain.Row, aliases []string) string {
	v, ok := normalize.Lookup(row, aliases)
	if !ok {
		return ""
	}
	return normalize.String(v)
}
