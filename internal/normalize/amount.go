package normalize

import (
	"strings"

	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
)

var currencyReplacer = strings.NewReplacer(",", "", "₹", "", "Rs.", "", "Rs", "", "INR", "", "$", "", " ", "")

// Amount parses a monetary value as a decimal. Empty values are zero.
// A trailing "Dr"/"Cr" marker or parentheses are read as the sign the export
// intended; callers that need magnitudes take Abs.
func Amount(v any) (decimal.Decimal, error) {
	switch t := v.(type) {
	case nil:
		return decimal.Zero, nil
	case decimal.Decimal:
		return t, nil
	case float64:
		return decimal.NewFromFloat(t), nil
	case int:
		return decimal.NewFromInt(int64(t)), nil
	case int64:
		return decimal.NewFromInt(t), nil
	}

	s := String(v)
	if s == "" {
		return decimal.Zero, nil
	}

	neg := false
	if strings.HasPrefix(s, "(") && strings.HasSuffix(s, ")") {
		neg = true
		s = s[1 : len(s)-1]
	}
	lower := strings.ToLower(s)
	switch {
	case strings.HasSuffix(lower, "dr"):
		s = s[:len(s)-2]
	case strings.HasSuffix(lower, "cr"):
		neg = true
		s = s[:len(s)-2]
	}
	s = currencyReplacer.Replace(s)
	if s == "" || s == "-" {
		return decimal.Zero, nil
	}

	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero, errors.Wrapf(err, "invalid amount %q", String(v))
	}
	if neg {
		d = d.Neg()
	}
	return d, nil
}

// AmountOrZero applies the missing-or-bad-means-zero policy used for
// optional money columns.
func AmountOrZero(v any) decimal.Decimal {
	d, err := Amount(v)
	if err != nil {
		return decimal.Zero
	}
	return d
}
