package normalize

import "strings"

// Phone reduces a raw phone value to its national digits: non-digits are
// stripped, a 2-digit country code on a 12-digit number and a trunk zero on
// an 11-digit number are dropped, and anything longer keeps its last 10.
// Callers decide what length is acceptable.
func Phone(v any) string {
	raw := String(v)
	var b strings.Builder
	for _, r := range raw {
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
		}
	}
	digits := b.String()

	switch {
	case len(digits) == 12 && strings.HasPrefix(digits, "91"):
		digits = digits[2:]
	case len(digits) == 11 && strings.HasPrefix(digits, "0"):
		digits = digits[1:]
	}
	if len(digits) > 10 {
		digits = digits[len(digits)-10:]
	}
	return digits
}

// ValidPhone reports whether a normalized phone is exactly 10 digits.
func ValidPhone(p string) bool {
	return len(p) == 10
}
