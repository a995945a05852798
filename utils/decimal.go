package utils

import (
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
)

// ParseAmount accepts user-formatted amounts like "20,000" or "TL 1250.50".
// Commas are thousands separators and the dot is the decimal separator.
// Currency markers and spaces are dropped, a leading '-' is kept. Any other
// character makes the amount invalid.
func ParseAmount(raw string) (decimal.Decimal, error) {
	s := strings.TrimSpace(raw)
	if s != "" {
		s = strings.ReplaceAll(s, ",", "")
		s = strings.ReplaceAll(s, "TRY", "")
		s = strings.ReplaceAll(s, "TL", "")
		s = strings.ReplaceAll(s, "₺", "")
		s = strings.TrimSpace(s)
	}
	neg := false
	if strings.HasPrefix(s, "-") {
		neg = true
		s = strings.TrimSpace(strings.TrimPrefix(s, "-"))
	}
	var b strings.Builder
	b.Grow(len(s) + 1)
	for _, r := range s {
		switch {
		case (r >= '0' && r <= '9') || r == '.':
			b.WriteRune(r)
		case r == ' ':
		default:
			return decimal.Zero, fmt.Errorf("invalid amount %q: unexpected character %q", raw, r)
		}
	}
	clean := b.String()
	if clean == "" {
		return decimal.Zero, fmt.Errorf("invalid amount %q", raw)
	}
	if neg {
		clean = "-" + clean
	}
	val, err := decimal.NewFromString(clean)
	if err != nil {
		return decimal.Zero, fmt.Errorf("invalid amount %q: %w", raw, err)
	}
	return val, nil
}

// AmountScale is the number of fractional digits the decimal(20,4) columns keep.
const AmountScale = 4

// FitsAmountScale reports whether d survives storage without losing digits.
func FitsAmountScale(d decimal.Decimal) bool {
	return d.Equal(d.Truncate(AmountScale))
}

// RoundMoney rounds half away from zero to two decimals.
func RoundMoney(d decimal.Decimal) decimal.Decimal {
	return d.Round(2)
}
