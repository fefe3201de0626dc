package currency

import (
	"strings"

	"github.com/shopspring/decimal"
)

// Money is an amount already denominated in a target currency. Base-currency
// decimals are converted into Money exactly once; a Money value must never be
// passed through Convert again.
type Money struct {
	Amount decimal.Decimal
	Code   Code
}

// Convert turns a base-currency amount into the entry's currency, rounding
// half-up to two decimal places.
func Convert(base decimal.Decimal, e Entry) Money {
	return Money{Amount: base.Mul(e.Rate).Round(2), Code: e.Code}
}

// MinorUnits returns the amount in the currency's smallest denomination.
// Used only at the payment-provider boundary.
func (m Money) MinorUnits() int64 {
	return m.Amount.Mul(decimal.NewFromInt(100)).Round(0).IntPart()
}

// Add sums two amounts in the same currency. Mismatched currencies are a
// programming error and keep the receiver's code.
func (m Money) Add(other Money) Money {
	return Money{Amount: m.Amount.Add(other.Amount), Code: m.Code}
}

// Sub subtracts another amount in the same currency.
func (m Money) Sub(other Money) Money {
	return Money{Amount: m.Amount.Sub(other.Amount), Code: m.Code}
}

// IsZero reports whether the amount equals zero.
func (m Money) IsZero() bool { return m.Amount.IsZero() }

// Format renders the amount with the locale's symbol placement and
// separators. RUB uses space-grouped digits, a comma decimal mark and a
// trailing symbol; USD and EUR use a leading symbol with comma groups and a
// dot decimal mark.
func Format(m Money, e Entry) string {
	fixed := m.Amount.StringFixed(2)
	neg := strings.HasPrefix(fixed, "-")
	if neg {
		fixed = fixed[1:]
	}
	intPart, fracPart, _ := strings.Cut(fixed, ".")

	var b strings.Builder
	if neg {
		b.WriteByte('-')
	}
	switch e.Code {
	case RUB:
		b.WriteString(groupDigits(intPart, " "))
		b.WriteByte(',')
		b.WriteString(fracPart)
		b.WriteByte(' ')
		b.WriteString(e.Symbol)
	default:
		b.WriteString(e.Symbol)
		b.WriteString(groupDigits(intPart, ","))
		b.WriteByte('.')
		b.WriteString(fracPart)
	}
	return b.String()
}

func groupDigits(digits, sep string) string {
	n := len(digits)
	if n <= 3 {
		return digits
	}
	var b strings.Builder
	first := n % 3
	if first == 0 {
		first = 3
	}
	b.WriteString(digits[:first])
	for i := first; i < n; i += 3 {
		b.WriteString(sep)
		b.WriteString(digits[i : i+3])
	}
	return b.String()
}
