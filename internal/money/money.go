// Package money provides a fixed-point currency value with two fractional
// digits. All arithmetic is exact; there is no floating-point accumulation.
package money

import (
	"fmt"

	"github.com/shopspring/decimal"
)

// Scale is the number of fractional digits carried by a Money value.
const Scale = 2

// Money is an immutable two-decimal currency amount.
// The zero value is 0.00.
type Money struct {
	amount decimal.Decimal // always rounded to Scale
}

// Zero is the 0.00 amount.
var Zero = Money{}

// FromCents builds a Money from an integer number of cents.
func FromCents(cents int64) Money {
	return Money{amount: decimal.New(cents, -Scale)}
}

// FromDecimal builds a Money from an arbitrary decimal, rounding
// half-away-from-zero to the cent.
func FromDecimal(d decimal.Decimal) Money {
	return Money{amount: d.Round(Scale)}
}

// FromFloat builds a Money from a float64, rounding to the cent.
// Intended for boundary conversion only; internal math stays decimal.
func FromFloat(f float64) Money {
	return FromDecimal(decimal.NewFromFloat(f))
}

// Parse builds a Money from a decimal string such as "33.34".
// Inputs with more than two fractional digits are rejected rather than
// silently rounded.
func Parse(s string) (Money, error) {
	d, err := decimal.NewFromString(s)
	if err != nil {
		return Zero, fmt.Errorf("invalid amount %q: %w", s, err)
	}
	if d.Exponent() < -Scale {
		return Zero, fmt.Errorf("invalid amount %q: more than %d decimal places", s, Scale)
	}
	return Money{amount: d.Round(Scale)}, nil
}

// MustParse is Parse for constants in tests; it panics on bad input.
func MustParse(s string) Money {
	m, err := Parse(s)
	if err != nil {
		panic(err)
	}
	return m
}

// Cents returns the amount as an integer number of cents.
func (m Money) Cents() int64 {
	return m.amount.Shift(Scale).IntPart()
}

// Decimal returns the underlying decimal value.
func (m Money) Decimal() decimal.Decimal {
	return m.amount
}

// Add returns m + other.
func (m Money) Add(other Money) Money {
	return Money{amount: m.amount.Add(other.amount)}
}

// Sub returns m - other.
func (m Money) Sub(other Money) Money {
	return Money{amount: m.amount.Sub(other.amount)}
}

// Neg returns -m.
func (m Money) Neg() Money {
	return Money{amount: m.amount.Neg()}
}

// Abs returns |m|.
func (m Money) Abs() Money {
	return Money{amount: m.amount.Abs()}
}

// Mul returns m * d, rounded to the cent.
func (m Money) Mul(d decimal.Decimal) Money {
	return FromDecimal(m.amount.Mul(d))
}

// Sum adds any number of amounts.
func Sum(ms ...Money) Money {
	total := Zero
	for _, m := range ms {
		total = total.Add(m)
	}
	return total
}

// IsZero reports whether m is exactly 0.00.
func (m Money) IsZero() bool { return m.amount.IsZero() }

// IsNegative reports whether m < 0.
func (m Money) IsNegative() bool { return m.amount.IsNegative() }

// IsPositive reports whether m > 0.
func (m Money) IsPositive() bool { return m.amount.IsPositive() }

// Cmp compares m and other, returning -1, 0, or 1.
func (m Money) Cmp(other Money) int { return m.amount.Cmp(other.amount) }

// Equal reports exact equality.
func (m Money) Equal(other Money) bool { return m.amount.Equal(other.amount) }

// LessThan reports m < other.
func (m Money) LessThan(other Money) bool { return m.amount.LessThan(other.amount) }

// WithinCent reports whether |m - other| <= 0.01, the tolerance used when
// validating caller-supplied split amounts.
func (m Money) WithinCent(other Money) bool {
	return m.amount.Sub(other.amount).Abs().Cmp(decimal.New(1, -Scale)) <= 0
}

// String formats the amount with exactly two decimal places.
func (m Money) String() string {
	return m.amount.StringFixed(Scale)
}

// MarshalJSON encodes the amount as a fixed two-decimal string.
func (m Money) MarshalJSON() ([]byte, error) {
	return []byte(`"` + m.String() + `"`), nil
}

// UnmarshalJSON accepts either a quoted decimal string or a bare number.
func (m *Money) UnmarshalJSON(data []byte) error {
	s := string(data)
	if len(s) >= 2 && s[0] == '"' && s[len(s)-1] == '"' {
		s = s[1 : len(s)-1]
	}
	parsed, err := Parse(s)
	if err != nil {
		return err
	}
	*m = parsed
	return nil
}
