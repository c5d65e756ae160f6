// Package core provides money parsing and handling utilities.
//
// Amounts are held as integer cents. Decimal input (JSON numbers, form values,
// CLI arguments) is converted with shopspring/decimal and rendered for humans
// through go-money so the ledger never does float arithmetic.
package core

import (
	"bytes"
	"errors"
	"strings"

	"github.com/Rhymond/go-money"
	"github.com/shopspring/decimal"
)

// DefaultCurrency is used for display when no currency is configured.
const DefaultCurrency = "USD"

// MaxCents bounds every parsed amount so balance sums stay inside int64.
const MaxCents int64 = 1_000_000_000_000_000

var ErrInvalidMoney = errors.New("invalid money value")

var maxMajor = decimal.New(MaxCents, -2)

// Money is an amount in the smallest currency unit.
type Money struct {
	Cents int64
}

// Cents builds a Money from an integer cent count.
func Cents(c int64) Money { return Money{Cents: c} }

// ParseMoney converts a decimal string to Money with half-up rounding.
//
// It accepts both dot (12.34) and comma (12,34) decimal separators. Negative
// values are accepted here; callers decide whether a sign is meaningful.
func ParseMoney(s string) (Money, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return Money{}, ErrInvalidMoney
	}
	s = strings.ReplaceAll(s, ",", ".")
	d, err := decimal.NewFromString(s)
	if err != nil {
		return Money{}, ErrInvalidMoney
	}
	return CheckedDecimal(d)
}

// CheckedDecimal converts d like FromDecimal but rejects values whose cent
// count would exceed MaxCents in magnitude.
func CheckedDecimal(d decimal.Decimal) (Money, error) {
	if d.Abs().GreaterThan(maxMajor) {
		return Money{}, ErrInvalidMoney
	}
	return FromDecimal(d), nil
}

// FromFloat converts a major-unit float (100.5 => 10050 cents).
func FromFloat(f float64) Money {
	return FromDecimal(decimal.NewFromFloat(f))
}

// FromDecimal converts a major-unit decimal to cents, rounding half away from
// zero. Callers handling untrusted input use CheckedDecimal instead.
func FromDecimal(d decimal.Decimal) Money {
	return Money{Cents: d.Shift(2).Round(0).IntPart()}
}

// Decimal returns the major-unit value.
func (m Money) Decimal() decimal.Decimal {
	return decimal.New(m.Cents, -2)
}

func (m Money) Add(n Money) Money        { return Money{Cents: m.Cents + n.Cents} }
func (m Money) Sub(n Money) Money        { return Money{Cents: m.Cents - n.Cents} }
func (m Money) IsZero() bool             { return m.Cents == 0 }
func (m Money) IsNegative() bool         { return m.Cents < 0 }
func (m Money) IsPositive() bool         { return m.Cents > 0 }
func (m Money) GreaterThan(n Money) bool { return m.Cents > n.Cents }

// Float returns the major-unit value for display purposes only.
func (m Money) Float() float64 {
	f, _ := m.Decimal().Float64()
	return f
}

// String renders the plain decimal value with two fraction digits.
func (m Money) String() string {
	return m.Decimal().StringFixed(2)
}

// Format renders the amount with the symbol and grouping of the given ISO 4217 code.
func (m Money) Format(currency string) string {
	if currency == "" {
		currency = DefaultCurrency
	}
	return money.New(m.Cents, strings.ToUpper(currency)).Display()
}

// MarshalJSON encodes money as a JSON number in major units (150.00).
func (m Money) MarshalJSON() ([]byte, error) {
	return []byte(m.String()), nil
}

// UnmarshalJSON accepts either a JSON number or a quoted decimal string.
func (m *Money) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if bytes.Equal(data, []byte("null")) {
		*m = Money{}
		return nil
	}
	v, err := ParseMoney(string(bytes.Trim(data, `"`)))
	if err != nil {
		return err
	}
	*m = v
	return nil
}
