// Package money provides currency-safe financial arithmetic using integer
// cents (Fowler Money pattern). Splits never lose a cent and conversions go
// through decimal arithmetic rather than floats.
package money

import (
	"errors"
	"fmt"
	"strings"

	gomoney "github.com/Rhymond/go-money"
	"github.com/shopspring/decimal"
)

// Common ISO-4217 currency codes.
const (
	USD = "USD"
	EUR = "EUR"
	GBP = "GBP"
	BRL = "BRL"
	MXN = "MXN"
	PEN = "PEN"
	JPY = "JPY"
)

var errNilMoney = errors.New("nil money value")

// Money is a monetary value with currency. The zero value is unusable; use
// the constructors.
type Money struct {
	m *gomoney.Money
}

// New creates Money from minor units (cents) and a currency code.
func New(amountCents int64, currencyCode string) *Money {
	return &Money{m: gomoney.New(amountCents, currencyCode)}
}

// NewFromDecimal creates Money from a decimal amount in major units.
func NewFromDecimal(amount decimal.Decimal, currencyCode string) *Money {
	currency := gomoney.GetCurrency(currencyCode)
	if currency == nil {
		currency = gomoney.GetCurrency(USD)
	}
	multiplier := decimal.New(1, int32(currency.Fraction))
	cents := amount.Mul(multiplier).Round(0).IntPart()
	return New(cents, currencyCode)
}

// NewFromFloat creates Money from a float amount in major units. Prefer
// NewFromDecimal when the caller already has a decimal.
func NewFromFloat(amount float64, currencyCode string) *Money {
	return NewFromDecimal(decimal.NewFromFloat(amount), currencyCode)
}

// NewFromString parses a plain decimal string ("5.50") into Money.
func NewFromString(amount, currencyCode string) (*Money, error) {
	d, err := decimal.NewFromString(strings.TrimSpace(amount))
	if err != nil {
		return nil, fmt.Errorf("invalid amount %q: %w", amount, err)
	}
	return NewFromDecimal(d, currencyCode), nil
}

// Zero returns a zero value in the given currency.
func Zero(currencyCode string) *Money {
	return New(0, currencyCode)
}

// Amount returns the value in minor units (cents).
func (m *Money) Amount() int64 {
	if m == nil || m.m == nil {
		return 0
	}
	return m.m.Amount()
}

// Currency returns the ISO-4217 code.
func (m *Money) Currency() string {
	if m == nil || m.m == nil {
		return ""
	}
	return m.m.Currency().Code
}

// IsZero reports whether the amount is zero.
func (m *Money) IsZero() bool {
	return m == nil || m.m == nil || m.m.IsZero()
}

// IsPositive reports whether the amount is greater than zero.
func (m *Money) IsPositive() bool {
	return m != nil && m.m != nil && m.m.IsPositive()
}

// Abs returns the absolute value.
func (m *Money) Abs() *Money {
	if m == nil || m.m == nil {
		return Zero(USD)
	}
	return &Money{m: m.m.Absolute()}
}

// Add sums two values of the same currency.
func (m *Money) Add(other *Money) (*Money, error) {
	if m == nil || m.m == nil || other == nil || other.m == nil {
		return nil, errNilMoney
	}
	result, err := m.m.Add(other.m)
	if err != nil {
		return nil, err
	}
	return &Money{m: result}, nil
}

// Subtract returns m - other for values of the same currency.
func (m *Money) Subtract(other *Money) (*Money, error) {
	if m == nil || m.m == nil || other == nil || other.m == nil {
		return nil, errNilMoney
	}
	result, err := m.m.Subtract(other.m)
	if err != nil {
		return nil, err
	}
	return &Money{m: result}, nil
}

// Equals reports value and currency equality.
func (m *Money) Equals(other *Money) bool {
	if m == nil || m.m == nil || other == nil || other.m == nil {
		return false
	}
	eq, err := m.m.Equals(other.m)
	return err == nil && eq
}

// Split divides the value into n equal parts, distributing any remainder one
// cent at a time to the leading parts so the total is preserved exactly.
func (m *Money) Split(n int) ([]*Money, error) {
	if m == nil || m.m == nil {
		return nil, errNilMoney
	}
	parts, err := m.m.Split(n)
	if err != nil {
		return nil, err
	}
	out := make([]*Money, len(parts))
	for i, p := range parts {
		out[i] = &Money{m: p}
	}
	return out, nil
}

// Allocate splits the value by relative integer weights, remainder to the
// leading parts. Weights need not sum to anything in particular.
func (m *Money) Allocate(ratios ...int) ([]*Money, error) {
	if m == nil || m.m == nil {
		return nil, errNilMoney
	}
	parts, err := m.m.Allocate(ratios...)
	if err != nil {
		return nil, err
	}
	out := make([]*Money, len(parts))
	for i, p := range parts {
		out[i] = &Money{m: p}
	}
	return out, nil
}

// SplitByPercentage splits into (share, remainder) where share is percent of
// the total. Fractional percentages are honored to basis-point precision and
// the two parts always reconstruct the original amount exactly.
func (m *Money) SplitByPercentage(percent float64) (*Money, *Money, error) {
	if m == nil || m.m == nil {
		return nil, nil, errNilMoney
	}
	if percent < 0 || percent > 100 {
		return nil, nil, fmt.Errorf("percentage %v out of range [0,100]", percent)
	}

	bps := int(decimal.NewFromFloat(percent).Mul(decimal.NewFromInt(100)).Round(0).IntPart())
	parts, err := m.Allocate(bps, 10000-bps)
	if err != nil {
		return nil, nil, err
	}
	return parts[0], parts[1], nil
}

// Convert converts to the target currency at the given exchange rate
// (units of target per unit of source).
func (m *Money) Convert(targetCurrency string, rate decimal.Decimal) *Money {
	if m == nil || m.m == nil {
		return Zero(targetCurrency)
	}
	return NewFromDecimal(m.ToDecimal().Mul(rate), targetCurrency)
}

// ToDecimal returns the value in major units as a decimal.
func (m *Money) ToDecimal() decimal.Decimal {
	if m == nil || m.m == nil {
		return decimal.Zero
	}
	d := decimal.NewFromInt(m.m.Amount())
	divisor := decimal.New(1, int32(m.m.Currency().Fraction))
	return d.Div(divisor)
}

// ToFloat64 returns the value in major units. Display use only.
func (m *Money) ToFloat64() float64 {
	return m.ToDecimal().InexactFloat64()
}

// String renders the amount in major units without the currency symbol.
func (m *Money) String() string {
	if m == nil || m.m == nil {
		return "0.00"
	}
	return m.ToDecimal().StringFixed(int32(m.m.Currency().Fraction))
}

// Display renders with the currency symbol, e.g. "$1,234.56".
func (m *Money) Display() string {
	if m == nil || m.m == nil {
		return ""
	}
	return m.m.Display()
}
