// Package money provides currency-safe arithmetic over the amounts found in
// financial statements. Values are held in integer minor units via go-money and
// converted through shopspring/decimal when parsing or formatting.
package money

import (
	"errors"
	"fmt"
	"strings"

	"github.com/Rhymond/go-money"
	"github.com/shopspring/decimal"
)

// Common currency codes (ISO-4217)
const (
	USD = "USD"
	EUR = "EUR"
	GBP = "GBP"
	CAD = "CAD"
	JPY = "JPY"
)

var ErrInvalidAmount = errors.New("invalid amount")

// Money represents a monetary value with currency.
type Money struct {
	m *money.Money
}

// New creates a Money value from minor units (cents).
func New(amountCents int64, currencyCode string) *Money {
	return &Money{m: money.New(amountCents, currencyCode)}
}

// NewFromDecimal creates Money from a decimal, rounding half-even to the currency's minor unit.
func NewFromDecimal(amount decimal.Decimal, currencyCode string) *Money {
	currency := money.GetCurrency(currencyCode)
	if currency == nil {
		currencyCode = USD
		currency = money.GetCurrency(USD)
	}
	multiplier := decimal.New(1, int32(currency.Fraction))
	cents := amount.Mul(multiplier).RoundBank(0).IntPart()
	return New(cents, currencyCode)
}

// Zero returns a zero Money value for the given currency
func Zero(currencyCode string) *Money {
	return New(0, currencyCode)
}

// ParseDecimal normalizes a statement amount into a decimal.
// Accepted shapes include "1,234.56", "$8,435.97", "-12.5" and the accounting
// negative "(1,234.56)". Anything other than digits, '.' and '-' is discarded
// once the parentheses have been resolved.
func ParseDecimal(s string) (decimal.Decimal, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return decimal.Zero, fmt.Errorf("%w: empty", ErrInvalidAmount)
	}
	negative := false
	if strings.HasPrefix(s, "(") && strings.HasSuffix(s, ")") {
		negative = true
		s = s[1 : len(s)-1]
	}
	cleaned := strings.Map(func(r rune) rune {
		if (r >= '0' && r <= '9') || r == '.' || r == '-' {
			return r
		}
		return -1
	}, s)
	if negative {
		cleaned = "-" + cleaned
	}
	d, err := decimal.NewFromString(cleaned)
	if err != nil {
		return decimal.Zero, fmt.Errorf("%w %q: %v", ErrInvalidAmount, s, err)
	}
	return d, nil
}

// Parse reads a formatted statement amount in the given currency.
func Parse(s string, currencyCode string) (*Money, error) {
	d, err := ParseDecimal(s)
	if err != nil {
		return nil, err
	}
	return NewFromDecimal(d, currencyCode), nil
}

// Amount returns the amount in minor units (cents)
func (m *Money) Amount() int64 {
	if m == nil || m.m == nil {
		return 0
	}
	return m.m.Amount()
}

// Currency returns the ISO-4217 currency code
func (m *Money) Currency() string {
	if m == nil || m.m == nil {
		return ""
	}
	return m.m.Currency().Code
}

func (m *Money) IsZero() bool {
	return m == nil || m.m == nil || m.m.IsZero()
}

func (m *Money) IsNegative() bool {
	return m != nil && m.m != nil && m.m.IsNegative()
}

// Negate returns the negated value
func (m *Money) Negate() *Money {
	if m == nil || m.m == nil {
		return Zero(USD)
	}
	return &Money{m: m.m.Negative()}
}

// Add adds two Money values. Returns error if currencies don't match.
func (m *Money) Add(other *Money) (*Money, error) {
	if m == nil || m.m == nil {
		return other, nil
	}
	if other == nil || other.m == nil {
		return m, nil
	}
	result, err := m.m.Add(other.m)
	if err != nil {
		return nil, err
	}
	return &Money{m: result}, nil
}

// Subtract subtracts other from m. Returns error if currencies don't match.
func (m *Money) Subtract(other *Money) (*Money, error) {
	if m == nil || m.m == nil {
		if other == nil {
			return Zero(USD), nil
		}
		return other.Negate(), nil
	}
	if other == nil || other.m == nil {
		return m, nil
	}
	result, err := m.m.Subtract(other.m)
	if err != nil {
		return nil, err
	}
	return &Money{m: result}, nil
}

// Display returns the statement form, e.g. "$1,234.56" or "-$12.00".
func (m *Money) Display() string {
	if m == nil || m.m == nil {
		return "$0.00"
	}
	return m.m.Display()
}

// String returns the amount as a plain decimal string (e.g., "1234.56")
func (m *Money) String() string {
	if m == nil || m.m == nil {
		return "0.00"
	}
	currency := m.m.Currency()
	return m.ToDecimal().StringFixed(int32(currency.Fraction))
}

// ToDecimal converts to decimal.Decimal for precise calculations
func (m *Money) ToDecimal() decimal.Decimal {
	if m == nil || m.m == nil {
		return decimal.Zero
	}
	currency := m.m.Currency()
	return decimal.New(m.m.Amount(), -int32(currency.Fraction))
}

// Sum adds values of a single currency. An empty list sums to zero USD.
func Sum(values ...*Money) (*Money, error) {
	if len(values) == 0 {
		return Zero(USD), nil
	}
	total := Zero(values[0].Currency())
	for _, v := range values {
		var err error
		if total, err = total.Add(v); err != nil {
			return nil, err
		}
	}
	return total, nil
}
