/*
Package generic provides the domain-agnostic building blocks of the booking engine.

PURPOSE:
  Money arithmetic, time-of-day values, error types and the key-value store
  contract are shared by every pricing component. Keeping them here means the
  geo, catalog, surge and pricing packages agree on one representation for
  dollars and clock times.

KEY CONCEPTS IN THIS FILE (types.go):
  - Money: A dollar amount with a currency code (always CAD for this system)
  - Percent helpers: Converting "50" (percent) into 0.50 multipliers
  - Rounding: Cents-level rounding for display totals

DESIGN PRINCIPLES:
  1. Precision: Uses decimal.Decimal to avoid floating-point errors
     (35 x 1.25 must be exactly 43.75, not 43.749999)
  2. Value semantics: Money is immutable, every operation returns a new value
  3. No NaN: invalid inputs resolve to zero, never to a poisoned value

USAGE:
  rate := generic.NewMoney(35)
  surge := rate.Mul(decimal.RequireFromString("0.25"))  // 8.75
  total := rate.Add(surge)                              // 43.75

SEE ALSO:
  - time.go: ClockTime and ISO date helpers
  - errors.go: Sentinel and structured errors
  - store.go: Key-value persistence interface
*/
package generic

import (
	"fmt"

	"github.com/shopspring/decimal"
)

// =============================================================================
// MONEY - Dollar amount with currency
// =============================================================================

type Money struct {
	Amount   decimal.Decimal
	Currency Currency
}

type Currency string

const CurrencyCAD Currency = "CAD"

func NewMoney(value float64) Money {
	return Money{Amount: decimal.NewFromFloat(value), Currency: CurrencyCAD}
}

func NewMoneyFromDecimal(value decimal.Decimal) Money {
	return Money{Amount: value, Currency: CurrencyCAD}
}

func ZeroMoney() Money {
	return Money{Amount: decimal.Zero, Currency: CurrencyCAD}
}

// MustParseDecimal parses s, returning zero on malformed input.
func MustParseDecimal(s string) decimal.Decimal {
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero
	}
	return d
}

func (m Money) Add(o Money) Money {
	return Money{Amount: m.Amount.Add(o.Amount), Currency: m.currency()}
}
func (m Money) Sub(o Money) Money {
	return Money{Amount: m.Amount.Sub(o.Amount), Currency: m.currency()}
}
func (m Money) Mul(s decimal.Decimal) Money {
	return Money{Amount: m.Amount.Mul(s), Currency: m.currency()}
}
func (m Money) MulInt(n int) Money       { return m.Mul(decimal.NewFromInt(int64(n))) }
func (m Money) IsZero() bool             { return m.Amount.IsZero() }
func (m Money) IsNegative() bool         { return m.Amount.IsNegative() }
func (m Money) GreaterThan(o Money) bool { return m.Amount.GreaterThan(o.Amount) }
func (m Money) LessThan(o Money) bool    { return m.Amount.LessThan(o.Amount) }
func (m Money) Equal(o Money) bool       { return m.Amount.Equal(o.Amount) }
func (m Money) Round() Money             { return Money{Amount: m.Amount.Round(2), Currency: m.currency()} }

func (m Money) Max(o Money) Money {
	if o.GreaterThan(m) {
		return o
	}
	return m
}

func (m Money) Min(o Money) Money {
	if o.LessThan(m) {
		return o
	}
	return m
}

// Div divides by n. Division by zero yields zero instead of panicking.
func (m Money) Div(n decimal.Decimal) Money {
	if n.IsZero() {
		return Money{Amount: decimal.Zero, Currency: m.currency()}
	}
	return Money{Amount: m.Amount.Div(n), Currency: m.currency()}
}

// Float64 returns the amount for JSON responses. Precision loss is acceptable there.
func (m Money) Float64() float64 {
	f, _ := m.Amount.Float64()
	return f
}

func (m Money) String() string {
	return fmt.Sprintf("$%s", m.Amount.StringFixed(2))
}

func (m Money) currency() Currency {
	if m.Currency == "" {
		return CurrencyCAD
	}
	return m.Currency
}

// =============================================================================
// PERCENTAGES AND MULTIPLIERS
// =============================================================================

var hundred = decimal.NewFromInt(100)

// PercentToFraction converts 50 into 0.50.
func PercentToFraction(percent decimal.Decimal) decimal.Decimal {
	return percent.Div(hundred)
}

// MultiplierToPercent converts a 1.25 multiplier into its 25 percent uplift.
func MultiplierToPercent(multiplier decimal.Decimal) decimal.Decimal {
	return multiplier.Sub(decimal.NewFromInt(1)).Mul(hundred)
}

// MaxDecimal returns the larger of a and b.
func MaxDecimal(a, b decimal.Decimal) decimal.Decimal {
	if b.GreaterThan(a) {
		return b
	}
	return a
}
