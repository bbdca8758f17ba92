/*
Package engine implements the progressive loan computation core.

PURPOSE:
  This package contains the pure, side-effect-free machinery for progressive
  (declining-balance) loans: exact fixed-point money arithmetic, equal
  installment (EMI) calculation, schedule generation and payoff quoting.
  Everything here is a function of its inputs - no I/O, no globals, no clock.

KEY CONCEPTS IN THIS FILE (money.go):
  - Currency: code plus minor-unit digit count (USD -> 2 digits)
  - Money: an exact decimal magnitude bound to a Currency
  - MathContext: explicit precision + rounding mode threaded through every
    operation that can produce excess precision

DESIGN PRINCIPLES:
  1. Exactness: decimal.Decimal everywhere, never float64
  2. Explicit rounding: division and rate application take a MathContext;
     there is no ambient process-wide rounding configuration
  3. Currency safety: mixing currencies is an error, not a silent coercion

SEE ALSO:
  - emi.go: rate application in the installment calculator
  - prepayment.go: payoff totals built from Money sums
*/
package engine

import (
	"encoding/json"
	"fmt"

	"github.com/shopspring/decimal"
)

// =============================================================================
// CURRENCY - code + minor-unit precision
// =============================================================================

// Currency identifies a currency and how many minor-unit digits its
// amounts carry. All Money values produced by the engine are rounded to
// this digit count.
type Currency struct {
	Code   string
	Digits int32
}

func (c Currency) String() string { return c.Code }

// Common currencies used in tests and defaults.
var (
	USD = Currency{Code: "USD", Digits: 2}
	EUR = Currency{Code: "EUR", Digits: 2}
	JPY = Currency{Code: "JPY", Digits: 0}
)

// =============================================================================
// ROUNDING - explicit, never ambient
// =============================================================================

// RoundingMode selects how excess precision is discarded.
type RoundingMode string

const (
	RoundHalfEven RoundingMode = "half_even"
	RoundHalfUp   RoundingMode = "half_up"
	RoundDown     RoundingMode = "down"
	RoundUp       RoundingMode = "up"
	RoundFloor    RoundingMode = "floor"
	RoundCeiling  RoundingMode = "ceiling"
)

// MathContext carries the working precision for intermediate rate math and
// the rounding mode applied when an operation produces excess precision.
// It is passed explicitly to every calculator entry point.
type MathContext struct {
	Precision int32
	Mode      RoundingMode
}

// DefaultMathContext mirrors a MathContext.DECIMAL64-style setup with
// banker's rounding, the conventional choice for interest math.
var DefaultMathContext = MathContext{Precision: 16, Mode: RoundHalfEven}

func (mc MathContext) round(d decimal.Decimal, places int32) decimal.Decimal {
	switch mc.Mode {
	case RoundHalfUp:
		return d.Round(places)
	case RoundDown:
		return d.RoundDown(places)
	case RoundUp:
		return d.RoundUp(places)
	case RoundFloor:
		return d.RoundFloor(places)
	case RoundCeiling:
		return d.RoundCeil(places)
	default: // half-even
		return d.RoundBank(places)
	}
}

// =============================================================================
// MONEY - exact amount in one currency
// =============================================================================

// Money is an exact fixed-point amount in a single currency. Add and Sub are
// exact and require matching currencies; Mul and Div round through a
// MathContext. The zero value is not usable - construct via NewMoney or Zero.
type Money struct {
	currency Currency
	amount   decimal.Decimal
}

// NewMoney builds a Money from a decimal magnitude, rounding it to the
// currency's minor-unit digits with half-even.
func NewMoney(currency Currency, amount decimal.Decimal) Money {
	return Money{currency: currency, amount: amount.RoundBank(currency.Digits)}
}

// NewMoneyFromString parses a decimal string. Intended for configuration
// and test fixtures; invalid input is a hard error.
func NewMoneyFromString(currency Currency, s string) (Money, error) {
	d, err := decimal.NewFromString(s)
	if err != nil {
		return Money{}, fmt.Errorf("invalid amount %q: %w", s, err)
	}
	return NewMoney(currency, d), nil
}

// MustMoney is NewMoneyFromString that panics. Package-level fixtures only.
func MustMoney(currency Currency, s string) Money {
	m, err := NewMoneyFromString(currency, s)
	if err != nil {
		panic(err)
	}
	return m
}

// Zero returns the additive identity in the given currency.
func Zero(currency Currency) Money {
	return Money{currency: currency, amount: decimal.Zero}
}

func (m Money) Currency() Currency       { return m.currency }
func (m Money) Amount() decimal.Decimal  { return m.amount }
func (m Money) String() string           { return m.amount.StringFixed(m.currency.Digits) + " " + m.currency.Code }

func (m Money) sameCurrency(o Money) error {
	if m.currency.Code != o.currency.Code {
		return &CurrencyMismatchError{Left: m.currency, Right: o.currency}
	}
	return nil
}

// Add returns m+o exactly. Currencies must match.
func (m Money) Add(o Money) (Money, error) {
	if err := m.sameCurrency(o); err != nil {
		return Money{}, err
	}
	return Money{currency: m.currency, amount: m.amount.Add(o.amount)}, nil
}

// Sub returns m-o exactly. Currencies must match.
func (m Money) Sub(o Money) (Money, error) {
	if err := m.sameCurrency(o); err != nil {
		return Money{}, err
	}
	return Money{currency: m.currency, amount: m.amount.Sub(o.amount)}, nil
}

// MustAdd and MustSub are for callsites that have already established the
// currency invariant (e.g. components of one installment). A mismatch there
// is a defect, so fail fast.
func (m Money) MustAdd(o Money) Money {
	r, err := m.Add(o)
	if err != nil {
		panic(err)
	}
	return r
}

func (m Money) MustSub(o Money) Money {
	r, err := m.Sub(o)
	if err != nil {
		panic(err)
	}
	return r
}

// moneyJSON is the wire/storage shape of Money. The magnitude travels as a
// string so no reader ever routes it through float64.
type moneyJSON struct {
	Currency string `json:"currency"`
	Digits   int32  `json:"digits"`
	Amount   string `json:"amount"`
}

func (m Money) MarshalJSON() ([]byte, error) {
	return json.Marshal(moneyJSON{
		Currency: m.currency.Code,
		Digits:   m.currency.Digits,
		Amount:   m.amount.String(),
	})
}

func (m *Money) UnmarshalJSON(data []byte) error {
	var raw moneyJSON
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	d, err := decimal.NewFromString(raw.Amount)
	if err != nil {
		return fmt.Errorf("invalid amount %q: %w", raw.Amount, err)
	}
	m.currency = Currency{Code: raw.Currency, Digits: raw.Digits}
	m.amount = d
	return nil
}

// MulRate applies a rate (e.g. periodic interest) and rounds the result to
// the currency's digits under the supplied context.
func (m Money) MulRate(rate decimal.Decimal, mc MathContext) Money {
	raw := m.amount.Mul(rate)
	return Money{currency: m.currency, amount: mc.round(raw, m.currency.Digits)}
}

// Div divides by a scalar at the context's working precision, then rounds
// to the currency's digits.
func (m Money) Div(scalar decimal.Decimal, mc MathContext) Money {
	raw := m.amount.DivRound(scalar, mc.Precision)
	return Money{currency: m.currency, amount: mc.round(raw, m.currency.Digits)}
}

func (m Money) Neg() Money { return Money{currency: m.currency, amount: m.amount.Neg()} }

func (m Money) IsZero() bool     { return m.amount.IsZero() }
func (m Money) IsNegative() bool { return m.amount.IsNegative() }
func (m Money) IsPositive() bool { return m.amount.IsPositive() }

// Compare returns -1, 0 or +1. Comparing across currencies is a type error.
func (m Money) Compare(o Money) (int, error) {
	if err := m.sameCurrency(o); err != nil {
		return 0, err
	}
	return m.amount.Cmp(o.amount), nil
}

// GreaterThan, LessThan and Min follow the MustAdd/MustSub contract: the
// callsite has already established matching currencies, so a mismatch is a
// defect and fails fast.
func (m Money) GreaterThan(o Money) bool {
	if err := m.sameCurrency(o); err != nil {
		panic(err)
	}
	return m.amount.GreaterThan(o.amount)
}

func (m Money) LessThan(o Money) bool {
	if err := m.sameCurrency(o); err != nil {
		panic(err)
	}
	return m.amount.LessThan(o.amount)
}

// Min returns the smaller of m and o. Used when capping an allocation at a
// component's outstanding amount.
func (m Money) Min(o Money) Money {
	if m.LessThan(o) {
		return m
	}
	return o
}
