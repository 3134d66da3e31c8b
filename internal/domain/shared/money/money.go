package money

import (
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"
)

var (
	ErrInvalidCurrency  = errors.New("money: invalid currency code")
	ErrCurrencyMismatch = errors.New("money: currency mismatch")
	ErrInvalidAmount    = errors.New("money: invalid amount")
	ErrDivisionByZero   = errors.New("money: division by zero")
)

// minorUnits is the number of minor units per major unit (cents).
const minorUnits = 100

// Money keeps amounts in integer minor units to avoid floating point drift.
type Money struct {
	Amount   int64
	Currency string
}

// New constructs a Money value validating minimal invariants.
func New(amount int64, currency string) (Money, error) {
	if len(currency) != 3 {
		return Money{}, ErrInvalidCurrency
	}
	currency = strings.ToUpper(currency)
	return Money{Amount: amount, Currency: currency}, nil
}

// Must creates Money and panics if validation fails; useful in tests and fixtures.
func Must(amount int64, currency string) Money {
	m, err := New(amount, currency)
	if err != nil {
		panic(err)
	}
	return m
}

// Zero returns an empty amount in the given currency.
func Zero(currency string) Money {
	return Money{Currency: strings.ToUpper(currency)}
}

// Parse reads a decimal string such as "800", "800.5" or "-12.34".
// More than two fractional digits are rejected rather than silently rounded.
func Parse(value, currency string) (Money, error) {
	raw := strings.TrimSpace(value)
	if raw == "" {
		return Money{}, ErrInvalidAmount
	}
	negative := false
	if strings.HasPrefix(raw, "-") {
		negative = true
		raw = raw[1:]
	}
	whole, frac, hasFrac := strings.Cut(raw, ".")
	if whole == "" {
		whole = "0"
	}
	if hasFrac && (len(frac) == 0 || len(frac) > 2) {
		return Money{}, fmt.Errorf("%w: %q", ErrInvalidAmount, value)
	}
	units, err := strconv.ParseInt(whole, 10, 64)
	if err != nil || units < 0 {
		return Money{}, fmt.Errorf("%w: %q", ErrInvalidAmount, value)
	}
	cents := int64(0)
	if hasFrac {
		if len(frac) == 1 {
			frac += "0"
		}
		cents, err = strconv.ParseInt(frac, 10, 64)
		if err != nil || cents < 0 {
			return Money{}, fmt.Errorf("%w: %q", ErrInvalidAmount, value)
		}
	}
	if units > (math.MaxInt64-cents)/minorUnits {
		return Money{}, fmt.Errorf("%w: %q out of range", ErrInvalidAmount, value)
	}
	amount := units*minorUnits + cents
	if negative {
		amount = -amount
	}
	return New(amount, currency)
}

// Add adds two money values ensuring currencies match.
func (m Money) Add(other Money) (Money, error) {
	if err := m.ensureSameCurrency(other); err != nil {
		return Money{}, err
	}
	return Money{Amount: m.Amount + other.Amount, Currency: m.Currency}, nil
}

// Sub subtracts other from the receiver.
func (m Money) Sub(other Money) (Money, error) {
	if err := m.ensureSameCurrency(other); err != nil {
		return Money{}, err
	}
	return Money{Amount: m.Amount - other.Amount, Currency: m.Currency}, nil
}

// Neg returns the negated amount preserving currency.
func (m Money) Neg() Money {
	return Money{Amount: -m.Amount, Currency: m.Currency}
}

// Multiply multiplies the amount by the provided factor.
func (m Money) Multiply(times int64) Money {
	return Money{Amount: m.Amount * times, Currency: m.Currency}
}

// MulDiv computes m*num/den with a single half-up rounding step. An intermediate
// product that does not fit in int64 is reported as ErrInvalidAmount.
func (m Money) MulDiv(num, den int64) (Money, error) {
	if den == 0 {
		return Money{}, ErrDivisionByZero
	}
	product, ok := mul64(m.Amount, num)
	if !ok {
		return Money{}, fmt.Errorf("%w: %d * %d overflows", ErrInvalidAmount, m.Amount, num)
	}
	if den < 0 {
		if product == math.MinInt64 || den == math.MinInt64 {
			return Money{}, fmt.Errorf("%w: %d / %d overflows", ErrInvalidAmount, product, den)
		}
		product, den = -product, -den
	}
	q := product / den
	r := product % den
	if r < 0 {
		r = -r
	}
	if r >= den-r {
		if product < 0 {
			q--
		} else {
			q++
		}
	}
	return Money{Amount: q, Currency: m.Currency}, nil
}

// Cmp returns -1, 0 or 1. Currencies are not compared; callers guard mixing.
func (m Money) Cmp(other Money) int {
	switch {
	case m.Amount < other.Amount:
		return -1
	case m.Amount > other.Amount:
		return 1
	default:
		return 0
	}
}

// IsZero returns true if the amount equals zero.
func (m Money) IsZero() bool {
	return m.Amount == 0
}

func (m Money) IsPositive() bool {
	return m.Amount > 0
}

// String renders the amount with two decimals, e.g. "2400.00".
func (m Money) String() string {
	amount := m.Amount
	sign := ""
	if amount < 0 {
		sign = "-"
		amount = -amount
	}
	return fmt.Sprintf("%s%d.%02d", sign, amount/minorUnits, amount%minorUnits)
}

func mul64(a, b int64) (int64, bool) {
	if a == 0 || b == 0 {
		return 0, true
	}
	if (a == -1 && b == math.MinInt64) || (b == -1 && a == math.MinInt64) {
		return 0, false
	}
	p := a * b
	if p/b != a {
		return 0, false
	}
	return p, true
}

func (m Money) ensureSameCurrency(other Money) error {
	if m.Currency == "" || other.Currency == "" {
		return ErrInvalidCurrency
	}
	if m.Currency != other.Currency {
		return ErrCurrencyMismatch
	}
	return nil
}
