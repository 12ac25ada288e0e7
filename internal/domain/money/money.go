// Package money represents currency amounts as integer minor units.
//
// All balances and transfer amounts in crew are Cents. Decimal text is only
// produced at the edges (JSON, config, logs) via shopspring/decimal so that no
// arithmetic ever happens in floating point.
package money

import (
	"bytes"
	"errors"
	"fmt"
	"math"
	"strings"

	"github.com/shopspring/decimal"
)

// Cents is an amount in minor currency units (1.00 == 100).
type Cents int64

// Zero is the zero amount.
const Zero Cents = 0

var (
	// ErrInvalidAmount is returned when text cannot be parsed as an amount.
	ErrInvalidAmount = errors.New("money: invalid amount")
	// ErrTooPrecise is returned when text has more than two fractional digits.
	ErrTooPrecise = errors.New("money: more than two decimal places")
	// ErrOverflow is returned when a sum does not fit in Cents.
	ErrOverflow = errors.New("money: amount out of range")
)

var (
	hundred  = decimal.NewFromInt(100)
	maxMinor = decimal.NewFromInt(math.MaxInt64)
)

// Parse converts decimal text such as "12.5" or "100" into Cents.
func Parse(s string) (Cents, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, ErrInvalidAmount
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return 0, fmt.Errorf("%w: %q", ErrInvalidAmount, s)
	}
	return FromDecimal(d)
}

// MustParse is Parse for constants and tests; it panics on bad input.
func MustParse(s string) Cents {
	c, err := Parse(s)
	if err != nil {
		panic(err)
	}
	return c
}

// FromDecimal converts a decimal amount in major units into Cents.
func FromDecimal(d decimal.Decimal) (Cents, error) {
	minor := d.Mul(hundred)
	if !minor.IsInteger() {
		return 0, ErrTooPrecise
	}
	if minor.Abs().GreaterThan(maxMinor) {
		return 0, fmt.Errorf("%w: %s is out of range", ErrInvalidAmount, d)
	}
	return Cents(minor.IntPart()), nil
}

// FromUnits builds an amount from whole major units.
func FromUnits(units int64) Cents { return Cents(units * 100) }

// Decimal returns the amount in major units.
func (c Cents) Decimal() decimal.Decimal {
	return decimal.New(int64(c), -2)
}

// String formats the amount with exactly two decimals, e.g. "12.50".
func (c Cents) String() string {
	return c.Decimal().StringFixed(2)
}

// IsPositive reports whether c > 0.
func (c Cents) IsPositive() bool { return c > 0 }

// MarshalJSON encodes the amount as a JSON number with two decimals.
func (c Cents) MarshalJSON() ([]byte, error) {
	return []byte(c.String()), nil
}

// UnmarshalJSON accepts a JSON number or a quoted decimal string.
func (c *Cents) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if bytes.Equal(b, []byte("null")) {
		return nil
	}
	s := string(b)
	if len(b) >= 2 && b[0] == '"' && b[len(b)-1] == '"' {
		s = string(b[1 : len(b)-1])
	}
	v, err := Parse(s)
	if err != nil {
		return err
	}
	*c = v
	return nil
}

// Add returns a+b, or ErrOverflow if the result does not fit.
func Add(a, b Cents) (Cents, error) {
	if (b > 0 && a > math.MaxInt64-b) || (b < 0 && a < math.MinInt64-b) {
		return 0, ErrOverflow
	}
	return a + b, nil
}

// Sum adds amounts, failing with ErrOverflow instead of wrapping.
func Sum(amounts ...Cents) (Cents, error) {
	var total Cents
	for _, a := range amounts {
		var err error
		if total, err = Add(total, a); err != nil {
			return 0, err
		}
	}
	return total, nil
}
