package models

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"strings"

	"github.com/shopspring/decimal"
)

// ErrInvalidAmount is returned for amounts that do not parse or overflow
var ErrInvalidAmount = errors.New("invalid amount")

var (
	hundred  = decimal.NewFromInt(100)
	maxCents = decimal.NewFromInt(math.MaxInt64)
)

// MaxAmountCents caps a single expense, goal target or contribution
// (one billion in major units) so ledger sums stay far inside int64
const MaxAmountCents int64 = 100_000_000_000

// Money is an amount in minor units (cents)
type Money struct {
	Cents int64
}

// Cents builds a Money from minor units
func Cents(c int64) Money {
	return Money{Cents: c}
}

// ParseMoney parses a decimal string such as "12.5" or "-3.999",
// rounding half away from zero to whole cents
func ParseMoney(s string) (Money, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return Money{}, fmt.Errorf("%w: empty", ErrInvalidAmount)
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return Money{}, fmt.Errorf("%w: %q", ErrInvalidAmount, s)
	}
	return MoneyFromDecimal(d)
}

// MoneyFromDecimal rounds d to cents
func MoneyFromDecimal(d decimal.Decimal) (Money, error) {
	cents := d.Mul(hundred).Round(0)
	if cents.Abs().GreaterThan(maxCents) {
		return Money{}, fmt.Errorf("%w: %s is out of range", ErrInvalidAmount, d.String())
	}
	return Money{Cents: cents.IntPart()}, nil
}

// Decimal returns the amount in major units
func (m Money) Decimal() decimal.Decimal {
	return decimal.New(m.Cents, -2)
}

func (m Money) IsPositive() bool {
	return m.Cents > 0
}

func (m Money) Add(other Money) Money {
	return Money{Cents: m.Cents + other.Cents}
}

// String formats with two decimals, e.g. "12.50"
func (m Money) String() string {
	return m.Decimal().StringFixed(2)
}

// MarshalJSON encodes the amount as a decimal string
func (m Money) MarshalJSON() ([]byte, error) {
	return json.Marshal(m.String())
}

// UnmarshalJSON accepts a JSON number or a decimal string
func (m *Money) UnmarshalJSON(data []byte) error {
	var d decimal.Decimal
	if err := d.UnmarshalJSON(data); err != nil {
		return fmt.Errorf("%w: %s", ErrInvalidAmount, string(data))
	}
	parsed, err := MoneyFromDecimal(d)
	if err != nil {
		return err
	}
	*m = parsed
	return nil
}
