// Package money holds the decimal amount type used by orders and products.
package money

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"strconv"
)

// ErrNegative is returned when decoding a negative amount.
var ErrNegative = errors.New("amount must be >= 0")

// Cents is a non-negative decimal amount with two fraction digits, stored
// as an integer so that adding and reverting amounts is exact.
type Cents int64

// FromFloat rounds f to the nearest cent.
func FromFloat(f float64) Cents {
	return Cents(math.Round(f * 100))
}

// Parse parses a decimal string such as "19.99".
func Parse(s string) (Cents, error) {
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, fmt.Errorf("parse amount %q: %w", s, err)
	}
	if f < 0 {
		return 0, fmt.Errorf("%w (got %s)", ErrNegative, s)
	}
	return FromFloat(f), nil
}

// Float returns the amount as a float64.
func (c Cents) Float() float64 {
	return float64(c) / 100
}

// String formats the amount with two decimals.
func (c Cents) String() string {
	sign := ""
	v := int64(c)
	if v < 0 {
		sign = "-"
		v = -v
	}
	return fmt.Sprintf("%s%d.%02d", sign, v/100, v%100)
}

// Mul multiplies the amount by a quantity.
func (c Cents) Mul(n int) Cents {
	return c * Cents(n)
}

// UnmarshalJSON accepts a JSON number, a numeric string or null.
func (c *Cents) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if bytes.Equal(data, []byte("null")) {
		*c = 0
		return nil
	}
	if len(data) > 0 && data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		data = []byte(s)
	}
	v, err := Parse(string(data))
	if err != nil {
		return err
	}
	*c = v
	return nil
}

// MarshalJSON encodes the amount as a JSON number.
func (c Cents) MarshalJSON() ([]byte, error) {
	return []byte(c.String()), nil
}
