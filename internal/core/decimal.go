// Package core holds the finance domain model and the date helpers shared by
// the filtering and aggregation code.
//
// This file contains the always-decimal number type used for amounts and
// ordering hints.
package core

import (
	"errors"
	"strings"

	"github.com/shopspring/decimal"
)

// Decimal is a float that always serializes with at least one fractional
// digit: 200 is written as 200.0, 12.5 as 12.5.
//
// Exported files are read back by clients that type numbers by their textual
// form, so amount, toAmount, orderNum and bufferAmount must never appear as
// integers.
type Decimal float64

// Float64 returns the raw value.
func (d Decimal) Float64() float64 { return float64(d) }

// MarshalJSON implements json.Marshaler.
func (d Decimal) MarshalJSON() ([]byte, error) {
	v := decimal.NewFromFloat(float64(d))
	if v.Exponent() >= 0 {
		return []byte(v.StringFixed(1)), nil
	}
	return []byte(v.String()), nil
}

// UnmarshalJSON implements json.Unmarshaler. Quoted numbers are accepted as
// well since some older exports stored amounts as strings.
func (d *Decimal) UnmarshalJSON(b []byte) error {
	s := strings.TrimSpace(string(b))
	if s == "null" {
		return nil
	}
	s = strings.Trim(s, `"`)
	v, err := decimal.NewFromString(s)
	if err != nil {
		return errors.New("invalid decimal " + s)
	}
	f, _ := v.Float64()
	*d = Decimal(f)
	return nil
}

// Dec is a convenience for optional decimal fields.
func Dec(f float64) *Decimal {
	d := Decimal(f)
	return &d
}
