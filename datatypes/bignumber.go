// Datalith - Typed Go Client for the Data API and DevOps API
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/datalith

package datatypes

import (
	"fmt"

	"github.com/shopspring/decimal"
)

// BigNumber is an arbitrary-precision decimal. When the serdes big-number
// policy keeps precision, numeric wire tokens round-trip through BigNumber
// without float rounding.
type BigNumber struct {
	d decimal.Decimal
}

// ParseBigNumber parses a decimal string such as "1.5e300" or
// "123456789012345678901234567890.1".
func ParseBigNumber(s string) (BigNumber, error) {
	d, err := decimal.NewFromString(s)
	if err != nil {
		return BigNumber{}, fmt.Errorf("bignumber: %w", err)
	}
	return BigNumber{d: d}, nil
}

// BigNumberFromInt constructs a BigNumber from an int64.
func BigNumberFromInt(n int64) BigNumber {
	return BigNumber{d: decimal.NewFromInt(n)}
}

// BigNumberFromFloat constructs a BigNumber from a float64. The value is the
// shortest decimal that round-trips the float.
func BigNumberFromFloat(f float64) BigNumber {
	return BigNumber{d: decimal.NewFromFloat(f)}
}

// BigNumberFromDecimal wraps a shopspring decimal.
func BigNumberFromDecimal(d decimal.Decimal) BigNumber {
	return BigNumber{d: d}
}

// Decimal returns the underlying shopspring decimal.
func (n BigNumber) Decimal() decimal.Decimal { return n.d }

// IsInteger reports whether the value has no fractional part.
func (n BigNumber) IsInteger() bool { return n.d.IsInteger() }

// Int64 returns the value as an int64 and whether the conversion is exact.
func (n BigNumber) Int64() (int64, bool) {
	if !n.d.IsInteger() {
		return 0, false
	}
	bi := n.d.BigInt()
	if !bi.IsInt64() {
		return 0, false
	}
	return bi.Int64(), true
}

// Float64 returns the nearest float64 and whether it is exact.
func (n BigNumber) Float64() (float64, bool) {
	return n.d.Float64()
}

// Equal reports numeric equality (1.0 equals 1.00).
func (n BigNumber) Equal(other BigNumber) bool {
	return n.d.Equal(other.d)
}

// Cmp orders numerically: -1, 0, or +1.
func (n BigNumber) Cmp(other BigNumber) int {
	return n.d.Cmp(other.d)
}

// String returns the canonical decimal form without exponent notation.
func (n BigNumber) String() string {
	return n.d.String()
}
