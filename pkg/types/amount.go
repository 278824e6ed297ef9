package types

import (
	"fmt"

	"github.com/shopspring/decimal"
)

// ToBaseUnit converts a display amount (e.g. 1.5 ETH) to integral base units (wei).
// Digits beyond the asset precision are truncated.
func ToBaseUnit(amount decimal.Decimal, precision int32) decimal.Decimal {
	return amount.Shift(precision).Truncate(0)
}

// FromBaseUnit converts base units to a display amount.
func FromBaseUnit(amount decimal.Decimal, precision int32) decimal.Decimal {
	return amount.Shift(-precision)
}

// ParseAmount parses a decimal string. Empty strings are rejected.
func ParseAmount(s string) (decimal.Decimal, error) {
	if s == "" {
		return decimal.Zero, fmt.Errorf("empty amount")
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero, fmt.Errorf("invalid amount %q: %w", s, err)
	}
	return d, nil
}

// ParseAmountOrZero parses s, returning zero for empty or malformed input.
func ParseAmountOrZero(s string) decimal.Decimal {
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero
	}
	return d
}
