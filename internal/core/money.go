// Package core provides amount parsing and formatting helpers.
//
// Amounts are kept as shopspring decimals end to end so that sums of many
// small entries do not drift the way float64 totals do.
package core

import (
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
)

const (
	// MaxAmountDigits bounds the integer part of an amount.
	MaxAmountDigits = 15
	// MaxAmountScale bounds the number of decimal places.
	MaxAmountScale = 8

	maxCoefficientBits = 256
)

// ParseAmount converts user input into a decimal amount.
//
// Both dot (12.34) and comma (12,34) decimal separators are accepted, as are
// surrounding spaces and a leading sign. Thousands separators are not.
//
// Examples:
//
//	ParseAmount("12.34") -> 12.34, nil
//	ParseAmount("12,34") -> 12.34, nil
//	ParseAmount(" 7 ")   -> 7, nil
//	ParseAmount("1.2.3") -> error
func ParseAmount(s string) (decimal.Decimal, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return decimal.Zero, invalid("amount", "is required")
	}
	s = strings.ReplaceAll(s, ",", ".")
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero, invalid("amount", "must be a number")
	}
	if err := ValidateAmount(d); err != nil {
		return decimal.Zero, err
	}
	return d, nil
}

// ValidateAmount rejects amounts outside what the dashboard and its chart can
// show: more than MaxAmountDigits integer digits or more than MaxAmountScale
// decimal places. It only looks at the exponent and coefficient length, so
// inputs like 1e1000000 are refused without expanding them.
func ValidateAmount(d decimal.Decimal) error {
	exp := int64(d.Exponent())
	if d.IsZero() {
		if exp < -MaxAmountScale || exp > MaxAmountDigits {
			return invalid("amount", "must be a plain number")
		}
		return nil
	}
	if d.Coefficient().BitLen() > maxCoefficientBits {
		return invalid("amount", "has too many digits")
	}
	if exp < -MaxAmountScale {
		// Trailing zeros may hide a representable value, e.g. 1.500000000.
		coef := d.Coefficient().String()
		trimmed := strings.TrimRight(coef, "0")
		exp += int64(len(coef) - len(trimmed))
		if exp < -MaxAmountScale {
			return invalid("amount", fmt.Sprintf("must have at most %d decimal places", MaxAmountScale))
		}
	}
	if int64(d.NumDigits())+exp > MaxAmountDigits {
		return invalid("amount", fmt.Sprintf("must be less than 1e%d in magnitude", MaxAmountDigits))
	}
	return nil
}

// FormatAmount renders an amount with two decimals for logs and sheet cells.
func FormatAmount(d decimal.Decimal) string {
	return d.StringFixed(2)
}
