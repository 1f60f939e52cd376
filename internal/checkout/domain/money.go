package domain

import (
	"errors"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
)

var ErrNegativeAmount = errors.New("amount must not be negative")

// minorUnitExponent lists currencies whose minor unit is not 1/100.
var minorUnitExponent = map[string]int32{
	"JPY": 0,
	"KRW": 0,
	"VND": 0,
	"CLP": 0,
	"BHD": 3,
	"KWD": 3,
	"JOD": 3,
	"OMR": 3,
}

func MinorUnitExponent(currency string) int32 {
	if exp, ok := minorUnitExponent[strings.ToUpper(currency)]; ok {
		return exp
	}
	return 2
}

// ToMinorUnits converts a major-unit amount to the provider's integer minor
// unit, rounding half away from zero.
func ToMinorUnits(amount decimal.Decimal, currency string) (int64, error) {
	if amount.IsNegative() {
		return 0, fmt.Errorf("%w: %s", ErrNegativeAmount, amount)
	}
	exp := MinorUnitExponent(currency)
	return amount.Round(exp).Shift(exp).IntPart(), nil
}

func FromMinorUnits(minor int64, currency string) decimal.Decimal {
	return decimal.New(minor, -MinorUnitExponent(currency))
}
