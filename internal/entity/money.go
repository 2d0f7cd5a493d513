package domain

import "github.com/shopspring/decimal"

// ToMinorUnits converts a decimal amount to the processor's integer minor units,
// rounding to the nearest unit.
func ToMinorUnits(amount decimal.Decimal) int64 {
	return amount.Shift(2).Round(0).IntPart()
}

func FromMinorUnits(cents int64) decimal.Decimal {
	return decimal.New(cents, -2)
}

func AmountToCents(amount float64) int64 {
	return ToMinorUnits(decimal.NewFromFloat(amount))
}

func CentsToAmount(cents int64) float64 {
	return FromMinorUnits(cents).InexactFloat64()
}
