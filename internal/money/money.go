// Package money provides monetary rounding and formatting helpers.
//
// All stored amounts are rupees with two decimal places. Rounding is
// half-up, applied to every derived value at the point it is computed so
// that recomputed documents match persisted ones bit-for-bit.
package money

import (
	"github.com/shopspring/decimal"
)

// Round rounds v to two decimal places, half away from zero.
func Round(v float64) float64 {
	f, _ := decimal.NewFromFloat(v).Round(2).Float64()
	return f
}

// Percent returns round(v * pct / 100) to two decimal places.
func Percent(v, pct float64) float64 {
	result := decimal.NewFromFloat(v).
		Mul(decimal.NewFromFloat(pct)).
		Div(decimal.NewFromInt(100)).
		Round(2)
	f, _ := result.Float64()
	return f
}

// Split breaks an amount into whole rupees and paise (0-99).
func Split(amount float64) (rupees int64, paise int64) {
	d := decimal.NewFromFloat(amount).Round(2)
	rupees = d.IntPart()
	paise = d.Sub(decimal.NewFromInt(rupees)).Mul(decimal.NewFromInt(100)).IntPart()
	return rupees, paise
}
