package services

import "math"

// ProratedAmount computes the immediate charge when moving between plans
// mid-cycle: the price difference, floored at zero, rounded to 2 decimals.
// Downgrades never reach this path; they take effect at the billing boundary.
func ProratedAmount(currentPrice, newPrice float64) float64 {
	diff := newPrice - currentPrice
	if diff <= 0 {
		return 0
	}
	return math.Round(diff*100) / 100
}
