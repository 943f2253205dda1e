package costing

import "math"

// PlatformCommissionRate is the fixed delivery-platform commission
// applied on top of the restaurant price.
const PlatformCommissionRate = 0.12

// Round2 rounds to two decimal places, half away from zero.
func Round2(value float64) float64 {
	return math.Round(value*100) / 100
}

// SuggestedPrices derives the suggested restaurant and delivery-platform
// prices from a total cost and the restaurant's correction factor. A
// missing factor counts as 1. Each price is rounded independently so the
// platform price is computed from the unrounded base.
func SuggestedPrices(totalCost, correctionFactor float64) (restaurant, platform float64) {
	if correctionFactor == 0 {
		correctionFactor = 1
	}
	base := totalCost * correctionFactor
	return Round2(base), Round2(base * (1 + PlatformCommissionRate))
}
