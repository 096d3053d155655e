package rewards

import "math"

// ComputePoints returns the points earned for a single purchase. Pure: identical
// inputs always yield identical output and the result is never negative.
//
// Base rate is one point per full 300 of purchase amount. Petrol with a
// recorded density of at least 0.75 earns a 20% quality bonus on the base,
// truncated down. Diesel purchases of 500 or more earn a flat 2-point bonus.
// Any purchase reaching the 300 floor earns at least one point even when the
// formula rounds to zero.
func ComputePoints(amount float64, fuelType FuelType, fuelDensity *float64) Points {
	basePoints := int64(math.Floor(amount / amountPerBasePoint))
	computed := basePoints

	if fuelType.IsPetrol() && fuelDensity != nil && *fuelDensity >= petrolDensityMinimum {
		computed += int64(math.Floor(float64(basePoints) * petrolQualityBonus))
	}

	if fuelType.IsDiesel() && amount >= dieselBonusSlab {
		computed += dieselBonusPoints
	}

	minimum := int64(0)
	if amount >= amountPerBasePoint {
		minimum = 1
	}
	if computed < minimum {
		computed = minimum
	}
	return Points(computed)
}
