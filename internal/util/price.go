// Package util provides common utility functions for option price calculations.
package util

import "math"

// Listed option tick sizes: a penny below $3, a nickel at or above.
const (
	PennyTick     = 0.01
	NickelTick    = 0.05
	pennyMaxPrice = 3.0
)

// RoundToTick rounds x to the nearest tick increment, ties away from zero.
// A non-positive tick or a non-finite x returns x unchanged.
func RoundToTick(x, tick float64) float64 {
	if tick <= 0 || math.IsNaN(x) || math.IsInf(x, 0) {
		return x
	}
	return math.Round(x/tick) * tick
}

// OptionTick returns the quoting increment for an option premium.
func OptionTick(price float64) float64 {
	if price < pennyMaxPrice {
		return PennyTick
	}
	return NickelTick
}

// RoundPremium rounds an option premium to its quoting increment.
func RoundPremium(price float64) float64 {
	return RoundToTick(price, OptionTick(price))
}
