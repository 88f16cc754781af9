// Package money provides the fixed-precision rounding used across engine
// output: 2 decimal places for summary totals, 8 for per-event figures,
// round-half-up in both cases.
package money

import "github.com/shopspring/decimal"

// SummaryPlaces is the precision of summary totals.
const SummaryPlaces = 2

// EventPlaces is the precision of per-event monetary figures.
const EventPlaces = 8

// Round rounds v half-up (half away from zero) to the given number of
// decimal places. Decimal arithmetic keeps the result bit-reproducible
// across platforms.
func Round(v float64, places int32) float64 {
	f, _ := decimal.NewFromFloat(v).Round(places).Float64()
	return f
}

// RoundSummary rounds to summary precision (2 places).
func RoundSummary(v float64) float64 {
	return Round(v, SummaryPlaces)
}

// RoundEvent rounds to per-event precision (8 places).
func RoundEvent(v float64) float64 {
	return Round(v, EventPlaces)
}
