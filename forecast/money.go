package forecast

import (
	"math"

	"github.com/shopspring/decimal"
)

// Revenue values are carried as float64 through the statistics and rounded
// through decimal at every output boundary so persisted figures are exact to
// the cent.

func round2(v float64) float64 { return roundTo(v, 2) }

func round1(v float64) float64 { return roundTo(v, 1) }

func roundTo(v float64, places int32) float64 {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return 0
	}
	return decimal.NewFromFloat(v).Round(places).InexactFloat64()
}

// dec converts to decimal, mapping NaN and infinities to zero.
func dec(v float64) decimal.Decimal {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return decimal.Zero
	}
	return decimal.NewFromFloat(v)
}

// roundHalfAway rounds to the nearest integer, halves away from zero.
func roundHalfAway(v float64) int {
	return int(math.Round(v))
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

func clampInt(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

func mean(xs []float64) float64 {
	if len(xs) == 0 {
		return 0
	}
	var sum float64
	for _, x := range xs {
		sum += x
	}
	return sum / float64(len(xs))
}

// populationStdDev is the standard deviation with an N denominator.
func populationStdDev(xs []float64) float64 {
	if len(xs) == 0 {
		return 0
	}
	m := mean(xs)
	var sq float64
	for _, x := range xs {
		sq += (x - m) * (x - m)
	}
	return math.Sqrt(sq / float64(len(xs)))
}

// splitByShares splits total into per-shift amounts. Midday and Afternoon
// are rounded to the cent; Night takes the exact remainder so the parts sum
// to the rounded total.
func splitByShares(total float64, shares [3]float64) ShiftRevenue {
	t := dec(round2(total))
	med := t.Mul(dec(shares[0])).Round(2)
	aft := t.Mul(dec(shares[1])).Round(2)
	night := t.Sub(med).Sub(aft)
	if night.IsNegative() {
		night = decimal.Zero
	}
	return ShiftRevenue{med.InexactFloat64(), aft.InexactFloat64(), night.InexactFloat64()}
}

// scaleShifts multiplies every shift by f, rounding each to the cent.
func scaleShifts(s ShiftRevenue, f float64) ShiftRevenue {
	return ShiftRevenue{round2(s[0] * f), round2(s[1] * f), round2(s[2] * f)}
}
