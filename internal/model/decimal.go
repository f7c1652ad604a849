package model

import "github.com/shopspring/decimal"

// NormalizeTick rounds value to precision decimal places, the venue's
// declared price precision. Price
// and quantity comparisons must go through this before equality is
// checked — never compare raw floats across scans.
func NormalizeTick(value decimal.Decimal, precision int32) decimal.Decimal {
	return value.Round(precision)
}

// SamePrice reports whether two prices are equal once normalized to
// the venue's price precision.
func SamePrice(a, b decimal.Decimal, precision int32) bool {
	return NormalizeTick(a, precision).Equal(NormalizeTick(b, precision))
}

// RoundLevelBases are the bases of the psychological price levels
// checked by the round-level flag: L = b * 10^k for b in this set, k
// in [-3, 3].
var RoundLevelBases = []float64{0.1, 0.5, 1, 5, 10, 50, 100, 500, 1000}

const roundLevelTolerance = 0.001

// NearestRoundLevel scans the candidate psychological levels around
// price and returns the closest one plus the relative distance to it.
// If nothing is within tolerance, ok is false.
func NearestRoundLevel(price float64) (level float64, distance float64, ok bool) {
	if price <= 0 {
		return 0, 0, false
	}
	bestDist := -1.0
	var bestLevel float64
	for k := -3; k <= 3; k++ {
		scale := pow10(k)
		for _, b := range RoundLevelBases {
			l := b * scale
			if l <= 0 {
				continue
			}
			d := absf(price-l) / l
			if bestDist < 0 || d < bestDist {
				bestDist = d
				bestLevel = l
			}
		}
	}
	if bestDist >= 0 && bestDist <= roundLevelTolerance {
		return bestLevel, bestDist, true
	}
	return bestLevel, bestDist, false
}

func pow10(k int) float64 {
	v := 1.0
	if k >= 0 {
		for i := 0; i < k; i++ {
			v *= 10
		}
		return v
	}
	for i := 0; i > k; i-- {
		v /= 10
	}
	return v
}

func absf(v float64) float64 {
	if v < 0 {
		return -v
	}
	return v
}
