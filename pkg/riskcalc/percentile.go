package riskcalc

import (
	"math"
	"sort"
)

// Percentile returns the p-th percentile (0..100) of values using linear
// interpolation between the two closest ranks: rank = p/100*(n-1).
// values is sorted in place.
func Percentile(values []float64, p float64) float64 {
	n := len(values)
	if n == 0 || math.IsNaN(p) || p < 0 || p > 100 {
		return math.NaN()
	}
	sort.Float64s(values)
	if n == 1 {
		return values[0]
	}

	rank := p / 100 * float64(n-1)
	lo := int(math.Floor(rank))
	hi := int(math.Ceil(rank))
	if lo == hi {
		return values[lo]
	}
	frac := rank - float64(lo)
	return values[lo] + (values[hi]-values[lo])*frac
}
