package valuation

import (
	"math"
	"sort"

	"github.com/shamay-group/appraisal-engine/internal/model"
)

// Describe computes descriptive statistics over a sample of price-per-area
// values. StdDev is the population standard deviation; it is reported for
// the appraiser, not used in the point estimate.
func Describe(values []float64) model.Statistics {
	n := len(values)
	if n == 0 {
		return model.Statistics{}
	}

	sorted := make([]float64, n)
	copy(sorted, values)
	sort.Float64s(sorted)

	var sum float64
	for _, v := range sorted {
		sum += v
	}
	mean := sum / float64(n)

	var sqDiff float64
	for _, v := range sorted {
		d := v - mean
		sqDiff += d * d
	}

	return model.Statistics{
		Count:   n,
		Average: mean,
		Median:  median(sorted),
		StdDev:  math.Sqrt(sqDiff / float64(n)),
		Min:     sorted[0],
		Max:     sorted[n-1],
	}
}

// median of an already-sorted sample. Even counts average the two central
// values; the tie-break is deterministic.
func median(sorted []float64) float64 {
	n := len(sorted)
	if n == 0 {
		return 0
	}
	if n%2 == 1 {
		return sorted[n/2]
	}
	return (sorted[n/2-1] + sorted[n/2]) / 2
}
