package city

import "sort"

// Gini computes the discrete Gini coefficient of a wealth collection using
// the mean absolute difference formula
//
//	G = 2·Σ i·x_i / (n·Σ x_i) − (n+1)/n
//
// over the ascending-sorted values (1-indexed). The result is 0 for perfect
// equality (including all-zero wealth) and approaches 1 as wealth concentrates.
// Sorting happens on a local copy; no ranked view of individuals is retained
// or exposed. Values are assumed non-negative; the engine's exit filter
// guarantees this.
func Gini(values []float64) float64 {
	n := len(values)
	if n == 0 {
		return 0
	}

	sorted := make([]float64, n)
	copy(sorted, values)
	sort.Float64s(sorted)

	var total, weighted float64
	for i, w := range sorted {
		total += w
		weighted += float64(i+1) * w
	}

	// A society with zero total wealth is perfectly equal, not a zero division.
	if total == 0 {
		return 0
	}

	return 2*weighted/(float64(n)*total) - float64(n+1)/float64(n)
}
