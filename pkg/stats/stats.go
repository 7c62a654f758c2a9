package stats

import (
	"math"
	"sort"
)

// Summary holds descriptive statistics for a sample
type Summary struct {
	Mean   float64 `json:"mean"`
	Median float64 `json:"median"`
	StdDev float64 `json:"std_dev"`
	Min    float64 `json:"min"`
	Max    float64 `json:"max"`
	P25    float64 `json:"p25"`
	P75    float64 `json:"p75"`
	P90    float64 `json:"p90"`
}

// Sum returns the sum of values
func Sum(values []float64) float64 {
	total := 0.0
	for _, v := range values {
		total += v
	}
	return total
}

// Mean returns the arithmetic mean, or 0 for an empty sample
func Mean(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}
	return Sum(values) / float64(len(values))
}

// Describe calculates statistics from raw values
func Describe(values []float64) Summary {
	if len(values) == 0 {
		return Summary{}
	}

	sorted := Sorted(values)
	n := len(sorted)
	mean := Mean(sorted)

	var median float64
	if n%2 == 0 {
		median = (sorted[n/2-1] + sorted[n/2]) / 2
	} else {
		median = sorted[n/2]
	}

	sumSqDiff := 0.0
	for _, v := range sorted {
		sumSqDiff += math.Pow(v-mean, 2)
	}

	return Summary{
		Mean:   mean,
		Median: median,
		StdDev: math.Sqrt(sumSqDiff / float64(n)),
		Min:    sorted[0],
		Max:    sorted[n-1],
		P25:    Percentile(sorted, 25),
		P75:    Percentile(sorted, 75),
		P90:    Percentile(sorted, 90),
	}
}

// Sorted returns an ascending copy of values
func Sorted(values []float64) []float64 {
	sorted := make([]float64, len(values))
	copy(sorted, values)
	sort.Float64s(sorted)
	return sorted
}

// Percentile calculates the p-th percentile of a sorted slice using linear
// interpolation between the closest ranks.
func Percentile(sorted []float64, p float64) float64 {
	if len(sorted) == 0 {
		return 0
	}
	if len(sorted) == 1 {
		return sorted[0]
	}

	index := (p / 100) * float64(len(sorted)-1)
	lower := int(math.Floor(index))
	upper := int(math.Ceil(index))

	if lower == upper {
		return sorted[lower]
	}

	weight := index - float64(lower)
	return sorted[lower]*(1-weight) + sorted[upper]*weight
}
