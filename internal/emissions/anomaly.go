package emissions

import (
	"math"

	"github.com/Kaustab2003/co2-emission-forecasting/pkg/stats"
)

// Contamination is the expected share of anomalous records
const Contamination = 0.15

// DetectAnomalies flags records whose emission is unusual relative to the rest
// of the company's sources. It returns ascending record indices and an empty
// result when there is nothing to score.
func DetectAnomalies(sources []EmissionSource) []int {
	values := make([]float64, len(sources))
	for i, s := range sources {
		values[i] = s.Emission
	}
	return detectOutliers(values)
}

// DetectRecordAnomalies is DetectAnomalies for decoded input. Any record without
// an emission value yields an empty result.
func DetectRecordAnomalies(records []SourceRecord) []int {
	values := make([]float64, len(records))
	for i, r := range records {
		if r.Emission == nil {
			return []int{}
		}
		values[i] = *r.Emission
	}
	return detectOutliers(values)
}

func detectOutliers(values []float64) []int {
	flagged := []int{}
	if len(values) == 0 {
		return flagged
	}
	for _, v := range values {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return flagged
		}
	}

	forest := FitIsolationForest(values, DefaultIsolationForestConfig())

	scores := make([]float64, len(values))
	for i, v := range values {
		scores[i] = forest.Score(v)
	}

	// Outliers are the records scoring above the (1 - contamination) quantile
	threshold := stats.Percentile(stats.Sorted(scores), 100*(1-Contamination))
	for i, score := range scores {
		if score > threshold {
			flagged = append(flagged, i)
		}
	}
	return flagged
}
