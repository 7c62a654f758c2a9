package emissions

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
)

func float(v float64) *float64 { return &v }

func TestDetectAnomalies(t *testing.T) {
	sources := []EmissionSource{
		{Type: "A", Emission: 100},
		{Type: "B", Emission: 110},
		{Type: "C", Emission: 105},
		{Type: "D", Emission: 95},
		{Type: "E", Emission: 10000},
		{Type: "F", Emission: 102},
		{Type: "G", Emission: 98},
	}

	assert.Equal(t, []int{4}, DetectAnomalies(sources))
}

func TestDetectAnomalies_SameSeedSameResult(t *testing.T) {
	sources := make([]EmissionSource, 0, 40)
	for i := 0; i < 40; i++ {
		sources = append(sources, EmissionSource{Type: "S", Emission: float64(100 + (i*37)%91)})
	}
	sources[7].Emission = 5000
	sources[23].Emission = 0

	first := DetectAnomalies(sources)
	second := DetectAnomalies(sources)
	assert.Equal(t, first, second)
	assert.Contains(t, first, 7)

	// roughly the contamination share of records are flagged
	assert.LessOrEqual(t, len(first), int(math.Ceil(Contamination*float64(len(sources))))+1)
	for i := 1; i < len(first); i++ {
		assert.Less(t, first[i-1], first[i])
	}
}

func TestDetectAnomalies_Degenerate(t *testing.T) {
	tests := []struct {
		name    string
		sources []EmissionSource
	}{
		{"empty", nil},
		{"single record", []EmissionSource{{Type: "A", Emission: 10}}},
		{"identical values", []EmissionSource{{Type: "A", Emission: 5}, {Type: "B", Emission: 5}, {Type: "C", Emission: 5}}},
		{"nan value", []EmissionSource{{Type: "A", Emission: 5}, {Type: "B", Emission: math.NaN()}}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			flagged := DetectAnomalies(tt.sources)
			assert.NotNil(t, flagged)
			assert.Empty(t, flagged)
		})
	}
}

func TestDetectRecordAnomalies_MissingEmission(t *testing.T) {
	assert.Empty(t, DetectRecordAnomalies([]SourceRecord{{Type: "X"}}))
	assert.Empty(t, DetectRecordAnomalies([]SourceRecord{
		{Type: "A", Emission: float(100)},
		{Type: "B"},
		{Type: "C", Emission: float(9000)},
	}))

	records := []SourceRecord{
		{Type: "A", Emission: float(100)},
		{Type: "B", Emission: float(110)},
		{Type: "C", Emission: float(105)},
		{Type: "D", Emission: float(95)},
		{Type: "E", Emission: float(10000)},
		{Type: "F", Emission: float(102)},
		{Type: "G", Emission: float(98)},
	}
	assert.Equal(t, []int{4}, DetectRecordAnomalies(records))
}

func TestIsolationForest_ScoreOrdering(t *testing.T) {
	values := []float64{10, 11, 12, 10.5, 11.5, 500}
	forest := FitIsolationForest(values, DefaultIsolationForestConfig())

	outlier := forest.Score(500)
	for _, v := range values[:5] {
		assert.Greater(t, outlier, forest.Score(v))
	}
	assert.LessOrEqual(t, outlier, 1.0)
}
