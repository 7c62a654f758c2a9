package emissions

import (
	"fmt"
	"math"
)

// ScenarioResult compares the forecast of the current sources with the
// forecast of an adjusted set.
type ScenarioResult struct {
	Adjusted   []EmissionSource `json:"adjusted"`
	Baseline   ForecastSeries   `json:"baseline"`
	Scenario   ForecastSeries   `json:"scenario"`
	Difference []float64        `json:"difference"`
}

// SimulateScenario replaces record emissions with adjustments, keyed by record
// index, and forecasts both totals. Each adjusted value is clamped to
// [0, original emission]; records without an adjustment keep their value.
func SimulateScenario(model Predictor, sources []EmissionSource, adjustments map[int]float64, years int) (ScenarioResult, error) {
	for idx, v := range adjustments {
		if idx < 0 || idx >= len(sources) {
			return ScenarioResult{}, fmt.Errorf("%w: adjustment index %d out of range", ErrInvalidInput, idx)
		}
		if math.IsNaN(v) {
			return ScenarioResult{}, fmt.Errorf("%w: adjustment for index %d is not a number", ErrInvalidInput, idx)
		}
	}

	adjusted := make([]EmissionSource, len(sources))
	copy(adjusted, sources)
	for idx, v := range adjustments {
		adjusted[idx].Emission = math.Max(0, math.Min(sources[idx].Emission, v))
	}

	baseline, err := Forecast(model, TotalEmissions(sources), years)
	if err != nil {
		return ScenarioResult{}, err
	}
	scenario, err := Forecast(model, TotalEmissions(adjusted), years)
	if err != nil {
		return ScenarioResult{}, err
	}

	diff := make([]float64, len(baseline))
	for i := range baseline {
		diff[i] = baseline[i].Emission - scenario[i].Emission
	}

	return ScenarioResult{
		Adjusted:   adjusted,
		Baseline:   baseline,
		Scenario:   scenario,
		Difference: diff,
	}, nil
}
