package emissions

import (
	"fmt"
	"math"
)

// Forecast projects startingTotal forward for the given number of years using
// compounding growth at GrowthRate. The first point is the starting total in
// BaseYear.
//
// The model is accepted so a learned predictor can be plugged in later, but
// the projection does not consult it.
func Forecast(model Predictor, startingTotal float64, years int) (ForecastSeries, error) {
	if years < 1 {
		return nil, fmt.Errorf("%w: years must be at least 1, got %d", ErrInvalidInput, years)
	}
	if startingTotal < 0 || math.IsNaN(startingTotal) || math.IsInf(startingTotal, 0) {
		return nil, fmt.Errorf("%w: starting total must be a non-negative number, got %v", ErrInvalidInput, startingTotal)
	}

	series := make(ForecastSeries, years)
	for i := 0; i < years; i++ {
		series[i] = ForecastPoint{
			Year:     BaseYear + i,
			Emission: startingTotal * math.Pow(1+GrowthRate, float64(i)),
		}
	}
	return series, nil
}

// ForecastReduction applies plan to sources and forecasts the reduced total
func ForecastReduction(model Predictor, sources []EmissionSource, plan ReductionPlan, years int) (ForecastSeries, ReductionResult, error) {
	result := ApplyReduction(sources, plan)
	series, err := Forecast(model, result.NewTotal, years)
	if err != nil {
		return nil, result, err
	}
	return series, result, nil
}
