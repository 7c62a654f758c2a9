package emissions

import "fmt"

// ActionPlanYear is the planned emission total for one year of an action plan
type ActionPlanYear struct {
	Year        int                `json:"year"`
	Emission    float64            `json:"emission"`
	TonsReduced float64            `json:"tons_reduced"`
	ByType      map[string]float64 `json:"by_type"`
}

// ActionPlan compares a year-by-year reduction schedule against the baseline forecast
type ActionPlan struct {
	Baseline ForecastSeries   `json:"baseline"`
	Years    []ActionPlanYear `json:"years"`
}

// ProjectActionPlan applies yearly[i] to the current sources for year i. The
// planned totals are not grown; the baseline is the unreduced forecast over
// the same horizon.
func ProjectActionPlan(model Predictor, sources []EmissionSource, yearly []ReductionPlan) (ActionPlan, error) {
	if len(yearly) == 0 {
		return ActionPlan{}, fmt.Errorf("%w: action plan needs at least one year", ErrInvalidInput)
	}
	for i, plan := range yearly {
		for sourceType, pct := range plan {
			if pct < 0 || pct > 100 {
				return ActionPlan{}, fmt.Errorf("%w: year %d reduction for %s must be within [0, 100], got %v",
					ErrInvalidInput, i+1, sourceType, pct)
			}
		}
	}

	baseline, err := Forecast(model, TotalEmissions(sources), len(yearly))
	if err != nil {
		return ActionPlan{}, err
	}

	types := typesInOrder(sources)
	plan := ActionPlan{Baseline: baseline, Years: make([]ActionPlanYear, len(yearly))}
	for i, reductions := range yearly {
		result := ApplyReduction(sources, reductions)

		byType := make(map[string]float64, len(types))
		for _, t := range types {
			byType[t] = 0
		}
		for j, s := range sources {
			byType[s.Type] += s.Emission - result.PerRecordReduced[j]
		}

		plan.Years[i] = ActionPlanYear{
			Year:        BaseYear + i,
			Emission:    result.NewTotal,
			TonsReduced: result.TonsReduced(),
			ByType:      byType,
		}
	}
	return plan, nil
}
