package emissions

import "math"

// CostCurveStep is the percentage increment between cost curve points
const CostCurveStep = 5

// CostCurvePoint is the cost and reduction of cutting every source by Percent
type CostCurvePoint struct {
	Percent     float64 `json:"percent"`
	TotalCost   float64 `json:"total_cost"`
	TonsReduced float64 `json:"tons_reduced"`
}

// CostCurve sweeps a uniform reduction from 0 to 100 percent. At each step the
// percentage applied to a source is clamped to its constraint.
func CostCurve(sources []EmissionSource, costs CostModel, constraints map[string]Constraint) []CostCurvePoint {
	points := make([]CostCurvePoint, 0, 100/CostCurveStep+1)

	for pct := 0; pct <= 100; pct += CostCurveStep {
		point := CostCurvePoint{Percent: float64(pct)}
		for _, s := range sources {
			applied := float64(pct)
			if c, ok := constraints[s.Type]; ok {
				applied = math.Max(c.Min, math.Min(c.Max, applied))
			}
			tons := s.Emission * applied / 100
			point.TonsReduced += tons
			point.TotalCost += tons * costs.CostFor(s.Type)
		}
		points = append(points, point)
	}

	return points
}
