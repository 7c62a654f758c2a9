package emissions

import (
	"fmt"
	"math"
	"sort"
)

// Allocation records the reduction bought for a single source record
type Allocation struct {
	Index       int     `json:"index"`
	Type        string  `json:"type"`
	CostPerTon  float64 `json:"cost_per_ton"`
	TonsReduced float64 `json:"tons_reduced"`
	Spent       float64 `json:"spent"`
	Percent     float64 `json:"percent"`
}

// OptimizationResult is the plan chosen by OptimizeForBudget
type OptimizationResult struct {
	Plan             ReductionPlan `json:"plan"`
	TotalTonsReduced float64       `json:"total_tons_reduced"`
	TotalSpent       float64       `json:"total_spent"`
	Allocations      []Allocation  `json:"allocations"`
}

// OptimizeForBudget greedily spends budget on the cheapest tons first. Records
// are visited in ascending cost order with ties kept in input order, and each
// record is capped at its type's Max constraint. Constraints outside
// 0 <= Min <= Max <= 100 are rejected; Min is otherwise not enforced. Records sharing a type are allocated independently and
// the later record's percentage is the one kept in the plan.
func OptimizeForBudget(sources []EmissionSource, costs CostModel, constraints map[string]Constraint, budget float64) (OptimizationResult, error) {
	if budget < 0 || math.IsNaN(budget) {
		return OptimizationResult{}, fmt.Errorf("%w: budget must be non-negative, got %v", ErrInvalidInput, budget)
	}
	for sourceType, c := range constraints {
		if err := c.Validate(sourceType); err != nil {
			return OptimizationResult{}, err
		}
	}

	result := OptimizationResult{Plan: make(ReductionPlan)}
	for _, s := range sources {
		result.Plan[s.Type] = 0
	}

	order := make([]int, len(sources))
	for i := range order {
		order[i] = i
	}
	sort.SliceStable(order, func(a, b int) bool {
		return costs.CostFor(sources[order[a]].Type) < costs.CostFor(sources[order[b]].Type)
	})

	remaining := budget
	for _, idx := range order {
		if remaining <= 0 {
			break
		}

		s := sources[idx]
		cost := costs.CostFor(s.Type)
		if cost <= 0 {
			continue
		}

		maxTons := s.Emission
		if c, ok := constraints[s.Type]; ok {
			maxTons = s.Emission * c.Max / 100
		}
		affordable := math.Min(maxTons, remaining/cost)
		if affordable < 0 {
			affordable = 0
		}

		pct := 0.0
		if s.Emission != 0 {
			pct = math.Floor(affordable / s.Emission * 100)
		}
		result.Plan[s.Type] = pct

		spent := affordable * cost
		remaining -= spent
		if remaining < 0 {
			// float rounding on remaining/cost*cost
			remaining = 0
		}
		result.TotalTonsReduced += affordable
		result.Allocations = append(result.Allocations, Allocation{
			Index:       idx,
			Type:        s.Type,
			CostPerTon:  cost,
			TonsReduced: affordable,
			Spent:       spent,
			Percent:     pct,
		})
	}

	result.TotalSpent = budget - remaining
	return result, nil
}
