package emissions

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestApplyReduction(t *testing.T) {
	result := ApplyReduction([]EmissionSource{{Type: "A", Emission: 100}}, ReductionPlan{"A": 50})
	assert.Equal(t, 50.0, result.NewTotal)
	assert.Equal(t, 100.0, result.OriginalTotal)
	assert.Equal(t, []float64{50}, result.PerRecordReduced)
	assert.Equal(t, 50.0, result.TonsReduced())
}

func TestApplyReduction_ZeroPlanIsIdentity(t *testing.T) {
	sources := []EmissionSource{
		{Type: SourceElectricity, Emission: 1200},
		{Type: SourceTransport, Emission: 800},
		{Type: SourceElectricity, Emission: 300},
	}

	result := ApplyReduction(sources, ReductionPlan{})
	assert.Equal(t, TotalEmissions(sources), result.NewTotal)
	assert.Zero(t, result.TonsReduced())
}

func TestApplyReduction_DuplicateTypes(t *testing.T) {
	sources := []EmissionSource{
		{Type: SourceElectricity, Emission: 1000},
		{Type: SourceTransport, Emission: 400},
		{Type: SourceElectricity, Emission: 200},
	}

	result := ApplyReduction(sources, ReductionPlan{SourceElectricity: 10, SourceTransport: 25})
	assert.InDelta(t, 900+300+180, result.NewTotal, 1e-9)
	assert.InDelta(t, 120.0, result.PerSourceReduced[SourceElectricity], 1e-9)
	assert.InDelta(t, 100.0, result.PerSourceReduced[SourceTransport], 1e-9)
	assert.Len(t, result.PerRecordReduced, 3)
}

func TestApplyReduction_Empty(t *testing.T) {
	result := ApplyReduction(nil, ReductionPlan{"A": 50})
	assert.Zero(t, result.NewTotal)
	assert.Empty(t, result.PerSourceReduced)
}

func TestReductionCost(t *testing.T) {
	sources := []EmissionSource{
		{Type: SourceElectricity, Emission: 1000},
		{Type: "Refrigerants", Emission: 100},
	}
	result := ApplyReduction(sources, ReductionPlan{SourceElectricity: 10, "Refrigerants": 50})

	// 100 t at 50 plus 50 t at the default 60
	assert.InDelta(t, 5000+3000, ReductionCost(result, DefaultCostModel()), 1e-9)
}

func TestOptimizeForBudget(t *testing.T) {
	sources := []EmissionSource{
		{Type: SourceElectricity, Emission: 1000},
		{Type: SourceTransport, Emission: 500},
	}
	costs := CostModel{SourceElectricity: 50, SourceTransport: 100}
	constraints := map[string]Constraint{
		SourceElectricity: DefaultConstraint(),
		SourceTransport:   DefaultConstraint(),
	}

	result, err := OptimizeForBudget(sources, costs, constraints, 10000)
	require.NoError(t, err)

	assert.Equal(t, ReductionPlan{SourceElectricity: 20, SourceTransport: 0}, result.Plan)
	assert.InDelta(t, 200.0, result.TotalTonsReduced, 1e-9)
	assert.InDelta(t, 10000.0, result.TotalSpent, 1e-9)
	require.Len(t, result.Allocations, 1)
	assert.Equal(t, 0, result.Allocations[0].Index)
}

func TestOptimizeForBudget_RespectsMaxConstraint(t *testing.T) {
	sources := []EmissionSource{
		{Type: SourceElectricity, Emission: 1000},
		{Type: SourceTransport, Emission: 500},
	}
	costs := CostModel{SourceElectricity: 50, SourceTransport: 100}
	constraints := map[string]Constraint{
		SourceElectricity: {Min: 0, Max: 30},
		SourceTransport:   {Min: 0, Max: 40},
	}

	result, err := OptimizeForBudget(sources, costs, constraints, 1e9)
	require.NoError(t, err)

	assert.Equal(t, 30.0, result.Plan[SourceElectricity])
	assert.Equal(t, 40.0, result.Plan[SourceTransport])
	assert.InDelta(t, 300+200, result.TotalTonsReduced, 1e-9)
	assert.InDelta(t, 300*50+200*100, result.TotalSpent, 1e-6)
}

func TestOptimizeForBudget_MinNotEnforced(t *testing.T) {
	sources := []EmissionSource{{Type: SourceTransport, Emission: 500}}
	constraints := map[string]Constraint{SourceTransport: {Min: 50, Max: 100}}

	result, err := OptimizeForBudget(sources, DefaultCostModel(), constraints, 1000)
	require.NoError(t, err)

	// 1000 buys 10 t at 100 per ton, 2% of the source
	assert.Equal(t, 2.0, result.Plan[SourceTransport])
}

func TestOptimizeForBudget_Feasibility(t *testing.T) {
	sources := []EmissionSource{
		{Type: SourceSupplyChain, Emission: 1500},
		{Type: SourceElectricity, Emission: 1200},
		{Type: SourceTransport, Emission: 800},
		{Type: "Waste", Emission: 333},
		{Type: SourceElectricity, Emission: 77},
	}
	constraints := map[string]Constraint{
		SourceSupplyChain: {Min: 0, Max: 15},
		SourceElectricity: {Min: 5, Max: 33.3},
		SourceTransport:   {Min: 0, Max: 60},
	}

	for _, budget := range []float64{0, 1, 999.99, 12345, 50000, 1e6} {
		result, err := OptimizeForBudget(sources, DefaultCostModel(), constraints, budget)
		require.NoError(t, err)

		assert.LessOrEqual(t, result.TotalSpent, budget)
		for sourceType, pct := range result.Plan {
			limit := 100.0
			if c, ok := constraints[sourceType]; ok {
				limit = c.Max
			}
			assert.LessOrEqual(t, pct, limit, "type %s at budget %v", sourceType, budget)
			assert.GreaterOrEqual(t, pct, 0.0)
		}
	}
}

func TestOptimizeForBudget_Monotonic(t *testing.T) {
	sources := []EmissionSource{
		{Type: SourceElectricity, Emission: 1000},
		{Type: SourceTransport, Emission: 500},
		{Type: SourceSupplyChain, Emission: 700},
	}
	constraints := map[string]Constraint{SourceTransport: {Min: 0, Max: 50}}

	previous := -1.0
	for budget := 0.0; budget <= 150000; budget += 2500 {
		result, err := OptimizeForBudget(sources, DefaultCostModel(), constraints, budget)
		require.NoError(t, err)
		assert.GreaterOrEqual(t, result.TotalTonsReduced, previous)
		previous = result.TotalTonsReduced
	}
}

func TestOptimizeForBudget_ZeroBudget(t *testing.T) {
	sources := []EmissionSource{
		{Type: SourceElectricity, Emission: 1000},
		{Type: SourceTransport, Emission: 500},
	}

	result, err := OptimizeForBudget(sources, DefaultCostModel(), nil, 0)
	require.NoError(t, err)
	assert.Equal(t, ReductionPlan{SourceElectricity: 0, SourceTransport: 0}, result.Plan)
	assert.Zero(t, result.TotalSpent)
	assert.Empty(t, result.Allocations)
}

func TestOptimizeForBudget_SkipsNonPositiveCost(t *testing.T) {
	sources := []EmissionSource{
		{Type: "Free", Emission: 100},
		{Type: SourceTransport, Emission: 100},
	}
	costs := CostModel{"Free": 0, SourceTransport: 100}

	result, err := OptimizeForBudget(sources, costs, nil, 1000)
	require.NoError(t, err)
	assert.Equal(t, 0.0, result.Plan["Free"])
	assert.Equal(t, 10.0, result.Plan[SourceTransport])
}

func TestOptimizeForBudget_NegativeBudget(t *testing.T) {
	_, err := OptimizeForBudget(nil, DefaultCostModel(), nil, -1)
	assert.True(t, errors.Is(err, ErrInvalidInput))
}

func TestOptimizeForBudget_InvalidConstraints(t *testing.T) {
	sources := []EmissionSource{{Type: "A", Emission: 100}}
	costs := CostModel{"A": 1}

	cases := map[string]Constraint{
		"max above 100": {Min: 0, Max: 150},
		"min above max": {Min: 80, Max: 20},
		"negative min":  {Min: -5, Max: 50},
	}
	for name, c := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := OptimizeForBudget(sources, costs, map[string]Constraint{"A": c}, 1e6)
			assert.True(t, errors.Is(err, ErrInvalidInput))
		})
	}
}

func TestOptimizeForBudget_FullConstraintCapsAtHundred(t *testing.T) {
	sources := []EmissionSource{{Type: "A", Emission: 100}}

	result, err := OptimizeForBudget(sources, CostModel{"A": 1}, map[string]Constraint{"A": {Min: 0, Max: 100}}, 1e6)
	require.NoError(t, err)
	assert.Equal(t, 100.0, result.Plan["A"])
	assert.InDelta(t, 100.0, result.TotalTonsReduced, 1e-9)
}
