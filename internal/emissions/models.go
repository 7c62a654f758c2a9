package emissions

import (
	"fmt"
	"math"
)

// =====================================================
// Constants
// =====================================================

const (
	// BaseYear is the first year of every forecast series
	BaseYear = 2025

	// GrowthRate is the fixed annual growth applied by Forecast
	GrowthRate = 0.02

	// DefaultCostPerTon applies to source types without an entry in the CostModel
	DefaultCostPerTon = 60.0

	// DefaultTarget is the emission level used for target-year lookups
	DefaultTarget = 1000.0

	// OffsetPricePerTon is the price of one ton of purchased offsets
	OffsetPricePerTon = 10.0

	// StaleAfterDays is the age at which source data should be refreshed
	StaleAfterDays = 30

	// ScenarioCompareYears is the horizon used when comparing saved scenarios
	ScenarioCompareYears = 10
)

// Well-known source types
const (
	SourceElectricity = "Electricity"
	SourceTransport   = "Transport"
	SourceSupplyChain = "Supply Chain"
	SourceOther       = "Other"
)

// =====================================================
// Core Types
// =====================================================

// GeoPoint is an optional location for an emission source
type GeoPoint struct {
	Lat float64 `json:"lat"`
	Lon float64 `json:"lon"`
}

// EmissionSource is one category of a company's annual output in tons CO2e
type EmissionSource struct {
	Type     string    `json:"type" binding:"required"`
	Emission float64   `json:"emission" binding:"gte=0"`
	Location *GeoPoint `json:"location,omitempty"`
}

// SourceRecord is an emission source as decoded from user input, where the
// emission value may be absent.
type SourceRecord struct {
	Type     string   `json:"type"`
	Emission *float64 `json:"emission"`
}

// ForecastPoint is the projected emission for one year
type ForecastPoint struct {
	Year     int     `json:"year"`
	Emission float64 `json:"emission"`
}

// ForecastSeries is a year-ordered projection of total emissions
type ForecastSeries []ForecastPoint

// Emissions returns the emission values of the series in order
func (s ForecastSeries) Emissions() []float64 {
	values := make([]float64, len(s))
	for i, p := range s {
		values[i] = p.Emission
	}
	return values
}

// ReductionPlan maps a source type to a reduction percentage in [0, 100]
type ReductionPlan map[string]float64

// Constraint bounds the reduction percentage chosen for a source type
type Constraint struct {
	Min float64 `json:"min"`
	Max float64 `json:"max"`
}

// DefaultConstraint allows any reduction between 0 and 100 percent
func DefaultConstraint() Constraint {
	return Constraint{Min: 0, Max: 100}
}

// Validate checks that 0 <= Min <= Max <= 100
func (c Constraint) Validate(sourceType string) error {
	if math.IsNaN(c.Min) || math.IsNaN(c.Max) || c.Min < 0 || c.Max > 100 || c.Min > c.Max {
		return fmt.Errorf("%w: constraint for %s must satisfy 0 <= min <= max <= 100, got (%v, %v)",
			ErrInvalidInput, sourceType, c.Min, c.Max)
	}
	return nil
}

// CostModel maps a source type to its cost per ton of reduction
type CostModel map[string]float64

// CostFor returns the cost per ton for a source type, falling back to DefaultCostPerTon
func (m CostModel) CostFor(sourceType string) float64 {
	if cost, ok := m[sourceType]; ok {
		return cost
	}
	return DefaultCostPerTon
}

// DefaultCostModel returns the reference costs per ton by source type
func DefaultCostModel() CostModel {
	return CostModel{
		SourceElectricity: 50,
		SourceTransport:   100,
		SourceSupplyChain: 75,
		SourceOther:       60,
	}
}

// =====================================================
// Aggregation
// =====================================================

// TotalEmissions sums the emission of every record
func TotalEmissions(sources []EmissionSource) float64 {
	total := 0.0
	for _, s := range sources {
		total += s.Emission
	}
	return total
}

// BreakdownByType sums emissions per source type. Duplicate types are additive.
func BreakdownByType(sources []EmissionSource) map[string]float64 {
	breakdown := make(map[string]float64)
	for _, s := range sources {
		breakdown[s.Type] += s.Emission
	}
	return breakdown
}

// typesInOrder returns the distinct source types in first-seen order
func typesInOrder(sources []EmissionSource) []string {
	seen := make(map[string]bool)
	var types []string
	for _, s := range sources {
		if !seen[s.Type] {
			seen[s.Type] = true
			types = append(types, s.Type)
		}
	}
	return types
}
