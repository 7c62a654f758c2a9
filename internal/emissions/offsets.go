package emissions

import (
	"fmt"
	"math"
	"time"
)

// EPA greenhouse gas equivalency factors in kg CO2e per unit
const (
	kgPerMileDriven    = 0.192
	kgPerSmartphone    = 0.00822
	kgPerTreeSeedling  = 60.0
	kgPerHomeEnergyDay = 18.3
	kgPerMetricTon     = 1000.0
)

// Equivalency expresses a tonnage in relatable everyday units
type Equivalency struct {
	Label string  `json:"label"`
	Value float64 `json:"value"`
	Unit  string  `json:"unit"`
}

// OffsetCost returns the price of offsetting tons at OffsetPricePerTon
func OffsetCost(tons float64) (float64, error) {
	if tons < 0 || math.IsNaN(tons) || math.IsInf(tons, 0) {
		return 0, fmt.Errorf("%w: offset tons must be a non-negative number, got %v", ErrInvalidInput, tons)
	}
	return tons * OffsetPricePerTon, nil
}

// Equivalencies converts tons CO2e into miles driven, smartphone charges, tree
// seedlings grown for ten years and days of home energy use.
func Equivalencies(tons float64) []Equivalency {
	kg := tons * kgPerMetricTon
	return []Equivalency{
		{Label: "Miles driven by an average car", Value: kg / kgPerMileDriven, Unit: "miles"},
		{Label: "Smartphones charged", Value: kg / kgPerSmartphone, Unit: "charges"},
		{Label: "Tree seedlings grown for 10 years", Value: kg / kgPerTreeSeedling, Unit: "trees"},
		{Label: "Days of home energy use", Value: kg / kgPerHomeEnergyDay, Unit: "days"},
	}
}

// StaleSince reports whether data last updated at lastUpdate is older than
// StaleAfterDays as of now, along with its age in whole days.
func StaleSince(lastUpdate, now time.Time) (bool, int) {
	if lastUpdate.IsZero() {
		return true, 0
	}
	days := int(now.Sub(lastUpdate).Hours() / 24)
	return days > StaleAfterDays, days
}
