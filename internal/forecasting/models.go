package forecasting

import (
	"github.com/google/uuid"

	"github.com/Kaustab2003/co2-emission-forecasting/internal/emissions"
)

// MaxYears caps every forecast horizon accepted over the API
const MaxYears = 50

// =====================================================
// Requests
// =====================================================

// ForecastRequest asks for a baseline forecast. Sources are ignored on
// company routes.
type ForecastRequest struct {
	Sources []emissions.EmissionSource `json:"sources" binding:"dive"`
	Years   int                        `json:"years"`
	Target  float64                    `json:"target"`
}

// ReductionRequest applies a percentage plan before forecasting
type ReductionRequest struct {
	Sources []emissions.EmissionSource `json:"sources" binding:"dive"`
	Plan    emissions.ReductionPlan    `json:"plan"`
	Years   int                        `json:"years"`
	Costs   emissions.CostModel        `json:"costs,omitempty"`
}

// OptimizeRequest spends a budget on the cheapest reductions
type OptimizeRequest struct {
	Sources     []emissions.EmissionSource      `json:"sources" binding:"dive"`
	Budget      float64                         `json:"budget"`
	Costs       emissions.CostModel             `json:"costs,omitempty"`
	Constraints map[string]emissions.Constraint `json:"constraints,omitempty"`
	Years       int                             `json:"years"`
}

// AnomalyRequest carries raw records, which may lack an emission value
type AnomalyRequest struct {
	Sources []emissions.SourceRecord `json:"sources"`
}

// CostCurveRequest sweeps uniform reductions
type CostCurveRequest struct {
	Sources     []emissions.EmissionSource      `json:"sources" binding:"dive"`
	Costs       emissions.CostModel             `json:"costs,omitempty"`
	Constraints map[string]emissions.Constraint `json:"constraints,omitempty"`
}

// ActionPlanRequest schedules one reduction plan per year
type ActionPlanRequest struct {
	Sources []emissions.EmissionSource `json:"sources" binding:"dive"`
	Yearly  []emissions.ReductionPlan  `json:"yearly" binding:"required,min=1"`
}

// ScenarioRequest overrides record emissions by index
type ScenarioRequest struct {
	Sources     []emissions.EmissionSource `json:"sources" binding:"dive"`
	Adjustments map[int]float64            `json:"adjustments"`
	Years       int                        `json:"years"`
}

// PredictRequest holds one feature row for the regression model
type PredictRequest struct {
	Features map[string]float64 `json:"features" binding:"required"`
}

// =====================================================
// Results
// =====================================================

// ForecastResult is a baseline forecast with its analytics
type ForecastResult struct {
	CompanyID  *uuid.UUID                  `json:"company_id,omitempty"`
	Total      float64                     `json:"total"`
	Breakdown  map[string]float64          `json:"breakdown"`
	Forecast   emissions.ForecastSeries    `json:"forecast"`
	Analytics  emissions.ForecastAnalytics `json:"analytics"`
	Target     float64                     `json:"target"`
	TargetYear *int                        `json:"target_year,omitempty"`
}

// ReductionResult compares the reduced forecast with the baseline
type ReductionResult struct {
	Reduction   emissions.ReductionResult `json:"reduction"`
	Baseline    emissions.ForecastSeries  `json:"baseline"`
	Forecast    emissions.ForecastSeries  `json:"forecast"`
	TonsReduced float64                   `json:"tons_reduced"`
	Cost        float64                   `json:"cost"`
}

// OptimizeResult is the optimizer outcome and the forecast it leads to
type OptimizeResult struct {
	Optimization emissions.OptimizationResult `json:"optimization"`
	NewTotal     float64                      `json:"new_total"`
	Forecast     emissions.ForecastSeries     `json:"forecast"`
}

// AnomalyResult lists the flagged records
type AnomalyResult struct {
	Indices   []int                    `json:"indices"`
	Anomalies []emissions.SourceRecord `json:"anomalies"`
}

// AnalyticsResult is the analytics view of a stored company
type AnalyticsResult struct {
	ForecastResult
	Recommendations []emissions.Recommendation `json:"recommendations"`
	Anomalies       []int                      `json:"anomalies"`
	Equivalencies   []emissions.Equivalency    `json:"equivalencies"`
}

// PredictResult is one model prediction
type PredictResult struct {
	Prediction float64 `json:"prediction"`
}
