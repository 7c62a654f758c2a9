package planning

import (
	"errors"
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"

	"github.com/Kaustab2003/co2-emission-forecasting/internal/emissions"
)

// SavedPlan is a named reduction plan for a company
type SavedPlan struct {
	ID        uuid.UUID      `json:"id" gorm:"type:uuid;primaryKey"`
	CompanyID uuid.UUID      `json:"company_id" gorm:"type:uuid;not null;uniqueIndex:idx_saved_plans_company_name"`
	Name      string         `json:"name" gorm:"not null;uniqueIndex:idx_saved_plans_company_name"`
	Plan      datatypes.JSON `json:"plan"`
	CreatedAt time.Time      `json:"created_at" gorm:"autoCreateTime"`
	UpdatedAt time.Time      `json:"updated_at" gorm:"autoUpdateTime"`
}

// SavedScenario is a named snapshot of a company's emission sources
type SavedScenario struct {
	ID        uuid.UUID      `json:"id" gorm:"type:uuid;primaryKey"`
	CompanyID uuid.UUID      `json:"company_id" gorm:"type:uuid;not null;uniqueIndex:idx_saved_scenarios_company_name"`
	Name      string         `json:"name" gorm:"not null;uniqueIndex:idx_saved_scenarios_company_name"`
	Sources   datatypes.JSON `json:"sources"`
	CreatedAt time.Time      `json:"created_at" gorm:"autoCreateTime"`
	UpdatedAt time.Time      `json:"updated_at" gorm:"autoUpdateTime"`
}

// OffsetPurchase is a recorded purchase of carbon offsets
type OffsetPurchase struct {
	ID          uuid.UUID `json:"id" gorm:"type:uuid;primaryKey"`
	CompanyID   uuid.UUID `json:"company_id" gorm:"type:uuid;not null;index"`
	UserID      uuid.UUID `json:"user_id" gorm:"type:uuid;not null"`
	Tons        float64   `json:"tons" gorm:"not null"`
	PricePerTon float64   `json:"price_per_ton" gorm:"not null"`
	Cost        float64   `json:"cost" gorm:"not null"`
	PurchasedAt time.Time `json:"purchased_at" gorm:"not null;index"`
}

// NamedPlan is a plan together with its name
type NamedPlan struct {
	Name      string                  `json:"name"`
	Plan      emissions.ReductionPlan `json:"plan"`
	UpdatedAt time.Time               `json:"updated_at"`
}

// NamedScenario is a scenario together with its name
type NamedScenario struct {
	Name      string                     `json:"name"`
	Sources   []emissions.EmissionSource `json:"sources"`
	UpdatedAt time.Time                  `json:"updated_at"`
}

// ScenarioComparison is the forecast of one saved scenario
type ScenarioComparison struct {
	Name     string                   `json:"name"`
	Total    float64                  `json:"total"`
	Forecast emissions.ForecastSeries `json:"forecast"`
}

// PlanForecast is the result of applying a saved plan to current sources
type PlanForecast struct {
	Name      string                    `json:"name"`
	Plan      emissions.ReductionPlan   `json:"plan"`
	Reduction emissions.ReductionResult `json:"reduction"`
	Baseline  emissions.ForecastSeries  `json:"baseline"`
	Forecast  emissions.ForecastSeries  `json:"forecast"`
}

// OffsetQuote is the result of an offset purchase
type OffsetQuote struct {
	Purchase      *OffsetPurchase         `json:"purchase"`
	Equivalencies []emissions.Equivalency `json:"equivalencies"`
}

// =====================================================
// Requests
// =====================================================

// SavePlanRequest is the body of PUT /plans/:name
type SavePlanRequest struct {
	Plan emissions.ReductionPlan `json:"plan" binding:"required"`
}

// SaveScenarioRequest is the body of PUT /scenarios/:name. Without sources
// the company's current sources are saved.
type SaveScenarioRequest struct {
	Sources []emissions.EmissionSource `json:"sources"`
}

// CompareRequest lists scenarios to compare
type CompareRequest struct {
	Names []string `json:"names" binding:"required,min=1"`
}

// OffsetRequest is the body of POST /offsets
type OffsetRequest struct {
	Tons float64 `json:"tons" binding:"required,gt=0"`
}

// Errors
var (
	ErrPlanNotFound     = errors.New("plan not found")
	ErrScenarioNotFound = errors.New("scenario not found")
)
