package companies

import (
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/paulmach/orb/geojson"

	"github.com/Kaustab2003/co2-emission-forecasting/internal/emissions"
)

// Company sizes
const (
	SizeSmall  = "Small"
	SizeMedium = "Medium"
	SizeLarge  = "Large"
)

// ValidSize reports whether size is a known company size
func ValidSize(size string) bool {
	switch size {
	case SizeSmall, SizeMedium, SizeLarge:
		return true
	}
	return false
}

// Company is an organization whose emissions are tracked
type Company struct {
	ID            uuid.UUID  `json:"id" db:"id"`
	OwnerID       uuid.UUID  `json:"owner_id" db:"owner_id"`
	Name          string     `json:"name" db:"name"`
	Sector        string     `json:"sector" db:"sector"`
	Size          string     `json:"size" db:"size"`
	LastUpdatedAt *time.Time `json:"last_updated_at,omitempty" db:"last_updated_at"`
	CreatedAt     time.Time  `json:"created_at" db:"created_at"`
	UpdatedAt     time.Time  `json:"updated_at" db:"updated_at"`
}

// SourceRow is a stored emission source
type SourceRow struct {
	ID        uuid.UUID `db:"id"`
	CompanyID uuid.UUID `db:"company_id"`
	Position  int       `db:"position"`
	Type      string    `db:"source_type"`
	Emission  float64   `db:"emission"`
	Latitude  *float64  `db:"latitude"`
	Longitude *float64  `db:"longitude"`
	CreatedAt time.Time `db:"created_at"`
}

// ToSource converts a stored row into the engine type
func (r SourceRow) ToSource() emissions.EmissionSource {
	source := emissions.EmissionSource{Type: r.Type, Emission: r.Emission}
	if r.Latitude != nil && r.Longitude != nil {
		source.Location = &emissions.GeoPoint{Lat: *r.Latitude, Lon: *r.Longitude}
	}
	return source
}

// CompanyWithSources is a company together with its current sources
type CompanyWithSources struct {
	Company *Company                   `json:"company"`
	Sources []emissions.EmissionSource `json:"sources"`
}

// Total returns the company's total emissions
func (c *CompanyWithSources) Total() float64 {
	return emissions.TotalEmissions(c.Sources)
}

// =====================================================
// Requests and responses
// =====================================================

// CreateCompanyRequest is the body of POST /companies
type CreateCompanyRequest struct {
	Name   string `json:"name" binding:"required"`
	Sector string `json:"sector" binding:"required"`
	Size   string `json:"size" binding:"required"`
}

// SourcesRequest replaces a company's sources
type SourcesRequest struct {
	Sources []emissions.SourceRecord `json:"sources" binding:"required"`
}

// SyncRequest is the body of PUT /sync/emissions
type SyncRequest struct {
	CompanyID uuid.UUID                `json:"company_id" binding:"required"`
	Sources   []emissions.SourceRecord `json:"emission_sources" binding:"required"`
}

// ValidationReport is the result of checking a company's sources against its sector
type ValidationReport struct {
	CompanyID     uuid.UUID                   `json:"company_id"`
	Sector        string                      `json:"sector"`
	SectorAverage float64                     `json:"sector_average"`
	Total         float64                     `json:"total"`
	Valid         bool                        `json:"valid"`
	Issues        []emissions.ValidationIssue `json:"issues"`
}

// SourceMapResult locates a company's sources for the map view
type SourceMapResult struct {
	Features  *geojson.FeatureCollection `json:"features"`
	Center    *emissions.GeoPoint        `json:"center,omitempty"`
	SpreadKm  float64                    `json:"spread_km"`
	Unlocated int                        `json:"unlocated"`
}

// ImportResult describes the outcome of an import
type ImportResult struct {
	CompanyID uuid.UUID                  `json:"company_id"`
	Imported  int                        `json:"imported"`
	Source    string                     `json:"source"`
	Fallback  bool                       `json:"fallback,omitempty"`
	Sources   []emissions.EmissionSource `json:"sources"`
}

// Errors
var (
	ErrCompanyNotFound = errors.New("company not found")
	ErrInvalidSector   = errors.New("invalid sector")
	ErrInvalidSize     = errors.New("invalid company size")
	ErrForbidden       = errors.New("company belongs to another user")
)
