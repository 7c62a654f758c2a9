package emissions

import "fmt"

// Validation issue codes
const (
	IssueNegativeValue = "negative_value"
	IssueHighSource    = "high_source"
	IssueHighTotal     = "high_total"
)

// ValidationIssue describes a suspicious value in a source list
type ValidationIssue struct {
	Code       string  `json:"code"`
	SourceType string  `json:"source_type,omitempty"`
	Value      float64 `json:"value"`
	Message    string  `json:"message"`
}

// ValidateSources checks records against the sector average. A record is
// flagged when it is negative or above twice the average, and the total is
// flagged when it exceeds twice the average.
func ValidateSources(sources []EmissionSource, sectorAverage float64) []ValidationIssue {
	issues := []ValidationIssue{}
	limit := 2 * sectorAverage

	for _, s := range sources {
		if s.Emission < 0 {
			issues = append(issues, ValidationIssue{
				Code:       IssueNegativeValue,
				SourceType: s.Type,
				Value:      s.Emission,
				Message:    fmt.Sprintf("Negative value for %s.", s.Type),
			})
		}
		if s.Emission > limit {
			issues = append(issues, ValidationIssue{
				Code:       IssueHighSource,
				SourceType: s.Type,
				Value:      s.Emission,
				Message:    fmt.Sprintf("Unusually high value for %s (> %.0f tons CO2e).", s.Type, limit),
			})
		}
	}

	if total := TotalEmissions(sources); total > limit {
		issues = append(issues, ValidationIssue{
			Code:    IssueHighTotal,
			Value:   total,
			Message: fmt.Sprintf("Total emissions are much higher than sector average (%.0f tons CO2e).", sectorAverage),
		})
	}

	return issues
}

// ValidateRecords checks decoded input before it is stored. Every record needs
// a type and a non-negative emission.
func ValidateRecords(records []SourceRecord) ([]EmissionSource, error) {
	sources := make([]EmissionSource, 0, len(records))
	for i, r := range records {
		if r.Type == "" || r.Emission == nil {
			return nil, fmt.Errorf("%w: missing required fields in emission source at index %d", ErrMissingData, i)
		}
		if *r.Emission < 0 {
			return nil, fmt.Errorf("%w: negative emission value at index %d", ErrInvalidInput, i)
		}
		sources = append(sources, EmissionSource{Type: r.Type, Emission: *r.Emission})
	}
	return sources, nil
}
