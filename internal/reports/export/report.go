package export

import (
	"time"

	"github.com/Kaustab2003/co2-emission-forecasting/internal/benchmarks"
	"github.com/Kaustab2003/co2-emission-forecasting/internal/emissions"
)

// Standard is a reporting standard for compliance reports
type Standard string

const (
	StandardGHGProtocol Standard = "GHG Protocol"
	StandardISO14064    Standard = "ISO 14064"
)

// ParseStandard maps a query value to a Standard. Unknown values return false.
func ParseStandard(s string) (Standard, bool) {
	switch s {
	case "", "ghg", "ghg_protocol", string(StandardGHGProtocol):
		return StandardGHGProtocol, true
	case "iso", "iso14064", "iso_14064", string(StandardISO14064):
		return StandardISO14064, true
	}
	return "", false
}

// ForecastPreviewYears is how many forecast years the PDF report shows
const ForecastPreviewYears = 5

// EmissionReport is everything a rendered company report contains
type EmissionReport struct {
	CompanyName     string
	Sector          string
	Size            string
	Sources         []emissions.EmissionSource
	Total           float64
	Forecast        emissions.ForecastSeries
	Analytics       emissions.ForecastAnalytics
	Target          float64
	TargetYear      *int
	Benchmark       *benchmarks.ComparisonResult
	Recommendations []emissions.Recommendation
	GeneratedAt     time.Time
}

func (r *EmissionReport) forecastPreview() emissions.ForecastSeries {
	if len(r.Forecast) > ForecastPreviewYears {
		return r.Forecast[:ForecastPreviewYears]
	}
	return r.Forecast
}

func (r *EmissionReport) sourceRows() []map[string]interface{} {
	rows := make([]map[string]interface{}, len(r.Sources))
	for i, s := range r.Sources {
		share := 0.0
		if r.Total > 0 {
			share = s.Emission / r.Total * 100
		}
		rows[i] = map[string]interface{}{
			"type":     s.Type,
			"emission": s.Emission,
			"share":    share,
		}
	}
	return rows
}

func (r *EmissionReport) forecastRows(series emissions.ForecastSeries) []map[string]interface{} {
	rows := make([]map[string]interface{}, len(series))
	for i, p := range series {
		rows[i] = map[string]interface{}{
			"year":     p.Year,
			"emission": p.Emission,
		}
	}
	return rows
}

func (r *EmissionReport) recommendationRows() []map[string]interface{} {
	rows := make([]map[string]interface{}, len(r.Recommendations))
	for i, rec := range r.Recommendations {
		rows[i] = map[string]interface{}{
			"source":         rec.SourceType,
			"tons_saved":     rec.TonsSaved,
			"recommendation": rec.Message,
		}
	}
	return rows
}
