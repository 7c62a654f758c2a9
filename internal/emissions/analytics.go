package emissions

import "math"

// Trend labels
const (
	TrendIncreasing = "increasing"
	TrendDecreasing = "decreasing"
)

// Spike is a year whose change from the previous year is unusually large
type Spike struct {
	Year   int     `json:"year"`
	Change float64 `json:"change"`
}

// ForecastAnalytics summarises how a forecast series moves year over year
type ForecastAnalytics struct {
	AverageAnnualChange float64 `json:"average_annual_change"`
	Trend               string  `json:"trend"`
	Spikes              []Spike `json:"spikes"`
}

// AnalyzeForecast computes the mean annual change, the trend direction and the
// years whose change exceeds twice the mean in magnitude.
func AnalyzeForecast(series ForecastSeries) ForecastAnalytics {
	analytics := ForecastAnalytics{Trend: TrendIncreasing, Spikes: []Spike{}}
	if len(series) < 2 {
		return analytics
	}

	diffs := make([]float64, len(series)-1)
	sum := 0.0
	for i := 1; i < len(series); i++ {
		diffs[i-1] = series[i].Emission - series[i-1].Emission
		sum += diffs[i-1]
	}
	avg := sum / float64(len(diffs))

	analytics.AverageAnnualChange = avg
	if avg < 0 {
		analytics.Trend = TrendDecreasing
	}

	if avg != 0 {
		for i, d := range diffs {
			if math.Abs(d) > 2*math.Abs(avg) {
				analytics.Spikes = append(analytics.Spikes, Spike{Year: series[i+1].Year, Change: d})
			}
		}
	}

	return analytics
}

// TargetYear returns the first year whose emission is at or below target
func TargetYear(series ForecastSeries, target float64) (int, bool) {
	for _, p := range series {
		if p.Emission <= target {
			return p.Year, true
		}
	}
	return 0, false
}
