package benchmarks

import (
	"context"
	"fmt"
	"math"
	"sort"

	"go.uber.org/zap"

	"github.com/Kaustab2003/co2-emission-forecasting/pkg/stats"
)

// Sectors
const (
	SectorManufacturing = "Manufacturing"
	SectorEnergy        = "Energy"
	SectorTransport     = "Transport"
	SectorIT            = "IT"
	SectorOther         = "Other"
)

// Positions relative to the sector benchmark
const (
	PositionAboveAverage = "above_average"
	PositionBelowAverage = "below_average"
	PositionBestInClass  = "best_in_class"
)

// Gap priorities
const (
	PriorityHigh   = "high"
	PriorityMedium = "medium"
	PriorityLow    = "low"
	PriorityInfo   = "info"
)

// SectorBenchmark is the annual emissions of an average and a best-in-class company
type SectorBenchmark struct {
	Sector  string  `json:"sector"`
	Average float64 `json:"average"`
	Best    float64 `json:"best"`
}

var sectorBenchmarks = map[string]SectorBenchmark{
	SectorManufacturing: {Sector: SectorManufacturing, Average: 5000, Best: 2000},
	SectorEnergy:        {Sector: SectorEnergy, Average: 20000, Best: 8000},
	SectorTransport:     {Sector: SectorTransport, Average: 8000, Best: 3000},
	SectorIT:            {Sector: SectorIT, Average: 1000, Best: 400},
	SectorOther:         {Sector: SectorOther, Average: 3000, Best: 1000},
}

// ForSector returns the benchmark for sector, falling back to Other
func ForSector(sector string) SectorBenchmark {
	if b, ok := sectorBenchmarks[sector]; ok {
		return b
	}
	b := sectorBenchmarks[SectorOther]
	b.Sector = sector
	return b
}

// ValidSector reports whether sector is one of the known sectors
func ValidSector(sector string) bool {
	_, ok := sectorBenchmarks[sector]
	return ok
}

// PeerRepository supplies the current totals of other companies in a sector
type PeerRepository interface {
	ListSectorTotals(ctx context.Context, sector string) ([]float64, error)
}

// Comparator compares a company's emissions against its sector
type Comparator struct {
	peers  PeerRepository
	logger *zap.Logger
}

// ComparisonResult represents the result of a benchmark comparison
type ComparisonResult struct {
	Sector            string           `json:"sector"`
	Total             float64          `json:"total"`
	Benchmark         SectorBenchmark  `json:"benchmark"`
	Position          string           `json:"position"`
	Message           string           `json:"message"`
	GapAnalysis       []GapItem        `json:"gap_analysis"`
	Recommendations   []Recommendation `json:"recommendations"`
	PeerStatistics    *stats.Summary   `json:"peer_statistics,omitempty"`
	PercentileRanking *float64         `json:"percentile_ranking,omitempty"`
}

// GapItem represents a gap between the company total and a benchmark target
type GapItem struct {
	Target        string  `json:"target"`
	CurrentValue  float64 `json:"current_value"`
	TargetValue   float64 `json:"target_value"`
	Gap           float64 `json:"gap"`
	GapPercentage float64 `json:"gap_percentage"`
	Priority      string  `json:"priority"`
	Direction     string  `json:"direction"` // above, below, at_target
}

// Recommendation represents an improvement recommendation
type Recommendation struct {
	Target       string   `json:"target"`
	Priority     string   `json:"priority"`
	Title        string   `json:"title"`
	Description  string   `json:"description"`
	ActionItems  []string `json:"action_items,omitempty"`
	ExpectedGain float64  `json:"expected_gain,omitempty"`
}

// NewComparator creates a new comparator. peers may be nil.
func NewComparator(peers PeerRepository, logger *zap.Logger) *Comparator {
	return &Comparator{
		peers:  peers,
		logger: logger,
	}
}

// Compare places total against the sector benchmark and, when peers are
// available, against the other companies in the sector.
func (c *Comparator) Compare(ctx context.Context, sector string, total float64) (*ComparisonResult, error) {
	benchmark := ForSector(sector)

	result := &ComparisonResult{
		Sector:    sector,
		Total:     total,
		Benchmark: benchmark,
	}
	result.Position, result.Message = position(total, benchmark)
	result.GapAnalysis = c.analyzeGaps(total, benchmark)
	result.Recommendations = c.generateRecommendations(result.GapAnalysis)

	if c.peers != nil {
		peers, err := c.peers.ListSectorTotals(ctx, sector)
		if err != nil {
			return nil, fmt.Errorf("failed to get sector peers: %w", err)
		}
		if len(peers) > 0 {
			summary := stats.Describe(peers)
			rank := percentileRanking(total, peers)
			result.PeerStatistics = &summary
			result.PercentileRanking = &rank
		}
	}

	c.logger.Debug("Benchmark comparison",
		zap.String("sector", sector),
		zap.Float64("total", total),
		zap.String("position", result.Position),
	)

	return result, nil
}

func position(total float64, b SectorBenchmark) (string, string) {
	switch {
	case total > b.Average:
		return PositionAboveAverage, fmt.Sprintf(
			"Your emissions are above the sector average (%.0f tons CO2e). Consider more aggressive reduction strategies.", b.Average)
	case total > b.Best:
		return PositionBelowAverage, fmt.Sprintf(
			"Your emissions are below the sector average but above best-in-class (%.0f tons CO2e). Keep improving!", b.Best)
	default:
		return PositionBestInClass, "Congratulations! Your emissions are at or below best-in-class for your sector."
	}
}

// analyzeGaps compares total against the average and best-in-class targets
func (c *Comparator) analyzeGaps(total float64, b SectorBenchmark) []GapItem {
	targets := []struct {
		name  string
		value float64
	}{
		{"sector_average", b.Average},
		{"best_in_class", b.Best},
	}

	gaps := make([]GapItem, 0, len(targets))
	for _, t := range targets {
		gap := total - t.value
		gapPercentage := 0.0
		if t.value != 0 {
			gapPercentage = (gap / t.value) * 100
		}

		direction := "at_target"
		if gap > 0 {
			direction = "above"
		} else if gap < 0 {
			direction = "below"
		}

		gaps = append(gaps, GapItem{
			Target:        t.name,
			CurrentValue:  total,
			TargetValue:   t.value,
			Gap:           gap,
			GapPercentage: math.Round(gapPercentage*100) / 100,
			Priority:      c.determinePriority(gapPercentage),
			Direction:     direction,
		})
	}

	sort.SliceStable(gaps, func(i, j int) bool {
		priorityOrder := map[string]int{PriorityHigh: 0, PriorityMedium: 1, PriorityLow: 2}
		return priorityOrder[gaps[i].Priority] < priorityOrder[gaps[j].Priority]
	})

	return gaps
}

// determinePriority determines the priority based on gap percentage
func (c *Comparator) determinePriority(gapPercentage float64) string {
	absGap := math.Abs(gapPercentage)
	if absGap > 25 {
		return PriorityHigh
	} else if absGap > 10 {
		return PriorityMedium
	}
	return PriorityLow
}

// generateRecommendations turns gaps into actions. For emissions, being above
// a target is the problem and being below it is the strength.
func (c *Comparator) generateRecommendations(gaps []GapItem) []Recommendation {
	var recommendations []Recommendation

	for _, gap := range gaps {
		if gap.Direction == "above" {
			rec := Recommendation{
				Target:   gap.Target,
				Priority: gap.Priority,
			}

			switch gap.Priority {
			case PriorityHigh:
				rec.Title = fmt.Sprintf("Significant reduction needed to reach %s", gap.Target)
				rec.Description = fmt.Sprintf(
					"Current emissions (%.2f) are %.1f%% above the benchmark (%.2f). "+
						"Prioritise the largest sources and commit to a multi-year action plan.",
					gap.CurrentValue, math.Abs(gap.GapPercentage), gap.TargetValue,
				)
				rec.ActionItems = []string{
					"Switch electricity supply to renewables",
					"Run the budget optimizer to find the cheapest tons",
					"Set yearly reduction targets per source",
				}
				rec.ExpectedGain = gap.Gap

			case PriorityMedium:
				rec.Title = fmt.Sprintf("Moderate reduction opportunity to reach %s", gap.Target)
				rec.Description = fmt.Sprintf(
					"Current emissions (%.2f) are %.1f%% above the benchmark (%.2f). "+
						"Targeted improvements can close the gap.",
					gap.CurrentValue, math.Abs(gap.GapPercentage), gap.TargetValue,
				)
				rec.ActionItems = []string{
					"Identify the highest-emitting sources",
					"Review supplier sustainability",
				}
				rec.ExpectedGain = gap.Gap * 0.5

			case PriorityLow:
				rec.Title = fmt.Sprintf("Close to %s", gap.Target)
				rec.Description = fmt.Sprintf(
					"Emissions (%.2f) are close to the benchmark (%.2f). "+
						"Fine-tuning may close the remaining gap.",
					gap.CurrentValue, gap.TargetValue,
				)
			}

			recommendations = append(recommendations, rec)
		} else if gap.Direction == "below" && gap.Priority != PriorityLow {
			recommendations = append(recommendations, Recommendation{
				Target:   gap.Target,
				Priority: PriorityInfo,
				Title:    fmt.Sprintf("Strong performance against %s", gap.Target),
				Description: fmt.Sprintf(
					"Current emissions (%.2f) are %.1f%% below the benchmark (%.2f).",
					gap.CurrentValue, math.Abs(gap.GapPercentage), gap.TargetValue,
				),
			})
		}
	}

	return recommendations
}

// percentileRanking returns the share of peers emitting less than total
func percentileRanking(total float64, peers []float64) float64 {
	sorted := stats.Sorted(peers)
	position := sort.SearchFloat64s(sorted, total)
	percentile := float64(position) / float64(len(sorted)) * 100
	return math.Round(percentile*100) / 100
}
