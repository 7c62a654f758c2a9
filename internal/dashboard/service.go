package dashboard

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/Kaustab2003/co2-emission-forecasting/internal/benchmarks"
	"github.com/Kaustab2003/co2-emission-forecasting/internal/companies"
	"github.com/Kaustab2003/co2-emission-forecasting/internal/emissions"
)

// Snapshotter loads a company with its sources
type Snapshotter interface {
	Snapshot(ctx context.Context, id uuid.UUID) (*companies.CompanyWithSources, error)
}

// Summary is the dashboard view of one company
type Summary struct {
	CompanyID       uuid.UUID                    `json:"company_id"`
	CompanyName     string                       `json:"company_name"`
	Sector          string                       `json:"sector"`
	Total           float64                      `json:"total"`
	Breakdown       map[string]float64           `json:"breakdown"`
	Forecast        emissions.ForecastSeries     `json:"forecast"`
	Analytics       emissions.ForecastAnalytics  `json:"analytics"`
	Target          float64                      `json:"target"`
	TargetYear      *int                         `json:"target_year,omitempty"`
	Benchmark       *benchmarks.ComparisonResult `json:"benchmark"`
	Recommendations []emissions.Recommendation   `json:"recommendations"`
	Equivalencies   []emissions.Equivalency      `json:"equivalencies"`
	Stale           bool                         `json:"stale"`
	DaysSinceUpdate int                          `json:"days_since_update"`
	GeneratedAt     time.Time                    `json:"generated_at"`
}

// Options configure the dashboard service
type Options struct {
	Years  int
	Target float64
}

// Service builds cached company summaries
type Service struct {
	companies  Snapshotter
	comparator *benchmarks.Comparator
	cache      Cache
	model      emissions.Predictor
	opts       Options
	now        func() time.Time
	logger     *zap.Logger
}

// NewService creates a new dashboard service. cache may be nil.
func NewService(companySource Snapshotter, comparator *benchmarks.Comparator, cache Cache, model emissions.Predictor, opts Options, logger *zap.Logger) *Service {
	if opts.Years < 1 {
		opts.Years = 10
	}
	if opts.Target <= 0 {
		opts.Target = emissions.DefaultTarget
	}
	if comparator == nil {
		comparator = benchmarks.NewComparator(nil, logger)
	}
	return &Service{
		companies:  companySource,
		comparator: comparator,
		cache:      cache,
		model:      model,
		opts:       opts,
		now:        time.Now,
		logger:     logger,
	}
}

// Summary returns the dashboard summary, from cache when possible
func (s *Service) Summary(ctx context.Context, companyID uuid.UUID) (*Summary, bool, error) {
	return GetOrSet(ctx, s.cache, CompanyKey(companyID, "summary"), func() (*Summary, error) {
		return s.buildSummary(ctx, companyID)
	})
}

// Benchmark compares a company with its sector
func (s *Service) Benchmark(ctx context.Context, companyID uuid.UUID) (*benchmarks.ComparisonResult, bool, error) {
	return GetOrSet(ctx, s.cache, CompanyKey(companyID, "benchmark"), func() (*benchmarks.ComparisonResult, error) {
		snapshot, err := s.companies.Snapshot(ctx, companyID)
		if err != nil {
			return nil, err
		}
		return s.comparator.Compare(ctx, snapshot.Company.Sector, snapshot.Total())
	})
}

// InvalidateCompany drops every cached result of a company
func (s *Service) InvalidateCompany(ctx context.Context, companyID uuid.UUID) {
	if s.cache == nil {
		return
	}
	if err := s.cache.DeleteByPrefix(ctx, CompanyPrefix(companyID)); err != nil {
		s.logger.Warn("Failed to invalidate company cache",
			zap.String("company_id", companyID.String()),
			zap.Error(err),
		)
	}
}

func (s *Service) buildSummary(ctx context.Context, companyID uuid.UUID) (*Summary, error) {
	snapshot, err := s.companies.Snapshot(ctx, companyID)
	if err != nil {
		return nil, err
	}
	if len(snapshot.Sources) == 0 {
		return nil, fmt.Errorf("%w: company has no emission sources", emissions.ErrMissingData)
	}

	total := snapshot.Total()
	forecast, err := emissions.Forecast(s.model, total, s.opts.Years)
	if err != nil {
		return nil, err
	}

	summary := &Summary{
		CompanyID:       companyID,
		CompanyName:     snapshot.Company.Name,
		Sector:          snapshot.Company.Sector,
		Total:           total,
		Breakdown:       emissions.BreakdownByType(snapshot.Sources),
		Forecast:        forecast,
		Analytics:       emissions.AnalyzeForecast(forecast),
		Target:          s.opts.Target,
		Recommendations: emissions.Recommend(snapshot.Sources),
		Equivalencies:   emissions.Equivalencies(total),
		GeneratedAt:     s.now().UTC(),
	}

	if year, ok := emissions.TargetYear(forecast, s.opts.Target); ok {
		summary.TargetYear = &year
	}

	var lastUpdate time.Time
	if snapshot.Company.LastUpdatedAt != nil {
		lastUpdate = *snapshot.Company.LastUpdatedAt
	}
	summary.Stale, summary.DaysSinceUpdate = emissions.StaleSince(lastUpdate, s.now())

	benchmark, err := s.comparator.Compare(ctx, snapshot.Company.Sector, total)
	if err != nil {
		s.logger.Warn("Benchmark comparison failed", zap.String("company_id", companyID.String()), zap.Error(err))
	} else {
		summary.Benchmark = benchmark
	}

	return summary, nil
}
