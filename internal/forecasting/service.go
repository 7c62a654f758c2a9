package forecasting

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"math"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/Kaustab2003/co2-emission-forecasting/internal/companies"
	"github.com/Kaustab2003/co2-emission-forecasting/internal/dashboard"
	"github.com/Kaustab2003/co2-emission-forecasting/internal/emissions"
	"github.com/Kaustab2003/co2-emission-forecasting/internal/metrics"
	"github.com/Kaustab2003/co2-emission-forecasting/internal/notifications"
)

// CompanySource loads a stored company with its sources
type CompanySource interface {
	Snapshot(ctx context.Context, id uuid.UUID) (*companies.CompanyWithSources, error)
}

// Observer records engine activity
type Observer interface {
	ObserveForecast(kind string)
	ObserveOptimizerRun()
	ObserveAnomalies(n int)
}

var _ Observer = (*metrics.Registry)(nil)

// Options configure the forecasting service
type Options struct {
	DefaultYears  int
	DefaultTarget float64
	Costs         emissions.CostModel
}

// Service runs the emission engine for inline sources or stored companies
type Service struct {
	companies CompanySource
	model     emissions.Predictor
	cache     dashboard.Cache
	notifier  notifications.Notifier
	observer  Observer
	opts      Options
	logger    *zap.Logger
}

// NewService creates a new forecasting service. cache, notifier and observer may be nil.
func NewService(
	companySource CompanySource,
	model emissions.Predictor,
	cache dashboard.Cache,
	notifier notifications.Notifier,
	observer Observer,
	opts Options,
	logger *zap.Logger,
) *Service {
	if opts.DefaultYears < 1 {
		opts.DefaultYears = 10
	}
	if opts.DefaultTarget <= 0 {
		opts.DefaultTarget = emissions.DefaultTarget
	}
	if opts.Costs == nil {
		opts.Costs = emissions.DefaultCostModel()
	}
	return &Service{
		companies: companySource,
		model:     model,
		cache:     cache,
		notifier:  notifier,
		observer:  observer,
		opts:      opts,
		logger:    logger,
	}
}

// subject is the source list an operation runs on
type subject struct {
	companyID *uuid.UUID
	sources   []emissions.EmissionSource
}

// resolve loads the company's sources when companyID is set, otherwise it
// uses the inline list. An empty inline list is allowed and yields zero results.
func (s *Service) resolve(ctx context.Context, companyID *uuid.UUID, inline []emissions.EmissionSource) (subject, error) {
	if companyID == nil {
		if err := validateInline(inline); err != nil {
			return subject{}, err
		}
		return subject{sources: inline}, nil
	}

	if s.companies == nil {
		return subject{}, fmt.Errorf("%w: company lookups are not configured", emissions.ErrMissingData)
	}
	snapshot, err := s.companies.Snapshot(ctx, *companyID)
	if err != nil {
		return subject{}, err
	}
	if len(snapshot.Sources) == 0 {
		return subject{}, fmt.Errorf("%w: company has no emission sources", emissions.ErrMissingData)
	}
	return subject{companyID: companyID, sources: snapshot.Sources}, nil
}

func validateInline(sources []emissions.EmissionSource) error {
	for i, src := range sources {
		if src.Type == "" {
			return fmt.Errorf("%w: emission source at index %d has no type", emissions.ErrInvalidInput, i)
		}
		if src.Emission < 0 || math.IsNaN(src.Emission) || math.IsInf(src.Emission, 0) {
			return fmt.Errorf("%w: emission source at index %d must be a non-negative number, got %v",
				emissions.ErrInvalidInput, i, src.Emission)
		}
	}
	return nil
}

// key scopes company results to the company prefix so source changes drop
// them; inline results are keyed by their sources
func (sub subject) key(op string, params ...any) string {
	if sub.companyID != nil {
		return dashboard.CompanyKey(*sub.companyID, op, digest(params...))
	}
	return dashboard.Key("inline", op, digest(append([]any{sub.sources}, params...)...))
}

func digest(parts ...any) string {
	data, err := json.Marshal(parts)
	if err != nil {
		data = []byte(fmt.Sprint(parts...))
	}
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:12])
}

func (s *Service) years(years int) (int, error) {
	if years == 0 {
		return s.opts.DefaultYears, nil
	}
	if years < 1 || years > MaxYears {
		return 0, fmt.Errorf("%w: years must be within [1, %d], got %d", emissions.ErrInvalidInput, MaxYears, years)
	}
	return years, nil
}

func (s *Service) costs(override emissions.CostModel) emissions.CostModel {
	if len(override) > 0 {
		return override
	}
	return s.opts.Costs
}

func (s *Service) observeForecast(kind string) {
	if s.observer != nil {
		s.observer.ObserveForecast(kind)
	}
}

// =====================================================
// Engine operations
// =====================================================

// Forecast projects the current total and analyses the series
func (s *Service) Forecast(ctx context.Context, companyID *uuid.UUID, req ForecastRequest) (*ForecastResult, bool, error) {
	sub, err := s.resolve(ctx, companyID, req.Sources)
	if err != nil {
		return nil, false, err
	}
	years, err := s.years(req.Years)
	if err != nil {
		return nil, false, err
	}
	target := req.Target
	if target <= 0 {
		target = s.opts.DefaultTarget
	}

	return dashboard.GetOrSet(ctx, s.cache, sub.key("forecast", years, target), func() (*ForecastResult, error) {
		result, err := s.forecast(sub, years, target)
		if err != nil {
			return nil, err
		}
		s.observeForecast("baseline")
		s.publishSpikes(ctx, sub, result.Analytics)
		return result, nil
	})
}

func (s *Service) forecast(sub subject, years int, target float64) (*ForecastResult, error) {
	total := emissions.TotalEmissions(sub.sources)
	series, err := emissions.Forecast(s.model, total, years)
	if err != nil {
		return nil, err
	}

	result := &ForecastResult{
		CompanyID: sub.companyID,
		Total:     total,
		Breakdown: emissions.BreakdownByType(sub.sources),
		Forecast:  series,
		Analytics: emissions.AnalyzeForecast(series),
		Target:    target,
	}
	if year, ok := emissions.TargetYear(series, target); ok {
		result.TargetYear = &year
	}
	return result, nil
}

// Reduction applies a plan and forecasts the reduced total next to the baseline
func (s *Service) Reduction(ctx context.Context, companyID *uuid.UUID, req ReductionRequest) (*ReductionResult, bool, error) {
	sub, err := s.resolve(ctx, companyID, req.Sources)
	if err != nil {
		return nil, false, err
	}
	years, err := s.years(req.Years)
	if err != nil {
		return nil, false, err
	}
	for sourceType, pct := range req.Plan {
		if pct < 0 || pct > 100 {
			return nil, false, fmt.Errorf("%w: reduction for %s must be within [0, 100], got %v",
				emissions.ErrInvalidInput, sourceType, pct)
		}
	}
	costs := s.costs(req.Costs)

	return dashboard.GetOrSet(ctx, s.cache, sub.key("reduction", req.Plan, years, costs), func() (*ReductionResult, error) {
		baseline, err := emissions.Forecast(s.model, emissions.TotalEmissions(sub.sources), years)
		if err != nil {
			return nil, err
		}
		series, reduction, err := emissions.ForecastReduction(s.model, sub.sources, req.Plan, years)
		if err != nil {
			return nil, err
		}
		s.observeForecast("reduction")
		return &ReductionResult{
			Reduction:   reduction,
			Baseline:    baseline,
			Forecast:    series,
			TonsReduced: reduction.TonsReduced(),
			Cost:        emissions.ReductionCost(reduction, costs),
		}, nil
	})
}

// Optimize finds the cheapest reductions within the budget and forecasts the result
func (s *Service) Optimize(ctx context.Context, companyID *uuid.UUID, req OptimizeRequest) (*OptimizeResult, bool, error) {
	sub, err := s.resolve(ctx, companyID, req.Sources)
	if err != nil {
		return nil, false, err
	}
	years, err := s.years(req.Years)
	if err != nil {
		return nil, false, err
	}
	costs := s.costs(req.Costs)

	return dashboard.GetOrSet(ctx, s.cache, sub.key("optimize", req.Budget, costs, req.Constraints, years), func() (*OptimizeResult, error) {
		optimization, err := emissions.OptimizeForBudget(sub.sources, costs, req.Constraints, req.Budget)
		if err != nil {
			return nil, err
		}
		if s.observer != nil {
			s.observer.ObserveOptimizerRun()
		}

		// forecast the plan as /reduction would apply it, so the floored
		// percentages and duplicate types agree with the returned plan
		series, reduction, err := emissions.ForecastReduction(s.model, sub.sources, optimization.Plan, years)
		if err != nil {
			return nil, err
		}
		s.observeForecast("optimized")

		s.logger.Debug("Optimizer run completed",
			zap.Float64("budget", req.Budget),
			zap.Float64("spent", optimization.TotalSpent),
			zap.Float64("tons_reduced", optimization.TotalTonsReduced),
		)
		return &OptimizeResult{Optimization: optimization, NewTotal: reduction.NewTotal, Forecast: series}, nil
	})
}

// Anomalies flags unusual records. Company results raise an anomaly alert.
func (s *Service) Anomalies(ctx context.Context, companyID *uuid.UUID, req AnomalyRequest) (*AnomalyResult, bool, error) {
	records := req.Sources
	var sub subject
	if companyID != nil {
		var err error
		sub, err = s.resolve(ctx, companyID, nil)
		if err != nil {
			return nil, false, err
		}
		records = toRecords(sub.sources)
	}

	key := dashboard.Key("inline", "anomalies", digest(records))
	if sub.companyID != nil {
		key = sub.key("anomalies")
	}

	return dashboard.GetOrSet(ctx, s.cache, key, func() (*AnomalyResult, error) {
		indices := emissions.DetectRecordAnomalies(records)
		result := &AnomalyResult{Indices: indices, Anomalies: make([]emissions.SourceRecord, 0, len(indices))}
		for _, idx := range indices {
			result.Anomalies = append(result.Anomalies, records[idx])
		}
		if s.observer != nil {
			s.observer.ObserveAnomalies(len(indices))
		}
		s.publishAnomalies(ctx, sub, result)
		return result, nil
	})
}

// CostCurve sweeps uniform reductions from 0 to 100 percent
func (s *Service) CostCurve(ctx context.Context, companyID *uuid.UUID, req CostCurveRequest) ([]emissions.CostCurvePoint, bool, error) {
	sub, err := s.resolve(ctx, companyID, req.Sources)
	if err != nil {
		return nil, false, err
	}
	costs := s.costs(req.Costs)

	return dashboard.GetOrSet(ctx, s.cache, sub.key("cost-curve", costs, req.Constraints), func() ([]emissions.CostCurvePoint, error) {
		return emissions.CostCurve(sub.sources, costs, req.Constraints), nil
	})
}

// ActionPlan projects a year-by-year reduction schedule against the baseline
func (s *Service) ActionPlan(ctx context.Context, companyID *uuid.UUID, req ActionPlanRequest) (*emissions.ActionPlan, bool, error) {
	sub, err := s.resolve(ctx, companyID, req.Sources)
	if err != nil {
		return nil, false, err
	}
	if len(req.Yearly) > MaxYears {
		return nil, false, fmt.Errorf("%w: action plan is limited to %d years", emissions.ErrInvalidInput, MaxYears)
	}

	return dashboard.GetOrSet(ctx, s.cache, sub.key("action-plan", req.Yearly), func() (*emissions.ActionPlan, error) {
		plan, err := emissions.ProjectActionPlan(s.model, sub.sources, req.Yearly)
		if err != nil {
			return nil, err
		}
		s.observeForecast("action_plan")
		return &plan, nil
	})
}

// Scenario forecasts the sources with per-record overrides next to the baseline
func (s *Service) Scenario(ctx context.Context, companyID *uuid.UUID, req ScenarioRequest) (*emissions.ScenarioResult, bool, error) {
	sub, err := s.resolve(ctx, companyID, req.Sources)
	if err != nil {
		return nil, false, err
	}
	years, err := s.years(req.Years)
	if err != nil {
		return nil, false, err
	}

	return dashboard.GetOrSet(ctx, s.cache, sub.key("scenario", req.Adjustments, years), func() (*emissions.ScenarioResult, error) {
		result, err := emissions.SimulateScenario(s.model, sub.sources, req.Adjustments, years)
		if err != nil {
			return nil, err
		}
		s.observeForecast("scenario")
		return &result, nil
	})
}

// Analytics is the stored-company view: forecast, recommendations and anomalies
func (s *Service) Analytics(ctx context.Context, companyID uuid.UUID, years int) (*AnalyticsResult, bool, error) {
	sub, err := s.resolve(ctx, &companyID, nil)
	if err != nil {
		return nil, false, err
	}
	years, err = s.years(years)
	if err != nil {
		return nil, false, err
	}

	return dashboard.GetOrSet(ctx, s.cache, sub.key("analytics", years), func() (*AnalyticsResult, error) {
		forecast, err := s.forecast(sub, years, s.opts.DefaultTarget)
		if err != nil {
			return nil, err
		}
		s.observeForecast("baseline")
		s.publishSpikes(ctx, sub, forecast.Analytics)

		return &AnalyticsResult{
			ForecastResult:  *forecast,
			Recommendations: emissions.Recommend(sub.sources),
			Anomalies:       emissions.DetectAnomalies(sub.sources),
			Equivalencies:   emissions.Equivalencies(forecast.Total),
		}, nil
	})
}

// Predict runs the regression model on one feature row
func (s *Service) Predict(features map[string]float64) (*PredictResult, error) {
	if s.model == nil {
		return nil, emissions.ErrModelUnavailable
	}
	prediction, err := s.model.Predict(features)
	if err != nil {
		return nil, err
	}
	return &PredictResult{Prediction: prediction}, nil
}

// PredictBatch predicts every row of a CSV upload
func (s *Service) PredictBatch(r io.Reader) ([]emissions.PredictionRow, error) {
	return emissions.BatchPredict(s.model, r)
}

// =====================================================
// Alerts
// =====================================================

func (s *Service) publishSpikes(ctx context.Context, sub subject, analytics emissions.ForecastAnalytics) {
	if sub.companyID == nil || len(analytics.Spikes) == 0 {
		return
	}
	alert := notifications.NewAlert(
		notifications.KindForecastSpike,
		*sub.companyID,
		notifications.SeverityWarning,
		"Forecast spike detected",
		fmt.Sprintf("%d forecast year(s) change more than twice the average annual change", len(analytics.Spikes)),
	).WithData("spikes", analytics.Spikes)
	notifications.SafeNotify(ctx, s.notifier, s.logger, alert)
}

func (s *Service) publishAnomalies(ctx context.Context, sub subject, result *AnomalyResult) {
	if sub.companyID == nil || len(result.Indices) == 0 {
		return
	}
	alert := notifications.NewAlert(
		notifications.KindAnomaly,
		*sub.companyID,
		notifications.SeverityWarning,
		"Anomalous emission sources",
		fmt.Sprintf("%d emission source(s) look unusual compared to the rest", len(result.Indices)),
	).WithData("indices", result.Indices)
	notifications.SafeNotify(ctx, s.notifier, s.logger, alert)
}

func toRecords(sources []emissions.EmissionSource) []emissions.SourceRecord {
	records := make([]emissions.SourceRecord, len(sources))
	for i, src := range sources {
		emission := src.Emission
		records[i] = emissions.SourceRecord{Type: src.Type, Emission: &emission}
	}
	return records
}
