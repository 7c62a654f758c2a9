package planning

import (
	"context"
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/Kaustab2003/co2-emission-forecasting/internal/audit"
	"github.com/Kaustab2003/co2-emission-forecasting/internal/companies"
	"github.com/Kaustab2003/co2-emission-forecasting/internal/emissions"
)

// CompanySources reads and replaces a company's current sources
type CompanySources interface {
	Snapshot(ctx context.Context, id uuid.UUID) (*companies.CompanyWithSources, error)
	ReplaceSources(ctx context.Context, actor string, companyID uuid.UUID, records []emissions.SourceRecord, action audit.Action) ([]emissions.EmissionSource, error)
}

// Service manages saved plans, the scenario library and offset purchases
type Service struct {
	store     Store
	companies CompanySources
	model     emissions.Predictor
	audit     audit.Recorder
	logger    *zap.Logger
}

// NewService creates a new planning service
func NewService(store Store, companySources CompanySources, model emissions.Predictor, recorder audit.Recorder, logger *zap.Logger) *Service {
	return &Service{
		store:     store,
		companies: companySources,
		model:     model,
		audit:     recorder,
		logger:    logger,
	}
}

// =====================================================
// Plans
// =====================================================

// SavePlan stores a named plan after checking every percentage is in [0, 100]
func (s *Service) SavePlan(ctx context.Context, companyID uuid.UUID, name string, plan emissions.ReductionPlan) error {
	name, err := cleanName(name)
	if err != nil {
		return err
	}
	for sourceType, pct := range plan {
		if math.IsNaN(pct) || pct < 0 || pct > 100 {
			return fmt.Errorf("%w: reduction for %q must be between 0 and 100", emissions.ErrInvalidInput, sourceType)
		}
	}
	return s.store.SavePlan(ctx, companyID, name, plan)
}

// GetPlan returns a saved plan
func (s *Service) GetPlan(ctx context.Context, companyID uuid.UUID, name string) (emissions.ReductionPlan, error) {
	return s.store.GetPlan(ctx, companyID, name)
}

// DeletePlan removes a saved plan
func (s *Service) DeletePlan(ctx context.Context, companyID uuid.UUID, name string) error {
	return s.store.DeletePlan(ctx, companyID, name)
}

// ListPlans lists a company's saved plans by name
func (s *Service) ListPlans(ctx context.Context, companyID uuid.UUID) ([]NamedPlan, error) {
	return s.store.ListPlans(ctx, companyID)
}

// ApplyPlan forecasts a company's current sources under a saved plan
func (s *Service) ApplyPlan(ctx context.Context, companyID uuid.UUID, name string, years int) (*PlanForecast, error) {
	plan, err := s.store.GetPlan(ctx, companyID, name)
	if err != nil {
		return nil, err
	}

	snapshot, err := s.companies.Snapshot(ctx, companyID)
	if err != nil {
		return nil, err
	}
	if len(snapshot.Sources) == 0 {
		return nil, fmt.Errorf("%w: company has no emission sources", emissions.ErrMissingData)
	}

	baseline, err := emissions.Forecast(s.model, snapshot.Total(), years)
	if err != nil {
		return nil, err
	}

	forecast, reduction, err := emissions.ForecastReduction(s.model, snapshot.Sources, plan, years)
	if err != nil {
		return nil, err
	}

	return &PlanForecast{Name: name, Plan: plan, Reduction: reduction, Baseline: baseline, Forecast: forecast}, nil
}

// =====================================================
// Scenario library
// =====================================================

// SaveScenario stores a named source snapshot. With no sources the
// company's current sources are saved.
func (s *Service) SaveScenario(ctx context.Context, companyID uuid.UUID, name string, sources []emissions.EmissionSource) error {
	name, err := cleanName(name)
	if err != nil {
		return err
	}

	if len(sources) == 0 {
		snapshot, err := s.companies.Snapshot(ctx, companyID)
		if err != nil {
			return err
		}
		sources = snapshot.Sources
	}
	if len(sources) == 0 {
		return fmt.Errorf("%w: company has no emission sources", emissions.ErrMissingData)
	}
	for i, src := range sources {
		if src.Type == "" || src.Emission < 0 || math.IsNaN(src.Emission) {
			return fmt.Errorf("%w: invalid emission source at index %d", emissions.ErrInvalidInput, i)
		}
	}

	return s.store.SaveScenario(ctx, companyID, name, sources)
}

// GetScenario returns a saved scenario's sources
func (s *Service) GetScenario(ctx context.Context, companyID uuid.UUID, name string) ([]emissions.EmissionSource, error) {
	return s.store.GetScenario(ctx, companyID, name)
}

// DeleteScenario removes a saved scenario
func (s *Service) DeleteScenario(ctx context.Context, companyID uuid.UUID, name string) error {
	return s.store.DeleteScenario(ctx, companyID, name)
}

// ListScenarios lists a company's saved scenarios by name
func (s *Service) ListScenarios(ctx context.Context, companyID uuid.UUID) ([]NamedScenario, error) {
	return s.store.ListScenarios(ctx, companyID)
}

// LoadScenario makes a saved scenario the company's current sources
func (s *Service) LoadScenario(ctx context.Context, actor string, companyID uuid.UUID, name string) ([]emissions.EmissionSource, error) {
	sources, err := s.store.GetScenario(ctx, companyID, name)
	if err != nil {
		return nil, err
	}

	records := make([]emissions.SourceRecord, len(sources))
	for i := range sources {
		records[i] = emissions.SourceRecord{Type: sources[i].Type, Emission: &sources[i].Emission}
	}

	return s.companies.ReplaceSources(ctx, actor, companyID, records, audit.ActionSourcesImported)
}

// CompareScenarios forecasts each named scenario over the comparison horizon
func (s *Service) CompareScenarios(ctx context.Context, companyID uuid.UUID, names []string) ([]ScenarioComparison, error) {
	comparisons := make([]ScenarioComparison, 0, len(names))
	for _, name := range names {
		sources, err := s.store.GetScenario(ctx, companyID, name)
		if err != nil {
			return nil, fmt.Errorf("scenario %q: %w", name, err)
		}

		total := emissions.TotalEmissions(sources)
		forecast, err := emissions.Forecast(s.model, total, emissions.ScenarioCompareYears)
		if err != nil {
			return nil, err
		}

		comparisons = append(comparisons, ScenarioComparison{Name: name, Total: total, Forecast: forecast})
	}
	return comparisons, nil
}

// =====================================================
// Offsets
// =====================================================

// PurchaseOffsets records an offset purchase. Tons must be positive and no
// more than the company's current total.
func (s *Service) PurchaseOffsets(ctx context.Context, userID uuid.UUID, actor string, companyID uuid.UUID, tons float64) (*OffsetQuote, error) {
	if tons <= 0 || math.IsNaN(tons) {
		return nil, fmt.Errorf("%w: tons must be positive", emissions.ErrInvalidInput)
	}

	snapshot, err := s.companies.Snapshot(ctx, companyID)
	if err != nil {
		return nil, err
	}
	if total := snapshot.Total(); tons > total {
		return nil, fmt.Errorf("%w: cannot offset %.2f tons, current emissions are %.2f", emissions.ErrInvalidInput, tons, total)
	}

	cost, err := emissions.OffsetCost(tons)
	if err != nil {
		return nil, err
	}

	purchase := &OffsetPurchase{
		ID:          uuid.New(),
		CompanyID:   companyID,
		UserID:      userID,
		Tons:        tons,
		PricePerTon: emissions.OffsetPricePerTon,
		Cost:        cost,
		PurchasedAt: time.Now().UTC(),
	}
	if err := s.store.RecordPurchase(ctx, purchase); err != nil {
		return nil, err
	}

	if s.audit != nil {
		id := companyID
		entry := audit.NewEntry(audit.ActionOffsetPurchased, actor, &id, audit.JSONB{"tons": tons, "cost": cost})
		if err := s.audit.Record(ctx, entry); err != nil {
			s.logger.Error("Failed to record audit entry", zap.Error(err))
		}
	}

	s.logger.Info("Offsets purchased",
		zap.String("company_id", companyID.String()),
		zap.Float64("tons", tons),
		zap.Float64("cost", cost),
	)

	return &OffsetQuote{Purchase: purchase, Equivalencies: emissions.Equivalencies(tons)}, nil
}

// ListPurchases returns a company's offset purchases, newest first
func (s *Service) ListPurchases(ctx context.Context, companyID uuid.UUID) ([]*OffsetPurchase, error) {
	return s.store.ListPurchases(ctx, companyID)
}

func cleanName(name string) (string, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return "", fmt.Errorf("%w: name is required", emissions.ErrInvalidInput)
	}
	return name, nil
}
