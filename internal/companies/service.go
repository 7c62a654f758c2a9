package companies

import (
	"context"
	"fmt"
	"io"
	"math"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/Kaustab2003/co2-emission-forecasting/internal/audit"
	"github.com/Kaustab2003/co2-emission-forecasting/internal/benchmarks"
	"github.com/Kaustab2003/co2-emission-forecasting/internal/emissions"
	"github.com/Kaustab2003/co2-emission-forecasting/pkg/geospatial"
)

// ChangeListener is told when a company's sources change so derived data can
// be invalidated.
type ChangeListener func(ctx context.Context, companyID uuid.UUID)

// Service handles company and emission source business logic
type Service struct {
	repo      Repository
	external  *ExternalSource
	audit     audit.Recorder
	logger    *zap.Logger
	listeners []ChangeListener
}

// NewService creates a new companies service
func NewService(repo Repository, external *ExternalSource, recorder audit.Recorder, logger *zap.Logger) *Service {
	return &Service{
		repo:     repo,
		external: external,
		audit:    recorder,
		logger:   logger,
	}
}

// OnChange registers a listener for source changes
func (s *Service) OnChange(listener ChangeListener) {
	s.listeners = append(s.listeners, listener)
}

// =====================================================
// Companies
// =====================================================

// CreateCompany validates and stores a new company for ownerID
func (s *Service) CreateCompany(ctx context.Context, ownerID uuid.UUID, req *CreateCompanyRequest) (*Company, error) {
	name := strings.TrimSpace(req.Name)
	if name == "" {
		return nil, fmt.Errorf("%w: company name is required", emissions.ErrInvalidInput)
	}
	if !benchmarks.ValidSector(req.Sector) {
		return nil, fmt.Errorf("%w: %q", ErrInvalidSector, req.Sector)
	}
	if !ValidSize(req.Size) {
		return nil, fmt.Errorf("%w: %q", ErrInvalidSize, req.Size)
	}

	now := time.Now().UTC()
	company := &Company{
		ID:        uuid.New(),
		OwnerID:   ownerID,
		Name:      name,
		Sector:    req.Sector,
		Size:      req.Size,
		CreatedAt: now,
		UpdatedAt: now,
	}

	if err := s.repo.CreateCompany(ctx, company); err != nil {
		return nil, err
	}

	s.logger.Info("Company created",
		zap.String("company_id", company.ID.String()),
		zap.String("sector", company.Sector),
	)
	return company, nil
}

// GetCompany retrieves a company by id
func (s *Service) GetCompany(ctx context.Context, id uuid.UUID) (*Company, error) {
	return s.repo.GetCompany(ctx, id)
}

// ListCompanies lists companies, optionally only those of ownerID
func (s *Service) ListCompanies(ctx context.Context, ownerID *uuid.UUID) ([]*Company, error) {
	return s.repo.ListCompanies(ctx, ownerID)
}

// DeleteCompany removes a company and its sources
func (s *Service) DeleteCompany(ctx context.Context, id uuid.UUID) error {
	if err := s.repo.DeleteCompany(ctx, id); err != nil {
		return err
	}
	s.changed(ctx, id)
	return nil
}

// Snapshot returns a company with its current sources
func (s *Service) Snapshot(ctx context.Context, id uuid.UUID) (*CompanyWithSources, error) {
	company, err := s.repo.GetCompany(ctx, id)
	if err != nil {
		return nil, err
	}

	sources, err := s.repo.ListSources(ctx, id)
	if err != nil {
		return nil, err
	}

	return &CompanyWithSources{Company: company, Sources: sources}, nil
}

// =====================================================
// Emission sources
// =====================================================

// ListSources returns a company's sources in input order
func (s *Service) ListSources(ctx context.Context, companyID uuid.UUID) ([]emissions.EmissionSource, error) {
	return s.repo.ListSources(ctx, companyID)
}

// AddSource appends one source
func (s *Service) AddSource(ctx context.Context, companyID uuid.UUID, source emissions.EmissionSource) error {
	source.Type = strings.TrimSpace(source.Type)
	if source.Type == "" {
		return fmt.Errorf("%w: source type is required", emissions.ErrMissingData)
	}
	if source.Emission < 0 || math.IsNaN(source.Emission) || math.IsInf(source.Emission, 0) {
		return fmt.Errorf("%w: emission must be a non-negative number", emissions.ErrInvalidInput)
	}
	if source.Location != nil {
		if _, err := geospatial.NewPoint(source.Location.Lat, source.Location.Lon); err != nil {
			return fmt.Errorf("%w: %v", emissions.ErrInvalidInput, err)
		}
	}

	if err := s.repo.AddSource(ctx, companyID, source); err != nil {
		return err
	}
	s.changed(ctx, companyID)
	return nil
}

// SourceMap renders a company's located sources as GeoJSON points. Sources
// without a location are counted in unlocated.
func (s *Service) SourceMap(ctx context.Context, companyID uuid.UUID) (*SourceMapResult, error) {
	sources, err := s.ListSources(ctx, companyID)
	if err != nil {
		return nil, err
	}

	result := &SourceMapResult{}
	var markers []geospatial.Marker
	for i, source := range sources {
		if source.Location == nil {
			result.Unlocated++
			continue
		}
		markers = append(markers, geospatial.Marker{
			Lat: source.Location.Lat,
			Lon: source.Location.Lon,
			Properties: map[string]interface{}{
				"index":    i,
				"type":     source.Type,
				"emission": source.Emission,
			},
		})
	}

	fc, err := geospatial.FeatureCollection(markers)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", emissions.ErrInvalidInput, err)
	}
	result.Features = fc
	if center, ok := geospatial.Centroid(markers); ok {
		result.Center = &emissions.GeoPoint{Lat: center.Lat(), Lon: center.Lon()}
		result.SpreadKm = geospatial.SpreadKm(markers)
	}
	return result, nil
}

// ReplaceSources validates decoded records and replaces all of a company's
// sources. The change is recorded in the audit log under action.
func (s *Service) ReplaceSources(ctx context.Context, actor string, companyID uuid.UUID, records []emissions.SourceRecord, action audit.Action) ([]emissions.EmissionSource, error) {
	sources, err := emissions.ValidateRecords(records)
	if err != nil {
		return nil, err
	}
	if err := s.store(ctx, actor, companyID, sources, action, nil); err != nil {
		return nil, err
	}
	return sources, nil
}

// ImportCSV replaces a company's sources with the rows of a CSV upload
func (s *Service) ImportCSV(ctx context.Context, actor string, companyID uuid.UUID, r io.Reader) (*ImportResult, error) {
	sources, err := ParseSourcesCSV(r)
	if err != nil {
		return nil, err
	}

	if err := s.store(ctx, actor, companyID, sources, audit.ActionSourcesImported, audit.JSONB{"origin": "csv"}); err != nil {
		return nil, err
	}

	return &ImportResult{CompanyID: companyID, Imported: len(sources), Source: "csv", Sources: sources}, nil
}

// ImportExternal replaces a company's sources with data from the external API
func (s *Service) ImportExternal(ctx context.Context, actor string, companyID uuid.UUID) (*ImportResult, error) {
	company, err := s.repo.GetCompany(ctx, companyID)
	if err != nil {
		return nil, err
	}

	var (
		sources  []emissions.EmissionSource
		fallback = true
	)
	if s.external != nil {
		sources, fallback, err = s.external.Fetch(ctx, company.Name)
		if err != nil {
			return nil, err
		}
	} else {
		sources = FallbackSources()
	}

	details := audit.JSONB{"origin": "external", "fallback": fallback}
	if err := s.store(ctx, actor, companyID, sources, audit.ActionSourcesImported, details); err != nil {
		return nil, err
	}

	return &ImportResult{CompanyID: companyID, Imported: len(sources), Source: "external", Fallback: fallback, Sources: sources}, nil
}

func (s *Service) store(ctx context.Context, actor string, companyID uuid.UUID, sources []emissions.EmissionSource, action audit.Action, details audit.JSONB) error {
	if err := s.repo.ReplaceSources(ctx, companyID, sources); err != nil {
		return err
	}

	if details == nil {
		details = audit.JSONB{}
	}
	details["sources"] = len(sources)
	details["total"] = emissions.TotalEmissions(sources)
	s.record(ctx, action, actor, companyID, details)

	s.logger.Info("Emission sources replaced",
		zap.String("company_id", companyID.String()),
		zap.String("action", string(action)),
		zap.Int("sources", len(sources)),
	)

	s.changed(ctx, companyID)
	return nil
}

// ValidationReport checks a company's sources against its sector average
func (s *Service) ValidationReport(ctx context.Context, companyID uuid.UUID) (*ValidationReport, error) {
	snapshot, err := s.Snapshot(ctx, companyID)
	if err != nil {
		return nil, err
	}

	benchmark := benchmarks.ForSector(snapshot.Company.Sector)
	issues := emissions.ValidateSources(snapshot.Sources, benchmark.Average)
	if issues == nil {
		issues = []emissions.ValidationIssue{}
	}

	return &ValidationReport{
		CompanyID:     companyID,
		Sector:        benchmark.Sector,
		SectorAverage: benchmark.Average,
		Total:         snapshot.Total(),
		Valid:         len(issues) == 0,
		Issues:        issues,
	}, nil
}

// StaleCompanies returns companies whose sources have not been updated for
// more than the stale threshold.
func (s *Service) StaleCompanies(ctx context.Context, now time.Time) ([]*Company, error) {
	companies, err := s.repo.ListCompanies(ctx, nil)
	if err != nil {
		return nil, err
	}

	var stale []*Company
	for _, c := range companies {
		var last time.Time
		if c.LastUpdatedAt != nil {
			last = *c.LastUpdatedAt
		}
		if isStale, _ := emissions.StaleSince(last, now); isStale {
			stale = append(stale, c)
		}
	}
	return stale, nil
}

func (s *Service) record(ctx context.Context, action audit.Action, actor string, companyID uuid.UUID, details audit.JSONB) {
	if s.audit == nil {
		return
	}
	id := companyID
	if err := s.audit.Record(ctx, audit.NewEntry(action, actor, &id, details)); err != nil {
		s.logger.Error("Failed to record audit entry", zap.String("action", string(action)), zap.Error(err))
	}
}

func (s *Service) changed(ctx context.Context, companyID uuid.UUID) {
	for _, listener := range s.listeners {
		listener(ctx, companyID)
	}
}
