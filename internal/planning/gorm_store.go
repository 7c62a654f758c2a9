package planning

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/Kaustab2003/co2-emission-forecasting/internal/emissions"
)

// GormStore implements Store using GORM
type GormStore struct {
	db *gorm.DB
}

// NewGormStore creates a new GORM-backed store
func NewGormStore(db *gorm.DB) *GormStore {
	return &GormStore{db: db}
}

// AutoMigrate creates or updates the planning tables
func (s *GormStore) AutoMigrate() error {
	return s.db.AutoMigrate(&SavedPlan{}, &SavedScenario{}, &OffsetPurchase{})
}

// =====================================================
// Plans
// =====================================================

func (s *GormStore) SavePlan(ctx context.Context, companyID uuid.UUID, name string, plan emissions.ReductionPlan) error {
	body, err := json.Marshal(plan)
	if err != nil {
		return fmt.Errorf("failed to marshal plan: %w", err)
	}

	record := SavedPlan{
		ID:        uuid.New(),
		CompanyID: companyID,
		Name:      name,
		Plan:      datatypes.JSON(body),
	}

	err = s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "company_id"}, {Name: "name"}},
		DoUpdates: clause.Assignments(map[string]interface{}{"plan": record.Plan, "updated_at": time.Now().UTC()}),
	}).Create(&record).Error
	if err != nil {
		return fmt.Errorf("failed to save plan: %w", err)
	}
	return nil
}

func (s *GormStore) GetPlan(ctx context.Context, companyID uuid.UUID, name string) (emissions.ReductionPlan, error) {
	var record SavedPlan
	err := s.db.WithContext(ctx).Where("company_id = ? AND name = ?", companyID, name).First(&record).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrPlanNotFound
		}
		return nil, fmt.Errorf("failed to get plan: %w", err)
	}
	return decodePlan(record.Plan)
}

func (s *GormStore) DeletePlan(ctx context.Context, companyID uuid.UUID, name string) error {
	result := s.db.WithContext(ctx).Where("company_id = ? AND name = ?", companyID, name).Delete(&SavedPlan{})
	if result.Error != nil {
		return fmt.Errorf("failed to delete plan: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return ErrPlanNotFound
	}
	return nil
}

func (s *GormStore) ListPlans(ctx context.Context, companyID uuid.UUID) ([]NamedPlan, error) {
	var records []SavedPlan
	if err := s.db.WithContext(ctx).Where("company_id = ?", companyID).Order("name").Find(&records).Error; err != nil {
		return nil, fmt.Errorf("failed to list plans: %w", err)
	}

	plans := make([]NamedPlan, 0, len(records))
	for _, r := range records {
		plan, err := decodePlan(r.Plan)
		if err != nil {
			return nil, err
		}
		plans = append(plans, NamedPlan{Name: r.Name, Plan: plan, UpdatedAt: r.UpdatedAt})
	}
	return plans, nil
}

// =====================================================
// Scenarios
// =====================================================

func (s *GormStore) SaveScenario(ctx context.Context, companyID uuid.UUID, name string, sources []emissions.EmissionSource) error {
	body, err := json.Marshal(sources)
	if err != nil {
		return fmt.Errorf("failed to marshal scenario: %w", err)
	}

	record := SavedScenario{
		ID:        uuid.New(),
		CompanyID: companyID,
		Name:      name,
		Sources:   datatypes.JSON(body),
	}

	err = s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "company_id"}, {Name: "name"}},
		DoUpdates: clause.Assignments(map[string]interface{}{"sources": record.Sources, "updated_at": time.Now().UTC()}),
	}).Create(&record).Error
	if err != nil {
		return fmt.Errorf("failed to save scenario: %w", err)
	}
	return nil
}

func (s *GormStore) GetScenario(ctx context.Context, companyID uuid.UUID, name string) ([]emissions.EmissionSource, error) {
	var record SavedScenario
	err := s.db.WithContext(ctx).Where("company_id = ? AND name = ?", companyID, name).First(&record).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrScenarioNotFound
		}
		return nil, fmt.Errorf("failed to get scenario: %w", err)
	}
	return decodeSources(record.Sources)
}

func (s *GormStore) DeleteScenario(ctx context.Context, companyID uuid.UUID, name string) error {
	result := s.db.WithContext(ctx).Where("company_id = ? AND name = ?", companyID, name).Delete(&SavedScenario{})
	if result.Error != nil {
		return fmt.Errorf("failed to delete scenario: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return ErrScenarioNotFound
	}
	return nil
}

func (s *GormStore) ListScenarios(ctx context.Context, companyID uuid.UUID) ([]NamedScenario, error) {
	var records []SavedScenario
	if err := s.db.WithContext(ctx).Where("company_id = ?", companyID).Order("name").Find(&records).Error; err != nil {
		return nil, fmt.Errorf("failed to list scenarios: %w", err)
	}

	scenarios := make([]NamedScenario, 0, len(records))
	for _, r := range records {
		sources, err := decodeSources(r.Sources)
		if err != nil {
			return nil, err
		}
		scenarios = append(scenarios, NamedScenario{Name: r.Name, Sources: sources, UpdatedAt: r.UpdatedAt})
	}
	return scenarios, nil
}

// =====================================================
// Offsets
// =====================================================

func (s *GormStore) RecordPurchase(ctx context.Context, purchase *OffsetPurchase) error {
	if err := s.db.WithContext(ctx).Create(purchase).Error; err != nil {
		return fmt.Errorf("failed to record offset purchase: %w", err)
	}
	return nil
}

func (s *GormStore) ListPurchases(ctx context.Context, companyID uuid.UUID) ([]*OffsetPurchase, error) {
	var purchases []*OffsetPurchase
	err := s.db.WithContext(ctx).Where("company_id = ?", companyID).Order("purchased_at DESC").Find(&purchases).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list offset purchases: %w", err)
	}
	return purchases, nil
}

func decodePlan(data datatypes.JSON) (emissions.ReductionPlan, error) {
	plan := emissions.ReductionPlan{}
	if len(data) == 0 {
		return plan, nil
	}
	if err := json.Unmarshal(data, &plan); err != nil {
		return nil, fmt.Errorf("failed to decode plan: %w", err)
	}
	return plan, nil
}

func decodeSources(data datatypes.JSON) ([]emissions.EmissionSource, error) {
	var sources []emissions.EmissionSource
	if len(data) == 0 {
		return sources, nil
	}
	if err := json.Unmarshal(data, &sources); err != nil {
		return nil, fmt.Errorf("failed to decode scenario: %w", err)
	}
	return sources, nil
}
