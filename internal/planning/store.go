package planning

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/Kaustab2003/co2-emission-forecasting/internal/emissions"
)

// PlanStore keeps named reduction plans per company
type PlanStore interface {
	SavePlan(ctx context.Context, companyID uuid.UUID, name string, plan emissions.ReductionPlan) error
	GetPlan(ctx context.Context, companyID uuid.UUID, name string) (emissions.ReductionPlan, error)
	DeletePlan(ctx context.Context, companyID uuid.UUID, name string) error
	ListPlans(ctx context.Context, companyID uuid.UUID) ([]NamedPlan, error)
}

// ScenarioStore keeps named source snapshots per company
type ScenarioStore interface {
	SaveScenario(ctx context.Context, companyID uuid.UUID, name string, sources []emissions.EmissionSource) error
	GetScenario(ctx context.Context, companyID uuid.UUID, name string) ([]emissions.EmissionSource, error)
	DeleteScenario(ctx context.Context, companyID uuid.UUID, name string) error
	ListScenarios(ctx context.Context, companyID uuid.UUID) ([]NamedScenario, error)
}

// OffsetLedger records offset purchases
type OffsetLedger interface {
	RecordPurchase(ctx context.Context, purchase *OffsetPurchase) error
	ListPurchases(ctx context.Context, companyID uuid.UUID) ([]*OffsetPurchase, error)
}

// Store is every persistence concern of the planning service
type Store interface {
	PlanStore
	ScenarioStore
	OffsetLedger
}

type storeKey struct {
	companyID uuid.UUID
	name      string
}

// MemoryStore implements Store in memory
type MemoryStore struct {
	mu        sync.RWMutex
	plans     map[storeKey]NamedPlan
	scenarios map[storeKey]NamedScenario
	purchases []*OffsetPurchase
	now       func() time.Time
}

// NewMemoryStore creates an empty in-memory store
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		plans:     make(map[storeKey]NamedPlan),
		scenarios: make(map[storeKey]NamedScenario),
		now:       time.Now,
	}
}

func (s *MemoryStore) SavePlan(_ context.Context, companyID uuid.UUID, name string, plan emissions.ReductionPlan) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.plans[storeKey{companyID, name}] = NamedPlan{Name: name, Plan: copyPlan(plan), UpdatedAt: s.now().UTC()}
	return nil
}

func (s *MemoryStore) GetPlan(_ context.Context, companyID uuid.UUID, name string) (emissions.ReductionPlan, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	p, ok := s.plans[storeKey{companyID, name}]
	if !ok {
		return nil, ErrPlanNotFound
	}
	return copyPlan(p.Plan), nil
}

func (s *MemoryStore) DeletePlan(_ context.Context, companyID uuid.UUID, name string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	key := storeKey{companyID, name}
	if _, ok := s.plans[key]; !ok {
		return ErrPlanNotFound
	}
	delete(s.plans, key)
	return nil
}

func (s *MemoryStore) ListPlans(_ context.Context, companyID uuid.UUID) ([]NamedPlan, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var plans []NamedPlan
	for key, p := range s.plans {
		if key.companyID == companyID {
			p.Plan = copyPlan(p.Plan)
			plans = append(plans, p)
		}
	}
	sort.Slice(plans, func(i, j int) bool { return plans[i].Name < plans[j].Name })
	return plans, nil
}

func (s *MemoryStore) SaveScenario(_ context.Context, companyID uuid.UUID, name string, sources []emissions.EmissionSource) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.scenarios[storeKey{companyID, name}] = NamedScenario{Name: name, Sources: copySources(sources), UpdatedAt: s.now().UTC()}
	return nil
}

func (s *MemoryStore) GetScenario(_ context.Context, companyID uuid.UUID, name string) ([]emissions.EmissionSource, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	sc, ok := s.scenarios[storeKey{companyID, name}]
	if !ok {
		return nil, ErrScenarioNotFound
	}
	return copySources(sc.Sources), nil
}

func (s *MemoryStore) DeleteScenario(_ context.Context, companyID uuid.UUID, name string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	key := storeKey{companyID, name}
	if _, ok := s.scenarios[key]; !ok {
		return ErrScenarioNotFound
	}
	delete(s.scenarios, key)
	return nil
}

func (s *MemoryStore) ListScenarios(_ context.Context, companyID uuid.UUID) ([]NamedScenario, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var scenarios []NamedScenario
	for key, sc := range s.scenarios {
		if key.companyID == companyID {
			sc.Sources = copySources(sc.Sources)
			scenarios = append(scenarios, sc)
		}
	}
	sort.Slice(scenarios, func(i, j int) bool { return scenarios[i].Name < scenarios[j].Name })
	return scenarios, nil
}

func (s *MemoryStore) RecordPurchase(_ context.Context, purchase *OffsetPurchase) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	p := *purchase
	s.purchases = append(s.purchases, &p)
	return nil
}

func (s *MemoryStore) ListPurchases(_ context.Context, companyID uuid.UUID) ([]*OffsetPurchase, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var purchases []*OffsetPurchase
	for i := len(s.purchases) - 1; i >= 0; i-- {
		if s.purchases[i].CompanyID == companyID {
			p := *s.purchases[i]
			purchases = append(purchases, &p)
		}
	}
	return purchases, nil
}

func copyPlan(plan emissions.ReductionPlan) emissions.ReductionPlan {
	out := make(emissions.ReductionPlan, len(plan))
	for k, v := range plan {
		out[k] = v
	}
	return out
}

func copySources(sources []emissions.EmissionSource) []emissions.EmissionSource {
	out := make([]emissions.EmissionSource, len(sources))
	copy(out, sources)
	return out
}
