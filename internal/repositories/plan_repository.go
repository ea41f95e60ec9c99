package repositories

import (
	"context"
	_ "embed"
	"errors"
	"fmt"

	"gopkg.in/yaml.v3"

	"habitly/internal/models/db_models"
)

//go:embed catalog/plans.yaml
var defaultCatalog []byte

type IPlanRepository interface {
	GetPlanInfoById(ctx context.Context, planID db_models.PlanID) (*db_models.Plan, error)
	GetAllPlans(ctx context.Context) ([]db_models.Plan, error)
}

// PlanRepository serves the immutable plan catalog. It is loaded once and
// only read afterwards, so it needs no locking.
type PlanRepository struct {
	order []db_models.PlanID
	plans map[db_models.PlanID]db_models.Plan
}

type planCatalog struct {
	Plans []db_models.Plan `yaml:"plans"`
}

func NewPlanRepository() (IPlanRepository, error) {
	return NewPlanRepositoryFromYAML(defaultCatalog)
}

func NewPlanRepositoryFromYAML(raw []byte) (*PlanRepository, error) {
	var catalog planCatalog
	if err := yaml.Unmarshal(raw, &catalog); err != nil {
		return nil, fmt.Errorf("parse plan catalog: %w", err)
	}
	if len(catalog.Plans) == 0 {
		return nil, errors.New("plan catalog is empty")
	}

	repo := &PlanRepository{plans: make(map[db_models.PlanID]db_models.Plan, len(catalog.Plans))}
	for _, p := range catalog.Plans {
		if p.ID == "" {
			return nil, errors.New("plan catalog: plan without id")
		}
		if _, dup := repo.plans[p.ID]; dup {
			return nil, fmt.Errorf("plan catalog: duplicate plan %q", p.ID)
		}
		if p.MaxEnergy < 0 || p.DailyRecharge < 0 || p.MaxActiveSeries < 0 {
			return nil, fmt.Errorf("plan catalog: plan %q has negative limits", p.ID)
		}
		repo.plans[p.ID] = p
		repo.order = append(repo.order, p.ID)
	}
	return repo, nil
}

// GetPlanInfoById returns nil, nil for an unknown plan.
func (p *PlanRepository) GetPlanInfoById(_ context.Context, planID db_models.PlanID) (*db_models.Plan, error) {
	plan, ok := p.plans[planID]
	if !ok {
		return nil, nil
	}
	plan.Features = append([]string(nil), plan.Features...)
	return &plan, nil
}

func (p *PlanRepository) GetAllPlans(ctx context.Context) ([]db_models.Plan, error) {
	plans := make([]db_models.Plan, 0, len(p.order))
	for _, id := range p.order {
		plan, _ := p.GetPlanInfoById(ctx, id)
		plans = append(plans, *plan)
	}
	return plans, nil
}
