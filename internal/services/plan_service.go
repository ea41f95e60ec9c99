package services

import (
	"context"
	"fmt"

	"habitly/internal/models/db_models"
	"habitly/internal/models/response_models"
	"habitly/internal/repositories"
	"habitly/pkg/utils"
)

type PlanServiceInterface interface {
	GetPlans(ctx context.Context) ([]response_models.PlanResponse, error)
	GetPlanInfoById(ctx context.Context, planId db_models.PlanID) (*db_models.Plan, error)
	HasFeatureAccess(ctx context.Context, planId db_models.PlanID, feature string) (bool, error)
	// EffectivePlan derives the plan that grants access right now: a freemium
	// user inside an active trial window is on trial.
	EffectivePlan(user *db_models.User, now int64) db_models.PlanID
}

func NewPlanService(planRepo repositories.IPlanRepository) PlanServiceInterface {
	return &PlanService{
		planRepo: planRepo,
	}
}

type PlanService struct {
	planRepo repositories.IPlanRepository
}

func (p *PlanService) GetPlans(ctx context.Context) ([]response_models.PlanResponse, error) {
	plans, err := p.planRepo.GetAllPlans(ctx)
	if err != nil {
		return nil, utils.NewDataAccessFailure("list plans", err)
	}

	result := make([]response_models.PlanResponse, 0, len(plans))
	for _, plan := range plans {
		result = append(result, toPlanResponse(plan))
	}
	return result, nil
}

func (p *PlanService) GetPlanInfoById(ctx context.Context, planId db_models.PlanID) (*db_models.Plan, error) {
	plan, err := p.planRepo.GetPlanInfoById(ctx, planId)
	if err != nil {
		return nil, utils.NewDataAccessFailure("get plan", err)
	}

	if plan == nil {
		return nil, fmt.Errorf("plan %q: %w", planId, utils.ErrNotFound)
	}

	return plan, nil
}

func (p *PlanService) HasFeatureAccess(ctx context.Context, planId db_models.PlanID, feature string) (bool, error) {
	plan, err := p.GetPlanInfoById(ctx, planId)
	if err != nil {
		return false, err
	}
	return plan.HasFeature(feature), nil
}

func (p *PlanService) EffectivePlan(user *db_models.User, now int64) db_models.PlanID {
	if user.Plan == db_models.PlanFreemium && user.TrialActive(now) {
		return db_models.PlanTrial
	}
	if user.Plan == "" {
		return db_models.PlanFreemium
	}
	return user.Plan
}

func toPlanResponse(plan db_models.Plan) response_models.PlanResponse {
	return response_models.PlanResponse{
		ID:                   string(plan.ID),
		Name:                 plan.Name,
		MaxEnergy:            plan.MaxEnergy,
		DailyRecharge:        plan.DailyRecharge,
		Features:             plan.Features,
		MaxActiveSeries:      plan.MaxActiveSeries,
		MaxPeriodicSummaries: plan.MaxPeriodicSummaries,
	}
}
