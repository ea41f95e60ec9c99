package services

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"habitly/internal/models/db_models"
	"habitly/pkg/utils"
)

func TestPlanService_GetPlans(t *testing.T) {
	plans, err := newTestPlanService(t).GetPlans(context.Background())
	require.NoError(t, err)

	require.Len(t, plans, 3)
	assert.Equal(t, "freemium", plans[0].ID)
	assert.Equal(t, int64(50), plans[0].MaxEnergy)
	assert.Equal(t, 1, plans[0].MaxActiveSeries)
	assert.Equal(t, "premium", plans[2].ID)
}

func TestPlanService_GetPlanInfoById(t *testing.T) {
	svc := newTestPlanService(t)

	plan, err := svc.GetPlanInfoById(context.Background(), db_models.PlanTrial)
	require.NoError(t, err)
	assert.Equal(t, int64(200), plan.MaxEnergy)

	_, err = svc.GetPlanInfoById(context.Background(), "enterprise")
	assert.ErrorIs(t, err, utils.ErrNotFound)
}

func TestPlanService_HasFeatureAccess(t *testing.T) {
	svc := newTestPlanService(t)
	ctx := context.Background()

	ok, err := svc.HasFeatureAccess(ctx, db_models.PlanFreemium, db_models.FeatureHabitSeries)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = svc.HasFeatureAccess(ctx, db_models.PlanFreemium, db_models.FeatureAssistant)
	require.NoError(t, err)
	assert.False(t, ok)

	ok, err = svc.HasFeatureAccess(ctx, db_models.PlanPremium, db_models.FeatureAssistant)
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestPlanService_EffectivePlan(t *testing.T) {
	svc := newTestPlanService(t)
	now := testNow.Unix()
	start, end := now-10, now+10
	expired := now - 5

	assert.Equal(t, db_models.PlanFreemium, svc.EffectivePlan(&db_models.User{Plan: db_models.PlanFreemium}, now))
	assert.Equal(t, db_models.PlanFreemium, svc.EffectivePlan(&db_models.User{}, now))
	assert.Equal(t, db_models.PlanTrial, svc.EffectivePlan(&db_models.User{Plan: db_models.PlanFreemium, TrialStartsAt: &start, TrialEndsAt: &end}, now))
	assert.Equal(t, db_models.PlanFreemium, svc.EffectivePlan(&db_models.User{Plan: db_models.PlanFreemium, TrialStartsAt: &start, TrialEndsAt: &expired}, now))
	// A paid plan is never downgraded to a trial.
	assert.Equal(t, db_models.PlanPremium, svc.EffectivePlan(&db_models.User{Plan: db_models.PlanPremium, TrialStartsAt: &start, TrialEndsAt: &end}, now))
}
