package db_fx

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"habitly/internal/models/db_models"
	"habitly/internal/repositories"
)

func TestSeedUser(t *testing.T) {
	ctx := context.Background()
	store := repositories.NewMemoryStore()
	plan := &db_models.Plan{ID: db_models.PlanFreemium, MaxEnergy: 50}
	id := uuid.NewString()

	require.NoError(t, seedUser(ctx, store, plan, id))

	user, err := store.FindById(ctx, id)
	require.NoError(t, err)
	require.NotNil(t, user)
	assert.Equal(t, db_models.PlanFreemium, user.Plan)
	assert.Equal(t, int64(50), user.Energy.Current)
	assert.Equal(t, int64(50), user.Energy.Max)

	// Existing users are left alone.
	require.NoError(t, seedUser(ctx, store, &db_models.Plan{ID: db_models.PlanPremium, MaxEnergy: 1000}, id))
	user, _ = store.FindById(ctx, id)
	assert.Equal(t, int64(50), user.Energy.Current)

	assert.Error(t, seedUser(ctx, store, plan, "not-a-uuid"))
}
