package db_fx

import (
	"fmt"

	"github.com/google/uuid"

	"habitly/internal/models/db_models"
)

func newSeedUser(id string, plan *db_models.Plan) (*db_models.User, error) {
	uid, err := uuid.Parse(id)
	if err != nil {
		return nil, fmt.Errorf("seed user id %q: %w", id, err)
	}
	return &db_models.User{
		BaseModel:   db_models.BaseModel{ID: uid},
		Email:       uid.String() + "@seed.local",
		DisplayName: "Seed user",
		Plan:        plan.ID,
		Energy: db_models.Energy{
			Current: plan.MaxEnergy,
			Max:     plan.MaxEnergy,
		},
	}, nil
}
