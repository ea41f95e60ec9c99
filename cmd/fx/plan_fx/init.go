package plan_fx

import (
	"go.uber.org/fx"

	"habitly/internal/repositories"
	"habitly/internal/services"
)

var Module = fx.Provide(
	repositories.NewPlanRepository,
	services.NewPlanService,
)
