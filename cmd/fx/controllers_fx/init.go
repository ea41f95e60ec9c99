package controllers_fx

import (
	"go.uber.org/fx"
	"go.uber.org/zap"

	"habitly/internal/api/controllers"
	"habitly/internal/config"
	"habitly/internal/services"
	mem "habitly/pkg/memcache"
)

var Module = fx.Options(
	fx.Provide(controllers.NewPlanController),
	fx.Provide(controllers.NewEnergyController),
	fx.Provide(provideHabitSeriesController))

func provideHabitSeriesController(
	cfg *config.Config,
	seriesService services.HabitSeriesServiceInterface,
	idempotency mem.IdempotencyStore,
	logger *zap.Logger,
) *controllers.HabitSeriesController {
	return controllers.NewHabitSeriesController(seriesService, idempotency, cfg.Idempotency.TTL, logger.Named("http"))
}
