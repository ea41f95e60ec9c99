package habit_series_fx

import (
	"go.uber.org/fx"
	"go.uber.org/zap"

	"habitly/internal/config"
	"habitly/internal/repositories"
	"habitly/internal/services"
	"habitly/pkg/utils"
)

var Module = fx.Provide(provideHabitSeriesService)

func provideHabitSeriesService(
	cfg *config.Config,
	userRepo repositories.UserRepository,
	seriesRepo repositories.HabitSeriesRepository,
	ledger repositories.QuotaLedger,
	planService services.PlanServiceInterface,
	pipeline services.PipelineServiceInterface,
	sanitizer services.SanitizerInterface,
	logger *zap.Logger,
) services.HabitSeriesServiceInterface {
	return services.NewHabitSeriesService(
		userRepo,
		seriesRepo,
		ledger,
		planService,
		pipeline,
		sanitizer,
		utils.SystemClock,
		cfg.Store.CommitTimeout,
		logger.Named("habit_series"),
	)
}
