package energy_fx

import (
	"go.uber.org/fx"
	"go.uber.org/zap"

	"habitly/internal/repositories"
	"habitly/internal/services"
	"habitly/pkg/utils"
)

var Module = fx.Provide(provideEnergyService)

func provideEnergyService(
	userRepo repositories.UserRepository,
	ledger repositories.QuotaLedger,
	planService services.PlanServiceInterface,
	logger *zap.Logger,
) services.EnergyServiceInterface {
	return services.NewEnergyService(userRepo, ledger, planService, utils.SystemClock, logger.Named("energy"))
}
