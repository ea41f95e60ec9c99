package db_fx

import (
	"context"
	"fmt"

	"go.uber.org/fx"
	"go.uber.org/zap"

	"habitly/internal/config"
	"habitly/internal/infra"
	"habitly/internal/models/db_models"
	"habitly/internal/repositories"
)

var Module = fx.Options(
	fx.Provide(provideStores),
	fx.Invoke(seedUsers),
)

// Stores groups the persistence ports so both drivers satisfy the same graph.
type Stores struct {
	fx.Out

	Users  repositories.UserRepository
	Series repositories.HabitSeriesRepository
	Ledger repositories.QuotaLedger
}

func provideStores(lc fx.Lifecycle, cfg *config.Config, logger *zap.Logger) (Stores, error) {
	switch cfg.Store.Driver {
	case "memory":
		logger.Warn("using in-memory store, data is lost on restart")
		store := repositories.NewMemoryStore()
		return Stores{Users: store, Series: store, Ledger: store}, nil

	case "postgres":
		db, err := infra.InitPostgresql(cfg.Store.PostgresURL)
		if err != nil {
			return Stores{}, err
		}
		if cfg.Store.AutoMigrate {
			if err := infra.Migrate(db); err != nil {
				return Stores{}, err
			}
		}
		lc.Append(fx.Hook{
			OnStop: func(ctx context.Context) error {
				infra.ClosePostgresql(db, logger)
				return nil
			},
		})
		return Stores{
			Users:  repositories.NewUserRepository(db),
			Series: repositories.NewHabitSeriesRepository(db),
			Ledger: repositories.NewQuotaLedger(db),
		}, nil

	default:
		return Stores{}, fmt.Errorf("unsupported store driver %q", cfg.Store.Driver)
	}
}

// seedUsers makes sure the configured users exist with a full freemium balance.
func seedUsers(
	lc fx.Lifecycle,
	cfg *config.Config,
	users repositories.UserRepository,
	plans repositories.IPlanRepository,
	logger *zap.Logger,
) {
	if len(cfg.Store.SeedUserIDs) == 0 {
		return
	}

	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			plan, err := plans.GetPlanInfoById(ctx, db_models.PlanFreemium)
			if err != nil || plan == nil {
				return fmt.Errorf("seed users: freemium plan missing: %v", err)
			}
			for _, id := range cfg.Store.SeedUserIDs {
				if err := seedUser(ctx, users, plan, id); err != nil {
					return err
				}
				logger.Info("seed user ready", zap.String("user_id", id))
			}
			return nil
		},
	})
}

func seedUser(ctx context.Context, users repositories.UserRepository, plan *db_models.Plan, id string) error {
	existing, err := users.FindById(ctx, id)
	if err != nil {
		return fmt.Errorf("seed user %s: %w", id, err)
	}
	if existing != nil {
		return nil
	}

	user, err := newSeedUser(id, plan)
	if err != nil {
		return err
	}
	if err := users.Insert(ctx, user); err != nil {
		return fmt.Errorf("seed user %s: %w", id, err)
	}
	return nil
}
