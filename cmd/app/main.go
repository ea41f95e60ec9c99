package main

import (
	"context"
	"errors"
	"net"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/fx"
	"go.uber.org/zap"

	"habitly/cmd/fx/ai_fx"
	"habitly/cmd/fx/config_fx"
	"habitly/cmd/fx/controllers_fx"
	"habitly/cmd/fx/db_fx"
	"habitly/cmd/fx/energy_fx"
	"habitly/cmd/fx/habit_series_fx"
	"habitly/cmd/fx/logger_fx"
	"habitly/cmd/fx/memcache_fx"
	"habitly/cmd/fx/plan_fx"
	"habitly/internal/api/controllers"
	"habitly/internal/config"
	"habitly/pkg/middleware"
)

func main() {
	app := fx.New(
		config_fx.Module,
		logger_fx.Module,
		db_fx.Module,
		plan_fx.Module,
		memcache_fx.Module,
		ai_fx.Module,
		habit_series_fx.Module,
		energy_fx.Module,
		controllers_fx.Module,

		fx.Provide(ProvideRouter),
		fx.Invoke(StartServer),
	)

	app.Run()
}

func StartServer(lc fx.Lifecycle, cfg *config.Config, engine *gin.Engine, logger *zap.Logger) {
	srv := &http.Server{
		Addr:    ":" + cfg.HTTP.Port,
		Handler: engine,
	}

	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			ln, err := net.Listen("tcp", srv.Addr)
			if err != nil {
				return err
			}
			logger.Info("Starting HTTP server", zap.String("addr", srv.Addr))
			go func() {
				if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
					logger.Fatal("HTTP server stopped unexpectedly", zap.Error(err))
				}
			}()
			return nil
		},
		OnStop: func(ctx context.Context) error {
			logger.Info("Stopping HTTP server")
			shutdownCtx, cancel := context.WithTimeout(ctx, cfg.HTTP.ShutdownTimeout)
			defer cancel()
			return srv.Shutdown(shutdownCtx)
		},
	})
}

func ProvideRouter(
	cfg *config.Config,
	logger *zap.Logger,
	seriesController *controllers.HabitSeriesController,
	energyController *controllers.EnergyController,
	planController *controllers.PlanController) *gin.Engine {

	if cfg.Logs.Style != "console" {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(middleware.TraceIDMiddleware())
	r.Use(middleware.RequestLogger(logger.Named("http")))
	r.Use(middleware.CORSMiddleware())

	RegisterRoutes(r, []byte(cfg.Auth.JWTSecret), seriesController, energyController, planController)

	return r
}

func RegisterRoutes(r *gin.Engine,
	jwtSecret []byte,
	seriesController *controllers.HabitSeriesController,
	energyController *controllers.EnergyController,
	planController *controllers.PlanController) {

	r.GET("/healthz", controllers.Health)
	r.GET("/plans", planController.ListPlans)

	auth := middleware.JWTAuthMiddleware(jwtSecret)

	seriesGroup := r.Group("/habit-series", auth)
	seriesGroup.POST("", seriesController.CreateHabitSeries)
	seriesGroup.GET("", seriesController.ListHabitSeries)
	seriesGroup.GET("/:id", seriesController.GetHabitSeries)
	seriesGroup.DELETE("/:id", seriesController.DeleteHabitSeries)

	energyGroup := r.Group("/energy", auth)
	energyGroup.GET("", energyController.GetEnergy)
	energyGroup.GET("/transactions", energyController.ListTransactions)
}
