package config_fx

import (
	"go.uber.org/fx"

	"habitly/internal/config"
)

var Module = fx.Provide(config.LoadConfig)
