package ai_fx

import (
	"context"
	"time"

	"go.uber.org/fx"
	"go.uber.org/zap"

	"habitly/internal/config"
	"habitly/internal/services"
	"habitly/pkg/llm"
)

const retryBackoff = 250 * time.Millisecond

var Module = fx.Provide(
	provideModelSelector,
	provideGateways,
	providePipelineService,
	services.NewSanitizer,
)

// provideModelSelector applies model overrides from configuration. In mock
// mode every function type is served by the local mock gateway.
func provideModelSelector(cfg *config.Config) *llm.ModelSelector {
	registry := llm.DefaultRegistry()

	overrides := map[llm.FunctionType]string{
		llm.FunctionCreative:  cfg.AI.CreativeModel,
		llm.FunctionStructure: cfg.AI.StructureModel,
		llm.FunctionSchema:    cfg.AI.SchemaModel,
	}
	for ft, model := range overrides {
		mc := registry[ft]
		if model != "" {
			mc.Model = model
		}
		if cfg.AI.Provider == "mock" {
			mc.Provider = llm.ProviderMock
		}
		registry[ft] = mc
	}

	return llm.NewModelSelector(registry)
}

func provideGateways(lc fx.Lifecycle, cfg *config.Config, logger *zap.Logger) (llm.Gateways, error) {
	if cfg.AI.Provider == "mock" {
		logger.Warn("AI_PROVIDER=mock, habit series are generated from canned responses")
		return llm.NewGateways(newLocalMockGateway()), nil
	}

	openaiOpts := []llm.Option{llm.WithTimeout(cfg.AI.PassTimeout)}
	if cfg.AI.OpenAIBaseURL != "" {
		openaiOpts = append(openaiOpts, llm.WithBaseURL(cfg.AI.OpenAIBaseURL))
	}
	openai := llm.NewOpenAIGateway(cfg.AI.OpenAIKey, openaiOpts...)

	gemini, err := llm.NewGeminiGateway(context.Background(), cfg.AI.GeminiKey, llm.WithTimeout(cfg.AI.PassTimeout))
	if err != nil {
		return nil, err
	}
	lc.Append(fx.Hook{
		OnStop: func(ctx context.Context) error {
			return gemini.Close()
		},
	})

	return llm.NewGateways(openai, gemini), nil
}

func providePipelineService(
	cfg *config.Config,
	selector *llm.ModelSelector,
	gateways llm.Gateways,
	logger *zap.Logger,
) services.PipelineServiceInterface {
	return services.NewPipelineService(selector, gateways, cfg.AI.PassAttempts, retryBackoff, logger.Named("pipeline"))
}
