package llm

import (
	"errors"
	"fmt"
)

var ErrUnknownFunctionType = errors.New("llm: unknown function type")

// FunctionType is the logical role of a pipeline pass.
type FunctionType string

const (
	FunctionCreative  FunctionType = "creative"
	FunctionStructure FunctionType = "structure"
	FunctionSchema    FunctionType = "schema"
)

// Provider names.
const (
	ProviderOpenAI = "openai"
	ProviderGemini = "gemini"
	ProviderMock   = "mock"
)

// ModelConfig is the resolved configuration for one function type.
type ModelConfig struct {
	Provider        string
	Model           string
	Temperature     float32
	MaxOutputTokens int
	StrictJSON      bool
	// MaxCost caps the energy a single call may report; nil means no cap.
	MaxCost *int64
}

func (m ModelConfig) CallConfig() CallConfig {
	return CallConfig{
		Model:           m.Model,
		Temperature:     m.Temperature,
		MaxOutputTokens: m.MaxOutputTokens,
		StrictJSON:      m.StrictJSON,
	}
}

// DefaultRegistry is the production model registry.
func DefaultRegistry() map[FunctionType]ModelConfig {
	return map[FunctionType]ModelConfig{
		FunctionCreative: {
			Provider:        ProviderOpenAI,
			Model:           "gpt-4o",
			Temperature:     0.9,
			MaxOutputTokens: 1500,
			MaxCost:         int64Ptr(40),
		},
		FunctionStructure: {
			Provider:        ProviderGemini,
			Model:           "gemini-1.5-flash",
			Temperature:     0.2,
			MaxOutputTokens: 2048,
			StrictJSON:      true,
		},
		FunctionSchema: {
			Provider:        ProviderOpenAI,
			Model:           "gpt-4o-mini",
			Temperature:     0,
			MaxOutputTokens: 1024,
			StrictJSON:      true,
			MaxCost:         int64Ptr(20),
		},
	}
}

// ModelSelector is a read-only lookup; it is safe for concurrent use because
// the registry is never written after construction.
type ModelSelector struct {
	registry map[FunctionType]ModelConfig
}

// NewModelSelector copies registry so later writes by the caller cannot leak in.
func NewModelSelector(registry map[FunctionType]ModelConfig) *ModelSelector {
	m := make(map[FunctionType]ModelConfig, len(registry))
	for k, v := range registry {
		m[k] = v
	}
	return &ModelSelector{registry: m}
}

func (s *ModelSelector) Resolve(ft FunctionType) (ModelConfig, error) {
	cfg, ok := s.registry[ft]
	if !ok {
		return ModelConfig{}, fmt.Errorf("%w: %q", ErrUnknownFunctionType, ft)
	}
	return cfg, nil
}

func int64Ptr(v int64) *int64 { return &v }
