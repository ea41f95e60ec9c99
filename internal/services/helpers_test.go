package services

import (
	"context"
	"encoding/json"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"habitly/internal/models/db_models"
	"habitly/internal/repositories"
	"habitly/pkg/llm"
	"habitly/pkg/llm/mock"
	"habitly/pkg/utils"
)

// Models of the test registry; mock gateways dispatch on them.
const (
	creativeModel  = "creative-model"
	structureModel = "structure-model"
	schemaModel    = "schema-model"
)

var testNow = time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)

func fixedClock(t time.Time) utils.Clock {
	return func() time.Time { return t }
}

func newTestSelector(maxCreativeCost *int64) *llm.ModelSelector {
	return llm.NewModelSelector(map[llm.FunctionType]llm.ModelConfig{
		llm.FunctionCreative:  {Provider: llm.ProviderMock, Model: creativeModel, Temperature: 0.9, MaxCost: maxCreativeCost},
		llm.FunctionStructure: {Provider: llm.ProviderMock, Model: structureModel, Temperature: 0.2, StrictJSON: true},
		llm.FunctionSchema:    {Provider: llm.ProviderMock, Model: schemaModel, StrictJSON: true},
	})
}

func seriesJSON(t *testing.T, mutate func(map[string]any)) string {
	t.Helper()
	obj := map[string]any{
		"title":       "Morning Momentum",
		"description": "Three small wins before nine.",
		"actions": []any{
			map[string]any{"name": "Hydrate", "description": "Drink a glass of water", "difficulty": "low"},
			map[string]any{"name": "Stretch", "description": "Five minutes of stretching", "difficulty": "Moderate"},
			map[string]any{"name": "Plan", "description": "Write the top three tasks", "difficulty": "hard"},
		},
	}
	if mutate != nil {
		mutate(obj)
	}
	raw, err := json.Marshal(obj)
	require.NoError(t, err)
	return string(raw)
}

// passScript is what each stage returns; costs are per stage.
type passScript struct {
	creative, structure, schema             string
	creativeCost, structureCost, schemaCost int64
}

func stageGateway(s passScript) *mock.Gateway {
	return mock.New(mock.WithResponseFunc(func(cfg llm.CallConfig, _ []llm.Message) (llm.Result, error) {
		switch cfg.Model {
		case creativeModel:
			return llm.Result{Content: s.creative, ResourceCost: s.creativeCost, TokensUsed: 100}, nil
		case structureModel:
			return llm.Result{Content: s.structure, ResourceCost: s.structureCost, TokensUsed: 100}, nil
		default:
			return llm.Result{Content: s.schema, ResourceCost: s.schemaCost, TokensUsed: 100}, nil
		}
	}))
}

func newTestPipeline(gw llm.Gateway, maxCreativeCost *int64) PipelineServiceInterface {
	return NewPipelineService(newTestSelector(maxCreativeCost), llm.NewGateways(gw), 3, 0, zap.NewNop())
}

func newTestPlanService(t *testing.T) PlanServiceInterface {
	t.Helper()
	repo, err := repositories.NewPlanRepository()
	require.NoError(t, err)
	return NewPlanService(repo)
}

func seedUser(t *testing.T, store *repositories.MemoryStore, plan db_models.PlanID, energy int64, mutate func(*db_models.User)) *db_models.User {
	t.Helper()
	u := &db_models.User{
		BaseModel: db_models.BaseModel{ID: uuid.New()},
		Email:     strings.ToLower(uuid.NewString()) + "@example.com",
		Plan:      plan,
		Energy: db_models.Energy{
			Current:        energy,
			Max:            1000,
			LastRechargeAt: testNow.Unix(),
		},
	}
	if mutate != nil {
		mutate(u)
	}
	require.NoError(t, store.Insert(context.Background(), u))
	return u
}

func balanceOf(t *testing.T, store *repositories.MemoryStore, id uuid.UUID) db_models.Energy {
	t.Helper()
	u, err := store.FindById(context.Background(), id.String())
	require.NoError(t, err)
	require.NotNil(t, u)
	return u.Energy
}

func requireCode(t *testing.T, err error, code string) *utils.CodedError {
	t.Helper()
	require.Error(t, err)
	var coded *utils.CodedError
	require.ErrorAs(t, err, &coded)
	require.Equal(t, code, coded.Code(), "error: %v", err)
	return coded
}
