package services

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"habitly/internal/models/db_models"
	"habitly/internal/models/request_models"
	"habitly/internal/repositories"
	"habitly/pkg/llm"
	"habitly/pkg/llm/mock"
	"habitly/pkg/utils"
)

func newTestSeriesService(t *testing.T, store *repositories.MemoryStore, gw llm.Gateway) HabitSeriesServiceInterface {
	t.Helper()
	return NewHabitSeriesService(store, store, store, newTestPlanService(t), newTestPipeline(gw, nil),
		NewSanitizer(), fixedClock(testNow), time.Second, zap.NewNop())
}

func validRequest() request_models.CreateHabitSeriesRequest {
	return request_models.CreateHabitSeriesRequest{
		Language: "en",
		TestData: map[string]any{
			"goal":   "sleep better",
			"energy": "low in the afternoon",
		},
	}
}

// defaultScript costs 10 + 0 + 5.
func defaultScript(t *testing.T) passScript {
	final := seriesJSON(t, nil)
	return passScript{
		creative: "A gentle morning routine.", creativeCost: 10,
		structure: final,
		schema:    final, schemaCost: 5,
	}
}

func TestCreateHabitSeries_Success(t *testing.T) {
	store := repositories.NewMemoryStore()
	user := seedUser(t, store, db_models.PlanFreemium, 50, nil)
	gw := stageGateway(defaultScript(t))
	svc := newTestSeriesService(t, store, gw)

	resp, err := svc.CreateHabitSeries(context.Background(), user.ID.String(), validRequest())
	require.NoError(t, err)

	assert.Equal(t, int64(15), resp.EnergyCharged)
	assert.Equal(t, int64(35), resp.EnergyLeft)
	assert.NotEmpty(t, resp.Series.ID)
	assert.Equal(t, "Morning Momentum", resp.Series.Title)
	assert.Equal(t, "en", resp.Series.Language)
	assert.Equal(t, string(db_models.RankBronze), resp.Series.Rank)
	require.Len(t, resp.Series.Actions, 3)
	assert.Equal(t, "medium", resp.Series.Actions[1].Difficulty)
	for _, a := range resp.Series.Actions {
		assert.NotEmpty(t, a.ID)
	}

	energy := balanceOf(t, store, user.ID)
	assert.Equal(t, int64(35), energy.Current)
	assert.Equal(t, int64(15), energy.LifetimeConsumed)

	stored, err := store.FindById(context.Background(), user.ID.String())
	require.NoError(t, err)
	assert.Equal(t, 1, stored.Limits.ActiveSeriesCount)

	txs, err := store.ListTransactions(context.Background(), user.ID.String(), 10)
	require.NoError(t, err)
	require.Len(t, txs, 1)
	assert.Equal(t, db_models.LedgerActionHabitSeriesCreate, txs[0].Action)
	assert.Equal(t, int64(-15), txs[0].Delta)
	assert.Equal(t, int64(50), txs[0].BalanceBefore)
	assert.Equal(t, int64(35), txs[0].BalanceAfter)

	var meta struct {
		SeriesID  string           `json:"series_id"`
		PassCosts map[string]int64 `json:"pass_costs"`
	}
	require.NoError(t, json.Unmarshal(txs[0].Metadata, &meta))
	assert.Equal(t, resp.Series.ID, meta.SeriesID)
	assert.Equal(t, map[string]int64{"creative": 10, "structure": 0, "schema_enforce": 5}, meta.PassCosts)

	// Answers reach the creative prompt sorted by question.
	first := gw.Calls()[0].Messages
	assert.Contains(t, first[len(first)-1].Content, "- energy: low in the afternoon\n- goal: sleep better")
}

func TestCreateHabitSeries_AppliesDueRechargeBeforeBalanceCheck(t *testing.T) {
	store := repositories.NewMemoryStore()
	user := seedUser(t, store, db_models.PlanFreemium, 0, func(u *db_models.User) {
		u.Energy.LastRechargeAt = testNow.Add(-30 * time.Hour).Unix()
	})
	script := defaultScript(t)
	script.creativeCost = 5
	script.schemaCost = 3
	svc := newTestSeriesService(t, store, stageGateway(script))

	resp, err := svc.CreateHabitSeries(context.Background(), user.ID.String(), validRequest())
	require.NoError(t, err)
	assert.Equal(t, int64(8), resp.EnergyCharged)
	assert.Equal(t, int64(2), resp.EnergyLeft)

	energy := balanceOf(t, store, user.ID)
	assert.Equal(t, int64(2), energy.Current)
	assert.Equal(t, testNow.Unix(), energy.LastRechargeAt)

	txs, err := store.ListTransactions(context.Background(), user.ID.String(), 10)
	require.NoError(t, err)
	deltas := map[string]int64{}
	for _, tx := range txs {
		deltas[tx.Action] = tx.Delta
	}
	assert.Equal(t, map[string]int64{
		db_models.LedgerActionDailyRecharge:     10,
		db_models.LedgerActionHabitSeriesCreate: -8,
	}, deltas)
}

func TestCreateHabitSeries_NoRechargeDueKeepsEmptyBalanceDenied(t *testing.T) {
	store := repositories.NewMemoryStore()
	user := seedUser(t, store, db_models.PlanFreemium, 0, nil)
	gw := stageGateway(defaultScript(t))
	svc := newTestSeriesService(t, store, gw)

	_, err := svc.CreateHabitSeries(context.Background(), user.ID.String(), validRequest())
	coded := requireCode(t, err, "INSUFFICIENT_RESOURCE")
	assert.Equal(t, int64(1), coded.Meta["required"])
	assert.Equal(t, int64(0), coded.Meta["available"])
	assert.Zero(t, gw.CallCount())

	txs, _ := store.ListTransactions(context.Background(), user.ID.String(), 10)
	assert.Empty(t, txs)
}

func TestCreateHabitSeries_InvalidOutputChargesNothing(t *testing.T) {
	store := repositories.NewMemoryStore()
	user := seedUser(t, store, db_models.PlanFreemium, 50, nil)
	script := defaultScript(t)
	script.schema = seriesJSON(t, func(m map[string]any) { delete(m, "description") })
	svc := newTestSeriesService(t, store, stageGateway(script))

	resp, err := svc.CreateHabitSeries(context.Background(), user.ID.String(), validRequest())
	assert.Nil(t, resp)
	coded := requireCode(t, err, "AI_OUTPUT_INVALID")
	assert.Equal(t, []string{"description: is required"}, coded.Meta["violations"])

	assert.Equal(t, int64(50), balanceOf(t, store, user.ID).Current)
	assert.Equal(t, 0, store.SeriesCount())
	txs, _ := store.ListTransactions(context.Background(), user.ID.String(), 10)
	assert.Empty(t, txs)
}

func TestCreateHabitSeries_InsufficientEnergyAtCommit(t *testing.T) {
	store := repositories.NewMemoryStore()
	user := seedUser(t, store, db_models.PlanFreemium, 3, nil)
	script := defaultScript(t)
	script.structureCost = 5
	script.schemaCost = 5
	svc := newTestSeriesService(t, store, stageGateway(script))

	_, err := svc.CreateHabitSeries(context.Background(), user.ID.String(), validRequest())
	coded := requireCode(t, err, "INSUFFICIENT_RESOURCE")
	assert.Equal(t, int64(20), coded.Meta["required"])
	assert.Equal(t, int64(3), coded.Meta["available"])

	assert.Equal(t, int64(3), balanceOf(t, store, user.ID).Current)
	assert.Equal(t, 0, store.SeriesCount())
}

func TestCreateHabitSeries_PipelineFailureChargesNothing(t *testing.T) {
	store := repositories.NewMemoryStore()
	user := seedUser(t, store, db_models.PlanFreemium, 50, nil)
	gw := mock.New(mock.WithSteps(
		mock.Step{Result: llm.Result{Content: "creative", ResourceCost: 10}},
		mock.Step{Result: llm.Result{Content: "{}"}},
		mock.Step{Err: &llm.GatewayError{Kind: llm.ErrTemporarilyUnavailable, Err: errors.New("timeout")}},
	))
	svc := newTestSeriesService(t, store, gw)

	_, err := svc.CreateHabitSeries(context.Background(), user.ID.String(), validRequest())
	requireCode(t, err, "AI_PROVIDER_UNAVAILABLE")

	energy := balanceOf(t, store, user.ID)
	assert.Equal(t, int64(50), energy.Current)
	assert.Equal(t, int64(0), energy.LifetimeConsumed)
	assert.Equal(t, 0, store.SeriesCount())
}

func TestCreateHabitSeries_CommitFaultLeavesNoTrace(t *testing.T) {
	stages := []string{
		repositories.StageBalanceChecked,
		repositories.StageSeriesInserted,
		repositories.StageBalanceDebited,
		repositories.StageLedgerAppended,
	}

	for _, stage := range stages {
		t.Run(stage, func(t *testing.T) {
			store := repositories.NewMemoryStore()
			user := seedUser(t, store, db_models.PlanFreemium, 50, nil)
			store.SetFault(func(s string) error {
				if s == stage {
					return errors.New("storage went away")
				}
				return nil
			})
			svc := newTestSeriesService(t, store, stageGateway(defaultScript(t)))

			_, err := svc.CreateHabitSeries(context.Background(), user.ID.String(), validRequest())
			requireCode(t, err, "TRANSACTION_FAILURE")

			energy := balanceOf(t, store, user.ID)
			assert.Equal(t, int64(50), energy.Current)
			assert.Equal(t, int64(0), energy.LifetimeConsumed)
			assert.Equal(t, 0, store.SeriesCount())

			stored, err := store.FindById(context.Background(), user.ID.String())
			require.NoError(t, err)
			assert.Equal(t, 0, stored.Limits.ActiveSeriesCount)

			txs, _ := store.ListTransactions(context.Background(), user.ID.String(), 10)
			assert.Empty(t, txs)
		})
	}
}

func TestCreateHabitSeries_PreflightMakesNoAICalls(t *testing.T) {
	noHabits := []byte(`
plans:
  - id: freemium
    name: Freemium
    max_energy: 50
    daily_recharge: 10
    features: []
    max_active_series: 1
`)

	tests := []struct {
		name    string
		plans   []byte
		userID  func(*db_models.User) string
		mutate  func(*db_models.User)
		request func() request_models.CreateHabitSeriesRequest
		code    string
		reason  string
	}{
		{
			name:   "unknown user",
			userID: func(*db_models.User) string { return uuid.NewString() },
			code:   "USER_NOT_FOUND",
		},
		{
			name:   "malformed user id",
			userID: func(*db_models.User) string { return "not-a-uuid" },
			code:   "USER_NOT_FOUND",
		},
		{
			name:   "feature not in plan",
			plans:  noHabits,
			code:   "AUTHORIZATION_ERROR",
			reason: utils.ReasonFeatureNotInPlan,
		},
		{
			name:   "active series limit",
			mutate: func(u *db_models.User) { u.Limits.ActiveSeriesCount = 1 },
			code:   "AUTHORIZATION_ERROR",
			reason: utils.ReasonActiveSeriesLimit,
		},
		{
			name:   "empty balance",
			mutate: func(u *db_models.User) { u.Energy.Current = 0 },
			code:   "INSUFFICIENT_RESOURCE",
		},
		{
			name: "non text answer",
			request: func() request_models.CreateHabitSeriesRequest {
				r := validRequest()
				r.TestData["hours"] = 7
				return r
			},
			code: "VALIDATION_ERROR",
		},
		{
			name: "blank language",
			request: func() request_models.CreateHabitSeriesRequest {
				r := validRequest()
				r.Language = "  "
				return r
			},
			code: "VALIDATION_ERROR",
		},
		{
			name: "no answers",
			request: func() request_models.CreateHabitSeriesRequest {
				r := validRequest()
				r.TestData = map[string]any{}
				return r
			},
			code: "VALIDATION_ERROR",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store := repositories.NewMemoryStore()
			user := seedUser(t, store, db_models.PlanFreemium, 50, tt.mutate)
			gw := stageGateway(defaultScript(t))

			planService := newTestPlanService(t)
			if tt.plans != nil {
				repo, err := repositories.NewPlanRepositoryFromYAML(tt.plans)
				require.NoError(t, err)
				planService = NewPlanService(repo)
			}
			svc := NewHabitSeriesService(store, store, store, planService, newTestPipeline(gw, nil),
				NewSanitizer(), fixedClock(testNow), time.Second, zap.NewNop())

			userID := user.ID.String()
			if tt.userID != nil {
				userID = tt.userID(user)
			}
			req := validRequest()
			if tt.request != nil {
				req = tt.request()
			}

			_, err := svc.CreateHabitSeries(context.Background(), userID, req)
			require.Error(t, err)
			assert.Equal(t, tt.code, utils.CodeOf(err))
			if tt.reason != "" {
				var coded *utils.CodedError
				require.ErrorAs(t, err, &coded)
				assert.Equal(t, tt.reason, coded.Reason)
			}

			assert.Equal(t, int64(0), gw.CallCount())
			assert.Equal(t, user.Energy.Current, balanceOf(t, store, user.ID).Current)
		})
	}
}

func TestCreateHabitSeries_TrialWindowRaisesLimits(t *testing.T) {
	store := repositories.NewMemoryStore()
	start, end := testNow.Add(-24*time.Hour).Unix(), testNow.Add(24*time.Hour).Unix()
	user := seedUser(t, store, db_models.PlanFreemium, 50, func(u *db_models.User) {
		u.TrialStartsAt = &start
		u.TrialEndsAt = &end
		u.Limits.ActiveSeriesCount = 1
	})
	svc := newTestSeriesService(t, store, stageGateway(defaultScript(t)))

	_, err := svc.CreateHabitSeries(context.Background(), user.ID.String(), validRequest())
	require.NoError(t, err)
}

func TestCreateHabitSeries_ConcurrentRequestsNeverOverdraw(t *testing.T) {
	store := repositories.NewMemoryStore()
	user := seedUser(t, store, db_models.PlanPremium, 20, nil)
	svc := newTestSeriesService(t, store, stageGateway(defaultScript(t)))

	const workers = 8
	var (
		wg        sync.WaitGroup
		mu        sync.Mutex
		successes int
		codes     []string
	)
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := svc.CreateHabitSeries(context.Background(), user.ID.String(), validRequest())
			mu.Lock()
			defer mu.Unlock()
			if err == nil {
				successes++
				return
			}
			codes = append(codes, utils.CodeOf(err))
		}()
	}
	wg.Wait()

	assert.Equal(t, 1, successes)
	for _, c := range codes {
		assert.Equal(t, "INSUFFICIENT_RESOURCE", c)
	}

	energy := balanceOf(t, store, user.ID)
	assert.Equal(t, int64(5), energy.Current)
	assert.Equal(t, int64(15), energy.LifetimeConsumed)
	assert.Equal(t, 1, store.SeriesCount())
}

func TestCreateHabitSeries_ConcurrentRequestsRespectSeriesLimit(t *testing.T) {
	store := repositories.NewMemoryStore()
	user := seedUser(t, store, db_models.PlanFreemium, 50, nil)
	svc := newTestSeriesService(t, store, stageGateway(defaultScript(t)))

	var wg sync.WaitGroup
	errs := make([]error, 4)
	for i := range errs {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = svc.CreateHabitSeries(context.Background(), user.ID.String(), validRequest())
		}(i)
	}
	wg.Wait()

	var ok int
	for _, err := range errs {
		if err == nil {
			ok++
			continue
		}
		var coded *utils.CodedError
		require.ErrorAs(t, err, &coded)
		assert.Equal(t, utils.ReasonActiveSeriesLimit, coded.Reason)
	}
	assert.Equal(t, 1, ok)
	assert.Equal(t, int64(35), balanceOf(t, store, user.ID).Current)
}

func TestHabitSeries_GetListDelete(t *testing.T) {
	ctx := context.Background()
	store := repositories.NewMemoryStore()
	user := seedUser(t, store, db_models.PlanPremium, 100, nil)
	other := seedUser(t, store, db_models.PlanPremium, 100, nil)
	svc := newTestSeriesService(t, store, stageGateway(defaultScript(t)))

	created, err := svc.CreateHabitSeries(ctx, user.ID.String(), validRequest())
	require.NoError(t, err)
	_, err = svc.CreateHabitSeries(ctx, user.ID.String(), validRequest())
	require.NoError(t, err)

	got, err := svc.GetHabitSeries(ctx, user.ID.String(), created.Series.ID)
	require.NoError(t, err)
	assert.Equal(t, created.Series.Title, got.Title)
	assert.Len(t, got.Actions, 3)

	_, err = svc.GetHabitSeries(ctx, other.ID.String(), created.Series.ID)
	assert.ErrorIs(t, err, utils.ErrNotFound)

	_, err = svc.GetHabitSeries(ctx, user.ID.String(), "nope")
	assert.ErrorIs(t, err, utils.ErrValidation)

	list, err := svc.ListHabitSeries(ctx, user.ID.String(), 1, 1)
	require.NoError(t, err)
	assert.Equal(t, int64(2), list.Total)
	assert.Len(t, list.Items, 1)

	list, err = svc.ListHabitSeries(ctx, user.ID.String(), 0, 0)
	require.NoError(t, err)
	assert.Equal(t, 1, list.Page)
	assert.Equal(t, 20, list.PageSize)
	assert.Len(t, list.Items, 2)

	require.ErrorIs(t, svc.DeleteHabitSeries(ctx, other.ID.String(), created.Series.ID), utils.ErrNotFound)
	require.NoError(t, svc.DeleteHabitSeries(ctx, user.ID.String(), created.Series.ID))
	assert.ErrorIs(t, svc.DeleteHabitSeries(ctx, user.ID.String(), created.Series.ID), utils.ErrNotFound)

	stored, err := store.FindById(ctx, user.ID.String())
	require.NoError(t, err)
	assert.Equal(t, 1, stored.Limits.ActiveSeriesCount)
	// Deleting never refunds energy.
	assert.Equal(t, int64(70), stored.Energy.Current)
}
