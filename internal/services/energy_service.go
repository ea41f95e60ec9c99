package services

import (
	"context"
	"encoding/json"
	"errors"

	"go.uber.org/zap"

	"habitly/internal/models/db_models"
	"habitly/internal/models/response_models"
	"habitly/internal/repositories"
	"habitly/pkg/utils"
)

const maxLedgerPage = 100

type EnergyServiceInterface interface {
	// GetEnergy returns the balance after applying today's recharge, if due.
	GetEnergy(ctx context.Context, userID string) (*response_models.EnergyResponse, error)
	ListTransactions(ctx context.Context, userID string, limit int) ([]response_models.EnergyTransactionResponse, error)
}

type EnergyService struct {
	userRepo    repositories.UserRepository
	ledger      repositories.QuotaLedger
	planService PlanServiceInterface
	clock       utils.Clock
	logger      *zap.Logger
}

func NewEnergyService(
	userRepo repositories.UserRepository,
	ledger repositories.QuotaLedger,
	planService PlanServiceInterface,
	clock utils.Clock,
	logger *zap.Logger,
) EnergyServiceInterface {
	if clock == nil {
		clock = utils.SystemClock
	}
	return &EnergyService{
		userRepo:    userRepo,
		ledger:      ledger,
		planService: planService,
		clock:       clock,
		logger:      logger,
	}
}

func (e *EnergyService) GetEnergy(ctx context.Context, userID string) (*response_models.EnergyResponse, error) {
	user, err := findUser(ctx, e.userRepo, userID)
	if err != nil {
		return nil, err
	}

	now := e.clock().Unix()
	planID := e.planService.EffectivePlan(user, now)
	plan, err := e.planService.GetPlanInfoById(ctx, planID)
	if err != nil {
		if errors.Is(err, utils.ErrNotFound) {
			return nil, utils.NewDataAccessFailure("resolve effective plan", err)
		}
		return nil, err
	}

	res, err := rechargeIfDue(ctx, e.ledger, user, plan, now, e.logger)
	if err != nil {
		return nil, err
	}

	var recharged int64
	if res.Recharged && res.Transacted != nil {
		recharged = res.Transacted.Delta
	}

	return &response_models.EnergyResponse{
		Plan:             string(planID),
		Current:          res.Energy.Current,
		Max:              res.Energy.Max,
		LifetimeConsumed: res.Energy.LifetimeConsumed,
		LastRechargeAt:   utils.FormatRFC3339(utils.FromUnixSeconds(res.Energy.LastRechargeAt)),
		RechargedNow:     recharged,
	}, nil
}

func (e *EnergyService) ListTransactions(ctx context.Context, userID string, limit int) ([]response_models.EnergyTransactionResponse, error) {
	if limit <= 0 || limit > maxLedgerPage {
		limit = maxLedgerPage
	}

	txs, err := e.ledger.ListTransactions(ctx, userID, limit)
	if err != nil {
		return nil, utils.NewDataAccessFailure("list energy transactions", err)
	}

	result := make([]response_models.EnergyTransactionResponse, 0, len(txs))
	for _, t := range txs {
		result = append(result, toEnergyTransactionResponse(t))
	}
	return result, nil
}

// rechargeIfDue reads the balance under the ledger's lock, adding the plan's
// daily recharge first when the user has not had one this UTC day.
func rechargeIfDue(
	ctx context.Context,
	ledger repositories.QuotaLedger,
	user *db_models.User,
	plan *db_models.Plan,
	now int64,
	logger *zap.Logger,
) (repositories.RechargeResult, error) {
	res, err := ledger.ApplyDailyRecharge(ctx, repositories.RechargeRequest{
		UserID: user.ID,
		Amount: plan.DailyRecharge,
		Max:    plan.MaxEnergy,
		Plan:   plan.ID,
		Now:    now,
	})
	if err != nil {
		return repositories.RechargeResult{}, err
	}

	if res.Recharged && res.Transacted != nil {
		logger.Info("daily energy recharge applied",
			zap.String("user_id", user.ID.String()),
			zap.String("plan", string(plan.ID)),
			zap.Int64("delta", res.Transacted.Delta),
			zap.Int64("balance_after", res.Energy.Current))
	}
	return res, nil
}

func toEnergyTransactionResponse(t db_models.QuotaTransaction) response_models.EnergyTransactionResponse {
	var meta map[string]any
	if len(t.Metadata) > 0 {
		_ = json.Unmarshal(t.Metadata, &meta)
	}
	return response_models.EnergyTransactionResponse{
		ID:            t.ID.String(),
		Action:        t.Action,
		Delta:         t.Delta,
		BalanceBefore: t.BalanceBefore,
		BalanceAfter:  t.BalanceAfter,
		CreatedAt:     utils.FormatRFC3339(utils.FromUnixSeconds(t.CreatedAt)),
		Metadata:      meta,
	}
}
