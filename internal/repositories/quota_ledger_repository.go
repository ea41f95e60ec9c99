package repositories

import (
	"context"
	"encoding/json"
	"errors"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"habitly/internal/models/db_models"
	"habitly/pkg/utils"
)

type RechargeRequest struct {
	UserID uuid.UUID
	// Amount is added once per UTC day, capped at Max.
	Amount int64
	Max    int64
	Plan   db_models.PlanID
	Now    int64
}

type RechargeResult struct {
	Energy     db_models.Energy
	Recharged  bool
	Transacted *db_models.QuotaTransaction
}

type QuotaLedger interface {
	// ApplyDailyRecharge locks the user row and returns its balance, adding
	// the day's recharge first when one is due.
	ApplyDailyRecharge(ctx context.Context, req RechargeRequest) (RechargeResult, error)
	ListTransactions(ctx context.Context, userID string, limit int) ([]db_models.QuotaTransaction, error)
}

type quotaLedger struct {
	db *gorm.DB
}

func NewQuotaLedger(db *gorm.DB) QuotaLedger {
	return &quotaLedger{db: db}
}

func (q *quotaLedger) ApplyDailyRecharge(ctx context.Context, req RechargeRequest) (RechargeResult, error) {
	var out RechargeResult

	err := q.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var user db_models.User
		if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			First(&user, "id = ?", req.UserID).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return utils.NewDataAccessFailure("daily recharge: user not found", err)
			}
			return err
		}

		next, entry, ok := planRecharge(user.ID, user.Energy, req)
		if !ok {
			out = RechargeResult{Energy: user.Energy}
			return nil
		}

		if err := tx.Model(&db_models.User{}).
			Where("id = ?", user.ID).
			Updates(map[string]any{
				"energy_current":          next.Current,
				"energy_max":              next.Max,
				"energy_last_recharge_at": next.LastRechargeAt,
			}).Error; err != nil {
			return err
		}
		if err := tx.Create(entry).Error; err != nil {
			return err
		}

		out = RechargeResult{Energy: next, Recharged: true, Transacted: entry}
		return nil
	})
	if err != nil {
		return RechargeResult{}, classifyCommitError("daily recharge", err)
	}

	return out, nil
}

func (q *quotaLedger) ListTransactions(ctx context.Context, userID string, limit int) ([]db_models.QuotaTransaction, error) {
	var txs []db_models.QuotaTransaction
	err := q.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("created_at DESC").
		Limit(limit).
		Find(&txs).Error

	if err != nil {
		return nil, err
	}

	return txs, nil
}

// planRecharge computes the balance after a daily recharge and its ledger
// entry. ok is false when the user was already recharged on req.Now's UTC day.
func planRecharge(userID uuid.UUID, current db_models.Energy, req RechargeRequest) (db_models.Energy, *db_models.QuotaTransaction, bool) {
	if current.LastRechargeAt != 0 && utils.SameDayUTC(current.LastRechargeAt, req.Now) {
		return current, nil, false
	}

	next := current
	next.Max = req.Max
	next.LastRechargeAt = req.Now
	next.Current = current.Current + req.Amount
	// Capping also applies after a plan downgrade, so the delta can be negative.
	if next.Current > next.Max {
		next.Current = next.Max
	}

	meta, err := json.Marshal(map[string]any{"plan": req.Plan, "amount": req.Amount})
	if err != nil {
		meta = []byte("{}")
	}

	entry := &db_models.QuotaTransaction{
		UserID:        userID,
		CreatedAt:     req.Now,
		Action:        db_models.LedgerActionDailyRecharge,
		Delta:         next.Current - current.Current,
		BalanceBefore: current.Current,
		BalanceAfter:  next.Current,
		Metadata:      datatypes.JSON(meta),
	}
	return next, entry, true
}
