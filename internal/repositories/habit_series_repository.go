package repositories

import (
	"context"
	"encoding/json"
	"errors"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"habitly/internal/infra"
	"habitly/internal/models/db_models"
	"habitly/pkg/utils"
)

// CommitRequest is everything the atomic commit unit needs. Series must
// carry its actions; ids and timestamps are filled in on insert.
type CommitRequest struct {
	UserID          uuid.UUID
	Series          *db_models.HabitSeries
	Cost            int64
	MaxActiveSeries int
	PassCosts       map[string]int64
	Now             int64
}

type CommitResult struct {
	SeriesID      uuid.UUID
	BalanceBefore int64
	BalanceAfter  int64
}

type HabitSeriesRepository interface {
	// CommitGenerated persists the series, debits the energy balance, bumps
	// lifetime consumption and the active-series counter, and appends a
	// ledger entry. Either all of it happens or none of it does.
	CommitGenerated(ctx context.Context, req CommitRequest) (CommitResult, error)
	FindByIdForUser(ctx context.Context, userID, seriesID string) (*db_models.HabitSeries, error)
	ListByUser(ctx context.Context, userID string, page, pageSize int) ([]db_models.HabitSeries, int64, error)
	// DeleteForUser returns false when the series does not exist for the user.
	DeleteForUser(ctx context.Context, userID, seriesID string) (bool, error)
}

type habitSeriesRepository struct {
	db *gorm.DB
}

func NewHabitSeriesRepository(db *gorm.DB) HabitSeriesRepository {
	return &habitSeriesRepository{db: db}
}

func (r *habitSeriesRepository) CommitGenerated(ctx context.Context, req CommitRequest) (CommitResult, error) {
	var out CommitResult

	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var user db_models.User
		if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			First(&user, "id = ?", req.UserID).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return utils.NewDataAccessFailure("commit habit series: user not found", err)
			}
			return err
		}

		if err := checkCommitPreconditions(&user, req); err != nil {
			return err
		}

		series := req.Series
		series.UserID = user.ID
		if series.LastActivityAt == 0 {
			series.LastActivityAt = req.Now
		}
		for i := range series.Actions {
			series.Actions[i].Position = i
		}
		if err := tx.Create(series).Error; err != nil {
			return err
		}

		res := tx.Model(&db_models.User{}).
			Where("id = ?", user.ID).
			Updates(map[string]any{
				"energy_current":           gorm.Expr("energy_current - ?", req.Cost),
				"energy_lifetime_consumed": gorm.Expr("energy_lifetime_consumed + ?", req.Cost),
				"active_series_count":      gorm.Expr("active_series_count + 1"),
			})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected != 1 {
			return utils.NewDataAccessFailure("commit habit series: user row vanished", gorm.ErrRecordNotFound)
		}

		entry := db_models.QuotaTransaction{
			UserID:        user.ID,
			CreatedAt:     req.Now,
			Action:        db_models.LedgerActionHabitSeriesCreate,
			Delta:         -req.Cost,
			BalanceBefore: user.Energy.Current,
			BalanceAfter:  user.Energy.Current - req.Cost,
			Metadata:      commitMetadata(series.ID, req.PassCosts),
		}
		if err := tx.Create(&entry).Error; err != nil {
			return err
		}

		out = CommitResult{
			SeriesID:      series.ID,
			BalanceBefore: entry.BalanceBefore,
			BalanceAfter:  entry.BalanceAfter,
		}
		return nil
	})
	if err != nil {
		return CommitResult{}, classifyCommitError("commit habit series", err)
	}

	return out, nil
}

// checkCommitPreconditions is the authoritative check made with the user
// row locked.
func checkCommitPreconditions(user *db_models.User, req CommitRequest) error {
	if req.Cost < 0 {
		return utils.NewValidationError("negative cost")
	}
	if user.Energy.Current < req.Cost {
		return utils.NewInsufficientResourceError(req.Cost, user.Energy.Current)
	}
	if req.MaxActiveSeries > 0 && user.Limits.ActiveSeriesCount >= req.MaxActiveSeries {
		return utils.NewLimitReachedError(user.Limits.ActiveSeriesCount, req.MaxActiveSeries)
	}
	return nil
}

func commitMetadata(seriesID uuid.UUID, passCosts map[string]int64) datatypes.JSON {
	raw, err := json.Marshal(map[string]any{
		"series_id":  seriesID.String(),
		"pass_costs": passCosts,
	})
	if err != nil {
		return datatypes.JSON("{}")
	}
	return datatypes.JSON(raw)
}

// classifyCommitError keeps domain errors raised inside the unit and turns
// everything else into a TransactionFailure.
func classifyCommitError(op string, err error) error {
	var coded *utils.CodedError
	if errors.As(err, &coded) {
		return err
	}
	if infra.IsContention(err) {
		return utils.NewTransactionFailure(op+": concurrent update", err)
	}
	return utils.NewTransactionFailure(op, err)
}

func (r *habitSeriesRepository) FindByIdForUser(ctx context.Context, userID, seriesID string) (*db_models.HabitSeries, error) {
	var series db_models.HabitSeries
	err := r.db.WithContext(ctx).
		Where("id = ? AND user_id = ?", seriesID, userID).
		Preload("Actions", func(db *gorm.DB) *gorm.DB {
			return db.Order("position ASC")
		}).
		First(&series).Error

	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}

	return &series, nil
}

func (r *habitSeriesRepository) ListByUser(ctx context.Context, userID string, page, pageSize int) ([]db_models.HabitSeries, int64, error) {
	var total int64
	if err := r.db.WithContext(ctx).
		Model(&db_models.HabitSeries{}).
		Where("user_id = ?", userID).
		Count(&total).Error; err != nil {
		return nil, 0, err
	}

	var series []db_models.HabitSeries
	err := r.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Preload("Actions", func(db *gorm.DB) *gorm.DB {
			return db.Order("position ASC")
		}).
		Order("created_at DESC").
		Offset((page - 1) * pageSize).
		Limit(pageSize).
		Find(&series).Error

	if err != nil {
		return nil, 0, err
	}

	return series, total, nil
}

func (r *habitSeriesRepository) DeleteForUser(ctx context.Context, userID, seriesID string) (bool, error) {
	deleted := false

	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var user db_models.User
		if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			First(&user, "id = ?", userID).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return nil
			}
			return err
		}

		res := tx.Where("id = ? AND user_id = ?", seriesID, userID).
			Delete(&db_models.HabitSeries{})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return nil
		}

		if err := tx.Where("habit_series_id = ?", seriesID).
			Delete(&db_models.HabitAction{}).Error; err != nil {
			return err
		}

		if err := tx.Model(&db_models.User{}).
			Where("id = ?", userID).
			Update("active_series_count", gorm.Expr("GREATEST(active_series_count - 1, 0)")).Error; err != nil {
			return err
		}

		deleted = true
		return nil
	})
	if err != nil {
		return false, classifyCommitError("delete habit series", err)
	}

	return deleted, nil
}
