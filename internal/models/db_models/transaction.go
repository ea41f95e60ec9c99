package db_models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// Ledger action labels.
const (
	LedgerActionHabitSeriesCreate = "habit_series.create"
	LedgerActionDailyRecharge     = "energy.daily_recharge"
)

// QuotaTransaction is an append-only audit entry, one per energy mutation.
type QuotaTransaction struct {
	ID            uuid.UUID `gorm:"type:uuid;primaryKey"`
	UserID        uuid.UUID `gorm:"type:uuid;index;not null"`
	CreatedAt     int64     `gorm:"not null;index"`
	Action        string    `gorm:"size:64;not null"`
	Delta         int64     `gorm:"not null"`
	BalanceBefore int64     `gorm:"not null"`
	BalanceAfter  int64     `gorm:"not null"`

	// Per-pass costs, series id and similar context.
	Metadata datatypes.JSON `gorm:"type:jsonb;default:'{}'"`
}

func (q *QuotaTransaction) BeforeCreate(tx *gorm.DB) error {
	if q.ID == uuid.Nil {
		q.ID = uuid.New()
	}
	if q.CreatedAt == 0 {
		q.CreatedAt = time.Now().Unix()
	}
	return nil
}
