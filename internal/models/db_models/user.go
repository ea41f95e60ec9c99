package db_models

// Energy is the user's metered AI resource. 0 <= Current <= Max.
type Energy struct {
	Current          int64 `gorm:"not null;default:0"`
	Max              int64 `gorm:"not null;default:0"`
	LastRechargeAt   int64 `gorm:"not null;default:0"`
	LifetimeConsumed int64 `gorm:"not null;default:0"`
}

// Limits holds the used counters; maxima come from the effective plan.
type Limits struct {
	ActiveSeriesCount    int `gorm:"not null;default:0"`
	PeriodicSummaryCount int `gorm:"not null;default:0"`
}

type User struct {
	BaseModel
	Email         string `gorm:"uniqueIndex"`
	DisplayName   string
	Plan          PlanID `gorm:"type:varchar(32);not null;default:'freemium'"`
	TrialStartsAt *int64
	TrialEndsAt   *int64

	Limits Limits `gorm:"embedded"`
	Energy Energy `gorm:"embedded;embeddedPrefix:energy_"`

	HabitSeries []HabitSeries
}

// TrialActive reports whether now (unix seconds) falls inside the trial window.
func (u *User) TrialActive(now int64) bool {
	if u.TrialStartsAt == nil || u.TrialEndsAt == nil {
		return false
	}
	return *u.TrialStartsAt <= now && now < *u.TrialEndsAt
}
