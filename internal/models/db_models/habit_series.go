package db_models

import (
	"strings"

	"github.com/google/uuid"
)

type HabitSeries struct {
	BaseModel
	UserID         uuid.UUID `gorm:"type:uuid;index;not null"`
	Title          string    `gorm:"not null"`
	Description    string    `gorm:"not null"`
	Language       string    `gorm:"size:16"`
	Score          int64     `gorm:"not null;default:0"`
	LastActivityAt int64

	Actions []HabitAction `gorm:"foreignKey:HabitSeriesID;constraint:OnDelete:CASCADE"`
}

// Rank is derived from Score on read and never stored.
func (s *HabitSeries) Rank() Rank {
	return RankForScore(s.Score)
}

type HabitAction struct {
	BaseModel
	HabitSeriesID uuid.UUID  `gorm:"type:uuid;index;not null"`
	Position      int        `gorm:"not null"`
	Name          string     `gorm:"not null"`
	Description   string     `gorm:"not null"`
	Difficulty    Difficulty `gorm:"type:varchar(16);not null"`
	Score         int64      `gorm:"not null;default:0"`
	Completed     bool       `gorm:"not null;default:false"`
}

type Difficulty string

const (
	DifficultyLow    Difficulty = "low"
	DifficultyMedium Difficulty = "medium"
	DifficultyHigh   Difficulty = "high"
)

var difficultySynonyms = map[string]Difficulty{
	"medium":       DifficultyMedium,
	"moderate":     DifficultyMedium,
	"intermediate": DifficultyMedium,
	"mid":          DifficultyMedium,
	"normal":       DifficultyMedium,
	"media":        DifficultyMedium,
	"medio":        DifficultyMedium,
	"intermedio":   DifficultyMedium,
	"high":         DifficultyHigh,
	"hard":         DifficultyHigh,
	"difficult":    DifficultyHigh,
	"advanced":     DifficultyHigh,
	"challenging":  DifficultyHigh,
	"alta":         DifficultyHigh,
	"alto":         DifficultyHigh,
	"dificil":      DifficultyHigh,
	"difícil":      DifficultyHigh,
}

// NormalizeDifficulty maps free-form input onto the canonical enum.
// Medium and high synonyms are recognized case-insensitively; everything
// else, including unrecognized text, becomes DifficultyLow.
func NormalizeDifficulty(raw string) Difficulty {
	if d, ok := difficultySynonyms[strings.ToLower(strings.TrimSpace(raw))]; ok {
		return d
	}
	return DifficultyLow
}

type Rank string

const (
	RankBronze   Rank = "bronze"
	RankSilver   Rank = "silver"
	RankGold     Rank = "gold"
	RankPlatinum Rank = "platinum"
	RankDiamond  Rank = "diamond"
)

// rankThresholds is ordered from the highest minimum score down.
var rankThresholds = []struct {
	min  int64
	rank Rank
}{
	{1000, RankDiamond},
	{600, RankPlatinum},
	{300, RankGold},
	{100, RankSilver},
}

func RankForScore(score int64) Rank {
	for _, t := range rankThresholds {
		if score >= t.min {
			return t.rank
		}
	}
	return RankBronze
}
