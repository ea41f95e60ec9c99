package db_models

type PlanID string

const (
	PlanFreemium PlanID = "freemium"
	PlanTrial    PlanID = "trial"
	PlanPremium  PlanID = "premium"
)

// Feature keys checked against a plan's access list.
const (
	FeatureHabitSeries     = "habit_series"
	FeaturePeriodicSummary = "periodic_summary"
	FeatureAssistant       = "assistant"
)

// Plan is immutable configuration loaded from the plan catalog.
type Plan struct {
	ID                   PlanID   `yaml:"id"`
	Name                 string   `yaml:"name"`
	MaxEnergy            int64    `yaml:"max_energy"`
	DailyRecharge        int64    `yaml:"daily_recharge"`
	Features             []string `yaml:"features"`
	MaxActiveSeries      int      `yaml:"max_active_series"`
	MaxPeriodicSummaries int      `yaml:"max_periodic_summaries"`
}

func (p Plan) HasFeature(feature string) bool {
	for _, f := range p.Features {
		if f == feature {
			return true
		}
	}
	return false
}
