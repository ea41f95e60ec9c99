package response_models

type PlanResponse struct {
	ID                   string   `json:"id"`
	Name                 string   `json:"name"`
	MaxEnergy            int64    `json:"max_energy"`
	DailyRecharge        int64    `json:"daily_recharge"`
	Features             []string `json:"features"`
	MaxActiveSeries      int      `json:"max_active_series"`
	MaxPeriodicSummaries int      `json:"max_periodic_summaries"`
}
