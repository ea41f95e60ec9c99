package response_models

type HabitActionResponse struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description"`
	Difficulty  string `json:"difficulty"`
	Score       int64  `json:"score"`
	Completed   bool   `json:"completed"`
}

type HabitSeriesResponse struct {
	ID             string                `json:"id"`
	Title          string                `json:"title"`
	Description    string                `json:"description"`
	Language       string                `json:"language,omitempty"`
	Actions        []HabitActionResponse `json:"actions"`
	Score          int64                 `json:"score"`
	Rank           string                `json:"rank"`
	CreatedAt      string                `json:"created_at"`
	UpdatedAt      string                `json:"updated_at"`
	LastActivityAt string                `json:"last_activity_at,omitempty"`
}

// CreateHabitSeriesResponse adds the energy settlement to the created series.
type CreateHabitSeriesResponse struct {
	Series        HabitSeriesResponse `json:"series"`
	EnergyCharged int64               `json:"energy_charged"`
	EnergyLeft    int64               `json:"energy_left"`
}

type HabitSeriesListResponse struct {
	Items    []HabitSeriesResponse `json:"items"`
	Page     int                   `json:"page"`
	PageSize int                   `json:"page_size"`
	Total    int64                 `json:"total"`
}
