package request_models

// CreateHabitSeriesRequest carries the user's test answers. TestData values
// must be strings; anything else is rejected by the sanitizer.
type CreateHabitSeriesRequest struct {
	Language         string         `json:"language" binding:"required,max=16"`
	TestData         map[string]any `json:"test_data" binding:"required,min=1,max=50"`
	AssistantContext string         `json:"assistant_context" binding:"max=4000"`
}

type ListHabitSeriesQuery struct {
	Page     int `form:"page,default=1" binding:"min=1"`
	PageSize int `form:"page_size,default=20" binding:"min=1,max=100"`
}
