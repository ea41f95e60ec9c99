package ai_fx

import (
	"habitly/pkg/llm"
	"habitly/pkg/llm/mock"
)

const cannedSeries = `{
  "title": "Morning Reset",
  "description": "A short routine to start the day with focus and energy.",
  "actions": [
    {"name": "Hydrate", "description": "Drink a glass of water right after waking up.", "difficulty": "low"},
    {"name": "Stretch", "description": "Five minutes of light stretching.", "difficulty": "medium"},
    {"name": "Plan", "description": "Write down the three most important tasks of the day.", "difficulty": "medium"},
    {"name": "Cold shower", "description": "Finish your shower with thirty seconds of cold water.", "difficulty": "high"}
  ]
}`

// newLocalMockGateway answers the creative pass with prose and the JSON
// passes with a fixed series, charging 10 for creative and 5 for schema.
func newLocalMockGateway() *mock.Gateway {
	return mock.New(mock.WithResponseFunc(func(cfg llm.CallConfig, _ []llm.Message) (llm.Result, error) {
		if !cfg.StrictJSON {
			return llm.Result{
				Content:      "Title: Morning Reset. Start the day with water, stretching, planning and a cold shower.",
				TokensUsed:   120,
				ResourceCost: 10,
			}, nil
		}
		var cost int64
		if cfg.Temperature == 0 {
			cost = 5
		}
		return llm.Result{Content: cannedSeries, TokensUsed: 200, ResourceCost: cost}, nil
	}))
}
