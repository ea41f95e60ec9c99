package llm

import "math"

// CostFormula converts token usage into energy. Rates are energy per 1000 tokens.
type CostFormula struct {
	InputPer1K  float64
	OutputPer1K float64
	// Minimum is charged for any call that used tokens.
	Minimum int64
}

// ZeroCost is used by vendors that never charge energy.
var ZeroCost = CostFormula{}

// DefaultOpenAICost is tuned so a typical creative pass costs about 10 energy.
var DefaultOpenAICost = CostFormula{InputPer1K: 2, OutputPer1K: 8, Minimum: 1}

func (f CostFormula) Cost(promptTokens, completionTokens int64) int64 {
	if f.InputPer1K == 0 && f.OutputPer1K == 0 && f.Minimum == 0 {
		return 0
	}
	if promptTokens < 0 {
		promptTokens = 0
	}
	if completionTokens < 0 {
		completionTokens = 0
	}
	if promptTokens+completionTokens == 0 {
		return 0
	}

	raw := float64(promptTokens)*f.InputPer1K/1000 + float64(completionTokens)*f.OutputPer1K/1000
	cost := int64(math.Ceil(raw))
	if cost < f.Minimum {
		cost = f.Minimum
	}
	return cost
}
