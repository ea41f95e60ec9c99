package services

import (
	"encoding/json"
	"fmt"
	"strings"

	"habitly/internal/models/db_models"
	"habitly/pkg/utils"
)

const (
	MinSeriesActions = 3
	MaxSeriesActions = 5
)

// ReasonMalformedOutput marks content that could not be parsed at all.
const ReasonMalformedOutput = "MalformedOutput"

type ValidatedAction struct {
	Name        string
	Description string
	Difficulty  db_models.Difficulty
}

type ValidatedSeries struct {
	Title       string
	Description string
	Actions     []ValidatedAction
}

type Violation struct {
	Field  string
	Reason string
}

func (v Violation) String() string {
	return v.Field + ": " + v.Reason
}

// ValidationResult holds either a validated series or every violation found.
type ValidationResult struct {
	Series     *ValidatedSeries
	Violations []Violation
}

func (r ValidationResult) Valid() bool {
	return len(r.Violations) == 0 && r.Series != nil
}

// Err returns nil for a valid result.
func (r ValidationResult) Err() error {
	if r.Valid() {
		return nil
	}
	return utils.NewOutputInvalidError(violationStrings(r.Violations))
}

// ValidateSeriesOutput is the only place where model output becomes trusted
// data. It never stops at the first problem.
func ValidateSeriesOutput(out PassOutput) ValidationResult {
	obj := out.Object
	if obj == nil {
		if err := json.Unmarshal([]byte(stripCodeFences(out.Raw)), &obj); err != nil || obj == nil {
			reason := ReasonMalformedOutput
			if err != nil {
				reason += ": " + err.Error()
			} else {
				reason += ": not a JSON object"
			}
			return ValidationResult{Violations: []Violation{{Field: "$", Reason: reason}}}
		}
	}

	var violations []Violation
	series := &ValidatedSeries{}

	series.Title, violations = requireText(obj, "title", "title", violations)
	series.Description, violations = requireText(obj, "description", "description", violations)

	rawActions, present := obj["actions"]
	actions, isList := rawActions.([]any)
	switch {
	case !present || rawActions == nil:
		violations = append(violations, Violation{"actions", "is required"})
	case !isList:
		violations = append(violations, Violation{"actions", "must be a list"})
	default:
		if n := len(actions); n < MinSeriesActions || n > MaxSeriesActions {
			violations = append(violations, Violation{"actions",
				fmt.Sprintf("must contain between %d and %d items, got %d", MinSeriesActions, MaxSeriesActions, n)})
		}
		for i, raw := range actions {
			field := fmt.Sprintf("actions[%d]", i)
			a, ok := raw.(map[string]any)
			if !ok {
				violations = append(violations, Violation{field, "must be an object"})
				continue
			}

			var action ValidatedAction
			action.Name, violations = requireText(a, "name", field+".name", violations)
			action.Description, violations = requireText(a, "description", field+".description", violations)

			d, ok := a["difficulty"]
			if !ok || d == nil {
				violations = append(violations, Violation{field + ".difficulty", "is required"})
			}
			difficulty, _ := d.(string)
			action.Difficulty = db_models.NormalizeDifficulty(difficulty)

			series.Actions = append(series.Actions, action)
		}
	}

	if len(violations) > 0 {
		return ValidationResult{Violations: violations}
	}
	return ValidationResult{Series: series}
}

func requireText(obj map[string]any, key, field string, violations []Violation) (string, []Violation) {
	raw, ok := obj[key]
	if !ok || raw == nil {
		return "", append(violations, Violation{field, "is required"})
	}
	s, ok := raw.(string)
	if !ok {
		return "", append(violations, Violation{field, "must be text"})
	}
	s = strings.TrimSpace(s)
	if s == "" {
		return "", append(violations, Violation{field, "must not be empty"})
	}
	return s, violations
}
