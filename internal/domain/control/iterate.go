package control

import (
	"encoding/json"
	"fmt"

	"github.com/t3eHawk/rapo/internal/domain/model"
)

// Iteration is one extra run of a control with its own period settings,
// executed after the main run with the same trigger moment.
type Iteration struct {
	ID           int64  `json:"iteration_id"`
	Description  string `json:"iteration_description,omitempty"`
	PeriodBack   int    `json:"period_back"`
	PeriodNumber int    `json:"period_number"`
	PeriodType   string `json:"period_type"`
	Status       string `json:"status"`
}

// Active reports whether the iteration is switched on.
func (i Iteration) Active() bool {
	return i.Status == string(model.FlagYes)
}

// ParseIterations decodes the iteration_config list.
func ParseIterations(raw json.RawMessage) ([]Iteration, error) {
	if len(raw) == 0 {
		return nil, nil
	}
	var iterations []Iteration
	if err := json.Unmarshal(raw, &iterations); err != nil {
		return nil, fmt.Errorf("parse iteration config: %w", err)
	}
	for _, iteration := range iterations {
		if !model.PeriodType(iteration.PeriodType).Valid() {
			return nil, fmt.Errorf("iteration %d: unknown period type %q",
				iteration.ID, iteration.PeriodType)
		}
	}
	return iterations, nil
}

// FindIteration returns the active iteration with the given id.
func FindIteration(iterations []Iteration, id int64) (Iteration, error) {
	for _, iteration := range iterations {
		if iteration.ID == id {
			return iteration, nil
		}
	}
	return Iteration{}, fmt.Errorf("iteration %d is not configured", id)
}
