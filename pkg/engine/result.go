package engine

import (
	"github.com/admitflow/admitflow/pkg/events"
	"github.com/admitflow/admitflow/pkg/models"
)

// Outcome classifies the result of one transition execution attempt.
// Everything except OutcomeSuccess is a normal, expected result rather than
// an error: callers branch on it, nothing is retried.
type Outcome string

const (
	// OutcomeSuccess: the application moved to the transition's target stage
	// and a new history record was appended.
	OutcomeSuccess Outcome = "success"

	// OutcomeNotApplicable: the application was not at the transition's
	// source stage. Concurrent cascades legitimately race into this.
	OutcomeNotApplicable Outcome = "not_applicable"

	// OutcomeUnauthorized: a manual transition was attempted by an actor
	// missing at least one required permission.
	OutcomeUnauthorized Outcome = "unauthorized"

	// OutcomeConditionNotMet: the transition's condition evaluated false for
	// the application's current data snapshot.
	OutcomeConditionNotMet Outcome = "condition_not_met"
)

// ExecutionResult reports one execution attempt. On success it carries the
// new stage, the appended history record, and the typed StageChanged message
// the caller routes onward; on rejection Reason carries a human-readable
// explanation suitable for end users.
type ExecutionResult struct {
	Outcome Outcome                   `json:"outcome"`
	Reason  string                    `json:"reason,omitempty"`
	ToStage *models.Stage             `json:"to_stage,omitempty"`
	Record  *models.ApplicationStatus `json:"record,omitempty"`
	Changed *events.StageChanged      `json:"-"`
}

// Succeeded reports whether the application actually moved.
func (r *ExecutionResult) Succeeded() bool {
	return r.Outcome == OutcomeSuccess
}
