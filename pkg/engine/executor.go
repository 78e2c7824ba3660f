package engine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/admitflow/admitflow/pkg/authz"
	"github.com/admitflow/admitflow/pkg/eventbus"
	"github.com/admitflow/admitflow/pkg/events"
	"github.com/admitflow/admitflow/pkg/models"
	"github.com/admitflow/admitflow/pkg/persistence"
)

// Executor is the single integration point that moves an application from
// one stage to another via a specific transition. It derives the current
// stage from the newest history record, enforces permission and condition
// checks, appends the new record, and emits a StageChanged message.
//
// Executing a transition whose source no longer matches the application's
// current stage is a no-op returning OutcomeNotApplicable. That makes the
// executor naturally safe under concurrent cascade triggers and makes
// repeated execution idempotent: one success, then NotApplicable forever.
type Executor struct {
	workflows  persistence.WorkflowRepository
	statuses   persistence.StatusRepository
	authorizer authz.Authorizer
	publisher  eventbus.EventPublisher
	logger     *slog.Logger
}

// NewExecutor creates a transition executor.
func NewExecutor(
	store persistence.Persistence,
	authorizer authz.Authorizer,
	publisher eventbus.EventPublisher,
	logger *slog.Logger,
) *Executor {
	return &Executor{
		workflows:  store.WorkflowRepository(),
		statuses:   store.StatusRepository(),
		authorizer: authorizer,
		publisher:  publisher,
		logger:     logger,
	}
}

// Execute attempts one transition for one application. The returned error is
// non-nil only for system faults (storage, graph integrity); every expected
// rejection is expressed through the result's Outcome.
func (e *Executor) Execute(
	ctx context.Context,
	application *models.Application,
	transition *models.Transition,
	actor models.Actor,
	contextData map[string]any,
) (*ExecutionResult, error) {
	workflow, err := e.workflows.GetByID(ctx, transition.WorkflowID)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch workflow %s: %w", transition.WorkflowID, err)
	}

	if err := ValidateGraph(workflow); err != nil {
		return nil, err
	}

	target, ok := workflow.StageByID(transition.TargetStageID)
	if !ok {
		return nil, NewGraphIntegrityError(workflow.ID,
			"transition "+transition.ID+" targets unknown stage "+transition.TargetStageID)
	}

	current, result, err := e.currentStageMatches(ctx, application.ID, transition)
	if err != nil || result != nil {
		return result, err
	}

	if transition.IsManual() {
		allowed, err := e.authorizer.ActorHasPermissions(ctx, actor, transition.RequiredPermissions)
		if err != nil {
			return nil, fmt.Errorf("permission check failed: %w", err)
		}

		if !allowed {
			return &ExecutionResult{
				Outcome: OutcomeUnauthorized,
				Reason:  "you do not have permission to perform this transition",
			}, nil
		}
	}

	snapshot := application.Snapshot(contextData)
	if !transition.Condition.Evaluate(snapshot) {
		return &ExecutionResult{
			Outcome: OutcomeConditionNotMet,
			Reason:  "the requirements for this transition are not met",
		}, nil
	}

	record := &models.ApplicationStatus{
		ApplicationID: application.ID,
		WorkflowID:    workflow.ID,
		StageID:       target.ID,
		Status:        target.Name,
		Actor:         actor,
	}

	if err := e.statuses.Append(ctx, record); err != nil {
		return nil, fmt.Errorf("failed to append status record: %w", err)
	}

	changed := &events.StageChanged{
		BaseEvent:    events.NewBaseEvent(events.StageChangedEvent, application.ID),
		WorkflowID:   workflow.ID,
		FromStageID:  current,
		ToStageID:    target.ID,
		TransitionID: transition.ID,
		Actor:        actor,
	}

	// The transition is complete once the history record is durably
	// written; downstream notification delivery is not awaited.
	if e.publisher != nil {
		if err := e.publisher.Publish(ctx, application.ID, changed); err != nil {
			e.logger.WarnContext(ctx, "Failed to publish stage changed event",
				"application_id", application.ID, "transition_id", transition.ID, "error", err)
		}
	}

	e.logger.InfoContext(ctx, "Application transitioned",
		"application_id", application.ID,
		"workflow_id", workflow.ID,
		"from_stage_id", current,
		"to_stage_id", target.ID,
		"transition_id", transition.ID,
		"actor", actor.String())

	return &ExecutionResult{
		Outcome: OutcomeSuccess,
		ToStage: target,
		Record:  record,
		Changed: changed,
	}, nil
}

// IsAvailableFor performs the permission-irrelevant availability check the
// cascade controller uses for automatic transitions: source stage match plus
// condition evaluation, no actor involved.
func (e *Executor) IsAvailableFor(
	ctx context.Context,
	application *models.Application,
	transition *models.Transition,
	contextData map[string]any,
) (bool, error) {
	_, mismatch, err := e.currentStageMatches(ctx, application.ID, transition)
	if err != nil {
		return false, err
	}

	if mismatch != nil {
		return false, nil
	}

	return transition.Condition.Evaluate(application.Snapshot(contextData)), nil
}

// currentStageMatches resolves the application's current stage and, when it
// does not match the transition's source, returns a NotApplicable result.
// An application with no history at all is not in any workflow yet, which is
// likewise NotApplicable rather than an error.
func (e *Executor) currentStageMatches(
	ctx context.Context,
	applicationID string,
	transition *models.Transition,
) (string, *ExecutionResult, error) {
	latest, err := e.statuses.Latest(ctx, applicationID)
	if err != nil {
		if errors.Is(err, persistence.ErrStatusNotFound) {
			return "", &ExecutionResult{
				Outcome: OutcomeNotApplicable,
				Reason:  "application has not entered a workflow",
			}, nil
		}

		return "", nil, fmt.Errorf("failed to resolve current stage: %w", err)
	}

	if latest.StageID != transition.SourceStageID {
		return latest.StageID, &ExecutionResult{
			Outcome: OutcomeNotApplicable,
			Reason:  "application is no longer at this transition's source stage",
		}, nil
	}

	return latest.StageID, nil, nil
}
