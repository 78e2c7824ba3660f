package services

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/admitflow/admitflow/pkg/engine"
	"github.com/admitflow/admitflow/pkg/models"
	"github.com/admitflow/admitflow/pkg/persistence"
)

// Progression drives applications through their workflow: enrollment at the
// initial stage, manual transition execution, inbound completion handling,
// and history reads. Manual transitions that succeed are followed by a
// cascade pass so automatic follow-up transitions fire in the same request.
type Progression struct {
	workflows persistence.WorkflowRepository
	statuses  persistence.StatusRepository
	executor  *engine.Executor
	cascade   *engine.Cascade
	logger    *slog.Logger
}

// NewProgression creates a new progression service.
func NewProgression(
	store persistence.Persistence,
	executor *engine.Executor,
	cascade *engine.Cascade,
	logger *slog.Logger,
) *Progression {
	return &Progression{
		workflows: store.WorkflowRepository(),
		statuses:  store.StatusRepository(),
		executor:  executor,
		cascade:   cascade,
		logger:    logger,
	}
}

// Enroll places the application at the initial stage of its category's
// active workflow definition and immediately runs a cascade pass, so
// automatic transitions whose conditions already hold fire on enrollment.
// An application with existing history cannot be enrolled again.
func (p *Progression) Enroll(
	ctx context.Context,
	application *models.Application,
	actor models.Actor,
) (*models.ApplicationStatus, error) {
	if _, err := p.statuses.Latest(ctx, application.ID); err == nil {
		return nil, NewValidationError(
			"Enroll",
			"ALREADY_ENROLLED",
			fmt.Sprintf("application %s already has workflow history", application.ID),
			ErrAlreadyEnrolled,
		)
	} else if !persistence.IsStatusNotFound(err) {
		return nil, fmt.Errorf("failed to check application history: %w", err)
	}

	workflow, err := p.workflows.ActiveByCategory(ctx, application.Category)
	if err != nil {
		return nil, err
	}

	initial, err := engine.InitialStage(workflow)
	if err != nil {
		return nil, err
	}

	record := &models.ApplicationStatus{
		ApplicationID: application.ID,
		WorkflowID:    workflow.ID,
		StageID:       initial.ID,
		Status:        initial.Name,
		Actor:         actor,
	}

	if err := p.statuses.Append(ctx, record); err != nil {
		return nil, fmt.Errorf("failed to append enrollment record: %w", err)
	}

	p.logger.InfoContext(ctx, "Application enrolled",
		"application_id", application.ID,
		"workflow_id", workflow.ID,
		"stage_id", initial.ID)

	if err := p.cascade.OnStageChanged(ctx, application, initial.ID, application.Data); err != nil {
		return nil, err
	}

	return record, nil
}

// ExecuteTransition runs one named transition for the application on behalf
// of the given actor. The transition is looked up in the workflow the
// application is progressing under, never in the currently active
// definition, so applications mid-flight on a superseded graph keep working.
// After a successful manual transition the cascade controller evaluates
// automatic follow-ups from the new stage.
func (p *Progression) ExecuteTransition(
	ctx context.Context,
	application *models.Application,
	transitionID string,
	actor models.Actor,
	contextData map[string]any,
) (*engine.ExecutionResult, error) {
	workflow, err := p.workflowFor(ctx, application.ID)
	if err != nil {
		return nil, err
	}

	transition, ok := workflow.TransitionByID(transitionID)
	if !ok {
		return nil, NewValidationError(
			"ExecuteTransition",
			"TRANSITION_NOT_FOUND",
			fmt.Sprintf("transition %s does not exist in workflow %s", transitionID, workflow.ID),
			ErrTransitionNotFound,
		)
	}

	result, err := p.executor.Execute(ctx, application, transition, actor, contextData)
	if err != nil {
		return nil, err
	}

	if result.Succeeded() {
		if err := p.cascade.OnStageChanged(ctx, application, result.Changed.ToStageID, contextData); err != nil {
			return nil, err
		}
	}

	return result, nil
}

// CompleteStage is the inbound completion entry point: an external subsystem
// reports that the requirements of the given stage are satisfied for the
// application, and the cascade controller evaluates automatic transitions
// from it.
func (p *Progression) CompleteStage(
	ctx context.Context,
	application *models.Application,
	stageID string,
	contextData map[string]any,
) error {
	return p.cascade.OnStageCompleted(ctx, application, stageID, contextData)
}

// AvailableTransitions returns the outgoing transitions of the application's
// current stage, in declaration order. The result is informational: it does
// not pre-check permissions or conditions, both of which are evaluated at
// execution time against then-current data.
func (p *Progression) AvailableTransitions(ctx context.Context, applicationID string) ([]*models.Transition, error) {
	latest, err := p.statuses.Latest(ctx, applicationID)
	if err != nil {
		return nil, err
	}

	workflow, err := p.workflows.GetByID(ctx, latest.WorkflowID)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch workflow %s: %w", latest.WorkflowID, err)
	}

	stage, ok := workflow.StageByID(latest.StageID)
	if !ok {
		return nil, engine.NewGraphIntegrityError(workflow.ID,
			"application "+applicationID+" is at unknown stage "+latest.StageID)
	}

	return engine.OutgoingTransitions(stage), nil
}

// History returns the application's full status history, oldest first.
func (p *Progression) History(ctx context.Context, applicationID string) ([]*models.ApplicationStatus, error) {
	return p.statuses.History(ctx, applicationID)
}

// Current returns the application's newest status record.
func (p *Progression) Current(ctx context.Context, applicationID string) (*models.ApplicationStatus, error) {
	return p.statuses.Latest(ctx, applicationID)
}

func (p *Progression) workflowFor(ctx context.Context, applicationID string) (*models.WorkflowDefinition, error) {
	latest, err := p.statuses.Latest(ctx, applicationID)
	if err != nil {
		return nil, err
	}

	workflow, err := p.workflows.GetByID(ctx, latest.WorkflowID)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch workflow %s: %w", latest.WorkflowID, err)
	}

	return workflow, nil
}
