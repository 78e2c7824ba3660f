package services

import (
	"context"
	"fmt"
	"time"

	"github.com/admitflow/admitflow/pkg/engine"
	"github.com/admitflow/admitflow/pkg/models"
	"github.com/admitflow/admitflow/pkg/persistence"
	"github.com/google/uuid"
)

var (
	// ErrWorkflowNotFound is returned when a workflow definition is not found.
	ErrWorkflowNotFound = persistence.ErrWorkflowNotFound
)

// Workflow is the authoring service for workflow definitions. It owns the
// create/read/update/delete surface and the authoring-time validation that
// keeps malformed graphs and condition expressions out of the store. Active
// definitions are immutable through this service; the duplicate-edit-activate
// path in the lifecycle service is the only way to evolve one.
type Workflow struct {
	persistence persistence.Persistence
}

// NewWorkflow creates a new workflow authoring service.
func NewWorkflow(persistence persistence.Persistence) *Workflow {
	return &Workflow{
		persistence: persistence,
	}
}

// HealthCheck checks the health of the persistence layer.
func (w *Workflow) HealthCheck(ctx context.Context) (string, bool) {
	if w.persistence == nil {
		return "Persistence layer not initialized", false
	}

	err := w.persistence.HealthCheck(ctx)
	if err != nil {
		return "Persistence layer is unhealthy: " + err.Error(), false
	}

	return "Persistence layer is healthy", true
}

// List retrieves workflow definitions, optionally filtered by category and
// active state.
func (w *Workflow) List(ctx context.Context, category string, activeOnly bool) ([]*models.WorkflowDefinition, error) {
	workflows, err := w.persistence.WorkflowRepository().List(ctx, persistence.ListWorkflowsOptions{
		Category:   category,
		ActiveOnly: activeOnly,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to list workflows: %w", err)
	}

	return workflows, nil
}

// FetchByID retrieves a workflow definition by its ID.
func (w *Workflow) FetchByID(ctx context.Context, id string) (*models.WorkflowDefinition, error) {
	workflow, err := w.persistence.WorkflowRepository().GetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	if workflow == nil {
		return nil, ErrWorkflowNotFound
	}

	return workflow, nil
}

// Create validates and persists a new workflow definition. The definition is
// always created inactive; activation is a separate lifecycle operation.
func (w *Workflow) Create(ctx context.Context, workflow *models.WorkflowDefinition) (*models.WorkflowDefinition, error) {
	if workflow == nil {
		return nil, ErrWorkflowNil
	}

	now := time.Now().UTC()
	workflow.ID = uuid.New().String()
	workflow.Active = false
	workflow.CreatedAt = now
	workflow.UpdatedAt = now

	stampIdentifiers(workflow)

	if err := w.validateDefinition(workflow); err != nil {
		return nil, err
	}

	if err := w.persistence.WorkflowRepository().Save(ctx, workflow); err != nil {
		return nil, fmt.Errorf("failed to create workflow: %w", err)
	}

	return workflow, nil
}

// Update replaces an existing definition's content. Updating an active
// definition is refused: applications are progressing under it, and editing
// the graph out from under them would corrupt their history. Duplicate it,
// edit the copy, activate the copy.
func (w *Workflow) Update(
	ctx context.Context,
	workflowID string,
	workflow *models.WorkflowDefinition,
) (*models.WorkflowDefinition, error) {
	if workflow == nil {
		return nil, ErrWorkflowNil
	}

	existing, err := w.persistence.WorkflowRepository().GetByID(ctx, workflowID)
	if err != nil {
		return nil, err
	}

	if existing.Active {
		return nil, NewValidationError(
			"Update",
			"WORKFLOW_ACTIVE",
			fmt.Sprintf("workflow %s is active and cannot be edited", workflowID),
			ErrCannotModifyActive,
		)
	}

	workflow.ID = workflowID
	workflow.Active = false
	workflow.CreatedAt = existing.CreatedAt
	workflow.CreatedBy = existing.CreatedBy
	workflow.UpdatedAt = time.Now().UTC()

	stampIdentifiers(workflow)

	if err := w.validateDefinition(workflow); err != nil {
		return nil, err
	}

	if err := w.persistence.WorkflowRepository().Save(ctx, workflow); err != nil {
		return nil, fmt.Errorf("failed to update workflow: %w", err)
	}

	return workflow, nil
}

// Delete removes an inactive definition. Deleting the active definition of a
// category is refused for the same reason editing it is.
func (w *Workflow) Delete(ctx context.Context, workflowID string) error {
	existing, err := w.persistence.WorkflowRepository().GetByID(ctx, workflowID)
	if err != nil {
		return err
	}

	if existing.Active {
		return NewValidationError(
			"Delete",
			"WORKFLOW_ACTIVE",
			fmt.Sprintf("workflow %s is active and cannot be deleted", workflowID),
			ErrCannotModifyActive,
		)
	}

	if err := w.persistence.WorkflowRepository().Delete(ctx, workflowID); err != nil {
		return fmt.Errorf("failed to delete workflow: %w", err)
	}

	return nil
}

// validateDefinition runs the authoring-time checks: required top-level
// fields, structural graph integrity, and every transition's condition
// expression. Rejecting bad expressions here means execution-time evaluation
// only ever deals with data problems, never shape problems.
func (w *Workflow) validateDefinition(workflow *models.WorkflowDefinition) error {
	if workflow.Name == "" {
		return ErrWorkflowNameRequired
	}

	if workflow.Category == "" {
		return ErrCategoryRequired
	}

	if len(workflow.Stages) == 0 {
		return ErrStagesRequired
	}

	if err := engine.ValidateGraph(workflow); err != nil {
		return NewValidationError(
			"validateDefinition",
			"INVALID_GRAPH",
			err.Error(),
			ErrInvalidGraph,
		)
	}

	for _, transition := range workflow.Transitions() {
		if err := transition.Condition.Validate(); err != nil {
			return NewValidationError(
				"validateDefinition",
				"INVALID_CONDITION",
				fmt.Sprintf("transition %s: %v", transition.ID, err),
				ErrInvalidCondition,
			)
		}
	}

	return nil
}

// stampIdentifiers fills in missing stage and transition IDs and pins every
// element to the definition's ID. Clients may submit graphs without IDs;
// cross-references they did write are preserved.
func stampIdentifiers(workflow *models.WorkflowDefinition) {
	for _, stage := range workflow.Stages {
		if stage.ID == "" {
			stage.ID = uuid.New().String()
		}

		stage.WorkflowID = workflow.ID

		for position, transition := range stage.Transitions {
			if transition.ID == "" {
				transition.ID = uuid.New().String()
			}

			transition.WorkflowID = workflow.ID
			transition.SourceStageID = stage.ID
			transition.Position = position
		}
	}
}
