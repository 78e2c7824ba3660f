package engine

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/admitflow/admitflow/pkg/models"
	"github.com/admitflow/admitflow/pkg/persistence"
)

// Lifecycle manages workflow definition state independent of any in-flight
// application: activation, deactivation, and duplication.
//
// Definitions move between exactly two states, inactive and active, and the
// one-active-per-category invariant is enforced only at the active state.
type Lifecycle struct {
	workflows persistence.WorkflowRepository
	logger    *slog.Logger
}

// NewLifecycle creates a lifecycle manager.
func NewLifecycle(store persistence.Persistence, logger *slog.Logger) *Lifecycle {
	return &Lifecycle{
		workflows: store.WorkflowRepository(),
		logger:    logger,
	}
}

// Activate makes the definition the single active one for its category. The
// previously active definition of the same category is deactivated in the
// same atomic store operation, so new applications see either the old or the
// new definition, never none and never both.
//
// A definition with a broken graph is refused: activating it would hand
// every new application an unusable process.
func (l *Lifecycle) Activate(ctx context.Context, workflowID string) error {
	workflow, err := l.workflows.GetByID(ctx, workflowID)
	if err != nil {
		return fmt.Errorf("failed to fetch workflow %s: %w", workflowID, err)
	}

	if _, err := InitialStage(workflow); err != nil {
		return err
	}

	if err := ValidateGraph(workflow); err != nil {
		return err
	}

	if err := l.workflows.Activate(ctx, workflowID); err != nil {
		return fmt.Errorf("failed to activate workflow %s: %w", workflowID, err)
	}

	l.logger.InfoContext(ctx, "Workflow definition activated",
		"workflow_id", workflowID, "category", workflow.Category)

	return nil
}

// Deactivate sets the definition inactive. Applications already progressing
// under it are unaffected; they continue using the graph they started with.
func (l *Lifecycle) Deactivate(ctx context.Context, workflowID string) error {
	if err := l.workflows.Deactivate(ctx, workflowID); err != nil {
		return fmt.Errorf("failed to deactivate workflow %s: %w", workflowID, err)
	}

	l.logger.InfoContext(ctx, "Workflow definition deactivated", "workflow_id", workflowID)

	return nil
}

// Duplicate deep-copies the definition under a new name and persists the
// copy, always inactive regardless of the source's state. Duplication is how
// an active definition gets edited: copy, edit the copy, activate the copy.
func (l *Lifecycle) Duplicate(ctx context.Context, workflowID, newName string) (*models.WorkflowDefinition, error) {
	workflow, err := l.workflows.GetByID(ctx, workflowID)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch workflow %s: %w", workflowID, err)
	}

	duplicated, err := Duplicate(workflow, newName)
	if err != nil {
		return nil, err
	}

	if err := l.workflows.Save(ctx, duplicated); err != nil {
		return nil, fmt.Errorf("failed to save duplicated workflow: %w", err)
	}

	l.logger.InfoContext(ctx, "Workflow definition duplicated",
		"source_workflow_id", workflowID, "workflow_id", duplicated.ID)

	return duplicated, nil
}
