package services

import (
	"context"
	"log/slog"

	"github.com/admitflow/admitflow/pkg/engine"
	"github.com/admitflow/admitflow/pkg/models"
	"github.com/admitflow/admitflow/pkg/persistence"
)

// Lifecycle exposes the activation, deactivation, and duplication operations
// over the engine's lifecycle manager, adding the request-level validation
// the API layer expects.
type Lifecycle struct {
	lifecycle *engine.Lifecycle
}

// NewLifecycle creates a new lifecycle service.
func NewLifecycle(store persistence.Persistence, logger *slog.Logger) *Lifecycle {
	return &Lifecycle{
		lifecycle: engine.NewLifecycle(store, logger),
	}
}

// Activate makes the definition the single active one for its category.
func (l *Lifecycle) Activate(ctx context.Context, workflowID string) error {
	err := l.lifecycle.Activate(ctx, workflowID)
	if err == nil {
		return nil
	}

	if engine.IsGraphIntegrity(err) {
		return NewValidationError(
			"Activate",
			"INVALID_GRAPH",
			err.Error(),
			ErrInvalidGraph,
		)
	}

	return err
}

// Deactivate sets the definition inactive, leaving its category with no
// active definition until another is activated.
func (l *Lifecycle) Deactivate(ctx context.Context, workflowID string) error {
	return l.lifecycle.Deactivate(ctx, workflowID)
}

// Duplicate deep-copies the definition under the given name and persists the
// inactive copy.
func (l *Lifecycle) Duplicate(ctx context.Context, workflowID, newName string) (*models.WorkflowDefinition, error) {
	if newName == "" {
		return nil, ErrWorkflowNameRequired
	}

	return l.lifecycle.Duplicate(ctx, workflowID, newName)
}
