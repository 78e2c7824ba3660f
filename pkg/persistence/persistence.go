// Package persistence abstracts storage of workflow definitions and
// application status history.
package persistence

import (
	"context"
	"time"

	"github.com/admitflow/admitflow/pkg/models"
)

type Persistence interface {
	WorkflowRepository() WorkflowRepository
	StatusRepository() StatusRepository
	HealthCheck(ctx context.Context) error
	Close(ctx context.Context) error
}

// ListWorkflowsOptions filters workflow definition listings.
type ListWorkflowsOptions struct {
	Category   string
	ActiveOnly bool
}

// WorkflowRepository stores WorkflowDefinition aggregates (definition plus
// stages plus transitions). Save persists the whole aggregate atomically, so
// readers never observe a partially written graph.
type WorkflowRepository interface {
	List(ctx context.Context, opts ListWorkflowsOptions) ([]*models.WorkflowDefinition, error)
	GetByID(ctx context.Context, id string) (*models.WorkflowDefinition, error)

	// ActiveByCategory returns the single active definition for a category,
	// or ErrNoActiveWorkflow when none is active.
	ActiveByCategory(ctx context.Context, category string) (*models.WorkflowDefinition, error)

	Save(ctx context.Context, workflow *models.WorkflowDefinition) error
	Delete(ctx context.Context, id string) error

	// Activate marks the given definition active and deactivates any other
	// active definition of the same category in the same atomic operation.
	// A concurrent reader sees either the old or the new active definition,
	// never two and never none.
	Activate(ctx context.Context, id string) error
	Deactivate(ctx context.Context, id string) error
}

// StatusRepository is an append-only store of ApplicationStatus records.
// Records are never updated or deleted; the newest record per application is
// the authoritative current-stage pointer.
type StatusRepository interface {
	Append(ctx context.Context, status *models.ApplicationStatus) error
	Latest(ctx context.Context, applicationID string) (*models.ApplicationStatus, error)
	History(ctx context.Context, applicationID string) ([]*models.ApplicationStatus, error)

	// IdleSince returns the latest status of every application whose most
	// recent record is older than the cutoff. The stalled-application sweep
	// uses it to re-fire completion evaluation.
	IdleSince(ctx context.Context, cutoff time.Time) ([]*models.ApplicationStatus, error)
}
