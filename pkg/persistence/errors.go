// Package persistence provides standardized error types for storage operations.
package persistence

import (
	"errors"
	"fmt"
)

// Standard persistence error types that all implementations should use.
var (
	// ErrWorkflowNotFound indicates no workflow definition exists with the given identifier.
	ErrWorkflowNotFound = errors.New("workflow definition not found")

	// ErrNoActiveWorkflow indicates no active workflow definition exists for the category.
	ErrNoActiveWorkflow = errors.New("no active workflow definition for category")

	// ErrWorkflowActive indicates the operation is not permitted on an active definition.
	ErrWorkflowActive = errors.New("workflow definition is active")

	// ErrStatusNotFound indicates an application has no status history yet.
	ErrStatusNotFound = errors.New("application status not found")
)

// WorkflowError wraps workflow-definition errors with operation context.
type WorkflowError struct {
	Op         string // Operation being performed (e.g. "GetByID", "Activate")
	WorkflowID string
	Category   string
	Err        error
}

func (e *WorkflowError) Error() string {
	target := e.WorkflowID
	if e.Category != "" {
		target = fmt.Sprintf("category %s", e.Category)
	}

	return fmt.Sprintf("%s operation failed for workflow %s: %v", e.Op, target, e.Err)
}

func (e *WorkflowError) Unwrap() error {
	return e.Err
}

func (e *WorkflowError) Is(target error) bool {
	return errors.Is(e.Err, target)
}

// NewWorkflowError creates a workflow error with context.
func NewWorkflowError(op, workflowID string, err error) *WorkflowError {
	return &WorkflowError{
		Op:         op,
		WorkflowID: workflowID,
		Err:        err,
	}
}

// NewCategoryError creates a workflow error scoped to a category.
func NewCategoryError(op, category string, err error) *WorkflowError {
	return &WorkflowError{
		Op:       op,
		Category: category,
		Err:      err,
	}
}

// StatusError wraps status-history errors with operation context.
type StatusError struct {
	Op            string
	ApplicationID string
	Err           error
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("%s operation failed for application %s: %v", e.Op, e.ApplicationID, e.Err)
}

func (e *StatusError) Unwrap() error {
	return e.Err
}

func (e *StatusError) Is(target error) bool {
	return errors.Is(e.Err, target)
}

// IsWorkflowNotFound checks if an error indicates a missing workflow definition.
func IsWorkflowNotFound(err error) bool {
	return errors.Is(err, ErrWorkflowNotFound)
}

// IsNoActiveWorkflow checks if an error indicates no active definition for a category.
func IsNoActiveWorkflow(err error) bool {
	return errors.Is(err, ErrNoActiveWorkflow)
}

// IsStatusNotFound checks if an error indicates empty status history.
func IsStatusNotFound(err error) bool {
	return errors.Is(err, ErrStatusNotFound)
}
