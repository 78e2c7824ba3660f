// Package services provides standardized error types for service layer operations.
package services

import (
	"errors"
	"fmt"
)

// Business Logic Errors - These indicate client errors (4xx responses).
var (
	// Validation Errors (400 Bad Request).
	ErrInvalidRequest       = errors.New("invalid request")
	ErrWorkflowNameRequired = errors.New("workflow name is required")
	ErrCategoryRequired     = errors.New("workflow category is required")
	ErrStagesRequired       = errors.New("workflow must have at least one stage")
	ErrInvalidCondition     = errors.New("invalid condition expression")
	ErrInvalidGraph         = errors.New("invalid workflow graph")
	ErrWorkflowNil          = errors.New("workflow cannot be nil")
	ErrTransitionNotFound   = errors.New("transition not found in workflow")

	// Business Logic Conflicts (409 Conflict).
	ErrCannotModifyActive = errors.New("cannot modify active workflow")
	ErrAlreadyEnrolled    = errors.New("application is already enrolled")
)

// ServiceError wraps service-level errors with additional context.
type ServiceError struct {
	Op      string // Operation name
	Code    string // Error code for API responses
	Message string // Human-readable message
	Err     error  // Underlying error
}

func (e *ServiceError) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("%s: %s", e.Op, e.Message)
	}

	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *ServiceError) Unwrap() error {
	return e.Err
}

func (e *ServiceError) Is(target error) bool {
	return errors.Is(e.Err, target)
}

// IsValidationError checks if an error is a validation error that should return HTTP 400.
func IsValidationError(err error) bool {
	return errors.Is(err, ErrInvalidRequest) ||
		errors.Is(err, ErrWorkflowNameRequired) ||
		errors.Is(err, ErrCategoryRequired) ||
		errors.Is(err, ErrStagesRequired) ||
		errors.Is(err, ErrInvalidCondition) ||
		errors.Is(err, ErrInvalidGraph) ||
		errors.Is(err, ErrWorkflowNil) ||
		errors.Is(err, ErrTransitionNotFound)
}

// IsConflictError checks if an error is a business logic conflict that should return HTTP 409.
func IsConflictError(err error) bool {
	return errors.Is(err, ErrCannotModifyActive) ||
		errors.Is(err, ErrAlreadyEnrolled)
}

// NewValidationError creates a new validation error with context.
func NewValidationError(op, code, message string, err error) *ServiceError {
	return &ServiceError{
		Op:      op,
		Code:    code,
		Message: message,
		Err:     err,
	}
}
