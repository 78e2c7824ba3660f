// Package engine implements the workflow execution core: graph queries,
// transition execution, completion cascades, and definition lifecycle.
package engine

import (
	"errors"
	"fmt"
)

var (
	// ErrGraphIntegrity indicates a structural inconsistency in a workflow
	// graph. It is fatal to the operation that discovered it and is never
	// silently repaired; the graph needs manual correction.
	ErrGraphIntegrity = errors.New("workflow graph integrity violation")

	// ErrCascadeDepthExceeded is the cascade circuit breaker. It marks a
	// workflow-authoring defect (an automatic cycle with always-true
	// conditions), not a transient runtime fault; retrying reproduces it.
	ErrCascadeDepthExceeded = errors.New("cascade depth exceeded")
)

// GraphIntegrityError carries the workflow and detail of a structural defect.
type GraphIntegrityError struct {
	WorkflowID string
	Detail     string
}

func (e *GraphIntegrityError) Error() string {
	return fmt.Sprintf("graph integrity violation in workflow %s: %s", e.WorkflowID, e.Detail)
}

func (e *GraphIntegrityError) Unwrap() error {
	return ErrGraphIntegrity
}

// NewGraphIntegrityError creates a graph integrity error.
func NewGraphIntegrityError(workflowID, detail string) *GraphIntegrityError {
	return &GraphIntegrityError{WorkflowID: workflowID, Detail: detail}
}

// IsGraphIntegrity checks whether an error reports a graph integrity violation.
func IsGraphIntegrity(err error) bool {
	return errors.Is(err, ErrGraphIntegrity)
}
