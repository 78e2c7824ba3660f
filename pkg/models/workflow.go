// Package models defines the core domain models for the admissions workflow engine.
package models

import "time"

// WorkflowDefinition is a named stage/transition graph for one application
// category. At most one definition per category is active at a time; the
// persistence layer enforces that during activation.
//
// A definition referenced by in-flight applications is never edited in place.
// Authors duplicate it, edit the inactive copy, and activate the copy.
type WorkflowDefinition struct {
	ID          string    `json:"id"`
	Name        string    `json:"name"        validate:"required,min=3"`
	Description string    `json:"description"`
	Category    string    `json:"category"    validate:"required"`
	Active      bool      `json:"active"`
	CreatedBy   string    `json:"created_by"`
	Stages      []*Stage  `json:"stages"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// StageByID returns the stage with the given ID, if it belongs to this definition.
func (w *WorkflowDefinition) StageByID(id string) (*Stage, bool) {
	for _, stage := range w.Stages {
		if stage.ID == id {
			return stage, true
		}
	}

	return nil, false
}

// TransitionByID searches every stage's outgoing transitions for the given ID.
func (w *WorkflowDefinition) TransitionByID(id string) (*Transition, bool) {
	for _, stage := range w.Stages {
		for _, transition := range stage.Transitions {
			if transition.ID == id {
				return transition, true
			}
		}
	}

	return nil, false
}

// Transitions returns every transition in the definition, grouped by source
// stage, each group in declaration order.
func (w *WorkflowDefinition) Transitions() []*Transition {
	transitions := make([]*Transition, 0)
	for _, stage := range w.Stages {
		transitions = append(transitions, stage.Transitions...)
	}

	return transitions
}
