// Package testutil provides test data builders shared across packages.
package testutil

import (
	"github.com/admitflow/admitflow/pkg/models"
	"github.com/google/uuid"
)

// CreateTestStage creates a stage with sensible defaults that can be overridden.
func CreateTestStage(overrides ...func(*models.Stage)) *models.Stage {
	stage := &models.Stage{
		ID:          uuid.New().String(),
		Name:        "Test Stage",
		Sequence:    1,
		Transitions: []*models.Transition{},
	}

	for _, override := range overrides {
		override(stage)
	}

	return stage
}

// WithSequence sets the stage sequence number.
func WithSequence(sequence int) func(*models.Stage) {
	return func(s *models.Stage) {
		s.Sequence = sequence
	}
}

// WithStageName sets the stage name.
func WithStageName(name string) func(*models.Stage) {
	return func(s *models.Stage) {
		s.Name = name
	}
}

// CreateTestTransition creates a transition between two stages.
func CreateTestTransition(source, target *models.Stage, overrides ...func(*models.Transition)) *models.Transition {
	transition := &models.Transition{
		ID:            uuid.New().String(),
		WorkflowID:    source.WorkflowID,
		SourceStageID: source.ID,
		TargetStageID: target.ID,
		Name:          source.Name + " to " + target.Name,
		Position:      len(source.Transitions),
	}

	for _, override := range overrides {
		override(transition)
	}

	source.Transitions = append(source.Transitions, transition)

	return transition
}

// Automatic marks the transition automatic.
func Automatic() func(*models.Transition) {
	return func(t *models.Transition) {
		t.Automatic = true
	}
}

// WithCondition attaches a single-clause condition.
func WithCondition(field string, operator models.Operator, value any) func(*models.Transition) {
	return func(t *models.Transition) {
		t.Condition = &models.ConditionExpression{
			Clauses: []models.ConditionClause{
				{Field: field, Operator: operator, Value: value},
			},
		}
	}
}

// WithPermissions sets the required permissions.
func WithPermissions(permissions ...string) func(*models.Transition) {
	return func(t *models.Transition) {
		t.RequiredPermissions = permissions
	}
}

// CreateTestWorkflow wraps stages into a workflow definition, stamping each
// stage and transition with the definition's ID.
func CreateTestWorkflow(name, category string, stages ...*models.Stage) *models.WorkflowDefinition {
	workflow := &models.WorkflowDefinition{
		ID:       uuid.New().String(),
		Name:     name,
		Category: category,
		Stages:   stages,
	}

	for _, stage := range stages {
		stage.WorkflowID = workflow.ID
		for _, transition := range stage.Transitions {
			transition.WorkflowID = workflow.ID
		}
	}

	return workflow
}

// UndergradWorkflow builds the canonical three-stage admissions graph used
// throughout the tests: Submitted -> DocsVerified (automatic, requires
// documents_complete == true) -> Decision (manual, requires make_decision).
func UndergradWorkflow() *models.WorkflowDefinition {
	submitted := CreateTestStage(WithStageName("Submitted"), WithSequence(1))
	docsVerified := CreateTestStage(WithStageName("DocsVerified"), WithSequence(2))
	decision := CreateTestStage(WithStageName("Decision"), WithSequence(3))

	CreateTestTransition(submitted, docsVerified,
		Automatic(),
		WithCondition("documents_complete", models.OperatorEquals, true),
	)
	CreateTestTransition(docsVerified, decision,
		WithPermissions("make_decision"),
	)

	return CreateTestWorkflow("Undergrad-2024", "undergraduate", submitted, docsVerified, decision)
}
