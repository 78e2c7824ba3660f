package engine

import (
	"github.com/admitflow/admitflow/pkg/models"
	"github.com/google/uuid"
)

// InitialStage returns the graph's entry point: the stage with the lowest
// sequence number. Sequence numbers need not be contiguous.
func InitialStage(workflow *models.WorkflowDefinition) (*models.Stage, error) {
	if len(workflow.Stages) == 0 {
		return nil, NewGraphIntegrityError(workflow.ID, "workflow has no stages")
	}

	initial := workflow.Stages[0]
	for _, stage := range workflow.Stages[1:] {
		if stage.Sequence < initial.Sequence {
			initial = stage
		}
	}

	return initial, nil
}

// TerminalStages returns every stage with no outgoing transitions.
func TerminalStages(workflow *models.WorkflowDefinition) []*models.Stage {
	terminal := make([]*models.Stage, 0)

	for _, stage := range workflow.Stages {
		if stage.IsTerminal() {
			terminal = append(terminal, stage)
		}
	}

	return terminal
}

// OutgoingTransitions returns a stage's outgoing edges in declaration order.
func OutgoingTransitions(stage *models.Stage) []*models.Transition {
	return stage.Transitions
}

// AutomaticOutgoingTransitions returns the outgoing edges the engine may
// execute without a human actor, in declaration order.
func AutomaticOutgoingTransitions(stage *models.Stage) []*models.Transition {
	return stage.AutomaticTransitions()
}

// ValidateGraph checks that every transition connects two stages of the same
// workflow. Construction invariants should make this impossible to violate,
// but execution validates anyway: silently misrouting an application is far
// worse than failing loudly.
func ValidateGraph(workflow *models.WorkflowDefinition) error {
	stageIDs := make(map[string]bool, len(workflow.Stages))
	for _, stage := range workflow.Stages {
		stageIDs[stage.ID] = true
	}

	for _, stage := range workflow.Stages {
		for _, transition := range stage.Transitions {
			if !stageIDs[transition.SourceStageID] {
				return NewGraphIntegrityError(workflow.ID,
					"transition "+transition.ID+" references unknown source stage "+transition.SourceStageID)
			}

			if !stageIDs[transition.TargetStageID] {
				return NewGraphIntegrityError(workflow.ID,
					"transition "+transition.ID+" references unknown target stage "+transition.TargetStageID)
			}
		}
	}

	return nil
}

// Duplicate deep-copies a workflow definition under a new name. Every stage
// gets a fresh ID up front; transitions are then built exclusively through
// the old-to-new ID map, so the copy can never contain a dangling reference.
// The result is always inactive regardless of the source's state, and the
// source is left untouched. Persisting the returned aggregate is a single
// atomic save.
func Duplicate(workflow *models.WorkflowDefinition, newName string) (*models.WorkflowDefinition, error) {
	if err := ValidateGraph(workflow); err != nil {
		return nil, err
	}

	duplicated := &models.WorkflowDefinition{
		ID:          uuid.New().String(),
		Name:        newName,
		Description: workflow.Description,
		Category:    workflow.Category,
		Active:      false,
		CreatedBy:   workflow.CreatedBy,
	}

	stageIDMap := make(map[string]string, len(workflow.Stages))
	for _, stage := range workflow.Stages {
		stageIDMap[stage.ID] = uuid.New().String()
	}

	duplicated.Stages = make([]*models.Stage, 0, len(workflow.Stages))

	for _, stage := range workflow.Stages {
		copied := &models.Stage{
			ID:                    stageIDMap[stage.ID],
			WorkflowID:            duplicated.ID,
			Name:                  stage.Name,
			Description:           stage.Description,
			Sequence:              stage.Sequence,
			RequiredDocumentTypes: copyStrings(stage.RequiredDocumentTypes),
			RequiredActions:       copyStrings(stage.RequiredActions),
			NotificationTriggers:  copyStrings(stage.NotificationTriggers),
			AssignedRole:          stage.AssignedRole,
			Transitions:           make([]*models.Transition, 0, len(stage.Transitions)),
		}

		for position, transition := range stage.Transitions {
			sourceID, sourceOK := stageIDMap[transition.SourceStageID]
			targetID, targetOK := stageIDMap[transition.TargetStageID]

			if !sourceOK || !targetOK {
				return nil, NewGraphIntegrityError(workflow.ID,
					"transition "+transition.ID+" references a stage outside the workflow")
			}

			copied.Transitions = append(copied.Transitions, &models.Transition{
				ID:                  uuid.New().String(),
				WorkflowID:          duplicated.ID,
				SourceStageID:       sourceID,
				TargetStageID:       targetID,
				Name:                transition.Name,
				Description:         transition.Description,
				Condition:           copyCondition(transition.Condition),
				RequiredPermissions: copyStrings(transition.RequiredPermissions),
				Automatic:           transition.Automatic,
				Position:            position,
			})
		}

		duplicated.Stages = append(duplicated.Stages, copied)
	}

	return duplicated, nil
}

func copyStrings(original []string) []string {
	if original == nil {
		return nil
	}

	copied := make([]string, len(original))
	copy(copied, original)

	return copied
}

func copyCondition(original *models.ConditionExpression) *models.ConditionExpression {
	if original == nil {
		return nil
	}

	copied := &models.ConditionExpression{
		Mode:    original.Mode,
		Clauses: make([]models.ConditionClause, len(original.Clauses)),
	}
	copy(copied.Clauses, original.Clauses)

	return copied
}
