package models

// Transition is a directed edge between two stages of the same workflow
// definition. Automatic transitions are executed by the engine with no human
// actor and therefore no permission gate; manual transitions require an
// acting user holding every required permission.
type Transition struct {
	ID                  string               `json:"id"`
	WorkflowID          string               `json:"workflow_id"`
	SourceStageID       string               `json:"source_stage_id" validate:"required"`
	TargetStageID       string               `json:"target_stage_id" validate:"required"`
	Name                string               `json:"name"            validate:"required"`
	Description         string               `json:"description"`
	Condition           *ConditionExpression `json:"condition,omitempty"`
	RequiredPermissions []string             `json:"required_permissions,omitempty"`
	Automatic           bool                 `json:"automatic"`
	Position            int                  `json:"position"` // declaration order within the source stage
}

// IsManual reports whether the transition needs a human actor.
func (t *Transition) IsManual() bool {
	return !t.Automatic
}
