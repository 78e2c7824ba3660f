package models

// Stage is one node of a workflow graph, owned by exactly one
// WorkflowDefinition. Sequence numbers need not be contiguous; the lowest
// sequence marks the graph's entry point. A stage with no outgoing
// transitions is terminal.
type Stage struct {
	ID                    string        `json:"id"`
	WorkflowID            string        `json:"workflow_id"`
	Name                  string        `json:"name"     validate:"required"`
	Description           string        `json:"description"`
	Sequence              int           `json:"sequence" validate:"min=0"`
	RequiredDocumentTypes []string      `json:"required_document_types,omitempty"`
	RequiredActions       []string      `json:"required_actions,omitempty"`
	NotificationTriggers  []string      `json:"notification_triggers,omitempty"`
	AssignedRole          string        `json:"assigned_role,omitempty"`
	Transitions           []*Transition `json:"transitions"` // outgoing edges, declaration order
}

// AutomaticTransitions returns the outgoing transitions the engine may execute
// without a human actor, preserving declaration order.
func (s *Stage) AutomaticTransitions() []*Transition {
	automatic := make([]*Transition, 0, len(s.Transitions))

	for _, transition := range s.Transitions {
		if transition.Automatic {
			automatic = append(automatic, transition)
		}
	}

	return automatic
}

// IsTerminal reports whether the stage has no outgoing transitions.
func (s *Stage) IsTerminal() bool {
	return len(s.Transitions) == 0
}
