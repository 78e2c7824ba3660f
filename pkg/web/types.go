// Package web provides HTTP request and response types for the admissions workflow API.
package web

import "github.com/admitflow/admitflow/pkg/models"

// CreateWorkflowRequest represents the request body for creating a new
// workflow definition. Stage and transition IDs are optional; the authoring
// service generates missing ones. Transitions reference their target by
// stage ID, so stages referenced by a transition must carry an ID in the
// request.
type CreateWorkflowRequest struct {
	Name        string       `json:"name"        validate:"required,min=3"`
	Description string       `json:"description"`
	Category    string       `json:"category"    validate:"required"`
	CreatedBy   string       `json:"created_by"`
	Stages      []StageInput `json:"stages"      validate:"required,min=1,dive"`
}

// UpdateWorkflowRequest represents the request body for replacing an
// inactive workflow definition's content.
type UpdateWorkflowRequest struct {
	Name        string       `json:"name"        validate:"required,min=3"`
	Description string       `json:"description"`
	Category    string       `json:"category"    validate:"required"`
	Stages      []StageInput `json:"stages"      validate:"required,min=1,dive"`
}

// StageInput is one stage of a submitted workflow graph.
type StageInput struct {
	ID                    string            `json:"id"`
	Name                  string            `json:"name"     validate:"required"`
	Description           string            `json:"description"`
	Sequence              int               `json:"sequence" validate:"min=0"`
	RequiredDocumentTypes []string          `json:"required_document_types,omitempty"`
	RequiredActions       []string          `json:"required_actions,omitempty"`
	NotificationTriggers  []string          `json:"notification_triggers,omitempty"`
	AssignedRole          string            `json:"assigned_role,omitempty"`
	Transitions           []TransitionInput `json:"transitions" validate:"dive"`
}

// TransitionInput is one outgoing edge of a submitted stage, in declaration
// order. The source stage is implied by nesting.
type TransitionInput struct {
	ID                  string                      `json:"id"`
	Name                string                      `json:"name"            validate:"required"`
	Description         string                      `json:"description"`
	TargetStageID       string                      `json:"target_stage_id" validate:"required"`
	Condition           *models.ConditionExpression `json:"condition,omitempty"`
	RequiredPermissions []string                    `json:"required_permissions,omitempty"`
	Automatic           bool                        `json:"automatic"`
}

// DuplicateWorkflowRequest represents the request body for duplicating a
// workflow definition under a new name.
type DuplicateWorkflowRequest struct {
	Name string `json:"name" validate:"required,min=3"`
}

// EnrollApplicationRequest represents the request body for enrolling an
// application into its category's active workflow.
type EnrollApplicationRequest struct {
	Category string         `json:"category" validate:"required"`
	Data     map[string]any `json:"data,omitempty"`
	ActorID  string         `json:"actor_id,omitempty"`
}

// ExecuteTransitionRequest represents the request body for executing a
// manual transition. Data is the application snapshot conditions evaluate
// against; ContextData carries per-request values that override it.
type ExecuteTransitionRequest struct {
	ActorID     string         `json:"actor_id" validate:"required"`
	Data        map[string]any `json:"data,omitempty"`
	ContextData map[string]any `json:"context_data,omitempty"`
}

// TransitionResult represents the outcome of a transition execution attempt.
type TransitionResult struct {
	Outcome string                    `json:"outcome"`
	Reason  string                    `json:"reason,omitempty"`
	Status  *models.ApplicationStatus `json:"status,omitempty"`
}

// ToWorkflow converts the request into a workflow definition model.
func (r *CreateWorkflowRequest) ToWorkflow() *models.WorkflowDefinition {
	return &models.WorkflowDefinition{
		Name:        r.Name,
		Description: r.Description,
		Category:    r.Category,
		CreatedBy:   r.CreatedBy,
		Stages:      stagesToModel(r.Stages),
	}
}

// ToWorkflow converts the request into a workflow definition model.
func (r *UpdateWorkflowRequest) ToWorkflow() *models.WorkflowDefinition {
	return &models.WorkflowDefinition{
		Name:        r.Name,
		Description: r.Description,
		Category:    r.Category,
		Stages:      stagesToModel(r.Stages),
	}
}

func stagesToModel(inputs []StageInput) []*models.Stage {
	stages := make([]*models.Stage, 0, len(inputs))

	for _, input := range inputs {
		stage := &models.Stage{
			ID:                    input.ID,
			Name:                  input.Name,
			Description:           input.Description,
			Sequence:              input.Sequence,
			RequiredDocumentTypes: input.RequiredDocumentTypes,
			RequiredActions:       input.RequiredActions,
			NotificationTriggers:  input.NotificationTriggers,
			AssignedRole:          input.AssignedRole,
			Transitions:           make([]*models.Transition, 0, len(input.Transitions)),
		}

		for _, transitionInput := range input.Transitions {
			stage.Transitions = append(stage.Transitions, &models.Transition{
				ID:                  transitionInput.ID,
				SourceStageID:       stage.ID,
				TargetStageID:       transitionInput.TargetStageID,
				Name:                transitionInput.Name,
				Description:         transitionInput.Description,
				Condition:           transitionInput.Condition,
				RequiredPermissions: transitionInput.RequiredPermissions,
				Automatic:           transitionInput.Automatic,
			})
		}

		stages = append(stages, stage)
	}

	return stages
}
