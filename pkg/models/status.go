package models

import "time"

// ApplicationStatus is one immutable, append-only history record of an
// application's progress. The application's current stage is always derived
// from the most recent record; no separately mutated pointer exists, so the
// audit trail is complete by construction.
type ApplicationStatus struct {
	ID            string    `json:"id"`
	ApplicationID string    `json:"application_id" validate:"required"`
	WorkflowID    string    `json:"workflow_id"`
	StageID       string    `json:"stage_id"       validate:"required"`
	Status        string    `json:"status"`
	Notes         string    `json:"notes,omitempty"`
	Actor         Actor     `json:"actor"`
	CreatedAt     time.Time `json:"created_at"`
}
