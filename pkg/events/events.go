// Package events defines the typed messages the workflow engine consumes and emits.
package events

import (
	"time"

	"github.com/admitflow/admitflow/pkg/models"
	"github.com/google/uuid"
)

type EventType string

// Topic carries every engine event on the bus.
const Topic = "admitflow.events"

const EventMetadataKey = "key"
const EventTypeMetadataKey = "event_type"

const (
	// Outbound: the executor emits one of these after every committed transition.
	StageChangedEvent EventType = "application.stage.changed"

	// Inbound completion triggers from external subsystems.
	DocumentVerifiedEvent       EventType = "application.document.verified"
	FormSectionCompletedEvent   EventType = "application.form.completed"
	PaymentCompletedEvent       EventType = "application.payment.completed"
	ManualDecisionRecordedEvent EventType = "application.decision.recorded"
)

type BaseEvent struct {
	ID            string         `json:"id"`
	Type          EventType      `json:"type"`
	Timestamp     time.Time      `json:"timestamp"`
	ApplicationID string         `json:"application_id"`
	Metadata      map[string]any `json:"metadata,omitempty"`
}

func NewBaseEvent(eventType EventType, applicationID string) BaseEvent {
	return BaseEvent{
		ID:            uuid.New().String(),
		Type:          eventType,
		Timestamp:     time.Now().UTC(),
		ApplicationID: applicationID,
		Metadata:      make(map[string]any),
	}
}

// StageChanged is produced after an application's history gains a new record.
// The cascade controller consumes it to continue automatic chains; the
// notification subsystem consumes it to fan out applicant messaging.
type StageChanged struct {
	BaseEvent

	WorkflowID   string       `json:"workflow_id"`
	FromStageID  string       `json:"from_stage_id"`
	ToStageID    string       `json:"to_stage_id"`
	TransitionID string       `json:"transition_id"`
	Actor        models.Actor `json:"actor"`
}

func (e StageChanged) GetType() EventType {
	return StageChangedEvent
}

// StageCompleted is the shared shape of every inbound completion trigger: an
// external subsystem believes a stage's requirements are now satisfied for an
// application, and attaches the snapshot fields conditions need.
type StageCompleted struct {
	BaseEvent

	StageID     string         `json:"stage_id"`
	ContextData map[string]any `json:"context_data,omitempty"`
}

type DocumentVerified struct {
	StageCompleted

	DocumentType string `json:"document_type"`
}

func (e DocumentVerified) GetType() EventType {
	return DocumentVerifiedEvent
}

type FormSectionCompleted struct {
	StageCompleted

	Section string `json:"section"`
}

func (e FormSectionCompleted) GetType() EventType {
	return FormSectionCompletedEvent
}

type PaymentCompleted struct {
	StageCompleted

	Amount   float64 `json:"amount"`
	Currency string  `json:"currency,omitempty"`
}

func (e PaymentCompleted) GetType() EventType {
	return PaymentCompletedEvent
}

type ManualDecisionRecorded struct {
	StageCompleted

	Decision  string `json:"decision"`
	DecidedBy string `json:"decided_by"`
}

func (e ManualDecisionRecorded) GetType() EventType {
	return ManualDecisionRecordedEvent
}
