package events

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"

	"github.com/NTGClarityPK/ntg-tickets-sub002/internal/domain"
)

// EventType enumerates supported event identifiers. Each type is its own topic.
type EventType string

const (
	EventTicketCreated       EventType = "ticket_created"
	EventTicketStatusChanged EventType = "ticket_status_changed"
	// EventTransitionAction carries one action a committed transition asked for.
	EventTransitionAction EventType = "transition_action"
	EventWorkflowChanged  EventType = "workflow_changed"
)

// Actor encapsulates actor metadata for an event.
type Actor struct {
	SubjectID string        `json:"subject_id"`
	Roles     []domain.Role `json:"roles,omitempty"`
}

// Event represents a domain event emitted by services.
type Event struct {
	ID           string          `json:"id"`
	Type         EventType       `json:"type"`
	DeploymentID string          `json:"deployment_id"`
	TicketID     string          `json:"ticket_id,omitempty"`
	Actor        Actor           `json:"actor"`
	Timestamp    time.Time       `json:"timestamp"`
	Payload      json.RawMessage `json:"payload"`
}

// NewEvent builds an event with a fresh ID and payload encoded as JSON.
func NewEvent(eventType EventType, deploymentID, ticketID string, actor Actor, payload any) (Event, error) {
	raw, err := json.Marshal(payload)
	if err != nil {
		return Event{}, err
	}
	return Event{
		ID:           uuid.NewString(),
		Type:         eventType,
		DeploymentID: deploymentID,
		TicketID:     ticketID,
		Actor:        actor,
		Timestamp:    time.Now().UTC(),
		Payload:      raw,
	}, nil
}

// Decode unmarshals the payload into v.
func (e Event) Decode(v any) error {
	return json.Unmarshal(e.Payload, v)
}

// TicketCreatedPayload payload.
type TicketCreatedPayload struct {
	WorkflowID      string `json:"workflow_id"`
	WorkflowVersion int    `json:"workflow_version"`
	Status          string `json:"status"`
}

// TicketStatusChangedPayload payload.
type TicketStatusChangedPayload struct {
	OldStatus    string  `json:"old_status"`
	NewStatus    string  `json:"new_status"`
	WorkflowID   *string `json:"workflow_id,omitempty"`
	TransitionID string  `json:"transition_id"`
	Comment      string  `json:"comment,omitempty"`
}

// TransitionActionPayload payload. Sequence is the action's position in the
// transition's action list.
type TransitionActionPayload struct {
	Action       domain.ActionKind `json:"action"`
	Sequence     int               `json:"sequence"`
	TransitionID string            `json:"transition_id"`
	From         string            `json:"from"`
	To           string            `json:"to"`
	WorkflowID   string            `json:"workflow_id,omitempty"`
	AssigneeID   *string           `json:"assignee_id,omitempty"`
}

// WorkflowChangedPayload payload.
type WorkflowChangedPayload struct {
	Operation  string                `json:"operation"`
	WorkflowID string                `json:"workflow_id"`
	Status     domain.WorkflowStatus `json:"status,omitempty"`
	Version    int                   `json:"version,omitempty"`
	ActiveID   string                `json:"active_id"`
	Repairs    []string              `json:"repairs,omitempty"`
}
