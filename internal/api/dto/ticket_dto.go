package dto

import (
	"time"
)

// CreateTicketRequest payload. WorkflowID pins an active workflow; empty
// selects the deployment's active one.
type CreateTicketRequest struct {
	WorkflowID  *string `json:"workflowId" validate:"omitempty,min=1"`
	Comment     string  `json:"comment"`
	Attachments int     `json:"attachments" validate:"gte=0"`
	AssigneeID  *string `json:"assigneeId" validate:"omitempty,min=1"`
}

// TransitionRequest moves a ticket to Target with the evidence its conditions need.
type TransitionRequest struct {
	Target      string  `json:"target" validate:"required"`
	Comment     string  `json:"comment"`
	Attachments int     `json:"attachments" validate:"gte=0"`
	AssigneeID  *string `json:"assigneeId" validate:"omitempty,min=1"`
}

// TicketSummary response.
type TicketSummary struct {
	ID              string    `json:"id"`
	Status          string    `json:"status"`
	WorkflowID      *string   `json:"workflowId"`
	WorkflowName    string    `json:"workflowName,omitempty"`
	WorkflowVersion *int      `json:"workflowVersion"`
	AssigneeID      *string   `json:"assigneeId"`
	CreatedAt       time.Time `json:"createdAt"`
	UpdatedAt       time.Time `json:"updatedAt"`
}

// TransitionResponse pairs the updated ticket with the decision that allowed it.
type TransitionResponse struct {
	Ticket   TicketSummary    `json:"ticket"`
	Decision DecisionResponse `json:"decision"`
}

// TransitionPreviewResponse lists every move out of the ticket's current status.
type TransitionPreviewResponse struct {
	Ticket      TicketSummary      `json:"ticket"`
	Transitions []DecisionResponse `json:"transitions"`
}

// CategorizeResponse reports the bucket of one status.
type CategorizeResponse struct {
	Status     string  `json:"status"`
	WorkflowID *string `json:"workflowId"`
	Bucket     string  `json:"bucket"`
}

// DashboardResponse aggregates ticket counts per bucket.
type DashboardResponse struct {
	ActiveWorkflowID string                    `json:"activeWorkflowId"`
	Total            int                       `json:"total"`
	Buckets          map[string]int            `json:"buckets"`
	Statuses         map[string]map[string]int `json:"statuses"`
}
