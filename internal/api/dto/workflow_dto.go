package dto

import (
	"encoding/json"
	"time"

	"github.com/NTGClarityPK/ntg-tickets-sub002/internal/domain"
)

// WorkflowRequest is the create and update payload. Document holds the
// nodes/edges JSON produced by the designer.
type WorkflowRequest struct {
	Name            string                `json:"name" validate:"required,max=200"`
	Description     string                `json:"description" validate:"max=2000"`
	Document        json.RawMessage       `json:"document" validate:"required"`
	WorkingStatuses []domain.StatusKey    `json:"workingStatuses"`
	DoneStatuses    []domain.StatusKey    `json:"doneStatuses"`
	Status          domain.WorkflowStatus `json:"status" validate:"omitempty,oneof=DRAFT ACTIVE INACTIVE"`
	IsDefault       bool                  `json:"isDefault"`
}

// ActivateWorkflowRequest optionally replaces the categorization on activation.
type ActivateWorkflowRequest struct {
	WorkingStatuses []domain.StatusKey `json:"workingStatuses"`
	DoneStatuses    []domain.StatusKey `json:"doneStatuses"`
}

// HasCategorization reports whether either list was sent.
func (r ActivateWorkflowRequest) HasCategorization() bool {
	return r.WorkingStatuses != nil || r.DoneStatuses != nil
}

// EvaluateTransitionRequest asks whether roles may move from one status to another.
type EvaluateTransitionRequest struct {
	WorkflowID string        `json:"workflowId"`
	From       string        `json:"from"`
	To         string        `json:"to" validate:"required"`
	Roles      []domain.Role `json:"roles" validate:"dive,oneof=END_USER SUPPORT_STAFF SUPPORT_MANAGER ADMIN"`
}

// WorkflowResponse is a stored definition with its graph as a document.
type WorkflowResponse struct {
	ID              string                `json:"id"`
	DeploymentID    string                `json:"deploymentId"`
	Name            string                `json:"name"`
	Description     string                `json:"description"`
	Version         int                   `json:"version"`
	Document        json.RawMessage       `json:"document"`
	WorkingStatuses []domain.StatusKey    `json:"workingStatuses"`
	DoneStatuses    []domain.StatusKey    `json:"doneStatuses"`
	Status          domain.WorkflowStatus `json:"status"`
	IsDefault       bool                  `json:"isDefault"`
	IsSystemDefault bool                  `json:"isSystemDefault"`
	CreatedAt       time.Time             `json:"createdAt"`
	UpdatedAt       time.Time             `json:"updatedAt"`
}

// WorkflowSummary is the list view of a definition.
type WorkflowSummary struct {
	ID              string                `json:"id"`
	Name            string                `json:"name"`
	Version         int                   `json:"version"`
	Status          domain.WorkflowStatus `json:"status"`
	IsDefault       bool                  `json:"isDefault"`
	IsSystemDefault bool                  `json:"isSystemDefault"`
	UpdatedAt       time.Time             `json:"updatedAt"`
}

// DecisionResponse explains one evaluation outcome.
type DecisionResponse struct {
	Allowed      bool                   `json:"allowed"`
	Reason       string                 `json:"reason,omitempty"`
	From         string                 `json:"from"`
	To           string                 `json:"to"`
	TransitionID string                 `json:"transitionId,omitempty"`
	Label        string                 `json:"label,omitempty"`
	AllowedRoles []domain.Role          `json:"allowedRoles,omitempty"`
	Conditions   []domain.ConditionKind `json:"conditions,omitempty"`
	Actions      []domain.ActionKind    `json:"actions,omitempty"`
	Unsatisfied  []domain.ConditionKind `json:"unsatisfied,omitempty"`
}
