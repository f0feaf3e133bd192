package workflow

import (
	"time"

	"github.com/NTGClarityPK/ntg-tickets-sub002/internal/domain"
)

var testNow = time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)

func basicGraph() domain.WorkflowGraph {
	return domain.WorkflowGraph{
		States: []domain.State{
			{ID: domain.CreateStateID, Name: "Create", IsInitial: true},
			{ID: "new", Name: "New"},
			{ID: "open", Name: "Open"},
			{ID: "closed", Name: "Closed"},
		},
		Transitions: []domain.Transition{
			{ID: "t-create", From: domain.CreateStateID, To: "new", Label: "Create", AllowedRoles: []domain.Role{domain.RoleEndUser}, Actions: []domain.ActionKind{domain.ActionSendNotification}, IsCreateTransition: true},
			{ID: "t-open", From: "new", To: "open", Label: "Open", AllowedRoles: []domain.Role{domain.RoleSupportStaff}},
			{ID: "t-close", From: "open", To: "closed", Label: "Close", AllowedRoles: []domain.Role{domain.RoleSupportStaff, domain.RoleAdmin}, Conditions: []domain.ConditionKind{domain.ConditionCommentRequired}, Actions: []domain.ActionKind{domain.ActionNotifyRequester, domain.ActionSendEmail}},
		},
	}
}

func basicDefinition(id string) *domain.WorkflowDefinition {
	return &domain.WorkflowDefinition{
		ID:              id,
		DeploymentID:    "dep-1",
		Name:            "Workflow " + id,
		Version:         1,
		Graph:           basicGraph(),
		WorkingStatuses: []domain.StatusKey{domain.UnqualifiedKey("New"), domain.UnqualifiedKey("Open")},
		DoneStatuses:    []domain.StatusKey{domain.UnqualifiedKey("Closed")},
		Status:          domain.WorkflowStatusDraft,
		CreatedAt:       testNow,
		UpdatedAt:       testNow,
	}
}

func strPtr(s string) *string {
	return &s
}
