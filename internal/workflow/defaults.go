package workflow

import (
	"time"

	"github.com/NTGClarityPK/ntg-tickets-sub002/internal/domain"
)

// SystemDefaultName is the name seeded into a deployment with no workflows.
const SystemDefaultName = "System Default"

var (
	everyone = []domain.Role{domain.RoleEndUser, domain.RoleSupportStaff, domain.RoleSupportManager, domain.RoleAdmin}
	staff    = []domain.Role{domain.RoleSupportStaff, domain.RoleSupportManager, domain.RoleAdmin}
)

// SystemDefaultDefinition returns the built-in workflow every deployment
// falls back to.
func SystemDefaultDefinition(id, deploymentID string, now time.Time) *domain.WorkflowDefinition {
	graph := domain.WorkflowGraph{
		States: []domain.State{
			{ID: domain.CreateStateID, Name: "Create", IsInitial: true},
			{ID: "new", Name: "New"},
			{ID: "open", Name: "Open"},
			{ID: "in_progress", Name: "In Progress"},
			{ID: "on_hold", Name: "On Hold"},
			{ID: "resolved", Name: "Resolved"},
			{ID: "closed", Name: "Closed"},
			{ID: "reopened", Name: "Reopened"},
		},
		Transitions: []domain.Transition{
			{ID: "create-new", From: domain.CreateStateID, To: "new", Label: "Create", AllowedRoles: everyone, Actions: []domain.ActionKind{domain.ActionSendNotification}, IsCreateTransition: true},
			{ID: "new-open", From: "new", To: "open", Label: "Triage", AllowedRoles: staff},
			{ID: "open-in_progress", From: "open", To: "in_progress", Label: "Start work", AllowedRoles: staff, Conditions: []domain.ConditionKind{domain.ConditionAssigneeRequired}},
			{ID: "in_progress-on_hold", From: "in_progress", To: "on_hold", Label: "Put on hold", AllowedRoles: staff, Conditions: []domain.ConditionKind{domain.ConditionCommentRequired}, Actions: []domain.ActionKind{domain.ActionNotifyRequester}},
			{ID: "on_hold-in_progress", From: "on_hold", To: "in_progress", Label: "Resume", AllowedRoles: staff},
			{ID: "in_progress-resolved", From: "in_progress", To: "resolved", Label: "Resolve", AllowedRoles: staff, Conditions: []domain.ConditionKind{domain.ConditionCommentRequired}, Actions: []domain.ActionKind{domain.ActionNotifyRequester, domain.ActionSendEmail}},
			{ID: "resolved-closed", From: "resolved", To: "closed", Label: "Close", AllowedRoles: everyone, Actions: []domain.ActionKind{domain.ActionSendNotification}},
			{ID: "resolved-reopened", From: "resolved", To: "reopened", Label: "Reopen", AllowedRoles: []domain.Role{domain.RoleEndUser, domain.RoleSupportManager}, Conditions: []domain.ConditionKind{domain.ConditionCommentRequired}, Actions: []domain.ActionKind{domain.ActionNotifyAssignee}},
			{ID: "reopened-in_progress", From: "reopened", To: "in_progress", Label: "Resume", AllowedRoles: staff},
		},
	}

	layout := domain.Layout{Nodes: make(map[string]domain.NodeLayout, len(graph.States))}
	colors := map[string]string{
		domain.CreateStateID: "#64748b",
		"new":                "#3b82f6",
		"open":               "#0ea5e9",
		"in_progress":        "#f59e0b",
		"on_hold":            "#a855f7",
		"resolved":           "#22c55e",
		"closed":             "#16a34a",
		"reopened":           "#ef4444",
	}
	for i, s := range graph.States {
		nodeType := NodeTypeDefault
		if s.ID == domain.CreateStateID {
			nodeType = NodeTypeStart
		}
		layout.Nodes[s.ID] = domain.NodeLayout{
			Type:     nodeType,
			Position: domain.Position{X: float64(i) * 220, Y: 100},
			Color:    colors[s.ID],
		}
	}

	return &domain.WorkflowDefinition{
		ID:              id,
		DeploymentID:    deploymentID,
		Name:            SystemDefaultName,
		Description:     "Built-in workflow used when no other workflow is active.",
		Version:         1,
		Graph:           graph,
		Layout:          layout,
		WorkingStatuses: []domain.StatusKey{domain.UnqualifiedKey("New"), domain.UnqualifiedKey("Open"), domain.UnqualifiedKey("In Progress"), domain.UnqualifiedKey("Reopened")},
		DoneStatuses:    []domain.StatusKey{domain.UnqualifiedKey("Resolved"), domain.UnqualifiedKey("Closed")},
		Status:          domain.WorkflowStatusActive,
		IsDefault:       true,
		IsSystemDefault: true,
		CreatedAt:       now.UTC(),
		UpdatedAt:       now.UTC(),
	}
}
