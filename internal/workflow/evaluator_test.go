package workflow

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/NTGClarityPK/ntg-tickets-sub002/internal/domain"
)

func TestEvaluateCreate_RoleNotAllowed(t *testing.T) {
	def := basicDefinition("wf-1")

	d := EvaluateCreate(def, domain.NewRoleSet(domain.RoleSupportStaff))
	assert.False(t, d.Allowed)
	assert.Equal(t, ReasonRoleNotAllowed, d.Reason)

	err := d.Err()
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrRoleNotAllowed))
	var denied *DeniedError
	require.ErrorAs(t, err, &denied)
	assert.Equal(t, []domain.Role{domain.RoleEndUser}, denied.AllowedRoles)
	assert.Contains(t, err.Error(), "your role cannot")
}

func TestEvaluateCreate_Allowed(t *testing.T) {
	d := EvaluateCreate(basicDefinition("wf-1"), domain.NewRoleSet(domain.RoleEndUser))
	require.True(t, d.Allowed)
	assert.Equal(t, "New", d.To)
	assert.Equal(t, []domain.ActionKind{domain.ActionSendNotification}, d.Actions)
	assert.NoError(t, d.Err())
}

func TestEvaluateCreate_NilDefinition(t *testing.T) {
	d := EvaluateCreate(nil, domain.NewRoleSet(domain.RoleAdmin))
	assert.False(t, d.Allowed)
	assert.ErrorIs(t, d.Err(), ErrNoSuchTransition)
}

func TestEvaluate(t *testing.T) {
	snap := Bind(basicDefinition("wf-1"), testNow)

	tests := []struct {
		name    string
		from    string
		to      string
		roles   domain.RoleSet
		allowed bool
		reason  DenialReason
		actions []domain.ActionKind
	}{
		{name: "allowed by name", from: "New", to: "Open", roles: domain.NewRoleSet(domain.RoleSupportStaff), allowed: true},
		{name: "allowed by normalized name", from: "OPEN", to: "closed", roles: domain.NewRoleSet(domain.RoleAdmin), allowed: true, actions: []domain.ActionKind{domain.ActionNotifyRequester, domain.ActionSendEmail}},
		{name: "any role in the set suffices", from: "new", to: "open", roles: domain.NewRoleSet(domain.RoleEndUser, domain.RoleSupportStaff), allowed: true},
		{name: "role not allowed", from: "New", to: "Open", roles: domain.NewRoleSet(domain.RoleEndUser), reason: ReasonRoleNotAllowed},
		{name: "no edge", from: "New", to: "Closed", roles: domain.NewRoleSet(domain.RoleAdmin), reason: ReasonNoSuchTransition},
		{name: "unknown state", from: "New", to: "Escalated", roles: domain.NewRoleSet(domain.RoleAdmin), reason: ReasonNoSuchTransition},
		{name: "create transition is not reusable", from: "create", to: "New", roles: domain.NewRoleSet(domain.RoleEndUser), reason: ReasonNoSuchTransition},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d := Evaluate(snap, tt.from, tt.to, tt.roles)
			assert.Equal(t, tt.allowed, d.Allowed)
			assert.Equal(t, tt.reason, d.Reason)
			if tt.actions != nil {
				assert.Equal(t, tt.actions, d.Actions)
			}
		})
	}
}

func TestEvaluate_UnboundTicket(t *testing.T) {
	d := Evaluate(nil, "New", "Open", domain.NewRoleSet(domain.RoleAdmin))
	assert.False(t, d.Allowed)
	assert.ErrorIs(t, d.Err(), ErrNoSuchTransition)
	assert.Equal(t, "ticket is not bound to a workflow", d.Err().Error())
}

func TestEvaluate_EmptyRoleListDeniesEveryone(t *testing.T) {
	def := basicDefinition("wf-1")
	def.Graph.Transitions[1].AllowedRoles = nil

	d := Evaluate(Bind(def, testNow), "New", "Open", domain.NewRoleSet(domain.RoleAdmin, domain.RoleSupportStaff))
	assert.Equal(t, ReasonRoleNotAllowed, d.Reason)
}

func TestCheckConditions(t *testing.T) {
	snap := Bind(basicDefinition("wf-1"), testNow)
	d := Evaluate(snap, "Open", "Closed", domain.NewRoleSet(domain.RoleSupportStaff))
	require.True(t, d.Allowed)
	assert.Equal(t, []domain.ConditionKind{domain.ConditionCommentRequired}, d.Conditions)

	denied := CheckConditions(d, ConditionFunc(func(domain.ConditionKind) bool { return false }))
	assert.False(t, denied.Allowed)
	assert.Equal(t, ReasonConditionUnsatisfied, denied.Reason)
	assert.Equal(t, []domain.ConditionKind{domain.ConditionCommentRequired}, denied.Unsatisfied)
	assert.Empty(t, denied.Actions)
	assert.ErrorIs(t, denied.Err(), ErrConditionUnsatisfied)
	assert.Contains(t, denied.Err().Error(), "COMMENT_REQUIRED")

	ok := CheckConditions(d, ConditionFunc(func(c domain.ConditionKind) bool { return c == domain.ConditionCommentRequired }))
	assert.True(t, ok.Allowed)
	assert.Len(t, ok.Actions, 2)

	// A nil checker satisfies nothing.
	assert.False(t, CheckConditions(d, nil).Allowed)
}

func TestAvailableTransitions(t *testing.T) {
	g := SystemDefaultDefinition("sd", "dep-1", testNow).Graph

	got := AvailableTransitions(g, "Resolved", domain.NewRoleSet(domain.RoleEndUser))
	require.Len(t, got, 2)
	assert.Equal(t, "Closed", got[0].To)
	assert.True(t, got[0].Allowed)
	assert.Equal(t, "Reopened", got[1].To)
	assert.True(t, got[1].Allowed)

	got = AvailableTransitions(g, "Resolved", domain.NewRoleSet(domain.RoleSupportStaff))
	require.Len(t, got, 2)
	assert.False(t, got[1].Allowed)
	assert.Equal(t, ReasonRoleNotAllowed, got[1].Reason)

	assert.Empty(t, AvailableTransitions(g, "create", domain.NewRoleSet(domain.RoleAdmin)))
}
