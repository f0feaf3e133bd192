package service

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/NTGClarityPK/ntg-tickets-sub002/internal/domain"
	"github.com/NTGClarityPK/ntg-tickets-sub002/internal/events"
	"github.com/NTGClarityPK/ntg-tickets-sub002/internal/repository"
	"github.com/NTGClarityPK/ntg-tickets-sub002/internal/workflow"
	apperrors "github.com/NTGClarityPK/ntg-tickets-sub002/pkg/util/errorutil"
)

func TestCreateTicket_RoleNotAllowedOnCreateTransition(t *testing.T) {
	f := newFixture(t)
	f.createWorkflow(t, "A", domain.WorkflowStatusActive)

	_, err := f.tickets.CreateTicket(context.Background(), actor(domain.RoleSupportStaff), CreateTicketInput{})
	require.ErrorIs(t, err, workflow.ErrRoleNotAllowed)

	var denied *workflow.DeniedError
	require.ErrorAs(t, err, &denied)
	assert.Equal(t, []domain.Role{domain.RoleEndUser}, denied.AllowedRoles)

	tickets, err := f.store.Tickets().ListWithFilter(context.Background(), repository.TicketFilter{DeploymentID: testDeployment})
	require.NoError(t, err)
	assert.Empty(t, tickets)
}

func TestCreateTicket_BindsSnapshotAndDispatchesActions(t *testing.T) {
	f := newFixture(t)
	a := f.createWorkflow(t, "A", domain.WorkflowStatusActive)
	f.dispatcher.reset()

	res, err := f.tickets.CreateTicket(context.Background(), actor(domain.RoleEndUser), CreateTicketInput{})
	require.NoError(t, err)

	ticket := res.Ticket
	assert.Equal(t, "New", ticket.Status)
	require.NotNil(t, ticket.WorkflowID)
	assert.Equal(t, a.ID, *ticket.WorkflowID)
	require.NotNil(t, ticket.WorkflowVersion)
	assert.Equal(t, a.Version, *ticket.WorkflowVersion)
	require.NotNil(t, ticket.WorkflowSnapshot)
	assert.Equal(t, a.Graph, ticket.WorkflowSnapshot.Graph)
	assert.Equal(t, a.Name, ticket.WorkflowSnapshot.WorkflowName)

	stored, err := f.store.Tickets().GetByID(context.Background(), testDeployment, ticket.ID)
	require.NoError(t, err)
	assert.Equal(t, ticket.WorkflowSnapshot.Graph, stored.WorkflowSnapshot.Graph)

	assert.Len(t, f.dispatcher.ofType(events.EventTicketCreated), 1)
	actions := f.dispatcher.ofType(events.EventTransitionAction)
	require.Len(t, actions, 1)
	var payload events.TransitionActionPayload
	require.NoError(t, actions[0].Decode(&payload))
	assert.Equal(t, domain.ActionSendNotification, payload.Action)
	assert.Equal(t, "t-create", payload.TransitionID)
}

func TestCreateTicket_ExplicitWorkflowMustBeActive(t *testing.T) {
	f := newFixture(t)
	draft := f.createWorkflow(t, "Draft", "")

	_, err := f.tickets.CreateTicket(context.Background(), actor(domain.RoleEndUser), CreateTicketInput{WorkflowID: strPtr(draft.ID)})
	assert.ErrorIs(t, err, workflow.ErrInvalidStatusChange)

	_, err = f.tickets.CreateTicket(context.Background(), actor(domain.RoleEndUser), CreateTicketInput{WorkflowID: strPtr("missing")})
	assert.ErrorIs(t, err, workflow.ErrWorkflowNotFound)
}

func TestTransitionTicket_ConditionsAndOrderedActions(t *testing.T) {
	f := newFixture(t)
	f.createWorkflow(t, "A", domain.WorkflowStatusActive)
	ctx := context.Background()

	res, err := f.tickets.CreateTicket(ctx, actor(domain.RoleEndUser), CreateTicketInput{})
	require.NoError(t, err)
	id := res.Ticket.ID

	_, err = f.tickets.TransitionTicket(ctx, actor(domain.RoleEndUser), id, "Open", TransitionEvidence{})
	require.ErrorIs(t, err, workflow.ErrRoleNotAllowed)

	_, err = f.tickets.TransitionTicket(ctx, actor(domain.RoleSupportStaff), id, "Closed", TransitionEvidence{})
	require.ErrorIs(t, err, workflow.ErrNoSuchTransition)

	_, err = f.tickets.TransitionTicket(ctx, actor(domain.RoleSupportStaff), id, "Open", TransitionEvidence{})
	require.NoError(t, err)

	_, err = f.tickets.TransitionTicket(ctx, actor(domain.RoleSupportStaff), id, "Closed", TransitionEvidence{})
	require.ErrorIs(t, err, workflow.ErrConditionUnsatisfied)
	var denied *workflow.DeniedError
	require.ErrorAs(t, err, &denied)
	assert.Equal(t, []domain.ConditionKind{domain.ConditionCommentRequired}, denied.Missing)

	f.dispatcher.reset()
	res, err = f.tickets.TransitionTicket(ctx, actor(domain.RoleSupportStaff), id, "closed", TransitionEvidence{Comment: "fixed"})
	require.NoError(t, err)
	assert.Equal(t, "Closed", res.Ticket.Status)

	actions := f.dispatcher.ofType(events.EventTransitionAction)
	require.Len(t, actions, 2)
	var first, second events.TransitionActionPayload
	require.NoError(t, actions[0].Decode(&first))
	require.NoError(t, actions[1].Decode(&second))
	assert.Equal(t, domain.ActionNotifyRequester, first.Action)
	assert.Equal(t, 0, first.Sequence)
	assert.Equal(t, domain.ActionSendEmail, second.Action)
	assert.Equal(t, 1, second.Sequence)

	changed := f.dispatcher.ofType(events.EventTicketStatusChanged)
	require.Len(t, changed, 1)
	var payload events.TicketStatusChangedPayload
	require.NoError(t, changed[0].Decode(&payload))
	assert.Equal(t, "Open", payload.OldStatus)
	assert.Equal(t, "Closed", payload.NewStatus)
	assert.Equal(t, "fixed", payload.Comment)
}

func TestTransitionTicket_SnapshotSurvivesWorkflowEdit(t *testing.T) {
	f := newFixture(t)
	a := f.createWorkflow(t, "A", domain.WorkflowStatusActive)
	ctx := context.Background()

	res, err := f.tickets.CreateTicket(ctx, actor(domain.RoleEndUser), CreateTicketInput{})
	require.NoError(t, err)

	edited := basicInput("A v2")
	edited.Graph.States = edited.Graph.States[:2]
	edited.Graph.Transitions = edited.Graph.Transitions[:1]
	edited.WorkingStatuses = []domain.StatusKey{domain.UnqualifiedKey("New")}
	edited.DoneStatuses = nil
	updated, err := f.workflows.UpdateWorkflow(ctx, admin(), a.ID, edited)
	require.NoError(t, err)
	require.Equal(t, 2, updated.Version)

	got, err := f.tickets.TransitionTicket(ctx, actor(domain.RoleSupportStaff), res.Ticket.ID, "Open", TransitionEvidence{})
	require.NoError(t, err)
	assert.Equal(t, "Open", got.Ticket.Status)
	assert.Equal(t, 1, *got.Ticket.WorkflowVersion)

	fresh, err := f.tickets.CreateTicket(ctx, actor(domain.RoleEndUser), CreateTicketInput{})
	require.NoError(t, err)
	_, err = f.tickets.TransitionTicket(ctx, actor(domain.RoleSupportStaff), fresh.Ticket.ID, "Open", TransitionEvidence{})
	assert.ErrorIs(t, err, workflow.ErrNoSuchTransition, "new tickets follow the edited workflow")
}

func TestTransitionTicket_LegacyTicketUsesActiveWorkflow(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	legacy := &domain.Ticket{ID: "legacy-1", DeploymentID: testDeployment, Status: "Open", CreatedAt: f.now(), UpdatedAt: f.now()}
	require.NoError(t, f.store.Tickets().Create(ctx, legacy))
	staff := actor(domain.RoleSupportStaff)
	evidence := TransitionEvidence{Comment: "done"}

	_, err := f.tickets.TransitionTicket(ctx, staff, legacy.ID, "Closed", evidence)
	require.ErrorIs(t, err, workflow.ErrNoSuchTransition, "the system default has no Open to Closed edge")

	f.createWorkflow(t, "A", domain.WorkflowStatusActive)
	res, err := f.tickets.TransitionTicket(ctx, staff, legacy.ID, "Closed", evidence)
	require.NoError(t, err)
	assert.Equal(t, "Closed", res.Ticket.Status)
	assert.Nil(t, res.Ticket.WorkflowID)
	assert.Nil(t, res.Ticket.WorkflowSnapshot)
}

func TestTransitionTicket_AssigneeRequired(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	res, err := f.tickets.CreateTicket(ctx, actor(domain.RoleEndUser), CreateTicketInput{})
	require.NoError(t, err)
	staff := actor(domain.RoleSupportStaff)

	_, err = f.tickets.TransitionTicket(ctx, staff, res.Ticket.ID, "Open", TransitionEvidence{})
	require.NoError(t, err)

	_, err = f.tickets.TransitionTicket(ctx, staff, res.Ticket.ID, "In Progress", TransitionEvidence{})
	require.ErrorIs(t, err, workflow.ErrConditionUnsatisfied)

	got, err := f.tickets.TransitionTicket(ctx, staff, res.Ticket.ID, "IN_PROGRESS", TransitionEvidence{AssigneeID: strPtr("agent-7")})
	require.NoError(t, err)
	require.NotNil(t, got.Ticket.AssigneeID)
	assert.Equal(t, "agent-7", *got.Ticket.AssigneeID)
}

func TestTransitionTicket_UnknownTicket(t *testing.T) {
	f := newFixture(t)
	_, err := f.tickets.TransitionTicket(context.Background(), admin(), "nope", "Open", TransitionEvidence{})
	require.ErrorIs(t, err, repository.ErrNotFound)
	assert.Equal(t, apperrors.CodeNotFound, apperrors.ToDomainError(err).Code)
}

func TestPreviewTransitions(t *testing.T) {
	f := newFixture(t)
	f.createWorkflow(t, "A", domain.WorkflowStatusActive)
	ctx := context.Background()
	res, err := f.tickets.CreateTicket(ctx, actor(domain.RoleEndUser), CreateTicketInput{})
	require.NoError(t, err)

	ticket, decisions, err := f.tickets.PreviewTransitions(ctx, actor(domain.RoleEndUser), res.Ticket.ID)
	require.NoError(t, err)
	assert.Equal(t, "New", ticket.Status)
	require.Len(t, decisions, 1)
	assert.Equal(t, "Open", decisions[0].To)
	assert.False(t, decisions[0].Allowed)
	assert.Equal(t, workflow.ReasonRoleNotAllowed, decisions[0].Reason)
}

func TestEvidenceConditionChecker(t *testing.T) {
	c := EvidenceConditionChecker{}
	ctx := context.Background()
	assigned := &domain.Ticket{AssigneeID: strPtr("a-1")}

	assert.False(t, c.Satisfied(ctx, nil, domain.ConditionCommentRequired, TransitionEvidence{Comment: "  "}))
	assert.True(t, c.Satisfied(ctx, nil, domain.ConditionCommentRequired, TransitionEvidence{Comment: "ok"}))
	assert.False(t, c.Satisfied(ctx, nil, domain.ConditionAttachmentRequired, TransitionEvidence{}))
	assert.True(t, c.Satisfied(ctx, nil, domain.ConditionAttachmentRequired, TransitionEvidence{Attachments: 1}))
	assert.True(t, c.Satisfied(ctx, assigned, domain.ConditionAssigneeRequired, TransitionEvidence{}))
	assert.False(t, c.Satisfied(ctx, &domain.Ticket{}, domain.ConditionAssigneeRequired, TransitionEvidence{}))
	assert.False(t, c.Satisfied(ctx, assigned, domain.ConditionKind("SIGNED_OFF"), TransitionEvidence{}))
}
