package repository

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/NTGClarityPK/ntg-tickets-sub002/internal/domain"
	"github.com/NTGClarityPK/ntg-tickets-sub002/internal/workflow"
)

var base = time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)

func draft(id string, created time.Time) *domain.WorkflowDefinition {
	def := workflow.SystemDefaultDefinition(id, "dep-1", created)
	def.Name = "Workflow " + id
	def.Status = domain.WorkflowStatusDraft
	def.IsSystemDefault = false
	def.IsDefault = false
	return def
}

func TestMemoryWorkflows_CommitAndRollback(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()
	repo := store.Workflows()

	err := repo.WithinTx(ctx, "dep-1", func(ctx context.Context, tx WorkflowTx) error {
		return tx.Save(ctx, workflow.SystemDefaultDefinition("sd", "dep-1", base), draft("wf-a", base.Add(time.Minute)))
	})
	require.NoError(t, err)
	assert.EqualValues(t, 1, store.SetVersion("dep-1"))

	boom := errors.New("boom")
	err = repo.WithinTx(ctx, "dep-1", func(ctx context.Context, tx WorkflowTx) error {
		require.NoError(t, tx.Delete(ctx, "wf-a"))
		defs, _ := tx.List(ctx)
		assert.Len(t, defs, 1)
		return boom
	})
	assert.ErrorIs(t, err, boom)
	assert.EqualValues(t, 1, store.SetVersion("dep-1"))

	defs, err := repo.List(ctx, "dep-1")
	require.NoError(t, err)
	require.Len(t, defs, 2)
	assert.Equal(t, "sd", defs[0].ID)

	active, err := repo.GetActive(ctx, "dep-1")
	require.NoError(t, err)
	assert.Equal(t, "sd", active.ID)

	_, err = repo.GetByID(ctx, "dep-2", "sd")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestMemoryWorkflows_RejectsTwoActive(t *testing.T) {
	ctx := context.Background()
	repo := NewMemoryStore().Workflows()

	second := draft("wf-a", base)
	second.Status = domain.WorkflowStatusActive
	err := repo.WithinTx(ctx, "dep-1", func(ctx context.Context, tx WorkflowTx) error {
		return tx.Save(ctx, workflow.SystemDefaultDefinition("sd", "dep-1", base), second)
	})
	assert.ErrorIs(t, err, ErrConstraint)

	defs, _ := repo.List(ctx, "dep-1")
	assert.Empty(t, defs)
}

func TestMemoryWorkflows_ReturnsCopies(t *testing.T) {
	ctx := context.Background()
	repo := NewMemoryStore().Workflows()
	require.NoError(t, repo.WithinTx(ctx, "dep-1", func(ctx context.Context, tx WorkflowTx) error {
		return tx.Save(ctx, workflow.SystemDefaultDefinition("sd", "dep-1", base))
	}))

	got, err := repo.GetByID(ctx, "dep-1", "sd")
	require.NoError(t, err)
	got.Graph.Transitions[0].AllowedRoles[0] = "HACKER"

	again, _ := repo.GetByID(ctx, "dep-1", "sd")
	assert.Equal(t, domain.RoleEndUser, again.Graph.Transitions[0].AllowedRoles[0])
}

func TestMemoryTickets(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()
	require.NoError(t, store.Workflows().WithinTx(ctx, "dep-1", func(ctx context.Context, tx WorkflowTx) error {
		return tx.Save(ctx, workflow.SystemDefaultDefinition("sd", "dep-1", base))
	}))
	tickets := store.Tickets()

	wfID := "sd"
	bound := &domain.Ticket{ID: "t-1", DeploymentID: "dep-1", Status: "New", WorkflowID: &wfID, CreatedAt: base}
	require.NoError(t, tickets.Create(ctx, bound))
	require.NoError(t, tickets.Create(ctx, &domain.Ticket{ID: "t-2", DeploymentID: "dep-1", Status: "Open", CreatedAt: base.Add(time.Second)}))

	missing := "nope"
	assert.ErrorIs(t, tickets.Create(ctx, &domain.Ticket{ID: "t-3", DeploymentID: "dep-1", WorkflowID: &missing}), ErrConstraint)
	assert.ErrorIs(t, tickets.Create(ctx, bound), ErrConstraint)

	n, err := tickets.CountByWorkflow(ctx, "dep-1", "sd")
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	update := bound.Clone()
	update.Status = "Open"
	require.NoError(t, tickets.UpdateStatus(ctx, update, "New"))
	assert.ErrorIs(t, tickets.UpdateStatus(ctx, update, "New"), ErrStatusConflict)

	got, err := tickets.GetByID(ctx, "dep-1", "t-1")
	require.NoError(t, err)
	assert.Equal(t, "Open", got.Status)

	unbound, err := tickets.ListWithFilter(ctx, TicketFilter{DeploymentID: "dep-1", Unbound: true})
	require.NoError(t, err)
	require.Len(t, unbound, 1)
	assert.Equal(t, "t-2", unbound[0].ID)

	err = store.Workflows().WithinTx(ctx, "dep-1", func(ctx context.Context, tx WorkflowTx) error {
		return tx.Delete(ctx, "sd")
	})
	assert.ErrorIs(t, err, ErrConstraint)
}

func TestMemoryTickets_Paging(t *testing.T) {
	ctx := context.Background()
	tickets := NewMemoryStore().Tickets()
	for i := 0; i < 25; i++ {
		require.NoError(t, tickets.Create(ctx, &domain.Ticket{
			ID:           fmt.Sprintf("t-%02d", i),
			DeploymentID: "dep-1",
			Status:       "New",
			CreatedAt:    base.Add(time.Duration(i) * time.Second),
		}))
	}

	page, err := tickets.ListWithFilter(ctx, TicketFilter{DeploymentID: "dep-1", Limit: 10, Offset: 20})
	require.NoError(t, err)
	require.Len(t, page, 5)
	assert.Equal(t, "t-20", page[0].ID)

	page, err = tickets.ListWithFilter(ctx, TicketFilter{DeploymentID: "dep-1", Limit: 10, Offset: 30})
	require.NoError(t, err)
	assert.Empty(t, page)
}

func TestPersistOrder(t *testing.T) {
	activeSD := &domain.WorkflowDefinition{ID: "sd", Status: domain.WorkflowStatusActive, IsSystemDefault: true}
	active := &domain.WorkflowDefinition{ID: "a", Status: domain.WorkflowStatusActive}
	inactiveSD := &domain.WorkflowDefinition{ID: "sd2", Status: domain.WorkflowStatusInactive, IsSystemDefault: true}
	demoted := &domain.WorkflowDefinition{ID: "b", Status: domain.WorkflowStatusInactive}

	got := persistOrder([]*domain.WorkflowDefinition{activeSD, active, nil, inactiveSD, demoted})
	ids := make([]string, len(got))
	for i, d := range got {
		ids[i] = d.ID
	}
	assert.Equal(t, []string{"b", "sd2", "a", "sd"}, ids)
}
