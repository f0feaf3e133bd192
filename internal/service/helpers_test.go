package service

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/NTGClarityPK/ntg-tickets-sub002/internal/domain"
	"github.com/NTGClarityPK/ntg-tickets-sub002/internal/events"
	"github.com/NTGClarityPK/ntg-tickets-sub002/internal/repository"
	"github.com/NTGClarityPK/ntg-tickets-sub002/internal/workflow"
)

const testDeployment = "dep-1"

type recordingDispatcher struct {
	mu     sync.Mutex
	events []events.Event
}

func (d *recordingDispatcher) Publish(_ context.Context, event events.Event) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.events = append(d.events, event)
	return nil
}

func (d *recordingDispatcher) Subscribe(events.EventType, events.EventHandler) {}

func (d *recordingDispatcher) Close() error { return nil }

func (d *recordingDispatcher) ofType(eventType events.EventType) []events.Event {
	d.mu.Lock()
	defer d.mu.Unlock()
	var out []events.Event
	for _, e := range d.events {
		if e.Type == eventType {
			out = append(out, e)
		}
	}
	return out
}

func (d *recordingDispatcher) reset() {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.events = nil
}

type countingCache struct {
	mu          sync.Mutex
	entries     map[string]*domain.WorkflowDefinition
	invalidated int
}

func newCountingCache() *countingCache {
	return &countingCache{entries: make(map[string]*domain.WorkflowDefinition)}
}

func (c *countingCache) Get(_ context.Context, deploymentID string) (*domain.WorkflowDefinition, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	def, ok := c.entries[deploymentID]
	return def.Clone(), ok
}

func (c *countingCache) Set(_ context.Context, def *domain.WorkflowDefinition) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[def.DeploymentID] = def.Clone()
}

func (c *countingCache) Invalidate(_ context.Context, deploymentID string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.entries, deploymentID)
	c.invalidated++
}

type fixture struct {
	store      *repository.MemoryStore
	cache      *countingCache
	dispatcher *recordingDispatcher
	workflows  *WorkflowService
	tickets    *TicketWorkflowService
	reports    *ReportService

	mu    sync.Mutex
	clock time.Time
	seq   int
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	f := &fixture{
		store:      repository.NewMemoryStore(),
		cache:      newCountingCache(),
		dispatcher: &recordingDispatcher{},
		clock:      time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC),
	}
	f.workflows = NewWorkflowService(WorkflowDependencies{
		WorkflowRepo: f.store.Workflows(),
		Cache:        f.cache,
		Dispatcher:   f.dispatcher,
		Now:          f.now,
		NewID:        f.nextID,
	})
	f.tickets = NewTicketWorkflowService(TicketWorkflowDependencies{
		TicketRepo: f.store.Tickets(),
		Workflows:  f.workflows,
		Dispatcher: f.dispatcher,
		Now:        f.now,
		NewID:      f.nextID,
	})
	f.reports = NewReportService(f.store.Tickets(), f.workflows, 3, 2, nil)

	_, err := f.workflows.EnsureSystemDefault(context.Background(), testDeployment)
	require.NoError(t, err)
	return f
}

// now advances a minute per call so creation order is observable.
func (f *fixture) now() time.Time {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.clock = f.clock.Add(time.Minute)
	return f.clock
}

func (f *fixture) nextID() string {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.seq++
	return fmt.Sprintf("id-%03d", f.seq)
}

func actor(roles ...domain.Role) domain.Actor {
	return domain.Actor{SubjectID: "user-1", Roles: domain.NewRoleSet(roles...), DeploymentID: testDeployment}
}

func admin() domain.Actor {
	return actor(domain.RoleAdmin)
}

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

func basicInput(name string) WorkflowInput {
	return WorkflowInput{
		Name:            name,
		Graph:           basicGraph(),
		WorkingStatuses: []domain.StatusKey{domain.UnqualifiedKey("New"), domain.UnqualifiedKey("Open")},
		DoneStatuses:    []domain.StatusKey{domain.UnqualifiedKey("Closed")},
	}
}

func (f *fixture) createWorkflow(t *testing.T, name string, status domain.WorkflowStatus) *domain.WorkflowDefinition {
	t.Helper()
	in := basicInput(name)
	in.Status = status
	def, err := f.workflows.CreateWorkflow(context.Background(), admin(), in)
	require.NoError(t, err)
	return def
}

func (f *fixture) status(t *testing.T, id string) domain.WorkflowStatus {
	t.Helper()
	def, err := f.workflows.GetWorkflow(context.Background(), testDeployment, id)
	require.NoError(t, err)
	return def.Status
}

func (f *fixture) systemDefault(t *testing.T) *domain.WorkflowDefinition {
	t.Helper()
	defs, err := f.workflows.ListWorkflows(context.Background(), testDeployment)
	require.NoError(t, err)
	for _, d := range defs {
		if d.IsSystemDefault {
			return d
		}
	}
	t.Fatal("no system default workflow")
	return nil
}

func (f *fixture) requireSingleActive(t *testing.T) *domain.WorkflowDefinition {
	t.Helper()
	defs, err := f.workflows.ListWorkflows(context.Background(), testDeployment)
	require.NoError(t, err)
	require.NoError(t, workflow.NewRoster(defs, time.Now()).Verify())
	for _, d := range defs {
		if d.IsActive() {
			return d
		}
	}
	return nil
}

func strPtr(s string) *string {
	return &s
}

func decisionWithActions(actions ...domain.ActionKind) workflow.Decision {
	return workflow.Decision{
		Allowed:    true,
		From:       "Open",
		To:         "Closed",
		Transition: &domain.Transition{ID: "t-close"},
		Actions:    actions,
	}
}
