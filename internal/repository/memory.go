package repository

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/NTGClarityPK/ntg-tickets-sub002/internal/domain"
)

// MemoryStore keeps workflows and tickets in process memory. It backs the
// service when no POSTGRES_DSN is configured and stands in for Postgres in
// tests. Workflow transactions hold the store lock and work on a copy that
// replaces the committed set only when fn succeeds.
type MemoryStore struct {
	mu          sync.Mutex
	workflows   map[string]map[string]*domain.WorkflowDefinition
	tickets     map[string]*domain.Ticket
	setVersions map[string]int64
}

// NewMemoryStore returns an empty store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		workflows:   make(map[string]map[string]*domain.WorkflowDefinition),
		tickets:     make(map[string]*domain.Ticket),
		setVersions: make(map[string]int64),
	}
}

// Workflows exposes the store as a WorkflowRepository.
func (s *MemoryStore) Workflows() WorkflowRepository {
	return &memoryWorkflows{store: s}
}

// Tickets exposes the store as a TicketRepository.
func (s *MemoryStore) Tickets() TicketRepository {
	return &memoryTickets{store: s}
}

// SetVersion reports how many workflow transactions committed for a deployment.
func (s *MemoryStore) SetVersion(deploymentID string) int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.setVersions[deploymentID]
}

// Seed stores defs as-is outside any transaction, bypassing constraint checks.
// It exists to reproduce deployments migrated inconsistently.
func (s *MemoryStore) Seed(defs ...*domain.WorkflowDefinition) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, d := range defs {
		set, ok := s.workflows[d.DeploymentID]
		if !ok {
			set = make(map[string]*domain.WorkflowDefinition)
			s.workflows[d.DeploymentID] = set
		}
		set[d.ID] = d.Clone()
	}
}

type memoryWorkflows struct {
	store *MemoryStore
}

func (m *memoryWorkflows) WithinTx(ctx context.Context, deploymentID string, fn func(ctx context.Context, tx WorkflowTx) error) error {
	s := m.store
	s.mu.Lock()
	defer s.mu.Unlock()

	view := make(map[string]*domain.WorkflowDefinition, len(s.workflows[deploymentID]))
	for id, def := range s.workflows[deploymentID] {
		view[id] = def.Clone()
	}
	tx := &memoryTx{store: s, deploymentID: deploymentID, view: view}
	if err := fn(ctx, tx); err != nil {
		return err
	}
	if err := checkWorkflowConstraints(view); err != nil {
		return err
	}
	s.workflows[deploymentID] = view
	s.setVersions[deploymentID]++
	return nil
}

func (m *memoryWorkflows) GetByID(_ context.Context, deploymentID, id string) (*domain.WorkflowDefinition, error) {
	s := m.store
	s.mu.Lock()
	defer s.mu.Unlock()
	def, ok := s.workflows[deploymentID][id]
	if !ok {
		return nil, ErrNotFound
	}
	return def.Clone(), nil
}

func (m *memoryWorkflows) List(_ context.Context, deploymentID string) ([]*domain.WorkflowDefinition, error) {
	s := m.store
	s.mu.Lock()
	defer s.mu.Unlock()
	return sortedWorkflows(s.workflows[deploymentID]), nil
}

func (m *memoryWorkflows) GetActive(_ context.Context, deploymentID string) (*domain.WorkflowDefinition, error) {
	s := m.store
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, def := range sortedWorkflows(s.workflows[deploymentID]) {
		if def.Status == domain.WorkflowStatusActive {
			return def, nil
		}
	}
	return nil, ErrNotFound
}

// memoryTx runs with the store lock held.
type memoryTx struct {
	store        *MemoryStore
	deploymentID string
	view         map[string]*domain.WorkflowDefinition
}

func (t *memoryTx) List(context.Context) ([]*domain.WorkflowDefinition, error) {
	return sortedWorkflows(t.view), nil
}

func (t *memoryTx) Save(_ context.Context, defs ...*domain.WorkflowDefinition) error {
	for _, def := range persistOrder(defs) {
		if def.DeploymentID != t.deploymentID {
			return fmt.Errorf("workflow %s belongs to deployment %s, not %s", def.ID, def.DeploymentID, t.deploymentID)
		}
		t.view[def.ID] = def.Clone()
	}
	return nil
}

func (t *memoryTx) Delete(_ context.Context, ids ...string) error {
	for _, id := range ids {
		if _, ok := t.view[id]; !ok {
			return ErrNotFound
		}
		if t.store.referencingLocked(t.deploymentID, id) > 0 {
			return fmt.Errorf("%w: workflow %s is referenced by tickets", ErrConstraint, id)
		}
		delete(t.view, id)
	}
	return nil
}

func (t *memoryTx) CountTicketsReferencing(_ context.Context, workflowID string) (int, error) {
	return t.store.referencingLocked(t.deploymentID, workflowID), nil
}

func (s *MemoryStore) referencingLocked(deploymentID, workflowID string) int {
	n := 0
	for _, ticket := range s.tickets {
		if ticket.DeploymentID == deploymentID && ticket.WorkflowID != nil && *ticket.WorkflowID == workflowID {
			n++
		}
	}
	return n
}

type memoryTickets struct {
	store *MemoryStore
}

func (m *memoryTickets) Create(_ context.Context, ticket *domain.Ticket) error {
	s := m.store
	s.mu.Lock()
	defer s.mu.Unlock()
	if ticket.ID == "" {
		return fmt.Errorf("%w: ticket id is required", ErrConstraint)
	}
	if _, exists := s.tickets[ticket.ID]; exists {
		return fmt.Errorf("%w: ticket %s already exists", ErrConstraint, ticket.ID)
	}
	if ticket.WorkflowID != nil {
		if _, ok := s.workflows[ticket.DeploymentID][*ticket.WorkflowID]; !ok {
			return fmt.Errorf("%w: workflow %s does not exist", ErrConstraint, *ticket.WorkflowID)
		}
	}
	s.tickets[ticket.ID] = ticket.Clone()
	return nil
}

func (m *memoryTickets) GetByID(_ context.Context, deploymentID, id string) (*domain.Ticket, error) {
	s := m.store
	s.mu.Lock()
	defer s.mu.Unlock()
	ticket, ok := s.tickets[id]
	if !ok || ticket.DeploymentID != deploymentID {
		return nil, ErrNotFound
	}
	return ticket.Clone(), nil
}

func (m *memoryTickets) UpdateStatus(_ context.Context, ticket *domain.Ticket, fromStatus string) error {
	s := m.store
	s.mu.Lock()
	defer s.mu.Unlock()
	cur, ok := s.tickets[ticket.ID]
	if !ok || cur.DeploymentID != ticket.DeploymentID {
		return ErrNotFound
	}
	if cur.Status != fromStatus {
		return ErrStatusConflict
	}
	cur.Status = ticket.Status
	cur.AssigneeID = ticket.Clone().AssigneeID
	cur.UpdatedAt = ticket.UpdatedAt
	return nil
}

func (m *memoryTickets) ListWithFilter(_ context.Context, filter TicketFilter) ([]domain.Ticket, error) {
	s := m.store
	s.mu.Lock()
	defer s.mu.Unlock()

	statuses := make(map[string]struct{}, len(filter.Statuses))
	for _, st := range filter.Statuses {
		statuses[st] = struct{}{}
	}
	var matched []*domain.Ticket
	for _, t := range s.tickets {
		if t.DeploymentID != filter.DeploymentID {
			continue
		}
		if filter.WorkflowID != nil && (t.WorkflowID == nil || *t.WorkflowID != *filter.WorkflowID) {
			continue
		}
		if filter.WorkflowID == nil && filter.Unbound && t.WorkflowID != nil {
			continue
		}
		if len(statuses) > 0 {
			if _, ok := statuses[t.Status]; !ok {
				continue
			}
		}
		if filter.CreatedFrom != nil && t.CreatedAt.Before(*filter.CreatedFrom) {
			continue
		}
		if filter.CreatedTo != nil && t.CreatedAt.After(*filter.CreatedTo) {
			continue
		}
		matched = append(matched, t)
	}
	sort.Slice(matched, func(i, j int) bool {
		if !matched[i].CreatedAt.Equal(matched[j].CreatedAt) {
			return matched[i].CreatedAt.Before(matched[j].CreatedAt)
		}
		return matched[i].ID < matched[j].ID
	})

	limit := filter.Limit
	if limit <= 0 {
		limit = 20
	}
	offset := filter.Offset
	if offset < 0 {
		offset = 0
	}
	if offset >= len(matched) {
		return nil, nil
	}
	end := offset + limit
	if end > len(matched) {
		end = len(matched)
	}
	out := make([]domain.Ticket, 0, end-offset)
	for _, t := range matched[offset:end] {
		out = append(out, *t.Clone())
	}
	return out, nil
}

func (m *memoryTickets) CountByWorkflow(_ context.Context, deploymentID, workflowID string) (int, error) {
	s := m.store
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.referencingLocked(deploymentID, workflowID), nil
}

func checkWorkflowConstraints(view map[string]*domain.WorkflowDefinition) error {
	active, defaults := 0, 0
	for _, def := range view {
		if def.Status == domain.WorkflowStatusActive {
			active++
		}
		if def.IsSystemDefault {
			defaults++
		}
	}
	if active > 1 {
		return fmt.Errorf("%w: %d active workflows", ErrConstraint, active)
	}
	if defaults > 1 {
		return fmt.Errorf("%w: %d system default workflows", ErrConstraint, defaults)
	}
	return nil
}

func sortedWorkflows(set map[string]*domain.WorkflowDefinition) []*domain.WorkflowDefinition {
	out := make([]*domain.WorkflowDefinition, 0, len(set))
	for _, def := range set {
		out = append(out, def.Clone())
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.Before(out[j].CreatedAt)
		}
		return out[i].ID < out[j].ID
	})
	return out
}
