package domain

import "time"

// Ticket carries the fields of a support ticket the workflow engine reads and writes.
type Ticket struct {
	ID           string
	DeploymentID string
	Status       string
	// WorkflowID is nil for legacy tickets governed by whichever workflow is active.
	WorkflowID       *string
	WorkflowSnapshot *TicketWorkflowSnapshot
	WorkflowVersion  *int
	AssigneeID       *string
	CreatedAt        time.Time
	UpdatedAt        time.Time
}

// IsBound reports whether the ticket carries its own workflow snapshot.
func (t *Ticket) IsBound() bool {
	return t != nil && t.WorkflowID != nil && t.WorkflowSnapshot != nil
}

// TicketWorkflowSnapshot is the immutable copy of a workflow bound to a ticket at creation.
type TicketWorkflowSnapshot struct {
	WorkflowID      string
	WorkflowName    string
	Graph           WorkflowGraph
	Layout          Layout
	WorkingStatuses []StatusKey
	DoneStatuses    []StatusKey
	WorkflowVersion int
	CapturedAt      time.Time
}

// Clone returns a deep copy of the snapshot.
func (s *TicketWorkflowSnapshot) Clone() *TicketWorkflowSnapshot {
	if s == nil {
		return nil
	}
	out := *s
	out.Graph = s.Graph.Clone()
	out.Layout = s.Layout.Clone()
	out.WorkingStatuses = CloneStatusKeys(s.WorkingStatuses)
	out.DoneStatuses = CloneStatusKeys(s.DoneStatuses)
	return &out
}

// Clone returns a deep copy of the ticket.
func (t *Ticket) Clone() *Ticket {
	if t == nil {
		return nil
	}
	out := *t
	out.WorkflowID = cloneString(t.WorkflowID)
	out.AssigneeID = cloneString(t.AssigneeID)
	out.WorkflowSnapshot = t.WorkflowSnapshot.Clone()
	if t.WorkflowVersion != nil {
		v := *t.WorkflowVersion
		out.WorkflowVersion = &v
	}
	return &out
}

func cloneString(s *string) *string {
	if s == nil {
		return nil
	}
	v := *s
	return &v
}
