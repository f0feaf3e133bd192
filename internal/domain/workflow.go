package domain

import "time"

// WorkflowStatus enumerates lifecycle states for workflow definitions.
type WorkflowStatus string

const (
	WorkflowStatusDraft    WorkflowStatus = "DRAFT"
	WorkflowStatusActive   WorkflowStatus = "ACTIVE"
	WorkflowStatusInactive WorkflowStatus = "INACTIVE"
)

// Valid reports whether s is a known workflow status.
func (s WorkflowStatus) Valid() bool {
	switch s {
	case WorkflowStatusDraft, WorkflowStatusActive, WorkflowStatusInactive:
		return true
	}
	return false
}

// CreateStateID is the synthetic pseudo-state every create transition leaves from.
const CreateStateID = "create"

// ConditionKind names a precondition a transition imposes on the caller.
type ConditionKind string

const (
	ConditionCommentRequired    ConditionKind = "COMMENT_REQUIRED"
	ConditionAttachmentRequired ConditionKind = "ATTACHMENT_REQUIRED"
	ConditionAssigneeRequired   ConditionKind = "ASSIGNEE_REQUIRED"
)

// Known reports whether c is a condition the engine understands.
func (c ConditionKind) Known() bool {
	switch c {
	case ConditionCommentRequired, ConditionAttachmentRequired, ConditionAssigneeRequired:
		return true
	}
	return false
}

// ActionKind names a side effect a transition asks the caller to perform.
type ActionKind string

const (
	ActionSendNotification ActionKind = "SEND_NOTIFICATION"
	ActionSendEmail        ActionKind = "SEND_EMAIL"
	ActionNotifyAssignee   ActionKind = "NOTIFY_ASSIGNEE"
	ActionNotifyRequester  ActionKind = "NOTIFY_REQUESTER"
	ActionWebhook          ActionKind = "WEBHOOK"
)

// Known reports whether a is an action the dispatcher understands.
func (a ActionKind) Known() bool {
	switch a {
	case ActionSendNotification, ActionSendEmail, ActionNotifyAssignee, ActionNotifyRequester, ActionWebhook:
		return true
	}
	return false
}

// State is a node of the workflow graph. Tickets store the state name as their status.
type State struct {
	ID        string
	Name      string
	IsInitial bool
}

// Transition is a directed, role-gated edge between two states.
type Transition struct {
	ID                 string
	From               string
	To                 string
	Label              string
	AllowedRoles       []Role
	Conditions         []ConditionKind
	Actions            []ActionKind
	IsCreateTransition bool
}

// WorkflowGraph holds the semantic part of a workflow definition.
type WorkflowGraph struct {
	States      []State
	Transitions []Transition
}

// Position is a canvas coordinate.
type Position struct {
	X float64
	Y float64
}

// NodeLayout carries the cosmetic attributes of a state.
type NodeLayout struct {
	Type     string
	Position Position
	Color    string
}

// Layout is the presentation attached to a graph. It is persisted but never evaluated.
type Layout struct {
	Nodes map[string]NodeLayout
	// Source is the submitted designer document when it carries more than
	// the canonical encoding of the graph and Nodes. It is returned verbatim.
	Source []byte
}

// WorkflowDefinition is a named, versioned ticket state machine for one deployment.
type WorkflowDefinition struct {
	ID              string
	DeploymentID    string
	Name            string
	Description     string
	Version         int
	Graph           WorkflowGraph
	Layout          Layout
	WorkingStatuses []StatusKey
	DoneStatuses    []StatusKey
	Status          WorkflowStatus
	IsDefault       bool
	IsSystemDefault bool
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

// CreateTransition returns the transition used to open new tickets.
func (g WorkflowGraph) CreateTransition() (Transition, bool) {
	for _, t := range g.Transitions {
		if t.IsCreateTransition {
			return t, true
		}
	}
	return Transition{}, false
}

// State looks a state up by ID.
func (g WorkflowGraph) State(id string) (State, bool) {
	for _, s := range g.States {
		if s.ID == id {
			return s, true
		}
	}
	return State{}, false
}

// Clone returns a deep copy of the graph.
func (g WorkflowGraph) Clone() WorkflowGraph {
	out := WorkflowGraph{}
	if g.States != nil {
		out.States = append([]State(nil), g.States...)
	}
	if g.Transitions != nil {
		out.Transitions = make([]Transition, len(g.Transitions))
		for i, t := range g.Transitions {
			t.AllowedRoles = cloneSlice(t.AllowedRoles)
			t.Conditions = cloneSlice(t.Conditions)
			t.Actions = cloneSlice(t.Actions)
			out.Transitions[i] = t
		}
	}
	return out
}

// Clone returns a deep copy of the layout.
func (l Layout) Clone() Layout {
	out := Layout{}
	if l.Nodes != nil {
		out.Nodes = make(map[string]NodeLayout, len(l.Nodes))
		for k, v := range l.Nodes {
			out.Nodes[k] = v
		}
	}
	out.Source = cloneSlice(l.Source)
	return out
}

// Clone returns a deep copy of the definition.
func (w *WorkflowDefinition) Clone() *WorkflowDefinition {
	if w == nil {
		return nil
	}
	out := *w
	out.Graph = w.Graph.Clone()
	out.Layout = w.Layout.Clone()
	out.WorkingStatuses = CloneStatusKeys(w.WorkingStatuses)
	out.DoneStatuses = CloneStatusKeys(w.DoneStatuses)
	return &out
}

// IsActive reports whether the workflow currently governs new tickets.
func (w *WorkflowDefinition) IsActive() bool {
	return w != nil && w.Status == WorkflowStatusActive
}

func cloneSlice[T any](in []T) []T {
	if in == nil {
		return nil
	}
	return append([]T(nil), in...)
}
