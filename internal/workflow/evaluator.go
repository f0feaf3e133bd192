package workflow

import (
	"fmt"
	"strings"

	"github.com/NTGClarityPK/ntg-tickets-sub002/internal/domain"
)

// DenialReason explains why a transition was refused.
type DenialReason string

const (
	ReasonNoSuchTransition     DenialReason = "NO_SUCH_TRANSITION"
	ReasonRoleNotAllowed       DenialReason = "ROLE_NOT_ALLOWED"
	ReasonConditionUnsatisfied DenialReason = "CONDITION_UNSATISFIED"
)

// Decision is the outcome of evaluating one requested transition.
type Decision struct {
	Allowed    bool
	Reason     DenialReason
	From       string
	To         string
	Transition *domain.Transition
	// Conditions the caller must satisfy, in definition order.
	Conditions []domain.ConditionKind
	// Actions the caller must execute after committing, in definition order.
	Actions     []domain.ActionKind
	Unsatisfied []domain.ConditionKind
	message     string
}

// Err returns nil for allowed decisions and a *DeniedError otherwise.
func (d Decision) Err() error {
	if d.Allowed {
		return nil
	}
	de := &DeniedError{Reason: d.Reason, From: d.From, To: d.To, Missing: d.Unsatisfied, Message: d.message}
	if d.Transition != nil {
		de.AllowedRoles = d.Transition.AllowedRoles
	}
	return de
}

// DeniedError is the specific, user-explainable refusal of a transition.
type DeniedError struct {
	Reason       DenialReason
	From         string
	To           string
	AllowedRoles []domain.Role
	Missing      []domain.ConditionKind
	Message      string
}

func (e *DeniedError) Error() string {
	if e.Message != "" {
		return e.Message
	}
	return describeDenial(e.Reason, e.From, e.To, e.Missing)
}

func (e *DeniedError) Unwrap() error {
	switch e.Reason {
	case ReasonRoleNotAllowed:
		return ErrRoleNotAllowed
	case ReasonConditionUnsatisfied:
		return ErrConditionUnsatisfied
	default:
		return ErrNoSuchTransition
	}
}

// ConditionChecker answers whether the caller's data satisfies a condition.
type ConditionChecker interface {
	Satisfied(kind domain.ConditionKind) bool
}

// ConditionFunc adapts a function to ConditionChecker.
type ConditionFunc func(kind domain.ConditionKind) bool

// Satisfied implements ConditionChecker.
func (f ConditionFunc) Satisfied(kind domain.ConditionKind) bool {
	return f(kind)
}

// Evaluate decides whether actorRoles may move a ticket bound to snapshot
// from currentStatus to targetStatus.
func Evaluate(snapshot *domain.TicketWorkflowSnapshot, currentStatus, targetStatus string, actorRoles domain.RoleSet) Decision {
	if snapshot == nil {
		return Decision{
			Reason:  ReasonNoSuchTransition,
			From:    currentStatus,
			To:      targetStatus,
			message: "ticket is not bound to a workflow",
		}
	}
	return EvaluateGraph(snapshot.Graph, currentStatus, targetStatus, actorRoles)
}

// EvaluateGraph is Evaluate over a bare graph.
func EvaluateGraph(g domain.WorkflowGraph, currentStatus, targetStatus string, actorRoles domain.RoleSet) Decision {
	d := Decision{From: currentStatus, To: targetStatus, Reason: ReasonNoSuchTransition}

	from, okFrom := ResolveState(g, currentStatus)
	to, okTo := ResolveState(g, targetStatus)
	if !okFrom || !okTo || from.ID == domain.CreateStateID {
		return d
	}
	d.From, d.To = StatusOf(from), StatusOf(to)

	for i := range g.Transitions {
		t := g.Transitions[i]
		if t.IsCreateTransition || t.From != from.ID || t.To != to.ID {
			continue
		}
		return authorize(d, t, actorRoles)
	}
	return d
}

// EvaluateCreate decides whether actorRoles may open a ticket under def. On
// success Decision.To is the new ticket's initial status.
func EvaluateCreate(def *domain.WorkflowDefinition, actorRoles domain.RoleSet) Decision {
	d := Decision{From: domain.CreateStateID, Reason: ReasonNoSuchTransition}
	if def == nil {
		d.message = "no workflow available to create tickets"
		return d
	}
	t, ok := def.Graph.CreateTransition()
	if !ok {
		d.message = fmt.Sprintf("workflow %q has no create transition", def.Name)
		return d
	}
	if to, ok := def.Graph.State(t.To); ok {
		d.To = StatusOf(to)
	} else {
		d.To = t.To
	}
	return authorize(d, t, actorRoles)
}

// CheckConditions turns an allowed decision into a CONDITION_UNSATISFIED
// denial when checker rejects any of its conditions.
func CheckConditions(d Decision, checker ConditionChecker) Decision {
	if !d.Allowed || len(d.Conditions) == 0 {
		return d
	}
	var missing []domain.ConditionKind
	for _, c := range d.Conditions {
		if checker == nil || !checker.Satisfied(c) {
			missing = append(missing, c)
		}
	}
	if len(missing) == 0 {
		return d
	}
	d.Allowed = false
	d.Reason = ReasonConditionUnsatisfied
	d.Unsatisfied = missing
	d.Actions = nil
	return d
}

// AvailableTransitions evaluates every outgoing transition of currentStatus.
func AvailableTransitions(g domain.WorkflowGraph, currentStatus string, actorRoles domain.RoleSet) []Decision {
	from, ok := ResolveState(g, currentStatus)
	if !ok || from.ID == domain.CreateStateID {
		return nil
	}
	var out []Decision
	for _, t := range g.Transitions {
		if t.IsCreateTransition || t.From != from.ID {
			continue
		}
		d := Decision{From: StatusOf(from), To: t.To}
		if to, ok := g.State(t.To); ok {
			d.To = StatusOf(to)
		}
		out = append(out, authorize(d, t, actorRoles))
	}
	return out
}

func authorize(d Decision, t domain.Transition, actorRoles domain.RoleSet) Decision {
	d.Transition = &t
	d.Conditions = append([]domain.ConditionKind(nil), t.Conditions...)
	if !actorRoles.Intersects(t.AllowedRoles) {
		d.Allowed = false
		d.Reason = ReasonRoleNotAllowed
		return d
	}
	d.Allowed = true
	d.Reason = ""
	d.Actions = append([]domain.ActionKind(nil), t.Actions...)
	return d
}

func describeDenial(reason DenialReason, from, to string, missing []domain.ConditionKind) string {
	switch reason {
	case ReasonRoleNotAllowed:
		return fmt.Sprintf("your role cannot move a ticket from %q to %q", from, to)
	case ReasonConditionUnsatisfied:
		names := make([]string, len(missing))
		for i, c := range missing {
			names[i] = string(c)
		}
		return fmt.Sprintf("moving from %q to %q requires %s", from, to, strings.Join(names, ", "))
	default:
		return fmt.Sprintf("no transition from %q to %q in this workflow", from, to)
	}
}
