package workflow

import (
	"fmt"
	"strings"

	"github.com/NTGClarityPK/ntg-tickets-sub002/internal/domain"
)

// ValidateGraph checks the structural invariants of a workflow graph and
// reports every violation at once.
func ValidateGraph(g domain.WorkflowGraph) error {
	var problems []string
	addf := func(format string, args ...any) {
		problems = append(problems, fmt.Sprintf(format, args...))
	}

	if len(g.States) == 0 {
		addf("workflow has no states")
	}

	states := make(map[string]domain.State, len(g.States))
	names := make(map[string]string, len(g.States))
	initial := 0
	for _, s := range g.States {
		if strings.TrimSpace(s.ID) == "" {
			addf("state with empty id")
			continue
		}
		if _, dup := states[s.ID]; dup {
			addf("duplicate state %q", s.ID)
			continue
		}
		states[s.ID] = s
		if s.ID != domain.CreateStateID {
			norm := NormalizeStatus(stateStatus(s))
			if norm == "" {
				addf("state %q has no name", s.ID)
			} else if other, dup := names[norm]; dup {
				addf("states %q and %q share the status name %q", other, s.ID, norm)
			} else {
				names[norm] = s.ID
			}
		}
		if s.IsInitial {
			initial++
			if s.ID != domain.CreateStateID {
				addf("initial state %q must be the %q pseudo-state", s.ID, domain.CreateStateID)
			}
		}
	}
	if len(g.States) > 0 && initial != 1 {
		addf("expected exactly one initial state, found %d", initial)
	}

	transitionIDs := make(map[string]struct{}, len(g.Transitions))
	pairs := make(map[[2]string]string, len(g.Transitions))
	adjacency := make(map[string][]string, len(states))
	creates := 0
	for _, t := range g.Transitions {
		if strings.TrimSpace(t.ID) == "" {
			addf("transition %s->%s has empty id", t.From, t.To)
		} else if _, dup := transitionIDs[t.ID]; dup {
			addf("duplicate transition %q", t.ID)
		} else {
			transitionIDs[t.ID] = struct{}{}
		}
		_, fromOK := states[t.From]
		_, toOK := states[t.To]
		if !fromOK {
			addf("transition %q references unknown state %q", t.ID, t.From)
		}
		if !toOK {
			addf("transition %q references unknown state %q", t.ID, t.To)
		}
		pair := [2]string{t.From, t.To}
		if other, dup := pairs[pair]; dup {
			addf("transitions %q and %q both connect %s->%s", other, t.ID, t.From, t.To)
		} else {
			pairs[pair] = t.ID
		}

		if t.IsCreateTransition {
			creates++
			if t.From != domain.CreateStateID {
				addf("create transition %q must leave %q, not %q", t.ID, domain.CreateStateID, t.From)
			}
		} else if t.From == domain.CreateStateID {
			addf("transition %q leaves %q but is not the create transition", t.ID, domain.CreateStateID)
		}
		if t.To == domain.CreateStateID {
			addf("transition %q targets the %q pseudo-state", t.ID, domain.CreateStateID)
		}

		for _, r := range t.AllowedRoles {
			if strings.TrimSpace(string(r)) == "" {
				addf("transition %q has a blank role", t.ID)
			}
		}
		for _, c := range t.Conditions {
			if !c.Known() {
				addf("transition %q has unknown condition %q", t.ID, c)
			}
		}
		for _, a := range t.Actions {
			if !a.Known() {
				addf("transition %q has unknown action %q", t.ID, a)
			}
		}
		if fromOK && toOK {
			adjacency[t.From] = append(adjacency[t.From], t.To)
		}
	}
	if creates != 1 {
		addf("expected exactly one create transition, found %d", creates)
	}

	if _, ok := states[domain.CreateStateID]; ok {
		reached := reachable(domain.CreateStateID, adjacency)
		for _, s := range g.States {
			if s.ID == domain.CreateStateID {
				continue
			}
			if _, ok := reached[s.ID]; !ok {
				addf("state %q is unreachable from %q", s.ID, domain.CreateStateID)
			}
		}
	} else if len(g.States) > 0 {
		addf("workflow has no %q pseudo-state", domain.CreateStateID)
	}

	if len(problems) > 0 {
		return &ValidationError{Problems: problems}
	}
	return nil
}

// ValidateCategorization rejects a status declared both Working and Done for
// the same workflow.
func ValidateCategorization(workflowID string, working, done []domain.StatusKey) error {
	seen := make(map[[2]string]struct{}, len(working))
	for _, k := range working {
		seen[categoryKey(workflowID, k)] = struct{}{}
	}
	var problems []string
	for _, k := range done {
		key := categoryKey(workflowID, k)
		if _, dup := seen[key]; dup {
			problems = append(problems, fmt.Sprintf("status %q is listed as both working and done", k.Status))
		}
	}
	for _, k := range append(append([]domain.StatusKey(nil), working...), done...) {
		if NormalizeStatus(k.Status) == "" {
			problems = append(problems, "categorized status with empty name")
		}
	}
	if len(problems) > 0 {
		return &ValidationError{Problems: problems}
	}
	return nil
}

// ValidateDefinition validates graph, categorization and metadata together.
func ValidateDefinition(def *domain.WorkflowDefinition) error {
	if def == nil {
		return &ValidationError{Problems: []string{"definition is nil"}}
	}
	var problems []string
	if strings.TrimSpace(def.Name) == "" {
		problems = append(problems, "name is required")
	}
	if def.Status != "" && !def.Status.Valid() {
		problems = append(problems, fmt.Sprintf("unknown status %q", def.Status))
	}
	for _, err := range []error{ValidateGraph(def.Graph), ValidateCategorization(def.ID, def.WorkingStatuses, def.DoneStatuses)} {
		if ve, ok := err.(*ValidationError); ok {
			problems = append(problems, ve.Problems...)
		}
	}
	if len(problems) > 0 {
		return &ValidationError{Problems: problems}
	}
	return nil
}

// ResolveState finds the state a ticket status names, by ID or normalized name.
func ResolveState(g domain.WorkflowGraph, status string) (domain.State, bool) {
	if s, ok := g.State(status); ok {
		return s, true
	}
	norm := NormalizeStatus(status)
	if norm == "" {
		return domain.State{}, false
	}
	for _, s := range g.States {
		if NormalizeStatus(stateStatus(s)) == norm {
			return s, true
		}
	}
	return domain.State{}, false
}

// StatusOf returns the status string a ticket stores while in state s.
func StatusOf(s domain.State) string {
	return stateStatus(s)
}

func stateStatus(s domain.State) string {
	if strings.TrimSpace(s.Name) != "" {
		return s.Name
	}
	return s.ID
}

func categoryKey(ownerID string, k domain.StatusKey) [2]string {
	id := ownerID
	if k.IsQualified() {
		id = *k.WorkflowID
	}
	return [2]string{id, NormalizeStatus(k.Status)}
}

func reachable(start string, adjacency map[string][]string) map[string]struct{} {
	seen := map[string]struct{}{start: {}}
	queue := []string{start}
	for len(queue) > 0 {
		cur := queue[0]
		queue = queue[1:]
		for _, next := range adjacency[cur] {
			if _, ok := seen[next]; ok {
				continue
			}
			seen[next] = struct{}{}
			queue = append(queue, next)
		}
	}
	return seen
}
