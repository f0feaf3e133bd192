package workflow

import (
	"fmt"
	"sort"
	"time"

	"github.com/NTGClarityPK/ntg-tickets-sub002/internal/domain"
)

// Categorization replaces a workflow's Working and Done status lists.
type Categorization struct {
	Working []domain.StatusKey
	Done    []domain.StatusKey
}

// Roster applies the activation rules to every workflow of one deployment.
// It works on private copies; callers persist Changed and Removed after the
// enclosing transaction's read-modify-write succeeds.
type Roster struct {
	now     time.Time
	items   map[string]*domain.WorkflowDefinition
	changed map[string]struct{}
	removed []string
}

// NewRoster copies defs into a roster evaluated at now.
func NewRoster(defs []*domain.WorkflowDefinition, now time.Time) *Roster {
	r := &Roster{
		now:     now.UTC(),
		items:   make(map[string]*domain.WorkflowDefinition, len(defs)),
		changed: make(map[string]struct{}),
	}
	for _, d := range defs {
		if d == nil {
			continue
		}
		r.items[d.ID] = d.Clone()
	}
	return r
}

// Len is the number of workflows in the roster.
func (r *Roster) Len() int {
	return len(r.items)
}

// Get returns a copy of the workflow with id.
func (r *Roster) Get(id string) (*domain.WorkflowDefinition, bool) {
	w, ok := r.items[id]
	if !ok {
		return nil, false
	}
	return w.Clone(), true
}

// List returns copies of every workflow, oldest first.
func (r *Roster) List() []*domain.WorkflowDefinition {
	out := make([]*domain.WorkflowDefinition, 0, len(r.items))
	for _, w := range r.sorted() {
		out = append(out, w.Clone())
	}
	return out
}

// Active returns a copy of the single active workflow, or nil.
func (r *Roster) Active() *domain.WorkflowDefinition {
	active := r.active()
	if len(active) != 1 {
		return nil
	}
	return active[0].Clone()
}

// SystemDefault returns a copy of the system default workflow, or nil.
func (r *Roster) SystemDefault() *domain.WorkflowDefinition {
	if sd := r.systemDefault(); sd != nil {
		return sd.Clone()
	}
	return nil
}

// Add inserts a new workflow. Requesting ACTIVE goes through Activate so the
// other workflows are demoted.
func (r *Roster) Add(def *domain.WorkflowDefinition) error {
	if def == nil || def.ID == "" {
		return opError("create", "", ErrInvalidDefinition, "workflow id is required")
	}
	if _, exists := r.items[def.ID]; exists {
		return opError("create", def.ID, ErrConflict, "workflow already exists")
	}
	if def.IsSystemDefault && r.systemDefault() != nil {
		return opError("create", def.ID, ErrConflict, "deployment already has a system default workflow")
	}
	w := def.Clone()
	wantActive := w.Status == domain.WorkflowStatusActive
	if w.Status == "" || wantActive {
		w.Status = domain.WorkflowStatusDraft
	}
	if w.Version < 1 {
		w.Version = 1
	}
	if w.CreatedAt.IsZero() {
		w.CreatedAt = r.now
	}
	w.UpdatedAt = r.now
	r.items[w.ID] = w
	r.touch(w.ID)
	if wantActive {
		return r.Activate(w.ID, nil)
	}
	return nil
}

// Replace swaps in an edited definition and bumps its version. Lifecycle
// fields (status, system default flag, creation time) are kept.
func (r *Roster) Replace(def *domain.WorkflowDefinition) error {
	if def == nil {
		return opError("update", "", ErrInvalidDefinition, "definition is nil")
	}
	if err := r.Editable("update", def.ID); err != nil {
		return err
	}
	cur := r.items[def.ID]
	w := def.Clone()
	w.DeploymentID = cur.DeploymentID
	w.Status = cur.Status
	w.IsSystemDefault = false
	w.CreatedAt = cur.CreatedAt
	w.Version = cur.Version + 1
	w.UpdatedAt = r.now
	r.items[w.ID] = w
	r.touch(w.ID)
	return nil
}

// Editable reports why op may not change the definition of id: it is
// missing, or it is the system default.
func (r *Roster) Editable(op, id string) error {
	cur, ok := r.items[id]
	if !ok {
		return opError(op, id, ErrWorkflowNotFound, "")
	}
	if cur.IsSystemDefault {
		return opError(op, id, ErrForbidden, "the system default workflow cannot be edited")
	}
	return nil
}

// IDs lists every workflow ID in the roster, oldest first.
func (r *Roster) IDs() []string {
	out := make([]string, 0, len(r.items))
	for _, w := range r.sorted() {
		out = append(out, w.ID)
	}
	return out
}

// Activate makes id the deployment's only ACTIVE workflow. A non-nil cat
// overwrites its categorization, which the system default refuses.
func (r *Roster) Activate(id string, cat *Categorization) error {
	target, ok := r.items[id]
	if !ok {
		return opError("activate", id, ErrWorkflowNotFound, "")
	}
	if cat != nil {
		if err := r.Editable("activate", id); err != nil {
			return err
		}
		if err := ValidateCategorization(id, cat.Working, cat.Done); err != nil {
			return err
		}
		target.WorkingStatuses = domain.CloneStatusKeys(cat.Working)
		target.DoneStatuses = domain.CloneStatusKeys(cat.Done)
		target.Version++
		target.UpdatedAt = r.now
		r.touch(id)
	}
	r.makeSoleActive(target)
	return nil
}

// Deactivate moves id from ACTIVE to INACTIVE, reactivating the system
// default when nothing else is left active.
func (r *Roster) Deactivate(id string) error {
	target, ok := r.items[id]
	if !ok {
		return opError("deactivate", id, ErrWorkflowNotFound, "")
	}
	if target.Status != domain.WorkflowStatusActive {
		return opError("deactivate", id, ErrInvalidStatusChange, fmt.Sprintf("workflow is %s, not ACTIVE", target.Status))
	}
	if target.IsSystemDefault {
		return opError("deactivate", id, ErrForbidden, "the system default workflow stays active until another workflow is activated")
	}
	r.setStatus(target, domain.WorkflowStatusInactive)
	r.ensureActive()
	return nil
}

// Remove deletes id. referenced reports whether any ticket points at it.
func (r *Roster) Remove(id string, referenced bool) error {
	target, ok := r.items[id]
	if !ok {
		return opError("delete", id, ErrWorkflowNotFound, "")
	}
	if target.IsSystemDefault {
		return opError("delete", id, ErrConflict, "the system default workflow cannot be deleted")
	}
	if referenced {
		return opError("delete", id, ErrConflict, "workflow is referenced by existing tickets")
	}
	wasActive := target.Status == domain.WorkflowStatusActive
	delete(r.items, id)
	delete(r.changed, id)
	r.removed = append(r.removed, id)
	if wasActive {
		r.ensureActive()
	}
	return nil
}

// Heal repairs a roster seeded or migrated inconsistently and returns a
// description of each repair.
func (r *Roster) Heal() []string {
	if len(r.items) == 0 {
		return nil
	}
	var repairs []string

	var defaults []*domain.WorkflowDefinition
	for _, w := range r.sorted() {
		if w.IsSystemDefault {
			defaults = append(defaults, w)
		}
	}
	switch {
	case len(defaults) == 0:
		oldest := r.sorted()[0]
		oldest.IsSystemDefault = true
		r.touch(oldest.ID)
		r.makeSoleActive(oldest)
		repairs = append(repairs, fmt.Sprintf("promoted %s to system default", oldest.ID))
	case len(defaults) > 1:
		for _, extra := range defaults[1:] {
			extra.IsSystemDefault = false
			r.touch(extra.ID)
			repairs = append(repairs, fmt.Sprintf("cleared duplicate system default %s", extra.ID))
		}
	}

	active := r.active()
	switch {
	case len(active) == 0:
		sd := r.systemDefault()
		r.setStatus(sd, domain.WorkflowStatusActive)
		repairs = append(repairs, fmt.Sprintf("reactivated system default %s", sd.ID))
	case len(active) > 1:
		keep := active[0]
		for _, w := range active {
			if w.IsSystemDefault {
				keep = w
				break
			}
			if w.UpdatedAt.After(keep.UpdatedAt) || (w.UpdatedAt.Equal(keep.UpdatedAt) && w.ID > keep.ID) {
				keep = w
			}
		}
		r.makeSoleActive(keep)
		repairs = append(repairs, fmt.Sprintf("kept %s as the only active workflow", keep.ID))
	}
	return repairs
}

// Verify reports ErrInvariantViolation unless exactly one workflow is ACTIVE
// and exactly one is the system default.
func (r *Roster) Verify() error {
	active, defaults := 0, 0
	for _, w := range r.items {
		if w.Status == domain.WorkflowStatusActive {
			active++
		}
		if w.IsSystemDefault {
			defaults++
		}
	}
	if active != 1 || defaults != 1 {
		return fmt.Errorf("%w: %d active, %d system default across %d workflows", ErrInvariantViolation, active, defaults, len(r.items))
	}
	return nil
}

// Changed returns copies of every workflow modified since the roster was built, oldest first.
func (r *Roster) Changed() []*domain.WorkflowDefinition {
	var out []*domain.WorkflowDefinition
	for _, w := range r.sorted() {
		if _, ok := r.changed[w.ID]; ok {
			out = append(out, w.Clone())
		}
	}
	return out
}

// Removed lists the IDs deleted since the roster was built.
func (r *Roster) Removed() []string {
	return append([]string(nil), r.removed...)
}

func (r *Roster) makeSoleActive(target *domain.WorkflowDefinition) {
	for _, w := range r.items {
		if w.ID != target.ID && w.Status == domain.WorkflowStatusActive {
			r.setStatus(w, domain.WorkflowStatusInactive)
		}
	}
	r.setStatus(target, domain.WorkflowStatusActive)
}

func (r *Roster) ensureActive() {
	if len(r.active()) > 0 {
		return
	}
	if sd := r.systemDefault(); sd != nil {
		r.setStatus(sd, domain.WorkflowStatusActive)
	}
}

func (r *Roster) setStatus(w *domain.WorkflowDefinition, status domain.WorkflowStatus) {
	if w == nil || w.Status == status {
		return
	}
	w.Status = status
	w.UpdatedAt = r.now
	r.touch(w.ID)
}

func (r *Roster) touch(id string) {
	r.changed[id] = struct{}{}
}

func (r *Roster) active() []*domain.WorkflowDefinition {
	var out []*domain.WorkflowDefinition
	for _, w := range r.sorted() {
		if w.Status == domain.WorkflowStatusActive {
			out = append(out, w)
		}
	}
	return out
}

func (r *Roster) systemDefault() *domain.WorkflowDefinition {
	for _, w := range r.sorted() {
		if w.IsSystemDefault {
			return w
		}
	}
	return nil
}

func (r *Roster) sorted() []*domain.WorkflowDefinition {
	out := make([]*domain.WorkflowDefinition, 0, len(r.items))
	for _, w := range r.items {
		out = append(out, w)
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.Before(out[j].CreatedAt)
		}
		return out[i].ID < out[j].ID
	})
	return out
}
