package workflow

import (
	"fmt"
	"math/rand"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/NTGClarityPK/ntg-tickets-sub002/internal/domain"
)

func seededRoster(t *testing.T, extra ...string) *Roster {
	t.Helper()
	r := NewRoster([]*domain.WorkflowDefinition{SystemDefaultDefinition("sd", "dep-1", testNow)}, testNow)
	for i, id := range extra {
		def := basicDefinition(id)
		def.CreatedAt = testNow.Add(time.Duration(i+1) * time.Minute)
		require.NoError(t, r.Add(def))
	}
	require.NoError(t, r.Verify())
	return r
}

func statusOf(t *testing.T, r *Roster, id string) domain.WorkflowStatus {
	t.Helper()
	w, ok := r.Get(id)
	require.True(t, ok, "workflow %s missing", id)
	return w.Status
}

func TestRoster_ActivateDemotesPreviousActive(t *testing.T) {
	r := seededRoster(t, "wf-a", "wf-b")
	require.NoError(t, r.Activate("wf-a", nil))
	require.Equal(t, domain.WorkflowStatusActive, statusOf(t, r, "wf-a"))

	require.NoError(t, r.Activate("wf-b", nil))
	assert.Equal(t, domain.WorkflowStatusInactive, statusOf(t, r, "wf-a"))
	assert.Equal(t, domain.WorkflowStatusActive, statusOf(t, r, "wf-b"))
	assert.Equal(t, domain.WorkflowStatusInactive, statusOf(t, r, "sd"))
	assert.NoError(t, r.Verify())
}

func TestRoster_ActivateLeavesDraftsAlone(t *testing.T) {
	r := seededRoster(t, "wf-a", "wf-b")
	require.NoError(t, r.Activate("wf-a", nil))
	assert.Equal(t, domain.WorkflowStatusDraft, statusOf(t, r, "wf-b"))
}

func TestRoster_ActivateOverwritesCategorization(t *testing.T) {
	r := seededRoster(t, "wf-a")
	cat := &Categorization{
		Working: []domain.StatusKey{domain.UnqualifiedKey("Open")},
		Done:    []domain.StatusKey{domain.UnqualifiedKey("Closed"), domain.UnqualifiedKey("New")},
	}
	require.NoError(t, r.Activate("wf-a", cat))

	w, _ := r.Get("wf-a")
	assert.Equal(t, cat.Working, w.WorkingStatuses)
	assert.Equal(t, cat.Done, w.DoneStatuses)
	assert.Equal(t, 2, w.Version)
}

func TestRoster_ActivateRejectsOverlappingCategorization(t *testing.T) {
	r := seededRoster(t, "wf-a")
	err := r.Activate("wf-a", &Categorization{
		Working: []domain.StatusKey{domain.UnqualifiedKey("Open")},
		Done:    []domain.StatusKey{domain.UnqualifiedKey("open")},
	})
	assert.ErrorIs(t, err, ErrInvalidDefinition)
	assert.Equal(t, domain.WorkflowStatusDraft, statusOf(t, r, "wf-a"))
}

func TestRoster_ActivateSystemDefaultKeepsCategorization(t *testing.T) {
	r := seededRoster(t, "wf-a")
	require.NoError(t, r.Activate("wf-a", nil))
	before, _ := r.Get("sd")

	err := r.Activate("sd", &Categorization{Working: []domain.StatusKey{domain.UnqualifiedKey("Closed")}})
	assert.ErrorIs(t, err, ErrForbidden)

	after, _ := r.Get("sd")
	assert.Equal(t, before.Version, after.Version)
	assert.Equal(t, before.WorkingStatuses, after.WorkingStatuses)
	assert.Equal(t, domain.WorkflowStatusActive, statusOf(t, r, "wf-a"))

	require.NoError(t, r.Activate("sd", nil))
	assert.Equal(t, domain.WorkflowStatusActive, statusOf(t, r, "sd"))
}

func TestRoster_DeactivateOnlyActiveRestoresSystemDefault(t *testing.T) {
	r := seededRoster(t, "wf-a")
	require.NoError(t, r.Activate("wf-a", nil))

	require.NoError(t, r.Deactivate("wf-a"))
	assert.Equal(t, domain.WorkflowStatusInactive, statusOf(t, r, "wf-a"))
	assert.Equal(t, domain.WorkflowStatusActive, statusOf(t, r, "sd"))
	assert.NoError(t, r.Verify())
}

func TestRoster_DeactivateErrors(t *testing.T) {
	r := seededRoster(t, "wf-a")
	assert.ErrorIs(t, r.Deactivate("sd"), ErrForbidden)
	assert.ErrorIs(t, r.Deactivate("wf-a"), ErrInvalidStatusChange)
	assert.ErrorIs(t, r.Deactivate("nope"), ErrWorkflowNotFound)
}

func TestRoster_Remove(t *testing.T) {
	r := seededRoster(t, "wf-a", "wf-b")

	err := r.Remove("wf-a", true)
	assert.ErrorIs(t, err, ErrConflict)
	_, ok := r.Get("wf-a")
	assert.True(t, ok)

	assert.ErrorIs(t, r.Remove("sd", false), ErrConflict)

	require.NoError(t, r.Activate("wf-b", nil))
	require.NoError(t, r.Remove("wf-b", false))
	assert.Equal(t, domain.WorkflowStatusActive, statusOf(t, r, "sd"))
	assert.Equal(t, []string{"wf-b"}, r.Removed())
	assert.NoError(t, r.Verify())
}

func TestRoster_ReplaceSystemDefaultForbidden(t *testing.T) {
	r := seededRoster(t)
	def := SystemDefaultDefinition("sd", "dep-1", testNow)
	def.Name = "Hacked"
	assert.ErrorIs(t, r.Replace(def), ErrForbidden)
}

func TestRoster_ReplaceBumpsVersionAndKeepsLifecycle(t *testing.T) {
	r := seededRoster(t, "wf-a")
	require.NoError(t, r.Activate("wf-a", nil))

	edit := basicDefinition("wf-a")
	edit.Name = "Renamed"
	edit.Status = domain.WorkflowStatusDraft
	edit.IsSystemDefault = true
	require.NoError(t, r.Replace(edit))

	w, _ := r.Get("wf-a")
	assert.Equal(t, "Renamed", w.Name)
	assert.Equal(t, 2, w.Version)
	assert.Equal(t, domain.WorkflowStatusActive, w.Status)
	assert.False(t, w.IsSystemDefault)
}

func TestRoster_AddErrors(t *testing.T) {
	r := seededRoster(t, "wf-a")
	assert.ErrorIs(t, r.Add(basicDefinition("wf-a")), ErrConflict)

	dup := basicDefinition("wf-x")
	dup.IsSystemDefault = true
	assert.ErrorIs(t, r.Add(dup), ErrConflict)

	active := basicDefinition("wf-y")
	active.Status = domain.WorkflowStatusActive
	require.NoError(t, r.Add(active))
	assert.Equal(t, domain.WorkflowStatusActive, statusOf(t, r, "wf-y"))
	assert.Equal(t, domain.WorkflowStatusInactive, statusOf(t, r, "sd"))
}

func TestRoster_HealPromotesOldest(t *testing.T) {
	older := basicDefinition("wf-old")
	older.CreatedAt = testNow.Add(-time.Hour)
	newer := basicDefinition("wf-new")
	newer.Status = domain.WorkflowStatusActive

	r := NewRoster([]*domain.WorkflowDefinition{newer, older}, testNow)
	require.Error(t, r.Verify())

	repairs := r.Heal()
	assert.NotEmpty(t, repairs)
	require.NoError(t, r.Verify())

	sd := r.SystemDefault()
	require.NotNil(t, sd)
	assert.Equal(t, "wf-old", sd.ID)
	assert.Equal(t, "wf-old", r.Active().ID)
	assert.Equal(t, domain.WorkflowStatusInactive, statusOf(t, r, "wf-new"))
}

func TestRoster_HealMultipleActive(t *testing.T) {
	sd := SystemDefaultDefinition("sd", "dep-1", testNow)
	a := basicDefinition("wf-a")
	a.Status = domain.WorkflowStatusActive
	a.UpdatedAt = testNow.Add(time.Hour)
	b := basicDefinition("wf-b")
	b.Status = domain.WorkflowStatusActive
	b.UpdatedAt = testNow.Add(2 * time.Hour)

	r := NewRoster([]*domain.WorkflowDefinition{sd, a, b}, testNow)
	r.Heal()
	require.NoError(t, r.Verify())
	assert.Equal(t, "sd", r.Active().ID)

	sd.Status = domain.WorkflowStatusInactive
	r = NewRoster([]*domain.WorkflowDefinition{sd, a, b}, testNow)
	r.Heal()
	require.NoError(t, r.Verify())
	assert.Equal(t, "wf-b", r.Active().ID)
}

func TestRoster_HealDuplicateSystemDefaults(t *testing.T) {
	first := SystemDefaultDefinition("sd-1", "dep-1", testNow)
	second := SystemDefaultDefinition("sd-2", "dep-1", testNow.Add(time.Minute))
	second.Status = domain.WorkflowStatusInactive

	r := NewRoster([]*domain.WorkflowDefinition{second, first}, testNow)
	r.Heal()
	require.NoError(t, r.Verify())
	assert.Equal(t, "sd-1", r.SystemDefault().ID)
}

func TestRoster_HealHealthyIsNoop(t *testing.T) {
	r := seededRoster(t, "wf-a")
	assert.Empty(t, r.Heal())
}

func TestRoster_ChangedTracksTouchedRows(t *testing.T) {
	r := NewRoster([]*domain.WorkflowDefinition{
		SystemDefaultDefinition("sd", "dep-1", testNow),
		basicDefinition("wf-a"),
		basicDefinition("wf-b"),
	}, testNow)
	assert.Empty(t, r.Changed())

	require.NoError(t, r.Activate("wf-a", nil))
	var ids []string
	for _, w := range r.Changed() {
		ids = append(ids, w.ID)
	}
	assert.ElementsMatch(t, []string{"sd", "wf-a"}, ids)
}

func TestRoster_NewRosterCopiesInput(t *testing.T) {
	def := basicDefinition("wf-a")
	r := NewRoster([]*domain.WorkflowDefinition{SystemDefaultDefinition("sd", "dep-1", testNow), def}, testNow)
	require.NoError(t, r.Activate("wf-a", nil))
	assert.Equal(t, domain.WorkflowStatusDraft, def.Status)
}

// Random activate/deactivate/delete sequences must never leave the roster
// without exactly one active workflow.
func TestRoster_SingleActiveProperty(t *testing.T) {
	for seed := int64(1); seed <= 25; seed++ {
		rng := rand.New(rand.NewSource(seed))
		r := seededRoster(t)
		next := 0

		for step := 0; step < 200; step++ {
			ids := make([]string, 0, r.Len())
			for _, w := range r.List() {
				ids = append(ids, w.ID)
			}
			pick := ids[rng.Intn(len(ids))]

			switch op := rng.Intn(5); op {
			case 0:
				next++
				def := basicDefinition(fmt.Sprintf("wf-%d", next))
				def.CreatedAt = testNow.Add(time.Duration(next) * time.Second)
				if rng.Intn(3) == 0 {
					def.Status = domain.WorkflowStatusActive
				}
				require.NoError(t, r.Add(def))
			case 1:
				_ = r.Activate(pick, nil)
			case 2:
				_ = r.Deactivate(pick)
			case 3:
				_ = r.Remove(pick, rng.Intn(4) == 0)
			case 4:
				r.Heal()
			}
			require.NoError(t, r.Verify(), "seed=%d step=%d", seed, step)
			require.Equal(t, "sd", r.SystemDefault().ID)
		}
	}
}
