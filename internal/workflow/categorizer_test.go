package workflow

import (
	"fmt"
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/NTGClarityPK/ntg-tickets-sub002/internal/domain"
)

func TestNormalizeStatus(t *testing.T) {
	assert.Equal(t, "IN_PROGRESS", NormalizeStatus("In Progress"))
	assert.Equal(t, "IN_PROGRESS", NormalizeStatus("IN_PROGRESS"))
	assert.Equal(t, "IN_PROGRESS", NormalizeStatus("  in \t progress "))
	assert.Equal(t, "", NormalizeStatus("   "))
}

func TestCategorize_NormalizesStatusNames(t *testing.T) {
	active := basicDefinition("wf-active")
	active.WorkingStatuses = []domain.StatusKey{domain.UnqualifiedKey("In Progress")}

	assert.Equal(t, domain.BucketWorking, Categorize("In Progress", nil, active))
	assert.Equal(t, domain.BucketWorking, Categorize("IN_PROGRESS", nil, active))
	assert.Equal(t, domain.BucketWorking, Categorize("in progress", strPtr("wf-active"), active))
	assert.Equal(t, domain.BucketDone, Categorize("closed", nil, active))
	assert.Equal(t, domain.BucketHold, Categorize("Waiting on customer", nil, active))
}

func TestCategorize_MatchingRules(t *testing.T) {
	active := basicDefinition("wf-active")
	active.WorkingStatuses = []domain.StatusKey{
		domain.UnqualifiedKey("Open"),
		domain.QualifiedKey("wf-other", "Triage"),
	}
	active.DoneStatuses = []domain.StatusKey{
		domain.QualifiedKey("wf-other", "Shipped"),
	}

	tests := []struct {
		name     string
		status   string
		ticketWF *string
		want     domain.Bucket
	}{
		{name: "unqualified entry belongs to the active workflow", status: "Open", ticketWF: strPtr("wf-active"), want: domain.BucketWorking},
		{name: "null ticket workflow maps to active", status: "Open", ticketWF: nil, want: domain.BucketWorking},
		{name: "unqualified entry does not apply to other workflows", status: "Open", ticketWF: strPtr("wf-other"), want: domain.BucketHold},
		{name: "qualified entry matches its own workflow", status: "Triage", ticketWF: strPtr("wf-other"), want: domain.BucketWorking},
		{name: "active workflow inherits other workflow entries", status: "Triage", ticketWF: strPtr("wf-active"), want: domain.BucketWorking},
		{name: "null inherits too", status: "shipped", ticketWF: nil, want: domain.BucketDone},
		{name: "third workflow does not inherit", status: "Triage", ticketWF: strPtr("wf-third"), want: domain.BucketHold},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Categorize(tt.status, tt.ticketWF, active))
		})
	}
}

func TestCategorize_NoActiveWorkflow(t *testing.T) {
	assert.Equal(t, domain.BucketHold, Categorize("Open", nil, nil))
}

func TestCategorizer_OwnWorkflowEntries(t *testing.T) {
	active := basicDefinition("wf-active")
	own := basicDefinition("wf-old")
	own.WorkingStatuses = []domain.StatusKey{domain.UnqualifiedKey("Legacy Review")}

	c := NewCategorizer(active, own)
	assert.Equal(t, domain.BucketWorking, c.Categorize("Legacy Review", strPtr("wf-old")))
	assert.Equal(t, domain.BucketWorking, c.Categorize("Legacy Review", nil))
	assert.Equal(t, "wf-active", c.ActiveWorkflowID())
}

func TestCategorize_Deterministic(t *testing.T) {
	active := SystemDefaultDefinition("sd", "dep-1", testNow)
	c := NewCategorizer(active)
	for _, status := range []string{"New", "in progress", "Resolved", "On Hold", "", "???"} {
		first := c.Categorize(status, nil)
		for i := 0; i < 20; i++ {
			require.Equal(t, first, c.Categorize(status, nil))
			require.Equal(t, first, Categorize(status, nil, active))
		}
	}
}

func TestCountBuckets_IndependentOfWorkers(t *testing.T) {
	active := SystemDefaultDefinition("sd", "dep-1", testNow)
	c := NewCategorizer(active)
	statuses := []string{"New", "Open", "In Progress", "On Hold", "Resolved", "Closed", "Reopened", "Unknown"}

	rng := rand.New(rand.NewSource(42))
	tickets := make([]domain.Ticket, 2500)
	for i := range tickets {
		tickets[i] = domain.Ticket{ID: fmt.Sprintf("t-%d", i), Status: statuses[rng.Intn(len(statuses))]}
	}
	categorize := func(t domain.Ticket) domain.Bucket { return c.Categorize(t.Status, t.WorkflowID) }

	want := CountBuckets(tickets, categorize, 1, len(tickets))
	assert.Equal(t, len(tickets), want.Total)
	assert.Equal(t, want.Total, want.ByBucket[domain.BucketWorking]+want.ByBucket[domain.BucketDone]+want.ByBucket[domain.BucketHold])

	for _, workers := range []int{0, 2, 7, 16} {
		for _, batch := range []int{0, 1, 33, 1000} {
			got := CountBuckets(tickets, categorize, workers, batch)
			assert.Equal(t, want, got, "workers=%d batch=%d", workers, batch)
		}
	}
}

func TestCountBuckets_Empty(t *testing.T) {
	got := CountBuckets(nil, func(domain.Ticket) domain.Bucket { return domain.BucketHold }, 4, 10)
	assert.Equal(t, 0, got.Total)
	assert.Len(t, got.ByBucket, 3)
}
