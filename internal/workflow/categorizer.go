package workflow

import (
	"strings"
	"sync"

	"github.com/NTGClarityPK/ntg-tickets-sub002/internal/domain"
)

// NormalizeStatus uppercases a status and replaces whitespace runs with
// underscores, so "In Progress" and "IN_PROGRESS" compare equal.
func NormalizeStatus(status string) string {
	return strings.Join(strings.Fields(strings.ToUpper(status)), "_")
}

// Categorizer buckets statuses for one active workflow. It is immutable once
// built and safe for concurrent use.
type Categorizer struct {
	activeID string
	working  map[string]map[string]struct{}
	done     map[string]map[string]struct{}
}

// NewCategorizer indexes the categorization of active. Each of others
// contributes its own entries, with unqualified keys scoped to itself; pass a
// ticket's own workflow there when it is not the active one.
func NewCategorizer(active *domain.WorkflowDefinition, others ...*domain.WorkflowDefinition) *Categorizer {
	c := &Categorizer{
		working: make(map[string]map[string]struct{}),
		done:    make(map[string]map[string]struct{}),
	}
	if active != nil {
		c.activeID = active.ID
		c.add(active)
	}
	for _, o := range others {
		if o == nil || (active != nil && o.ID == active.ID) {
			continue
		}
		c.add(o)
	}
	return c
}

func (c *Categorizer) add(def *domain.WorkflowDefinition) {
	index(c.working, def.ID, def.WorkingStatuses)
	index(c.done, def.ID, def.DoneStatuses)
}

func index(into map[string]map[string]struct{}, ownerID string, keys []domain.StatusKey) {
	for _, k := range keys {
		norm := NormalizeStatus(k.Status)
		if norm == "" {
			continue
		}
		id := ownerID
		if k.IsQualified() {
			id = *k.WorkflowID
		}
		set, ok := into[id]
		if !ok {
			set = make(map[string]struct{})
			into[id] = set
		}
		set[norm] = struct{}{}
	}
}

// ActiveWorkflowID is the workflow unbound tickets resolve to.
func (c *Categorizer) ActiveWorkflowID() string {
	return c.activeID
}

// Categorize resolves a ticket status into its reporting bucket.
func (c *Categorizer) Categorize(status string, ticketWorkflowID *string) domain.Bucket {
	norm := NormalizeStatus(status)
	ticketKey := c.activeID
	if ticketWorkflowID != nil && *ticketWorkflowID != "" {
		ticketKey = *ticketWorkflowID
	}
	if c.matches(c.working, norm, ticketKey) {
		return domain.BucketWorking
	}
	if c.matches(c.done, norm, ticketKey) {
		return domain.BucketDone
	}
	return domain.BucketHold
}

func (c *Categorizer) matches(sets map[string]map[string]struct{}, norm, ticketKey string) bool {
	if norm == "" {
		return false
	}
	for categorizedID, set := range sets {
		if _, ok := set[norm]; !ok {
			continue
		}
		switch {
		case ticketKey == categorizedID:
			return true
		case c.activeID != "" && categorizedID != c.activeID && ticketKey == c.activeID:
			// Tickets of the active workflow inherit categorizations declared
			// for other workflows under the same status name.
			return true
		case categorizedID == "" && ticketKey == "":
			return true
		}
	}
	return false
}

// Categorize is the single-call form of Categorizer.Categorize.
func Categorize(status string, ticketWorkflowID *string, active *domain.WorkflowDefinition) domain.Bucket {
	return NewCategorizer(active).Categorize(status, ticketWorkflowID)
}

// Tally holds aggregate bucket counts.
type Tally struct {
	Total    int
	ByBucket map[domain.Bucket]int
	// ByStatus is keyed by normalized status. A status can land in more than
	// one bucket when tickets of different workflows share it.
	ByStatus map[string]map[domain.Bucket]int
}

// NewTally returns an empty tally with every bucket present.
func NewTally() Tally {
	t := Tally{ByBucket: make(map[domain.Bucket]int, 3), ByStatus: make(map[string]map[domain.Bucket]int)}
	for _, b := range domain.Buckets() {
		t.ByBucket[b] = 0
	}
	return t
}

func (t *Tally) add(status string, bucket domain.Bucket, n int) {
	t.Total += n
	t.ByBucket[bucket] += n
	key := NormalizeStatus(status)
	counts, ok := t.ByStatus[key]
	if !ok {
		counts = make(map[domain.Bucket]int, 1)
		t.ByStatus[key] = counts
	}
	counts[bucket] += n
}

func (t *Tally) merge(o Tally) {
	for status, counts := range o.ByStatus {
		for b, n := range counts {
			t.add(status, b, n)
		}
	}
}

// CountBuckets categorizes tickets in batches across workers goroutines.
// The bucket counts do not depend on workers or batchSize.
func CountBuckets(tickets []domain.Ticket, categorize func(domain.Ticket) domain.Bucket, workers, batchSize int) Tally {
	if workers < 1 {
		workers = 1
	}
	if batchSize < 1 {
		batchSize = 500
	}

	batches := make(chan []domain.Ticket)
	results := make([]Tally, workers)
	var wg sync.WaitGroup
	for w := 0; w < workers; w++ {
		results[w] = NewTally()
		wg.Add(1)
		go func(out *Tally) {
			defer wg.Done()
			for batch := range batches {
				for _, t := range batch {
					out.add(t.Status, categorize(t), 1)
				}
			}
		}(&results[w])
	}
	for start := 0; start < len(tickets); start += batchSize {
		end := start + batchSize
		if end > len(tickets) {
			end = len(tickets)
		}
		batches <- tickets[start:end]
	}
	close(batches)
	wg.Wait()

	total := NewTally()
	for _, r := range results {
		total.merge(r)
	}
	return total
}
