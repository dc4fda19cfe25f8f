// Package activereq maintains the in-flight request table: a single
// mutex-guarded map of ActiveRequest entries, created at router entry and
// removed in a guaranteed-release block, kept only for observability.
package activereq

import (
	"sync"
	"time"
)

// Entry is one in-flight request's observable state.
type Entry struct {
	ID          string
	Method      string
	URL         string
	StartAt     time.Time
	ClientRange string
}

// Table is the shared active-request map, read by the stats endpoint and
// mutated by the router on every request's entry and exit.
type Table struct {
	mu      sync.Mutex
	entries map[string]Entry
}

func New() *Table {
	return &Table{entries: make(map[string]Entry)}
}

// Start records a new in-flight request and returns a Done func the caller
// must invoke exactly once, on every exit path, to remove it.
func (t *Table) Start(id, method, url, clientRange string) (done func()) {
	t.mu.Lock()
	t.entries[id] = Entry{
		ID:          id,
		Method:      method,
		URL:         url,
		StartAt:     time.Now(),
		ClientRange: clientRange,
	}
	t.mu.Unlock()

	return func() {
		t.mu.Lock()
		delete(t.entries, id)
		t.mu.Unlock()
	}
}

// Len reports the number of requests currently in flight.
func (t *Table) Len() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.entries)
}

// Snapshot returns a copy of every in-flight entry, for diagnostics.
func (t *Table) Snapshot() []Entry {
	t.mu.Lock()
	defer t.mu.Unlock()

	out := make([]Entry, 0, len(t.entries))
	for _, e := range t.entries {
		out = append(out, e)
	}
	return out
}
