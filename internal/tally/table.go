// Package tally counts how many times each IP address was seen across a run.
// A Table is safe for concurrent use by any number of producers.
package tally

import (
	"sync"

	"go.uber.org/atomic"
)

// Count is one IP and the number of times it was recorded.
type Count struct {
	IP    string
	Count int
}

// Table maps IP strings to occurrence counts. Counts only ever increase.
// Keys remember the order in which they were first recorded so that
// snapshots are deterministic.
type Table struct {
	mu     sync.Mutex // protects fields below
	counts map[string]int
	order  []string // first-seen order of keys

	total atomic.Int64 // every recorded occurrence
}

// New returns an empty Table.
func New() *Table {
	return &Table{counts: make(map[string]int)}
}

// Add records one occurrence of ip.
func (t *Table) Add(ip string) {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.add(ip)
}

// AddAll records one occurrence of every ip in ips inside a single critical
// section. If each is non-nil it is called for every ip, still under the
// lock, right before that ip is counted.
func (t *Table) AddAll(ips []string, each func(ip string)) {
	if len(ips) == 0 {
		return
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	for _, ip := range ips {
		if each != nil {
			each(ip)
		}
		t.add(ip)
	}
}

// add must be called with t.mu held.
func (t *Table) add(ip string) {
	if _, ok := t.counts[ip]; !ok {
		t.order = append(t.order, ip)
	}
	t.counts[ip]++
	t.total.Inc()
}

// Get returns the current count for ip.
func (t *Table) Get(ip string) int {
	t.mu.Lock()
	defer t.mu.Unlock()

	return t.counts[ip]
}

// Len returns the number of distinct IPs recorded.
func (t *Table) Len() int {
	t.mu.Lock()
	defer t.mu.Unlock()

	return len(t.order)
}

// Total returns the number of occurrences recorded across all IPs.
func (t *Table) Total() int64 { return t.total.Load() }

// Snapshot returns a copy of the table in first-seen order. It is meant
// to be taken once every producer has finished.
func (t *Table) Snapshot() []Count {
	t.mu.Lock()
	defer t.mu.Unlock()

	out := make([]Count, 0, len(t.order))
	for _, ip := range t.order {
		out = append(out, Count{IP: ip, Count: t.counts[ip]})
	}
	return out
}
