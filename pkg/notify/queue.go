// Package notify holds transient user-facing messages for the current page
// context. Entries expire on their own after a fixed delay; anything that has
// to survive a full navigation belongs in a flash message instead (see
// webenv).
package notify

import (
	"sync"
	"time"
)

// Kind classifies an entry for display purposes.
type Kind string

const (
	KindSuccess Kind = "success"
	KindDanger  Kind = "danger"
)

// DefaultTTL is how long an entry stays visible unless dismissed earlier.
const DefaultTTL = 5 * time.Second

// Entry is a single queued message.
type Entry struct {
	ID   int64
	Kind Kind
	Text string
}

// Queue is an in-memory, auto-expiring message queue. Entries are kept in
// insertion order. The zero value is not usable, use New.
type Queue struct {
	mu      sync.Mutex
	ttl     time.Duration
	lastID  int64
	entries []Entry
}

// New returns an empty queue whose entries expire after DefaultTTL.
func New() *Queue {
	return NewWithTTL(DefaultTTL)
}

// NewWithTTL returns an empty queue with a custom expiry, mainly for tests.
func NewWithTTL(ttl time.Duration) *Queue {
	return &Queue{ttl: ttl}
}

// Alert appends a message and schedules its removal exactly ttl after
// insertion, independent of later insertions. It returns the entry id so the
// caller can dismiss it early.
func (q *Queue) Alert(kind Kind, text string) int64 {
	q.mu.Lock()
	q.lastID++
	id := q.lastID
	q.entries = append(q.entries, Entry{ID: id, Kind: kind, Text: text})
	q.mu.Unlock()

	time.AfterFunc(q.ttl, func() { q.Dismiss(id) })
	return id
}

// Dismiss removes the entry with the given id if it is still present.
// Dismissing an unknown or already-expired id is a no-op.
func (q *Queue) Dismiss(id int64) {
	q.mu.Lock()
	defer q.mu.Unlock()

	for i, e := range q.entries {
		if e.ID == id {
			q.entries = append(q.entries[:i], q.entries[i+1:]...)
			return
		}
	}
}

// Entries returns a snapshot of the queue in insertion order.
func (q *Queue) Entries() []Entry {
	q.mu.Lock()
	defer q.mu.Unlock()

	out := make([]Entry, len(q.entries))
	copy(out, q.entries)
	return out
}

// Len reports the number of currently visible entries.
func (q *Queue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.entries)
}
