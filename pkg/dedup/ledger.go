// Package dedup tracks envelope ids that have already been dispatched in
// this context's lifetime.
package dedup

import "sync"

// DefaultWindow is the number of ids retained before the oldest are evicted.
const DefaultWindow = 4096

// Ledger is a bounded set of envelope ids with insertion-order eviction.
// Ids are never reused by senders, so evicting an old id can only cause a
// re-dispatch if a transport redelivers after a full window of intervening
// messages.
type Ledger struct {
	mu     sync.Mutex
	seen   map[string]struct{}
	ring   []string
	next   int
	window int
}

// NewLedger creates a Ledger holding at most window ids. A window of zero or
// less uses DefaultWindow.
func NewLedger(window int) *Ledger {
	if window <= 0 {
		window = DefaultWindow
	}
	return &Ledger{
		seen:   make(map[string]struct{}, window),
		ring:   make([]string, window),
		window: window,
	}
}

// Seen reports whether the id has already been marked.
func (l *Ledger) Seen(id string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	_, ok := l.seen[id]
	return ok
}

// Mark records the id, evicting the oldest entry when the window is full.
// Marking an already-seen id is a no-op.
func (l *Ledger) Mark(id string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if _, ok := l.seen[id]; ok {
		return
	}
	if old := l.ring[l.next]; old != "" {
		delete(l.seen, old)
	}
	l.ring[l.next] = id
	l.next = (l.next + 1) % l.window
	l.seen[id] = struct{}{}
}

// Len returns the number of ids currently retained.
func (l *Ledger) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.seen)
}
