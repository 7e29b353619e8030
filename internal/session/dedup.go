package session

import (
	"container/list"
	"sync"
)

// DedupGuard suppresses double-processing of self-echoed outbound events.
// It is a fixed-capacity LRU set keyed by the session's serialized message
// id, so memory stays bounded across long-running sessions.
type DedupGuard struct {
	mu       sync.Mutex
	capacity int
	entries  map[string]*list.Element
	order    *list.List
}

// NewDedupGuard creates a guard holding at most capacity ids.
func NewDedupGuard(capacity int) *DedupGuard {
	if capacity <= 0 {
		capacity = 4096
	}
	return &DedupGuard{
		capacity: capacity,
		entries:  make(map[string]*list.Element, capacity),
		order:    list.New(),
	}
}

// Seen reports whether an id has been marked.
func (g *DedupGuard) Seen(id string) bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	_, ok := g.entries[id]
	return ok
}

// Mark records an id, evicting the oldest entry when full.
func (g *DedupGuard) Mark(id string) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.mark(id)
}

// CheckAndMark marks an id and reports whether it had been seen before.
// The check and the mark happen under one lock so concurrent callers can
// never both observe "not seen" for the same id.
func (g *DedupGuard) CheckAndMark(id string) bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	if el, ok := g.entries[id]; ok {
		g.order.MoveToFront(el)
		return true
	}
	g.mark(id)
	return false
}

// Len returns the number of tracked ids.
func (g *DedupGuard) Len() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.order.Len()
}

func (g *DedupGuard) mark(id string) {
	if el, ok := g.entries[id]; ok {
		g.order.MoveToFront(el)
		return
	}
	g.entries[id] = g.order.PushFront(id)
	for g.order.Len() > g.capacity {
		oldest := g.order.Back()
		g.order.Remove(oldest)
		delete(g.entries, oldest.Value.(string))
	}
}
