// Package dedupe remembers recently archived record ids so replays are skipped.
package dedupe

import (
	"container/list"
	"sync"
	"time"
)

type mark struct {
	id string
	at time.Time
}

// Window is a bounded set of ids, each remembered for at most ttl. When full, the id
// marked longest ago is forgotten first.
type Window struct {
	mu       sync.Mutex
	byID     map[string]*list.Element
	order    *list.List
	capacity int
	ttl      time.Duration
	now      func() time.Time
}

// Option configures a Window.
type Option func(*Window)

// WithClock overrides the time source.
func WithClock(now func() time.Time) Option {
	return func(w *Window) {
		if now != nil {
			w.now = now
		}
	}
}

// NewWindow creates a window with the provided capacity and ttl.
func NewWindow(capacity int, ttl time.Duration, opts ...Option) *Window {
	if capacity <= 0 {
		capacity = 1
	}
	if ttl <= 0 {
		ttl = time.Hour
	}
	w := &Window{
		byID:     make(map[string]*list.Element, capacity),
		order:    list.New(),
		capacity: capacity,
		ttl:      ttl,
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(w)
	}
	return w
}

// Seen reports whether id was marked within the ttl. It does not mark the id.
func (w *Window) Seen(id string) bool {
	now := w.now()

	w.mu.Lock()
	defer w.mu.Unlock()

	el, ok := w.byID[id]
	return ok && now.Sub(el.Value.(mark).at) <= w.ttl
}

// Mark records id as archived now, refreshing it if already present.
func (w *Window) Mark(id string) {
	now := w.now()

	w.mu.Lock()
	defer w.mu.Unlock()

	if el, ok := w.byID[id]; ok {
		w.order.Remove(el)
	}
	w.byID[id] = w.order.PushBack(mark{id: id, at: now})
	w.evict(now)
}

// Len returns the number of remembered ids, expired ones included until evicted.
func (w *Window) Len() int {
	w.mu.Lock()
	defer w.mu.Unlock()
	return len(w.byID)
}

func (w *Window) evict(now time.Time) {
	cutoff := now.Add(-w.ttl)
	for {
		front := w.order.Front()
		if front == nil {
			return
		}
		m := front.Value.(mark)
		if len(w.byID) <= w.capacity && !m.at.Before(cutoff) {
			return
		}
		w.order.Remove(front)
		delete(w.byID, m.id)
	}
}
