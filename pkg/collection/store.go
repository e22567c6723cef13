package collection

import (
	"slices"
	"sync"
	"sync/atomic"
)

// Page is one page of a collection as returned by a backend.
type Page[T any] struct {
	// Items holds at most Limit items.
	Items []T

	// TotalCount is the number of items matching the filter across all pages.
	TotalCount int

	// SourcePage is the page index the items belong to.
	SourcePage int
}

// Snapshot is an immutable view of a controller's state.
type Snapshot[T any] struct {
	// Filter is the FilterState the view is derived from.
	Filter FilterState

	// Items is the visible page. Callers must treat it as read-only.
	Items []T

	// TotalCount is the number of items matching Filter.
	TotalCount int

	// Window is the navigation window for Filter.Page and TotalCount.
	Window Window

	// Loading is true while the latest fetch is in flight. The previous
	// Items stay visible meanwhile.
	Loading bool

	// Loaded is true once any fetch has been committed.
	Loaded bool

	// Degraded is true when items were removed locally and TotalCount/Window
	// have not been refreshed from the server yet.
	Degraded bool

	// Err is the "could not load" state of the latest fetch, if it failed.
	Err error

	// Version increases on every published change.
	Version uint64
}

// Listener receives snapshots after each state change. Listeners may be
// invoked from several goroutines; a listener never sees an older Version
// after a newer one.
type Listener[T any] func(Snapshot[T])

type subscription[T any] struct {
	fn   Listener[T]
	last atomic.Uint64
}

// Store is an observable container for a Snapshot.
type Store[T any] struct {
	mu     sync.RWMutex
	snap   Snapshot[T]
	nextID int
	subs   map[int]*subscription[T]
}

// NewStore creates a store holding the initial snapshot.
func NewStore[T any](initial Snapshot[T]) *Store[T] {
	return &Store[T]{
		snap: initial,
		subs: make(map[int]*subscription[T]),
	}
}

// Snapshot returns the current snapshot.
func (s *Store[T]) Snapshot() Snapshot[T] {
	s.mu.RLock()
	defer s.mu.RUnlock()
	snap := s.snap
	snap.Items = slices.Clone(snap.Items)
	return snap
}

// Subscribe registers l and returns a func that removes it.
func (s *Store[T]) Subscribe(l Listener[T]) func() {
	s.mu.Lock()
	id := s.nextID
	s.nextID++
	s.subs[id] = &subscription[T]{fn: l}
	s.mu.Unlock()

	return func() {
		s.mu.Lock()
		delete(s.subs, id)
		s.mu.Unlock()
	}
}

// Apply runs fn on a copy of the current snapshot under the store lock. If
// fn returns true the copy becomes the new snapshot and subscribers are
// notified after the lock is released. fn must not block.
func (s *Store[T]) Apply(fn func(*Snapshot[T]) bool) (Snapshot[T], bool) {
	s.mu.Lock()
	next := s.snap
	if !fn(&next) {
		cur := s.snap
		s.mu.Unlock()
		return cur, false
	}
	next.Version = s.snap.Version + 1
	s.snap = next

	subs := make([]*subscription[T], 0, len(s.subs))
	for _, sub := range s.subs {
		subs = append(subs, sub)
	}
	s.mu.Unlock()

	for _, sub := range subs {
		sub.deliver(next)
	}
	return next, true
}

func (sub *subscription[T]) deliver(snap Snapshot[T]) {
	for {
		last := sub.last.Load()
		if snap.Version <= last {
			return
		}
		if sub.last.CompareAndSwap(last, snap.Version) {
			break
		}
	}
	snap.Items = slices.Clone(snap.Items)
	sub.fn(snap)
}
