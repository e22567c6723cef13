package orders

import (
	"sync"

	"github.com/Sternrassler/shop-admin-client/pkg/money"
)

// Accumulator is the running delivered-income total. It is seeded once
// from the server and afterwards only moved by accepted transitions; it is
// never recomputed from the order list.
//
// Adjustments made before the seed arrives are kept as a pending delta and
// applied on top of it.
type Accumulator struct {
	mu      sync.Mutex
	value   money.Cents
	pending money.Cents
	seeded  bool
}

// Seed sets the starting value plus any adjustments booked so far.
// Negative results are clamped to zero. Later calls are ignored.
func (a *Accumulator) Seed(v money.Cents) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.seeded {
		return
	}
	a.value = max(v+a.pending, 0)
	a.pending = 0
	a.seeded = true
}

// Add increases the total and returns the new value.
func (a *Accumulator) Add(v money.Cents) money.Cents {
	a.mu.Lock()
	defer a.mu.Unlock()
	if !a.seeded {
		a.pending += v
		return max(a.pending, 0)
	}
	a.value += v
	return a.value
}

// Sub decreases the total, never below zero, and returns the new value.
func (a *Accumulator) Sub(v money.Cents) money.Cents {
	a.mu.Lock()
	defer a.mu.Unlock()
	if !a.seeded {
		a.pending -= v
		return max(a.pending, 0)
	}
	a.value = max(a.value-v, 0)
	return a.value
}

// Value returns the current total.
func (a *Accumulator) Value() money.Cents {
	a.mu.Lock()
	defer a.mu.Unlock()
	if !a.seeded {
		return max(a.pending, 0)
	}
	return a.value
}

// Seeded reports whether Seed has been called.
func (a *Accumulator) Seeded() bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.seeded
}
