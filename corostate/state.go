// Package corostate provides a small, allocation-free atomic state machine,
// shared by the fiber, scheduler, and iomanager packages.
package corostate

import "sync/atomic"

// Padded is a cache-line padded atomic state holder. The padding mirrors
// eventloop.FastState: false sharing between the state word and neighbouring
// hot fields is a measurable cost under contention from many worker threads.
type Padded struct { // betteralign:ignore
	_ [64]byte
	v atomic.Uint64
	_ [56]byte
}

// New returns a Padded initialized to the given state.
func New(initial uint64) *Padded {
	p := &Padded{}
	p.v.Store(initial)
	return p
}

// Load atomically reads the current state.
func (p *Padded) Load() uint64 { return p.v.Load() }

// Store atomically overwrites the state unconditionally. Reserved for
// irreversible transitions (terminal states) where no racing writer could
// legitimately contest the write.
func (p *Padded) Store(v uint64) { p.v.Store(v) }

// TryTransition attempts an atomic compare-and-swap from "from" to "to".
func (p *Padded) TryTransition(from, to uint64) bool {
	return p.v.CompareAndSwap(from, to)
}

// TransitionAny attempts a CAS from any of validFrom to to, returning true on
// the first one that succeeds.
func (p *Padded) TransitionAny(validFrom []uint64, to uint64) bool {
	for _, from := range validFrom {
		if p.v.CompareAndSwap(from, to) {
			return true
		}
	}
	return false
}
