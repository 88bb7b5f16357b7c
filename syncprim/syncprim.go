// Package syncprim wraps OS-level synchronization primitives behind the
// small surface the runtime needs: a counted semaphore, a mutex, and a
// read/write lock (spec §2 "Synchronization primitives").
//
// Go's sync.Mutex and sync.RWMutex already wrap the OS futex directly, so
// those two are thin aliases kept here only so call sites import one
// package for all three primitives, matching how eventloop keeps its
// locking primitives (queue mutex, fd rwlock, per-fd mutex) next to each
// other conceptually even though they're plain stdlib types inline in
// loop.go/poller_linux.go.
//
// The counted semaphore is NOT reimplemented on stdlib primitives: stdlib
// has no semaphore type, and hand-rolling one on a mutex+cond is exactly
// the kind of bespoke concurrency primitive the ecosystem already solves
// well. golang.org/x/sync/semaphore (a real dependency surfaced by the
// teacher repo's own module graph) is used instead.
package syncprim

import (
	"context"
	"sync"

	"golang.org/x/sync/semaphore"
)

// Mutex is an exclusive lock.
type Mutex = sync.Mutex

// RWMutex is a reader/writer lock.
type RWMutex = sync.RWMutex

// Semaphore is a counted semaphore wrapping golang.org/x/sync/semaphore.
// It is used by the scheduler to bound the number of concurrently active
// dispatch-loop workers when a caller wants a soft concurrency cap
// independent of the fixed worker-thread count.
type Semaphore struct {
	w *semaphore.Weighted
}

// NewSemaphore creates a semaphore with the given count of permits.
func NewSemaphore(permits int64) *Semaphore {
	return &Semaphore{w: semaphore.NewWeighted(permits)}
}

// Acquire blocks until a permit is available or ctx is done.
func (s *Semaphore) Acquire(ctx context.Context) error {
	return s.w.Acquire(ctx, 1)
}

// TryAcquire acquires a permit without blocking, returning false if none are
// available.
func (s *Semaphore) TryAcquire() bool {
	return s.w.TryAcquire(1)
}

// Release returns a permit to the semaphore.
func (s *Semaphore) Release() {
	s.w.Release(1)
}
