// Package clockid provides the monotonic millisecond clock, the
// monotonically increasing coroutine-id counter, and the current-thread-id
// accessor that the rest of the runtime is built on.
//
// The thread-id accessor is grounded on eventloop's getGoroutineID
// (loop.go), which parses runtime.Stack output as the nearest thing Go
// offers to a TLS-style "current execution context" witness. We additionally
// expose the real OS thread id (via unix.Gettid) since the scheduler's
// worker-pinning semantics (spec §4.2 "schedule(work, pinned_thread)")
// operate on OS threads, not goroutines.
package clockid

import (
	"sync/atomic"
	"time"
)

// NowMillis returns the current monotonic time in milliseconds, suitable for
// timer-set deadline arithmetic.
//
// time.Now() on Go carries a monotonic reading alongside the wall clock;
// subtracting two time.Time values (via Sub) uses it automatically, so we
// keep a package-level anchor and report elapsed milliseconds from it. This
// is the same anchor-plus-elapsed-offset idiom as eventloop.Loop's
// tickAnchor/tickElapsedTime pair (loop.go), generalized to a package level
// clock since the timer set is not tied to a single Loop-equivalent here.
func NowMillis() int64 {
	return time.Since(anchor).Milliseconds()
}

var anchor = time.Now()

// coroutineIDCounter is the monotonically increasing coroutine-id sequence.
var coroutineIDCounter atomic.Uint64

// NextCoroutineID returns the next coroutine id. IDs start at 1; 0 is
// reserved to mean "no coroutine" in call sites that need a null sentinel.
func NextCoroutineID() uint64 {
	return coroutineIDCounter.Add(1)
}
