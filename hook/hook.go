//go:build linux

// Package hook implements the syscall-hook layer (spec §4.5): transparent
// coroutine-suspending wrappers around sleep, socket, connect, accept, send,
// recv, close, and fcntl. A per-goroutine hook_enabled flag (default off)
// gates the coroutine path; anything false delegates straight to the real
// syscall, so ordinary goroutines sharing the process are unaffected.
//
// Grounded on eventloop's Loop/FastPoller pairing: the same "idle calls
// epoll_wait, readiness resumes a parked waiter" loop drives these wrappers,
// just entered from hooked syscalls instead of Loop's own poll step.
package hook

import (
	"sync"
	"sync/atomic"
	"time"

	"coroio/clockid"
	"coroio/fdcache"
	"coroio/fiber"
	"coroio/iomanager"
	"coroio/timerset"
)

// hookEnabled tracks, per goroutine id, whether that goroutine's blocking
// syscalls should take the coroutine-suspending path (spec §4.5 "a per-
// thread boolean hook_enabled (default false)"). Grounded on fiber's own
// registry (fiber.go) for the same "goroutine id as current-context witness"
// idiom, rather than a new TLS mechanism.
var hookEnabled sync.Map // map[uint64]struct{}

// Enable turns on the coroutine path for the calling goroutine. The
// scheduler's worker dispatch loops call this once per worker; ordinary,
// un-hooked goroutines never do, so hooked calls from them delegate straight
// through.
func Enable() { hookEnabled.Store(clockid.GoroutineID(), struct{}{}) }

// Disable turns the coroutine path back off for the calling goroutine.
func Disable() { hookEnabled.Delete(clockid.GoroutineID()) }

// Enabled reports whether the calling goroutine currently has the coroutine
// path enabled.
func Enabled() bool {
	_, ok := hookEnabled.Load(clockid.GoroutineID())
	return ok
}

// Hooks binds the hook layer's entry points to one I/O manager and
// descriptor cache. Constructed once per runtime instance; its methods are
// the coroutine-aware replacements for the blocking syscalls listed in spec
// §4.5.
type Hooks struct {
	Manager *iomanager.Manager
	Cache   *fdcache.Cache
}

// New constructs a Hooks bound to m and its descriptor cache.
func New(m *iomanager.Manager) *Hooks {
	return &Hooks{Manager: m, Cache: m.Cache}
}

// eligible reports whether fd should take the coroutine-suspending path:
// hooking is enabled for the caller, fd has cache metadata, it is not
// already closed, it is a socket, and the application has not explicitly
// asked for non-blocking semantics of its own (spec §4.5 do_io precondition
// chain).
func (h *Hooks) eligible(fd int) (*fdcache.Entry, bool) {
	if !Enabled() {
		return nil, false
	}
	e, err := h.Cache.Get(fd, false)
	if err != nil || e == nil {
		return nil, false
	}
	if e.Closed() || !e.IsSocket() || e.UserNonblock() {
		return nil, false
	}
	return e, true
}

// waitForIO registers the current fiber against fd/dir, optionally bounding
// the wait with a conditional timer, and parks until either fires (spec
// §4.5 do_io: "install conditional timer... add_event... yield_to_hold").
// Returns ErrTimeout if the timer fired first, or an error from add_event
// itself if registration failed outright.
func (h *Hooks) waitForIO(fd int, dir iomanager.Direction, timeout time.Duration) error {
	f := fiber.Current()
	if f == nil {
		return fiber.ErrNotCurrent
	}

	var timer *timerset.Timer
	var timedOut atomic.Bool
	if timeout > 0 {
		timer = h.Manager.Timers.Add(clockid.NowMillis(), timeout.Milliseconds(), func() {
			// CancelEvent only wins if the waiter is still registered; if
			// real readiness already fired onReady first, the slot is gone
			// and CancelEvent returns ErrNoWaiter — in that case the fiber
			// is waking up for the genuine event, not this timeout, so
			// timedOut must stay false.
			if h.Manager.CancelEvent(fd, dir) == nil {
				timedOut.Store(true)
			}
		}, false)
	}

	if err := h.Manager.AddEvent(fd, dir, iomanager.Work{Fiber: f}); err != nil {
		if timer != nil {
			timer.Cancel()
		}
		return err
	}

	_ = fiber.Suspend()

	if timer != nil {
		timer.Cancel()
	}
	if timedOut.Load() {
		return ErrTimeout
	}
	return nil
}
