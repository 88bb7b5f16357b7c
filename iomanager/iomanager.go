// Package iomanager implements the I/O manager (spec §4.4): it extends a
// scheduler and timer set by composition (Design Note §9 — a capability
// record, not a virtual-method hierarchy) with an edge-triggered epoll
// instance, a self-pipe wakeup, and a per-fd vector of event contexts,
// turning epoll readiness and timer expiry into coroutine resumptions.
//
// Grounded on eventloop's Loop (loop.go): the fd_contexts vector adapts
// FastPoller's direct-indexed fd table (poller_linux.go) to carry waiter
// state instead of callbacks, and idle()'s structure mirrors Loop.poll's
// epoll_wait-then-runTimers cycle, generalized from a single-threaded
// owning Loop to a delegate any scheduler worker can invoke.
package iomanager

import (
	"sync/atomic"

	"coroio/clockid"
	"coroio/fdcache"
	"coroio/internal/poller"
	"coroio/internal/wakeup"
	"coroio/scheduler"
	"coroio/timerset"
)

// Manager is the I/O manager: a Scheduler and a timerset.Set, composed
// with epoll + self-pipe plumbing that fills the scheduler's idle/tickle
// hooks.
type Manager struct { // betteralign:ignore
	Scheduler *scheduler.Scheduler
	Timers    *timerset.Set
	Cache     *fdcache.Cache

	cfg    config
	poller *poller.Poller
	wake   *wakeup.Pipe
	ctxs   *fdContextTable

	waitingEvents atomic.Int64
}

// New constructs an I/O manager: an epoll instance, a self-pipe registered
// for edge-triggered readability, and a scheduler whose Idle/Tickle hooks
// this manager fills in.
func New(opts ...Option) (*Manager, error) {
	cfg := resolveOptions(opts...)

	p, err := poller.New()
	if err != nil {
		return nil, err
	}
	wp, err := wakeup.New()
	if err != nil {
		_ = p.Close()
		return nil, err
	}

	m := &Manager{
		cfg:    cfg,
		poller: p,
		wake:   wp,
		Cache:  fdcache.New(),
		ctxs:   newFdContextTable(),
	}
	m.Timers = timerset.New(m.tickle)
	m.Scheduler = scheduler.New(scheduler.Hooks{
		Idle:                 m.idlePass,
		Tickle:               m.tickle,
		TerminationPredicate: m.terminationPredicate,
	}, cfg.schedulerOpts...)

	if err := p.Add(wp.ReadFd(), poller.Read, func(poller.Direction) { _ = wp.Drain() }); err != nil {
		_ = wp.Close()
		_ = p.Close()
		return nil, err
	}

	return m, nil
}

// Close releases the epoll instance and self-pipe. The Scheduler itself is
// stopped separately via Manager.Scheduler.Stop/Close.
func (m *Manager) Close() error {
	err1 := m.wake.Close()
	err2 := m.poller.Close()
	if err1 != nil {
		return err1
	}
	return err2
}

// AddEvent registers work to run once fd becomes ready for dir (spec §4.4
// "add_event(fd, direction, fn=none)"). Asserts the direction is not
// already registered for this fd.
func (m *Manager) AddEvent(fd int, dir Direction, work Work) error {
	ctx := m.ctxs.ensure(fd)

	ctx.mu.Lock()
	slot := ctx.slot(dir)
	if slot.active {
		ctx.mu.Unlock()
		return ErrDirectionAlreadyRegistered
	}
	before := ctx.registeredDirs()
	slot.active = true
	slot.work = work
	after := ctx.registeredDirs()
	ctx.mu.Unlock()

	var err error
	if before == 0 {
		err = m.poller.Add(fd, after, m.onReady(fd))
	} else {
		err = m.poller.Modify(fd, after)
	}
	if err != nil {
		ctx.mu.Lock()
		*slot = directionSlot{}
		ctx.mu.Unlock()
		return err
	}

	m.waitingEvents.Add(1)
	return nil
}

// DelEvent clears dir's waiter without firing it (spec §4.4 "del_event").
func (m *Manager) DelEvent(fd int, dir Direction) error {
	ctx := m.ctxs.get(fd)
	if ctx == nil {
		return ErrNoWaiter
	}

	ctx.mu.Lock()
	slot := ctx.slot(dir)
	if !slot.active {
		ctx.mu.Unlock()
		return ErrNoWaiter
	}
	*slot = directionSlot{}
	remaining := ctx.registeredDirs()
	ctx.mu.Unlock()

	if remaining == 0 {
		_ = m.poller.Remove(fd)
	} else {
		_ = m.poller.Modify(fd, remaining)
	}
	m.waitingEvents.Add(-1)
	return nil
}

// CancelEvent is DelEvent, but fires the direction's stored work before
// returning (spec §4.4 "cancel_event").
func (m *Manager) CancelEvent(fd int, dir Direction) error {
	ctx := m.ctxs.get(fd)
	if ctx == nil {
		return ErrNoWaiter
	}

	ctx.mu.Lock()
	slot := ctx.slot(dir)
	if !slot.active {
		ctx.mu.Unlock()
		return ErrNoWaiter
	}
	work := slot.work
	*slot = directionSlot{}
	remaining := ctx.registeredDirs()
	ctx.mu.Unlock()

	if remaining == 0 {
		_ = m.poller.Remove(fd)
	} else {
		_ = m.poller.Modify(fd, remaining)
	}
	m.waitingEvents.Add(-1)
	m.schedule(work)
	return nil
}

// CancelAll removes fd from epoll entirely and fires any registered
// direction's work (spec §4.4 "cancel_all(fd)"), used by the hooked
// close() before the real close syscall.
func (m *Manager) CancelAll(fd int) {
	ctx := m.ctxs.get(fd)
	if ctx == nil {
		return
	}

	ctx.mu.Lock()
	var fired []Work
	if ctx.read.active {
		fired = append(fired, ctx.read.work)
		ctx.read = directionSlot{}
	}
	if ctx.write.active {
		fired = append(fired, ctx.write.work)
		ctx.write = directionSlot{}
	}
	ctx.mu.Unlock()

	if len(fired) > 0 {
		_ = m.poller.Remove(fd)
		m.waitingEvents.Add(-int64(len(fired)))
		for _, w := range fired {
			m.schedule(w)
		}
	}
	m.ctxs.clear(fd)
}

// onReady is the per-fd callback registered with the poller; it classifies
// the observed readiness directions, triggers each direction with an
// active waiter, and re-arms the remaining directions (spec §4.4 idle()
// pseudocode's per-event handling, generalized so it runs at dispatch
// time rather than only from the idle loop's own scan).
func (m *Manager) onReady(fd int) poller.Callback {
	return func(observed poller.Direction) {
		ctx := m.ctxs.get(fd)
		if ctx == nil {
			return
		}

		// EPOLLERR|EPOLLHUP are mapped onto both directions, intersected
		// with what's actually registered (spec §4.4 idle() pseudocode).
		if observed&(poller.Error|poller.Hangup) != 0 {
			observed |= poller.Read | poller.Write
		}

		ctx.mu.Lock()
		registered := ctx.registeredDirs()
		real := observed & registered
		var fired []Work
		if real&Read != 0 && ctx.read.active {
			fired = append(fired, ctx.read.work)
			ctx.read = directionSlot{}
		}
		if real&Write != 0 && ctx.write.active {
			fired = append(fired, ctx.write.work)
			ctx.write = directionSlot{}
		}
		left := ctx.registeredDirs()
		ctx.mu.Unlock()

		if left == 0 {
			_ = m.poller.Remove(fd)
		} else {
			_ = m.poller.Modify(fd, left)
		}
		m.waitingEvents.Add(-int64(len(fired)))
		for _, w := range fired {
			m.schedule(w)
		}
	}
}

func (m *Manager) schedule(w Work) {
	if w.Fiber != nil {
		_ = m.Scheduler.ScheduleFiber(w.Fiber, w.Pinned)
		return
	}
	if w.Fn != nil {
		fn := w.Fn
		_ = m.Scheduler.Schedule(func() error { fn(); return nil }, w.Pinned)
	}
}

// tickle writes a wakeup byte to the self-pipe, but only if a worker is
// actually blocked idle (spec §4.4 "tickle()": "if at least one idle
// worker exists").
func (m *Manager) tickle() {
	if m.Scheduler.IdleWorkers() > 0 {
		_ = m.wake.Tickle()
	}
}

func (m *Manager) terminationPredicate() bool {
	return m.Timers.Len() == 0 && m.waitingEvents.Load() == 0
}

// idlePass implements one iteration of spec §4.4's idle() loop body: clamp
// the next timer against MaxTimeout, block in epoll_wait, run expired
// timers, and let onReady (invoked inline by poller.Wait's dispatch)
// trigger any fd readiness. It is installed as the scheduler's per-worker
// Idle hook, so "yield back to scheduler" is simply returning — the
// scheduler's dispatch loop Suspends the idle fiber on our behalf.
func (m *Manager) idlePass(int) {
	nowMs := clockid.NowMillis()
	next, ok := m.Timers.GetNextTimer(nowMs)
	timeout := timerset.MaxTimeout
	if ok && next < timerset.MaxTimeout {
		timeout = int(next)
	}

	if _, err := m.poller.Wait(timeout); err != nil {
		m.cfg.onPollError(err)
	}

	funcs := m.Timers.ListExpired(clockid.NowMillis(), nil)
	for _, fn := range funcs {
		fn := fn
		_ = m.Scheduler.Schedule(func() error { fn(); return nil }, scheduler.NoPin)
	}
}

