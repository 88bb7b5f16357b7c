// Package scheduler implements the M:N coroutine scheduler (spec §3, §4.2):
// a ready queue of fiber/function entries multiplexed over a pool of worker
// threads, generalizing eventloop's single-threaded Loop (loop.go) dispatch
// cycle to many concurrent dispatch-loop goroutines sharing one queue.
package scheduler

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"coroio/corostate"
	"coroio/fiber"
)

type schedState uint64

const (
	schedInit schedState = iota
	schedRunning
	schedStopping
	schedStopped
)

// Hooks is the capability record the scheduler delegates idle and wakeup
// behavior through, per spec Design Note §9: composition over the source's
// virtual-method base-class hierarchy. iomanager fills these in with epoll-
// driven blocking; a bare Scheduler with no Hooks set busy-polls an empty
// queue, which is documented behavior, not a bug.
type Hooks struct {
	// Idle runs on a dedicated per-worker fiber whenever that worker's
	// ready-queue scan comes up empty. It should block doing useful work
	// (e.g. epoll_wait) rather than busy-spinning. Called repeatedly; must
	// return so the idle fiber can Suspend() and yield back to the
	// dispatch loop between iterations.
	Idle func(worker int)

	// Tickle wakes any worker parked inside Idle, e.g. by writing to a
	// self-pipe. Called whenever a ready entry becomes available to a
	// worker other than the one that just observed it, or when Stop/Close
	// needs every worker to re-check scheduler state promptly.
	Tickle func()

	// TerminationPredicate, if set, is consulted once the scheduler enters
	// Stopping and a worker's queue scan comes up empty: the worker exits
	// its dispatch loop only once this returns true (or the hook is nil).
	// iomanager uses this to keep workers alive until all outstanding I/O
	// events and timers have drained, not just the ready queue.
	TerminationPredicate func() bool
}

// Scheduler is the M:N coroutine scheduler: one shared ready queue, N
// worker dispatch loops, and the capability hooks that let iomanager turn
// "idle" into "blocked in epoll_wait" (spec §4.4).
type Scheduler struct { // betteralign:ignore
	cfg     config
	state   *corostate.Padded
	queue   *readyQueue
	hooks   Hooks
	metrics *Metrics
	wg      sync.WaitGroup

	idleFibers []*fiber.Fiber
	funcFibers []*fiber.Fiber

	idleWorkers atomic.Int64
}

// New constructs a Scheduler in state Init. It does not start any workers;
// call Start to begin dispatching.
func New(hooks Hooks, opts ...Option) *Scheduler {
	cfg := resolveOptions(opts...)
	s := &Scheduler{
		cfg:        cfg,
		state:      corostate.New(uint64(schedInit)),
		queue:      &readyQueue{},
		hooks:      hooks,
		idleFibers: make([]*fiber.Fiber, cfg.threads),
		funcFibers: make([]*fiber.Fiber, cfg.threads),
	}
	if cfg.metrics {
		s.metrics = NewMetrics()
	}
	return s
}

// Threads returns the configured worker count (spec §3 "a pool of N worker
// threads"), including the caller thread when WithCallerAsWorker is enabled.
func (s *Scheduler) Threads() int { return s.cfg.threads }

// Metrics returns the scheduler's dispatch-latency tracker, or nil if
// WithMetrics(true) was not supplied to New.
func (s *Scheduler) Metrics() *Metrics { return s.metrics }

// QueueDepth reports the number of entries currently waiting in the ready
// queue, across all workers.
func (s *Scheduler) QueueDepth() int { return s.queue.length() }

// IdleWorkers reports how many workers are currently blocked inside
// Hooks.Idle. iomanager's tickle() consults this to decide whether writing
// to the self-pipe is worthwhile (spec §4.4 "if at least one idle worker
// exists").
func (s *Scheduler) IdleWorkers() int64 { return s.idleWorkers.Load() }

// Schedule enqueues a bare function to run on a freshly-reset, per-worker
// reusable fiber (spec §4.2's "lazily allocated reusable function
// coroutine"). pinned restricts it to a specific worker index, or NoPin.
func (s *Scheduler) Schedule(fn fiber.Func, pinned int) error {
	return s.scheduleEntry(fnEntry(fn, pinned))
}

// ScheduleFiber enqueues an existing coroutine, e.g. one suspended earlier
// by an I/O wait and now ready to resume. pinned restricts it to a specific
// worker index, or NoPin.
func (s *Scheduler) ScheduleFiber(f *fiber.Fiber, pinned int) error {
	return s.scheduleEntry(fiberEntry(f, pinned))
}

// ScheduleBatch enqueues many entries under a single lock acquisition (spec
// §4.2's batched-submission path), tickling at most once.
func (s *Scheduler) ScheduleBatch(entries []Entry) error {
	if schedState(s.state.Load()) != schedRunning {
		return ErrNotRunning
	}
	wasEmpty := s.queue.pushAll(entries)
	s.afterSchedule(wasEmpty)
	return nil
}

func (s *Scheduler) scheduleEntry(e Entry) error {
	if schedState(s.state.Load()) != schedRunning {
		return ErrNotRunning
	}
	wasEmpty := s.queue.push(e)
	s.afterSchedule(wasEmpty)
	return nil
}

func (s *Scheduler) afterSchedule(wasEmpty bool) {
	depth := s.queue.length()
	if s.cfg.overloadHigh > 0 && depth >= s.cfg.overloadHigh && s.cfg.onOverload != nil {
		s.cfg.onOverload(depth)
	}
	if wasEmpty {
		s.tickle()
	}
}

func (s *Scheduler) tickle() {
	if s.hooks.Tickle != nil {
		s.hooks.Tickle()
	}
}

// Start transitions the scheduler to Running and begins dispatching.
//
// In caller mode (WithCallerAsWorker, the default), the calling goroutine
// itself runs one worker's dispatch loop and Start blocks until Stop or
// Close drains it — mirroring eventloop's Loop.Run blocking the calling
// goroutine. The remaining cfg.threads-1 workers run on spawned goroutines
// regardless. With caller mode disabled, all cfg.threads workers run on
// spawned goroutines and Start returns immediately.
//
// Returns ErrReentrantDispatch if called from within a fiber already
// running on one of this scheduler's own workers, and ErrAlreadyRunning if
// the scheduler is not in state Init.
func (s *Scheduler) Start() error {
	if fiber.Current() != nil {
		return ErrReentrantDispatch
	}
	if !s.state.TryTransition(uint64(schedInit), uint64(schedRunning)) {
		return ErrAlreadyRunning
	}

	s.wg.Add(s.cfg.threads)
	startIdx := 0
	if s.cfg.useCaller {
		startIdx = 1
	}
	for i := startIdx; i < s.cfg.threads; i++ {
		go s.dispatchLoop(i)
	}
	if s.cfg.useCaller {
		s.dispatchLoop(0)
	}
	return nil
}

// Stop requests a graceful shutdown: workers keep draining the ready queue
// (and, via Hooks.TerminationPredicate, any outstanding I/O/timer work)
// until both are exhausted, then exit. Stop blocks until every worker has
// returned or ctx is done, whichever comes first.
func (s *Scheduler) Stop(ctx context.Context) error {
	s.state.TransitionAny([]uint64{uint64(schedRunning)}, uint64(schedStopping))

	// One tickle per worker (plus the root, if it's running as one of
	// them): each tickle() call writes a single self-pipe edge, and under
	// edge-triggered epoll a single edge wakes at most one blocked worker.
	// A single tickle here would leave the rest parked in epoll_wait until
	// MaxTimeout elapses before they next check state.
	for i := 0; i < s.cfg.threads; i++ {
		s.tickle()
	}

	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		s.state.Store(uint64(schedStopped))
		return nil
	case <-ctx.Done():
		return ErrStopTimeout
	}
}

// Close forces an immediate stop: every worker exits its dispatch loop as
// soon as it next observes scheduler state, without waiting for the ready
// queue or any outstanding work to drain. Unlike Stop, Close does not block.
func (s *Scheduler) Close() {
	s.state.Store(uint64(schedStopped))
	s.tickle()
}

func (s *Scheduler) dispatchLoop(worker int) {
	defer s.wg.Done()
	for {
		st := schedState(s.state.Load())
		if st == schedStopped {
			return
		}

		entry, ok, tickleMe := s.queue.popFor(worker)
		if !ok {
			if st == schedStopping && (s.hooks.TerminationPredicate == nil || s.hooks.TerminationPredicate()) {
				return
			}
			s.runIdlePass(worker)
			continue
		}
		if tickleMe {
			s.tickle()
		}
		s.runEntry(worker, entry)
	}
}

// runIdlePass swaps into the worker's idle fiber for one iteration of
// Hooks.Idle, then normalizes its resulting state exactly like any other
// dispatch-loop SwapIn (spec §4.2 step c/d).
func (s *Scheduler) runIdlePass(worker int) {
	idle := s.idleFiberFor(worker)
	s.idleWorkers.Add(1)
	start := time.Now()
	if err := idle.SwapIn(); err != nil {
		s.cfg.logger.Errorf("scheduler[%s]: idle swap_in on worker %d: %v", s.cfg.name, worker, err)
	}
	s.idleWorkers.Add(-1)
	if s.metrics != nil {
		s.metrics.observeLatency(time.Since(start))
		s.metrics.observeDispatchPass()
	}

	switch idle.State() {
	case fiber.StateTerm, fiber.StateExcept:
		if err := idle.Err(); err != nil {
			s.cfg.logger.Warnf("scheduler[%s]: idle fiber on worker %d exited: %v", s.cfg.name, worker, err)
		}
		s.idleFibers[worker] = nil
	default:
		idle.MarkHold()
	}
}

// runEntry swaps into the fiber backing entry (spawning/resetting the
// worker's reusable function fiber for bare-function entries), then applies
// the post-SwapIn bookkeeping rule from spec §4.2 step (c)/(d): a coroutine
// that came back READY is requeued immediately; one that came back
// TERM/EXCEPT is left for its owner (or, for the reusable fiber, reset on
// its next use); anything else is normalized to HOLD.
func (s *Scheduler) runEntry(worker int, entry Entry) {
	var f *fiber.Fiber
	if entry.Fiber != nil {
		f = entry.Fiber
	} else {
		f = s.funcFiberFor(worker)
		if err := f.Reset(entry.Fn); err != nil {
			s.cfg.logger.Errorf("scheduler[%s]: resetting reusable fiber on worker %d: %v", s.cfg.name, worker, err)
			f = fiber.Spawn(entry.Fn)
			s.funcFibers[worker] = f
		}
	}

	start := time.Now()
	if err := f.SwapIn(); err != nil {
		s.cfg.logger.Errorf("scheduler[%s]: swap_in on worker %d: %v", s.cfg.name, worker, err)
	}
	if s.metrics != nil {
		s.metrics.observeLatency(time.Since(start))
		s.metrics.observeDispatchPass()
	}

	switch f.State() {
	case fiber.StateReady:
		s.queue.push(fiberEntry(f, entry.Pinned))
	case fiber.StateExcept:
		if err := f.Err(); err != nil {
			s.cfg.logger.Warnf("scheduler[%s]: fiber %d terminated with error: %v", s.cfg.name, f.ID(), err)
		}
	case fiber.StateTerm:
		// nothing further to do; a dedicated (non-reusable) fiber is its
		// owner's responsibility to discard or Reset.
	default:
		f.MarkHold()
	}
}

func (s *Scheduler) idleFiberFor(worker int) *fiber.Fiber {
	if s.idleFibers[worker] == nil {
		s.idleFibers[worker] = fiber.Spawn(s.idleFunc(worker))
	}
	return s.idleFibers[worker]
}

func (s *Scheduler) funcFiberFor(worker int) *fiber.Fiber {
	if s.funcFibers[worker] == nil {
		s.funcFibers[worker] = fiber.Spawn(nil)
	}
	return s.funcFibers[worker]
}

// idleFunc loops calling Hooks.Idle then Suspend()ing, handing control back
// to the dispatch loop between every call so the worker re-checks the ready
// queue and scheduler state at least once per idle iteration.
func (s *Scheduler) idleFunc(worker int) fiber.Func {
	return func() error {
		for {
			if s.hooks.Idle != nil {
				s.hooks.Idle(worker)
			}
			if err := fiber.Suspend(); err != nil {
				return err
			}
		}
	}
}
