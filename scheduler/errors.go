package scheduler

import "errors"

var (
	// ErrAlreadyRunning is returned by Start when the scheduler is not in
	// state Init.
	ErrAlreadyRunning = errors.New("scheduler: already running")

	// ErrNotRunning is returned by Schedule/ScheduleBatch once the scheduler
	// has entered Stopping or Stopped.
	ErrNotRunning = errors.New("scheduler: not running")

	// ErrReentrantDispatch is returned when a dispatch-loop-only method
	// (Start) is invoked from inside a fiber running on one of the
	// scheduler's own worker threads — the source has no notion of a
	// reentrant scheduler, and allowing it here would deadlock the
	// calling worker against itself.
	ErrReentrantDispatch = errors.New("scheduler: reentrant Start from within a scheduled fiber")

	// ErrStopTimeout is returned by Stop when ctx is done before the ready
	// queue drained and all workers parked.
	ErrStopTimeout = errors.New("scheduler: stop deadline exceeded before drain completed")
)
