package fiber

// Bootstrap represents spec §3's "thread bootstrap coroutine": the
// degenerate coroutine standing in for a thread's native stack, against
// which the root coroutine's Call/Back pair operates during caller-mode
// shutdown drainage (spec §4.1, §4.2).
//
// Idiomatic-Go adaptation: in the source, the root coroutine (the dispatch
// loop) must be suspendable so the constructing thread can fall back to its
// native stack while draining queued work during Scheduler.Stop. In Go, the
// constructing goroutine's own call stack already plays that role without
// a wrapper object — a goroutine can always just call a blocking function
// and return from it normally. Bootstrap/Call/Back are kept as named,
// documented no-ops so the spec's vocabulary has a home in this repo's
// public surface, rather than silently dropping the concept.
type Bootstrap struct{}

// NewBootstrap returns a Bootstrap representing the calling goroutine's
// native stack.
func NewBootstrap() *Bootstrap { return &Bootstrap{} }

// Call runs fn synchronously on the bootstrap's native stack and returns
// when fn returns — the Go collapse of the source's Call/Back swap pair,
// since no separate context exists to swap away from.
func (b *Bootstrap) Call(fn func()) {
	fn()
}
