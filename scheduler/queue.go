package scheduler

import (
	"sync"

	"coroio/fiber"
)

// readyQueue is the scheduler's FIFO ready queue (spec §3 "Ordered FIFO
// within the scheduler's queue").
//
// Unlike eventloop's ChunkedIngress (ingress.go), which only ever pops from
// the front, the dispatch loop's scan-for-first-eligible-entry rule (spec
// §4.2 step 3a: "find the first entry whose pinned thread matches self...
// and whose coroutine is not currently EXEC on another thread... If a later
// entry was skipped, set tickle_me") requires removing an arbitrary element,
// not just the head. A chunked linked list optimized for head-only pop/push
// doesn't support that without extra bookkeeping, so this queue uses a
// plain mutex-guarded slice — the same "single mutex held only across queue
// edits" locking discipline spec §5 calls for, sized down from
// ChunkedIngress's batching because ready-queue entries are scheduler
// decisions, not high-frequency task submissions.
type readyQueue struct {
	mu      sync.Mutex
	entries []Entry
}

// push appends an entry. Returns true if the queue was empty beforehand —
// the scheduler uses this to decide whether to tickle an idle worker.
func (q *readyQueue) push(e Entry) bool {
	q.mu.Lock()
	wasEmpty := len(q.entries) == 0
	q.entries = append(q.entries, e)
	q.mu.Unlock()
	return wasEmpty
}

// pushAll appends a batch of entries under a single lock acquisition
// (spec §4.2 "batched variant under a single lock"). Returns true if any
// insertion landed in an empty queue.
func (q *readyQueue) pushAll(es []Entry) bool {
	if len(es) == 0 {
		return false
	}
	q.mu.Lock()
	wasEmpty := len(q.entries) == 0
	q.entries = append(q.entries, es...)
	q.mu.Unlock()
	return wasEmpty
}

// eligible reports whether entry e may run on worker "self" right now.
func eligible(e Entry, self int) bool {
	if e.Pinned != NoPin && e.Pinned != self {
		return false
	}
	if e.Fiber != nil {
		return e.Fiber.State() != fiber.StateExec
	}
	return true
}

// popFor scans for the first entry eligible to run on worker "self",
// removing it from the queue. tickleMe reports whether an eligible-for-
// someone-else entry was skipped over, per spec §4.2 step 3a.
func (q *readyQueue) popFor(self int) (entry Entry, ok bool, tickleMe bool) {
	q.mu.Lock()
	defer q.mu.Unlock()

	for i, e := range q.entries {
		if eligible(e, self) {
			q.entries = append(q.entries[:i:i], q.entries[i+1:]...)
			return e, true, tickleMe
		}
		tickleMe = true
	}
	return Entry{}, false, false
}

// length returns the number of queued entries.
func (q *readyQueue) length() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.entries)
}

// isEmpty reports whether the queue has no entries.
func (q *readyQueue) isEmpty() bool {
	return q.length() == 0
}
