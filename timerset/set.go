package timerset

import (
	"container/heap"
	"sync"
)

// entryHeap implements container/heap.Interface, grounded directly on
// eventloop's timerHeap (loop.go), generalized from time.Time to the
// runtime's millisecond clock (coroio/clockid) and from a single insertion
// field to the full entry struct.
type entryHeap []*entry

func (h entryHeap) Len() int { return len(h) }
func (h entryHeap) Less(i, j int) bool {
	if h[i].deadlineMs != h[j].deadlineMs {
		return h[i].deadlineMs < h[j].deadlineMs
	}
	return h[i].id < h[j].id // tie-broken by identity, spec §3
}
func (h entryHeap) Swap(i, j int) {
	h[i], h[j] = h[j], h[i]
	h[i].index = i
	h[j].index = j
}

func (h *entryHeap) Push(x any) {
	e := x.(*entry)
	e.index = len(*h)
	*h = append(*h, e)
}

func (h *entryHeap) Pop() any {
	old := *h
	n := len(old)
	e := old[n-1]
	old[n-1] = nil
	e.index = -1
	*h = old[:n-1]
	return e
}

// Set is the time-ordered timer set (spec §3, §4.3): a strict weak order
// under (deadline, identity), supporting one-shot and recurring timers,
// conditional firing, and clock-rollover detection.
type Set struct {
	mu              sync.RWMutex
	heap            entryHeap
	byID            map[uint64]*entry
	lastObservation int64
	haveObserved    bool
	frontLatch      bool
	onFrontInsert   OnFrontInsert
}

// New constructs an empty timer set. onFrontInsert may be nil.
func New(onFrontInsert OnFrontInsert) *Set {
	return &Set{
		heap:          make(entryHeap, 0),
		byID:          make(map[uint64]*entry),
		onFrontInsert: onFrontInsert,
	}
}

// Add inserts a one-shot or recurring timer with deadline = nowMs + ms
// (spec §4.3 "add_timer"). If the new entry lands at the front of the set
// and no prior insert has already latched a pending front-insert
// notification, OnFrontInsert fires.
func (s *Set) Add(nowMs, ms int64, fn Func, recurring bool) *Timer {
	return s.insert(nowMs, ms, fn, recurring, nil)
}

// AddConditional is Add, but fn only runs if observer() is still true at
// fire time (spec §4.3 "add_conditional_timer").
func (s *Set) AddConditional(nowMs, ms int64, fn Func, observer Observer, recurring bool) *Timer {
	return s.insert(nowMs, ms, fn, recurring, observer)
}

func (s *Set) insert(nowMs, ms int64, fn Func, recurring bool, observer Observer) *Timer {
	e := &entry{
		id:         nextID(),
		deadlineMs: nowMs + ms,
		periodMs:   ms,
		recurring:  recurring,
		fn:         fn,
		observer:   observer,
	}

	s.mu.Lock()
	heap.Push(&s.heap, e)
	s.byID[e.id] = e
	frontInsert := s.heap[0] == e
	var notify bool
	if frontInsert && !s.frontLatch {
		s.frontLatch = true
		notify = true
	}
	s.mu.Unlock()

	if notify && s.onFrontInsert != nil {
		s.onFrontInsert()
	}

	return &Timer{set: s, e: e}
}

// GetNextTimer returns milliseconds until the earliest pending deadline, 0
// if already expired, and ok=false if the set is empty (spec §4.3
// "get_next_timer"; the caller is expected to substitute the infinity
// sentinel and clamp to MaxTimeout itself). Clears the front-insert latch.
func (s *Set) GetNextTimer(nowMs int64) (ms int64, ok bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.frontLatch = false

	if len(s.heap) == 0 {
		return 0, false
	}
	d := s.heap[0].deadlineMs - nowMs
	if d < 0 {
		d = 0
	}
	return d, true
}

// ListExpired atomically extracts every timer whose deadline is <= nowMs
// (or every timer, if clock rollback is detected), re-inserting recurring
// ones at now+period, and appends the callback of each fired, non-cancelled
// timer whose observer (if any) still reports live (spec §4.3
// "list_expired"; §8's clock-rollover invariant).
func (s *Set) ListExpired(nowMs int64, out []Func) []Func {
	s.mu.Lock()

	rollback := s.haveObserved && nowMs < s.lastObservation-RolloverThreshold
	s.lastObservation = nowMs
	s.haveObserved = true

	for len(s.heap) > 0 && (rollback || s.heap[0].deadlineMs <= nowMs) {
		e := heap.Pop(&s.heap).(*entry)
		delete(s.byID, e.id)

		if !e.cancelled && e.fn != nil && (e.observer == nil || e.observer()) {
			out = append(out, e.fn)
		}

		if e.recurring && !e.cancelled {
			e.deadlineMs = nowMs + e.periodMs
			heap.Push(&s.heap, e)
			s.byID[e.id] = e
		}
	}

	s.mu.Unlock()
	return out
}

// Len reports how many timers are currently pending.
func (s *Set) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.heap)
}

func (s *Set) cancel(e *entry) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if e.cancelled {
		return false
	}
	e.cancelled = true
	e.fn = nil
	if e.index >= 0 && e.index < len(s.heap) && s.heap[e.index] == e {
		heap.Remove(&s.heap, e.index)
	}
	delete(s.byID, e.id)
	return true
}

func (s *Set) refresh(e *entry, nowMs int64) bool {
	s.mu.Lock()
	if e.cancelled {
		s.mu.Unlock()
		return false
	}
	if e.index >= 0 && e.index < len(s.heap) && s.heap[e.index] == e {
		heap.Remove(&s.heap, e.index)
	}
	e.deadlineMs = nowMs + e.periodMs
	heap.Push(&s.heap, e)
	frontInsert := s.heap[0] == e
	var notify bool
	if frontInsert && !s.frontLatch {
		s.frontLatch = true
		notify = true
	}
	s.mu.Unlock()

	if notify && s.onFrontInsert != nil {
		s.onFrontInsert()
	}
	return true
}

func (s *Set) reset(e *entry, ms int64, fromNow bool, nowMs int64) bool {
	s.mu.Lock()
	if e.cancelled {
		s.mu.Unlock()
		return false
	}
	if e.index >= 0 && e.index < len(s.heap) && s.heap[e.index] == e {
		heap.Remove(&s.heap, e.index)
	}
	e.periodMs = ms
	base := nowMs
	if !fromNow {
		base = e.deadlineMs - e.periodMs // relative to original start
	}
	e.deadlineMs = base + ms
	heap.Push(&s.heap, e)
	frontInsert := s.heap[0] == e
	var notify bool
	if frontInsert && !s.frontLatch {
		s.frontLatch = true
		notify = true
	}
	s.mu.Unlock()

	if notify && s.onFrontInsert != nil {
		s.onFrontInsert()
	}
	return true
}
