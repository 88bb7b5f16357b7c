package scheduler

import "coroio/fiber"

// NoPin is the pinned-thread sentinel meaning "any worker may run this
// entry" (spec §3: "pinned-thread-id or -1").
const NoPin = -1

// Entry is a ready-queue entry: a tagged {coroutine | function,
// pinned-thread} record (spec §3 "Ready entry").
type Entry struct {
	Fiber  *fiber.Fiber // non-nil for a coroutine entry
	Fn     fiber.Func   // non-nil for a bare-function entry
	Pinned int          // worker index, or NoPin
}

func fiberEntry(f *fiber.Fiber, pinned int) Entry {
	return Entry{Fiber: f, Pinned: pinned}
}

func fnEntry(fn fiber.Func, pinned int) Entry {
	return Entry{Fn: fn, Pinned: pinned}
}
