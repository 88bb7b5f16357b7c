package iomanager

import "errors"

var (
	// ErrDirectionAlreadyRegistered is returned by AddEvent when the fd
	// already has a waiter registered for that direction (spec §4.4
	// "assert the direction bit is not already set for this fd").
	ErrDirectionAlreadyRegistered = errors.New("iomanager: direction already registered for this fd")

	// ErrNoWaiter is returned by DelEvent/CancelEvent when no waiter is
	// registered for the requested fd/direction.
	ErrNoWaiter = errors.New("iomanager: no waiter registered for this fd/direction")
)
