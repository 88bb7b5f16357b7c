//go:build linux

package hook

import "errors"

// ErrTimeout is returned by the hooked I/O wrappers when a caller-supplied
// timeout elapses before fd became ready (spec §4.5 do_io: "if cancel-flag
// set: errno=flag"), standing in for the bare ETIMEDOUT errno with package
// context. It is a distinct sentinel, not a wrapped unix.ETIMEDOUT, so
// compare against ErrTimeout directly rather than via errors.Is with
// unix.ETIMEDOUT.
var ErrTimeout = errors.New("hook: i/o timed out")
