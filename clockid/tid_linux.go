//go:build linux

package clockid

import "golang.org/x/sys/unix"

// CurrentThreadID returns the OS thread id (Linux TID) of the calling OS
// thread. Only meaningful after runtime.LockOSThread, since an unlocked
// goroutine may be rescheduled onto a different OS thread between calls.
func CurrentThreadID() int {
	return unix.Gettid()
}
