//go:build !linux

package clockid

import "os"

// CurrentThreadID falls back to the process id on non-Linux builds. The
// runtime's epoll-driven I/O manager is Linux-only (spec §1: "Linux-class
// kernels"); this stub exists only so the rest of the module still compiles
// for tooling (vet, non-Linux editors) on other platforms.
func CurrentThreadID() int {
	return os.Getpid()
}
