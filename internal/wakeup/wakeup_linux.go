//go:build linux

// Package wakeup implements the idle loop's self-pipe wakeup primitive
// (spec §4.4: "owns an epoll instance, a self-pipe for wakeups"). Grounded
// on eventloop's wakeup_linux.go, but deliberately diverges from its
// eventfd-based createWakeFd: the spec's own vocabulary calls for a literal
// self-pipe (distinct read and write ends via pipe2), so this package uses
// unix.Pipe2 rather than unix.Eventfd.
package wakeup

import (
	"golang.org/x/sys/unix"
)

// Pipe is a non-blocking self-pipe: its read end is registered with epoll
// for READ readiness, and Tickle writes a single byte to the write end to
// force the idle loop's epoll_wait to return promptly.
type Pipe struct {
	readFd  int
	writeFd int
}

// New creates a non-blocking, close-on-exec self-pipe.
func New() (*Pipe, error) {
	var fds [2]int
	if err := unix.Pipe2(fds[:], unix.O_CLOEXEC|unix.O_NONBLOCK); err != nil {
		return nil, err
	}
	return &Pipe{readFd: fds[0], writeFd: fds[1]}, nil
}

// ReadFd is the end to register with epoll for READ readiness.
func (p *Pipe) ReadFd() int { return p.readFd }

// Tickle writes a single byte to the pipe, waking anyone blocked in
// epoll_wait on ReadFd. Safe to call from any goroutine; EAGAIN (pipe
// buffer already has a pending wakeup byte) is not an error.
func (p *Pipe) Tickle() error {
	var b [1]byte
	_, err := unix.Write(p.writeFd, b[:])
	if err == unix.EAGAIN {
		return nil
	}
	return err
}

// Drain reads and discards every pending byte, so a subsequent epoll_wait
// blocks again until the next Tickle (spec §4.4's "drain" step before
// re-arming the idle wait).
func (p *Pipe) Drain() error {
	var buf [64]byte
	for {
		_, err := unix.Read(p.readFd, buf[:])
		if err != nil {
			if err == unix.EAGAIN {
				return nil
			}
			return err
		}
	}
}

// Close closes both ends of the pipe.
func (p *Pipe) Close() error {
	err1 := unix.Close(p.readFd)
	err2 := unix.Close(p.writeFd)
	if err1 != nil {
		return err1
	}
	return err2
}
