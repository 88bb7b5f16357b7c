//go:build linux

// Package fdcache implements the descriptor metadata cache (spec §4.6): a
// process-wide map from file descriptor to {is-socket, kernel-nonblock,
// user-nonblock, closed, rcv-timeout, snd-timeout}, auto-created on first
// use via fstat probing. Though the spec lists this as an external
// contract, the hook layer cannot function without it, so it is
// implemented here.
//
// Grounded on eventloop's FastPoller fd table (poller_linux.go): a
// geometrically-grown slice under an RWMutex, direct-indexed by fd rather
// than a map, mirroring that file's "direct FD array indexing" rationale.
package fdcache

import (
	"sync"
	"time"

	"golang.org/x/sys/unix"
)

// Entry is a per-fd metadata record (spec §4.6). Handles are shared: callers
// read/write its fields through the *Entry returned by Get, under the
// cache's lock via the accessor methods below.
type Entry struct {
	fd             int
	isSocket       bool
	kernelNonblock bool
	userNonblock   bool
	closed         bool
	rcvTimeout     time.Duration
	sndTimeout     time.Duration
}

// FD returns the file descriptor this entry describes.
func (e *Entry) FD() int { return e.fd }

// Cache is the process-wide descriptor metadata cache (spec §4.6 "a vector
// grown geometrically" behind a reader/writer lock).
type Cache struct {
	mu      sync.RWMutex
	entries []*Entry // index == fd; nil where unset
}

// New constructs an empty cache.
func New() *Cache {
	return &Cache{entries: make([]*Entry, 256)}
}

// Get returns the shared handle for fd, creating it via fstat probing if
// autoCreate is true and no entry exists yet (spec §4.6 "get(fd,
// auto_create?)"). On first creation, if fd is a socket, it is forced to
// O_NONBLOCK and kernel_nonblock is recorded true, matching the hooked
// socket() call's contract (spec §4.5).
func (c *Cache) Get(fd int, autoCreate bool) (*Entry, error) {
	c.mu.RLock()
	if fd >= 0 && fd < len(c.entries) && c.entries[fd] != nil {
		e := c.entries[fd]
		c.mu.RUnlock()
		return e, nil
	}
	c.mu.RUnlock()

	if !autoCreate {
		return nil, nil
	}

	var stat unix.Stat_t
	if err := unix.Fstat(fd, &stat); err != nil {
		return nil, err
	}
	isSocket := stat.Mode&unix.S_IFMT == unix.S_IFSOCK

	e := &Entry{fd: fd, isSocket: isSocket}
	if isSocket {
		flags, err := unix.FcntlInt(uintptr(fd), unix.F_GETFL, 0)
		if err != nil {
			return nil, err
		}
		if _, err := unix.FcntlInt(uintptr(fd), unix.F_SETFL, flags|unix.O_NONBLOCK); err != nil {
			return nil, err
		}
		e.kernelNonblock = true
	}

	c.mu.Lock()
	c.grow(fd)
	c.entries[fd] = e
	c.mu.Unlock()

	return e, nil
}

// Del releases fd's slot (spec §4.6 "del(fd)").
func (c *Cache) Del(fd int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if fd >= 0 && fd < len(c.entries) {
		c.entries[fd] = nil
	}
}

// grow doubles the entries slice until it covers fd. Caller holds c.mu.
func (c *Cache) grow(fd int) {
	if fd < len(c.entries) {
		return
	}
	n := len(c.entries)
	if n == 0 {
		n = 256
	}
	for n <= fd {
		n *= 2
	}
	grown := make([]*Entry, n)
	copy(grown, c.entries)
	c.entries = grown
}

// IsSocket reports whether fd was fstat-probed as a socket.
func (e *Entry) IsSocket() bool { return e.isSocket }

// SetUserNonblock records the application's requested O_NONBLOCK flag
// (spec §4.5 hooked fcntl) independent of the kernel_nonblock the hook
// layer forces for its own suspension machinery.
func (e *Entry) SetUserNonblock(v bool) { e.userNonblock = v }

// UserNonblock reports the application's requested O_NONBLOCK flag.
func (e *Entry) UserNonblock() bool { return e.userNonblock }

// KernelNonblock reports whether the cache forced O_NONBLOCK at the kernel
// level regardless of what the application requested.
func (e *Entry) KernelNonblock() bool { return e.kernelNonblock }

// MarkClosed records that the fd has been closed via the hooked close().
func (e *Entry) MarkClosed() { e.closed = true }

// Closed reports whether MarkClosed has been called.
func (e *Entry) Closed() bool { return e.closed }

// SetRecvTimeout / RecvTimeout hold the per-direction receive timeout used
// by the hooked recv() to bound its conditional timer (spec §4.5).
func (e *Entry) SetRecvTimeout(d time.Duration) { e.rcvTimeout = d }
func (e *Entry) RecvTimeout() time.Duration     { return e.rcvTimeout }

// SetSendTimeout / SendTimeout hold the per-direction send timeout used by
// the hooked send().
func (e *Entry) SetSendTimeout(d time.Duration) { e.sndTimeout = d }
func (e *Entry) SendTimeout() time.Duration     { return e.sndTimeout }
