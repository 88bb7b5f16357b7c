//go:build linux

package hook

import (
	"time"

	"golang.org/x/sys/unix"

	"coroio/clockid"
	"coroio/fiber"
	"coroio/iomanager"
	"coroio/scheduler"
)

// Sleep is the hooked sleep(s) (spec §4.5): when hooking is disabled, or the
// caller is not running on a fiber at all, it falls back to a real
// time.Sleep. Otherwise it schedules a one-shot timer that reschedules the
// calling coroutine and parks until it fires.
func (h *Hooks) Sleep(d time.Duration) error {
	f := fiber.Current()
	if !Enabled() || f == nil {
		time.Sleep(d)
		return nil
	}

	h.Manager.Timers.Add(clockid.NowMillis(), d.Milliseconds(), func() {
		_ = h.Manager.Scheduler.ScheduleFiber(f, scheduler.NoPin)
	}, false)
	return fiber.Suspend()
}

// Socket is the hooked socket() (spec §4.5): forward to the real syscall,
// then auto-create the fd's cache entry so it starts out kernel-nonblock
// with user_nonblock=false.
func (h *Hooks) Socket(domain, typ, proto int) (int, error) {
	fd, err := unix.Socket(domain, typ, proto)
	if err != nil {
		return -1, err
	}
	if _, err := h.Cache.Get(fd, true); err != nil {
		_ = unix.Close(fd)
		return -1, err
	}
	return fd, nil
}

// Connect is the hooked connect(fd, addr, t) (spec §4.5). A non-hookable fd
// (not a socket, user_nonblock already set, or hooking disabled) delegates
// straight through. Otherwise an EINPROGRESS from the real connect is
// resolved by waiting for writability, then reading back SO_ERROR.
func (h *Hooks) Connect(fd int, sa unix.Sockaddr, timeout time.Duration) error {
	if _, ok := h.eligible(fd); !ok {
		return unix.Connect(fd, sa)
	}

	err := unix.Connect(fd, sa)
	if err != unix.EINPROGRESS {
		return err
	}

	if werr := h.waitForIO(fd, iomanager.Write, timeout); werr != nil {
		return werr
	}

	soerr, gerr := unix.GetsockoptInt(fd, unix.SOL_SOCKET, unix.SO_ERROR)
	if gerr != nil {
		return gerr
	}
	if soerr != 0 {
		return unix.Errno(soerr)
	}
	return nil
}

// Accept is the hooked accept(fd, t) (spec §4.5's do_io template applied to
// accept). The accepted fd gets its own auto-created cache entry, matching
// the hooked socket() contract.
func (h *Hooks) Accept(fd int) (int, unix.Sockaddr, error) {
	entry, ok := h.eligible(fd)
	if !ok {
		return unix.Accept(fd)
	}

	var sa unix.Sockaddr
	nfd, err := h.doIO(fd, iomanager.Read, entry.RecvTimeout(), func() (int, error) {
		n, s, e := unix.Accept(fd)
		sa = s
		return n, e
	})
	if err != nil {
		return -1, nil, err
	}
	if _, cerr := h.Cache.Get(nfd, true); cerr != nil {
		_ = unix.Close(nfd)
		return -1, nil, cerr
	}
	return nfd, sa, nil
}

// Recv is the hooked recv(fd, buf, flags) (spec §4.5), bounded by the fd's
// stored receive timeout.
func (h *Hooks) Recv(fd int, p []byte, flags int) (int, error) {
	entry, ok := h.eligible(fd)
	if !ok {
		n, _, err := unix.Recvfrom(fd, p, flags)
		return n, err
	}
	return h.doIO(fd, iomanager.Read, entry.RecvTimeout(), func() (int, error) {
		n, _, err := unix.Recvfrom(fd, p, flags)
		return n, err
	})
}

// Send is the hooked send(fd, buf, flags) (spec §4.5), bounded by the fd's
// stored send timeout. Non-zero flags are not forwarded on the retry-free
// path (unix.Write carries none); that path is only taken once fd is
// already known writable, where plain write(2) and send(2) with flags=0
// are equivalent for stream sockets.
func (h *Hooks) Send(fd int, p []byte, flags int) (int, error) {
	entry, ok := h.eligible(fd)
	if !ok {
		return unix.Write(fd, p)
	}
	return h.doIO(fd, iomanager.Write, entry.SendTimeout(), func() (int, error) {
		return unix.Write(fd, p)
	})
}

// Close is the hooked close(fd) (spec §4.5): cancel every registered event
// on fd (firing their waiters with whatever they get from the now-defunct
// fd), drop its cache entry, then forward to the real close.
func (h *Hooks) Close(fd int) error {
	h.Manager.CancelAll(fd)
	if e, _ := h.Cache.Get(fd, false); e != nil {
		e.MarkClosed()
	}
	h.Cache.Del(fd)
	return unix.Close(fd)
}

// Fcntl is the hooked fcntl(fd, F_SETFL, arg) (spec §4.5): remember the
// application's requested O_NONBLOCK bit in user_nonblock, then OR in
// kernel-nonblock before delegating, so the hook layer's own suspension
// machinery keeps working regardless of what the caller asked for.
func (h *Hooks) Fcntl(fd int, cmd int, arg int) (int, error) {
	if cmd != unix.F_SETFL {
		return unix.FcntlInt(uintptr(fd), cmd, arg)
	}

	if e, _ := h.Cache.Get(fd, false); e != nil {
		e.SetUserNonblock(arg&unix.O_NONBLOCK != 0)
		arg |= unix.O_NONBLOCK
	}
	return unix.FcntlInt(uintptr(fd), cmd, arg)
}

// doIO is the hooked do_io template shared by accept/recv/send (spec §4.5):
// retry on EINTR, and on EAGAIN register with the I/O manager and park the
// calling fiber until fd becomes ready or timeout elapses, then retry.
func (h *Hooks) doIO(fd int, dir iomanager.Direction, timeout time.Duration, op func() (int, error)) (int, error) {
	for {
		n, err := op()
		for err == unix.EINTR {
			n, err = op()
		}
		if err != unix.EAGAIN && err != unix.EWOULDBLOCK {
			return n, err
		}
		if werr := h.waitForIO(fd, dir, timeout); werr != nil {
			return -1, werr
		}
	}
}
