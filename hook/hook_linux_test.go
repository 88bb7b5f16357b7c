//go:build linux

package hook

import (
	"context"
	"testing"
	"time"

	"golang.org/x/sys/unix"

	"coroio/iomanager"
	"coroio/scheduler"
)

func newTestManager(t *testing.T) *iomanager.Manager {
	t.Helper()
	m, err := iomanager.New(iomanager.WithSchedulerOptions(
		scheduler.WithThreads(2),
		scheduler.WithCallerAsWorker(false),
	))
	if err != nil {
		t.Fatalf("iomanager.New failed: %v", err)
	}
	if err := m.Scheduler.Start(); err != nil {
		t.Fatalf("Scheduler.Start failed: %v", err)
	}
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		_ = m.Scheduler.Stop(ctx)
		_ = m.Close()
	})
	return m
}

func TestHooks_Sleep_ResumesAfterTimerElapses(t *testing.T) {
	m := newTestManager(t)
	h := New(m)

	start := time.Now()
	done := make(chan time.Duration, 1)
	errs := make(chan error, 1)

	if err := m.Scheduler.Schedule(func() error {
		Enable()
		defer Disable()
		err := h.Sleep(30 * time.Millisecond)
		errs <- err
		done <- time.Since(start)
		return nil
	}, scheduler.NoPin); err != nil {
		t.Fatalf("Schedule failed: %v", err)
	}

	select {
	case err := <-errs:
		if err != nil {
			t.Fatalf("Sleep returned an error: %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for Sleep to return")
	}
	if elapsed := <-done; elapsed < 25*time.Millisecond {
		t.Fatalf("resumed too early: %v", elapsed)
	}
}

func TestHooks_Recv_ParksUntilDataArrives(t *testing.T) {
	var fds [2]int
	if err := unix.Socketpair(unix.AF_UNIX, unix.SOCK_STREAM, 0, fds[:]); err != nil {
		t.Fatalf("Socketpair failed: %v", err)
	}
	defer unix.Close(fds[1])

	m := newTestManager(t)
	h := New(m)
	if _, err := m.Cache.Get(fds[0], true); err != nil {
		t.Fatalf("Cache.Get failed: %v", err)
	}

	result := make(chan string, 1)
	if err := m.Scheduler.Schedule(func() error {
		Enable()
		defer Disable()
		buf := make([]byte, 16)
		n, err := h.Recv(fds[0], buf, 0)
		if err != nil {
			result <- "error: " + err.Error()
			return nil
		}
		result <- string(buf[:n])
		return nil
	}, scheduler.NoPin); err != nil {
		t.Fatalf("Schedule failed: %v", err)
	}

	time.Sleep(50 * time.Millisecond)
	if _, err := unix.Write(fds[1], []byte("hello")); err != nil {
		t.Fatalf("Write failed: %v", err)
	}

	select {
	case got := <-result:
		if got != "hello" {
			t.Fatalf("got %q, want %q", got, "hello")
		}
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for Recv to resume")
	}
}

func TestHooks_Accept_ParksUntilConnectionArrives(t *testing.T) {
	path := t.TempDir() + "/hook-test.sock"

	lfd, err := unix.Socket(unix.AF_UNIX, unix.SOCK_STREAM, 0)
	if err != nil {
		t.Fatalf("Socket failed: %v", err)
	}
	defer unix.Close(lfd)
	if err := unix.Bind(lfd, &unix.SockaddrUnix{Name: path}); err != nil {
		t.Fatalf("Bind failed: %v", err)
	}
	if err := unix.Listen(lfd, 1); err != nil {
		t.Fatalf("Listen failed: %v", err)
	}

	m := newTestManager(t)
	h := New(m)
	if _, err := m.Cache.Get(lfd, true); err != nil {
		t.Fatalf("Cache.Get failed: %v", err)
	}

	accepted := make(chan int, 1)
	if err := m.Scheduler.Schedule(func() error {
		Enable()
		defer Disable()
		nfd, _, err := h.Accept(lfd)
		if err != nil {
			accepted <- -1
			return nil
		}
		accepted <- nfd
		return nil
	}, scheduler.NoPin); err != nil {
		t.Fatalf("Schedule failed: %v", err)
	}

	time.Sleep(50 * time.Millisecond)
	cfd, err := unix.Socket(unix.AF_UNIX, unix.SOCK_STREAM, 0)
	if err != nil {
		t.Fatalf("Socket failed: %v", err)
	}
	defer unix.Close(cfd)
	if err := unix.Connect(cfd, &unix.SockaddrUnix{Name: path}); err != nil {
		t.Fatalf("Connect failed: %v", err)
	}

	select {
	case nfd := <-accepted:
		if nfd < 0 {
			t.Fatal("Accept returned an error")
		}
		unix.Close(nfd)
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for Accept to resume")
	}
}

// TestHooks_Recv_TimesOutWithoutData mirrors spec §8 scenario 3: a recv on
// an fd with a stored receive timeout and no peer data must return
// ErrTimeout between the timeout and a generous upper bound, not hang
// forever and not fire early.
func TestHooks_Recv_TimesOutWithoutData(t *testing.T) {
	var fds [2]int
	if err := unix.Socketpair(unix.AF_UNIX, unix.SOCK_STREAM, 0, fds[:]); err != nil {
		t.Fatalf("Socketpair failed: %v", err)
	}
	defer unix.Close(fds[0])
	defer unix.Close(fds[1])

	m := newTestManager(t)
	h := New(m)
	entry, err := m.Cache.Get(fds[0], true)
	if err != nil {
		t.Fatalf("Cache.Get failed: %v", err)
	}
	entry.SetRecvTimeout(100 * time.Millisecond)

	start := time.Now()
	result := make(chan error, 1)
	if err := m.Scheduler.Schedule(func() error {
		Enable()
		defer Disable()
		buf := make([]byte, 16)
		_, err := h.Recv(fds[0], buf, 0)
		result <- err
		return nil
	}, scheduler.NoPin); err != nil {
		t.Fatalf("Schedule failed: %v", err)
	}

	select {
	case err := <-result:
		if err != ErrTimeout {
			t.Fatalf("Recv returned %v, want ErrTimeout", err)
		}
		if elapsed := time.Since(start); elapsed < 95*time.Millisecond || elapsed > 500*time.Millisecond {
			t.Fatalf("Recv timed out after %v, want between 95ms and 500ms", elapsed)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for Recv's own timeout to fire")
	}
}

func TestHooks_Close_CancelsPendingWaiter(t *testing.T) {
	var fds [2]int
	if err := unix.Socketpair(unix.AF_UNIX, unix.SOCK_STREAM, 0, fds[:]); err != nil {
		t.Fatalf("Socketpair failed: %v", err)
	}
	defer unix.Close(fds[1])

	m := newTestManager(t)
	h := New(m)
	if _, err := m.Cache.Get(fds[0], true); err != nil {
		t.Fatalf("Cache.Get failed: %v", err)
	}

	result := make(chan error, 1)
	if err := m.Scheduler.Schedule(func() error {
		Enable()
		defer Disable()
		buf := make([]byte, 4)
		_, err := h.Recv(fds[0], buf, 0)
		result <- err
		return nil
	}, scheduler.NoPin); err != nil {
		t.Fatalf("Schedule failed: %v", err)
	}

	time.Sleep(50 * time.Millisecond)
	if err := h.Close(fds[0]); err != nil {
		t.Fatalf("Close failed: %v", err)
	}

	select {
	case err := <-result:
		if err == nil {
			t.Fatal("expected an error after Close cancelled the pending Recv")
		}
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for the cancelled Recv to resume")
	}
}
