//go:build linux

package poller

import (
	"testing"
	"time"

	"golang.org/x/sys/unix"
)

func TestPoller_AddAndWait_ReadReady(t *testing.T) {
	p, err := New()
	if err != nil {
		t.Fatalf("New() failed: %v", err)
	}
	defer p.Close()

	var fds [2]int
	if err := unix.Pipe2(fds[:], unix.O_CLOEXEC|unix.O_NONBLOCK); err != nil {
		t.Fatalf("Pipe2 failed: %v", err)
	}
	defer unix.Close(fds[0])
	defer unix.Close(fds[1])

	gotDirs := make(chan Direction, 1)
	if err := p.Add(fds[0], Read, func(d Direction) { gotDirs <- d }); err != nil {
		t.Fatalf("Add failed: %v", err)
	}

	if _, err := unix.Write(fds[1], []byte("x")); err != nil {
		t.Fatalf("write failed: %v", err)
	}

	n, err := p.Wait(1000)
	if err != nil {
		t.Fatalf("Wait failed: %v", err)
	}
	if n != 1 {
		t.Fatalf("Wait returned %d events, want 1", n)
	}

	select {
	case d := <-gotDirs:
		if d&Read == 0 {
			t.Fatalf("callback direction = %v, want Read set", d)
		}
	case <-time.After(time.Second):
		t.Fatal("callback was not invoked")
	}
}

func TestPoller_Remove_StopsDelivery(t *testing.T) {
	p, err := New()
	if err != nil {
		t.Fatalf("New() failed: %v", err)
	}
	defer p.Close()

	var fds [2]int
	if err := unix.Pipe2(fds[:], unix.O_CLOEXEC|unix.O_NONBLOCK); err != nil {
		t.Fatalf("Pipe2 failed: %v", err)
	}
	defer unix.Close(fds[0])
	defer unix.Close(fds[1])

	if err := p.Add(fds[0], Read, func(Direction) {}); err != nil {
		t.Fatalf("Add failed: %v", err)
	}
	if err := p.Remove(fds[0]); err != nil {
		t.Fatalf("Remove failed: %v", err)
	}
	if err := p.Remove(fds[0]); err != ErrFDNotRegistered {
		t.Fatalf("second Remove err = %v, want ErrFDNotRegistered", err)
	}
}

func TestPoller_DoubleAdd_Rejected(t *testing.T) {
	p, err := New()
	if err != nil {
		t.Fatalf("New() failed: %v", err)
	}
	defer p.Close()

	var fds [2]int
	if err := unix.Pipe2(fds[:], unix.O_CLOEXEC|unix.O_NONBLOCK); err != nil {
		t.Fatalf("Pipe2 failed: %v", err)
	}
	defer unix.Close(fds[0])
	defer unix.Close(fds[1])

	if err := p.Add(fds[0], Read, func(Direction) {}); err != nil {
		t.Fatalf("first Add failed: %v", err)
	}
	if err := p.Add(fds[0], Read, func(Direction) {}); err != ErrFDAlreadyRegistered {
		t.Fatalf("second Add err = %v, want ErrFDAlreadyRegistered", err)
	}
}
