package fiber

import (
	"errors"
	"testing"
)

func TestFiber_SpawnStartsInInit(t *testing.T) {
	f := Spawn(func() error { return nil })
	if f.State() != StateInit {
		t.Fatalf("State() = %v, want INIT", f.State())
	}
	if f.ID() == 0 {
		t.Fatal("ID() returned 0, want a non-zero monotonic id")
	}
}

func TestFiber_SwapIn_RunsToTerm(t *testing.T) {
	ran := false
	f := Spawn(func() error {
		ran = true
		return nil
	})

	if err := f.SwapIn(); err != nil {
		t.Fatalf("SwapIn returned error: %v", err)
	}
	if !ran {
		t.Fatal("fiber function never ran")
	}
	if f.State() != StateTerm {
		t.Fatalf("State() = %v, want TERM", f.State())
	}
}

func TestFiber_SwapIn_ErrorTransitionsToExcept(t *testing.T) {
	wantErr := errors.New("boom")
	f := Spawn(func() error { return wantErr })

	if err := f.SwapIn(); err != nil {
		t.Fatalf("SwapIn returned error: %v", err)
	}
	if f.State() != StateExcept {
		t.Fatalf("State() = %v, want EXCEPT", f.State())
	}
	if f.Err() != wantErr {
		t.Fatalf("Err() = %v, want %v", f.Err(), wantErr)
	}
}

func TestFiber_Panic_TransitionsToExcept(t *testing.T) {
	f := Spawn(func() error {
		panic("kaboom")
	})

	if err := f.SwapIn(); err != nil {
		t.Fatalf("SwapIn returned error: %v", err)
	}
	if f.State() != StateExcept {
		t.Fatalf("State() = %v, want EXCEPT", f.State())
	}
	if f.Err() == nil {
		t.Fatal("Err() is nil, want the recovered panic wrapped as an error")
	}
}

func TestFiber_SuspendAndResume(t *testing.T) {
	resumed := make(chan struct{})
	f := Spawn(func() error {
		if err := Suspend(); err != nil {
			return err
		}
		close(resumed)
		return nil
	})

	if err := f.SwapIn(); err != nil {
		t.Fatalf("first SwapIn returned error: %v", err)
	}
	if f.State() != StateHold {
		t.Fatalf("State() after Suspend = %v, want HOLD", f.State())
	}

	if err := f.SwapIn(); err != nil {
		t.Fatalf("second SwapIn returned error: %v", err)
	}
	select {
	case <-resumed:
	default:
		t.Fatal("fiber did not resume past Suspend")
	}
	if f.State() != StateTerm {
		t.Fatalf("State() = %v, want TERM", f.State())
	}
}

func TestFiber_Requeue_LeavesStateReady(t *testing.T) {
	f := Spawn(func() error {
		return Requeue()
	})

	if err := f.SwapIn(); err != nil {
		t.Fatalf("SwapIn returned error: %v", err)
	}
	if f.State() != StateReady {
		t.Fatalf("State() after Requeue = %v, want READY (dispatch-loop re-enqueues, spec §4.1)", f.State())
	}
}

func TestFiber_Current_NilOutsideAnyFiber(t *testing.T) {
	if Current() != nil {
		t.Fatal("Current() returned non-nil outside any fiber's own goroutine")
	}
}

func TestFiber_Current_ResolvesInsideOwnGoroutine(t *testing.T) {
	var seen *Fiber
	var f *Fiber
	f = Spawn(func() error {
		seen = Current()
		return nil
	})
	if err := f.SwapIn(); err != nil {
		t.Fatalf("SwapIn returned error: %v", err)
	}
	if seen != f {
		t.Fatalf("Current() inside fiber = %p, want %p", seen, f)
	}
}

func TestFiber_Reset_OnlyLegalFromTerminalStates(t *testing.T) {
	f := Spawn(func() error {
		return Suspend()
	})
	if err := f.SwapIn(); err != nil {
		t.Fatalf("SwapIn returned error: %v", err)
	}
	if f.State() != StateHold {
		t.Fatalf("State() = %v, want HOLD", f.State())
	}

	if err := f.Reset(func() error { return nil }); !errors.Is(err, ErrResetInvalidState) {
		t.Fatalf("Reset from HOLD returned %v, want ErrResetInvalidState", err)
	}

	// Drain the fiber back to TERM so Reset becomes legal.
	if err := f.SwapIn(); err != nil {
		t.Fatalf("second SwapIn returned error: %v", err)
	}
	if f.State() != StateTerm {
		t.Fatalf("State() = %v, want TERM", f.State())
	}

	ran := false
	if err := f.Reset(func() error { ran = true; return nil }); err != nil {
		t.Fatalf("Reset from TERM returned error: %v", err)
	}
	if f.State() != StateInit {
		t.Fatalf("State() after Reset = %v, want INIT", f.State())
	}
	if err := f.SwapIn(); err != nil {
		t.Fatalf("SwapIn after Reset returned error: %v", err)
	}
	if !ran {
		t.Fatal("reset function never ran")
	}
}

func TestFiber_SwapIn_AlreadyExecutingIsInvariantViolation(t *testing.T) {
	entered := make(chan struct{})
	release := make(chan struct{})
	f := Spawn(func() error {
		close(entered)
		<-release
		return nil
	})

	done := make(chan error, 1)
	go func() { done <- f.SwapIn() }()
	<-entered

	if err := f.SwapIn(); !errors.Is(err, ErrAlreadyExecuting) {
		t.Fatalf("concurrent SwapIn returned %v, want ErrAlreadyExecuting", err)
	}

	close(release)
	if err := <-done; err != nil {
		t.Fatalf("original SwapIn returned error: %v", err)
	}
}
