//go:build !linux

package hook

import (
	"errors"
	"time"

	"coroio/iomanager"
)

// ErrUnsupported is returned by every Hooks method on non-Linux platforms.
// The hook layer depends on internal/poller and fdcache, both Linux-only
// (spec §1 scopes this runtime to "Linux-class kernels").
var ErrUnsupported = errors.New("hook: unsupported on this platform")

// ErrTimeout mirrors the Linux build's sentinel so callers can reference it
// regardless of platform.
var ErrTimeout = errors.New("hook: i/o timed out")

// Hooks is a non-functional stand-in on non-Linux platforms.
type Hooks struct{}

// New returns a Hooks whose methods all fail with ErrUnsupported.
func New(_ *iomanager.Manager) *Hooks { return &Hooks{} }

func Enable()       {}
func Disable()      {}
func Enabled() bool { return false }

func (h *Hooks) Sleep(time.Duration) error { return ErrUnsupported }

func (h *Hooks) Socket(int, int, int) (int, error) { return -1, ErrUnsupported }

func (h *Hooks) Connect(int, any, time.Duration) error { return ErrUnsupported }

func (h *Hooks) Accept(int) (int, any, error) { return -1, nil, ErrUnsupported }

func (h *Hooks) Recv(int, []byte, int) (int, error) { return -1, ErrUnsupported }

func (h *Hooks) Send(int, []byte, int) (int, error) { return -1, ErrUnsupported }

func (h *Hooks) Close(int) error { return ErrUnsupported }

func (h *Hooks) Fcntl(int, int, int) (int, error) { return -1, ErrUnsupported }
