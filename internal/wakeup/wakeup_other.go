//go:build !linux

package wakeup

import "errors"

// ErrUnsupported is returned on platforms other than Linux. The runtime's
// scope (spec §1) is Linux-class kernels only; this stub exists so the
// package still type-checks when cross-compiled, not to support another OS.
var ErrUnsupported = errors.New("wakeup: only supported on linux")

type Pipe struct{}

func New() (*Pipe, error) { return nil, ErrUnsupported }

func (p *Pipe) ReadFd() int    { return -1 }
func (p *Pipe) Tickle() error  { return ErrUnsupported }
func (p *Pipe) Drain() error   { return ErrUnsupported }
func (p *Pipe) Close() error   { return nil }
