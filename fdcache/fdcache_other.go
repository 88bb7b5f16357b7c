//go:build !linux

package fdcache

import (
	"errors"
	"time"
)

// ErrUnsupported is returned on platforms other than Linux. The runtime's
// scope (spec §1) is Linux-class kernels only; this stub exists so the
// package still type-checks when cross-compiled.
var ErrUnsupported = errors.New("fdcache: only supported on linux")

type Entry struct{ fd int }

func (e *Entry) FD() int                        { return e.fd }
func (e *Entry) IsSocket() bool                 { return false }
func (e *Entry) SetUserNonblock(bool)           {}
func (e *Entry) UserNonblock() bool             { return false }
func (e *Entry) KernelNonblock() bool           { return false }
func (e *Entry) MarkClosed()                    {}
func (e *Entry) Closed() bool                   { return false }
func (e *Entry) SetRecvTimeout(time.Duration)   {}
func (e *Entry) RecvTimeout() time.Duration     { return 0 }
func (e *Entry) SetSendTimeout(time.Duration)   {}
func (e *Entry) SendTimeout() time.Duration     { return 0 }

type Cache struct{}

func New() *Cache                                { return &Cache{} }
func (c *Cache) Get(int, bool) (*Entry, error)    { return nil, ErrUnsupported }
func (c *Cache) Del(int)                          {}
