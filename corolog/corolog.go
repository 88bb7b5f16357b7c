// Package corolog is the runtime's structured logging facade: a thin
// adapter from scheduler.Logger/iomanager diagnostics onto the teacher's own
// logging stack, github.com/joeycumines/logiface with the
// github.com/joeycumines/stumpy JSON writer backend, wired exactly as
// logiface-stumpy/example_test.go demonstrates (stumpy.L.New(stumpy.L.With
// Stumpy(...))).
package corolog

import (
	"os"

	"github.com/joeycumines/logiface"
	"github.com/joeycumines/stumpy"
)

// Level re-exports logiface's severity scale so callers configuring corolog
// need not import logiface directly.
type Level = logiface.Level

const (
	LevelError Level = logiface.LevelError
	LevelWarn  Level = logiface.LevelWarning
	LevelInfo  Level = logiface.LevelInformational
	LevelDebug Level = logiface.LevelDebug
)

// Logger wraps a *logiface.Logger[*stumpy.Event], satisfying scheduler.Logger
// (and the equivalent narrow interfaces in iomanager and hook) without those
// packages importing logiface or stumpy themselves.
type Logger struct {
	l *logiface.Logger[*stumpy.Event]
}

// config mirrors stumpy's functional-options pattern (factory.go) for the
// handful of knobs this facade exposes.
type config struct {
	level  Level
	writer *os.File
}

// Option configures a Logger at New time.
type Option func(*config)

// WithLevel sets the minimum level that reaches the writer. Defaults to
// LevelInfo.
func WithLevel(l Level) Option {
	return func(c *config) { c.level = l }
}

// WithOutput overrides the destination file. Defaults to os.Stderr, matching
// stumpy's own default (factory.go: "if c.writer == nil { l.writer =
// os.Stderr }").
func WithOutput(f *os.File) Option {
	return func(c *config) {
		if f != nil {
			c.writer = f
		}
	}
}

// New constructs a Logger writing newline-delimited JSON via stumpy.
func New(opts ...Option) *Logger {
	cfg := config{level: LevelInfo, writer: os.Stderr}
	for _, opt := range opts {
		opt(&cfg)
	}

	return &Logger{
		l: stumpy.L.New(
			logiface.WithLevel[*stumpy.Event](cfg.level),
			stumpy.L.WithStumpy(
				stumpy.L.WithWriter(cfg.writer),
			),
		),
	}
}

// Debugf logs at LevelDebug, matching scheduler.Logger's narrow interface.
func (c *Logger) Debugf(format string, args ...any) { c.l.Debug().Logf(format, args...) }

// Infof logs at LevelInformational.
func (c *Logger) Infof(format string, args ...any) { c.l.Info().Logf(format, args...) }

// Warnf logs at LevelWarning.
func (c *Logger) Warnf(format string, args ...any) { c.l.Warning().Logf(format, args...) }

// Errorf logs at LevelError.
func (c *Logger) Errorf(format string, args ...any) { c.l.Err().Logf(format, args...) }

// With attaches structured key/value context (e.g. a worker index or fd) to
// every subsequent line, returning a Logger scoped to that context. Grounded
// on logiface's Clone/Context pattern (context.go).
func (c *Logger) With(fields map[string]any) *Logger {
	ctx := c.l.Clone()
	for k, v := range fields {
		ctx = ctx.Interface(k, v)
	}
	return &Logger{l: ctx.Logger()}
}
