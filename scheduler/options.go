package scheduler

// Logger is the narrow structured-logging surface the scheduler depends on,
// satisfied by corolog.Logger. Kept as a small local interface (rather than
// importing corolog directly) so this package has no hard dependency on the
// logging backend choice — mirrors eventloop's own package-level logger
// pattern (logging.go), generalized to an injectable dependency instead of
// a global.
type Logger interface {
	Debugf(format string, args ...any)
	Infof(format string, args ...any)
	Warnf(format string, args ...any)
	Errorf(format string, args ...any)
}

type noopLogger struct{}

func (noopLogger) Debugf(string, ...any) {}
func (noopLogger) Infof(string, ...any)  {}
func (noopLogger) Warnf(string, ...any)  {}
func (noopLogger) Errorf(string, ...any) {}

// config holds resolved scheduler options (eventloop options.go's functional-
// options pattern, generalized from LoopOption to Option).
type config struct {
	threads      int
	useCaller    bool
	name         string
	metrics      bool
	logger       Logger
	onOverload   func(queueDepth int)
	overloadHigh int
}

func defaultConfig() config {
	return config{
		threads:      1,
		useCaller:    true,
		name:         "scheduler",
		metrics:      false,
		logger:       noopLogger{},
		overloadHigh: 0, // 0 disables the overload signal
	}
}

// Option configures a Scheduler at New time.
type Option func(*config)

// WithThreads sets the number of worker OS threads (goroutines pinned to the
// dispatch loop), not counting the caller thread. Spec §3: "a pool of N
// worker threads". Must be >= 1.
func WithThreads(n int) Option {
	return func(c *config) {
		if n >= 1 {
			c.threads = n
		}
	}
}

// WithCallerAsWorker controls whether the thread that calls Start doubles as
// a worker running the dispatch loop itself (spec §4.1 "caller mode": "the
// constructing thread doubles as a worker via a root/bootstrap coroutine").
// Defaults to true.
func WithCallerAsWorker(enabled bool) Option {
	return func(c *config) { c.useCaller = enabled }
}

// WithName sets a diagnostic name used in log lines and metrics.
func WithName(name string) Option {
	return func(c *config) {
		if name != "" {
			c.name = name
		}
	}
}

// WithMetrics enables P-Square dispatch-latency quantile tracking
// (SPEC_FULL.md §5), adapted from eventloop's psquare.go.
func WithMetrics(enabled bool) Option {
	return func(c *config) { c.metrics = enabled }
}

// WithLogger overrides the scheduler's structured logger. Defaults to a
// no-op implementation, matching eventloop's "logging is opt-in" default.
func WithLogger(l Logger) Option {
	return func(c *config) {
		if l != nil {
			c.logger = l
		}
	}
}

// WithOverload registers a callback invoked whenever the ready queue depth
// at submission time exceeds high, and sets the threshold. A threshold of 0
// (the default) disables the signal. SPEC_FULL.md §5 "overload signal".
func WithOverload(high int, fn func(queueDepth int)) Option {
	return func(c *config) {
		c.overloadHigh = high
		c.onOverload = fn
	}
}

func resolveOptions(opts ...Option) config {
	cfg := defaultConfig()
	for _, opt := range opts {
		opt(&cfg)
	}
	return cfg
}
