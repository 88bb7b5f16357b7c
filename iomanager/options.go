package iomanager

import "coroio/scheduler"

// config holds resolved Manager options (eventloop options.go's functional-
// options pattern, generalized to the I/O manager's own construction
// surface).
type config struct {
	schedulerOpts []scheduler.Option
	onPollError   func(error)
}

func defaultConfig() config {
	return config{onPollError: func(error) {}}
}

// Option configures a Manager at New time.
type Option func(*config)

// WithSchedulerOptions forwards options to the underlying scheduler.New
// call (e.g. scheduler.WithThreads, scheduler.WithMetrics).
func WithSchedulerOptions(opts ...scheduler.Option) Option {
	return func(c *config) { c.schedulerOpts = append(c.schedulerOpts, opts...) }
}

// WithPollErrorHandler overrides what happens when epoll_wait fails with
// something other than EINTR (which poller.Wait already absorbs). Defaults
// to silently discarding the error, matching the idle loop's "no retries
// performed inside the core" contract (spec §7).
func WithPollErrorHandler(fn func(error)) Option {
	return func(c *config) {
		if fn != nil {
			c.onPollError = fn
		}
	}
}

func resolveOptions(opts ...Option) config {
	cfg := defaultConfig()
	for _, opt := range opts {
		opt(&cfg)
	}
	return cfg
}
