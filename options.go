package mqp

import (
	"runtime"

	"github.com/joeycumines/go-catrate"
)

// engineConfig holds the resolved configuration for an [Engine], after
// defaults have been applied.
type engineConfig[K comparable, V any] struct {
	poolSize      int
	queueCapacity int
	queueFactory  func() Queue[V]
	logger        Logger
	rateLimiter   *catrate.Limiter
}

func defaultConfig[K comparable, V any]() engineConfig[K, V] {
	return engineConfig[K, V]{
		poolSize:      runtime.GOMAXPROCS(0),
		queueCapacity: 1000,
		queueFactory:  newRingQueue[V],
		logger:        NoOpLogger{},
	}
}

// Option configures an [Engine] at construction time, in the same
// functional-options style used throughout this package.
type Option[K comparable, V any] func(*engineConfig[K, V])

// WithPoolSize bounds the number of workers the engine may run
// concurrently. n <= 0 is treated as runtime.GOMAXPROCS(0).
func WithPoolSize[K comparable, V any](n int) Option[K, V] {
	return func(c *engineConfig[K, V]) {
		if n <= 0 {
			n = runtime.GOMAXPROCS(0)
		}
		c.poolSize = n
	}
}

// WithQueueCapacity bounds the number of values a single key's queue may
// hold before Enqueue refuses further values for that key. n <= 0 means
// unbounded.
func WithQueueCapacity[K comparable, V any](n int) Option[K, V] {
	return func(c *engineConfig[K, V]) {
		c.queueCapacity = n
	}
}

// WithQueueFactory overrides the per-key [Queue] implementation, for a
// caller that wants to trade the default ring-buffer container for
// something else (e.g. a fixed-size array).
func WithQueueFactory[K comparable, V any](f func() Queue[V]) Option[K, V] {
	return func(c *engineConfig[K, V]) {
		if f != nil {
			c.queueFactory = f
		}
	}
}

// WithLogger sets the [Logger] the engine reports registry, dispatch, and
// worker events to. The default is [NoOpLogger].
func WithLogger[K comparable, V any](logger Logger) Option[K, V] {
	return func(c *engineConfig[K, V]) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// WithRateLimiter attaches a [catrate.Limiter] governing how frequently a
// single key may be enqueued. Each key is its own independent rate-limit
// category. Enqueue returns false for a call that the limiter refuses, in
// addition to (not instead of) the existing queue-capacity refusal.
func WithRateLimiter[K comparable, V any](limiter *catrate.Limiter) Option[K, V] {
	return func(c *engineConfig[K, V]) {
		c.rateLimiter = limiter
	}
}
