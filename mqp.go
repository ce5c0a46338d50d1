package mqp

import (
	"sync"
)

// Engine is a keyed, in-process publish/consume dispatch engine. Producers
// call Enqueue to publish a value under a key; at most one [Consumer] is
// ever bound to a key at a time, via Subscribe. A bounded pool of worker
// goroutines delivers queued values to their bound consumer, preserving
// strict per-key FIFO order and per-key mutual exclusion, while different
// keys are delivered in parallel, up to the configured pool size.
//
// An Engine must be constructed with [NewEngine]. The zero value is not
// usable.
type Engine[K comparable, V any] struct {
	cfg      engineConfig[K, V]
	registry *registry[K, V]
	dataMu   sync.Mutex
	pool     *workerPool[K, V]
	doorbell chan struct{}
	life     lifecycle

	dispatchTask loopTask
	log          Logger
}

// NewEngine constructs an Engine. By default the pool size is
// runtime.GOMAXPROCS(0), each key's queue holds up to 1000 values, the
// queue implementation is a growable ring buffer, logging is discarded,
// and no rate limiting is applied — see [WithPoolSize], [WithQueueCapacity],
// [WithQueueFactory], [WithLogger], and [WithRateLimiter] to override any
// of these.
func NewEngine[K comparable, V any](opts ...Option[K, V]) *Engine[K, V] {
	cfg := defaultConfig[K, V]()
	for _, opt := range opts {
		opt(&cfg)
	}

	return &Engine[K, V]{
		cfg:      cfg,
		registry: newRegistry[K, V](),
		pool:     newWorkerPool[K, V](cfg.poolSize),
		doorbell: make(chan struct{}, 1),
		log:      cfg.logger,
	}
}

// ring wakes the dispatch loop, if it is currently waiting, without
// blocking: a pending, un-consumed wakeup is sufficient, so an
// already-full doorbell need not be refilled.
func (e *Engine[K, V]) ring() {
	select {
	case e.doorbell <- struct{}{}:
	default:
	}
}

// Subscribe binds consumer to key. A nil consumer is equivalent to
// calling Unsubscribe(key), and always returns true. Otherwise, if key
// already has a bound consumer, Subscribe refuses to rebind and returns
// false: a key has at most one consumer at a time, and rebinding requires
// an explicit Unsubscribe first.
func (e *Engine[K, V]) Subscribe(key K, consumer Consumer[K, V]) bool {
	if consumer == nil {
		e.Unsubscribe(key)
		return true
	}

	state := e.registry.getOrCreate(key, e.cfg.queueFactory)

	e.dataMu.Lock()
	if state.consumer != nil {
		e.dataMu.Unlock()
		return false
	}
	state.consumer = consumer
	e.dataMu.Unlock()

	logDebug(e.log, "registry", "consumer subscribed", key)
	e.ring()
	return true
}

// Unsubscribe removes any consumer bound to key. Queued values for key are
// retained; a future Subscribe resumes delivery from the front of the
// queue.
func (e *Engine[K, V]) Unsubscribe(key K) {
	state, ok := e.registry.lookup(key)
	if !ok {
		return
	}

	e.dataMu.Lock()
	state.consumer = nil
	e.dataMu.Unlock()

	logDebug(e.log, "registry", "consumer unsubscribed", key)
}

// Enqueue publishes value under key. It returns false, without enqueuing,
// if the engine has been stopped, the key's rate limit (if any) refuses
// the event, or the key's queue is already at capacity.
func (e *Engine[K, V]) Enqueue(key K, value V) bool {
	if e.life.isStoppingOrStopped() {
		return false
	}
	if !allowEnqueue(e.cfg.rateLimiter, key) {
		logWarn(e.log, "dispatch", "enqueue refused by rate limiter", key)
		return false
	}

	state := e.registry.getOrCreate(key, e.cfg.queueFactory)

	e.dataMu.Lock()
	if e.cfg.queueCapacity > 0 && state.queue.Len() >= e.cfg.queueCapacity {
		e.dataMu.Unlock()
		logWarn(e.log, "dispatch", "enqueue refused: queue full", key)
		return false
	}
	state.queue.PushBack(value)
	e.dataMu.Unlock()

	e.ring()
	return true
}

// Dequeue removes and returns the oldest queued value for key, bypassing
// any bound consumer. It returns ok=false, with the zero value of V, if
// key is unknown or its queue is empty.
func (e *Engine[K, V]) Dequeue(key K) (value V, ok bool) {
	state, found := e.registry.lookup(key)
	if !found {
		return value, false
	}

	e.dataMu.Lock()
	defer e.dataMu.Unlock()

	if state.queue.Len() == 0 {
		return value, false
	}
	return state.queue.PopFront(), true
}
