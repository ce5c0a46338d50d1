package mqp

import (
	"sync"

	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/semaphore"
)

// inFlightWorker is a handle to a running worker goroutine, with no
// return value of its own, plus a completion signal and any captured
// error.
type inFlightWorker struct {
	done chan struct{}
	err  error
}

// workerPool is the bounded set of concurrent delivery tasks. Admission
// is refused both when the pool is at capacity (enforced by a
// semaphore.Weighted, the idiomatic Go bounded-concurrency primitive) and
// when a worker for the given keyState is already in flight — without
// the second check, a key could end up with two workers racing to pop
// and deliver its values concurrently, breaking per-key ordering under
// concurrent Enqueue / dispatch-snapshot timing.
type workerPool[K comparable, V any] struct {
	sem *semaphore.Weighted

	mu       sync.Mutex
	inFlight map[*keyState[K, V]]*inFlightWorker
}

func newWorkerPool[K comparable, V any](size int) *workerPool[K, V] {
	return &workerPool[K, V]{
		sem:      semaphore.NewWeighted(int64(size)),
		inFlight: make(map[*keyState[K, V]]*inFlightWorker),
	}
}

// tryAdmit attempts to start a worker for state, running fn on a new
// goroutine. It returns false immediately, without blocking, if the pool
// is full or a worker for state is already in flight.
func (p *workerPool[K, V]) tryAdmit(state *keyState[K, V], fn func() error) bool {
	p.mu.Lock()
	if _, exists := p.inFlight[state]; exists {
		p.mu.Unlock()
		return false
	}
	if !p.sem.TryAcquire(1) {
		p.mu.Unlock()
		return false
	}

	w := &inFlightWorker{done: make(chan struct{})}
	p.inFlight[state] = w
	p.mu.Unlock()

	go func() {
		defer p.sem.Release(1)
		defer close(w.done)
		w.err = fn()
	}()

	return true
}

// pollOnce scans the in-flight map for the first completed worker,
// removing it and returning its captured error. The scan and the removal
// are two distinct phases (find, then delete) to avoid mutating the map
// while iterating it. It returns ok=false if no worker has completed yet.
func (p *workerPool[K, V]) pollOnce() (err error, ok bool) {
	p.mu.Lock()
	defer p.mu.Unlock()

	var target *keyState[K, V]
	for state, w := range p.inFlight {
		select {
		case <-w.done:
			target = state
		default:
		}
		if target != nil {
			break
		}
	}
	if target == nil {
		return nil, false
	}

	w := p.inFlight[target]
	delete(p.inFlight, target)
	return w.err, true
}

// joinAll waits for every currently in-flight worker to complete, removing
// each from the pool as it does, and returns the first captured error, if
// any. It is used during shutdown, so that every in-flight worker's
// completion is observed before Stop returns.
func (p *workerPool[K, V]) joinAll() error {
	p.mu.Lock()
	states := make([]*keyState[K, V], 0, len(p.inFlight))
	workers := make([]*inFlightWorker, 0, len(p.inFlight))
	for state, w := range p.inFlight {
		states = append(states, state)
		workers = append(workers, w)
	}
	p.mu.Unlock()

	var g errgroup.Group
	for _, w := range workers {
		w := w
		g.Go(func() error {
			<-w.done
			return w.err
		})
	}
	err := g.Wait()

	p.mu.Lock()
	for _, state := range states {
		delete(p.inFlight, state)
	}
	p.mu.Unlock()

	return err
}

// len reports the number of currently in-flight workers, for
// logging/diagnostics and tests.
func (p *workerPool[K, V]) len() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.inFlight)
}
