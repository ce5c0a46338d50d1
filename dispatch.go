package mqp

import (
	"errors"
	"time"
)

// dispatchPollInterval bounds how long the dispatch loop waits on the
// doorbell before re-scanning anyway, so that worker completions get
// reaped (freeing pool and in-flight capacity) even during a lull with no
// new Enqueue/Subscribe/Unsubscribe activity.
const dispatchPollInterval = 10 * time.Millisecond

// Run starts the dispatch loop, if it is not already running. Calling Run
// again while the engine is running is not an error: the second call is a
// no-op. Once Stop has been called, Run returns [ErrEngineStopped]: the
// dispatch loop is never resurrected after Stop.
func (e *Engine[K, V]) Run() error {
	return e.ensureRunning()
}

// ensureRunning starts the dispatch loop if it has not yet been started,
// and is a no-op otherwise. It is shared by Run and WaitConsumeAll, so
// that a caller who never explicitly calls Run can still rely on
// WaitConsumeAll to drive dispatch.
func (e *Engine[K, V]) ensureRunning() error {
	if e.life.tryTransition(stateAwake, stateRunning) {
		e.dispatchTask.start(e.dispatchIteration)
		return nil
	}
	if e.life.isStoppingOrStopped() {
		return ErrEngineStopped
	}
	return nil
}

// Stop requests termination of the dispatch loop, waits for it to exit,
// then waits for every worker already admitted to the pool to finish
// before returning. It does not wait for values still queued but not yet
// dispatched — Stop never blocks on backlog, only on work already in
// flight. If the dispatch loop panicked, that error is returned;
// otherwise the first error captured by a worker still in the pool when
// Stop drains it, if any. Consumer panics already reaped by the dispatch
// loop were logged and are not returned.
func (e *Engine[K, V]) Stop() error {
	for {
		cur := e.life.load()
		if cur == stateStopping || cur == stateStopped {
			break
		}
		if e.life.tryTransition(cur, stateStopping) {
			break
		}
	}

	e.ring() // wake a loop parked on the doorbell so it observes stopping promptly

	dispatchErr := e.dispatchTask.stop(true)
	poolErr := e.pool.joinAll()

	e.life.store(stateStopped)

	if dispatchErr != nil {
		return dispatchErr
	}
	return poolErr
}

// WaitConsumeAll ensures the dispatch loop is running (as Run would start
// it, if it hasn't been already) and then blocks until every servable key
// (bound consumer, non-empty queue) has been drained and no worker is in
// flight, or the engine is stopped, whichever comes first. It returns
// [ErrEngineStopped] if Stop has been called (concurrently or already
// completed) rather than waiting forever on a dispatch loop that will
// never resume.
func (e *Engine[K, V]) WaitConsumeAll() error {
	if err := e.ensureRunning(); err != nil {
		return err
	}
	for {
		if e.drained() {
			return nil
		}
		if e.life.isStoppingOrStopped() {
			return ErrEngineStopped
		}
		time.Sleep(dispatchPollInterval)
	}
}

// drained reports whether no worker is in flight and no key is servable
// (bound consumer with a non-empty queue). A queue with values but no
// bound consumer does not block drained: nothing will ever pop it, so
// waiting on it would block forever.
//
// The queues are checked before the pool: a worker pops its value only
// after it has been admitted, so a value that has left its queue is
// still counted in the pool until that worker has been reaped.
func (e *Engine[K, V]) drained() bool {
	for _, state := range e.registry.snapshot() {
		e.dataMu.Lock()
		blocked := state.servable()
		e.dataMu.Unlock()
		if blocked {
			return false
		}
	}
	return e.pool.len() == 0
}

// dispatchIteration is one cycle of the dispatch loop, run repeatedly by
// e.dispatchTask until Stop requests termination. It waits for a wakeup
// (or the poll interval, whichever is sooner), reaps any workers that
// completed since the last cycle, then attempts to admit a worker for
// every key whose queue is non-empty and has a bound consumer.
func (e *Engine[K, V]) dispatchIteration() (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = &DispatchError{Panic: r}
			logError(e.log, "dispatch", "dispatch loop panicked", nil, err)
		}
	}()

	select {
	case <-e.doorbell:
	case <-time.After(dispatchPollInterval):
	}

	e.reapCompleted()
	e.dispatchOnce()
	return nil
}

// reapCompleted drains every worker that has finished since the last
// cycle, logging any captured error, and rings the doorbell once per
// reaped worker so a newly-freed key or pool slot gets revisited promptly
// instead of waiting for the next poll interval.
func (e *Engine[K, V]) reapCompleted() {
	for {
		workerErr, ok := e.pool.pollOnce()
		if !ok {
			return
		}
		if workerErr != nil {
			var consumerErr *ConsumerError
			if errors.As(workerErr, &consumerErr) {
				logError(e.log, "worker", "consumer panicked", consumerErr.Key, consumerErr)
			} else {
				logError(e.log, "worker", "worker failed", nil, workerErr)
			}
		}
		e.ring()
	}
}

// dispatchOnce takes a snapshot of the registry (releasing its lock
// before touching any keyState's data, per the lock-ordering discipline:
// registry lock is never held while waiting on the data-state lock) and
// attempts to admit one worker per servable key.
func (e *Engine[K, V]) dispatchOnce() {
	for _, state := range e.registry.snapshot() {
		e.tryDispatch(state)
	}
}

// tryDispatch admits a worker for state if it is servable (bound consumer,
// non-empty queue) and the pool currently has room for it (capacity, and
// no worker already in flight for this exact key). The actual queue pop
// happens inside the worker goroutine, under the data-state lock, rather
// than here — so a refused admission never has to put a value back.
func (e *Engine[K, V]) tryDispatch(state *keyState[K, V]) {
	e.dataMu.Lock()
	servable := state.servable()
	e.dataMu.Unlock()
	if !servable {
		return
	}

	e.pool.tryAdmit(state, func() error {
		return e.runWorker(state)
	})
}

// runWorker pops the next value for state and delivers it to the bound
// consumer, recovering any panic into a [ConsumerError]. It re-checks
// servability under the data-state lock, since the key may have been
// unsubscribed or drained by the time the worker goroutine actually runs.
func (e *Engine[K, V]) runWorker(state *keyState[K, V]) (err error) {
	e.dataMu.Lock()
	if !state.servable() {
		e.dataMu.Unlock()
		return nil
	}
	value := state.queue.PopFront()
	consumer := state.consumer
	e.dataMu.Unlock()

	defer func() {
		if r := recover(); r != nil {
			err = &ConsumerError{Key: state.key, Panic: r}
		}
	}()

	consumer.Consume(state.key, value)
	return nil
}
