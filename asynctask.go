package mqp

import "sync/atomic"

// loopTask runs a function repeatedly, on a dedicated goroutine, until
// stop is requested or the function returns a non-nil error, which is
// captured and can be rethrown by stop. It underlies the dispatch loop;
// workers are one-shot goroutines reaped by the worker pool instead (see
// workerpool.go).
type loopTask struct {
	stopping atomic.Bool
	done     chan struct{} // non-nil once start has been called; closed on exit
	err      error
}

// isDone reports whether no task is running, or the task has finished.
func (t *loopTask) isDone() bool {
	if t.done == nil {
		return true
	}
	select {
	case <-t.done:
		return true
	default:
		return false
	}
}

// isStopping reports whether stop has been requested.
func (t *loopTask) isStopping() bool {
	return t.stopping.Load()
}

// start spawns a goroutine that repeatedly calls fn until isStopping
// returns true or fn returns a non-nil error. start is a no-op if a task
// is already running.
func (t *loopTask) start(fn func() error) {
	if !t.isDone() {
		return
	}

	t.stopping.Store(false)
	t.err = nil
	done := make(chan struct{})
	t.done = done

	go func() {
		defer close(done)
		for !t.isStopping() {
			if err := fn(); err != nil {
				t.err = err
				return
			}
		}
	}()
}

// stop requests termination, waits for the task to exit, and — if
// rethrow is true and the task captured an error — returns that error.
func (t *loopTask) stop(rethrow bool) error {
	t.stopping.Store(true)

	if t.done == nil {
		return nil
	}
	<-t.done

	if rethrow {
		return t.err
	}
	return nil
}
