package mqp

import (
	"errors"
	"fmt"
)

// ErrEngineStopped is returned by Run and WaitConsumeAll once Stop has
// been called, whether it is still in progress or has completed. An Engine
// is single-use: it is never resurrected after Stop.
var ErrEngineStopped = errors.New("mqp: engine has been stopped")

// ConsumerError wraps a panic recovered from a [Consumer]'s Consume method.
// It is captured by the worker that invoked Consume. When the dispatch
// loop reaps that worker, the error is logged and discarded (the worker
// pool always continues servicing other keys); only a worker still in the
// pool when [Engine.Stop] drains it has its error returned by Stop.
type ConsumerError struct {
	// Key identifies which key's consumer panicked.
	Key any
	// Panic is the recovered panic value.
	Panic any
}

func (e *ConsumerError) Error() string {
	return fmt.Sprintf("mqp: consumer for key %v panicked: %v", e.Key, e.Panic)
}

// DispatchError wraps a panic recovered from the dispatch loop's own body
// (as opposed to a bound Consumer). It is captured by the loopTask running
// the dispatch loop, and re-raised by [Engine.Stop].
type DispatchError struct {
	Panic any
}

func (e *DispatchError) Error() string {
	return fmt.Sprintf("mqp: dispatch loop panicked: %v", e.Panic)
}
