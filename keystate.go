package mqp

// keyState is the per-key record: a bounded FIFO queue plus an optional
// bound consumer. All fields are protected by the owning Engine's single,
// coarse data-state lock (Engine.dataMu) — not by a lock of their own —
// so the lock stays cheap to acquire regardless of how many keys exist.
type keyState[K comparable, V any] struct {
	key      K
	queue    Queue[V]
	consumer Consumer[K, V] // nil when unbound
}

func newKeyState[K comparable, V any](key K, queue Queue[V]) *keyState[K, V] {
	return &keyState[K, V]{key: key, queue: queue}
}

// servable reports whether this key currently has both a bound consumer
// and at least one queued value. Callers must hold Engine.dataMu.
func (s *keyState[K, V]) servable() bool {
	return s.consumer != nil && s.queue.Len() > 0
}
