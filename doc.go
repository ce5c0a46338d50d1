// Package mqp implements a keyed, in-process publish/consume dispatch
// engine: producers enqueue values under a key, at most one consumer is
// bound per key, and a bounded worker pool delivers queued values to their
// bound consumer with strict per-key ordering and per-key mutual exclusion.
//
// Many independent key streams can be drained in parallel while FIFO
// delivery within a single key is always preserved. See [Engine] for the
// primary type, and [NewEngine] for construction.
//
// The engine is fully in-process: there is no transport, persistence, or
// RPC layer, and no durability across restarts. See also
// [github.com/joeycumines/go-microbatch], for a related, lower-level
// primitive for grouping work into batches.
package mqp
