package mqp

import "github.com/joeycumines/go-catrate"

// allowEnqueue reports whether key may be enqueued right now, given the
// engine's configured rate limiter. A nil limiter (the default) always
// allows; callers pass the key itself as catrate's category, giving each
// distinct key its own independent sliding window.
func allowEnqueue[K comparable](limiter *catrate.Limiter, key K) bool {
	if limiter == nil {
		return true
	}
	_, ok := limiter.Allow(key)
	return ok
}
