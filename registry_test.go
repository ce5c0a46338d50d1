package mqp

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestRegistry_GetOrCreate_SameHandle(t *testing.T) {
	r := newRegistry[string, int]()

	s1 := r.getOrCreate("a", newRingQueue[int])
	s2 := r.getOrCreate("a", newRingQueue[int])
	require.Same(t, s1, s2)
	require.Equal(t, 1, r.len())

	s3, ok := r.lookup("a")
	require.True(t, ok)
	require.Same(t, s1, s3)

	_, ok = r.lookup("missing")
	require.False(t, ok)
}

func TestRegistry_GetOrCreate_ConcurrentSameKey(t *testing.T) {
	r := newRegistry[int, int]()

	const n = 50
	var wg sync.WaitGroup
	handles := make([]*keyState[int, int], n)
	wg.Add(n)
	for i := 0; i < n; i++ {
		i := i
		go func() {
			defer wg.Done()
			handles[i] = r.getOrCreate(7, newRingQueue[int])
		}()
	}
	wg.Wait()

	for i := 1; i < n; i++ {
		require.Same(t, handles[0], handles[i])
	}
	require.Equal(t, 1, r.len())
}

func TestRegistry_Snapshot(t *testing.T) {
	r := newRegistry[string, int]()
	r.getOrCreate("a", newRingQueue[int])
	r.getOrCreate("b", newRingQueue[int])
	r.getOrCreate("c", newRingQueue[int])

	snap := r.snapshot()
	require.Len(t, snap, 3)
}
