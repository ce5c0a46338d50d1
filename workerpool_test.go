package mqp

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestWorkerPool_CapacityRefusal(t *testing.T) {
	p := newWorkerPool[string, int](1)

	s1 := newKeyState[string, int]("a", newRingQueue[int]())
	s2 := newKeyState[string, int]("b", newRingQueue[int]())

	block := make(chan struct{})
	require.True(t, p.tryAdmit(s1, func() error {
		<-block
		return nil
	}))

	// pool is full (capacity 1), a distinct key must be refused
	require.False(t, p.tryAdmit(s2, func() error { return nil }))

	close(block)
	require.Eventually(t, func() bool {
		err, ok := p.pollOnce()
		return ok && err == nil
	}, time.Second, time.Millisecond)
}

func TestWorkerPool_DuplicateKeyRefusal(t *testing.T) {
	p := newWorkerPool[string, int](4)

	s1 := newKeyState[string, int]("a", newRingQueue[int]())

	block := make(chan struct{})
	require.True(t, p.tryAdmit(s1, func() error {
		<-block
		return nil
	}))

	// same keyState handle already in flight: must be refused even though
	// the pool has spare capacity.
	require.False(t, p.tryAdmit(s1, func() error { return nil }))

	close(block)
	require.Eventually(t, func() bool {
		err, ok := p.pollOnce()
		return ok && err == nil
	}, time.Second, time.Millisecond)

	// now that the first worker has been reaped, the key may be re-admitted
	require.True(t, p.tryAdmit(s1, func() error { return nil }))
}

func TestWorkerPool_PollOnceCapturesError(t *testing.T) {
	p := newWorkerPool[string, int](1)
	s1 := newKeyState[string, int]("a", newRingQueue[int]())

	wantErr := errors.New("boom")
	require.True(t, p.tryAdmit(s1, func() error { return wantErr }))

	require.Eventually(t, func() bool {
		err, ok := p.pollOnce()
		return ok && errors.Is(err, wantErr)
	}, time.Second, time.Millisecond)
}

func TestWorkerPool_JoinAll(t *testing.T) {
	p := newWorkerPool[string, int](4)

	block := make(chan struct{})
	for _, k := range []string{"a", "b", "c"} {
		s := newKeyState[string, int](k, newRingQueue[int]())
		require.True(t, p.tryAdmit(s, func() error {
			<-block
			return nil
		}))
	}
	require.Equal(t, 3, p.len())

	done := make(chan error, 1)
	go func() { done <- p.joinAll() }()

	close(block)
	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(time.Second):
		t.Fatal("joinAll did not return")
	}
	require.Equal(t, 0, p.len())
}
