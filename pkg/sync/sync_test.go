package sync

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEvent_FiresOnce(t *testing.T) {
	e := NewEvent()

	select {
	case <-e.Done():
		t.Fatal("Done() closed before Fire()")
	default:
	}

	assert.True(t, e.Fire())
	assert.False(t, e.Fire())

	select {
	case <-e.Done():
	default:
		t.Fatal("Done() not closed after Fire()")
	}
}

func TestEvent_ConcurrentFire(t *testing.T) {
	e := NewEvent()

	var (
		wg   sync.WaitGroup
		mx   sync.Mutex
		wins int
	)

	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()

			if e.Fire() {
				mx.Lock()
				wins++
				mx.Unlock()
			}
		}()
	}

	wg.Wait()

	assert.Equal(t, 1, wins)
}

func TestQueue_RunsInPushOrder(t *testing.T) {
	q := NewQueue()
	go q.Run()
	defer q.Stop()

	var got []int
	finished := make(chan struct{})

	for i := 0; i < 100; i++ {
		i := i
		require.True(t, q.Push(func() { got = append(got, i) }))
	}
	require.True(t, q.Push(func() { close(finished) }))

	select {
	case <-finished:
	case <-time.After(5 * time.Second):
		t.Fatal("queue did not drain")
	}

	require.Len(t, got, 100)
	for i, v := range got {
		assert.Equal(t, i, v)
	}
}

func TestQueue_PushFromTask(t *testing.T) {
	q := NewQueue()
	go q.Run()
	defer q.Stop()

	finished := make(chan struct{})

	q.Push(func() {
		q.Push(func() { close(finished) })
	})

	select {
	case <-finished:
	case <-time.After(5 * time.Second):
		t.Fatal("nested task did not run")
	}
}

func TestQueue_StopDropsPending(t *testing.T) {
	q := NewQueue()

	ran := false
	require.True(t, q.Push(func() { ran = true }))

	q.Stop()
	q.Stop()

	assert.False(t, q.Push(func() { ran = true }))

	returned := make(chan struct{})
	go func() {
		q.Run()
		close(returned)
	}()

	select {
	case <-returned:
	case <-time.After(5 * time.Second):
		t.Fatal("Run did not return on a stopped queue")
	}

	assert.False(t, ran)
}
