package sync

import (
	"sync"
)

// Event is a latch that fires at most once. Waiters select on Done().
type Event struct {
	once sync.Once
	ch   chan struct{}
}

func NewEvent() *Event {
	return &Event{
		ch: make(chan struct{}),
	}
}

// Fire closes Done() and reports whether this call was the one that did it.
func (e *Event) Fire() bool {
	fired := false

	e.once.Do(func() {
		close(e.ch)
		fired = true
	})

	return fired
}

func (e *Event) Done() <-chan struct{} {
	return e.ch
}
