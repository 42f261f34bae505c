package sync

import (
	"sync"
)

// Queue runs pushed tasks one at a time, in push order, on the goroutine
// that calls Run. Push never blocks: the backlog is unbounded, so engine
// callbacks can hand work over without waiting on the consumer.
type Queue struct {
	mx      sync.Mutex
	tasks   []func()
	stopped bool

	wake chan struct{}
	done chan struct{}
}

func NewQueue() *Queue {
	return &Queue{
		wake: make(chan struct{}, 1),
		done: make(chan struct{}),
	}
}

// Push enqueues task. It returns false if the queue has been stopped, in
// which case task will never run.
func (q *Queue) Push(task func()) bool {
	q.mx.Lock()
	defer q.mx.Unlock()

	if q.stopped {
		return false
	}

	q.tasks = append(q.tasks, task)

	select {
	case q.wake <- struct{}{}:
	default:
	}

	return true
}

// Run executes tasks until Stop is called. Tasks still pending at that
// point are discarded.
func (q *Queue) Run() {
	for {
		select {
		case <-q.done:
			return
		case <-q.wake:
		}

		for {
			task, ok := q.next()
			if !ok {
				break
			}

			task()
		}
	}
}

// Stop makes Run return after the task in flight (if any) and rejects
// further pushes. It is safe to call more than once.
func (q *Queue) Stop() {
	q.mx.Lock()
	defer q.mx.Unlock()

	if q.stopped {
		return
	}

	q.stopped = true
	q.tasks = nil

	close(q.done)
}

func (q *Queue) next() (func(), bool) {
	q.mx.Lock()
	defer q.mx.Unlock()

	if q.stopped || len(q.tasks) == 0 {
		return nil, false
	}

	task := q.tasks[0]
	q.tasks[0] = nil
	q.tasks = q.tasks[1:]

	return task, true
}
