// Package sched runs delayed callbacks that can be cancelled individually or
// all at once.
package sched

import (
	"errors"
	"sync"
	"time"

	"k8s.io/utils/clock"
)

var ErrClosed = errors.New("sched: queue closed")

// TaskID identifies a scheduled task.
type TaskID uint64

type task struct {
	timer  clock.Timer
	cancel chan struct{}
}

// Queue schedules callbacks on a clock. Close cancels everything still pending
// and waits for callbacks already running, so no callback runs after Close
// returns. Callbacks must not call Close on their own queue.
type Queue struct {
	clock clock.Clock

	mu      sync.Mutex
	closed  bool
	nextID  TaskID
	pending map[TaskID]*task
	running sync.WaitGroup
}

func New(c clock.Clock) *Queue {
	if c == nil {
		c = clock.RealClock{}
	}
	return &Queue{clock: c, pending: make(map[TaskID]*task)}
}

// After runs fn once d has elapsed on the queue's clock. d <= 0 runs fn
// immediately on a new goroutine.
func (q *Queue) After(d time.Duration, fn func()) (TaskID, error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.closed {
		return 0, ErrClosed
	}
	q.nextID++
	id := q.nextID
	t := &task{cancel: make(chan struct{})}
	if d > 0 {
		t.timer = q.clock.NewTimer(d)
	}
	q.pending[id] = t
	q.running.Add(1)
	go q.wait(id, t, fn)
	return id, nil
}

func (q *Queue) wait(id TaskID, t *task, fn func()) {
	defer q.running.Done()
	if t.timer != nil {
		select {
		case <-t.timer.C():
		case <-t.cancel:
			t.timer.Stop()
			return
		}
	}

	q.mu.Lock()
	if _, ok := q.pending[id]; !ok {
		q.mu.Unlock()
		return
	}
	delete(q.pending, id)
	q.mu.Unlock()

	fn()
}

// Cancel stops a task that has not started. It reports whether the task was
// still pending.
func (q *Queue) Cancel(id TaskID) bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	t, ok := q.pending[id]
	if !ok {
		return false
	}
	delete(q.pending, id)
	close(t.cancel)
	return true
}

// Pending returns the number of tasks waiting to run.
func (q *Queue) Pending() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.pending)
}

// Close cancels pending tasks, waits for running ones and rejects new ones.
// It is safe to call more than once.
func (q *Queue) Close() {
	q.mu.Lock()
	q.closed = true
	for id, t := range q.pending {
		delete(q.pending, id)
		close(t.cancel)
	}
	q.mu.Unlock()
	q.running.Wait()
}
