// Package scheduler runs work posted from producer goroutines on the render
// thread, between frames.
package scheduler

import "sync"

// Queue is a FIFO of callbacks. Post never blocks; Drain runs everything
// posted so far on the caller's goroutine.
type Queue struct {
	mu      sync.Mutex
	pending []func()
	wake    func()
}

// NewQueue returns an empty queue. wake, if non-nil, is called after every
// Post so an idle event loop can return early (glfw.PostEmptyEvent).
func NewQueue(wake func()) *Queue {
	return &Queue{wake: wake}
}

// Post schedules fn to run on the next Drain.
func (q *Queue) Post(fn func()) {
	q.mu.Lock()
	q.pending = append(q.pending, fn)
	q.mu.Unlock()
	if q.wake != nil {
		q.wake()
	}
}

// Drain runs the callbacks queued before the call, in order. Callbacks posted
// while draining run on the next Drain. It returns how many ran.
func (q *Queue) Drain() int {
	q.mu.Lock()
	batch := q.pending
	q.pending = nil
	q.mu.Unlock()

	for _, fn := range batch {
		fn()
	}
	return len(batch)
}

// Len reports the number of queued callbacks.
func (q *Queue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.pending)
}
