// Package signal provides a single-writer observable value shared between
// producers (tempo, capture devices) and the render loop.
package signal

import "sync"

// Cell holds the latest value written by its producer. Readers always see the
// most recent Set; there is no history. Subscribers are called synchronously
// on the writer's goroutine, in subscription order.
type Cell[T any] struct {
	mu      sync.RWMutex
	value   T
	version uint64
	nextID  int
	subs    map[int]func(T)
	order   []int
}

// NewCell returns a cell holding initial at version 0.
func NewCell[T any](initial T) *Cell[T] {
	return &Cell[T]{value: initial, subs: make(map[int]func(T))}
}

// Get returns the current value.
func (c *Cell[T]) Get() T {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.value
}

// Load returns the current value together with its version.
func (c *Cell[T]) Load() (T, uint64) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.value, c.version
}

// Version increases by one on every Set.
func (c *Cell[T]) Version() uint64 {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.version
}

// Set stores v and notifies subscribers.
func (c *Cell[T]) Set(v T) {
	c.mu.Lock()
	c.value = v
	c.version++
	fns := make([]func(T), 0, len(c.order))
	for _, id := range c.order {
		fns = append(fns, c.subs[id])
	}
	c.mu.Unlock()

	for _, fn := range fns {
		fn(v)
	}
}

// Subscribe registers fn for future writes. The returned function removes the
// subscription and is safe to call more than once.
func (c *Cell[T]) Subscribe(fn func(T)) (cancel func()) {
	c.mu.Lock()
	id := c.nextID
	c.nextID++
	c.subs[id] = fn
	c.order = append(c.order, id)
	c.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			c.mu.Lock()
			defer c.mu.Unlock()
			delete(c.subs, id)
			for i, v := range c.order {
				if v == id {
					c.order = append(c.order[:i], c.order[i+1:]...)
					break
				}
			}
		})
	}
}

// Subscribers reports how many subscriptions are active.
func (c *Cell[T]) Subscribers() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.subs)
}
