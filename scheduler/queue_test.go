package scheduler

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestQueueRunsInOrder(t *testing.T) {
	q := NewQueue(nil)
	var got []int
	for i := 0; i < 5; i++ {
		q.Post(func() { got = append(got, i) })
	}
	assert.Equal(t, 5, q.Drain())
	assert.Equal(t, []int{0, 1, 2, 3, 4}, got)
	assert.Zero(t, q.Drain())
}

func TestQueuePostDuringDrainDefers(t *testing.T) {
	q := NewQueue(nil)
	var got []string
	q.Post(func() {
		got = append(got, "first")
		q.Post(func() { got = append(got, "second") })
	})
	assert.Equal(t, 1, q.Drain())
	assert.Equal(t, []string{"first"}, got)
	assert.Equal(t, 1, q.Len())
	q.Drain()
	assert.Equal(t, []string{"first", "second"}, got)
}

func TestQueueConcurrentPost(t *testing.T) {
	var wakes int
	var mu sync.Mutex
	q := NewQueue(func() {
		mu.Lock()
		wakes++
		mu.Unlock()
	})
	var wg sync.WaitGroup
	total := 0
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 100; j++ {
				q.Post(func() { total++ })
			}
		}()
	}
	wg.Wait()
	q.Drain()
	assert.Equal(t, 800, total)
	assert.Equal(t, 800, wakes)
}
