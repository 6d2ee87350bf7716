// Package registry holds the ordered list of shader sources that make up a
// session. Each entry is rendered by one panel.
package registry

import (
	"errors"
	"fmt"
)

// ErrIndexOutOfRange is returned by ReplaceAt and RemoveAt for bad indices.
var ErrIndexOutOfRange = errors.New("registry index out of range")

// Observer receives the full ordered list after every mutation.
type Observer func(sources []string)

// Registry is an ordered sequence of shader sources. It is not safe for
// concurrent use: mutate it from the render thread only. Observers run
// synchronously before a mutation returns.
type Registry struct {
	sources   []string
	observers map[int]Observer
	order     []int
	nextID    int
}

// New returns a registry holding initial, in order.
func New(initial ...string) *Registry {
	return &Registry{
		sources:   append([]string(nil), initial...),
		observers: make(map[int]Observer),
	}
}

// Subscribe registers fn and immediately calls it with the current snapshot.
func (r *Registry) Subscribe(fn Observer) (cancel func()) {
	id := r.nextID
	r.nextID++
	r.observers[id] = fn
	r.order = append(r.order, id)
	fn(r.Snapshot())
	return func() {
		if _, ok := r.observers[id]; !ok {
			return
		}
		delete(r.observers, id)
		for i, v := range r.order {
			if v == id {
				r.order = append(r.order[:i], r.order[i+1:]...)
				break
			}
		}
	}
}

// Append adds source at the end.
func (r *Registry) Append(source string) {
	r.sources = append(r.sources, source)
	r.notify()
}

// ReplaceAt swaps the source at index.
func (r *Registry) ReplaceAt(index int, source string) error {
	if err := r.check(index); err != nil {
		return err
	}
	r.sources[index] = source
	r.notify()
	return nil
}

// RemoveAt deletes the entry at index, keeping the order of the rest.
func (r *Registry) RemoveAt(index int) error {
	if err := r.check(index); err != nil {
		return err
	}
	r.sources = append(r.sources[:index], r.sources[index+1:]...)
	r.notify()
	return nil
}

// Load replaces the whole registry in one step.
func (r *Registry) Load(sources []string) {
	r.sources = append([]string(nil), sources...)
	r.notify()
}

// Snapshot returns a copy of the current entries.
func (r *Registry) Snapshot() []string {
	return append([]string(nil), r.sources...)
}

// At returns the entry at index.
func (r *Registry) At(index int) (string, error) {
	if err := r.check(index); err != nil {
		return "", err
	}
	return r.sources[index], nil
}

// Len reports the number of entries.
func (r *Registry) Len() int { return len(r.sources) }

func (r *Registry) check(index int) error {
	if index < 0 || index >= len(r.sources) {
		return fmt.Errorf("%w: %d (len %d)", ErrIndexOutOfRange, index, len(r.sources))
	}
	return nil
}

func (r *Registry) notify() {
	for _, id := range append([]int(nil), r.order...) {
		if fn, ok := r.observers[id]; ok {
			fn(r.Snapshot())
		}
	}
}
