package pipeline

import "fmt"

// Ring is a fixed-capacity circular FIFO. Elements keep the physical index
// they were pushed at until popped, so an index can be used as a tag.
type Ring[T any] struct {
	buf  []T
	head int
	size int
}

// NewRing creates a ring with the given capacity.
func NewRing[T any](capacity int) *Ring[T] {
	if capacity <= 0 {
		panic(fmt.Sprintf("ring capacity %d out of range", capacity))
	}

	return &Ring[T]{buf: make([]T, capacity)}
}

// Push appends v at the tail and returns its index.
func (r *Ring[T]) Push(v T) (int, error) {
	if r.Full() {
		return -1, fmt.Errorf("ring of %d entries is full", len(r.buf))
	}

	i := r.Tail()
	r.buf[i] = v
	r.size++

	return i, nil
}

// Pop removes and returns the head.
func (r *Ring[T]) Pop() (T, error) {
	var zero T
	if r.size == 0 {
		return zero, fmt.Errorf("ring is empty")
	}

	v := r.buf[r.head]
	r.buf[r.head] = zero
	r.head = (r.head + 1) % len(r.buf)
	r.size--

	return v, nil
}

// Front returns the head element. It must not be called on an empty ring.
func (r *Ring[T]) Front() *T {
	return &r.buf[r.head]
}

// Head returns the index of the head element.
func (r *Ring[T]) Head() int {
	return r.head
}

// Tail returns the index the next Push will use.
func (r *Ring[T]) Tail() int {
	return (r.head + r.size) % len(r.buf)
}

// At returns the element at physical index i.
func (r *Ring[T]) At(i int) *T {
	return &r.buf[i]
}

// Busy reports whether physical index i currently holds an element.
func (r *Ring[T]) Busy(i int) bool {
	if i < 0 || i >= len(r.buf) {
		return false
	}
	return (i-r.head+len(r.buf))%len(r.buf) < r.size
}

// Len returns the number of elements.
func (r *Ring[T]) Len() int { return r.size }

// Cap returns the capacity.
func (r *Ring[T]) Cap() int { return len(r.buf) }

// Full reports whether the ring is at capacity.
func (r *Ring[T]) Full() bool { return r.size == len(r.buf) }

// Empty reports whether the ring has no elements.
func (r *Ring[T]) Empty() bool { return r.size == 0 }

// Clear drops every element and rewinds to index 0.
func (r *Ring[T]) Clear() {
	clear(r.buf)
	r.head = 0
	r.size = 0
}

// Each calls fn for every element from head to tail.
func (r *Ring[T]) Each(fn func(i int, v *T)) {
	for n := 0; n < r.size; n++ {
		i := (r.head + n) % len(r.buf)
		fn(i, &r.buf[i])
	}
}
