package pipeline

import (
	"fmt"
	"math/bits"
)

// MaxSlots is the largest supported SlotTable capacity.
const MaxSlots = 64

// SlotTable is a fixed-capacity unordered set of entries addressed by slot
// index. Occupancy is a bitmask; Insert takes the lowest free slot.
type SlotTable[T any] struct {
	slots []T
	busy  uint64
	full  uint64
}

// NewSlotTable creates a table with the given number of slots, at most
// MaxSlots.
func NewSlotTable[T any](capacity int) *SlotTable[T] {
	if capacity <= 0 || capacity > MaxSlots {
		panic(fmt.Sprintf("slot table capacity %d out of range", capacity))
	}

	full := ^uint64(0)
	if capacity < MaxSlots {
		full = (uint64(1) << capacity) - 1
	}

	return &SlotTable[T]{
		slots: make([]T, capacity),
		full:  full,
	}
}

// Insert stores v in the lowest free slot and returns its index.
func (t *SlotTable[T]) Insert(v T) (int, error) {
	free := ^t.busy & t.full
	if free == 0 {
		return -1, fmt.Errorf("all %d slots busy", len(t.slots))
	}

	i := bits.TrailingZeros64(free)
	t.slots[i] = v
	t.busy |= uint64(1) << i

	return i, nil
}

// Remove frees slot i.
func (t *SlotTable[T]) Remove(i int) {
	var zero T
	t.slots[i] = zero
	t.busy &^= uint64(1) << i
}

// Busy reports whether slot i holds an entry.
func (t *SlotTable[T]) Busy(i int) bool {
	return t.busy&(uint64(1)<<i) != 0
}

// Get returns the entry in slot i.
func (t *SlotTable[T]) Get(i int) *T {
	return &t.slots[i]
}

// Full reports whether every slot is busy.
func (t *SlotTable[T]) Full() bool {
	return t.busy == t.full
}

// Len returns the number of busy slots.
func (t *SlotTable[T]) Len() int {
	return bits.OnesCount64(t.busy)
}

// Cap returns the number of slots.
func (t *SlotTable[T]) Cap() int {
	return len(t.slots)
}

// Clear frees every slot.
func (t *SlotTable[T]) Clear() {
	clear(t.slots)
	t.busy = 0
}

// Each calls fn for every busy slot in ascending slot order.
func (t *SlotTable[T]) Each(fn func(i int, v *T)) {
	for m := t.busy; m != 0; m &= m - 1 {
		i := bits.TrailingZeros64(m)
		fn(i, &t.slots[i])
	}
}

// First returns the lowest busy slot whose entry satisfies pred, or -1.
func (t *SlotTable[T]) First(pred func(v *T) bool) int {
	for m := t.busy; m != 0; m &= m - 1 {
		i := bits.TrailingZeros64(m)
		if pred(&t.slots[i]) {
			return i
		}
	}
	return -1
}
