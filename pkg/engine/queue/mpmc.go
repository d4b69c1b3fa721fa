package queue

import (
	"sync/atomic"
)

const cacheLinePad = 64

type cell[T any] struct {
	sequence atomic.Uint64
	data     T
}

// MPMC is a bounded lock-free multi-producer/multi-consumer queue.
// Each cell carries a sequence number that tells producers and consumers
// whether the slot is free for the current lap.
type MPMC[T any] struct {
	head  atomic.Uint64
	_     [cacheLinePad]byte
	tail  atomic.Uint64
	_     [cacheLinePad]byte
	mask  uint64
	cells []cell[T]
}

// NewMPMC creates a queue with capacity rounded up to a power of two.
func NewMPMC[T any](capacity int) *MPMC[T] {
	if capacity < 2 {
		capacity = 2
	}
	size := 1
	for size < capacity {
		size <<= 1
	}

	q := &MPMC[T]{
		mask:  uint64(size - 1),
		cells: make([]cell[T], size),
	}
	for i := range q.cells {
		q.cells[i].sequence.Store(uint64(i))
	}
	return q
}

// TryEmplace adds item; returns false if full.
func (q *MPMC[T]) TryEmplace(item T) bool {
	for {
		tail := q.tail.Load()
		c := &q.cells[tail&q.mask]
		dif := int64(c.sequence.Load()) - int64(tail)

		switch {
		case dif == 0:
			if q.tail.CompareAndSwap(tail, tail+1) {
				c.data = item
				c.sequence.Store(tail + 1)
				return true
			}
		case dif < 0:
			return false
		}
		// tail moved, retry
	}
}

// TryPop removes and returns an item; ok false if empty.
func (q *MPMC[T]) TryPop() (item T, ok bool) {
	for {
		head := q.head.Load()
		c := &q.cells[head&q.mask]
		dif := int64(c.sequence.Load()) - int64(head+1)

		switch {
		case dif == 0:
			if q.head.CompareAndSwap(head, head+1) {
				item = c.data
				var zero T
				c.data = zero
				c.sequence.Store(head + q.mask + 1)
				return item, true
			}
		case dif < 0:
			return item, false
		}
		// head moved, retry
	}
}

// Emplace adds item, polling while the queue is full.
func (q *MPMC[T]) Emplace(item T) {
	var s spinner
	for !q.TryEmplace(item) {
		s.wait()
	}
}

// Pop removes an item, polling while the queue is empty.
func (q *MPMC[T]) Pop() T {
	var s spinner
	for {
		if item, ok := q.TryPop(); ok {
			return item
		}
		s.wait()
	}
}

// Len returns number of items currently queued.
func (q *MPMC[T]) Len() int {
	head := q.head.Load()
	tail := q.tail.Load()
	if tail < head {
		return 0
	}
	return int(tail - head)
}

// Cap returns the fixed capacity.
func (q *MPMC[T]) Cap() int {
	return len(q.cells)
}
