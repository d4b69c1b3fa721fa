package queue

import (
	"sync"

	equeue "github.com/eapache/queue"
)

// Unbounded is a growable queue guarded by a mutex. TryEmplace never fails,
// so pools using it never stall a submitter on a full worker queue.
type Unbounded[T any] struct {
	mu    sync.Mutex
	items *equeue.Queue
}

// NewUnbounded creates an empty Unbounded queue.
func NewUnbounded[T any]() *Unbounded[T] {
	return &Unbounded[T]{items: equeue.New()}
}

// TryPop removes the oldest item; ok is false if empty.
func (q *Unbounded[T]) TryPop() (item T, ok bool) {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.items.Length() == 0 {
		return item, false
	}
	return q.items.Remove().(T), true
}

// TryEmplace appends item and always succeeds.
func (q *Unbounded[T]) TryEmplace(item T) bool {
	q.mu.Lock()
	q.items.Add(item)
	q.mu.Unlock()
	return true
}

// Emplace appends item.
func (q *Unbounded[T]) Emplace(item T) {
	q.TryEmplace(item)
}

// Pop removes the oldest item, polling while the queue is empty.
func (q *Unbounded[T]) Pop() T {
	var s spinner
	for {
		if item, ok := q.TryPop(); ok {
			return item
		}
		s.wait()
	}
}

// Len returns the number of queued items.
func (q *Unbounded[T]) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.items.Length()
}
