package queue

import (
	"runtime"
	"time"
)

// DefaultCapacity is the per-worker capacity used by pools that do not
// configure their own queue.
const DefaultCapacity = 4096

// Adapter is the contract a per-worker queue must satisfy. All methods are
// safe for concurrent use by multiple producers and consumers.
type Adapter[T any] interface {
	// TryPop removes the oldest item. ok is false when the queue is empty.
	TryPop() (item T, ok bool)

	// TryEmplace appends item. It returns false when the queue is full.
	TryEmplace(item T) bool

	// Emplace appends item, waiting while the queue is full.
	Emplace(item T)

	// Pop removes the oldest item, waiting while the queue is empty.
	Pop() T

	// Len returns the approximate number of queued items.
	Len() int
}

// Factory builds one Adapter per worker slot.
type Factory[T any] func() Adapter[T]

// MPMCFactory returns a Factory producing bounded MPMC queues of the given capacity.
func MPMCFactory[T any](capacity int) Factory[T] {
	return func() Adapter[T] {
		return NewMPMC[T](capacity)
	}
}

// UnboundedFactory returns a Factory producing unbounded queues.
func UnboundedFactory[T any]() Factory[T] {
	return func() Adapter[T] {
		return NewUnbounded[T]()
	}
}

// spinner paces the polling loops behind the blocking operations.
type spinner struct {
	n int
}

const (
	spinYield = 64
	spinSleep = 50 * time.Microsecond
)

func (s *spinner) wait() {
	s.n++
	if s.n < spinYield {
		runtime.Gosched()
		return
	}
	time.Sleep(spinSleep)
}
