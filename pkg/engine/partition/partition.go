package partition

import (
	"fmt"
	"math/rand/v2"
	"sync"
)

// Part is one slice of a partitioned range and the worker slot it goes to.
type Part struct {
	Begin   uint64
	End     uint64
	Worker  int
	MinSize uint64
}

// Size returns End - Begin.
func (p Part) Size() uint64 {
	return p.End - p.Begin
}

func (p Part) String() string {
	return fmt.Sprintf("[%d, %d)->%d", p.Begin, p.End, p.Worker)
}

// Scheme is the ordered output of a partitioning.
type Scheme []Part

// Partitioner splits a range across eligible worker slots.
type Partitioner interface {
	// Partition splits [start, end) across workers. workers must be non-empty
	// and start <= end; violations panic.
	Partition(workers []int, start, end, minSize uint64) Scheme
}

// Even splits a range into equal slices assigned round-robin. Point ranges
// go to a randomly chosen worker.
type Even struct {
	mu  sync.Mutex
	rng *rand.Rand
}

// Option configures an Even partitioner.
type Option func(*Even)

// WithRand sets the source used to place point commands.
func WithRand(r *rand.Rand) Option {
	return func(e *Even) {
		e.rng = r
	}
}

// NewEven creates an Even partitioner.
func NewEven(opts ...Option) *Even {
	e := &Even{}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

func (e *Even) pick(n int) int {
	if e.rng == nil {
		return rand.IntN(n)
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.rng.IntN(n)
}

// Partition implements Partitioner.
//
// A zero-length range yields a single Part on a random worker. Otherwise the
// range is cut into slices of the effective minimum size, assigned to workers
// round-robin in the order given, followed by one Part for any remainder.
// When minSize is zero the effective size is the range divided by the number
// of workers (at least 1).
func (e *Even) Partition(workers []int, start, end, minSize uint64) Scheme {
	if len(workers) == 0 {
		panic("partition: no eligible workers")
	}
	if end < start {
		panic(fmt.Sprintf("partition: end %d before start %d", end, start))
	}

	size := end - start
	if size == 0 {
		return Scheme{{Begin: start, End: end, Worker: workers[e.pick(len(workers))], MinSize: minSize}}
	}

	eff := EffectiveMinSize(size, minSize, len(workers))
	whole := size / eff
	leftover := size % eff

	count := whole
	if leftover != 0 {
		count++
	}
	scheme := make(Scheme, 0, count)

	cursor := start
	next := 0
	for i := uint64(0); i < whole; i++ {
		scheme = append(scheme, Part{Begin: cursor, End: cursor + eff, Worker: workers[next], MinSize: eff})
		cursor += eff
		next = (next + 1) % len(workers)
	}
	if leftover != 0 {
		scheme = append(scheme, Part{Begin: cursor, End: end, Worker: workers[next], MinSize: eff})
	}
	return scheme
}

// EffectiveMinSize resolves the slice size used for a range of the given size.
func EffectiveMinSize(size, minSize uint64, workers int) uint64 {
	if minSize != 0 {
		return minSize
	}
	if size == 1 {
		return 1
	}
	eff := size / uint64(workers)
	if eff == 0 {
		return 1
	}
	return eff
}
