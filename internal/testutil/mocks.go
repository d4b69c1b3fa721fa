package testutil

import (
	"sync"
	"testing"
)

// IndexRecorder counts how many times each index of a range was visited.
// Pool tests use it to check that every unit of a split command runs exactly once.
type IndexRecorder struct {
	mu     sync.Mutex
	visits map[uint64]int
	total  int
}

// NewIndexRecorder creates an empty IndexRecorder.
func NewIndexRecorder() *IndexRecorder {
	return &IndexRecorder{visits: make(map[uint64]int)}
}

// Visit records one execution of index i.
func (r *IndexRecorder) Visit(i uint64) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.visits[i]++
	r.total++
}

// VisitRange records one execution of every index in [start, end).
func (r *IndexRecorder) VisitRange(start, end uint64) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for i := start; i < end; i++ {
		r.visits[i]++
		r.total++
	}
}

// Total returns the number of recorded visits.
func (r *IndexRecorder) Total() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.total
}

// AssertExactlyOnce fails the test unless every index in [start, end) was
// visited exactly once and nothing else was visited.
func (r *IndexRecorder) AssertExactlyOnce(t *testing.T, start, end uint64) {
	t.Helper()
	r.mu.Lock()
	defer r.mu.Unlock()

	for i := start; i < end; i++ {
		if n := r.visits[i]; n != 1 {
			t.Fatalf("index %d visited %d times, want 1", i, n)
		}
	}
	if want := int(end - start); r.total != want {
		t.Fatalf("total visits = %d, want %d", r.total, want)
	}
}

// CallbackTracker records invocations of a hook.
type CallbackTracker struct {
	mu    sync.Mutex
	count int
	value interface{}
}

// NewCallbackTracker creates a tracker with no recorded calls.
func NewCallbackTracker() *CallbackTracker {
	return &CallbackTracker{}
}

// Mark records a call, optionally remembering the last value passed.
func (c *CallbackTracker) Mark(value ...interface{}) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.count++
	if len(value) > 0 {
		c.value = value[0]
	}
}

// Called reports whether Mark was called at least once.
func (c *CallbackTracker) Called() bool {
	return c.CallCount() > 0
}

// CallCount returns the number of recorded calls.
func (c *CallbackTracker) CallCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.count
}

// Value returns the last value passed to Mark.
func (c *CallbackTracker) Value() interface{} {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.value
}

// AssertCallCount fails the test unless exactly n calls were recorded.
func (c *CallbackTracker) AssertCallCount(t *testing.T, n int) {
	t.Helper()
	if got := c.CallCount(); got != n {
		t.Fatalf("call count = %d, want %d", got, n)
	}
}
