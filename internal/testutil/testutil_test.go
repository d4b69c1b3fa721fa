package testutil

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

func TestEventually(t *testing.T) {
	t.Run("condition met immediately", func(t *testing.T) {
		called := false
		Eventually(t, func() bool {
			called = true
			return true
		}, 100*time.Millisecond, 10*time.Millisecond)

		if !called {
			t.Error("condition function should be called")
		}
	})

	t.Run("condition met after delay", func(t *testing.T) {
		var counter int32
		go func() {
			time.Sleep(50 * time.Millisecond)
			atomic.StoreInt32(&counter, 1)
		}()

		Eventually(t, func() bool {
			return atomic.LoadInt32(&counter) == 1
		}, time.Second, 10*time.Millisecond)
	})
}

func TestWaitForInt64(t *testing.T) {
	var value atomic.Int64

	go func() {
		time.Sleep(30 * time.Millisecond)
		value.Store(100)
	}()

	WaitForInt64(t, &value, 100, time.Second)
}

func TestEventuallyWithContext(t *testing.T) {
	var flag atomic.Bool
	go func() {
		time.Sleep(30 * time.Millisecond)
		flag.Store(true)
	}()

	ctx, cancel := WithTimeout(t)
	defer cancel()
	EventuallyWithContext(t, ctx, flag.Load, 10*time.Millisecond)
}

func TestWithTimeout(t *testing.T) {
	ctx, cancel := WithTimeout(t)
	defer cancel()

	deadline, ok := ctx.Deadline()
	if !ok {
		t.Fatal("context should have a deadline")
	}
	if time.Until(deadline) > TestTimeout {
		t.Errorf("deadline is too far in the future")
	}
}

func TestIndexRecorder(t *testing.T) {
	rec := NewIndexRecorder()

	var wg sync.WaitGroup
	for part := uint64(0); part < 4; part++ {
		wg.Add(1)
		go func(p uint64) {
			defer wg.Done()
			rec.VisitRange(p*25, (p+1)*25)
		}(part)
	}
	wg.Wait()

	rec.AssertExactlyOnce(t, 0, 100)
	AssertEqual(t, rec.Total(), 100)
}

func TestCallbackTracker(t *testing.T) {
	tracker := NewCallbackTracker()
	if tracker.Called() {
		t.Error("tracker should not be called initially")
	}

	tracker.Mark()
	tracker.Mark("second")

	tracker.AssertCallCount(t, 2)
	AssertEqual(t, tracker.Value(), interface{}("second"))
}

func TestAssertions(t *testing.T) {
	AssertNoError(t, nil)
	AssertError(t, context.Canceled)
	AssertEqual(t, 42, 42)
	AssertNotEqual(t, "a", "b")
	AssertPanics(t, func() { panic("boom") })
}
