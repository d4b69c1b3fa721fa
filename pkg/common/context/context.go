// Package context holds small helpers around the standard context package
// used by waiting callers of the engine.
package context

import (
	"context"
	"errors"
	"time"
)

// WithTimeoutOrCancel returns a context that ends when parent ends or the
// timeout elapses. A timeout of zero or less adds no deadline.
func WithTimeoutOrCancel(parent context.Context, timeout time.Duration) (context.Context, context.CancelFunc) {
	if timeout <= 0 {
		return context.WithCancel(parent)
	}
	return context.WithTimeout(parent, timeout)
}

// IsCanceled reports whether ctx is done, without blocking.
func IsCanceled(ctx context.Context) bool {
	select {
	case <-ctx.Done():
		return true
	default:
		return false
	}
}

// IsTimedOut reports whether ctx ended because its deadline passed.
func IsTimedOut(ctx context.Context) bool {
	return errors.Is(ctx.Err(), context.DeadlineExceeded)
}
