package errors

import (
	"errors"
	"fmt"
	"testing"

	"github.com/vnykmshr/coreworks/internal/testutil"
)

func TestSentinels(t *testing.T) {
	sentinels := map[error]string{
		ErrClosed:               "resource is closed",
		ErrCapacityExceeded:     "capacity exceeded",
		ErrInvalidConfiguration: "invalid configuration",
		ErrRejected:             "no accepting worker",
		ErrSealed:               "state is sealed",
	}
	for err, msg := range sentinels {
		testutil.AssertEqual(t, err.Error(), msg)
	}

	for a := range sentinels {
		for b := range sentinels {
			if a != b && errors.Is(a, b) {
				t.Errorf("%v must not match %v", a, b)
			}
		}
	}
}

func TestValidationErrorFormatting(t *testing.T) {
	err := NewValidationError("pool", "workers", -2, "cannot be negative")
	testutil.AssertEqual(t, err.Error(), "pool: invalid workers=-2 (cannot be negative)")

	same := err.WithHint("use 0 for one worker per CPU")
	testutil.AssertEqual(t, same, err)
	testutil.AssertEqual(t, err.Error(),
		"pool: invalid workers=-2 (cannot be negative) - use 0 for one worker per CPU")

	empty := NewValidationError("schedule", "spec", "", "cannot be empty")
	testutil.AssertEqual(t, empty.Error(), "schedule: invalid spec= (cannot be empty)")
}

func TestValidationErrorMatching(t *testing.T) {
	var err error = NewValidationError("subscription", "width", 300, "too wide")
	wrapped := fmt.Errorf("building pool: %w", err)

	testutil.AssertEqual(t, errors.Is(wrapped, ErrInvalidConfiguration), true)
	testutil.AssertEqual(t, IsValidationError(wrapped), true)

	var verr *ValidationError
	testutil.AssertEqual(t, errors.As(wrapped, &verr), true)
	testutil.AssertEqual(t, verr.Field, "width")
	testutil.AssertEqual(t, verr.Value, interface{}(300))
}

func TestOperationError(t *testing.T) {
	sealed := NewOperationError("pool", "SetSubscription", ErrSealed)
	testutil.AssertEqual(t, sealed.Error(), "pool.SetSubscription failed: state is sealed")
	testutil.AssertEqual(t, errors.Is(sealed, ErrSealed), true)
	testutil.AssertEqual(t, errors.Is(sealed, ErrClosed), false)

	testutil.AssertEqual(t, sealed.WithContext("slot 3"), sealed)
	testutil.AssertEqual(t, sealed.Error(), "pool.SetSubscription failed: state is sealed (slot 3)")

	nested := NewOperationError("cwebench", "PoolConfig",
		NewValidationError("pool", "slot", 9, "no such worker slot"))
	testutil.AssertEqual(t, IsValidationError(nested), true)
	testutil.AssertEqual(t, errors.Is(nested, ErrInvalidConfiguration), true)
}

func TestIsValidationError(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{"direct", &ValidationError{Module: "pool", Field: "workers"}, true},
		{"formatted wrap", fmt.Errorf("config: %w", &ValidationError{}), true},
		{"sentinel only", ErrInvalidConfiguration, false},
		{"operation error", NewOperationError("pool", "Submit", ErrRejected), false},
		{"nil", nil, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			testutil.AssertEqual(t, IsValidationError(tt.err), tt.want)
		})
	}
}
