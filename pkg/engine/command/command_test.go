package command

import (
	"context"
	"errors"
	"testing"

	"github.com/vnykmshr/coreworks/internal/testutil"
	"github.com/vnykmshr/coreworks/pkg/engine/subscription"
)

type recordingSubmitter struct {
	submitted []Command
}

func (s *recordingSubmitter) Submit(cmd Command) error {
	s.submitted = append(s.submitted, cmd)
	return nil
}

func TestRangeHeader(t *testing.T) {
	tests := []struct {
		name    string
		header  Range
		size    uint64
		isRange bool
	}{
		{"point", Point(7), 0, false},
		{"single element", Span(0, 1, 0), 1, true},
		{"hundred", Span(0, 100, 10), 100, true},
		{"offset", Span(40, 60, 0), 20, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := tt.header
			testutil.AssertEqual(t, h.Size(), tt.size)
			testutil.AssertEqual(t, h.IsRange(), tt.isRange)
		})
	}
}

func TestSpanPanicsOnInvertedRange(t *testing.T) {
	testutil.AssertPanics(t, func() { Span(10, 5, 0) })
	testutil.AssertPanics(t, func() { Func(Range{Start: 3, End: 2}, nil) })
}

func TestCloneIsIndependent(t *testing.T) {
	cmd := Func(Span(0, 100, 0), func(context.Context, *FuncCommand) error { return nil })
	cmd.Require(4)

	clone := cmd.Clone()
	clone.Bounds().Reshape(50, 100, 50)
	clone.Bounds().Require(5)

	testutil.AssertEqual(t, cmd.Start, uint64(0))
	testutil.AssertEqual(t, cmd.End, uint64(100))
	testutil.AssertEqual(t, cmd.Requires.Has(5), false)
	testutil.AssertEqual(t, clone.Bounds().Requires.Has(4), true)
	testutil.AssertEqual(t, clone.Bounds().Start, uint64(50))
}

func TestBindOnlyOnce(t *testing.T) {
	first := &recordingSubmitter{}
	second := &recordingSubmitter{}

	var r Range
	testutil.AssertEqual(t, r.Pool() == nil, true)

	r.Bind(first)
	r.Bind(second)
	testutil.AssertEqual(t, r.Pool() == Submitter(first), true)
}

func TestSubmitThroughPool(t *testing.T) {
	sub := &recordingSubmitter{}
	parent := Point(0)

	err := parent.Submit(Func(Point(1), nil))
	testutil.AssertError(t, err)

	parent.Bind(sub)
	testutil.AssertNoError(t, parent.Submit(Func(Point(1), nil)))
	testutil.AssertEqual(t, len(sub.submitted), 1)
}

func TestEach(t *testing.T) {
	rec := testutil.NewIndexRecorder()
	visit := func(_ context.Context, i uint64) error {
		rec.Visit(i)
		return nil
	}

	testutil.AssertNoError(t, Each(Span(10, 20, 0), visit).Execute(context.Background()))
	rec.AssertExactlyOnce(t, 10, 20)

	point := testutil.NewIndexRecorder()
	err := Each(Point(3), func(_ context.Context, i uint64) error {
		point.Visit(i)
		return nil
	}).Execute(context.Background())
	testutil.AssertNoError(t, err)
	point.AssertExactlyOnce(t, 3, 4)
}

func TestEachStopsAtFirstError(t *testing.T) {
	boom := errors.New("boom")
	calls := 0
	err := Each(Span(0, 10, 0), func(_ context.Context, i uint64) error {
		calls++
		if i == 3 {
			return boom
		}
		return nil
	}).Execute(context.Background())

	testutil.AssertEqual(t, errors.Is(err, boom), true)
	testutil.AssertEqual(t, calls, 4)
}

func TestRequiresDefaultsToUnrestricted(t *testing.T) {
	cmd := Func(Span(0, 4, 0), nil)
	worker := subscription.New(subscription.DefaultWidth)
	testutil.AssertEqual(t, worker.Accepts(cmd.Requires), true)

	cmd.Require(2)
	testutil.AssertEqual(t, worker.Accepts(cmd.Requires), false)
}
