package command

import (
	"context"
	"fmt"

	"github.com/vnykmshr/coreworks/pkg/engine/subscription"
)

// Command is a unit of schedulable work: a point (Start == End) or a
// half-open index range [Start, End).
//
// A pool never executes the submitted value itself. It clones the command
// once per partition, rewrites each clone's range and runs the clones, so
// Clone must return an independent deep copy that keeps the capability
// requirement.
type Command interface {
	// Bounds returns the command's range header.
	Bounds() *Range

	// Execute runs the command over its current range.
	Execute(ctx context.Context) error

	// Clone returns an independent deep copy of the command.
	Clone() Command
}

// Submitter accepts commands for execution. A pool implements it, and a
// command reaches its pool through Range.Pool to submit follow-up work.
type Submitter interface {
	Submit(cmd Command) error
}

// Range is the header every command embeds. It carries the index range, the
// partition granularity hint, the required capabilities and the owning pool.
type Range struct {
	// Start is the first index of the range.
	Start uint64

	// End is one past the last index. End == Start marks a point command.
	End uint64

	// MinSize is the partition granularity hint. Zero lets the partitioner choose.
	MinSize uint64

	// Requires lists the capability groups a worker must hold to run the
	// command. The zero value runs only on unrestricted workers.
	Requires subscription.Subscription

	pool Submitter
}

// Point returns the header of a point command at index.
func Point(index uint64) Range {
	return Range{Start: index, End: index}
}

// Span returns the header of a range command over [start, end).
// It panics if end < start.
func Span(start, end, minSize uint64) Range {
	r := Range{Start: start, End: end, MinSize: minSize}
	r.Validate()
	return r
}

// Bounds implements Command for types embedding Range.
func (r *Range) Bounds() *Range {
	return r
}

// Size returns End - Start.
func (r *Range) Size() uint64 {
	return r.End - r.Start
}

// IsRange reports whether the command spans at least one index.
func (r *Range) IsRange() bool {
	return r.Size() != 0
}

// Require adds group g to the command's capability requirement.
func (r *Range) Require(g int) *Range {
	r.Requires.SubscribeToGroup(g)
	return r
}

// Pool returns the pool that first accepted the command, or nil before submission.
func (r *Range) Pool() Submitter {
	return r.pool
}

// Bind records s as the owning pool unless one is already set.
func (r *Range) Bind(s Submitter) {
	if r.pool == nil {
		r.pool = s
	}
}

// Validate panics if the range is inverted.
func (r *Range) Validate() {
	if r.End < r.Start {
		panic(fmt.Sprintf("command: end %d before start %d", r.End, r.Start))
	}
}

// Reshape overwrites the range and granularity, keeping requirement and pool.
func (r *Range) Reshape(start, end, minSize uint64) {
	r.Start = start
	r.End = end
	r.MinSize = minSize
}

// Submit routes cmd through the owning pool. It is the recursive submission
// path for code running inside Execute.
func (r *Range) Submit(cmd Command) error {
	if r.pool == nil {
		return fmt.Errorf("command: submit from unbound command [%d, %d)", r.Start, r.End)
	}
	return r.pool.Submit(cmd)
}

func (r *Range) String() string {
	return fmt.Sprintf("[%d, %d) minsize=%d", r.Start, r.End, r.MinSize)
}
