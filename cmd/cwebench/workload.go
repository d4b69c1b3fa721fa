package main

import (
	"context"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/vnykmshr/coreworks/pkg/engine/command"
	"github.com/vnykmshr/coreworks/pkg/engine/pool"
	"github.com/vnykmshr/coreworks/pkg/engine/subscription"
)

// sumCommand adds the indices of its range to total.
type sumCommand struct {
	command.Range
	total *atomic.Uint64
}

func (c *sumCommand) Execute(ctx context.Context) error {
	if !c.IsRange() {
		c.total.Add(c.Start)
		return nil
	}
	var sum uint64
	for i := c.Start; i < c.End; i++ {
		sum += i
	}
	c.total.Add(sum)
	return nil
}

func (c *sumCommand) Clone() command.Command {
	cp := *c
	return &cp
}

// divideCommand resubmits both halves of its range until a part is at most
// leaf elements long, then sums it. Each half is partitioned again, so the
// recursion spreads over every eligible worker.
type divideCommand struct {
	sumCommand
	leaf uint64
}

func (c *divideCommand) Execute(ctx context.Context) error {
	if c.Size() <= c.leaf {
		return c.sumCommand.Execute(ctx)
	}

	mid := c.Start + c.Size()/2
	for _, half := range [][2]uint64{{c.Start, mid}, {mid, c.End}} {
		child := &divideCommand{
			sumCommand: sumCommand{
				Range: command.Span(half[0], half[1], 0),
				total: c.total,
			},
			leaf: c.leaf,
		}
		child.Requires = c.Requires
		if err := c.Submit(child); err != nil {
			return fmt.Errorf("submitting [%d, %d): %w", half[0], half[1], err)
		}
	}
	return nil
}

func (c *divideCommand) Clone() command.Command {
	cp := *c
	return &cp
}

// Workload builds the command for one benchmark round.
type Workload struct {
	Size     uint64
	MinSize  uint64
	Mode     string
	Leaf     uint64
	Requires subscription.Subscription
}

// Command returns a fresh command accumulating into total.
func (w Workload) Command(total *atomic.Uint64) command.Command {
	header := command.Span(0, w.Size, w.MinSize)
	header.Requires = w.Requires

	if w.Mode == "divide" {
		return &divideCommand{
			sumCommand: sumCommand{Range: header, total: total},
			leaf:       w.Leaf,
		}
	}
	return &sumCommand{Range: header, total: total}
}

// Expected returns the sum every round must produce.
func (w Workload) Expected() uint64 {
	if w.Size == 0 {
		return 0
	}
	return w.Size * (w.Size - 1) / 2
}

// Report summarizes a benchmark run.
type Report struct {
	Rounds   int
	Elapsed  time.Duration
	Best     time.Duration
	Executed int64
}

// Throughput returns summed elements per second.
func (r Report) Throughput(size uint64) float64 {
	if r.Elapsed <= 0 {
		return 0
	}
	return float64(size) * float64(r.Rounds) / r.Elapsed.Seconds()
}

// Run submits the workload rounds times, waiting for each round and checking
// its result.
func Run(ctx context.Context, p *pool.Pool, w Workload, rounds int, log logrus.FieldLogger) (Report, error) {
	var report Report
	var total atomic.Uint64
	executedBefore := p.TotalExecuted()

	for round := 0; round < rounds; round++ {
		total.Store(0)
		start := time.Now()

		if err := p.Submit(w.Command(&total)); err != nil {
			return report, fmt.Errorf("round %d: %w", round, err)
		}
		if err := p.Wait(ctx); err != nil {
			return report, fmt.Errorf("round %d: %w", round, err)
		}

		took := time.Since(start)
		if got, want := total.Load(), w.Expected(); got != want {
			return report, fmt.Errorf("round %d: sum is %d, want %d", round, got, want)
		}

		report.Rounds++
		report.Elapsed += took
		if report.Best == 0 || took < report.Best {
			report.Best = took
		}
		log.WithFields(logrus.Fields{"round": round, "elapsed": took}).Debug("round finished")
	}

	report.Executed = p.TotalExecuted() - executedBefore
	return report, nil
}
