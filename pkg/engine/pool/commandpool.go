package pool

import (
	"context"
	"fmt"
	"runtime"
	"runtime/debug"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/vnykmshr/coreworks/internal/affinity"
	cwcontext "github.com/vnykmshr/coreworks/pkg/common/context"
	cwerrors "github.com/vnykmshr/coreworks/pkg/common/errors"
	"github.com/vnykmshr/coreworks/pkg/engine/command"
	"github.com/vnykmshr/coreworks/pkg/engine/subscription"
)

// RejectedError is returned by Submit when no slot accepts a command's
// required capabilities. The pool keeps no reference to the command, which
// is handed back to the caller.
type RejectedError struct {
	Command  command.Command
	Requires subscription.Subscription
}

func (e *RejectedError) Error() string {
	return fmt.Sprintf("cannot submit command %s: no worker subscribes to its %d required groups",
		e.Command.Bounds(), e.Requires.Count())
}

// Unwrap returns errors.ErrRejected.
func (e *RejectedError) Unwrap() error {
	return cwerrors.ErrRejected
}

// Submit filters the worker slots by the command's required capabilities,
// partitions its range across the accepting slots and enqueues one clone per
// Part. The submitted value itself is never executed or retained.
//
// Submit may be called from inside Execute; the new clones are counted in the
// same pending counter that WaitUntilDone observes. It panics if the
// command's End precedes its Start or it requires a group at or above the
// pool's SubscriptionWidth.
//
// Under FullQueueBlock, Submit waits for queue space and gives up with
// errors.ErrClosed if the pool is closed meanwhile. Parts already enqueued
// by that call stay queued.
func (p *Pool) Submit(cmd command.Command) error {
	if cmd == nil {
		return fmt.Errorf("command cannot be nil")
	}
	if p.closed.Load() {
		return fmt.Errorf("cannot submit command: %w", cwerrors.ErrClosed)
	}

	header := cmd.Bounds()
	header.Validate()
	if !header.Requires.FitsWidth(p.config.SubscriptionWidth) {
		panic(fmt.Sprintf("pool: command requires groups beyond width %d: %s",
			p.config.SubscriptionWidth, header.Requires))
	}
	p.seal()

	slots := p.eligible(header.Requires)
	if len(slots) == 0 {
		p.totalRejected.Add(1)
		p.inst.rejected()
		return &RejectedError{Command: cmd, Requires: header.Requires}
	}

	scheme := p.config.Partitioner.Partition(slots, header.Start, header.End, header.MinSize)
	for _, part := range scheme {
		clone := cmd.Clone()
		bounds := clone.Bounds()
		bounds.Reshape(part.Begin, part.End, part.MinSize)
		bounds.Bind(p)

		p.pending.Add(1)
		p.inst.enqueued()
		if err := p.enqueue(part.Worker, clone); err != nil {
			p.inst.retired()
			p.pending.Add(-1)
			return err
		}
	}

	p.totalSubmitted.Add(1)
	p.inst.submitted(len(scheme))
	return nil
}

// AddCommand submits cmd and reports whether it was accepted.
func (p *Pool) AddCommand(cmd command.Command) bool {
	return p.Submit(cmd) == nil
}

func (p *Pool) enqueue(slot int, clone command.Command) error {
	q := p.queues[slot]
	if q.TryEmplace(clone) {
		return nil
	}

	if p.config.FullQueue == FullQueueCallerRuns {
		p.log.WithFields(logrus.Fields{
			"slot":  slot,
			"range": clone.Bounds().String(),
		}).WithError(cwerrors.ErrCapacityExceeded).Debug("running command on the submitter")
		p.inst.inline()
		p.run(slot, clone, true)
		return nil
	}

	var idle idler
	for !q.TryEmplace(clone) {
		if p.closed.Load() {
			return fmt.Errorf("cannot enqueue on slot %d: %w", slot, cwerrors.ErrClosed)
		}
		idle.wait(p.config.IdleBackoff)
	}
	return nil
}

// WaitUntilDone blocks until every command submitted so far, and every
// command those commands submitted, has finished. With MainAsWorker the
// caller drains slot 0 while it waits.
//
// It must not be called from inside Execute: the calling clone is itself
// pending, so the wait would never end.
func (p *Pool) WaitUntilDone() {
	var idle idler
	for {
		if p.config.MainAsWorker {
			p.consume(0, true)
		}
		if p.pending.Load() == 0 {
			return
		}
		if p.closed.Load() {
			p.log.WithField("pending", p.pending.Load()).Warn("stopped waiting on a closed pool")
			return
		}
		idle.wait(p.config.IdleBackoff)
	}
}

// Wait is WaitUntilDone bounded by ctx. It returns an error when ctx ends or
// the pool is closed before the pending work drains. Running commands are
// not interrupted.
func (p *Pool) Wait(ctx context.Context) error {
	var idle idler
	for {
		if p.config.MainAsWorker {
			p.consume(0, true)
		}
		if p.pending.Load() == 0 {
			return nil
		}
		if p.closed.Load() {
			return fmt.Errorf("wait interrupted with %d pending: %w", p.pending.Load(), cwerrors.ErrClosed)
		}
		if cwcontext.IsCanceled(ctx) {
			return fmt.Errorf("wait interrupted with %d pending: %w", p.pending.Load(), ctx.Err())
		}
		idle.wait(p.config.IdleBackoff)
	}
}

// Close stops every worker and waits for them to exit. Commands still queued
// are abandoned; call WaitUntilDone first to drain them. Close is idempotent.
func (p *Pool) Close() {
	p.closeOnce.Do(func() {
		p.closed.Store(true)
		for slot := range p.stop {
			p.stop[slot].Store(true)
		}
		p.cancel()
		p.workerWg.Wait()

		for p.running.Load() != 0 {
			runtime.Gosched()
		}

		if n := p.pending.Load(); n > 0 {
			p.log.WithField("pending", n).Warn("command pool closed with unfinished commands")
		}
		p.log.Debug("command pool stopped")
	})
}

// work is the body of a background worker goroutine.
func (p *Pool) work(slot int) {
	defer p.workerWg.Done()

	if p.config.PinWorkers {
		// The thread stays locked so it exits with the goroutine.
		runtime.LockOSThread()
		if err := affinity.Pin(slot); err != nil {
			p.log.WithFields(logrus.Fields{"slot": slot, "error": err}).Warn("cannot pin worker")
		}
	}

	// NewSafe waits only for the goroutine, not for the start hook.
	p.started.Done()

	p.hook("start", slot, p.config.OnWorkerStart)
	defer p.hook("stop", slot, p.config.OnWorkerStop)

	p.consume(slot, false)
}

// hook runs a worker lifecycle callback, logging a panic instead of
// crashing the worker.
func (p *Pool) hook(event string, slot int, fn func(slot int)) {
	if fn == nil {
		return
	}
	defer func() {
		if r := recover(); r != nil {
			p.log.WithFields(logrus.Fields{"slot": slot, "event": event}).
				Errorf("worker hook panicked: %v", r)
		}
	}()
	fn(slot)
}

// consume runs the slot's dequeue loop until its stop flag is set. A drain
// pass (the waiting goroutine on slot 0) returns as soon as the queue is empty.
func (p *Pool) consume(slot int, drain bool) {
	p.running.Add(1)
	defer p.running.Add(-1)

	q := p.queues[slot]
	var idle idler
	for !p.stop[slot].Load() {
		cmd, ok := q.TryPop()
		if !ok {
			if drain {
				return
			}
			idle.wait(p.config.IdleBackoff)
			continue
		}
		idle.reset()
		p.run(slot, cmd, false)
	}
}

// run executes one clone, recovering panics, and retires it.
func (p *Pool) run(slot int, cmd command.Command, inline bool) {
	start := time.Now()
	var err error

	defer func() {
		if r := recover(); r != nil {
			if p.config.PanicHandler != nil {
				p.config.PanicHandler(cmd, r)
				err = fmt.Errorf("command panicked: %v", r)
			} else {
				err = fmt.Errorf("command panicked: %v\nStack trace:\n%s", r, debug.Stack())
				p.log.WithFields(logrus.Fields{
					"slot":  slot,
					"range": cmd.Bounds().String(),
				}).Error(err)
			}
		}
		p.finish(Result{
			Command:  cmd,
			Slot:     slot,
			Error:    err,
			Duration: time.Since(start),
			Inline:   inline,
		})
	}()

	err = cmd.Execute(p.ctx)
}

// finish records a completed clone. The pending counter drops last so that
// WaitUntilDone cannot return before hooks and metrics have seen the clone.
func (p *Pool) finish(res Result) {
	p.totalExecuted.Add(1)
	p.inst.executed(res)

	if res.Error != nil {
		p.log.WithFields(logrus.Fields{
			"slot":  res.Slot,
			"range": res.Command.Bounds().String(),
		}).WithError(res.Error).Debug("command failed")
	}
	if p.config.OnCommandComplete != nil {
		p.config.OnCommandComplete(res)
	}

	p.inst.setDepth(res.Slot, p.queues[res.Slot].Len())
	p.inst.retired()
	p.pending.Add(-1)
}

// idler paces polling loops: it yields first, then sleeps between polls.
type idler struct {
	misses int
}

const idleYields = 64

func (i *idler) wait(backoff time.Duration) {
	i.misses++
	if backoff < 0 || i.misses < idleYields {
		runtime.Gosched()
		return
	}
	time.Sleep(backoff)
}

func (i *idler) reset() {
	i.misses = 0
}
