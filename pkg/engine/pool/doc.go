/*
Package pool provides the command pool: a fixed set of worker slots that
execute range commands in parallel and wait for them as a group.

Each slot owns a queue and a capability Subscription. Submitting a command
filters the slots by the command's required groups, splits its range across
the accepting slots with a Partitioner and enqueues one clone per part:

	p := pool.New(pool.Config{Workers: 8, MainAsWorker: true})
	defer p.Close()

	cmd := command.Each(command.Span(0, uint64(len(data)), 0), func(ctx context.Context, i uint64) error {
		data[i] *= 2
		return nil
	})
	if err := p.Submit(cmd); err != nil {
		log.Fatal(err)
	}
	p.WaitUntilDone()

Waiting:

WaitUntilDone returns when every clone submitted so far has finished,
including clones that running commands submitted through their own range.
With MainAsWorker the caller owns slot 0 and drains it while waiting, so no
background goroutine is started for that slot. Wait does the same bounded by
a context.

Recursive submission:

A clone is bound to the pool before it is enqueued. Inside Execute, a
command can submit follow-up work without holding a pool reference:

	func (c *walk) Execute(ctx context.Context) error {
		for _, child := range c.children() {
			if err := c.Submit(child); err != nil {
				return err
			}
		}
		return nil
	}

Routing:

A command that requires no groups runs only on slots that subscribe to none.
A command that requires groups runs on every slot subscribing to all of them.
When no slot qualifies Submit returns a *RejectedError carrying the command
back to the caller:

	var rejected *pool.RejectedError
	if errors.As(err, &rejected) {
		fallback(rejected.Command)
	}

Subscriptions can be changed with SetSubscription until the first
submission. After that they are sealed and the routing for each requirement
is cached.

Full queues:

By default Submit waits for room in a full slot queue. FullQueueCallerRuns
runs the clone on the submitting goroutine instead, which is what recursive
workloads that outgrow QueueCapacity need to make progress.

Failures:

Execute errors and recovered panics are reported through OnCommandComplete,
counted in metrics and logged; unhandled panics are logged with their
stack. They never stop the pool.
*/
package pool
