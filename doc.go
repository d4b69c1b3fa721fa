/*
Package coreworks provides a parallel task-execution engine: a pool of worker
slots that splits range commands across workers, lets running commands
submit more work and waits for everything as a group.

Engine (pkg/engine):
  - command: Range headers, the Command interface, function-backed commands
  - partition: Even range partitioning across eligible workers
  - subscription: Capability bitmasks for worker routing
  - queue: Per-worker MPMC and unbounded queues
  - pool: The command pool
  - schedule: Cron-driven periodic submission

Support (pkg/common, pkg/metrics):
  - errors: Sentinel and structured errors
  - validation: Configuration checks
  - metrics: Prometheus instrumentation

Example usage:

	import (
		"github.com/vnykmshr/coreworks/pkg/engine/command"
		"github.com/vnykmshr/coreworks/pkg/engine/pool"
	)

	p := pool.New(pool.Config{Workers: 8, MainAsWorker: true})
	defer p.Close()

	p.Submit(command.Each(command.Span(0, n, 0), func(ctx context.Context, i uint64) error {
		out[i] = f(in[i])
		return nil
	}))
	p.WaitUntilDone()
*/
package coreworks
