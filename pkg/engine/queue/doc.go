/*
Package queue defines the per-worker queue contract used by the command pool
and ships two implementations.

Adapter is the contract: non-blocking TryPop/TryEmplace plus polling Pop and
Emplace. A pool asks its Factory for one Adapter per worker slot, so any
conforming queue can be swapped in without touching the pool.

MPMC is a bounded lock-free ring with per-cell sequence numbers, the default
with DefaultCapacity slots:

	q := queue.NewMPMC[int](4096)
	q.TryEmplace(1)
	v, ok := q.TryPop()

Unbounded grows on demand behind a mutex. It trades the lock-free hot path for
a TryEmplace that never reports a full queue.

Blocking operations never park on a scheduler primitive; they poll, yielding
the processor and then sleeping briefly between attempts.
*/
package queue
