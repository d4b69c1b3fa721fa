/*
Package command defines the unit of work accepted by a command pool.

A Command exposes its Range header, executes over that range and clones
itself. Concrete commands embed Range, which supplies Bounds and the range
helpers, and implement Execute and Clone:

	type sumCommand struct {
		command.Range
		data  []int
		total *atomic.Int64
	}

	func (c *sumCommand) Execute(ctx context.Context) error {
		var s int64
		for i := c.Start; i < c.End; i++ {
			s += int64(c.data[i])
		}
		c.total.Add(s)
		return nil
	}

	func (c *sumCommand) Clone() command.Command {
		cp := *c
		return &cp
	}

Func and Each wrap plain functions when a dedicated type is not worth it.

Range.Submit sends follow-up commands to the pool that accepted the current
one, which is how divide-and-conquer work fans out from inside Execute.
*/
package command
