package command

import "context"

// Fn is the body of a function command. It receives the command itself so
// the body can read its range and submit follow-up work.
type Fn func(ctx context.Context, self *FuncCommand) error

// FuncCommand adapts a function to the Command interface.
type FuncCommand struct {
	Range
	fn Fn
}

// Func wraps fn as a command over the given header.
func Func(header Range, fn Fn) *FuncCommand {
	header.Validate()
	return &FuncCommand{Range: header, fn: fn}
}

// Execute calls the wrapped function.
func (c *FuncCommand) Execute(ctx context.Context) error {
	return c.fn(ctx, c)
}

// Clone copies the header; the function value is shared.
func (c *FuncCommand) Clone() Command {
	cp := *c
	return &cp
}

// EachFn is called once per index of a command's range.
type EachFn func(ctx context.Context, index uint64) error

// Each builds a command that calls fn for every index of its range, or once
// with Start for a point command. Iteration stops at the first error.
func Each(header Range, fn EachFn) *FuncCommand {
	return Func(header, func(ctx context.Context, self *FuncCommand) error {
		if !self.IsRange() {
			return fn(ctx, self.Start)
		}
		for i := self.Start; i < self.End; i++ {
			if err := fn(ctx, i); err != nil {
				return err
			}
		}
		return nil
	})
}
