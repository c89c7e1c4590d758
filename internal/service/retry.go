package service

import "context"

// RetryCommand is handed to the presentation layer when an operation fails.  Running it repeats the operation; it
// returns a fresh command if that fails too.
type RetryCommand struct {
	Label string
	Err   error
	run   func(ctx context.Context) (*RetryCommand, error)
}

func (r *RetryCommand) Run(ctx context.Context) (*RetryCommand, error) {
	return r.run(ctx)
}
