package api

import (
	"context"
	"sync"
)

// Call is an in-flight request started with Start: a cancellation handle plus
// a completion that resolves exactly once.
type Call struct {
	cancel context.CancelCauseFunc
	done   chan struct{}

	once sync.Once
	err  error
}

// Start runs fn on its own goroutine under a cancellable child of ctx.
func Start(ctx context.Context, fn func(ctx context.Context) error) *Call {
	callCtx, cancel := context.WithCancelCause(ctx)
	c := &Call{cancel: cancel, done: make(chan struct{})}
	go func() {
		err := fn(callCtx)
		c.once.Do(func() {
			c.err = err
			close(c.done)
		})
		cancel(nil)
	}()
	return c
}

// Cancel aborts the call; cause is visible through context.Cause inside fn.
func (c *Call) Cancel(cause error) {
	c.cancel(cause)
}

// Done is closed when fn has returned.
func (c *Call) Done() <-chan struct{} {
	return c.done
}

// Err returns fn's result. Only valid after Done is closed.
func (c *Call) Err() error {
	return c.err
}

// Wait blocks until fn returns and yields its result.
func (c *Call) Wait() error {
	<-c.done
	return c.err
}
