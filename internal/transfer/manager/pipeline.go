package manager

import (
	"context"

	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/semaphore"
)

// Pipeline bounds the number of outstanding operations. Acquire blocks once
// the window is full, so producers never buffer ahead of it.
type Pipeline struct {
	sem    *semaphore.Weighted
	group  *errgroup.Group
	ctx    context.Context
	cancel context.CancelCauseFunc
	limit  int
}

// New creates a pipeline allowing limit concurrent operations. The returned
// context is canceled when any operation fails or Stop is called.
func New(ctx context.Context, limit int) (*Pipeline, context.Context) {
	if limit <= 0 {
		limit = 1
	}
	cctx, cancel := context.WithCancelCause(ctx)
	group, gctx := errgroup.WithContext(cctx)
	return &Pipeline{
		sem:    semaphore.NewWeighted(int64(limit)),
		group:  group,
		ctx:    gctx,
		cancel: cancel,
		limit:  limit,
	}, gctx
}

// Limit returns the window size.
func (p *Pipeline) Limit() int {
	return p.limit
}

// Context returns the pipeline context.
func (p *Pipeline) Context() context.Context {
	return p.ctx
}

// Acquire takes one slot, blocking until a slot is free or the pipeline
// context is done.
func (p *Pipeline) Acquire() error {
	if err := p.sem.Acquire(p.ctx, 1); err != nil {
		return context.Cause(p.ctx)
	}
	return nil
}

// Release returns one slot.
func (p *Pipeline) Release() {
	p.sem.Release(1)
}

// Go runs fn in the group. The first non-nil error cancels the pipeline
// context and is returned by Wait.
func (p *Pipeline) Go(fn func(ctx context.Context) error) {
	p.group.Go(func() error {
		return fn(p.ctx)
	})
}

// Stop cancels outstanding operations with cause.
func (p *Pipeline) Stop(cause error) {
	p.cancel(cause)
}

// Wait blocks until every operation started with Go has returned and
// reports the first error.
func (p *Pipeline) Wait() error {
	err := p.group.Wait()
	p.cancel(context.Canceled)
	return err
}
