// Package ranged downloads an object through concurrent byte-range fetches.
//
// Ranges are fetched ahead with bounded concurrency and retried individually,
// but always delivered in offset order. A pipeline slot is held from the
// moment a range is scheduled until it has been delivered, so no more than
// the window's worth of range buffers is resident at once.
package ranged

import (
	"context"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/input-output-hk/catalyst-forge-libs/aws/s3transfer/errors"
	"github.com/input-output-hk/catalyst-forge-libs/aws/s3transfer/internal/transfer/manager"
	"github.com/input-output-hk/catalyst-forge-libs/aws/s3transfer/internal/transfer/ranges"
	"github.com/input-output-hk/catalyst-forge-libs/aws/s3transfer/internal/transfer/retry"
	"github.com/input-output-hk/catalyst-forge-libs/aws/s3transfer/s3types"
)

// DefaultConcurrency is the number of ranges fetched ahead.
const DefaultConcurrency = 10

// DeliverFunc receives each range's bytes in offset order.
type DeliverFunc func(index int, r s3types.ByteRange, data []byte) error

// Option configures a Fetcher.
type Option func(*Fetcher)

// WithConcurrency sets the fetch-ahead window.
func WithConcurrency(n int) Option {
	return func(f *Fetcher) {
		if n > 0 {
			f.concurrency = n
		}
	}
}

// WithPolicy sets the per-range retry policy.
func WithPolicy(p retry.Policy) Option {
	return func(f *Fetcher) {
		f.policy = p
	}
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(f *Fetcher) {
		if logger != nil {
			f.logger = logger
		}
	}
}

// WithRetryObserver registers fn to be called for every retried range attempt.
func WithRetryObserver(fn func()) Option {
	return func(f *Fetcher) {
		f.onRetry = fn
	}
}

// WithProgress reports delivered bytes against the object size.
func WithProgress(tracker s3types.ProgressTracker) Option {
	return func(f *Fetcher) {
		f.progress = tracker
	}
}

// Fetcher fetches the ranges of a plan.
type Fetcher struct {
	backend     s3types.Backend
	concurrency int
	policy      retry.Policy
	logger      *slog.Logger
	onRetry     func()
	progress    s3types.ProgressTracker
}

// NewFetcher creates a fetcher over backend.
func NewFetcher(backend s3types.Backend, opts ...Option) *Fetcher {
	f := &Fetcher{
		backend:     backend,
		concurrency: DefaultConcurrency,
		policy:      retry.DefaultPolicy(),
		logger:      slog.New(slog.DiscardHandler),
	}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

// Fetch downloads every range of plan and calls deliver for each in order.
// It returns the first range failure, the first deliver error, or the
// caller's cancellation cause.
func (f *Fetcher) Fetch(ctx context.Context, bucket, key string, plan ranges.Plan, deliver DeliverFunc) error {
	if plan.Count() == 0 {
		return nil
	}

	p, pctx := manager.New(ctx, f.concurrency)
	queue := make(chan chan []byte, f.concurrency)

	p.Go(func(gctx context.Context) error {
		defer close(queue)
		for i, r := range plan.All() {
			if err := p.Acquire(); err != nil {
				return err
			}
			slot := make(chan []byte, 1)
			select {
			case queue <- slot:
			case <-gctx.Done():
				p.Release()
				return context.Cause(gctx)
			}
			p.Go(func(gctx context.Context) error {
				data, err := f.fetch(gctx, bucket, key, i, r)
				if err != nil {
					return err
				}
				slot <- data
				return nil
			})
		}
		return nil
	})

	var (
		delivered  atomic.Int64
		deliverErr error
		stopped    bool
		index      int
	)
	for slot := range queue {
		if !stopped {
			select {
			case data := <-slot:
				r := plan.At(index)
				if err := deliver(index, r, data); err != nil {
					deliverErr = err
					stopped = true
					p.Stop(err)
				} else if f.progress != nil {
					f.progress.Update(delivered.Add(int64(len(data))), plan.Total())
				}
			case <-pctx.Done():
				stopped = true
			}
		}
		p.Release()
		index++
	}

	waitErr := p.Wait()
	switch {
	case deliverErr != nil:
		return deliverErr
	case ctx.Err() != nil:
		return errors.NewObjectError("fetchRanges", bucket, key, context.Cause(ctx))
	default:
		return waitErr
	}
}

func (f *Fetcher) fetch(ctx context.Context, bucket, key string, index int, r s3types.ByteRange) ([]byte, error) {
	start := time.Now()
	data, attempts, err := retry.Do(ctx, f.policy, func(actx context.Context) ([]byte, error) {
		return f.fetchOnce(actx, bucket, key, r)
	}, func(attempt int, err error, next time.Duration) {
		if f.onRetry != nil {
			f.onRetry()
		}
		f.logger.WarnContext(ctx, "retrying range fetch",
			"bucket", bucket,
			"key", key,
			"range", r.HeaderValue(),
			"attempt", attempt,
			"backoff", next,
			"error", err)
	})
	if err != nil {
		return nil, &errors.PartError{PartNumber: int32(index + 1), Range: &r, Attempts: attempts, Err: err}
	}

	f.logger.DebugContext(ctx, "range fetched",
		"key", key,
		"range", r.HeaderValue(),
		"attempts", attempts,
		"duration", time.Since(start))
	return data, nil
}

func (f *Fetcher) fetchOnce(ctx context.Context, bucket, key string, r s3types.ByteRange) ([]byte, error) {
	data, err := f.backend.GetObjectRange(ctx, bucket, key, r)
	if err != nil {
		return nil, err
	}
	if int64(len(data)) != r.Len() {
		return nil, errors.NewObjectError("getObjectRange", bucket, key,
			fmt.Errorf("%w: got %d of %d bytes for %s", errors.ErrShortRead, len(data), r.Len(), r.HeaderValue()))
	}
	return data, nil
}
