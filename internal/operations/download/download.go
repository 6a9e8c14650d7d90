package download

import (
	"context"
	"io"
	"log/slog"
	"time"

	"github.com/input-output-hk/catalyst-forge-libs/aws/s3transfer/errors"
	"github.com/input-output-hk/catalyst-forge-libs/aws/s3transfer/internal/transfer/assemble"
	"github.com/input-output-hk/catalyst-forge-libs/aws/s3transfer/internal/transfer/ranged"
	"github.com/input-output-hk/catalyst-forge-libs/aws/s3transfer/internal/transfer/ranges"
	"github.com/input-output-hk/catalyst-forge-libs/aws/s3transfer/internal/transfer/retry"
	"github.com/input-output-hk/catalyst-forge-libs/aws/s3transfer/s3types"
)

// Request describes one download.
type Request struct {
	Bucket string
	Key    string

	// ChunkSize is the size of each byte range
	ChunkSize int64

	// Concurrency is the number of ranges fetched ahead
	Concurrency int

	// Policy governs retries of each range
	Policy retry.Policy

	// ObjectTimeout bounds the whole download when positive
	ObjectTimeout time.Duration

	Progress s3types.ProgressTracker
}

// Option configures a Downloader.
type Option func(*Downloader)

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(d *Downloader) {
		if logger != nil {
			d.logger = logger
		}
	}
}

// WithRetryObserver registers fn to be called for every retried range attempt.
func WithRetryObserver(fn func()) Option {
	return func(d *Downloader) {
		d.onRetry = fn
	}
}

// Downloader handles ranged downloads with progress tracking support.
type Downloader struct {
	backend s3types.Backend
	logger  *slog.Logger
	onRetry func()
}

// New creates a new Downloader instance.
func New(backend s3types.Backend, opts ...Option) *Downloader {
	d := &Downloader{
		backend: backend,
		logger:  slog.New(slog.DiscardHandler),
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// withDeadline applies the per-object timeout of req to ctx.
func withDeadline(ctx context.Context, req Request) (context.Context, context.CancelFunc) {
	if req.ObjectTimeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeoutCause(ctx, req.ObjectTimeout, errors.ErrTimeout)
}

// stat sizes the object and plans its ranges.
func (d *Downloader) stat(ctx context.Context, req Request) (s3types.ObjectMetadata, ranges.Plan, error) {
	meta, err := d.backend.HeadObject(ctx, req.Bucket, req.Key)
	if err != nil {
		if cause := context.Cause(ctx); cause != nil {
			err = errors.NewObjectError("headObject", req.Bucket, req.Key, cause)
		}
		return s3types.ObjectMetadata{}, ranges.Plan{}, err
	}
	plan, err := ranges.New(meta.ContentLength, req.ChunkSize)
	if err != nil {
		return s3types.ObjectMetadata{}, ranges.Plan{}, errors.NewObjectError("planRanges", req.Bucket, req.Key, err)
	}
	return meta, plan, nil
}

func (d *Downloader) fetcher(req Request) *ranged.Fetcher {
	opts := []ranged.Option{
		ranged.WithConcurrency(req.Concurrency),
		ranged.WithPolicy(req.Policy),
		ranged.WithLogger(d.logger),
		ranged.WithProgress(req.Progress),
	}
	if d.onRetry != nil {
		opts = append(opts, ranged.WithRetryObserver(d.onRetry))
	}
	return ranged.NewFetcher(d.backend, opts...)
}

func (d *Downloader) run(
	ctx context.Context,
	req Request,
	deliver ranged.DeliverFunc,
) (*s3types.DownloadResult, error) {
	start := time.Now()
	result, err := d.runPlan(ctx, req, deliver)
	if err != nil {
		if req.Progress != nil {
			req.Progress.Error(err)
		}
		return nil, err
	}
	result.Duration = time.Since(start)
	if req.Progress != nil {
		req.Progress.Complete()
	}
	return result, nil
}

func (d *Downloader) runPlan(
	ctx context.Context,
	req Request,
	deliver ranged.DeliverFunc,
) (*s3types.DownloadResult, error) {
	ctx, cancel := withDeadline(ctx, req)
	defer cancel()

	meta, plan, err := d.stat(ctx, req)
	if err != nil {
		return nil, err
	}

	if err := d.fetcher(req).Fetch(ctx, req.Bucket, req.Key, plan, deliver); err != nil {
		return nil, err
	}

	d.logger.DebugContext(ctx, "object downloaded",
		"bucket", req.Bucket,
		"key", req.Key,
		"size", plan.Total(),
		"ranges", plan.Count())

	return &s3types.DownloadResult{
		Key:    req.Key,
		Size:   plan.Total(),
		ETag:   meta.ETag,
		Ranges: plan.Count(),
	}, nil
}

// Download writes the object to w in offset order. At most Concurrency
// ranges are held in memory at once.
func (d *Downloader) Download(ctx context.Context, req Request, w io.Writer) (*s3types.DownloadResult, error) {
	return d.run(ctx, req, func(_ int, _ s3types.ByteRange, data []byte) error {
		if _, err := w.Write(data); err != nil {
			return errors.NewObjectError("write", req.Bucket, req.Key, err)
		}
		return nil
	})
}

// Get downloads the whole object into memory.
func (d *Downloader) Get(ctx context.Context, req Request) ([]byte, *s3types.DownloadResult, error) {
	var chunks [][]byte
	result, err := d.run(ctx, req, func(_ int, _ s3types.ByteRange, data []byte) error {
		chunks = append(chunks, data)
		return nil
	})
	if err != nil {
		return nil, nil, err
	}
	data := assemble.Concat(chunks).Bytes()
	if data == nil {
		data = []byte{}
	}
	return data, result, nil
}

// Open returns a reader streaming the object. The object is sized before
// Open returns, so a missing object is reported here rather than on Read.
// Closing the reader stops the transfer.
func (d *Downloader) Open(ctx context.Context, req Request) (io.ReadCloser, s3types.ObjectMetadata, error) {
	ctx, cancel := withDeadline(ctx, req)

	meta, plan, err := d.stat(ctx, req)
	if err != nil {
		cancel()
		if req.Progress != nil {
			req.Progress.Error(err)
		}
		return nil, s3types.ObjectMetadata{}, err
	}

	fetcher := d.fetcher(req)
	rc := assemble.Pipe(ctx, func(pctx context.Context, deliver func([]byte) error) error {
		defer cancel()
		err := fetcher.Fetch(pctx, req.Bucket, req.Key, plan, func(_ int, _ s3types.ByteRange, data []byte) error {
			return deliver(data)
		})
		if req.Progress != nil {
			if err != nil {
				req.Progress.Error(err)
			} else {
				req.Progress.Complete()
			}
		}
		return err
	})
	return rc, meta, nil
}
