package multipart

import (
	"context"
	stderrors "errors"
	"io"
	"log/slog"
	"sync/atomic"

	"github.com/input-output-hk/catalyst-forge-libs/aws/s3transfer/errors"
	"github.com/input-output-hk/catalyst-forge-libs/aws/s3transfer/internal/transfer/manager"
	"github.com/input-output-hk/catalyst-forge-libs/aws/s3transfer/internal/transfer/session"
	"github.com/input-output-hk/catalyst-forge-libs/aws/s3transfer/internal/validation"
	"github.com/input-output-hk/catalyst-forge-libs/aws/s3transfer/s3types"
)

// DefaultConcurrency is the number of parts uploaded at once.
const DefaultConcurrency = 5

// Result describes a completed multipart upload.
type Result struct {
	Object s3types.ObjectID
	Parts  int
	Size   int64
}

// Option configures an Uploader.
type Option func(*Uploader)

// WithConcurrency sets the number of outstanding part uploads.
func WithConcurrency(n int) Option {
	return func(u *Uploader) {
		if n > 0 {
			u.concurrency = n
		}
	}
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(u *Uploader) {
		if logger != nil {
			u.logger = logger
		}
	}
}

// WithProgress reports uploaded bytes as parts complete. The total is
// reported as -1 since the input length is not known in advance.
func WithProgress(tracker s3types.ProgressTracker) Option {
	return func(u *Uploader) {
		u.progress = tracker
	}
}

// Uploader handles multipart upload operations
type Uploader struct {
	backend     s3types.Backend
	concurrency int
	logger      *slog.Logger
	progress    s3types.ProgressTracker
}

// NewUploader creates a new multipart uploader
func NewUploader(backend s3types.Backend, opts ...Option) *Uploader {
	u := &Uploader{
		backend:     backend,
		concurrency: DefaultConcurrency,
		logger:      slog.New(slog.DiscardHandler),
	}
	for _, opt := range opts {
		opt(u)
	}
	return u
}

// Run uploads every chunk of src as one part of sess and completes the
// session. A slot in the pipeline is taken before each chunk is read, so no
// more than the configured number of chunks is held at once. On any failure
// the session is aborted and the first failure returned.
func (u *Uploader) Run(ctx context.Context, sess *session.Session, src s3types.BufferSource) (Result, error) {
	ref := sess.Ref()
	release := func([]byte) {}
	if rel, ok := src.(interface{ Release([]byte) }); ok {
		release = rel.Release
	}

	p, pctx := manager.New(ctx, u.concurrency)

	var (
		partNumber int32
		submitErr  error
		uploaded   atomic.Int64
	)
	for {
		if err := p.Acquire(); err != nil {
			submitErr = err
			break
		}
		buf, err := src.Next(pctx)
		if stderrors.Is(err, io.EOF) {
			p.Release()
			break
		}
		if err != nil {
			p.Release()
			submitErr = errors.NewObjectError("readInput", ref.Bucket, ref.Key, err)
			break
		}

		partNumber++
		if err := validation.ValidatePartCount(partNumber); err != nil {
			p.Release()
			release(buf)
			submitErr = err
			break
		}
		if err := sess.Submit(partNumber); err != nil {
			p.Release()
			release(buf)
			submitErr = err
			break
		}

		n := partNumber
		p.Go(func(gctx context.Context) error {
			defer p.Release()
			defer release(buf)

			etag, err := u.backend.UploadPart(gctx, ref, n, buf)
			if err != nil {
				sess.Discard(n)
				return &errors.PartError{PartNumber: n, Attempts: 1, Err: err}
			}
			size := int64(len(buf))
			sess.Record(s3types.PartRecord{PartNumber: n, ETag: etag, Size: size})

			total := uploaded.Add(size)
			if u.progress != nil {
				u.progress.Update(total, -1)
			}
			u.logger.DebugContext(gctx, "part uploaded",
				"upload_id", ref.ID,
				"part_number", n,
				"size", size)
			return nil
		})
	}

	waitErr := p.Wait()

	var err error
	switch {
	case ctx.Err() != nil:
		err = errors.NewObjectError("uploadParts", ref.Bucket, ref.Key, context.Cause(ctx))
	case waitErr != nil:
		err = waitErr
	default:
		err = submitErr
	}
	if err != nil {
		return Result{}, sess.Abort(ctx, err)
	}

	obj, err := sess.Complete(ctx)
	if err != nil {
		return Result{}, err
	}
	return Result{
		Object: obj,
		Parts:  int(partNumber),
		Size:   uploaded.Load(),
	}, nil
}
