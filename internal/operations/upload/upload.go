package upload

import (
	"context"
	stderrors "errors"
	"io"
	"log/slog"
	"time"

	"github.com/input-output-hk/catalyst-forge-libs/aws/s3transfer/errors"
	"github.com/input-output-hk/catalyst-forge-libs/aws/s3transfer/internal/pool"
	"github.com/input-output-hk/catalyst-forge-libs/aws/s3transfer/internal/transfer/chunk"
	"github.com/input-output-hk/catalyst-forge-libs/aws/s3transfer/internal/transfer/multipart"
	"github.com/input-output-hk/catalyst-forge-libs/aws/s3transfer/internal/transfer/session"
	"github.com/input-output-hk/catalyst-forge-libs/aws/s3transfer/s3types"
)

// Request describes one upload.
type Request struct {
	Bucket string
	Key    string
	Source s3types.BufferSource

	// PartSize is the aggregation threshold and the multipart part size
	PartSize int64

	// Concurrency is the number of parts uploaded at once
	Concurrency int

	// ContentType is sniffed from the first chunk when empty
	ContentType string
	Metadata    map[string]string

	// NameHint is used for extension-based content type detection
	NameHint string

	Progress s3types.ProgressTracker
}

// Option configures an Uploader.
type Option func(*Uploader)

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(u *Uploader) {
		if logger != nil {
			u.logger = logger
		}
	}
}

// WithAbortTimeout bounds the abort of a failed multipart session.
func WithAbortTimeout(d time.Duration) Option {
	return func(u *Uploader) {
		u.abortTimeout = d
	}
}

// WithSessionObserver registers fn to receive the outcome of every multipart session.
func WithSessionObserver(fn func(session.Outcome)) Option {
	return func(u *Uploader) {
		u.observer = fn
	}
}

// Uploader handles uploads with automatic single-shot or multipart selection.
type Uploader struct {
	backend      s3types.Backend
	logger       *slog.Logger
	abortTimeout time.Duration
	observer     func(session.Outcome)
}

// New creates a new Uploader instance.
func New(backend s3types.Backend, opts ...Option) *Uploader {
	u := &Uploader{
		backend: backend,
		logger:  slog.New(slog.DiscardHandler),
	}
	for _, opt := range opts {
		opt(u)
	}
	return u
}

// Upload stores the contents of req.Source at req.Bucket/req.Key.
func (u *Uploader) Upload(ctx context.Context, req Request) (*s3types.UploadResult, error) {
	return u.run(ctx, req, u.upload)
}

// Put stores body at req.Bucket/req.Key with one PutObject call. body is
// handed to the backend as is; req.Source, PartSize and Concurrency are ignored.
func (u *Uploader) Put(ctx context.Context, req Request, body []byte) (*s3types.UploadResult, error) {
	return u.run(ctx, req, func(ctx context.Context, req Request) (*s3types.UploadResult, error) {
		return u.putSingle(ctx, req, body)
	})
}

func (u *Uploader) run(
	ctx context.Context,
	req Request,
	fn func(context.Context, Request) (*s3types.UploadResult, error),
) (*s3types.UploadResult, error) {
	start := time.Now()
	result, err := fn(ctx, req)
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

func (u *Uploader) upload(ctx context.Context, req Request) (*s3types.UploadResult, error) {
	chunks := pool.NewChunkPool(int(req.PartSize))
	chunker := chunk.NewChunker(req.Source, int(req.PartSize), chunks)

	first, err := next(ctx, chunker)
	if err != nil {
		return nil, err
	}
	if first == nil {
		return u.putSingle(ctx, req, nil)
	}

	second, err := next(ctx, chunker)
	if err != nil {
		chunker.Release(first)
		return nil, err
	}
	if second == nil {
		defer chunker.Release(first)
		return u.putSingle(ctx, req, first)
	}

	return u.putMultipart(ctx, req, chunk.Replay(chunker, first, second), first)
}

// next returns the next chunk, or nil at the end of the input.
func next(ctx context.Context, c *chunk.Chunker) ([]byte, error) {
	buf, err := c.Next(ctx)
	if stderrors.Is(err, io.EOF) {
		return nil, nil
	}
	if err != nil {
		return nil, errors.NewError("readSource", err)
	}
	return buf, nil
}

func (u *Uploader) objectOptions(req Request, head []byte) s3types.ObjectOptions {
	contentType := req.ContentType
	if contentType == "" {
		contentType = DetectContentType(head, req.NameHint)
	}
	return s3types.ObjectOptions{ContentType: contentType, Metadata: req.Metadata}
}

func (u *Uploader) putSingle(ctx context.Context, req Request, body []byte) (*s3types.UploadResult, error) {
	obj, err := u.backend.PutObject(ctx, req.Bucket, req.Key, body, u.objectOptions(req, body))
	if err != nil {
		return nil, err
	}

	size := int64(len(body))
	u.logger.DebugContext(ctx, "object stored",
		"bucket", req.Bucket,
		"key", req.Key,
		"size", size)
	if req.Progress != nil {
		req.Progress.Update(size, size)
	}

	return &s3types.UploadResult{
		Key:       req.Key,
		Size:      size,
		ETag:      obj.ETag,
		VersionID: obj.VersionID,
	}, nil
}

func (u *Uploader) putMultipart(
	ctx context.Context,
	req Request,
	src s3types.BufferSource,
	head []byte,
) (*s3types.UploadResult, error) {
	sessOpts := []session.Option{session.WithLogger(u.logger)}
	if u.abortTimeout > 0 {
		sessOpts = append(sessOpts, session.WithAbortTimeout(u.abortTimeout))
	}
	if u.observer != nil {
		sessOpts = append(sessOpts, session.WithObserver(u.observer))
	}

	sess, err := session.Begin(ctx, u.backend, req.Bucket, req.Key, req.PartSize, u.objectOptions(req, head), sessOpts...)
	if err != nil {
		return nil, err
	}

	res, err := multipart.NewUploader(u.backend,
		multipart.WithConcurrency(req.Concurrency),
		multipart.WithLogger(u.logger),
		multipart.WithProgress(req.Progress),
	).Run(ctx, sess, src)
	if err != nil {
		return nil, err
	}

	return &s3types.UploadResult{
		Key:       req.Key,
		Size:      res.Size,
		ETag:      res.Object.ETag,
		VersionID: res.Object.VersionID,
		Parts:     res.Parts,
	}, nil
}
