package s3transfer

import (
	"context"
	stderrors "errors"
	"fmt"
	"io"
	"path/filepath"

	"github.com/input-output-hk/catalyst-forge-libs/aws/s3transfer/errors"
	"github.com/input-output-hk/catalyst-forge-libs/aws/s3transfer/internal/operations/download"
	"github.com/input-output-hk/catalyst-forge-libs/aws/s3transfer/internal/operations/upload"
	"github.com/input-output-hk/catalyst-forge-libs/aws/s3transfer/internal/transfer/retry"
	"github.com/input-output-hk/catalyst-forge-libs/aws/s3transfer/internal/validation"
	"github.com/input-output-hk/catalyst-forge-libs/aws/s3transfer/s3types"
)

func invalid(op, bucket, key, message string) error {
	return errors.NewError(op, errors.ErrInvalidInput).
		WithBucket(bucket).
		WithKey(key).
		WithMessage(message)
}

func (c *Client) uploadConfig(opts []s3types.UploadOption) *s3types.UploadOptionConfig {
	cfg := &s3types.UploadOptionConfig{
		PartSize:    c.cfg.PartSize,
		Concurrency: c.cfg.Concurrency,
	}
	for _, opt := range opts {
		opt(cfg)
	}
	return cfg
}

func validateUpload(bucket, key string, cfg *s3types.UploadOptionConfig) error {
	if err := validation.ValidatePartSize(cfg.PartSize); err != nil {
		return err
	}
	if err := validation.ValidateConcurrency(cfg.Concurrency); err != nil {
		return err
	}
	return validateObject(bucket, key, cfg)
}

func validateObject(bucket, key string, cfg *s3types.UploadOptionConfig) error {
	if err := validation.ValidateTarget(bucket, key); err != nil {
		return err
	}
	if err := validation.ValidateMetadata(cfg.Metadata); err != nil {
		return err
	}
	if cfg.ContentType != "" {
		return validation.ValidateContentType(cfg.ContentType)
	}
	return nil
}

// withObjectTimeout applies the client's per-object deadline to ctx.
func (c *Client) withObjectTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if c.cfg.ObjectTimeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeoutCause(ctx, c.cfg.ObjectTimeout, errors.ErrTimeout)
}

// timeoutCause marks err as a timeout when ctx expired on the per-object deadline.
func timeoutCause(ctx context.Context, err error) error {
	if stderrors.Is(context.Cause(ctx), errors.ErrTimeout) && !stderrors.Is(err, errors.ErrTimeout) {
		return fmt.Errorf("%w: %w", errors.ErrTimeout, err)
	}
	return err
}

func (c *Client) upload(
	ctx context.Context,
	op, bucket, key string,
	src s3types.BufferSource,
	nameHint string,
	cfg *s3types.UploadOptionConfig,
) (*s3types.UploadResult, error) {
	ctx, cancel := c.withObjectTimeout(ctx)
	defer cancel()

	result, err := c.uploader.Upload(ctx, c.uploadRequest(bucket, key, src, nameHint, cfg))
	if err != nil {
		return nil, errors.NewError(op, timeoutCause(ctx, err)).WithBucket(bucket).WithKey(key)
	}
	return result, nil
}

func (c *Client) uploadRequest(
	bucket, key string,
	src s3types.BufferSource,
	nameHint string,
	cfg *s3types.UploadOptionConfig,
) upload.Request {
	return upload.Request{
		Bucket:      bucket,
		Key:         key,
		Source:      src,
		PartSize:    cfg.PartSize,
		Concurrency: cfg.Concurrency,
		ContentType: cfg.ContentType,
		Metadata:    validation.SanitizeMetadata(cfg.Metadata),
		NameHint:    nameHint,
		Progress:    cfg.ProgressTracker,
	}
}

// Upload uploads everything read from reader to bucket/key.
//
// The input is coalesced into parts of the configured part size. If it fits
// in one part, including when it is empty, the object is stored with a single
// PutObject call; otherwise a multipart upload is used and aborted on failure.
//
// Errors:
//   - ErrInvalidInput: If the bucket, key, reader, or options are invalid
//   - ErrPartFailed: If a part upload failed (the upload was aborted)
//   - ErrAbortFailed: If aborting the failed upload failed as well
//   - ErrTimeout: If WithObjectTimeout expired
//
// Example:
//
//	result, err := client.Upload(ctx, "my-bucket", "logs/app.log", file,
//	    s3transfer.WithContentType("text/plain"),
//	)
func (c *Client) Upload(
	ctx context.Context,
	bucket, key string,
	reader io.Reader,
	opts ...s3types.UploadOption,
) (*s3types.UploadResult, error) {
	if reader == nil {
		return nil, invalid("upload", bucket, key, "reader cannot be nil")
	}
	cfg := c.uploadConfig(opts)
	if err := validateUpload(bucket, key, cfg); err != nil {
		return nil, errors.NewError("upload", err).WithBucket(bucket).WithKey(key)
	}
	return c.upload(ctx, "upload", bucket, key, FromReader(reader), key, cfg)
}

// UploadStream uploads the buffers yielded by src to bucket/key.
// Buffers may have any size; they are coalesced into parts as by Upload.
func (c *Client) UploadStream(
	ctx context.Context,
	bucket, key string,
	src s3types.BufferSource,
	opts ...s3types.UploadOption,
) (*s3types.UploadResult, error) {
	if src == nil {
		return nil, invalid("uploadStream", bucket, key, "source cannot be nil")
	}
	cfg := c.uploadConfig(opts)
	if err := validateUpload(bucket, key, cfg); err != nil {
		return nil, errors.NewError("uploadStream", err).WithBucket(bucket).WithKey(key)
	}
	return c.upload(ctx, "uploadStream", bucket, key, src, key, cfg)
}

// UploadFile uploads a file from the client filesystem to bucket/key.
// The file size is checked against the multipart part limit before any
// request is made.
func (c *Client) UploadFile(
	ctx context.Context,
	bucket, key, path string,
	opts ...s3types.UploadOption,
) (*s3types.UploadResult, error) {
	if path == "" {
		return nil, invalid("uploadFile", bucket, key, "filepath cannot be empty")
	}
	cfg := c.uploadConfig(opts)
	if err := validateUpload(bucket, key, cfg); err != nil {
		return nil, errors.NewError("uploadFile", err).WithBucket(bucket).WithKey(key)
	}

	fs := c.filesystem()
	info, err := fs.Stat(path)
	if err != nil {
		return nil, errors.NewError("uploadFile", err).WithBucket(bucket).WithKey(key)
	}
	if info.IsDir() {
		return nil, invalid("uploadFile", bucket, key, "filepath points to a directory, not a file")
	}

	parts := (info.Size() + cfg.PartSize - 1) / cfg.PartSize
	if err := validation.ValidatePartCount(int32(min(parts, validation.MaxParts+1))); err != nil {
		return nil, errors.NewError("uploadFile", err).WithBucket(bucket).WithKey(key)
	}

	file, err := fs.Open(path)
	if err != nil {
		return nil, errors.NewError("uploadFile", err).WithBucket(bucket).WithKey(key)
	}
	defer file.Close()

	return c.upload(ctx, "uploadFile", bucket, key, FromReader(file), path, cfg)
}

// Put stores data at bucket/key with a single PutObject call. data is sent
// without being copied and must not be modified until Put returns.
// Part size and concurrency options do not apply.
func (c *Client) Put(ctx context.Context, bucket, key string, data []byte, opts ...s3types.UploadOption) error {
	cfg := c.uploadConfig(opts)
	if err := validateObject(bucket, key, cfg); err != nil {
		return errors.NewError("put", err).WithBucket(bucket).WithKey(key)
	}

	ctx, cancel := c.withObjectTimeout(ctx)
	defer cancel()

	_, err := c.uploader.Put(ctx, c.uploadRequest(bucket, key, nil, key, cfg), data)
	if err != nil {
		return errors.NewError("put", timeoutCause(ctx, err)).WithBucket(bucket).WithKey(key)
	}
	return nil
}

func (c *Client) downloadRequest(
	op, bucket, key string,
	opts []s3types.DownloadOption,
) (download.Request, error) {
	cfg := &s3types.DownloadOptionConfig{
		ChunkSize:   c.cfg.ChunkSize,
		Concurrency: c.cfg.DownloadConcurrency,
	}
	for _, opt := range opts {
		opt(cfg)
	}

	err := validation.ValidateTarget(bucket, key)
	if err == nil {
		err = validation.ValidateChunkSize(cfg.ChunkSize)
	}
	if err == nil {
		err = validation.ValidateConcurrency(cfg.Concurrency)
	}
	if err != nil {
		return download.Request{}, errors.NewError(op, err).WithBucket(bucket).WithKey(key)
	}

	return download.Request{
		Bucket:      bucket,
		Key:         key,
		ChunkSize:   cfg.ChunkSize,
		Concurrency: cfg.Concurrency,
		Policy: retry.Policy{
			MaxRetries:     c.cfg.RangeRetries,
			Delay:          c.cfg.RangeRetryDelay,
			Jitter:         c.cfg.RangeRetryJitter,
			AttemptTimeout: c.cfg.AttemptTimeout,
		},
		ObjectTimeout: c.cfg.ObjectTimeout,
		Progress:      cfg.ProgressTracker,
	}, nil
}

// Download writes bucket/key to writer in offset order.
//
// The object is fetched as concurrent byte ranges of the configured chunk
// size. Each range is retried on its own; at most the download concurrency
// of ranges is held in memory.
//
// Errors:
//   - ErrInvalidInput: If the bucket, key, writer, or options are invalid
//   - ErrObjectNotFound: If the object does not exist
//   - ErrPartFailed: If a range exhausted its retries or failed permanently
//   - ErrTimeout: If WithObjectTimeout expired
func (c *Client) Download(
	ctx context.Context,
	bucket, key string,
	writer io.Writer,
	opts ...s3types.DownloadOption,
) (*s3types.DownloadResult, error) {
	if writer == nil {
		return nil, invalid("download", bucket, key, "writer cannot be nil")
	}
	req, err := c.downloadRequest("download", bucket, key, opts)
	if err != nil {
		return nil, err
	}

	result, err := c.downloader.Download(ctx, req, writer)
	if err != nil {
		return nil, errors.NewError("download", err).WithBucket(bucket).WithKey(key)
	}
	return result, nil
}

// Open returns a reader streaming bucket/key. The object is sized before Open
// returns; range failures surface from Read. Closing the reader early stops
// the download.
//
// Example:
//
//	rc, meta, err := client.Open(ctx, "my-bucket", "videos/intro.mp4")
//	if err != nil {
//	    return err
//	}
//	defer rc.Close()
//	fmt.Printf("streaming %d bytes\n", meta.ContentLength)
//	_, err = io.Copy(w, rc)
func (c *Client) Open(
	ctx context.Context,
	bucket, key string,
	opts ...s3types.DownloadOption,
) (io.ReadCloser, *s3types.ObjectMetadata, error) {
	req, err := c.downloadRequest("open", bucket, key, opts)
	if err != nil {
		return nil, nil, err
	}

	rc, meta, err := c.downloader.Open(ctx, req)
	if err != nil {
		return nil, nil, errors.NewError("open", err).WithBucket(bucket).WithKey(key)
	}
	return rc, &meta, nil
}

// Get downloads bucket/key into memory.
func (c *Client) Get(ctx context.Context, bucket, key string, opts ...s3types.DownloadOption) ([]byte, error) {
	req, err := c.downloadRequest("get", bucket, key, opts)
	if err != nil {
		return nil, err
	}

	data, _, err := c.downloader.Get(ctx, req)
	if err != nil {
		return nil, errors.NewError("get", err).WithBucket(bucket).WithKey(key)
	}
	return data, nil
}

// DownloadFile downloads bucket/key to a file on the client filesystem.
// Missing parent directories are created. The file is removed if the
// download fails.
func (c *Client) DownloadFile(
	ctx context.Context,
	bucket, key, path string,
	opts ...s3types.DownloadOption,
) (*s3types.DownloadResult, error) {
	if path == "" {
		return nil, invalid("downloadFile", bucket, key, "filepath cannot be empty")
	}
	req, err := c.downloadRequest("downloadFile", bucket, key, opts)
	if err != nil {
		return nil, err
	}

	fs := c.filesystem()
	if dir := filepath.Dir(path); dir != "." {
		if err := fs.MkdirAll(dir, 0o755); err != nil {
			return nil, errors.NewError("downloadFile", err).WithBucket(bucket).WithKey(key)
		}
	}
	file, err := fs.Create(path)
	if err != nil {
		return nil, errors.NewError("downloadFile", err).WithBucket(bucket).WithKey(key)
	}

	result, err := c.downloader.Download(ctx, req, file)
	if closeErr := file.Close(); err == nil {
		err = closeErr
	}
	if err != nil {
		if rmErr := fs.Remove(path); rmErr != nil {
			c.logger.WarnContext(ctx, "failed to remove partial download",
				"path", path,
				"error", rmErr)
		}
		return nil, errors.NewError("downloadFile", err).WithBucket(bucket).WithKey(key)
	}
	return result, nil
}
