package awss3

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	awstypes "github.com/aws/aws-sdk-go-v2/service/s3/types"

	"github.com/input-output-hk/catalyst-forge-libs/aws/s3transfer/errors"
	"github.com/input-output-hk/catalyst-forge-libs/aws/s3transfer/internal/s3api"
	"github.com/input-output-hk/catalyst-forge-libs/aws/s3transfer/s3types"
)

// listPageSize is the maximum page size S3 allows.
const listPageSize = 1000

// Backend adapts an S3 client to s3types.Backend.
type Backend struct {
	client s3api.S3API
	logger *slog.Logger
}

// Option configures a Backend.
type Option func(*Backend)

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(b *Backend) {
		if logger != nil {
			b.logger = logger
		}
	}
}

// New creates a backend over client.
func New(client s3api.S3API, opts ...Option) *Backend {
	b := &Backend{
		client: client,
		logger: slog.New(slog.DiscardHandler),
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

var (
	_ s3types.Backend = (*Backend)(nil)
	_ s3types.Deleter = (*Backend)(nil)
	_ s3types.Lister  = (*Backend)(nil)
)

// BeginMultipartUpload implements s3types.Backend.
func (b *Backend) BeginMultipartUpload(
	ctx context.Context,
	bucket, key string,
	opts s3types.ObjectOptions,
) (s3types.SessionRef, error) {
	input := &s3.CreateMultipartUploadInput{
		Bucket: aws.String(bucket),
		Key:    aws.String(key),
	}
	if opts.ContentType != "" {
		input.ContentType = aws.String(opts.ContentType)
	}
	if len(opts.Metadata) > 0 {
		input.Metadata = opts.Metadata
	}

	output, err := b.client.CreateMultipartUpload(ctx, input)
	if err != nil {
		return s3types.SessionRef{}, errors.NewBackendError("createMultipartUpload", bucket, key, classify(err))
	}

	return s3types.SessionRef{
		ID:     aws.ToString(output.UploadId),
		Bucket: bucket,
		Key:    key,
	}, nil
}

// UploadPart implements s3types.Backend.
func (b *Backend) UploadPart(ctx context.Context, ref s3types.SessionRef, partNumber int32, body []byte) (string, error) {
	output, err := b.client.UploadPart(ctx, &s3.UploadPartInput{
		Bucket:        aws.String(ref.Bucket),
		Key:           aws.String(ref.Key),
		UploadId:      aws.String(ref.ID),
		PartNumber:    aws.Int32(partNumber),
		Body:          bytes.NewReader(body),
		ContentLength: aws.Int64(int64(len(body))),
	})
	if err != nil {
		return "", errors.NewBackendError("uploadPart", ref.Bucket, ref.Key, classify(err))
	}
	return aws.ToString(output.ETag), nil
}

// CompleteMultipartUpload implements s3types.Backend.
func (b *Backend) CompleteMultipartUpload(
	ctx context.Context,
	ref s3types.SessionRef,
	parts []s3types.PartRecord,
) (s3types.ObjectID, error) {
	completed := make([]awstypes.CompletedPart, len(parts))
	for i, p := range parts {
		completed[i] = awstypes.CompletedPart{
			ETag:       aws.String(p.ETag),
			PartNumber: aws.Int32(p.PartNumber),
		}
	}

	output, err := b.client.CompleteMultipartUpload(ctx, &s3.CompleteMultipartUploadInput{
		Bucket:          aws.String(ref.Bucket),
		Key:             aws.String(ref.Key),
		UploadId:        aws.String(ref.ID),
		MultipartUpload: &awstypes.CompletedMultipartUpload{Parts: completed},
	})
	if err != nil {
		return s3types.ObjectID{}, errors.NewBackendError("completeMultipartUpload", ref.Bucket, ref.Key, classify(err))
	}

	return s3types.ObjectID{
		Bucket:    ref.Bucket,
		Key:       ref.Key,
		ETag:      aws.ToString(output.ETag),
		VersionID: aws.ToString(output.VersionId),
	}, nil
}

// AbortMultipartUpload implements s3types.Backend.
func (b *Backend) AbortMultipartUpload(ctx context.Context, ref s3types.SessionRef) error {
	_, err := b.client.AbortMultipartUpload(ctx, &s3.AbortMultipartUploadInput{
		Bucket:   aws.String(ref.Bucket),
		Key:      aws.String(ref.Key),
		UploadId: aws.String(ref.ID),
	})
	if err != nil {
		return errors.NewBackendError("abortMultipartUpload", ref.Bucket, ref.Key, classify(err))
	}
	return nil
}

// HeadObject implements s3types.Backend.
func (b *Backend) HeadObject(ctx context.Context, bucket, key string) (s3types.ObjectMetadata, error) {
	output, err := b.client.HeadObject(ctx, &s3.HeadObjectInput{
		Bucket: aws.String(bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		return s3types.ObjectMetadata{}, errors.NewBackendError("headObject", bucket, key, classify(err))
	}

	return s3types.ObjectMetadata{
		ContentLength: aws.ToInt64(output.ContentLength),
		ContentType:   aws.ToString(output.ContentType),
		ETag:          aws.ToString(output.ETag),
		LastModified:  aws.ToTime(output.LastModified),
	}, nil
}

// GetObjectRange implements s3types.Backend. It returns at most r.Len()
// bytes; a body shorter than the range is returned as is.
func (b *Backend) GetObjectRange(ctx context.Context, bucket, key string, r s3types.ByteRange) ([]byte, error) {
	output, err := b.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(bucket),
		Key:    aws.String(key),
		Range:  aws.String(r.HeaderValue()),
	})
	if err != nil {
		return nil, errors.NewBackendError("getObject", bucket, key, classify(err))
	}
	defer output.Body.Close()

	if served := aws.ToString(output.ContentRange); !r.Served(served) {
		return nil, errors.NewObjectError("getObject", bucket, key,
			fmt.Errorf("%w: requested %s, served %q", errors.ErrInvalidRange, r.HeaderValue(), served))
	}

	buf := make([]byte, r.Len())
	n, err := io.ReadFull(output.Body, buf)
	switch err {
	case nil, io.EOF, io.ErrUnexpectedEOF:
		return buf[:n], nil
	default:
		return nil, errors.NewBackendError("getObject", bucket, key, err)
	}
}

// PutObject implements s3types.Backend.
func (b *Backend) PutObject(
	ctx context.Context,
	bucket, key string,
	body []byte,
	opts s3types.ObjectOptions,
) (s3types.ObjectID, error) {
	input := &s3.PutObjectInput{
		Bucket:        aws.String(bucket),
		Key:           aws.String(key),
		Body:          bytes.NewReader(body),
		ContentLength: aws.Int64(int64(len(body))),
	}
	if opts.ContentType != "" {
		input.ContentType = aws.String(opts.ContentType)
	}
	if len(opts.Metadata) > 0 {
		input.Metadata = opts.Metadata
	}

	output, err := b.client.PutObject(ctx, input)
	if err != nil {
		return s3types.ObjectID{}, errors.NewBackendError("putObject", bucket, key, classify(err))
	}

	return s3types.ObjectID{
		Bucket:    bucket,
		Key:       key,
		ETag:      aws.ToString(output.ETag),
		VersionID: aws.ToString(output.VersionId),
	}, nil
}

// DeleteObject implements s3types.Deleter.
func (b *Backend) DeleteObject(ctx context.Context, bucket, key string) error {
	_, err := b.client.DeleteObject(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		return errors.NewBackendError("deleteObject", bucket, key, classify(err))
	}
	return nil
}

// ListKeys implements s3types.Lister, following continuation tokens until
// the listing is exhausted.
func (b *Backend) ListKeys(ctx context.Context, bucket, prefix string) ([]s3types.Object, error) {
	input := &s3.ListObjectsV2Input{
		Bucket:  aws.String(bucket),
		MaxKeys: aws.Int32(listPageSize),
	}
	if prefix != "" {
		input.Prefix = aws.String(prefix)
	}

	var objects []s3types.Object
	paginator := s3.NewListObjectsV2Paginator(b.client, input)
	for paginator.HasMorePages() {
		page, err := paginator.NextPage(ctx)
		if err != nil {
			return nil, errors.NewBackendError("listObjectsV2", bucket, prefix, classify(err))
		}
		for _, obj := range page.Contents {
			objects = append(objects, s3types.Object{
				Key:          aws.ToString(obj.Key),
				Size:         aws.ToInt64(obj.Size),
				ETag:         aws.ToString(obj.ETag),
				LastModified: aws.ToTime(obj.LastModified),
			})
		}
		b.logger.DebugContext(ctx, "listed page",
			"bucket", bucket,
			"prefix", prefix,
			"objects", len(page.Contents))
	}
	return objects, nil
}
