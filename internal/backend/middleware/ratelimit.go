package middleware

import (
	"context"

	"golang.org/x/time/rate"

	"github.com/input-output-hk/catalyst-forge-libs/aws/s3transfer/errors"
	"github.com/input-output-hk/catalyst-forge-libs/aws/s3transfer/s3types"
)

// RateLimited admits backend calls through a token bucket shared by all
// transfers of a client.
type RateLimited struct {
	next    s3types.Backend
	limiter *rate.Limiter
}

// RateLimit wraps next so that it is called at most rps times per second on
// average, with bursts of up to burst calls. A burst below one is raised to one.
func RateLimit(next s3types.Backend, rps float64, burst int) *RateLimited {
	return &RateLimited{
		next:    next,
		limiter: rate.NewLimiter(rate.Limit(rps), max(burst, 1)),
	}
}

func (r *RateLimited) wait(ctx context.Context, op, bucket, key string) error {
	if err := r.limiter.Wait(ctx); err != nil {
		if cause := context.Cause(ctx); cause != nil {
			err = cause
		}
		return errors.NewObjectError(op, bucket, key, err).WithMessage("rate limiter")
	}
	return nil
}

// BeginMultipartUpload implements s3types.Backend.
func (r *RateLimited) BeginMultipartUpload(
	ctx context.Context,
	bucket, key string,
	opts s3types.ObjectOptions,
) (s3types.SessionRef, error) {
	if err := r.wait(ctx, "beginMultipartUpload", bucket, key); err != nil {
		return s3types.SessionRef{}, err
	}
	return r.next.BeginMultipartUpload(ctx, bucket, key, opts)
}

// UploadPart implements s3types.Backend.
func (r *RateLimited) UploadPart(ctx context.Context, ref s3types.SessionRef, partNumber int32, body []byte) (string, error) {
	if err := r.wait(ctx, "uploadPart", ref.Bucket, ref.Key); err != nil {
		return "", err
	}
	return r.next.UploadPart(ctx, ref, partNumber, body)
}

// CompleteMultipartUpload implements s3types.Backend.
func (r *RateLimited) CompleteMultipartUpload(
	ctx context.Context,
	ref s3types.SessionRef,
	parts []s3types.PartRecord,
) (s3types.ObjectID, error) {
	if err := r.wait(ctx, "completeMultipartUpload", ref.Bucket, ref.Key); err != nil {
		return s3types.ObjectID{}, err
	}
	return r.next.CompleteMultipartUpload(ctx, ref, parts)
}

// AbortMultipartUpload implements s3types.Backend.
func (r *RateLimited) AbortMultipartUpload(ctx context.Context, ref s3types.SessionRef) error {
	if err := r.wait(ctx, "abortMultipartUpload", ref.Bucket, ref.Key); err != nil {
		return err
	}
	return r.next.AbortMultipartUpload(ctx, ref)
}

// HeadObject implements s3types.Backend.
func (r *RateLimited) HeadObject(ctx context.Context, bucket, key string) (s3types.ObjectMetadata, error) {
	if err := r.wait(ctx, "headObject", bucket, key); err != nil {
		return s3types.ObjectMetadata{}, err
	}
	return r.next.HeadObject(ctx, bucket, key)
}

// GetObjectRange implements s3types.Backend.
func (r *RateLimited) GetObjectRange(ctx context.Context, bucket, key string, rng s3types.ByteRange) ([]byte, error) {
	if err := r.wait(ctx, "getObjectRange", bucket, key); err != nil {
		return nil, err
	}
	return r.next.GetObjectRange(ctx, bucket, key, rng)
}

// PutObject implements s3types.Backend.
func (r *RateLimited) PutObject(
	ctx context.Context,
	bucket, key string,
	body []byte,
	opts s3types.ObjectOptions,
) (s3types.ObjectID, error) {
	if err := r.wait(ctx, "putObject", bucket, key); err != nil {
		return s3types.ObjectID{}, err
	}
	return r.next.PutObject(ctx, bucket, key, body, opts)
}

// DeleteObject implements s3types.Deleter.
func (r *RateLimited) DeleteObject(ctx context.Context, bucket, key string) error {
	if err := r.wait(ctx, "deleteObject", bucket, key); err != nil {
		return err
	}
	return deleteObject(ctx, r.next, bucket, key)
}

// ListKeys implements s3types.Lister.
func (r *RateLimited) ListKeys(ctx context.Context, bucket, prefix string) ([]s3types.Object, error) {
	if err := r.wait(ctx, "listObjects", bucket, prefix); err != nil {
		return nil, err
	}
	return listKeys(ctx, r.next, bucket, prefix)
}
