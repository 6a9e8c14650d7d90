package middleware

import (
	"context"
	"time"

	"github.com/input-output-hk/catalyst-forge-libs/aws/s3transfer/internal/metrics"
	"github.com/input-output-hk/catalyst-forge-libs/aws/s3transfer/s3types"
)

// Instrumented records every backend call in Prometheus metrics.
type Instrumented struct {
	next    s3types.Backend
	metrics *metrics.Metrics
}

// Instrument wraps next with request and byte accounting.
func Instrument(next s3types.Backend, m *metrics.Metrics) *Instrumented {
	return &Instrumented{next: next, metrics: m}
}

func (i *Instrumented) observe(op string, start time.Time, err error) {
	i.metrics.RecordRequest(op, err, time.Since(start).Seconds())
}

// BeginMultipartUpload implements s3types.Backend.
func (i *Instrumented) BeginMultipartUpload(
	ctx context.Context,
	bucket, key string,
	opts s3types.ObjectOptions,
) (s3types.SessionRef, error) {
	start := time.Now()
	ref, err := i.next.BeginMultipartUpload(ctx, bucket, key, opts)
	i.observe("beginMultipartUpload", start, err)
	return ref, err
}

// UploadPart implements s3types.Backend.
func (i *Instrumented) UploadPart(ctx context.Context, ref s3types.SessionRef, partNumber int32, body []byte) (string, error) {
	start := time.Now()
	etag, err := i.next.UploadPart(ctx, ref, partNumber, body)
	i.observe("uploadPart", start, err)
	if err == nil {
		i.metrics.RecordPart(len(body))
	}
	return etag, err
}

// CompleteMultipartUpload implements s3types.Backend.
func (i *Instrumented) CompleteMultipartUpload(
	ctx context.Context,
	ref s3types.SessionRef,
	parts []s3types.PartRecord,
) (s3types.ObjectID, error) {
	start := time.Now()
	obj, err := i.next.CompleteMultipartUpload(ctx, ref, parts)
	i.observe("completeMultipartUpload", start, err)
	return obj, err
}

// AbortMultipartUpload implements s3types.Backend.
func (i *Instrumented) AbortMultipartUpload(ctx context.Context, ref s3types.SessionRef) error {
	start := time.Now()
	err := i.next.AbortMultipartUpload(ctx, ref)
	i.observe("abortMultipartUpload", start, err)
	return err
}

// HeadObject implements s3types.Backend.
func (i *Instrumented) HeadObject(ctx context.Context, bucket, key string) (s3types.ObjectMetadata, error) {
	start := time.Now()
	meta, err := i.next.HeadObject(ctx, bucket, key)
	i.observe("headObject", start, err)
	return meta, err
}

// GetObjectRange implements s3types.Backend.
func (i *Instrumented) GetObjectRange(ctx context.Context, bucket, key string, r s3types.ByteRange) ([]byte, error) {
	start := time.Now()
	data, err := i.next.GetObjectRange(ctx, bucket, key, r)
	i.observe("getObjectRange", start, err)
	if err == nil {
		i.metrics.RecordRange(len(data))
	}
	return data, err
}

// PutObject implements s3types.Backend.
func (i *Instrumented) PutObject(
	ctx context.Context,
	bucket, key string,
	body []byte,
	opts s3types.ObjectOptions,
) (s3types.ObjectID, error) {
	start := time.Now()
	obj, err := i.next.PutObject(ctx, bucket, key, body, opts)
	i.observe("putObject", start, err)
	if err == nil {
		i.metrics.RecordPut(len(body))
	}
	return obj, err
}

// DeleteObject implements s3types.Deleter.
func (i *Instrumented) DeleteObject(ctx context.Context, bucket, key string) error {
	start := time.Now()
	err := deleteObject(ctx, i.next, bucket, key)
	i.observe("deleteObject", start, err)
	return err
}

// ListKeys implements s3types.Lister.
func (i *Instrumented) ListKeys(ctx context.Context, bucket, prefix string) ([]s3types.Object, error) {
	start := time.Now()
	objects, err := listKeys(ctx, i.next, bucket, prefix)
	i.observe("listObjects", start, err)
	return objects, err
}
