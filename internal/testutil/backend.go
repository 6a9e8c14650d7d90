// Package testutil provides a recording backend for transfer tests.
package testutil

import (
	"context"
	"slices"
	"sync"

	"github.com/input-output-hk/catalyst-forge-libs/aws/s3transfer/errors"
	"github.com/input-output-hk/catalyst-forge-libs/aws/s3transfer/memory"
	"github.com/input-output-hk/catalyst-forge-libs/aws/s3transfer/s3types"
)

// Backend operation names recorded by RecordingBackend.
const (
	OpBegin    = "BeginMultipartUpload"
	OpPart     = "UploadPart"
	OpComplete = "CompleteMultipartUpload"
	OpAbort    = "AbortMultipartUpload"
	OpHead     = "HeadObject"
	OpRange    = "GetObjectRange"
	OpPut      = "PutObject"
	OpDelete   = "DeleteObject"
	OpList     = "ListKeys"
)

// Call is one recorded backend invocation.
type Call struct {
	Op         string
	PartNumber int32
	Range      s3types.ByteRange
}

// RecordingBackend wraps a backend and records every call. Each XxxFunc, when
// set, replaces the delegation to Inner for that operation. DeleteObject and
// ListKeys reach Inner only when it implements s3types.Deleter or s3types.Lister.
type RecordingBackend struct {
	Inner s3types.Backend

	BeginFunc    func(ctx context.Context, bucket, key string, opts s3types.ObjectOptions) (s3types.SessionRef, error)
	PartFunc     func(ctx context.Context, ref s3types.SessionRef, n int32, body []byte) (string, error)
	CompleteFunc func(ctx context.Context, ref s3types.SessionRef, parts []s3types.PartRecord) (s3types.ObjectID, error)
	AbortFunc    func(ctx context.Context, ref s3types.SessionRef) error
	HeadFunc     func(ctx context.Context, bucket, key string) (s3types.ObjectMetadata, error)
	RangeFunc    func(ctx context.Context, bucket, key string, r s3types.ByteRange) ([]byte, error)
	PutFunc      func(ctx context.Context, bucket, key string, body []byte, opts s3types.ObjectOptions) (s3types.ObjectID, error)

	mu        sync.Mutex
	calls     []Call
	completed [][]s3types.PartRecord
}

// NewRecordingBackend wraps inner, or a fresh memory backend when inner is nil.
func NewRecordingBackend(inner s3types.Backend) *RecordingBackend {
	if inner == nil {
		inner = memory.New()
	}
	return &RecordingBackend{Inner: inner}
}

func (r *RecordingBackend) record(c Call) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls = append(r.calls, c)
}

// Calls returns every recorded call in invocation order.
func (r *RecordingBackend) Calls() []Call {
	r.mu.Lock()
	defer r.mu.Unlock()
	return slices.Clone(r.calls)
}

// Count returns how many times op was called.
func (r *RecordingBackend) Count(op string) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := 0
	for _, c := range r.calls {
		if c.Op == op {
			n++
		}
	}
	return n
}

// RangeCalls returns how many fetches were issued for rng.
func (r *RecordingBackend) RangeCalls(rng s3types.ByteRange) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := 0
	for _, c := range r.calls {
		if c.Op == OpRange && c.Range == rng {
			n++
		}
	}
	return n
}

// CompletedParts returns the part lists passed to CompleteMultipartUpload.
func (r *RecordingBackend) CompletedParts() [][]s3types.PartRecord {
	r.mu.Lock()
	defer r.mu.Unlock()
	return slices.Clone(r.completed)
}

// BeginMultipartUpload records and delegates.
func (r *RecordingBackend) BeginMultipartUpload(
	ctx context.Context,
	bucket, key string,
	opts s3types.ObjectOptions,
) (s3types.SessionRef, error) {
	r.record(Call{Op: OpBegin})
	if r.BeginFunc != nil {
		return r.BeginFunc(ctx, bucket, key, opts)
	}
	return r.Inner.BeginMultipartUpload(ctx, bucket, key, opts)
}

// UploadPart records and delegates.
func (r *RecordingBackend) UploadPart(ctx context.Context, ref s3types.SessionRef, n int32, body []byte) (string, error) {
	r.record(Call{Op: OpPart, PartNumber: n})
	if r.PartFunc != nil {
		return r.PartFunc(ctx, ref, n, body)
	}
	return r.Inner.UploadPart(ctx, ref, n, body)
}

// CompleteMultipartUpload records and delegates.
func (r *RecordingBackend) CompleteMultipartUpload(
	ctx context.Context,
	ref s3types.SessionRef,
	parts []s3types.PartRecord,
) (s3types.ObjectID, error) {
	r.record(Call{Op: OpComplete})
	r.mu.Lock()
	r.completed = append(r.completed, slices.Clone(parts))
	r.mu.Unlock()
	if r.CompleteFunc != nil {
		return r.CompleteFunc(ctx, ref, parts)
	}
	return r.Inner.CompleteMultipartUpload(ctx, ref, parts)
}

// AbortMultipartUpload records and delegates.
func (r *RecordingBackend) AbortMultipartUpload(ctx context.Context, ref s3types.SessionRef) error {
	r.record(Call{Op: OpAbort})
	if r.AbortFunc != nil {
		return r.AbortFunc(ctx, ref)
	}
	return r.Inner.AbortMultipartUpload(ctx, ref)
}

// HeadObject records and delegates.
func (r *RecordingBackend) HeadObject(ctx context.Context, bucket, key string) (s3types.ObjectMetadata, error) {
	r.record(Call{Op: OpHead})
	if r.HeadFunc != nil {
		return r.HeadFunc(ctx, bucket, key)
	}
	return r.Inner.HeadObject(ctx, bucket, key)
}

// GetObjectRange records and delegates.
func (r *RecordingBackend) GetObjectRange(
	ctx context.Context,
	bucket, key string,
	rng s3types.ByteRange,
) ([]byte, error) {
	r.record(Call{Op: OpRange, Range: rng})
	if r.RangeFunc != nil {
		return r.RangeFunc(ctx, bucket, key, rng)
	}
	return r.Inner.GetObjectRange(ctx, bucket, key, rng)
}

// PutObject records and delegates.
func (r *RecordingBackend) PutObject(
	ctx context.Context,
	bucket, key string,
	body []byte,
	opts s3types.ObjectOptions,
) (s3types.ObjectID, error) {
	r.record(Call{Op: OpPut})
	if r.PutFunc != nil {
		return r.PutFunc(ctx, bucket, key, body, opts)
	}
	return r.Inner.PutObject(ctx, bucket, key, body, opts)
}

// DeleteObject records and delegates.
func (r *RecordingBackend) DeleteObject(ctx context.Context, bucket, key string) error {
	r.record(Call{Op: OpDelete})
	d, ok := r.Inner.(s3types.Deleter)
	if !ok {
		return errors.NewObjectError("deleteObject", bucket, key, errors.ErrNotImplemented)
	}
	return d.DeleteObject(ctx, bucket, key)
}

// ListKeys records and delegates.
func (r *RecordingBackend) ListKeys(ctx context.Context, bucket, prefix string) ([]s3types.Object, error) {
	r.record(Call{Op: OpList})
	l, ok := r.Inner.(s3types.Lister)
	if !ok {
		return nil, errors.NewObjectError("listObjects", bucket, prefix, errors.ErrNotImplemented)
	}
	return l.ListKeys(ctx, bucket, prefix)
}
