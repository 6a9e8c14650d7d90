// Package memory provides an in-memory object store backend for testing and development.
// It implements the full transfer backend capability set, including deletion and
// listing, with thread-safe operations and S3-compatible entity tags.
package memory

import (
	"bytes"
	"context"
	"crypto/md5"
	"encoding/hex"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/input-output-hk/catalyst-forge-libs/aws/s3transfer/errors"
	"github.com/input-output-hk/catalyst-forge-libs/aws/s3transfer/s3types"
)

const defaultContentType = "application/octet-stream"

type object struct {
	data        []byte
	contentType string
	metadata    map[string]string
	etag        string
	modified    time.Time
}

type upload struct {
	bucket string
	key    string
	opts   s3types.ObjectOptions
	parts  map[int32][]byte
	etags  map[int32]string
}

// Option configures the backend.
type Option func(*Backend)

// WithMinPartSize rejects completion when any part but the last is smaller
// than size, mirroring the S3 5 MiB part floor.
func WithMinPartSize(size int64) Option {
	return func(b *Backend) {
		b.minPartSize = size
	}
}

// WithClock overrides the time source used for LastModified.
func WithClock(now func() time.Time) Option {
	return func(b *Backend) {
		b.now = now
	}
}

// Backend implements an in-memory object store.
type Backend struct {
	// objects holds stored objects keyed by bucket then key
	objects map[string]map[string]*object
	// uploads holds open multipart uploads keyed by upload id
	uploads map[string]*upload
	// mu protects objects and uploads
	mu sync.RWMutex

	minPartSize int64
	now         func() time.Time
}

// New creates an empty backend.
func New(opts ...Option) *Backend {
	b := &Backend{
		objects: make(map[string]map[string]*object),
		uploads: make(map[string]*upload),
		now:     time.Now,
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

func etagOf(data []byte) string {
	sum := md5.Sum(data)
	return `"` + hex.EncodeToString(sum[:]) + `"`
}

// multipartETag follows the S3 convention: md5 of the concatenated part
// digests, suffixed with the part count.
func multipartETag(etags []string) string {
	h := md5.New()
	for _, e := range etags {
		raw, err := hex.DecodeString(strings.Trim(e, `"`))
		if err != nil {
			continue
		}
		h.Write(raw)
	}
	return fmt.Sprintf(`"%s-%d"`, hex.EncodeToString(h.Sum(nil)), len(etags))
}

func checkContext(ctx context.Context, op, bucket, key string) error {
	if err := ctx.Err(); err != nil {
		return errors.NewObjectError(op, bucket, key, err)
	}
	return nil
}

func (b *Backend) store(bucket, key string, obj *object) {
	keys, ok := b.objects[bucket]
	if !ok {
		keys = make(map[string]*object)
		b.objects[bucket] = keys
	}
	keys[key] = obj
}

func (b *Backend) lookup(bucket, key string) (*object, bool) {
	obj, ok := b.objects[bucket][key]
	return obj, ok
}

// BeginMultipartUpload opens a multipart upload.
func (b *Backend) BeginMultipartUpload(
	ctx context.Context,
	bucket, key string,
	opts s3types.ObjectOptions,
) (s3types.SessionRef, error) {
	if err := checkContext(ctx, "beginMultipartUpload", bucket, key); err != nil {
		return s3types.SessionRef{}, err
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	id := uuid.NewString()
	b.uploads[id] = &upload{
		bucket: bucket,
		key:    key,
		opts:   opts,
		parts:  make(map[int32][]byte),
		etags:  make(map[int32]string),
	}
	return s3types.SessionRef{ID: id, Bucket: bucket, Key: key}, nil
}

// UploadPart stores a copy of body as part partNumber.
func (b *Backend) UploadPart(ctx context.Context, ref s3types.SessionRef, partNumber int32, body []byte) (string, error) {
	if err := checkContext(ctx, "uploadPart", ref.Bucket, ref.Key); err != nil {
		return "", err
	}
	if partNumber < 1 || partNumber > 10000 {
		return "", errors.NewBackendError("uploadPart", ref.Bucket, ref.Key,
			fmt.Errorf("%w: part number %d out of range", errors.ErrInvalidInput, partNumber))
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	up, ok := b.uploads[ref.ID]
	if !ok {
		return "", errors.NewBackendError("uploadPart", ref.Bucket, ref.Key,
			fmt.Errorf("%w: no such upload %s", errors.ErrObjectNotFound, ref.ID))
	}
	etag := etagOf(body)
	up.parts[partNumber] = bytes.Clone(body)
	up.etags[partNumber] = etag
	return etag, nil
}

// CompleteMultipartUpload assembles the listed parts into an object.
func (b *Backend) CompleteMultipartUpload(
	ctx context.Context,
	ref s3types.SessionRef,
	parts []s3types.PartRecord,
) (s3types.ObjectID, error) {
	if err := checkContext(ctx, "completeMultipartUpload", ref.Bucket, ref.Key); err != nil {
		return s3types.ObjectID{}, err
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	up, ok := b.uploads[ref.ID]
	if !ok {
		return s3types.ObjectID{}, errors.NewBackendError("completeMultipartUpload", ref.Bucket, ref.Key,
			fmt.Errorf("%w: no such upload %s", errors.ErrObjectNotFound, ref.ID))
	}
	if len(parts) == 0 {
		return s3types.ObjectID{}, errors.NewBackendError("completeMultipartUpload", ref.Bucket, ref.Key,
			fmt.Errorf("%w: no parts", errors.ErrInvalidInput))
	}

	var (
		data  []byte
		etags = make([]string, 0, len(parts))
		prev  int32
	)
	for i, p := range parts {
		if p.PartNumber <= prev {
			return s3types.ObjectID{}, errors.NewBackendError("completeMultipartUpload", ref.Bucket, ref.Key,
				fmt.Errorf("%w: parts not in ascending order", errors.ErrInvalidInput))
		}
		prev = p.PartNumber

		body, ok := up.parts[p.PartNumber]
		if !ok || up.etags[p.PartNumber] != p.ETag {
			return s3types.ObjectID{}, errors.NewBackendError("completeMultipartUpload", ref.Bucket, ref.Key,
				fmt.Errorf("%w: invalid part %d", errors.ErrInvalidInput, p.PartNumber))
		}
		if b.minPartSize > 0 && i < len(parts)-1 && int64(len(body)) < b.minPartSize {
			return s3types.ObjectID{}, errors.NewBackendError("completeMultipartUpload", ref.Bucket, ref.Key,
				fmt.Errorf("%w: part %d smaller than %d bytes", errors.ErrInvalidInput, p.PartNumber, b.minPartSize))
		}
		data = append(data, body...)
		etags = append(etags, p.ETag)
	}

	contentType := up.opts.ContentType
	if contentType == "" {
		contentType = defaultContentType
	}
	obj := &object{
		data:        data,
		contentType: contentType,
		metadata:    up.opts.Metadata,
		etag:        multipartETag(etags),
		modified:    b.now(),
	}
	b.store(ref.Bucket, ref.Key, obj)
	delete(b.uploads, ref.ID)

	return s3types.ObjectID{Bucket: ref.Bucket, Key: ref.Key, ETag: obj.etag}, nil
}

// AbortMultipartUpload discards an open upload.
func (b *Backend) AbortMultipartUpload(ctx context.Context, ref s3types.SessionRef) error {
	if err := checkContext(ctx, "abortMultipartUpload", ref.Bucket, ref.Key); err != nil {
		return err
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	if _, ok := b.uploads[ref.ID]; !ok {
		return errors.NewBackendError("abortMultipartUpload", ref.Bucket, ref.Key,
			fmt.Errorf("%w: no such upload %s", errors.ErrObjectNotFound, ref.ID))
	}
	delete(b.uploads, ref.ID)
	return nil
}

// HeadObject returns metadata for a stored object.
func (b *Backend) HeadObject(ctx context.Context, bucket, key string) (s3types.ObjectMetadata, error) {
	if err := checkContext(ctx, "headObject", bucket, key); err != nil {
		return s3types.ObjectMetadata{}, err
	}

	b.mu.RLock()
	defer b.mu.RUnlock()

	obj, ok := b.lookup(bucket, key)
	if !ok {
		return s3types.ObjectMetadata{}, errors.NewBackendError("headObject", bucket, key, errors.ErrObjectNotFound)
	}
	return s3types.ObjectMetadata{
		ContentLength: int64(len(obj.data)),
		ContentType:   obj.contentType,
		ETag:          obj.etag,
		LastModified:  obj.modified,
	}, nil
}

// GetObjectRange returns a copy of the requested bytes. As with S3, an end
// offset past the object is clamped.
func (b *Backend) GetObjectRange(ctx context.Context, bucket, key string, r s3types.ByteRange) ([]byte, error) {
	if err := checkContext(ctx, "getObjectRange", bucket, key); err != nil {
		return nil, err
	}

	b.mu.RLock()
	defer b.mu.RUnlock()

	obj, ok := b.lookup(bucket, key)
	if !ok {
		return nil, errors.NewBackendError("getObjectRange", bucket, key, errors.ErrObjectNotFound)
	}
	size := int64(len(obj.data))
	if r.Start < 0 || r.End < r.Start || r.Start >= size {
		return nil, errors.NewBackendError("getObjectRange", bucket, key,
			fmt.Errorf("%w: %s of %d bytes", errors.ErrInvalidRange, r.HeaderValue(), size))
	}
	end := min(r.End, size-1)
	return bytes.Clone(obj.data[r.Start : end+1]), nil
}

// PutObject stores a copy of body.
func (b *Backend) PutObject(
	ctx context.Context,
	bucket, key string,
	body []byte,
	opts s3types.ObjectOptions,
) (s3types.ObjectID, error) {
	if err := checkContext(ctx, "putObject", bucket, key); err != nil {
		return s3types.ObjectID{}, err
	}

	contentType := opts.ContentType
	if contentType == "" {
		contentType = defaultContentType
	}
	obj := &object{
		data:        bytes.Clone(body),
		contentType: contentType,
		metadata:    opts.Metadata,
		etag:        etagOf(body),
		modified:    b.now(),
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	b.store(bucket, key, obj)

	return s3types.ObjectID{Bucket: bucket, Key: key, ETag: obj.etag}, nil
}

// DeleteObject removes an object. Deleting a missing object succeeds.
func (b *Backend) DeleteObject(ctx context.Context, bucket, key string) error {
	if err := checkContext(ctx, "deleteObject", bucket, key); err != nil {
		return err
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	delete(b.objects[bucket], key)
	return nil
}

// ListKeys returns the objects in bucket whose key starts with prefix, sorted by key.
func (b *Backend) ListKeys(ctx context.Context, bucket, prefix string) ([]s3types.Object, error) {
	if err := checkContext(ctx, "listObjects", bucket, ""); err != nil {
		return nil, err
	}

	b.mu.RLock()
	defer b.mu.RUnlock()

	var out []s3types.Object
	for key, obj := range b.objects[bucket] {
		if !strings.HasPrefix(key, prefix) {
			continue
		}
		out = append(out, s3types.Object{
			Key:          key,
			Size:         int64(len(obj.data)),
			ETag:         obj.etag,
			LastModified: obj.modified,
		})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Key < out[j].Key })
	return out, nil
}

// Object returns a copy of a stored object's content.
func (b *Backend) Object(bucket, key string) ([]byte, bool) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	obj, ok := b.lookup(bucket, key)
	if !ok {
		return nil, false
	}
	return bytes.Clone(obj.data), true
}

// Metadata returns the user metadata of a stored object.
func (b *Backend) Metadata(bucket, key string) (map[string]string, bool) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	obj, ok := b.lookup(bucket, key)
	if !ok {
		return nil, false
	}
	return obj.metadata, true
}

// OpenUploads returns the number of multipart uploads neither completed nor aborted.
func (b *Backend) OpenUploads() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.uploads)
}

// Reset removes all objects and uploads.
func (b *Backend) Reset() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.objects = make(map[string]map[string]*object)
	b.uploads = make(map[string]*upload)
}
