package miniocore

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"sort"
	"strings"
	"sync"
	"testing"

	"github.com/minio/minio-go/v7"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	s3errors "github.com/input-output-hk/catalyst-forge-libs/aws/s3transfer/errors"
	"github.com/input-output-hk/catalyst-forge-libs/aws/s3transfer/internal/testutil"
	"github.com/input-output-hk/catalyst-forge-libs/aws/s3transfer/s3types"
)

// fakeCore keeps objects and open uploads in memory and answers with
// minio ErrorResponse values the way a MinIO server does.
type fakeCore struct {
	mu      sync.Mutex
	objects map[string][]byte
	types   map[string]string
	uploads map[string]map[int][]byte
	aborted []string
	ranges  []string
	listErr error

	// ignoreRange answers every GetObject with the whole object and no Content-Range.
	ignoreRange bool
}

func newFakeCore() *fakeCore {
	return &fakeCore{
		objects: make(map[string][]byte),
		types:   make(map[string]string),
		uploads: make(map[string]map[int][]byte),
	}
}

func notFound(code string) error {
	return minio.ErrorResponse{Code: code, StatusCode: http.StatusNotFound, Message: "not found"}
}

func (f *fakeCore) NewMultipartUpload(_ context.Context, _, object string, opts minio.PutObjectOptions) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	id := fmt.Sprintf("upload-%d", len(f.uploads)+1)
	f.uploads[id] = make(map[int][]byte)
	f.types[object] = opts.ContentType
	return id, nil
}

func (f *fakeCore) PutObjectPart(
	_ context.Context, _, _, uploadID string, partID int, data io.Reader, _ int64, _ minio.PutObjectPartOptions,
) (minio.ObjectPart, error) {
	body, err := io.ReadAll(data)
	if err != nil {
		return minio.ObjectPart{}, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	parts, ok := f.uploads[uploadID]
	if !ok {
		return minio.ObjectPart{}, notFound("NoSuchUpload")
	}
	parts[partID] = body
	return minio.ObjectPart{PartNumber: partID, ETag: testutil.CalculateETag(body), Size: int64(len(body))}, nil
}

func (f *fakeCore) CompleteMultipartUpload(
	_ context.Context, bucket, object, uploadID string, parts []minio.CompletePart, _ minio.PutObjectOptions,
) (minio.UploadInfo, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	stored, ok := f.uploads[uploadID]
	if !ok {
		return minio.UploadInfo{}, notFound("NoSuchUpload")
	}
	var buf bytes.Buffer
	for i, p := range parts {
		if p.PartNumber != i+1 {
			return minio.UploadInfo{}, minio.ErrorResponse{Code: "InvalidPartOrder", StatusCode: http.StatusBadRequest}
		}
		buf.Write(stored[p.PartNumber])
	}
	delete(f.uploads, uploadID)
	f.objects[object] = buf.Bytes()
	return minio.UploadInfo{Bucket: bucket, Key: object, ETag: "multi-etag", Size: int64(buf.Len())}, nil
}

func (f *fakeCore) AbortMultipartUpload(_ context.Context, _, _, uploadID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.uploads, uploadID)
	f.aborted = append(f.aborted, uploadID)
	return nil
}

func (f *fakeCore) GetObject(
	_ context.Context, _, object string, opts minio.GetObjectOptions,
) (io.ReadCloser, minio.ObjectInfo, http.Header, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	data, ok := f.objects[object]
	if !ok {
		return nil, minio.ObjectInfo{}, nil, notFound("NoSuchKey")
	}
	header := opts.Header().Get("Range")
	f.ranges = append(f.ranges, header)
	var start, end int
	if _, err := fmt.Sscanf(header, "bytes=%d-%d", &start, &end); err != nil || f.ignoreRange {
		return io.NopCloser(bytes.NewReader(data)), minio.ObjectInfo{}, http.Header{}, nil
	}
	if start >= len(data) {
		return nil, minio.ObjectInfo{}, nil, minio.ErrorResponse{Code: "InvalidRange", StatusCode: http.StatusRequestedRangeNotSatisfiable}
	}
	end = min(end, len(data)-1)
	served := http.Header{}
	served.Set("Content-Range", fmt.Sprintf("bytes %d-%d/%d", start, end, len(data)))
	return io.NopCloser(bytes.NewReader(data[start : end+1])), minio.ObjectInfo{}, served, nil
}

func (f *fakeCore) PutObject(
	_ context.Context, bucket, object string, data io.Reader, _ int64, _, _ string, opts minio.PutObjectOptions,
) (minio.UploadInfo, error) {
	body, err := io.ReadAll(data)
	if err != nil {
		return minio.UploadInfo{}, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.objects[object] = body
	f.types[object] = opts.ContentType
	return minio.UploadInfo{Bucket: bucket, Key: object, ETag: testutil.CalculateETag(body), VersionID: "v1"}, nil
}

func (f *fakeCore) StatObject(_ context.Context, _, object string, _ minio.StatObjectOptions) (minio.ObjectInfo, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	data, ok := f.objects[object]
	if !ok {
		return minio.ObjectInfo{}, notFound("NoSuchKey")
	}
	return minio.ObjectInfo{
		Key:          object,
		Size:         int64(len(data)),
		ETag:         testutil.CalculateETag(data),
		ContentType:  f.types[object],
		LastModified: testutil.FixedTime,
	}, nil
}

func (f *fakeCore) RemoveObject(_ context.Context, _, object string, _ minio.RemoveObjectOptions) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.objects, object)
	return nil
}

func (f *fakeCore) ListObjects(_ context.Context, _ string, opts minio.ListObjectsOptions) <-chan minio.ObjectInfo {
	f.mu.Lock()
	var keys []string
	for k := range f.objects {
		if strings.HasPrefix(k, opts.Prefix) {
			keys = append(keys, k)
		}
	}
	sort.Strings(keys)
	out := make(chan minio.ObjectInfo, len(keys)+1)
	for _, k := range keys {
		out <- minio.ObjectInfo{Key: k, Size: int64(len(f.objects[k]))}
	}
	if f.listErr != nil {
		out <- minio.ObjectInfo{Err: f.listErr}
	}
	f.mu.Unlock()
	close(out)
	return out
}

func TestBackend_MultipartUpload(t *testing.T) {
	core := newFakeCore()
	b := New(core)
	ctx := context.Background()

	ref, err := b.BeginMultipartUpload(ctx, "bucket", "big.bin", s3types.ObjectOptions{ContentType: "application/zip"})
	require.NoError(t, err)

	var parts []s3types.PartRecord
	for i, chunk := range []string{"alpha-", "beta-", "gamma"} {
		n := int32(i + 1)
		etag, err := b.UploadPart(ctx, ref, n, []byte(chunk))
		require.NoError(t, err)
		parts = append(parts, s3types.PartRecord{PartNumber: n, ETag: etag, Size: int64(len(chunk))})
	}

	obj, err := b.CompleteMultipartUpload(ctx, ref, parts)
	require.NoError(t, err)
	assert.Equal(t, "multi-etag", obj.ETag)
	assert.Equal(t, "alpha-beta-gamma", string(core.objects["big.bin"]))
	assert.Equal(t, "application/zip", core.types["big.bin"])
}

func TestBackend_CompleteOutOfOrderIsInvalidInput(t *testing.T) {
	b := New(newFakeCore())
	ctx := context.Background()

	ref, err := b.BeginMultipartUpload(ctx, "bucket", "key", s3types.ObjectOptions{})
	require.NoError(t, err)

	_, err = b.CompleteMultipartUpload(ctx, ref, []s3types.PartRecord{{PartNumber: 2}, {PartNumber: 1}})
	assert.ErrorIs(t, err, s3errors.ErrInvalidInput)
	assert.ErrorIs(t, err, s3errors.ErrBackendRequest)
}

func TestBackend_Abort(t *testing.T) {
	core := newFakeCore()
	b := New(core)
	ctx := context.Background()

	ref, err := b.BeginMultipartUpload(ctx, "bucket", "key", s3types.ObjectOptions{})
	require.NoError(t, err)
	require.NoError(t, b.AbortMultipartUpload(ctx, ref))
	assert.Equal(t, []string{ref.ID}, core.aborted)

	_, err = b.UploadPart(ctx, ref, 1, []byte("late"))
	assert.ErrorIs(t, err, s3errors.ErrObjectNotFound)
}

func TestBackend_GetObjectRange(t *testing.T) {
	core := newFakeCore()
	core.objects["key"] = []byte("abcdefghij")
	b := New(core)

	got, err := b.GetObjectRange(context.Background(), "bucket", "key", s3types.ByteRange{Start: 3, End: 6})
	require.NoError(t, err)
	assert.Equal(t, "defg", string(got))
	assert.Equal(t, []string{"bytes=3-6"}, core.ranges)

	_, err = b.GetObjectRange(context.Background(), "bucket", "key", s3types.ByteRange{Start: 20, End: 29})
	assert.ErrorIs(t, err, s3errors.ErrInvalidRange)

	_, err = b.GetObjectRange(context.Background(), "bucket", "missing", s3types.ByteRange{Start: 0, End: 1})
	assert.ErrorIs(t, err, s3errors.ErrObjectNotFound)
	assert.True(t, s3errors.IsPermanent(err))
}

func TestBackend_GetObjectRange_RangeIgnored(t *testing.T) {
	core := newFakeCore()
	core.objects["key"] = []byte("abcdefghij")
	core.ignoreRange = true
	b := New(core)

	got, err := b.GetObjectRange(context.Background(), "bucket", "key", s3types.ByteRange{Start: 0, End: 3})
	require.NoError(t, err)
	assert.Equal(t, "abcd", string(got))

	_, err = b.GetObjectRange(context.Background(), "bucket", "key", s3types.ByteRange{Start: 4, End: 7})
	assert.ErrorIs(t, err, s3errors.ErrInvalidRange)
	assert.True(t, s3errors.IsPermanent(err))
}

func TestBackend_PutHeadDelete(t *testing.T) {
	b := New(newFakeCore())
	ctx := context.Background()

	obj, err := b.PutObject(ctx, "bucket", "doc.txt", []byte("hello"), s3types.ObjectOptions{ContentType: "text/plain"})
	require.NoError(t, err)
	assert.Equal(t, "v1", obj.VersionID)

	meta, err := b.HeadObject(ctx, "bucket", "doc.txt")
	require.NoError(t, err)
	assert.Equal(t, int64(5), meta.ContentLength)
	assert.Equal(t, "text/plain", meta.ContentType)
	assert.Equal(t, obj.ETag, meta.ETag)

	require.NoError(t, b.DeleteObject(ctx, "bucket", "doc.txt"))
	_, err = b.HeadObject(ctx, "bucket", "doc.txt")
	assert.True(t, s3errors.IsObjectNotFound(err))
}

func TestBackend_ListKeys(t *testing.T) {
	core := newFakeCore()
	for _, k := range []string{"a/2", "a/1", "b/1"} {
		core.objects[k] = []byte(k)
	}
	b := New(core)

	objects, err := b.ListKeys(context.Background(), "bucket", "a/")
	require.NoError(t, err)
	require.Len(t, objects, 2)
	assert.Equal(t, "a/1", objects[0].Key)
	assert.Equal(t, "a/2", objects[1].Key)

	core.listErr = minio.ErrorResponse{Code: "AccessDenied", StatusCode: http.StatusForbidden}
	_, err = b.ListKeys(context.Background(), "bucket", "a/")
	assert.ErrorIs(t, err, s3errors.ErrAccessDenied)
}

func TestTranslate(t *testing.T) {
	plain := errors.New("connection refused")
	assert.Same(t, plain, translate(plain))

	err := translate(minio.ErrorResponse{Code: "SlowDown"})
	assert.False(t, s3errors.IsPermanent(err))

	err = translate(minio.ErrorResponse{Code: "NoSuchBucket"})
	assert.ErrorIs(t, err, s3errors.ErrObjectNotFound)
}

func TestDial(t *testing.T) {
	core, err := Dial(Config{Endpoint: "localhost:9000", AccessKey: "minio", SecretKey: "minio123"})
	require.NoError(t, err)
	require.IsType(t, coreClient{}, core)
	assert.NotNil(t, New(core))

	_, err = Dial(Config{Endpoint: "http://localhost:9000/path"})
	assert.Error(t, err)
}

func TestCoreClient_ListObjectsUsesClientListing(t *testing.T) {
	raw, err := minio.NewCore("127.0.0.1:1", &minio.Options{})
	require.NoError(t, err)
	var core Core = coreClient{raw}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	var infos []minio.ObjectInfo
	for info := range core.ListObjects(ctx, "bucket", minio.ListObjectsOptions{Prefix: "a/"}) {
		infos = append(infos, info)
	}
	require.Len(t, infos, 1)
	assert.ErrorIs(t, infos[0].Err, context.Canceled)
}
