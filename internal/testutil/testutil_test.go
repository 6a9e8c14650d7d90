package testutil

import (
	"bytes"
	"context"
	"errors"
	"io"
	"testing"

	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	s3errors "github.com/input-output-hk/catalyst-forge-libs/aws/s3transfer/errors"
	"github.com/input-output-hk/catalyst-forge-libs/aws/s3transfer/memory"
	"github.com/input-output-hk/catalyst-forge-libs/aws/s3transfer/s3types"
)

func TestMockS3Client(t *testing.T) {
	t.Run("PutObject with custom function", func(t *testing.T) {
		mock := &MockS3Client{
			PutObjectFunc: func(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error) {
				assert.Equal(t, "test-bucket", *params.Bucket)
				assert.Equal(t, "test-key", *params.Key)
				return &s3.PutObjectOutput{
					ETag: StringPtr("test-etag"),
				}, nil
			},
		}

		output, err := mock.PutObject(context.Background(), &s3.PutObjectInput{
			Bucket: StringPtr("test-bucket"),
			Key:    StringPtr("test-key"),
		})

		require.NoError(t, err)
		assert.Equal(t, "test-etag", *output.ETag)
	})

	t.Run("returns default when no function set", func(t *testing.T) {
		mock := &MockS3Client{}
		output, err := mock.GetObject(context.Background(), &s3.GetObjectInput{
			Bucket: StringPtr("test-bucket"),
			Key:    StringPtr("test-key"),
		})

		require.NoError(t, err)
		assert.NotNil(t, output)
	})
}

func TestMockBuilder(t *testing.T) {
	t.Run("serves ranges of an object", func(t *testing.T) {
		mock := NewMockBuilder().WithObject([]byte("0123456789"), "text/plain").Build()

		head, err := mock.HeadObject(context.Background(), &s3.HeadObjectInput{})
		require.NoError(t, err)
		assert.Equal(t, int64(10), *head.ContentLength)

		out, err := mock.GetObject(context.Background(), &s3.GetObjectInput{Range: StringPtr("bytes=3-5")})
		require.NoError(t, err)
		body, _ := io.ReadAll(out.Body)
		assert.Equal(t, "345", string(body))
		assert.Equal(t, "bytes 3-5/10", *out.ContentRange)

		out, err = mock.GetObject(context.Background(), &s3.GetObjectInput{Range: StringPtr("bytes=8-20")})
		require.NoError(t, err)
		body, _ = io.ReadAll(out.Body)
		assert.Equal(t, "89", string(body))
		assert.Equal(t, "bytes 8-9/10", *out.ContentRange)
	})

	t.Run("builds mock with object not found", func(t *testing.T) {
		mock := NewMockBuilder().WithObjectNotFound().Build()

		_, err := mock.GetObject(context.Background(), &s3.GetObjectInput{})
		var nsk *types.NoSuchKey
		assert.ErrorAs(t, err, &nsk)
	})

	t.Run("records multipart uploads", func(t *testing.T) {
		b, rec := NewMockBuilder().WithMultipartUpload()
		mock := b.Build()

		_, err := mock.UploadPart(context.Background(), &s3.UploadPartInput{
			PartNumber: Int32Ptr(1),
			Body:       bytes.NewReader([]byte("hello ")),
		})
		require.NoError(t, err)
		_, err = mock.UploadPart(context.Background(), &s3.UploadPartInput{
			PartNumber: Int32Ptr(2),
			Body:       bytes.NewReader([]byte("world")),
		})
		require.NoError(t, err)

		_, err = mock.CompleteMultipartUpload(context.Background(), &s3.CompleteMultipartUploadInput{
			MultipartUpload: &types.CompletedMultipartUpload{
				Parts: []types.CompletedPart{{PartNumber: Int32Ptr(1)}, {PartNumber: Int32Ptr(2)}},
			},
		})
		require.NoError(t, err)
		assert.Equal(t, "hello world", string(rec.Assembled()))
	})
}

func TestRecordingBackend(t *testing.T) {
	ctx := context.Background()
	rb := NewRecordingBackend(nil)

	_, err := rb.PutObject(ctx, "b", "k", []byte("abcdef"), s3types.ObjectOptions{})
	require.NoError(t, err)

	data, err := rb.GetObjectRange(ctx, "b", "k", s3types.ByteRange{Start: 1, End: 3})
	require.NoError(t, err)
	assert.Equal(t, "bcd", string(data))

	boom := errors.New("boom")
	rb.RangeFunc = func(context.Context, string, string, s3types.ByteRange) ([]byte, error) {
		return nil, boom
	}
	_, err = rb.GetObjectRange(ctx, "b", "k", s3types.ByteRange{Start: 1, End: 3})
	assert.ErrorIs(t, err, boom)

	assert.Equal(t, 1, rb.Count(OpPut))
	assert.Equal(t, 2, rb.RangeCalls(s3types.ByteRange{Start: 1, End: 3}))
	assert.Len(t, rb.Calls(), 3)
}

func TestRecordingBackend_OptionalCapabilities(t *testing.T) {
	ctx := context.Background()
	rb := NewRecordingBackend(nil)
	var _ s3types.Deleter = rb
	var _ s3types.Lister = rb

	for _, key := range []string{"a/1", "a/2", "b/1"} {
		_, err := rb.PutObject(ctx, "b", key, []byte(key), s3types.ObjectOptions{})
		require.NoError(t, err)
	}

	objects, err := rb.ListKeys(ctx, "b", "a/")
	require.NoError(t, err)
	assert.Len(t, objects, 2)

	require.NoError(t, rb.DeleteObject(ctx, "b", "a/1"))
	objects, err = rb.ListKeys(ctx, "b", "a/")
	require.NoError(t, err)
	assert.Len(t, objects, 1)

	assert.Equal(t, 2, rb.Count(OpList))
	assert.Equal(t, 1, rb.Count(OpDelete))

	bare := NewRecordingBackend(struct{ s3types.Backend }{memory.New()})
	assert.ErrorIs(t, bare.DeleteObject(ctx, "b", "k"), s3errors.ErrNotImplemented)
	_, err = bare.ListKeys(ctx, "b", "")
	assert.ErrorIs(t, err, s3errors.ErrNotImplemented)
}

func TestProgressTracker(t *testing.T) {
	tracker := &MockProgressTracker{}
	tracker.Update(10, 100)
	tracker.Update(100, 100)
	tracker.Complete()

	assert.True(t, tracker.UpdateCalled)
	assert.True(t, tracker.CompleteCalled)
	assert.Len(t, tracker.Snapshot(), 2)

	tracker.Reset()
	assert.False(t, tracker.UpdateCalled)
	assert.Empty(t, tracker.Snapshot())
}

func TestTestDataGenerator(t *testing.T) {
	g := NewTestDataGenerator(42)
	data := g.Payload(1000)
	assert.Len(t, data, 1000)

	parts := g.Split(data, 64)
	assert.Equal(t, data, bytes.Join(parts, nil))

	// same seed, same data
	assert.Equal(t, data, NewTestDataGenerator(42).Payload(1000))

	objects := g.GenerateObjectList(3, "logs/")
	require.Len(t, objects, 3)
	assert.Equal(t, "logs/object-0000.bin", *objects[0].Key)
}

func TestBufferSource(t *testing.T) {
	src := &BufferSource{Buffers: [][]byte{[]byte("a")}}
	b, err := src.Next(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "a", string(b))

	_, err = src.Next(context.Background())
	assert.ErrorIs(t, err, io.EOF)
}

func TestHelpers(t *testing.T) {
	assert.Equal(t, `"5d41402abc4b2a76b9719d911017c592"`, CalculateETag([]byte("hello")))
	assert.Contains(t, GenerateTestKey("prefix"), "prefix/test-object-")
	assert.LessOrEqual(t, len(GenerateTestBucketName("A_Very_Long_Prefix_That_Keeps_Going_And_Going_And_Going_Forever")), 63)
	assert.Len(t, GenerateRandomData(16), 16)
}
