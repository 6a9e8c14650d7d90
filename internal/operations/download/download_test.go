package download

import (
	"bytes"
	"context"
	"errors"
	"io"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	s3errors "github.com/input-output-hk/catalyst-forge-libs/aws/s3transfer/errors"
	"github.com/input-output-hk/catalyst-forge-libs/aws/s3transfer/internal/backend/awss3"
	"github.com/input-output-hk/catalyst-forge-libs/aws/s3transfer/internal/testutil"
	"github.com/input-output-hk/catalyst-forge-libs/aws/s3transfer/internal/transfer/retry"
	"github.com/input-output-hk/catalyst-forge-libs/aws/s3transfer/memory"
	"github.com/input-output-hk/catalyst-forge-libs/aws/s3transfer/s3types"
)

var fastRetry = retry.Policy{MaxRetries: 2, Delay: time.Millisecond, Jitter: 0.25}

func seeded(t *testing.T, data []byte) (*memory.Backend, *testutil.RecordingBackend) {
	t.Helper()
	mem := memory.New()
	_, err := mem.PutObject(context.Background(), "bucket", "key", data, s3types.ObjectOptions{})
	require.NoError(t, err)
	return mem, testutil.NewRecordingBackend(mem)
}

func request(chunk int64) Request {
	return Request{
		Bucket:      "bucket",
		Key:         "key",
		ChunkSize:   chunk,
		Concurrency: 3,
		Policy:      fastRetry,
	}
}

func TestDownloader_Download(t *testing.T) {
	tests := []struct {
		name       string
		size       int
		chunk      int64
		wantRanges int
	}{
		{name: "exact multiple", size: 64, chunk: 16, wantRanges: 4},
		{name: "short tail", size: 70, chunk: 16, wantRanges: 5},
		{name: "single range", size: 10, chunk: 16, wantRanges: 1},
		{name: "one byte chunks", size: 7, chunk: 1, wantRanges: 7},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			data := testutil.NewTestDataGenerator(int64(tt.size)).Payload(tt.size)
			_, rb := seeded(t, data)

			var buf bytes.Buffer
			result, err := New(rb).Download(context.Background(), request(tt.chunk), &buf)

			require.NoError(t, err)
			assert.Equal(t, data, buf.Bytes())
			assert.Equal(t, int64(tt.size), result.Size)
			assert.Equal(t, tt.wantRanges, result.Ranges)
			assert.Equal(t, 1, rb.Count(testutil.OpHead))
			assert.Equal(t, tt.wantRanges, rb.Count(testutil.OpRange))
		})
	}
}

func TestDownloader_ZeroByteObjectMakesNoRangeRequests(t *testing.T) {
	_, rb := seeded(t, nil)

	data, result, err := New(rb).Get(context.Background(), request(16))

	require.NoError(t, err)
	assert.Empty(t, data)
	assert.NotNil(t, data)
	assert.Equal(t, int64(0), result.Size)
	assert.Equal(t, 0, result.Ranges)
	assert.Equal(t, 0, rb.Count(testutil.OpRange))
}

func TestDownloader_Get(t *testing.T) {
	data := testutil.NewTestDataGenerator(5).Payload(100)
	_, rb := seeded(t, data)
	tracker := &testutil.MockProgressTracker{}

	req := request(32)
	req.Progress = tracker
	got, result, err := New(rb).Get(context.Background(), req)

	require.NoError(t, err)
	assert.Equal(t, data, got)
	assert.Equal(t, 4, result.Ranges)
	assert.NotEmpty(t, result.ETag)
	assert.True(t, tracker.CompleteCalled)
	assert.False(t, tracker.ErrorCalled)
	assert.Equal(t, int64(100), tracker.BytesTransferred)
	assert.Equal(t, int64(100), tracker.TotalBytes)
}

func TestDownloader_MissingObject(t *testing.T) {
	rb := testutil.NewRecordingBackend(nil)
	tracker := &testutil.MockProgressTracker{}

	req := request(16)
	req.Progress = tracker
	_, _, err := New(rb).Get(context.Background(), req)

	require.Error(t, err)
	assert.True(t, s3errors.IsObjectNotFound(err))
	assert.True(t, tracker.ErrorCalled)
	assert.Equal(t, 0, rb.Count(testutil.OpRange))
}

func TestDownloader_InvalidChunkSize(t *testing.T) {
	_, rb := seeded(t, []byte("data"))

	_, _, err := New(rb).Get(context.Background(), request(0))

	require.Error(t, err)
	assert.True(t, s3errors.IsInvalidInput(err))
	assert.Equal(t, 0, rb.Count(testutil.OpRange))
}

func TestDownloader_TransientRangeFailureIsRetried(t *testing.T) {
	data := testutil.NewTestDataGenerator(9).Payload(48)
	mem, rb := seeded(t, data)

	var failed atomic.Bool
	rb.RangeFunc = func(ctx context.Context, bucket, key string, r s3types.ByteRange) ([]byte, error) {
		if r.Start == 16 && failed.CompareAndSwap(false, true) {
			return nil, errors.New("connection reset")
		}
		return mem.GetObjectRange(ctx, bucket, key, r)
	}

	var retries atomic.Int32
	got, _, err := New(rb, WithRetryObserver(func() { retries.Add(1) })).Get(context.Background(), request(16))

	require.NoError(t, err)
	assert.Equal(t, data, got)
	assert.Equal(t, int32(1), retries.Load())
	assert.Equal(t, 2, rb.RangeCalls(s3types.ByteRange{Start: 16, End: 31}))
}

func TestDownloader_RetriesExhausted(t *testing.T) {
	_, rb := seeded(t, testutil.NewTestDataGenerator(3).Payload(32))
	boom := errors.New("boom")
	rb.RangeFunc = func(ctx context.Context, bucket, key string, r s3types.ByteRange) ([]byte, error) {
		return nil, boom
	}

	var buf bytes.Buffer
	_, err := New(rb).Download(context.Background(), request(16), &buf)

	require.Error(t, err)
	assert.ErrorIs(t, err, boom)
	assert.True(t, s3errors.IsPartFailure(err))

	var partErr *s3errors.PartError
	require.ErrorAs(t, err, &partErr)
	assert.Equal(t, 3, partErr.Attempts)
}

func TestDownloader_WriterError(t *testing.T) {
	_, rb := seeded(t, testutil.NewTestDataGenerator(4).Payload(64))
	diskFull := errors.New("disk full")

	_, err := New(rb).Download(context.Background(), request(16), failingWriter{err: diskFull})

	require.Error(t, err)
	assert.ErrorIs(t, err, diskFull)
}

func TestDownloader_ObjectTimeout(t *testing.T) {
	_, rb := seeded(t, testutil.NewTestDataGenerator(6).Payload(32))
	rb.RangeFunc = func(ctx context.Context, bucket, key string, r s3types.ByteRange) ([]byte, error) {
		<-ctx.Done()
		return nil, ctx.Err()
	}

	req := request(16)
	req.ObjectTimeout = 20 * time.Millisecond
	_, _, err := New(rb).Get(context.Background(), req)

	require.Error(t, err)
	assert.ErrorIs(t, err, s3errors.ErrTimeout)
}

func TestDownloader_CallerCancellation(t *testing.T) {
	_, rb := seeded(t, testutil.NewTestDataGenerator(6).Payload(32))
	ctx, cancel := context.WithCancel(context.Background())
	rb.RangeFunc = func(rctx context.Context, bucket, key string, r s3types.ByteRange) ([]byte, error) {
		cancel()
		<-rctx.Done()
		return nil, rctx.Err()
	}

	_, _, err := New(rb).Get(ctx, request(16))

	require.Error(t, err)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestDownloader_OpenStreams(t *testing.T) {
	data := testutil.NewTestDataGenerator(8).Payload(90)
	_, rb := seeded(t, data)
	tracker := &testutil.MockProgressTracker{}

	req := request(16)
	req.Progress = tracker
	rc, meta, err := New(rb).Open(context.Background(), req)
	require.NoError(t, err)
	assert.Equal(t, int64(90), meta.ContentLength)

	got, err := io.ReadAll(rc)
	require.NoError(t, err)
	require.NoError(t, rc.Close())

	assert.Equal(t, data, got)
	assert.True(t, tracker.CompleteCalled)
}

func TestDownloader_OpenMissingObjectFailsEagerly(t *testing.T) {
	rb := testutil.NewRecordingBackend(nil)

	rc, _, err := New(rb).Open(context.Background(), request(16))

	assert.Nil(t, rc)
	require.Error(t, err)
	assert.True(t, s3errors.IsObjectNotFound(err))
}

func TestDownloader_OpenReportsRangeFailureOnRead(t *testing.T) {
	_, rb := seeded(t, testutil.NewTestDataGenerator(2).Payload(48))
	rb.RangeFunc = func(ctx context.Context, bucket, key string, r s3types.ByteRange) ([]byte, error) {
		return nil, s3errors.ErrAccessDenied
	}

	rc, _, err := New(rb).Open(context.Background(), request(16))
	require.NoError(t, err)
	defer rc.Close()

	_, err = io.ReadAll(rc)
	require.Error(t, err)
	assert.ErrorIs(t, err, s3errors.ErrAccessDenied)
	assert.Equal(t, 1, rb.RangeCalls(s3types.ByteRange{Start: 0, End: 15}), "permanent errors are not retried")
}

func TestDownloader_OpenCloseEarlyStopsFetching(t *testing.T) {
	_, rb := seeded(t, testutil.NewTestDataGenerator(2).Payload(160))

	req := request(16)
	req.Concurrency = 2
	rc, _, err := New(rb).Open(context.Background(), req)
	require.NoError(t, err)

	head := make([]byte, 8)
	_, err = io.ReadFull(rc, head)
	require.NoError(t, err)
	require.NoError(t, rc.Close())

	assert.Less(t, rb.Count(testutil.OpRange), 10)
}

func TestDownloader_ThroughS3Client(t *testing.T) {
	data := testutil.NewTestDataGenerator(12).Payload(1000)
	client := testutil.NewMockBuilder().WithObject(data, "application/octet-stream").Build()

	var buf bytes.Buffer
	result, err := New(awss3.New(client)).Download(context.Background(), request(256), &buf)

	require.NoError(t, err)
	assert.Equal(t, data, buf.Bytes())
	assert.Equal(t, 4, result.Ranges)
}

type failingWriter struct {
	err error
}

func (w failingWriter) Write([]byte) (int, error) {
	return 0, w.err
}
