package session

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	s3errors "github.com/input-output-hk/catalyst-forge-libs/aws/s3transfer/errors"
	"github.com/input-output-hk/catalyst-forge-libs/aws/s3transfer/internal/testutil"
	"github.com/input-output-hk/catalyst-forge-libs/aws/s3transfer/memory"
	"github.com/input-output-hk/catalyst-forge-libs/aws/s3transfer/s3types"
)

func begin(t *testing.T, rb *testutil.RecordingBackend, opts ...Option) *Session {
	t.Helper()
	s, err := Begin(context.Background(), rb, "bucket", "key", 4, s3types.ObjectOptions{}, opts...)
	require.NoError(t, err)
	return s
}

func uploadPart(t *testing.T, s *Session, rb *testutil.RecordingBackend, n int32, body string) {
	t.Helper()
	require.NoError(t, s.Submit(n))
	etag, err := rb.UploadPart(context.Background(), s.Ref(), n, []byte(body))
	require.NoError(t, err)
	s.Record(s3types.PartRecord{PartNumber: n, ETag: etag, Size: int64(len(body))})
}

func TestSession_CompleteHappyPath(t *testing.T) {
	mem := memory.New()
	rb := testutil.NewRecordingBackend(mem)
	var observed []Outcome
	s := begin(t, rb, WithObserver(func(o Outcome) { observed = append(observed, o) }))

	assert.Equal(t, Initiated, s.State())
	uploadPart(t, s, rb, 1, "abcd")
	assert.Equal(t, PartsInFlight, s.State())
	uploadPart(t, s, rb, 2, "ef")

	obj, err := s.Complete(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "key", obj.Key)
	assert.Equal(t, Completed, s.State())
	assert.True(t, s.Outcome().Succeeded())
	require.Len(t, observed, 1)
	assert.Equal(t, Completed, observed[0].State)

	data, ok := mem.Object("bucket", "key")
	require.True(t, ok)
	assert.Equal(t, "abcdef", string(data))
}

func TestSession_RecordsOutOfOrderCompletions(t *testing.T) {
	rb := testutil.NewRecordingBackend(nil)
	s := begin(t, rb)

	etags := map[int32]string{}
	for n := int32(1); n <= 5; n++ {
		require.NoError(t, s.Submit(n))
		etag, err := rb.UploadPart(context.Background(), s.Ref(), n, []byte{byte('a' + n)})
		require.NoError(t, err)
		etags[n] = etag
	}

	var wg sync.WaitGroup
	for n := int32(5); n >= 1; n-- {
		wg.Add(1)
		go func(n int32) {
			defer wg.Done()
			s.Record(s3types.PartRecord{PartNumber: n, ETag: etags[n], Size: 1})
		}(n)
	}
	wg.Wait()

	_, err := s.Complete(context.Background())
	require.NoError(t, err)

	completed := rb.CompletedParts()
	require.Len(t, completed, 1)
	for i, p := range completed[0] {
		assert.Equal(t, int32(i+1), p.PartNumber)
	}
}

func TestSession_SubmitRules(t *testing.T) {
	rb := testutil.NewRecordingBackend(nil)
	s := begin(t, rb)

	err := s.Submit(2)
	assert.ErrorIs(t, err, s3errors.ErrInvalidInput, "part numbers start at 1")

	require.NoError(t, s.Submit(1))
	assert.ErrorIs(t, s.Submit(1), s3errors.ErrInvalidInput, "part numbers strictly increase")
	s.Discard(1)

	_ = s.Abort(context.Background(), errors.New("stop"))
	assert.ErrorIs(t, s.Submit(2), s3errors.ErrSessionClosed)
}

func TestSession_CompleteWithPartsInFlight(t *testing.T) {
	rb := testutil.NewRecordingBackend(nil)
	s := begin(t, rb)
	require.NoError(t, s.Submit(1))

	_, err := s.Complete(context.Background())
	assert.ErrorIs(t, err, s3errors.ErrInvalidState)
	assert.Equal(t, PartsInFlight, s.State())
	assert.Equal(t, 0, rb.Count(testutil.OpComplete))
}

func TestSession_CompleteWithoutPartsAborts(t *testing.T) {
	mem := memory.New()
	rb := testutil.NewRecordingBackend(mem)
	s := begin(t, rb)

	_, err := s.Complete(context.Background())
	assert.ErrorIs(t, err, s3errors.ErrInvalidInput)
	assert.Equal(t, Aborted, s.State())
	assert.Equal(t, 1, rb.Count(testutil.OpAbort))
	assert.Equal(t, 0, rb.Count(testutil.OpComplete))
	assert.Equal(t, 0, mem.OpenUploads())
}

func TestSession_CompleteFailureAborts(t *testing.T) {
	rb := testutil.NewRecordingBackend(nil)
	finalizeErr := errors.New("internal error")
	rb.CompleteFunc = func(context.Context, s3types.SessionRef, []s3types.PartRecord) (s3types.ObjectID, error) {
		return s3types.ObjectID{}, finalizeErr
	}
	s := begin(t, rb)
	uploadPart(t, s, rb, 1, "x")

	_, err := s.Complete(context.Background())
	assert.ErrorIs(t, err, finalizeErr)
	assert.Equal(t, Aborted, s.State())
	assert.Equal(t, 1, rb.Count(testutil.OpAbort))

	out := s.Outcome()
	assert.False(t, out.Succeeded())
	assert.ErrorIs(t, out.Cause, finalizeErr)
	assert.NoError(t, out.AbortErr)
}

func TestSession_AbortIsGuarded(t *testing.T) {
	rb := testutil.NewRecordingBackend(nil)
	release := make(chan struct{})
	rb.AbortFunc = func(ctx context.Context, ref s3types.SessionRef) error {
		<-release
		return rb.Inner.AbortMultipartUpload(ctx, ref)
	}
	s := begin(t, rb)

	causes := make([]error, 8)
	var wg sync.WaitGroup
	for i := range causes {
		causes[i] = errors.New("failure")
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			assert.Same(t, causes[i], s.Abort(context.Background(), causes[i]))
		}(i)
	}
	time.Sleep(10 * time.Millisecond)
	close(release)
	wg.Wait()

	assert.Equal(t, 1, rb.Count(testutil.OpAbort))
	assert.Equal(t, Aborted, s.State())
}

func TestSession_AbortFailureDoesNotReplaceCause(t *testing.T) {
	rb := testutil.NewRecordingBackend(nil)
	abortErr := errors.New("abort rejected")
	rb.AbortFunc = func(context.Context, s3types.SessionRef) error { return abortErr }
	s := begin(t, rb)

	cause := errors.New("part 2 failed")
	err := s.Abort(context.Background(), cause)
	assert.Same(t, cause, err)

	out := s.Outcome()
	assert.Equal(t, Aborted, out.State)
	assert.Same(t, cause, out.Cause)
	assert.ErrorIs(t, out.AbortErr, abortErr)
	assert.ErrorIs(t, out.AbortErr, s3errors.ErrAbortFailed)

	// no retry of the abort
	_ = s.Abort(context.Background(), cause)
	assert.Equal(t, 1, rb.Count(testutil.OpAbort))
}

func TestSession_AbortDetachedFromCallerCancellation(t *testing.T) {
	rb := testutil.NewRecordingBackend(nil)
	var abortCtxErr error
	rb.AbortFunc = func(ctx context.Context, ref s3types.SessionRef) error {
		abortCtxErr = ctx.Err()
		_, hasDeadline := ctx.Deadline()
		assert.True(t, hasDeadline)
		return nil
	}
	s := begin(t, rb, WithAbortTimeout(time.Second))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	err := s.Abort(ctx, ctx.Err())

	assert.ErrorIs(t, err, context.Canceled)
	assert.NoError(t, abortCtxErr)
}

func TestSession_RecordAfterAbortIsDiscarded(t *testing.T) {
	rb := testutil.NewRecordingBackend(nil)
	s := begin(t, rb)
	require.NoError(t, s.Submit(1))

	_ = s.Abort(context.Background(), errors.New("canceled"))
	assert.False(t, s.Record(s3types.PartRecord{PartNumber: 1, ETag: "x"}))
	assert.Empty(t, s.Parts())
}

func TestSession_CompleteAfterTerminal(t *testing.T) {
	rb := testutil.NewRecordingBackend(nil)
	s := begin(t, rb)
	_ = s.Abort(context.Background(), errors.New("gone"))

	_, err := s.Complete(context.Background())
	assert.ErrorIs(t, err, s3errors.ErrInvalidState)
	assert.Equal(t, 0, rb.Count(testutil.OpComplete))
}

func TestBegin_Failure(t *testing.T) {
	rb := testutil.NewRecordingBackend(nil)
	denied := errors.New("denied")
	rb.BeginFunc = func(context.Context, string, string, s3types.ObjectOptions) (s3types.SessionRef, error) {
		return s3types.SessionRef{}, denied
	}

	_, err := Begin(context.Background(), rb, "b", "k", 4, s3types.ObjectOptions{})
	assert.ErrorIs(t, err, denied)
	assert.Equal(t, 1, rb.Count(testutil.OpBegin), "begin is not retried")
}

func TestState_String(t *testing.T) {
	tests := []struct {
		state    State
		expected string
		terminal bool
	}{
		{Initiated, "initiated", false},
		{PartsInFlight, "parts_in_flight", false},
		{Completing, "completing", false},
		{Completed, "completed", true},
		{Aborting, "aborting", false},
		{Aborted, "aborted", true},
		{State(42), "state(42)", false},
	}
	for _, tt := range tests {
		t.Run(tt.expected, func(t *testing.T) {
			assert.Equal(t, tt.expected, tt.state.String())
			assert.Equal(t, tt.terminal, tt.state.Terminal())
		})
	}
}
