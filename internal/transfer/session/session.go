// Package session owns the lifecycle of one multipart upload.
//
// A session moves through
//
//	Initiated -> PartsInFlight -> Completing -> Completed
//	                           \-> Aborting  -> Aborted
//
// and reaches exactly one terminal state. The part list is only appended
// under the session lock, so parts may complete in any order.
package session

import (
	"cmp"
	"context"
	"fmt"
	"log/slog"
	"slices"
	"sync"
	"time"

	"github.com/input-output-hk/catalyst-forge-libs/aws/s3transfer/errors"
	"github.com/input-output-hk/catalyst-forge-libs/aws/s3transfer/s3types"
)

// DefaultAbortTimeout bounds the abort call issued on failure.
const DefaultAbortTimeout = 30 * time.Second

// State is the lifecycle state of a session.
type State int

const (
	Initiated State = iota
	PartsInFlight
	Completing
	Completed
	Aborting
	Aborted
)

func (s State) String() string {
	switch s {
	case Initiated:
		return "initiated"
	case PartsInFlight:
		return "parts_in_flight"
	case Completing:
		return "completing"
	case Completed:
		return "completed"
	case Aborting:
		return "aborting"
	case Aborted:
		return "aborted"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

// Terminal reports whether no further transition is possible.
func (s State) Terminal() bool {
	return s == Completed || s == Aborted
}

// accepting reports whether parts may still be submitted.
func (s State) accepting() bool {
	return s == Initiated || s == PartsInFlight
}

// Outcome is the terminal result of a session: either the stored object or
// the cause of the abort.
type Outcome struct {
	State State

	// Object is set when the session completed
	Object s3types.ObjectID

	// Cause is the failure that aborted the session
	Cause error

	// AbortErr is set when the abort call itself failed
	AbortErr error
}

// Succeeded reports whether the session completed.
func (o Outcome) Succeeded() bool {
	return o.State == Completed
}

// Option configures a session.
type Option func(*Session)

// WithLogger sets the session logger.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Session) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// WithAbortTimeout bounds the detached abort call.
func WithAbortTimeout(d time.Duration) Option {
	return func(s *Session) {
		if d > 0 {
			s.abortTimeout = d
		}
	}
}

// WithObserver registers fn to receive the outcome once the session is terminal.
func WithObserver(fn func(Outcome)) Option {
	return func(s *Session) {
		s.observer = fn
	}
}

// Session tracks one multipart upload on a backend.
type Session struct {
	backend      s3types.Backend
	ref          s3types.SessionRef
	partSize     int64
	logger       *slog.Logger
	abortTimeout time.Duration
	observer     func(Outcome)

	mu       sync.Mutex
	state    State
	parts    []s3types.PartRecord
	last     int32
	inflight int
	outcome  Outcome
}

// Begin opens a multipart upload on the backend. It is not retried.
func Begin(
	ctx context.Context,
	backend s3types.Backend,
	bucket, key string,
	partSize int64,
	objOpts s3types.ObjectOptions,
	opts ...Option,
) (*Session, error) {
	ref, err := backend.BeginMultipartUpload(ctx, bucket, key, objOpts)
	if err != nil {
		return nil, errors.NewObjectError("beginMultipartUpload", bucket, key, err)
	}
	s := newSession(backend, ref, partSize, opts...)
	s.logger.InfoContext(ctx, "multipart upload started",
		"bucket", bucket,
		"key", key,
		"upload_id", ref.ID)
	return s, nil
}

// Resume wraps an already opened multipart upload.
func Resume(backend s3types.Backend, ref s3types.SessionRef, partSize int64, opts ...Option) *Session {
	return newSession(backend, ref, partSize, opts...)
}

func newSession(backend s3types.Backend, ref s3types.SessionRef, partSize int64, opts ...Option) *Session {
	s := &Session{
		backend:      backend,
		ref:          ref,
		partSize:     partSize,
		logger:       slog.New(slog.DiscardHandler),
		abortTimeout: DefaultAbortTimeout,
		state:        Initiated,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Ref returns the backend session reference.
func (s *Session) Ref() s3types.SessionRef {
	return s.ref
}

// PartSize returns the nominal part size of the session.
func (s *Session) PartSize() int64 {
	return s.partSize
}

// State returns the current state.
func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Parts returns the recorded parts ordered by part number.
func (s *Session) Parts() []s3types.PartRecord {
	s.mu.Lock()
	defer s.mu.Unlock()
	return sortedParts(s.parts)
}

// Outcome returns the terminal outcome. It is the zero value until the
// session is terminal.
func (s *Session) Outcome() Outcome {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.outcome
}

// Submit registers part number n as outstanding. Part numbers must start at 1
// and increase by one with each submission.
func (s *Session) Submit(n int32) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.state.accepting() {
		return errors.NewObjectError("submitPart", s.ref.Bucket, s.ref.Key,
			fmt.Errorf("%w: part %d submitted in state %s", errors.ErrSessionClosed, n, s.state))
	}
	if n != s.last+1 {
		return errors.NewObjectError("submitPart", s.ref.Bucket, s.ref.Key,
			fmt.Errorf("%w: part %d submitted after part %d", errors.ErrInvalidInput, n, s.last))
	}
	s.last = n
	s.inflight++
	s.state = PartsInFlight
	return nil
}

// Record appends the acknowledgement of a submitted part. It returns false
// if the session is no longer collecting parts, in which case the record is
// discarded.
func (s *Session) Record(rec s3types.PartRecord) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.inflight--
	if s.state != PartsInFlight {
		return false
	}
	s.parts = append(s.parts, rec)
	return true
}

// Discard marks a submitted part as resolved without a record.
func (s *Session) Discard(int32) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.inflight--
}

// Complete finalizes the upload with the recorded parts in part-number order.
// All submitted parts must be resolved. A session with no parts, or a failed
// finalize call, is aborted and the failure returned.
func (s *Session) Complete(ctx context.Context) (s3types.ObjectID, error) {
	s.mu.Lock()
	if !s.state.accepting() {
		state := s.state
		s.mu.Unlock()
		return s3types.ObjectID{}, errors.NewObjectError("completeMultipartUpload", s.ref.Bucket, s.ref.Key,
			fmt.Errorf("%w: complete called in state %s", errors.ErrInvalidState, state))
	}
	if s.inflight > 0 {
		inflight := s.inflight
		s.mu.Unlock()
		return s3types.ObjectID{}, errors.NewObjectError("completeMultipartUpload", s.ref.Bucket, s.ref.Key,
			fmt.Errorf("%w: %d part(s) still in flight", errors.ErrInvalidState, inflight))
	}
	parts := sortedParts(s.parts)
	if len(parts) == 0 {
		s.mu.Unlock()
		return s3types.ObjectID{}, s.Abort(ctx, errors.NewObjectError("completeMultipartUpload", s.ref.Bucket, s.ref.Key,
			fmt.Errorf("%w: no parts uploaded", errors.ErrInvalidInput)))
	}
	for i, p := range parts {
		if p.PartNumber != int32(i+1) {
			s.mu.Unlock()
			return s3types.ObjectID{}, s.Abort(ctx, errors.NewObjectError("completeMultipartUpload", s.ref.Bucket, s.ref.Key,
				fmt.Errorf("%w: part %d missing", errors.ErrInvalidState, i+1)))
		}
	}
	s.state = Completing
	s.mu.Unlock()

	obj, err := s.backend.CompleteMultipartUpload(ctx, s.ref, parts)
	if err != nil {
		return s3types.ObjectID{}, s.Abort(ctx,
			errors.NewObjectError("completeMultipartUpload", s.ref.Bucket, s.ref.Key, err))
	}

	s.mu.Lock()
	if s.state != Completing {
		cause := s.outcome.Cause
		s.mu.Unlock()
		return s3types.ObjectID{}, cause
	}
	s.state = Completed
	s.outcome = Outcome{State: Completed, Object: obj}
	outcome := s.outcome
	s.mu.Unlock()

	s.logger.InfoContext(ctx, "multipart upload completed",
		"bucket", s.ref.Bucket,
		"key", s.ref.Key,
		"upload_id", s.ref.ID,
		"parts", len(parts))
	s.notify(outcome)
	return obj, nil
}

// Abort discards the upload and returns cause. Only the first call issues
// the backend abort; later calls return their cause unchanged. The abort runs
// detached from ctx cancellation under its own timeout. A failed abort is
// logged and exposed through Outcome, never returned in place of cause.
func (s *Session) Abort(ctx context.Context, cause error) error {
	if cause == nil {
		cause = errors.ErrSessionClosed
	}

	s.mu.Lock()
	if s.state == Completed || s.state == Aborting || s.state == Aborted {
		s.mu.Unlock()
		return cause
	}
	s.state = Aborting
	s.mu.Unlock()

	actx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.abortTimeout)
	defer cancel()

	var abortErr error
	if err := s.backend.AbortMultipartUpload(actx, s.ref); err != nil {
		abortErr = &errors.AbortError{SessionID: s.ref.ID, Err: err}
		s.logger.ErrorContext(ctx, "failed to abort multipart upload",
			"bucket", s.ref.Bucket,
			"key", s.ref.Key,
			"upload_id", s.ref.ID,
			"cause", cause,
			"error", err)
	} else {
		s.logger.WarnContext(ctx, "multipart upload aborted",
			"bucket", s.ref.Bucket,
			"key", s.ref.Key,
			"upload_id", s.ref.ID,
			"cause", cause)
	}

	s.mu.Lock()
	s.state = Aborted
	s.outcome = Outcome{State: Aborted, Cause: cause, AbortErr: abortErr}
	outcome := s.outcome
	s.mu.Unlock()

	s.notify(outcome)
	return cause
}

func (s *Session) notify(o Outcome) {
	if s.observer != nil {
		s.observer(o)
	}
}

func sortedParts(parts []s3types.PartRecord) []s3types.PartRecord {
	out := slices.Clone(parts)
	slices.SortFunc(out, func(a, b s3types.PartRecord) int {
		return cmp.Compare(a.PartNumber, b.PartNumber)
	})
	return out
}
