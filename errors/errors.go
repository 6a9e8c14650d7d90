// Package errors provides error types and handling for chunked object transfers.
package errors

import (
	"errors"
	"fmt"

	"github.com/input-output-hk/catalyst-forge-libs/aws/s3transfer/s3types"
)

// Error represents a transfer error with context about the operation that failed.
// It wraps the underlying backend error with additional context for better debugging.
type Error struct {
	// Op is the operation that failed (e.g., "upload", "download", "uploadPart")
	Op string

	// Bucket is the bucket name (if applicable)
	Bucket string

	// Key is the object key (if applicable)
	Key string

	// Err is the underlying error from the backend or other source
	Err error
}

// Error implements the error interface by providing a formatted error message.
func (e *Error) Error() string {
	if e.Bucket != "" && e.Key != "" {
		return fmt.Sprintf("s3transfer.%s %s/%s: %v", e.Op, e.Bucket, e.Key, e.Err)
	}
	if e.Bucket != "" {
		return fmt.Sprintf("s3transfer.%s bucket %s: %v", e.Op, e.Bucket, e.Err)
	}
	if e.Key != "" {
		return fmt.Sprintf("s3transfer.%s object %s: %v", e.Op, e.Key, e.Err)
	}
	return fmt.Sprintf("s3transfer.%s: %v", e.Op, e.Err)
}

// Unwrap returns the underlying error for error chaining support.
func (e *Error) Unwrap() error {
	return e.Err
}

// WithBucket adds bucket context to an existing error.
func (e *Error) WithBucket(bucket string) *Error {
	e.Bucket = bucket
	return e
}

// WithKey adds object key context to an existing error.
func (e *Error) WithKey(key string) *Error {
	e.Key = key
	return e
}

// WithMessage wraps the underlying error with a custom message.
func (e *Error) WithMessage(message string) *Error {
	e.Err = fmt.Errorf("%s: %w", message, e.Err)
	return e
}

// NewError creates a new Error with the given operation and underlying error.
func NewError(op string, err error) *Error {
	return &Error{
		Op:  op,
		Err: err,
	}
}

// NewObjectError creates a new Error with bucket and key context.
func NewObjectError(op, bucket, key string, err error) *Error {
	return &Error{
		Op:     op,
		Bucket: bucket,
		Key:    key,
		Err:    err,
	}
}

// NewBackendError wraps a failed backend call. The result matches both
// ErrBackendRequest and cause under errors.Is.
func NewBackendError(op, bucket, key string, cause error) *Error {
	return NewObjectError(op, bucket, key, fmt.Errorf("%w: %w", ErrBackendRequest, cause))
}

// PartError reports a part upload or range fetch that failed fatally or
// exhausted its retries.
type PartError struct {
	// PartNumber is the 1-based part (or range) ordinal.
	PartNumber int32

	// Range is set for download failures.
	Range *s3types.ByteRange

	// Attempts is the number of backend calls made for this part.
	Attempts int

	// Err is the last error returned by the backend.
	Err error
}

func (e *PartError) Error() string {
	if e.Range != nil {
		return fmt.Sprintf("range %d [%d-%d] failed after %d attempt(s): %v",
			e.PartNumber, e.Range.Start, e.Range.End, e.Attempts, e.Err)
	}
	return fmt.Sprintf("part %d failed after %d attempt(s): %v", e.PartNumber, e.Attempts, e.Err)
}

// Unwrap exposes both ErrPartFailed and the underlying cause.
func (e *PartError) Unwrap() []error {
	return []error{ErrPartFailed, e.Err}
}

// AbortError reports a failed abort of a multipart session.
type AbortError struct {
	SessionID string
	Err       error
}

func (e *AbortError) Error() string {
	return fmt.Sprintf("abort multipart upload %s: %v", e.SessionID, e.Err)
}

// Unwrap exposes both ErrAbortFailed and the underlying cause.
func (e *AbortError) Unwrap() []error {
	return []error{ErrAbortFailed, e.Err}
}

// Sentinel errors for common transfer failures.
// These can be used with errors.Is() for error checking.
var (
	// ErrInvalidInput indicates that the provided input is invalid
	ErrInvalidInput = errors.New("s3transfer: invalid input")

	// ErrBackendRequest indicates a single backend call failed
	ErrBackendRequest = errors.New("s3transfer: backend request failed")

	// ErrPartFailed indicates a part or range failed fatally or exhausted retries
	ErrPartFailed = errors.New("s3transfer: part transfer failed")

	// ErrAbortFailed indicates that aborting a multipart session failed
	ErrAbortFailed = errors.New("s3transfer: abort failed")

	// ErrSessionClosed indicates a submission after the session left the accepting states
	ErrSessionClosed = errors.New("s3transfer: session closed")

	// ErrInvalidState indicates an illegal session state transition
	ErrInvalidState = errors.New("s3transfer: invalid session state")

	// ErrObjectNotFound indicates that the requested object does not exist
	ErrObjectNotFound = errors.New("s3transfer: object not found")

	// ErrAccessDenied indicates that access to the resource is denied
	ErrAccessDenied = errors.New("s3transfer: access denied")

	// ErrInvalidRange indicates that the requested range is invalid
	ErrInvalidRange = errors.New("s3transfer: invalid range")

	// ErrShortRead indicates a range fetch returned fewer bytes than requested
	ErrShortRead = errors.New("s3transfer: short range read")

	// ErrTimeout indicates that the operation timed out
	ErrTimeout = errors.New("s3transfer: operation timeout")

	// ErrNotImplemented indicates that the backend lacks the requested capability
	ErrNotImplemented = errors.New("s3transfer: not implemented")
)

// IsObjectNotFound checks if an error indicates that an object was not found.
func IsObjectNotFound(err error) bool {
	return errors.Is(err, ErrObjectNotFound)
}

// IsInvalidInput checks if an error indicates invalid input.
func IsInvalidInput(err error) bool {
	return errors.Is(err, ErrInvalidInput)
}

// IsPartFailure checks if an error indicates a failed part or range.
func IsPartFailure(err error) bool {
	return errors.Is(err, ErrPartFailed)
}

// IsAbortFailure checks if an error indicates a failed session abort.
func IsAbortFailure(err error) bool {
	return errors.Is(err, ErrAbortFailed)
}

// IsPermanent reports whether retrying err cannot succeed.
func IsPermanent(err error) bool {
	return errors.Is(err, ErrObjectNotFound) ||
		errors.Is(err, ErrAccessDenied) ||
		errors.Is(err, ErrInvalidRange) ||
		errors.Is(err, ErrInvalidInput)
}
