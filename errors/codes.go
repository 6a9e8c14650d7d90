package errors

import (
	"context"
	"errors"
	"fmt"
)

// ErrorCode represents a coarse classification of a transfer failure.
// Codes are string-based for debuggability and are used as metric labels.
type ErrorCode string

const (
	// CodeOK indicates no error occurred.
	CodeOK ErrorCode = "OK"

	// CodeNotFound indicates a requested object does not exist.
	CodeNotFound ErrorCode = "NOT_FOUND"

	// CodeForbidden indicates the credentials lack permission for the operation.
	CodeForbidden ErrorCode = "FORBIDDEN"

	// CodeInvalidInput indicates the provided input is invalid or malformed.
	CodeInvalidInput ErrorCode = "INVALID_INPUT"

	// CodeNetwork indicates a backend request failed.
	CodeNetwork ErrorCode = "NETWORK_ERROR"

	// CodeTimeout indicates an operation exceeded its time limit.
	CodeTimeout ErrorCode = "TIMEOUT"

	// CodeCanceled indicates the caller canceled the operation.
	CodeCanceled ErrorCode = "CANCELED"

	// CodePartFailed indicates a part or range could not be transferred.
	CodePartFailed ErrorCode = "PART_FAILED"

	// CodeAbortFailed indicates cleanup of a multipart session failed.
	CodeAbortFailed ErrorCode = "ABORT_FAILED"

	// CodeUnknown indicates an unknown or unclassified error occurred.
	CodeUnknown ErrorCode = "UNKNOWN"
)

// CodeOf classifies err. The most specific cause wins: a part failure caused by
// a missing object reports CodeNotFound.
func CodeOf(err error) ErrorCode {
	switch {
	case err == nil:
		return CodeOK
	case errors.Is(err, context.Canceled):
		return CodeCanceled
	case errors.Is(err, context.DeadlineExceeded), errors.Is(err, ErrTimeout):
		return CodeTimeout
	case errors.Is(err, ErrObjectNotFound):
		return CodeNotFound
	case errors.Is(err, ErrAccessDenied):
		return CodeForbidden
	case errors.Is(err, ErrInvalidInput), errors.Is(err, ErrInvalidRange):
		return CodeInvalidInput
	case errors.Is(err, ErrPartFailed):
		return CodePartFailed
	case errors.Is(err, ErrAbortFailed):
		return CodeAbortFailed
	case errors.Is(err, ErrBackendRequest):
		return CodeNetwork
	default:
		return CodeUnknown
	}
}

// serviceCodes maps S3 error codes, as returned by AWS and S3-compatible
// stores, to the sentinel they represent.
var serviceCodes = map[string]error{
	"NoSuchKey":        ErrObjectNotFound,
	"NotFound":         ErrObjectNotFound,
	"NoSuchUpload":     ErrObjectNotFound,
	"NoSuchBucket":     ErrObjectNotFound,
	"AccessDenied":     ErrAccessDenied,
	"Forbidden":        ErrAccessDenied,
	"InvalidRange":     ErrInvalidRange,
	"InvalidPart":      ErrInvalidInput,
	"InvalidPartOrder": ErrInvalidInput,
	"EntityTooSmall":   ErrInvalidInput,
	"InvalidArgument":  ErrInvalidInput,
}

// FromServiceCode tags err with the sentinel for an S3 error code. Errors with
// an unknown code are returned unchanged.
func FromServiceCode(code string, err error) error {
	sentinel, ok := serviceCodes[code]
	if !ok {
		return err
	}
	return fmt.Errorf("%w: %w", sentinel, err)
}
