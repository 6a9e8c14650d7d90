package validation

import (
	"fmt"
	"path/filepath"
	"regexp"
	"strings"
	"unicode"

	"github.com/input-output-hk/catalyst-forge-libs/aws/s3transfer/errors"
)

// S3 multipart limits.
const (
	// MaxPartSize is the largest part S3 accepts.
	MaxPartSize = 5 * 1024 * 1024 * 1024

	// MaxParts is the largest part number S3 accepts.
	MaxParts = 10000

	// MaxConcurrency bounds the transfer window.
	MaxConcurrency = 1000

	maxKeyLength           = 1024
	maxMetadataKeyLength   = 128
	maxMetadataValueLength = 2048
)

var mimePattern = regexp.MustCompile(`^[a-zA-Z0-9][a-zA-Z0-9\-+.]*/[a-zA-Z0-9][a-zA-Z0-9\-+.]*(\s*;.*)?$`)

func bucketError(bucket, message string) error {
	return errors.NewError("validateBucketName", errors.ErrInvalidInput).
		WithBucket(bucket).
		WithMessage(message)
}

func keyError(key, message string) error {
	return errors.NewError("validateObjectKey", errors.ErrInvalidInput).
		WithKey(key).
		WithMessage(message)
}

// ValidateBucketName validates that a bucket name is DNS-compliant according to S3 rules.
func ValidateBucketName(bucket string) error {
	switch {
	case bucket == "":
		return bucketError(bucket, "bucket name cannot be empty")
	case len(bucket) < 3 || len(bucket) > 63:
		return bucketError(bucket, "bucket name must be between 3 and 63 characters long")
	}

	for _, char := range bucket {
		if !isValidBucketChar(char) {
			return bucketError(bucket, "bucket name can only contain lowercase letters, numbers, dots, and hyphens")
		}
	}

	first, last := bucket[0], bucket[len(bucket)-1]
	switch {
	case first == '-' || first == '.' || last == '-' || last == '.':
		return bucketError(bucket, "bucket name cannot start or end with a hyphen or dot")
	case isIPAddress(bucket):
		return bucketError(bucket, "bucket name cannot be formatted as an IP address")
	case strings.Contains(bucket, "..") || strings.Contains(bucket, "--"):
		return bucketError(bucket, "bucket name cannot contain two adjacent periods or hyphens")
	case bucket == "localhost":
		return bucketError(bucket, "bucket name cannot be a reserved word")
	}

	return nil
}

// ValidateObjectKey rejects empty or oversized keys, path traversal sequences
// and control characters.
func ValidateObjectKey(key string) error {
	switch {
	case key == "":
		return keyError(key, "object key cannot be empty")
	case hasPathTraversal(key):
		return keyError(key, "object key cannot contain path traversal sequences")
	case len(key) > maxKeyLength:
		return keyError(key, fmt.Sprintf("object key cannot exceed %d bytes", maxKeyLength))
	case strings.IndexFunc(key, unicode.IsControl) >= 0:
		return keyError(key, "object key cannot contain control characters")
	}
	return nil
}

// ValidateTarget validates a bucket and key pair.
func ValidateTarget(bucket, key string) error {
	if err := ValidateBucketName(bucket); err != nil {
		return err
	}
	return ValidateObjectKey(key)
}

// ValidatePartSize checks an upload part size. The backend enforces its own
// minimum for all parts but the last at completion.
func ValidatePartSize(size int64) error {
	if size <= 0 || size > MaxPartSize {
		return errors.NewError("validatePartSize", errors.ErrInvalidInput).
			WithMessage(fmt.Sprintf("part size must be between 1 and %d bytes, got %d", int64(MaxPartSize), size))
	}
	return nil
}

// ValidateChunkSize checks a download range size.
func ValidateChunkSize(size int64) error {
	if size <= 0 {
		return errors.NewError("validateChunkSize", errors.ErrInvalidInput).
			WithMessage(fmt.Sprintf("chunk size must be positive, got %d", size))
	}
	return nil
}

// ValidateConcurrency checks a transfer window size.
func ValidateConcurrency(n int) error {
	if n < 1 || n > MaxConcurrency {
		return errors.NewError("validateConcurrency", errors.ErrInvalidInput).
			WithMessage(fmt.Sprintf("concurrency must be between 1 and %d, got %d", MaxConcurrency, n))
	}
	return nil
}

// ValidatePartCount checks that a multipart upload stays within MaxParts.
func ValidatePartCount(n int32) error {
	if n > MaxParts {
		return errors.NewError("validatePartCount", errors.ErrInvalidInput).
			WithMessage(fmt.Sprintf("upload needs more than %d parts; increase the part size", MaxParts))
	}
	return nil
}

// SanitizeMetadata drops non-printable characters from keys and control
// characters other than newline and tab from values.
func SanitizeMetadata(metadata map[string]string) map[string]string {
	if metadata == nil {
		return nil
	}

	sanitized := make(map[string]string, len(metadata))
	for key, value := range metadata {
		k := strings.Map(func(r rune) rune {
			if unicode.IsPrint(r) {
				return r
			}
			return -1
		}, key)
		v := strings.Map(func(r rune) rune {
			if unicode.IsControl(r) && r != '\n' && r != '\t' {
				return -1
			}
			return r
		}, value)
		sanitized[k] = v
	}
	return sanitized
}

// ValidateMetadata validates metadata keys and values according to S3 rules.
func ValidateMetadata(metadata map[string]string) error {
	for key, value := range metadata {
		if err := validateMetadataKey(key); err != nil {
			return err
		}
		if err := validateMetadataValue(value); err != nil {
			return err
		}
	}
	return nil
}

// ValidateContentType checks that a non-empty content type looks like a MIME type.
func ValidateContentType(contentType string) error {
	if contentType == "" {
		return nil
	}
	if !mimePattern.MatchString(contentType) {
		return errors.NewError("validateContentType", errors.ErrInvalidInput).
			WithMessage("content type must be a valid MIME type")
	}
	return nil
}

func isValidBucketChar(char rune) bool {
	return (char >= '0' && char <= '9') || (char >= 'a' && char <= 'z') || char == '.' || char == '-'
}

// isIPAddress reports whether s has the shape of a dotted IPv4 address.
func isIPAddress(s string) bool {
	parts := strings.Split(s, ".")
	if len(parts) != 4 {
		return false
	}

	for _, part := range parts {
		if part == "" {
			return true
		}
		num := 0
		for _, char := range part {
			if char < '0' || char > '9' {
				return false
			}
			num = num*10 + int(char-'0')
		}
		if num > 255 {
			return false
		}
	}
	return true
}

func hasPathTraversal(key string) bool {
	if strings.Contains(key, "..") {
		return true
	}

	cleaned := filepath.Clean(key)
	if strings.HasPrefix(cleaned, "/") {
		return true
	}

	// Windows drive letters
	return len(cleaned) >= 3 && cleaned[1] == ':' && (cleaned[2] == '\\' || cleaned[2] == '/')
}

func validateMetadataKey(key string) error {
	fail := func(message string) error {
		return errors.NewError("validateMetadata", errors.ErrInvalidInput).WithMessage(message)
	}

	if key == "" {
		return fail("metadata key cannot be empty")
	}
	if len(key) > maxMetadataKeyLength {
		return fail(fmt.Sprintf("metadata key cannot exceed %d characters", maxMetadataKeyLength))
	}
	lower := strings.ToLower(key)
	for _, prefix := range []string{"aws:", "x-amz-", "x-amz:"} {
		if strings.HasPrefix(lower, prefix) {
			return fail("metadata key cannot start with reserved prefix: " + prefix)
		}
	}
	for _, char := range key {
		if char < 32 || char > 126 {
			return fail("metadata key can only contain printable ASCII characters")
		}
	}
	return nil
}

func validateMetadataValue(value string) error {
	if len(value) > maxMetadataValueLength {
		return errors.NewError("validateMetadata", errors.ErrInvalidInput).
			WithMessage(fmt.Sprintf("metadata value cannot exceed %d characters", maxMetadataValueLength))
	}
	for _, char := range value {
		if !unicode.IsPrint(char) && char != '\n' && char != '\t' {
			return errors.NewError("validateMetadata", errors.ErrInvalidInput).
				WithMessage("metadata value can only contain printable characters")
		}
	}
	return nil
}
