package validation

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/input-output-hk/catalyst-forge-libs/aws/s3transfer/errors"
)

func TestValidateBucketName(t *testing.T) {
	tests := []struct {
		name   string
		bucket string
		errMsg string
	}{
		{"valid_simple", "my-bucket", ""},
		{"valid_with_dots", "my.bucket", ""},
		{"valid_min_length", "abc", ""},
		{"valid_max_length", strings.Repeat("a", 63), ""},
		{"valid_leading_digit", "1bucket", ""},

		{"empty", "", "bucket name cannot be empty"},
		{"too_short", "ab", "between 3 and 63 characters"},
		{"too_long", strings.Repeat("a", 64), "between 3 and 63 characters"},
		{"starts_with_hyphen", "-bucket", "cannot start or end with a hyphen or dot"},
		{"ends_with_dot", "bucket.", "cannot start or end with a hyphen or dot"},
		{"uppercase", "MyBucket", "can only contain lowercase letters"},
		{"underscore", "my_bucket", "can only contain lowercase letters"},
		{"ip_address", "192.168.1.1", "formatted as an IP address"},
		{"localhost", "localhost", "reserved word"},
		{"double_dots", "my..bucket", "two adjacent periods or hyphens"},
		{"double_hyphens", "my--bucket", "two adjacent periods or hyphens"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateBucketName(tt.bucket)
			if tt.errMsg == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.ErrorIs(t, err, errors.ErrInvalidInput)
			assert.Contains(t, err.Error(), tt.errMsg)
		})
	}
}

func TestValidateObjectKey(t *testing.T) {
	tests := []struct {
		name   string
		key    string
		errMsg string
	}{
		{"simple", "my-file.txt", ""},
		{"nested", "folder/subfolder/file.txt", ""},
		{"unicode", "файл.txt", ""},
		{"spaces", "file with spaces.txt", ""},

		{"empty", "", "cannot be empty"},
		{"traversal", "../etc/passwd", "path traversal"},
		{"embedded_traversal", "a/../../b", "path traversal"},
		{"absolute", "/etc/passwd", "path traversal"},
		{"windows_absolute", "C:/windows", "path traversal"},
		{"too_long", strings.Repeat("k", 1025), "cannot exceed 1024 bytes"},
		{"control_char", "file\x00name", "control characters"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateObjectKey(tt.key)
			if tt.errMsg == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.True(t, errors.IsInvalidInput(err))
			assert.Contains(t, err.Error(), tt.errMsg)
		})
	}
}

func TestValidateTarget(t *testing.T) {
	assert.NoError(t, ValidateTarget("my-bucket", "a/b.bin"))
	assert.ErrorContains(t, ValidateTarget("B", "a"), "bucket name")
	assert.ErrorContains(t, ValidateTarget("my-bucket", ""), "object key")
}

func TestValidateTransferTuning(t *testing.T) {
	assert.NoError(t, ValidatePartSize(1))
	assert.NoError(t, ValidatePartSize(MaxPartSize))
	assert.ErrorIs(t, ValidatePartSize(0), errors.ErrInvalidInput)
	assert.ErrorIs(t, ValidatePartSize(MaxPartSize+1), errors.ErrInvalidInput)

	assert.NoError(t, ValidateChunkSize(1))
	assert.ErrorIs(t, ValidateChunkSize(0), errors.ErrInvalidInput)
	assert.ErrorIs(t, ValidateChunkSize(-8), errors.ErrInvalidInput)

	assert.NoError(t, ValidateConcurrency(1))
	assert.NoError(t, ValidateConcurrency(MaxConcurrency))
	assert.ErrorIs(t, ValidateConcurrency(0), errors.ErrInvalidInput)
	assert.ErrorIs(t, ValidateConcurrency(MaxConcurrency+1), errors.ErrInvalidInput)

	assert.NoError(t, ValidatePartCount(MaxParts))
	assert.ErrorContains(t, ValidatePartCount(MaxParts+1), "increase the part size")
}

func TestMetadata(t *testing.T) {
	tests := []struct {
		name     string
		metadata map[string]string
		errMsg   string
	}{
		{"nil", nil, ""},
		{"valid", map[string]string{"owner": "ci", "note": "line1\nline2"}, ""},
		{"empty_key", map[string]string{"": "v"}, "cannot be empty"},
		{"reserved_prefix", map[string]string{"X-Amz-Meta": "v"}, "reserved prefix"},
		{"long_key", map[string]string{strings.Repeat("k", 129): "v"}, "cannot exceed 128"},
		{"long_value", map[string]string{"k": strings.Repeat("v", 2049)}, "cannot exceed 2048"},
		{"non_ascii_key", map[string]string{"ключ": "v"}, "printable ASCII"},
		{"control_value", map[string]string{"k": "a\x01b"}, "printable characters"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateMetadata(tt.metadata)
			if tt.errMsg == "" {
				assert.NoError(t, err)
				return
			}
			assert.ErrorContains(t, err, tt.errMsg)
		})
	}
}

func TestSanitizeMetadata(t *testing.T) {
	assert.Nil(t, SanitizeMetadata(nil))

	got := SanitizeMetadata(map[string]string{
		"ke\x07y": "va\x00lue\twith\ttabs\n",
	})
	assert.Equal(t, map[string]string{"key": "value\twith\ttabs\n"}, got)
	assert.NoError(t, ValidateMetadata(got))
}

func TestValidateContentType(t *testing.T) {
	for _, ct := range []string{"", "text/plain", "application/vnd.api+json", "text/html; charset=utf-8"} {
		assert.NoError(t, ValidateContentType(ct), ct)
	}
	for _, ct := range []string{"plain", "/json", "text/"} {
		assert.ErrorIs(t, ValidateContentType(ct), errors.ErrInvalidInput, ct)
	}
}
