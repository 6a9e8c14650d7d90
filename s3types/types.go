// Package s3types provides shared type definitions for the s3transfer module.
package s3types

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/go-git/go-billy/v5"
	"github.com/prometheus/client_golang/prometheus"
)

// SessionRef identifies an open multipart upload session on a backend.
type SessionRef struct {
	// ID is the backend-assigned upload id
	ID string

	// Bucket is the target bucket
	Bucket string

	// Key is the target object key
	Key string
}

// ByteRange is an inclusive byte range within an object.
type ByteRange struct {
	Start int64
	End   int64
}

// Len returns the number of bytes covered by the range.
func (r ByteRange) Len() int64 {
	return r.End - r.Start + 1
}

// HeaderValue renders the range as an HTTP Range header value.
func (r ByteRange) HeaderValue() string {
	return fmt.Sprintf("bytes=%d-%d", r.Start, r.End)
}

// Served reports whether a response carrying the Content-Range header value
// contentRange holds the bytes of r. The served end may fall short of r.End
// when the range runs past the object. A missing header means the store
// ignored the Range request and sent the object from its first byte.
func (r ByteRange) Served(contentRange string) bool {
	if contentRange == "" {
		return r.Start == 0
	}
	var start, end int64
	if _, err := fmt.Sscanf(contentRange, "bytes %d-%d/", &start, &end); err != nil {
		return false
	}
	return start == r.Start && end >= start && end <= r.End
}

// PartRecord is the backend acknowledgement of one uploaded part.
type PartRecord struct {
	// PartNumber is the 1-based part number
	PartNumber int32

	// ETag is the entity tag returned for the part
	ETag string

	// Size is the number of bytes in the part
	Size int64
}

// ObjectID identifies a stored object after a successful write.
type ObjectID struct {
	Bucket    string
	Key       string
	ETag      string
	VersionID string
}

// ObjectOptions carries per-object write attributes.
type ObjectOptions struct {
	ContentType string
	Metadata    map[string]string
}

// ObjectMetadata contains metadata about a stored object.
type ObjectMetadata struct {
	// ContentLength is the size of the object in bytes
	ContentLength int64

	// ContentType is the MIME type of the object
	ContentType string

	// ETag is the entity tag for the object
	ETag string

	// LastModified is when the object was last modified
	LastModified time.Time
}

// Object is a listing entry.
type Object struct {
	Key          string
	Size         int64
	ETag         string
	LastModified time.Time
}

// Backend is the capability set the transfer engine needs from an object store.
// Implementations must be safe for concurrent use.
type Backend interface {
	// BeginMultipartUpload opens a multipart upload session
	BeginMultipartUpload(ctx context.Context, bucket, key string, opts ObjectOptions) (SessionRef, error)

	// UploadPart uploads one part and returns its entity tag
	UploadPart(ctx context.Context, ref SessionRef, partNumber int32, body []byte) (string, error)

	// CompleteMultipartUpload finalizes the session from parts ordered by part number
	CompleteMultipartUpload(ctx context.Context, ref SessionRef, parts []PartRecord) (ObjectID, error)

	// AbortMultipartUpload discards the session and any uploaded parts
	AbortMultipartUpload(ctx context.Context, ref SessionRef) error

	// HeadObject returns object metadata without the body
	HeadObject(ctx context.Context, bucket, key string) (ObjectMetadata, error)

	// GetObjectRange returns exactly the bytes covered by r
	GetObjectRange(ctx context.Context, bucket, key string, r ByteRange) ([]byte, error)

	// PutObject stores body as a single object
	PutObject(ctx context.Context, bucket, key string, body []byte, opts ObjectOptions) (ObjectID, error)
}

// Deleter is implemented by backends that can delete objects.
type Deleter interface {
	DeleteObject(ctx context.Context, bucket, key string) error
}

// Lister is implemented by backends that can enumerate objects.
type Lister interface {
	ListKeys(ctx context.Context, bucket, prefix string) ([]Object, error)
}

// BufferSource yields the buffers of an upload input in order.
// Next returns io.EOF once the input is exhausted. Returned buffers are only
// read by the caller and may be reused by the source after the next call.
type BufferSource interface {
	Next(ctx context.Context) ([]byte, error)
}

// ProgressTracker defines the interface for tracking transfer progress.
// Implementations can provide real-time progress updates during uploads and downloads.
type ProgressTracker interface {
	// Update is called periodically with transfer progress
	Update(bytesTransferred, totalBytes int64)

	// Complete is called when the transfer completes successfully
	Complete()

	// Error is called when the transfer fails
	Error(err error)
}

// UploadResult contains the result of an upload operation.
type UploadResult struct {
	// Key is the object key that was uploaded
	Key string

	// Size is the size of the uploaded object in bytes
	Size int64

	// ETag is the entity tag for the uploaded object
	ETag string

	// VersionID is the version ID if versioning is enabled
	VersionID string

	// Parts is the number of parts uploaded; zero for single-shot uploads
	Parts int

	// Duration is how long the upload took
	Duration time.Duration
}

// DownloadResult contains the result of a download operation.
type DownloadResult struct {
	// Key is the object key that was downloaded
	Key string

	// Size is the size of the downloaded object in bytes
	Size int64

	// ETag is the entity tag for the downloaded object
	ETag string

	// Ranges is the number of byte ranges fetched
	Ranges int

	// Duration is how long the download took
	Duration time.Duration
}

// MinioConfig selects the minio-go backend.
type MinioConfig struct {
	Endpoint  string
	AccessKey string
	SecretKey string
	Secure    bool
}

// Configuration types for functional options

// ClientConfig holds configuration for the transfer client.
type ClientConfig struct {
	Region           string
	Endpoint         string
	MaxRetries       int
	Timeout          time.Duration
	ForcePathStyle   bool
	CustomAWSConfig  *aws.Config
	CustomHTTPClient *http.Client
	Minio            *MinioConfig

	// Upload tuning
	Concurrency int
	PartSize    int64

	// Download tuning
	DownloadConcurrency int
	ChunkSize           int64
	RangeRetries        int
	RangeRetryDelay     time.Duration
	RangeRetryJitter    float64
	AttemptTimeout      time.Duration
	ObjectTimeout       time.Duration

	// AbortTimeout bounds the detached abort call
	AbortTimeout time.Duration

	// RequestRate limits backend requests per second; zero disables limiting
	RequestRate  float64
	RequestBurst int

	Logger     *slog.Logger
	Registerer prometheus.Registerer
	Filesystem billy.Filesystem
}

// UploadOptionConfig holds configuration for upload operations via functional options.
type UploadOptionConfig struct {
	ContentType     string
	Metadata        map[string]string
	ProgressTracker ProgressTracker
	PartSize        int64
	Concurrency     int
}

// DownloadOptionConfig holds configuration for download operations via functional options.
type DownloadOptionConfig struct {
	ProgressTracker ProgressTracker
	ChunkSize       int64
	Concurrency     int
}

// ListOptionConfig holds configuration for list operations via functional options.
type ListOptionConfig struct {
	Prefix string
}

// Option is a functional option for configuring the transfer client.
type (
	Option func(*ClientConfig)
	// UploadOption is a functional option for configuring upload operations.
	UploadOption func(*UploadOptionConfig)
	// DownloadOption is a functional option for configuring download operations.
	DownloadOption func(*DownloadOptionConfig)
	// ListOption is a functional option for configuring list operations.
	ListOption func(*ListOptionConfig)
)
