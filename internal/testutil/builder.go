// Package testutil provides a builder for creating mock S3 clients.
package testutil

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"sync"

	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/aws/smithy-go"
)

// MockBuilder provides a fluent interface for building MockS3Client instances.
type MockBuilder struct {
	client *MockS3Client
}

// NewMockBuilder creates a new MockBuilder.
func NewMockBuilder() *MockBuilder {
	return &MockBuilder{
		client: &MockS3Client{},
	}
}

// Build returns the configured MockS3Client.
func (b *MockBuilder) Build() *MockS3Client {
	return b.client
}

// WithPutObject configures the PutObject behavior.
func (b *MockBuilder) WithPutObject(
	fn func(context.Context, *s3.PutObjectInput) (*s3.PutObjectOutput, error),
) *MockBuilder {
	b.client.PutObjectFunc = func(ctx context.Context, params *s3.PutObjectInput, _ ...func(*s3.Options)) (*s3.PutObjectOutput, error) {
		return fn(ctx, params)
	}
	return b
}

// WithGetObject configures the GetObject behavior.
func (b *MockBuilder) WithGetObject(
	fn func(context.Context, *s3.GetObjectInput) (*s3.GetObjectOutput, error),
) *MockBuilder {
	b.client.GetObjectFunc = func(ctx context.Context, params *s3.GetObjectInput, _ ...func(*s3.Options)) (*s3.GetObjectOutput, error) {
		return fn(ctx, params)
	}
	return b
}

// WithHeadObject configures the HeadObject behavior.
func (b *MockBuilder) WithHeadObject(
	fn func(context.Context, *s3.HeadObjectInput) (*s3.HeadObjectOutput, error),
) *MockBuilder {
	b.client.HeadObjectFunc = func(ctx context.Context, params *s3.HeadObjectInput, _ ...func(*s3.Options)) (*s3.HeadObjectOutput, error) {
		return fn(ctx, params)
	}
	return b
}

// WithUploadPart configures the UploadPart behavior.
func (b *MockBuilder) WithUploadPart(
	fn func(context.Context, *s3.UploadPartInput) (*s3.UploadPartOutput, error),
) *MockBuilder {
	b.client.UploadPartFunc = func(ctx context.Context, params *s3.UploadPartInput, _ ...func(*s3.Options)) (*s3.UploadPartOutput, error) {
		return fn(ctx, params)
	}
	return b
}

// WithObject configures HeadObject and ranged GetObject to serve data.
// Range headers of the form "bytes=a-b" are honored; an end past the
// object is clamped as S3 does.
func (b *MockBuilder) WithObject(data []byte, contentType string) *MockBuilder {
	b.client.HeadObjectFunc = func(ctx context.Context, params *s3.HeadObjectInput, _ ...func(*s3.Options)) (*s3.HeadObjectOutput, error) {
		out := CreateHeadObjectOutput(int64(len(data)), FixedTime, contentType)
		out.ETag = StringPtr(CalculateETag(data))
		return out, nil
	}
	b.client.GetObjectFunc = func(ctx context.Context, params *s3.GetObjectInput, _ ...func(*s3.Options)) (*s3.GetObjectOutput, error) {
		if params.Range == nil {
			return CreateGetObjectOutput(data, contentType), nil
		}
		var start, end int64
		if _, err := fmt.Sscanf(*params.Range, "bytes=%d-%d", &start, &end); err != nil {
			return nil, &smithy.GenericAPIError{Code: "InvalidArgument", Message: err.Error()}
		}
		if start >= int64(len(data)) {
			return nil, &smithy.GenericAPIError{Code: "InvalidRange", Message: "range not satisfiable"}
		}
		end = min(end, int64(len(data))-1)
		out := CreateGetObjectOutput(data[start:end+1], contentType)
		out.ContentRange = StringPtr(fmt.Sprintf("bytes %d-%d/%d", start, end, len(data)))
		return out, nil
	}
	return b
}

// WithSuccessfulUpload configures the mock to always return successful uploads.
func (b *MockBuilder) WithSuccessfulUpload() *MockBuilder {
	b.client.PutObjectFunc = func(ctx context.Context, params *s3.PutObjectInput, _ ...func(*s3.Options)) (*s3.PutObjectOutput, error) {
		var body []byte
		if params.Body != nil {
			body, _ = io.ReadAll(params.Body)
		}
		return CreatePutObjectOutput(CalculateETag(body)), nil
	}
	return b
}

// WithFailedUpload configures the mock to always return upload failures.
func (b *MockBuilder) WithFailedUpload(err error) *MockBuilder {
	b.client.PutObjectFunc = func(ctx context.Context, params *s3.PutObjectInput, _ ...func(*s3.Options)) (*s3.PutObjectOutput, error) {
		return nil, err
	}
	return b
}

// WithObjectNotFound configures the mock to return object not found errors.
func (b *MockBuilder) WithObjectNotFound() *MockBuilder {
	b.client.GetObjectFunc = func(ctx context.Context, params *s3.GetObjectInput, _ ...func(*s3.Options)) (*s3.GetObjectOutput, error) {
		return nil, &types.NoSuchKey{Message: StringPtr("The specified key does not exist.")}
	}
	b.client.HeadObjectFunc = func(ctx context.Context, params *s3.HeadObjectInput, _ ...func(*s3.Options)) (*s3.HeadObjectOutput, error) {
		return nil, &types.NotFound{Message: StringPtr("Not Found")}
	}
	return b
}

// WithAccessDenied configures the mock to return access denied errors.
func (b *MockBuilder) WithAccessDenied() *MockBuilder {
	accessDeniedErr := &smithy.GenericAPIError{Code: "AccessDenied", Message: "Access Denied"}

	b.client.PutObjectFunc = func(ctx context.Context, params *s3.PutObjectInput, _ ...func(*s3.Options)) (*s3.PutObjectOutput, error) {
		return nil, accessDeniedErr
	}
	b.client.GetObjectFunc = func(ctx context.Context, params *s3.GetObjectInput, _ ...func(*s3.Options)) (*s3.GetObjectOutput, error) {
		return nil, accessDeniedErr
	}
	b.client.HeadObjectFunc = func(ctx context.Context, params *s3.HeadObjectInput, _ ...func(*s3.Options)) (*s3.HeadObjectOutput, error) {
		return nil, accessDeniedErr
	}
	b.client.CreateMultipartUploadFunc = func(ctx context.Context, params *s3.CreateMultipartUploadInput, _ ...func(*s3.Options)) (*s3.CreateMultipartUploadOutput, error) {
		return nil, accessDeniedErr
	}
	return b
}

// MultipartRecorder captures what a mocked multipart upload received.
type MultipartRecorder struct {
	mu        sync.Mutex
	Parts     map[int32][]byte
	Completed []types.CompletedPart
	Aborted   int
}

// Assembled returns the completed parts concatenated in completion order.
func (r *MultipartRecorder) Assembled() []byte {
	r.mu.Lock()
	defer r.mu.Unlock()

	var buf bytes.Buffer
	for _, p := range r.Completed {
		buf.Write(r.Parts[*p.PartNumber])
	}
	return buf.Bytes()
}

// WithMultipartUpload configures the mock for multipart upload operations and
// returns a recorder of the parts it receives.
func (b *MockBuilder) WithMultipartUpload() (*MockBuilder, *MultipartRecorder) {
	uploadID := "test-upload-id"
	rec := &MultipartRecorder{Parts: make(map[int32][]byte)}

	b.client.CreateMultipartUploadFunc = func(ctx context.Context, params *s3.CreateMultipartUploadInput, _ ...func(*s3.Options)) (*s3.CreateMultipartUploadOutput, error) {
		return &s3.CreateMultipartUploadOutput{
			UploadId: StringPtr(uploadID),
			Bucket:   params.Bucket,
			Key:      params.Key,
		}, nil
	}

	b.client.UploadPartFunc = func(ctx context.Context, params *s3.UploadPartInput, _ ...func(*s3.Options)) (*s3.UploadPartOutput, error) {
		var body []byte
		if params.Body != nil {
			body, _ = io.ReadAll(params.Body)
		}
		rec.mu.Lock()
		rec.Parts[*params.PartNumber] = body
		rec.mu.Unlock()
		return &s3.UploadPartOutput{
			ETag: StringPtr(CalculateETag(body)),
		}, nil
	}

	b.client.CompleteMultipartUploadFunc = func(ctx context.Context, params *s3.CompleteMultipartUploadInput, _ ...func(*s3.Options)) (*s3.CompleteMultipartUploadOutput, error) {
		rec.mu.Lock()
		rec.Completed = params.MultipartUpload.Parts
		rec.mu.Unlock()
		return &s3.CompleteMultipartUploadOutput{
			ETag:   StringPtr(`"multipart-etag"`),
			Bucket: params.Bucket,
			Key:    params.Key,
		}, nil
	}

	b.client.AbortMultipartUploadFunc = func(ctx context.Context, params *s3.AbortMultipartUploadInput, _ ...func(*s3.Options)) (*s3.AbortMultipartUploadOutput, error) {
		rec.mu.Lock()
		rec.Aborted++
		rec.mu.Unlock()
		return &s3.AbortMultipartUploadOutput{}, nil
	}

	return b, rec
}
