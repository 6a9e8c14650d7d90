package s3transfer

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/go-git/go-billy/v5"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/input-output-hk/catalyst-forge-libs/aws/s3transfer/s3types"
)

// WithRegion sets the AWS region for S3 operations.
// If not specified, uses the default AWS region from the credential chain.
func WithRegion(region string) s3types.Option {
	return func(c *s3types.ClientConfig) {
		c.Region = region
	}
}

// WithEndpoint sets a custom S3 endpoint URL.
// This is useful for S3-compatible services or local testing with LocalStack.
func WithEndpoint(endpoint string) s3types.Option {
	return func(c *s3types.ClientConfig) {
		c.Endpoint = endpoint
	}
}

// WithForcePathStyle forces the use of path-style URLs instead of virtual-hosted style.
// This is required for S3-compatible services that don't support virtual hosting.
func WithForcePathStyle(forcePathStyle bool) s3types.Option {
	return func(c *s3types.ClientConfig) {
		c.ForcePathStyle = forcePathStyle
	}
}

// WithAWSConfig allows providing a custom AWS configuration.
// This overrides the default configuration loading behavior.
func WithAWSConfig(config *aws.Config) s3types.Option {
	return func(c *s3types.ClientConfig) {
		c.CustomAWSConfig = config
	}
}

// WithCustomHTTPClient allows providing a custom HTTP client.
// For MinIO endpoints only its transport is used.
func WithCustomHTTPClient(client *http.Client) s3types.Option {
	return func(c *s3types.ClientConfig) {
		c.CustomHTTPClient = client
	}
}

// WithMaxRetries sets the maximum number of SDK-level attempts per request.
// Default is 3.
func WithMaxRetries(maxRetries int) s3types.Option {
	return func(c *s3types.ClientConfig) {
		c.MaxRetries = maxRetries
	}
}

// WithTimeout sets the HTTP timeout of individual backend requests.
// Default is no timeout (0). Ignored when WithCustomHTTPClient is given.
func WithTimeout(timeout time.Duration) s3types.Option {
	return func(c *s3types.ClientConfig) {
		c.Timeout = timeout
	}
}

// WithMinio selects the minio-go backend for an S3-compatible endpoint
// instead of the AWS SDK.
func WithMinio(cfg s3types.MinioConfig) s3types.Option {
	return func(c *s3types.ClientConfig) {
		c.Minio = &cfg
	}
}

// WithPartSize sets the multipart upload part size. Inputs no larger than
// one part are stored with a single PutObject call. Default is 8MB.
func WithPartSize(partSize int64) s3types.Option {
	return func(c *s3types.ClientConfig) {
		if partSize > 0 {
			c.PartSize = partSize
		}
	}
}

// WithConcurrency sets the number of parts uploaded at once. Default is 5.
func WithConcurrency(concurrency int) s3types.Option {
	return func(c *s3types.ClientConfig) {
		if concurrency > 0 {
			c.Concurrency = concurrency
		}
	}
}

// WithDownloadConcurrency sets the number of byte ranges fetched ahead of
// the reader. Default is 10.
func WithDownloadConcurrency(concurrency int) s3types.Option {
	return func(c *s3types.ClientConfig) {
		if concurrency > 0 {
			c.DownloadConcurrency = concurrency
		}
	}
}

// WithChunkSize sets the size of each downloaded byte range. Default is 8MB.
func WithChunkSize(chunkSize int64) s3types.Option {
	return func(c *s3types.ClientConfig) {
		if chunkSize > 0 {
			c.ChunkSize = chunkSize
		}
	}
}

// WithRangeRetries sets how many times a failed range fetch is retried.
// Default is 10. Zero disables range retries.
func WithRangeRetries(retries int) s3types.Option {
	return func(c *s3types.ClientConfig) {
		if retries >= 0 {
			c.RangeRetries = retries
		}
	}
}

// WithRangeRetryDelay sets the delay between range fetch attempts. Default is 100ms.
func WithRangeRetryDelay(delay time.Duration) s3types.Option {
	return func(c *s3types.ClientConfig) {
		c.RangeRetryDelay = delay
	}
}

// WithRangeRetryJitter sets the fraction by which the retry delay is
// randomized in either direction. Default is 0.25.
func WithRangeRetryJitter(jitter float64) s3types.Option {
	return func(c *s3types.ClientConfig) {
		if jitter >= 0 && jitter <= 1 {
			c.RangeRetryJitter = jitter
		}
	}
}

// WithAttemptTimeout bounds each range fetch attempt. An attempt that
// exceeds it is retried.
func WithAttemptTimeout(timeout time.Duration) s3types.Option {
	return func(c *s3types.ClientConfig) {
		c.AttemptTimeout = timeout
	}
}

// WithObjectTimeout bounds a whole transfer, across every part or range and
// all of their retries. Expiry is reported as ErrTimeout.
func WithObjectTimeout(timeout time.Duration) s3types.Option {
	return func(c *s3types.ClientConfig) {
		c.ObjectTimeout = timeout
	}
}

// WithAbortTimeout bounds the cleanup call that aborts a failed multipart
// upload. Default is 30s.
func WithAbortTimeout(timeout time.Duration) s3types.Option {
	return func(c *s3types.ClientConfig) {
		if timeout > 0 {
			c.AbortTimeout = timeout
		}
	}
}

// WithRequestRate limits backend requests to rps per second with the given
// burst. A burst below 1 is raised to 1.
func WithRequestRate(rps float64, burst int) s3types.Option {
	return func(c *s3types.ClientConfig) {
		c.RequestRate = rps
		c.RequestBurst = max(burst, 1)
	}
}

// WithLogger sets the structured logger. By default nothing is logged.
func WithLogger(logger *slog.Logger) s3types.Option {
	return func(c *s3types.ClientConfig) {
		c.Logger = logger
	}
}

// WithMetricsRegisterer registers transfer metrics with reg.
func WithMetricsRegisterer(reg prometheus.Registerer) s3types.Option {
	return func(c *s3types.ClientConfig) {
		c.Registerer = reg
	}
}

// WithFilesystem sets the filesystem used by UploadFile and DownloadFile.
// If not specified, defaults to the OS filesystem.
func WithFilesystem(filesystem billy.Filesystem) s3types.Option {
	return func(c *s3types.ClientConfig) {
		c.Filesystem = filesystem
	}
}

// WithContentType sets the content type for upload operations.
// When unset it is detected from the first bytes of the input.
func WithContentType(contentType string) s3types.UploadOption {
	return func(c *s3types.UploadOptionConfig) {
		c.ContentType = contentType
	}
}

// WithMetadata sets user metadata for upload operations.
func WithMetadata(metadata map[string]string) s3types.UploadOption {
	return func(c *s3types.UploadOptionConfig) {
		if c.Metadata == nil {
			c.Metadata = make(map[string]string)
		}
		for k, v := range metadata {
			c.Metadata[k] = v
		}
	}
}

// WithProgress sets a progress tracker for upload operations.
func WithProgress(tracker s3types.ProgressTracker) s3types.UploadOption {
	return func(c *s3types.UploadOptionConfig) {
		c.ProgressTracker = tracker
	}
}

// WithUploadPartSize overrides the client part size for one upload.
func WithUploadPartSize(partSize int64) s3types.UploadOption {
	return func(c *s3types.UploadOptionConfig) {
		if partSize > 0 {
			c.PartSize = partSize
		}
	}
}

// WithUploadConcurrency overrides the client upload concurrency for one upload.
func WithUploadConcurrency(concurrency int) s3types.UploadOption {
	return func(c *s3types.UploadOptionConfig) {
		if concurrency > 0 {
			c.Concurrency = concurrency
		}
	}
}

// WithDownloadProgress sets a progress tracker for download operations.
func WithDownloadProgress(tracker s3types.ProgressTracker) s3types.DownloadOption {
	return func(c *s3types.DownloadOptionConfig) {
		c.ProgressTracker = tracker
	}
}

// WithDownloadChunkSize overrides the client range size for one download.
func WithDownloadChunkSize(chunkSize int64) s3types.DownloadOption {
	return func(c *s3types.DownloadOptionConfig) {
		if chunkSize > 0 {
			c.ChunkSize = chunkSize
		}
	}
}

// WithRangeConcurrency overrides the client fetch-ahead window for one download.
func WithRangeConcurrency(concurrency int) s3types.DownloadOption {
	return func(c *s3types.DownloadOptionConfig) {
		if concurrency > 0 {
			c.Concurrency = concurrency
		}
	}
}

// WithPrefix restricts List to keys starting with prefix.
func WithPrefix(prefix string) s3types.ListOption {
	return func(c *s3types.ListOptionConfig) {
		c.Prefix = prefix
	}
}
