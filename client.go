package s3transfer

import (
	"context"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/go-git/go-billy/v5"
	"github.com/go-git/go-billy/v5/osfs"

	"github.com/input-output-hk/catalyst-forge-libs/aws/s3transfer/errors"
	"github.com/input-output-hk/catalyst-forge-libs/aws/s3transfer/internal/backend/awss3"
	"github.com/input-output-hk/catalyst-forge-libs/aws/s3transfer/internal/backend/middleware"
	"github.com/input-output-hk/catalyst-forge-libs/aws/s3transfer/internal/backend/miniocore"
	"github.com/input-output-hk/catalyst-forge-libs/aws/s3transfer/internal/metrics"
	"github.com/input-output-hk/catalyst-forge-libs/aws/s3transfer/internal/operations/download"
	"github.com/input-output-hk/catalyst-forge-libs/aws/s3transfer/internal/operations/upload"
	"github.com/input-output-hk/catalyst-forge-libs/aws/s3transfer/internal/s3api"
	"github.com/input-output-hk/catalyst-forge-libs/aws/s3transfer/internal/transfer/session"
	"github.com/input-output-hk/catalyst-forge-libs/aws/s3transfer/s3types"
)

// Default tuning values.
const (
	DefaultPartSize            = 8 * 1024 * 1024
	DefaultConcurrency         = 5
	DefaultChunkSize           = 8 * 1024 * 1024
	DefaultDownloadConcurrency = 10
	DefaultRangeRetries        = 10
	DefaultRangeRetryDelay     = 100 * time.Millisecond
	DefaultRangeRetryJitter    = 0.25
	DefaultAbortTimeout        = 30 * time.Second
	DefaultRegion              = "us-east-1"
)

// Client transfers objects through one backend. It is safe for concurrent use.
type Client struct {
	backend s3types.Backend
	cfg     s3types.ClientConfig

	// mu protects fs
	mu sync.RWMutex
	fs billy.Filesystem

	logger     *slog.Logger
	metrics    *metrics.Metrics
	uploader   *upload.Uploader
	downloader *download.Downloader
}

func defaultConfig() s3types.ClientConfig {
	return s3types.ClientConfig{
		MaxRetries:          3,
		Concurrency:         DefaultConcurrency,
		PartSize:            DefaultPartSize,
		DownloadConcurrency: DefaultDownloadConcurrency,
		ChunkSize:           DefaultChunkSize,
		RangeRetries:        DefaultRangeRetries,
		RangeRetryDelay:     DefaultRangeRetryDelay,
		RangeRetryJitter:    DefaultRangeRetryJitter,
		AbortTimeout:        DefaultAbortTimeout,
	}
}

func buildConfig(opts []s3types.Option) s3types.ClientConfig {
	cfg := defaultConfig()
	for _, opt := range opts {
		opt(&cfg)
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.New(slog.DiscardHandler)
	}
	return cfg
}

// New creates a client for AWS S3, or for a MinIO endpoint when WithMinio
// is given. AWS credentials come from the default credential chain unless
// WithAWSConfig supplies a configuration.
//
// Example:
//
//	client, err := s3transfer.New(
//	    s3transfer.WithRegion("us-west-2"),
//	    s3transfer.WithConcurrency(8),
//	)
func New(opts ...s3types.Option) (*Client, error) {
	cfg := buildConfig(opts)

	var (
		backend s3types.Backend
		err     error
	)
	if cfg.Minio != nil {
		backend, err = dialMinio(cfg)
	} else {
		backend, err = dialAWS(cfg)
	}
	if err != nil {
		return nil, errors.NewError("client initialization", err)
	}
	return newClient(backend, cfg), nil
}

// NewWithClient creates a client over a custom S3API implementation.
// This is primarily used for testing with mocked clients.
func NewWithClient(api s3api.S3API, opts ...s3types.Option) *Client {
	cfg := buildConfig(opts)
	return newClient(awss3.New(api, awss3.WithLogger(cfg.Logger)), cfg)
}

// NewWithBackend creates a client over any transfer backend, such as the
// in-memory backend of package memory.
func NewWithBackend(backend s3types.Backend, opts ...s3types.Option) *Client {
	return newClient(backend, buildConfig(opts))
}

func dialAWS(cfg s3types.ClientConfig) (s3types.Backend, error) {
	var awsCfg aws.Config
	if cfg.CustomAWSConfig != nil {
		awsCfg = *cfg.CustomAWSConfig
	} else {
		loaded, err := config.LoadDefaultConfig(context.Background())
		if err != nil {
			return nil, err
		}
		awsCfg = loaded
	}

	if cfg.Region != "" {
		awsCfg.Region = cfg.Region
	} else if awsCfg.Region == "" {
		awsCfg.Region = DefaultRegion
	}
	if cfg.MaxRetries > 0 {
		awsCfg.RetryMaxAttempts = cfg.MaxRetries
	}

	var s3Opts []func(*s3.Options)
	if cfg.Endpoint != "" {
		s3Opts = append(s3Opts, func(o *s3.Options) {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
		})
	}
	if cfg.ForcePathStyle {
		s3Opts = append(s3Opts, func(o *s3.Options) {
			o.UsePathStyle = true
		})
	}
	if httpClient := httpClientFor(cfg); httpClient != nil {
		s3Opts = append(s3Opts, func(o *s3.Options) {
			o.HTTPClient = httpClient
		})
	}

	return awss3.New(s3.NewFromConfig(awsCfg, s3Opts...), awss3.WithLogger(cfg.Logger)), nil
}

func dialMinio(cfg s3types.ClientConfig) (s3types.Backend, error) {
	mc := miniocore.Config{
		Endpoint:  cfg.Minio.Endpoint,
		AccessKey: cfg.Minio.AccessKey,
		SecretKey: cfg.Minio.SecretKey,
		Secure:    cfg.Minio.Secure,
	}
	if httpClient := httpClientFor(cfg); httpClient != nil {
		mc.Transport = httpClient.Transport
	}

	core, err := miniocore.Dial(mc)
	if err != nil {
		return nil, err
	}
	return miniocore.New(core), nil
}

// httpClientFor returns the custom HTTP client, or one carrying the request
// timeout, or nil for the SDK default.
func httpClientFor(cfg s3types.ClientConfig) *http.Client {
	switch {
	case cfg.CustomHTTPClient != nil:
		return cfg.CustomHTTPClient
	case cfg.Timeout > 0:
		return &http.Client{Timeout: cfg.Timeout}
	default:
		return nil
	}
}

func newClient(backend s3types.Backend, cfg s3types.ClientConfig) *Client {
	m := metrics.New(cfg.Registerer)
	if m != nil {
		backend = middleware.Instrument(backend, m)
	}
	if cfg.RequestRate > 0 {
		backend = middleware.RateLimit(backend, cfg.RequestRate, cfg.RequestBurst)
	}

	filesystem := cfg.Filesystem
	if filesystem == nil {
		filesystem = osfs.New("/")
	}

	c := &Client{
		backend: backend,
		cfg:     cfg,
		fs:      filesystem,
		logger:  cfg.Logger,
		metrics: m,
	}
	c.uploader = upload.New(backend,
		upload.WithLogger(cfg.Logger),
		upload.WithAbortTimeout(cfg.AbortTimeout),
		upload.WithSessionObserver(c.observeSession),
	)
	c.downloader = download.New(backend,
		download.WithLogger(cfg.Logger),
		download.WithRetryObserver(m.RecordRetry),
	)
	return c
}

func (c *Client) observeSession(o session.Outcome) {
	c.metrics.RecordSession(o.State.String())
}

// SetFilesystem sets the filesystem used by UploadFile and DownloadFile.
func (c *Client) SetFilesystem(filesystem billy.Filesystem) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.fs = filesystem
}

func (c *Client) filesystem() billy.Filesystem {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.fs
}

// Close releases any resources held by the client.
// Transfers hold no state between calls, so this is currently a no-op.
func (c *Client) Close() error {
	return nil
}
