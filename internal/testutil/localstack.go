package testutil

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/localstack"
	"github.com/testcontainers/testcontainers-go/wait"
)

const (
	localStackImage  = "localstack/localstack:latest"
	localStackPort   = "4566"
	localStackRegion = "us-east-1"
)

// LocalStack is a running LocalStack container serving S3.
type LocalStack struct {
	container *localstack.LocalStackContainer
	endpoint  string
	raw       *s3.Client
}

// StartLocalStack starts a LocalStack container for the duration of t.
// The container is terminated through t.Cleanup. Tests are skipped in short mode.
func StartLocalStack(t *testing.T) *LocalStack {
	t.Helper()

	if testing.Short() {
		t.Skip("skipping LocalStack test in short mode")
	}

	ctx := context.Background()
	container, err := localstack.Run(ctx, localStackImage,
		testcontainers.WithWaitStrategy(
			wait.ForHTTP("/_localstack/health").
				WithPort(localStackPort).
				WithStartupTimeout(2*time.Minute),
		),
	)
	if err != nil {
		t.Fatalf("start localstack: %v", err)
	}
	t.Cleanup(func() {
		if err := container.Terminate(context.Background()); err != nil {
			t.Logf("terminate localstack: %v", err)
		}
	})

	host, err := container.Host(ctx)
	if err != nil {
		t.Fatalf("localstack host: %v", err)
	}
	port, err := container.MappedPort(ctx, localStackPort)
	if err != nil {
		t.Fatalf("localstack port: %v", err)
	}

	ls := &LocalStack{
		container: container,
		endpoint:  fmt.Sprintf("http://%s:%s", host, port.Port()),
	}

	cfg, err := ls.AWSConfig(ctx)
	if err != nil {
		t.Fatalf("localstack config: %v", err)
	}
	ls.raw = s3.NewFromConfig(cfg, func(o *s3.Options) {
		o.UsePathStyle = true
		o.BaseEndpoint = aws.String(ls.endpoint)
	})
	return ls
}

// Endpoint returns the S3 endpoint URL of the container.
func (l *LocalStack) Endpoint() string {
	return l.endpoint
}

// AWSConfig returns an aws.Config with the static credentials LocalStack accepts.
func (l *LocalStack) AWSConfig(ctx context.Context) (aws.Config, error) {
	cfg, err := config.LoadDefaultConfig(ctx,
		config.WithRegion(localStackRegion),
		config.WithCredentialsProvider(credentials.NewStaticCredentialsProvider("test", "test", "")),
	)
	if err != nil {
		return aws.Config{}, fmt.Errorf("load config: %w", err)
	}
	return cfg, nil
}

// NewBucket creates a uniquely named bucket and empties and removes it when t ends.
func (l *LocalStack) NewBucket(t *testing.T, prefix string) string {
	t.Helper()

	ctx := context.Background()
	bucket := GenerateTestBucketName(prefix)
	if _, err := l.raw.CreateBucket(ctx, &s3.CreateBucketInput{Bucket: aws.String(bucket)}); err != nil {
		t.Fatalf("create bucket %s: %v", bucket, err)
	}
	t.Cleanup(func() {
		if err := l.dropBucket(context.Background(), bucket); err != nil {
			t.Logf("drop bucket %s: %v", bucket, err)
		}
	})
	return bucket
}

func (l *LocalStack) dropBucket(ctx context.Context, bucket string) error {
	pages := s3.NewListObjectsV2Paginator(l.raw, &s3.ListObjectsV2Input{Bucket: aws.String(bucket)})
	for pages.HasMorePages() {
		page, err := pages.NextPage(ctx)
		if err != nil {
			return err
		}
		for _, obj := range page.Contents {
			if _, err := l.raw.DeleteObject(ctx, &s3.DeleteObjectInput{
				Bucket: aws.String(bucket),
				Key:    obj.Key,
			}); err != nil {
				return err
			}
		}
	}
	_, err := l.raw.DeleteBucket(ctx, &s3.DeleteBucketInput{Bucket: aws.String(bucket)})
	return err
}
