package s3transfer

import (
	"context"

	"github.com/input-output-hk/catalyst-forge-libs/aws/s3transfer/errors"
	"github.com/input-output-hk/catalyst-forge-libs/aws/s3transfer/internal/validation"
	"github.com/input-output-hk/catalyst-forge-libs/aws/s3transfer/s3types"
)

// Head returns the metadata of bucket/key without its body.
func (c *Client) Head(ctx context.Context, bucket, key string) (*s3types.ObjectMetadata, error) {
	if err := validation.ValidateTarget(bucket, key); err != nil {
		return nil, errors.NewError("head", err).WithBucket(bucket).WithKey(key)
	}

	meta, err := c.backend.HeadObject(ctx, bucket, key)
	if err != nil {
		return nil, errors.NewError("head", err).WithBucket(bucket).WithKey(key)
	}
	return &meta, nil
}

// Delete removes bucket/key. Deleting a missing object is not an error on
// S3, and backends follow that behavior.
//
// Errors:
//   - ErrInvalidInput: If the bucket or key is invalid
//   - ErrNotImplemented: If the backend cannot delete objects
func (c *Client) Delete(ctx context.Context, bucket, key string) error {
	if err := validation.ValidateTarget(bucket, key); err != nil {
		return errors.NewError("delete", err).WithBucket(bucket).WithKey(key)
	}

	deleter, ok := c.backend.(s3types.Deleter)
	if !ok {
		return errors.NewError("delete", errors.ErrNotImplemented).WithBucket(bucket).WithKey(key)
	}
	if err := deleter.DeleteObject(ctx, bucket, key); err != nil {
		return errors.NewError("delete", err).WithBucket(bucket).WithKey(key)
	}
	return nil
}

// List returns every object in bucket, following pagination.
//
// Example:
//
//	objects, err := client.List(ctx, "my-bucket", s3transfer.WithPrefix("backups/"))
//	if err != nil {
//	    return err
//	}
//	for _, obj := range objects {
//	    fmt.Printf("%s (%d bytes)\n", obj.Key, obj.Size)
//	}
func (c *Client) List(ctx context.Context, bucket string, opts ...s3types.ListOption) ([]s3types.Object, error) {
	if err := validation.ValidateBucketName(bucket); err != nil {
		return nil, errors.NewError("list", err).WithBucket(bucket)
	}

	cfg := &s3types.ListOptionConfig{}
	for _, opt := range opts {
		opt(cfg)
	}

	lister, ok := c.backend.(s3types.Lister)
	if !ok {
		return nil, errors.NewError("list", errors.ErrNotImplemented).WithBucket(bucket)
	}
	objects, err := lister.ListKeys(ctx, bucket, cfg.Prefix)
	if err != nil {
		return nil, errors.NewError("list", err).WithBucket(bucket)
	}
	return objects, nil
}
