package middleware

import (
	"context"

	"github.com/input-output-hk/catalyst-forge-libs/aws/s3transfer/errors"
	"github.com/input-output-hk/catalyst-forge-libs/aws/s3transfer/s3types"
)

func deleteObject(ctx context.Context, next s3types.Backend, bucket, key string) error {
	d, ok := next.(s3types.Deleter)
	if !ok {
		return errors.NewObjectError("deleteObject", bucket, key, errors.ErrNotImplemented)
	}
	return d.DeleteObject(ctx, bucket, key)
}

func listKeys(ctx context.Context, next s3types.Backend, bucket, prefix string) ([]s3types.Object, error) {
	l, ok := next.(s3types.Lister)
	if !ok {
		return nil, errors.NewObjectError("listObjects", bucket, prefix, errors.ErrNotImplemented)
	}
	return l.ListKeys(ctx, bucket, prefix)
}
