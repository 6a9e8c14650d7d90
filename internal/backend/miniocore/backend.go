// Package miniocore implements the transfer backend on the minio-go Core API,
// for MinIO and other S3-compatible stores.
package miniocore

import (
	"bytes"
	"context"
	stderrors "errors"
	"fmt"
	"io"
	"net/http"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"

	"github.com/input-output-hk/catalyst-forge-libs/aws/s3transfer/errors"
	"github.com/input-output-hk/catalyst-forge-libs/aws/s3transfer/s3types"
)

// Core is the subset of *minio.Core used by the backend.
type Core interface {
	NewMultipartUpload(ctx context.Context, bucket, object string, opts minio.PutObjectOptions) (string, error)
	PutObjectPart(
		ctx context.Context,
		bucket, object, uploadID string,
		partID int,
		data io.Reader,
		size int64,
		opts minio.PutObjectPartOptions,
	) (minio.ObjectPart, error)
	CompleteMultipartUpload(
		ctx context.Context,
		bucket, object, uploadID string,
		parts []minio.CompletePart,
		opts minio.PutObjectOptions,
	) (minio.UploadInfo, error)
	AbortMultipartUpload(ctx context.Context, bucket, object, uploadID string) error
	GetObject(
		ctx context.Context,
		bucket, object string,
		opts minio.GetObjectOptions,
	) (io.ReadCloser, minio.ObjectInfo, http.Header, error)
	PutObject(
		ctx context.Context,
		bucket, object string,
		data io.Reader,
		size int64,
		md5Base64, sha256Hex string,
		opts minio.PutObjectOptions,
	) (minio.UploadInfo, error)
	StatObject(ctx context.Context, bucket, object string, opts minio.StatObjectOptions) (minio.ObjectInfo, error)
	RemoveObject(ctx context.Context, bucket, object string, opts minio.RemoveObjectOptions) error
	ListObjects(ctx context.Context, bucket string, opts minio.ListObjectsOptions) <-chan minio.ObjectInfo
}

// coreClient exposes a *minio.Core as Core. Core's own ListObjects is the
// single-page v1 call, so listing goes through the embedded client's
// paginating iterator instead.
type coreClient struct {
	*minio.Core
}

var _ Core = coreClient{}

// ListObjects lists every object under opts.Prefix.
func (c coreClient) ListObjects(ctx context.Context, bucket string, opts minio.ListObjectsOptions) <-chan minio.ObjectInfo {
	return c.Client.ListObjects(ctx, bucket, opts)
}

// Config holds the connection settings of a MinIO endpoint.
type Config struct {
	Endpoint  string
	AccessKey string
	SecretKey string
	Secure    bool
	Transport http.RoundTripper
}

// Dial creates a minio Core client for cfg.
func Dial(cfg Config) (Core, error) {
	core, err := minio.NewCore(cfg.Endpoint, &minio.Options{
		Creds:     credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, ""),
		Secure:    cfg.Secure,
		Transport: cfg.Transport,
	})
	if err != nil {
		return nil, errors.NewError("dial", err).WithMessage("failed to create minio client")
	}
	return coreClient{core}, nil
}

// Backend adapts a minio Core client to s3types.Backend.
type Backend struct {
	core Core
}

// New creates a backend over core.
func New(core Core) *Backend {
	return &Backend{core: core}
}

var (
	_ s3types.Backend = (*Backend)(nil)
	_ s3types.Deleter = (*Backend)(nil)
	_ s3types.Lister  = (*Backend)(nil)
)

func putOptions(opts s3types.ObjectOptions) minio.PutObjectOptions {
	return minio.PutObjectOptions{
		ContentType:  opts.ContentType,
		UserMetadata: opts.Metadata,
	}
}

// BeginMultipartUpload implements s3types.Backend.
func (b *Backend) BeginMultipartUpload(
	ctx context.Context,
	bucket, key string,
	opts s3types.ObjectOptions,
) (s3types.SessionRef, error) {
	id, err := b.core.NewMultipartUpload(ctx, bucket, key, putOptions(opts))
	if err != nil {
		return s3types.SessionRef{}, errors.NewBackendError("newMultipartUpload", bucket, key, translate(err))
	}
	return s3types.SessionRef{ID: id, Bucket: bucket, Key: key}, nil
}

// UploadPart implements s3types.Backend.
func (b *Backend) UploadPart(ctx context.Context, ref s3types.SessionRef, partNumber int32, body []byte) (string, error) {
	part, err := b.core.PutObjectPart(ctx, ref.Bucket, ref.Key, ref.ID, int(partNumber),
		bytes.NewReader(body), int64(len(body)), minio.PutObjectPartOptions{})
	if err != nil {
		return "", errors.NewBackendError("putObjectPart", ref.Bucket, ref.Key, translate(err))
	}
	return part.ETag, nil
}

// CompleteMultipartUpload implements s3types.Backend.
func (b *Backend) CompleteMultipartUpload(
	ctx context.Context,
	ref s3types.SessionRef,
	parts []s3types.PartRecord,
) (s3types.ObjectID, error) {
	completed := make([]minio.CompletePart, len(parts))
	for i, p := range parts {
		completed[i] = minio.CompletePart{PartNumber: int(p.PartNumber), ETag: p.ETag}
	}

	info, err := b.core.CompleteMultipartUpload(ctx, ref.Bucket, ref.Key, ref.ID, completed, minio.PutObjectOptions{})
	if err != nil {
		return s3types.ObjectID{}, errors.NewBackendError("completeMultipartUpload", ref.Bucket, ref.Key, translate(err))
	}
	return s3types.ObjectID{Bucket: ref.Bucket, Key: ref.Key, ETag: info.ETag, VersionID: info.VersionID}, nil
}

// AbortMultipartUpload implements s3types.Backend.
func (b *Backend) AbortMultipartUpload(ctx context.Context, ref s3types.SessionRef) error {
	if err := b.core.AbortMultipartUpload(ctx, ref.Bucket, ref.Key, ref.ID); err != nil {
		return errors.NewBackendError("abortMultipartUpload", ref.Bucket, ref.Key, translate(err))
	}
	return nil
}

// HeadObject implements s3types.Backend.
func (b *Backend) HeadObject(ctx context.Context, bucket, key string) (s3types.ObjectMetadata, error) {
	info, err := b.core.StatObject(ctx, bucket, key, minio.StatObjectOptions{})
	if err != nil {
		return s3types.ObjectMetadata{}, errors.NewBackendError("statObject", bucket, key, translate(err))
	}
	return s3types.ObjectMetadata{
		ContentLength: info.Size,
		ContentType:   info.ContentType,
		ETag:          info.ETag,
		LastModified:  info.LastModified,
	}, nil
}

// GetObjectRange implements s3types.Backend.
func (b *Backend) GetObjectRange(ctx context.Context, bucket, key string, r s3types.ByteRange) ([]byte, error) {
	opts := minio.GetObjectOptions{}
	if err := opts.SetRange(r.Start, r.End); err != nil {
		return nil, errors.NewObjectError("getObject", bucket, key, stderrors.Join(errors.ErrInvalidRange, err))
	}

	body, _, header, err := b.core.GetObject(ctx, bucket, key, opts)
	if err != nil {
		return nil, errors.NewBackendError("getObject", bucket, key, translate(err))
	}
	defer body.Close()

	if served := header.Get("Content-Range"); !r.Served(served) {
		return nil, errors.NewObjectError("getObject", bucket, key,
			fmt.Errorf("%w: requested %s, served %q", errors.ErrInvalidRange, r.HeaderValue(), served))
	}

	buf := make([]byte, r.Len())
	n, err := io.ReadFull(body, buf)
	switch err {
	case nil, io.EOF, io.ErrUnexpectedEOF:
		return buf[:n], nil
	default:
		return nil, errors.NewBackendError("getObject", bucket, key, translate(err))
	}
}

// PutObject implements s3types.Backend.
func (b *Backend) PutObject(
	ctx context.Context,
	bucket, key string,
	body []byte,
	opts s3types.ObjectOptions,
) (s3types.ObjectID, error) {
	info, err := b.core.PutObject(ctx, bucket, key, bytes.NewReader(body), int64(len(body)), "", "", putOptions(opts))
	if err != nil {
		return s3types.ObjectID{}, errors.NewBackendError("putObject", bucket, key, translate(err))
	}
	return s3types.ObjectID{Bucket: bucket, Key: key, ETag: info.ETag, VersionID: info.VersionID}, nil
}

// DeleteObject implements s3types.Deleter.
func (b *Backend) DeleteObject(ctx context.Context, bucket, key string) error {
	if err := b.core.RemoveObject(ctx, bucket, key, minio.RemoveObjectOptions{}); err != nil {
		return errors.NewBackendError("removeObject", bucket, key, translate(err))
	}
	return nil
}

// ListKeys implements s3types.Lister.
func (b *Backend) ListKeys(ctx context.Context, bucket, prefix string) ([]s3types.Object, error) {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	var objects []s3types.Object
	infos := b.core.ListObjects(ctx, bucket, minio.ListObjectsOptions{Prefix: prefix, Recursive: true})
	for info := range infos {
		if info.Err != nil {
			cancel()
			for range infos {
			}
			return nil, errors.NewBackendError("listObjects", bucket, prefix, translate(info.Err))
		}
		objects = append(objects, s3types.Object{
			Key:          info.Key,
			Size:         info.Size,
			ETag:         info.ETag,
			LastModified: info.LastModified,
		})
	}
	return objects, nil
}

// translate tags err with the sentinel matching its S3 error code.
func translate(err error) error {
	resp := minio.ToErrorResponse(err)
	if resp.Code == "" {
		return err
	}
	return errors.FromServiceCode(resp.Code, err)
}
