// Package objectstore wraps a minio/S3-compatible backend behind the put and
// multipart operations the delivery layer consumes.
package objectstore

import (
	"context"
	"fmt"
	"io"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
)

// Config contains the information required to talk to an object store.
type Config struct {
	Provider  string
	Endpoint  string
	Region    string
	AccessKey string
	SecretKey string
	UseSSL    bool
}

// PutOptions carries per-object metadata.
type PutOptions struct {
	ContentType  string
	CacheControl string
	// ACL is a canned ACL name (e.g. "public-read"); empty means bucket default.
	ACL      string
	Metadata map[string]string
}

// Part identifies one uploaded chunk of a multipart session.
type Part struct {
	Number int
	ETag   string
}

// Client represents the capabilities the delivery layer expects.
type Client interface {
	Put(ctx context.Context, bucket, key string, reader io.Reader, size int64, opts PutOptions) (etag string, err error)
	BeginMultipart(ctx context.Context, bucket, key string, opts PutOptions) (uploadID string, err error)
	UploadPart(ctx context.Context, bucket, key, uploadID string, partNumber int, reader io.Reader, size int64) (Part, error)
	CompleteMultipart(ctx context.Context, bucket, key, uploadID string, parts []Part) (etag string, err error)
	AbortMultipart(ctx context.Context, bucket, key, uploadID string) error
	Close() error
}

// New creates an object store client based on the given configuration.
func New(cfg Config) (Client, error) {
	switch cfg.Provider {
	case "minio", "s3":
		return newMinioClient(cfg)
	default:
		return nil, fmt.Errorf("unsupported object store provider: %s", cfg.Provider)
	}
}

type minioClient struct {
	core *minio.Core
}

func newMinioClient(cfg Config) (Client, error) {
	core, err := minio.NewCore(cfg.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, ""),
		Secure: cfg.UseSSL,
		Region: cfg.Region,
	})
	if err != nil {
		return nil, fmt.Errorf("init minio client: %w", err)
	}
	return &minioClient{core: core}, nil
}

func (m *minioClient) Put(ctx context.Context, bucket, key string, reader io.Reader, size int64, opts PutOptions) (string, error) {
	info, err := m.core.Client.PutObject(ctx, bucket, key, reader, size, putObjectOptions(opts))
	if err != nil {
		return "", err
	}
	return info.ETag, nil
}

func (m *minioClient) BeginMultipart(ctx context.Context, bucket, key string, opts PutOptions) (string, error) {
	return m.core.NewMultipartUpload(ctx, bucket, key, putObjectOptions(opts))
}

func (m *minioClient) UploadPart(ctx context.Context, bucket, key, uploadID string, partNumber int, reader io.Reader, size int64) (Part, error) {
	part, err := m.core.PutObjectPart(ctx, bucket, key, uploadID, partNumber, reader, size, minio.PutObjectPartOptions{})
	if err != nil {
		return Part{}, err
	}
	return Part{Number: part.PartNumber, ETag: part.ETag}, nil
}

func (m *minioClient) CompleteMultipart(ctx context.Context, bucket, key, uploadID string, parts []Part) (string, error) {
	completed := make([]minio.CompletePart, 0, len(parts))
	for _, p := range parts {
		completed = append(completed, minio.CompletePart{PartNumber: p.Number, ETag: p.ETag})
	}
	info, err := m.core.CompleteMultipartUpload(ctx, bucket, key, uploadID, completed, minio.PutObjectOptions{})
	if err != nil {
		return "", err
	}
	return info.ETag, nil
}

func (m *minioClient) AbortMultipart(ctx context.Context, bucket, key, uploadID string) error {
	return m.core.AbortMultipartUpload(ctx, bucket, key, uploadID)
}

func (m *minioClient) Close() error {
	return nil
}

func putObjectOptions(opts PutOptions) minio.PutObjectOptions {
	mo := minio.PutObjectOptions{
		ContentType:  opts.ContentType,
		CacheControl: opts.CacheControl,
		UserMetadata: map[string]string{},
	}
	for k, v := range opts.Metadata {
		mo.UserMetadata[k] = v
	}
	if opts.ACL != "" {
		mo.UserMetadata["x-amz-acl"] = opts.ACL
	}
	return mo
}
