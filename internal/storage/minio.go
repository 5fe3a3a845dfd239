package storage

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
)

// Options configures the MinIO client.
type Options struct {
	Endpoint  string // host[:port]
	AccessKey string
	SecretKey string
	Bucket    string
	Region    string
	UseSSL    bool
	PathStyle bool
	Transport http.RoundTripper // optional
}

// MinioStorage implements ObjectStore on the low-level minio.Core API so that
// multipart calls are forwarded one-to-one.
type MinioStorage struct {
	core   *minio.Core
	bucket string
}

// NewMinioStorage creates a MinIO client. Setting Region keeps the client from
// issuing bucket-location lookups, so construction makes no network calls.
func NewMinioStorage(opts Options) (*MinioStorage, error) {
	lookup := minio.BucketLookupDNS
	if opts.PathStyle {
		lookup = minio.BucketLookupPath
	}

	core, err := minio.NewCore(opts.Endpoint, &minio.Options{
		Creds:        credentials.NewStaticV4(opts.AccessKey, opts.SecretKey, ""),
		Secure:       opts.UseSSL,
		Region:       opts.Region,
		BucketLookup: lookup,
		Transport:    opts.Transport,
	})
	if err != nil {
		return nil, fmt.Errorf("create minio client: %w", err)
	}

	return &MinioStorage{core: core, bucket: opts.Bucket}, nil
}

// Stat issues a HEAD for key.
func (s *MinioStorage) Stat(ctx context.Context, key string) (*ObjectInfo, error) {
	info, err := s.core.StatObject(ctx, s.bucket, key, minio.StatObjectOptions{})
	if err != nil {
		if isCode(err, "NoSuchKey", http.StatusNotFound) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("stat object %q: %w", key, err)
	}

	meta := make(map[string]string)
	for name, values := range info.Metadata {
		lower := strings.ToLower(name)
		if !strings.HasPrefix(lower, "x-amz-meta-") || len(values) == 0 {
			continue
		}
		meta[strings.TrimPrefix(lower, "x-amz-meta-")] = values[0]
	}

	return &ObjectInfo{
		Key:         key,
		Size:        info.Size,
		ETag:        info.ETag,
		ContentType: info.ContentType,
		Metadata:    meta,
	}, nil
}

// CreateMultipartUpload initiates a multipart upload for key.
func (s *MinioStorage) CreateMultipartUpload(ctx context.Context, key, contentType string) (string, error) {
	uploadID, err := s.core.NewMultipartUpload(ctx, s.bucket, key, minio.PutObjectOptions{
		ContentType: contentType,
	})
	if err != nil {
		return "", fmt.Errorf("create multipart upload %q: %w", key, err)
	}
	return uploadID, nil
}

// CompleteMultipartUpload finalizes uploadID with the given parts, in order.
func (s *MinioStorage) CompleteMultipartUpload(ctx context.Context, key, uploadID string, parts []Part) (string, error) {
	complete := make([]minio.CompletePart, 0, len(parts))
	for _, p := range parts {
		complete = append(complete, minio.CompletePart{PartNumber: p.PartNumber, ETag: p.ETag})
	}

	info, err := s.core.CompleteMultipartUpload(ctx, s.bucket, key, uploadID, complete, minio.PutObjectOptions{})
	if err != nil {
		if isCode(err, "NoSuchUpload", 0) {
			return "", ErrNoSuchUpload
		}
		return "", fmt.Errorf("complete multipart upload %q: %w", key, err)
	}
	return info.ETag, nil
}

// AbortMultipartUpload aborts uploadID.
func (s *MinioStorage) AbortMultipartUpload(ctx context.Context, key, uploadID string) error {
	if err := s.core.AbortMultipartUpload(ctx, s.bucket, key, uploadID); err != nil {
		if isCode(err, "NoSuchUpload", 0) {
			return ErrNoSuchUpload
		}
		return fmt.Errorf("abort multipart upload %q: %w", key, err)
	}
	return nil
}

// ErrorCode returns the S3 error code carried by err, if any.
func ErrorCode(err error) string {
	var resp minio.ErrorResponse
	if errors.As(err, &resp) {
		return resp.Code
	}
	return ""
}

func isCode(err error, code string, status int) bool {
	resp := minio.ToErrorResponse(err)
	if resp.Code == code {
		return true
	}
	return status != 0 && resp.StatusCode == status
}

var _ ObjectStore = (*MinioStorage)(nil)
