// Package storage defines the object-store operations the broker forwards to.
// The MinIO implementation works with any S3-compatible provider (MinIO, R2, AWS S3).
package storage

import (
	"context"
	"errors"
)

// ErrNotFound is returned when an object does not exist.
var ErrNotFound = errors.New("object not found")

// ErrNoSuchUpload is returned when a multipart upload ID is unknown to the
// store, either because it never existed or because it was completed or aborted.
var ErrNoSuchUpload = errors.New("multipart upload not found")

// ObjectInfo is the subset of HEAD metadata the broker reads.
type ObjectInfo struct {
	Key         string
	Size        int64
	ETag        string
	ContentType string
	Metadata    map[string]string // user metadata, lower-cased keys without the x-amz-meta- prefix
}

// Part identifies one uploaded part of a multipart upload.
type Part struct {
	PartNumber int
	ETag       string
}

// ObjectStore is the interface for the object-store calls made on behalf of clients.
type ObjectStore interface {
	// Stat returns object metadata, or ErrNotFound.
	Stat(ctx context.Context, key string) (*ObjectInfo, error)
	// CreateMultipartUpload starts a multipart upload and returns its upload ID.
	CreateMultipartUpload(ctx context.Context, key, contentType string) (string, error)
	// CompleteMultipartUpload stitches the given parts into the final object and returns its ETag.
	CompleteMultipartUpload(ctx context.Context, key, uploadID string, parts []Part) (string, error)
	// AbortMultipartUpload discards an upload and all of its parts. Unknown uploads yield ErrNoSuchUpload.
	AbortMultipartUpload(ctx context.Context, key, uploadID string) error
}
