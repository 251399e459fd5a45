// Package storage defines the object store used for original images and
// their renditions. Backends live in the s3 and local subpackages.
package storage

import (
	"context"
	"errors"
	"io"
)

var ErrNotFound = errors.New("object not found")

// ObjectInfo describes a stored object and where clients can fetch it.
type ObjectInfo struct {
	Key         string
	URL         string
	Size        int64
	ContentType string
}

type Storage interface {
	PutObject(ctx context.Context, key string, data io.Reader, size int64, contentType string) (*ObjectInfo, error)
	// GetObject returns a reader that must be closed by the caller.
	GetObject(ctx context.Context, key string) (io.ReadCloser, error)
	// DeleteObject succeeds when the object is already gone.
	DeleteObject(ctx context.Context, key string) error
	Type() string
}
