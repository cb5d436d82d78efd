// Package storage provides object storage access for raw EVT files.
// Cruise data lives either on the local filesystem or in an S3 bucket;
// both are exposed through the same byte-oriented interface.
package storage

import (
	"context"
	"errors"
)

// Common errors for storage operations.
var (
	ErrObjectNotFound = errors.New("object not found")
	ErrUploadFailed   = errors.New("upload failed")
	ErrDownloadFailed = errors.New("download failed")
)

// ObjectStorage abstracts where raw EVT files come from. Implementations
// include S3 and the local filesystem.
type ObjectStorage interface {
	// Get fetches the object at key and returns its bytes.
	Get(ctx context.Context, key string) ([]byte, error)

	// Put stores data at key.
	Put(ctx context.Context, key string, data []byte) error

	// Exists checks whether an object exists at key.
	Exists(ctx context.Context, key string) (bool, error)

	// List returns all object keys under the given prefix.
	List(ctx context.Context, prefix string) ([]string, error)
}
