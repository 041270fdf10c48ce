package storage

import (
	"context"
	"errors"
	"io"
	"time"
)

var (
	ErrObjectNotFound = errors.New("object not found")
)

// Storage defines blob operations over an object storage bucket, keyed by
// logical path. Implementations must treat Save as an idempotent overwrite.
type Storage interface {
	// Save stores a blob at the given path
	Save(ctx context.Context, path string, r io.Reader) error

	// Get returns the blob bytes at the given path
	Get(ctx context.Context, path string) (io.ReadCloser, error)

	// Delete removes the blob at the given path. Deleting a missing blob is
	// not an error.
	Delete(ctx context.Context, path string) error

	// PresignedURL generates a time-limited read URL
	PresignedURL(path string, expiry time.Duration) (string, error)

	// List returns up to pageSize keys under prefix plus a continuation
	// token; an empty token means the listing is complete.
	List(ctx context.Context, prefix string, pageSize int32, pageToken string) (keys []string, nextToken string, err error)
}
