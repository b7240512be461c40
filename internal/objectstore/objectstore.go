// Package objectstore defines the object store port the pipeline depends
// on: bucket lifecycle, blob read/write/delete and prefix iteration.
package objectstore

import (
	"context"
	"errors"
)

// Common errors
var (
	ErrBucketConnection = errors.New("object store connection error")
	ErrBucketOperation  = errors.New("bucket operation failed")
	ErrObjectNotFound   = errors.New("object not found")
)

// IterFunc receives one blob per call during prefix iteration: the base
// filename (last path segment of the object key) and the blob contents.
// Returning an error stops the iteration and propagates.
type IterFunc func(filename string, data []byte) error

// Store is the object store contract. Implementations must be safe for
// concurrent use.
type Store interface {
	BucketExists(ctx context.Context, bucket string) (bool, error)
	// CreateBucket is idempotent: creating an existing bucket is not an
	// error.
	CreateBucket(ctx context.Context, bucket string) error
	// RemoveBucketIfExists empties the bucket first and reports whether a
	// bucket was actually removed.
	RemoveBucketIfExists(ctx context.Context, bucket string) (bool, error)

	PutObject(ctx context.Context, bucket, key string, data []byte, contentType string) error
	ReadObject(ctx context.Context, bucket, key string) ([]byte, error)
	DeleteObject(ctx context.Context, bucket, key string) (bool, error)

	// IterByPrefix streams the blobs under a key prefix in listing order,
	// skipping directory entries.
	IterByPrefix(ctx context.Context, bucket, prefix string, fn IterFunc) error
}
