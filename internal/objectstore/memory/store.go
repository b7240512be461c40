// Package memory provides an in-memory object store implementation for
// tests and local runs.
package memory

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/datasieve/datasieve/internal/objectstore"
)

// Store implements objectstore.Store with in-memory buckets. Iteration
// order is lexicographic by key, matching S3-style listings.
type Store struct {
	mu      sync.RWMutex
	buckets map[string]map[string][]byte
}

// NewStore creates an empty in-memory object store.
func NewStore() *Store {
	return &Store{buckets: make(map[string]map[string][]byte)}
}

// BucketExists reports whether the bucket exists.
func (s *Store) BucketExists(ctx context.Context, bucket string) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.buckets[bucket]
	return ok, nil
}

// CreateBucket creates the bucket if it does not already exist.
func (s *Store) CreateBucket(ctx context.Context, bucket string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.buckets[bucket]; !ok {
		s.buckets[bucket] = make(map[string][]byte)
	}
	return nil
}

// RemoveBucketIfExists drops the bucket and its contents.
func (s *Store) RemoveBucketIfExists(ctx context.Context, bucket string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.buckets[bucket]; !ok {
		return false, nil
	}
	delete(s.buckets, bucket)
	return true, nil
}

// PutObject stores a blob. The content type is accepted for interface
// parity and ignored.
func (s *Store) PutObject(ctx context.Context, bucket, key string, data []byte, contentType string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	b, ok := s.buckets[bucket]
	if !ok {
		return fmt.Errorf("%w: bucket %q does not exist", objectstore.ErrBucketOperation, bucket)
	}
	buf := make([]byte, len(data))
	copy(buf, data)
	b[key] = buf
	return nil
}

// ReadObject returns a copy of the blob contents.
func (s *Store) ReadObject(ctx context.Context, bucket, key string) ([]byte, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	b, ok := s.buckets[bucket]
	if !ok {
		return nil, fmt.Errorf("%w: bucket %q does not exist", objectstore.ErrBucketOperation, bucket)
	}
	data, ok := b[key]
	if !ok {
		return nil, fmt.Errorf("%w: %s/%s", objectstore.ErrObjectNotFound, bucket, key)
	}
	buf := make([]byte, len(data))
	copy(buf, data)
	return buf, nil
}

// DeleteObject removes a blob and reports whether it was present.
func (s *Store) DeleteObject(ctx context.Context, bucket, key string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	b, ok := s.buckets[bucket]
	if !ok {
		return false, fmt.Errorf("%w: bucket %q does not exist", objectstore.ErrBucketOperation, bucket)
	}
	if _, ok := b[key]; !ok {
		return false, nil
	}
	delete(b, key)
	return true, nil
}

// IterByPrefix visits blobs under the prefix in key order. The key set is
// snapshotted up front so the callback may delete the objects it visits.
func (s *Store) IterByPrefix(ctx context.Context, bucket, prefix string, fn objectstore.IterFunc) error {
	s.mu.RLock()
	b, ok := s.buckets[bucket]
	if !ok {
		s.mu.RUnlock()
		return fmt.Errorf("%w: bucket %q does not exist", objectstore.ErrBucketOperation, bucket)
	}
	keys := make([]string, 0, len(b))
	for key := range b {
		if strings.HasPrefix(key, prefix) {
			keys = append(keys, key)
		}
	}
	s.mu.RUnlock()
	sort.Strings(keys)

	for _, key := range keys {
		if err := ctx.Err(); err != nil {
			return err
		}
		data, err := s.ReadObject(ctx, bucket, key)
		if err != nil {
			// Deleted between snapshot and read.
			continue
		}
		filename := key
		if i := strings.LastIndex(key, "/"); i >= 0 {
			filename = key[i+1:]
		}
		if filename == "" {
			continue
		}
		if err := fn(filename, data); err != nil {
			return err
		}
	}
	return nil
}
