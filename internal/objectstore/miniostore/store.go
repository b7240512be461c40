// Package miniostore provides an S3-compatible object store implementation
// backed by MinIO.
package miniostore

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"

	"github.com/datasieve/datasieve/internal/objectstore"
)

// Config holds MinIO connection configuration.
type Config struct {
	Endpoint  string `json:"endpoint" yaml:"endpoint"`
	AccessKey string `json:"access_key" yaml:"access_key"`
	SecretKey string `json:"secret_key" yaml:"secret_key"`
	UseSSL    bool   `json:"use_ssl" yaml:"use_ssl"`
}

// DefaultConfig returns a default configuration.
func DefaultConfig() Config {
	return Config{
		Endpoint:  "localhost:9000",
		AccessKey: "minioadmin",
		SecretKey: "minioadmin",
		UseSSL:    false,
	}
}

// Store implements objectstore.Store against a MinIO (or any S3-compatible)
// endpoint.
type Store struct {
	client *minio.Client
	config Config
}

// NewStore creates the client. Connectivity is verified lazily on first use,
// matching the S3 client model.
func NewStore(config Config) (*Store, error) {
	client, err := minio.New(config.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(config.AccessKey, config.SecretKey, ""),
		Secure: config.UseSSL,
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %v", objectstore.ErrBucketConnection, err)
	}
	return &Store{client: client, config: config}, nil
}

// BucketExists reports whether the bucket exists.
func (s *Store) BucketExists(ctx context.Context, bucket string) (bool, error) {
	exists, err := s.client.BucketExists(ctx, bucket)
	if err != nil {
		return false, fmt.Errorf("%w: check bucket %q: %v", objectstore.ErrBucketConnection, bucket, err)
	}
	return exists, nil
}

// CreateBucket creates the bucket if it does not already exist.
func (s *Store) CreateBucket(ctx context.Context, bucket string) error {
	exists, err := s.BucketExists(ctx, bucket)
	if err != nil {
		return err
	}
	if exists {
		return nil
	}
	if err := s.client.MakeBucket(ctx, bucket, minio.MakeBucketOptions{}); err != nil {
		return fmt.Errorf("%w: create bucket %q: %v", objectstore.ErrBucketOperation, bucket, err)
	}
	return nil
}

// RemoveBucketIfExists empties the bucket, removes it and reports whether a
// bucket was actually removed.
func (s *Store) RemoveBucketIfExists(ctx context.Context, bucket string) (bool, error) {
	exists, err := s.BucketExists(ctx, bucket)
	if err != nil {
		return false, err
	}
	if !exists {
		return false, nil
	}

	for obj := range s.client.ListObjects(ctx, bucket, minio.ListObjectsOptions{Recursive: true}) {
		if obj.Err != nil {
			return false, fmt.Errorf("%w: list bucket %q: %v", objectstore.ErrBucketOperation, bucket, obj.Err)
		}
		if err := s.client.RemoveObject(ctx, bucket, obj.Key, minio.RemoveObjectOptions{}); err != nil {
			return false, fmt.Errorf("%w: empty bucket %q: %v", objectstore.ErrBucketOperation, bucket, err)
		}
	}
	if err := s.client.RemoveBucket(ctx, bucket); err != nil {
		return false, fmt.Errorf("%w: remove bucket %q: %v", objectstore.ErrBucketOperation, bucket, err)
	}
	return true, nil
}

// PutObject stores a blob.
func (s *Store) PutObject(ctx context.Context, bucket, key string, data []byte, contentType string) error {
	_, err := s.client.PutObject(ctx, bucket, key, bytes.NewReader(data), int64(len(data)),
		minio.PutObjectOptions{ContentType: contentType})
	if err != nil {
		return fmt.Errorf("%w: put %s/%s: %v", objectstore.ErrBucketOperation, bucket, key, err)
	}
	return nil
}

// ReadObject returns the blob contents.
func (s *Store) ReadObject(ctx context.Context, bucket, key string) ([]byte, error) {
	obj, err := s.client.GetObject(ctx, bucket, key, minio.GetObjectOptions{})
	if err != nil {
		return nil, fmt.Errorf("%w: get %s/%s: %v", objectstore.ErrBucketOperation, bucket, key, err)
	}
	defer func() { _ = obj.Close() }()

	data, err := io.ReadAll(obj)
	if err != nil {
		resp := minio.ToErrorResponse(err)
		if resp.Code == "NoSuchKey" {
			return nil, fmt.Errorf("%w: %s/%s", objectstore.ErrObjectNotFound, bucket, key)
		}
		return nil, fmt.Errorf("%w: read %s/%s: %v", objectstore.ErrBucketOperation, bucket, key, err)
	}
	return data, nil
}

// DeleteObject removes a blob and reports whether it was present. Deleting
// from a bucket that does not exist is an error.
func (s *Store) DeleteObject(ctx context.Context, bucket, key string) (bool, error) {
	exists, err := s.BucketExists(ctx, bucket)
	if err != nil {
		return false, err
	}
	if !exists {
		return false, fmt.Errorf("%w: bucket %q does not exist", objectstore.ErrBucketOperation, bucket)
	}

	if _, err := s.client.StatObject(ctx, bucket, key, minio.StatObjectOptions{}); err != nil {
		resp := minio.ToErrorResponse(err)
		if resp.Code == "NoSuchKey" {
			return false, nil
		}
		return false, fmt.Errorf("%w: stat %s/%s: %v", objectstore.ErrBucketOperation, bucket, key, err)
	}
	if err := s.client.RemoveObject(ctx, bucket, key, minio.RemoveObjectOptions{}); err != nil {
		return false, fmt.Errorf("%w: delete %s/%s: %v", objectstore.ErrBucketOperation, bucket, key, err)
	}
	return true, nil
}

// IterByPrefix streams the blobs under a key prefix in listing order,
// skipping directory markers.
func (s *Store) IterByPrefix(ctx context.Context, bucket, prefix string, fn objectstore.IterFunc) error {
	for obj := range s.client.ListObjects(ctx, bucket, minio.ListObjectsOptions{
		Prefix:    prefix,
		Recursive: true,
	}) {
		if obj.Err != nil {
			return fmt.Errorf("%w: list %s/%s: %v", objectstore.ErrBucketOperation, bucket, prefix, obj.Err)
		}
		if strings.HasSuffix(obj.Key, "/") {
			continue
		}
		data, err := s.ReadObject(ctx, bucket, obj.Key)
		if err != nil {
			return err
		}
		filename := obj.Key
		if i := strings.LastIndex(obj.Key, "/"); i >= 0 {
			filename = obj.Key[i+1:]
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
