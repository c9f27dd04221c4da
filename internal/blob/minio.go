// Package blob archives raw uploaded files in S3-compatible object storage.
// The registry row keeps only the extracted text; the original bytes land
// here so a document can be re-extracted later.
package blob

import (
	"bytes"
	"context"
	"fmt"
	"log"
	"path"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
)

// Store wraps a MinIO client bound to a single bucket.
type Store struct {
	client *minio.Client
	bucket string
}

// Options configures the object-storage connection. An empty Endpoint
// disables archiving entirely.
type Options struct {
	Endpoint  string
	AccessKey string
	SecretKey string
	Bucket    string
	UseSSL    bool
}

// New connects to object storage and makes sure the bucket exists.
// Returns (nil, nil) when no endpoint is configured.
func New(ctx context.Context, opts Options) (*Store, error) {
	if opts.Endpoint == "" {
		return nil, nil
	}

	client, err := minio.New(opts.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(opts.AccessKey, opts.SecretKey, ""),
		Secure: opts.UseSSL,
	})
	if err != nil {
		return nil, fmt.Errorf("minio client: %w", err)
	}

	exists, err := client.BucketExists(ctx, opts.Bucket)
	if err != nil {
		return nil, fmt.Errorf("check bucket %s: %w", opts.Bucket, err)
	}
	if !exists {
		if err := client.MakeBucket(ctx, opts.Bucket, minio.MakeBucketOptions{}); err != nil {
			return nil, fmt.Errorf("create bucket %s: %w", opts.Bucket, err)
		}
		log.Printf("blob: created bucket %s", opts.Bucket)
	}

	return &Store{client: client, bucket: opts.Bucket}, nil
}

// DocumentKey builds the object key for an uploaded legal document.
func DocumentKey(startupID, documentID, fileName string) string {
	return path.Join("legal", startupID, documentID, fileName)
}

// Put stores one object. Safe to call on a nil Store; archiving is optional.
func (s *Store) Put(ctx context.Context, key string, data []byte, contentType string) error {
	if s == nil {
		return nil
	}
	_, err := s.client.PutObject(ctx, s.bucket, key, bytes.NewReader(data), int64(len(data)),
		minio.PutObjectOptions{ContentType: contentType})
	if err != nil {
		return fmt.Errorf("put object %s: %w", key, err)
	}
	return nil
}

// Remove deletes one object. Missing objects are not an error.
func (s *Store) Remove(ctx context.Context, key string) error {
	if s == nil {
		return nil
	}
	if err := s.client.RemoveObject(ctx, s.bucket, key, minio.RemoveObjectOptions{}); err != nil {
		return fmt.Errorf("remove object %s: %w", key, err)
	}
	return nil
}

// RemovePrefix deletes every object under a key prefix, used when a whole
// category or startup is purged.
func (s *Store) RemovePrefix(ctx context.Context, prefix string) error {
	if s == nil {
		return nil
	}
	objects := s.client.ListObjects(ctx, s.bucket, minio.ListObjectsOptions{
		Prefix:    prefix,
		Recursive: true,
	})
	for object := range objects {
		if object.Err != nil {
			return fmt.Errorf("list objects %s: %w", prefix, object.Err)
		}
		if err := s.client.RemoveObject(ctx, s.bucket, object.Key, minio.RemoveObjectOptions{}); err != nil {
			return fmt.Errorf("remove object %s: %w", object.Key, err)
		}
	}
	return nil
}
