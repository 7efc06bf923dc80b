package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"path"
	"strings"
	"time"

	"cloud.google.com/go/storage"
	"google.golang.org/api/option"
)

// GCSStorage implements Storage using a Google Cloud Storage bucket.
// It assumes Application Default Credentials are configured unless client
// options say otherwise.
type GCSStorage struct {
	client *storage.Client
	bucket string
	prefix string
}

// NewGCSStorage creates a GCS storage rooted at gs://bucket/prefix
func NewGCSStorage(ctx context.Context, bucket, prefix string, opts ...option.ClientOption) (*GCSStorage, error) {
	if bucket == "" {
		return nil, fmt.Errorf("GCS bucket is required")
	}
	client, err := storage.NewClient(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("create storage client: %w", err)
	}
	return &GCSStorage{client: client, bucket: bucket, prefix: strings.Trim(prefix, "/")}, nil
}

// Put uploads r to the object for key
func (s *GCSStorage) Put(ctx context.Context, key string, r io.Reader) (*ObjectInfo, error) {
	name, err := s.objectName(key)
	if err != nil {
		return nil, err
	}

	ctx, cancel := context.WithTimeout(ctx, 2*time.Minute)
	defer cancel()

	w := s.client.Bucket(s.bucket).Object(name).NewWriter(ctx)
	size, err := io.Copy(w, r)
	if err != nil {
		_ = w.Close()
		return nil, fmt.Errorf("copy to GCS writer: %w", err)
	}
	// Close finalizes the upload
	if err := w.Close(); err != nil {
		return nil, fmt.Errorf("finalize upload: %w", err)
	}

	return &ObjectInfo{
		Key:       key,
		Size:      size,
		URI:       s.URI(key),
		CreatedAt: time.Now(),
	}, nil
}

// Open returns a reader for the object at key
func (s *GCSStorage) Open(ctx context.Context, key string) (io.ReadCloser, error) {
	name, err := s.objectName(key)
	if err != nil {
		return nil, err
	}
	rc, err := s.client.Bucket(s.bucket).Object(name).NewReader(ctx)
	if err != nil {
		if errors.Is(err, storage.ErrObjectNotExist) {
			return nil, fmt.Errorf("%w: %s", ErrNotFound, key)
		}
		return nil, fmt.Errorf("reading object %s/%s: %w", s.bucket, name, err)
	}
	return rc, nil
}

// Exists reports whether the object for key exists
func (s *GCSStorage) Exists(ctx context.Context, key string) (bool, error) {
	name, err := s.objectName(key)
	if err != nil {
		return false, err
	}
	_, err = s.client.Bucket(s.bucket).Object(name).Attrs(ctx)
	if err == nil {
		return true, nil
	}
	if errors.Is(err, storage.ErrObjectNotExist) {
		return false, nil
	}
	return false, fmt.Errorf("stat object %s/%s: %w", s.bucket, name, err)
}

// URI returns the gs:// URI for key
func (s *GCSStorage) URI(key string) string {
	name, err := s.objectName(key)
	if err != nil {
		name = key
	}
	return "gs://" + s.bucket + "/" + name
}

// Close releases the underlying client
func (s *GCSStorage) Close() error {
	return s.client.Close()
}

func (s *GCSStorage) objectName(key string) (string, error) {
	cleaned, err := cleanKey(key)
	if err != nil {
		return "", err
	}
	if s.prefix == "" {
		return cleaned, nil
	}
	return path.Join(s.prefix, cleaned), nil
}
