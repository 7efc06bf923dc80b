// Package storage provides archive storage with local filesystem and Google Cloud Storage implementations.
package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"path"
	"strings"
	"time"
)

// ErrNotFound is returned when a key has no stored object.
var ErrNotFound = errors.New("object not found")

// ObjectInfo describes a stored object.
type ObjectInfo struct {
	Key       string    `json:"key"`
	Size      int64     `json:"size"`
	URI       string    `json:"uri"`
	CreatedAt time.Time `json:"created_at"`
}

// Storage defines the interface for archive storage operations.
// Keys are slash-separated paths relative to the storage root.
type Storage interface {
	// Put stores r under key, replacing any existing object
	Put(ctx context.Context, key string, r io.Reader) (*ObjectInfo, error)

	// Open returns a reader for the object at key
	Open(ctx context.Context, key string) (io.ReadCloser, error)

	// Exists reports whether an object is stored at key
	Exists(ctx context.Context, key string) (bool, error)

	// URI returns a human readable location for key (a path or gs:// URI)
	URI(key string) string
}

// StorageType identifies the storage backend
type StorageType string

const (
	StorageTypeLocal StorageType = "local"
	StorageTypeGCS   StorageType = "gcs"
)

// Config holds storage configuration
type Config struct {
	Type StorageType

	// Local storage config
	LocalPath string

	// GCS storage config
	GCSBucket string
	GCSPrefix string
}

// New creates a new Storage implementation based on configuration
func New(ctx context.Context, cfg Config) (Storage, error) {
	switch cfg.Type {
	case StorageTypeGCS:
		return NewGCSStorage(ctx, cfg.GCSBucket, cfg.GCSPrefix)
	case StorageTypeLocal, "":
		return NewLocalStorage(cfg.LocalPath)
	default:
		return nil, fmt.Errorf("unknown storage type %q", cfg.Type)
	}
}

// cleanKey normalizes key and rejects keys that escape the storage root.
func cleanKey(key string) (string, error) {
	key = strings.ReplaceAll(key, "\\", "/")
	cleaned := path.Clean("/" + key)
	cleaned = strings.TrimPrefix(cleaned, "/")
	if cleaned == "" || cleaned == "." {
		return "", fmt.Errorf("invalid storage key %q", key)
	}
	for _, part := range strings.Split(key, "/") {
		if part == ".." {
			return "", fmt.Errorf("invalid storage key %q", key)
		}
	}
	return cleaned, nil
}
