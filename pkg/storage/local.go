package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"time"
)

// LocalStorage implements Storage using the local filesystem
type LocalStorage struct {
	basePath string
}

// NewLocalStorage creates a new local filesystem storage
func NewLocalStorage(basePath string) (*LocalStorage, error) {
	if basePath == "" {
		return nil, fmt.Errorf("local storage path is required")
	}
	// Ensure base path exists
	if err := os.MkdirAll(basePath, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create storage directory: %w", err)
	}

	return &LocalStorage{basePath: basePath}, nil
}

// Put writes r to a temporary file next to the destination and renames it into place.
func (s *LocalStorage) Put(ctx context.Context, key string, r io.Reader) (*ObjectInfo, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	filePath, err := s.path(key)
	if err != nil {
		return nil, err
	}
	if err := os.MkdirAll(filepath.Dir(filePath), 0o755); err != nil {
		return nil, fmt.Errorf("failed to create directory: %w", err)
	}

	f, err := os.CreateTemp(filepath.Dir(filePath), ".upload-*")
	if err != nil {
		return nil, fmt.Errorf("failed to create file: %w", err)
	}
	tmp := f.Name()

	size, err := io.Copy(f, r)
	if err != nil {
		f.Close()
		os.Remove(tmp) // Cleanup on error
		return nil, fmt.Errorf("failed to write file: %w", err)
	}
	if err := f.Close(); err != nil {
		os.Remove(tmp)
		return nil, fmt.Errorf("failed to close file: %w", err)
	}
	if err := os.Rename(tmp, filePath); err != nil {
		os.Remove(tmp)
		return nil, fmt.Errorf("failed to move file into place: %w", err)
	}

	return &ObjectInfo{
		Key:       key,
		Size:      size,
		URI:       filePath,
		CreatedAt: time.Now(),
	}, nil
}

// Open returns the stored file for key
func (s *LocalStorage) Open(_ context.Context, key string) (io.ReadCloser, error) {
	filePath, err := s.path(key)
	if err != nil {
		return nil, err
	}
	f, err := os.Open(filePath)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("%w: %s", ErrNotFound, key)
		}
		return nil, fmt.Errorf("failed to open file: %w", err)
	}
	return f, nil
}

// Exists reports whether a file is stored at key
func (s *LocalStorage) Exists(_ context.Context, key string) (bool, error) {
	filePath, err := s.path(key)
	if err != nil {
		return false, err
	}
	_, err = os.Stat(filePath)
	if err == nil {
		return true, nil
	}
	if errors.Is(err, fs.ErrNotExist) {
		return false, nil
	}
	return false, err
}

// URI returns the filesystem path for key
func (s *LocalStorage) URI(key string) string {
	filePath, err := s.path(key)
	if err != nil {
		return filepath.Join(s.basePath, key)
	}
	return filePath
}

func (s *LocalStorage) path(key string) (string, error) {
	cleaned, err := cleanKey(key)
	if err != nil {
		return "", err
	}
	return filepath.Join(s.basePath, filepath.FromSlash(cleaned)), nil
}
