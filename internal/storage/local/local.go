// Package local implements the filesystem storage backend.
package local

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/zeebo/errs"

	"picturehub/internal/storage"
)

// Error is the error class for local storage failures.
var Error = errs.Class("local storage")

type Storage struct {
	basePath   string
	publicHost string
}

// New creates the base directory if needed. publicHost prefixes object
// keys to form URLs, e.g. "http://localhost:8080/objects".
func New(basePath, publicHost string) (*Storage, error) {
	if basePath == "" {
		basePath = "data/uploads"
	}
	if err := os.MkdirAll(basePath, 0o755); err != nil {
		return nil, Error.New("create storage directory: %w", err)
	}
	return &Storage{basePath: basePath, publicHost: strings.TrimRight(publicHost, "/")}, nil
}

func (s *Storage) PutObject(ctx context.Context, key string, data io.Reader, size int64, contentType string) (*storage.ObjectInfo, error) {
	fullPath, err := s.keyToPath(key)
	if err != nil {
		return nil, err
	}

	if err := os.MkdirAll(filepath.Dir(fullPath), 0o755); err != nil {
		return nil, Error.New("create directory: %w", err)
	}

	f, err := os.Create(fullPath)
	if err != nil {
		return nil, Error.New("create file: %w", err)
	}
	defer f.Close()

	written, err := io.Copy(f, data)
	if err != nil {
		_ = os.Remove(fullPath)
		return nil, Error.New("write file: %w", err)
	}

	return &storage.ObjectInfo{
		Key:         key,
		URL:         s.publicHost + "/" + key,
		Size:        written,
		ContentType: contentType,
	}, nil
}

func (s *Storage) GetObject(ctx context.Context, key string) (io.ReadCloser, error) {
	fullPath, err := s.keyToPath(key)
	if err != nil {
		return nil, err
	}

	f, err := os.Open(fullPath)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, Error.Wrap(fmt.Errorf("%s: %w", key, storage.ErrNotFound))
		}
		return nil, Error.New("open file: %w", err)
	}
	return f, nil
}

func (s *Storage) DeleteObject(ctx context.Context, key string) error {
	fullPath, err := s.keyToPath(key)
	if err != nil {
		return err
	}

	if err := os.Remove(fullPath); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil
		}
		return Error.New("delete file: %w", err)
	}

	// Remove the parent directory once it is empty.
	_ = os.Remove(filepath.Dir(fullPath))
	return nil
}

func (s *Storage) Type() string { return "local" }

func (s *Storage) BasePath() string { return s.basePath }

// keyToPath rejects keys that would escape the base directory.
func (s *Storage) keyToPath(key string) (string, error) {
	if key == "" {
		return "", Error.New("key is required")
	}
	clean := filepath.Clean("/" + key)
	if clean == "/" || strings.Contains(key, "..") {
		return "", Error.New("invalid key %q", key)
	}
	return filepath.Join(s.basePath, filepath.FromSlash(clean)), nil
}
