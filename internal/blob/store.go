// Package blob opens raw uploaded documents by handle.
package blob

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path"
	"path/filepath"
	"strings"
)

var (
	ErrNotFound      = errors.New("blob not found")
	ErrInvalidHandle = errors.New("invalid blob handle")
)

// Store opens the byte stream behind a handle.
type Store interface {
	Open(ctx context.Context, handle string) (io.ReadCloser, error)
}

// DiskStore serves blobs from files under a root directory.
type DiskStore struct {
	root string
}

func NewDiskStore(root string) (*DiskStore, error) {
	abs, err := filepath.Abs(root)
	if err != nil {
		return nil, fmt.Errorf("resolve blob root failed: %w", err)
	}
	if err := os.MkdirAll(abs, 0o755); err != nil {
		return nil, fmt.Errorf("create blob root failed: %w", err)
	}
	return &DiskStore{root: abs}, nil
}

// Open accepts a bare storage id or a download URL such as
// "/api/storage/<id>" or "/api/files/<id>".
func (s *DiskStore) Open(ctx context.Context, handle string) (io.ReadCloser, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	id, err := StorageID(handle)
	if err != nil {
		return nil, err
	}
	f, err := os.Open(filepath.Join(s.root, id))
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("%w: %s", ErrNotFound, id)
		}
		return nil, fmt.Errorf("open blob failed: %w", err)
	}
	return f, nil
}

// StorageID reduces a handle to the file name inside the store.
func StorageID(handle string) (string, error) {
	handle = strings.TrimSpace(handle)
	if i := strings.IndexAny(handle, "?#"); i >= 0 {
		handle = handle[:i]
	}
	if strings.Contains(handle, "/api/storage/") || strings.Contains(handle, "/api/files/") {
		handle = path.Base(handle)
	}
	if handle == "" || handle == "." || handle == ".." ||
		strings.ContainsAny(handle, `/\`) || strings.Contains(handle, "..") {
		return "", fmt.Errorf("%w: %q", ErrInvalidHandle, handle)
	}
	return handle, nil
}
