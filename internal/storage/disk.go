package storage

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"os"
)

// DiskBackend implements Backend on the local filesystem. It uses os.Root
// for sandboxed file operations, preventing path traversal out of the
// storage directory.
type DiskBackend struct {
	root     *os.Root
	basePath string
}

// NewDiskBackend creates a disk-based blob store rooted at basePath. The
// directory is created if missing; a directory that cannot be created or
// opened makes the backend unavailable.
func NewDiskBackend(basePath string) (*DiskBackend, error) {
	if err := os.MkdirAll(basePath, 0755); err != nil {
		return nil, fmt.Errorf("failed to create storage directory: %w", err)
	}

	root, err := os.OpenRoot(basePath)
	if err != nil {
		return nil, fmt.Errorf("failed to open storage root: %w", err)
	}

	return &DiskBackend{
		root:     root,
		basePath: basePath,
	}, nil
}

// Save stores content and returns the generated name, hash, and size.
func (d *DiskBackend) Save(ctx context.Context, r io.Reader, opts SaveOptions) (SaveResult, error) {
	filename := generateBlobName(opts.OriginalFilename)

	file, err := d.root.Create(filename)
	if err != nil {
		return SaveResult{}, fmt.Errorf("failed to create file: %w", err)
	}
	defer file.Close()

	// Hash while writing using a large buffer for better throughput
	hasher := sha256.New()
	writer := io.MultiWriter(file, hasher)
	buf := make([]byte, copyBufferSize)

	size, err := io.CopyBuffer(writer, r, buf)
	if err != nil {
		d.root.Remove(filename) // Clean up on error
		return SaveResult{}, fmt.Errorf("failed to write file: %w", err)
	}

	return SaveResult{
		Path: filename,
		Hash: hex.EncodeToString(hasher.Sum(nil)),
		Size: size,
	}, nil
}

// Open returns a reader for the blob at the given path.
func (d *DiskBackend) Open(ctx context.Context, path string) (io.ReadCloser, error) {
	file, err := d.root.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to open file: %w", err)
	}
	return file, nil
}

// Delete removes a blob. Returns nil if it doesn't exist (idempotent).
func (d *DiskBackend) Delete(ctx context.Context, path string) error {
	if err := d.root.Remove(path); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to delete file: %w", err)
	}
	return nil
}

// Stat returns blob metadata without opening it.
func (d *DiskBackend) Stat(ctx context.Context, path string) (FileInfo, error) {
	info, err := d.root.Stat(path)
	if err != nil {
		if os.IsNotExist(err) {
			return FileInfo{}, ErrNotFound
		}
		return FileInfo{}, fmt.Errorf("failed to stat file: %w", err)
	}

	return FileInfo{
		Path:    path,
		Size:    info.Size(),
		ModTime: info.ModTime(),
	}, nil
}

// HealthCheck verifies the storage directory is still reachable.
func (d *DiskBackend) HealthCheck(ctx context.Context) error {
	if _, err := d.root.Stat("."); err != nil {
		return fmt.Errorf("storage health check failed: %w", err)
	}
	return nil
}

// Close releases the sandboxed root.
func (d *DiskBackend) Close() error {
	return d.root.Close()
}
