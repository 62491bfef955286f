package storage

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"strings"
	"sync"

	"github.com/liamg/memoryfs"
)

// MemoryBackend implements Backend using an in-memory filesystem. Useful
// for integration testing without disk I/O. Thread-safe for concurrent use.
type MemoryBackend struct {
	fs *memoryfs.FS
	mu sync.RWMutex
}

// NewMemoryBackend creates a new in-memory blob store.
func NewMemoryBackend() *MemoryBackend {
	return &MemoryBackend{
		fs: memoryfs.New(),
	}
}

// Save stores content and returns the generated name, hash, and size.
func (m *MemoryBackend) Save(ctx context.Context, r io.Reader, opts SaveOptions) (SaveResult, error) {
	filename := generateBlobName(opts.OriginalFilename)

	// memoryfs.WriteFile needs the complete content, so buffer while hashing
	hasher := sha256.New()
	var buf bytes.Buffer
	writer := io.MultiWriter(&buf, hasher)

	copyBuf := make([]byte, copyBufferSize)
	size, err := io.CopyBuffer(writer, r, copyBuf)
	if err != nil {
		return SaveResult{}, fmt.Errorf("failed to read content: %w", err)
	}

	m.mu.Lock()
	err = m.fs.WriteFile(filename, buf.Bytes(), 0644)
	m.mu.Unlock()
	if err != nil {
		return SaveResult{}, fmt.Errorf("failed to write file: %w", err)
	}

	return SaveResult{
		Path: filename,
		Hash: hex.EncodeToString(hasher.Sum(nil)),
		Size: size,
	}, nil
}

// Open returns a reader for the blob at the given path.
func (m *MemoryBackend) Open(ctx context.Context, path string) (io.ReadCloser, error) {
	m.mu.RLock()
	content, err := m.fs.ReadFile(path)
	m.mu.RUnlock()
	if err != nil {
		if isNotExist(err) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to open file: %w", err)
	}

	return io.NopCloser(bytes.NewReader(content)), nil
}

// Delete removes a blob. Returns nil if it doesn't exist (idempotent).
func (m *MemoryBackend) Delete(ctx context.Context, path string) error {
	m.mu.Lock()
	err := m.fs.Remove(path)
	m.mu.Unlock()
	if err != nil && !isNotExist(err) {
		return fmt.Errorf("failed to delete file: %w", err)
	}
	return nil
}

// Stat returns blob metadata without opening it.
func (m *MemoryBackend) Stat(ctx context.Context, path string) (FileInfo, error) {
	m.mu.RLock()
	info, err := m.fs.Stat(path)
	m.mu.RUnlock()
	if err != nil {
		if isNotExist(err) {
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

// HealthCheck always succeeds for the memory backend.
func (m *MemoryBackend) HealthCheck(ctx context.Context) error {
	return nil
}

// Close is a no-op for the memory backend.
func (m *MemoryBackend) Close() error {
	return nil
}

// isNotExist matches the various not-found shapes memoryfs can return.
func isNotExist(err error) bool {
	if errors.Is(err, fs.ErrNotExist) {
		return true
	}
	return err != nil && strings.Contains(err.Error(), "file does not exist")
}
