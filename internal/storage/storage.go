package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
)

// ErrNotFound is returned when a blob does not exist in the backend.
var ErrNotFound = errors.New("file not found in storage")

// copyBufferSize is the buffer size used for blob copies (8MB aligns with S3 multipart upload parts)
const copyBufferSize = 8 * 1024 * 1024

// Backend is the blob store behind the document lifecycle. Implementations
// store raw bytes addressed by generated unique names; all metadata lives
// in the relational store.
type Backend interface {
	// Save stores content under a freshly generated name and returns the
	// name, content hash, and byte size.
	Save(ctx context.Context, r io.Reader, opts SaveOptions) (SaveResult, error)
	// Open returns a reader for the blob, or ErrNotFound.
	Open(ctx context.Context, path string) (io.ReadCloser, error)
	// Delete removes a blob. Deleting a missing blob is a no-op.
	Delete(ctx context.Context, path string) error
	// Stat returns blob metadata without opening it, or ErrNotFound.
	Stat(ctx context.Context, path string) (FileInfo, error)
	// HealthCheck verifies the backend is reachable (cheap, safe for polling).
	HealthCheck(ctx context.Context) error
	// Close releases resources held by the backend.
	Close() error
}

// SaveOptions carries per-save parameters.
type SaveOptions struct {
	OriginalFilename string
}

// SaveResult describes a stored blob.
type SaveResult struct {
	Path string // Generated blob name
	Hash string // SHA-256 of the content, hex-encoded
	Size int64
}

// FileInfo is backend-independent blob metadata.
type FileInfo struct {
	Path    string
	Size    int64
	ModTime time.Time
}

// generateBlobName builds a collision-resistant stored name: a random
// uniqueness token, the save timestamp, and the original extension
// lower-cased. The original base name never reaches the filesystem.
func generateBlobName(originalFilename string) string {
	ext := strings.ToLower(filepath.Ext(originalFilename))
	return fmt.Sprintf("%s_%d%s", uuid.New().String(), time.Now().Unix(), ext)
}
