package storage

import (
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func newTestDiskBackend(t *testing.T) *DiskBackend {
	t.Helper()

	backend, err := NewDiskBackend(t.TempDir())
	if err != nil {
		t.Fatalf("NewDiskBackend failed: %v", err)
	}
	t.Cleanup(func() { backend.Close() })
	return backend
}

func TestDiskBackendRoundTrip(t *testing.T) {
	backend := newTestDiskBackend(t)
	ctx := context.Background()

	content := "disk bytes"
	result, err := backend.Save(ctx, strings.NewReader(content), SaveOptions{OriginalFilename: "report.PDF"})
	if err != nil {
		t.Fatalf("Save failed: %v", err)
	}
	if result.Size != int64(len(content)) {
		t.Errorf("Size = %d, want %d", result.Size, len(content))
	}
	if !strings.HasSuffix(result.Path, ".pdf") {
		t.Errorf("stored name %q should carry the lower-cased extension", result.Path)
	}

	reader, err := backend.Open(ctx, result.Path)
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	defer reader.Close()

	got, err := io.ReadAll(reader)
	if err != nil {
		t.Fatalf("ReadAll failed: %v", err)
	}
	if string(got) != content {
		t.Errorf("content = %q, want %q", got, content)
	}
}

func TestDiskBackendCreatesDirectory(t *testing.T) {
	base := filepath.Join(t.TempDir(), "nested", "files")

	backend, err := NewDiskBackend(base)
	if err != nil {
		t.Fatalf("NewDiskBackend should create missing directories: %v", err)
	}
	defer backend.Close()

	if _, err := os.Stat(base); err != nil {
		t.Errorf("storage directory not created: %v", err)
	}
}

func TestDiskBackendDeleteIdempotent(t *testing.T) {
	backend := newTestDiskBackend(t)
	ctx := context.Background()

	result, err := backend.Save(ctx, strings.NewReader("x"), SaveOptions{OriginalFilename: "a.txt"})
	if err != nil {
		t.Fatalf("Save failed: %v", err)
	}

	if err := backend.Delete(ctx, result.Path); err != nil {
		t.Fatalf("Delete failed: %v", err)
	}
	if err := backend.Delete(ctx, result.Path); err != nil {
		t.Errorf("second Delete should be a no-op, got %v", err)
	}

	if _, err := backend.Open(ctx, result.Path); !errors.Is(err, ErrNotFound) {
		t.Errorf("Open after delete = %v, want ErrNotFound", err)
	}
}

func TestDiskBackendRejectsTraversal(t *testing.T) {
	backend := newTestDiskBackend(t)
	ctx := context.Background()

	// os.Root refuses paths that escape the storage directory
	if _, err := backend.Open(ctx, "../outside.txt"); err == nil {
		t.Error("Open should refuse paths escaping the storage root")
	}
}

func TestDiskBackendHealthCheck(t *testing.T) {
	backend := newTestDiskBackend(t)

	if err := backend.HealthCheck(context.Background()); err != nil {
		t.Errorf("HealthCheck failed: %v", err)
	}
}
