package archive

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func newTestFSArchive(t *testing.T) *FileSystemArchive {
	t.Helper()
	archive, err := NewFileSystemArchive("test-archive", t.TempDir())
	if err != nil {
		t.Fatalf("NewFileSystemArchive() error: %v", err)
	}
	return archive
}

func TestFileSystemArchive_UploadAndDownload(t *testing.T) {
	archive := newTestFSArchive(t)
	ctx := context.Background()

	content := "snapshot tarball bytes"
	props := map[string]string{"snapshot_slug": "abc123"}
	record, err := archive.Upload(ctx, props, strings.NewReader(content), int64(len(content)))
	if err != nil {
		t.Fatalf("Upload() error: %v", err)
	}

	id, ok := record["id"].(string)
	if !ok || id == "" {
		t.Fatalf("Upload() record has no id: %v", record)
	}
	if record["size"] != int64(len(content)) {
		t.Errorf("Upload() size = %v, want %d", record["size"], len(content))
	}

	var buf bytes.Buffer
	if err := archive.Download(ctx, id, &buf); err != nil {
		t.Fatalf("Download() error: %v", err)
	}
	if got := buf.String(); got != content {
		t.Errorf("Download() = %q, want %q", got, content)
	}
}

func TestFileSystemArchive_UploadSizeMismatch(t *testing.T) {
	archive := newTestFSArchive(t)

	content := "test"
	_, err := archive.Upload(context.Background(), nil, strings.NewReader(content), int64(len(content)+10))
	if err == nil {
		t.Error("Upload() expected error for size mismatch, got nil")
	}

	// A failed upload must not leave partial files behind.
	entries, err := os.ReadDir(archive.root)
	if err != nil {
		t.Fatalf("ReadDir() error: %v", err)
	}
	if len(entries) != 0 {
		t.Errorf("archive root has %d leftover entries after failed upload, want 0", len(entries))
	}
}

func TestFileSystemArchive_ListSurvivesReopen(t *testing.T) {
	root := t.TempDir()
	ctx := context.Background()

	first, err := NewFileSystemArchive("test-archive", root)
	if err != nil {
		t.Fatalf("NewFileSystemArchive() error: %v", err)
	}
	props := map[string]string{"snapshot_slug": "abc123", "name": "Snapshot 1"}
	if _, err := first.Upload(ctx, props, strings.NewReader("content"), 7); err != nil {
		t.Fatalf("Upload() error: %v", err)
	}

	// A fresh instance over the same root sees the stored snapshot.
	second, err := NewFileSystemArchive("test-archive", root)
	if err != nil {
		t.Fatalf("NewFileSystemArchive() error: %v", err)
	}
	records, err := second.List(ctx)
	if err != nil {
		t.Fatalf("List() error: %v", err)
	}
	if len(records) != 1 {
		t.Fatalf("List() returned %d records, want 1", len(records))
	}
	got := records[0]["appProperties"].(map[string]string)
	if got["snapshot_slug"] != "abc123" || got["name"] != "Snapshot 1" {
		t.Errorf("List() appProperties = %v, want %v", got, props)
	}
}

func TestFileSystemArchive_ListIgnoresStrayFiles(t *testing.T) {
	archive := newTestFSArchive(t)
	ctx := context.Background()

	if _, err := archive.Upload(ctx, nil, strings.NewReader("content"), 7); err != nil {
		t.Fatalf("Upload() error: %v", err)
	}
	if err := os.WriteFile(filepath.Join(archive.root, "notes.txt"), []byte("x"), 0644); err != nil {
		t.Fatalf("WriteFile() error: %v", err)
	}

	records, err := archive.List(ctx)
	if err != nil {
		t.Fatalf("List() error: %v", err)
	}
	if len(records) != 1 {
		t.Errorf("List() returned %d records, want 1", len(records))
	}
}

func TestFileSystemArchive_Delete(t *testing.T) {
	archive := newTestFSArchive(t)
	ctx := context.Background()

	record, err := archive.Upload(ctx, nil, strings.NewReader("content"), 7)
	if err != nil {
		t.Fatalf("Upload() error: %v", err)
	}
	id := record["id"].(string)

	if err := archive.Delete(ctx, id); err != nil {
		t.Fatalf("Delete() error: %v", err)
	}

	entries, err := os.ReadDir(archive.root)
	if err != nil {
		t.Fatalf("ReadDir() error: %v", err)
	}
	if len(entries) != 0 {
		t.Errorf("archive root has %d entries after delete, want 0", len(entries))
	}

	if err := archive.Delete(ctx, id); err == nil {
		t.Error("Delete() expected error for deleted id, got nil")
	}
}

func TestFileSystemArchive_SetRetained(t *testing.T) {
	archive := newTestFSArchive(t)
	ctx := context.Background()

	record, err := archive.Upload(ctx, map[string]string{"retained": "false"}, strings.NewReader("content"), 7)
	if err != nil {
		t.Fatalf("Upload() error: %v", err)
	}
	id := record["id"].(string)

	if err := archive.SetRetained(ctx, id, true); err != nil {
		t.Fatalf("SetRetained() error: %v", err)
	}

	records, err := archive.List(ctx)
	if err != nil {
		t.Fatalf("List() error: %v", err)
	}
	if got := records[0]["appProperties"].(map[string]string)["retained"]; got != "true" {
		t.Errorf("retained = %q, want %q", got, "true")
	}
}

func TestFileSystemArchive_ValidateSetup(t *testing.T) {
	archive := newTestFSArchive(t)

	if err := archive.ValidateSetup(context.Background()); err != nil {
		t.Errorf("ValidateSetup() unexpected error: %v", err)
	}
}
