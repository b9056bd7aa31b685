package archive

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
)

// FileSystemArchive is a filesystem-based implementation of the
// engine.Archive interface. Each snapshot is stored as a pair of files:
//
//	<root>/
//	  <id>.json   (raw record: id, size, appProperties)
//	  <id>.tar    (snapshot content)
type FileSystemArchive struct {
	name string
	root string
}

// NewFileSystemArchive creates a new filesystem archive rooted at the given path.
func NewFileSystemArchive(name, root string) (*FileSystemArchive, error) {
	if err := os.MkdirAll(root, 0755); err != nil {
		return nil, fmt.Errorf("failed to create archive directory: %w", err)
	}
	return &FileSystemArchive{name: name, root: root}, nil
}

// fsRecord is the on-disk shape of one raw record.
type fsRecord struct {
	ID            string            `json:"id"`
	Size          int64             `json:"size"`
	AppProperties map[string]string `json:"appProperties"`
}

func (f *FileSystemArchive) recordPath(id string) string {
	return filepath.Join(f.root, id+".json")
}

func (f *FileSystemArchive) contentPath(id string) string {
	return filepath.Join(f.root, id+".tar")
}

// List returns the raw records of every archived snapshot.
func (f *FileSystemArchive) List(ctx context.Context) ([]map[string]any, error) {
	entries, err := os.ReadDir(f.root)
	if err != nil {
		return nil, fmt.Errorf("reading archive directory: %w", err)
	}

	var records []map[string]any
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".json") {
			continue
		}
		record, err := f.readRecord(strings.TrimSuffix(entry.Name(), ".json"))
		if err != nil {
			return nil, err
		}
		records = append(records, record.raw())
	}
	return records, nil
}

func (f *FileSystemArchive) readRecord(id string) (*fsRecord, error) {
	data, err := os.ReadFile(f.recordPath(id))
	if err != nil {
		return nil, fmt.Errorf("reading record %s: %w", id, err)
	}
	var record fsRecord
	if err := json.Unmarshal(data, &record); err != nil {
		return nil, fmt.Errorf("decoding record %s: %w", id, err)
	}
	return &record, nil
}

func (f *FileSystemArchive) writeRecord(record *fsRecord) error {
	data, err := json.MarshalIndent(record, "", "  ")
	if err != nil {
		return fmt.Errorf("encoding record %s: %w", record.ID, err)
	}
	// Write via temp file + rename so a crashed write never leaves a
	// half-written record behind.
	tmp := f.recordPath(record.ID) + ".tmp"
	if err := os.WriteFile(tmp, data, 0644); err != nil {
		return fmt.Errorf("writing record %s: %w", record.ID, err)
	}
	if err := os.Rename(tmp, f.recordPath(record.ID)); err != nil {
		return fmt.Errorf("committing record %s: %w", record.ID, err)
	}
	return nil
}

func (r *fsRecord) raw() map[string]any {
	props := make(map[string]string, len(r.AppProperties))
	for k, v := range r.AppProperties {
		props[k] = v
	}
	return map[string]any{
		"id":            r.ID,
		"size":          r.Size,
		"appProperties": props,
	}
}

// Upload stores snapshot content with its properties and returns the
// created raw record. A negative size skips the length check.
func (f *FileSystemArchive) Upload(ctx context.Context, props map[string]string, r io.Reader, size int64) (map[string]any, error) {
	id := uuid.New().String()

	dest, err := os.Create(f.contentPath(id))
	if err != nil {
		return nil, fmt.Errorf("creating content file: %w", err)
	}
	written, err := io.Copy(dest, r)
	if cerr := dest.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		os.Remove(f.contentPath(id))
		return nil, fmt.Errorf("writing content: %w", err)
	}
	if size >= 0 && written != size {
		os.Remove(f.contentPath(id))
		return nil, fmt.Errorf("size mismatch: expected %d bytes, got %d", size, written)
	}

	owned := make(map[string]string, len(props))
	for k, v := range props {
		owned[k] = v
	}
	record := &fsRecord{ID: id, Size: written, AppProperties: owned}
	if err := f.writeRecord(record); err != nil {
		os.Remove(f.contentPath(id))
		return nil, err
	}
	return record.raw(), nil
}

// Download writes the content identified by id to w.
func (f *FileSystemArchive) Download(ctx context.Context, id string, w io.Writer) error {
	src, err := os.Open(f.contentPath(id))
	if err != nil {
		if os.IsNotExist(err) {
			return fmt.Errorf("snapshot not found: %s", id)
		}
		return fmt.Errorf("opening content %s: %w", id, err)
	}
	defer src.Close()

	if _, err := io.Copy(w, src); err != nil {
		return fmt.Errorf("reading content %s: %w", id, err)
	}
	return nil
}

// Delete removes the record and its content.
func (f *FileSystemArchive) Delete(ctx context.Context, id string) error {
	if err := os.Remove(f.recordPath(id)); err != nil {
		if os.IsNotExist(err) {
			return fmt.Errorf("snapshot not found: %s", id)
		}
		return fmt.Errorf("deleting record %s: %w", id, err)
	}
	if err := os.Remove(f.contentPath(id)); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("deleting content %s: %w", id, err)
	}
	return nil
}

// SetRetained rewrites the retained property on the stored record.
func (f *FileSystemArchive) SetRetained(ctx context.Context, id string, retained bool) error {
	record, err := f.readRecord(id)
	if err != nil {
		return err
	}
	if record.AppProperties == nil {
		record.AppProperties = make(map[string]string)
	}
	record.AppProperties["retained"] = fmt.Sprintf("%t", retained)
	return f.writeRecord(record)
}

// ValidateSetup verifies that the archive directory is accessible.
func (f *FileSystemArchive) ValidateSetup(ctx context.Context) error {
	info, err := os.Stat(f.root)
	if err != nil {
		return fmt.Errorf("archive root not accessible: %w", err)
	}
	if !info.IsDir() {
		return fmt.Errorf("archive root is not a directory: %s", f.root)
	}
	return nil
}
