package archive

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"strconv"
	"sync"

	"github.com/google/uuid"
)

// MemoryArchive is an in-memory implementation of the engine.Archive
// interface. It is useful for tests and for running against a throwaway
// store. Safe for concurrent use.
type MemoryArchive struct {
	name string

	mu      sync.RWMutex
	props   map[string]map[string]string // id -> appProperties
	content map[string][]byte            // id -> snapshot tarball
}

// NewMemoryArchive creates a new in-memory archive with the given name.
func NewMemoryArchive(name string) *MemoryArchive {
	return &MemoryArchive{
		name:    name,
		props:   make(map[string]map[string]string),
		content: make(map[string][]byte),
	}
}

// List returns the raw records of every archived snapshot.
func (m *MemoryArchive) List(ctx context.Context) ([]map[string]any, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	records := make([]map[string]any, 0, len(m.props))
	for id := range m.props {
		records = append(records, m.recordLocked(id))
	}
	return records, nil
}

// recordLocked builds the raw record for an id. Caller holds a lock.
func (m *MemoryArchive) recordLocked(id string) map[string]any {
	props := make(map[string]string, len(m.props[id]))
	for k, v := range m.props[id] {
		props[k] = v
	}
	return map[string]any{
		"id":            id,
		"size":          strconv.Itoa(len(m.content[id])),
		"appProperties": props,
	}
}

// Upload stores snapshot content with its properties and returns the
// created raw record. A negative size skips the length check.
func (m *MemoryArchive) Upload(ctx context.Context, props map[string]string, r io.Reader, size int64) (map[string]any, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("failed to read content: %w", err)
	}
	if size >= 0 && int64(len(data)) != size {
		return nil, fmt.Errorf("size mismatch: expected %d bytes, got %d", size, len(data))
	}

	owned := make(map[string]string, len(props))
	for k, v := range props {
		owned[k] = v
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	id := uuid.New().String()
	m.props[id] = owned
	m.content[id] = data
	return m.recordLocked(id), nil
}

// Download writes the content identified by id to w.
func (m *MemoryArchive) Download(ctx context.Context, id string, w io.Writer) error {
	m.mu.RLock()
	defer m.mu.RUnlock()

	data, ok := m.content[id]
	if !ok {
		return fmt.Errorf("snapshot not found: %s", id)
	}
	if _, err := io.Copy(w, bytes.NewReader(data)); err != nil {
		return fmt.Errorf("failed to write content: %w", err)
	}
	return nil
}

// Delete removes the record and its content.
func (m *MemoryArchive) Delete(ctx context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.props[id]; !ok {
		return fmt.Errorf("snapshot not found: %s", id)
	}
	delete(m.props, id)
	delete(m.content, id)
	return nil
}

// SetRetained rewrites the retained property on the stored record.
func (m *MemoryArchive) SetRetained(ctx context.Context, id string, retained bool) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	props, ok := m.props[id]
	if !ok {
		return fmt.Errorf("snapshot not found: %s", id)
	}
	props["retained"] = strconv.FormatBool(retained)
	return nil
}

// ValidateSetup always succeeds for the in-memory archive.
func (m *MemoryArchive) ValidateSetup(ctx context.Context) error { return nil }
