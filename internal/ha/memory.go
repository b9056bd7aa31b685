package ha

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/asboyob/hassio-google-drive-backup/internal/model"
)

// MemorySupervisor is an in-memory implementation of the engine.Supervisor
// interface for tests and the memory deployment mode. Slugs are sequential,
// so tests get stable identifiers.
type MemorySupervisor struct {
	clock   model.Clock
	version string

	mu        sync.Mutex
	counter   int
	snapshots map[string]*memorySnapshot
	createErr error
}

type memorySnapshot struct {
	name      string
	date      time.Time
	protected bool
	content   []byte
}

// NewMemorySupervisor creates an empty in-memory supervisor reporting the
// given Home Assistant version.
func NewMemorySupervisor(clock model.Clock, version string) *MemorySupervisor {
	return &MemorySupervisor{
		clock:     clock,
		version:   version,
		snapshots: make(map[string]*memorySnapshot),
	}
}

// SetCreateError makes the next Create calls fail with err. Pass nil to
// clear.
func (s *MemorySupervisor) SetCreateError(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.createErr = err
}

func (s *MemorySupervisor) record(slug string, snap *memorySnapshot) map[string]any {
	return map[string]any{
		"slug":          slug,
		"name":          snap.name,
		"date":          snap.date.Format(time.RFC3339),
		"size":          float64(len(snap.content)) / (1024 * 1024),
		"type":          "full",
		"homeassistant": s.version,
		"protected":     snap.protected,
	}
}

// List returns the raw records of every snapshot.
func (s *MemorySupervisor) List(ctx context.Context) ([]map[string]any, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	records := make([]map[string]any, 0, len(s.snapshots))
	for slug, snap := range s.snapshots {
		records = append(records, s.record(slug, snap))
	}
	return records, nil
}

// Create builds a new snapshot and returns its slug.
func (s *MemorySupervisor) Create(ctx context.Context, name string, password string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.createErr != nil {
		return "", s.createErr
	}

	s.counter++
	slug := fmt.Sprintf("%08x", s.counter)
	s.snapshots[slug] = &memorySnapshot{
		name:      name,
		date:      s.clock.Now(),
		protected: password != "",
		content:   []byte("snapshot content for " + slug),
	}
	return slug, nil
}

// Download streams the snapshot tarball.
func (s *MemorySupervisor) Download(ctx context.Context, slug string) (io.ReadCloser, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	snap, ok := s.snapshots[slug]
	if !ok {
		return nil, fmt.Errorf("snapshot not found: %s", slug)
	}
	return io.NopCloser(bytes.NewReader(snap.content)), nil
}

// Upload imports a snapshot tarball and returns the assigned slug.
func (s *MemorySupervisor) Upload(ctx context.Context, r io.Reader) (string, error) {
	content, err := io.ReadAll(r)
	if err != nil {
		return "", fmt.Errorf("reading uploaded snapshot: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.counter++
	slug := fmt.Sprintf("%08x", s.counter)
	s.snapshots[slug] = &memorySnapshot{
		name:    "Restored snapshot",
		date:    s.clock.Now(),
		content: content,
	}
	return slug, nil
}

// Delete removes the snapshot.
func (s *MemorySupervisor) Delete(ctx context.Context, slug string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.snapshots[slug]; !ok {
		return fmt.Errorf("snapshot not found: %s", slug)
	}
	delete(s.snapshots, slug)
	return nil
}
