package testutil

import (
	"sync"

	"github.com/asboyob/hassio-google-drive-backup/internal/engine"
)

// MemoryLedger is an in-memory implementation of the engine.Ledger interface
// for tests. Optional error knobs make individual operations fail.
type MemoryLedger struct {
	mu       sync.Mutex
	events   []*engine.Event
	retained map[string]bool

	RecordErr error
	RetainErr error
}

func NewMemoryLedger() *MemoryLedger {
	return &MemoryLedger{retained: make(map[string]bool)}
}

func (l *MemoryLedger) RecordEvent(event *engine.Event) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.RecordErr != nil {
		return l.RecordErr
	}
	l.events = append(l.events, event)
	return nil
}

func (l *MemoryLedger) ListEvents(limit int) ([]*engine.Event, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	events := make([]*engine.Event, 0, limit)
	for i := len(l.events) - 1; i >= 0 && len(events) < limit; i-- {
		events = append(events, l.events[i])
	}
	return events, nil
}

func (l *MemoryLedger) SetRetained(slug string, retained bool) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.RetainErr != nil {
		return l.RetainErr
	}
	if retained {
		l.retained[slug] = true
	} else {
		delete(l.retained, slug)
	}
	return nil
}

func (l *MemoryLedger) RetainedSlugs() (map[string]bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	slugs := make(map[string]bool, len(l.retained))
	for slug := range l.retained {
		slugs[slug] = true
	}
	return slugs, nil
}

func (l *MemoryLedger) Close() error { return nil }

// Operations returns the operation names of all recorded events in order.
func (l *MemoryLedger) Operations() []string {
	l.mu.Lock()
	defer l.mu.Unlock()

	ops := make([]string, len(l.events))
	for i, event := range l.events {
		ops[i] = event.Operation
	}
	return ops
}

var _ engine.Ledger = (*MemoryLedger)(nil)
