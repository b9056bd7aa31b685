package engine

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/asboyob/hassio-google-drive-backup/internal/model"
)

// Settings are the knobs the engine applies when syncing.
type Settings struct {
	// MaxInDrive and MaxInHA bound how many snapshots each store keeps.
	// Zero or negative means unlimited.
	MaxInDrive int
	MaxInHA    int

	// EncryptUploads routes archive uploads through the encryptor.
	EncryptUploads bool
}

// Engine reconciles the snapshots observed in the Drive archive and the
// Home Assistant supervisor into model.Snapshot aggregates and executes
// the resulting work: uploads, restores, retention and deletions.
//
// All mutation of the snapshot map and of individual snapshots happens
// behind one mutex; the model itself has no locking.
type Engine struct {
	archive    Archive
	supervisor Supervisor
	ledger     Ledger
	encryptor  Encryptor
	logger     Logger
	clock      model.Clock
	idgen      IDGenerator
	settings   Settings

	mu        sync.Mutex
	snapshots map[string]*model.Snapshot
}

// NewEngine creates an Engine with the provided dependencies. encryptor may
// be nil when EncryptUploads is off.
func NewEngine(archive Archive, supervisor Supervisor, ledger Ledger, encryptor Encryptor, logger Logger, clock model.Clock, idgen IDGenerator, settings Settings) *Engine {
	if clock == nil {
		clock = model.RealClock{}
	}
	return &Engine{
		archive:    archive,
		supervisor: supervisor,
		ledger:     ledger,
		encryptor:  encryptor,
		logger:     logger,
		clock:      clock,
		idgen:      idgen,
		settings:   settings,
		snapshots:  make(map[string]*model.Snapshot),
	}
}

// Refresh fetches the current records from both stores and merges them into
// the snapshot map: new records attach, known records update in place, and
// vanished records detach. Snapshots that end up existing nowhere are
// dropped.
func (e *Engine) Refresh(ctx context.Context) error {
	driveRecords, err := e.archive.List(ctx)
	if err != nil {
		return fmt.Errorf("listing archive: %w", err)
	}
	haRecords, err := e.supervisor.List(ctx)
	if err != nil {
		return fmt.Errorf("listing supervisor snapshots: %w", err)
	}
	retained, err := e.ledger.RetainedSlugs()
	if err != nil {
		return fmt.Errorf("loading retained slugs: %w", err)
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	seenDrive := make(map[string]bool, len(driveRecords))
	for _, record := range driveRecords {
		drive, err := model.NewDriveSnapshot(record)
		if err != nil {
			e.logger.Warn("skipping malformed archive record", "error", err)
			continue
		}
		seenDrive[drive.Slug()] = true
		if s, ok := e.snapshots[drive.Slug()]; ok {
			if s.IsInDrive() {
				s.Update(drive)
			} else {
				s.SetDrive(drive)
			}
		} else {
			e.snapshots[drive.Slug()] = model.NewSnapshot(drive, e.clock)
		}
	}

	seenHA := make(map[string]bool, len(haRecords))
	for _, record := range haRecords {
		slug := fmt.Sprint(record["slug"])
		ha, err := model.NewHASnapshot(record, retained[slug])
		if err != nil {
			e.logger.Warn("skipping malformed supervisor record", "error", err)
			continue
		}
		seenHA[ha.Slug()] = true
		if s, ok := e.snapshots[ha.Slug()]; ok {
			if s.IsInHA() {
				s.Update(ha)
			} else {
				s.SetHA(ha)
			}
		} else {
			e.snapshots[ha.Slug()] = model.NewSnapshot(ha, e.clock)
		}
	}

	for slug, s := range e.snapshots {
		if s.IsInDrive() && !seenDrive[slug] {
			s.ClearDrive()
		}
		if s.IsInHA() && !seenHA[slug] {
			s.ClearHA()
		}
		if s.IsDeleted() {
			delete(e.snapshots, slug)
			e.logger.Info("snapshot gone from both stores", "slug", slug)
		}
	}

	return nil
}

// Snapshots returns all known snapshots ordered oldest first.
func (e *Engine) Snapshots() []*model.Snapshot {
	e.mu.Lock()
	defer e.mu.Unlock()

	out := make([]*model.Snapshot, 0, len(e.snapshots))
	for _, s := range e.snapshots {
		out = append(out, s)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Date().Before(out[j].Date()) })
	return out
}

// Snapshot returns the snapshot with the given slug, nil when unknown.
func (e *Engine) Snapshot(slug string) *model.Snapshot {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.snapshots[slug]
}

// History returns the most recent ledger events, newest first.
func (e *Engine) History(limit int) ([]*Event, error) {
	events, err := e.ledger.ListEvents(limit)
	if err != nil {
		return nil, fmt.Errorf("listing events: %w", err)
	}
	return events, nil
}

// recordEvent writes a ledger entry. History is advisory: failures are
// logged, never propagated into the operation that triggered them.
func (e *Engine) recordEvent(operation, slug, detail string) {
	err := e.ledger.RecordEvent(&Event{
		ID:        e.idgen.New(),
		Operation: operation,
		Slug:      slug,
		Detail:    detail,
		CreatedAt: e.clock.Now(),
	})
	if err != nil {
		e.logger.Warn("recording event", "operation", operation, "slug", slug, "error", err)
	}
}
