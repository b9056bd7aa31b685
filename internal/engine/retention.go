package engine

import (
	"context"
	"fmt"
	"sort"

	"github.com/asboyob/hassio-google-drive-backup/internal/model"
)

// ApplyRetention marks over-quota snapshots for deletion and then executes
// every delete intent, including intents set by callers. Retained snapshots
// are never pruned; the oldest eligible ones go first.
func (e *Engine) ApplyRetention(ctx context.Context) error {
	e.mu.Lock()
	e.planDrivePruning()
	e.planHAPruning()

	var fromDrive, fromHA []*model.Snapshot
	for _, s := range e.snapshots {
		if s.DeleteNextFromDrive() && s.IsInDrive() {
			fromDrive = append(fromDrive, s)
		}
		if s.DeleteNextFromHA() && s.IsInHA() {
			fromHA = append(fromHA, s)
		}
	}
	e.mu.Unlock()

	for _, s := range fromDrive {
		if err := e.deleteFromDrive(ctx, s); err != nil {
			return err
		}
	}
	for _, s := range fromHA {
		if err := e.deleteFromHA(ctx, s); err != nil {
			return err
		}
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	for slug, s := range e.snapshots {
		if s.IsDeleted() {
			delete(e.snapshots, slug)
		}
	}
	return nil
}

// planDrivePruning sets delete intents on the oldest unretained archive
// copies beyond the configured quota. Caller holds the mutex.
func (e *Engine) planDrivePruning() {
	if e.settings.MaxInDrive <= 0 {
		return
	}
	inDrive := e.sortedWhere(func(s *model.Snapshot) bool { return s.IsInDrive() })
	over := len(inDrive) - e.settings.MaxInDrive
	for _, s := range inDrive {
		if over <= 0 {
			break
		}
		if s.DriveRetained() {
			continue
		}
		s.SetDeleteNextFromDrive(true)
		over--
	}
}

// planHAPruning is the supervisor-side counterpart of planDrivePruning.
func (e *Engine) planHAPruning() {
	if e.settings.MaxInHA <= 0 {
		return
	}
	inHA := e.sortedWhere(func(s *model.Snapshot) bool { return s.IsInHA() })
	over := len(inHA) - e.settings.MaxInHA
	for _, s := range inHA {
		if over <= 0 {
			break
		}
		if s.HARetained() {
			continue
		}
		s.SetDeleteNextFromHA(true)
		over--
	}
}

// sortedWhere returns matching snapshots ordered oldest first. Caller holds
// the mutex.
func (e *Engine) sortedWhere(match func(*model.Snapshot) bool) []*model.Snapshot {
	var out []*model.Snapshot
	for _, s := range e.snapshots {
		if match(s) {
			out = append(out, s)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Date().Before(out[j].Date()) })
	return out
}

func (e *Engine) deleteFromDrive(ctx context.Context, s *model.Snapshot) error {
	slug := s.Slug()
	id := s.Drive().ID()
	e.logger.Info("deleting archived snapshot", "slug", slug)
	if err := e.archive.Delete(ctx, id); err != nil {
		return fmt.Errorf("deleting %s from archive: %w", slug, err)
	}

	e.mu.Lock()
	s.ClearDrive()
	s.SetDeleteNextFromDrive(false)
	e.mu.Unlock()

	e.recordEvent("delete_drive", slug, id)
	return nil
}

func (e *Engine) deleteFromHA(ctx context.Context, s *model.Snapshot) error {
	slug := s.Slug()
	e.logger.Info("deleting supervisor snapshot", "slug", slug)
	if err := e.supervisor.Delete(ctx, slug); err != nil {
		return fmt.Errorf("deleting %s from supervisor: %w", slug, err)
	}

	e.mu.Lock()
	s.ClearHA()
	s.SetDeleteNextFromHA(false)
	e.mu.Unlock()

	e.recordEvent("delete_ha", slug, "")
	return nil
}

// Retain sets or clears retention on both stores. The archive copy carries
// the flag in its record; the supervisor copy cannot, so the flag goes to
// the ledger and is re-applied on every refresh.
func (e *Engine) Retain(ctx context.Context, slug string, retainDrive, retainHA bool) error {
	e.mu.Lock()
	s := e.snapshots[slug]
	if s == nil {
		e.mu.Unlock()
		return fmt.Errorf("unknown snapshot %q", slug)
	}
	var driveID string
	if s.IsInDrive() {
		driveID = s.Drive().ID()
	}
	e.mu.Unlock()

	if driveID != "" {
		if err := e.archive.SetRetained(ctx, driveID, retainDrive); err != nil {
			return fmt.Errorf("updating archive retention: %w", err)
		}
	}
	if err := e.ledger.SetRetained(slug, retainHA); err != nil {
		return fmt.Errorf("persisting retain flag: %w", err)
	}

	e.mu.Lock()
	if s.IsInDrive() {
		s.Drive().SetRetain(retainDrive)
	}
	s.RequestRetain(retainDrive, retainHA)
	e.mu.Unlock()

	e.recordEvent("retain", slug, fmt.Sprintf("drive=%t ha=%t", retainDrive, retainHA))
	return nil
}
