package engine

import (
	"context"
	"fmt"

	"github.com/asboyob/hassio-google-drive-backup/internal/model"
)

// Backup asks the supervisor to create a new snapshot. The snapshot is
// tracked as pending from the moment the request is made; the concrete
// record attaches on the next Refresh that observes it.
func (e *Engine) Backup(ctx context.Context, name string, password string, retainDrive, retainHA bool) (*model.Snapshot, error) {
	e.mu.Lock()
	s := model.NewSnapshot(nil, e.clock)
	s.SetPending(name, e.clock.Now(), retainDrive, retainHA)
	e.snapshots[s.Slug()] = s // keyed by the PENDING sentinel until a slug exists
	e.mu.Unlock()

	e.logger.Info("creating snapshot", "name", name)
	slug, err := e.supervisor.Create(ctx, name, password)

	e.mu.Lock()
	defer e.mu.Unlock()

	if err != nil {
		// Keep the failed pending snapshot visible; the next Backup call
		// overwrites the sentinel key.
		s.MarkPendingFailed()
		e.recordEvent("backup_failed", s.Slug(), err.Error())
		return nil, fmt.Errorf("creating snapshot: %w", err)
	}

	delete(e.snapshots, s.Slug())
	s.EndPending(slug)
	e.snapshots[slug] = s

	if retainHA {
		if err := e.ledger.SetRetained(slug, true); err != nil {
			e.logger.Warn("persisting retain flag", "slug", slug, "error", err)
		}
	}

	e.recordEvent("backup", slug, name)
	return s, nil
}
