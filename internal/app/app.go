package app

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/asboyob/hassio-google-drive-backup/internal/archive"
	"github.com/asboyob/hassio-google-drive-backup/internal/config"
	"github.com/asboyob/hassio-google-drive-backup/internal/database"
	"github.com/asboyob/hassio-google-drive-backup/internal/encryption"
	"github.com/asboyob/hassio-google-drive-backup/internal/engine"
	"github.com/asboyob/hassio-google-drive-backup/internal/ha"
	"github.com/asboyob/hassio-google-drive-backup/internal/model"
)

// App is the application layer between the CLI and the sync engine. It
// constructs all dependencies from config, exposes the high-level operations
// the commands call, and manages the ledger lifecycle on Close.
type App struct {
	cfg       *config.Config
	engine    *engine.Engine
	ledger    engine.Ledger
	encryptor engine.Encryptor
	logFile   *os.File
}

// NewApp creates a fully wired App from the given config. The caller must
// call Close when done.
func NewApp(ctx context.Context, cfg *config.Config) (*App, error) {
	clock := model.RealClock{}

	supervisor, err := ha.NewSupervisorFromConfig(cfg.Supervisor, clock)
	if err != nil {
		return nil, fmt.Errorf("creating supervisor client: %w", err)
	}

	arch, err := archive.NewArchiveFromConfig(ctx, cfg.Archive)
	if err != nil {
		return nil, fmt.Errorf("creating archive: %w", err)
	}

	ledger, err := database.NewLedgerFromConfig(cfg.Database)
	if err != nil {
		return nil, fmt.Errorf("creating ledger: %w", err)
	}

	encryptor, err := encryption.NewEncryptorFromConfig(cfg.Encryption)
	if err != nil {
		ledger.Close()
		return nil, fmt.Errorf("creating encryptor: %w", err)
	}

	runID := time.Now().UTC().Format("20060102T150405Z")
	logger, logFile, err := newLogger(cfg.LogDir, runID)
	if err != nil {
		ledger.Close()
		return nil, fmt.Errorf("creating logger: %w", err)
	}

	settings := engine.Settings{
		MaxInDrive:     cfg.Retention.MaxInDrive,
		MaxInHA:        cfg.Retention.MaxInHA,
		EncryptUploads: cfg.Encryption.EncryptUploads,
	}
	eng := engine.NewEngine(arch, supervisor, ledger, encryptor,
		&slogAdapter{l: logger}, clock, engine.UUIDGenerator{}, settings)

	return &App{
		cfg:       cfg,
		engine:    eng,
		ledger:    ledger,
		encryptor: encryptor,
		logFile:   logFile,
	}, nil
}

// Status refreshes from both stores and returns every known snapshot,
// oldest first.
func (a *App) Status(ctx context.Context) ([]*model.Snapshot, error) {
	if err := a.engine.Refresh(ctx); err != nil {
		return nil, err
	}
	return a.engine.Snapshots(), nil
}

// Sync brings the stores into the desired state: refresh, upload every
// supervisor snapshot that has no archive copy yet, then apply retention.
func (a *App) Sync(ctx context.Context) error {
	if err := a.engine.Refresh(ctx); err != nil {
		return err
	}

	for _, s := range a.engine.Snapshots() {
		if s.IsInHA() && !s.IsInDrive() && s.WillBackup() {
			if err := a.engine.Upload(ctx, s.Slug()); err != nil {
				return fmt.Errorf("uploading %s: %w", s.Slug(), err)
			}
		}
	}

	return a.engine.ApplyRetention(ctx)
}

// Backup creates a new supervisor snapshot and tracks it. password, when
// non-empty, makes the snapshot protected.
func (a *App) Backup(ctx context.Context, name, password string, retainDrive, retainHA bool) (*model.Snapshot, error) {
	if err := a.engine.Refresh(ctx); err != nil {
		return nil, err
	}
	return a.engine.Backup(ctx, name, password, retainDrive, retainHA)
}

// Upload pushes one supervisor snapshot into the archive.
func (a *App) Upload(ctx context.Context, slug string) error {
	if err := a.engine.Refresh(ctx); err != nil {
		return err
	}
	return a.engine.Upload(ctx, slug)
}

// Restore streams an archived snapshot back into the supervisor. passphrase
// is only needed when uploads are encrypted.
func (a *App) Restore(ctx context.Context, slug, passphrase string) error {
	if err := a.engine.Refresh(ctx); err != nil {
		return err
	}
	return a.engine.Restore(ctx, slug, passphrase)
}

// Retain sets or clears retention on both stores for one snapshot.
func (a *App) Retain(ctx context.Context, slug string, retainDrive, retainHA bool) error {
	if err := a.engine.Refresh(ctx); err != nil {
		return err
	}
	return a.engine.Retain(ctx, slug, retainDrive, retainHA)
}

// History returns the most recent ledger events, newest first.
func (a *App) History(limit int) ([]*engine.Event, error) {
	return a.engine.History(limit)
}

// SetupEncryption performs one-time key generation for upload encryption.
func (a *App) SetupEncryption(passphrase string) error {
	if a.encryptor.IsConfigured() {
		return fmt.Errorf("encryption keys already exist")
	}
	return a.encryptor.Setup(passphrase)
}

// Close releases the ledger and the log file.
func (a *App) Close() error {
	var firstErr error
	if err := a.ledger.Close(); err != nil {
		firstErr = fmt.Errorf("closing ledger: %w", err)
	}
	if a.logFile != nil {
		a.logFile.Close()
	}
	return firstErr
}
