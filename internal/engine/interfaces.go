package engine

import (
	"context"
	"io"
	"time"
)

// Archive is a remote archive store holding finished snapshots. List returns
// raw file records; the engine wraps them in model views.
type Archive interface {
	// List returns the raw records of every archived snapshot.
	List(ctx context.Context) ([]map[string]any, error)

	// Upload stores snapshot content together with its properties and
	// returns the created raw record. size is the number of bytes that will
	// be read from r; pass a negative size when it is not known up front
	// (encrypted streams).
	Upload(ctx context.Context, props map[string]string, r io.Reader, size int64) (map[string]any, error)

	// Download writes the content of the record identified by id to w.
	Download(ctx context.Context, id string, w io.Writer) error

	// Delete removes the record and its content.
	Delete(ctx context.Context, id string) error

	// SetRetained rewrites the retained property on the stored record.
	SetRetained(ctx context.Context, id string, retained bool) error

	// ValidateSetup verifies that the archive is accessible and configured.
	ValidateSetup(ctx context.Context) error
}

// Supervisor is the Home Assistant supervisor's snapshot API.
type Supervisor interface {
	// List returns the raw records of every snapshot the supervisor holds.
	List(ctx context.Context) ([]map[string]any, error)

	// Create requests a new full snapshot and returns its slug. password,
	// when non-empty, makes the snapshot protected.
	Create(ctx context.Context, name string, password string) (string, error)

	// Download streams the snapshot tarball.
	Download(ctx context.Context, slug string) (io.ReadCloser, error)

	// Upload imports a snapshot tarball and returns the assigned slug.
	Upload(ctx context.Context, r io.Reader) (string, error)

	// Delete removes the snapshot from the supervisor.
	Delete(ctx context.Context, slug string) error
}

// Event is one recorded sync operation.
type Event struct {
	ID        string
	Operation string
	Slug      string
	Detail    string
	CreatedAt time.Time
}

// Ledger persists sync history and locally-retained slugs. The supervisor
// has no retention concept of its own, so the flag must live on our side.
type Ledger interface {
	RecordEvent(event *Event) error

	// ListEvents returns the most recent events, newest first.
	ListEvents(limit int) ([]*Event, error)

	SetRetained(slug string, retained bool) error

	// RetainedSlugs returns the set of slugs retained on the supervisor side.
	RetainedSlugs() (map[string]bool, error)

	Close() error
}

// Encryptor handles encryption of archive uploads and unlocking for restore.
// Encryption uses the public key only; decryption requires a passphrase to
// unlock the private key, producing a DecryptionContext for the session.
type Encryptor interface {
	// Setup performs one-time key generation. Called during `hgdb config init`.
	Setup(passphrase string) error

	// Encrypt encrypts data read from r and writes ciphertext to w.
	Encrypt(r io.Reader, w io.Writer) error

	// Unlock decrypts the private key using the passphrase and returns a
	// DecryptionContext that can decrypt data for the duration of the session.
	Unlock(passphrase string) (DecryptionContext, error)

	// IsConfigured returns true if the key material exists.
	IsConfigured() bool
}

// DecryptionContext holds an unlocked private key in memory for the duration
// of a restore session. Created by Encryptor.Unlock.
type DecryptionContext interface {
	Decrypt(r io.Reader, w io.Writer) error
}
