package model

import (
	"fmt"
	"time"
)

// transfer tracks one direction of snapshot movement. The zero value means
// no transfer is underway.
type transfer struct {
	active  bool
	percent int
	failed  bool
}

type restoreState int

const (
	restoreIdle restoreState = iota
	restoreRunning
	restoreDone
)

// Snapshot reconciles the observations of a single backup across the Drive
// archive, the Home Assistant supervisor, and a pending creation not yet
// seen in either. It is the single source of truth the sync engine queries
// for intent and the CLI renders for display.
//
// Snapshot has no internal locking: the engine serializes all mutating
// calls against one instance. Accessors never mutate, so concurrent reads
// are safe.
type Snapshot struct {
	drive *DriveSnapshot
	ha    *HASnapshot
	clock Clock

	pending       bool
	pendingName   string
	pendingDate   time.Time
	pendingSlug   string
	pendingFailed bool

	// Retain requested before a concrete record existed to carry the flag.
	pendingRetainDrive bool
	pendingRetainHA    bool

	download transfer
	upload   transfer
	restore  restoreState

	willBackup bool

	// Intent flags written and read by the sync engine; never acted on here.
	deleteNextFromDrive bool
	deleteNextFromHA    bool
}

// NewSnapshot creates a Snapshot from an observed record, or a pending
// placeholder when source is nil. clock feeds the date fallback of a fully
// absent snapshot; nil means the real clock.
func NewSnapshot(source SnapshotSource, clock Clock) *Snapshot {
	if clock == nil {
		clock = RealClock{}
	}
	s := &Snapshot{clock: clock, willBackup: true}
	switch v := source.(type) {
	case *HASnapshot:
		s.ha = v
	case *DriveSnapshot:
		s.drive = v
	default:
		s.pending = true
	}
	return s
}

// SetPending marks this snapshot as expected but not yet observed anywhere.
// The slug holds the sentinel "PENDING" until EndPending supplies the real
// one. The retain flags are remembered until a concrete record exists to
// carry them.
func (s *Snapshot) SetPending(name string, date time.Time, retainDrive, retainHA bool) {
	s.pendingName = name
	s.pendingDate = date
	s.pendingSlug = pendingSlugSentinel
	s.pending = true
	s.pendingRetainDrive = retainDrive
	s.pendingRetainHA = retainHA
}

// EndPending records the slug assigned by the supervisor. The snapshot stays
// pending until the created record is actually observed.
func (s *Snapshot) EndPending(slug string) { s.pendingSlug = slug }

// MarkPendingFailed records that the in-flight creation failed. IsPending
// reports false from here on.
func (s *Snapshot) MarkPendingFailed() { s.pendingFailed = true }

func (s *Snapshot) SetWillBackup(will bool) { s.willBackup = will }

func (s *Snapshot) WillBackup() bool { return s.willBackup }

// SetDrive attaches an observed Drive record, ending the pending phase and
// any upload in progress.
func (s *Snapshot) SetDrive(drive *DriveSnapshot) {
	s.drive = drive
	s.clearPending()
	s.upload = transfer{}
}

// SetHA attaches an observed supervisor record, ending the pending phase
// and any transfers in progress.
func (s *Snapshot) SetHA(ha *HASnapshot) {
	s.ha = ha
	s.clearPending()
	s.upload = transfer{}
	s.download = transfer{}
}

func (s *Snapshot) clearPending() {
	s.pendingName = ""
	s.pendingDate = time.Time{}
	s.pendingSlug = ""
	s.pending = false
}

// ClearDrive detaches the Drive record after a refresh no longer observes it.
func (s *Snapshot) ClearDrive() { s.drive = nil }

// ClearHA detaches the supervisor record after a refresh no longer observes it.
func (s *Snapshot) ClearHA() { s.ha = nil }

// Update re-attaches a freshly fetched record of the same kind, leaving all
// transient state untouched. Supervisor records go to the HA slot, Drive
// records to the Drive slot.
func (s *Snapshot) Update(source SnapshotSource) {
	switch v := source.(type) {
	case *HASnapshot:
		s.ha = v
	case *DriveSnapshot:
		s.drive = v
	}
}

// SetDownloading records download progress and clears any earlier failure.
func (s *Snapshot) SetDownloading(percent int) {
	s.download = transfer{active: true, percent: percent}
}

// MarkDownloadFailed records that the download in progress failed.
func (s *Snapshot) MarkDownloadFailed() { s.download.failed = true }

func (s *Snapshot) IsDownloading() bool { return s.download.active }

// SetUploading records upload progress.
func (s *Snapshot) SetUploading(percent int) {
	s.upload = transfer{active: true, percent: percent}
}

func (s *Snapshot) IsUploading() bool { return s.upload.active }

// StartRestore marks a restore as underway.
func (s *Snapshot) StartRestore() { s.restore = restoreRunning }

// FinishRestore marks a restore as just completed; Status reads
// "Restore Complete" until ClearRestore.
func (s *Snapshot) FinishRestore() { s.restore = restoreDone }

func (s *Snapshot) ClearRestore() { s.restore = restoreIdle }

func (s *Snapshot) IsRestoring() bool { return s.restore == restoreRunning }

func (s *Snapshot) SetDeleteNextFromDrive(del bool) { s.deleteNextFromDrive = del }

func (s *Snapshot) DeleteNextFromDrive() bool { return s.deleteNextFromDrive }

func (s *Snapshot) SetDeleteNextFromHA(del bool) { s.deleteNextFromHA = del }

func (s *Snapshot) DeleteNextFromHA() bool { return s.deleteNextFromHA }

func (s *Snapshot) IsInDrive() bool { return s.drive != nil }

func (s *Snapshot) IsInHA() bool { return s.ha != nil }

// Drive returns the attached Drive record, nil when absent.
func (s *Snapshot) Drive() *DriveSnapshot { return s.drive }

// HA returns the attached supervisor record, nil when absent.
func (s *Snapshot) HA() *HASnapshot { return s.ha }

// RequestRetain records retention intents for retention changes made after
// the snapshot exists. The supervisor record cannot carry the flag, so HA
// retention lives here until the ledger-backed flag is observed on the next
// refresh; the Drive intent bridges the gap until the archive record is
// rewritten.
func (s *Snapshot) RequestRetain(drive, ha bool) {
	s.pendingRetainDrive = drive
	s.pendingRetainHA = ha
}

// IsPending reports whether the snapshot is still an expected creation: the
// supervisor has not produced a record and the creation has not failed.
func (s *Snapshot) IsPending() bool {
	return s.pending && !s.IsInHA() && !s.pendingFailed
}

// IsDeleted reports whether the snapshot exists nowhere and is not expected
// to. The engine drops such snapshots on its next pass.
func (s *Snapshot) IsDeleted() bool {
	return !s.IsPending() && !s.IsInHA() && !s.IsInDrive()
}

// DriveRetained reports whether the archived copy is protected from pruning,
// either by its own record or by a retain requested before the record existed.
func (s *Snapshot) DriveRetained() bool {
	return s.IsInDrive() && (s.drive.Retained() || s.pendingRetainDrive)
}

// HARetained is the supervisor-side counterpart of DriveRetained.
func (s *Snapshot) HARetained() bool {
	return s.IsInHA() && (s.ha.Retained() || s.pendingRetainHA)
}

// Name prefers the Drive record, then the supervisor record, then the
// pending placeholder.
func (s *Snapshot) Name() string {
	switch {
	case s.drive != nil:
		return s.drive.Name()
	case s.ha != nil:
		return s.ha.Name()
	case s.pending && s.pendingName != "":
		return s.pendingName
	}
	return "error"
}

func (s *Snapshot) Slug() string {
	switch {
	case s.drive != nil:
		return s.drive.Slug()
	case s.ha != nil:
		return s.ha.Slug()
	case s.pending && s.pendingSlug != "":
		return s.pendingSlug
	}
	return "error"
}

func (s *Snapshot) Size() int64 {
	switch {
	case s.drive != nil:
		return s.drive.Size()
	case s.ha != nil:
		return s.ha.Size()
	}
	return 0
}

// Date prefers the Drive record, then the supervisor record, then the
// pending placeholder. A snapshot that exists nowhere has no meaningful
// date; the clock's current time is returned so callers always have
// something to sort on, but nothing should depend on it.
func (s *Snapshot) Date() time.Time {
	switch {
	case s.drive != nil:
		return s.drive.Date()
	case s.ha != nil:
		return s.ha.Date()
	case s.pending && !s.pendingDate.IsZero():
		return s.pendingDate
	}
	return s.clock.Now()
}

// SnapshotType prefers the supervisor record: the archived copy of the
// property is written once at upload and can go stale.
func (s *Snapshot) SnapshotType() string {
	switch {
	case s.ha != nil:
		return s.ha.SnapshotType()
	case s.drive != nil:
		return s.drive.SnapshotType()
	}
	return "pending"
}

// Version prefers the supervisor record, like SnapshotType.
func (s *Snapshot) Version() string {
	switch {
	case s.ha != nil:
		return s.ha.Version()
	case s.drive != nil:
		return s.drive.Version()
	}
	return "?"
}

func (s *Snapshot) Protected() bool {
	switch {
	case s.ha != nil:
		return s.ha.Protected()
	case s.drive != nil:
		return s.drive.Protected()
	}
	return false
}

// Details returns the raw backing record of whichever store has one.
func (s *Snapshot) Details() map[string]any {
	switch {
	case s.ha != nil:
		return s.ha.Details()
	case s.drive != nil:
		return s.drive.Details()
	}
	return map[string]any{}
}

// SizeString renders the size with binary units and truncating division.
func (s *Snapshot) SizeString() string {
	size := s.Size()
	switch {
	case size < 1024:
		return fmt.Sprintf("%d B", size)
	case size < 1024*1024:
		return fmt.Sprintf("%d kB", size/1024)
	case size < 1024*1024*1024:
		return fmt.Sprintf("%d MB", size/(1024*1024))
	}
	return fmt.Sprintf("%d GB", size/(1024*1024*1024))
}

// Status renders the human-readable state label. The first matching rule
// wins and the order is load-bearing: a restore preempts everything, a
// download in progress preempts "Backed Up".
func (s *Snapshot) Status() string {
	switch s.restore {
	case restoreRunning:
		return "Restoring"
	case restoreDone:
		return "Restore Complete"
	}
	if s.download.active {
		switch {
		case s.download.failed:
			return "Loading Failed!"
		case s.download.percent == 100:
			return "Refreshing snapshot"
		}
		return fmt.Sprintf("Loading %d%%", s.download.percent)
	}
	switch {
	case s.IsInDrive() && s.IsInHA():
		return "Backed Up"
	case s.IsInDrive():
		return "Drive Only"
	case s.IsInHA() && s.upload.active:
		return fmt.Sprintf("Uploading %d%%", s.upload.percent)
	case s.IsInHA() && s.willBackup:
		return "Waiting"
	case s.IsInHA():
		return "Hass.io Only"
	case s.pending:
		return "Pending"
	}
	return "Invalid State"
}

func (s *Snapshot) String() string {
	return fmt.Sprintf("<Slug: %s Ha: %t Drive: %t Pending: %t>",
		s.Slug(), s.IsInHA(), s.IsInDrive(), s.pending)
}
