package model

import "time"

// Property keys used in the appProperties mapping of a Drive file record.
const (
	propKeySlug   = "snapshot_slug"
	propKeyDate   = "snapshot_date"
	propKeyName   = "snapshot_name"
	propType      = "type"
	propVersion   = "version"
	propProtected = "protected"
	propRetained  = "retained"
)

// pendingSlugSentinel is the slug a pending snapshot carries until the
// supervisor assigns the real one.
const pendingSlugSentinel = "PENDING"

// SnapshotSource is the capability set shared by snapshot records regardless
// of which store they were observed in.
type SnapshotSource interface {
	Name() string
	Slug() string
	Size() int64
	Date() time.Time
}

// Clock abstracts time retrieval so fallback behavior is deterministic in tests.
type Clock interface {
	Now() time.Time
}

// RealClock returns the actual current time.
type RealClock struct{}

func (RealClock) Now() time.Time { return time.Now() }
