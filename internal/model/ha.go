package model

import (
	"fmt"
	"strconv"
	"time"
)

// haRequiredKeys are the keys a raw supervisor record must carry.
var haRequiredKeys = []string{"name", "slug", "size", "date", "type", "homeassistant", "protected"}

// HASnapshot is a read-only view over one raw snapshot record from the
// Home Assistant supervisor. The supervisor has no retention concept of its
// own, so the retained flag is supplied by the caller at construction.
type HASnapshot struct {
	source    map[string]any
	name      string
	slug      string
	sizeMiB   int64
	date      time.Time
	kind      string
	version   string
	protected bool
	retained  bool
}

var _ SnapshotSource = (*HASnapshot)(nil)

// NewHASnapshot wraps a raw supervisor record. Every key the supervisor
// documents is required; a missing one is a MissingFieldError.
func NewHASnapshot(source map[string]any, retained bool) (*HASnapshot, error) {
	copied := make(map[string]any, len(source))
	for k, v := range source {
		copied[k] = v
	}
	for _, key := range haRequiredKeys {
		if _, ok := copied[key]; !ok {
			return nil, &MissingFieldError{Source: "ha", Field: key}
		}
	}

	date, err := parseDate(fmt.Sprint(copied["date"]))
	if err != nil {
		return nil, fmt.Errorf("parsing date: %w", err)
	}
	size, ok := asInt64(copied["size"])
	if !ok {
		return nil, fmt.Errorf("unparseable size %v in supervisor record", copied["size"])
	}

	return &HASnapshot{
		source:    copied,
		name:      fmt.Sprint(copied["name"]),
		slug:      fmt.Sprint(copied["slug"]),
		sizeMiB:   size,
		date:      date,
		kind:      fmt.Sprint(copied["type"]),
		version:   fmt.Sprint(copied["homeassistant"]),
		protected: asBool(copied["protected"]),
		retained:  retained,
	}, nil
}

func (h *HASnapshot) Name() string { return h.name }

func (h *HASnapshot) Slug() string { return h.slug }

// Size returns the snapshot size in bytes. The supervisor reports MiB.
func (h *HASnapshot) Size() int64 { return h.sizeMiB * 1024 * 1024 }

func (h *HASnapshot) Date() time.Time { return h.date }

func (h *HASnapshot) SnapshotType() string { return h.kind }

// Version is the Home Assistant version the snapshot was taken on.
func (h *HASnapshot) Version() string { return h.version }

func (h *HASnapshot) Protected() bool { return h.protected }

func (h *HASnapshot) Retained() bool { return h.retained }

// ArchiveProps builds the appProperties mapping stored alongside the
// snapshot content when it is uploaded to the archive.
func (h *HASnapshot) ArchiveProps() map[string]string {
	return map[string]string{
		propKeySlug:   h.slug,
		propKeyDate:   h.date.Format(time.RFC3339),
		propKeyName:   h.name,
		propType:      h.kind,
		propVersion:   h.version,
		propProtected: strconv.FormatBool(h.protected),
		propRetained:  strconv.FormatBool(h.retained),
	}
}

// Details returns the backing record for display purposes.
func (h *HASnapshot) Details() map[string]any { return h.source }

func (h *HASnapshot) String() string {
	return fmt.Sprintf("<HA: %s Name: %s %s>", h.slug, h.name, h.date.Format(time.RFC3339))
}
