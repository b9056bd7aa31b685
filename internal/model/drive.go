package model

import (
	"fmt"
	"strconv"
	"time"
)

// DriveSnapshot is a read-only view over one raw file record from the Drive
// archive. It owns a private copy of the record; the caller's map is never
// aliased or mutated.
type DriveSnapshot struct {
	source map[string]any
	props  map[string]string // the copy's appProperties, mutated by SetRetain
	date   time.Time
	id     string
	size   int64
}

var _ SnapshotSource = (*DriveSnapshot)(nil)

// NewDriveSnapshot wraps a raw Drive file record. The record must carry an
// appProperties mapping with at least snapshot_slug, snapshot_date and
// snapshot_name; anything less is a MissingFieldError.
func NewDriveSnapshot(source map[string]any) (*DriveSnapshot, error) {
	props, ok := copyProps(source["appProperties"])
	if !ok {
		return nil, &MissingFieldError{Source: "drive", Field: "appProperties"}
	}
	for _, key := range []string{propKeySlug, propKeyDate, propKeyName} {
		if _, ok := props[key]; !ok {
			return nil, &MissingFieldError{Source: "drive", Field: key}
		}
	}

	date, err := parseDate(props[propKeyDate])
	if err != nil {
		return nil, fmt.Errorf("parsing %s: %w", propKeyDate, err)
	}

	copied := make(map[string]any, len(source))
	for k, v := range source {
		copied[k] = v
	}
	copied["appProperties"] = props

	d := &DriveSnapshot{source: copied, props: props, date: date}
	if id, ok := copied["id"]; ok {
		d.id = fmt.Sprint(id)
	}
	if size, ok := asInt64(copied["size"]); ok {
		d.size = size
	}
	return d, nil
}

// copyProps copies an appProperties value into a fresh string map. Raw
// records arrive either JSON-decoded (map[string]any) or already typed.
func copyProps(value any) (map[string]string, bool) {
	switch v := value.(type) {
	case map[string]string:
		props := make(map[string]string, len(v))
		for k, val := range v {
			props[k] = val
		}
		return props, true
	case map[string]any:
		props := make(map[string]string, len(v))
		for k, val := range v {
			props[k] = fmt.Sprint(val)
		}
		return props, true
	}
	return nil, false
}

// ID returns the Drive file id, distinct from the snapshot slug.
func (d *DriveSnapshot) ID() string { return d.id }

func (d *DriveSnapshot) Name() string { return d.props[propKeyName] }

func (d *DriveSnapshot) Slug() string { return d.props[propKeySlug] }

func (d *DriveSnapshot) Size() int64 { return d.size }

func (d *DriveSnapshot) Date() time.Time { return d.date }

// SnapshotType returns the backup type property, "full" when absent.
func (d *DriveSnapshot) SnapshotType() string {
	if v, ok := d.props[propType]; ok {
		return v
	}
	return "full"
}

// Version returns the Home Assistant version property, "?" when absent.
func (d *DriveSnapshot) Version() string {
	if v, ok := d.props[propVersion]; ok {
		return v
	}
	return "?"
}

func (d *DriveSnapshot) Protected() bool { return boolProp(d.props[propProtected]) }

func (d *DriveSnapshot) Retained() bool { return boolProp(d.props[propRetained]) }

// SetRetain rewrites the retained property in this view's private copy.
func (d *DriveSnapshot) SetRetain(retain bool) {
	d.props[propRetained] = strconv.FormatBool(retain)
}

// Details returns the backing record for display purposes.
func (d *DriveSnapshot) Details() map[string]any { return d.source }

func (d *DriveSnapshot) String() string {
	return fmt.Sprintf("<Drive: %s Name: %s Id: %s>", d.Slug(), d.Name(), d.id)
}
