package model_test

import (
	"errors"
	"testing"
	"time"

	"github.com/asboyob/hassio-google-drive-backup/internal/model"
)

// haRecord returns a minimal valid raw supervisor record.
func haRecord() map[string]any {
	return map[string]any{
		"name":          "Nightly Backup",
		"slug":          "abc123",
		"size":          35.5,
		"date":          "2024-01-15T10:30:00Z",
		"type":          "full",
		"homeassistant": "2024.1.2",
		"protected":     false,
	}
}

func TestNewHASnapshot_RequiredFields(t *testing.T) {
	t.Parallel()

	for _, key := range []string{"name", "slug", "size", "date", "type", "homeassistant", "protected"} {
		t.Run("missing "+key, func(t *testing.T) {
			source := haRecord()
			delete(source, key)

			_, err := model.NewHASnapshot(source, false)
			if err == nil {
				t.Fatal("expected error, got nil")
			}
			var missing *model.MissingFieldError
			if !errors.As(err, &missing) {
				t.Fatalf("error = %v, want MissingFieldError", err)
			}
			if missing.Field != key {
				t.Errorf("Field = %q, want %q", missing.Field, key)
			}
			if missing.Source != "ha" {
				t.Errorf("Source = %q, want %q", missing.Source, "ha")
			}
		})
	}
}

func TestHASnapshot_Accessors(t *testing.T) {
	t.Parallel()

	h, err := model.NewHASnapshot(haRecord(), false)
	if err != nil {
		t.Fatalf("NewHASnapshot() error = %v", err)
	}

	if h.Name() != "Nightly Backup" {
		t.Errorf("Name() = %q, want %q", h.Name(), "Nightly Backup")
	}
	if h.Slug() != "abc123" {
		t.Errorf("Slug() = %q, want %q", h.Slug(), "abc123")
	}
	// 35.5 MiB truncates to 35 MiB before converting to bytes.
	if want := int64(35 * 1024 * 1024); h.Size() != want {
		t.Errorf("Size() = %d, want %d", h.Size(), want)
	}
	want := time.Date(2024, 1, 15, 10, 30, 0, 0, time.UTC)
	if !h.Date().Equal(want) {
		t.Errorf("Date() = %v, want %v", h.Date(), want)
	}
	if h.SnapshotType() != "full" {
		t.Errorf("SnapshotType() = %q, want %q", h.SnapshotType(), "full")
	}
	if h.Version() != "2024.1.2" {
		t.Errorf("Version() = %q, want %q", h.Version(), "2024.1.2")
	}
	if h.Protected() {
		t.Error("Protected() = true, want false")
	}
}

func TestHASnapshot_RetainedSuppliedExternally(t *testing.T) {
	t.Parallel()

	plain, err := model.NewHASnapshot(haRecord(), false)
	if err != nil {
		t.Fatalf("NewHASnapshot() error = %v", err)
	}
	if plain.Retained() {
		t.Error("Retained() = true, want false")
	}

	retained, err := model.NewHASnapshot(haRecord(), true)
	if err != nil {
		t.Fatalf("NewHASnapshot() error = %v", err)
	}
	if !retained.Retained() {
		t.Error("Retained() = false, want true")
	}
}

func TestHASnapshot_OwnsItsCopy(t *testing.T) {
	t.Parallel()

	source := haRecord()
	h, err := model.NewHASnapshot(source, false)
	if err != nil {
		t.Fatalf("NewHASnapshot() error = %v", err)
	}

	source["name"] = "mutated"
	if h.Name() != "Nightly Backup" {
		t.Errorf("Name() = %q after caller mutation, want %q", h.Name(), "Nightly Backup")
	}
}
