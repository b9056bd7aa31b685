package model_test

import (
	"testing"
	"time"

	"github.com/asboyob/hassio-google-drive-backup/internal/model"
)

// fixedClock always reports the same instant.
type fixedClock struct{ now time.Time }

func (c fixedClock) Now() time.Time { return c.now }

var testTime = time.Date(2024, 1, 15, 10, 30, 0, 0, time.UTC)

func newDrive(t *testing.T, extra map[string]string) *model.DriveSnapshot {
	t.Helper()
	d, err := model.NewDriveSnapshot(driveRecord(extra))
	if err != nil {
		t.Fatalf("NewDriveSnapshot() error = %v", err)
	}
	return d
}

func newHA(t *testing.T, retained bool) *model.HASnapshot {
	t.Helper()
	h, err := model.NewHASnapshot(haRecord(), retained)
	if err != nil {
		t.Fatalf("NewHASnapshot() error = %v", err)
	}
	return h
}

func TestSnapshot_Status(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name  string
		setup func(t *testing.T) *model.Snapshot
		want  string
	}{
		{
			name: "restoring preempts everything",
			setup: func(t *testing.T) *model.Snapshot {
				s := model.NewSnapshot(newHA(t, false), nil)
				s.SetDrive(newDrive(t, nil))
				s.SetDownloading(50)
				s.StartRestore()
				return s
			},
			want: "Restoring",
		},
		{
			name: "restore complete",
			setup: func(t *testing.T) *model.Snapshot {
				s := model.NewSnapshot(newHA(t, false), nil)
				s.FinishRestore()
				return s
			},
			want: "Restore Complete",
		},
		{
			name: "download failure",
			setup: func(t *testing.T) *model.Snapshot {
				s := model.NewSnapshot(newDrive(t, nil), nil)
				s.SetDownloading(40)
				s.MarkDownloadFailed()
				return s
			},
			want: "Loading Failed!",
		},
		{
			name: "download at 100 percent",
			setup: func(t *testing.T) *model.Snapshot {
				s := model.NewSnapshot(newDrive(t, nil), nil)
				s.SetDownloading(100)
				return s
			},
			want: "Refreshing snapshot",
		},
		{
			name: "download preempts backed up",
			setup: func(t *testing.T) *model.Snapshot {
				s := model.NewSnapshot(newDrive(t, nil), nil)
				s.SetHA(newHA(t, false))
				s.SetDownloading(50)
				return s
			},
			want: "Loading 50%",
		},
		{
			name: "in both stores",
			setup: func(t *testing.T) *model.Snapshot {
				s := model.NewSnapshot(newDrive(t, nil), nil)
				s.SetHA(newHA(t, false))
				return s
			},
			want: "Backed Up",
		},
		{
			name: "drive only",
			setup: func(t *testing.T) *model.Snapshot {
				return model.NewSnapshot(newDrive(t, nil), nil)
			},
			want: "Drive Only",
		},
		{
			name: "uploading",
			setup: func(t *testing.T) *model.Snapshot {
				s := model.NewSnapshot(newHA(t, false), nil)
				s.SetUploading(30)
				return s
			},
			want: "Uploading 30%",
		},
		{
			name: "ha only and scheduled",
			setup: func(t *testing.T) *model.Snapshot {
				return model.NewSnapshot(newHA(t, false), nil)
			},
			want: "Waiting",
		},
		{
			name: "ha only and not scheduled",
			setup: func(t *testing.T) *model.Snapshot {
				s := model.NewSnapshot(newHA(t, false), nil)
				s.SetWillBackup(false)
				return s
			},
			want: "Hass.io Only",
		},
		{
			name: "pending",
			setup: func(t *testing.T) *model.Snapshot {
				s := model.NewSnapshot(nil, nil)
				s.SetPending("n", testTime, false, false)
				return s
			},
			want: "Pending",
		},
		{
			name: "pending even after failure",
			setup: func(t *testing.T) *model.Snapshot {
				s := model.NewSnapshot(nil, nil)
				s.SetPending("n", testTime, false, false)
				s.MarkPendingFailed()
				return s
			},
			want: "Pending",
		},
		{
			name: "invalid state",
			setup: func(t *testing.T) *model.Snapshot {
				s := model.NewSnapshot(newHA(t, false), nil)
				s.ClearHA()
				return s
			},
			want: "Invalid State",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := tt.setup(t)
			if got := s.Status(); got != tt.want {
				t.Errorf("Status() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestSnapshot_SizeString(t *testing.T) {
	t.Parallel()

	tests := []struct {
		size int64
		want string
	}{
		{0, "0 B"},
		{1023, "1023 B"},
		{1024, "1 kB"},
		{1536, "1 kB"}, // truncating, never rounding
		{1024*1024 - 1, "1023 kB"},
		{1024 * 1024, "1 MB"},
		{1024*1024*1024 - 1, "1023 MB"},
		{1024 * 1024 * 1024, "1 GB"},
		{5 * 1024 * 1024 * 1024, "5 GB"},
	}

	for _, tt := range tests {
		t.Run(tt.want, func(t *testing.T) {
			record := driveRecord(nil)
			record["size"] = tt.size
			d, err := model.NewDriveSnapshot(record)
			if err != nil {
				t.Fatalf("NewDriveSnapshot() error = %v", err)
			}
			s := model.NewSnapshot(d, nil)
			if got := s.SizeString(); got != tt.want {
				t.Errorf("SizeString() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestSnapshot_PendingLifecycle(t *testing.T) {
	t.Parallel()

	s := model.NewSnapshot(nil, fixedClock{testTime})
	if !s.IsPending() {
		t.Fatal("IsPending() = false for placeholder snapshot")
	}

	s.SetPending("New Backup", testTime, true, false)
	if s.Slug() != "PENDING" {
		t.Errorf("Slug() = %q, want %q", s.Slug(), "PENDING")
	}
	if s.Name() != "New Backup" {
		t.Errorf("Name() = %q, want %q", s.Name(), "New Backup")
	}
	if !s.Date().Equal(testTime) {
		t.Errorf("Date() = %v, want %v", s.Date(), testTime)
	}
	if s.DriveRetained() {
		t.Error("DriveRetained() = true with no drive record")
	}

	s.EndPending("abc123")
	if s.Slug() != "abc123" {
		t.Errorf("Slug() = %q after EndPending, want %q", s.Slug(), "abc123")
	}
	if !s.IsPending() {
		t.Error("IsPending() = false after EndPending")
	}
}

func TestSnapshot_PendingFailed(t *testing.T) {
	t.Parallel()

	s := model.NewSnapshot(nil, nil)
	s.SetPending("n", testTime, false, false)
	s.MarkPendingFailed()

	if s.IsPending() {
		t.Error("IsPending() = true after MarkPendingFailed")
	}
	if !s.IsDeleted() {
		t.Error("IsDeleted() = false for failed pending snapshot")
	}
}

func TestSnapshot_PendingRetainSurvivesAttach(t *testing.T) {
	t.Parallel()

	s := model.NewSnapshot(nil, nil)
	s.SetPending("n", testTime, true, false)

	// The attached record itself is not retained; the earlier intent is.
	drive := newDrive(t, map[string]string{"retained": "false"})
	s.SetDrive(drive)
	if drive.Retained() {
		t.Fatal("test record unexpectedly retained")
	}
	if !s.DriveRetained() {
		t.Error("DriveRetained() = false, want pending retain intent honored")
	}
	if s.HARetained() {
		t.Error("HARetained() = true, want false")
	}
}

func TestSnapshot_AttachClearsTransientState(t *testing.T) {
	t.Parallel()

	t.Run("SetDrive ends pending and upload", func(t *testing.T) {
		t.Parallel()
		s := model.NewSnapshot(nil, fixedClock{testTime})
		s.SetPending("n", testTime.Add(time.Hour), false, false)
		s.SetUploading(60)

		s.SetDrive(newDrive(t, nil))
		if s.IsPending() {
			t.Error("IsPending() = true after SetDrive")
		}
		if s.IsUploading() {
			t.Error("IsUploading() = true after SetDrive")
		}
		if s.Status() != "Drive Only" {
			t.Errorf("Status() = %q, want %q", s.Status(), "Drive Only")
		}
	})

	t.Run("SetHA also clears download state", func(t *testing.T) {
		t.Parallel()
		s := model.NewSnapshot(newDrive(t, nil), nil)
		s.SetDownloading(80)
		s.MarkDownloadFailed()

		s.SetHA(newHA(t, false))
		if s.IsDownloading() {
			t.Error("IsDownloading() = true after SetHA")
		}
		if s.Status() != "Backed Up" {
			t.Errorf("Status() = %q, want %q", s.Status(), "Backed Up")
		}
	})
}

func TestSnapshot_Update(t *testing.T) {
	t.Parallel()

	t.Run("idempotent for unchanged record", func(t *testing.T) {
		t.Parallel()
		h := newHA(t, false)
		s := model.NewSnapshot(h, nil)
		before := []any{s.Name(), s.Slug(), s.Size(), s.Date(), s.Status(), s.SizeString()}

		s.Update(h)
		s.Update(h)
		after := []any{s.Name(), s.Slug(), s.Size(), s.Date(), s.Status(), s.SizeString()}

		for i := range before {
			if before[i] != after[i] {
				t.Errorf("accessor %d changed: %v -> %v", i, before[i], after[i])
			}
		}
	})

	t.Run("routes drive record to drive slot", func(t *testing.T) {
		t.Parallel()
		s := model.NewSnapshot(newHA(t, false), nil)
		s.Update(newDrive(t, nil))

		if !s.IsInDrive() {
			t.Error("IsInDrive() = false after Update with drive record")
		}
		if !s.IsInHA() {
			t.Error("IsInHA() = false, HA slot should be untouched")
		}
	})

	t.Run("leaves transient state untouched", func(t *testing.T) {
		t.Parallel()
		s := model.NewSnapshot(newHA(t, false), nil)
		s.SetUploading(42)
		s.Update(newHA(t, false))

		if s.Status() != "Uploading 42%" {
			t.Errorf("Status() = %q, want %q", s.Status(), "Uploading 42%")
		}
	})
}

func TestSnapshot_IsDeleted(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name  string
		setup func(t *testing.T) *model.Snapshot
		want  bool
	}{
		{
			name: "present in ha",
			setup: func(t *testing.T) *model.Snapshot {
				return model.NewSnapshot(newHA(t, false), nil)
			},
			want: false,
		},
		{
			name: "present in drive",
			setup: func(t *testing.T) *model.Snapshot {
				return model.NewSnapshot(newDrive(t, nil), nil)
			},
			want: false,
		},
		{
			name: "still pending",
			setup: func(t *testing.T) *model.Snapshot {
				s := model.NewSnapshot(nil, nil)
				s.SetPending("n", testTime, false, false)
				return s
			},
			want: false,
		},
		{
			name: "pending creation failed",
			setup: func(t *testing.T) *model.Snapshot {
				s := model.NewSnapshot(nil, nil)
				s.SetPending("n", testTime, false, false)
				s.MarkPendingFailed()
				return s
			},
			want: true,
		},
		{
			name: "vanished from both stores",
			setup: func(t *testing.T) *model.Snapshot {
				s := model.NewSnapshot(newDrive(t, nil), nil)
				s.SetHA(newHA(t, false))
				s.ClearDrive()
				s.ClearHA()
				return s
			},
			want: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.setup(t).IsDeleted(); got != tt.want {
				t.Errorf("IsDeleted() = %t, want %t", got, tt.want)
			}
		})
	}
}

func TestSnapshot_AccessorDispatch(t *testing.T) {
	t.Parallel()

	drive := newDrive(t, map[string]string{"type": "partial", "version": "2023.12.0"})
	ha := newHA(t, false)

	s := model.NewSnapshot(drive, nil)
	s.SetHA(ha)

	// Name, slug and size prefer the drive record.
	if s.Name() != drive.Name() {
		t.Errorf("Name() = %q, want drive name %q", s.Name(), drive.Name())
	}
	if s.Size() != drive.Size() {
		t.Errorf("Size() = %d, want drive size %d", s.Size(), drive.Size())
	}

	// Type and version prefer the supervisor record.
	if s.SnapshotType() != "full" {
		t.Errorf("SnapshotType() = %q, want supervisor value %q", s.SnapshotType(), "full")
	}
	if s.Version() != "2024.1.2" {
		t.Errorf("Version() = %q, want supervisor value %q", s.Version(), "2024.1.2")
	}

	s.ClearHA()
	if s.SnapshotType() != "partial" {
		t.Errorf("SnapshotType() = %q, want drive value %q", s.SnapshotType(), "partial")
	}
	if s.Version() != "2023.12.0" {
		t.Errorf("Version() = %q, want drive value %q", s.Version(), "2023.12.0")
	}
}

func TestSnapshot_AbsentFallbacks(t *testing.T) {
	t.Parallel()

	clock := fixedClock{testTime}
	s := model.NewSnapshot(newHA(t, false), clock)
	s.ClearHA()

	if s.Name() != "error" {
		t.Errorf("Name() = %q, want %q", s.Name(), "error")
	}
	if s.Slug() != "error" {
		t.Errorf("Slug() = %q, want %q", s.Slug(), "error")
	}
	if s.Size() != 0 {
		t.Errorf("Size() = %d, want 0", s.Size())
	}
	if !s.Date().Equal(testTime) {
		t.Errorf("Date() = %v, want clock time %v", s.Date(), testTime)
	}
	if s.SnapshotType() != "pending" {
		t.Errorf("SnapshotType() = %q, want %q", s.SnapshotType(), "pending")
	}
	if s.Version() != "?" {
		t.Errorf("Version() = %q, want %q", s.Version(), "?")
	}
	if s.Protected() {
		t.Error("Protected() = true, want false")
	}
}

func TestSnapshot_DeleteIntents(t *testing.T) {
	t.Parallel()

	s := model.NewSnapshot(newHA(t, false), nil)
	if s.DeleteNextFromDrive() || s.DeleteNextFromHA() {
		t.Fatal("delete intents set on a fresh snapshot")
	}

	s.SetDeleteNextFromDrive(true)
	s.SetDeleteNextFromHA(true)
	if !s.DeleteNextFromDrive() || !s.DeleteNextFromHA() {
		t.Error("delete intents not readable back")
	}

	// Intents are stored only; nothing about presence changes.
	if !s.IsInHA() || s.IsDeleted() {
		t.Error("delete intent affected presence state")
	}
}

func TestSnapshot_DownloadClearsFailureOnRetry(t *testing.T) {
	t.Parallel()

	s := model.NewSnapshot(newDrive(t, nil), nil)
	s.SetDownloading(10)
	s.MarkDownloadFailed()
	if s.Status() != "Loading Failed!" {
		t.Fatalf("Status() = %q, want %q", s.Status(), "Loading Failed!")
	}

	s.SetDownloading(0)
	if s.Status() != "Loading 0%" {
		t.Errorf("Status() = %q, want %q", s.Status(), "Loading 0%")
	}
}
