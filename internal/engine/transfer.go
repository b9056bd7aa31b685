package engine

import (
	"context"
	"fmt"
	"io"

	"github.com/asboyob/hassio-google-drive-backup/internal/model"
)

// progressReader reports read progress as a percentage of total. A total of
// zero or less disables reporting.
type progressReader struct {
	r      io.Reader
	total  int64
	read   int64
	last   int
	report func(pct int)
}

func newProgressReader(r io.Reader, total int64, report func(pct int)) *progressReader {
	return &progressReader{r: r, total: total, last: -1, report: report}
}

func (p *progressReader) Read(b []byte) (int, error) {
	n, err := p.r.Read(b)
	p.read += int64(n)
	if p.total > 0 {
		pct := int(p.read * 100 / p.total)
		if pct > 100 {
			pct = 100
		}
		if pct != p.last {
			p.last = pct
			p.report(pct)
		}
	}
	return n, err
}

// Upload streams a supervisor snapshot into the archive, reporting progress
// into the model as it goes. On success the created archive record attaches
// immediately rather than waiting for the next refresh.
func (e *Engine) Upload(ctx context.Context, slug string) error {
	e.mu.Lock()
	s := e.snapshots[slug]
	if s == nil || !s.IsInHA() {
		e.mu.Unlock()
		return fmt.Errorf("no supervisor snapshot with slug %q", slug)
	}
	size := s.HA().Size()
	props := s.HA().ArchiveProps()
	s.SetUploading(0)
	e.mu.Unlock()

	content, err := e.supervisor.Download(ctx, slug)
	if err != nil {
		return fmt.Errorf("fetching snapshot from supervisor: %w", err)
	}
	defer content.Close()

	var src io.Reader = newProgressReader(content, size, func(pct int) {
		e.mu.Lock()
		s.SetUploading(pct)
		e.mu.Unlock()
	})

	if e.settings.EncryptUploads {
		if e.encryptor == nil {
			return fmt.Errorf("upload encryption enabled but no encryptor configured")
		}
		pr, pw := io.Pipe()
		plain := src
		go func() {
			pw.CloseWithError(e.encryptor.Encrypt(plain, pw))
		}()
		src = pr
		size = -1 // ciphertext length is not known up front
	}

	e.logger.Info("uploading snapshot", "slug", slug, "size", size)
	record, err := e.archive.Upload(ctx, props, src, size)
	if err != nil {
		e.recordEvent("upload_failed", slug, err.Error())
		return fmt.Errorf("uploading to archive: %w", err)
	}

	drive, err := model.NewDriveSnapshot(record)
	if err != nil {
		return fmt.Errorf("archive returned malformed record: %w", err)
	}

	e.mu.Lock()
	s.SetDrive(drive) // also ends the upload
	e.mu.Unlock()

	e.recordEvent("upload", slug, drive.ID())
	return nil
}

// Restore streams an archived snapshot back into the supervisor, reporting
// download progress into the model. passphrase is required only when
// uploads are encrypted. The restored record attaches on the next Refresh;
// until then the snapshot reads "Refreshing snapshot".
func (e *Engine) Restore(ctx context.Context, slug string, passphrase string) error {
	e.mu.Lock()
	s := e.snapshots[slug]
	if s == nil || !s.IsInDrive() {
		e.mu.Unlock()
		return fmt.Errorf("no archived snapshot with slug %q", slug)
	}
	id := s.Drive().ID()
	size := s.Drive().Size()
	s.SetDownloading(0)
	e.mu.Unlock()

	fail := func(err error) error {
		e.mu.Lock()
		s.MarkDownloadFailed()
		e.mu.Unlock()
		e.recordEvent("restore_failed", slug, err.Error())
		return err
	}

	pr, pw := io.Pipe()
	go func() {
		pw.CloseWithError(e.archive.Download(ctx, id, pw))
	}()

	var src io.Reader = newProgressReader(pr, size, func(pct int) {
		e.mu.Lock()
		s.SetDownloading(pct)
		e.mu.Unlock()
	})

	if e.settings.EncryptUploads {
		if e.encryptor == nil {
			return fail(fmt.Errorf("upload encryption enabled but no encryptor configured"))
		}
		dc, err := e.encryptor.Unlock(passphrase)
		if err != nil {
			return fail(fmt.Errorf("unlocking private key: %w", err))
		}
		dpr, dpw := io.Pipe()
		cipher := src
		go func() {
			dpw.CloseWithError(dc.Decrypt(cipher, dpw))
		}()
		src = dpr
	}

	e.logger.Info("restoring snapshot", "slug", slug)
	newSlug, err := e.supervisor.Upload(ctx, src)
	if err != nil {
		return fail(fmt.Errorf("importing snapshot into supervisor: %w", err))
	}

	e.mu.Lock()
	s.SetDownloading(100)
	e.mu.Unlock()

	e.logger.Info("snapshot restored", "slug", slug, "assigned", newSlug)
	e.recordEvent("restore", slug, newSlug)
	return nil
}
