package archive

import (
	"context"
	"fmt"

	"github.com/asboyob/hassio-google-drive-backup/internal/config"
	"github.com/asboyob/hassio-google-drive-backup/internal/engine"
)

// NewArchiveFromConfig creates an Archive implementation based on the archive
// config type.
func NewArchiveFromConfig(ctx context.Context, cfg config.ArchiveConfig) (engine.Archive, error) {
	switch cfg.Type {
	case "memory":
		return NewMemoryArchive(cfg.Name), nil
	case "s3":
		if cfg.S3Bucket == "" {
			return nil, fmt.Errorf("s3 archive requires s3_bucket to be set")
		}
		return NewS3Archive(ctx, cfg)
	case "filesystem":
		if cfg.FSArchiveRoot == "" {
			return nil, fmt.Errorf("filesystem archive requires fs_archive_root to be set")
		}
		return NewFileSystemArchive(cfg.Name, cfg.FSArchiveRoot)
	default:
		return nil, fmt.Errorf("unknown archive type: %s", cfg.Type)
	}
}
