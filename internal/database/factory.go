package database

import (
	"fmt"
	"path/filepath"

	"github.com/asboyob/hassio-google-drive-backup/internal/config"
	"github.com/asboyob/hassio-google-drive-backup/internal/engine"
)

// NewLedgerFromConfig creates a Ledger implementation based on the database
// config type.
func NewLedgerFromConfig(cfg config.DatabaseConfig) (engine.Ledger, error) {
	switch cfg.Type {
	case "sqlite":
		if cfg.DataDir == "" {
			return nil, fmt.Errorf("data_dir required for sqlite ledger")
		}
		return NewSQLiteLedger(filepath.Join(cfg.DataDir, "ledger.db"))
	case "memory":
		return NewSQLiteLedger(":memory:")
	default:
		return nil, fmt.Errorf("unknown database type: %s", cfg.Type)
	}
}
