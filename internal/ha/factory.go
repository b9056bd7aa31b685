package ha

import (
	"fmt"

	"github.com/asboyob/hassio-google-drive-backup/internal/config"
	"github.com/asboyob/hassio-google-drive-backup/internal/engine"
	"github.com/asboyob/hassio-google-drive-backup/internal/model"
)

// NewSupervisorFromConfig creates a Supervisor implementation based on the
// supervisor config type.
func NewSupervisorFromConfig(cfg config.SupervisorConfig, clock model.Clock) (engine.Supervisor, error) {
	switch cfg.Type {
	case "memory":
		return NewMemorySupervisor(clock, "2024.6.1"), nil
	case "http":
		if cfg.URL == "" {
			return nil, fmt.Errorf("http supervisor requires url to be set")
		}
		return NewHTTPSupervisor(cfg.URL, cfg.Token), nil
	default:
		return nil, fmt.Errorf("unknown supervisor type: %s", cfg.Type)
	}
}
