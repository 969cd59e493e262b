package storage

import (
	"fmt"

	"github.com/relaypool/connpool/internal/config"
	"github.com/relaypool/connpool/internal/pool"
)

// NewFactory returns a concrete pool.PhysicalFactory for the driver named
// in cfg. "mock" selects an in-memory MockFactory with no backend at
// all, useful for cmd/poolbench dry runs.
func NewFactory(cfg config.DriverConfig) (pool.PhysicalFactory, error) {
	switch cfg.Driver {
	case "sqlite", "":
		return NewSQLiteFactory(cfg.DSN), nil
	case "mysql":
		return NewMySQLFactory(cfg.DSN), nil
	case "mock":
		return NewMockFactory(), nil
	default:
		return nil, fmt.Errorf("unsupported driver: %s", cfg.Driver)
	}
}
