package store

import (
	"context"
	"fmt"

	"github.com/ashureev/skincare-assistant/internal/config"
)

// Open returns the catalog backend selected by the configuration.
func Open(ctx context.Context, cfg config.CatalogConfig) (Catalog, error) {
	switch cfg.Driver {
	case config.DriverPostgres:
		pg, err := NewPostgres(ctx, cfg.DatabaseURL, cfg.Table)
		if err != nil {
			return nil, err
		}
		return pg, nil
	case config.DriverSQLite:
		lite, err := NewSQLite(cfg.DBPath, cfg.Table)
		if err != nil {
			return nil, err
		}
		return lite, nil
	default:
		return nil, fmt.Errorf("unknown catalog driver %q", cfg.Driver)
	}
}
