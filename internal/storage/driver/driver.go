// Package driver opens the catalog repository selected by configuration.
package driver

import (
	"context"
	"fmt"

	"github.com/nepal-guide-hub/discovery/internal/storage"
	"github.com/nepal-guide-hub/discovery/internal/storage/memory"
	pgrepo "github.com/nepal-guide-hub/discovery/internal/storage/postgres"
	"github.com/nepal-guide-hub/discovery/pkg/config"
	"github.com/nepal-guide-hub/discovery/pkg/postgres"
)

// Backend is an open repository with its lifecycle hooks.
type Backend struct {
	Repository storage.Repository
	// DB is set for the postgres driver only.
	DB *postgres.Client
}

// Ping checks the backing store. Fixture snapshots are always reachable.
func (b *Backend) Ping(ctx context.Context) error {
	if b.DB == nil {
		return nil
	}
	return b.DB.Ping(ctx)
}

func (b *Backend) Close() error {
	if b.DB == nil {
		return nil
	}
	return b.DB.Close()
}

func Open(cfg *config.Config) (*Backend, error) {
	switch cfg.Storage.Driver {
	case config.DriverMemory:
		store, err := memory.Load(cfg.Storage.Fixtures)
		if err != nil {
			return nil, err
		}
		return &Backend{Repository: store}, nil
	case config.DriverPostgres:
		db, err := postgres.New(cfg.Postgres)
		if err != nil {
			return nil, err
		}
		return &Backend{Repository: pgrepo.New(db), DB: db}, nil
	default:
		return nil, fmt.Errorf("unknown storage driver %q", cfg.Storage.Driver)
	}
}
