// Package app assembles the components shared by the ironlog commands.
package app

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/meltforce/ironlog/internal/config"
	"github.com/meltforce/ironlog/internal/gateway"
	"github.com/meltforce/ironlog/internal/gateway/memgw"
	"github.com/meltforce/ironlog/internal/identity"
	"github.com/meltforce/ironlog/internal/routines"
	"github.com/meltforce/ironlog/internal/storage"
)

// Store is the persistence backend selected by storage.driver.
type Store struct {
	Gateway gateway.Gateway
	// Users maps logins to user ids.
	Users identity.Resolver
	close func()
}

// Close releases the backend's connections.
func (s *Store) Close() {
	if s.close != nil {
		s.close()
	}
}

// OpenStore connects the configured backend. Postgres is migrated first
// unless skipMigrations is set; the memory backend gets the exercise
// library seeded.
func OpenStore(ctx context.Context, cfg *config.Config, migrationsPath string, skipMigrations bool, log *slog.Logger) (*Store, error) {
	switch cfg.Storage.Driver {
	case config.DriverMemory:
		gw := memgw.New()
		if err := routines.SeedLibrary(ctx, gw, routines.DefaultLibrary); err != nil {
			return nil, fmt.Errorf("seeding exercise library: %w", err)
		}
		log.Warn("using in-memory storage, data is lost on exit")
		return &Store{Gateway: gw, Users: identity.LoginResolver{}}, nil

	case config.DriverPostgres:
		dsn := cfg.Database.DSN()
		if !skipMigrations {
			if err := storage.RunMigrations(dsn, migrationsPath); err != nil {
				return nil, err
			}
			log.Info("migrations applied")
		}
		db, err := storage.New(ctx, dsn)
		if err != nil {
			return nil, fmt.Errorf("connecting database: %w", err)
		}
		log.Info("database connected", "host", cfg.Database.Host, "name", cfg.Database.Name)
		return &Store{Gateway: storage.NewGateway(db), Users: db, close: db.Close}, nil
	}
	return nil, fmt.Errorf("unknown storage driver %q", cfg.Storage.Driver)
}
