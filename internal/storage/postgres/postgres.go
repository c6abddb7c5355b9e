// Package postgres implements the storage.Backend interface on a PostgreSQL
// server. CRUD is delegated to the shared GORM backend; this package owns
// the connection lifecycle.
package postgres

import (
	"fmt"

	"github.com/rs/zerolog"
	"github.com/spraywall/spraywall/internal/cache"
	"github.com/spraywall/spraywall/internal/database"
	"github.com/spraywall/spraywall/internal/logging"
	gormstorage "github.com/spraywall/spraywall/internal/storage/gorm"

	"gorm.io/gorm"
)

// Dependencies holds all dependencies for the Postgres storage backend.
type Dependencies struct {
	// DB, when set, is used instead of opening a connection from Config.
	DB         *gorm.DB
	RouteCache *cache.RouteCache
	LogManager *logging.SlogManager
	DBLogger   zerolog.Logger
}

// Backend implements storage.Backend using GORM/PostgreSQL.
type Backend struct {
	*gormstorage.Backend
	cfg     database.PostgresConfig
	deps    Dependencies
	manager *database.Manager
}

// New creates a new Postgres storage backend. No connection is made until Init.
func New(cfg database.PostgresConfig, deps Dependencies) *Backend {
	return &Backend{
		cfg:  cfg,
		deps: deps,
	}
}

// Init connects (unless a DB was injected) and migrates the schema.
func (b *Backend) Init() error {
	db := b.deps.DB
	if db == nil {
		m := database.NewManager(b.deps.DBLogger)
		if err := m.OpenPostgres(b.cfg); err != nil {
			return err
		}
		b.manager = m
		db = m.DB
	}

	b.Backend = gormstorage.New(gormstorage.Dependencies{
		DB:         db,
		RouteCache: b.deps.RouteCache,
		LogManager: b.deps.LogManager,
	})
	if err := b.Backend.Init(); err != nil {
		if b.manager != nil {
			_ = b.manager.Close()
			b.manager = nil
		}
		return fmt.Errorf("failed to setup DB: %w", err)
	}
	return nil
}

// Close releases the connection opened by Init. Injected connections are
// left to their owner.
func (b *Backend) Close() error {
	if b.Backend != nil {
		_ = b.Backend.Close()
	}
	if b.manager != nil {
		err := b.manager.Close()
		b.manager = nil
		return err
	}
	return nil
}
