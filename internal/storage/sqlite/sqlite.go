// Package sqlitestorage implements the storage.Backend interface on SQLite.
// It wraps the GORM backend via composition. The only SQLite-specific
// concerns are opening a file or in-memory DB and the optional periodic
// disk dump via VACUUM INTO.
package sqlitestorage

import (
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"github.com/spraywall/spraywall/internal/cache"
	"github.com/spraywall/spraywall/internal/database"
	"github.com/spraywall/spraywall/internal/logging"
	gormstorage "github.com/spraywall/spraywall/internal/storage/gorm"
)

// Config holds configuration for the SQLite storage backend.
type Config struct {
	// Path of the database file. Empty means in-memory.
	Path         string        `json:"path" mapstructure:"path"`
	DumpInterval time.Duration `json:"dumpInterval" mapstructure:"dumpInterval"`
	// DumpPath is the target of periodic VACUUM INTO dumps.
	DumpPath string `json:"dumpPath" mapstructure:"dumpPath"`
}

// Backend wraps the GORM backend for SQLite-specific behavior.
type Backend struct {
	*gormstorage.Backend
	cfg      Config
	manager  *database.Manager
	cache    *cache.RouteCache
	log      *logging.SlogManager
	stopChan chan struct{}
	wg       sync.WaitGroup
}

// New creates a new SQLite storage backend. The database is opened by Init.
func New(cfg Config, routeCache *cache.RouteCache, logManager *logging.SlogManager, dbLogger zerolog.Logger) *Backend {
	if logManager == nil {
		logManager = logging.NewSlogManager()
	}
	return &Backend{
		cfg:     cfg,
		manager: database.NewManager(dbLogger),
		cache:   routeCache,
		log:     logManager,
	}
}

// Init opens the database, migrates it and starts the dump goroutine.
func (b *Backend) Init() error {
	if err := b.manager.OpenSqlite(b.cfg.Path); err != nil {
		return fmt.Errorf("failed to open SQLite DB: %w", err)
	}

	b.Backend = gormstorage.New(gormstorage.Dependencies{
		DB:         b.manager.DB,
		RouteCache: b.cache,
		LogManager: b.log,
	})
	if err := b.Backend.Init(); err != nil {
		_ = b.manager.Close()
		return err
	}

	b.stopChan = make(chan struct{})
	if b.cfg.DumpPath != "" && b.cfg.DumpInterval > 0 {
		b.wg.Add(1)
		go b.dumpLoop()
	}

	return nil
}

// Close stops the dump goroutine, writes a final dump and closes the DB.
func (b *Backend) Close() error {
	if b.stopChan == nil {
		return nil
	}
	close(b.stopChan)
	b.wg.Wait()
	b.stopChan = nil

	if b.cfg.DumpPath != "" && b.cfg.DumpInterval > 0 {
		if err := b.Dump(b.cfg.DumpPath); err != nil {
			b.log.WriteLog("sqlite:Close", fmt.Sprintf("Final dump failed: %v", err), "ERROR")
		}
	}

	_ = b.Backend.Close()
	return b.manager.Close()
}

// Dump writes a point-in-time snapshot of the database to path.
func (b *Backend) Dump(path string) error {
	return b.manager.DumpMemoryToDisk(path)
}

// dumpLoop periodically dumps the database to disk via VACUUM INTO.
// VACUUM INTO creates a point-in-time snapshot, so no pause mechanism is needed.
func (b *Backend) dumpLoop() {
	defer b.wg.Done()
	ticker := time.NewTicker(b.cfg.DumpInterval)
	defer ticker.Stop()

	for {
		select {
		case <-b.stopChan:
			return
		case <-ticker.C:
			start := time.Now()
			if err := b.Dump(b.cfg.DumpPath); err != nil {
				b.log.WriteLog("sqlite:dumpLoop", fmt.Sprintf("Error dumping to disk: %v", err), "ERROR")
			} else {
				b.log.WriteLog("sqlite:dumpLoop", fmt.Sprintf("Dumped to disk in %s", time.Since(start)), "DEBUG")
			}
		}
	}
}
