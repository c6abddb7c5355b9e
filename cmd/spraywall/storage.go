package main

import (
	"fmt"

	"github.com/spraywall/spraywall/internal/cache"
	"github.com/spraywall/spraywall/internal/config"
	"github.com/spraywall/spraywall/internal/database"
	"github.com/spraywall/spraywall/internal/storage"
	"github.com/spraywall/spraywall/internal/storage/memory"
	pgstorage "github.com/spraywall/spraywall/internal/storage/postgres"
	sqlitestorage "github.com/spraywall/spraywall/internal/storage/sqlite"
)

func createStorageBackend(a *app, storageCfg config.StorageConfig, dbCfg config.DBConfig) (storage.Backend, error) {
	routeCache := cache.NewRouteCache()

	switch storageCfg.Type {
	case "postgres":
		a.Logger.Info("Postgres storage backend selected", "host", dbCfg.Host, "database", dbCfg.Database)
		return pgstorage.New(database.PostgresConfig{
			Host:     dbCfg.Host,
			Port:     dbCfg.Port,
			Username: dbCfg.Username,
			Password: dbCfg.Password,
			Database: dbCfg.Database,
			SSLMode:  dbCfg.SSLMode,
		}, pgstorage.Dependencies{
			RouteCache: routeCache,
			LogManager: a.SlogManager,
			DBLogger:   a.DBLogger,
		}), nil

	case "sqlite":
		a.Logger.Info("SQLite storage backend selected", "path", storageCfg.SQLite.Path)
		return sqlitestorage.New(sqlitestorage.Config{
			Path:         storageCfg.SQLite.Path,
			DumpInterval: storageCfg.SQLite.DumpInterval,
			DumpPath:     storageCfg.SQLite.DumpPath,
		}, routeCache, a.SlogManager, a.DBLogger), nil

	case "memory":
		a.Logger.Info("Memory storage backend selected", "path", storageCfg.Memory.Path)
		return memory.New(storageCfg.Memory), nil

	default:
		return nil, fmt.Errorf("unknown storage type %q", storageCfg.Type)
	}
}
