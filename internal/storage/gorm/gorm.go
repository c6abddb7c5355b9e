// Package gormstorage implements the storage.Backend interface on top of GORM.
// It is dialect-agnostic: the postgres and sqlite backends open the
// connection and embed this one for the CRUD operations.
package gormstorage

import (
	"context"
	"errors"
	"fmt"

	"github.com/spraywall/spraywall/internal/cache"
	"github.com/spraywall/spraywall/internal/logging"
	"github.com/spraywall/spraywall/internal/model"
	"github.com/spraywall/spraywall/internal/model/convert"
	"github.com/spraywall/spraywall/pkg/core"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// Dependencies holds all dependencies for the GORM storage backend.
type Dependencies struct {
	DB         *gorm.DB
	RouteCache *cache.RouteCache
	LogManager *logging.SlogManager
}

// Backend implements storage.Backend using GORM.
type Backend struct {
	deps Dependencies
}

// New creates a new GORM storage backend. The connection in deps.DB is
// owned by the caller.
func New(deps Dependencies) *Backend {
	if deps.RouteCache == nil {
		deps.RouteCache = cache.NewRouteCache()
	}
	if deps.LogManager == nil {
		deps.LogManager = logging.NewSlogManager()
	}
	return &Backend{deps: deps}
}

// Init runs schema migration.
func (b *Backend) Init() error {
	if b.deps.DB == nil {
		return fmt.Errorf("gorm backend: no database connection")
	}

	b.deps.LogManager.WriteLog("setupDB", "Migrating schema", "INFO")
	if err := b.deps.DB.AutoMigrate(model.DatabaseModels...); err != nil {
		return fmt.Errorf("failed to migrate schema: %w", err)
	}
	b.deps.LogManager.WriteLog("setupDB", "Database setup complete", "INFO")
	return nil
}

// Close drops cached routes. The connection is closed by its owner.
func (b *Backend) Close() error {
	b.deps.RouteCache.Reset()
	return nil
}

// DB exposes the underlying connection.
func (b *Backend) DB() *gorm.DB {
	return b.deps.DB
}

func (b *Backend) withMarkers(ctx context.Context) *gorm.DB {
	return b.deps.DB.WithContext(ctx).Preload("Markers", func(db *gorm.DB) *gorm.DB {
		return db.Order("seq ASC")
	})
}

// CreateRoute validates and inserts a route together with its markers.
func (b *Backend) CreateRoute(ctx context.Context, in core.RouteInput) (core.Route, error) {
	in.Normalize()
	if err := in.Validate(); err != nil {
		return core.Route{}, err
	}

	row := convert.CoreToRoute(in)
	err := b.deps.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return tx.Create(&row).Error
	})
	if err != nil {
		b.deps.LogManager.WriteLog("CreateRoute", fmt.Sprintf("Failed to insert route: %v", err), "ERROR")
		return core.Route{}, fmt.Errorf("failed to insert route: %w", err)
	}

	route := convert.RouteToCore(row)
	b.deps.RouteCache.Set(route)
	return route, nil
}

// ListRoutes narrows the result in SQL where the schema allows it, then
// applies the full query in memory so every backend orders and pages alike.
func (b *Backend) ListRoutes(ctx context.Context, q core.ListQuery) ([]core.Route, error) {
	tx := b.withMarkers(ctx).Model(&model.Route{})
	if q.MinGrade != "" {
		tx = tx.Where("grade_rank >= ?", q.MinGrade.Rank())
	}
	if q.MaxGrade != "" {
		tx = tx.Where("grade_rank <= ?", q.MaxGrade.Rank())
	}
	// Setter and search are matched by q.Apply: SQLite's LOWER only folds
	// ASCII, so pushing them down would disagree with the memory backend.

	var rows []model.Route
	if err := tx.Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("failed to list routes: %w", err)
	}

	routes := make([]core.Route, 0, len(rows))
	for _, r := range rows {
		routes = append(routes, convert.RouteToCore(r))
	}
	return q.Apply(routes), nil
}

// GetRoute loads one route, serving repeated reads from the route cache.
func (b *Backend) GetRoute(ctx context.Context, id string) (core.Route, error) {
	if r, ok := b.deps.RouteCache.Get(id); ok {
		return r, nil
	}

	route, err := b.load(b.withMarkers(ctx), id)
	if err != nil {
		return core.Route{}, err
	}
	b.deps.RouteCache.Set(route)
	return route, nil
}

func (b *Backend) load(tx *gorm.DB, id string) (core.Route, error) {
	var row model.Route
	if err := tx.First(&row, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return core.Route{}, core.ErrRouteNotFound
		}
		return core.Route{}, fmt.Errorf("failed to load route %s: %w", id, err)
	}
	return convert.RouteToCore(row), nil
}

// UpdateRoute replaces every editable field and the marker list of a route.
func (b *Backend) UpdateRoute(ctx context.Context, id string, in core.RouteInput) (core.Route, error) {
	in.Normalize()
	if err := in.Validate(); err != nil {
		return core.Route{}, err
	}

	err := b.deps.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var existing model.Route
		if err := tx.First(&existing, "id = ?", id).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return core.ErrRouteNotFound
			}
			return err
		}

		row := convert.CoreToRoute(in)
		row.ID = existing.ID
		row.CreatedAt = existing.CreatedAt
		row.Markers = nil
		if err := tx.Omit(clause.Associations).Save(&row).Error; err != nil {
			return err
		}

		if err := tx.Where("route_id = ?", id).Delete(&model.RouteMarker{}).Error; err != nil {
			return err
		}
		markers := convert.CoreToMarkers(id, in.Markers)
		if len(markers) > 0 {
			if err := tx.Create(&markers).Error; err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		b.deps.RouteCache.Delete(id)
		if errors.Is(err, core.ErrRouteNotFound) {
			return core.Route{}, err
		}
		b.deps.LogManager.WriteLog("UpdateRoute", fmt.Sprintf("Failed to update route %s: %v", id, err), "ERROR")
		return core.Route{}, fmt.Errorf("failed to update route: %w", err)
	}

	route, err := b.load(b.withMarkers(ctx), id)
	if err != nil {
		return core.Route{}, err
	}
	b.deps.RouteCache.Set(route)
	return route, nil
}

// DeleteRoute removes a route and its markers.
func (b *Backend) DeleteRoute(ctx context.Context, id string) error {
	b.deps.RouteCache.Delete(id)

	err := b.deps.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		// Hard delete, so removed routes do not survive into backups.
		res := tx.Unscoped().Delete(&model.Route{}, "id = ?", id)
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return core.ErrRouteNotFound
		}
		return tx.Unscoped().Where("route_id = ?", id).Delete(&model.RouteMarker{}).Error
	})
	if err != nil {
		if errors.Is(err, core.ErrRouteNotFound) {
			return err
		}
		b.deps.LogManager.WriteLog("DeleteRoute", fmt.Sprintf("Failed to delete route %s: %v", id, err), "ERROR")
		return fmt.Errorf("failed to delete route: %w", err)
	}
	return nil
}
