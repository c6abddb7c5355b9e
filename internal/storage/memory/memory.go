// internal/storage/memory/memory.go
package memory

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/spraywall/spraywall/internal/config"
	"github.com/spraywall/spraywall/pkg/core"
)

// Backend keeps routes in memory and mirrors them to a JSON flat file after
// every mutation. With an empty path nothing is written.
type Backend struct {
	cfg    config.MemoryConfig
	routes map[string]core.Route // keyed by ID

	now   func() time.Time
	newID func() string

	lastExportPath string
	mu             sync.RWMutex
}

// New creates a new memory backend
func New(cfg config.MemoryConfig) *Backend {
	return &Backend{
		cfg:    cfg,
		routes: make(map[string]core.Route),
		now:    time.Now,
		newID:  uuid.NewString,
	}
}

// Init loads the flat file if it exists.
func (b *Backend) Init() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.cfg.Path == "" {
		return nil
	}
	routes, err := readExport(b.cfg.Path)
	if err != nil {
		return err
	}
	for _, r := range routes {
		b.routes[r.ID] = r
	}
	return nil
}

// Close writes the final state to disk.
func (b *Backend) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.persist()
}

// CreateRoute assigns a UUID and stores the route.
func (b *Backend) CreateRoute(ctx context.Context, in core.RouteInput) (core.Route, error) {
	in.Normalize()
	if err := in.Validate(); err != nil {
		return core.Route{}, err
	}
	if err := ctx.Err(); err != nil {
		return core.Route{}, err
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	now := b.now().UTC()
	r := fromInput(in)
	r.ID = b.newID()
	r.CreatedAt = now
	r.UpdatedAt = now

	b.routes[r.ID] = r
	if err := b.persist(); err != nil {
		delete(b.routes, r.ID)
		return core.Route{}, err
	}
	return copyRoute(r), nil
}

// ListRoutes filters, sorts and pages a snapshot of the store.
func (b *Backend) ListRoutes(ctx context.Context, q core.ListQuery) ([]core.Route, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	b.mu.RLock()
	all := make([]core.Route, 0, len(b.routes))
	for _, r := range b.routes {
		all = append(all, copyRoute(r))
	}
	b.mu.RUnlock()

	return q.Apply(all), nil
}

func (b *Backend) GetRoute(ctx context.Context, id string) (core.Route, error) {
	if err := ctx.Err(); err != nil {
		return core.Route{}, err
	}

	b.mu.RLock()
	defer b.mu.RUnlock()

	r, ok := b.routes[id]
	if !ok {
		return core.Route{}, core.ErrRouteNotFound
	}
	return copyRoute(r), nil
}

// UpdateRoute replaces the editable fields of a route, keeping its ID and
// creation time.
func (b *Backend) UpdateRoute(ctx context.Context, id string, in core.RouteInput) (core.Route, error) {
	in.Normalize()
	if err := in.Validate(); err != nil {
		return core.Route{}, err
	}
	if err := ctx.Err(); err != nil {
		return core.Route{}, err
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	prev, ok := b.routes[id]
	if !ok {
		return core.Route{}, core.ErrRouteNotFound
	}

	r := fromInput(in)
	r.ID = prev.ID
	r.CreatedAt = prev.CreatedAt
	r.UpdatedAt = b.now().UTC()

	b.routes[id] = r
	if err := b.persist(); err != nil {
		b.routes[id] = prev
		return core.Route{}, err
	}
	return copyRoute(r), nil
}

func (b *Backend) DeleteRoute(ctx context.Context, id string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	prev, ok := b.routes[id]
	if !ok {
		return core.ErrRouteNotFound
	}
	delete(b.routes, id)
	if err := b.persist(); err != nil {
		b.routes[id] = prev
		return err
	}
	return nil
}

// Dump writes the current store to path in the flat-file format.
func (b *Backend) Dump(path string) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.writeExport(path)
}

// GetExportedFilePath returns the path of the last file written.
func (b *Backend) GetExportedFilePath() string {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.lastExportPath
}

// persist must be called with the write lock held.
func (b *Backend) persist() error {
	if b.cfg.Path == "" {
		return nil
	}
	return b.writeExport(b.cfg.Path)
}

func fromInput(in core.RouteInput) core.Route {
	return copyRoute(core.Route{
		Name:        in.Name,
		Grade:       in.Grade,
		Description: in.Description,
		SetterName:  in.SetterName,
		Style:       in.Style,
		Instagram:   in.Instagram,
		Image:       in.Image,
		Markers:     in.Markers,
	})
}

func copyRoute(r core.Route) core.Route {
	if r.Style != nil {
		r.Style = append([]core.Style(nil), r.Style...)
	}
	r.Markers = append([]core.Marker{}, r.Markers...)
	return r
}
