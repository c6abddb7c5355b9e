// internal/storage/storage.go
package storage

import (
	"context"

	"github.com/spraywall/spraywall/pkg/core"
)

// Backend is the interface all storage implementations must satisfy.
// Implementations are safe for concurrent use.
type Backend interface {
	// Lifecycle
	Init() error
	Close() error

	// CreateRoute normalizes and validates in, assigns an identifier and
	// persists the route. Invalid input yields a *core.ValidationError.
	CreateRoute(ctx context.Context, in core.RouteInput) (core.Route, error)
	ListRoutes(ctx context.Context, q core.ListQuery) ([]core.Route, error)
	// GetRoute, UpdateRoute and DeleteRoute return core.ErrRouteNotFound
	// for unknown identifiers.
	GetRoute(ctx context.Context, id string) (core.Route, error)
	UpdateRoute(ctx context.Context, id string, in core.RouteInput) (core.Route, error)
	DeleteRoute(ctx context.Context, id string) error
}

// Dumpable is an optional interface for backends that can snapshot their
// contents to a file on demand.
type Dumpable interface {
	Dump(path string) error
}
