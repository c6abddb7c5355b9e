package cache

import (
	"sync"

	"github.com/spraywall/spraywall/pkg/core"
)

// RouteCache caches routes by identifier so detail views skip a DB read.
// Stored and returned routes are copies; callers may mutate them freely.
type RouteCache struct {
	m      sync.Mutex
	routes map[string]core.Route
	hits   SafeCounter
	misses SafeCounter
}

func NewRouteCache() *RouteCache {
	return &RouteCache{
		routes: make(map[string]core.Route),
	}
}

func (c *RouteCache) Reset() {
	c.m.Lock()
	defer c.m.Unlock()
	c.routes = make(map[string]core.Route)
}

func (c *RouteCache) Get(id string) (core.Route, bool) {
	c.m.Lock()
	r, ok := c.routes[id]
	c.m.Unlock()
	if !ok {
		c.misses.Inc()
		return core.Route{}, false
	}
	c.hits.Inc()
	return clone(r), true
}

func (c *RouteCache) Set(r core.Route) {
	if r.ID == "" {
		return
	}
	c.m.Lock()
	defer c.m.Unlock()
	c.routes[r.ID] = clone(r)
}

func (c *RouteCache) Delete(id string) {
	c.m.Lock()
	defer c.m.Unlock()
	delete(c.routes, id)
}

func (c *RouteCache) Len() int {
	c.m.Lock()
	defer c.m.Unlock()
	return len(c.routes)
}

// Stats returns the hit and miss counts since creation.
func (c *RouteCache) Stats() (hits, misses int) {
	return c.hits.Value(), c.misses.Value()
}

func clone(r core.Route) core.Route {
	if r.Style != nil {
		r.Style = append([]core.Style(nil), r.Style...)
	}
	if r.Markers != nil {
		r.Markers = append([]core.Marker(nil), r.Markers...)
	}
	return r
}

// SafeCounter is a thread-safe counter
type SafeCounter struct {
	mu sync.Mutex
	v  int
}

func (c *SafeCounter) Value() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.v
}

func (c *SafeCounter) Inc() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.v++
}
