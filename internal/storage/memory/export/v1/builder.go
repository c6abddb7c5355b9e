package v1

import (
	"fmt"
	"sort"
	"time"

	"github.com/spraywall/spraywall/pkg/core"
)

// Build creates an Export from routes, oldest first so the file diffs well.
func Build(routes []core.Route, at time.Time) Export {
	export := Export{
		Version:    Version,
		ExportedAt: at.UTC(),
		Routes:     make([]Route, 0, len(routes)),
	}

	for _, r := range routes {
		route := Route{
			ID:          r.ID,
			Name:        r.Name,
			Grade:       string(r.Grade),
			Description: r.Description,
			SetterName:  r.SetterName,
			Style:       make([]string, 0, len(r.Style)),
			Instagram:   r.Instagram,
			Image:       r.Image,
			Markers:     make([]Marker, 0, len(r.Markers)),
			CreatedAt:   r.CreatedAt.UTC(),
			UpdatedAt:   r.UpdatedAt.UTC(),
		}
		for _, s := range r.Style {
			route.Style = append(route.Style, string(s))
		}
		for _, m := range r.Markers {
			route.Markers = append(route.Markers, Marker{X: m.X, Y: m.Y, Type: string(m.Type)})
		}
		export.Routes = append(export.Routes, route)
	}

	sort.SliceStable(export.Routes, func(i, j int) bool {
		a, b := export.Routes[i], export.Routes[j]
		if !a.CreatedAt.Equal(b.CreatedAt) {
			return a.CreatedAt.Before(b.CreatedAt)
		}
		return a.ID < b.ID
	})

	return export
}

// Routes converts an Export back to core routes. Entries are normalized and
// validated the same way API input is; an invalid entry fails the whole load.
func Routes(export Export) ([]core.Route, error) {
	if export.Version != Version {
		return nil, fmt.Errorf("unsupported export version %d", export.Version)
	}

	seen := make(map[string]bool, len(export.Routes))
	out := make([]core.Route, 0, len(export.Routes))
	for i, r := range export.Routes {
		if r.ID == "" {
			return nil, fmt.Errorf("route %d: missing id", i)
		}
		if seen[r.ID] {
			return nil, fmt.Errorf("route %d: duplicate id %s", i, r.ID)
		}
		seen[r.ID] = true

		in := core.RouteInput{
			Name:        r.Name,
			Grade:       core.Grade(r.Grade),
			Description: r.Description,
			SetterName:  r.SetterName,
			Instagram:   r.Instagram,
			Image:       r.Image,
			Markers:     make([]core.Marker, 0, len(r.Markers)),
		}
		for _, s := range r.Style {
			in.Style = append(in.Style, core.Style(s))
		}
		for _, m := range r.Markers {
			in.Markers = append(in.Markers, core.Marker{X: m.X, Y: m.Y, Type: core.MarkerType(m.Type)})
		}
		in.Normalize()
		if err := in.Validate(); err != nil {
			return nil, fmt.Errorf("route %s: %w", r.ID, err)
		}

		out = append(out, core.Route{
			ID:          r.ID,
			Name:        in.Name,
			Grade:       in.Grade,
			Description: in.Description,
			SetterName:  in.SetterName,
			Style:       in.Style,
			Instagram:   in.Instagram,
			Image:       in.Image,
			Markers:     in.Markers,
			CreatedAt:   r.CreatedAt,
			UpdatedAt:   r.UpdatedAt,
		})
	}
	return out, nil
}
