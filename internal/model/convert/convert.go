// Package convert provides functions to convert between GORM models and core models
package convert

import (
	"encoding/json"

	"github.com/spraywall/spraywall/internal/model"
	"github.com/spraywall/spraywall/pkg/core"
	"gorm.io/datatypes"
)

// stylesToJSON converts route styles to datatypes.JSON for DB storage.
func stylesToJSON(styles []core.Style) datatypes.JSON {
	if len(styles) == 0 {
		return datatypes.JSON("[]")
	}
	data, _ := json.Marshal(styles)
	return datatypes.JSON(data)
}

// jsonToStyles is the inverse of stylesToJSON. Malformed JSON yields no styles.
func jsonToStyles(data datatypes.JSON) []core.Style {
	if len(data) == 0 {
		return nil
	}
	var styles []core.Style
	if err := json.Unmarshal(data, &styles); err != nil || len(styles) == 0 {
		return nil
	}
	return styles
}

// CoreToMarkers converts markers to GORM rows numbered in order.
func CoreToMarkers(routeID string, markers []core.Marker) []model.RouteMarker {
	out := make([]model.RouteMarker, 0, len(markers))
	for i, m := range markers {
		out = append(out, model.RouteMarker{
			RouteID: routeID,
			Seq:     i,
			X:       m.X,
			Y:       m.Y,
			Type:    string(m.Type),
		})
	}
	return out
}

// CoreToRoute converts a validated core.RouteInput to a GORM model.Route.
// The ID is left empty for the BeforeCreate hook to fill.
func CoreToRoute(in core.RouteInput) model.Route {
	return model.Route{
		Name:        in.Name,
		Grade:       string(in.Grade),
		GradeRank:   in.Grade.Rank(),
		Description: in.Description,
		SetterName:  in.SetterName,
		Styles:      stylesToJSON(in.Style),
		Instagram:   in.Instagram,
		Image:       in.Image,
		Markers:     CoreToMarkers("", in.Markers),
	}
}

// RouteToCore converts a GORM model.Route to a core.Route.
// Markers are expected to be loaded in Seq order.
func RouteToCore(r model.Route) core.Route {
	markers := make([]core.Marker, 0, len(r.Markers))
	for _, m := range r.Markers {
		markers = append(markers, core.Marker{
			X:    m.X,
			Y:    m.Y,
			Type: core.MarkerType(m.Type),
		})
	}

	return core.Route{
		ID:          r.ID,
		Name:        r.Name,
		Grade:       core.Grade(r.Grade),
		Description: r.Description,
		SetterName:  r.SetterName,
		Style:       jsonToStyles(r.Styles),
		Instagram:   r.Instagram,
		Image:       r.Image,
		Markers:     markers,
		CreatedAt:   r.CreatedAt,
		UpdatedAt:   r.UpdatedAt,
	}
}
