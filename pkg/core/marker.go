// pkg/core/marker.go
package core

import "strings"

// MarkerType is the role a marked hold plays in a route.
type MarkerType string

const (
	MarkerStart    MarkerType = "start"
	MarkerRegular  MarkerType = "regular"
	MarkerFinish   MarkerType = "finish"
	MarkerFeetOnly MarkerType = "feet-only"
)

// MarkerTypes lists every marker type in display order.
var MarkerTypes = []MarkerType{MarkerStart, MarkerRegular, MarkerFinish, MarkerFeetOnly}

// ParseMarkerType converts a wire token to a MarkerType.
// The legacy "feet only" spelling is accepted.
func ParseMarkerType(s string) (MarkerType, bool) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "start":
		return MarkerStart, true
	case "regular":
		return MarkerRegular, true
	case "finish":
		return MarkerFinish, true
	case "feet-only", "feet only", "feet_only", "feet":
		return MarkerFeetOnly, true
	default:
		return "", false
	}
}

// Valid reports whether t is one of the known marker types.
func (t MarkerType) Valid() bool {
	for _, known := range MarkerTypes {
		if t == known {
			return true
		}
	}
	return false
}

// Color is the border color a marker of this type is drawn with.
func (t MarkerType) Color() string {
	switch t {
	case MarkerStart:
		return "green"
	case MarkerFinish:
		return "red"
	case MarkerFeetOnly:
		return "yellow"
	default:
		return "blue"
	}
}

// Marker is a hold annotation placed on the wall photo.
// X and Y are fractions of the rendered image width and height.
type Marker struct {
	X    float64    `json:"x"`
	Y    float64    `json:"y"`
	Type MarkerType `json:"type"`
}

// InBounds reports whether the marker lies on the image.
func (m Marker) InBounds() bool {
	return m.X >= 0 && m.X <= 1 && m.Y >= 0 && m.Y <= 1
}
