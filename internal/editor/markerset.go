package editor

import (
	"math"

	"github.com/spraywall/spraywall/pkg/core"
)

// MarkerRadius is the hit radius of a rendered marker in pixels
// (20px circle drawn centered on its position).
const MarkerRadius = 10.0

// MarkerSet is the ordered collection of markers of one editing session.
// Order is insertion order; indexes are stable until a removal.
type MarkerSet struct {
	markers []core.Marker
}

// Append adds a marker and returns its index.
func (s *MarkerSet) Append(m core.Marker) int {
	s.markers = append(s.markers, m)
	return len(s.markers) - 1
}

// Move relocates the marker at index i. It reports false for an unknown index.
func (s *MarkerSet) Move(i int, pos Position) bool {
	if i < 0 || i >= len(s.markers) {
		return false
	}
	s.markers[i].X = pos.X
	s.markers[i].Y = pos.Y
	return true
}

// Remove deletes the marker at index i. It reports false for an unknown index.
func (s *MarkerSet) Remove(i int) bool {
	if i < 0 || i >= len(s.markers) {
		return false
	}
	s.markers = append(s.markers[:i], s.markers[i+1:]...)
	return true
}

// At returns the marker at index i.
func (s *MarkerSet) At(i int) (core.Marker, bool) {
	if i < 0 || i >= len(s.markers) {
		return core.Marker{}, false
	}
	return s.markers[i], true
}

// Len returns the number of markers.
func (s *MarkerSet) Len() int {
	return len(s.markers)
}

// Markers returns a copy of the markers in order.
func (s *MarkerSet) Markers() []core.Marker {
	out := make([]core.Marker, len(s.markers))
	copy(out, s.markers)
	return out
}

// Reset removes every marker.
func (s *MarkerSet) Reset() {
	s.markers = nil
}

// HitTest returns the index of the marker drawn under p, if any. Later
// markers are drawn on top, so the search runs from the end.
func (s *MarkerSet) HitTest(r Rect, p Point, radius float64) (int, bool) {
	for i := len(s.markers) - 1; i >= 0; i-- {
		m := s.markers[i]
		c := r.Center(Position{X: m.X, Y: m.Y})
		if math.Hypot(p.X-c.X, p.Y-c.Y) <= radius {
			return i, true
		}
	}
	return -1, false
}
