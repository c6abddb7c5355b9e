// Package editor implements the marker placement model of the route editor:
// pointer events over the rendered wall photo become fractional marker
// positions, drags relocate markers and plain clicks toggle them.
package editor

// Point is a position in viewport pixels, as carried by pointer events.
type Point struct {
	X float64
	Y float64
}

// Sub returns p - q.
func (p Point) Sub(q Point) Point {
	return Point{X: p.X - q.X, Y: p.Y - q.Y}
}

// Position is a resolution-independent location on the image, each axis a
// fraction of the rendered size.
type Position struct {
	X float64
	Y float64
}

// Clamp pins both axes into [0,1].
func (p Position) Clamp() Position {
	return Position{X: clamp01(p.X), Y: clamp01(p.Y)}
}

func clamp01(v float64) float64 {
	switch {
	case v < 0:
		return 0
	case v > 1:
		return 1
	default:
		return v
	}
}

// Rect is the on-screen bounding rectangle of the rendered image.
type Rect struct {
	Left   float64
	Top    float64
	Width  float64
	Height float64
}

// Valid reports whether the rect has a non-zero area. Events against an
// invalid rect must not be normalized.
func (r Rect) Valid() bool {
	return r.Width > 0 && r.Height > 0
}

// Contains reports whether p lies inside the rect, edges included.
func (r Rect) Contains(p Point) bool {
	return p.X >= r.Left && p.X <= r.Left+r.Width &&
		p.Y >= r.Top && p.Y <= r.Top+r.Height
}

// Normalize converts a viewport point into a fractional image position.
func (r Rect) Normalize(p Point) Position {
	return Position{
		X: (p.X - r.Left) / r.Width,
		Y: (p.Y - r.Top) / r.Height,
	}
}

// Center returns the viewport point a marker at pos is drawn centered on.
func (r Rect) Center(pos Position) Point {
	return Point{
		X: r.Left + pos.X*r.Width,
		Y: r.Top + pos.Y*r.Height,
	}
}

// RenderPercent returns the CSS left/top percentages for a marker.
func RenderPercent(pos Position) (left, top float64) {
	return pos.X * 100, pos.Y * 100
}

// FromPercent is the inverse of RenderPercent.
func FromPercent(left, top float64) Position {
	return Position{X: left / 100, Y: top / 100}
}
