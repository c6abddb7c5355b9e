package editor

import (
	"github.com/spraywall/spraywall/pkg/core"
)

// State is the interaction state of a Session.
type State int

const (
	StateIdle State = iota
	StateDragging
)

func (s State) String() string {
	if s == StateDragging {
		return "dragging"
	}
	return "idle"
}

// Action is the effect a pointer event had on the marker set.
type Action int

const (
	ActionNone Action = iota
	ActionAdd
	ActionDragStart
	ActionMove
	ActionDragEnd
	ActionDelete
)

func (a Action) String() string {
	switch a {
	case ActionAdd:
		return "add"
	case ActionDragStart:
		return "drag-start"
	case ActionMove:
		return "move"
	case ActionDragEnd:
		return "drag-end"
	case ActionDelete:
		return "delete"
	default:
		return "none"
	}
}

// Form holds the route metadata fields being edited.
type Form struct {
	Name        string
	Grade       core.Grade
	Description string
	SetterName  string
	Style       []core.Style
	Instagram   string
	Image       string
}

// Session is one in-progress route edit. It owns its marker set and is
// driven by a single event loop; it is not safe for concurrent use.
type Session struct {
	Form Form

	rect     Rect
	selected core.MarkerType
	markers  MarkerSet

	state      State
	dragIndex  int
	dragOffset Point

	// didMove survives the pointer-up so the click that follows it can tell
	// a drag from a tap. pressedMarker records where the gesture began.
	didMove       bool
	pressedMarker bool
}

// NewSession starts an empty edit against the given image rect.
func NewSession(rect Rect, image string) *Session {
	if image == "" {
		image = core.DefaultImage
	}
	s := &Session{rect: rect}
	s.Form = defaultForm(image)
	s.selected = core.MarkerRegular
	s.dragIndex = -1
	return s
}

func defaultForm(image string) Form {
	return Form{Grade: core.Grades[0], Image: image}
}

// State returns the current interaction state.
func (s *Session) State() State {
	return s.state
}

// Rect returns the current image rect.
func (s *Session) Rect() Rect {
	return s.rect
}

// SetRect updates the rendered image bounds after a resize. Stored
// positions are fractional and need no adjustment.
func (s *Session) SetRect(r Rect) {
	s.rect = r
}

// Selected returns the marker type new markers are created with.
func (s *Session) Selected() core.MarkerType {
	return s.selected
}

// SelectType changes the marker type used for new markers. Unknown types
// are ignored.
func (s *Session) SelectType(t core.MarkerType) {
	if t.Valid() {
		s.selected = t
	}
}

// Markers returns a copy of the current markers.
func (s *Session) Markers() []core.Marker {
	return s.markers.Markers()
}

// MarkerCount returns the number of placed markers.
func (s *Session) MarkerCount() int {
	return s.markers.Len()
}

// PointerDown starts a drag when p is on a marker.
func (s *Session) PointerDown(p Point) Action {
	if !s.rect.Valid() || s.state == StateDragging {
		return ActionNone
	}

	s.didMove = false
	i, hit := s.markers.HitTest(s.rect, p, MarkerRadius)
	s.pressedMarker = hit
	if !hit {
		return ActionNone
	}

	m, _ := s.markers.At(i)
	center := s.rect.Center(Position{X: m.X, Y: m.Y})
	s.state = StateDragging
	s.dragIndex = i
	s.dragOffset = p.Sub(center)
	return ActionDragStart
}

// PointerMove relocates the dragged marker so it keeps its offset from the
// pointer. Moves outside a drag are ignored.
func (s *Session) PointerMove(p Point) Action {
	if s.state != StateDragging || !s.rect.Valid() {
		return ActionNone
	}

	pos := s.rect.Normalize(p.Sub(s.dragOffset)).Clamp()
	if !s.markers.Move(s.dragIndex, pos) {
		s.endDrag()
		return ActionNone
	}
	s.didMove = true
	return ActionMove
}

// PointerUp ends a drag.
func (s *Session) PointerUp(Point) Action {
	if s.state != StateDragging {
		return ActionNone
	}
	s.endDrag()
	return ActionDragEnd
}

func (s *Session) endDrag() {
	s.state = StateIdle
	s.dragIndex = -1
	s.dragOffset = Point{}
}

// Click handles the click that closes a gesture. A click on a marker is
// consumed by that marker: it is removed unless the gesture was a drag.
// A click on bare image adds a marker of the selected type.
func (s *Session) Click(p Point) Action {
	if !s.rect.Valid() {
		return ActionNone
	}

	if i, hit := s.markers.HitTest(s.rect, p, MarkerRadius); hit {
		if s.didMove {
			return ActionNone
		}
		s.markers.Remove(i)
		return ActionDelete
	}

	// pointer outran a marker pinned at the image edge
	if s.pressedMarker && s.didMove {
		return ActionNone
	}
	if !s.rect.Contains(p) {
		return ActionNone
	}

	pos := s.rect.Normalize(p)
	s.markers.Append(core.Marker{X: pos.X, Y: pos.Y, Type: s.selected})
	return ActionAdd
}

// Tap runs a full pointer-down, pointer-up, click sequence at p.
func (s *Session) Tap(p Point) Action {
	if a := s.PointerDown(p); a == ActionDragStart {
		s.PointerUp(p)
	}
	return s.Click(p)
}

// Drag runs a pointer-down at from, a move to to, a pointer-up and the
// trailing click at to.
func (s *Session) Drag(from, to Point) Action {
	if s.PointerDown(from) != ActionDragStart {
		return ActionNone
	}
	s.PointerMove(to)
	s.PointerUp(to)
	s.Click(to)
	return ActionMove
}

// Payload snapshots the form and markers into one submission.
func (s *Session) Payload() core.RouteInput {
	return core.RouteInput{
		Name:        s.Form.Name,
		Grade:       s.Form.Grade,
		Description: s.Form.Description,
		SetterName:  s.Form.SetterName,
		Style:       append([]core.Style(nil), s.Form.Style...),
		Instagram:   s.Form.Instagram,
		Image:       s.Form.Image,
		Markers:     s.markers.Markers(),
	}
}

// Reset discards markers and metadata, keeping the image rect and selection.
func (s *Session) Reset() {
	s.markers.Reset()
	s.Form = defaultForm(s.Form.Image)
	s.endDrag()
	s.didMove = false
	s.pressedMarker = false
}
