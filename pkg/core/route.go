// pkg/core/route.go
package core

import (
	"errors"
	"fmt"
	"regexp"
	"strings"
	"time"
	"unicode/utf8"
)

// DefaultImage is the wall photo routes are drawn on when none is given.
const DefaultImage = "/spray.jpeg"

// ErrRouteNotFound is returned by storage backends for unknown identifiers.
var ErrRouteNotFound = errors.New("route not found")

// Text field limits, in characters. Storage columns are sized to match.
const (
	MaxNameLength        = 127
	MaxDescriptionLength = 2000
	MaxSetterNameLength  = 64
	MaxImageLength       = 255
)

var instagramHandle = regexp.MustCompile(`^[A-Za-z0-9._]{1,30}$`)

// RouteInput is the payload a client submits to create or replace a route.
// It is the Route shape minus identifier and timestamps.
type RouteInput struct {
	Name        string   `json:"name"`
	Grade       Grade    `json:"grade"`
	Description string   `json:"description,omitempty"`
	SetterName  string   `json:"setterName,omitempty"`
	Style       []Style  `json:"style,omitempty"`
	Instagram   string   `json:"instagram,omitempty"`
	Image       string   `json:"image"`
	Markers     []Marker `json:"markers"`
}

// Route is a stored route.
type Route struct {
	ID          string    `json:"id"`
	Name        string    `json:"name"`
	Grade       Grade     `json:"grade"`
	Description string    `json:"description,omitempty"`
	SetterName  string    `json:"setterName,omitempty"`
	Style       []Style   `json:"style,omitempty"`
	Instagram   string    `json:"instagram,omitempty"`
	Image       string    `json:"image"`
	Markers     []Marker  `json:"markers"`
	CreatedAt   time.Time `json:"createdAt"`
	UpdatedAt   time.Time `json:"updatedAt"`
}

// Input returns the client-editable part of the route.
func (r Route) Input() RouteInput {
	return RouteInput{
		Name:        r.Name,
		Grade:       r.Grade,
		Description: r.Description,
		SetterName:  r.SetterName,
		Style:       append([]Style(nil), r.Style...),
		Instagram:   r.Instagram,
		Image:       r.Image,
		Markers:     append([]Marker(nil), r.Markers...),
	}
}

// HasStyle reports whether the route is tagged with s.
func (r Route) HasStyle(s Style) bool {
	for _, have := range r.Style {
		if have == s {
			return true
		}
	}
	return false
}

// Normalize canonicalizes tokens in place: it trims text fields, resolves
// grade/style/marker aliases and strips a leading "@" from the handle.
// Unknown tokens are left as they are so Validate can report them.
func (in *RouteInput) Normalize() {
	in.Name = strings.TrimSpace(in.Name)
	in.Description = strings.TrimSpace(in.Description)
	in.SetterName = strings.TrimSpace(in.SetterName)
	in.Image = strings.TrimSpace(in.Image)
	in.Instagram = strings.TrimPrefix(strings.TrimSpace(in.Instagram), "@")

	if g, ok := ParseGrade(string(in.Grade)); ok {
		in.Grade = g
	}

	if len(in.Style) > 0 {
		seen := make(map[Style]bool, len(in.Style))
		styles := make([]Style, 0, len(in.Style))
		for _, s := range in.Style {
			if parsed, ok := ParseStyle(string(s)); ok {
				s = parsed
			}
			if seen[s] {
				continue
			}
			seen[s] = true
			styles = append(styles, s)
		}
		in.Style = styles
	}

	for i := range in.Markers {
		if t, ok := ParseMarkerType(string(in.Markers[i].Type)); ok {
			in.Markers[i].Type = t
		}
	}
}

// Validate checks the payload against the route schema.
// It returns a *ValidationError listing every violation, or nil.
func (in RouteInput) Validate() error {
	var verr ValidationError

	if in.Name == "" {
		verr.add("name", "is required")
	}
	verr.maxLength("name", in.Name, MaxNameLength)
	verr.maxLength("description", in.Description, MaxDescriptionLength)
	verr.maxLength("setterName", in.SetterName, MaxSetterNameLength)
	verr.maxLength("image", in.Image, MaxImageLength)
	if !in.Grade.Valid() {
		verr.add("grade", fmt.Sprintf("%q is not a grade between V%d and V%d", in.Grade, MinGradeRank, MaxGradeRank))
	}
	if in.Image == "" {
		verr.add("image", "is required")
	}
	if in.Instagram != "" && !instagramHandle.MatchString(in.Instagram) {
		verr.add("instagram", fmt.Sprintf("%q is not a valid handle", in.Instagram))
	}
	for i, s := range in.Style {
		if !s.Valid() {
			verr.add(fmt.Sprintf("style[%d]", i), fmt.Sprintf("unknown style %q", s))
		}
	}
	for i, m := range in.Markers {
		if !m.Type.Valid() {
			verr.add(fmt.Sprintf("markers[%d].type", i), fmt.Sprintf("unknown marker type %q", m.Type))
		}
		if !m.InBounds() {
			verr.add(fmt.Sprintf("markers[%d]", i), fmt.Sprintf("position (%g, %g) is outside the image", m.X, m.Y))
		}
	}

	if len(verr.Fields) == 0 {
		return nil
	}
	return &verr
}

// FieldError is one schema violation.
type FieldError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

// ValidationError collects schema violations found at the system boundary.
type ValidationError struct {
	Fields []FieldError
}

func (e *ValidationError) add(field, msg string) {
	e.Fields = append(e.Fields, FieldError{Field: field, Message: msg})
}

func (e *ValidationError) maxLength(field, value string, limit int) {
	if n := utf8.RuneCountInString(value); n > limit {
		e.add(field, fmt.Sprintf("is %d characters, at most %d allowed", n, limit))
	}
}

func (e *ValidationError) Error() string {
	parts := make([]string, 0, len(e.Fields))
	for _, f := range e.Fields {
		parts = append(parts, f.Field+" "+f.Message)
	}
	return "invalid route: " + strings.Join(parts, "; ")
}
