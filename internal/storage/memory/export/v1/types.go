// Package v1 contains the v1 on-disk format of the flat-file route store.
package v1

import "time"

// Version is written into every v1 file.
const Version = 1

// Export is the root JSON structure for v1 format
type Export struct {
	Version    int       `json:"version"`
	ExportedAt time.Time `json:"exportedAt"`
	Routes     []Route   `json:"routes"`
}

// Route is one stored route. Field names match the HTTP API.
type Route struct {
	ID          string    `json:"id"`
	Name        string    `json:"name"`
	Grade       string    `json:"grade"`
	Description string    `json:"description,omitempty"`
	SetterName  string    `json:"setterName,omitempty"`
	Style       []string  `json:"style"`
	Instagram   string    `json:"instagram,omitempty"`
	Image       string    `json:"image"`
	Markers     []Marker  `json:"markers"`
	CreatedAt   time.Time `json:"createdAt"`
	UpdatedAt   time.Time `json:"updatedAt"`
}

// Marker is a hold marker in image-fraction coordinates.
type Marker struct {
	X    float64 `json:"x"`
	Y    float64 `json:"y"`
	Type string  `json:"type"`
}
