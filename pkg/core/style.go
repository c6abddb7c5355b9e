// pkg/core/style.go
package core

import "strings"

// Style tags the movement character of a route.
type Style string

const (
	StyleDynamic Style = "dynamic"
	StyleSlab    Style = "slab"
	StyleNoMatch Style = "no match"
)

// Styles lists every style tag.
var Styles = []Style{StyleDynamic, StyleSlab, StyleNoMatch}

// ParseStyle converts a wire token to a Style. The Portuguese tokens used by
// the first version of the catalogue are still accepted.
func ParseStyle(s string) (Style, bool) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "dynamic", "dinamico", "dyno":
		return StyleDynamic, true
	case "slab", "technical", "slab/technical", "regleteira":
		return StyleSlab, true
	case "no match", "no-match", "nomatch":
		return StyleNoMatch, true
	default:
		return "", false
	}
}

// Valid reports whether s is one of the known styles.
func (s Style) Valid() bool {
	for _, known := range Styles {
		if s == known {
			return true
		}
	}
	return false
}
