package core

import (
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func validInput() RouteInput {
	return RouteInput{
		Name:  "Crimp City",
		Grade: "V5",
		Image: DefaultImage,
		Markers: []Marker{
			{X: 0.25, Y: 0.25, Type: MarkerStart},
			{X: 0.6, Y: 0.1, Type: MarkerFinish},
		},
	}
}

func TestParseGrade(t *testing.T) {
	tests := []struct {
		input string
		want  Grade
		ok    bool
	}{
		{"V1", "V1", true},
		{"v5", "V5", true},
		{" V17 ", "V17", true},
		{"V0", "", false},
		{"V18", "", false},
		{"V05", "", false},
		{"5", "", false},
		{"", "", false},
		{"Vx", "", false},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			got, ok := ParseGrade(tt.input)
			assert.Equal(t, tt.ok, ok)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestGrades(t *testing.T) {
	require.Len(t, Grades, 17)
	assert.Equal(t, Grade("V1"), Grades[0])
	assert.Equal(t, Grade("V17"), Grades[16])
	assert.Equal(t, 17, Grades[16].Rank())
}

func TestParseMarkerType(t *testing.T) {
	tests := []struct {
		input string
		want  MarkerType
		ok    bool
	}{
		{"start", MarkerStart, true},
		{"Regular", MarkerRegular, true},
		{"finish", MarkerFinish, true},
		{"feet-only", MarkerFeetOnly, true},
		{"feet only", MarkerFeetOnly, true},
		{"crimp", "", false},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			got, ok := ParseMarkerType(tt.input)
			assert.Equal(t, tt.ok, ok)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestMarkerType_Color(t *testing.T) {
	assert.Equal(t, "green", MarkerStart.Color())
	assert.Equal(t, "blue", MarkerRegular.Color())
	assert.Equal(t, "red", MarkerFinish.Color())
	assert.Equal(t, "yellow", MarkerFeetOnly.Color())
}

func TestParseStyle(t *testing.T) {
	s, ok := ParseStyle("dinamico")
	assert.True(t, ok)
	assert.Equal(t, StyleDynamic, s)

	s, ok = ParseStyle("regleteira")
	assert.True(t, ok)
	assert.Equal(t, StyleSlab, s)

	s, ok = ParseStyle("No Match")
	assert.True(t, ok)
	assert.Equal(t, StyleNoMatch, s)

	_, ok = ParseStyle("campus")
	assert.False(t, ok)
}

func TestValidate_Valid(t *testing.T) {
	assert.NoError(t, validInput().Validate())
}

func TestValidate_CollectsEveryViolation(t *testing.T) {
	in := RouteInput{
		Grade:     "V20",
		Style:     []Style{"campus"},
		Instagram: "not a handle!",
		Markers: []Marker{
			{X: 1.2, Y: 0.5, Type: MarkerRegular},
			{X: 0.5, Y: 0.5, Type: "crimp"},
		},
	}

	err := in.Validate()
	require.Error(t, err)

	var verr *ValidationError
	require.True(t, errors.As(err, &verr))

	fields := make([]string, 0, len(verr.Fields))
	for _, f := range verr.Fields {
		fields = append(fields, f.Field)
	}
	assert.ElementsMatch(t, []string{"name", "grade", "image", "instagram", "style[0]", "markers[0]", "markers[1].type"}, fields)
	assert.Contains(t, err.Error(), "invalid route")
}

func TestValidate_TextLengthLimits(t *testing.T) {
	tests := []struct {
		field string
		limit int
		set   func(*RouteInput, string)
	}{
		{"name", MaxNameLength, func(in *RouteInput, v string) { in.Name = v }},
		{"description", MaxDescriptionLength, func(in *RouteInput, v string) { in.Description = v }},
		{"setterName", MaxSetterNameLength, func(in *RouteInput, v string) { in.SetterName = v }},
		{"image", MaxImageLength, func(in *RouteInput, v string) { in.Image = v }},
	}
	for _, tt := range tests {
		t.Run(tt.field, func(t *testing.T) {
			// Multi-byte runes count once each, like a varchar column.
			in := validInput()
			tt.set(&in, strings.Repeat("é", tt.limit))
			assert.NoError(t, in.Validate())

			tt.set(&in, strings.Repeat("a", tt.limit+1))
			err := in.Validate()
			var verr *ValidationError
			require.True(t, errors.As(err, &verr))
			require.Len(t, verr.Fields, 1)
			assert.Equal(t, tt.field, verr.Fields[0].Field)
			assert.Contains(t, verr.Fields[0].Message, "at most")
		})
	}
}

func TestValidate_EdgeCoordinatesAccepted(t *testing.T) {
	in := validInput()
	in.Markers = []Marker{{X: 0, Y: 0, Type: MarkerStart}, {X: 1, Y: 1, Type: MarkerFinish}}
	assert.NoError(t, in.Validate())
}

func TestNormalize(t *testing.T) {
	in := RouteInput{
		Name:      "  Arete  ",
		Grade:     "v3",
		Image:     " /spray.jpeg ",
		Instagram: "@climber.one",
		Style:     []Style{"dinamico", "dynamic", "regleteira"},
		Markers:   []Marker{{X: 0.1, Y: 0.2, Type: "feet only"}},
	}

	in.Normalize()

	assert.Equal(t, "Arete", in.Name)
	assert.Equal(t, Grade("V3"), in.Grade)
	assert.Equal(t, "/spray.jpeg", in.Image)
	assert.Equal(t, "climber.one", in.Instagram)
	assert.Equal(t, []Style{StyleDynamic, StyleSlab}, in.Style)
	assert.Equal(t, MarkerFeetOnly, in.Markers[0].Type)
	assert.NoError(t, in.Validate())
}

func TestNormalize_LeavesUnknownTokens(t *testing.T) {
	in := validInput()
	in.Grade = "hard"
	in.Normalize()
	assert.Equal(t, Grade("hard"), in.Grade)
	assert.Error(t, in.Validate())
}

func TestRoute_InputCopiesSlices(t *testing.T) {
	r := Route{ID: "abc", Name: "x", Grade: "V2", Image: DefaultImage, Markers: []Marker{{X: 0.5, Y: 0.5, Type: MarkerRegular}}}
	in := r.Input()
	in.Markers[0].X = 0.9
	assert.Equal(t, 0.5, r.Markers[0].X)
}
