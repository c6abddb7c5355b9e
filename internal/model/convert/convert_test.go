package convert

import (
	"testing"
	"time"

	"github.com/spraywall/spraywall/internal/model"
	"github.com/spraywall/spraywall/pkg/core"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/datatypes"
)

func TestCoreToRoute(t *testing.T) {
	in := core.RouteInput{
		Name:        "Heel Hook Hell",
		Grade:       "V8",
		Description: "start matched",
		SetterName:  "Ana",
		Style:       []core.Style{core.StyleDynamic, core.StyleNoMatch},
		Instagram:   "ana.climbs",
		Image:       core.DefaultImage,
		Markers: []core.Marker{
			{X: 0.1, Y: 0.9, Type: core.MarkerStart},
			{X: 0.5, Y: 0.2, Type: core.MarkerFinish},
		},
	}

	r := CoreToRoute(in)

	assert.Empty(t, r.ID)
	assert.Equal(t, "V8", r.Grade)
	assert.Equal(t, 8, r.GradeRank)
	assert.JSONEq(t, `["dynamic","no match"]`, string(r.Styles))
	require.Len(t, r.Markers, 2)
	assert.Equal(t, 0, r.Markers[0].Seq)
	assert.Equal(t, 1, r.Markers[1].Seq)
	assert.Equal(t, "finish", r.Markers[1].Type)
}

func TestCoreToRoute_NoStyles(t *testing.T) {
	r := CoreToRoute(core.RouteInput{Name: "x", Grade: "V1", Image: "/a.jpg"})
	assert.Equal(t, datatypes.JSON("[]"), r.Styles)
	assert.Empty(t, r.Markers)
}

func TestRouteToCore(t *testing.T) {
	now := time.Date(2026, 5, 1, 10, 0, 0, 0, time.UTC)
	r := model.Route{
		ID:        "abc",
		CreatedAt: now,
		UpdatedAt: now,
		Name:      "Heel Hook Hell",
		Grade:     "V8",
		Styles:    datatypes.JSON(`["slab"]`),
		Image:     core.DefaultImage,
		Markers: []model.RouteMarker{
			{RouteID: "abc", Seq: 0, X: 0.1, Y: 0.9, Type: "start"},
			{RouteID: "abc", Seq: 1, X: 0.5, Y: 0.2, Type: "feet-only"},
		},
	}

	got := RouteToCore(r)

	assert.Equal(t, "abc", got.ID)
	assert.Equal(t, core.Grade("V8"), got.Grade)
	assert.Equal(t, []core.Style{core.StyleSlab}, got.Style)
	assert.Equal(t, []core.Marker{
		{X: 0.1, Y: 0.9, Type: core.MarkerStart},
		{X: 0.5, Y: 0.2, Type: core.MarkerFeetOnly},
	}, got.Markers)
	assert.Equal(t, now, got.CreatedAt)
}

func TestJSONToStyles_Malformed(t *testing.T) {
	assert.Nil(t, jsonToStyles(datatypes.JSON(`{bad`)))
	assert.Nil(t, jsonToStyles(nil))
	assert.Nil(t, jsonToStyles(datatypes.JSON(`[]`)))
}
