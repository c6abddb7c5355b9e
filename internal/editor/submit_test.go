package editor

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"testing"
	"time"

	"github.com/spraywall/spraywall/pkg/core"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeCreator struct {
	calls    int
	received core.RouteInput
	err      error
}

func (f *fakeCreator) CreateRoute(_ context.Context, in core.RouteInput) (core.Route, error) {
	f.calls++
	f.received = in
	if f.err != nil {
		return core.Route{}, f.err
	}
	now := time.Now().UTC()
	return core.Route{
		ID:        "6f1c1d7e-1b7a-4d0c-9d4e-0b9f3c1a2e55",
		Name:      in.Name,
		Grade:     in.Grade,
		Image:     in.Image,
		Markers:   in.Markers,
		CreatedAt: now,
		UpdatedAt: now,
	}, nil
}

func newTestLogger(buf *bytes.Buffer) *slog.Logger {
	return slog.New(slog.NewTextHandler(buf, &slog.HandlerOptions{Level: slog.LevelDebug}))
}

func twoMarkerSession() *Session {
	s := NewSession(wallRect, "")
	s.Form.Name = "Sloper Slab"
	s.Form.Grade = "V5"
	s.SelectType(core.MarkerStart)
	s.Tap(Point{X: 150, Y: 200})
	s.SelectType(core.MarkerFinish)
	s.Tap(Point{X: 450, Y: 100})
	return s
}

func TestSave_Success(t *testing.T) {
	var logs bytes.Buffer
	creator := &fakeCreator{}
	sub := NewSubmitter(creator, newTestLogger(&logs))

	var saved core.Route
	sub.OnSaved = func(r core.Route) { saved = r }

	sess := twoMarkerSession()
	want := sess.Markers()

	route, err := sub.Save(context.Background(), sess)
	require.NoError(t, err)

	assert.NotEmpty(t, route.ID)
	assert.Equal(t, want, route.Markers, "same markers in the same order")
	assert.Equal(t, core.Grade("V5"), creator.received.Grade)
	assert.Equal(t, 1, creator.calls)
	assert.Equal(t, route, saved)

	assert.Equal(t, 0, sess.MarkerCount(), "session discarded after save")
	assert.Contains(t, logs.String(), "Route saved successfully")
}

func TestSave_StoreFailurePreservesSession(t *testing.T) {
	var logs bytes.Buffer
	creator := &fakeCreator{err: errors.New("upstream returned status 500")}
	sub := NewSubmitter(creator, newTestLogger(&logs))
	sub.OnSaved = func(core.Route) { t.Fatal("OnSaved must not run on failure") }

	sess := twoMarkerSession()
	sess.Form.Description = "left hand gaston"
	sess.Form.SetterName = "Ana"
	sess.Form.Style = []core.Style{core.StyleSlab}
	beforeForm := sess.Form
	beforeMarkers := sess.Markers()
	beforeSelected := sess.Selected()

	_, err := sub.Save(context.Background(), sess)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "status 500")

	assert.Equal(t, beforeForm, sess.Form)
	assert.Equal(t, beforeMarkers, sess.Markers())
	assert.Equal(t, beforeSelected, sess.Selected())
	assert.Equal(t, 1, creator.calls, "no retry")
	assert.Contains(t, logs.String(), "Error saving route")
}

func TestSave_InvalidPayloadNeverSent(t *testing.T) {
	var logs bytes.Buffer
	creator := &fakeCreator{}
	sub := NewSubmitter(creator, newTestLogger(&logs))

	sess := twoMarkerSession()
	sess.Form.Name = ""

	_, err := sub.Save(context.Background(), sess)
	require.Error(t, err)

	var verr *core.ValidationError
	assert.True(t, errors.As(err, &verr))
	assert.Equal(t, 0, creator.calls)
	assert.Equal(t, 2, sess.MarkerCount())
}

func TestSave_NormalizesBeforeSending(t *testing.T) {
	creator := &fakeCreator{}
	sub := NewSubmitter(creator, nil)

	sess := twoMarkerSession()
	sess.Form.Grade = "v7"
	sess.Form.Instagram = "@wall.rat"

	_, err := sub.Save(context.Background(), sess)
	require.NoError(t, err)
	assert.Equal(t, core.Grade("V7"), creator.received.Grade)
	assert.Equal(t, "wall.rat", creator.received.Instagram)
}
