package handlers

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"
	"github.com/spraywall/spraywall/internal/api"
	"github.com/spraywall/spraywall/internal/config"
	"github.com/spraywall/spraywall/internal/editor"
	"github.com/spraywall/spraywall/internal/storage/memory"
	streamhub "github.com/spraywall/spraywall/internal/streaming"
	"github.com/spraywall/spraywall/pkg/core"
	"github.com/spraywall/spraywall/pkg/streaming"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestEditorToServer drives an editing session through the Submitter and
// the HTTP client into a live server, and watches the change arrive on the
// route stream.
func TestEditorToServer(t *testing.T) {
	backend := memory.New(config.MemoryConfig{})
	require.NoError(t, backend.Init())

	hub := streamhub.NewHub(nil)
	svc := NewService(Dependencies{Backend: backend, Stream: hub})
	srv := httptest.NewServer(svc.Handler())
	t.Cleanup(func() {
		_ = hub.Close()
		srv.Close()
		svc.Close()
	})

	ctx := context.Background()
	client := api.New(srv.URL, 5*time.Second)
	require.NoError(t, client.Healthcheck(ctx))

	streamURL, err := streamhub.StreamURL(srv.URL)
	require.NoError(t, err)
	sub, err := streamhub.Subscribe(ctx, streamURL, nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = sub.Close() })
	select {
	case env := <-sub.Events():
		require.Equal(t, streaming.TypeHello, env.Type)
	case <-time.After(2 * time.Second):
		t.Fatal("no hello from stream")
	}

	// 400x300 photo rendered at (100, 50)
	sess := editor.NewSession(editor.Rect{Left: 100, Top: 50, Width: 400, Height: 300}, "")
	sess.Form.Name = "Sloper Traverse"
	sess.Form.Grade = "v3"
	sess.Form.SetterName = "Ana"
	sess.Form.Style = []core.Style{core.StyleSlab}

	sess.SelectType(core.MarkerStart)
	require.Equal(t, editor.ActionAdd, sess.Tap(editor.Point{X: 140, Y: 320}))
	sess.SelectType(core.MarkerRegular)
	require.Equal(t, editor.ActionAdd, sess.Tap(editor.Point{X: 300, Y: 200}))
	sess.SelectType(core.MarkerFinish)
	require.Equal(t, editor.ActionAdd, sess.Tap(editor.Point{X: 460, Y: 80}))
	// move the middle hold a little
	require.Equal(t, editor.ActionMove, sess.Drag(editor.Point{X: 300, Y: 200}, editor.Point{X: 320, Y: 180}))

	want := sess.Markers()

	var saved core.Route
	sub2 := editor.NewSubmitter(client, nil)
	sub2.OnSaved = func(r core.Route) { saved = r }

	route, err := sub2.Save(ctx, sess)
	require.NoError(t, err)
	assert.Equal(t, route.ID, saved.ID)
	assert.Zero(t, sess.MarkerCount(), "session resets after a successful save")

	if diff := cmp.Diff(want, route.Markers, cmpopts.EquateApprox(0, 1e-9)); diff != "" {
		t.Errorf("stored markers mismatch (-want +got):\n%s", diff)
	}
	assert.InDelta(t, 0.55, route.Markers[1].X, 1e-9)
	assert.InDelta(t, 130.0/300.0, route.Markers[1].Y, 1e-9)

	select {
	case env := <-sub.Events():
		require.Equal(t, streaming.TypeRouteCreated, env.Type)
		var p streaming.RoutePayload
		require.NoError(t, env.Decode(&p))
		assert.Equal(t, route.ID, p.Route.ID)
	case <-time.After(2 * time.Second):
		t.Fatal("no route_created on stream")
	}

	listed, err := client.ListRoutes(ctx, core.ListQuery{Setter: "ana"})
	require.NoError(t, err)
	require.Len(t, listed, 1)
	assert.Equal(t, core.Grade("V3"), listed[0].Grade)

	require.NoError(t, client.DeleteRoute(ctx, route.ID))
	_, err = client.GetRoute(ctx, route.ID)
	assert.ErrorIs(t, err, core.ErrRouteNotFound)
}

// TestEditorSaveFailureKeepsSession checks a rejected save leaves the
// session untouched.
func TestEditorSaveFailureKeepsSession(t *testing.T) {
	srv := httptest.NewServer(NewService(Dependencies{Backend: failingBackend{}}).Handler())
	t.Cleanup(srv.Close)

	sess := editor.NewSession(editor.Rect{Width: 100, Height: 100}, "")
	sess.Form.Name = "Doomed"
	sess.Tap(editor.Point{X: 50, Y: 50})

	_, err := editor.NewSubmitter(api.New(srv.URL, time.Second), nil).Save(context.Background(), sess)
	require.Error(t, err)

	se, ok := api.AsStatusError(err)
	require.True(t, ok)
	assert.Equal(t, http.StatusInternalServerError, se.Code)
	assert.Equal(t, "Error saving route", se.Message)
	assert.Equal(t, 1, sess.MarkerCount())
	assert.Equal(t, "Doomed", sess.Form.Name)
}
