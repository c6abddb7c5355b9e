package main

import (
	"bytes"
	"context"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/spraywall/spraywall/internal/config"
	"github.com/spraywall/spraywall/internal/editor"
	"github.com/spraywall/spraywall/internal/handlers"
	"github.com/spraywall/spraywall/internal/storage/memory"
	"github.com/spraywall/spraywall/pkg/core"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func runCLI(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	root := newRootCmd()
	root.SetOut(&out)
	root.SetErr(&out)
	root.SetArgs(append([]string{"--config", t.TempDir()}, args...))
	err := root.ExecuteContext(context.Background())
	return out.String(), err
}

func TestVersionCmd(t *testing.T) {
	out, err := runCLI(t, "version")
	require.NoError(t, err)
	assert.Contains(t, out, AppName+" "+CurrentVersion)
}

func TestParseMarkerSpec(t *testing.T) {
	m, err := parseMarkerSpec("start@0.25, 0.75")
	require.NoError(t, err)
	assert.Equal(t, core.Marker{X: 0.25, Y: 0.75, Type: core.MarkerStart}, m)

	m, err = parseMarkerSpec("feet@0,1")
	require.NoError(t, err)
	assert.Equal(t, core.MarkerFeetOnly, m.Type)

	for _, bad := range []string{"start", "crimp@0.1,0.1", "start@0.1", "start@x,0.1", "start@0.1,y", "start@1.5,0.1"} {
		_, err := parseMarkerSpec(bad)
		assert.Error(t, err, bad)
	}
}

func TestReplayMarkers(t *testing.T) {
	sess := editor.NewSession(scriptRect, "")
	require.NoError(t, replayMarkers(sess, []string{"start@0.1,0.9", "regular@0.5,0.5", "finish@0.9,0.1"}))

	got := sess.Markers()
	require.Len(t, got, 3)
	assert.Equal(t, core.MarkerStart, got[0].Type)
	assert.InDelta(t, 0.5, got[1].X, 1e-9)
	assert.Equal(t, core.MarkerFinish, got[2].Type)

	// clicking a placed marker again removes it
	require.NoError(t, replayMarkers(sess, []string{"regular@0.5,0.5"}))
	assert.Equal(t, 2, sess.MarkerCount())

	assert.Error(t, replayMarkers(sess, []string{"nope"}))
}

func TestMarkerSummary(t *testing.T) {
	assert.Equal(t, "-", markerSummary(nil))

	s := markerSummary([]core.Marker{
		{Type: core.MarkerStart}, {Type: core.MarkerStart}, {Type: core.MarkerFinish},
	})
	assert.Contains(t, s, "2 start")
	assert.Contains(t, s, "1 finish")
	assert.NotContains(t, s, "feet-only")
}

func TestRoutesAddAndList(t *testing.T) {
	backend := memory.New(config.MemoryConfig{})
	require.NoError(t, backend.Init())
	srv := httptest.NewServer(handlers.NewService(handlers.Dependencies{Backend: backend}).Handler())
	defer srv.Close()
	t.Setenv("SPRAYWALL_API_SERVERURL", srv.URL)

	out, err := runCLI(t, "routes", "add",
		"--name", "Sloper Traverse",
		"--grade", "v3",
		"--setter", "Ana",
		"--style", "slab",
		"--marker", "start@0.1,0.9",
		"--marker", "finish@0.8,0.1",
	)
	require.NoError(t, err, out)
	assert.Contains(t, out, "Route saved successfully")

	routes, err := backend.ListRoutes(context.Background(), core.ListQuery{})
	require.NoError(t, err)
	require.Len(t, routes, 1)
	assert.Equal(t, core.Grade("V3"), routes[0].Grade)
	assert.Len(t, routes[0].Markers, 2)
	assert.Equal(t, core.DefaultImage, routes[0].Image)

	out, err = runCLI(t, "routes", "list", "--min-grade", "V2")
	require.NoError(t, err)
	assert.Contains(t, out, "Sloper Traverse")
	assert.Contains(t, out, routes[0].ID)

	out, err = runCLI(t, "routes", "get", routes[0].ID)
	require.NoError(t, err)
	assert.Contains(t, out, `"name": "Sloper Traverse"`)

	out, err = runCLI(t, "routes", "delete", routes[0].ID)
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(out, "deleted "))

	_, err = runCLI(t, "routes", "get", routes[0].ID)
	assert.ErrorIs(t, err, core.ErrRouteNotFound)
}

func TestRoutesAdd_DefaultGrade(t *testing.T) {
	backend := memory.New(config.MemoryConfig{})
	require.NoError(t, backend.Init())
	srv := httptest.NewServer(handlers.NewService(handlers.Dependencies{Backend: backend}).Handler())
	defer srv.Close()
	t.Setenv("SPRAYWALL_API_SERVERURL", srv.URL)

	out, err := runCLI(t, "routes", "add", "--name", "Crimp Line", "--marker", "start@0.1,0.9")
	require.NoError(t, err, out)

	routes, err := backend.ListRoutes(context.Background(), core.ListQuery{})
	require.NoError(t, err)
	require.Len(t, routes, 1)
	assert.Equal(t, core.Grades[0], routes[0].Grade)
}

func TestRoutesAdd_InvalidNotSent(t *testing.T) {
	t.Setenv("SPRAYWALL_API_SERVERURL", "http://127.0.0.1:1")
	_, err := runCLI(t, "routes", "add", "--grade", "V3", "--marker", "start@0.1,0.1")
	require.Error(t, err)

	var verr *core.ValidationError
	assert.ErrorAs(t, err, &verr)
}

func TestBackupCmd_Memory(t *testing.T) {
	dir := t.TempDir()
	store := filepath.Join(dir, "routes.json")

	seed := memory.New(config.MemoryConfig{Path: store})
	require.NoError(t, seed.Init())
	_, err := seed.CreateRoute(context.Background(), core.RouteInput{
		Name:  "Crimp Line",
		Grade: "V4",
		Image: core.DefaultImage,
	})
	require.NoError(t, err)
	require.NoError(t, seed.Close())

	t.Setenv("SPRAYWALL_LOGSDIR", filepath.Join(dir, "logs"))
	t.Setenv("SPRAYWALL_STORAGE_TYPE", "memory")
	t.Setenv("SPRAYWALL_STORAGE_MEMORY_PATH", store)

	out := filepath.Join(dir, "backup", "routes.json")
	stdout, err := runCLI(t, "backup", out)
	require.NoError(t, err)
	assert.Contains(t, stdout, "backup written to "+out)

	data, err := os.ReadFile(out)
	require.NoError(t, err)
	assert.Contains(t, string(data), `"name": "Crimp Line"`)
}

func TestBackupCmd_UnknownStorage(t *testing.T) {
	t.Setenv("SPRAYWALL_LOGSDIR", t.TempDir())
	t.Setenv("SPRAYWALL_STORAGE_TYPE", "mongo")

	_, err := runCLI(t, "backup", filepath.Join(t.TempDir(), "x"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown storage type")
}
