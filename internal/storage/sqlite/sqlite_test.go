package sqlitestorage

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/spraywall/spraywall/internal/cache"
	"github.com/spraywall/spraywall/internal/logging"
	"github.com/spraywall/spraywall/internal/storage"
	"github.com/spraywall/spraywall/pkg/core"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// Compile-time interface checks
var (
	_ storage.Backend  = (*Backend)(nil)
	_ storage.Dumpable = (*Backend)(nil)
)

func newBackend(cfg Config) *Backend {
	return New(cfg, cache.NewRouteCache(), logging.NewSlogManager(), zerolog.Nop())
}

func sampleInput() core.RouteInput {
	return core.RouteInput{
		Name:  "Pinch Traverse",
		Grade: "V6",
		Image: core.DefaultImage,
		Markers: []core.Marker{
			{X: 0.1, Y: 0.9, Type: core.MarkerStart},
			{X: 0.9, Y: 0.8, Type: core.MarkerFinish},
		},
	}
}

func TestInitClose_InMemory(t *testing.T) {
	b := newBackend(Config{})
	require.NoError(t, b.Init())

	r, err := b.CreateRoute(context.Background(), sampleInput())
	require.NoError(t, err)
	assert.NotEmpty(t, r.ID)

	require.NoError(t, b.Close())
	assert.NoError(t, b.Close(), "second close is a no-op")
}

func TestFileDB_PersistsAcrossRestarts(t *testing.T) {
	path := filepath.Join(t.TempDir(), "spraywall.db")

	b := newBackend(Config{Path: path})
	require.NoError(t, b.Init())
	r, err := b.CreateRoute(context.Background(), sampleInput())
	require.NoError(t, err)
	require.NoError(t, b.Close())

	reopened := newBackend(Config{Path: path})
	require.NoError(t, reopened.Init())
	t.Cleanup(func() { _ = reopened.Close() })

	got, err := reopened.GetRoute(context.Background(), r.ID)
	require.NoError(t, err)
	assert.Equal(t, "Pinch Traverse", got.Name)
	assert.Equal(t, r.Markers, got.Markers)
}

func TestDump(t *testing.T) {
	b := newBackend(Config{})
	require.NoError(t, b.Init())
	t.Cleanup(func() { _ = b.Close() })

	_, err := b.CreateRoute(context.Background(), sampleInput())
	require.NoError(t, err)

	path := filepath.Join(t.TempDir(), "snapshot.db")
	require.NoError(t, b.Dump(path))

	restored := newBackend(Config{Path: path})
	require.NoError(t, restored.Init())
	t.Cleanup(func() { _ = restored.Close() })

	routes, err := restored.ListRoutes(context.Background(), core.ListQuery{})
	require.NoError(t, err)
	require.Len(t, routes, 1)
	assert.Equal(t, "Pinch Traverse", routes[0].Name)
}

func TestDumpLoop_WritesFinalDumpOnClose(t *testing.T) {
	dumpPath := filepath.Join(t.TempDir(), "periodic.db")

	b := newBackend(Config{DumpInterval: time.Hour, DumpPath: dumpPath})
	require.NoError(t, b.Init())

	_, err := b.CreateRoute(context.Background(), sampleInput())
	require.NoError(t, err)

	_, err = os.Stat(dumpPath)
	assert.True(t, os.IsNotExist(err), "no dump before the first tick")

	require.NoError(t, b.Close())

	_, err = os.Stat(dumpPath)
	assert.NoError(t, err)
}

func TestDumpLoop_Ticks(t *testing.T) {
	dumpPath := filepath.Join(t.TempDir(), "periodic.db")

	b := newBackend(Config{DumpInterval: 20 * time.Millisecond, DumpPath: dumpPath})
	require.NoError(t, b.Init())
	t.Cleanup(func() { _ = b.Close() })

	assert.Eventually(t, func() bool {
		_, err := os.Stat(dumpPath)
		return err == nil
	}, 2*time.Second, 10*time.Millisecond)
}
