package postgres

import (
	"context"
	"testing"

	"github.com/glebarez/sqlite"
	"github.com/rs/zerolog"
	"github.com/spraywall/spraywall/internal/cache"
	"github.com/spraywall/spraywall/internal/database"
	"github.com/spraywall/spraywall/internal/logging"
	"github.com/spraywall/spraywall/internal/storage"
	"github.com/spraywall/spraywall/pkg/core"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

// Compile-time interface check
var _ storage.Backend = (*Backend)(nil)

func TestNew(t *testing.T) {
	b := New(database.PostgresConfig{Host: "localhost"}, Dependencies{})
	require.NotNil(t, b)
	assert.Nil(t, b.Backend, "no connection before Init")
}

func TestInit_InjectedDB(t *testing.T) {
	db, err := gorm.Open(sqlite.Open("file::memory:"), &gorm.Config{
		SkipDefaultTransaction: true,
	})
	require.NoError(t, err)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })

	b := New(database.PostgresConfig{}, Dependencies{
		DB:         db,
		RouteCache: cache.NewRouteCache(),
		LogManager: logging.NewSlogManager(),
	})
	require.NoError(t, b.Init())

	r, err := b.CreateRoute(context.Background(), core.RouteInput{
		Name:    "Arete",
		Grade:   "V3",
		Image:   core.DefaultImage,
		Markers: []core.Marker{{X: 0.5, Y: 0.5, Type: core.MarkerStart}},
	})
	require.NoError(t, err)

	got, err := b.GetRoute(context.Background(), r.ID)
	require.NoError(t, err)
	assert.Equal(t, "Arete", got.Name)

	require.NoError(t, b.Close())
	// the injected connection is still usable after Close
	assert.NoError(t, sqlDB.Ping())
}

func TestInit_UnreachableServer(t *testing.T) {
	b := New(database.PostgresConfig{
		Host:     "127.0.0.1",
		Port:     "1",
		Username: "postgres",
		Password: "postgres",
		Database: "spraywall",
	}, Dependencies{DBLogger: zerolog.Nop()})

	err := b.Init()
	require.Error(t, err)
	assert.Nil(t, b.manager)
	assert.NoError(t, b.Close())
}
