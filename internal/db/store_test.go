package db

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hackgods/opd-frontdesk/internal/clinic"
	"github.com/hackgods/opd-frontdesk/internal/config"
)

func TestOpenStore_JSON(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "data")
	cfg := config.Config{StoreDriver: config.StoreJSON, DataDir: dir}

	store, err := OpenStore(context.Background(), cfg, zerolog.Nop())
	require.NoError(t, err)
	defer store.Close()

	require.NotNil(t, store.JSON, "json store supports backups")
	assert.Equal(t, dir, store.JSON.Dir())
	assert.NoError(t, store.Ping(context.Background()))

	s, err := store.GetSettings(context.Background())
	require.NoError(t, err)
	assert.Equal(t, clinic.DefaultSettings(), s)
}

func TestOpenStore_PostgresBadDSN(t *testing.T) {
	cfg := config.Config{StoreDriver: config.StorePostgres, PostgresDSN: "postgres://%zz"}

	_, err := OpenStore(context.Background(), cfg, zerolog.Nop())
	assert.ErrorContains(t, err, "parse postgres dsn")
}
