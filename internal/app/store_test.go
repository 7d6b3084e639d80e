package app

import (
	"context"
	"io"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/meltforce/ironlog/internal/config"
	"github.com/meltforce/ironlog/internal/gateway"
	"github.com/meltforce/ironlog/internal/routines"
)

var discard = slog.New(slog.NewTextHandler(io.Discard, nil))

func TestOpenStoreMemorySeedsLibrary(t *testing.T) {
	ctx := context.Background()
	cfg := &config.Config{Storage: config.StorageConfig{Driver: config.DriverMemory}}

	store, err := OpenStore(ctx, cfg, "migrations", false, discard)
	require.NoError(t, err)
	defer store.Close()

	recs, err := store.Gateway.ListWhere(ctx, gateway.Exercises, nil, nil)
	require.NoError(t, err)
	assert.Len(t, recs, len(routines.DefaultLibrary))

	id, err := store.Users.GetOrCreateUser(ctx, "alice@example.com", "Alice")
	require.NoError(t, err)
	assert.Equal(t, "alice@example.com", id)
}

func TestOpenStoreUnknownDriver(t *testing.T) {
	cfg := &config.Config{Storage: config.StorageConfig{Driver: "mongo"}}
	_, err := OpenStore(context.Background(), cfg, "migrations", false, discard)
	require.Error(t, err)
}
