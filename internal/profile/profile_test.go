package profile_test

import (
	"context"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/meltforce/ironlog/internal/gateway"
	"github.com/meltforce/ironlog/internal/gateway/memgw"
	"github.com/meltforce/ironlog/internal/identity"
	"github.com/meltforce/ironlog/internal/models"
	"github.com/meltforce/ironlog/internal/profile"
)

func as(userID string) context.Context {
	return identity.WithUser(context.Background(), identity.User{ID: userID, Login: userID, DisplayName: "Alice"})
}

func newService() (*profile.Service, *memgw.Gateway) {
	gw := memgw.New()
	return profile.New(gw, identity.ContextProvider{}, slog.New(slog.NewTextHandler(io.Discard, nil))), gw
}

func f64(v float64) *float64 { return &v }

func TestProfileDefaultsAndPut(t *testing.T) {
	svc, gw := newService()
	ctx := as("alice")

	p, err := svc.Get(ctx)
	require.NoError(t, err)
	assert.Equal(t, models.Profile{UserID: "alice", DisplayName: "Alice"}, p)

	rest := 60
	saved, err := svc.Put(ctx, models.Profile{DisplayName: "Al", BodyweightKg: 82.5, DefaultRestSeconds: &rest})
	require.NoError(t, err)
	assert.Equal(t, 82.5, saved.BodyweightKg)

	saved, err = svc.Put(ctx, models.Profile{DisplayName: "Al", BodyweightKg: 81})
	require.NoError(t, err)
	assert.Nil(t, saved.DefaultRestSeconds)
	assert.Equal(t, 1, gw.Len(gateway.Profiles), "one profile per user")

	p, err = svc.Get(ctx)
	require.NoError(t, err)
	assert.Equal(t, 81.0, p.BodyweightKg)

	_, err = svc.Put(ctx, models.Profile{BodyweightKg: -1})
	assert.ErrorIs(t, err, profile.ErrInvalid)

	_, err = svc.Get(context.Background())
	assert.ErrorIs(t, err, identity.ErrUnauthorized)
}

func TestMeasurements(t *testing.T) {
	svc, _ := newService()
	ctx := as("alice")
	day := time.Date(2020, 3, 1, 8, 0, 0, 0, time.UTC)

	_, err := svc.AddMeasurement(ctx, models.BodyMeasurement{Date: day, WeightKg: f64(83)})
	require.NoError(t, err)
	_, err = svc.AddMeasurement(ctx, models.BodyMeasurement{Date: day.AddDate(0, 0, 7), WeightKg: f64(82), WaistCm: f64(84)})
	require.NoError(t, err)
	undated, err := svc.AddMeasurement(ctx, models.BodyMeasurement{BodyFatPct: f64(15)})
	require.NoError(t, err)
	assert.False(t, undated.Date.IsZero())

	list, err := svc.Measurements(ctx)
	require.NoError(t, err)
	require.Len(t, list, 3)
	assert.Equal(t, 15.0, *list[0].BodyFatPct, "most recent first")
	assert.Equal(t, 82.0, *list[1].WeightKg)
	assert.Nil(t, list[2].WaistCm)

	_, err = svc.AddMeasurement(ctx, models.BodyMeasurement{ArmCm: f64(-3)})
	assert.ErrorIs(t, err, profile.ErrInvalid)
	_, err = svc.AddMeasurement(ctx, models.BodyMeasurement{BodyFatPct: f64(140)})
	assert.ErrorIs(t, err, profile.ErrInvalid)

	other, err := svc.Measurements(as("bob"))
	require.NoError(t, err)
	assert.Empty(t, other)
}
