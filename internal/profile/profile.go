// Package profile stores per-user training defaults and body measurements.
package profile

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/meltforce/ironlog/internal/gateway"
	"github.com/meltforce/ironlog/internal/identity"
	"github.com/meltforce/ironlog/internal/models"
)

// ErrInvalid is returned for negative readings or rest durations.
var ErrInvalid = errors.New("invalid profile data")

type Service struct {
	gw  gateway.Gateway
	ids identity.Provider
	log *slog.Logger
	now func() time.Time
}

func New(gw gateway.Gateway, ids identity.Provider, log *slog.Logger) *Service {
	return &Service{gw: gw, ids: ids, log: log, now: time.Now}
}

func (s *Service) scoped(ctx context.Context) (*gateway.Scoped, identity.User, error) {
	u, ok := s.ids.CurrentUser(ctx)
	if !ok {
		return nil, identity.User{}, identity.ErrUnauthorized
	}
	return gateway.ForUser(s.gw, u.ID), u, nil
}

// Get returns the user's profile. A user without one gets defaults with the
// display name of their identity.
func (s *Service) Get(ctx context.Context) (models.Profile, error) {
	scoped, u, err := s.scoped(ctx)
	if err != nil {
		return models.Profile{}, err
	}
	rec, ok, err := scoped.GetOne(ctx, gateway.Profiles, nil)
	if err != nil {
		return models.Profile{}, fmt.Errorf("loading profile: %w", err)
	}
	if !ok {
		return models.Profile{UserID: u.ID, DisplayName: u.DisplayName}, nil
	}
	return gateway.Decode[models.Profile](rec)
}

// Put replaces the user's profile.
func (s *Service) Put(ctx context.Context, p models.Profile) (models.Profile, error) {
	scoped, u, err := s.scoped(ctx)
	if err != nil {
		return models.Profile{}, err
	}
	if p.BodyweightKg < 0 {
		return models.Profile{}, fmt.Errorf("%w: negative bodyweight", ErrInvalid)
	}
	if p.DefaultRestSeconds != nil && *p.DefaultRestSeconds < 0 {
		return models.Profile{}, fmt.Errorf("%w: negative rest", ErrInvalid)
	}
	p.UserID = u.ID
	p.UpdatedAt = s.now()

	rec, err := gateway.Encode(p)
	if err != nil {
		return models.Profile{}, err
	}
	saved, err := scoped.Upsert(ctx, gateway.Profiles, nil, rec)
	if err != nil {
		return models.Profile{}, fmt.Errorf("saving profile: %w", err)
	}
	return gateway.Decode[models.Profile](saved)
}

// Measurements returns the user's measurements, most recent first.
func (s *Service) Measurements(ctx context.Context) ([]models.BodyMeasurement, error) {
	scoped, _, err := s.scoped(ctx)
	if err != nil {
		return nil, err
	}
	recs, err := scoped.ListWhere(ctx, gateway.BodyMeasurements, nil, &gateway.Order{Field: "date", Desc: true})
	if err != nil {
		return nil, fmt.Errorf("listing measurements: %w", err)
	}
	return gateway.DecodeAll[models.BodyMeasurement](recs)
}

// AddMeasurement stores a measurement, dated now when no date is given.
func (s *Service) AddMeasurement(ctx context.Context, m models.BodyMeasurement) (models.BodyMeasurement, error) {
	scoped, _, err := s.scoped(ctx)
	if err != nil {
		return models.BodyMeasurement{}, err
	}
	for _, v := range []*float64{m.WeightKg, m.BodyFatPct, m.WaistCm, m.ChestCm, m.ArmCm, m.ThighCm} {
		if v != nil && *v < 0 {
			return models.BodyMeasurement{}, fmt.Errorf("%w: negative reading", ErrInvalid)
		}
	}
	if m.BodyFatPct != nil && *m.BodyFatPct > 100 {
		return models.BodyMeasurement{}, fmt.Errorf("%w: body fat above 100%%", ErrInvalid)
	}
	if m.Date.IsZero() {
		m.Date = s.now()
	}
	m.ID, m.UserID = "", ""

	rec, err := gateway.Encode(m)
	if err != nil {
		return models.BodyMeasurement{}, err
	}
	saved, err := scoped.Insert(ctx, gateway.BodyMeasurements, rec)
	if err != nil {
		return models.BodyMeasurement{}, fmt.Errorf("saving measurement: %w", err)
	}
	return gateway.Decode[models.BodyMeasurement](saved)
}
