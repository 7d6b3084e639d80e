package alpha

import (
	"context"
	"fmt"
	"io"
	"log/slog"

	"github.com/meltforce/ironlog/internal/gateway"
	"github.com/meltforce/ironlog/internal/ingest"
	"github.com/meltforce/ironlog/internal/models"
)

// Provider processes Alpha Progression CSV exports.
type Provider struct {
	gw  gateway.Gateway
	log *slog.Logger
}

var _ ingest.Provider = (*Provider)(nil)

// NewProvider creates a new Alpha Progression ingest provider.
func NewProvider(gw gateway.Gateway, log *slog.Logger) *Provider {
	return &Provider{gw: gw, log: log}
}

// Ingest parses a CSV export and stores its sessions in the user's history.
// A session already imported with the same name and start time is replaced,
// so re-imports always reflect the latest parser output. Records and
// achievements are left to the caller to resync.
func (p *Provider) Ingest(ctx context.Context, r io.Reader, userID string) (*ingest.Result, error) {
	parsed, err := Parse(r)
	if err != nil {
		return nil, fmt.Errorf("parsing CSV: %w", err)
	}

	scoped := gateway.ForUser(p.gw, userID)
	sessions := Convert(parsed, p.bodyweight(ctx, scoped))
	result := &ingest.Result{SessionsReceived: len(sessions)}

	for _, s := range sessions {
		filters := []gateway.Filter{
			gateway.Eq("routine_name", s.RoutineName),
			gateway.Eq("started_at", s.StartedAt),
		}
		existing, err := scoped.ListWhere(ctx, gateway.WorkoutSessions, filters, nil)
		if err != nil {
			return result, fmt.Errorf("looking up session %s: %w", s.StartedAt.Format("2006-01-02"), err)
		}
		if len(existing) > 0 {
			if err := scoped.DeleteWhere(ctx, gateway.WorkoutSessions, filters); err != nil {
				return result, fmt.Errorf("deleting existing session %s: %w", s.StartedAt.Format("2006-01-02"), err)
			}
			result.SessionsReplaced++
		}

		rec, err := gateway.Encode(s)
		if err != nil {
			return result, err
		}
		if _, err := scoped.Insert(ctx, gateway.WorkoutSessions, rec); err != nil {
			return result, fmt.Errorf("inserting session %s: %w", s.StartedAt.Format("2006-01-02"), err)
		}
		result.SessionsInserted++
		for _, ex := range s.ExercisesCompleted {
			result.SetsReceived += len(ex.Sets)
		}
	}

	p.log.Info("alpha import", "user", userID, "sessions", result.SessionsInserted,
		"replaced", result.SessionsReplaced, "sets", result.SetsReceived)
	return result, nil
}

func (p *Provider) bodyweight(ctx context.Context, scoped *gateway.Scoped) float64 {
	rec, found, err := scoped.GetOne(ctx, gateway.Profiles, nil)
	if err != nil {
		p.log.Warn("loading profile for import, volume excludes bodyweight", "error", err)
		return 0
	}
	if !found {
		return 0
	}
	profile, err := gateway.Decode[models.Profile](rec)
	if err != nil {
		return 0
	}
	return profile.BodyweightKg
}
