package mcp

import (
	"context"

	"github.com/meltforce/ironlog/internal/identity"
	"github.com/meltforce/ironlog/internal/models"
	"github.com/meltforce/ironlog/internal/workout"
)

// DataSource abstracts the data layer for MCP tools. Both Local (in-process
// engine) and HTTPClient (remote via REST API) satisfy this interface.
type DataSource interface {
	History(ctx context.Context) ([]models.WorkoutSession, error)
	PersonalRecords(ctx context.Context) ([]models.PersonalRecord, error)
	UnlockedAchievements(ctx context.Context) ([]models.UserAchievement, error)
	CurrentWorkout(ctx context.Context) (*models.ActiveWorkout, error)
}

// Local serves the tools from the workout engine of this process. The
// caller's identity must be in the context.
type Local struct {
	Engine *workout.Engine
}

// Compile-time check: Local satisfies DataSource.
var _ DataSource = Local{}

func (l Local) History(ctx context.Context) ([]models.WorkoutSession, error) {
	return l.Engine.History(ctx)
}

func (l Local) PersonalRecords(ctx context.Context) ([]models.PersonalRecord, error) {
	return l.Engine.PersonalRecords(ctx)
}

func (l Local) UnlockedAchievements(ctx context.Context) ([]models.UserAchievement, error) {
	return l.Engine.UnlockedAchievements(ctx)
}

func (l Local) CurrentWorkout(ctx context.Context) (*models.ActiveWorkout, error) {
	if _, ok := identity.FromContext(ctx); !ok {
		return nil, workout.ErrNoIdentity
	}
	return l.Engine.ActiveWorkout(ctx), nil
}
