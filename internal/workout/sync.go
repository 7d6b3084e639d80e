package workout

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/multierr"

	"github.com/meltforce/ironlog/internal/gateway"
	"github.com/meltforce/ironlog/internal/models"
	"github.com/meltforce/ironlog/internal/records"
)

// ResyncResult is the state after records and achievements were rebuilt.
type ResyncResult struct {
	PersonalRecords []models.PersonalRecord  `json:"personal_records"`
	Achievements    []models.UserAchievement `json:"achievements"`
}

func (e *Engine) loadRecords(ctx context.Context, userID string) ([]models.PersonalRecord, error) {
	recs, err := gateway.ForUser(e.gw, userID).ListWhere(ctx, gateway.PersonalRecords, nil,
		&gateway.Order{Field: "exercise_name"})
	if err != nil {
		return nil, fmt.Errorf("loading personal records: %w", err)
	}
	return gateway.DecodeAll[models.PersonalRecord](recs)
}

func (e *Engine) loadAchievements(ctx context.Context, userID string) ([]models.UserAchievement, error) {
	recs, err := gateway.ForUser(e.gw, userID).ListWhere(ctx, gateway.UserAchievements, nil,
		&gateway.Order{Field: "unlocked_at"})
	if err != nil {
		return nil, fmt.Errorf("loading achievements: %w", err)
	}
	return gateway.DecodeAll[models.UserAchievement](recs)
}

// evaluateFinish applies session to the stored records and unlocks new
// achievements. Failures are logged; the session is already saved and a
// later resync repairs anything missed.
func (e *Engine) evaluateFinish(ctx context.Context, userID string, history []models.WorkoutSession,
	session models.WorkoutSession, now time.Time) ([]models.PersonalRecord, []string) {
	scoped := gateway.ForUser(e.gw, userID)

	current, err := e.loadRecords(ctx, userID)
	if err != nil {
		e.log.Error("evaluating personal records", "user", userID, "error", err)
		return nil, nil
	}

	var improved []models.PersonalRecord
	for _, pr := range records.UpdateRecords(current, session.ExercisesCompleted, session.CompletedAt) {
		rec, err := gateway.Encode(pr)
		if err != nil {
			e.log.Error("encoding personal record", "user", userID, "exercise", pr.ExerciseName, "error", err)
			continue
		}
		if _, err := scoped.Upsert(ctx, gateway.PersonalRecords, []string{"exercise_name"}, rec); err != nil {
			e.log.Error("saving personal record", "user", userID, "exercise", pr.ExerciseName, "error", err)
			continue
		}
		pr.UserID = userID
		improved = append(improved, pr)
	}
	e.metrics.CounterPersonalRecords.Add(float64(len(improved)))

	prs := mergeRecords(current, improved)
	unlocked, err := e.loadAchievements(ctx, userID)
	if err != nil {
		e.log.Error("evaluating achievements", "user", userID, "error", err)
		return improved, nil
	}
	have := make(map[string]bool, len(unlocked))
	for _, a := range unlocked {
		have[a.AchievementID] = true
	}

	var fresh []string
	for _, id := range records.Evaluate(e.catalog, history, prs) {
		if have[id] {
			continue
		}
		rec, err := gateway.Encode(models.UserAchievement{AchievementID: id, UnlockedAt: now})
		if err != nil {
			e.log.Error("encoding achievement", "user", userID, "achievement", id, "error", err)
			continue
		}
		if _, err := scoped.Upsert(ctx, gateway.UserAchievements, []string{"achievement_id"}, rec); err != nil {
			e.log.Error("saving achievement", "user", userID, "achievement", id, "error", err)
			continue
		}
		fresh = append(fresh, id)
	}
	e.metrics.CounterAchievements.Add(float64(len(fresh)))
	if len(improved) > 0 || len(fresh) > 0 {
		e.log.Info("records updated", "user", userID, "personal_records", len(improved), "achievements", fresh)
	}
	return improved, fresh
}

func mergeRecords(current, improved []models.PersonalRecord) []models.PersonalRecord {
	byName := make(map[string]int, len(current))
	out := append([]models.PersonalRecord(nil), current...)
	for i, pr := range out {
		byName[pr.ExerciseName] = i
	}
	for _, pr := range improved {
		if i, ok := byName[pr.ExerciseName]; ok {
			out[i] = pr
			continue
		}
		byName[pr.ExerciseName] = len(out)
		out = append(out, pr)
	}
	return out
}

// Resync rebuilds personal records and achievements from the full history.
func (e *Engine) Resync(ctx context.Context) (*ResyncResult, error) {
	u, st, ok := e.state(ctx)
	if !ok {
		return nil, ErrNoIdentity
	}
	st.mu.Lock()
	defer st.mu.Unlock()
	return e.resyncLocked(ctx, u.ID, st)
}

// resyncLocked replaces stored records and achievements with a replay of
// history. The caller holds st.mu.
func (e *Engine) resyncLocked(ctx context.Context, userID string, st *userState) (*ResyncResult, error) {
	if err := e.loadHistoryLocked(ctx, userID, st); err != nil {
		return nil, err
	}
	prs, achievements := records.Replay(e.catalog, st.history)
	scoped := gateway.ForUser(e.gw, userID)

	if err := scoped.DeleteWhere(ctx, gateway.PersonalRecords, nil); err != nil {
		return nil, fmt.Errorf("clearing personal records: %w", err)
	}
	if err := scoped.DeleteWhere(ctx, gateway.UserAchievements, nil); err != nil {
		return nil, fmt.Errorf("clearing achievements: %w", err)
	}

	var errs error
	for i, pr := range prs {
		rec, err := gateway.Encode(pr)
		if err == nil {
			_, err = scoped.Insert(ctx, gateway.PersonalRecords, rec)
		}
		if err != nil {
			errs = multierr.Append(errs, fmt.Errorf("saving record %s: %w", pr.ExerciseName, err))
			continue
		}
		prs[i].UserID = userID
	}
	for i, a := range achievements {
		rec, err := gateway.Encode(a)
		if err == nil {
			_, err = scoped.Insert(ctx, gateway.UserAchievements, rec)
		}
		if err != nil {
			errs = multierr.Append(errs, fmt.Errorf("saving achievement %s: %w", a.AchievementID, err))
			continue
		}
		achievements[i].UserID = userID
	}

	e.metrics.CounterResyncs.Inc()
	if errs != nil {
		e.log.Error("resync incomplete", "user", userID, "errors", len(multierr.Errors(errs)))
		return nil, errs
	}
	e.log.Info("records resynced", "user", userID, "sessions", len(st.history),
		"personal_records", len(prs), "achievements", len(achievements))
	return &ResyncResult{PersonalRecords: prs, Achievements: achievements}, nil
}

// PersonalRecords returns the user's stored records sorted by exercise.
func (e *Engine) PersonalRecords(ctx context.Context) ([]models.PersonalRecord, error) {
	u, _, ok := e.state(ctx)
	if !ok {
		return nil, ErrNoIdentity
	}
	return e.loadRecords(ctx, u.ID)
}

// UnlockedAchievements returns the user's unlocks, oldest first.
func (e *Engine) UnlockedAchievements(ctx context.Context) ([]models.UserAchievement, error) {
	u, _, ok := e.state(ctx)
	if !ok {
		return nil, ErrNoIdentity
	}
	return e.loadAchievements(ctx, u.ID)
}
