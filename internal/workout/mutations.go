package workout

import (
	"context"
	"math"
	"time"

	"github.com/meltforce/ironlog/internal/models"
)

// SetField names an editable numeric field of a set.
type SetField string

const (
	FieldReps        SetField = "reps"
	FieldWeight      SetField = "weight"
	FieldRestSeconds SetField = "rest_seconds"
)

// mutate applies fn to the user's active workout under the user lock. When
// fn reports a change and persist is set, a snapshot is queued. The returned
// workout is a copy, or nil when there is no identity or no workout.
func (e *Engine) mutate(ctx context.Context, persist bool, fn func(w *models.ActiveWorkout, userID string) bool) *models.ActiveWorkout {
	u, st, ok := e.state(ctx)
	if !ok {
		return nil
	}
	st.mu.Lock()
	defer st.mu.Unlock()

	e.restoreLocked(ctx, u.ID, st)
	w := st.active
	if w == nil {
		return nil
	}
	if fn(w, u.ID) && persist && w.ID != "" {
		e.writer.enqueue(u.ID, w.ID, map[string]any{
			"workout_data": dataOf(w),
			"updated_at":   e.clock.Now(),
		})
	}
	return w.Clone()
}

func setAt(w *models.ActiveWorkout, exerciseID string, setIndex int) (*models.ActiveWorkoutExercise, *models.ActiveWorkoutSet) {
	ex, ok := w.Exercise(exerciseID)
	if !ok || setIndex < 0 || setIndex >= len(ex.Sets) {
		return nil, nil
	}
	return ex, &ex.Sets[setIndex]
}

// ToggleSetComplete flips a set's completion. Completing a set without
// dropsets starts its rest countdown.
func (e *Engine) ToggleSetComplete(ctx context.Context, exerciseID string, setIndex int) *models.ActiveWorkout {
	return e.mutate(ctx, true, func(w *models.ActiveWorkout, userID string) bool {
		_, set := setAt(w, exerciseID, setIndex)
		if set == nil {
			return false
		}
		set.Completed = !set.Completed
		if set.Completed && set.RestSeconds > 0 && len(set.Dropsets) == 0 && e.rest != nil {
			e.rest.StartRest(userID, exerciseID, setIndex, set.RestSeconds)
		}
		return true
	})
}

// ToggleDropsetComplete flips one dropset of a set. It never starts a rest.
func (e *Engine) ToggleDropsetComplete(ctx context.Context, exerciseID string, setIndex, dropIndex int) *models.ActiveWorkout {
	return e.mutate(ctx, true, func(w *models.ActiveWorkout, _ string) bool {
		_, set := setAt(w, exerciseID, setIndex)
		if set == nil || dropIndex < 0 || dropIndex >= len(set.Dropsets) {
			return false
		}
		set.Dropsets[dropIndex].Completed = !set.Dropsets[dropIndex].Completed
		return true
	})
}

// UpdateSetField sets reps, weight or rest seconds. Negative values,
// fractional or out-of-range reps and rest seconds, and unknown fields are
// ignored.
func (e *Engine) UpdateSetField(ctx context.Context, exerciseID string, setIndex int, field SetField, value float64) *models.ActiveWorkout {
	return e.mutate(ctx, true, func(w *models.ActiveWorkout, _ string) bool {
		_, set := setAt(w, exerciseID, setIndex)
		if set == nil || value < 0 {
			return false
		}
		switch field {
		case FieldReps:
			if !wholeAtMost(value, maxReps) {
				return false
			}
			set.Reps = int(value)
		case FieldWeight:
			set.Weight = value
		case FieldRestSeconds:
			if !wholeAtMost(value, maxRestSeconds) {
				return false
			}
			set.RestSeconds = int(value)
		default:
			return false
		}
		return true
	})
}

const (
	maxReps        = 10_000
	maxRestSeconds = 24 * 60 * 60
)

func wholeAtMost(v float64, limit int) bool {
	return v == math.Trunc(v) && v <= float64(limit)
}

// AddSet appends a set copying the last one's reps, weight and rest. An
// exercise without sets gets a default set.
func (e *Engine) AddSet(ctx context.Context, exerciseID string) *models.ActiveWorkout {
	return e.mutate(ctx, true, func(w *models.ActiveWorkout, userID string) bool {
		ex, ok := w.Exercise(exerciseID)
		if !ok {
			return false
		}
		if len(ex.Sets) == 0 {
			ex.Sets = append(ex.Sets, models.ActiveWorkoutSet{
				Reps:        models.DefaultReps,
				Weight:      models.DefaultWeight,
				RestSeconds: e.exerciseRest(ctx, userID, w, ex.Name),
			})
			return true
		}
		last := ex.Sets[len(ex.Sets)-1]
		ex.Sets = append(ex.Sets, models.ActiveWorkoutSet{
			Reps:        last.Reps,
			Weight:      last.Weight,
			RestSeconds: last.RestSeconds,
		})
		return true
	})
}

// exerciseRest resolves the rest of an exercise whose sets are all gone,
// from the source routine when it is still stored.
func (e *Engine) exerciseRest(ctx context.Context, userID string, w *models.ActiveWorkout, name string) int {
	p := e.profile(ctx, userID)
	routine := e.routineOf(ctx, userID, w)
	for _, ex := range routine.Exercises {
		if ex.Name == name {
			return e.restSeconds(ex, routine, p)
		}
	}
	return e.restSeconds(models.RoutineExercise{}, routine, p)
}

// RemoveSet deletes a set. The last remaining set cannot be removed.
func (e *Engine) RemoveSet(ctx context.Context, exerciseID string, setIndex int) *models.ActiveWorkout {
	return e.mutate(ctx, true, func(w *models.ActiveWorkout, _ string) bool {
		ex, set := setAt(w, exerciseID, setIndex)
		if set == nil || len(ex.Sets) <= 1 {
			return false
		}
		ex.Sets = append(ex.Sets[:setIndex], ex.Sets[setIndex+1:]...)
		return true
	})
}

// ReorderSets moves a set within its exercise.
func (e *Engine) ReorderSets(ctx context.Context, exerciseID string, from, to int) *models.ActiveWorkout {
	return e.mutate(ctx, true, func(w *models.ActiveWorkout, _ string) bool {
		ex, ok := w.Exercise(exerciseID)
		if !ok || from == to {
			return false
		}
		return models.Reorder(ex.Sets, from, to)
	})
}

// UpdateExerciseNotes replaces an exercise's notes.
func (e *Engine) UpdateExerciseNotes(ctx context.Context, exerciseID, notes string) *models.ActiveWorkout {
	return e.mutate(ctx, true, func(w *models.ActiveWorkout, _ string) bool {
		ex, ok := w.Exercise(exerciseID)
		if !ok || ex.Notes == notes {
			return false
		}
		ex.Notes = notes
		return true
	})
}

// PauseWorkout freezes the displayed elapsed time. Pausing is not persisted.
func (e *Engine) PauseWorkout(ctx context.Context) *models.ActiveWorkout {
	return e.mutate(ctx, false, func(w *models.ActiveWorkout, _ string) bool {
		if w.IsPaused {
			return false
		}
		now := e.clock.Now()
		w.IsPaused = true
		w.PausedAt = &now
		return true
	})
}

// ResumeWorkout adds the pause to the paused total and continues the clock.
func (e *Engine) ResumeWorkout(ctx context.Context) *models.ActiveWorkout {
	return e.mutate(ctx, false, func(w *models.ActiveWorkout, _ string) bool {
		if !w.IsPaused {
			return false
		}
		if w.PausedAt != nil {
			if d := e.clock.Now().Sub(*w.PausedAt); d > 0 {
				w.TotalPausedMs += d.Milliseconds()
			}
		}
		w.IsPaused = false
		w.PausedAt = nil
		return true
	})
}

// Elapsed returns the displayed elapsed time of the active workout.
func (e *Engine) Elapsed(ctx context.Context) (time.Duration, bool) {
	w := e.ActiveWorkout(ctx)
	if w == nil {
		return 0, false
	}
	return time.Duration(w.ElapsedSeconds(e.clock.Now())) * time.Second, true
}
