package models

import "time"

// DefaultRestSeconds is the rest applied when neither exercise, routine nor
// profile specify one.
const DefaultRestSeconds = 90

// ActiveWorkout is the live session of a user. At most one exists per user.
type ActiveWorkout struct {
	ID            string                  `json:"id,omitempty"`
	RoutineID     *string                 `json:"routine_id"`
	RoutineName   string                  `json:"routine_name"`
	StartedAt     time.Time               `json:"started_at"`
	IsPaused      bool                    `json:"is_paused"`
	PausedAt      *time.Time              `json:"paused_at,omitempty"`
	TotalPausedMs int64                   `json:"total_paused_ms"`
	Exercises     []ActiveWorkoutExercise `json:"exercises"`
}

// ActiveWorkoutExercise is one exercise of a live workout.
type ActiveWorkoutExercise struct {
	ExerciseID         string             `json:"exercise_id"`
	Name               string             `json:"name"`
	MuscleGroup        string             `json:"muscle_group"`
	Notes              string             `json:"notes"`
	IncludesBodyweight bool               `json:"includes_bodyweight,omitempty"`
	Sets               []ActiveWorkoutSet `json:"sets"`
}

// ActiveWorkoutSet is one set as performed.
type ActiveWorkoutSet struct {
	Reps        int             `json:"reps"`
	Weight      float64         `json:"weight"`
	RestSeconds int             `json:"rest_seconds"`
	Completed   bool            `json:"completed"`
	IsWarmup    bool            `json:"is_warmup,omitempty"`
	Dropsets    []ActiveDropset `json:"dropsets,omitempty"`
}

// ActiveDropset is a dropset as performed.
type ActiveDropset struct {
	Reps      int     `json:"reps"`
	Weight    float64 `json:"weight"`
	Completed bool    `json:"completed"`
}

// ElapsedSeconds is the displayed workout time at now: wall time minus
// pauses, frozen while paused and never negative.
func (w *ActiveWorkout) ElapsedSeconds(now time.Time) int64 {
	d := now.Sub(w.StartedAt) - time.Duration(w.TotalPausedMs)*time.Millisecond
	if w.IsPaused && w.PausedAt != nil {
		d -= now.Sub(*w.PausedAt)
	}
	if d < 0 {
		return 0
	}
	return int64(d / time.Second)
}

// Exercise returns the exercise with the given id.
func (w *ActiveWorkout) Exercise(exerciseID string) (*ActiveWorkoutExercise, bool) {
	for i := range w.Exercises {
		if w.Exercises[i].ExerciseID == exerciseID {
			return &w.Exercises[i], true
		}
	}
	return nil, false
}

// Clone returns a deep copy. A nil workout clones to nil.
func (w *ActiveWorkout) Clone() *ActiveWorkout {
	if w == nil {
		return nil
	}
	out := *w
	if w.RoutineID != nil {
		id := *w.RoutineID
		out.RoutineID = &id
	}
	if w.PausedAt != nil {
		at := *w.PausedAt
		out.PausedAt = &at
	}
	out.Exercises = CloneExercises(w.Exercises)
	return &out
}

// CloneExercises deep copies exercises with their sets and dropsets.
func CloneExercises(in []ActiveWorkoutExercise) []ActiveWorkoutExercise {
	if in == nil {
		return nil
	}
	out := make([]ActiveWorkoutExercise, len(in))
	for i, ex := range in {
		sets := make([]ActiveWorkoutSet, len(ex.Sets))
		for j, set := range ex.Sets {
			if set.Dropsets != nil {
				set.Dropsets = append([]ActiveDropset(nil), set.Dropsets...)
			}
			sets[j] = set
		}
		ex.Sets = sets
		out[i] = ex
	}
	return out
}

// WorkoutSession is a finished workout. Sessions are never edited, only
// deleted.
type WorkoutSession struct {
	ID                 string                  `json:"id,omitempty"`
	UserID             string                  `json:"user_id,omitempty"`
	RoutineID          *string                 `json:"routine_id"`
	RoutineName        string                  `json:"routine_name"`
	StartedAt          time.Time               `json:"started_at"`
	CompletedAt        time.Time               `json:"completed_at"`
	ExercisesCompleted []ActiveWorkoutExercise `json:"exercises_completed"`
	TotalVolume        float64                 `json:"total_volume"`
	DurationMinutes    int                     `json:"duration_minutes"`
}

// IsPartial reports whether any set of the session was left incomplete.
func (s WorkoutSession) IsPartial() bool {
	for _, ex := range s.ExercisesCompleted {
		for _, set := range ex.Sets {
			if !set.Completed {
				return true
			}
		}
	}
	return false
}

// Reorder moves the element at from to position to, shifting the elements
// in between. Out of range indexes leave s unchanged and return false.
func Reorder[T any](s []T, from, to int) bool {
	if from < 0 || from >= len(s) || to < 0 || to >= len(s) {
		return false
	}
	if from == to {
		return true
	}
	v := s[from]
	if from < to {
		copy(s[from:to], s[from+1:to+1])
	} else {
		copy(s[to+1:from+1], s[to:from])
	}
	s[to] = v
	return true
}
