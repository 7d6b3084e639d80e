package alpha

import (
	"fmt"
	"strings"

	"github.com/google/uuid"

	"github.com/meltforce/ironlog/internal/models"
	"github.com/meltforce/ironlog/internal/records"
)

// ExerciseID derives a stable exercise id from the exercise name, so the
// same exercise keeps its id across imported sessions.
func ExerciseID(name string) string {
	return uuid.NewSHA1(uuid.NameSpaceURL, []byte("alpha:"+strings.ToLower(name))).String()
}

// Convert turns parsed sessions into history sessions. Every logged set is
// completed. bodyweight is added to the load of bodyweight-plus exercises
// when computing volume.
func Convert(sessions []Session, bodyweight float64) []models.WorkoutSession {
	out := make([]models.WorkoutSession, 0, len(sessions))
	for _, s := range sessions {
		exercises := make([]models.ActiveWorkoutExercise, 0, len(s.Exercises))
		for _, ex := range s.Exercises {
			exercises = append(exercises, convertExercise(ex))
		}
		out = append(out, models.WorkoutSession{
			RoutineName:        s.Name,
			StartedAt:          s.Date,
			CompletedAt:        s.Date.Add(s.Duration),
			ExercisesCompleted: exercises,
			TotalVolume:        records.Volume(exercises, bodyweight),
			DurationMinutes:    int(s.Duration.Minutes()),
		})
	}
	return out
}

func convertExercise(ex Exercise) models.ActiveWorkoutExercise {
	out := models.ActiveWorkoutExercise{
		ExerciseID: ExerciseID(ex.Name),
		Name:       ex.Name,
		Notes:      exerciseNotes(ex),
		Sets:       make([]models.ActiveWorkoutSet, 0, len(ex.Sets)),
	}
	for _, set := range ex.Sets {
		if set.IsBodyweightPlus {
			out.IncludesBodyweight = true
		}
		out.Sets = append(out.Sets, models.ActiveWorkoutSet{
			Reps:      set.Reps,
			Weight:    set.WeightKg,
			Completed: true,
			IsWarmup:  set.IsWarmup,
		})
	}
	return out
}

func exerciseNotes(ex Exercise) string {
	var parts []string
	if ex.Equipment != "" {
		parts = append(parts, ex.Equipment)
	}
	if ex.Dropsets > 0 {
		parts = append(parts, fmt.Sprintf("%d dropsets", ex.Dropsets))
	}
	return strings.Join(parts, " · ")
}
