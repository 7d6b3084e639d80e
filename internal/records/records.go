// Package records computes training volume, personal records and
// achievement unlocks from workout history. Everything here is pure; callers
// persist the results.
package records

import (
	"slices"
	"sort"
	"strings"
	"time"

	"github.com/meltforce/ironlog/internal/models"
)

// Volume sums effective weight times reps over every completed working set.
// Dropsets under a counted set are added regardless of their own completion
// flag. Exercises flagged as including bodyweight add bodyweight to each load.
func Volume(exercises []models.ActiveWorkoutExercise, bodyweight float64) float64 {
	var total float64
	for _, ex := range exercises {
		extra := 0.0
		if ex.IncludesBodyweight {
			extra = bodyweight
		}
		for _, set := range ex.Sets {
			if !set.Completed || set.IsWarmup {
				continue
			}
			total += (set.Weight + extra) * float64(set.Reps)
			for _, d := range set.Dropsets {
				total += (d.Weight + extra) * float64(d.Reps)
			}
		}
	}
	return total
}

// Lift is the heaviest completed working set of one exercise.
type Lift struct {
	Weight float64
	Reps   int
}

// BestLifts returns, per exercise name, the heaviest completed non-warmup
// set of the session. Ties keep the first occurrence. Sets without load
// never produce a lift.
func BestLifts(exercises []models.ActiveWorkoutExercise) map[string]Lift {
	out := make(map[string]Lift)
	for _, ex := range exercises {
		for _, set := range ex.Sets {
			if !set.Completed || set.IsWarmup || set.Weight <= 0 {
				continue
			}
			if best, ok := out[ex.Name]; ok && set.Weight <= best.Weight {
				continue
			}
			out[ex.Name] = Lift{Weight: set.Weight, Reps: set.Reps}
		}
	}
	return out
}

// UpdateRecords compares the session's best lifts with current and returns
// only the records the session strictly beat, dated at date, in the order
// the exercises appear in the session.
func UpdateRecords(current []models.PersonalRecord, exercises []models.ActiveWorkoutExercise, date time.Time) []models.PersonalRecord {
	byName := make(map[string]models.PersonalRecord, len(current))
	for _, pr := range current {
		byName[pr.ExerciseName] = pr
	}
	best := BestLifts(exercises)

	var improved []models.PersonalRecord
	seen := make(map[string]bool)
	for _, ex := range exercises {
		lift, ok := best[ex.Name]
		if !ok || seen[ex.Name] {
			continue
		}
		seen[ex.Name] = true
		if old, ok := byName[ex.Name]; ok && lift.Weight <= old.Weight {
			continue
		}
		improved = append(improved, models.PersonalRecord{
			ExerciseName: ex.Name,
			Weight:       lift.Weight,
			Reps:         lift.Reps,
			Date:         date,
		})
	}
	return improved
}

// Chronological returns a copy of history ordered oldest first.
func Chronological(history []models.WorkoutSession) []models.WorkoutSession {
	out := slices.Clone(history)
	slices.SortStableFunc(out, func(a, b models.WorkoutSession) int {
		if c := a.CompletedAt.Compare(b.CompletedAt); c != 0 {
			return c
		}
		if c := a.StartedAt.Compare(b.StartedAt); c != 0 {
			return c
		}
		return strings.Compare(a.ID, b.ID)
	})
	return out
}

// Replay recomputes every personal record and achievement unlock from
// scratch. Sessions are applied oldest first; records are dated at the
// completion of the session that set them and an achievement unlocks at the
// first session after which its predicate holds. The result depends only on
// the set of sessions, not on their order in history.
func Replay(catalog Catalog, history []models.WorkoutSession) ([]models.PersonalRecord, []models.UserAchievement) {
	ordered := Chronological(history)

	prs := make(map[string]models.PersonalRecord)
	unlocked := make(map[string]bool)
	var achievements []models.UserAchievement

	for i, session := range ordered {
		for _, pr := range UpdateRecords(sortedRecords(prs), session.ExercisesCompleted, session.CompletedAt) {
			prs[pr.ExerciseName] = pr
		}
		for _, id := range Evaluate(catalog, ordered[:i+1], sortedRecords(prs)) {
			if unlocked[id] {
				continue
			}
			unlocked[id] = true
			achievements = append(achievements, models.UserAchievement{
				AchievementID: id,
				UnlockedAt:    session.CompletedAt,
			})
		}
	}
	return sortedRecords(prs), achievements
}

func sortedRecords(m map[string]models.PersonalRecord) []models.PersonalRecord {
	out := make([]models.PersonalRecord, 0, len(m))
	for _, pr := range m {
		out = append(out, pr)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ExerciseName < out[j].ExerciseName })
	return out
}
