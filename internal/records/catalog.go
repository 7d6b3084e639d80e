package records

import (
	"time"

	"github.com/meltforce/ironlog/internal/models"
)

// Predicate decides an achievement from history, which may come in any
// order, and the current records. It must be pure.
type Predicate func(history []models.WorkoutSession, prs []models.PersonalRecord) bool

// Achievement is a static catalog entry.
type Achievement struct {
	ID          string    `json:"id"`
	Title       string    `json:"title"`
	Description string    `json:"description"`
	Check       Predicate `json:"-"`
}

// Catalog is an ordered list of achievements.
type Catalog []Achievement

// Lookup finds an achievement by id.
func (c Catalog) Lookup(id string) (Achievement, bool) {
	for _, a := range c {
		if a.ID == id {
			return a, true
		}
	}
	return Achievement{}, false
}

// Evaluate returns the ids of every achievement whose predicate holds, in
// catalog order.
func Evaluate(catalog Catalog, history []models.WorkoutSession, prs []models.PersonalRecord) []string {
	var ids []string
	for _, a := range catalog {
		if a.Check != nil && a.Check(history, prs) {
			ids = append(ids, a.ID)
		}
	}
	return ids
}

// DefaultCatalog is the achievement set shipped with ironlog.
var DefaultCatalog = Catalog{
	{ID: "first_workout", Title: "First Rep", Description: "Finish your first workout.", Check: sessionsAtLeast(1)},
	{ID: "workouts_10", Title: "Getting Consistent", Description: "Finish 10 workouts.", Check: sessionsAtLeast(10)},
	{ID: "workouts_50", Title: "Regular", Description: "Finish 50 workouts.", Check: sessionsAtLeast(50)},
	{ID: "workouts_100", Title: "Centurion", Description: "Finish 100 workouts.", Check: sessionsAtLeast(100)},
	{ID: "volume_10k", Title: "Ten Tonnes", Description: "Lift 10,000 kg in total.", Check: volumeAtLeast(10_000)},
	{ID: "volume_100k", Title: "Hundred Tonnes", Description: "Lift 100,000 kg in total.", Check: volumeAtLeast(100_000)},
	{ID: "streak_3", Title: "Three in a Row", Description: "Train on 3 consecutive days.", Check: streakAtLeast(3)},
	{ID: "streak_7", Title: "Full Week", Description: "Train on 7 consecutive days.", Check: streakAtLeast(7)},
	{ID: "prs_5", Title: "Record Breaker", Description: "Hold 5 personal records.", Check: func(_ []models.WorkoutSession, prs []models.PersonalRecord) bool {
		return len(prs) >= 5
	}},
	{ID: "long_session", Title: "Marathon Session", Description: "Train for 60 minutes in one session.", Check: func(history []models.WorkoutSession, _ []models.PersonalRecord) bool {
		for _, s := range history {
			if s.DurationMinutes >= 60 {
				return true
			}
		}
		return false
	}},
	{ID: "lift_100", Title: "Triple Digits", Description: "Lift 100 kg in a single set.", Check: func(_ []models.WorkoutSession, prs []models.PersonalRecord) bool {
		for _, pr := range prs {
			if pr.Weight >= 100 {
				return true
			}
		}
		return false
	}},
	{ID: "no_skips", Title: "No Sets Skipped", Description: "Finish a workout with every set completed.", Check: func(history []models.WorkoutSession, _ []models.PersonalRecord) bool {
		for _, s := range history {
			if hasSets(s) && !s.IsPartial() {
				return true
			}
		}
		return false
	}},
}

func sessionsAtLeast(n int) Predicate {
	return func(history []models.WorkoutSession, _ []models.PersonalRecord) bool {
		return len(history) >= n
	}
}

func volumeAtLeast(kg float64) Predicate {
	return func(history []models.WorkoutSession, _ []models.PersonalRecord) bool {
		var total float64
		for _, s := range history {
			total += s.TotalVolume
		}
		return total >= kg
	}
}

func streakAtLeast(days int) Predicate {
	return func(history []models.WorkoutSession, _ []models.PersonalRecord) bool {
		return LongestStreak(history) >= days
	}
}

func hasSets(s models.WorkoutSession) bool {
	for _, ex := range s.ExercisesCompleted {
		if len(ex.Sets) > 0 {
			return true
		}
	}
	return false
}

// TrainingDays returns the distinct UTC calendar days with a finished
// session, oldest first.
func TrainingDays(history []models.WorkoutSession) []time.Time {
	seen := make(map[time.Time]bool)
	var days []time.Time
	for _, s := range Chronological(history) {
		d := Day(s.CompletedAt)
		if !seen[d] {
			seen[d] = true
			days = append(days, d)
		}
	}
	return days
}

// Day truncates t to midnight UTC.
func Day(t time.Time) time.Time {
	y, m, d := t.UTC().Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// LongestStreak is the longest run of consecutive training days.
func LongestStreak(history []models.WorkoutSession) int {
	days := TrainingDays(history)
	best, run := 0, 0
	for i, d := range days {
		if i > 0 && d.Sub(days[i-1]) == 24*time.Hour {
			run++
		} else {
			run = 1
		}
		best = max(best, run)
	}
	return best
}

// CurrentStreak counts consecutive training days ending today or, if there
// was no session today yet, yesterday.
func CurrentStreak(history []models.WorkoutSession, now time.Time) int {
	days := TrainingDays(history)
	if len(days) == 0 {
		return 0
	}
	today := Day(now)
	last := days[len(days)-1]
	if !last.Equal(today) && !last.Equal(today.Add(-24*time.Hour)) {
		return 0
	}
	streak := 1
	for i := len(days) - 1; i > 0; i-- {
		if days[i].Sub(days[i-1]) != 24*time.Hour {
			break
		}
		streak++
	}
	return streak
}
