// Package stats derives dashboard aggregates from workout history.
package stats

import (
	"fmt"
	"sort"
	"time"

	"github.com/meltforce/ironlog/internal/models"
	"github.com/meltforce/ironlog/internal/records"
)

// DefaultTopExercises is how many exercises Summary.TopExercises holds.
const DefaultTopExercises = 5

// Summary holds aggregate statistics about a user's training.
type Summary struct {
	TotalWorkouts    int              `json:"total_workouts"`
	TotalVolume      float64          `json:"total_volume"`
	TotalMinutes     int              `json:"total_minutes"`
	TotalSets        int              `json:"total_sets"`
	PartialSessions  int              `json:"partial_sessions"`
	SessionsThisWeek int              `json:"sessions_this_week"`
	CurrentStreak    int              `json:"current_streak"`
	LongestStreak    int              `json:"longest_streak"`
	FirstWorkout     *time.Time       `json:"first_workout"`
	LastWorkout      *time.Time       `json:"last_workout"`
	WeeklyVolume     []WeekVolume     `json:"weekly_volume"`
	TopExercises     []ExerciseTotals `json:"top_exercises"`
}

// WeekVolume is the training done in one ISO week.
type WeekVolume struct {
	Week     string  `json:"week"` // e.g. 2026-W10
	Volume   float64 `json:"volume"`
	Sessions int     `json:"sessions"`
}

// ExerciseTotals sums the completed working sets of one exercise.
type ExerciseTotals struct {
	Name      string  `json:"name"`
	Sets      int     `json:"sets"`
	Reps      int     `json:"reps"`
	MaxWeight float64 `json:"max_weight"`
}

// ISOWeek formats the ISO week of t in UTC.
func ISOWeek(t time.Time) string {
	y, w := t.UTC().ISOWeek()
	return fmt.Sprintf("%d-W%02d", y, w)
}

// Compute aggregates history as of now. Sessions may come in any order.
func Compute(history []models.WorkoutSession, now time.Time) Summary {
	s := Summary{
		TotalWorkouts: len(history),
		CurrentStreak: records.CurrentStreak(history, now),
		LongestStreak: records.LongestStreak(history),
		WeeklyVolume:  []WeekVolume{},
		TopExercises:  []ExerciseTotals{},
	}

	thisWeek := ISOWeek(now)
	weeks := make(map[string]*WeekVolume)
	exercises := make(map[string]*ExerciseTotals)

	for _, session := range history {
		s.TotalVolume += session.TotalVolume
		s.TotalMinutes += session.DurationMinutes
		if session.IsPartial() {
			s.PartialSessions++
		}

		at := session.CompletedAt
		if s.FirstWorkout == nil || at.Before(*s.FirstWorkout) {
			first := at
			s.FirstWorkout = &first
		}
		if s.LastWorkout == nil || at.After(*s.LastWorkout) {
			last := at
			s.LastWorkout = &last
		}

		week := ISOWeek(at)
		if week == thisWeek {
			s.SessionsThisWeek++
		}
		wv, ok := weeks[week]
		if !ok {
			wv = &WeekVolume{Week: week}
			weeks[week] = wv
		}
		wv.Volume += session.TotalVolume
		wv.Sessions++

		for _, ex := range session.ExercisesCompleted {
			for _, set := range ex.Sets {
				if !set.Completed || set.IsWarmup {
					continue
				}
				s.TotalSets++
				et, ok := exercises[ex.Name]
				if !ok {
					et = &ExerciseTotals{Name: ex.Name}
					exercises[ex.Name] = et
				}
				et.Sets++
				et.Reps += set.Reps
				if set.Weight > et.MaxWeight {
					et.MaxWeight = set.Weight
				}
			}
		}
	}

	for _, wv := range weeks {
		s.WeeklyVolume = append(s.WeeklyVolume, *wv)
	}
	// ISO week labels sort chronologically as strings.
	sort.Slice(s.WeeklyVolume, func(i, j int) bool { return s.WeeklyVolume[i].Week < s.WeeklyVolume[j].Week })

	for _, et := range exercises {
		s.TopExercises = append(s.TopExercises, *et)
	}
	sort.Slice(s.TopExercises, func(i, j int) bool {
		a, b := s.TopExercises[i], s.TopExercises[j]
		if a.Sets != b.Sets {
			return a.Sets > b.Sets
		}
		return a.Name < b.Name
	})
	if len(s.TopExercises) > DefaultTopExercises {
		s.TopExercises = s.TopExercises[:DefaultTopExercises]
	}
	return s
}

// Filter returns the sessions completed within [start, end]. Zero bounds
// are open.
func Filter(history []models.WorkoutSession, start, end time.Time) []models.WorkoutSession {
	var out []models.WorkoutSession
	for _, s := range history {
		if !start.IsZero() && s.CompletedAt.Before(start) {
			continue
		}
		if !end.IsZero() && s.CompletedAt.After(end) {
			continue
		}
		out = append(out, s)
	}
	return out
}
