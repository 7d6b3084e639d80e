package mcp

import (
	"context"
	"strings"
	"time"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/meltforce/ironlog/internal/models"
	"github.com/meltforce/ironlog/internal/records"
	"github.com/meltforce/ironlog/internal/stats"
)

// defaultTimeRange returns start/end defaulting to the last days days. A
// date-only end covers the whole day.
func defaultTimeRange(startStr, endStr string, days int) (time.Time, time.Time, error) {
	var start, end time.Time
	var err error

	if endStr != "" {
		end, err = parseFlexTime(endStr)
		if err != nil {
			return time.Time{}, time.Time{}, err
		}
		if len(endStr) == len(time.DateOnly) {
			end = end.Add(24*time.Hour - time.Nanosecond)
		}
	} else {
		end = time.Now()
	}

	if startStr != "" {
		start, err = parseFlexTime(startStr)
		if err != nil {
			return time.Time{}, time.Time{}, err
		}
	} else {
		start = end.AddDate(0, 0, -days)
	}

	return start, end, nil
}

func parseFlexTime(s string) (time.Time, error) {
	t, err := time.Parse(time.RFC3339, s)
	if err == nil {
		return t, nil
	}
	t, err = time.Parse(time.DateOnly, s)
	if err == nil {
		return t, nil
	}
	return time.Time{}, err
}

// --- Tool definitions ---

var toolGetWorkoutHistory = mcp.NewTool("get_workout_history",
	mcp.WithDescription("Retrieve finished workouts with every exercise and set performed (reps, weight in kg, completion, warmup and dropsets), total volume and duration."),
	mcp.WithString("start", mcp.Description("Start date (ISO 8601 or YYYY-MM-DD). Defaults to 30 days ago.")),
	mcp.WithString("end", mcp.Description("End date (ISO 8601 or YYYY-MM-DD). Defaults to now.")),
	mcp.WithString("exercise", mcp.Description("Only workouts containing this exercise (case-insensitive, e.g. 'Bench Press')")),
)

var toolGetPersonalRecords = mcp.NewTool("get_personal_records",
	mcp.WithDescription("Personal records: the heaviest completed working set ever logged per exercise, with reps and the date it was set."),
	mcp.WithString("exercise", mcp.Description("Only the record of this exercise (case-insensitive)")),
)

var toolGetAchievements = mcp.NewTool("get_achievements",
	mcp.WithDescription("All achievements with a description and whether and when the user unlocked them."),
)

var toolGetTrainingStats = mcp.NewTool("get_training_stats",
	mcp.WithDescription("Aggregate training statistics over a period: workout count, total volume, minutes, working sets, partial sessions, streaks, volume per ISO week and top exercises."),
	mcp.WithString("start", mcp.Description("Start date. Defaults to 90 days ago.")),
	mcp.WithString("end", mcp.Description("End date. Defaults to now.")),
)

var toolGetExerciseProgress = mcp.NewTool("get_exercise_progress",
	mcp.WithDescription("Per-session progression of one exercise: heaviest completed working set, set count, volume and estimated one-rep max (Epley), oldest first."),
	mcp.WithString("exercise", mcp.Required(), mcp.Description("Exercise name (case-insensitive, e.g. 'Squat')")),
	mcp.WithString("start", mcp.Description("Start date. Defaults to 180 days ago.")),
	mcp.WithString("end", mcp.Description("End date. Defaults to now.")),
)

var toolGetActiveWorkout = mcp.NewTool("get_active_workout",
	mcp.WithDescription("The workout currently in progress, if any, with its sets and elapsed time excluding pauses."),
)

// --- Tool handlers ---

func (h *handlers) getWorkoutHistory(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	start, end, err := defaultTimeRange(req.GetString("start", ""), req.GetString("end", ""), 30)
	if err != nil {
		return mcp.NewToolResultError("invalid date: " + err.Error()), nil
	}

	history, err := h.ds.History(ctx)
	if err != nil {
		h.log.Error("mcp get_workout_history", "error", err)
		return mcp.NewToolResultError("query failed: " + err.Error()), nil
	}

	sessions := stats.Filter(history, start, end)
	if exercise := req.GetString("exercise", ""); exercise != "" {
		sessions = withExercise(sessions, exercise)
	}
	if sessions == nil {
		sessions = []models.WorkoutSession{}
	}

	result, err := mcp.NewToolResultJSON(sessions)
	if err != nil {
		return mcp.NewToolResultError("serialization failed"), nil
	}
	return result, nil
}

func withExercise(sessions []models.WorkoutSession, name string) []models.WorkoutSession {
	var out []models.WorkoutSession
	for _, s := range sessions {
		for _, ex := range s.ExercisesCompleted {
			if strings.EqualFold(ex.Name, name) {
				out = append(out, s)
				break
			}
		}
	}
	return out
}

func (h *handlers) getPersonalRecords(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	prs, err := h.ds.PersonalRecords(ctx)
	if err != nil {
		h.log.Error("mcp get_personal_records", "error", err)
		return mcp.NewToolResultError("query failed: " + err.Error()), nil
	}

	if exercise := req.GetString("exercise", ""); exercise != "" {
		filtered := []models.PersonalRecord{}
		for _, pr := range prs {
			if strings.EqualFold(pr.ExerciseName, exercise) {
				filtered = append(filtered, pr)
			}
		}
		prs = filtered
	}

	result, err := mcp.NewToolResultJSON(prs)
	if err != nil {
		return mcp.NewToolResultError("serialization failed"), nil
	}
	return result, nil
}

// achievementState is a catalog entry with its unlock time.
type achievementState struct {
	ID          string     `json:"id"`
	Title       string     `json:"title"`
	Description string     `json:"description"`
	Unlocked    bool       `json:"unlocked"`
	UnlockedAt  *time.Time `json:"unlocked_at,omitempty"`
}

func (h *handlers) achievementStates(ctx context.Context) ([]achievementState, error) {
	unlocked, err := h.ds.UnlockedAchievements(ctx)
	if err != nil {
		return nil, err
	}
	at := make(map[string]time.Time, len(unlocked))
	for _, u := range unlocked {
		at[u.AchievementID] = u.UnlockedAt
	}
	out := make([]achievementState, 0, len(h.catalog))
	for _, a := range h.catalog {
		st := achievementState{ID: a.ID, Title: a.Title, Description: a.Description}
		if t, ok := at[a.ID]; ok {
			st.Unlocked = true
			st.UnlockedAt = &t
		}
		out = append(out, st)
	}
	return out, nil
}

func (h *handlers) getAchievements(ctx context.Context, _ mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	states, err := h.achievementStates(ctx)
	if err != nil {
		h.log.Error("mcp get_achievements", "error", err)
		return mcp.NewToolResultError("query failed: " + err.Error()), nil
	}

	result, err := mcp.NewToolResultJSON(states)
	if err != nil {
		return mcp.NewToolResultError("serialization failed"), nil
	}
	return result, nil
}

func (h *handlers) getTrainingStats(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	start, end, err := defaultTimeRange(req.GetString("start", ""), req.GetString("end", ""), 90)
	if err != nil {
		return mcp.NewToolResultError("invalid date: " + err.Error()), nil
	}

	history, err := h.ds.History(ctx)
	if err != nil {
		h.log.Error("mcp get_training_stats", "error", err)
		return mcp.NewToolResultError("query failed: " + err.Error()), nil
	}

	result, err := mcp.NewToolResultJSON(stats.Compute(stats.Filter(history, start, end), h.now()))
	if err != nil {
		return mcp.NewToolResultError("serialization failed"), nil
	}
	return result, nil
}

// progressPoint is one session's performance of an exercise.
type progressPoint struct {
	SessionID    string    `json:"session_id"`
	Date         time.Time `json:"date"`
	BestWeight   float64   `json:"best_weight"`
	BestReps     int       `json:"best_reps"`
	WorkingSets  int       `json:"working_sets"`
	Volume       float64   `json:"volume"`
	EstimatedMax float64   `json:"estimated_1rm"`
}

func (h *handlers) getExerciseProgress(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	exercise, err := req.RequireString("exercise")
	if err != nil {
		return mcp.NewToolResultError("exercise parameter is required"), nil
	}
	start, end, err := defaultTimeRange(req.GetString("start", ""), req.GetString("end", ""), 180)
	if err != nil {
		return mcp.NewToolResultError("invalid date: " + err.Error()), nil
	}

	history, err := h.ds.History(ctx)
	if err != nil {
		h.log.Error("mcp get_exercise_progress", "error", err)
		return mcp.NewToolResultError("query failed: " + err.Error()), nil
	}

	result, err := mcp.NewToolResultJSON(exerciseProgress(stats.Filter(history, start, end), exercise))
	if err != nil {
		return mcp.NewToolResultError("serialization failed"), nil
	}
	return result, nil
}

func exerciseProgress(history []models.WorkoutSession, name string) []progressPoint {
	points := []progressPoint{}
	for _, s := range records.Chronological(history) {
		var matched []models.ActiveWorkoutExercise
		for _, ex := range s.ExercisesCompleted {
			if strings.EqualFold(ex.Name, name) {
				matched = append(matched, ex)
			}
		}
		if len(matched) == 0 {
			continue
		}
		p := progressPoint{SessionID: s.ID, Date: s.CompletedAt, Volume: records.Volume(matched, 0)}
		for _, ex := range matched {
			for _, set := range ex.Sets {
				if set.Completed && !set.IsWarmup {
					p.WorkingSets++
				}
			}
		}
		for _, lift := range records.BestLifts(matched) {
			if lift.Weight > p.BestWeight {
				p.BestWeight, p.BestReps = lift.Weight, lift.Reps
			}
		}
		if p.BestWeight > 0 {
			p.EstimatedMax = p.BestWeight * (1 + float64(p.BestReps)/30)
		}
		points = append(points, p)
	}
	return points
}

func (h *handlers) getActiveWorkout(ctx context.Context, _ mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	w, err := h.ds.CurrentWorkout(ctx)
	if err != nil {
		h.log.Error("mcp get_active_workout", "error", err)
		return mcp.NewToolResultError("query failed: " + err.Error()), nil
	}
	if w == nil {
		return mcp.NewToolResultText("No workout in progress."), nil
	}

	result, err := mcp.NewToolResultJSON(map[string]any{
		"workout":         w,
		"elapsed_seconds": w.ElapsedSeconds(h.now()),
	})
	if err != nil {
		return mcp.NewToolResultError("serialization failed"), nil
	}
	return result, nil
}
