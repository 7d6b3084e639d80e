// Package workout runs live workouts: it materializes routines into active
// workouts, applies set-level edits, keeps the persisted snapshot current
// and turns a finished workout into history, records and achievements.
package workout

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/meltforce/ironlog/internal/gateway"
	"github.com/meltforce/ironlog/internal/identity"
	"github.com/meltforce/ironlog/internal/metrics"
	"github.com/meltforce/ironlog/internal/models"
	"github.com/meltforce/ironlog/internal/records"
)

var (
	// ErrNoIdentity is returned by StartWorkout and FinishWorkout when the
	// context carries no user.
	ErrNoIdentity = errors.New("no identity")
	// ErrNoActiveWorkout is returned when finishing without a workout.
	ErrNoActiveWorkout = errors.New("no active workout")
	// ErrWorkoutInProgress is returned when starting while another workout
	// is still active.
	ErrWorkoutInProgress = errors.New("workout already in progress")
)

//go:generate mockgen -destination=mocks_test.go -package=workout_test github.com/meltforce/ironlog/internal/gateway Gateway

// RestSignaler starts and cancels the rest countdown of a user.
type RestSignaler interface {
	StartRest(userID, exerciseID string, setIndex, seconds int)
	CancelRest(userID string)
}

// Notifier surfaces the post-workout notification.
type Notifier interface {
	Notify(userID string, n models.Notification)
}

// Clock abstracts time to keep the engine deterministic in tests.
type Clock interface {
	Now() time.Time
}

// SystemClock reads the wall clock.
type SystemClock struct{}

func (SystemClock) Now() time.Time { return time.Now() }

// FinishResult describes a finished workout.
type FinishResult struct {
	Session         models.WorkoutSession   `json:"session"`
	PersonalRecords []models.PersonalRecord `json:"personal_records"`
	Achievements    []string                `json:"achievements"`
	Notification    *models.Notification    `json:"notification,omitempty"`
}

type userState struct {
	mu            sync.Mutex
	active        *models.ActiveWorkout
	restored      bool
	history       []models.WorkoutSession // most recent first
	historyLoaded bool
}

// Engine holds the live workout of every user. Users are independent; all
// operations of one user are serialized.
type Engine struct {
	gw          gateway.Gateway
	ids         identity.Provider
	rest        RestSignaler
	notifier    Notifier
	clock       Clock
	catalog     records.Catalog
	defaultRest int
	metrics     *metrics.Manager
	log         *slog.Logger

	mu     sync.Mutex
	users  map[string]*userState
	writer *snapshotWriter
}

// Option configures an Engine.
type Option func(*Engine)

// WithRestSignaler wires the rest timer.
func WithRestSignaler(r RestSignaler) Option { return func(e *Engine) { e.rest = r } }

// WithNotifier wires the notification surface.
func WithNotifier(n Notifier) Option { return func(e *Engine) { e.notifier = n } }

// WithClock replaces the wall clock.
func WithClock(c Clock) Option { return func(e *Engine) { e.clock = c } }

// WithCatalog replaces records.DefaultCatalog.
func WithCatalog(c records.Catalog) Option { return func(e *Engine) { e.catalog = c } }

// WithDefaultRest sets the last-resort rest duration in seconds.
func WithDefaultRest(seconds int) Option { return func(e *Engine) { e.defaultRest = seconds } }

// New returns an engine over gw. Close must be called to flush pending
// snapshot writes.
func New(gw gateway.Gateway, ids identity.Provider, m *metrics.Manager, log *slog.Logger, opts ...Option) *Engine {
	e := &Engine{
		gw:          gw,
		ids:         ids,
		clock:       SystemClock{},
		catalog:     records.DefaultCatalog,
		defaultRest: models.DefaultRestSeconds,
		metrics:     m,
		log:         log,
		users:       make(map[string]*userState),
	}
	for _, opt := range opts {
		opt(e)
	}
	e.writer = newSnapshotWriter(gw, m, log)
	return e
}

// Close drains pending snapshot writes and stops the writer.
func (e *Engine) Close() {
	e.writer.close()
}

// Catalog returns the achievement catalog in use.
func (e *Engine) Catalog() records.Catalog { return e.catalog }

// Now reads the engine's clock.
func (e *Engine) Now() time.Time { return e.clock.Now() }

func (e *Engine) state(ctx context.Context) (identity.User, *userState, bool) {
	u, ok := e.ids.CurrentUser(ctx)
	if !ok {
		return identity.User{}, nil, false
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	st, ok := e.users[u.ID]
	if !ok {
		st = &userState{}
		e.users[u.ID] = st
	}
	return u, st, true
}

// activeRow is the persisted form of an active workout. Pause state is not
// part of it.
type activeRow struct {
	ID          string      `json:"id,omitempty"`
	RoutineID   *string     `json:"routine_id"`
	RoutineName string      `json:"routine_name"`
	StartedAt   time.Time   `json:"started_at"`
	WorkoutData workoutData `json:"workout_data"`
	UpdatedAt   time.Time   `json:"updated_at"`
}

type workoutData struct {
	Exercises     []models.ActiveWorkoutExercise `json:"exercises"`
	TotalPausedMs int64                          `json:"total_paused_ms"`
}

func dataOf(w *models.ActiveWorkout) workoutData {
	return workoutData{Exercises: models.CloneExercises(w.Exercises), TotalPausedMs: w.TotalPausedMs}
}

// restoreLocked loads the persisted active workout once per user, so a
// workout survives a process restart. A paused workout comes back running.
func (e *Engine) restoreLocked(ctx context.Context, userID string, st *userState) {
	if st.restored || st.active != nil {
		st.restored = true
		return
	}
	rec, ok, err := gateway.ForUser(e.gw, userID).GetOne(ctx, gateway.ActiveWorkouts, nil)
	if err != nil {
		e.log.Error("loading active workout", "user", userID, "error", err)
		return
	}
	st.restored = true
	if !ok {
		return
	}
	row, err := gateway.Decode[activeRow](rec)
	if err != nil {
		e.log.Error("decoding active workout", "user", userID, "error", err)
		return
	}
	st.active = &models.ActiveWorkout{
		ID:            row.ID,
		RoutineID:     row.RoutineID,
		RoutineName:   row.RoutineName,
		StartedAt:     row.StartedAt,
		TotalPausedMs: row.WorkoutData.TotalPausedMs,
		Exercises:     row.WorkoutData.Exercises,
	}
	e.metrics.GaugeActiveWorkouts.Inc()
	e.log.Info("active workout restored", "user", userID, "workout", row.ID)
}

// loadHistoryLocked replaces the cached history. On failure the previous
// history is kept.
func (e *Engine) loadHistoryLocked(ctx context.Context, userID string, st *userState) error {
	recs, err := gateway.ForUser(e.gw, userID).ListWhere(ctx, gateway.WorkoutSessions, nil,
		&gateway.Order{Field: "completed_at", Desc: true})
	if err != nil {
		return fmt.Errorf("loading history: %w", err)
	}
	sessions, err := gateway.DecodeAll[models.WorkoutSession](recs)
	if err != nil {
		return fmt.Errorf("decoding history: %w", err)
	}
	st.history = sessions
	st.historyLoaded = true
	return nil
}

func (e *Engine) ensureHistoryLocked(ctx context.Context, userID string, st *userState) {
	if st.historyLoaded {
		return
	}
	if err := e.loadHistoryLocked(ctx, userID, st); err != nil {
		e.log.Error("loading workout history", "user", userID, "error", err)
	}
}

func (e *Engine) profile(ctx context.Context, userID string) models.Profile {
	rec, ok, err := gateway.ForUser(e.gw, userID).GetOne(ctx, gateway.Profiles, nil)
	if err != nil {
		e.log.Warn("loading profile", "user", userID, "error", err)
		return models.Profile{}
	}
	if !ok {
		return models.Profile{}
	}
	p, err := gateway.Decode[models.Profile](rec)
	if err != nil {
		e.log.Warn("decoding profile", "user", userID, "error", err)
		return models.Profile{}
	}
	return p
}

// routineOf loads the stored source routine of w. A missing or deleted
// routine yields the zero value.
func (e *Engine) routineOf(ctx context.Context, userID string, w *models.ActiveWorkout) models.Routine {
	if w.RoutineID == nil {
		return models.Routine{}
	}
	rec, ok, err := gateway.ForUser(e.gw, userID).GetOne(ctx, gateway.Routines,
		[]gateway.Filter{gateway.Eq("id", *w.RoutineID)})
	if err != nil || !ok {
		return models.Routine{}
	}
	r, err := gateway.Decode[models.Routine](rec)
	if err != nil {
		return models.Routine{}
	}
	return r.Normalize()
}

// bodyweight prefers the profile value and falls back to the most recent
// measurement that has a weight.
func (e *Engine) bodyweight(ctx context.Context, userID string, p models.Profile) float64 {
	if p.BodyweightKg > 0 {
		return p.BodyweightKg
	}
	recs, err := gateway.ForUser(e.gw, userID).ListWhere(ctx, gateway.BodyMeasurements, nil,
		&gateway.Order{Field: "date", Desc: true})
	if err != nil {
		e.log.Warn("loading body measurements", "user", userID, "error", err)
		return 0
	}
	ms, err := gateway.DecodeAll[models.BodyMeasurement](recs)
	if err != nil {
		e.log.Warn("decoding body measurements", "user", userID, "error", err)
		return 0
	}
	for _, m := range ms {
		if m.WeightKg != nil && *m.WeightKg > 0 {
			return *m.WeightKg
		}
	}
	return 0
}

// StartWorkout materializes routine into the user's active workout.
func (e *Engine) StartWorkout(ctx context.Context, routine models.Routine) (*models.ActiveWorkout, error) {
	u, st, ok := e.state(ctx)
	if !ok {
		return nil, ErrNoIdentity
	}
	st.mu.Lock()
	defer st.mu.Unlock()

	e.restoreLocked(ctx, u.ID, st)
	if st.active != nil {
		return nil, ErrWorkoutInProgress
	}
	e.ensureHistoryLocked(ctx, u.ID, st)

	now := e.clock.Now()
	w := e.materialize(routine.Normalize(), st.history, e.profile(ctx, u.ID), now)

	row, err := gateway.Encode(activeRow{
		RoutineID:   w.RoutineID,
		RoutineName: w.RoutineName,
		StartedAt:   w.StartedAt,
		WorkoutData: dataOf(w),
		UpdatedAt:   now,
	})
	if err != nil {
		return nil, err
	}
	e.writer.discard(u.ID)
	saved, err := gateway.ForUser(e.gw, u.ID).Upsert(ctx, gateway.ActiveWorkouts, nil, row)
	if err != nil {
		return nil, fmt.Errorf("saving active workout: %w", err)
	}
	id, _ := saved["id"].(string)
	w.ID = id

	st.active = w
	e.metrics.CounterWorkoutsStarted.Inc()
	e.metrics.GaugeActiveWorkouts.Inc()
	e.log.Info("workout started", "user", u.ID, "workout", id, "routine", routine.Name, "exercises", len(w.Exercises))
	return w.Clone(), nil
}

func (e *Engine) materialize(routine models.Routine, history []models.WorkoutSession, p models.Profile, now time.Time) *models.ActiveWorkout {
	w := &models.ActiveWorkout{
		RoutineName: routine.Name,
		StartedAt:   now,
		Exercises:   make([]models.ActiveWorkoutExercise, 0, len(routine.Exercises)),
	}
	if routine.ID != "" {
		id := routine.ID
		w.RoutineID = &id
	}

	for _, ex := range routine.Exercises {
		rest := e.restSeconds(ex, routine, p)
		template := ex.Sets.List
		previous := lastPerformed(history, ex.Name)

		sets := make([]models.ActiveWorkoutSet, len(template))
		for i, t := range template {
			set := models.ActiveWorkoutSet{
				Reps:        t.Reps,
				Weight:      t.Weight,
				RestSeconds: rest,
				IsWarmup:    t.IsWarmup,
			}
			if i < len(previous) {
				set.Reps = previous[i].Reps
				set.Weight = previous[i].Weight
			}
			for _, d := range t.Dropsets {
				set.Dropsets = append(set.Dropsets, models.ActiveDropset{Reps: d.Reps, Weight: d.Weight})
			}
			sets[i] = set
		}

		w.Exercises = append(w.Exercises, models.ActiveWorkoutExercise{
			ExerciseID:         uuid.NewString(),
			Name:               ex.Name,
			MuscleGroup:        ex.MuscleGroup,
			Notes:              ex.Notes,
			IncludesBodyweight: ex.IncludesBodyweight,
			Sets:               sets,
		})
	}
	return w
}

// restSeconds resolves exercise, then routine, then profile, then the
// engine default.
func (e *Engine) restSeconds(ex models.RoutineExercise, routine models.Routine, p models.Profile) int {
	for _, v := range []*int{ex.RestSeconds, routine.DefaultRestSeconds, p.DefaultRestSeconds} {
		if v != nil && *v >= 0 {
			return *v
		}
	}
	return e.defaultRest
}

// lastPerformed returns the sets of name from the first session in history
// that contains it. history is most recent first.
func lastPerformed(history []models.WorkoutSession, name string) []models.ActiveWorkoutSet {
	for _, s := range history {
		for _, ex := range s.ExercisesCompleted {
			if ex.Name == name {
				return ex.Sets
			}
		}
	}
	return nil
}

// ActiveWorkout returns a copy of the user's live workout, or nil.
func (e *Engine) ActiveWorkout(ctx context.Context) *models.ActiveWorkout {
	u, st, ok := e.state(ctx)
	if !ok {
		return nil
	}
	st.mu.Lock()
	defer st.mu.Unlock()
	e.restoreLocked(ctx, u.ID, st)
	return st.active.Clone()
}

// FinishWorkout turns the active workout into a history session, then
// updates records and achievements. Only identity and session-write
// failures are returned; the active workout is untouched in those cases.
func (e *Engine) FinishWorkout(ctx context.Context) (*FinishResult, error) {
	u, st, ok := e.state(ctx)
	if !ok {
		return nil, ErrNoIdentity
	}
	st.mu.Lock()
	defer st.mu.Unlock()

	e.restoreLocked(ctx, u.ID, st)
	w := st.active
	if w == nil {
		return nil, ErrNoActiveWorkout
	}

	now := e.clock.Now()
	p := e.profile(ctx, u.ID)
	scoped := gateway.ForUser(e.gw, u.ID)

	session := models.WorkoutSession{
		RoutineID:          w.RoutineID,
		RoutineName:        w.RoutineName,
		StartedAt:          w.StartedAt,
		CompletedAt:        now,
		ExercisesCompleted: models.CloneExercises(w.Exercises),
		TotalVolume:        records.Volume(w.Exercises, e.bodyweight(ctx, u.ID, p)),
		DurationMinutes:    durationMinutes(w.StartedAt, now),
	}
	rec, err := gateway.Encode(session)
	if err != nil {
		return nil, err
	}
	saved, err := scoped.Insert(ctx, gateway.WorkoutSessions, rec)
	if err != nil {
		return nil, fmt.Errorf("saving workout session: %w", err)
	}
	session.ID, _ = saved["id"].(string)
	session.UserID = u.ID

	e.writer.discard(u.ID)
	if w.ID != "" {
		if err := scoped.DeleteWhere(ctx, gateway.ActiveWorkouts, []gateway.Filter{gateway.Eq("id", w.ID)}); err != nil {
			e.log.Error("deleting finished active workout", "user", u.ID, "workout", w.ID, "error", err)
		}
	}
	st.active = nil
	e.metrics.GaugeActiveWorkouts.Dec()
	if e.rest != nil {
		e.rest.CancelRest(u.ID)
	}

	partial := session.IsPartial()
	e.metrics.CounterWorkoutsFinished.WithLabelValues(fmt.Sprint(partial)).Inc()
	e.metrics.HistSessionVolume.Observe(session.TotalVolume)
	e.metrics.HistSessionDurationM.Observe(float64(session.DurationMinutes))
	e.log.Info("workout finished", "user", u.ID, "session", session.ID,
		"volume", session.TotalVolume, "minutes", session.DurationMinutes, "partial", partial)

	result := &FinishResult{Session: session}
	if err := e.loadHistoryLocked(ctx, u.ID, st); err != nil {
		e.log.Error("reloading history after finish", "user", u.ID, "error", err)
		st.history = append([]models.WorkoutSession{session}, st.history...)
	}
	result.PersonalRecords, result.Achievements = e.evaluateFinish(ctx, u.ID, st.history, session, now)
	result.Notification = e.notification(result)
	if result.Notification != nil && e.notifier != nil {
		e.notifier.Notify(u.ID, *result.Notification)
	}
	return result, nil
}

func durationMinutes(start, end time.Time) int {
	d := end.Sub(start)
	if d < 0 {
		return 0
	}
	return int(d / time.Minute)
}

func (e *Engine) notification(r *FinishResult) *models.Notification {
	if len(r.PersonalRecords) > 0 {
		pr := r.PersonalRecords[0]
		msg := fmt.Sprintf("%s: %g kg × %d", pr.ExerciseName, pr.Weight, pr.Reps)
		if n := len(r.PersonalRecords) - 1; n > 0 {
			msg += fmt.Sprintf(" (+%d more)", n)
		}
		return &models.Notification{Kind: models.NotificationPersonalRecord, Title: "New personal record", Message: msg}
	}
	if len(r.Achievements) > 0 {
		a, ok := e.catalog.Lookup(r.Achievements[0])
		if !ok {
			return nil
		}
		return &models.Notification{Kind: models.NotificationAchievement, Title: a.Title, Message: a.Description}
	}
	return nil
}

// CancelWorkout discards the active workout without writing history. Local
// state is always cleared; a failed remote delete is only logged.
func (e *Engine) CancelWorkout(ctx context.Context) bool {
	u, st, ok := e.state(ctx)
	if !ok {
		return false
	}
	st.mu.Lock()
	defer st.mu.Unlock()

	e.restoreLocked(ctx, u.ID, st)
	w := st.active
	if w == nil {
		return false
	}

	e.writer.discard(u.ID)
	if w.ID != "" {
		err := gateway.ForUser(e.gw, u.ID).DeleteWhere(ctx, gateway.ActiveWorkouts,
			[]gateway.Filter{gateway.Eq("id", w.ID)})
		if err != nil {
			e.log.Error("deleting cancelled active workout", "user", u.ID, "workout", w.ID, "error", err)
		}
	}
	st.active = nil
	e.metrics.GaugeActiveWorkouts.Dec()
	e.metrics.CounterWorkoutsCancelled.Inc()
	if e.rest != nil {
		e.rest.CancelRest(u.ID)
	}
	e.log.Info("workout cancelled", "user", u.ID, "workout", w.ID)
	return true
}

// History returns the user's sessions, most recent first.
func (e *Engine) History(ctx context.Context) ([]models.WorkoutSession, error) {
	u, st, ok := e.state(ctx)
	if !ok {
		return nil, ErrNoIdentity
	}
	st.mu.Lock()
	defer st.mu.Unlock()

	if err := e.loadHistoryLocked(ctx, u.ID, st); err != nil {
		if !st.historyLoaded {
			return nil, err
		}
		e.log.Warn("refreshing history, serving cached copy", "user", u.ID, "error", err)
	}
	out := make([]models.WorkoutSession, len(st.history))
	for i, s := range st.history {
		s.ExercisesCompleted = models.CloneExercises(s.ExercisesCompleted)
		out[i] = s
	}
	return out, nil
}

// Session returns one history session.
func (e *Engine) Session(ctx context.Context, id string) (models.WorkoutSession, error) {
	u, _, ok := e.state(ctx)
	if !ok {
		return models.WorkoutSession{}, ErrNoIdentity
	}
	rec, found, err := gateway.ForUser(e.gw, u.ID).GetOne(ctx, gateway.WorkoutSessions,
		[]gateway.Filter{gateway.Eq("id", id)})
	if err != nil {
		return models.WorkoutSession{}, fmt.Errorf("loading session: %w", err)
	}
	if !found {
		return models.WorkoutSession{}, gateway.ErrNotFound
	}
	return gateway.Decode[models.WorkoutSession](rec)
}

// DeleteSession removes a session from history and recomputes records and
// achievements from what remains.
func (e *Engine) DeleteSession(ctx context.Context, id string) (*ResyncResult, error) {
	u, st, ok := e.state(ctx)
	if !ok {
		return nil, ErrNoIdentity
	}
	st.mu.Lock()
	defer st.mu.Unlock()

	scoped := gateway.ForUser(e.gw, u.ID)
	if _, found, err := scoped.GetOne(ctx, gateway.WorkoutSessions, []gateway.Filter{gateway.Eq("id", id)}); err != nil {
		return nil, fmt.Errorf("loading session: %w", err)
	} else if !found {
		return nil, gateway.ErrNotFound
	}
	if err := scoped.DeleteWhere(ctx, gateway.WorkoutSessions, []gateway.Filter{gateway.Eq("id", id)}); err != nil {
		return nil, fmt.Errorf("deleting session: %w", err)
	}
	e.log.Info("session deleted", "user", u.ID, "session", id)
	return e.resyncLocked(ctx, u.ID, st)
}
