package server

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/meltforce/ironlog/internal/events"
	"github.com/meltforce/ironlog/internal/gateway/memgw"
	"github.com/meltforce/ironlog/internal/identity"
	"github.com/meltforce/ironlog/internal/ingest"
	"github.com/meltforce/ironlog/internal/ingest/alpha"
	"github.com/meltforce/ironlog/internal/kvcache"
	"github.com/meltforce/ironlog/internal/metrics"
	"github.com/meltforce/ironlog/internal/models"
	"github.com/meltforce/ironlog/internal/profile"
	"github.com/meltforce/ironlog/internal/resttimer"
	"github.com/meltforce/ironlog/internal/routines"
	"github.com/meltforce/ironlog/internal/workout"
)

type fixture struct {
	srv    *Server
	broker *events.Broker
}

// newFixture wires the full HTTP stack over the in-memory gateway, acting
// as user alice.
func newFixture(t *testing.T) *fixture {
	t.Helper()
	gw := memgw.New()
	if err := routines.SeedLibrary(context.Background(), gw, routines.DefaultLibrary); err != nil {
		t.Fatal(err)
	}
	ids := identity.ContextProvider{}
	broker := events.NewBroker(16)
	rest := resttimer.NewManager(broker, time.Hour, discard)
	m := metrics.NewTestManager()
	engine := workout.New(gw, ids, m, discard,
		workout.WithRestSignaler(rest),
		workout.WithNotifier(broker),
	)
	prefs, err := kvcache.Open(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() {
		engine.Close()
		rest.Close()
		prefs.Close()
	})

	importers := map[string]ingest.Provider{"alpha": alpha.NewProvider(gw, discard)}
	srv := New(Deps{
		Engine:    engine,
		Routines:  routines.New(gw, ids, discard),
		Profile:   profile.New(gw, ids, discard),
		Prefs:     prefs,
		Broker:    broker,
		Rest:      rest,
		Metrics:   m,
		Importers: importers,
		Journal:   ingest.NewJournal(gw, discard),
		Identity:  DevIdentity("alice", identity.LoginResolver{}, discard),
	}, discard)
	return &fixture{srv: srv, broker: broker}
}

func (f *fixture) do(t *testing.T, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatal(err)
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	rec := httptest.NewRecorder()
	f.srv.ServeHTTP(rec, req)
	return rec
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	if err := json.Unmarshal(rec.Body.Bytes(), &v); err != nil {
		t.Fatalf("decoding %q: %v", rec.Body.String(), err)
	}
	return v
}

// pushRoutine is a legacy-shaped routine: a bare set count with flat reps
// and weight.
var pushRoutine = map[string]any{
	"name": "Push",
	"exercises": []map[string]any{
		{"name": "Bench Press", "muscle_group": "chest", "sets": 3, "reps": 5, "weight": 100},
	},
}

type activeView struct {
	ID             string                         `json:"id"`
	Exercises      []models.ActiveWorkoutExercise `json:"exercises"`
	IsPaused       bool                           `json:"is_paused"`
	ElapsedSeconds int64                          `json:"elapsed_seconds"`
}

// TestHandleMe verifies /me returns the identity set by the middleware.
func TestHandleMe(t *testing.T) {
	f := newFixture(t)
	rec := f.do(t, http.MethodGet, "/api/v1/me", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	u := decode[identity.User](t, rec)
	if u.ID != "alice" || u.Login != "alice" {
		t.Errorf("user = %+v, want alice", u)
	}
}

// TestHandleMeWithoutIdentity verifies the handler refuses requests that
// bypassed the identity middleware.
func TestHandleMeWithoutIdentity(t *testing.T) {
	s := &Server{}
	rec := httptest.NewRecorder()
	s.handleMe(rec, httptest.NewRequest(http.MethodGet, "/api/v1/me", nil))
	if rec.Code != http.StatusUnauthorized {
		t.Errorf("status = %d, want 401", rec.Code)
	}
}

// TestWorkoutLifecycle drives a workout from routine creation through
// finish, then checks history, records, achievements and stats.
func TestWorkoutLifecycle(t *testing.T) {
	f := newFixture(t)

	rec := f.do(t, http.MethodPost, "/api/v1/routines", pushRoutine)
	if rec.Code != http.StatusCreated {
		t.Fatalf("create routine status = %d: %s", rec.Code, rec.Body)
	}
	routine := decode[models.Routine](t, rec)
	if sets := routine.Exercises[0].Sets.List; len(sets) != 3 {
		t.Fatalf("legacy routine upconverted to %d sets, want 3", len(sets))
	}

	rec = f.do(t, http.MethodPost, "/api/v1/workout/start", map[string]string{"routine_id": routine.ID})
	if rec.Code != http.StatusCreated {
		t.Fatalf("start status = %d: %s", rec.Code, rec.Body)
	}
	started := decode[activeView](t, rec)
	exID := started.Exercises[0].ExerciseID

	rec = f.do(t, http.MethodPost, "/api/v1/workout/start", map[string]string{"routine_id": routine.ID})
	if rec.Code != http.StatusConflict {
		t.Errorf("second start status = %d, want 409", rec.Code)
	}

	rec = f.do(t, http.MethodPost, "/api/v1/workout/sets/toggle", map[string]any{"exercise_id": exID, "set_index": 0})
	if rec.Code != http.StatusOK {
		t.Fatalf("toggle status = %d: %s", rec.Code, rec.Body)
	}
	if !decode[activeView](t, rec).Exercises[0].Sets[0].Completed {
		t.Error("set 0 not completed after toggle")
	}

	rec = f.do(t, http.MethodGet, "/api/v1/rest", nil)
	rest := decode[map[string]*resttimer.Status](t, rec)
	if rest["rest"] == nil || rest["rest"].ExerciseID != exID {
		t.Errorf("rest = %+v, want timer for %s", rest["rest"], exID)
	}

	rec = f.do(t, http.MethodPost, "/api/v1/workout/finish", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("finish status = %d: %s", rec.Code, rec.Body)
	}
	res := decode[workout.FinishResult](t, rec)
	if res.Session.TotalVolume != 500 {
		t.Errorf("volume = %v, want 500", res.Session.TotalVolume)
	}
	if len(res.PersonalRecords) != 1 || res.PersonalRecords[0].Weight != 100 {
		t.Errorf("personal records = %+v, want Bench Press 100", res.PersonalRecords)
	}

	rec = f.do(t, http.MethodGet, "/api/v1/rest", nil)
	if decode[map[string]*resttimer.Status](t, rec)["rest"] != nil {
		t.Error("rest timer still running after finish")
	}

	rec = f.do(t, http.MethodGet, "/api/v1/workout", nil)
	if got := decode[map[string]*activeView](t, rec)["workout"]; got != nil {
		t.Errorf("workout = %+v after finish, want none", got)
	}

	sessions := decode[[]models.WorkoutSession](t, f.do(t, http.MethodGet, "/api/v1/sessions", nil))
	if len(sessions) != 1 {
		t.Fatalf("sessions = %d, want 1", len(sessions))
	}

	achievements := decode[[]achievementView](t, f.do(t, http.MethodGet, "/api/v1/achievements", nil))
	unlocked := map[string]bool{}
	for _, a := range achievements {
		unlocked[a.ID] = a.Unlocked
	}
	if !unlocked["first_workout"] {
		t.Error("first_workout not unlocked")
	}

	rec = f.do(t, http.MethodGet, "/api/v1/stats", nil)
	if got := decode[map[string]any](t, rec)["total_workouts"]; got != 1.0 {
		t.Errorf("total_workouts = %v, want 1", got)
	}

	rec = f.do(t, http.MethodDelete, "/api/v1/sessions/"+sessions[0].ID, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("delete session status = %d: %s", rec.Code, rec.Body)
	}
	if prs := decode[[]models.PersonalRecord](t, f.do(t, http.MethodGet, "/api/v1/records", nil)); len(prs) != 0 {
		t.Errorf("records after delete = %+v, want none", prs)
	}
	if rec := f.do(t, http.MethodGet, "/api/v1/sessions/"+sessions[0].ID, nil); rec.Code != http.StatusNotFound {
		t.Errorf("deleted session status = %d, want 404", rec.Code)
	}
}

// TestStartInlineRoutineAndEdit verifies starting from an inline routine and
// the set editing endpoints.
func TestStartInlineRoutineAndEdit(t *testing.T) {
	f := newFixture(t)

	rec := f.do(t, http.MethodPost, "/api/v1/workout/start", map[string]any{"routine": pushRoutine})
	if rec.Code != http.StatusCreated {
		t.Fatalf("start status = %d: %s", rec.Code, rec.Body)
	}
	exID := decode[activeView](t, rec).Exercises[0].ExerciseID

	rec = f.do(t, http.MethodPatch, "/api/v1/workout/sets",
		map[string]any{"exercise_id": exID, "set_index": 1, "field": "weight", "value": 102.5})
	if got := decode[activeView](t, rec).Exercises[0].Sets[1].Weight; got != 102.5 {
		t.Errorf("weight = %v, want 102.5", got)
	}

	rec = f.do(t, http.MethodPatch, "/api/v1/workout/sets",
		map[string]any{"exercise_id": exID, "set_index": 1, "field": "tempo", "value": 3})
	if rec.Code != http.StatusBadRequest {
		t.Errorf("unknown field status = %d, want 400", rec.Code)
	}

	rec = f.do(t, http.MethodPost, "/api/v1/workout/sets", map[string]any{"exercise_id": exID})
	if n := len(decode[activeView](t, rec).Exercises[0].Sets); n != 4 {
		t.Errorf("sets after add = %d, want 4", n)
	}

	rec = f.do(t, http.MethodDelete, "/api/v1/workout/sets?exercise_id="+exID+"&set_index=0", nil)
	if n := len(decode[activeView](t, rec).Exercises[0].Sets); n != 3 {
		t.Errorf("sets after remove = %d, want 3", n)
	}

	rec = f.do(t, http.MethodPost, "/api/v1/workout/sets/reorder",
		map[string]any{"exercise_id": exID, "from": 0, "to": 2})
	if got := decode[activeView](t, rec).Exercises[0].Sets[2].Weight; got != 102.5 {
		t.Errorf("moved set weight = %v, want 102.5", got)
	}

	rec = f.do(t, http.MethodPut, "/api/v1/workout/notes", map[string]any{"exercise_id": exID, "notes": "pause reps"})
	if got := decode[activeView](t, rec).Exercises[0].Notes; got != "pause reps" {
		t.Errorf("notes = %q", got)
	}

	rec = f.do(t, http.MethodPost, "/api/v1/workout/pause", nil)
	if !decode[activeView](t, rec).IsPaused {
		t.Error("workout not paused")
	}
	rec = f.do(t, http.MethodPost, "/api/v1/workout/resume", nil)
	if decode[activeView](t, rec).IsPaused {
		t.Error("workout still paused")
	}

	rec = f.do(t, http.MethodPost, "/api/v1/workout/cancel", nil)
	if !decode[map[string]bool](t, rec)["cancelled"] {
		t.Error("cancel reported nothing cancelled")
	}
}

// TestWorkoutActionsWithoutWorkout verifies that actions on a missing
// workout report a conflict instead of succeeding silently.
func TestWorkoutActionsWithoutWorkout(t *testing.T) {
	f := newFixture(t)

	for _, path := range []string{"/api/v1/workout/pause", "/api/v1/workout/finish"} {
		if rec := f.do(t, http.MethodPost, path, nil); rec.Code != http.StatusConflict {
			t.Errorf("%s status = %d, want 409", path, rec.Code)
		}
	}
	if rec := f.do(t, http.MethodPost, "/api/v1/rest/skip", nil); rec.Code != http.StatusNotFound {
		t.Errorf("rest skip status = %d, want 404", rec.Code)
	}
	if rec := f.do(t, http.MethodPost, "/api/v1/workout/start", map[string]any{}); rec.Code != http.StatusBadRequest {
		t.Errorf("start without routine status = %d, want 400", rec.Code)
	}
	if rec := f.do(t, http.MethodPost, "/api/v1/workout/start", map[string]any{"routine_id": "missing"}); rec.Code != http.StatusNotFound {
		t.Errorf("start with unknown routine status = %d, want 404", rec.Code)
	}
}

// TestRoutineErrors verifies validation and lookup failures map to 400/404.
func TestRoutineErrors(t *testing.T) {
	f := newFixture(t)

	if rec := f.do(t, http.MethodPost, "/api/v1/routines", map[string]any{"name": ""}); rec.Code != http.StatusBadRequest {
		t.Errorf("invalid routine status = %d, want 400", rec.Code)
	}
	if rec := f.do(t, http.MethodGet, "/api/v1/routines/nope", nil); rec.Code != http.StatusNotFound {
		t.Errorf("unknown routine status = %d, want 404", rec.Code)
	}
	req := httptest.NewRequest(http.MethodPost, "/api/v1/routines", strings.NewReader("{"))
	rec := httptest.NewRecorder()
	f.srv.ServeHTTP(rec, req)
	if rec.Code != http.StatusBadRequest {
		t.Errorf("malformed JSON status = %d, want 400", rec.Code)
	}

	huge := `{"name":"Legacy","exercises":[{"name":"Dips","sets":1e9}]}`
	bodies := map[string]string{
		"/api/v1/routines":      huge,
		"/api/v1/workout/start": `{"routine":` + huge + `}`,
	}
	for path, body := range bodies {
		req := httptest.NewRequest(http.MethodPost, path, strings.NewReader(body))
		rec := httptest.NewRecorder()
		f.srv.ServeHTTP(rec, req)
		if rec.Code != http.StatusBadRequest {
			t.Errorf("%s with oversized legacy sets: status = %d, want 400", path, rec.Code)
		}
	}
}

// TestExercisesByMuscle verifies the library filter by primary muscle.
func TestExercisesByMuscle(t *testing.T) {
	f := newFixture(t)
	list := decode[[]models.LibraryExercise](t, f.do(t, http.MethodGet, "/api/v1/exercises?muscle=Back", nil))
	if len(list) == 0 {
		t.Fatal("no back exercises")
	}
	for _, e := range list {
		if e.PrimaryMuscle != "back" {
			t.Errorf("%s has primary muscle %q", e.Name, e.PrimaryMuscle)
		}
	}
}

// TestPrefs verifies the preference cache round trip including ETag
// revalidation.
func TestPrefs(t *testing.T) {
	f := newFixture(t)

	rec := f.do(t, http.MethodPut, "/api/v1/prefs/ui.tab", "history")
	if rec.Code != http.StatusOK {
		t.Fatalf("put status = %d: %s", rec.Code, rec.Body)
	}
	etag := rec.Header().Get("ETag")
	if etag == "" {
		t.Fatal("no ETag on put")
	}

	rec = f.do(t, http.MethodGet, "/api/v1/prefs/ui.tab", nil)
	if rec.Code != http.StatusOK || strings.TrimSpace(rec.Body.String()) != `"history"` {
		t.Errorf("get = %d %s", rec.Code, rec.Body)
	}

	req := httptest.NewRequest(http.MethodGet, "/api/v1/prefs/ui.tab", nil)
	req.Header.Set("If-None-Match", etag)
	rec = httptest.NewRecorder()
	f.srv.ServeHTTP(rec, req)
	if rec.Code != http.StatusNotModified {
		t.Errorf("revalidation status = %d, want 304", rec.Code)
	}

	if keys := decode[[]string](t, f.do(t, http.MethodGet, "/api/v1/prefs", nil)); len(keys) != 1 || keys[0] != "ui.tab" {
		t.Errorf("keys = %v", keys)
	}
	if rec := f.do(t, http.MethodPut, "/api/v1/prefs/bad$key", 1); rec.Code != http.StatusBadRequest {
		t.Errorf("bad key status = %d, want 400", rec.Code)
	}
	if rec := f.do(t, http.MethodDelete, "/api/v1/prefs/ui.tab", nil); rec.Code != http.StatusNoContent {
		t.Errorf("delete status = %d, want 204", rec.Code)
	}
	if rec := f.do(t, http.MethodGet, "/api/v1/prefs/ui.tab", nil); rec.Code != http.StatusNotFound {
		t.Errorf("get after delete status = %d, want 404", rec.Code)
	}
}

// TestProfileAndMeasurements verifies profile defaults, updates and
// measurement validation over HTTP.
func TestProfileAndMeasurements(t *testing.T) {
	f := newFixture(t)

	p := decode[models.Profile](t, f.do(t, http.MethodGet, "/api/v1/profile", nil))
	if p.DisplayName != "Local Dev User" {
		t.Errorf("default display name = %q", p.DisplayName)
	}

	rec := f.do(t, http.MethodPut, "/api/v1/profile", map[string]any{"display_name": "Alice", "bodyweight_kg": 70})
	if rec.Code != http.StatusOK {
		t.Fatalf("put profile status = %d: %s", rec.Code, rec.Body)
	}

	if rec := f.do(t, http.MethodPost, "/api/v1/measurements", map[string]any{"weight_kg": -1}); rec.Code != http.StatusBadRequest {
		t.Errorf("negative measurement status = %d, want 400", rec.Code)
	}
	if rec := f.do(t, http.MethodPost, "/api/v1/measurements", map[string]any{"weight_kg": 70.5}); rec.Code != http.StatusCreated {
		t.Errorf("measurement status = %d: %s", rec.Code, rec.Body)
	}
	if list := decode[[]models.BodyMeasurement](t, f.do(t, http.MethodGet, "/api/v1/measurements", nil)); len(list) != 1 {
		t.Errorf("measurements = %d, want 1", len(list))
	}
}

// TestParseTimeRange verifies RFC3339 and date-only bounds, with date-only
// ends covering the whole day.
func TestParseTimeRange(t *testing.T) {
	tests := []struct {
		query     string
		wantStart time.Time
		wantEnd   time.Time
		wantErr   bool
	}{
		{"", time.Time{}, time.Time{}, false},
		{"start=2026-03-01", time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC), time.Time{}, false},
		{"start=2026-03-01T10:00:00Z&end=2026-03-02",
			time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC),
			time.Date(2026, 3, 2, 23, 59, 59, 999999999, time.UTC), false},
		{"start=yesterday", time.Time{}, time.Time{}, true},
		{"end=03/02/2026", time.Time{}, time.Time{}, true},
	}
	for _, tt := range tests {
		t.Run(tt.query, func(t *testing.T) {
			r := httptest.NewRequest(http.MethodGet, "/api/v1/sessions?"+tt.query, nil)
			start, end, err := parseTimeRange(r)
			if (err != nil) != tt.wantErr {
				t.Fatalf("err = %v, wantErr %v", err, tt.wantErr)
			}
			if !start.Equal(tt.wantStart) || !end.Equal(tt.wantEnd) {
				t.Errorf("range = %v..%v, want %v..%v", start, end, tt.wantStart, tt.wantEnd)
			}
		})
	}
}

// TestSessionsOutsideRange verifies that a range without sessions yields an
// empty array rather than null.
func TestSessionsOutsideRange(t *testing.T) {
	f := newFixture(t)
	rec := f.do(t, http.MethodGet, "/api/v1/sessions?start=2000-01-01&end=2000-01-02", nil)
	if rec.Code != http.StatusOK || strings.TrimSpace(rec.Body.String()) != "[]" {
		t.Errorf("sessions = %d %s, want 200 []", rec.Code, rec.Body)
	}
}

// TestEventsStream verifies that published events reach a subscribed SSE
// client.
func TestEventsStream(t *testing.T) {
	f := newFixture(t)
	ts := httptest.NewServer(f.srv)
	defer ts.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, ts.URL+"/api/v1/events", nil)
	if err != nil {
		t.Fatal(err)
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()

	if ct := resp.Header.Get("Content-Type"); ct != "text/event-stream" {
		t.Fatalf("content type = %q", ct)
	}

	lines := bufio.NewScanner(resp.Body)
	if !lines.Scan() || lines.Text() != ": connected" {
		t.Fatalf("first line = %q, want connect comment", lines.Text())
	}

	f.broker.Notify("alice", models.Notification{Kind: models.NotificationAchievement, Title: "First Rep"})

	for lines.Scan() {
		if lines.Text() == "event: notification" {
			if !lines.Scan() || !strings.Contains(lines.Text(), "First Rep") {
				t.Errorf("data line = %q", lines.Text())
			}
			return
		}
	}
	t.Fatalf("stream ended without notification: %v", lines.Err())
}

const alphaExport = `"Push · Day 1";"2026-02-17 5:04 h";"1:12 hr"
"1. Bench Press · Barbell · 6 reps";"WU1 · 47,5 kg · 8 reps"
#;KG;REPS;RIR
1;102,5;6;0
2;100;6;0
`

// TestImportAlpha verifies an uploaded export lands in history and counts
// toward records.
func TestImportAlpha(t *testing.T) {
	f := newFixture(t)

	req := httptest.NewRequest(http.MethodPost, "/api/v1/import/alpha", strings.NewReader(alphaExport))
	rec := httptest.NewRecorder()
	f.srv.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("import status = %d: %s", rec.Code, rec.Body.String())
	}
	res := decode[struct {
		Import ingest.Result `json:"import"`
		Resync struct {
			PersonalRecords []models.PersonalRecord `json:"personal_records"`
		} `json:"resync"`
	}](t, rec)
	if res.Import.SessionsInserted != 1 || res.Import.SetsReceived != 3 {
		t.Errorf("import = %+v, want 1 session, 3 sets", res.Import)
	}
	if len(res.Resync.PersonalRecords) != 1 || res.Resync.PersonalRecords[0].Weight != 102.5 {
		t.Errorf("records = %+v, want Bench Press 102.5", res.Resync.PersonalRecords)
	}

	sessions := decode[[]models.WorkoutSession](t, f.do(t, http.MethodGet, "/api/v1/sessions", nil))
	if len(sessions) != 1 || sessions[0].DurationMinutes != 72 {
		t.Errorf("sessions = %+v, want one 72 minute session", sessions)
	}

	if rec := f.do(t, http.MethodPost, "/api/v1/import/strong", nil); rec.Code != http.StatusNotFound {
		t.Errorf("unknown format status = %d, want 404", rec.Code)
	}

	bad := httptest.NewRequest(http.MethodPost, "/api/v1/import/alpha", strings.NewReader("1;100;5;0\n"))
	rec = httptest.NewRecorder()
	f.srv.ServeHTTP(rec, bad)
	if rec.Code != http.StatusBadRequest {
		t.Errorf("malformed export status = %d, want 400", rec.Code)
	}

	logs := decode[struct {
		Imports []models.ImportLog `json:"imports"`
	}](t, f.do(t, http.MethodGet, "/api/v1/imports", nil))
	if len(logs.Imports) != 2 {
		t.Fatalf("imports = %+v, want 2 entries", logs.Imports)
	}
	statuses := map[models.ImportStatus]int{}
	for _, l := range logs.Imports {
		statuses[l.Status]++
	}
	if statuses[models.ImportSuccess] != 1 || statuses[models.ImportError] != 1 {
		t.Errorf("import statuses = %v, want one success and one error", statuses)
	}
}
