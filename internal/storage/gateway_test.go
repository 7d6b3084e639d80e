package storage

import (
	"context"
	"errors"
	"regexp"
	"testing"
	"time"

	pgxmock "github.com/pashagolub/pgxmock/v3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/meltforce/ironlog/internal/gateway"
)

func newDB(t *testing.T) (*DB, pgxmock.PgxPoolIface) {
	t.Helper()
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	return &DB{Pool: mock}, mock
}

const prSelect = "id::text AS id, user_id::text AS user_id, exercise_name, weight, reps, date"

var prColumns = []string{"id", "user_id", "exercise_name", "weight", "reps", "date"}

func TestGateway_ListWhere(t *testing.T) {
	db, mock := newDB(t)
	defer mock.Close()
	g := NewGateway(db)
	day := time.Date(2026, 2, 1, 0, 0, 0, 0, time.UTC)

	mock.ExpectQuery(regexp.QuoteMeta(
		"SELECT "+prSelect+" FROM personal_records WHERE user_id = $1::text::uuid AND date >= $2 ORDER BY date DESC")).
		WithArgs("u1", day).
		WillReturnRows(pgxmock.NewRows(prColumns).
			AddRow("p1", "u1", "Squat", 120.0, int32(5), day))

	recs, err := g.ListWhere(context.Background(), gateway.PersonalRecords,
		[]gateway.Filter{gateway.Eq("user_id", "u1"), gateway.Gte("date", day)},
		&gateway.Order{Field: "date", Desc: true})
	require.NoError(t, err)
	require.Len(t, recs, 1)
	assert.Equal(t, "Squat", recs[0]["exercise_name"])
	assert.Equal(t, 120.0, recs[0]["weight"])
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestGateway_ListWhereNullFilter(t *testing.T) {
	db, mock := newDB(t)
	defer mock.Close()
	g := NewGateway(db)

	mock.ExpectQuery(regexp.QuoteMeta(
		"FROM routines WHERE user_id = $1::text::uuid AND folder_id IS NULL")).
		WithArgs("u1").
		WillReturnRows(pgxmock.NewRows([]string{"id"}))

	recs, err := g.ListWhere(context.Background(), gateway.Routines,
		[]gateway.Filter{gateway.Eq("user_id", "u1"), gateway.Eq("folder_id", nil)}, nil)
	require.NoError(t, err)
	assert.Empty(t, recs)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestGateway_InsertCoercesJSONShapedValues(t *testing.T) {
	db, mock := newDB(t)
	defer mock.Close()
	g := NewGateway(db)
	day := time.Date(2026, 2, 1, 10, 0, 0, 0, time.UTC)

	rec, err := gateway.Encode(map[string]any{
		"user_id":       "u1",
		"exercise_name": "Bench",
		"weight":        80,
		"reps":          8,
		"date":          day,
	})
	require.NoError(t, err)

	mock.ExpectQuery(regexp.QuoteMeta(
		"INSERT INTO personal_records (user_id, exercise_name, weight, reps, date) VALUES ($1::text::uuid, $2, $3, $4, $5) RETURNING "+prSelect)).
		WithArgs("u1", "Bench", 80.0, int64(8), pgxmock.AnyArg()).
		WillReturnRows(pgxmock.NewRows(prColumns).
			AddRow("p2", "u1", "Bench", 80.0, int32(8), day))

	got, err := g.Insert(context.Background(), gateway.PersonalRecords, rec)
	require.NoError(t, err)
	assert.Equal(t, "p2", got["id"])
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestGateway_InsertJSONColumn(t *testing.T) {
	db, mock := newDB(t)
	defer mock.Close()
	g := NewGateway(db)

	mock.ExpectQuery(regexp.QuoteMeta(
		"INSERT INTO active_workouts (user_id, routine_name, workout_data) VALUES ($1::text::uuid, $2, $3::text::jsonb) ON CONFLICT (user_id) DO UPDATE SET routine_name = EXCLUDED.routine_name, workout_data = EXCLUDED.workout_data RETURNING")).
		WithArgs("u1", "Push", `{"total_paused_ms":0}`).
		WillReturnRows(pgxmock.NewRows([]string{"id", "user_id"}).AddRow("a1", "u1"))

	got, err := g.Upsert(context.Background(), gateway.ActiveWorkouts, []string{"user_id"}, gateway.Record{
		"user_id":      "u1",
		"routine_name": "Push",
		"workout_data": map[string]any{"total_paused_ms": 0},
	})
	require.NoError(t, err)
	assert.Equal(t, "a1", got["id"])
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestGateway_UpsertAllKeyColumns(t *testing.T) {
	db, mock := newDB(t)
	defer mock.Close()
	g := NewGateway(db)

	mock.ExpectQuery(regexp.QuoteMeta(
		"ON CONFLICT (user_id, achievement_id) DO UPDATE SET user_id = EXCLUDED.user_id RETURNING")).
		WithArgs("u1", "first_workout").
		WillReturnRows(pgxmock.NewRows([]string{"id"}).AddRow("x"))

	_, err := g.Upsert(context.Background(), gateway.UserAchievements, []string{"user_id", "achievement_id"},
		gateway.Record{"user_id": "u1", "achievement_id": "first_workout"})
	require.NoError(t, err)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestGateway_UpdateAndDelete(t *testing.T) {
	db, mock := newDB(t)
	defer mock.Close()
	g := NewGateway(db)
	ctx := context.Background()

	mock.ExpectExec(regexp.QuoteMeta(
		"UPDATE routines SET name = $1 WHERE user_id = $2::text::uuid AND id = $3::text::uuid")).
		WithArgs("Legs", "u1", "r1").
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))
	require.NoError(t, g.Update(ctx, gateway.Routines,
		[]gateway.Filter{gateway.Eq("user_id", "u1"), gateway.Eq("id", "r1")},
		gateway.Record{"name": "Legs"}))

	mock.ExpectExec(regexp.QuoteMeta(
		"DELETE FROM workout_sessions WHERE user_id = $1::text::uuid AND id = $2::text::uuid")).
		WithArgs("u1", "s1").
		WillReturnError(errors.New("connection reset"))
	err := g.DeleteWhere(ctx, gateway.WorkoutSessions,
		[]gateway.Filter{gateway.Eq("user_id", "u1"), gateway.Eq("id", "s1")})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "deleting from workout_sessions")

	require.NoError(t, mock.ExpectationsWereMet())
}

func TestGateway_RejectsUnknownNames(t *testing.T) {
	db, mock := newDB(t)
	defer mock.Close()
	g := NewGateway(db)
	ctx := context.Background()

	_, err := g.ListWhere(ctx, "users; DROP TABLE users", nil, nil)
	require.ErrorIs(t, err, gateway.ErrUnknownCollection)

	_, err = g.ListWhere(ctx, gateway.Routines, []gateway.Filter{gateway.Eq("name; --", "x")}, nil)
	require.ErrorIs(t, err, gateway.ErrUnknownField)

	_, err = g.ListWhere(ctx, gateway.Routines, nil, &gateway.Order{Field: "nope"})
	require.ErrorIs(t, err, gateway.ErrUnknownField)

	_, err = g.Insert(ctx, gateway.Routines, gateway.Record{"bogus": 1})
	require.ErrorIs(t, err, gateway.ErrUnknownField)

	require.NoError(t, mock.ExpectationsWereMet())
}

func TestCoerce(t *testing.T) {
	ts := time.Date(2026, 1, 2, 3, 4, 5, 600, time.UTC)
	tests := []struct {
		name    string
		kind    kind
		in      any
		want    any
		wantErr bool
	}{
		{"int from float", kindInt, 12.0, int64(12), false},
		{"fractional int", kindInt, 1.5, nil, true},
		{"float from int", kindFloat, 3, 3.0, false},
		{"time from string", kindTime, ts.Format(time.RFC3339Nano), ts, false},
		{"bad time", kindTime, "yesterday", nil, true},
		{"uuid must be string", kindUUID, 7.0, nil, true},
		{"json list", kindJSON, []any{"a", "b"}, `["a","b"]`, false},
		{"nil passes", kindInt, nil, nil, false},
		{"bool", kindBool, true, true, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := coerce(column{name: "c", kind: tt.kind}, tt.in)
			if tt.wantErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			if want, ok := tt.want.(time.Time); ok {
				assert.True(t, want.Equal(got.(time.Time)))
				return
			}
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestGetOrCreateUser(t *testing.T) {
	db, mock := newDB(t)
	defer mock.Close()

	mock.ExpectQuery(`INSERT INTO users \(login, display_name\)`).
		WithArgs("alice@example.com", "Alice").
		WillReturnRows(pgxmock.NewRows([]string{"id"}).AddRow("0b8f5a7e-4a51-4b7a-9c61-3d1f0e6a9b11"))

	id, err := db.GetOrCreateUser(context.Background(), "alice@example.com", "Alice")
	require.NoError(t, err)
	assert.Equal(t, "0b8f5a7e-4a51-4b7a-9c61-3d1f0e6a9b11", id)
	require.NoError(t, mock.ExpectationsWereMet())
}
