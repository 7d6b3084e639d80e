package storage

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/meltforce/ironlog/internal/gateway"
)

type kind int

const (
	kindUUID kind = iota
	kindText
	kindInt
	kindFloat
	kindBool
	kindTime
	kindJSON
)

type column struct {
	name string
	kind kind
}

type table struct {
	columns []column
}

func (t table) lookup(name string) (column, bool) {
	for _, c := range t.columns {
		if c.name == name {
			return c, true
		}
	}
	return column{}, false
}

func cols(spec ...any) table {
	var t table
	for i := 0; i+1 < len(spec); i += 2 {
		t.columns = append(t.columns, column{name: spec[i].(string), kind: spec[i+1].(kind)})
	}
	return t
}

// schema whitelists the columns of every collection. Anything not listed
// here is rejected before it reaches SQL.
var schema = map[string]table{
	gateway.Routines: cols(
		"id", kindUUID, "user_id", kindUUID, "name", kindText, "folder_id", kindUUID,
		"exercises", kindJSON, "default_rest_seconds", kindInt,
		"created_at", kindTime, "updated_at", kindTime,
	),
	gateway.RoutineFolders: cols(
		"id", kindUUID, "user_id", kindUUID, "name", kindText, "color", kindText,
		"order_index", kindInt, "created_at", kindTime, "updated_at", kindTime,
	),
	gateway.Exercises: cols(
		"id", kindUUID, "name", kindText, "primary_muscle", kindText,
		"secondary_muscles", kindJSON, "equipment", kindText, "category", kindText,
	),
	gateway.WorkoutSessions: cols(
		"id", kindUUID, "user_id", kindUUID, "routine_id", kindUUID, "routine_name", kindText,
		"started_at", kindTime, "completed_at", kindTime, "exercises_completed", kindJSON,
		"total_volume", kindFloat, "duration_minutes", kindInt,
	),
	gateway.ActiveWorkouts: cols(
		"id", kindUUID, "user_id", kindUUID, "routine_id", kindUUID, "routine_name", kindText,
		"started_at", kindTime, "workout_data", kindJSON, "updated_at", kindTime,
	),
	gateway.PersonalRecords: cols(
		"id", kindUUID, "user_id", kindUUID, "exercise_name", kindText,
		"weight", kindFloat, "reps", kindInt, "date", kindTime,
	),
	gateway.UserAchievements: cols(
		"id", kindUUID, "user_id", kindUUID, "achievement_id", kindText, "unlocked_at", kindTime,
	),
	gateway.BodyMeasurements: cols(
		"id", kindUUID, "user_id", kindUUID, "date", kindTime, "weight_kg", kindFloat,
		"body_fat_pct", kindFloat, "waist_cm", kindFloat, "chest_cm", kindFloat,
		"arm_cm", kindFloat, "thigh_cm", kindFloat,
	),
	gateway.Profiles: cols(
		"user_id", kindUUID, "display_name", kindText, "bodyweight_kg", kindFloat,
		"default_rest_seconds", kindInt, "updated_at", kindTime,
	),
	gateway.ImportLogs: cols(
		"id", kindUUID, "user_id", kindUUID, "created_at", kindTime, "source", kindText,
		"status", kindText, "sessions_received", kindInt, "sessions_inserted", kindInt,
		"sessions_replaced", kindInt, "sets_received", kindInt, "duration_ms", kindInt,
		"error_message", kindText,
	),
}

// Gateway implements gateway.Gateway on Postgres.
type Gateway struct {
	db *DB
}

// NewGateway returns a Postgres-backed gateway over db.
func NewGateway(db *DB) *Gateway {
	return &Gateway{db: db}
}

var _ gateway.Gateway = (*Gateway)(nil)

func (g *Gateway) ListWhere(ctx context.Context, collection string, filters []gateway.Filter, order *gateway.Order) ([]gateway.Record, error) {
	t, err := lookupTable(collection)
	if err != nil {
		return nil, err
	}

	var args []any
	where, err := buildWhere(collection, t, filters, &args)
	if err != nil {
		return nil, err
	}
	query := "SELECT " + selectList(t) + " FROM " + collection + where
	if order != nil {
		if _, ok := t.lookup(order.Field); !ok {
			return nil, fmt.Errorf("ordering %s by %q: %w", collection, order.Field, gateway.ErrUnknownField)
		}
		query += " ORDER BY " + order.Field
		if order.Desc {
			query += " DESC"
		}
	}

	rows, err := g.db.Pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("querying %s: %w", collection, err)
	}
	maps, err := pgx.CollectRows(rows, pgx.RowToMap)
	if err != nil {
		return nil, fmt.Errorf("scanning %s: %w", collection, err)
	}
	out := make([]gateway.Record, len(maps))
	for i, m := range maps {
		out[i] = gateway.Record(m)
	}
	return out, nil
}

func (g *Gateway) GetOne(ctx context.Context, collection string, filters []gateway.Filter) (gateway.Record, bool, error) {
	recs, err := g.ListWhere(ctx, collection, filters, nil)
	if err != nil || len(recs) == 0 {
		return nil, false, err
	}
	return recs[0], true, nil
}

func (g *Gateway) Insert(ctx context.Context, collection string, rec gateway.Record) (gateway.Record, error) {
	t, err := lookupTable(collection)
	if err != nil {
		return nil, err
	}
	names, placeholders, args, err := bindRecord(collection, t, rec)
	if err != nil {
		return nil, err
	}

	query := "INSERT INTO " + collection + " (" + strings.Join(names, ", ") + ") VALUES (" +
		strings.Join(placeholders, ", ") + ") RETURNING " + selectList(t)
	return g.returning(ctx, "inserting into "+collection, query, args)
}

func (g *Gateway) Update(ctx context.Context, collection string, filters []gateway.Filter, patch gateway.Record) error {
	t, err := lookupTable(collection)
	if err != nil {
		return err
	}
	if len(patch) == 0 {
		return nil
	}
	names, placeholders, args, err := bindRecord(collection, t, patch)
	if err != nil {
		return err
	}
	sets := make([]string, len(names))
	for i := range names {
		sets[i] = names[i] + " = " + placeholders[i]
	}
	where, err := buildWhere(collection, t, filters, &args)
	if err != nil {
		return err
	}

	if _, err := g.db.Pool.Exec(ctx, "UPDATE "+collection+" SET "+strings.Join(sets, ", ")+where, args...); err != nil {
		return fmt.Errorf("updating %s: %w", collection, err)
	}
	return nil
}

func (g *Gateway) Upsert(ctx context.Context, collection string, conflict []string, rec gateway.Record) (gateway.Record, error) {
	t, err := lookupTable(collection)
	if err != nil {
		return nil, err
	}
	if len(conflict) == 0 {
		return nil, fmt.Errorf("upsert %s: no conflict target", collection)
	}
	isKey := make(map[string]bool, len(conflict))
	for _, k := range conflict {
		if _, ok := t.lookup(k); !ok {
			return nil, fmt.Errorf("upsert %s conflict %q: %w", collection, k, gateway.ErrUnknownField)
		}
		if _, ok := rec[k]; !ok {
			return nil, fmt.Errorf("upsert %s: conflict field %q missing from record", collection, k)
		}
		isKey[k] = true
	}
	names, placeholders, args, err := bindRecord(collection, t, rec)
	if err != nil {
		return nil, err
	}

	var updates []string
	for _, n := range names {
		if isKey[n] || n == "id" {
			continue
		}
		updates = append(updates, n+" = EXCLUDED."+n)
	}
	if len(updates) == 0 {
		// DO NOTHING would not return the existing row.
		updates = append(updates, conflict[0]+" = EXCLUDED."+conflict[0])
	}

	query := "INSERT INTO " + collection + " (" + strings.Join(names, ", ") + ") VALUES (" +
		strings.Join(placeholders, ", ") + ") ON CONFLICT (" + strings.Join(conflict, ", ") +
		") DO UPDATE SET " + strings.Join(updates, ", ") + " RETURNING " + selectList(t)
	return g.returning(ctx, "upserting into "+collection, query, args)
}

func (g *Gateway) DeleteWhere(ctx context.Context, collection string, filters []gateway.Filter) error {
	t, err := lookupTable(collection)
	if err != nil {
		return err
	}
	var args []any
	where, err := buildWhere(collection, t, filters, &args)
	if err != nil {
		return err
	}
	if _, err := g.db.Pool.Exec(ctx, "DELETE FROM "+collection+where, args...); err != nil {
		return fmt.Errorf("deleting from %s: %w", collection, err)
	}
	return nil
}

func (g *Gateway) returning(ctx context.Context, what, query string, args []any) (gateway.Record, error) {
	rows, err := g.db.Pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", what, err)
	}
	m, err := pgx.CollectExactlyOneRow(rows, pgx.RowToMap)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", what, err)
	}
	return gateway.Record(m), nil
}

func lookupTable(collection string) (table, error) {
	t, ok := schema[collection]
	if !ok {
		return table{}, fmt.Errorf("%q: %w", collection, gateway.ErrUnknownCollection)
	}
	return t, nil
}

// selectList renders uuids as text so callers only ever see strings.
func selectList(t table) string {
	parts := make([]string, len(t.columns))
	for i, c := range t.columns {
		if c.kind == kindUUID {
			parts[i] = c.name + "::text AS " + c.name
		} else {
			parts[i] = c.name
		}
	}
	return strings.Join(parts, ", ")
}

// bindRecord returns the record's columns in schema order with their
// placeholders and coerced arguments.
func bindRecord(collection string, t table, rec gateway.Record) ([]string, []string, []any, error) {
	for k := range rec {
		if _, ok := t.lookup(k); !ok {
			return nil, nil, nil, fmt.Errorf("%s.%s: %w", collection, k, gateway.ErrUnknownField)
		}
	}
	var names, placeholders []string
	var args []any
	for _, c := range t.columns {
		v, ok := rec[c.name]
		if !ok {
			continue
		}
		arg, err := coerce(c, v)
		if err != nil {
			return nil, nil, nil, fmt.Errorf("%s.%s: %w", collection, c.name, err)
		}
		args = append(args, arg)
		names = append(names, c.name)
		placeholders = append(placeholders, placeholder(c.kind, len(args)))
	}
	return names, placeholders, args, nil
}

func buildWhere(collection string, t table, filters []gateway.Filter, args *[]any) (string, error) {
	if len(filters) == 0 {
		return "", nil
	}
	conds := make([]string, 0, len(filters))
	for _, f := range filters {
		c, ok := t.lookup(f.Field)
		if !ok {
			return "", fmt.Errorf("filtering %s by %q: %w", collection, f.Field, gateway.ErrUnknownField)
		}
		op := f.Op
		if op == "" {
			op = gateway.OpEq
		}
		switch op {
		case gateway.OpEq, gateway.OpGte, gateway.OpLte:
		default:
			return "", fmt.Errorf("filtering %s: unsupported operator %q", collection, op)
		}
		if f.Value == nil {
			if op != gateway.OpEq {
				return "", fmt.Errorf("filtering %s.%s: nil value for %s", collection, f.Field, op)
			}
			conds = append(conds, c.name+" IS NULL")
			continue
		}
		arg, err := coerce(c, f.Value)
		if err != nil {
			return "", fmt.Errorf("filtering %s.%s: %w", collection, c.name, err)
		}
		*args = append(*args, arg)
		conds = append(conds, c.name+" "+string(op)+" "+placeholder(c.kind, len(*args)))
	}
	return " WHERE " + strings.Join(conds, " AND "), nil
}

func placeholder(k kind, n int) string {
	switch k {
	case kindUUID:
		return fmt.Sprintf("$%d::text::uuid", n)
	case kindJSON:
		return fmt.Sprintf("$%d::text::jsonb", n)
	default:
		return fmt.Sprintf("$%d", n)
	}
}

// coerce converts a JSON-shaped value into the Go type pgx expects for the
// column. Records usually arrive through gateway.Encode, so numbers are
// float64 and timestamps are RFC 3339 strings.
func coerce(c column, v any) (any, error) {
	if v == nil {
		return nil, nil
	}
	switch c.kind {
	case kindUUID, kindText:
		s, ok := v.(string)
		if !ok {
			return nil, fmt.Errorf("want string, got %T", v)
		}
		return s, nil
	case kindInt:
		switch n := v.(type) {
		case int:
			return int64(n), nil
		case int64:
			return n, nil
		case float64:
			if n != math.Trunc(n) {
				return nil, fmt.Errorf("want integer, got %v", n)
			}
			return int64(n), nil
		}
		return nil, fmt.Errorf("want integer, got %T", v)
	case kindFloat:
		switch n := v.(type) {
		case float64:
			return n, nil
		case int:
			return float64(n), nil
		case int64:
			return float64(n), nil
		}
		return nil, fmt.Errorf("want number, got %T", v)
	case kindBool:
		b, ok := v.(bool)
		if !ok {
			return nil, fmt.Errorf("want bool, got %T", v)
		}
		return b, nil
	case kindTime:
		switch ts := v.(type) {
		case time.Time:
			return ts, nil
		case string:
			parsed, err := time.Parse(time.RFC3339Nano, ts)
			if err != nil {
				return nil, fmt.Errorf("parsing timestamp: %w", err)
			}
			return parsed, nil
		}
		return nil, fmt.Errorf("want timestamp, got %T", v)
	case kindJSON:
		data, err := json.Marshal(v)
		if err != nil {
			return nil, fmt.Errorf("encoding json column: %w", err)
		}
		return string(data), nil
	}
	return nil, fmt.Errorf("unhandled column kind %d", c.kind)
}
