// Package gateway defines the persistence contract the workout engine and the
// HTTP layer use to reach the record store, independent of the backend.
package gateway

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
)

// Collections known to every backend.
const (
	Routines         = "routines"
	RoutineFolders   = "routine_folders"
	Exercises        = "exercises"
	WorkoutSessions  = "workout_sessions"
	ActiveWorkouts   = "active_workouts"
	PersonalRecords  = "personal_records"
	UserAchievements = "user_achievements"
	BodyMeasurements = "body_measurements"
	Profiles         = "profiles"
	ImportLogs       = "import_logs"
)

// OwnerField is the column every user-scoped collection is keyed by.
const OwnerField = "user_id"

var (
	// ErrNotFound is returned by typed helpers when a lookup matches nothing.
	ErrNotFound = errors.New("record not found")
	// ErrUnknownCollection is returned for a collection the backend has no schema for.
	ErrUnknownCollection = errors.New("unknown collection")
	// ErrUnknownField is returned when a filter, order or record names a field
	// the collection does not have.
	ErrUnknownField = errors.New("unknown field")
)

// Record is one row of a collection, keyed by field name.
type Record map[string]any

// Op is a filter comparison.
type Op string

const (
	OpEq  Op = "="
	OpGte Op = ">="
	OpLte Op = "<="
)

// Filter restricts a query to records whose Field compares to Value.
type Filter struct {
	Field string
	Op    Op
	Value any
}

// Eq matches records where field equals value.
func Eq(field string, value any) Filter { return Filter{Field: field, Op: OpEq, Value: value} }

// Gte matches records where field is greater than or equal to value.
func Gte(field string, value any) Filter { return Filter{Field: field, Op: OpGte, Value: value} }

// Lte matches records where field is less than or equal to value.
func Lte(field string, value any) Filter { return Filter{Field: field, Op: OpLte, Value: value} }

// Order sorts a listing by one field.
type Order struct {
	Field string
	Desc  bool
}

// Gateway is CRUD plus filtered queries over named collections.
type Gateway interface {
	ListWhere(ctx context.Context, collection string, filters []Filter, order *Order) ([]Record, error)
	GetOne(ctx context.Context, collection string, filters []Filter) (Record, bool, error)
	Insert(ctx context.Context, collection string, rec Record) (Record, error)
	Update(ctx context.Context, collection string, filters []Filter, patch Record) error
	// Upsert inserts rec or, when a row with the same conflict fields exists,
	// replaces it. The stored row is returned.
	Upsert(ctx context.Context, collection string, conflict []string, rec Record) (Record, error)
	DeleteWhere(ctx context.Context, collection string, filters []Filter) error
}

// Encode converts a model into a Record using its JSON field names.
func Encode(v any) (Record, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("encoding record: %w", err)
	}
	var rec Record
	if err := json.Unmarshal(data, &rec); err != nil {
		return nil, fmt.Errorf("encoding record: %w", err)
	}
	return rec, nil
}

// Decode converts a Record into a model using its JSON field names.
func Decode[T any](rec Record) (T, error) {
	var out T
	data, err := json.Marshal(rec)
	if err != nil {
		return out, fmt.Errorf("decoding record: %w", err)
	}
	if err := json.Unmarshal(data, &out); err != nil {
		return out, fmt.Errorf("decoding record: %w", err)
	}
	return out, nil
}

// DecodeAll decodes every record of a listing.
func DecodeAll[T any](recs []Record) ([]T, error) {
	out := make([]T, 0, len(recs))
	for _, rec := range recs {
		v, err := Decode[T](rec)
		if err != nil {
			return nil, err
		}
		out = append(out, v)
	}
	return out, nil
}
