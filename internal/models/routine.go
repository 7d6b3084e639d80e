package models

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math"
	"time"
)

// Defaults applied when a legacy routine exercise carries no flat reps/weight.
const (
	DefaultReps   = 10
	DefaultWeight = 0.0
)

// MaxLegacySets caps the set count of the legacy shape.
const MaxLegacySets = 100

// Routine is a user-authored workout template.
type Routine struct {
	ID                 string            `json:"id,omitempty"`
	UserID             string            `json:"user_id,omitempty"`
	Name               string            `json:"name"`
	FolderID           *string           `json:"folder_id"`
	Exercises          []RoutineExercise `json:"exercises"`
	DefaultRestSeconds *int              `json:"default_rest_seconds"`
	CreatedAt          time.Time         `json:"created_at"`
	UpdatedAt          time.Time         `json:"updated_at"`
}

// RoutineExercise is an exercise as stored inside a routine.
// Reps and Weight only exist on the legacy shape where Sets is a bare count.
type RoutineExercise struct {
	Name               string   `json:"name"`
	MuscleGroup        string   `json:"muscle_group"`
	Notes              string   `json:"notes,omitempty"`
	Sets               SetSpec  `json:"sets"`
	Reps               *int     `json:"reps,omitempty"`
	Weight             *float64 `json:"weight,omitempty"`
	RestSeconds        *int     `json:"rest_seconds,omitempty"`
	IncludesBodyweight bool     `json:"includes_bodyweight,omitempty"`
}

// TemplateSet is one prescribed set of a routine exercise.
type TemplateSet struct {
	Reps     int       `json:"reps"`
	Weight   float64   `json:"weight"`
	IsWarmup bool      `json:"is_warmup,omitempty"`
	Dropsets []Dropset `json:"dropsets,omitempty"`
}

// Dropset is a sub-series performed right after its parent set without rest.
type Dropset struct {
	Reps   int     `json:"reps"`
	Weight float64 `json:"weight"`
}

// SetSpec is the stored form of an exercise's sets. Older routines stored a
// bare integer count; newer ones store a list. Legacy is true for the former.
type SetSpec struct {
	Legacy bool
	Count  int
	List   []TemplateSet
}

// SetList wraps an explicit list of sets.
func SetList(sets ...TemplateSet) SetSpec {
	return SetSpec{List: sets}
}

// LegacyCount builds the old integer-count shape.
func LegacyCount(n int) SetSpec {
	return SetSpec{Legacy: true, Count: n}
}

func (s *SetSpec) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	switch {
	case len(data) == 0 || bytes.Equal(data, []byte("null")):
		*s = SetSpec{}
		return nil
	case data[0] == '[':
		var list []TemplateSet
		if err := json.Unmarshal(data, &list); err != nil {
			return fmt.Errorf("decoding set list: %w", err)
		}
		*s = SetSpec{List: list}
		return nil
	default:
		// Some clients wrote the count as a float.
		var n float64
		if err := json.Unmarshal(data, &n); err != nil {
			return fmt.Errorf("decoding legacy set count: %w", err)
		}
		if n != math.Trunc(n) || n > MaxLegacySets {
			return fmt.Errorf("legacy set count %v: want a whole number up to %d", n, MaxLegacySets)
		}
		if n < 0 {
			n = 0
		}
		*s = SetSpec{Legacy: true, Count: int(n)}
		return nil
	}
}

func (s SetSpec) MarshalJSON() ([]byte, error) {
	if s.Legacy {
		return json.Marshal(s.Count)
	}
	if s.List == nil {
		return []byte("[]"), nil
	}
	return json.Marshal(s.List)
}

// Normalized returns the exercise's sets as a list, upconverting the legacy
// count shape into Count identical sets built from the flat reps/weight.
func (e RoutineExercise) Normalized() []TemplateSet {
	if !e.Sets.Legacy {
		out := make([]TemplateSet, len(e.Sets.List))
		for i, set := range e.Sets.List {
			out[i] = set.clone()
		}
		return out
	}

	reps, weight := DefaultReps, DefaultWeight
	if e.Reps != nil {
		reps = *e.Reps
	}
	if e.Weight != nil {
		weight = *e.Weight
	}
	out := make([]TemplateSet, min(max(e.Sets.Count, 0), MaxLegacySets))
	for i := range out {
		out[i] = TemplateSet{Reps: reps, Weight: weight}
	}
	return out
}

// Normalize returns a copy of the routine with every exercise in list form.
// It is the only place that knows about the legacy shape.
func (r Routine) Normalize() Routine {
	out := r
	out.Exercises = make([]RoutineExercise, len(r.Exercises))
	for i, ex := range r.Exercises {
		ex.Sets = SetList(ex.Normalized()...)
		ex.Reps = nil
		ex.Weight = nil
		out.Exercises[i] = ex
	}
	return out
}

func (t TemplateSet) clone() TemplateSet {
	if t.Dropsets != nil {
		t.Dropsets = append([]Dropset(nil), t.Dropsets...)
	}
	return t
}

// RoutineFolder groups routines in the editor.
type RoutineFolder struct {
	ID         string    `json:"id,omitempty"`
	UserID     string    `json:"user_id,omitempty"`
	Name       string    `json:"name"`
	Color      string    `json:"color"`
	OrderIndex int       `json:"order_index"`
	CreatedAt  time.Time `json:"created_at"`
	UpdatedAt  time.Time `json:"updated_at"`
}

// LibraryExercise is an entry of the shared exercise catalog.
type LibraryExercise struct {
	ID               string   `json:"id,omitempty"`
	Name             string   `json:"name"`
	PrimaryMuscle    string   `json:"primary_muscle"`
	SecondaryMuscles []string `json:"secondary_muscles"`
	Equipment        string   `json:"equipment"`
	Category         string   `json:"category"`
}
