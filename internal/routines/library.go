package routines

import (
	"context"
	"fmt"

	"github.com/meltforce/ironlog/internal/gateway"
	"github.com/meltforce/ironlog/internal/models"
)

// DefaultLibrary mirrors the exercises seeded by the initial migration.
var DefaultLibrary = []models.LibraryExercise{
	{Name: "Squat", PrimaryMuscle: "quads", SecondaryMuscles: []string{"glutes", "hamstrings"}, Equipment: "barbell", Category: "compound"},
	{Name: "Bench Press", PrimaryMuscle: "chest", SecondaryMuscles: []string{"triceps", "shoulders"}, Equipment: "barbell", Category: "compound"},
	{Name: "Deadlift", PrimaryMuscle: "back", SecondaryMuscles: []string{"glutes", "hamstrings"}, Equipment: "barbell", Category: "compound"},
	{Name: "Overhead Press", PrimaryMuscle: "shoulders", SecondaryMuscles: []string{"triceps"}, Equipment: "barbell", Category: "compound"},
	{Name: "Barbell Row", PrimaryMuscle: "back", SecondaryMuscles: []string{"biceps"}, Equipment: "barbell", Category: "compound"},
	{Name: "Pull-up", PrimaryMuscle: "back", SecondaryMuscles: []string{"biceps"}, Equipment: "bodyweight", Category: "compound"},
	{Name: "Dip", PrimaryMuscle: "chest", SecondaryMuscles: []string{"triceps"}, Equipment: "bodyweight", Category: "compound"},
	{Name: "Romanian Deadlift", PrimaryMuscle: "hamstrings", SecondaryMuscles: []string{"glutes", "back"}, Equipment: "barbell", Category: "compound"},
	{Name: "Leg Press", PrimaryMuscle: "quads", SecondaryMuscles: []string{"glutes"}, Equipment: "machine", Category: "compound"},
	{Name: "Lat Pulldown", PrimaryMuscle: "back", SecondaryMuscles: []string{"biceps"}, Equipment: "cable", Category: "compound"},
	{Name: "Bicep Curl", PrimaryMuscle: "biceps", SecondaryMuscles: []string{}, Equipment: "dumbbell", Category: "isolation"},
	{Name: "Tricep Pushdown", PrimaryMuscle: "triceps", SecondaryMuscles: []string{}, Equipment: "cable", Category: "isolation"},
	{Name: "Lateral Raise", PrimaryMuscle: "shoulders", SecondaryMuscles: []string{}, Equipment: "dumbbell", Category: "isolation"},
	{Name: "Leg Curl", PrimaryMuscle: "hamstrings", SecondaryMuscles: []string{}, Equipment: "machine", Category: "isolation"},
	{Name: "Calf Raise", PrimaryMuscle: "calves", SecondaryMuscles: []string{}, Equipment: "machine", Category: "isolation"},
}

// SeedLibrary upserts exercises by name. The Postgres schema seeds itself;
// the memory driver calls this at startup.
func SeedLibrary(ctx context.Context, gw gateway.Gateway, exercises []models.LibraryExercise) error {
	for _, ex := range exercises {
		ex.ID = ""
		rec, err := gateway.Encode(ex)
		if err != nil {
			return err
		}
		if _, err := gw.Upsert(ctx, gateway.Exercises, []string{"name"}, rec); err != nil {
			return fmt.Errorf("seeding exercise %s: %w", ex.Name, err)
		}
	}
	return nil
}
