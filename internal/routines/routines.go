// Package routines manages workout templates, their folders and the shared
// exercise library.
package routines

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/meltforce/ironlog/internal/gateway"
	"github.com/meltforce/ironlog/internal/identity"
	"github.com/meltforce/ironlog/internal/models"
)

// ErrInvalid is returned for a routine or folder that cannot be stored.
var ErrInvalid = errors.New("invalid routine")

// Service stores routines and folders per user.
type Service struct {
	gw  gateway.Gateway
	ids identity.Provider
	log *slog.Logger
	now func() time.Time
}

// New returns a routine service over gw.
func New(gw gateway.Gateway, ids identity.Provider, log *slog.Logger) *Service {
	return &Service{gw: gw, ids: ids, log: log, now: time.Now}
}

func (s *Service) scoped(ctx context.Context) (*gateway.Scoped, error) {
	u, ok := s.ids.CurrentUser(ctx)
	if !ok {
		return nil, identity.ErrUnauthorized
	}
	return gateway.ForUser(s.gw, u.ID), nil
}

func validate(r models.Routine) error {
	if strings.TrimSpace(r.Name) == "" {
		return fmt.Errorf("%w: name is required", ErrInvalid)
	}
	for i, ex := range r.Exercises {
		if strings.TrimSpace(ex.Name) == "" {
			return fmt.Errorf("%w: exercise %d has no name", ErrInvalid, i)
		}
		if ex.RestSeconds != nil && *ex.RestSeconds < 0 {
			return fmt.Errorf("%w: exercise %q has negative rest", ErrInvalid, ex.Name)
		}
		for _, set := range ex.Sets.List {
			if set.Reps < 0 || set.Weight < 0 {
				return fmt.Errorf("%w: exercise %q has a negative set", ErrInvalid, ex.Name)
			}
		}
	}
	if r.DefaultRestSeconds != nil && *r.DefaultRestSeconds < 0 {
		return fmt.Errorf("%w: negative default rest", ErrInvalid)
	}
	return nil
}

// List returns the user's routines, oldest first, in list form.
func (s *Service) List(ctx context.Context) ([]models.Routine, error) {
	scoped, err := s.scoped(ctx)
	if err != nil {
		return nil, err
	}
	recs, err := scoped.ListWhere(ctx, gateway.Routines, nil, &gateway.Order{Field: "created_at"})
	if err != nil {
		return nil, fmt.Errorf("listing routines: %w", err)
	}
	list, err := gateway.DecodeAll[models.Routine](recs)
	if err != nil {
		return nil, err
	}
	for i := range list {
		list[i] = list[i].Normalize()
	}
	return list, nil
}

// Get returns one routine in list form.
func (s *Service) Get(ctx context.Context, id string) (models.Routine, error) {
	scoped, err := s.scoped(ctx)
	if err != nil {
		return models.Routine{}, err
	}
	return s.get(ctx, scoped, id)
}

func (s *Service) get(ctx context.Context, scoped *gateway.Scoped, id string) (models.Routine, error) {
	rec, ok, err := scoped.GetOne(ctx, gateway.Routines, []gateway.Filter{gateway.Eq("id", id)})
	if err != nil {
		return models.Routine{}, fmt.Errorf("loading routine %s: %w", id, err)
	}
	if !ok {
		return models.Routine{}, gateway.ErrNotFound
	}
	r, err := gateway.Decode[models.Routine](rec)
	if err != nil {
		return models.Routine{}, err
	}
	return r.Normalize(), nil
}

// Create stores a new routine. Legacy set counts are upconverted first.
func (s *Service) Create(ctx context.Context, r models.Routine) (models.Routine, error) {
	scoped, err := s.scoped(ctx)
	if err != nil {
		return models.Routine{}, err
	}
	r = r.Normalize()
	if err := validate(r); err != nil {
		return models.Routine{}, err
	}
	now := s.now()
	r.ID, r.UserID = "", ""
	r.CreatedAt, r.UpdatedAt = now, now

	rec, err := gateway.Encode(r)
	if err != nil {
		return models.Routine{}, err
	}
	saved, err := scoped.Insert(ctx, gateway.Routines, rec)
	if err != nil {
		return models.Routine{}, fmt.Errorf("creating routine: %w", err)
	}
	out, err := gateway.Decode[models.Routine](saved)
	if err != nil {
		return models.Routine{}, err
	}
	s.log.Info("routine created", "user", scoped.UserID(), "routine", out.ID, "exercises", len(out.Exercises))
	return out.Normalize(), nil
}

// Update replaces the editable fields of a routine.
func (s *Service) Update(ctx context.Context, id string, r models.Routine) (models.Routine, error) {
	scoped, err := s.scoped(ctx)
	if err != nil {
		return models.Routine{}, err
	}
	r = r.Normalize()
	if err := validate(r); err != nil {
		return models.Routine{}, err
	}
	current, err := s.get(ctx, scoped, id)
	if err != nil {
		return models.Routine{}, err
	}
	return s.save(ctx, scoped, current, r)
}

func (s *Service) save(ctx context.Context, scoped *gateway.Scoped, current, r models.Routine) (models.Routine, error) {
	current.Name = r.Name
	current.FolderID = r.FolderID
	current.Exercises = r.Exercises
	current.DefaultRestSeconds = r.DefaultRestSeconds
	current.UpdatedAt = s.now()

	full, err := gateway.Encode(current)
	if err != nil {
		return models.Routine{}, err
	}
	patch := gateway.Record{}
	for _, k := range []string{"name", "folder_id", "exercises", "default_rest_seconds", "updated_at"} {
		patch[k] = full[k]
	}
	err = scoped.Update(ctx, gateway.Routines, []gateway.Filter{gateway.Eq("id", current.ID)}, patch)
	if err != nil {
		return models.Routine{}, fmt.Errorf("updating routine %s: %w", current.ID, err)
	}
	return current, nil
}

// ReorderExercises moves an exercise within a routine.
func (s *Service) ReorderExercises(ctx context.Context, id string, from, to int) (models.Routine, error) {
	scoped, err := s.scoped(ctx)
	if err != nil {
		return models.Routine{}, err
	}
	current, err := s.get(ctx, scoped, id)
	if err != nil {
		return models.Routine{}, err
	}
	if from == to || !models.Reorder(current.Exercises, from, to) {
		return current, nil
	}
	return s.save(ctx, scoped, current, current)
}

// Delete removes a routine. Sessions started from it keep their snapshot.
func (s *Service) Delete(ctx context.Context, id string) error {
	scoped, err := s.scoped(ctx)
	if err != nil {
		return err
	}
	if _, err := s.get(ctx, scoped, id); err != nil {
		return err
	}
	if err := scoped.DeleteWhere(ctx, gateway.Routines, []gateway.Filter{gateway.Eq("id", id)}); err != nil {
		return fmt.Errorf("deleting routine %s: %w", id, err)
	}
	return nil
}

// Folders returns the user's folders by order index.
func (s *Service) Folders(ctx context.Context) ([]models.RoutineFolder, error) {
	scoped, err := s.scoped(ctx)
	if err != nil {
		return nil, err
	}
	recs, err := scoped.ListWhere(ctx, gateway.RoutineFolders, nil, &gateway.Order{Field: "order_index"})
	if err != nil {
		return nil, fmt.Errorf("listing folders: %w", err)
	}
	return gateway.DecodeAll[models.RoutineFolder](recs)
}

// CreateFolder stores a folder. A zero order index appends it after the
// existing folders.
func (s *Service) CreateFolder(ctx context.Context, f models.RoutineFolder) (models.RoutineFolder, error) {
	if strings.TrimSpace(f.Name) == "" {
		return models.RoutineFolder{}, fmt.Errorf("%w: folder name is required", ErrInvalid)
	}
	existing, err := s.Folders(ctx)
	if err != nil {
		return models.RoutineFolder{}, err
	}
	scoped, err := s.scoped(ctx)
	if err != nil {
		return models.RoutineFolder{}, err
	}
	if f.OrderIndex == 0 {
		for _, e := range existing {
			if e.OrderIndex >= f.OrderIndex {
				f.OrderIndex = e.OrderIndex + 1
			}
		}
	}
	now := s.now()
	f.ID, f.UserID = "", ""
	f.CreatedAt, f.UpdatedAt = now, now

	rec, err := gateway.Encode(f)
	if err != nil {
		return models.RoutineFolder{}, err
	}
	saved, err := scoped.Insert(ctx, gateway.RoutineFolders, rec)
	if err != nil {
		return models.RoutineFolder{}, fmt.Errorf("creating folder: %w", err)
	}
	return gateway.Decode[models.RoutineFolder](saved)
}

// DeleteFolder removes a folder and moves its routines to the top level.
func (s *Service) DeleteFolder(ctx context.Context, id string) error {
	scoped, err := s.scoped(ctx)
	if err != nil {
		return err
	}
	err = scoped.Update(ctx, gateway.Routines, []gateway.Filter{gateway.Eq("folder_id", id)},
		gateway.Record{"folder_id": nil})
	if err != nil {
		return fmt.Errorf("detaching routines from folder %s: %w", id, err)
	}
	if err := scoped.DeleteWhere(ctx, gateway.RoutineFolders, []gateway.Filter{gateway.Eq("id", id)}); err != nil {
		return fmt.Errorf("deleting folder %s: %w", id, err)
	}
	return nil
}

// LibraryExercises lists the shared exercise catalog, optionally only the
// exercises whose primary muscle matches.
func (s *Service) LibraryExercises(ctx context.Context, muscle string) ([]models.LibraryExercise, error) {
	var filters []gateway.Filter
	if muscle != "" {
		filters = append(filters, gateway.Eq("primary_muscle", strings.ToLower(muscle)))
	}
	recs, err := s.gw.ListWhere(ctx, gateway.Exercises, filters, &gateway.Order{Field: "name"})
	if err != nil {
		return nil, fmt.Errorf("listing exercises: %w", err)
	}
	return gateway.DecodeAll[models.LibraryExercise](recs)
}
