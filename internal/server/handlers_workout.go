package server

import (
	"net/http"
	"strconv"

	"github.com/meltforce/ironlog/internal/models"
	"github.com/meltforce/ironlog/internal/workout"
)

// workoutView is an active workout with its displayed elapsed time.
type workoutView struct {
	*models.ActiveWorkout
	ElapsedSeconds int64 `json:"elapsed_seconds"`
}

type startRequest struct {
	RoutineID string          `json:"routine_id"`
	Routine   *models.Routine `json:"routine"`
}

type setRequest struct {
	ExerciseID string  `json:"exercise_id"`
	SetIndex   int     `json:"set_index"`
	DropIndex  int     `json:"drop_index"`
	Field      string  `json:"field"`
	Value      float64 `json:"value"`
	From       int     `json:"from"`
	To         int     `json:"to"`
	Notes      string  `json:"notes"`
}

// writeWorkout answers with the workout after an action. A nil workout
// means the caller has none in progress.
func (s *Server) writeWorkout(w http.ResponseWriter, aw *models.ActiveWorkout) {
	if aw == nil {
		writeJSON(w, http.StatusConflict, map[string]string{"error": workout.ErrNoActiveWorkout.Error()})
		return
	}
	writeJSON(w, http.StatusOK, workoutView{ActiveWorkout: aw, ElapsedSeconds: aw.ElapsedSeconds(s.engine.Now())})
}

func (s *Server) handleGetWorkout(w http.ResponseWriter, r *http.Request) {
	if _, ok := mustUser(w, r); !ok {
		return
	}
	aw := s.engine.ActiveWorkout(r.Context())
	if aw == nil {
		writeJSON(w, http.StatusOK, map[string]any{"workout": nil})
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"workout": workoutView{ActiveWorkout: aw, ElapsedSeconds: aw.ElapsedSeconds(s.engine.Now())},
	})
}

func (s *Server) handleStartWorkout(w http.ResponseWriter, r *http.Request) {
	var req startRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	var routine models.Routine
	switch {
	case req.RoutineID != "":
		var err error
		routine, err = s.routines.Get(r.Context(), req.RoutineID)
		if err != nil {
			s.writeError(w, err)
			return
		}
	case req.Routine != nil:
		routine = req.Routine.Normalize()
	default:
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "routine_id or routine required"})
		return
	}

	aw, err := s.engine.StartWorkout(r.Context(), routine)
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, workoutView{ActiveWorkout: aw, ElapsedSeconds: 0})
}

func (s *Server) handlePauseWorkout(w http.ResponseWriter, r *http.Request) {
	s.writeWorkout(w, s.engine.PauseWorkout(r.Context()))
}

func (s *Server) handleResumeWorkout(w http.ResponseWriter, r *http.Request) {
	s.writeWorkout(w, s.engine.ResumeWorkout(r.Context()))
}

func (s *Server) handleFinishWorkout(w http.ResponseWriter, r *http.Request) {
	res, err := s.engine.FinishWorkout(r.Context())
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func (s *Server) handleCancelWorkout(w http.ResponseWriter, r *http.Request) {
	if _, ok := mustUser(w, r); !ok {
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"cancelled": s.engine.CancelWorkout(r.Context())})
}

func (s *Server) handleToggleSet(w http.ResponseWriter, r *http.Request) {
	var req setRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	s.writeWorkout(w, s.engine.ToggleSetComplete(r.Context(), req.ExerciseID, req.SetIndex))
}

func (s *Server) handleToggleDropset(w http.ResponseWriter, r *http.Request) {
	var req setRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	s.writeWorkout(w, s.engine.ToggleDropsetComplete(r.Context(), req.ExerciseID, req.SetIndex, req.DropIndex))
}

func (s *Server) handleUpdateSet(w http.ResponseWriter, r *http.Request) {
	var req setRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	field := workout.SetField(req.Field)
	switch field {
	case workout.FieldReps, workout.FieldWeight, workout.FieldRestSeconds:
	default:
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "field must be reps, weight or rest_seconds"})
		return
	}
	s.writeWorkout(w, s.engine.UpdateSetField(r.Context(), req.ExerciseID, req.SetIndex, field, req.Value))
}

func (s *Server) handleAddSet(w http.ResponseWriter, r *http.Request) {
	var req setRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	s.writeWorkout(w, s.engine.AddSet(r.Context(), req.ExerciseID))
}

func (s *Server) handleRemoveSet(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	idx, err := strconv.Atoi(q.Get("set_index"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "set_index must be an integer"})
		return
	}
	s.writeWorkout(w, s.engine.RemoveSet(r.Context(), q.Get("exercise_id"), idx))
}

func (s *Server) handleReorderSets(w http.ResponseWriter, r *http.Request) {
	var req setRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	s.writeWorkout(w, s.engine.ReorderSets(r.Context(), req.ExerciseID, req.From, req.To))
}

func (s *Server) handleUpdateNotes(w http.ResponseWriter, r *http.Request) {
	var req setRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	s.writeWorkout(w, s.engine.UpdateExerciseNotes(r.Context(), req.ExerciseID, req.Notes))
}
