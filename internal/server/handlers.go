package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/meltforce/ironlog/internal/gateway"
	"github.com/meltforce/ironlog/internal/identity"
	"github.com/meltforce/ironlog/internal/kvcache"
	"github.com/meltforce/ironlog/internal/profile"
	"github.com/meltforce/ironlog/internal/routines"
	"github.com/meltforce/ironlog/internal/workout"
)

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func decodeJSON(w http.ResponseWriter, r *http.Request, v any) bool {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid JSON: " + err.Error()})
		return false
	}
	return true
}

// writeError maps service errors to status codes. Anything unknown is
// logged and reported as 500.
func (s *Server) writeError(w http.ResponseWriter, err error) {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, workout.ErrNoIdentity), errors.Is(err, identity.ErrUnauthorized):
		status = http.StatusUnauthorized
	case errors.Is(err, gateway.ErrNotFound):
		status = http.StatusNotFound
	case errors.Is(err, workout.ErrNoActiveWorkout), errors.Is(err, workout.ErrWorkoutInProgress):
		status = http.StatusConflict
	case errors.Is(err, routines.ErrInvalid), errors.Is(err, profile.ErrInvalid),
		errors.Is(err, kvcache.ErrInvalidKey), errors.Is(err, kvcache.ErrInvalidValue):
		status = http.StatusBadRequest
	default:
		s.log.Error("request failed", "error", err)
	}
	writeJSON(w, status, map[string]string{"error": err.Error()})
}

// mustUser returns the caller or writes 401.
func mustUser(w http.ResponseWriter, r *http.Request) (identity.User, bool) {
	u, ok := identity.FromContext(r.Context())
	if !ok {
		writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "unauthorized"})
		return identity.User{}, false
	}
	return u, true
}

// parseTimeRange reads start/end query parameters as RFC3339 or dates. A
// missing bound is returned as the zero time; a date-only end covers the
// whole day.
func parseTimeRange(r *http.Request) (start, end time.Time, err error) {
	if v := r.URL.Query().Get("start"); v != "" {
		start, err = time.Parse(time.RFC3339, v)
		if err != nil {
			start, err = time.Parse(time.DateOnly, v)
			if err != nil {
				return time.Time{}, time.Time{}, fmt.Errorf("invalid start: %w", err)
			}
		}
	}
	if v := r.URL.Query().Get("end"); v != "" {
		end, err = time.Parse(time.RFC3339, v)
		if err != nil {
			end, err = time.Parse(time.DateOnly, v)
			if err != nil {
				return time.Time{}, time.Time{}, fmt.Errorf("invalid end: %w", err)
			}
			// End of day for date-only
			end = end.Add(24*time.Hour - time.Nanosecond)
		}
	}
	return start, end, nil
}

func contextWithTimeout(r *http.Request, d time.Duration) (context.Context, context.CancelFunc) {
	return context.WithTimeout(r.Context(), d)
}

func mustJSON(v any) string {
	b, err := json.Marshal(v)
	if err != nil {
		return `{}`
	}
	return string(b)
}
