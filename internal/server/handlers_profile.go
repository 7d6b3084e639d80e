package server

import (
	"io"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/meltforce/ironlog/internal/kvcache"
	"github.com/meltforce/ironlog/internal/models"
)

func (s *Server) handleMe(w http.ResponseWriter, r *http.Request) {
	u, ok := mustUser(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, u)
}

func (s *Server) handleGetProfile(w http.ResponseWriter, r *http.Request) {
	p, err := s.profile.Get(r.Context())
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, p)
}

func (s *Server) handlePutProfile(w http.ResponseWriter, r *http.Request) {
	var in models.Profile
	if !decodeJSON(w, r, &in) {
		return
	}
	p, err := s.profile.Put(r.Context(), in)
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, p)
}

func (s *Server) handleListMeasurements(w http.ResponseWriter, r *http.Request) {
	list, err := s.profile.Measurements(r.Context())
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, list)
}

func (s *Server) handleAddMeasurement(w http.ResponseWriter, r *http.Request) {
	var in models.BodyMeasurement
	if !decodeJSON(w, r, &in) {
		return
	}
	m, err := s.profile.AddMeasurement(r.Context(), in)
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, m)
}

func (s *Server) handleListPrefs(w http.ResponseWriter, r *http.Request) {
	u, ok := mustUser(w, r)
	if !ok {
		return
	}
	keys, err := s.prefs.Keys(r.Context(), u.ID)
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, keys)
}

func (s *Server) handleGetPref(w http.ResponseWriter, r *http.Request) {
	u, ok := mustUser(w, r)
	if !ok {
		return
	}
	entry, found, err := s.prefs.Get(r.Context(), u.ID, chi.URLParam(r, "key"))
	if err != nil {
		s.writeError(w, err)
		return
	}
	if !found {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "pref not found"})
		return
	}
	etag := `"` + entry.ETag + `"`
	w.Header().Set("ETag", etag)
	if r.Header.Get("If-None-Match") == etag {
		w.WriteHeader(http.StatusNotModified)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.Write(entry.Value)
}

func (s *Server) handlePutPref(w http.ResponseWriter, r *http.Request) {
	u, ok := mustUser(w, r)
	if !ok {
		return
	}
	body, err := io.ReadAll(io.LimitReader(r.Body, kvcache.MaxValueLen+1))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "reading body: " + err.Error()})
		return
	}
	entry, err := s.prefs.Put(r.Context(), u.ID, chi.URLParam(r, "key"), body)
	if err != nil {
		s.writeError(w, err)
		return
	}
	w.Header().Set("ETag", `"`+entry.ETag+`"`)
	writeJSON(w, http.StatusOK, entry)
}

func (s *Server) handleDeletePref(w http.ResponseWriter, r *http.Request) {
	u, ok := mustUser(w, r)
	if !ok {
		return
	}
	if err := s.prefs.Delete(r.Context(), u.ID, chi.URLParam(r, "key")); err != nil {
		s.writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
