package server

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/meltforce/ironlog/internal/ingest"
	"github.com/meltforce/ironlog/internal/workout"
)

// maxImportBytes bounds an uploaded export.
const maxImportBytes = 32 << 20

type importResponse struct {
	Import *ingest.Result        `json:"import"`
	Resync *workout.ResyncResult `json:"resync"`
}

// handleImport stores an export in the caller's history, then rebuilds
// records and achievements so imported sessions count toward them.
func (s *Server) handleImport(w http.ResponseWriter, r *http.Request) {
	user, ok := mustUser(w, r)
	if !ok {
		return
	}
	format := chi.URLParam(r, "format")
	provider, ok := s.importers[format]
	if !ok {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "unknown import format: " + format})
		return
	}

	ctx, cancel := contextWithTimeout(r, 5*time.Minute)
	defer cancel()

	body := http.MaxBytesReader(w, r.Body, maxImportBytes)
	run := func() (*ingest.Result, error) { return provider.Ingest(ctx, body, user.ID) }
	var result *ingest.Result
	var err error
	if s.journal != nil {
		result, err = s.journal.Record(ctx, user.ID, format, run)
	} else {
		result, err = run()
	}
	if err != nil {
		s.log.Error("import error", "format", format, "user", user.ID, "error", err)
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
		return
	}

	resync, err := s.engine.Resync(ctx)
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, importResponse{Import: result, Resync: resync})
}

func (s *Server) handleImportLogs(w http.ResponseWriter, r *http.Request) {
	user, ok := mustUser(w, r)
	if !ok {
		return
	}
	if s.journal == nil {
		writeJSON(w, http.StatusOK, map[string]any{"imports": []any{}})
		return
	}
	limit := 50
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid limit"})
			return
		}
		limit = n
	}
	logs, err := s.journal.Recent(r.Context(), user.ID, limit)
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"imports": logs})
}
