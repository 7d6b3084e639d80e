package server

import (
	"fmt"
	"net/http"

	"github.com/meltforce/ironlog/internal/resttimer"
)

func (s *Server) handleRestStatus(w http.ResponseWriter, r *http.Request) {
	u, ok := mustUser(w, r)
	if !ok {
		return
	}
	st, running := s.rest.Status(u.ID)
	if !running {
		writeJSON(w, http.StatusOK, map[string]any{"rest": nil})
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"rest": st})
}

func (s *Server) handleRestPause(w http.ResponseWriter, r *http.Request) {
	s.restAction(w, r, s.rest.TogglePause)
}

func (s *Server) handleRestExtend(w http.ResponseWriter, r *http.Request) {
	s.restAction(w, r, s.rest.Extend)
}

func (s *Server) handleRestSkip(w http.ResponseWriter, r *http.Request) {
	s.restAction(w, r, s.rest.Skip)
}

func (s *Server) restAction(w http.ResponseWriter, r *http.Request, fn func(userID string) (resttimer.Status, bool)) {
	u, ok := mustUser(w, r)
	if !ok {
		return
	}
	st, running := fn(u.ID)
	if !running {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "no rest timer running"})
		return
	}
	writeJSON(w, http.StatusOK, st)
}

// handleEvents streams the caller's rest timer and notification events.
func (s *Server) handleEvents(w http.ResponseWriter, r *http.Request) {
	u, ok := mustUser(w, r)
	if !ok {
		return
	}

	flusher, ok := w.(http.Flusher)
	if !ok {
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "streaming not supported"})
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")

	ch, cancel := s.broker.Subscribe(u.ID)
	defer cancel()

	// Send the current timer immediately
	if st, running := s.rest.Status(u.ID); running {
		fmt.Fprintf(w, "event: rest_status\ndata: %s\n\n", mustJSON(st))
	} else {
		fmt.Fprint(w, ": connected\n\n")
	}
	flusher.Flush()

	for {
		select {
		case <-r.Context().Done():
			return
		case evt, ok := <-ch:
			if !ok {
				return
			}
			fmt.Fprintf(w, "event: %s\ndata: %s\n\n", evt.Name, evt.JSON())
			flusher.Flush()
		}
	}
}
