package server

import (
	"io/fs"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/meltforce/ironlog/internal/events"
	"github.com/meltforce/ironlog/internal/ingest"
	"github.com/meltforce/ironlog/internal/kvcache"
	"github.com/meltforce/ironlog/internal/metrics"
	"github.com/meltforce/ironlog/internal/profile"
	"github.com/meltforce/ironlog/internal/resttimer"
	"github.com/meltforce/ironlog/internal/routines"
	"github.com/meltforce/ironlog/internal/workout"
)

// Deps are the components the HTTP layer serves.
type Deps struct {
	Engine   *workout.Engine
	Routines *routines.Service
	Profile  *profile.Service
	Prefs    *kvcache.Cache
	Broker   *events.Broker
	Rest     *resttimer.Manager
	Metrics  *metrics.Manager

	// Importers are keyed by the export format served at /api/v1/import/{format}.
	Importers map[string]ingest.Provider
	// Journal, when set, records every import.
	Journal *ingest.Journal

	// Identity resolves the caller of every /api/v1 and /mcp request.
	Identity func(http.Handler) http.Handler
	// MCP and Prometheus are mounted at /mcp and /metrics when set.
	MCP        http.Handler
	Prometheus http.Handler
}

// Server holds dependencies for HTTP handlers.
type Server struct {
	engine    *workout.Engine
	routines  *routines.Service
	profile   *profile.Service
	prefs     *kvcache.Cache
	broker    *events.Broker
	rest      *resttimer.Manager
	metrics   *metrics.Manager
	importers map[string]ingest.Provider
	journal   *ingest.Journal
	log       *slog.Logger
	router    chi.Router
}

// New creates a new Server with all routes configured.
func New(d Deps, log *slog.Logger) *Server {
	s := &Server{
		engine:    d.Engine,
		routines:  d.Routines,
		profile:   d.Profile,
		prefs:     d.Prefs,
		broker:    d.Broker,
		rest:      d.Rest,
		metrics:   d.Metrics,
		importers: d.Importers,
		journal:   d.Journal,
		log:       log,
		router:    chi.NewRouter(),
	}
	s.routes(d)
	return s
}

// ServeHTTP implements http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

func (s *Server) routes(d Deps) {
	s.router.Use(RequestLogging(s.log, s.metrics))
	s.router.Use(CORS)

	if d.Prometheus != nil {
		s.router.Handle("/metrics", d.Prometheus)
	}

	identify := d.Identity
	if identify == nil {
		identify = func(next http.Handler) http.Handler { return next }
	}

	if d.MCP != nil {
		s.router.With(identify).Handle("/mcp", d.MCP)
	}

	s.router.Route("/api/v1", func(r chi.Router) {
		r.Use(identify)

		r.Get("/me", s.handleMe)
		r.Get("/profile", s.handleGetProfile)
		r.Put("/profile", s.handlePutProfile)
		r.Get("/measurements", s.handleListMeasurements)
		r.Post("/measurements", s.handleAddMeasurement)

		// Routines and the exercise library
		r.Get("/routines", s.handleListRoutines)
		r.Post("/routines", s.handleCreateRoutine)
		r.Get("/routines/{id}", s.handleGetRoutine)
		r.Put("/routines/{id}", s.handleUpdateRoutine)
		r.Delete("/routines/{id}", s.handleDeleteRoutine)
		r.Post("/routines/{id}/reorder", s.handleReorderRoutine)
		r.Get("/folders", s.handleListFolders)
		r.Post("/folders", s.handleCreateFolder)
		r.Delete("/folders/{id}", s.handleDeleteFolder)
		r.Get("/exercises", s.handleListExercises)

		// Active workout
		r.Route("/workout", func(r chi.Router) {
			r.Get("/", s.handleGetWorkout)
			r.Post("/start", s.handleStartWorkout)
			r.Post("/pause", s.handlePauseWorkout)
			r.Post("/resume", s.handleResumeWorkout)
			r.Post("/finish", s.handleFinishWorkout)
			r.Post("/cancel", s.handleCancelWorkout)
			r.Post("/sets/toggle", s.handleToggleSet)
			r.Post("/dropsets/toggle", s.handleToggleDropset)
			r.Patch("/sets", s.handleUpdateSet)
			r.Post("/sets", s.handleAddSet)
			r.Delete("/sets", s.handleRemoveSet)
			r.Post("/sets/reorder", s.handleReorderSets)
			r.Put("/notes", s.handleUpdateNotes)
		})

		// Rest timer and live events
		r.Get("/rest", s.handleRestStatus)
		r.Post("/rest/pause", s.handleRestPause)
		r.Post("/rest/extend", s.handleRestExtend)
		r.Post("/rest/skip", s.handleRestSkip)
		r.Get("/events", s.handleEvents)

		// History, records, stats
		r.Get("/sessions", s.handleListSessions)
		r.Get("/sessions/{id}", s.handleGetSession)
		r.Delete("/sessions/{id}", s.handleDeleteSession)
		r.Get("/records", s.handleRecords)
		r.Get("/achievements", s.handleAchievements)
		r.Post("/resync", s.handleResync)
		r.Post("/import/{format}", s.handleImport)
		r.Get("/imports", s.handleImportLogs)
		r.Get("/stats", s.handleStats)

		// UI preferences
		r.Get("/prefs", s.handleListPrefs)
		r.Get("/prefs/{key}", s.handleGetPref)
		r.Put("/prefs/{key}", s.handlePutPref)
		r.Delete("/prefs/{key}", s.handleDeletePref)
	})
}

// SetFrontend mounts a built SPA filesystem.
// Unmatched routes serve index.html for client-side routing.
func (s *Server) SetFrontend(webFS fs.FS) {
	fileServer := http.FileServerFS(webFS)

	s.router.NotFound(func(w http.ResponseWriter, r *http.Request) {
		// Try to serve the exact file first
		f, err := webFS.Open(r.URL.Path[1:]) // strip leading /
		if err == nil {
			f.Close()
			fileServer.ServeHTTP(w, r)
			return
		}
		// Fallback to index.html for SPA routing
		r.URL.Path = "/"
		fileServer.ServeHTTP(w, r)
	})
}
