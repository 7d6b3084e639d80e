package mcp

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/meltforce/ironlog/internal/identity"
	"github.com/meltforce/ironlog/internal/records"
)

// WithRequestUser carries the identity of the HTTP caller into tool and
// resource handlers.
func WithRequestUser(ctx context.Context, r *http.Request) context.Context {
	if u, ok := identity.FromContext(r.Context()); ok {
		return identity.WithUser(ctx, u)
	}
	return ctx
}

// NewHTTPHandler serves s over the streamable HTTP transport. Requests must
// pass the identity middleware first.
func NewHTTPHandler(s *server.MCPServer) http.Handler {
	return server.NewStreamableHTTPServer(s,
		server.WithHTTPContextFunc(WithRequestUser),
		server.WithStateLess(true),
	)
}

// New creates an MCP server with all tools and resources registered.
func New(ds DataSource, catalog records.Catalog, version string, log *slog.Logger) *server.MCPServer {
	s := server.NewMCPServer("ironlog", version,
		server.WithToolCapabilities(false),
		server.WithResourceCapabilities(false, false),
		server.WithInstructions("ironlog strength training server. Query finished workouts, personal records, achievements, training statistics and the workout in progress. All data is scoped to the authenticated user. Weights are in kg."),
	)

	h := &handlers{ds: ds, catalog: catalog, log: log, now: time.Now}

	// Tools
	s.AddTools(
		server.ServerTool{Tool: toolGetWorkoutHistory, Handler: h.getWorkoutHistory},
		server.ServerTool{Tool: toolGetPersonalRecords, Handler: h.getPersonalRecords},
		server.ServerTool{Tool: toolGetAchievements, Handler: h.getAchievements},
		server.ServerTool{Tool: toolGetTrainingStats, Handler: h.getTrainingStats},
		server.ServerTool{Tool: toolGetExerciseProgress, Handler: h.getExerciseProgress},
		server.ServerTool{Tool: toolGetActiveWorkout, Handler: h.getActiveWorkout},
	)

	// Resources
	s.AddResources(
		server.ServerResource{Resource: resRecentWorkouts, Handler: h.recentWorkouts},
		server.ServerResource{Resource: resPersonalRecords, Handler: h.personalRecords},
		server.ServerResource{Resource: resAchievementCatalog, Handler: h.achievementCatalog},
	)

	return s
}

// handlers holds dependencies for MCP tool/resource handlers.
type handlers struct {
	ds      DataSource
	catalog records.Catalog
	log     *slog.Logger
	now     func() time.Time
}

// --- Resource definitions ---

var resRecentWorkouts = mcp.NewResource(
	"ironlog://recent_workouts",
	"Recent Workouts",
	mcp.WithResourceDescription("Finished workouts from the last 14 days with every set performed"),
	mcp.WithMIMEType("application/json"),
)

var resPersonalRecords = mcp.NewResource(
	"ironlog://personal_records",
	"Personal Records",
	mcp.WithResourceDescription("Heaviest completed working set per exercise"),
	mcp.WithMIMEType("application/json"),
)

var resAchievementCatalog = mcp.NewResource(
	"ironlog://achievement_catalog",
	"Achievement Catalog",
	mcp.WithResourceDescription("All achievements with their unlock state"),
	mcp.WithMIMEType("application/json"),
)
