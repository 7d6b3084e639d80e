package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/meltforce/ironlog/internal/app"
	"github.com/meltforce/ironlog/internal/config"
	"github.com/meltforce/ironlog/internal/identity"
	"github.com/meltforce/ironlog/internal/ingest"
	"github.com/meltforce/ironlog/internal/ingest/alpha"
	"github.com/meltforce/ironlog/internal/logging"
	"github.com/meltforce/ironlog/internal/metrics"
	"github.com/meltforce/ironlog/internal/workout"
)

func main() {
	configPath := flag.String("config", "config.yaml", "path to config file")
	migrationsPath := flag.String("migrations", "migrations", "path to migration files")
	csvPath := flag.String("file", "", "path to an Alpha Progression CSV export (required)")
	login := flag.String("login", "", "login of the user the history belongs to (required)")
	dryRun := flag.Bool("dry-run", false, "parse and report without writing to the database")
	flag.Parse()

	if *csvPath == "" || *login == "" {
		fmt.Fprintf(os.Stderr, "Usage: ironlog-import -config config.yaml -file export.csv -login alice@example.com [-dry-run]\n")
		flag.PrintDefaults()
		os.Exit(1)
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}
	log, logCloser := logging.Setup(cfg.Log)
	defer logCloser.Close()

	f, err := os.Open(*csvPath)
	if err != nil {
		log.Error("opening export failed", "path", *csvPath, "error", err)
		os.Exit(1)
	}
	defer f.Close()

	if *dryRun {
		log.Info("DRY RUN mode, nothing is written to the database")
		if err := report(f, log); err != nil {
			log.Error("parsing export failed", "error", err)
			os.Exit(1)
		}
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Minute)
	defer cancel()

	store, err := app.OpenStore(ctx, cfg, *migrationsPath, false, log)
	if err != nil {
		log.Error("opening storage failed", "error", err)
		os.Exit(1)
	}
	defer store.Close()

	userID, err := store.Users.GetOrCreateUser(ctx, *login, *login)
	if err != nil {
		log.Error("resolving user failed", "login", *login, "error", err)
		os.Exit(1)
	}
	ctx = identity.WithUser(ctx, identity.User{ID: userID, Login: *login, DisplayName: *login})

	provider := alpha.NewProvider(store.Gateway, log)
	result, err := ingest.NewJournal(store.Gateway, log).Record(ctx, userID, "alpha", func() (*ingest.Result, error) {
		return provider.Ingest(ctx, f, userID)
	})
	if err != nil {
		log.Error("import failed", "error", err)
		os.Exit(1)
	}
	log.Info("sessions imported", "inserted", result.SessionsInserted,
		"replaced", result.SessionsReplaced, "sets", result.SetsReceived)

	m := metrics.NewManager("ironlog", "import", prometheus.NewRegistry())
	engine := workout.New(store.Gateway, identity.ContextProvider{}, m, log)
	defer engine.Close()

	resync, err := engine.Resync(ctx)
	if err != nil {
		log.Error("rebuilding records failed", "error", err)
		os.Exit(1)
	}
	log.Info("import complete", "personal_records", len(resync.PersonalRecords),
		"achievements", len(resync.Achievements))
}

// report logs what an import of r would store.
func report(r io.Reader, log *slog.Logger) error {
	sessions, err := alpha.Parse(r)
	if err != nil {
		return err
	}
	sets := 0
	for _, s := range alpha.Convert(sessions, 0) {
		for _, ex := range s.ExercisesCompleted {
			sets += len(ex.Sets)
		}
		log.Info("session", "name", s.RoutineName, "started", s.StartedAt.Format("2006-01-02 15:04"),
			"minutes", s.DurationMinutes, "exercises", len(s.ExercisesCompleted), "volume", s.TotalVolume)
	}
	log.Info("dry run complete", "sessions", len(sessions), "sets", sets)
	return nil
}
