package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/multierr"
	"tailscale.com/tsnet"

	"github.com/meltforce/ironlog/internal/app"
	"github.com/meltforce/ironlog/internal/config"
	"github.com/meltforce/ironlog/internal/events"
	"github.com/meltforce/ironlog/internal/identity"
	"github.com/meltforce/ironlog/internal/ingest"
	"github.com/meltforce/ironlog/internal/ingest/alpha"
	"github.com/meltforce/ironlog/internal/kvcache"
	"github.com/meltforce/ironlog/internal/logging"
	"github.com/meltforce/ironlog/internal/mcp"
	"github.com/meltforce/ironlog/internal/metrics"
	"github.com/meltforce/ironlog/internal/profile"
	"github.com/meltforce/ironlog/internal/resttimer"
	"github.com/meltforce/ironlog/internal/routines"
	"github.com/meltforce/ironlog/internal/server"
	"github.com/meltforce/ironlog/internal/workout"
)

// Version is set at build time via -ldflags.
var Version = "dev"

func main() {
	configPath := flag.String("config", "config.yaml", "path to config file")
	migrationsPath := flag.String("migrations", "migrations", "path to migration files")
	migrateOnly := flag.Bool("migrate-only", false, "run migrations and exit")
	issueToken := flag.String("issue-token", "", "print a bearer token for this login and exit (auth.mode jwt)")
	tokenTTL := flag.Duration("token-ttl", 90*24*time.Hour, "lifetime of tokens printed by -issue-token")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}

	log, logCloser := logging.Setup(cfg.Log)
	defer logCloser.Close()
	log.Info("ironlog starting", "version", Version, "storage", cfg.Storage.Driver, "auth", cfg.Auth.Mode)

	if *issueToken != "" {
		if cfg.Auth.JWTSecret == "" {
			log.Error("issuing token requires auth.jwt_secret")
			os.Exit(1)
		}
		token, err := identity.IssueToken([]byte(cfg.Auth.JWTSecret), *issueToken, *issueToken, *tokenTTL)
		if err != nil {
			log.Error("issuing token failed", "error", err)
			os.Exit(1)
		}
		fmt.Println(token)
		return
	}

	ctx := context.Background()
	store, err := app.OpenStore(ctx, cfg, *migrationsPath, false, log)
	if err != nil {
		log.Error("opening storage failed", "error", err)
		os.Exit(1)
	}
	defer store.Close()

	if *migrateOnly {
		log.Info("migrate-only: exiting")
		return
	}

	// Metrics
	reg := metrics.SetupPrometheus()
	m := metrics.NewManager("ironlog", "backend", reg)

	// Domain
	ids := identity.ContextProvider{}
	broker := events.NewBroker(64)
	rest := resttimer.NewManager(broker, time.Second, log)
	engine := workout.New(store.Gateway, ids, m, log,
		workout.WithRestSignaler(rest),
		workout.WithNotifier(broker),
		workout.WithDefaultRest(cfg.Workout.DefaultRestSeconds),
	)
	prefs, err := kvcache.Open(cfg.Cache.Dir)
	if err != nil {
		log.Error("opening preference cache failed", "dir", cfg.Cache.Dir, "error", err)
		os.Exit(1)
	}

	// Start tsnet before wiring identity: the Tailscale middleware needs
	// its local client.
	var tsServer *tsnet.Server
	if cfg.Tailscale.Enabled {
		tsServer = &tsnet.Server{
			Hostname: cfg.Tailscale.Hostname,
			Dir:      cfg.Tailscale.StateDir,
		}
		if err := tsServer.Start(); err != nil {
			log.Error("tsnet start failed", "error", err)
			os.Exit(1)
		}
		defer tsServer.Close()
	}

	identify, err := identityMiddleware(cfg, tsServer, store.Users, log)
	if err != nil {
		log.Error("configuring identity failed", "error", err)
		os.Exit(1)
	}

	importers := map[string]ingest.Provider{
		"alpha": alpha.NewProvider(store.Gateway, log),
	}
	srv := server.New(server.Deps{
		Engine:     engine,
		Routines:   routines.New(store.Gateway, ids, log),
		Profile:    profile.New(store.Gateway, ids, log),
		Prefs:      prefs,
		Broker:     broker,
		Rest:       rest,
		Metrics:    m,
		Importers:  importers,
		Journal:    ingest.NewJournal(store.Gateway, log),
		Identity:   identify,
		MCP:        mcp.NewHTTPHandler(mcp.New(mcp.Local{Engine: engine}, engine.Catalog(), Version, log)),
		Prometheus: promhttp.HandlerFor(reg, promhttp.HandlerOpts{}),
	}, log)

	if cfg.Server.WebDir != "" {
		srv.SetFrontend(os.DirFS(cfg.Server.WebDir))
		log.Info("serving frontend", "dir", cfg.Server.WebDir)
	}

	// Listen on the tailnet or plain TCP
	var listener net.Listener
	if tsServer != nil {
		listener, err = tsServer.Listen("tcp", ":80")
		if err != nil {
			log.Error("tsnet listen failed", "error", err)
			os.Exit(1)
		}
		log.Info("tsnet server starting", "hostname", cfg.Tailscale.Hostname)
	} else {
		addr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
		listener, err = net.Listen("tcp", addr)
		if err != nil {
			log.Error("listen failed", "addr", addr, "error", err)
			os.Exit(1)
		}
		log.Info("server starting", "addr", addr)
	}

	httpSrv := &http.Server{Handler: srv, ReadHeaderTimeout: 10 * time.Second}

	go func() {
		if err := httpSrv.Serve(listener); err != nil && err != http.ErrServerClosed {
			log.Error("server error", "error", err)
			os.Exit(1)
		}
	}()

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	sig := <-quit
	log.Info("shutting down", "signal", sig)

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := httpSrv.Shutdown(shutdownCtx); err != nil {
		log.Error("shutdown error", "error", err)
	}

	// Pending workout snapshots are flushed before the store closes.
	engine.Close()
	rest.Close()
	log.Info("server stopped")
	if err := multierr.Combine(prefs.Close(), logCloser.Close()); err != nil {
		fmt.Fprintf(os.Stderr, "closing resources: %v\n", err)
	}
}

// identityMiddleware picks how callers are identified for auth.mode.
func identityMiddleware(cfg *config.Config, ts *tsnet.Server, users identity.Resolver, log *slog.Logger) (func(http.Handler) http.Handler, error) {
	switch cfg.Auth.Mode {
	case config.AuthTailscale:
		if ts == nil {
			return nil, fmt.Errorf("auth.mode tailscale requires tailscale.enabled")
		}
		lc, err := ts.LocalClient()
		if err != nil {
			return nil, fmt.Errorf("tsnet local client: %w", err)
		}
		return server.TailscaleIdentity(lc, users, log), nil
	case config.AuthJWT:
		return server.BearerIdentity([]byte(cfg.Auth.JWTSecret), users, log), nil
	case config.AuthDev:
		log.Warn("dev auth: every request acts as one user", "login", cfg.Auth.DevUser)
		return server.DevIdentity(cfg.Auth.DevUser, users, log), nil
	}
	return nil, fmt.Errorf("unknown auth mode %q", cfg.Auth.Mode)
}
