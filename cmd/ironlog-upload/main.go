package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/meltforce/ironlog/internal/logging"
	"github.com/meltforce/ironlog/internal/upload"
)

// Version is set at build time via -ldflags.
var Version = "dev"

func main() {
	serverURL := flag.String("server", "", "ironlog server URL (e.g. https://ironlog.tail1234.ts.net)")
	dir := flag.String("path", "", "directory holding Alpha Progression CSV exports")
	token := flag.String("token", os.Getenv("IRONLOG_TOKEN"), "bearer token (auth.mode jwt); defaults to $IRONLOG_TOKEN")
	stateDir := flag.String("state-dir", "", "where upload state is kept (default ~/.ironlog-upload)")
	forget := flag.String("forget", "", "forget that this export (path relative to -path) was sent, then exit")
	dryRun := flag.Bool("dry-run", false, "parse exports but don't send them")
	logLevel := flag.String("log-level", "info", "log level: debug, info, warn or error")
	version := flag.Bool("version", false, "print version and exit")
	flag.Parse()

	if *version {
		fmt.Println("ironlog-upload", Version)
		return
	}

	log := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: logging.Level(*logLevel)}))

	if *dir == "" {
		fmt.Fprintf(os.Stderr, "Usage: ironlog-upload -server <URL> -path <exports dir> [-token T] [-dry-run]\n\n")
		flag.PrintDefaults()
		os.Exit(1)
	}
	if *serverURL == "" && !*dryRun && *forget == "" {
		fmt.Fprintf(os.Stderr, "Error: -server is required (or use -dry-run)\n")
		os.Exit(1)
	}

	if *stateDir == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			log.Error("failed to get home directory", "error", err)
			os.Exit(1)
		}
		*stateDir = filepath.Join(home, ".ironlog-upload")
	}
	state, err := upload.OpenStateDB(*stateDir)
	if err != nil {
		log.Error("failed to open state database", "error", err)
		os.Exit(1)
	}
	defer state.Close()

	if *forget != "" {
		if err := state.Forget(*forget); err != nil {
			log.Error("forget failed", "path", *forget, "error", err)
			os.Exit(1)
		}
		log.Info("export will be sent again", "path", *forget)
		return
	}

	var client upload.Sender
	if *dryRun {
		log.Info("DRY RUN mode, exports are parsed but not sent")
	} else {
		client = upload.NewClient(*serverURL, *token)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	stats, err := upload.New(client, state, *dir, *dryRun, log).Run(ctx)
	printStats(stats)
	if err != nil {
		log.Error("upload failed", "error", err)
		os.Exit(1)
	}
	log.Info("upload complete")
}

func printStats(stats *upload.Stats) {
	fmt.Println()
	fmt.Println("=== Upload Summary ===")
	fmt.Printf("  Files total:      %d\n", stats.FilesTotal)
	fmt.Printf("  Files uploaded:   %d\n", stats.FilesUploaded)
	fmt.Printf("  Files skipped:    %d (already uploaded)\n", stats.FilesSkipped)
	fmt.Printf("  Files errored:    %d\n", stats.FilesErrored)
	fmt.Println()
	fmt.Printf("  Sessions:         %d\n", stats.SessionsSent)
	fmt.Printf("  Replaced:         %d\n", stats.SessionsReplaced)
	fmt.Printf("  Sets:             %d\n", stats.SetsSent)
	fmt.Printf("  Personal records: %d\n", stats.PersonalRecords)
	fmt.Printf("  Achievements:     %d\n", stats.Achievements)
	fmt.Println()
}
