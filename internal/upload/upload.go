// Package upload sends workout app exports found on disk to a remote
// ironlog server, remembering what was already sent.
package upload

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"

	"github.com/meltforce/ironlog/internal/ingest/alpha"
)

// Stats tracks upload progress.
type Stats struct {
	FilesTotal    int
	FilesUploaded int
	FilesSkipped  int
	FilesErrored  int

	SessionsSent     int
	SessionsReplaced int
	SetsSent         int
	PersonalRecords  int
	Achievements     int
}

// Sender delivers one export to the server.
type Sender interface {
	SendExport(ctx context.Context, format string, data []byte) (*Response, error)
}

// Uploader walks a directory of Alpha Progression CSV exports and POSTs the
// new or changed ones to the ironlog server.
type Uploader struct {
	client Sender
	state  *StateDB
	dir    string
	dryRun bool
	log    *slog.Logger
	stats  Stats
}

// New creates a new Uploader. client may be nil in dry-run mode.
func New(client Sender, state *StateDB, dir string, dryRun bool, log *slog.Logger) *Uploader {
	return &Uploader{
		client: client,
		state:  state,
		dir:    dir,
		dryRun: dryRun,
		log:    log,
	}
}

// Run uploads every *.csv file below the directory, oldest name first.
// Files that fail are counted and skipped; a cancelled context stops the
// run.
func (u *Uploader) Run(ctx context.Context) (*Stats, error) {
	files, err := exports(u.dir)
	if err != nil {
		return &u.stats, err
	}

	for _, f := range files {
		if err := ctx.Err(); err != nil {
			return &u.stats, err
		}
		u.stats.FilesTotal++
		if err := u.processFile(ctx, f); err != nil {
			u.log.Warn("upload failed", "file", f, "error", err)
			u.stats.FilesErrored++
		}
	}
	return &u.stats, nil
}

func exports(dir string) ([]string, error) {
	var files []string
	err := filepath.WalkDir(dir, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.IsDir() && filepath.Ext(path) == ".csv" {
			files = append(files, path)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("walking %s: %w", dir, err)
	}
	sort.Strings(files)
	return files, nil
}

func (u *Uploader) processFile(ctx context.Context, path string) error {
	relPath, _ := filepath.Rel(u.dir, path)
	info, err := os.Stat(path)
	if err != nil {
		return err
	}
	hash, err := HashFile(path)
	if err != nil {
		return fmt.Errorf("hashing: %w", err)
	}

	uploaded, err := u.state.IsUploaded(relPath, info.Size(), hash)
	if err != nil {
		return fmt.Errorf("checking state: %w", err)
	}
	if uploaded {
		u.stats.FilesSkipped++
		return nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}

	if u.dryRun {
		sessions, err := alpha.Parse(bytes.NewReader(data))
		if err != nil {
			return fmt.Errorf("parsing: %w", err)
		}
		u.log.Info("would upload", "file", relPath, "sessions", len(sessions))
		u.stats.SessionsSent += len(sessions)
		return nil
	}

	resp, err := u.client.SendExport(ctx, "alpha", data)
	if err != nil {
		return err
	}
	if err := u.state.MarkUploaded(relPath, "alpha", info.Size(), hash, resp.Import.SessionsInserted); err != nil {
		return fmt.Errorf("recording upload: %w", err)
	}

	u.stats.FilesUploaded++
	u.stats.SessionsSent += resp.Import.SessionsInserted
	u.stats.SessionsReplaced += resp.Import.SessionsReplaced
	u.stats.SetsSent += resp.Import.SetsReceived
	u.stats.PersonalRecords = len(resp.Resync.PersonalRecords)
	u.stats.Achievements = len(resp.Resync.Achievements)
	u.log.Info("uploaded", "file", relPath, "sessions", resp.Import.SessionsInserted)
	return nil
}
