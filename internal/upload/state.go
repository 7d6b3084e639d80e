package upload

import (
	"crypto/sha256"
	"database/sql"
	"encoding/hex"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"
)

// SentExport is one export the server accepted.
type SentExport struct {
	Path     string
	Format   string
	Hash     string
	Sessions int
	SentAt   time.Time
}

// StateDB remembers which exports were already accepted by the server.
// An export counts as sent only while its size and content hash match.
type StateDB struct {
	db *sql.DB
}

// OpenStateDB opens (or creates) dir/state.db.
func OpenStateDB(dir string) (*StateDB, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("creating state dir %s: %w", dir, err)
	}

	db, err := sql.Open("sqlite", filepath.Join(dir, "state.db"))
	if err != nil {
		return nil, fmt.Errorf("opening state db: %w", err)
	}
	// A single connection serialises writers.
	db.SetMaxOpenConns(1)

	_, err = db.Exec(`CREATE TABLE IF NOT EXISTS sent_exports (
		path     TEXT PRIMARY KEY,
		format   TEXT NOT NULL,
		size     INTEGER NOT NULL,
		hash     TEXT NOT NULL,
		sessions INTEGER NOT NULL DEFAULT 0,
		sent_at  INTEGER NOT NULL
	)`)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("creating state table: %w", err)
	}

	return &StateDB{db: db}, nil
}

// IsUploaded reports whether relPath was sent with the same size and hash.
func (s *StateDB) IsUploaded(relPath string, size int64, hash string) (bool, error) {
	var n int
	err := s.db.QueryRow(
		`SELECT COUNT(*) FROM sent_exports WHERE path = ? AND size = ? AND hash = ?`,
		relPath, size, hash,
	).Scan(&n)
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

// MarkUploaded records an accepted export, replacing an older entry for the
// same path.
func (s *StateDB) MarkUploaded(relPath, format string, size int64, hash string, sessions int) error {
	_, err := s.db.Exec(
		`INSERT OR REPLACE INTO sent_exports (path, format, size, hash, sessions, sent_at)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		relPath, format, size, hash, sessions, time.Now().Unix(),
	)
	return err
}

// Forget drops relPath so the next run sends it again.
func (s *StateDB) Forget(relPath string) error {
	_, err := s.db.Exec(`DELETE FROM sent_exports WHERE path = ?`, relPath)
	return err
}

// Sent lists accepted exports, most recent first.
func (s *StateDB) Sent() ([]SentExport, error) {
	rows, err := s.db.Query(
		`SELECT path, format, hash, sessions, sent_at FROM sent_exports ORDER BY sent_at DESC, path`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []SentExport
	for rows.Next() {
		var e SentExport
		var sentAt int64
		if err := rows.Scan(&e.Path, &e.Format, &e.Hash, &e.Sessions, &sentAt); err != nil {
			return nil, err
		}
		e.SentAt = time.Unix(sentAt, 0)
		out = append(out, e)
	}
	return out, rows.Err()
}

// Close closes the state database.
func (s *StateDB) Close() error {
	return s.db.Close()
}

// HashFile returns the hex SHA-256 of the file at path.
func HashFile(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", err
	}
	defer f.Close()

	h := sha256.New()
	if _, err := io.Copy(h, f); err != nil {
		return "", err
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}
