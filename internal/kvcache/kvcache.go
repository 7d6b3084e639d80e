// Package kvcache keeps small per-user UI preferences (collapsed folders,
// last chosen tab, chart ranges) in a local SQLite file. Nothing in it is
// training data; losing the file only resets the UI.
package kvcache

import (
	"context"
	"crypto/sha256"
	"database/sql"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"regexp"

	_ "modernc.org/sqlite"
)

const (
	MaxKeyLen   = 128
	MaxValueLen = 64 << 10
)

var (
	// ErrInvalidKey is returned for keys outside [A-Za-z0-9._-]{1,128}.
	ErrInvalidKey = errors.New("invalid key")
	// ErrInvalidValue is returned for values that are not JSON or too large.
	ErrInvalidValue = errors.New("invalid value")
)

var keyPattern = regexp.MustCompile(`^[A-Za-z0-9._-]+$`)

// Entry is one stored preference.
type Entry struct {
	Key   string          `json:"key"`
	Value json.RawMessage `json:"value"`
	ETag  string          `json:"etag"`
}

// Cache is the SQLite-backed preference store.
type Cache struct {
	db *sql.DB
}

// Open opens (or creates) the cache database at dir/cache.db.
func Open(dir string) (*Cache, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("creating cache dir %s: %w", dir, err)
	}

	dbPath := filepath.Join(dir, "cache.db")
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("opening cache db: %w", err)
	}
	// SQLite allows one writer at a time.
	db.SetMaxOpenConns(1)

	_, err = db.Exec(`CREATE TABLE IF NOT EXISTS prefs (
		user_id    TEXT NOT NULL,
		key        TEXT NOT NULL,
		value      TEXT NOT NULL,
		etag       TEXT NOT NULL,
		updated_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
		PRIMARY KEY (user_id, key)
	)`)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("creating prefs table: %w", err)
	}

	return &Cache{db: db}, nil
}

func checkKey(key string) error {
	if len(key) == 0 || len(key) > MaxKeyLen || !keyPattern.MatchString(key) {
		return fmt.Errorf("%w: %q", ErrInvalidKey, key)
	}
	return nil
}

// ETag returns the content hash of a value.
func ETag(value []byte) string {
	sum := sha256.Sum256(value)
	return hex.EncodeToString(sum[:16])
}

// Get returns the entry stored under key.
func (c *Cache) Get(ctx context.Context, userID, key string) (Entry, bool, error) {
	if err := checkKey(key); err != nil {
		return Entry{}, false, err
	}
	var value, etag string
	err := c.db.QueryRowContext(ctx,
		`SELECT value, etag FROM prefs WHERE user_id = ? AND key = ?`,
		userID, key,
	).Scan(&value, &etag)
	if errors.Is(err, sql.ErrNoRows) {
		return Entry{}, false, nil
	}
	if err != nil {
		return Entry{}, false, fmt.Errorf("reading pref %s: %w", key, err)
	}
	return Entry{Key: key, Value: json.RawMessage(value), ETag: etag}, true, nil
}

// Put stores value under key, replacing any previous value.
func (c *Cache) Put(ctx context.Context, userID, key string, value []byte) (Entry, error) {
	if err := checkKey(key); err != nil {
		return Entry{}, err
	}
	if len(value) > MaxValueLen {
		return Entry{}, fmt.Errorf("%w: %d bytes exceeds %d", ErrInvalidValue, len(value), MaxValueLen)
	}
	if !json.Valid(value) {
		return Entry{}, fmt.Errorf("%w: not JSON", ErrInvalidValue)
	}
	etag := ETag(value)
	_, err := c.db.ExecContext(ctx,
		`INSERT OR REPLACE INTO prefs (user_id, key, value, etag, updated_at) VALUES (?, ?, ?, ?, CURRENT_TIMESTAMP)`,
		userID, key, string(value), etag,
	)
	if err != nil {
		return Entry{}, fmt.Errorf("writing pref %s: %w", key, err)
	}
	return Entry{Key: key, Value: json.RawMessage(value), ETag: etag}, nil
}

// Delete removes key. Deleting a missing key is not an error.
func (c *Cache) Delete(ctx context.Context, userID, key string) error {
	if err := checkKey(key); err != nil {
		return err
	}
	if _, err := c.db.ExecContext(ctx, `DELETE FROM prefs WHERE user_id = ? AND key = ?`, userID, key); err != nil {
		return fmt.Errorf("deleting pref %s: %w", key, err)
	}
	return nil
}

// Keys lists the user's keys in order.
func (c *Cache) Keys(ctx context.Context, userID string) ([]string, error) {
	rows, err := c.db.QueryContext(ctx, `SELECT key FROM prefs WHERE user_id = ? ORDER BY key`, userID)
	if err != nil {
		return nil, fmt.Errorf("listing prefs: %w", err)
	}
	defer rows.Close()

	keys := []string{}
	for rows.Next() {
		var k string
		if err := rows.Scan(&k); err != nil {
			return nil, fmt.Errorf("scanning pref key: %w", err)
		}
		keys = append(keys, k)
	}
	return keys, rows.Err()
}

// Close closes the cache database.
func (c *Cache) Close() error {
	return c.db.Close()
}
