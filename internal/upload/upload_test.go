package upload

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/meltforce/ironlog/internal/ingest"
)

const export = `"Push · Day 1";"2026-02-17 5:04 h";"1:12 hr"
"1. Bench Press · Barbell · 6 reps";"WU1 · 47,5 kg · 8 reps"
#;KG;REPS;RIR
1;102,5;6;0
2;100;6;0
`

var discard = slog.New(slog.NewTextHandler(io.Discard, nil))

type importServer struct {
	*httptest.Server
	calls  atomic.Int32
	status atomic.Int32
}

// newImportServer answers imports with a fixed result, or with status when
// it is set.
func newImportServer(t *testing.T) *importServer {
	t.Helper()
	s := &importServer{}
	s.Server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		s.calls.Add(1)
		if r.URL.Path != "/api/v1/import/alpha" || r.Method != http.MethodPost {
			http.NotFound(w, r)
			return
		}
		if r.Header.Get("Authorization") != "Bearer tok" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		if code := s.status.Load(); code != 0 {
			w.WriteHeader(int(code))
			return
		}
		body, _ := io.ReadAll(r.Body)
		if len(body) == 0 {
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		json.NewEncoder(w).Encode(map[string]any{
			"import": ingest.Result{SessionsReceived: 1, SessionsInserted: 1, SetsReceived: 2},
			"resync": map[string]any{
				"personal_records": []map[string]any{{"exercise_name": "Bench Press"}},
				"achievements":     []map[string]any{{"achievement_id": "first_workout"}},
			},
		})
	}))
	t.Cleanup(s.Close)
	return s
}

func writeExport(t *testing.T, dir, name, content string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(filepath.Join(dir, name)), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte(content), 0o644))
}

func openState(t *testing.T) *StateDB {
	t.Helper()
	st, err := OpenStateDB(t.TempDir())
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() })
	return st
}

func TestClientSendExport(t *testing.T) {
	srv := newImportServer(t)
	c := NewClient(srv.URL+"/", "tok")

	resp, err := c.SendExport(context.Background(), "alpha", []byte(export))
	require.NoError(t, err)
	assert.Equal(t, 1, resp.Import.SessionsInserted)
	assert.Equal(t, 2, resp.Import.SetsReceived)
	assert.Len(t, resp.Resync.PersonalRecords, 1)
	assert.Len(t, resp.Resync.Achievements, 1)
}

func TestClientDoesNotRetryClientErrors(t *testing.T) {
	srv := newImportServer(t)
	c := NewClient(srv.URL, "wrong")

	_, err := c.SendExport(context.Background(), "alpha", []byte(export))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "status 401")
	assert.EqualValues(t, 1, srv.calls.Load())
}

func TestClientRetriesServerErrors(t *testing.T) {
	srv := newImportServer(t)
	srv.status.Store(http.StatusBadGateway)
	c := NewClient(srv.URL, "tok")
	c.backoff = time.Millisecond

	_, err := c.SendExport(context.Background(), "alpha", []byte(export))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "after 3 attempts")
	assert.EqualValues(t, 3, srv.calls.Load())
}

func TestUploaderSkipsSentExports(t *testing.T) {
	srv := newImportServer(t)
	dir := t.TempDir()
	writeExport(t, dir, "2026-02.csv", export)
	writeExport(t, dir, "old/2026-01.csv", export)
	writeExport(t, dir, "notes.txt", "not an export")
	st := openState(t)

	stats, err := New(NewClient(srv.URL, "tok"), st, dir, false, discard).Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, stats.FilesTotal)
	assert.Equal(t, 2, stats.FilesUploaded)
	assert.Equal(t, 2, stats.SessionsSent)
	assert.Equal(t, 4, stats.SetsSent)
	assert.Equal(t, 1, stats.PersonalRecords)

	// Unchanged files are not sent again.
	stats, err = New(NewClient(srv.URL, "tok"), st, dir, false, discard).Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, stats.FilesSkipped)
	assert.Equal(t, 0, stats.FilesUploaded)
	assert.EqualValues(t, 2, srv.calls.Load())

	// A changed export is sent again.
	writeExport(t, dir, "2026-02.csv", export+"3;95;6;1\n")
	stats, err = New(NewClient(srv.URL, "tok"), st, dir, false, discard).Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, stats.FilesUploaded)
	assert.Equal(t, 1, stats.FilesSkipped)

	sent, err := st.Sent()
	require.NoError(t, err)
	require.Len(t, sent, 2)
	assert.Equal(t, "alpha", sent[0].Format)
	assert.Equal(t, 1, sent[0].Sessions)
}

func TestUploaderCountsFailures(t *testing.T) {
	srv := newImportServer(t)
	srv.status.Store(http.StatusBadRequest)
	dir := t.TempDir()
	writeExport(t, dir, "bad.csv", export)
	st := openState(t)

	stats, err := New(NewClient(srv.URL, "tok"), st, dir, false, discard).Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, stats.FilesErrored)

	// Failed files stay pending.
	sent, err := st.Sent()
	require.NoError(t, err)
	assert.Empty(t, sent)
}

func TestUploaderDryRun(t *testing.T) {
	dir := t.TempDir()
	writeExport(t, dir, "a.csv", export)
	st := openState(t)

	stats, err := New(nil, st, dir, true, discard).Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, stats.SessionsSent)
	assert.Equal(t, 0, stats.FilesUploaded)

	sent, err := st.Sent()
	require.NoError(t, err)
	assert.Empty(t, sent)
}

func TestStateForget(t *testing.T) {
	st := openState(t)
	require.NoError(t, st.MarkUploaded("a.csv", "alpha", 10, "h", 3))

	ok, err := st.IsUploaded("a.csv", 10, "h")
	require.NoError(t, err)
	assert.True(t, ok)
	ok, err = st.IsUploaded("a.csv", 10, "other")
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, st.Forget("a.csv"))
	ok, err = st.IsUploaded("a.csv", 10, "h")
	require.NoError(t, err)
	assert.False(t, ok)
}
