package ingest

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/meltforce/ironlog/internal/gateway/memgw"
	"github.com/meltforce/ironlog/internal/models"
)

func newJournal(t *testing.T) *Journal {
	t.Helper()
	j := NewJournal(memgw.New(), slog.New(slog.NewTextHandler(io.Discard, nil)))
	clock := time.Date(2026, 3, 1, 8, 0, 0, 0, time.UTC)
	j.now = func() time.Time {
		clock = clock.Add(250 * time.Millisecond)
		return clock
	}
	return j
}

func TestJournalRecordSuccess(t *testing.T) {
	j := newJournal(t)
	ctx := context.Background()

	res, err := j.Record(ctx, "u1", "alpha", func() (*Result, error) {
		return &Result{SessionsReceived: 3, SessionsInserted: 3, SessionsReplaced: 1, SetsReceived: 40}, nil
	})
	require.NoError(t, err)
	assert.Equal(t, 3, res.SessionsInserted)

	logs, err := j.Recent(ctx, "u1", 0)
	require.NoError(t, err)
	require.Len(t, logs, 1)
	l := logs[0]
	assert.Equal(t, models.ImportSuccess, l.Status)
	assert.Equal(t, "alpha", l.Source)
	assert.Equal(t, 1, l.SessionsReplaced)
	assert.Equal(t, 40, l.SetsReceived)
	require.NotNil(t, l.DurationMs)
	assert.Equal(t, 250, *l.DurationMs)
	assert.Nil(t, l.ErrorMessage)
}

func TestJournalRecordError(t *testing.T) {
	j := newJournal(t)
	ctx := context.Background()

	_, err := j.Record(ctx, "u1", "alpha", func() (*Result, error) {
		return nil, errors.New("line 3: bad set row")
	})
	require.Error(t, err)

	logs, err := j.Recent(ctx, "u1", 0)
	require.NoError(t, err)
	require.Len(t, logs, 1)
	assert.Equal(t, models.ImportError, logs[0].Status)
	require.NotNil(t, logs[0].ErrorMessage)
	assert.Equal(t, "line 3: bad set row", *logs[0].ErrorMessage)
}

func TestJournalRecentOrderAndScope(t *testing.T) {
	j := newJournal(t)
	ctx := context.Background()
	ok := func() (*Result, error) { return &Result{}, nil }

	for _, src := range []string{"first", "second", "third"} {
		_, err := j.Record(ctx, "u1", src, ok)
		require.NoError(t, err)
	}
	_, err := j.Record(ctx, "u2", "other", ok)
	require.NoError(t, err)

	logs, err := j.Recent(ctx, "u1", 2)
	require.NoError(t, err)
	require.Len(t, logs, 2)
	assert.Equal(t, "third", logs[0].Source)
	assert.Equal(t, "second", logs[1].Source)

	logs, err = j.Recent(ctx, "u2", 0)
	require.NoError(t, err)
	require.Len(t, logs, 1)
	assert.Equal(t, "other", logs[0].Source)
}
