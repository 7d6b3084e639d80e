package ingest

import (
	"context"
	"log/slog"
	"time"

	"github.com/meltforce/ironlog/internal/gateway"
	"github.com/meltforce/ironlog/internal/models"
)

// Journal keeps a per-user log of imports. Failing to write the journal
// never fails the import itself.
type Journal struct {
	gw  gateway.Gateway
	now func() time.Time
	log *slog.Logger
}

// NewJournal returns a journal stored in the import_logs collection.
func NewJournal(gw gateway.Gateway, log *slog.Logger) *Journal {
	return &Journal{gw: gw, now: time.Now, log: log}
}

// Record runs an import of source for userID, journaling it as running and
// then as success or error.
func (j *Journal) Record(ctx context.Context, userID, source string, run func() (*Result, error)) (*Result, error) {
	scoped := gateway.ForUser(j.gw, userID)
	start := j.now()

	var logID string
	entry, err := gateway.Encode(models.ImportLog{
		CreatedAt: start.UTC(),
		Source:    source,
		Status:    models.ImportRunning,
	})
	if err == nil {
		var rec gateway.Record
		if rec, err = scoped.Insert(ctx, gateway.ImportLogs, entry); err == nil {
			logID, _ = rec["id"].(string)
		}
	}
	if err != nil {
		j.log.Warn("failed to create import log", "source", source, "user", userID, "error", err)
	}

	result, runErr := run()

	if logID == "" {
		return result, runErr
	}
	ms := int(j.now().Sub(start).Milliseconds())
	patch := gateway.Record{
		"status":      string(models.ImportSuccess),
		"duration_ms": ms,
	}
	if result != nil {
		patch["sessions_received"] = result.SessionsReceived
		patch["sessions_inserted"] = result.SessionsInserted
		patch["sessions_replaced"] = result.SessionsReplaced
		patch["sets_received"] = result.SetsReceived
	}
	if runErr != nil {
		patch["status"] = string(models.ImportError)
		patch["error_message"] = runErr.Error()
	}
	// The import's own context may already be spent.
	uctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
	defer cancel()
	if err := scoped.Update(uctx, gateway.ImportLogs, []gateway.Filter{gateway.Eq("id", logID)}, patch); err != nil {
		j.log.Warn("failed to update import log", "id", logID, "error", err)
	}
	return result, runErr
}

// Recent returns userID's latest imports, newest first. A non-positive
// limit means 50.
func (j *Journal) Recent(ctx context.Context, userID string, limit int) ([]models.ImportLog, error) {
	if limit <= 0 {
		limit = 50
	}
	recs, err := gateway.ForUser(j.gw, userID).ListWhere(ctx, gateway.ImportLogs, nil,
		&gateway.Order{Field: "created_at", Desc: true})
	if err != nil {
		return nil, err
	}
	if len(recs) > limit {
		recs = recs[:limit]
	}
	return gateway.DecodeAll[models.ImportLog](recs)
}
