package workout

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/meltforce/ironlog/internal/gateway"
	"github.com/meltforce/ironlog/internal/metrics"
)

const snapshotTimeout = 10 * time.Second

type pendingSnapshot struct {
	rowID string
	patch gateway.Record
}

// snapshotWriter persists active workout snapshots in the background. Only
// the latest snapshot per user is kept; a failed write is logged and
// dropped, and the next successful one carries the newer state.
type snapshotWriter struct {
	gw      gateway.Gateway
	log     *slog.Logger
	metrics *metrics.Manager

	mu      sync.Mutex
	pending map[string]pendingSnapshot

	// writeMu is held for the duration of every write.
	writeMu sync.Mutex

	wake      chan struct{}
	quit      chan struct{}
	done      chan struct{}
	closeOnce sync.Once
}

func newSnapshotWriter(gw gateway.Gateway, m *metrics.Manager, log *slog.Logger) *snapshotWriter {
	w := &snapshotWriter{
		gw:      gw,
		log:     log,
		metrics: m,
		pending: make(map[string]pendingSnapshot),
		wake:    make(chan struct{}, 1),
		quit:    make(chan struct{}),
		done:    make(chan struct{}),
	}
	go w.run()
	return w
}

func (w *snapshotWriter) run() {
	defer close(w.done)
	for {
		select {
		case <-w.wake:
			w.drain()
		case <-w.quit:
			w.drain()
			return
		}
	}
}

// enqueue replaces the user's pending snapshot.
func (w *snapshotWriter) enqueue(userID, rowID string, patch gateway.Record) {
	w.mu.Lock()
	w.pending[userID] = pendingSnapshot{rowID: rowID, patch: patch}
	w.mu.Unlock()

	select {
	case w.wake <- struct{}{}:
	default:
	}
}

// discard drops the user's pending snapshot and waits for a write already
// in progress. Afterwards no snapshot of the user reaches the store until
// the next enqueue.
func (w *snapshotWriter) discard(userID string) {
	w.mu.Lock()
	delete(w.pending, userID)
	w.mu.Unlock()

	w.waitInFlight()
}

// flush writes everything pending before returning.
func (w *snapshotWriter) flush() {
	w.drain()
	w.waitInFlight()
}

func (w *snapshotWriter) waitInFlight() {
	w.writeMu.Lock()
	//nolint:staticcheck // empty critical section
	w.writeMu.Unlock()
}

func (w *snapshotWriter) drain() {
	for w.writeOne() {
	}
}

func (w *snapshotWriter) writeOne() bool {
	w.mu.Lock()
	var (
		userID string
		snap   pendingSnapshot
		found  bool
	)
	for id, s := range w.pending {
		userID, snap, found = id, s, true
		break
	}
	if !found {
		w.mu.Unlock()
		return false
	}
	delete(w.pending, userID)
	// Taking writeMu before releasing mu lets discard observe this write.
	w.writeMu.Lock()
	w.mu.Unlock()
	defer w.writeMu.Unlock()

	ctx, cancel := context.WithTimeout(context.Background(), snapshotTimeout)
	defer cancel()

	// Update, never upsert: a row deleted by finish or cancel stays deleted.
	err := gateway.ForUser(w.gw, userID).Update(ctx, gateway.ActiveWorkouts,
		[]gateway.Filter{gateway.Eq("id", snap.rowID)}, snap.patch)
	if err != nil {
		w.metrics.CounterSnapshotSaveFailure.Inc()
		w.log.Warn("saving active workout snapshot", "user", userID, "workout", snap.rowID, "error", err)
	}
	return true
}

func (w *snapshotWriter) close() {
	w.closeOnce.Do(func() {
		close(w.quit)
	})
	<-w.done
}
