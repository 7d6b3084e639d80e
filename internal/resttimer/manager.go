package resttimer

import (
	"log/slog"
	"sync"
	"time"

	"github.com/meltforce/ironlog/internal/events"
)

// Publisher receives timer events for a user.
type Publisher interface {
	Publish(userID string, e events.Event)
}

// Status is the rest timer of one user as served to clients.
type Status struct {
	ExerciseID string `json:"exercise_id"`
	SetIndex   int    `json:"set_index"`
	Snapshot
}

type entry struct {
	timer      *Timer
	exerciseID string
	setIndex   int
}

// Manager owns at most one rest timer per user.
type Manager struct {
	mu       sync.Mutex
	timers   map[string]*entry
	pub      Publisher
	interval time.Duration
	log      *slog.Logger
}

// NewManager returns a manager publishing to pub. interval is the tick
// period; zero means one second.
func NewManager(pub Publisher, interval time.Duration, log *slog.Logger) *Manager {
	if interval <= 0 {
		interval = time.Second
	}
	return &Manager{
		timers:   make(map[string]*entry),
		pub:      pub,
		interval: interval,
		log:      log,
	}
}

// StartRest replaces the user's timer with a new countdown of seconds for
// the given set.
func (m *Manager) StartRest(userID, exerciseID string, setIndex, seconds int) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if old, ok := m.timers[userID]; ok {
		old.timer.Stop()
	}
	if seconds <= 0 {
		delete(m.timers, userID)
		return
	}

	e := &entry{exerciseID: exerciseID, setIndex: setIndex}
	e.timer = New(seconds,
		WithInterval(m.interval),
		OnTick(func(s Snapshot) {
			m.publish(userID, events.RestTick, e.status(s))
		}),
		OnExpire(func() {
			m.publish(userID, events.RestExpired, e.status(Snapshot{State: Expired}))
		}),
	)
	m.timers[userID] = e
	e.timer.Start()

	m.log.Debug("rest started", "user", userID, "exercise", exerciseID, "set", setIndex, "seconds", seconds)
	m.publish(userID, events.RestStarted, e.status(e.timer.Snapshot()))
}

// CancelRest stops and forgets the user's timer.
func (m *Manager) CancelRest(userID string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	e, ok := m.timers[userID]
	if !ok {
		return
	}
	e.timer.Stop()
	delete(m.timers, userID)
	m.publish(userID, events.RestCancelled, e.status(e.timer.Snapshot()))
}

// Status returns the user's current timer.
func (m *Manager) Status(userID string) (Status, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	e, ok := m.timers[userID]
	if !ok {
		return Status{}, false
	}
	return e.status(e.timer.Snapshot()), true
}

// TogglePause pauses or resumes the user's timer.
func (m *Manager) TogglePause(userID string) (Status, bool) {
	return m.apply(userID, func(t *Timer) string {
		t.TogglePause()
		if t.Snapshot().State == Paused {
			return events.RestPaused
		}
		return events.RestResumed
	})
}

// Extend adds ExtendSeconds to the user's timer.
func (m *Manager) Extend(userID string) (Status, bool) {
	return m.apply(userID, func(t *Timer) string {
		t.Extend()
		return events.RestExtended
	})
}

// Skip ends the user's rest immediately.
func (m *Manager) Skip(userID string) (Status, bool) {
	return m.apply(userID, func(t *Timer) string {
		t.Skip()
		return ""
	})
}

func (m *Manager) apply(userID string, fn func(*Timer) string) (Status, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	e, ok := m.timers[userID]
	if !ok {
		return Status{}, false
	}
	name := fn(e.timer)
	st := e.status(e.timer.Snapshot())
	if name != "" {
		m.publish(userID, name, st)
	}
	return st, true
}

// Close stops every timer.
func (m *Manager) Close() {
	m.mu.Lock()
	defer m.mu.Unlock()
	for id, e := range m.timers {
		e.timer.Stop()
		delete(m.timers, id)
	}
}

func (m *Manager) publish(userID, name string, st Status) {
	if m.pub == nil {
		return
	}
	m.pub.Publish(userID, events.Event{Name: name, Data: st})
}

func (e *entry) status(s Snapshot) Status {
	return Status{ExerciseID: e.exerciseID, SetIndex: e.setIndex, Snapshot: s}
}
