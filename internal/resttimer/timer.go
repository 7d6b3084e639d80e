// Package resttimer implements the countdown shown between sets.
package resttimer

import (
	"fmt"
	"sync"
	"time"
)

// ExtendSeconds is how much Extend adds.
const ExtendSeconds = 10

// State of a rest timer.
type State int

const (
	Running State = iota
	Paused
	Expired
)

func (s State) String() string {
	switch s {
	case Running:
		return "running"
	case Paused:
		return "paused"
	case Expired:
		return "expired"
	}
	return "unknown"
}

func (s State) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

func (s *State) UnmarshalText(b []byte) error {
	switch string(b) {
	case "running":
		*s = Running
	case "paused":
		*s = Paused
	case "expired":
		*s = Expired
	default:
		return fmt.Errorf("unknown timer state %q", b)
	}
	return nil
}

// Snapshot is a point-in-time view of a timer.
type Snapshot struct {
	Remaining int   `json:"remaining_seconds"`
	Total     int   `json:"total_seconds"`
	State     State `json:"state"`
}

// Option configures a Timer.
type Option func(*Timer)

// WithInterval sets the tick period used by Start. Defaults to one second.
func WithInterval(d time.Duration) Option {
	return func(t *Timer) { t.interval = d }
}

// OnTick registers a callback run after every decrement.
func OnTick(fn func(Snapshot)) Option {
	return func(t *Timer) { t.onTick = fn }
}

// OnExpire registers the completion callback. It runs exactly once per
// arming of the timer.
func OnExpire(fn func()) Option {
	return func(t *Timer) { t.onExpire = fn }
}

// Timer counts down whole seconds. Callbacks run while the timer's lock is
// held and must not call back into the timer.
type Timer struct {
	mu        sync.Mutex
	remaining int
	total     int
	state     State
	interval  time.Duration
	onTick    func(Snapshot)
	onExpire  func()

	started bool
	running bool
	stopped bool
	stop    chan struct{}
	loops   sync.WaitGroup
}

// New returns a Running timer of seconds. A non-positive duration yields an
// Expired timer that never fires.
func New(seconds int, opts ...Option) *Timer {
	t := &Timer{remaining: seconds, total: seconds, state: Running, interval: time.Second}
	for _, opt := range opts {
		opt(t)
	}
	if seconds <= 0 {
		t.remaining, t.total, t.state = 0, 0, Expired
	}
	return t
}

// Start drives Tick from a ticker goroutine until the timer expires or is
// stopped. Calling Start again is a no-op.
func (t *Timer) Start() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.started = true
	t.startLoopLocked()
}

func (t *Timer) startLoopLocked() {
	if t.running || t.stopped || t.state == Expired {
		return
	}
	t.running = true
	t.stop = make(chan struct{})
	t.loops.Add(1)
	go t.loop(t.stop)
}

func (t *Timer) loop(stop <-chan struct{}) {
	defer t.loops.Done()
	ticker := time.NewTicker(t.interval)
	defer ticker.Stop()
	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
			if !t.tick() {
				return
			}
		}
	}
}

// tick reports whether the loop should keep going.
func (t *Timer) tick() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.stopped {
		return false
	}
	t.tickLocked()
	if t.state == Expired {
		t.running = false
		return false
	}
	return true
}

// Tick decrements the timer by one second while Running.
func (t *Timer) Tick() {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.stopped {
		return
	}
	t.tickLocked()
}

func (t *Timer) tickLocked() {
	if t.state != Running {
		return
	}
	t.remaining--
	if t.remaining <= 0 {
		t.expireLocked()
		return
	}
	if t.onTick != nil {
		t.onTick(t.snapshotLocked())
	}
}

func (t *Timer) expireLocked() {
	t.remaining = 0
	t.state = Expired
	if t.onExpire != nil {
		t.onExpire()
	}
}

// TogglePause switches between Running and Paused. Remaining time is kept.
func (t *Timer) TogglePause() {
	t.mu.Lock()
	defer t.mu.Unlock()
	switch t.state {
	case Running:
		t.state = Paused
	case Paused:
		t.state = Running
	}
}

// Extend adds ExtendSeconds. An expired timer is re-armed and resumes
// counting.
func (t *Timer) Extend() {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.stopped {
		return
	}
	t.remaining += ExtendSeconds
	t.total += ExtendSeconds
	if t.state == Expired {
		t.state = Running
		if t.started {
			t.startLoopLocked()
		}
	}
}

// Skip ends the rest now. Completion fires unless the timer already expired.
func (t *Timer) Skip() {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.stopped || t.state == Expired {
		return
	}
	t.expireLocked()
}

// Stop halts the timer. After Stop returns no callback runs and no
// goroutine of the timer remains. Safe to call more than once.
func (t *Timer) Stop() {
	t.mu.Lock()
	if !t.stopped {
		t.stopped = true
		if t.running {
			t.running = false
			close(t.stop)
		}
	}
	t.mu.Unlock()
	t.loops.Wait()
}

// Snapshot returns the current state.
func (t *Timer) Snapshot() Snapshot {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.snapshotLocked()
}

func (t *Timer) snapshotLocked() Snapshot {
	return Snapshot{Remaining: t.remaining, Total: t.total, State: t.state}
}
