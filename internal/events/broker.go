// Package events fans out per-user server-sent events: rest timer updates
// and post-workout notifications.
package events

import (
	"encoding/json"
	"sync"

	"github.com/meltforce/ironlog/internal/models"
)

// Event names as they appear on the SSE stream.
const (
	RestStarted   = "rest_started"
	RestTick      = "rest_tick"
	RestPaused    = "rest_paused"
	RestResumed   = "rest_resumed"
	RestExtended  = "rest_extended"
	RestExpired   = "rest_expired"
	RestCancelled = "rest_cancelled"
	Notification  = "notification"
)

// Event is one SSE message.
type Event struct {
	Name string
	Data any
}

// JSON renders the payload for the data: line.
func (e Event) JSON() string {
	b, err := json.Marshal(e.Data)
	if err != nil {
		return `{}`
	}
	return string(b)
}

// Broker keeps the subscribers of every user. Publishing never blocks: a
// subscriber whose buffer is full misses the event.
type Broker struct {
	mu   sync.Mutex
	subs map[string]map[chan Event]struct{}
	size int
}

// NewBroker returns a broker whose subscriber channels buffer size events.
func NewBroker(size int) *Broker {
	if size <= 0 {
		size = 32
	}
	return &Broker{subs: make(map[string]map[chan Event]struct{}), size: size}
}

// Publish sends e to every subscriber of userID.
func (b *Broker) Publish(userID string, e Event) {
	b.mu.Lock()
	defer b.mu.Unlock()
	for ch := range b.subs[userID] {
		select {
		case ch <- e:
		default:
			// slow subscriber, skip
		}
	}
}

// Notify publishes a workout notification.
func (b *Broker) Notify(userID string, n models.Notification) {
	b.Publish(userID, Event{Name: Notification, Data: n})
}

// Subscribe registers a new subscriber for userID. The returned cancel
// function unregisters it and closes the channel.
func (b *Broker) Subscribe(userID string) (<-chan Event, func()) {
	ch := make(chan Event, b.size)
	b.mu.Lock()
	if b.subs[userID] == nil {
		b.subs[userID] = make(map[chan Event]struct{})
	}
	b.subs[userID][ch] = struct{}{}
	b.mu.Unlock()

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			b.mu.Lock()
			delete(b.subs[userID], ch)
			if len(b.subs[userID]) == 0 {
				delete(b.subs, userID)
			}
			b.mu.Unlock()
			close(ch)
		})
	}
}

// Subscribers returns how many subscribers userID has.
func (b *Broker) Subscribers(userID string) int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.subs[userID])
}
