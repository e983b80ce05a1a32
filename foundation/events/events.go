// Package events allows for the registering and receiving of engine events.
package events

import (
	"fmt"
	"strings"
	"sync"
	"time"
)

// messageBuffer is the number of events a subscriber can fall behind before
// events are dropped for it. Websocket sends can take long.
const messageBuffer = 100

// Event represents one message raised while processing blocks and payloads.
type Event struct {
	Time    time.Time `json:"time"`
	Message string    `json:"message"`
}

type subscriber struct {
	ch       chan Event
	prefixes []string
	dropped  int
}

func (s *subscriber) wants(msg string) bool {
	if len(s.prefixes) == 0 {
		return true
	}
	for _, p := range s.prefixes {
		if strings.HasPrefix(msg, p) {
			return true
		}
	}
	return false
}

// =============================================================================

// Events maintains a mapping of unique id and channels so goroutines
// can register and receive events.
type Events struct {
	mu   sync.RWMutex
	subs map[string]*subscriber
	now  func() time.Time
}

// New constructs an events for registering and receiving events.
func New() *Events {
	return &Events{
		subs: make(map[string]*subscriber),
		now:  time.Now,
	}
}

// Shutdown closes and removes all channels that were provided by
// the call to Acquire.
func (evt *Events) Shutdown() {
	evt.mu.Lock()
	defer evt.mu.Unlock()

	for id, s := range evt.subs {
		delete(evt.subs, id)
		close(s.ch)
	}
}

// Acquire takes a unique id and returns a channel that can be used to
// receive events. When prefixes are provided only messages starting with
// one of them are delivered.
func (evt *Events) Acquire(id string, prefixes ...string) <-chan Event {
	evt.mu.Lock()
	defer evt.mu.Unlock()

	if s, exists := evt.subs[id]; exists {
		return s.ch
	}

	s := subscriber{
		ch:       make(chan Event, messageBuffer),
		prefixes: prefixes,
	}
	evt.subs[id] = &s

	return s.ch
}

// Release closes and removes the channel that was provided by the call to
// Acquire. It returns the number of events dropped for the subscriber.
func (evt *Events) Release(id string) (int, error) {
	evt.mu.Lock()
	defer evt.mu.Unlock()

	s, exists := evt.subs[id]
	if !exists {
		return 0, fmt.Errorf("id %q does not exist", id)
	}

	delete(evt.subs, id)
	close(s.ch)

	return s.dropped, nil
}

// Send signals a message to every registered channel. Send will not block
// waiting for a receiver on any given channel.
func (evt *Events) Send(msg string) {
	e := Event{
		Time:    evt.now().UTC(),
		Message: msg,
	}

	// The write lock guards the drop counters.
	evt.mu.Lock()
	defer evt.mu.Unlock()

	for _, s := range evt.subs {
		if !s.wants(msg) {
			continue
		}

		select {
		case s.ch <- e:
		default:
			s.dropped++
		}
	}
}
