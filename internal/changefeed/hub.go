// Package changefeed fans row change events out to subscribers.
//
// Events reach the Hub from the services that write rows (memory driver),
// from a Redis channel (redis driver) or from Postgres NOTIFY (postgres
// driver). Subscribers only ever receive events of the rows they own.
package changefeed

import (
	"context"
	"encoding/json"
	"sync"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/go-petr/unipay/internal/domain"
)

// DefaultBuffer is the per subscriber event buffer.
const DefaultBuffer = 16

// Filter selects events for a subscription.
type Filter struct {
	UserID uuid.UUID
	Tables []string
}

func (f Filter) match(ev domain.ChangeEvent) bool {
	if ev.UserID != f.UserID {
		return false
	}

	if len(f.Tables) == 0 {
		return true
	}

	for _, t := range f.Tables {
		if t == ev.Table {
			return true
		}
	}

	return false
}

// Subscription receives the events matching its filter until closed.
type Subscription struct {
	hub    *Hub
	filter Filter
	events chan domain.ChangeEvent
}

// Events returns the channel events are delivered on. It is closed by Close.
func (s *Subscription) Events() <-chan domain.ChangeEvent {
	return s.events
}

// Close unsubscribes from the hub. It is safe to call more than once.
func (s *Subscription) Close() {
	s.hub.remove(s)
}

// Hub is an in-process fan-out of change events.
type Hub struct {
	mu     sync.RWMutex
	subs   map[*Subscription]struct{}
	buffer int
	closed bool
	logger zerolog.Logger
}

// NewHub returns a hub whose subscribers buffer up to buffer events.
func NewHub(buffer int, logger zerolog.Logger) *Hub {
	if buffer <= 0 {
		buffer = DefaultBuffer
	}

	return &Hub{
		subs:   make(map[*Subscription]struct{}),
		buffer: buffer,
		logger: logger,
	}
}

// Subscribe registers a subscription for the given filter.
func (h *Hub) Subscribe(f Filter) *Subscription {
	s := &Subscription{
		hub:    h,
		filter: f,
		events: make(chan domain.ChangeEvent, h.buffer),
	}

	h.mu.Lock()
	defer h.mu.Unlock()

	if h.closed {
		close(s.events)
		return s
	}

	h.subs[s] = struct{}{}

	return s
}

// Publish delivers ev to every matching subscriber without blocking.
//
// An event is dropped for a subscriber whose buffer is full.
func (h *Hub) Publish(_ context.Context, ev domain.ChangeEvent) error {
	h.mu.RLock()
	defer h.mu.RUnlock()

	for s := range h.subs {
		if !s.filter.match(ev) {
			continue
		}

		select {
		case s.events <- ev:
		default:
			h.logger.Warn().
				Str("table", ev.Table).
				Str("user_id", ev.UserID.String()).
				Msg("subscriber buffer full, event dropped")
		}
	}

	return nil
}

// Len returns the number of live subscriptions.
func (h *Hub) Len() int {
	h.mu.RLock()
	defer h.mu.RUnlock()

	return len(h.subs)
}

// Close closes every subscription. Later subscriptions are born closed.
func (h *Hub) Close() {
	h.mu.Lock()
	defer h.mu.Unlock()

	for s := range h.subs {
		delete(h.subs, s)
		close(s.events)
	}

	h.closed = true
}

func (h *Hub) remove(s *Subscription) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if _, ok := h.subs[s]; !ok {
		return
	}

	delete(h.subs, s)
	close(s.events)
}

// Discard drops every published event. It is used when the database
// itself emits change notifications.
type Discard struct{}

// Publish implements the publisher interface of the services.
func (Discard) Publish(context.Context, domain.ChangeEvent) error {
	return nil
}

// DecodeEvent parses a JSON encoded change event.
func DecodeEvent(payload []byte) (domain.ChangeEvent, error) {
	var ev domain.ChangeEvent

	err := json.Unmarshal(payload, &ev)

	return ev, err
}
