package realtime

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"

	"github.com/playperu/pubconquest/internal/conquest"
)

const subscriberBuffer = 64

// Subscription receives events for one connected client. PlayerID is empty
// for spectators.
type Subscription struct {
	C        <-chan Event
	ch       chan Event
	playerID string
}

// Sink forwards events beyond this process.
type Sink interface {
	Forward(ctx context.Context, e Event) error
}

// Hub is an in-process pub/sub for store changes and notifications. Slow
// subscribers lose events rather than blocking writers; clients recover by
// refetching the snapshot.
type Hub struct {
	mu     sync.RWMutex
	subs   map[*Subscription]struct{}
	origin string
	out    chan Event
	logger *slog.Logger

	dropped atomic.Int64
}

// NewHub creates a hub. origin identifies this process on shared relays.
func NewHub(logger *slog.Logger, origin string) *Hub {
	return &Hub{
		subs:   make(map[*Subscription]struct{}),
		origin: origin,
		out:    make(chan Event, 256),
		logger: logger,
	}
}

func (h *Hub) Origin() string { return h.origin }

// Dropped reports how many events were discarded for slow receivers.
func (h *Hub) Dropped() int64 { return h.dropped.Load() }

func (h *Hub) Subscribe(playerID string) *Subscription {
	ch := make(chan Event, subscriberBuffer)
	sub := &Subscription{C: ch, ch: ch, playerID: playerID}
	h.mu.Lock()
	h.subs[sub] = struct{}{}
	h.mu.Unlock()
	return sub
}

func (h *Hub) Unsubscribe(sub *Subscription) {
	h.mu.Lock()
	delete(h.subs, sub)
	h.mu.Unlock()
}

func (h *Hub) Subscribers() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.subs)
}

// Publish fans a committed change out to local subscribers and relays.
func (h *Hub) Publish(c Change) {
	h.emit(Event{Type: EventChange, Change: &c})
}

// Notify fans a notification out to every subscriber except the player it
// names.
func (h *Hub) Notify(_ context.Context, n conquest.Notification) {
	h.emit(Event{Type: EventNotification, Notification: &n})
}

func (h *Hub) emit(e Event) {
	e.Origin = h.origin
	h.Deliver(e)
	select {
	case h.out <- e:
	default:
		h.dropped.Add(1)
	}
}

// Deliver hands e to local subscribers only. Relays call it for events
// produced by other processes.
func (h *Hub) Deliver(e Event) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	for sub := range h.subs {
		if e.Notification != nil && sub.playerID != "" && sub.playerID == e.Notification.ExceptPlayerID {
			continue
		}
		select {
		case sub.ch <- e:
		default:
			// Drop if subscriber is slow.
			h.dropped.Add(1)
		}
	}
}

// Run forwards published events to sinks until ctx is done. Without sinks it
// just drains the relay queue.
func (h *Hub) Run(ctx context.Context, sinks ...Sink) error {
	for {
		select {
		case <-ctx.Done():
			return nil
		case e := <-h.out:
			for _, s := range sinks {
				if err := s.Forward(ctx, e); err != nil {
					h.logger.Warn("forwarding event", "type", e.Type, "error", err)
				}
			}
		}
	}
}
