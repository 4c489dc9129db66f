package registry

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
)

// EventType identifies a tenant lifecycle transition.
type EventType string

const (
	EventTenantCreated  EventType = "tenant.created"
	EventTenantMigrated EventType = "tenant.migrated"
	EventTenantDeleted  EventType = "tenant.deleted"
)

// Event is published after a lifecycle state transition completes.
type Event struct {
	ID       uuid.UUID
	Type     EventType
	TenantID string
	At       time.Time
}

// Publisher is the event-publication interface the lifecycle code calls
// after state transitions. Subscribers are registered externally.
type Publisher interface {
	Publish(ctx context.Context, e Event)
}

// PublisherFunc adapts a function to a Publisher.
type PublisherFunc func(ctx context.Context, e Event)

func (f PublisherFunc) Publish(ctx context.Context, e Event) { f(ctx, e) }

// NopPublisher discards events.
type NopPublisher struct{}

func (NopPublisher) Publish(context.Context, Event) {}

// Hub fans events out to channel subscribers. Publish never blocks:
// events are dropped for subscribers whose buffer is full, so a slow
// consumer cannot stall tenant lifecycle operations.
type Hub struct {
	mu     sync.RWMutex
	subs   map[int]chan Event
	nextID int
	buffer int
	closed bool
	done   chan struct{} // closed by Close to release subscription watchers
}

var _ Publisher = (*Hub)(nil)

// NewHub creates an event hub with the given per-subscriber buffer.
func NewHub(buffer int) *Hub {
	if buffer <= 0 {
		buffer = 16
	}
	return &Hub{subs: make(map[int]chan Event), buffer: buffer, done: make(chan struct{})}
}

// Subscribe registers a subscriber whose channel receives every event
// published after registration. The subscription ends when ctx is
// cancelled; the channel is closed afterwards.
func (h *Hub) Subscribe(ctx context.Context) <-chan Event {
	h.mu.Lock()
	defer h.mu.Unlock()

	ch := make(chan Event, h.buffer)
	if h.closed {
		close(ch)
		return ch
	}
	id := h.nextID
	h.nextID++
	h.subs[id] = ch

	go func() {
		// Close also releases the watcher; subscribers registered with
		// a never-cancelled context must not pin a goroutine forever.
		select {
		case <-ctx.Done():
		case <-h.done:
		}
		h.mu.Lock()
		defer h.mu.Unlock()
		if c, ok := h.subs[id]; ok {
			delete(h.subs, id)
			close(c)
		}
	}()
	return ch
}

// Publish delivers e to all current subscribers without blocking.
func (h *Hub) Publish(_ context.Context, e Event) {
	if e.ID == uuid.Nil {
		e.ID = uuid.New()
	}
	if e.At.IsZero() {
		e.At = time.Now().UTC()
	}

	h.mu.RLock()
	defer h.mu.RUnlock()
	if h.closed {
		return
	}
	for _, ch := range h.subs {
		select {
		case ch <- e:
		default:
			// Drop rather than block lifecycle operations.
		}
	}
}

// Close shuts the hub down and closes all subscriber channels.
func (h *Hub) Close() error {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return nil
	}
	h.closed = true
	close(h.done)
	for id, ch := range h.subs {
		delete(h.subs, id)
		close(ch)
	}
	return nil
}
