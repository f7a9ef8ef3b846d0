// Package hub is the in-process fan-out of typed change notifications to
// all live client connections. It is decoupled from persistence: events
// arrive here only after the underlying write has committed.
//
// Delivery is best-effort, at-most-once per connection. There is no topic
// filtering at this layer: every subscriber receives every event type and
// filtering is a client concern. That is a deliberate single-process
// scaling limit; fanning out across instances would need a shared bus.
package hub

import (
	"sync"

	"go.uber.org/zap"
)

// Message is one typed change notification: the {type, data} frame that
// ultimately goes over the wire.
type Message struct {
	Type string `json:"type"`
	Data any    `json:"data"`
}

// DefaultSendBuffer is the per-connection buffer size used when the
// configured value is zero.
const DefaultSendBuffer = 32

// Hub fans published messages out to subscribers. Safe for concurrent use.
type Hub struct {
	mu      sync.RWMutex
	subs    map[string]chan Message
	buffer  int
	closed  bool
	dropped func(connectionID string) // test hook, may be nil
	log     *zap.Logger
}

// New creates a hub whose subscribers each get a send buffer of the given
// size. bufferSize <= 0 selects DefaultSendBuffer.
func New(bufferSize int, logger *zap.Logger) *Hub {
	if bufferSize <= 0 {
		bufferSize = DefaultSendBuffer
	}
	return &Hub{
		subs:   make(map[string]chan Message),
		buffer: bufferSize,
		log:    logger,
	}
}

// Subscribe registers a connection and returns its event stream. The
// channel is closed when the subscriber is unsubscribed, dropped for
// overflowing its buffer, or the hub shuts down.
func (h *Hub) Subscribe(connectionID string) <-chan Message {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.closed {
		ch := make(chan Message)
		close(ch)
		return ch
	}

	// A re-subscribe with the same ID replaces the old stream.
	if old, ok := h.subs[connectionID]; ok {
		close(old)
	}
	ch := make(chan Message, h.buffer)
	h.subs[connectionID] = ch
	h.log.Info("hub: subscriber connected",
		zap.String("connection_id", connectionID),
		zap.Int("total", len(h.subs)))
	return ch
}

// Unsubscribe removes a connection and closes its stream.
func (h *Hub) Unsubscribe(connectionID string) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if ch, ok := h.subs[connectionID]; ok {
		delete(h.subs, connectionID)
		close(ch)
		h.log.Info("hub: subscriber disconnected",
			zap.String("connection_id", connectionID),
			zap.Int("total", len(h.subs)))
	}
}

// Publish fans the message out to every subscriber. It never blocks on a
// slow consumer: a subscriber whose buffer is full is forcibly
// disconnected, which protects the hub (and every other subscriber) from
// one stalled connection. The dropped subscriber self-heals by
// reconnecting and re-fetching authoritative state.
//
// Messages published from a single goroutine arrive in order on every
// surviving subscriber's channel, which preserves per-entity FIFO as long
// as same-entity events are published from the committing call path.
func (h *Hub) Publish(msg Message) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.closed {
		return
	}

	for id, ch := range h.subs {
		select {
		case ch <- msg:
		default:
			delete(h.subs, id)
			close(ch)
			h.log.Warn("hub: subscriber buffer overflow, dropping connection",
				zap.String("connection_id", id),
				zap.String("event_type", msg.Type))
			if h.dropped != nil {
				h.dropped(id)
			}
		}
	}
}

// SubscriberCount returns the number of live subscribers.
func (h *Hub) SubscriberCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.subs)
}

// Close shuts the hub down and closes all subscriber streams. Publish and
// Subscribe become no-ops afterward.
func (h *Hub) Close() {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.closed {
		return
	}
	h.closed = true
	for id, ch := range h.subs {
		delete(h.subs, id)
		close(ch)
	}
	h.log.Info("hub: closed")
}
