// internal/hub/hub.go
package hub

import (
	"errors"
	"sync"

	"github.com/jason-s-yu/tictacgo/internal/protocol"
	"github.com/sirupsen/logrus"
)

var (
	// ErrHubClosed is returned when registering on, or the reason a connection
	// was dropped from, a closed hub.
	ErrHubClosed = errors.New("hub closed")
	// ErrSlowConsumer is the close reason for a connection whose queue overflowed.
	ErrSlowConsumer = errors.New("outbound queue full")
	// ErrNotRegistered is returned by Send for a connection the hub does not hold.
	ErrNotRegistered = errors.New("connection not registered")
)

// Hub fans encoded events out to every registered connection of one lobby.
// A connection that cannot accept a frame is dropped; delivery to the others
// continues.
type Hub struct {
	mu     sync.Mutex
	conns  map[*Conn]struct{}
	closed bool
	logger logrus.FieldLogger
}

func New(logger logrus.FieldLogger) *Hub {
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	return &Hub{
		conns:  make(map[*Conn]struct{}),
		logger: logger,
	}
}

// Register adds c. Registering the same connection twice is a no-op.
func (h *Hub) Register(c *Conn) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return ErrHubClosed
	}
	h.conns[c] = struct{}{}
	return nil
}

// Unregister removes c without closing it. It reports whether c was present.
func (h *Hub) Unregister(c *Conn) bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	if _, ok := h.conns[c]; !ok {
		return false
	}
	delete(h.conns, c)
	return true
}

// Has reports whether c is registered.
func (h *Hub) Has(c *Conn) bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	_, ok := h.conns[c]
	return ok
}

// Len returns the number of registered connections.
func (h *Hub) Len() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.conns)
}

// Publish encodes ev once and enqueues it on every connection.
func (h *Hub) Publish(ev protocol.Event) {
	frame, err := protocol.Encode(ev)
	if err != nil {
		h.logger.WithError(err).WithField("event", ev.EventType()).Error("failed to encode event")
		return
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	for c := range h.conns {
		if !c.enqueue(frame) {
			h.dropLocked(c, ev.EventType())
		}
	}
}

// Send enqueues ev on c only.
func (h *Hub) Send(c *Conn, ev protocol.Event) error {
	frame, err := protocol.Encode(ev)
	if err != nil {
		return err
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	if _, ok := h.conns[c]; !ok {
		return ErrNotRegistered
	}
	if !c.enqueue(frame) {
		h.dropLocked(c, ev.EventType())
		return ErrSlowConsumer
	}
	return nil
}

// Close drops every connection and rejects further registrations.
func (h *Hub) Close() {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return
	}
	h.closed = true
	for c := range h.conns {
		c.Close(ErrHubClosed)
		delete(h.conns, c)
	}
}

func (h *Hub) dropLocked(c *Conn, eventType string) {
	delete(h.conns, c)
	alreadyClosed := c.Closed()
	c.Close(ErrSlowConsumer)
	h.logger.WithFields(logrus.Fields{
		"conn":          c.ID,
		"remote":        c.Remote,
		"event":         eventType,
		"alreadyClosed": alreadyClosed,
	}).Warn("dropping connection from hub")
}
