// internal/hub/conn.go
package hub

import (
	"sync"

	"github.com/google/uuid"
)

// Conn is the hub's view of one open socket: a bounded queue of encoded
// frames drained by the socket's write pump. Closing a Conn never closes the
// queue channel; writers observe Done instead.
type Conn struct {
	ID     string
	Remote string

	out  chan []byte
	done chan struct{}

	closeOnce sync.Once
	mu        sync.Mutex
	reason    error
}

// NewConn creates a connection with room for queueSize pending frames.
func NewConn(remote string, queueSize int) *Conn {
	if queueSize < 1 {
		queueSize = 1
	}
	return &Conn{
		ID:     uuid.NewString(),
		Remote: remote,
		out:    make(chan []byte, queueSize),
		done:   make(chan struct{}),
	}
}

// Out yields frames in enqueue order.
func (c *Conn) Out() <-chan []byte { return c.out }

// Done is closed once the connection is closed for any reason.
func (c *Conn) Done() <-chan struct{} { return c.done }

// Close marks the connection closed. The first reason wins; nil means a
// normal close.
func (c *Conn) Close(reason error) {
	c.closeOnce.Do(func() {
		c.mu.Lock()
		c.reason = reason
		c.mu.Unlock()
		close(c.done)
	})
}

// Reason returns why the connection was closed, or nil.
func (c *Conn) Reason() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.reason
}

// Closed reports whether Close has been called.
func (c *Conn) Closed() bool {
	select {
	case <-c.done:
		return true
	default:
		return false
	}
}

// enqueue never blocks: it fails if the connection is closed or its queue is full.
func (c *Conn) enqueue(frame []byte) bool {
	if c.Closed() {
		return false
	}
	select {
	case c.out <- frame:
		return true
	default:
		return false
	}
}
