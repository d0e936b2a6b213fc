// Package broadcast provides the in-process gateway that delivers named
// events to room-scoped groups of connections. Transport readers drain one
// Entity per connection; publishers never block on a slow consumer.
package broadcast

import (
	"fmt"
	"sync"
)

// Entity routes published event bytes to a Go channel, bridging the game
// layer to the transport's per-connection writer.
type Entity struct {
	connID string
	events chan []byte
	mu     sync.Mutex
	closed bool
}

// newEntity creates an Entity for the given connection id.
//
// Precondition: connID must be non-empty.
// Postcondition: Returns an Entity with an open events channel.
func newEntity(connID string, bufferSize int) *Entity {
	if bufferSize <= 0 {
		bufferSize = 64
	}
	return &Entity{
		connID: connID,
		events: make(chan []byte, bufferSize),
	}
}

// ConnID returns the connection identifier this entity serves.
func (e *Entity) ConnID() string {
	return e.connID
}

// Push enqueues data for the connection writer.
//
// Postcondition: Data is enqueued, or an error if the entity is closed or its
// buffer is full. A full buffer means the consumer has stalled; the event is
// dropped rather than blocking the publisher.
func (e *Entity) Push(data []byte) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.closed {
		return fmt.Errorf("entity %s is closed", e.connID)
	}
	select {
	case e.events <- data:
		return nil
	default:
		return fmt.Errorf("entity %s event buffer full", e.connID)
	}
}

// Events returns the read-only events channel. The transport's writer
// goroutine reads from this channel and forwards each payload to the wire.
func (e *Entity) Events() <-chan []byte {
	return e.events
}

// Close marks the entity as closed and closes the events channel. Close is
// idempotent.
//
// Postcondition: Further Push calls return an error.
func (e *Entity) Close() error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if !e.closed {
		e.closed = true
		close(e.events)
	}
	return nil
}

// IsClosed reports whether the entity has been closed.
func (e *Entity) IsClosed() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.closed
}
