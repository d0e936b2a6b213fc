package broadcast

import (
	"encoding/json"
	"sync"

	"go.uber.org/zap"
)

// Event is the wire envelope for every outbound message.
type Event struct {
	Type    string `json:"type"`
	Payload any    `json:"payload,omitempty"`
}

// Hub tracks connection entities and their group memberships and fans
// published events out to group members. All methods are safe for concurrent
// use. Publishing happens outside any room lock; a slow or dead consumer
// costs a dropped event, never a stalled publisher.
type Hub struct {
	logger *zap.Logger

	mu       sync.RWMutex
	entities map[string]*Entity         // connID → entity
	groups   map[string]map[string]bool // group → set of connIDs
	member   map[string]string          // connID → group
}

// NewHub creates an empty Hub.
//
// Precondition: logger must be non-nil.
func NewHub(logger *zap.Logger) *Hub {
	return &Hub{
		logger:   logger,
		entities: make(map[string]*Entity),
		groups:   make(map[string]map[string]bool),
		member:   make(map[string]string),
	}
}

// Register creates and tracks an entity for a new connection. A connection
// must be registered before it can subscribe to a group or receive direct
// sends.
//
// Precondition: connID must be non-empty and not already registered.
func (h *Hub) Register(connID string, bufferSize int) *Entity {
	e := newEntity(connID, bufferSize)
	h.mu.Lock()
	defer h.mu.Unlock()
	h.entities[connID] = e
	return e
}

// Deregister removes the connection from its group, closes its entity, and
// forgets it. Safe to call for unknown ids.
func (h *Hub) Deregister(connID string) {
	h.mu.Lock()
	e, ok := h.entities[connID]
	if ok {
		delete(h.entities, connID)
	}
	h.removeFromGroupLocked(connID)
	h.mu.Unlock()

	if ok {
		_ = e.Close()
	}
}

// Subscribe adds the connection to the given group, replacing any previous
// membership. A connection belongs to at most one group at a time, matching
// the one-room-per-player invariant.
func (h *Hub) Subscribe(connID, group string) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if _, ok := h.entities[connID]; !ok {
		// A deregister racing a join lands here: the player is in the room
		// but has no entity to deliver to. The subsequent disconnect cleans
		// the room up; the warning makes the silent member visible.
		h.logger.Warn("subscribe for unregistered connection",
			zap.String("conn_id", connID),
			zap.String("group", group),
		)
		return
	}
	h.removeFromGroupLocked(connID)
	if h.groups[group] == nil {
		h.groups[group] = make(map[string]bool)
	}
	h.groups[group][connID] = true
	h.member[connID] = group
}

// Unsubscribe removes the connection from its group, if any.
func (h *Hub) Unsubscribe(connID string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.removeFromGroupLocked(connID)
}

func (h *Hub) removeFromGroupLocked(connID string) {
	group, ok := h.member[connID]
	if !ok {
		return
	}
	delete(h.member, connID)
	if set, ok := h.groups[group]; ok {
		delete(set, connID)
		if len(set) == 0 {
			delete(h.groups, group)
		}
	}
}

// Publish delivers the event to every member of the group.
func (h *Hub) Publish(group, event string, payload any) {
	h.fanOut(group, "", event, payload)
}

// PublishExcept delivers the event to every member of the group except the
// named connection. Used for events the sender already knows, such as its own
// authoritative position.
func (h *Hub) PublishExcept(group, exceptID, event string, payload any) {
	h.fanOut(group, exceptID, event, payload)
}

// Send delivers the event to a single connection.
func (h *Hub) Send(connID, event string, payload any) {
	data, err := json.Marshal(Event{Type: event, Payload: payload})
	if err != nil {
		h.logger.Error("marshalling event",
			zap.String("event", event),
			zap.Error(err),
		)
		return
	}

	h.mu.RLock()
	e, ok := h.entities[connID]
	h.mu.RUnlock()
	if !ok {
		return
	}
	h.push(e, event, data)
}

func (h *Hub) fanOut(group, exceptID, event string, payload any) {
	data, err := json.Marshal(Event{Type: event, Payload: payload})
	if err != nil {
		h.logger.Error("marshalling event",
			zap.String("event", event),
			zap.Error(err),
		)
		return
	}

	h.mu.RLock()
	members := make([]*Entity, 0, len(h.groups[group]))
	for connID := range h.groups[group] {
		if connID == exceptID {
			continue
		}
		if e, ok := h.entities[connID]; ok {
			members = append(members, e)
		}
	}
	h.mu.RUnlock()

	for _, e := range members {
		h.push(e, event, data)
	}
}

func (h *Hub) push(e *Entity, event string, data []byte) {
	if err := e.Push(data); err != nil {
		h.logger.Warn("dropping event",
			zap.String("event", event),
			zap.String("conn_id", e.ConnID()),
			zap.Error(err),
		)
	}
}

// GroupSize returns the number of connections subscribed to the group.
func (h *Hub) GroupSize(group string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.groups[group])
}
