// Package registry provides the process-wide concurrent table of active
// rooms: matchmaking lookups, creation, and empty-room cleanup.
package registry

import (
	"sync"

	"github.com/cory-johannsen/arena/internal/game/arena"
)

// Registry maps room ids to live rooms. All methods are safe for concurrent
// use. The registry lock is independent of any individual room's lock; rooms
// are looked up far more often than created.
type Registry struct {
	mu    sync.RWMutex
	rooms map[string]*arena.Room
}

// New creates an empty Registry.
func New() *Registry {
	return &Registry{rooms: make(map[string]*arena.Room)}
}

// Add registers a newly created room.
//
// Precondition: room must be non-nil.
func (r *Registry) Add(room *arena.Room) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.rooms[room.ID()] = room
}

// FindJoinable returns the first room found with free capacity, or nil when
// every room is full or none exist. The policy is "first found"; no
// load-balancing preference is applied. Two concurrent callers may both miss
// and each create a room; the extra room self-heals via RemoveIfEmpty once
// abandoned.
func (r *Registry) FindJoinable() *arena.Room {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, room := range r.rooms {
		if !room.Full() {
			return room
		}
	}
	return nil
}

// ByCode returns the room with the given join code, or nil if the code is
// unknown.
func (r *Registry) ByCode(code string) *arena.Room {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, room := range r.rooms {
		if room.Code() == code {
			return room
		}
	}
	return nil
}

// Containing returns the room holding the given player id, or nil. This is
// the reverse lookup performed by every per-player action; it scans only
// currently registered rooms.
func (r *Registry) Containing(playerID string) *arena.Room {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, room := range r.rooms {
		if room.HasPlayer(playerID) {
			return room
		}
	}
	return nil
}

// RemoveIfEmpty deregisters the room if its member count is zero. The member
// count is re-checked under the registry write lock, so a join racing a
// cleanup resolves either way without leaving a zombie entry: the room either
// survives with the new player or is gone before the join can find it.
//
// Postcondition: Returns true if the room was removed.
func (r *Registry) RemoveIfEmpty(room *arena.Room) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.rooms[room.ID()]; !ok {
		return false
	}
	if room.PlayerCount() > 0 {
		return false
	}
	delete(r.rooms, room.ID())
	return true
}

// Count returns the number of registered rooms.
func (r *Registry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.rooms)
}

// Rooms returns the currently registered rooms.
func (r *Registry) Rooms() []*arena.Room {
	r.mu.RLock()
	defer r.mu.RUnlock()
	rooms := make([]*arena.Room, 0, len(r.rooms))
	for _, room := range r.rooms {
		rooms = append(rooms, room)
	}
	return rooms
}
