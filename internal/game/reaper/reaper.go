// Package reaper removes expired bullets from their rooms after a fixed
// time-to-live. Expiry is the only delayed mutation in the system; it goes
// through the same room lock as every caller-triggered mutation and publishes
// nothing, since clients despawn bullets locally on their own TTL estimate.
package reaper

import (
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/cory-johannsen/arena/internal/game/arena"
)

// Reaper schedules exactly one deferred removal per fired bullet.
type Reaper struct {
	ttl    time.Duration
	logger *zap.Logger

	mu      sync.Mutex
	timers  map[string]*time.Timer // bulletID → pending timer
	stopped bool
}

// New creates a Reaper with the given bullet time-to-live.
//
// Precondition: ttl > 0; logger must be non-nil.
func New(ttl time.Duration, logger *zap.Logger) *Reaper {
	return &Reaper{
		ttl:    ttl,
		logger: logger,
		timers: make(map[string]*time.Timer),
	}
}

// TTL returns the configured bullet time-to-live.
func (r *Reaper) TTL() time.Duration {
	return r.ttl
}

// Schedule arms a one-shot removal of the bullet from the room after the TTL
// elapses. The removal is idempotent: if a hit already resolved the bullet,
// the expiry finds nothing and does nothing. No cancellation happens on a
// hit; the delayed task completes harmlessly either way.
//
// Precondition: room must be non-nil; bulletID must be non-empty.
func (r *Reaper) Schedule(room *arena.Room, bulletID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.stopped {
		return
	}

	r.timers[bulletID] = time.AfterFunc(r.ttl, func() {
		removed := room.RemoveBullet(bulletID)
		if removed {
			r.logger.Debug("bullet expired",
				zap.String("bullet_id", bulletID),
				zap.String("room_id", room.ID()),
			)
		}

		r.mu.Lock()
		delete(r.timers, bulletID)
		r.mu.Unlock()
	})
}

// Pending returns the number of outstanding expiry timers.
func (r *Reaper) Pending() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.timers)
}

// Stop cancels all outstanding timers and rejects further scheduling. Used
// only at shutdown; bullets in live rooms carry no state worth draining.
func (r *Reaper) Stop() {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.stopped {
		return
	}
	r.stopped = true
	for id, t := range r.timers {
		t.Stop()
		delete(r.timers, id)
	}
}
