package reaper

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/cory-johannsen/arena/internal/game/arena"
)

func TestReaper_RemovesExpiredBullet(t *testing.T) {
	room := arena.NewRoom("AAAAAA", 4, "p1", "Alice")
	b, ok := room.SpawnBullet("p1", 0, 10)
	require.True(t, ok)

	r := New(10*time.Millisecond, zap.NewNop())
	r.Schedule(room, b.ID)
	assert.Equal(t, 1, r.Pending())

	assert.Eventually(t, func() bool {
		return room.BulletCount() == 0 && r.Pending() == 0
	}, time.Second, 5*time.Millisecond)
}

func TestReaper_ExpiryAfterHitIsNoop(t *testing.T) {
	room := arena.NewRoom("AAAAAA", 4, "p1", "Alice")
	room.AddPlayer("p2", "Bob")
	b, _ := room.SpawnBullet("p1", 0, 10)

	r := New(10*time.Millisecond, zap.NewNop())
	r.Schedule(room, b.ID)

	// The hit consumes the bullet before the timer fires.
	_, ok := room.ApplyHit(b.ID, "p2", 20)
	require.True(t, ok)

	assert.Eventually(t, func() bool {
		return r.Pending() == 0
	}, time.Second, 5*time.Millisecond)
	assert.Equal(t, 0, room.BulletCount())
}

func TestReaper_TTL(t *testing.T) {
	r := New(3*time.Second, zap.NewNop())
	assert.Equal(t, 3*time.Second, r.TTL())
}

func TestReaper_StopCancelsTimers(t *testing.T) {
	room := arena.NewRoom("AAAAAA", 4, "p1", "Alice")
	b, _ := room.SpawnBullet("p1", 0, 10)

	r := New(time.Hour, zap.NewNop())
	r.Schedule(room, b.ID)
	require.Equal(t, 1, r.Pending())

	r.Stop()
	assert.Equal(t, 0, r.Pending())
	assert.Equal(t, 1, room.BulletCount(), "cancelled timer must not remove the bullet")

	// Scheduling after Stop is rejected.
	r.Schedule(room, b.ID)
	assert.Equal(t, 0, r.Pending())

	// Stop is idempotent.
	r.Stop()
}
