package arena

import (
	"time"

	"github.com/google/uuid"
)

// Bullet is an ephemeral projectile. It is created by a shoot action and
// destroyed either by a confirmed hit or by the expiry reaper once its
// time-to-live elapses, whichever happens first.
type Bullet struct {
	ID        string    `json:"id"`
	PlayerID  string    `json:"playerId"`
	X         float64   `json:"x"`
	Y         float64   `json:"y"`
	VelocityX float64   `json:"velocityX"`
	VelocityY float64   `json:"velocityY"`
	CreatedAt time.Time `json:"createdAt"`
}

// newBullet creates a bullet at the shooter's current position with a fresh
// identity. Velocity is computed by the caller from the firing angle.
func newBullet(playerID string, x, y, vx, vy float64) *Bullet {
	return &Bullet{
		ID:        uuid.NewString(),
		PlayerID:  playerID,
		X:         x,
		Y:         y,
		VelocityX: vx,
		VelocityY: vy,
		CreatedAt: time.Now().UTC(),
	}
}
