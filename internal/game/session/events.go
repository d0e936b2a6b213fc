package session

import (
	"time"

	"github.com/cory-johannsen/arena/internal/game/arena"
)

// Event names published through the broadcast gateway. These are the
// conceptual event surface consumed by clients; payload shapes are the
// structs below plus arena.Player and arena.Bullet copies.
const (
	EventPlayerJoined    = "PlayerJoined"
	EventGameState       = "GameState"
	EventPlayerMoved     = "PlayerMoved"
	EventBulletFired     = "BulletFired"
	EventPlayerHit       = "PlayerHit"
	EventPlayerDied      = "PlayerDied"
	EventScoreUpdated    = "ScoreUpdated"
	EventPlayerRespawned = "PlayerRespawned"
	EventPlayerLeft      = "PlayerLeft"
)

// GameStatePayload is the one-time full snapshot sent privately to a newly
// joined member to initialize its local view.
type GameStatePayload struct {
	Players   []arena.Player `json:"players"`
	Bullets   []arena.Bullet `json:"bullets"`
	Timestamp time.Time      `json:"timestamp"`
}

// PlayerHitPayload carries the target and its post-damage health.
type PlayerHitPayload struct {
	TargetID string `json:"targetId"`
	Health   int    `json:"health"`
}

// PlayerDiedPayload announces a death.
type PlayerDiedPayload struct {
	TargetID string `json:"targetId"`
}

// ScoreUpdatedPayload carries both sides of a kill. Shooter is nil when the
// shooter disconnected between the shot and the hit report.
type ScoreUpdatedPayload struct {
	Shooter *arena.Player `json:"shooter"`
	Target  arena.Player  `json:"target"`
}

// PlayerLeftPayload announces a departure.
type PlayerLeftPayload struct {
	PlayerID string `json:"playerId"`
}
