// Package session provides the coordinator that turns client events into
// room-state mutations and broadcasts. One method per inbound operation, all
// keyed by the opaque connection id assigned by the transport.
package session

import (
	"time"

	"go.uber.org/zap"

	"github.com/cory-johannsen/arena/internal/game/arena"
	"github.com/cory-johannsen/arena/internal/game/registry"
	"github.com/cory-johannsen/arena/internal/game/rng"
)

// Gateway delivers named events to room groups or single connections. The
// in-process implementation lives in internal/broadcast; tests substitute a
// recording fake.
type Gateway interface {
	Subscribe(connID, group string)
	Unsubscribe(connID string)
	Publish(group, event string, payload any)
	PublishExcept(group, exceptID, event string, payload any)
	Send(connID, event string, payload any)
}

// Scheduler arms the deferred expiry of a fired bullet.
type Scheduler interface {
	Schedule(room *arena.Room, bulletID string)
}

// Rules holds the gameplay tuning constants applied by the coordinator.
type Rules struct {
	// MaxPlayers is the room capacity.
	MaxPlayers int
	// BulletSpeed is the muzzle speed in units per tick.
	BulletSpeed float64
	// BulletDamage is the health subtracted per confirmed hit.
	BulletDamage int
	// CodeLength is the join code length in characters.
	CodeLength int
	// Respawn bounds: positions are uniform in [Min, Max).
	RespawnMinX, RespawnMaxX int
	RespawnMinY, RespawnMaxY int
}

// DefaultRules returns the standard arena tuning.
func DefaultRules() Rules {
	return Rules{
		MaxPlayers:   arena.DefaultMaxPlayers,
		BulletSpeed:  10,
		BulletDamage: 20,
		CodeLength:   6,
		RespawnMinX:  100,
		RespawnMaxX:  700,
		RespawnMinY:  100,
		RespawnMaxY:  500,
	}
}

// Coordinator mutates room state in response to client events and decides
// what to broadcast. It holds no per-room lock across a gateway call: every
// mutation happens inside a Room method, and the returned value copies are
// what gets published.
//
// Expected races (caller already disconnected, bullet already resolved, room
// filled first) are silent no-ops; the only caller-visible failure is a false
// result from JoinRoom.
type Coordinator struct {
	registry *registry.Registry
	gateway  Gateway
	reaper   Scheduler
	random   rng.Source
	rules    Rules
	logger   *zap.Logger
}

// NewCoordinator creates a Coordinator with the given collaborators.
//
// Precondition: reg, gateway, reaper, random, and logger must be non-nil.
func NewCoordinator(
	reg *registry.Registry,
	gateway Gateway,
	reaper Scheduler,
	random rng.Source,
	rules Rules,
	logger *zap.Logger,
) *Coordinator {
	return &Coordinator{
		registry: reg,
		gateway:  gateway,
		reaper:   reaper,
		random:   random,
		rules:    rules,
		logger:   logger,
	}
}

// JoinOrCreate matches the caller into the first room with free capacity,
// falling back to creating a fresh room with the caller as its founder.
//
// Postcondition: Returns the join code of the room the caller ended up in.
func (c *Coordinator) JoinOrCreate(connID, name string) string {
	if room := c.registry.FindJoinable(); room != nil {
		if code, ok := c.joinExisting(room, connID, name); ok {
			return code
		}
		// The room filled between lookup and insert; create instead.
	}
	return c.createRoom(connID, name)
}

// CreateRoom creates a new room with the caller as its founding player and
// returns its join code. Nothing is broadcast; the room has one member.
func (c *Coordinator) CreateRoom(connID, name string) string {
	return c.createRoom(connID, name)
}

// JoinRoom joins the caller into the room with the given code.
//
// Postcondition: Returns false if the code is unknown or the room is full;
// otherwise true with the same side effects as a JoinOrCreate join.
func (c *Coordinator) JoinRoom(connID, code, name string) bool {
	room := c.registry.ByCode(code)
	if room == nil {
		return false
	}
	_, ok := c.joinExisting(room, connID, name)
	return ok
}

func (c *Coordinator) joinExisting(room *arena.Room, connID, name string) (string, bool) {
	player, ok := room.AddPlayer(connID, name)
	if !ok {
		return "", false
	}

	c.gateway.Subscribe(connID, room.ID())
	c.gateway.Publish(room.ID(), EventPlayerJoined, player)

	players, bullets := room.Snapshot()
	c.gateway.Send(connID, EventGameState, GameStatePayload{
		Players:   players,
		Bullets:   bullets,
		Timestamp: time.Now().UTC(),
	})

	c.logger.Info("player joined room",
		zap.String("conn_id", connID),
		zap.String("name", name),
		zap.String("room_code", room.Code()),
		zap.Int("members", room.PlayerCount()),
	)
	return room.Code(), true
}

func (c *Coordinator) createRoom(connID, name string) string {
	code := arena.GenerateCode(c.random, c.rules.CodeLength)
	room := arena.NewRoom(code, c.rules.MaxPlayers, connID, name)
	c.registry.Add(room)
	c.gateway.Subscribe(connID, room.ID())

	c.logger.Info("room created",
		zap.String("conn_id", connID),
		zap.String("name", name),
		zap.String("room_code", code),
	)
	return code
}

// UpdatePosition overwrites the caller's position and facing and tells every
// other member. The sender is excluded: it already knows its own
// authoritative position.
func (c *Coordinator) UpdatePosition(connID string, x, y, angle float64) {
	room := c.registry.Containing(connID)
	if room == nil {
		return
	}
	player, ok := room.UpdatePosition(connID, x, y, angle)
	if !ok {
		return
	}
	c.gateway.PublishExcept(room.ID(), connID, EventPlayerMoved, player)
}

// Shoot fires a bullet from the caller's current position at the given angle
// and schedules its expiry. The whole room, sender included, gets the
// BulletFired event so the shot renders from confirmed state.
func (c *Coordinator) Shoot(connID string, angle float64) {
	room := c.registry.Containing(connID)
	if room == nil {
		return
	}
	bullet, ok := room.SpawnBullet(connID, angle, c.rules.BulletSpeed)
	if !ok {
		return
	}
	c.gateway.Publish(room.ID(), EventBulletFired, bullet)
	c.reaper.Schedule(room, bullet.ID)
}

// CheckHit resolves a client-reported collision. The client is the authority
// on geometry; the server bounds the consequence: fixed damage, at-most-once
// per bullet, and score bookkeeping only on an alive-to-dead transition.
func (c *Coordinator) CheckHit(connID, bulletID, targetID string) {
	room := c.registry.Containing(connID)
	if room == nil {
		return
	}
	result, ok := room.ApplyHit(bulletID, targetID, c.rules.BulletDamage)
	if !ok {
		return
	}

	c.gateway.Publish(room.ID(), EventPlayerHit, PlayerHitPayload{
		TargetID: targetID,
		Health:   result.Target.Health,
	})

	if !result.Killed {
		return
	}
	c.gateway.Publish(room.ID(), EventPlayerDied, PlayerDiedPayload{TargetID: targetID})
	c.gateway.Publish(room.ID(), EventScoreUpdated, ScoreUpdatedPayload{
		Shooter: result.Shooter,
		Target:  result.Target,
	})

	shooterID := ""
	if result.Shooter != nil {
		shooterID = result.Shooter.ID
	}
	c.logger.Info("player killed",
		zap.String("target_id", targetID),
		zap.String("shooter_id", shooterID),
		zap.String("room_code", room.Code()),
	)
}

// Respawn resets the caller to full health at a uniformly random position
// inside the respawn box.
func (c *Coordinator) Respawn(connID string) {
	room := c.registry.Containing(connID)
	if room == nil {
		return
	}
	x := c.rules.RespawnMinX + c.random.Intn(c.rules.RespawnMaxX-c.rules.RespawnMinX)
	y := c.rules.RespawnMinY + c.random.Intn(c.rules.RespawnMaxY-c.rules.RespawnMinY)
	player, ok := room.Respawn(connID, float64(x), float64(y))
	if !ok {
		return
	}
	c.gateway.Publish(room.ID(), EventPlayerRespawned, player)
}

// Disconnect removes the caller from its room, announces the departure to
// the remaining members, and cleans up the room if it is now empty. Safe to
// call for callers that never joined or already left.
func (c *Coordinator) Disconnect(connID string) {
	room := c.registry.Containing(connID)
	if room == nil {
		return
	}

	player, ok := room.RemovePlayer(connID)
	if ok {
		c.gateway.Unsubscribe(connID)
		c.gateway.Publish(room.ID(), EventPlayerLeft, PlayerLeftPayload{PlayerID: connID})
		c.logger.Info("player left room",
			zap.String("conn_id", connID),
			zap.String("name", player.Name),
			zap.String("room_code", room.Code()),
		)
	}

	if c.registry.RemoveIfEmpty(room) {
		c.logger.Info("room removed",
			zap.String("room_code", room.Code()),
		)
	}
}
