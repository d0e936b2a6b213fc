package arena

import (
	"math"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Spawn placement constants. Joiners land on a staggered grid keyed by their
// ordinal index in the room; the founding player gets the fixed default spawn.
const (
	DefaultMaxPlayers = 4

	DefaultSpawnX = 400.0
	DefaultSpawnY = 300.0

	spawnBaseX = 100.0
	spawnStepX = 200.0
	spawnBaseY = 100.0
	spawnStepY = 150.0

	// FullHealth is the health value assigned on join and respawn.
	FullHealth = 100
)

// HitResult reports the outcome of a confirmed bullet hit.
type HitResult struct {
	// Target is a copy of the target player after damage was applied.
	Target Player
	// Shooter is a copy of the bullet's owner with updated kill count, or nil
	// if the shooter left the room between the shot and the hit report.
	Shooter *Player
	// Killed is true when this hit took the target from alive to dead.
	Killed bool
}

// Room is an isolated match instance. It owns its players and bullets and
// serializes all mutation behind a single mutex. Rooms never share state, so
// operations on different rooms do not contend.
//
// Invariant: player count never exceeds maxPlayers.
// Invariant: every mutator returns value copies; callers broadcast the copies
// after the lock is released, never while holding it.
type Room struct {
	id         string
	code       string
	createdAt  time.Time
	maxPlayers int

	mu      sync.Mutex
	players map[string]*Player
	bullets []*Bullet
}

// NewRoom creates a room containing its founding player at the default spawn
// with the first palette color.
//
// Precondition: code must be non-empty; maxPlayers >= 1; founderID must be a
// valid connection id.
// Postcondition: The room has exactly one member.
func NewRoom(code string, maxPlayers int, founderID, founderName string) *Room {
	if maxPlayers < 1 {
		maxPlayers = DefaultMaxPlayers
	}
	founder := &Player{
		ID:         founderID,
		Name:       founderName,
		X:          DefaultSpawnX,
		Y:          DefaultSpawnY,
		Health:     FullHealth,
		Color:      Palette[0],
		LastUpdate: time.Now().UTC(),
	}
	return &Room{
		id:         uuid.NewString(),
		code:       code,
		createdAt:  time.Now().UTC(),
		maxPlayers: maxPlayers,
		players:    map[string]*Player{founderID: founder},
	}
}

// ID returns the internal room identifier.
func (r *Room) ID() string { return r.id }

// Code returns the human-facing join code.
func (r *Room) Code() string { return r.code }

// CreatedAt returns the room creation time.
func (r *Room) CreatedAt() time.Time { return r.createdAt }

// Full reports whether the room has reached capacity.
func (r *Room) Full() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.players) >= r.maxPlayers
}

// PlayerCount returns the current number of members.
func (r *Room) PlayerCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.players)
}

// HasPlayer reports whether the given connection id is a member.
func (r *Room) HasPlayer(id string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	_, ok := r.players[id]
	return ok
}

// AddPlayer inserts a joining player on the spawn grid: the k-th joiner
// (by current member count) spawns at (100+200k, 100+150k) with the k-th
// palette color, cycling.
//
// Postcondition: Returns a copy of the inserted player, or ok=false if the
// room is full or the id is already a member.
func (r *Room) AddPlayer(id, name string) (Player, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if len(r.players) >= r.maxPlayers {
		return Player{}, false
	}
	if _, exists := r.players[id]; exists {
		return Player{}, false
	}

	index := len(r.players)
	p := &Player{
		ID:         id,
		Name:       name,
		X:          spawnBaseX + float64(index)*spawnStepX,
		Y:          spawnBaseY + float64(index)*spawnStepY,
		Health:     FullHealth,
		Color:      Palette[index%len(Palette)],
		LastUpdate: time.Now().UTC(),
	}
	r.players[id] = p
	return *p, true
}

// RemovePlayer deletes the player with the given id.
//
// Postcondition: Returns a copy of the removed player, or ok=false if the id
// is not a member. Removal of an unknown id is not an error; disconnect races
// are expected.
func (r *Room) RemovePlayer(id string) (Player, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	p, ok := r.players[id]
	if !ok {
		return Player{}, false
	}
	delete(r.players, id)
	return *p, true
}

// UpdatePosition overwrites the player's position and facing angle and stamps
// the last-update time.
//
// Postcondition: Returns a copy of the updated player, or ok=false if the id
// is not a member.
func (r *Room) UpdatePosition(id string, x, y, angle float64) (Player, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	p, ok := r.players[id]
	if !ok {
		return Player{}, false
	}
	p.X = x
	p.Y = y
	p.Angle = angle
	p.LastUpdate = time.Now().UTC()
	return *p, true
}

// SpawnBullet creates a bullet at the shooter's current position with a
// velocity of the given speed along the firing angle and appends it to the
// room's bullet collection.
//
// Postcondition: Returns a copy of the created bullet, or ok=false if the
// shooter is not a member.
func (r *Room) SpawnBullet(playerID string, angle, speed float64) (Bullet, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	p, ok := r.players[playerID]
	if !ok {
		return Bullet{}, false
	}
	b := newBullet(playerID, p.X, p.Y, math.Cos(angle)*speed, math.Sin(angle)*speed)
	r.bullets = append(r.bullets, b)
	return *b, true
}

// RemoveBullet deletes the bullet with the given id from the collection.
// Removal is idempotent: a second call for the same id is a no-op.
//
// Postcondition: Returns true if a bullet was removed.
func (r *Room) RemoveBullet(bulletID string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.removeBulletLocked(bulletID)
}

func (r *Room) removeBulletLocked(bulletID string) bool {
	for i, b := range r.bullets {
		if b.ID == bulletID {
			r.bullets = append(r.bullets[:i], r.bullets[i+1:]...)
			return true
		}
	}
	return false
}

// BulletCount returns the number of live bullets.
func (r *Room) BulletCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.bullets)
}

// HasBullet reports whether the bullet with the given id is still live.
func (r *Room) HasBullet(bulletID string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, b := range r.bullets {
		if b.ID == bulletID {
			return true
		}
	}
	return false
}

// ApplyHit resolves a reported bullet hit: the target takes damage and the
// bullet is removed, which structurally enforces at-most-once damage per
// bullet. If the bullet is unknown (already expired or already resolved) or
// the target is not a member, nothing changes and ok=false is returned.
//
// When the hit takes the target from alive to dead, the shooter's kill count
// and the target's death count are incremented. A shooter who already left
// the room is tolerated: the kill attribution is skipped and Shooter is nil.
//
// Postcondition: ok=true implies the bullet has been removed.
func (r *Room) ApplyHit(bulletID, targetID string, damage int) (HitResult, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var bullet *Bullet
	for _, b := range r.bullets {
		if b.ID == bulletID {
			bullet = b
			break
		}
	}
	if bullet == nil {
		return HitResult{}, false
	}

	target, ok := r.players[targetID]
	if !ok {
		// Target gone: leave the bullet for the reaper, mirroring the
		// behavior of resolving hits only against current members.
		return HitResult{}, false
	}

	wasAlive := target.Alive()
	target.Health -= damage
	r.removeBulletLocked(bulletID)

	result := HitResult{Target: *target}
	if wasAlive && !target.Alive() {
		result.Killed = true
		target.Deaths++
		result.Target = *target
		if shooter, ok := r.players[bullet.PlayerID]; ok {
			shooter.Kills++
			cp := *shooter
			result.Shooter = &cp
		}
	}
	return result, true
}

// Respawn resets the player's health to full and teleports it to the given
// position.
//
// Postcondition: Returns a copy of the respawned player, or ok=false if the
// id is not a member.
func (r *Room) Respawn(id string, x, y float64) (Player, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	p, ok := r.players[id]
	if !ok {
		return Player{}, false
	}
	p.Health = FullHealth
	p.X = x
	p.Y = y
	return *p, true
}

// Snapshot returns copies of all players and bullets for the one-time
// GameState dump sent to a newly joined member.
func (r *Room) Snapshot() ([]Player, []Bullet) {
	r.mu.Lock()
	defer r.mu.Unlock()

	players := make([]Player, 0, len(r.players))
	for _, p := range r.players {
		players = append(players, *p)
	}
	bullets := make([]Bullet, 0, len(r.bullets))
	for _, b := range r.bullets {
		bullets = append(bullets, *b)
	}
	return players, bullets
}
