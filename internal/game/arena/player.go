// Package arena provides the entity model for a match: players, bullets, and
// the room that owns them. A Room is the unit of mutual exclusion; all player
// and bullet mutation goes through Room methods, which serialize against each
// other while leaving unrelated rooms free of contention.
package arena

import "time"

// Palette is the fixed set of player colors, assigned by join index modulo
// the palette size.
var Palette = []string{"#FF0000", "#00FF00", "#0000FF", "#FFFF00"}

// Player is a connected participant in a room. The ID is the opaque
// connection identifier supplied by the transport and is stable for the
// session. Fields are mutated only while holding the owning room's lock;
// Room methods return value copies for broadcasting.
type Player struct {
	ID         string    `json:"id"`
	Name       string    `json:"name"`
	X          float64   `json:"x"`
	Y          float64   `json:"y"`
	Angle      float64   `json:"angle"`
	Health     int       `json:"health"`
	Color      string    `json:"color"`
	LastUpdate time.Time `json:"lastUpdate"`
	Kills      int       `json:"kills"`
	Deaths     int       `json:"deaths"`
}

// Alive reports whether the player's health is above zero. Death is a derived
// display state; a dead player may still move and shoot until it respawns.
func (p *Player) Alive() bool {
	return p.Health > 0
}
