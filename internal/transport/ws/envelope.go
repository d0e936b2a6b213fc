package ws

import "encoding/json"

// Envelope is the inbound wire frame: a method name plus a method-specific
// payload. The transport owns framing and decoding; the coordinator only
// sees typed calls keyed by connection id.
type Envelope struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload"`
}

// Inbound method names.
const (
	MethodJoinOrCreate   = "JoinOrCreate"
	MethodCreateRoom     = "CreateRoom"
	MethodJoinRoom       = "JoinRoom"
	MethodUpdatePosition = "UpdatePosition"
	MethodShoot          = "Shoot"
	MethodCheckHit       = "CheckHit"
	MethodRespawn        = "Respawn"
)

// EventRoomJoined is the direct reply to the three join-family methods.
const EventRoomJoined = "RoomJoined"

type joinPayload struct {
	Name string `json:"name"`
}

type joinRoomPayload struct {
	Code string `json:"code"`
	Name string `json:"name"`
}

type movePayload struct {
	X     float64 `json:"x"`
	Y     float64 `json:"y"`
	Angle float64 `json:"angle"`
}

type shootPayload struct {
	Angle float64 `json:"angle"`
}

type hitPayload struct {
	BulletID string `json:"bulletId"`
	TargetID string `json:"targetId"`
}

// roomJoinedPayload reports the outcome of a join attempt. Ok is false only
// for an explicit JoinRoom with an unknown code or a full room.
type roomJoinedPayload struct {
	Code string `json:"code"`
	Ok   bool   `json:"ok"`
}
