package ws

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/cory-johannsen/arena/internal/broadcast"
	"github.com/cory-johannsen/arena/internal/config"
	"github.com/cory-johannsen/arena/internal/game/reaper"
	"github.com/cory-johannsen/arena/internal/game/registry"
	"github.com/cory-johannsen/arena/internal/game/rng"
	"github.com/cory-johannsen/arena/internal/game/session"
)

type harness struct {
	server   *Server
	hub      *broadcast.Hub
	registry *registry.Registry
	reaper   *reaper.Reaper
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	logger := zap.NewNop()
	hub := broadcast.NewHub(logger)
	reg := registry.New()
	rp := reaper.New(3*time.Second, logger)
	t.Cleanup(rp.Stop)
	coord := session.NewCoordinator(reg, hub, rp, rng.NewCryptoSource(), session.DefaultRules(), logger)
	srv := NewServer(config.ServerConfig{Host: "127.0.0.1", Port: 0}, hub, coord, logger)
	return &harness{server: srv, hub: hub, registry: reg, reaper: rp}
}

// connect registers a hub entity the way serveConn does, without a socket.
func (h *harness) connect(connID string) *broadcast.Entity {
	return h.hub.Register(connID, entityBuffer)
}

func envelope(t *testing.T, method string, payload any) Envelope {
	t.Helper()
	data, err := json.Marshal(payload)
	require.NoError(t, err)
	return Envelope{Type: method, Payload: data}
}

func drainEvent(t *testing.T, e *broadcast.Entity) broadcast.Event {
	t.Helper()
	select {
	case data := <-e.Events():
		var ev broadcast.Event
		require.NoError(t, json.Unmarshal(data, &ev))
		return ev
	default:
		t.Fatal("expected an event, entity buffer is empty")
		return broadcast.Event{}
	}
}

func TestDispatch_JoinOrCreate(t *testing.T) {
	h := newHarness(t)
	e := h.connect("conn-a")

	h.server.dispatch("conn-a", envelope(t, MethodJoinOrCreate, joinPayload{Name: "Alice"}))

	ev := drainEvent(t, e)
	assert.Equal(t, EventRoomJoined, ev.Type)

	var reply roomJoinedPayload
	raw, err := json.Marshal(ev.Payload)
	require.NoError(t, err)
	require.NoError(t, json.Unmarshal(raw, &reply))
	assert.True(t, reply.Ok)
	assert.Len(t, reply.Code, 6)

	assert.Equal(t, 1, h.registry.Count())
	assert.NotNil(t, h.registry.Containing("conn-a"))
}

func TestDispatch_JoinRoom(t *testing.T) {
	h := newHarness(t)
	a := h.connect("conn-a")
	b := h.connect("conn-b")

	h.server.dispatch("conn-a", envelope(t, MethodCreateRoom, joinPayload{Name: "Alice"}))
	created := drainEvent(t, a)
	var createdReply roomJoinedPayload
	raw, _ := json.Marshal(created.Payload)
	require.NoError(t, json.Unmarshal(raw, &createdReply))

	h.server.dispatch("conn-b", envelope(t, MethodJoinRoom, joinRoomPayload{Code: createdReply.Code, Name: "Bob"}))

	// conn-b receives PlayerJoined (as a new group member), GameState, then
	// the RoomJoined reply.
	types := map[string]bool{}
	for i := 0; i < 3; i++ {
		types[drainEvent(t, b).Type] = true
	}
	assert.True(t, types[session.EventPlayerJoined])
	assert.True(t, types[session.EventGameState])
	assert.True(t, types[EventRoomJoined])

	// conn-a sees the join announcement.
	ev := drainEvent(t, a)
	assert.Equal(t, session.EventPlayerJoined, ev.Type)
}

func TestDispatch_JoinRoom_UnknownCode(t *testing.T) {
	h := newHarness(t)
	e := h.connect("conn-a")

	h.server.dispatch("conn-a", envelope(t, MethodJoinRoom, joinRoomPayload{Code: "NOSUCH", Name: "Alice"}))

	ev := drainEvent(t, e)
	assert.Equal(t, EventRoomJoined, ev.Type)
	var reply roomJoinedPayload
	raw, _ := json.Marshal(ev.Payload)
	require.NoError(t, json.Unmarshal(raw, &reply))
	assert.False(t, reply.Ok)
	assert.Empty(t, reply.Code)
}

func TestDispatch_MoveShootHitRespawn(t *testing.T) {
	h := newHarness(t)
	a := h.connect("conn-a")
	b := h.connect("conn-b")

	h.server.dispatch("conn-a", envelope(t, MethodCreateRoom, joinPayload{Name: "Alice"}))
	created := drainEvent(t, a)
	var reply roomJoinedPayload
	raw, _ := json.Marshal(created.Payload)
	require.NoError(t, json.Unmarshal(raw, &reply))
	h.server.dispatch("conn-b", envelope(t, MethodJoinRoom, joinRoomPayload{Code: reply.Code, Name: "Bob"}))
	for i := 0; i < 3; i++ {
		drainEvent(t, b)
	}
	drainEvent(t, a) // PlayerJoined

	// Move: only the other member hears it.
	h.server.dispatch("conn-a", envelope(t, MethodUpdatePosition, movePayload{X: 10, Y: 20, Angle: 0.5}))
	assert.Equal(t, session.EventPlayerMoved, drainEvent(t, b).Type)
	select {
	case data := <-a.Events():
		t.Fatalf("mover received its own move: %s", data)
	default:
	}

	// Shoot: both members hear it.
	h.server.dispatch("conn-a", envelope(t, MethodShoot, shootPayload{Angle: 0}))
	fired := drainEvent(t, a)
	assert.Equal(t, session.EventBulletFired, fired.Type)
	assert.Equal(t, session.EventBulletFired, drainEvent(t, b).Type)

	firedRaw, _ := json.Marshal(fired.Payload)
	var bullet struct {
		ID string `json:"id"`
	}
	require.NoError(t, json.Unmarshal(firedRaw, &bullet))

	// Hit: fixed damage broadcast.
	h.server.dispatch("conn-b", envelope(t, MethodCheckHit, hitPayload{BulletID: bullet.ID, TargetID: "conn-b"}))
	assert.Equal(t, session.EventPlayerHit, drainEvent(t, a).Type)
	assert.Equal(t, session.EventPlayerHit, drainEvent(t, b).Type)

	// Respawn carries no payload.
	h.server.dispatch("conn-b", envelope(t, MethodRespawn, nil))
	assert.Equal(t, session.EventPlayerRespawned, drainEvent(t, a).Type)
	assert.Equal(t, session.EventPlayerRespawned, drainEvent(t, b).Type)
}

func TestDispatch_UnknownMethod(t *testing.T) {
	h := newHarness(t)
	e := h.connect("conn-a")

	h.server.dispatch("conn-a", Envelope{Type: "Teleport", Payload: []byte(`{}`)})
	select {
	case data := <-e.Events():
		t.Fatalf("unknown method produced an event: %s", data)
	default:
	}
}

func TestDispatch_MalformedPayload(t *testing.T) {
	h := newHarness(t)
	e := h.connect("conn-a")

	h.server.dispatch("conn-a", Envelope{Type: MethodUpdatePosition, Payload: []byte(`{"x": "not a number"}`)})
	select {
	case data := <-e.Events():
		t.Fatalf("malformed payload produced an event: %s", data)
	default:
	}
	assert.Equal(t, 0, h.registry.Count())
}

func TestServer_StopClosesIdleConnections(t *testing.T) {
	h := newHarness(t)
	ts := httptest.NewServer(http.HandlerFunc(h.server.handleWS))
	defer ts.Close()

	// ReadTimeout is zero in the harness config, so the reader blocks
	// indefinitely on an idle client; Stop must still return.
	url := "ws" + strings.TrimPrefix(ts.URL, "http")
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	defer conn.Close()

	require.Eventually(t, func() bool {
		h.server.mu.Lock()
		defer h.server.mu.Unlock()
		return len(h.server.conns) == 1
	}, time.Second, 10*time.Millisecond)

	done := make(chan struct{})
	go func() {
		h.server.Stop()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(3 * time.Second):
		t.Fatal("Stop did not return with an idle client connected")
	}

	h.server.mu.Lock()
	remaining := len(h.server.conns)
	h.server.mu.Unlock()
	assert.Equal(t, 0, remaining)

	// Stop is idempotent.
	h.server.Stop()
}

func TestServer_RejectsConnectionsAfterStop(t *testing.T) {
	h := newHarness(t)
	ts := httptest.NewServer(http.HandlerFunc(h.server.handleWS))
	defer ts.Close()

	h.server.Stop()

	url := "ws" + strings.TrimPrefix(ts.URL, "http")
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		return
	}
	defer conn.Close()

	// The upgrade may succeed, but the server closes the conn immediately
	// instead of serving it.
	_ = conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, _, readErr := conn.ReadMessage()
	assert.Error(t, readErr)

	h.server.mu.Lock()
	defer h.server.mu.Unlock()
	assert.Empty(t, h.server.conns)
}

func TestEnvelope_Decoding(t *testing.T) {
	raw := []byte(`{"type":"CheckHit","payload":{"bulletId":"b-1","targetId":"p-2"}}`)
	var env Envelope
	require.NoError(t, json.Unmarshal(raw, &env))
	assert.Equal(t, MethodCheckHit, env.Type)

	var p hitPayload
	require.NoError(t, json.Unmarshal(env.Payload, &p))
	assert.Equal(t, "b-1", p.BulletID)
	assert.Equal(t, "p-2", p.TargetID)
}
