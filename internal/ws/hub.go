// Package ws owns the websocket surface: accepting connections, routing
// inbound messages to rooms, and fanning room events back out to the
// sockets bound to them.
package ws

import (
	"context"
	"sync"
	"time"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/jason-s-yu/guts/internal/auth"
	"github.com/jason-s-yu/guts/internal/game"
)

const writeTimeout = 5 * time.Second

// client is one accepted websocket connection. A client starts unbound and
// becomes bound to exactly one (room, player) pair on a successful join.
type client struct {
	conn *websocket.Conn

	// writeMu serializes writes; the websocket library permits only one
	// concurrent writer per connection.
	writeMu sync.Mutex

	mu       sync.Mutex
	bound    bool
	roomCode string
	playerID uuid.UUID
}

func (c *client) binding() (string, uuid.UUID, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.roomCode, c.playerID, c.bound
}

func (c *client) send(ev game.Event) {
	ctx, cancel := context.WithTimeout(context.Background(), writeTimeout)
	defer cancel()

	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	_ = wsjson.Write(ctx, c.conn, outboundEnvelope{Type: ev.Event(), Payload: ev})
}

// outboundEnvelope is the wire shape of every server-to-client message.
type outboundEnvelope struct {
	Type    game.EventType `json:"type"`
	Payload game.Event     `json:"payload"`
}

// Hub tracks which connection is bound to which player in which room and
// implements game.Emitter on top of that table.
type Hub struct {
	registry *game.Registry
	issuer   *auth.Issuer
	log      *logrus.Logger

	// origin patterns accepted during the websocket handshake.
	originPatterns []string

	mu      sync.Mutex
	clients map[string]map[uuid.UUID]*client // roomCode -> playerID -> client
}

func NewHub(issuer *auth.Issuer, originPatterns []string, log *logrus.Logger) *Hub {
	return &Hub{
		issuer:         issuer,
		originPatterns: originPatterns,
		log:            log,
		clients:        make(map[string]map[uuid.UUID]*client),
	}
}

// SetRegistry wires the room registry. Done post-construction because the
// registry needs the hub as its emitter.
func (h *Hub) SetRegistry(reg *game.Registry) {
	h.registry = reg
}

// Broadcast sends an event to every connection bound to the room.
func (h *Hub) Broadcast(roomCode string, ev game.Event) {
	for _, c := range h.roomClients(roomCode) {
		c.send(ev)
	}
}

// Unicast sends an event to the single connection bound to the player, if
// one is currently attached.
func (h *Hub) Unicast(roomCode string, playerID uuid.UUID, ev game.Event) {
	h.mu.Lock()
	c := h.clients[roomCode][playerID]
	h.mu.Unlock()
	if c != nil {
		c.send(ev)
	}
}

func (h *Hub) roomClients(roomCode string) []*client {
	h.mu.Lock()
	defer h.mu.Unlock()
	out := make([]*client, 0, len(h.clients[roomCode]))
	for _, c := range h.clients[roomCode] {
		out = append(out, c)
	}
	return out
}

// bind attaches a client to a (room, player) pair, displacing any stale
// connection previously bound to the same player. Called from inside
// Room.HandleJoin, under the room lock, so the binding is visible before
// the join events are emitted.
func (h *Hub) bind(c *client, roomCode string, playerID uuid.UUID) {
	h.mu.Lock()
	room, ok := h.clients[roomCode]
	if !ok {
		room = make(map[uuid.UUID]*client)
		h.clients[roomCode] = room
	}
	stale := room[playerID]
	room[playerID] = c
	h.mu.Unlock()

	c.mu.Lock()
	c.bound = true
	c.roomCode = roomCode
	c.playerID = playerID
	c.mu.Unlock()

	if stale != nil && stale != c {
		stale.conn.Close(websocket.StatusPolicyViolation, "superseded by a new connection")
	}
}

// unbind detaches a client if it still owns its slot in the table. Returns
// false when a newer connection has already taken over the player.
func (h *Hub) unbind(c *client) bool {
	roomCode, playerID, bound := c.binding()
	if !bound {
		return false
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	room := h.clients[roomCode]
	if room == nil || room[playerID] != c {
		return false
	}
	delete(room, playerID)
	if len(room) == 0 {
		delete(h.clients, roomCode)
	}
	return true
}
