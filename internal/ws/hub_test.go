package ws

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jason-s-yu/guts/internal/auth"
	"github.com/jason-s-yu/guts/internal/game"
)

type wireMessage struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload"`
}

func newWSTestServer(t *testing.T) (*httptest.Server, *game.Registry, *auth.Issuer) {
	t.Helper()
	log := logrus.New()
	log.SetLevel(logrus.ErrorLevel)

	issuer := auth.NewIssuer([]byte("test-secret"))
	hub := NewHub(issuer, []string{"*"}, log)
	registry := game.NewRegistry(hub, nil, log)
	hub.SetRegistry(registry)

	mux := http.NewServeMux()
	mux.Handle("/ws", hub)
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv, registry, issuer
}

func dialWS(t *testing.T, srv *httptest.Server) *websocket.Conn {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws"
	conn, _, err := websocket.Dial(ctx, url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close(websocket.StatusNormalClosure, "") })
	return conn
}

func sendMessage(t *testing.T, conn *websocket.Conn, msgType string, payload interface{}) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	raw, err := json.Marshal(payload)
	require.NoError(t, err)
	require.NoError(t, wsjson.Write(ctx, conn, wireMessage{Type: msgType, Payload: raw}))
}

func readMessage(t *testing.T, conn *websocket.Conn) wireMessage {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	var msg wireMessage
	require.NoError(t, wsjson.Read(ctx, conn, &msg))
	return msg
}

// createTestRoom makes a room and a player credential for it.
func createTestRoom(t *testing.T, registry *game.Registry, issuer *auth.Issuer) (roomCode, playerToken string) {
	t.Helper()
	room, err := registry.CreateRoom(func(code string) (string, error) {
		return issuer.Mint(code, auth.RoleHost)
	})
	require.NoError(t, err)

	playerToken, err = issuer.Mint(room.Code, auth.RolePlayer)
	require.NoError(t, err)
	return room.Code, playerToken
}

func TestJoinRoomOverWebsocket(t *testing.T) {
	srv, registry, issuer := newWSTestServer(t)
	roomCode, playerToken := createTestRoom(t, registry, issuer)

	conn := dialWS(t, srv)
	sendMessage(t, conn, "join_room", map[string]string{
		"roomCode":    roomCode,
		"playerToken": playerToken,
		"playerName":  "Alice",
	})

	msg := readMessage(t, conn)
	require.Equal(t, "room_joined", msg.Type)

	var joined struct {
		PlayerID string `json:"playerId"`
		Players  []struct {
			Name   string `json:"name"`
			IsHost bool   `json:"isHost"`
		} `json:"players"`
	}
	require.NoError(t, json.Unmarshal(msg.Payload, &joined))
	assert.NotEmpty(t, joined.PlayerID)
	require.Len(t, joined.Players, 1)
	assert.Equal(t, "Alice", joined.Players[0].Name)
}

func TestJoinRejectsForeignToken(t *testing.T) {
	srv, registry, issuer := newWSTestServer(t)
	roomCode, _ := createTestRoom(t, registry, issuer)
	otherCode, otherToken := createTestRoom(t, registry, issuer)
	require.NotEqual(t, roomCode, otherCode)

	conn := dialWS(t, srv)
	sendMessage(t, conn, "join_room", map[string]string{
		"roomCode":    roomCode,
		"playerToken": otherToken,
		"playerName":  "Mallory",
	})

	msg := readMessage(t, conn)
	require.Equal(t, "error", msg.Type)
	var payload struct {
		Message string `json:"message"`
	}
	require.NoError(t, json.Unmarshal(msg.Payload, &payload))
	assert.Equal(t, "Invalid token", payload.Message)
}

func TestJoinRequiresAllFields(t *testing.T) {
	srv, registry, issuer := newWSTestServer(t)
	roomCode, playerToken := createTestRoom(t, registry, issuer)

	conn := dialWS(t, srv)
	sendMessage(t, conn, "join_room", map[string]string{
		"roomCode":    roomCode,
		"playerToken": playerToken,
	})

	msg := readMessage(t, conn)
	assert.Equal(t, "error", msg.Type)
}

func TestUnknownMessageType(t *testing.T) {
	srv, registry, issuer := newWSTestServer(t)
	roomCode, playerToken := createTestRoom(t, registry, issuer)

	conn := dialWS(t, srv)
	sendMessage(t, conn, "join_room", map[string]string{
		"roomCode":    roomCode,
		"playerToken": playerToken,
		"playerName":  "Alice",
	})
	require.Equal(t, "room_joined", readMessage(t, conn).Type)

	sendMessage(t, conn, "do_a_backflip", map[string]string{})
	msg := readMessage(t, conn)
	require.Equal(t, "error", msg.Type)
	var payload struct {
		Message string `json:"message"`
	}
	require.NoError(t, json.Unmarshal(msg.Payload, &payload))
	assert.Contains(t, payload.Message, "do_a_backflip")
}

func TestBroadcastReachesBothPlayers(t *testing.T) {
	srv, registry, issuer := newWSTestServer(t)
	roomCode, tokenA := createTestRoom(t, registry, issuer)
	tokenB, err := issuer.Mint(roomCode, auth.RolePlayer)
	require.NoError(t, err)

	connA := dialWS(t, srv)
	sendMessage(t, connA, "join_room", map[string]string{
		"roomCode": roomCode, "playerToken": tokenA, "playerName": "Alice",
	})
	require.Equal(t, "room_joined", readMessage(t, connA).Type)

	connB := dialWS(t, srv)
	sendMessage(t, connB, "join_room", map[string]string{
		"roomCode": roomCode, "playerToken": tokenB, "playerName": "Bob",
	})
	require.Equal(t, "room_joined", readMessage(t, connB).Type)

	// Alice hears about Bob's arrival without any action of her own.
	msg := readMessage(t, connA)
	require.Equal(t, "player_joined", msg.Type)
	var payload struct {
		Player struct {
			Name string `json:"name"`
		} `json:"player"`
	}
	require.NoError(t, json.Unmarshal(msg.Payload, &payload))
	assert.Equal(t, "Bob", payload.Player.Name)
}

func TestRejectedLeaveKeepsConnectionUsable(t *testing.T) {
	srv, registry, issuer := newWSTestServer(t)
	roomCode, playerToken := createTestRoom(t, registry, issuer)

	conn := dialWS(t, srv)
	sendMessage(t, conn, "join_room", map[string]string{
		"roomCode":    roomCode,
		"playerToken": playerToken,
		"playerName":  "Alice",
	})
	joined := readMessage(t, conn)
	require.Equal(t, "room_joined", joined.Type)
	var joinPayload struct {
		PlayerID uuid.UUID `json:"playerId"`
	}
	require.NoError(t, json.Unmarshal(joined.Payload, &joinPayload))

	// Put Alice into debt so the leave is refused.
	room, err := registry.GetRoom(roomCode)
	require.NoError(t, err)
	alice := room.Player(joinPayload.PlayerID)
	require.NotNil(t, alice)
	room.Mu.Lock()
	alice.Balance = -150
	room.Mu.Unlock()

	sendMessage(t, conn, "leave_game", map[string]string{})
	require.Equal(t, "error", readMessage(t, conn).Type)

	// The refused leave must not unbind the socket: the buy-back the
	// player was just told to make still has to go through.
	sendMessage(t, conn, "buy_back_in", map[string]int{"amount": 150})

	msg := readMessage(t, conn)
	require.Equal(t, "buy_back_result", msg.Type)
	var result struct {
		Success    bool  `json:"success"`
		NewBalance int64 `json:"newBalance"`
	}
	require.NoError(t, json.Unmarshal(msg.Payload, &result))
	assert.True(t, result.Success)
	assert.Equal(t, int64(0), result.NewBalance)

	require.Equal(t, "player_balance_updated", readMessage(t, conn).Type)

	// The room was not removed out from under the refused leave either.
	_, err = registry.GetRoom(roomCode)
	assert.NoError(t, err)
}

func TestMessagesFromUnjoinedSocketAreIgnored(t *testing.T) {
	srv, registry, issuer := newWSTestServer(t)
	roomCode, playerToken := createTestRoom(t, registry, issuer)

	conn := dialWS(t, srv)
	sendMessage(t, conn, "start_game", map[string]string{})

	// The socket still works; a join after the ignored message succeeds.
	sendMessage(t, conn, "join_room", map[string]string{
		"roomCode":    roomCode,
		"playerToken": playerToken,
		"playerName":  "Alice",
	})
	assert.Equal(t, "room_joined", readMessage(t, conn).Type)
}
