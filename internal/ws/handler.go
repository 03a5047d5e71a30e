package ws

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/jason-s-yu/guts/internal/game"
)

// inboundEnvelope is the wire shape of every client-to-server message.
type inboundEnvelope struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload"`
}

type joinRoomPayload struct {
	RoomCode    string `json:"roomCode"`
	PlayerToken string `json:"playerToken"`
	PlayerName  string `json:"playerName"`
}

type setBuyInPayload struct {
	BuyInAmount game.Cents `json:"buyInAmount"`
}

type decisionPayload struct {
	Decision string `json:"decision"`
}

type buyBackPayload struct {
	Amount game.Cents `json:"amount"`
}

type emotePayload struct {
	EmoteURL string `json:"emoteUrl"`
}

// ServeHTTP upgrades the request and runs the connection's read loop until
// the peer goes away.
func (h *Hub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{
		OriginPatterns: h.originPatterns,
	})
	if err != nil {
		h.log.WithError(err).Warn("websocket accept failed")
		return
	}

	c := &client{conn: conn}
	h.readLoop(r.Context(), c)
}

func (h *Hub) readLoop(ctx context.Context, c *client) {
	defer h.dropClient(c)

	for {
		var env inboundEnvelope
		if err := wsjson.Read(ctx, c.conn, &env); err != nil {
			var closeErr websocket.CloseError
			if !errors.As(err, &closeErr) && ctx.Err() == nil {
				h.log.WithError(err).Debug("websocket read ended")
			}
			return
		}
		h.dispatch(c, env)
	}
}

// dropClient handles the end of a connection's life: if it was still the
// player's active socket, mark the player disconnected in the room.
func (h *Hub) dropClient(c *client) {
	roomCode, playerID, bound := c.binding()
	if h.unbind(c) && bound {
		if room, err := h.registry.GetRoom(roomCode); err == nil {
			room.HandleDisconnect(playerID)
		}
	}
	c.conn.Close(websocket.StatusNormalClosure, "")
}

func (h *Hub) dispatch(c *client, env inboundEnvelope) {
	if env.Type == "join_room" {
		h.handleJoin(c, env.Payload)
		return
	}

	roomCode, playerID, bound := c.binding()
	if !bound {
		// Messages from sockets that never joined are dropped.
		return
	}
	room, err := h.registry.GetRoom(roomCode)
	if err != nil {
		c.send(game.ErrorEvent{Message: "Room not found"})
		return
	}

	switch env.Type {
	case "set_buy_in":
		var p setBuyInPayload
		if !decodePayload(c, env.Payload, &p) {
			return
		}
		room.HandleSetBuyIn(playerID, p.BuyInAmount)
	case "start_game":
		room.HandleStartGame(playerID)
	case "player_decision":
		var p decisionPayload
		if !decodePayload(c, env.Payload, &p) {
			return
		}
		room.HandleDecision(playerID, game.Decision(p.Decision))
	case "next_round":
		room.HandleNextRound(playerID)
	case "buy_back_in":
		var p buyBackPayload
		if !decodePayload(c, env.Payload, &p) {
			return
		}
		room.HandleBuyBack(playerID, p.Amount)
	case "send_emote":
		var p emotePayload
		if !decodePayload(c, env.Payload, &p) {
			return
		}
		room.HandleEmote(playerID, p.EmoteURL)
	case "leave_game":
		h.handleLeave(c, room, playerID)
	default:
		c.send(game.ErrorEvent{Message: "Unknown message type: " + env.Type})
	}
}

func (h *Hub) handleJoin(c *client, payload json.RawMessage) {
	var p joinRoomPayload
	if !decodePayload(c, payload, &p) {
		return
	}
	if p.RoomCode == "" || p.PlayerToken == "" || p.PlayerName == "" {
		c.send(game.ErrorEvent{Message: game.ErrMissingFields.Error()})
		return
	}

	claims, err := h.issuer.Verify(p.PlayerToken)
	if err != nil || claims.RoomCode != p.RoomCode {
		c.send(game.ErrorEvent{Message: "Invalid token"})
		return
	}

	room, err := h.registry.GetRoom(p.RoomCode)
	if err != nil {
		c.send(game.ErrorEvent{Message: "Room not found"})
		return
	}

	err = room.HandleJoin(p.PlayerToken, p.PlayerName, func(playerID uuid.UUID) {
		h.bind(c, p.RoomCode, playerID)
	})
	if err != nil {
		c.send(game.ErrorEvent{Message: joinErrorMessage(err)})
	}
}

func (h *Hub) handleLeave(c *client, room *game.Room, playerID uuid.UUID) {
	left, empty := room.HandleLeave(playerID)
	if !left {
		// The room refused the leave (debt); the player stays bound so
		// they can still buy back over this connection.
		return
	}
	h.unbind(c)
	c.mu.Lock()
	c.bound = false
	c.mu.Unlock()

	if empty {
		code := room.Code
		h.registry.RemoveRoom(code)
		h.log.WithFields(logrus.Fields{"room": code}).Info("room closed, last player left")
	}
}

func joinErrorMessage(err error) string {
	switch {
	case errors.Is(err, game.ErrGameStarted):
		return "Game already in progress"
	case errors.Is(err, game.ErrRoomFull):
		return "Room is full"
	default:
		return err.Error()
	}
}

func decodePayload(c *client, raw json.RawMessage, v interface{}) bool {
	if len(raw) == 0 {
		c.send(game.ErrorEvent{Message: game.ErrMissingFields.Error()})
		return false
	}
	if err := json.Unmarshal(raw, v); err != nil {
		c.send(game.ErrorEvent{Message: "Malformed payload"})
		return false
	}
	return true
}
