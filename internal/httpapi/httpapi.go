// Package httpapi serves the small REST surface used to create and join
// rooms before the websocket session begins.
package httpapi

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/jason-s-yu/guts/internal/auth"
	"github.com/jason-s-yu/guts/internal/game"
)

type Server struct {
	registry *game.Registry
	issuer   *auth.Issuer
	log      *logrus.Logger
}

func NewServer(registry *game.Registry, issuer *auth.Issuer, log *logrus.Logger) *Server {
	return &Server{registry: registry, issuer: issuer, log: log}
}

// Routes mounts the REST endpoints on mux.
func (s *Server) Routes(mux *http.ServeMux) {
	mux.HandleFunc("POST /api/game/create", s.handleCreate)
	mux.HandleFunc("POST /api/game/join", s.handleJoin)
	mux.HandleFunc("GET /api/game/{code}/status", s.handleStatus)
	mux.HandleFunc("GET /api/health", s.handleHealth)
}

func (s *Server) handleCreate(w http.ResponseWriter, r *http.Request) {
	var hostToken string
	room, err := s.registry.CreateRoom(func(code string) (string, error) {
		token, err := s.issuer.Mint(code, auth.RoleHost)
		hostToken = token
		return token, err
	})
	if err != nil {
		s.log.WithError(err).Error("create room failed")
		writeError(w, http.StatusInternalServerError, "Could not create room")
		return
	}

	s.log.WithField("room", room.Code).Info("room created")
	writeJSON(w, http.StatusOK, map[string]string{
		"roomCode":  room.Code,
		"hostToken": hostToken,
	})
}

type joinRequest struct {
	RoomCode   string `json:"roomCode"`
	PlayerName string `json:"playerName"`
}

func (s *Server) handleJoin(w http.ResponseWriter, r *http.Request) {
	var req joinRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.RoomCode == "" || req.PlayerName == "" {
		writeError(w, http.StatusBadRequest, "roomCode and playerName are required")
		return
	}

	room, err := s.registry.GetRoom(req.RoomCode)
	if err != nil {
		writeError(w, http.StatusNotFound, "Room not found")
		return
	}
	if room.State() != game.StateLobby {
		writeError(w, http.StatusConflict, "Game already in progress")
		return
	}
	if room.PlayerCount() >= game.MaxPlayers {
		writeError(w, http.StatusConflict, "Room is full")
		return
	}

	token, err := s.issuer.Mint(req.RoomCode, auth.RolePlayer)
	if err != nil {
		s.log.WithError(err).Error("mint player token failed")
		writeError(w, http.StatusInternalServerError, "Could not join room")
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{
		"playerToken": token,
		"roomCode":    req.RoomCode,
	})
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	room, err := s.registry.GetRoom(r.PathValue("code"))
	if err != nil {
		writeError(w, http.StatusNotFound, "Room not found")
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"state":       room.State(),
		"playerCount": room.PlayerCount(),
		"round":       room.Round(),
	})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"status":    "ok",
		"timestamp": time.Now().UTC().Format(time.RFC3339),
	})
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
