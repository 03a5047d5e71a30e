package game

import (
	"context"
	"crypto/rand"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/jason-s-yu/guts/internal/cache"
)

const codeAlphabet = "ABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"

// Emitter delivers outbound events to the connections bound to a room.
// The websocket hub implements it.
type Emitter interface {
	Broadcast(roomCode string, ev Event)
	Unicast(roomCode string, playerID uuid.UUID, ev Event)
}

// Registry holds every live room in memory. It is constructed at process
// start and injected wherever rooms are created or looked up; the periodic
// idle sweep is its only garbage collection.
type Registry struct {
	// Tunables; set before Run. Zero values fall back to the defaults
	// below.
	Timing        Timing
	IdleTimeout   time.Duration
	SweepInterval time.Duration

	mu      sync.Mutex
	rooms   map[string]*Room
	emitter Emitter
	history *cache.Publisher
	log     *logrus.Logger
}

// NewRegistry creates an empty registry with production timing.
func NewRegistry(emitter Emitter, history *cache.Publisher, log *logrus.Logger) *Registry {
	return &Registry{
		Timing:        DefaultTiming(),
		IdleTimeout:   5 * time.Minute,
		SweepInterval: 5 * time.Minute,
		rooms:         make(map[string]*Room),
		emitter:       emitter,
		history:       history,
		log:           log,
	}
}

// CreateRoom generates a unique 6-character room code, retrying on
// collision against live rooms, and registers a lobby-state room. The host
// credential is minted by the caller once the code is known (it is scoped
// to the room), via mintToken.
func (reg *Registry) CreateRoom(mintToken func(code string) (string, error)) (*Room, error) {
	reg.mu.Lock()
	defer reg.mu.Unlock()

	var code string
	for {
		generated, err := generateRoomCode()
		if err != nil {
			return nil, err
		}
		if _, taken := reg.rooms[generated]; !taken {
			code = generated
			break
		}
	}

	hostToken, err := mintToken(code)
	if err != nil {
		return nil, err
	}

	room := NewRoom(code, hostToken, reg.Timing, reg.history, reg.log)
	emitter := reg.emitter
	room.BroadcastFn = func(ev Event) { emitter.Broadcast(code, ev) }
	room.BroadcastToPlayerFn = func(playerID uuid.UUID, ev Event) { emitter.Unicast(code, playerID, ev) }

	reg.rooms[code] = room
	reg.log.WithField("room", code).Info("room created")
	return room, nil
}

// GetRoom returns the live room with the given code.
func (reg *Registry) GetRoom(code string) (*Room, error) {
	reg.mu.Lock()
	defer reg.mu.Unlock()
	room, ok := reg.rooms[code]
	if !ok {
		return nil, ErrRoomNotFound
	}
	return room, nil
}

// RemoveRoom deletes a room outright. Used when the last player leaves a
// lobby.
func (reg *Registry) RemoveRoom(code string) {
	reg.mu.Lock()
	room, ok := reg.rooms[code]
	if ok {
		delete(reg.rooms, code)
	}
	reg.mu.Unlock()

	if ok {
		room.Shutdown()
		reg.log.WithField("room", code).Info("room removed")
	}
}

// RoomCount returns the number of live rooms.
func (reg *Registry) RoomCount() int {
	reg.mu.Lock()
	defer reg.mu.Unlock()
	return len(reg.rooms)
}

// Run drives the idle sweep until ctx is cancelled.
func (reg *Registry) Run(ctx context.Context) {
	ticker := time.NewTicker(reg.SweepInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			reg.Sweep(time.Now())
		}
	}
}

// Sweep deletes every room idle beyond the timeout, regardless of state.
// A room with only detached players counts as idle; the sweep interval is
// coarser than any reconnection expectation, which is an accepted tradeoff.
func (reg *Registry) Sweep(now time.Time) {
	reg.mu.Lock()
	var reaped []*Room
	for code, room := range reg.rooms {
		if now.Sub(room.LastActivity()) > reg.IdleTimeout {
			delete(reg.rooms, code)
			reaped = append(reaped, room)
		}
	}
	reg.mu.Unlock()

	for _, room := range reaped {
		room.Shutdown()
		reg.log.WithField("room", room.Code).Info("reaped idle room")
	}
}

// generateRoomCode draws 6 characters uniformly from A-Z0-9 using
// crypto/rand.
func generateRoomCode() (string, error) {
	var buf [6]byte
	if _, err := rand.Read(buf[:]); err != nil {
		return "", fmt.Errorf("room code generation: %w", err)
	}
	code := make([]byte, 6)
	for i, b := range buf {
		code[i] = codeAlphabet[int(b)%len(codeAlphabet)]
	}
	return string(code), nil
}
