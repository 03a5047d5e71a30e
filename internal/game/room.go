// Package game implements the authoritative Guts game room: lobby
// membership, the per-round hold/drop state machine, timed decision
// windows, and pot settlement.
package game

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/jason-s-yu/guts/internal/cache"
	"github.com/jason-s-yu/guts/internal/cards"
)

// Cents is a monetary amount in integer cents. Player balances may go
// negative (debt).
type Cents int64

// Monetary constants, in cents.
const (
	Ante           Cents = 50
	AllDropPenalty Cents = 50
	DefaultBuyIn   Cents = 2000
	MinBuyIn       Cents = 500
	MaxBuyIn       Cents = 10000
)

// MaxPlayers is the hard room capacity.
const MaxPlayers = 8

// RoomState is the room lifecycle state.
type RoomState string

const (
	StateLobby   RoomState = "lobby"
	StatePlaying RoomState = "playing"
	StateEnded   RoomState = "ended"
)

// Decision is a player's per-round choice.
type Decision string

const (
	DecisionHold Decision = "hold"
	DecisionDrop Decision = "drop"
)

// Player is a seat in a room. Players persist across disconnections for
// reconnection; they are removed only by a voluntary leave in the lobby.
type Player struct {
	ID        uuid.UUID
	Token     string
	Name      string
	Balance   Cents
	BuyIn     Cents
	IsHost    bool
	Active    bool
	Connected bool
}

// Timing holds every delay the room schedules. Production values come from
// DefaultTiming; tests shrink them.
type Timing struct {
	DecisionSeconds   int           // length of the decision window
	TickInterval      time.Duration // countdown tick resolution
	FirstRoundDelay   time.Duration // game_started -> first round
	RoundStartStagger time.Duration // cards_dealt -> round_started
	RevealDelay       time.Duration // decisions in -> reveal
	MultiResultDelay  time.Duration // reveal -> multi-holder result
	ShowdownDelay     time.Duration // showdown presentation -> result
}

// DefaultTiming returns the production pacing.
func DefaultTiming() Timing {
	return Timing{
		DecisionSeconds:   30,
		TickInterval:      time.Second,
		FirstRoundDelay:   2 * time.Second,
		RoundStartStagger: 200 * time.Millisecond,
		RevealDelay:       2 * time.Second,
		MultiResultDelay:  3 * time.Second,
		ShowdownDelay:     5 * time.Second,
	}
}

// Room is a single Guts game room. All mutation happens under Mu: inbound
// events, timer firings, and the registry sweep each take the lock and run
// to completion, so a room never sees concurrent state changes.
type Room struct {
	Code      string
	HostToken string

	Mu sync.Mutex

	state          RoomState
	players        []*Player
	pot            Cents
	round          int
	nothingRound   bool
	deck           []cards.Card
	hands          map[uuid.UUID][]cards.Card
	decisions      map[uuid.UUID]Decision
	pendingGameEnd bool
	roundResolved  bool
	lastActivity   time.Time

	timing         Timing
	countdownStop  chan struct{}
	timerRemaining int
	pending        []*time.Timer

	actionIndex int
	history     *cache.Publisher
	log         *logrus.Entry

	// shuffle permutes a fresh deck; swapped out by tests to exercise the
	// secure-source failure path.
	shuffle func([]cards.Card) error

	// Communication callbacks, assigned by the registry (or a test).
	BroadcastFn         func(ev Event)
	BroadcastToPlayerFn func(playerID uuid.UUID, ev Event)
}

// NewRoom creates a lobby-state room. Callbacks must be assigned before the
// first join.
func NewRoom(code, hostToken string, timing Timing, history *cache.Publisher, log *logrus.Logger) *Room {
	return &Room{
		Code:         code,
		HostToken:    hostToken,
		state:        StateLobby,
		hands:        make(map[uuid.UUID][]cards.Card),
		decisions:    make(map[uuid.UUID]Decision),
		timing:       timing,
		history:      history,
		lastActivity: time.Now(),
		shuffle:      cards.Shuffle,
		log:          log.WithField("room", code),
	}
}

// State returns the current lifecycle state.
func (r *Room) State() RoomState {
	r.Mu.Lock()
	defer r.Mu.Unlock()
	return r.state
}

// PlayerCount returns the number of seats, including detached ones.
func (r *Room) PlayerCount() int {
	r.Mu.Lock()
	defer r.Mu.Unlock()
	return len(r.players)
}

// Round returns the current round counter.
func (r *Room) Round() int {
	r.Mu.Lock()
	defer r.Mu.Unlock()
	return r.round
}

// Player returns the seat with the given ID, or nil. Callers mutating the
// returned seat must hold Mu.
func (r *Room) Player(id uuid.UUID) *Player {
	r.Mu.Lock()
	defer r.Mu.Unlock()
	return r.playerByIDLocked(id)
}

// LastActivity returns the idle-sweep reference time.
func (r *Room) LastActivity() time.Time {
	r.Mu.Lock()
	defer r.Mu.Unlock()
	return r.lastActivity
}

// Shutdown cancels every scheduled timer. Called when the registry deletes
// the room so late firings cannot touch a reaped room.
func (r *Room) Shutdown() {
	r.Mu.Lock()
	defer r.Mu.Unlock()
	r.stopCountdownLocked()
	r.cancelPendingLocked()
}

// HandleJoin admits a new player or reattaches a reconnecting one, keyed by
// the credential token. bind is invoked, under the room lock, after the
// player is resolved and before any event is emitted, so the caller can
// register the connection in time to receive the unicasts.
func (r *Room) HandleJoin(token, name string, bind func(playerID uuid.UUID)) error {
	r.Mu.Lock()
	defer r.Mu.Unlock()
	r.lastActivity = time.Now()

	p := r.playerByTokenLocked(token)
	if p == nil {
		if r.state != StateLobby {
			return ErrGameStarted
		}
		if len(r.players) >= MaxPlayers {
			return ErrRoomFull
		}
		p = &Player{
			ID:        uuid.New(),
			Token:     token,
			Name:      name,
			BuyIn:     DefaultBuyIn,
			IsHost:    len(r.players) == 0 && token == r.HostToken,
			Active:    true,
			Connected: true,
		}
		r.players = append(r.players, p)
		bind(p.ID)
		r.logAction(p.ID, "player_join", map[string]interface{}{"name": name})
	} else {
		// Reconnection: reactivate the seat and resync the client.
		p.Connected = true
		p.Active = true
		p.Name = name
		bind(p.ID)
		r.logAction(p.ID, "player_reconnect", map[string]interface{}{"name": name})

		if r.state == StatePlaying {
			r.unicastLocked(p.ID, RoundStarted{
				Round:        r.round,
				Pot:          r.pot,
				NothingRound: r.nothingRound,
				Players:      r.playerViewsLocked(),
			})
			if hand, ok := r.hands[p.ID]; ok {
				r.unicastLocked(p.ID, CardsDealt{
					Cards:        hand,
					Round:        r.round,
					NothingRound: r.nothingRound,
					PlayerID:     p.ID,
				})
			}
			if r.countdownStop != nil {
				r.unicastLocked(p.ID, TimerStarted{Duration: r.timerRemaining})
			}
		}
	}

	r.unicastLocked(p.ID, RoomJoined{
		PlayerID: p.ID,
		Players:  r.playerViewsLocked(),
		GameState: GameStateView{
			State: r.state,
			Round: r.round,
			Pot:   r.pot,
			BuyIn: p.BuyIn,
		},
	})
	r.broadcastExceptLocked(p.ID, PlayerJoined{Player: viewOf(p)})
	return nil
}

// HandleSetBuyIn records a player's chosen stake while in the lobby.
func (r *Room) HandleSetBuyIn(playerID uuid.UUID, amount Cents) {
	r.Mu.Lock()
	defer r.Mu.Unlock()
	r.lastActivity = time.Now()

	p := r.playerByIDLocked(playerID)
	if p == nil {
		return
	}
	if r.state != StateLobby {
		r.unicastLocked(playerID, ErrorEvent{Message: "Buy-in can only be changed in the lobby"})
		return
	}
	if amount < MinBuyIn || amount > MaxBuyIn {
		r.unicastLocked(playerID, ErrorEvent{Message: "Buy-in must be between $5 and $100"})
		return
	}

	p.BuyIn = amount
	r.broadcastLocked(BuyInUpdated{
		PlayerID: p.ID,
		BuyIn:    amount,
		Players:  r.playerViewsLocked(),
	})
}

// HandleBuyBack adds funds to a player's balance. A player in debt must buy
// back at least enough to clear it.
func (r *Room) HandleBuyBack(playerID uuid.UUID, amount Cents) {
	r.Mu.Lock()
	defer r.Mu.Unlock()

	p := r.playerByIDLocked(playerID)
	if p == nil {
		return
	}
	if amount <= 0 {
		r.unicastLocked(playerID, BuyBackResult{
			Message:    "Invalid buy-back amount",
			PlayerID:   p.ID,
			NewBalance: p.Balance,
		})
		return
	}
	if p.Balance < 0 && amount < -p.Balance {
		r.unicastLocked(playerID, BuyBackResult{
			Message:    "You must buy back at least " + formatCents(-p.Balance) + " to cover your debt",
			PlayerID:   p.ID,
			NewBalance: p.Balance,
		})
		return
	}

	p.Balance += amount
	// An ante-eliminated player who refunds while still connected rejoins
	// the dealing pool at the next round start.
	if p.Connected {
		p.Active = true
	}
	r.lastActivity = time.Now()
	r.logAction(p.ID, "buy_back", map[string]interface{}{"amount": amount})

	r.unicastLocked(playerID, BuyBackResult{
		Success:    true,
		Message:    "Buy-back successful",
		PlayerID:   p.ID,
		NewBalance: p.Balance,
	})
	r.broadcastLocked(PlayerBalanceUpdated{
		PlayerID:      p.ID,
		NewBalance:    p.Balance,
		BuyBackAmount: amount,
	})
}

// HandleLeave processes a voluntary departure. Leaving is refused while the
// player is in debt; left reports whether the leave took effect so the
// caller keeps the connection bound after a refusal. In the lobby the seat
// is removed outright (with host reassignment); mid-game the seat is kept
// inactive for a possible return. empty reports whether the room has no
// seats left.
func (r *Room) HandleLeave(playerID uuid.UUID) (left, empty bool) {
	r.Mu.Lock()
	defer r.Mu.Unlock()
	r.lastActivity = time.Now()

	p := r.playerByIDLocked(playerID)
	if p == nil {
		return false, len(r.players) == 0
	}
	if p.Balance < 0 {
		r.unicastLocked(playerID, ErrorEvent{
			Message: "You cannot leave while in debt. You must buy back at least " + formatCents(-p.Balance) + " first.",
		})
		return false, false
	}

	r.logAction(p.ID, "player_leave", nil)

	if r.state == StateLobby {
		for i, seat := range r.players {
			if seat.ID == p.ID {
				r.players = append(r.players[:i], r.players[i+1:]...)
				break
			}
		}
		if p.IsHost && len(r.players) > 0 {
			r.players[0].IsHost = true
		}
		r.broadcastLocked(PlayerLeft{PlayerID: p.ID, PlayerName: p.Name})
	} else {
		p.Active = false
		p.Connected = false
		r.autoDropLocked(p.ID)
	}
	return true, len(r.players) == 0
}

// HandleDisconnect marks a player's seat detached without removing it, and
// without telling the others, so transient drops do not produce false
// "left" notices. A pending decision converts to drop so the round cannot
// stall.
func (r *Room) HandleDisconnect(playerID uuid.UUID) {
	r.Mu.Lock()
	defer r.Mu.Unlock()

	p := r.playerByIDLocked(playerID)
	if p == nil {
		return
	}
	p.Active = false
	p.Connected = false
	r.logAction(p.ID, "player_disconnect", nil)
	r.autoDropLocked(p.ID)
}

// HandleEmote relays an emote to the room. Invalid emote paths are ignored
// silently.
func (r *Room) HandleEmote(playerID uuid.UUID, emoteURL string) {
	r.Mu.Lock()
	defer r.Mu.Unlock()

	p := r.playerByIDLocked(playerID)
	if p == nil {
		return
	}
	if !strings.Contains(emoteURL, "/emotes/emote-") {
		return
	}
	r.broadcastLocked(PlayerEmote{
		PlayerID:   p.ID,
		PlayerName: p.Name,
		EmoteURL:   emoteURL,
	})
}

// autoDropLocked records a drop for a player with an open decision, then
// resolves the round if theirs was the last outstanding one.
func (r *Room) autoDropLocked(playerID uuid.UUID) {
	if r.state != StatePlaying || r.roundResolved {
		return
	}
	if _, dealt := r.hands[playerID]; !dealt {
		return
	}
	if _, decided := r.decisions[playerID]; decided {
		return
	}
	r.decisions[playerID] = DecisionDrop
	if r.allDecidedLocked() {
		r.stopCountdownLocked()
		r.resolveRoundLocked()
	}
}

// ---------------------------------------------------------------------------
// Locked helpers
// ---------------------------------------------------------------------------

func (r *Room) playerByIDLocked(id uuid.UUID) *Player {
	for _, p := range r.players {
		if p.ID == id {
			return p
		}
	}
	return nil
}

func (r *Room) playerByTokenLocked(token string) *Player {
	for _, p := range r.players {
		if p.Token == token {
			return p
		}
	}
	return nil
}

func viewOf(p *Player) PlayerView {
	return PlayerView{
		ID:       p.ID,
		Name:     p.Name,
		IsHost:   p.IsHost,
		Balance:  p.Balance,
		BuyIn:    p.BuyIn,
		IsActive: p.Active,
	}
}

func (r *Room) playerViewsLocked() []PlayerView {
	views := make([]PlayerView, len(r.players))
	for i, p := range r.players {
		views[i] = viewOf(p)
	}
	return views
}

func (r *Room) balancesLocked() []BalanceView {
	balances := make([]BalanceView, len(r.players))
	for i, p := range r.players {
		balances[i] = BalanceView{PlayerID: p.ID, Balance: p.Balance}
	}
	return balances
}

func (r *Room) broadcastLocked(ev Event) {
	if r.BroadcastFn != nil {
		r.BroadcastFn(ev)
	} else {
		r.log.Warnf("BroadcastFn is nil, dropping %s", ev.Event())
	}
}

func (r *Room) unicastLocked(playerID uuid.UUID, ev Event) {
	if r.BroadcastToPlayerFn != nil {
		r.BroadcastToPlayerFn(playerID, ev)
	} else {
		r.log.Warnf("BroadcastToPlayerFn is nil, dropping %s for %s", ev.Event(), playerID)
	}
}

// broadcastExceptLocked unicasts ev to every connected player but one.
func (r *Room) broadcastExceptLocked(except uuid.UUID, ev Event) {
	for _, p := range r.players {
		if p.ID != except && p.Connected {
			r.unicastLocked(p.ID, ev)
		}
	}
}

// schedule registers a pacing timer. The callback takes the room lock and
// is a no-op once the room has moved past the state that scheduled it;
// cancelPendingLocked stops everything still outstanding.
func (r *Room) schedule(d time.Duration, fn func()) {
	timer := time.AfterFunc(d, fn)
	r.pending = append(r.pending, timer)
}

func (r *Room) cancelPendingLocked() {
	for _, timer := range r.pending {
		timer.Stop()
	}
	r.pending = nil
}

// logAction publishes an action record to the history sink, if configured.
func (r *Room) logAction(actorID uuid.UUID, actionType string, payload map[string]interface{}) {
	r.actionIndex++
	if r.history == nil {
		return
	}
	rec := cache.ActionRecord{
		RoomCode:    r.Code,
		ActionIndex: r.actionIndex,
		ActorID:     actorID.String(),
		ActionType:  actionType,
		Payload:     payload,
		Timestamp:   time.Now().UnixMilli(),
	}
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		if err := r.history.Publish(ctx, rec); err != nil {
			r.log.WithError(err).Warnf("failed publishing action %d (%s)", rec.ActionIndex, rec.ActionType)
		}
	}()
}

// formatCents renders a cents amount as a dollar string for user-facing
// messages.
func formatCents(c Cents) string {
	sign := ""
	if c < 0 {
		sign = "-"
		c = -c
	}
	return fmt.Sprintf("%s$%d.%02d", sign, c/100, c%100)
}
