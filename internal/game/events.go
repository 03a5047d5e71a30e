package game

import (
	"github.com/google/uuid"

	"github.com/jason-s-yu/guts/internal/cards"
)

// EventType names an outbound event on the wire.
type EventType string

// Outbound event names. cards_dealt is unicast-only: it must never be
// broadcast carrying another player's cards.
const (
	EventRoomJoined            EventType = "room_joined"
	EventPlayerJoined          EventType = "player_joined"
	EventPlayerLeft            EventType = "player_left"
	EventBuyInUpdated          EventType = "buy_in_updated"
	EventGameStarted           EventType = "game_started"
	EventRoundStarted          EventType = "round_started"
	EventCardsDealt            EventType = "cards_dealt"
	EventTimerStarted          EventType = "timer_started"
	EventTimerTick             EventType = "timer_tick"
	EventPlayerDecided         EventType = "player_decided"
	EventRoundReveal           EventType = "round_reveal"
	EventAllDropped            EventType = "all_dropped"
	EventMultipleHoldersResult EventType = "multiple_holders_result"
	EventSingleHolderVsDeck    EventType = "single_holder_vs_deck"
	EventDeckShowdownResult    EventType = "deck_showdown_result"
	EventGameEnded             EventType = "game_ended"
	EventGameReset             EventType = "game_reset"
	EventBuyBackResult         EventType = "buy_back_result"
	EventPlayerBalanceUpdated  EventType = "player_balance_updated"
	EventPlayerEmote           EventType = "player_emote"
	EventError                 EventType = "error"
)

// Event is the closed set of outbound payloads. Every payload type below
// implements it; the dispatcher wraps the payload in a {type, payload}
// envelope keyed by Event().
type Event interface {
	Event() EventType
}

// PlayerView is the public snapshot of a player carried on room events.
// Monetary amounts are integer cents.
type PlayerView struct {
	ID       uuid.UUID `json:"id"`
	Name     string    `json:"name"`
	IsHost   bool      `json:"isHost"`
	Balance  Cents     `json:"balance"`
	BuyIn    Cents     `json:"buyInAmount"`
	IsActive bool      `json:"isActive"`
}

// BalanceView pairs a player with their balance after a settlement.
type BalanceView struct {
	PlayerID uuid.UUID `json:"playerId"`
	Balance  Cents     `json:"balance"`
}

// GameStateView is the room summary sent on join.
type GameStateView struct {
	State RoomState `json:"state"`
	Round int       `json:"round"`
	Pot   Cents     `json:"pot"`
	BuyIn Cents     `json:"buyInAmount"`
}

// RoomJoined confirms a join to the joining player only.
type RoomJoined struct {
	PlayerID  uuid.UUID     `json:"playerId"`
	Players   []PlayerView  `json:"players"`
	GameState GameStateView `json:"gameState"`
}

func (RoomJoined) Event() EventType { return EventRoomJoined }

// PlayerJoined announces a new player to the rest of the room.
type PlayerJoined struct {
	Player PlayerView `json:"player"`
}

func (PlayerJoined) Event() EventType { return EventPlayerJoined }

// PlayerLeft announces a voluntary lobby departure.
type PlayerLeft struct {
	PlayerID   uuid.UUID `json:"playerId"`
	PlayerName string    `json:"playerName"`
}

func (PlayerLeft) Event() EventType { return EventPlayerLeft }

// BuyInUpdated broadcasts a player's chosen stake.
type BuyInUpdated struct {
	PlayerID uuid.UUID    `json:"playerId"`
	BuyIn    Cents        `json:"buyInAmount"`
	Players  []PlayerView `json:"players"`
}

func (BuyInUpdated) Event() EventType { return EventBuyInUpdated }

// GameStarted broadcasts the transition out of the lobby.
type GameStarted struct {
	Players []PlayerView `json:"players"`
}

func (GameStarted) Event() EventType { return EventGameStarted }

// RoundStarted broadcasts the start of a round after cards have been dealt.
type RoundStarted struct {
	Round        int          `json:"round"`
	Pot          Cents        `json:"pot"`
	NothingRound bool         `json:"isNothingRound"`
	Players      []PlayerView `json:"players"`
}

func (RoundStarted) Event() EventType { return EventRoundStarted }

// CardsDealt delivers a player's private hand. Unicast only.
type CardsDealt struct {
	Cards        []cards.Card `json:"cards"`
	Round        int          `json:"round"`
	NothingRound bool         `json:"isNothingRound"`
	PlayerID     uuid.UUID    `json:"playerId"`
}

func (CardsDealt) Event() EventType { return EventCardsDealt }

// TimerStarted opens the decision window.
type TimerStarted struct {
	Duration int `json:"duration"`
}

func (TimerStarted) Event() EventType { return EventTimerStarted }

// TimerTick reports remaining decision seconds at 1-second resolution.
type TimerTick struct {
	Remaining int `json:"remaining"`
}

func (TimerTick) Event() EventType { return EventTimerTick }

// PlayerDecided announces that a player has decided, without revealing
// the choice.
type PlayerDecided struct {
	PlayerID   uuid.UUID `json:"playerId"`
	PlayerName string    `json:"playerName"`
}

func (PlayerDecided) Event() EventType { return EventPlayerDecided }

// DecisionReveal is one player's revealed decision; Cards is set only for
// holders.
type DecisionReveal struct {
	PlayerID   uuid.UUID    `json:"playerId"`
	PlayerName string       `json:"playerName"`
	Decision   Decision     `json:"decision"`
	Cards      []cards.Card `json:"cards,omitempty"`
}

// RoundReveal shows everyone's decisions (and holders' cards) before the
// outcome resolves.
type RoundReveal struct {
	Decisions []DecisionReveal `json:"decisions"`
	Pot       Cents            `json:"pot"`
}

func (RoundReveal) Event() EventType { return EventRoundReveal }

// AllDropped reports the everyone-folded outcome and the penalties paid.
type AllDropped struct {
	Pot      Cents         `json:"pot"`
	Balances []BalanceView `json:"balances"`
}

func (AllDropped) Event() EventType { return EventAllDropped }

// HolderResult identifies the winning holder of a multi-holder showdown.
type HolderResult struct {
	PlayerID   uuid.UUID    `json:"playerId"`
	PlayerName string       `json:"playerName"`
	Cards      []cards.Card `json:"cards"`
	HandType   string       `json:"handType"`
}

// LoserPayment is one losing holder's pot-matching penalty.
type LoserPayment struct {
	PlayerID   uuid.UUID `json:"playerId"`
	PlayerName string    `json:"playerName"`
	Amount     Cents     `json:"amount"`
}

// MultipleHoldersResult reports a showdown between two or more holders.
type MultipleHoldersResult struct {
	Winner        HolderResult   `json:"winner"`
	WinAmount     Cents          `json:"winAmount"`
	LoserPayments []LoserPayment `json:"loserPayments"`
	NewPot        Cents          `json:"newPot"`
	Balances      []BalanceView  `json:"balances"`
}

func (MultipleHoldersResult) Event() EventType { return EventMultipleHoldersResult }

// NamedPlayer identifies a player on showdown events.
type NamedPlayer struct {
	PlayerID   uuid.UUID `json:"playerId"`
	PlayerName string    `json:"playerName"`
}

// SingleHolderVsDeck presents the lone holder's hand against the house
// hand before the result lands.
type SingleHolderVsDeck struct {
	Player         NamedPlayer  `json:"player"`
	PlayerCards    []cards.Card `json:"playerCards"`
	PlayerHandType int          `json:"playerHandType"`
	DeckCards      []cards.Card `json:"deckCards"`
	DeckHandType   int          `json:"deckHandType"`
}

func (SingleHolderVsDeck) Event() EventType { return EventSingleHolderVsDeck }

// DeckShowdownResult settles the lone-holder-versus-deck outcome.
type DeckShowdownResult struct {
	PlayerWon   bool         `json:"playerWon"`
	Winner      *NamedPlayer `json:"winner,omitempty"`
	Loser       *NamedPlayer `json:"loser,omitempty"`
	Pot         Cents        `json:"pot"`
	MatchAmount Cents        `json:"matchAmount,omitempty"`
	NewPot      Cents        `json:"newPot,omitempty"`
	NewBalance  Cents        `json:"newBalance"`
	GameEnded   bool         `json:"gameEnded"`
}

func (DeckShowdownResult) Event() EventType { return EventDeckShowdownResult }

// Standing is a player's final placement when the game ends.
type Standing struct {
	PlayerID   uuid.UUID `json:"playerId"`
	PlayerName string    `json:"playerName"`
	Balance    Cents     `json:"balance"`
	Profit     Cents     `json:"profit"`
}

// GameWinner is the top standing when the game ends.
type GameWinner struct {
	PlayerID     uuid.UUID `json:"playerId"`
	PlayerName   string    `json:"playerName"`
	FinalBalance Cents     `json:"finalBalance"`
}

// GameEnded reports final standings sorted by descending balance.
type GameEnded struct {
	FinalStandings []Standing  `json:"finalStandings"`
	Winner         *GameWinner `json:"winner"`
	TotalRounds    int         `json:"totalRounds"`
}

func (GameEnded) Event() EventType { return EventGameEnded }

// GameReset reports the ended-to-lobby rebuy transition.
type GameReset struct {
	Players []PlayerView `json:"players"`
}

func (GameReset) Event() EventType { return EventGameReset }

// BuyBackResult answers a buy-back request. Unicast to the requester.
type BuyBackResult struct {
	Success    bool      `json:"success"`
	Message    string    `json:"message"`
	PlayerID   uuid.UUID `json:"playerId"`
	NewBalance Cents     `json:"newBalance"`
}

func (BuyBackResult) Event() EventType { return EventBuyBackResult }

// PlayerBalanceUpdated broadcasts a successful buy-back.
type PlayerBalanceUpdated struct {
	PlayerID      uuid.UUID `json:"playerId"`
	NewBalance    Cents     `json:"newBalance"`
	BuyBackAmount Cents     `json:"buyBackAmount"`
}

func (PlayerBalanceUpdated) Event() EventType { return EventPlayerBalanceUpdated }

// PlayerEmote relays an emote to the room.
type PlayerEmote struct {
	PlayerID   uuid.UUID `json:"playerId"`
	PlayerName string    `json:"playerName"`
	EmoteURL   string    `json:"emoteUrl"`
}

func (PlayerEmote) Event() EventType { return EventPlayerEmote }

// ErrorEvent reports a rejected action to the offending connection only.
type ErrorEvent struct {
	Message string `json:"message"`
}

func (ErrorEvent) Event() EventType { return EventError }
