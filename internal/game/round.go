package game

import (
	"sort"
	"time"

	"github.com/google/uuid"

	"github.com/jason-s-yu/guts/internal/cards"
	"github.com/jason-s-yu/guts/internal/database"
)

// HandleStartGame transitions the room from lobby to playing. Host-only;
// requires at least two players, each with a buy-in inside [MinBuyIn,
// MaxBuyIn]. Balances are set to the chosen buy-ins and the first round is
// scheduled after a short delay so clients can render the transition.
func (r *Room) HandleStartGame(playerID uuid.UUID) {
	r.Mu.Lock()
	defer r.Mu.Unlock()
	r.lastActivity = time.Now()

	p := r.playerByIDLocked(playerID)
	if p == nil {
		return
	}
	if !p.IsHost {
		r.unicastLocked(playerID, ErrorEvent{Message: "Only host can start game"})
		return
	}
	if r.state != StateLobby {
		r.unicastLocked(playerID, ErrorEvent{Message: "Game already started"})
		return
	}
	if len(r.players) < 2 {
		r.unicastLocked(playerID, ErrorEvent{Message: "Need at least 2 players to start"})
		return
	}
	for _, seat := range r.players {
		if seat.BuyIn < MinBuyIn || seat.BuyIn > MaxBuyIn {
			r.unicastLocked(playerID, ErrorEvent{Message: "All buy-ins must be between $5 and $100"})
			return
		}
	}

	r.state = StatePlaying
	for _, seat := range r.players {
		seat.Balance = seat.BuyIn
	}
	r.logAction(playerID, "game_start", nil)
	r.log.Infof("game started with %d players", len(r.players))

	r.broadcastLocked(GameStarted{Players: r.playerViewsLocked()})

	r.schedule(r.timing.FirstRoundDelay, func() {
		r.Mu.Lock()
		defer r.Mu.Unlock()
		if r.state != StatePlaying || r.round != 0 {
			return
		}
		r.startRoundLocked()
	})
}

// HandleNextRound is the host's continue action. From ended it resets the
// room to the lobby for a full rebuy cycle; from playing it either finishes
// a pending deck-showdown win or starts the next round.
func (r *Room) HandleNextRound(playerID uuid.UUID) {
	r.Mu.Lock()
	defer r.Mu.Unlock()
	r.lastActivity = time.Now()

	p := r.playerByIDLocked(playerID)
	if p == nil {
		return
	}
	if !p.IsHost {
		r.unicastLocked(playerID, ErrorEvent{Message: "Only host can continue to next round"})
		return
	}

	switch r.state {
	case StateEnded:
		r.resetLocked()
	case StatePlaying:
		if r.pendingGameEnd {
			r.pendingGameEnd = false
			r.endGameLocked()
			return
		}
		if r.round > 0 && !r.roundResolved {
			r.unicastLocked(playerID, ErrorEvent{Message: "Round still in progress"})
			return
		}
		r.startRoundLocked()
	default:
		r.unicastLocked(playerID, ErrorEvent{Message: "Game has not started"})
	}
}

// resetLocked returns an ended room to the lobby: balances and round
// counter zeroed, everyone reactivated.
func (r *Room) resetLocked() {
	r.stopCountdownLocked()
	r.cancelPendingLocked()

	r.state = StateLobby
	r.round = 0
	r.pot = 0
	r.pendingGameEnd = false
	r.roundResolved = false
	r.deck = nil
	r.hands = make(map[uuid.UUID][]cards.Card)
	r.decisions = make(map[uuid.UUID]Decision)
	for _, p := range r.players {
		p.Balance = 0
		p.Active = true
	}
	r.logAction(uuid.Nil, "game_reset", nil)
	r.broadcastLocked(GameReset{Players: r.playerViewsLocked()})
}

// startRoundLocked begins a new round: antes, a fresh shuffled deck, three
// private cards per participant, and the decision countdown.
func (r *Room) startRoundLocked() {
	if r.state != StatePlaying {
		return
	}
	r.stopCountdownLocked()
	r.cancelPendingLocked()

	r.round++
	r.nothingRound = r.round <= 3
	r.hands = make(map[uuid.UUID][]cards.Card)
	r.decisions = make(map[uuid.UUID]Decision)
	r.roundResolved = false

	// Players who cannot cover the ante sit out this round.
	var participants []*Player
	for _, p := range r.players {
		if p.Balance < Ante {
			p.Active = false
			continue
		}
		if p.Active {
			participants = append(participants, p)
		}
	}
	if len(participants) < 2 {
		r.log.Infof("round %d: only %d players able to ante, ending game", r.round, len(participants))
		r.endGameLocked()
		return
	}

	// Fail closed: a round never starts on a weak or missing random source.
	// The counter rolls back and the round stays resolved so the host's
	// next_round can retry instead of soft-locking the room.
	deck := cards.NewDeck()
	if err := r.shuffle(deck); err != nil {
		r.round--
		r.roundResolved = true
		r.log.WithError(err).Error("aborting round start, secure shuffle unavailable")
		r.broadcastLocked(ErrorEvent{Message: "Internal error: could not shuffle deck"})
		return
	}
	r.deck = deck

	for _, p := range participants {
		p.Balance -= Ante
		r.pot += Ante
	}

	for _, p := range participants {
		hand, err := cards.Deal(&r.deck, 3)
		if err != nil {
			// 8 players * 3 cards + 3 for the house always fits in 52;
			// this is an internal-invariant violation.
			r.log.WithError(err).Error("deck exhausted during deal")
			r.broadcastLocked(ErrorEvent{Message: "Internal error: deck exhausted"})
			return
		}
		r.hands[p.ID] = hand
		r.unicastLocked(p.ID, CardsDealt{
			Cards:        hand,
			Round:        r.round,
			NothingRound: r.nothingRound,
			PlayerID:     p.ID,
		})
	}

	r.logAction(uuid.Nil, "round_start", map[string]interface{}{"round": r.round, "pot": r.pot})

	// round_started follows cards_dealt after a short stagger so clients
	// see their hand before the table updates.
	round := r.round
	r.schedule(r.timing.RoundStartStagger, func() {
		r.Mu.Lock()
		defer r.Mu.Unlock()
		if r.state != StatePlaying || r.round != round {
			return
		}
		r.broadcastLocked(RoundStarted{
			Round:        r.round,
			Pot:          r.pot,
			NothingRound: r.nothingRound,
			Players:      r.playerViewsLocked(),
		})
	})

	r.startCountdownLocked()
}

// ---------------------------------------------------------------------------
// Decision countdown
// ---------------------------------------------------------------------------

func (r *Room) startCountdownLocked() {
	r.stopCountdownLocked()
	stop := make(chan struct{})
	r.countdownStop = stop
	r.timerRemaining = r.timing.DecisionSeconds
	r.broadcastLocked(TimerStarted{Duration: r.timing.DecisionSeconds})
	go r.runCountdown(stop, r.round)
}

// stopCountdownLocked cancels the countdown goroutine. Must be called the
// moment the last decision lands so the timer-expiry path and the
// decision-completion path cannot both resolve the round.
func (r *Room) stopCountdownLocked() {
	if r.countdownStop != nil {
		close(r.countdownStop)
		r.countdownStop = nil
	}
}

// runCountdown broadcasts one tick per interval and resolves the round when
// the window closes. Each tick revalidates room state under the lock, so a
// tick racing a cancellation is a no-op.
func (r *Room) runCountdown(stop <-chan struct{}, round int) {
	ticker := time.NewTicker(r.timing.TickInterval)
	defer ticker.Stop()

	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
			r.Mu.Lock()
			if r.state != StatePlaying || r.round != round || r.roundResolved {
				r.Mu.Unlock()
				return
			}
			r.timerRemaining--
			r.broadcastLocked(TimerTick{Remaining: r.timerRemaining})
			if r.timerRemaining <= 0 {
				r.countdownStop = nil
				r.resolveRoundLocked()
				r.Mu.Unlock()
				return
			}
			r.Mu.Unlock()
		}
	}
}

// ---------------------------------------------------------------------------
// Decisions and resolution
// ---------------------------------------------------------------------------

// HandleDecision records a hold or drop from an active participant.
// Duplicate decisions are rejected without overwriting; the round resolves
// the instant the last participant has decided.
func (r *Room) HandleDecision(playerID uuid.UUID, decision Decision) {
	r.Mu.Lock()
	defer r.Mu.Unlock()
	r.lastActivity = time.Now()

	if r.state != StatePlaying || r.roundResolved {
		return
	}
	if decision != DecisionHold && decision != DecisionDrop {
		r.unicastLocked(playerID, ErrorEvent{Message: "Invalid decision"})
		return
	}
	p := r.playerByIDLocked(playerID)
	if p == nil || !p.Active {
		return
	}
	if _, dealt := r.hands[playerID]; !dealt {
		return
	}
	if _, decided := r.decisions[playerID]; decided {
		r.unicastLocked(playerID, ErrorEvent{Message: "Decision already made"})
		return
	}

	r.decisions[playerID] = decision
	r.logAction(playerID, "player_decision", nil)
	r.broadcastLocked(PlayerDecided{PlayerID: p.ID, PlayerName: p.Name})

	if r.allDecidedLocked() {
		r.stopCountdownLocked()
		r.resolveRoundLocked()
	}
}

// allDecidedLocked reports whether every player dealt into this round has
// decided.
func (r *Room) allDecidedLocked() bool {
	if len(r.hands) == 0 {
		return false
	}
	for id := range r.hands {
		if _, ok := r.decisions[id]; !ok {
			return false
		}
	}
	return true
}

// resolveRoundLocked settles the round exactly once. Participants who never
// decided are auto-assigned drop, then one of three outcomes runs after the
// reveal pacing delay: all dropped, a lone holder against the deck, or a
// multi-holder showdown.
func (r *Room) resolveRoundLocked() {
	if r.roundResolved || r.state != StatePlaying {
		return
	}
	r.roundResolved = true
	r.stopCountdownLocked()

	for id := range r.hands {
		if _, ok := r.decisions[id]; !ok {
			r.decisions[id] = DecisionDrop
		}
	}

	var participants, holders []*Player
	var reveals []DecisionReveal
	for _, p := range r.players {
		hand, dealt := r.hands[p.ID]
		if !dealt {
			continue
		}
		participants = append(participants, p)
		decision := r.decisions[p.ID]
		reveal := DecisionReveal{PlayerID: p.ID, PlayerName: p.Name, Decision: decision}
		if decision == DecisionHold {
			reveal.Cards = hand
			holders = append(holders, p)
		}
		reveals = append(reveals, reveal)
	}

	r.logAction(uuid.Nil, "round_resolve", map[string]interface{}{
		"round":   r.round,
		"holders": len(holders),
	})

	round := r.round
	r.schedule(r.timing.RevealDelay, func() {
		r.Mu.Lock()
		defer r.Mu.Unlock()
		if r.state != StatePlaying || r.round != round {
			return
		}
		switch {
		case len(holders) == 0:
			r.settleAllDroppedLocked(participants, reveals)
		case len(holders) == 1:
			// A lone holder skips the general reveal and goes straight to
			// the deck showdown presentation.
			r.runDeckShowdownLocked(holders[0])
		default:
			r.broadcastLocked(RoundReveal{Decisions: reveals, Pot: r.pot})
			r.schedule(r.timing.MultiResultDelay, func() {
				r.Mu.Lock()
				defer r.Mu.Unlock()
				if r.state != StatePlaying || r.round != round {
					return
				}
				r.settleMultipleHoldersLocked(holders)
			})
		}
	})
}

// settleAllDroppedLocked charges every participant the drop penalty into
// the pot. No winner this round; the host continues when ready.
func (r *Room) settleAllDroppedLocked(participants []*Player, reveals []DecisionReveal) {
	for _, p := range participants {
		p.Balance -= AllDropPenalty
		r.pot += AllDropPenalty
	}
	r.broadcastLocked(RoundReveal{Decisions: reveals, Pot: r.pot})
	r.broadcastLocked(AllDropped{Pot: r.pot, Balances: r.balancesLocked()})
}

// settleMultipleHoldersLocked ranks the holders' hands and settles the pot:
// the best hand takes the whole pot, every losing holder matches the pot as
// a penalty, and those penalties become the next round's pot. Holders with
// byte-identical evaluations are split by seat order, earliest first.
func (r *Room) settleMultipleHoldersLocked(holders []*Player) {
	type entry struct {
		player *Player
		eval   cards.Eval
	}
	entries := make([]entry, 0, len(holders))
	for _, p := range holders {
		eval, err := cards.Evaluate(r.hands[p.ID], r.nothingRound)
		if err != nil {
			r.log.WithError(err).Error("holder hand failed evaluation")
			r.broadcastLocked(ErrorEvent{Message: "Internal error: hand evaluation failed"})
			return
		}
		entries = append(entries, entry{player: p, eval: eval})
	}
	sort.SliceStable(entries, func(i, j int) bool {
		return cards.Compare(entries[i].eval, entries[j].eval) > 0
	})

	winner := entries[0].player
	winAmount := r.pot
	winner.Balance += winAmount

	losers := entries[1:]
	payments := make([]LoserPayment, len(losers))
	for i, e := range losers {
		e.player.Balance -= winAmount
		payments[i] = LoserPayment{PlayerID: e.player.ID, PlayerName: e.player.Name, Amount: winAmount}
	}
	r.pot = Cents(len(losers)) * winAmount

	r.logAction(winner.ID, "multiple_holders_result", map[string]interface{}{
		"winAmount": winAmount,
		"losers":    len(losers),
	})
	r.broadcastLocked(MultipleHoldersResult{
		Winner: HolderResult{
			PlayerID:   winner.ID,
			PlayerName: winner.Name,
			Cards:      r.hands[winner.ID],
			HandType:   entries[0].eval.TypeName,
		},
		WinAmount:     winAmount,
		LoserPayments: payments,
		NewPot:        r.pot,
		Balances:      r.balancesLocked(),
	})
}

// runDeckShowdownLocked deals the house hand from the remaining round deck
// and presents the showdown; the result settles after the presentation
// delay. A holder win latches pendingGameEnd for the host to acknowledge; a
// deck win or tie makes the holder match the pot and play continues.
func (r *Room) runDeckShowdownLocked(holder *Player) {
	deckCards, err := cards.Deal(&r.deck, 3)
	if err != nil {
		r.log.WithError(err).Error("deck exhausted dealing house hand")
		r.broadcastLocked(ErrorEvent{Message: "Internal error: deck exhausted"})
		return
	}
	playerCards := r.hands[holder.ID]

	playerEval, err := cards.Evaluate(playerCards, r.nothingRound)
	if err != nil {
		r.log.WithError(err).Error("holder hand failed evaluation")
		r.broadcastLocked(ErrorEvent{Message: "Internal error: hand evaluation failed"})
		return
	}
	deckEval, err := cards.Evaluate(deckCards, r.nothingRound)
	if err != nil {
		r.log.WithError(err).Error("house hand failed evaluation")
		r.broadcastLocked(ErrorEvent{Message: "Internal error: hand evaluation failed"})
		return
	}
	playerWon := cards.Compare(playerEval, deckEval) > 0

	r.broadcastLocked(SingleHolderVsDeck{
		Player:         NamedPlayer{PlayerID: holder.ID, PlayerName: holder.Name},
		PlayerCards:    playerCards,
		PlayerHandType: int(playerEval.Type),
		DeckCards:      deckCards,
		DeckHandType:   int(deckEval.Type),
	})

	round := r.round
	r.schedule(r.timing.ShowdownDelay, func() {
		r.Mu.Lock()
		defer r.Mu.Unlock()
		if r.state != StatePlaying || r.round != round {
			return
		}
		r.settleDeckShowdownLocked(holder, playerWon)
	})
}

func (r *Room) settleDeckShowdownLocked(holder *Player, playerWon bool) {
	if playerWon {
		winAmount := r.pot
		holder.Balance += winAmount
		r.pot = 0
		r.pendingGameEnd = true
		r.logAction(holder.ID, "deck_showdown_win", map[string]interface{}{"amount": winAmount})
		r.broadcastLocked(DeckShowdownResult{
			PlayerWon:  true,
			Winner:     &NamedPlayer{PlayerID: holder.ID, PlayerName: holder.Name},
			Pot:        winAmount,
			NewBalance: holder.Balance,
			GameEnded:  true,
		})
		return
	}

	// The deck wins or ties: the holder matches the pot, into debt if
	// necessary, and the game continues.
	matchAmount := r.pot
	holder.Balance -= matchAmount
	r.pot += matchAmount
	r.logAction(holder.ID, "deck_showdown_loss", map[string]interface{}{"amount": matchAmount})
	r.broadcastLocked(DeckShowdownResult{
		PlayerWon:   false,
		Loser:       &NamedPlayer{PlayerID: holder.ID, PlayerName: holder.Name},
		Pot:         matchAmount,
		MatchAmount: matchAmount,
		NewPot:      r.pot,
		NewBalance:  holder.Balance,
		GameEnded:   false,
	})
}

// endGameLocked finishes the game and publishes final standings sorted by
// descending balance. Profit is measured against each player's own buy-in.
func (r *Room) endGameLocked() {
	r.stopCountdownLocked()
	r.cancelPendingLocked()
	r.state = StateEnded

	standings := make([]Standing, len(r.players))
	order := make([]*Player, len(r.players))
	copy(order, r.players)
	sort.SliceStable(order, func(i, j int) bool { return order[i].Balance > order[j].Balance })
	for i, p := range order {
		standings[i] = Standing{
			PlayerID:   p.ID,
			PlayerName: p.Name,
			Balance:    p.Balance,
			Profit:     p.Balance - p.BuyIn,
		}
	}

	var winner *GameWinner
	if len(order) > 0 {
		winner = &GameWinner{
			PlayerID:     order[0].ID,
			PlayerName:   order[0].Name,
			FinalBalance: order[0].Balance,
		}
	}

	r.logAction(uuid.Nil, "game_end", map[string]interface{}{"rounds": r.round})
	r.log.Infof("game ended after %d rounds", r.round)
	r.broadcastLocked(GameEnded{
		FinalStandings: standings,
		Winner:         winner,
		TotalRounds:    r.round,
	})

	if database.DB != nil {
		results := make([]database.PlayerResult, len(standings))
		for i, s := range standings {
			results[i] = database.PlayerResult{
				PlayerID: s.PlayerID.String(),
				Name:     s.PlayerName,
				Balance:  int64(s.Balance),
				Profit:   int64(s.Profit),
			}
		}
		go database.StoreGameResult(r.Code, r.round, results)
	}
}
