// Package cards implements the Guts card primitives: deck construction,
// cryptographically secure shuffling, dealing, and 3-card hand evaluation.
//
// All functions are pure with respect to game state; the deck slice passed
// to Shuffle and Deal is the only thing mutated.
package cards

import (
	"crypto/rand"
	"encoding/binary"
	"fmt"
	"sort"
)

// Ranks in ascending order of value.
var Ranks = []string{"2", "3", "4", "5", "6", "7", "8", "9", "10", "J", "Q", "K", "A"}

// Suits in deck generation order.
var Suits = []string{"hearts", "diamonds", "clubs", "spades"}

// rankValues maps a rank symbol to its comparison value (2-14, Ace high).
var rankValues = map[string]int{
	"2": 2, "3": 3, "4": 4, "5": 5, "6": 6, "7": 7, "8": 8,
	"9": 9, "10": 10, "J": 11, "Q": 12, "K": 13, "A": 14,
}

// Card is a single playing card. Immutable once created.
type Card struct {
	Rank  string `json:"rank"`
	Suit  string `json:"suit"`
	Value int    `json:"value"`
}

// HandType classifies a 3-card hand. The ordinals define hand strength:
// a higher ordinal beats a lower one outright. Note that Straight outranks
// Flush and StraightFlush outranks ThreeOfAKind; this is the house ordering
// Guts is played with, not the standard poker one.
type HandType int

const (
	HighCard      HandType = 1
	Pair          HandType = 2
	Flush         HandType = 3
	Straight      HandType = 4
	ThreeOfAKind  HandType = 5
	StraightFlush HandType = 6
)

// String returns the display name of the hand type.
func (t HandType) String() string {
	switch t {
	case HighCard:
		return "High Card"
	case Pair:
		return "Pair"
	case Flush:
		return "Flush"
	case Straight:
		return "Straight"
	case ThreeOfAKind:
		return "Three of a Kind"
	case StraightFlush:
		return "Straight Flush"
	}
	return "Unknown"
}

// Eval is the classification of an evaluated 3-card hand.
type Eval struct {
	Type        HandType `json:"type"`
	TypeName    string   `json:"typeName"`
	Rank        int      `json:"rank"`
	Tiebreakers []int    `json:"tiebreakers"`
}

// NewDeck returns a full 52-card deck in suit-major, rank-minor order.
// The order is irrelevant to play since a deck is always shuffled before
// use, but it is exhaustive and duplicate-free.
func NewDeck() []Card {
	deck := make([]Card, 0, 52)
	for _, suit := range Suits {
		for _, rank := range Ranks {
			deck = append(deck, Card{Rank: rank, Suit: suit, Value: rankValues[rank]})
		}
	}
	return deck
}

// Shuffle permutes deck in place with a Fisher-Yates shuffle driven by
// crypto/rand. It fails closed: if the secure source is unavailable the
// deck is left unusable for play and an error is returned, with no
// fallback to a weaker generator.
func Shuffle(deck []Card) error {
	var buf [4]byte
	for i := len(deck) - 1; i > 0; i-- {
		if _, err := rand.Read(buf[:]); err != nil {
			return fmt.Errorf("secure shuffle source unavailable: %w", err)
		}
		j := int(binary.BigEndian.Uint32(buf[:]) % uint32(i+1))
		deck[i], deck[j] = deck[j], deck[i]
	}
	return nil
}

// Deal removes and returns the first n cards of deck.
// Dealing more cards than remain is an internal-invariant violation and
// returns an error without consuming the deck.
func Deal(deck *[]Card, n int) ([]Card, error) {
	if n < 0 || n > len(*deck) {
		return nil, fmt.Errorf("cannot deal %d cards from a deck of %d", n, len(*deck))
	}
	dealt := (*deck)[:n:n]
	*deck = (*deck)[n:]
	return dealt, nil
}

// Evaluate classifies an exactly-3-card hand.
//
// Three-of-a-kind is checked first in every round. During a nothing round
// (rounds 1-3) only pairs and high cards are otherwise eligible; from round
// 4 on, straight flushes, straights and flushes are checked as well. The
// A-2-3 wheel counts as a straight with high card 3.
func Evaluate(hand []Card, nothingRound bool) (Eval, error) {
	if len(hand) != 3 {
		return Eval{}, fmt.Errorf("hand must have exactly 3 cards, got %d", len(hand))
	}

	sorted := make([]Card, 3)
	copy(sorted, hand)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].Value > sorted[j].Value })
	values := []int{sorted[0].Value, sorted[1].Value, sorted[2].Value}

	if values[0] == values[1] && values[1] == values[2] {
		return newEval(ThreeOfAKind, values[0], []int{values[0]}), nil
	}

	if nothingRound {
		if pairRank, kicker, ok := pairOf(values); ok {
			return newEval(Pair, pairRank, []int{pairRank, kicker}), nil
		}
		return newEval(HighCard, values[0], values), nil
	}

	flush := isFlush(sorted)
	straight := isStraight(values)

	if flush && straight {
		return newEval(StraightFlush, values[0], []int{values[0]}), nil
	}
	if straight {
		// A-2-3 ranks as a 3-high straight, not ace-high.
		high := values[0]
		if values[0] == 14 && values[1] == 3 && values[2] == 2 {
			high = 3
		}
		return newEval(Straight, high, []int{high}), nil
	}
	if flush {
		return newEval(Flush, values[0], values), nil
	}
	if pairRank, kicker, ok := pairOf(values); ok {
		return newEval(Pair, pairRank, []int{pairRank, kicker}), nil
	}
	return newEval(HighCard, values[0], values), nil
}

// Compare orders two evaluated hands. It returns >0 if a beats b, <0 if b
// beats a, and 0 on an exact tie. Hand type decides first; equal types fall
// through to element-wise tiebreaker comparison.
func Compare(a, b Eval) int {
	if a.Type != b.Type {
		return int(a.Type) - int(b.Type)
	}
	for i := 0; i < len(a.Tiebreakers) && i < len(b.Tiebreakers); i++ {
		if a.Tiebreakers[i] != b.Tiebreakers[i] {
			return a.Tiebreakers[i] - b.Tiebreakers[i]
		}
	}
	return 0
}

func newEval(t HandType, rank int, tiebreakers []int) Eval {
	return Eval{Type: t, TypeName: t.String(), Rank: rank, Tiebreakers: tiebreakers}
}

// isFlush reports whether all three cards share a suit.
func isFlush(cards []Card) bool {
	return cards[0].Suit == cards[1].Suit && cards[1].Suit == cards[2].Suit
}

// isStraight reports whether the descending values are consecutive,
// including the A-2-3 wheel.
func isStraight(desc []int) bool {
	if desc[0]-desc[1] == 1 && desc[1]-desc[2] == 1 {
		return true
	}
	return desc[0] == 14 && desc[1] == 3 && desc[2] == 2
}

// pairOf returns the pair rank and kicker when exactly two of the three
// descending values match.
func pairOf(desc []int) (pairRank, kicker int, ok bool) {
	switch {
	case desc[0] == desc[1]:
		return desc[0], desc[2], true
	case desc[1] == desc[2]:
		return desc[1], desc[0], true
	}
	return 0, 0, false
}
