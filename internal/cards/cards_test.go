package cards

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// c builds a card from rank and suit for test brevity.
func c(rank, suit string) Card {
	return Card{Rank: rank, Suit: suit, Value: rankValues[rank]}
}

func TestNewDeckComplete(t *testing.T) {
	deck := NewDeck()
	require.Len(t, deck, 52)

	seen := make(map[Card]bool, 52)
	for _, card := range deck {
		assert.False(t, seen[card], "duplicate card %s of %s", card.Rank, card.Suit)
		seen[card] = true
		assert.GreaterOrEqual(t, card.Value, 2)
		assert.LessOrEqual(t, card.Value, 14)
	}
	assert.Len(t, seen, 52)
}

func TestShuffleIsPermutation(t *testing.T) {
	deck := NewDeck()
	before := make(map[Card]int)
	for _, card := range deck {
		before[card]++
	}

	require.NoError(t, Shuffle(deck))

	after := make(map[Card]int)
	for _, card := range deck {
		after[card]++
	}
	assert.Equal(t, before, after, "shuffle must not add, drop, or duplicate cards")
}

// TestShuffleVariesFirstCard is a coarse bias check: over many shuffles the
// occupant of position 0 should range widely over the deck. This is a
// statistical smoke test, not an exact law.
func TestShuffleVariesFirstCard(t *testing.T) {
	firstCards := make(map[Card]bool)
	for i := 0; i < 200; i++ {
		deck := NewDeck()
		require.NoError(t, Shuffle(deck))
		firstCards[deck[0]] = true
	}
	// With a uniform shuffle, 200 trials cover far more than 20 distinct
	// cards in position 0 with overwhelming probability.
	assert.Greater(t, len(firstCards), 20, "first card distribution looks degenerate")
}

func TestDeal(t *testing.T) {
	deck := NewDeck()

	hand, err := Deal(&deck, 3)
	require.NoError(t, err)
	assert.Len(t, hand, 3)
	assert.Len(t, deck, 49)

	// Dealt cards are consumed, never reused within a round.
	next, err := Deal(&deck, 3)
	require.NoError(t, err)
	for _, card := range next {
		assert.NotContains(t, hand, card)
	}
}

func TestDealExhaustion(t *testing.T) {
	deck := NewDeck()
	_, err := Deal(&deck, 53)
	require.Error(t, err)
	assert.Len(t, deck, 52, "failed deal must not consume the deck")

	_, err = Deal(&deck, 52)
	require.NoError(t, err)
	assert.Empty(t, deck)

	_, err = Deal(&deck, 1)
	assert.Error(t, err)
}

func TestEvaluate(t *testing.T) {
	tests := []struct {
		name         string
		hand         []Card
		nothingRound bool
		wantType     HandType
		wantTie      []int
	}{
		{
			name:     "three of a kind",
			hand:     []Card{c("K", "hearts"), c("K", "clubs"), c("K", "spades")},
			wantType: ThreeOfAKind,
			wantTie:  []int{13},
		},
		{
			name:         "three of a kind in nothing round",
			hand:         []Card{c("7", "hearts"), c("7", "clubs"), c("7", "spades")},
			nothingRound: true,
			wantType:     ThreeOfAKind,
			wantTie:      []int{7},
		},
		{
			name:     "straight flush",
			hand:     []Card{c("2", "spades"), c("3", "spades"), c("4", "spades")},
			wantType: StraightFlush,
			wantTie:  []int{4},
		},
		{
			name:     "straight",
			hand:     []Card{c("9", "hearts"), c("J", "clubs"), c("10", "spades")},
			wantType: Straight,
			wantTie:  []int{11},
		},
		{
			name:     "wheel straight ranks three high",
			hand:     []Card{c("A", "hearts"), c("2", "clubs"), c("3", "spades")},
			wantType: Straight,
			wantTie:  []int{3},
		},
		{
			name:     "flush",
			hand:     []Card{c("2", "diamonds"), c("9", "diamonds"), c("K", "diamonds")},
			wantType: Flush,
			wantTie:  []int{13, 9, 2},
		},
		{
			name:     "pair with kicker",
			hand:     []Card{c("Q", "hearts"), c("5", "clubs"), c("Q", "spades")},
			wantType: Pair,
			wantTie:  []int{12, 5},
		},
		{
			name:     "high card",
			hand:     []Card{c("2", "hearts"), c("9", "clubs"), c("K", "spades")},
			wantType: HighCard,
			wantTie:  []int{13, 9, 2},
		},
		{
			name:         "straight flush downgraded in nothing round",
			hand:         []Card{c("2", "spades"), c("3", "spades"), c("4", "spades")},
			nothingRound: true,
			wantType:     HighCard,
			wantTie:      []int{4, 3, 2},
		},
		{
			name:         "flush downgraded in nothing round",
			hand:         []Card{c("2", "diamonds"), c("9", "diamonds"), c("K", "diamonds")},
			nothingRound: true,
			wantType:     HighCard,
			wantTie:      []int{13, 9, 2},
		},
		{
			name:         "pair still counts in nothing round",
			hand:         []Card{c("K", "hearts"), c("K", "clubs"), c("2", "spades")},
			nothingRound: true,
			wantType:     Pair,
			wantTie:      []int{13, 2},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			eval, err := Evaluate(tt.hand, tt.nothingRound)
			require.NoError(t, err)
			assert.Equal(t, tt.wantType, eval.Type)
			assert.Equal(t, tt.wantType.String(), eval.TypeName)
			assert.Equal(t, tt.wantTie, eval.Tiebreakers)
		})
	}
}

func TestEvaluateRejectsWrongSize(t *testing.T) {
	_, err := Evaluate([]Card{c("2", "hearts")}, false)
	assert.Error(t, err)
	_, err = Evaluate(nil, false)
	assert.Error(t, err)
	_, err = Evaluate([]Card{c("2", "hearts"), c("3", "hearts"), c("4", "hearts"), c("5", "hearts")}, false)
	assert.Error(t, err)
}

func TestEvaluateDeterministic(t *testing.T) {
	hand := []Card{c("A", "hearts"), c("2", "clubs"), c("3", "spades")}
	first, err := Evaluate(hand, false)
	require.NoError(t, err)
	for i := 0; i < 10; i++ {
		again, err := Evaluate(hand, false)
		require.NoError(t, err)
		assert.Equal(t, first, again)
	}
}

func TestCompareOrdering(t *testing.T) {
	mustEval := func(hand []Card) Eval {
		eval, err := Evaluate(hand, false)
		require.NoError(t, err)
		return eval
	}

	// Ascending strength under the house ordering: straight beats flush,
	// straight flush beats three of a kind.
	ladder := []Eval{
		mustEval([]Card{c("2", "hearts"), c("9", "clubs"), c("K", "spades")}),   // high card
		mustEval([]Card{c("Q", "hearts"), c("Q", "clubs"), c("5", "spades")}),   // pair
		mustEval([]Card{c("2", "diamonds"), c("9", "diamonds"), c("A", "diamonds")}), // flush
		mustEval([]Card{c("2", "hearts"), c("3", "clubs"), c("4", "spades")}),   // straight
		mustEval([]Card{c("K", "hearts"), c("K", "clubs"), c("K", "spades")}),   // three of a kind
		mustEval([]Card{c("2", "spades"), c("3", "spades"), c("4", "spades")}),  // straight flush
	}

	for i := 0; i < len(ladder); i++ {
		assert.Zero(t, Compare(ladder[i], ladder[i]), "hand must tie with itself")
		for j := i + 1; j < len(ladder); j++ {
			assert.Positive(t, Compare(ladder[j], ladder[i]), "ladder[%d] should beat ladder[%d]", j, i)
			assert.Negative(t, Compare(ladder[i], ladder[j]))
		}
	}
}

func TestCompareTiebreakers(t *testing.T) {
	mustEval := func(hand []Card, nothing bool) Eval {
		eval, err := Evaluate(hand, nothing)
		require.NoError(t, err)
		return eval
	}

	kings := mustEval([]Card{c("K", "hearts"), c("K", "clubs"), c("2", "spades")}, true)
	queens := mustEval([]Card{c("Q", "hearts"), c("Q", "clubs"), c("5", "spades")}, true)
	assert.Positive(t, Compare(kings, queens), "pair of kings beats pair of queens")

	// Same pair rank falls through to the kicker.
	kingsLowKick := mustEval([]Card{c("K", "diamonds"), c("K", "spades"), c("3", "hearts")}, true)
	assert.Negative(t, Compare(kingsLowKick, kings))

	// High-card hands compare all three values in order.
	high1 := mustEval([]Card{c("A", "hearts"), c("9", "clubs"), c("4", "spades")}, true)
	high2 := mustEval([]Card{c("A", "clubs"), c("9", "spades"), c("3", "hearts")}, true)
	assert.Positive(t, Compare(high1, high2))

	// The wheel loses to a 4-high straight.
	wheel := mustEval([]Card{c("A", "hearts"), c("2", "clubs"), c("3", "spades")}, false)
	fourHigh := mustEval([]Card{c("2", "hearts"), c("3", "clubs"), c("4", "spades")}, false)
	assert.Negative(t, Compare(wheel, fourHigh))
}

// TestCompareTransitive spot-checks transitivity over a mixed pool of hands.
func TestCompareTransitive(t *testing.T) {
	pool := [][]Card{
		{c("2", "hearts"), c("9", "clubs"), c("K", "spades")},
		{c("A", "hearts"), c("9", "clubs"), c("4", "spades")},
		{c("Q", "hearts"), c("Q", "clubs"), c("5", "spades")},
		{c("K", "hearts"), c("K", "clubs"), c("2", "spades")},
		{c("2", "diamonds"), c("9", "diamonds"), c("K", "diamonds")},
		{c("9", "hearts"), c("10", "clubs"), c("J", "spades")},
		{c("A", "hearts"), c("2", "clubs"), c("3", "spades")},
		{c("7", "hearts"), c("7", "clubs"), c("7", "spades")},
		{c("2", "spades"), c("3", "spades"), c("4", "spades")},
	}

	evals := make([]Eval, len(pool))
	for i, hand := range pool {
		eval, err := Evaluate(hand, false)
		require.NoError(t, err)
		evals[i] = eval
	}

	for _, a := range evals {
		for _, b := range evals {
			for _, x := range evals {
				if Compare(a, b) > 0 && Compare(b, x) > 0 {
					assert.Positive(t, Compare(a, x), "compare must be transitive")
				}
			}
		}
	}
}
