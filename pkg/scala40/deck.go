package scala40

import "fmt"

// Deck and deal parameters.
const (
	TotalCards     = 108 // 2 x 52 suited cards + 4 jokers
	CardsPerPlayer = 13
	NumDecks       = 2
	JokersPerDeck  = 2
	MinPlayers     = 2
	MaxPlayers     = 4
)

// Shuffler is the slice of the rng source the deck operations need. Both
// rng sources satisfy it, as does *math/rand.Rand.
type Shuffler interface {
	Shuffle(n int, swap func(i, j int))
}

// NewDeck builds the canonical 108-card deck in a fixed order: for each
// deck index, every suit and rank, then two jokers.
func NewDeck() []Card {
	cards := make([]Card, 0, TotalCards)
	for deck := 0; deck < NumDecks; deck++ {
		for _, suit := range Suits {
			for rank := Ace; rank <= King; rank++ {
				cards = append(cards, Card{Suit: suit, Rank: rank, Deck: deck})
			}
		}
		for j := 0; j < JokersPerDeck; j++ {
			cards = append(cards, Card{Suit: JokerSuit, Rank: JokerRank, Deck: deck})
		}
	}
	return cards
}

// ShuffleCards returns a shuffled copy of cards using the given source.
// The same source state always produces the same permutation.
func ShuffleCards(cards []Card, src Shuffler) []Card {
	out := make([]Card, len(cards))
	copy(out, cards)
	src.Shuffle(len(out), func(i, j int) {
		out[i], out[j] = out[j], out[i]
	})
	return out
}

// Deal deals 13 cards to each of numPlayers one at a time in seating order,
// pops one card as the initial discard-pile top, and returns the remainder
// as the stock.
func Deal(deck []Card, numPlayers int) (hands [][]Card, stock []Card, firstDiscard Card, err error) {
	if numPlayers < MinPlayers || numPlayers > MaxPlayers {
		return nil, nil, Card{}, fmt.Errorf("invalid player count %d", numPlayers)
	}

	remaining := make([]Card, len(deck))
	copy(remaining, deck)

	hands = make([][]Card, numPlayers)
	for p := range hands {
		hands[p] = make([]Card, 0, CardsPerPlayer+1)
	}
	for i := 0; i < CardsPerPlayer; i++ {
		for p := 0; p < numPlayers; p++ {
			hands[p] = append(hands[p], remaining[0])
			remaining = remaining[1:]
		}
	}

	firstDiscard = remaining[0]
	stock = remaining[1:]
	return hands, stock, firstDiscard, nil
}

// DrawTop pops the top card of the stock.
func DrawTop(stock []Card) (Card, []Card, error) {
	if len(stock) == 0 {
		return Card{}, nil, fmt.Errorf("stock is empty")
	}
	return stock[0], stock[1:], nil
}

// DrawDiscard pops the top of the discard pile (the last element).
func DrawDiscard(pile []Card) (Card, []Card, error) {
	if len(pile) == 0 {
		return Card{}, nil, fmt.Errorf("discard pile is empty")
	}
	return pile[len(pile)-1], pile[:len(pile)-1], nil
}

// ReshuffleDiscard turns the discard pile minus its top into a fresh stock.
// The top stays behind as the sole discard. Card conservation is untouched;
// only ordering changes.
func ReshuffleDiscard(pile []Card, src Shuffler) (stock []Card, top Card, err error) {
	if len(pile) < 2 {
		return nil, Card{}, fmt.Errorf("not enough cards to reshuffle")
	}
	top = pile[len(pile)-1]
	stock = ShuffleCards(pile[:len(pile)-1], src)
	return stock, top, nil
}
