// Package scala40 implements the rules of Scala 40: the 108-card double
// deck, meld validation, scoring, the state integrity checker and the state
// codec. Everything in this package is pure; all mutation happens in the
// engine package.
package scala40

import (
	"fmt"
	"strings"
)

// Suit represents a card suit.
type Suit string

const (
	Spades   Suit = "♠"
	Hearts   Suit = "♥"
	Diamonds Suit = "♦"
	Clubs    Suit = "♣"
	// JokerSuit is the sentinel suit carried by the four jokers.
	JokerSuit Suit = "*"
)

// Suits lists the four ordinary suits in deck-construction order.
var Suits = []Suit{Spades, Hearts, Diamonds, Clubs}

// Ranks. 0 is reserved for the joker; aces are 1 and faces 11-13.
const (
	JokerRank = 0
	Ace       = 1
	Jack      = 11
	Queen     = 12
	King      = 13
)

// Card point values for opening counts and end-of-hand scoring.
const (
	JokerPoints   = 25
	AcePointsHigh = 11
	AcePointsLow  = 1
	FacePoints    = 10
)

var rankNames = map[int]string{
	1: "A", 2: "2", 3: "3", 4: "4", 5: "5", 6: "6", 7: "7",
	8: "8", 9: "9", 10: "10", 11: "J", 12: "Q", 13: "K",
}

// Card is a single playing card. Because two decks are in play, Deck (0 or
// 1) is part of the card's identity: two ace-of-spades from the same deck
// cannot both exist. Cards are plain values and are never shared by
// reference across game parts.
type Card struct {
	Suit Suit `json:"suit"`
	Rank int  `json:"rank"`
	Deck int  `json:"deckIndex"`
}

// IsJoker reports whether the card is one of the four jokers.
func (c Card) IsJoker() bool {
	return c.Suit == JokerSuit && c.Rank == JokerRank
}

// SameFace reports whether two cards have the same suit and rank, ignoring
// the deck index. Used for the declare-duplicate discard rule and for joker
// substitution, where the deck index is immaterial.
func (c Card) SameFace(o Card) bool {
	return c.Suit == o.Suit && c.Rank == o.Rank
}

// Points returns the card's point value. lowAce selects the 1-point ace
// used when the ace sits immediately before a 2 in a sequence; everywhere
// else the ace is worth 11.
func (c Card) Points(lowAce bool) int {
	switch {
	case c.IsJoker():
		return JokerPoints
	case c.Rank == Ace:
		if lowAce {
			return AcePointsLow
		}
		return AcePointsHigh
	case c.Rank >= Jack:
		return FacePoints
	default:
		return c.Rank
	}
}

// String encodes the card compactly: "8♥0" is the 8 of hearts from deck 0,
// "J1" is a joker from deck 1.
func (c Card) String() string {
	if c.IsJoker() {
		return fmt.Sprintf("J%d", c.Deck)
	}
	return fmt.Sprintf("%s%s%d", rankNames[c.Rank], c.Suit, c.Deck)
}

// ParseCard decodes the compact encoding produced by String. Suits may be
// written as symbols (♠♥♦♣) or letters (s/h/d/c); a missing deck index
// defaults to 0.
func ParseCard(s string) (Card, error) {
	s = strings.TrimSpace(s)
	if len(s) < 2 {
		return Card{}, fmt.Errorf("invalid card %q", s)
	}

	if s[0] == 'J' && len(s) == 2 && s[1] >= '0' && s[1] <= '1' {
		return Card{Suit: JokerSuit, Rank: JokerRank, Deck: int(s[1] - '0')}, nil
	}

	deck := 0
	rest := s
	if last := rest[len(rest)-1]; last >= '0' && last <= '1' && len(rest) >= 3 {
		deck = int(last - '0')
		rest = rest[:len(rest)-1]
	}

	runes := []rune(rest)
	if len(runes) < 2 {
		return Card{}, fmt.Errorf("invalid card %q", s)
	}
	suitRune := runes[len(runes)-1]
	rankStr := string(runes[:len(runes)-1])

	var suit Suit
	switch suitRune {
	case '♠', 's', 'S':
		suit = Spades
	case '♥', 'h', 'H':
		suit = Hearts
	case '♦', 'd', 'D':
		suit = Diamonds
	case '♣', 'c', 'C':
		suit = Clubs
	default:
		return Card{}, fmt.Errorf("invalid suit in %q", s)
	}

	for rank, name := range rankNames {
		if name == rankStr {
			return Card{Suit: suit, Rank: rank, Deck: deck}, nil
		}
	}
	return Card{}, fmt.Errorf("invalid rank in %q", s)
}

// MustCard is ParseCard for tests and fixtures; it panics on bad input.
func MustCard(s string) Card {
	c, err := ParseCard(s)
	if err != nil {
		panic(err)
	}
	return c
}

// RemoveCard removes the first exact occurrence of c from cards, returning
// a shortened copy and whether it was found. The input is not mutated.
func RemoveCard(cards []Card, c Card) ([]Card, bool) {
	for i, h := range cards {
		if h == c {
			out := make([]Card, 0, len(cards)-1)
			out = append(out, cards[:i]...)
			out = append(out, cards[i+1:]...)
			return out, true
		}
	}
	return cards, false
}

// ContainsCard reports whether cards holds the exact card c.
func ContainsCard(cards []Card, c Card) bool {
	for _, h := range cards {
		if h == c {
			return true
		}
	}
	return false
}
