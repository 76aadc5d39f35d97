// Package poker provides card values and the hand evaluator used at showdown.
package poker

import (
	"fmt"
	"math/bits"
	"strings"
)

// Card is a single playing card encoded as its index in a factory-ordered
// deck: suit*13 + rank. Valid values are 0..51.
type Card uint8

// Hand is a set of cards, one bit per card index.
//
// Layout: [13 spades][13 hearts][13 diamonds][13 clubs], deuce in the low bit.
type Hand uint64

// Suits.
const (
	Clubs uint8 = iota
	Diamonds
	Hearts
	Spades
)

// Ranks (0-12 for deuce through ace).
const (
	Two uint8 = iota
	Three
	Four
	Five
	Six
	Seven
	Eight
	Nine
	Ten
	Jack
	Queen
	King
	Ace
)

// DeckSize is the number of distinct cards.
const DeckSize = 52

const (
	rankChars = "23456789TJQKA"
	suitChars = "cdhs"
	rankBits  = 0x1FFF
)

// NewCard creates a card from rank (0-12) and suit (0-3).
func NewCard(rank, suit uint8) Card {
	return Card(suit*13 + rank)
}

// Valid reports whether c is one of the 52 cards.
func (c Card) Valid() bool { return c < DeckSize }

// Rank returns the rank of the card (0-12).
func (c Card) Rank() uint8 { return uint8(c) % 13 }

// Suit returns the suit of the card (0-3).
func (c Card) Suit() uint8 { return uint8(c) / 13 }

// String returns the two character form, e.g. "As" or "Td".
func (c Card) String() string {
	if !c.Valid() {
		return "??"
	}
	return string([]byte{rankChars[c.Rank()], suitChars[c.Suit()]})
}

// MarshalText encodes the card in its two character form.
func (c Card) MarshalText() ([]byte, error) {
	if !c.Valid() {
		return nil, fmt.Errorf("poker: invalid card %d", uint8(c))
	}
	return []byte(c.String()), nil
}

// UnmarshalText decodes the two character form.
func (c *Card) UnmarshalText(text []byte) error {
	parsed, err := ParseCard(string(text))
	if err != nil {
		return err
	}
	*c = parsed
	return nil
}

// ParseCard parses a string like "As" into a Card.
func ParseCard(s string) (Card, error) {
	if len(s) != 2 {
		return 0, fmt.Errorf("invalid card string: %q", s)
	}
	rank := strings.IndexByte(rankChars, upper(s[0]))
	if rank < 0 {
		return 0, fmt.Errorf("invalid rank: %c", s[0])
	}
	suit := strings.IndexByte(suitChars, lower(s[1]))
	if suit < 0 {
		return 0, fmt.Errorf("invalid suit: %c", s[1])
	}
	return NewCard(uint8(rank), uint8(suit)), nil
}

// ParseCards parses a space separated list such as "As Kd 7c".
func ParseCards(s string) ([]Card, error) {
	fields := strings.Fields(s)
	cards := make([]Card, 0, len(fields))
	for _, f := range fields {
		c, err := ParseCard(f)
		if err != nil {
			return nil, err
		}
		cards = append(cards, c)
	}
	return cards, nil
}

// MustParseCards is ParseCards for fixtures; it panics on error.
func MustParseCards(s string) []Card {
	cards, err := ParseCards(s)
	if err != nil {
		panic(err)
	}
	return cards
}

func upper(b byte) byte {
	if b >= 'a' && b <= 'z' {
		return b - 'a' + 'A'
	}
	return b
}

func lower(b byte) byte {
	if b >= 'A' && b <= 'Z' {
		return b - 'A' + 'a'
	}
	return b
}

// FactoryOrder returns the 52 cards in index order (clubs deuce first).
func FactoryOrder() []Card {
	cards := make([]Card, DeckSize)
	for i := range cards {
		cards[i] = Card(i)
	}
	return cards
}

// NewHand creates a hand from multiple cards.
func NewHand(cards ...Card) Hand {
	var h Hand
	for _, c := range cards {
		h |= Hand(1) << c
	}
	return h
}

// Add returns the hand with c added.
func (h Hand) Add(c Card) Hand { return h | Hand(1)<<c }

// Has reports whether the hand contains c.
func (h Hand) Has(c Card) bool { return h&(Hand(1)<<c) != 0 }

// Count returns the number of cards in the hand.
func (h Hand) Count() int { return bits.OnesCount64(uint64(h)) }

// SuitMask returns the ranks held in one suit as a 13-bit mask.
func (h Hand) SuitMask(suit uint8) uint16 {
	return uint16(h>>(uint(suit)*13)) & rankBits
}

// Cards lists the cards in the hand in index order.
func (h Hand) Cards() []Card {
	cards := make([]Card, 0, h.Count())
	for m := uint64(h); m != 0; m &= m - 1 {
		cards = append(cards, Card(bits.TrailingZeros64(m)))
	}
	return cards
}

// FormatCards joins cards with spaces.
func FormatCards(cards []Card) string {
	parts := make([]string, len(cards))
	for i, c := range cards {
		parts[i] = c.String()
	}
	return strings.Join(parts, " ")
}
