package poker

import (
	"errors"
	"fmt"
	"math/bits"
)

// ErrInvalidHandInput is returned for fewer than five, more than seven,
// invalid or duplicate cards. The engine never produces such input, so callers
// treat it as an assertion failure.
var ErrInvalidHandInput = errors.New("poker: invalid hand input")

// Category is the class of a five card poker hand, weakest first.
type Category uint8

const (
	HighCard Category = iota
	OnePair
	TwoPair
	ThreeOfAKind
	Straight
	Flush
	FullHouse
	FourOfAKind
	StraightFlush
)

func (c Category) String() string {
	switch c {
	case HighCard:
		return "High Card"
	case OnePair:
		return "Pair"
	case TwoPair:
		return "Two Pair"
	case ThreeOfAKind:
		return "Three of a Kind"
	case Straight:
		return "Straight"
	case Flush:
		return "Flush"
	case FullHouse:
		return "Full House"
	case FourOfAKind:
		return "Four of a Kind"
	case StraightFlush:
		return "Straight Flush"
	default:
		return "Unknown"
	}
}

// HandRank is a totally ordered hand strength. Higher values are stronger.
//
// Bits 20-23 hold the Category; bits 0-19 hold up to five ranks, four bits
// each, most significant first. Unused rank slots are zero, so two ranks of
// the same category always compare on the same number of slots.
type HandRank uint32

const categoryShift = 20

// Ordering is the result of Compare.
type Ordering int

const (
	Less    Ordering = -1
	Equal   Ordering = 0
	Greater Ordering = 1
)

// Compare orders a relative to b.
func Compare(a, b HandRank) Ordering {
	switch {
	case a > b:
		return Greater
	case a < b:
		return Less
	default:
		return Equal
	}
}

// Category returns the hand class.
func (hr HandRank) Category() Category { return Category(hr >> categoryShift) }

// Ranks returns the rank slots that break ties within the category.
func (hr HandRank) Ranks() []uint8 {
	n := slotsFor(hr.Category())
	ranks := make([]uint8, n)
	for i := range ranks {
		ranks[i] = uint8(hr>>(16-4*uint(i))) & 0xF
	}
	return ranks
}

func slotsFor(c Category) int {
	switch c {
	case StraightFlush, Straight:
		return 1
	case FourOfAKind, FullHouse:
		return 2
	case ThreeOfAKind, TwoPair:
		return 3
	case OnePair:
		return 4
	default:
		return 5
	}
}

var rankNames = [...]string{"Deuce", "Three", "Four", "Five", "Six", "Seven", "Eight", "Nine", "Ten", "Jack", "Queen", "King", "Ace"}

func plural(r uint8) string {
	if r == Six {
		return "Sixes"
	}
	return rankNames[r] + "s"
}

// String describes the hand, e.g. "Full House, Kings full of Fours".
func (hr HandRank) String() string {
	r := hr.Ranks()
	switch hr.Category() {
	case StraightFlush:
		if r[0] == Ace {
			return "Straight Flush, Royal"
		}
		return fmt.Sprintf("Straight Flush, %s high", rankNames[r[0]])
	case FourOfAKind:
		return fmt.Sprintf("Four of a Kind, %s", plural(r[0]))
	case FullHouse:
		return fmt.Sprintf("Full House, %s full of %s", plural(r[0]), plural(r[1]))
	case Flush:
		return fmt.Sprintf("Flush, %s high", rankNames[r[0]])
	case Straight:
		return fmt.Sprintf("Straight, %s high", rankNames[r[0]])
	case ThreeOfAKind:
		return fmt.Sprintf("Three of a Kind, %s", plural(r[0]))
	case TwoPair:
		return fmt.Sprintf("Two Pair, %s and %s", plural(r[0]), plural(r[1]))
	case OnePair:
		return fmt.Sprintf("Pair of %s", plural(r[0]))
	case HighCard:
		return fmt.Sprintf("High Card, %s", rankNames[r[0]])
	default:
		return "Unknown"
	}
}

// Evaluate ranks the best five card hand that can be made from 5 to 7 cards.
// The result does not depend on input order.
func Evaluate(cards []Card) (HandRank, error) {
	h, err := handOf(cards)
	if err != nil {
		return 0, err
	}
	return rankHand(h), nil
}

// MustEvaluate is Evaluate for callers that have already validated input.
func MustEvaluate(cards []Card) HandRank {
	hr, err := Evaluate(cards)
	if err != nil {
		panic(err)
	}
	return hr
}

// EvaluateHand ranks a Hand bitset holding 5 to 7 cards.
func EvaluateHand(h Hand) (HandRank, error) {
	if n := h.Count(); n < 5 || n > 7 {
		return 0, fmt.Errorf("%w: %d cards", ErrInvalidHandInput, n)
	}
	if h>>DeckSize != 0 {
		return 0, fmt.Errorf("%w: bits beyond the deck", ErrInvalidHandInput)
	}
	return rankHand(h), nil
}

func handOf(cards []Card) (Hand, error) {
	if len(cards) < 5 || len(cards) > 7 {
		return 0, fmt.Errorf("%w: %d cards", ErrInvalidHandInput, len(cards))
	}
	var h Hand
	for _, c := range cards {
		if !c.Valid() {
			return 0, fmt.Errorf("%w: card %d", ErrInvalidHandInput, uint8(c))
		}
		if h.Has(c) {
			return 0, fmt.Errorf("%w: duplicate %s", ErrInvalidHandInput, c)
		}
		h = h.Add(c)
	}
	return h, nil
}

// rankBuilder packs a category and rank slots into a HandRank.
type rankBuilder struct {
	v     uint32
	shift int
}

func newRank(c Category) rankBuilder {
	return rankBuilder{v: uint32(c) << categoryShift, shift: 16}
}

func (b *rankBuilder) push(r uint8) {
	if b.shift < 0 {
		return
	}
	b.v |= uint32(r) << uint(b.shift)
	b.shift -= 4
}

// pushTop pushes the n highest ranks present in mask.
func (b *rankBuilder) pushTop(mask uint16, n int) {
	for ; n > 0 && mask != 0; n-- {
		r := topRank(mask)
		b.push(r)
		mask &^= 1 << r
	}
}

func (b rankBuilder) rank() HandRank { return HandRank(b.v) }

func topRank(mask uint16) uint8 { return uint8(bits.Len16(mask) - 1) }

func rankHand(h Hand) HandRank {
	s0, s1, s2, s3 := h.SuitMask(Clubs), h.SuitMask(Diamonds), h.SuitMask(Hearts), h.SuitMask(Spades)
	all := s0 | s1 | s2 | s3

	// At most one suit can hold five of seven cards.
	for _, sm := range [4]uint16{s0, s1, s2, s3} {
		if bits.OnesCount16(sm) < 5 {
			continue
		}
		if hi, ok := straightHigh(sm); ok {
			b := newRank(StraightFlush)
			b.push(hi)
			return b.rank()
		}
		b := newRank(Flush)
		b.pushTop(sm, 5)
		return b.rank()
	}

	quads := s0 & s1 & s2 & s3
	three := (s0 & s1 & s2) | (s0 & s1 & s3) | (s0 & s2 & s3) | (s1 & s2 & s3)
	two := (s0 & s1) | (s0 & s2) | (s0 & s3) | (s1 & s2) | (s1 & s3) | (s2 & s3)
	trips := three &^ quads
	pairs := two &^ three

	if quads != 0 {
		q := topRank(quads)
		b := newRank(FourOfAKind)
		b.push(q)
		b.pushTop(all&^(1<<q), 1)
		return b.rank()
	}

	if trips != 0 {
		t := topRank(trips)
		if rest := (trips &^ (1 << t)) | pairs; rest != 0 {
			b := newRank(FullHouse)
			b.push(t)
			b.push(topRank(rest))
			return b.rank()
		}
	}

	if hi, ok := straightHigh(all); ok {
		b := newRank(Straight)
		b.push(hi)
		return b.rank()
	}

	if trips != 0 {
		t := topRank(trips)
		b := newRank(ThreeOfAKind)
		b.push(t)
		b.pushTop(all&^(1<<t), 2)
		return b.rank()
	}

	if pairs != 0 {
		hi := topRank(pairs)
		if lowPairs := pairs &^ (1 << hi); lowPairs != 0 {
			lo := topRank(lowPairs)
			b := newRank(TwoPair)
			b.push(hi)
			b.push(lo)
			b.pushTop(all&^(1<<hi|1<<lo), 1)
			return b.rank()
		}
		b := newRank(OnePair)
		b.push(hi)
		b.pushTop(all&^(1<<hi), 3)
		return b.rank()
	}

	b := newRank(HighCard)
	b.pushTop(all, 5)
	return b.rank()
}

// straightHigh returns the high rank of the best straight in mask. The wheel
// (A-2-3-4-5) reports Five as its high card.
func straightHigh(mask uint16) (uint8, bool) {
	const wheel = 1<<Ace | 1<<Two | 1<<Three | 1<<Four | 1<<Five
	seq := mask & (mask >> 1) & (mask >> 2) & (mask >> 3) & (mask >> 4)
	if seq != 0 {
		return topRank(seq) + 4, true
	}
	if mask&wheel == wheel {
		return Five, true
	}
	return 0, false
}

// Best returns the five cards that make up the best hand along with its rank.
func Best(cards []Card) ([]Card, HandRank, error) {
	h, err := handOf(cards)
	if err != nil {
		return nil, 0, err
	}
	hr := rankHand(h)
	ranks := hr.Ranks()
	pick := make([]Card, 0, 5)
	used := Hand(0)

	take := func(rank uint8, suit int, n int) {
		for _, c := range cards {
			if n == 0 {
				return
			}
			if c.Rank() != rank || used.Has(c) || (suit >= 0 && int(c.Suit()) != suit) {
				continue
			}
			pick = append(pick, c)
			used = used.Add(c)
			n--
		}
	}

	switch hr.Category() {
	case StraightFlush, Straight, Flush:
		suit := -1
		if hr.Category() != Straight {
			suit = flushSuit(h)
		}
		seq := ranks
		if hr.Category() != Flush {
			seq = straightRanks(ranks[0])
		}
		for _, r := range seq {
			take(r, suit, 1)
		}
	default:
		for i, r := range ranks {
			take(r, -1, groupSize(hr.Category(), i))
		}
	}
	return pick, hr, nil
}

func flushSuit(h Hand) int {
	for s := uint8(0); s < 4; s++ {
		if bits.OnesCount16(h.SuitMask(s)) >= 5 {
			return int(s)
		}
	}
	return -1
}

func straightRanks(high uint8) []uint8 {
	if high == Five {
		return []uint8{Five, Four, Three, Two, Ace}
	}
	return []uint8{high, high - 1, high - 2, high - 3, high - 4}
}

// groupSize is the number of cards the i-th rank slot contributes.
func groupSize(c Category, i int) int {
	switch c {
	case FourOfAKind:
		return [...]int{4, 1}[i]
	case FullHouse:
		return [...]int{3, 2}[i]
	case ThreeOfAKind:
		return [...]int{3, 1, 1}[i]
	case TwoPair:
		return [...]int{2, 2, 1}[i]
	case OnePair:
		return [...]int{2, 1, 1, 1}[i]
	default:
		return 1
	}
}
