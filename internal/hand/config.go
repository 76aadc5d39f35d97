package hand

import (
	"context"
	"fmt"

	"github.com/coder/quartz"
	"github.com/rs/zerolog"

	"github.com/lox/fairtable/internal/betting"
	"github.com/lox/fairtable/internal/shuffle"
	"github.com/lox/fairtable/poker"
)

// DeckSource produces the committed deck for a hand. *shuffle.Dealer is the
// production implementation.
type DeckSource interface {
	NewDeck(ctx context.Context, tableID, handID string) (*shuffle.CommittedDeck, error)
}

// AuditFunc checks a finished deck against its commitment.
type AuditFunc func(c shuffle.Commitment, order []poker.Card, proof shuffle.Proof) error

// Seat is one player dealt into a hand.
type Seat struct {
	PlayerID string
	Seat     int
	Stack    int64
}

// Config describes a hand before it is dealt.
type Config struct {
	TableID    string
	HandID     string
	HandNumber uint64

	SmallBlind int64
	BigBlind   int64
	Ante       int64

	// Button is the seat number holding the dealer button. It must be one of
	// Seats.
	Button int
	// Seats are the players dealt in, each with a positive stack.
	Seats []Seat

	Deck DeckSource
	// Audit runs at settle against the hand's own commitment. Nil means
	// shuffle.VerifyShuffle.
	Audit AuditFunc
	// Emit receives every event in order. It is called synchronously.
	Emit func(Event)

	Clock  quartz.Clock
	Logger zerolog.Logger
}

func (c *Config) validate() error {
	if len(c.Seats) < 2 {
		return fmt.Errorf("%w: %d players, need at least 2", ErrInvalidConfig, len(c.Seats))
	}
	if c.SmallBlind < 0 || c.BigBlind <= 0 || c.Ante < 0 || c.SmallBlind > c.BigBlind {
		return fmt.Errorf("%w: blinds %d/%d ante %d", ErrInvalidConfig, c.SmallBlind, c.BigBlind, c.Ante)
	}
	if c.Deck == nil {
		return fmt.Errorf("%w: no deck source", ErrInvalidConfig)
	}
	seats := make(map[int]bool, len(c.Seats))
	ids := make(map[string]bool, len(c.Seats))
	button := false
	for _, s := range c.Seats {
		if s.Stack <= 0 {
			return fmt.Errorf("%w: player %s has no chips", ErrInvalidConfig, s.PlayerID)
		}
		if seats[s.Seat] || ids[s.PlayerID] {
			return fmt.Errorf("%w: seat %d or player %s listed twice", ErrInvalidConfig, s.Seat, s.PlayerID)
		}
		seats[s.Seat] = true
		ids[s.PlayerID] = true
		button = button || s.Seat == c.Button
	}
	if !button {
		return fmt.Errorf("%w: button seat %d is not dealt in", ErrInvalidConfig, c.Button)
	}
	// Every pot is bounded by the chips dealt in.
	stacks := make([]int64, len(c.Seats))
	for i, s := range c.Seats {
		stacks[i] = s.Stack
	}
	if _, err := betting.SumChips(stacks...); err != nil {
		return fmt.Errorf("hand stacks: %w", err)
	}
	if c.Audit == nil {
		c.Audit = shuffle.VerifyShuffle
	}
	if c.Clock == nil {
		c.Clock = quartz.NewReal()
	}
	return nil
}
