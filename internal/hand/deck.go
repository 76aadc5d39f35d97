package hand

import (
	"context"
	"errors"
	"sync"

	"github.com/lox/fairtable/internal/shuffle"
	"github.com/lox/fairtable/poker"
)

// ErrNoStackedDeck is returned once every stacked order has been used.
var ErrNoStackedDeck = errors.New("hand: no stacked deck left")

// StackedDecks hands out caller-chosen deck orders, one per hand, committed
// like any other deck. They are not derived from their seed, so the default
// settle audit voids hands dealt from them; pair them with an Audit of
// shuffle.VerifyCommitment.
type StackedDecks struct {
	Scheme string
	Orders [][]poker.Card

	mu   sync.Mutex
	next int
}

func (s *StackedDecks) NewDeck(_ context.Context, tableID, handID string) (*shuffle.CommittedDeck, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.next >= len(s.Orders) {
		return nil, ErrNoStackedDeck
	}
	order := s.Orders[s.next]
	s.next++
	scheme := s.Scheme
	if scheme == "" {
		scheme = "hash"
	}
	return shuffle.StackDeck(scheme, tableID, handID, order)
}
