package hand

import (
	"fmt"

	"github.com/lox/fairtable/internal/betting"
	"github.com/lox/fairtable/poker"
)

// checkInvariants runs after every transition of a live hand.
func (h *Hand) checkInvariants() error {
	var cards poker.Hand
	for _, p := range h.players {
		if p.Stack < 0 || p.Bet < 0 || p.Contribution < 0 {
			return fmt.Errorf("%w: player %s has stack %d bet %d contribution %d", ErrInvariant, p.ID, p.Stack, p.Bet, p.Contribution)
		}
		if p.Stack+p.Contribution != h.start[p.ID] {
			return fmt.Errorf("%w: player %s holds %d, started with %d", ErrInvariant, p.ID, p.Stack+p.Contribution, h.start[p.ID])
		}
		for _, c := range p.HoleCards {
			if cards.Has(c) {
				return fmt.Errorf("%w: %s dealt twice", ErrInvariant, c)
			}
			cards = cards.Add(c)
		}
	}
	for _, c := range h.board {
		if cards.Has(c) {
			return fmt.Errorf("%w: %s dealt twice", ErrInvariant, c)
		}
		cards = cards.Add(c)
	}
	pots, err := betting.BuildPots(h.players)
	if err != nil {
		return err
	}
	inPots, err := betting.TotalPot(pots)
	if err != nil {
		return err
	}
	total, err := betting.TotalContribution(h.players)
	if err != nil {
		return err
	}
	if inPots != total {
		return fmt.Errorf("%w: pots hold %d, players contributed %d", ErrInvariant, inPots, total)
	}
	return nil
}

// checkConservation runs after the pots are paid: no chip may have been
// created or lost.
func (h *Hand) checkConservation() error {
	var before, after int64
	for _, p := range h.players {
		if p.Stack < 0 {
			return fmt.Errorf("%w: player %s ends with %d", ErrInvariant, p.ID, p.Stack)
		}
		before += h.start[p.ID]
		after += p.Stack
	}
	if before != after {
		return fmt.Errorf("%w: table held %d before the hand and %d after", ErrInvariant, before, after)
	}
	var paid int64
	for _, a := range h.awards {
		paid += a.Amount
	}
	inPots, err := betting.TotalPot(h.pots)
	if err != nil {
		return err
	}
	if paid != inPots {
		return fmt.Errorf("%w: paid %d from pots of %d", ErrInvariant, paid, inPots)
	}
	return nil
}
