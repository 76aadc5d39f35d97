package hand

import (
	"errors"
	"fmt"

	"github.com/lox/fairtable/internal/betting"
	"github.com/lox/fairtable/internal/shuffle"
	"github.com/lox/fairtable/poker"
)

// settle audits the deck, evaluates the showdown if there is one and pays
// out every pot.
func (h *Hand) settle() error {
	proof, order, err := h.deck.Finalize()
	if err != nil {
		return h.fail(err)
	}
	if err := h.cfg.Audit(h.commitment, order, proof); err != nil {
		return h.void(fmt.Errorf("settle audit: %w", err))
	}

	var ranks map[string]poker.HandRank
	if h.inHand() > 1 {
		h.phase = Showdown
		ranks = make(map[string]poker.HandRank)
		for _, p := range h.players {
			if !p.InHand() {
				continue
			}
			cards := append(append([]poker.Card(nil), p.HoleCards...), h.board...)
			rank, err := poker.Evaluate(cards)
			if err != nil {
				return h.fail(err)
			}
			ranks[p.ID] = rank
			h.shown[p.ID] = true
		}
	}

	awards, err := awardPots(h.pots, h.players, h.buttonIdx, ranks)
	if err != nil {
		return h.fail(err)
	}
	for _, a := range awards {
		p := h.byID(a.PlayerID)
		stack, err := betting.AddChips(p.Stack, a.Amount)
		if err != nil {
			return h.fail(err)
		}
		p.Stack = stack
	}
	h.awards = awards
	h.phase = Settled

	if err := h.checkConservation(); err != nil {
		return h.fail(err)
	}
	h.history = h.buildHistory(order, proof)

	for _, a := range awards {
		h.logger.Info().
			Str("player_id", a.PlayerID).
			Int("pot", a.Pot).
			Int64("amount", a.Amount).
			Str("hand", rankString(a.Rank, ranks != nil)).
			Msg("Pot awarded")
	}
	h.emit(Event{Type: EventPotsAwarded, Awards: append([]Award(nil), awards...)})
	h.emit(Event{Type: EventHandSettled, History: h.history})
	return nil
}

func rankString(r poker.HandRank, showdown bool) string {
	if !showdown {
		return "uncontested"
	}
	return r.String()
}

// awardPots pays each pot, highest side pot first, to the best eligible
// hands. Ties split evenly; odd chips go one at a time to the tied winners
// in seat order starting left of the button. Without ranks every pot goes
// to its eligible players, which is a single player when everyone else
// folded.
func awardPots(pots []betting.Pot, players []*betting.Player, buttonIdx int, ranks map[string]poker.HandRank) ([]Award, error) {
	n := len(players)
	order := make(map[string]int, n)
	for i, p := range players {
		order[p.ID] = ((i - buttonIdx - 1) + n) % n
	}

	var awards []Award
	for i := len(pots) - 1; i >= 0; i-- {
		pot := pots[i]
		if pot.Amount == 0 {
			continue
		}
		winners, best := bestHands(pot.Eligible, ranks)
		if len(winners) == 0 {
			return nil, fmt.Errorf("%w: pot %d of %d has no eligible player", ErrInvariant, i, pot.Amount)
		}
		sortByOrder(winners, order)
		share := pot.Amount / int64(len(winners))
		odd := pot.Amount % int64(len(winners))
		for k, id := range winners {
			amount := share
			if int64(k) < odd {
				amount++
			}
			awards = append(awards, Award{Pot: i, PlayerID: id, Amount: amount, Rank: best})
		}
	}
	return awards, nil
}

func bestHands(eligible []string, ranks map[string]poker.HandRank) ([]string, poker.HandRank) {
	if ranks == nil {
		return append([]string(nil), eligible...), 0
	}
	var winners []string
	var best poker.HandRank
	for _, id := range eligible {
		r, ok := ranks[id]
		if !ok {
			continue
		}
		if len(winners) == 0 {
			best = r
			winners = append(winners, id)
			continue
		}
		switch poker.Compare(r, best) {
		case poker.Greater:
			best = r
			winners = append(winners[:0], id)
		case poker.Equal:
			winners = append(winners, id)
		}
	}
	return winners, best
}

func sortByOrder(ids []string, order map[string]int) {
	for i := 1; i < len(ids); i++ {
		for j := i; j > 0 && order[ids[j]] < order[ids[j-1]]; j-- {
			ids[j], ids[j-1] = ids[j-1], ids[j]
		}
	}
}

// void abandons the hand: secrets are wiped and every stack is restored to
// what it was before the forced bets.
func (h *Hand) void(cause error) error {
	if h.deck != nil {
		h.deck.Wipe()
	}
	for _, p := range h.players {
		p.Stack = h.start[p.ID]
		p.Bet = 0
		p.Contribution = 0
	}
	h.pots = nil
	h.awards = nil
	h.phase = Voided
	h.history = h.buildHistory(nil, shuffle.Proof{})
	h.history.Voided = true
	h.history.VoidReason = cause.Error()

	h.logger.Warn().Err(cause).Msg("Hand voided, contributions refunded")
	h.emit(Event{Type: EventHandVoided, History: h.history, Reason: cause.Error()})
	return fmt.Errorf("%w: %w", ErrHandVoided, cause)
}

// fail reports an assertion failure. The hand is left as it is for the
// operator to inspect; the deck's secrets are wiped.
func (h *Hand) fail(err error) error {
	if h.deck != nil {
		h.deck.Wipe()
	}
	if !errors.Is(err, ErrInvariant) {
		err = fmt.Errorf("%w: %w", ErrInvariant, err)
	}
	h.logger.Error().Err(err).Str("phase", h.phase.String()).Msg("Hand failed")
	return err
}

func (h *Hand) buildHistory(order []poker.Card, proof shuffle.Proof) *History {
	hist := &History{
		TableID:    h.cfg.TableID,
		HandID:     h.cfg.HandID,
		HandNumber: h.cfg.HandNumber,
		StartedAt:  h.startedAt,
		EndedAt:    h.cfg.Clock.Now(),
		SmallBlind: h.cfg.SmallBlind,
		BigBlind:   h.cfg.BigBlind,
		Ante:       h.cfg.Ante,
		Button:     h.cfg.Button,
		Actions:    append([]ActionRecord(nil), h.actions...),
		Board:      append([]poker.Card(nil), h.board...),
		Pots:       clonePots(h.pots),
		Awards:     append([]Award(nil), h.awards...),
		Commitment: h.commitment,
		Proof:      proof,
		Deck:       order,
		Dealt:      len(h.openings),
	}
	for _, p := range h.players {
		hist.Players = append(hist.Players, HistoryPlayer{
			ID:            p.ID,
			Seat:          p.Seat,
			StartingStack: h.start[p.ID],
			EndingStack:   p.Stack,
			HoleCards:     append([]poker.Card(nil), p.HoleCards...),
			Shown:         h.shown[p.ID],
			Folded:        p.Status == betting.Folded,
		})
	}
	return hist
}
