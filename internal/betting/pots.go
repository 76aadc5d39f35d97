package betting

import (
	"slices"
)

// Pot is the main pot or a side pot.
type Pot struct {
	Amount int64 `json:"amount"`
	// Eligible lists the ids of players who can win the pot, in seat order.
	Eligible []string `json:"eligible"`
	// Cap is the per-player contribution level the pot is built up to.
	Cap int64 `json:"cap"`
}

// ReturnUncalled gives back the part of the largest bet this round that no
// other player matched. It returns the player refunded and the amount, or
// nil when every bet was matched.
func ReturnUncalled(players []*Player) (*Player, int64) {
	var top, second int64
	var leader *Player
	for _, p := range players {
		switch {
		case p.Bet > top:
			second = top
			top = p.Bet
			leader = p
		case p.Bet > second:
			second = p.Bet
		}
	}
	if leader == nil || top == second {
		return nil, 0
	}
	excess := top - second
	leader.Bet -= excess
	leader.Contribution -= excess
	leader.Stack += excess
	if leader.Status == AllIn && leader.Stack > 0 {
		leader.Status = Active
	}
	return leader, excess
}

// ClearBets zeroes every player's round bet at the end of a round. The
// chips stay counted in Contribution.
func ClearBets(players []*Player) {
	for _, p := range players {
		p.Bet = 0
	}
}

// BuildPots divides all contributions into a main pot and side pots.
//
// Pot boundaries are the sorted, distinct contribution levels of all-in
// players, topped by the largest contribution at the table. Each pot takes
// from every player, folded ones included, the slice of their contribution
// between the previous level and its own. Adjacent pots with the same
// eligible players are merged, and a pot nobody eligible can win rolls down
// into the nearest pot below it. The pot amounts always sum to the total
// contributed. Contributions too large to sum fail with ErrChipOverflow.
func BuildPots(players []*Player) ([]Pot, error) {
	if _, err := TotalContribution(players); err != nil {
		return nil, err
	}
	levels := thresholds(players)
	if len(levels) == 0 {
		return nil, nil
	}

	pots := make([]Pot, 0, len(levels))
	var prev int64
	for _, level := range levels {
		pot := Pot{Cap: level}
		for _, p := range players {
			if p.Contribution <= prev {
				continue
			}
			var err error
			if pot.Amount, err = AddChips(pot.Amount, min(p.Contribution, level)-prev); err != nil {
				return nil, err
			}
			if p.InHand() {
				pot.Eligible = append(pot.Eligible, p.ID)
			}
		}
		prev = level
		if pot.Amount == 0 {
			continue
		}
		if n := len(pots); n > 0 && slices.Equal(pots[n-1].Eligible, pot.Eligible) {
			pots[n-1].Amount += pot.Amount
			pots[n-1].Cap = pot.Cap
			continue
		}
		pots = append(pots, pot)
	}
	// Merged and rolled-down pots never exceed the total checked above.
	return rollDown(pots), nil
}

func thresholds(players []*Player) []int64 {
	var levels []int64
	var top int64
	for _, p := range players {
		top = max(top, p.Contribution)
		if p.Status == AllIn && p.Contribution > 0 {
			levels = append(levels, p.Contribution)
		}
	}
	if top == 0 {
		return nil
	}
	levels = append(levels, top)
	slices.Sort(levels)
	return slices.Compact(levels)
}

// rollDown folds pots with no eligible winner into the nearest eligible pot
// below them, or above them when there is none below.
func rollDown(pots []Pot) []Pot {
	if len(pots) == 0 {
		return nil
	}
	out := pots[:0:0]
	var orphan int64
	for _, pot := range pots {
		if len(pot.Eligible) == 0 {
			if n := len(out); n > 0 {
				out[n-1].Amount += pot.Amount
			} else {
				orphan += pot.Amount
			}
			continue
		}
		pot.Amount += orphan
		orphan = 0
		out = append(out, pot)
	}
	if len(out) == 0 {
		// Nobody is left in the hand; keep the chips accounted for.
		return []Pot{{Amount: orphan, Cap: pots[len(pots)-1].Cap}}
	}
	return out
}

// TotalPot returns the sum of all pots.
func TotalPot(pots []Pot) (int64, error) {
	amounts := make([]int64, len(pots))
	for i, p := range pots {
		amounts[i] = p.Amount
	}
	return SumChips(amounts...)
}

// TotalContribution returns the sum of all contributions.
func TotalContribution(players []*Player) (int64, error) {
	amounts := make([]int64, len(players))
	for i, p := range players {
		amounts[i] = p.Contribution
	}
	return SumChips(amounts...)
}
