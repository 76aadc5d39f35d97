package betting

import (
	"fmt"

	"github.com/lox/fairtable/poker"
)

// Status is a player's standing in the current hand.
type Status uint8

const (
	Active Status = iota
	Folded
	AllIn
	SittingOut
)

func (s Status) String() string {
	switch s {
	case Active:
		return "active"
	case Folded:
		return "folded"
	case AllIn:
		return "all-in"
	case SittingOut:
		return "sitting-out"
	}
	return fmt.Sprintf("status(%d)", uint8(s))
}

// MarshalText encodes the status by name.
func (s Status) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// UnmarshalText decodes a status name.
func (s *Status) UnmarshalText(text []byte) error {
	for v := Active; v <= SittingOut; v++ {
		if v.String() == string(text) {
			*s = v
			return nil
		}
	}
	return fmt.Errorf("unknown status %q", text)
}

// Player is the engine's view of one seated player during a hand.
type Player struct {
	ID   string
	Seat int
	// Stack is chips behind, never negative.
	Stack int64
	// Bet is what the player has committed in the current round.
	Bet int64
	// Contribution is what the player has committed this hand, Bet included.
	Contribution int64
	Status       Status
	HoleCards    []poker.Card
}

// InHand reports whether the player can still win a pot.
func (p *Player) InHand() bool {
	return p.Status == Active || p.Status == AllIn
}

// CanAct reports whether the player still takes betting decisions.
func (p *Player) CanAct() bool {
	return p.Status == Active
}

// Clone returns a deep copy.
func (p *Player) Clone() *Player {
	c := *p
	c.HoleCards = append([]poker.Card(nil), p.HoleCards...)
	return &c
}

// Commit moves amount from the player's stack into the current bet. The
// amount is capped at the stack; a player left with nothing is all-in. Forced
// bets use this directly.
func (p *Player) Commit(amount int64) (int64, error) {
	if amount < 0 {
		return 0, fmt.Errorf("negative commit %d", amount)
	}
	amount = min(amount, p.Stack)
	bet, err := AddChips(p.Bet, amount)
	if err != nil {
		return 0, err
	}
	contribution, err := AddChips(p.Contribution, amount)
	if err != nil {
		return 0, err
	}
	p.Stack -= amount
	p.Bet = bet
	p.Contribution = contribution
	if p.Stack == 0 && p.Status == Active {
		p.Status = AllIn
	}
	return amount, nil
}

// Street is a betting round.
type Street uint8

const (
	Preflop Street = iota
	Flop
	Turn
	River
)

func (s Street) String() string {
	switch s {
	case Preflop:
		return "preflop"
	case Flop:
		return "flop"
	case Turn:
		return "turn"
	case River:
		return "river"
	}
	return fmt.Sprintf("street(%d)", uint8(s))
}

// MarshalText encodes the street by name.
func (s Street) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// UnmarshalText decodes a street name.
func (s *Street) UnmarshalText(text []byte) error {
	for v := Preflop; v <= River; v++ {
		if v.String() == string(text) {
			*s = v
			return nil
		}
	}
	return fmt.Errorf("unknown street %q", text)
}
