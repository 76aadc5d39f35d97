package hand

import (
	"fmt"

	"github.com/lox/fairtable/internal/betting"
)

// Phase is the lifecycle state of a hand.
type Phase uint8

const (
	Dealing Phase = iota
	Preflop
	Flop
	Turn
	River
	Showdown
	Settled
	Voided
)

var phaseNames = [...]string{"dealing", "preflop", "flop", "turn", "river", "showdown", "settled", "voided"}

func (p Phase) String() string {
	if int(p) < len(phaseNames) {
		return phaseNames[p]
	}
	return fmt.Sprintf("phase(%d)", uint8(p))
}

// MarshalText encodes the phase by name.
func (p Phase) MarshalText() ([]byte, error) { return []byte(p.String()), nil }

// UnmarshalText decodes a phase name.
func (p *Phase) UnmarshalText(text []byte) error {
	for i, name := range phaseNames {
		if name == string(text) {
			*p = Phase(i)
			return nil
		}
	}
	return fmt.Errorf("unknown phase %q", text)
}

// Betting reports whether the phase has a betting round.
func (p Phase) Betting() bool { return p >= Preflop && p <= River }

// Done reports whether the hand is over.
func (p Phase) Done() bool { return p == Settled || p == Voided }

func (p Phase) street() betting.Street {
	return betting.Street(p - Preflop)
}

// boardCards is how many community cards are dealt on entering a phase.
func (p Phase) boardCards() int {
	switch p {
	case Flop:
		return 3
	case Turn, River:
		return 1
	}
	return 0
}
