package betting

import (
	"fmt"
	"strconv"
)

// Kind is the type of a betting action.
type Kind uint8

const (
	Fold Kind = iota
	Check
	Call
	Bet
	Raise
	AllInKind
)

var kindNames = [...]string{"fold", "check", "call", "bet", "raise", "allin"}

func (k Kind) String() string {
	if int(k) < len(kindNames) {
		return kindNames[k]
	}
	return "kind(" + strconv.Itoa(int(k)) + ")"
}

// MarshalText encodes the kind by name.
func (k Kind) MarshalText() ([]byte, error) {
	if int(k) >= len(kindNames) {
		return nil, fmt.Errorf("unknown action kind %d", k)
	}
	return []byte(kindNames[k]), nil
}

// UnmarshalText accepts the names produced by String, plus "all-in".
func (k *Kind) UnmarshalText(text []byte) error {
	v, err := ParseKind(string(text))
	if err != nil {
		return err
	}
	*k = v
	return nil
}

// ParseKind parses an action name.
func ParseKind(s string) (Kind, error) {
	switch s {
	case "all-in", "all_in":
		return AllInKind, nil
	}
	for i, name := range kindNames {
		if name == s {
			return Kind(i), nil
		}
	}
	return 0, fmt.Errorf("%w: unknown action %q", ErrIllegalAction, s)
}

// Action is a player decision. For Bet and Raise, Amount is the total the
// player's bet is raised to this round, not the increment. Other kinds
// ignore Amount.
type Action struct {
	Kind   Kind  `json:"kind"`
	Amount int64 `json:"amount,omitempty"`
}

func (a Action) String() string {
	switch a.Kind {
	case Bet, Raise:
		return a.Kind.String() + " " + strconv.FormatInt(a.Amount, 10)
	}
	return a.Kind.String()
}

// LegalAction is one option open to the player to act. For Bet and Raise,
// Min and Max bound the raise-to total. For Call and AllInKind, Min and Max
// both hold the chips the action would move.
type LegalAction struct {
	Kind Kind  `json:"kind"`
	Min  int64 `json:"min,omitempty"`
	Max  int64 `json:"max,omitempty"`
}
