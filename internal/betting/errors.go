package betting

import (
	"errors"
	"fmt"
)

var (
	// ErrIllegalAction is the class of every rejected action.
	ErrIllegalAction = errors.New("betting: illegal action")
	// ErrNotYourTurn is returned when a seat acts out of turn.
	ErrNotYourTurn = fmt.Errorf("%w: not your turn", ErrIllegalAction)
	// ErrRoundComplete is returned for actions after the round has ended.
	ErrRoundComplete = fmt.Errorf("%w: round complete", ErrIllegalAction)
	// ErrChipOverflow is returned when chip arithmetic would overflow.
	ErrChipOverflow = errors.New("betting: chip overflow")
)

// ActionError describes why an action was rejected.
type ActionError struct {
	Seat   int
	Action Action
	Reason string
	Err    error
}

func (e *ActionError) Error() string {
	return fmt.Sprintf("seat %d %s: %s", e.Seat, e.Action, e.Reason)
}

func (e *ActionError) Unwrap() error {
	if e.Err == nil {
		return ErrIllegalAction
	}
	return e.Err
}

func illegal(seat int, a Action, format string, args ...any) error {
	return &ActionError{Seat: seat, Action: a, Reason: fmt.Sprintf(format, args...)}
}
