package hand

import (
	"errors"
	"fmt"

	"github.com/lox/fairtable/internal/betting"
	"github.com/lox/fairtable/internal/shuffle"
	"github.com/lox/fairtable/poker"
)

var (
	// ErrHandVoided means the hand was abandoned and every contribution
	// refunded. It wraps the fairness failure that caused it.
	ErrHandVoided = errors.New("hand: voided")
	// ErrInvariant means the engine reached a state it must never reach.
	// The table that owns the hand must stop accepting commands.
	ErrInvariant = errors.New("hand: invariant violated")
	// ErrNoBettingRound rejects actions outside a betting round.
	ErrNoBettingRound = fmt.Errorf("%w: no betting round in progress", betting.ErrIllegalAction)
	// ErrInvalidConfig rejects a hand that cannot be dealt as configured.
	ErrInvalidConfig = errors.New("hand: invalid configuration")
)

// Severity is how the owner of a hand should react to an error.
type Severity int

const (
	// SeverityNone is returned for a nil error.
	SeverityNone Severity = iota
	// SeverityValidation rejects one command; nothing changed.
	SeverityValidation
	// SeverityResource aborts the requested transition; state is intact.
	SeverityResource
	// SeverityFairness voids the hand and refunds contributions.
	SeverityFairness
	// SeverityAssertion freezes the table.
	SeverityAssertion
)

func (s Severity) String() string {
	switch s {
	case SeverityNone:
		return "none"
	case SeverityValidation:
		return "validation"
	case SeverityResource:
		return "resource"
	case SeverityFairness:
		return "fairness"
	case SeverityAssertion:
		return "assertion"
	}
	return fmt.Sprintf("severity(%d)", int(s))
}

// Classify maps an error onto the handling policy. Unknown errors are
// treated as assertions: a table should never guess that it is safe to
// continue.
func Classify(err error) Severity {
	switch {
	case err == nil:
		return SeverityNone
	case errors.Is(err, ErrInvariant):
		return SeverityAssertion
	case errors.Is(err, ErrHandVoided),
		errors.Is(err, shuffle.ErrWeakEntropy),
		errors.Is(err, shuffle.ErrVerification):
		return SeverityFairness
	case errors.Is(err, betting.ErrIllegalAction),
		errors.Is(err, poker.ErrInvalidHandInput),
		errors.Is(err, shuffle.ErrOutOfSequenceReveal),
		errors.Is(err, ErrInvalidConfig):
		return SeverityValidation
	case errors.Is(err, betting.ErrChipOverflow):
		return SeverityResource
	}
	return SeverityAssertion
}
