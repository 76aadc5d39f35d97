package shuffle

import "errors"

var (
	// ErrWeakEntropy means entropy collection failed its quality screen or no
	// required source contributed. The deck must not be used; retry collection.
	ErrWeakEntropy = errors.New("shuffle: insufficient entropy quality")
	// ErrOutOfSequenceReveal is returned when a position is revealed out of
	// deal order or more than once.
	ErrOutOfSequenceReveal = errors.New("shuffle: out of sequence reveal")
	// ErrDeckExhausted is returned when all 52 positions have been revealed.
	ErrDeckExhausted = errors.New("shuffle: deck exhausted")
	// ErrDeckClosed is returned after Finalize or Wipe.
	ErrDeckClosed = errors.New("shuffle: deck closed")
	// ErrVerification is returned when an order, opening or signature does not
	// match its commitment.
	ErrVerification = errors.New("shuffle: verification failed")
	// ErrUnknownScheme names a commitment scheme that is not registered.
	ErrUnknownScheme = errors.New("shuffle: unknown commitment scheme")
)
